package service

// Role is the caller's position in the approval chain
type Role string

const (
	RoleEmployee Role = "employee"
	RoleFinance  Role = "finance"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// IsValid reports whether the role is known
func (r Role) IsValid() bool {
	switch r {
	case RoleEmployee, RoleFinance, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// Actor identifies who performs an operation
type Actor struct {
	UserID int64
	Role   Role
}

// HasRole reports whether the actor holds any of roles
func (a Actor) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// IsReviewer reports whether the actor may read any form
func (a Actor) IsReviewer() bool {
	return a.HasRole(RoleFinance, RoleManager, RoleAdmin)
}
