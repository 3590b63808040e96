package workflow

import "strings"

// State is the canonical status of a reimbursement form
type State string

const (
	StateDraft           State = "draft"
	StateSubmitted       State = "submitted"
	StateFinanceApproved State = "finance_approved"
	StateFinanceRejected State = "finance_rejected"
	StateManagerApproved State = "manager_approved"
	StateManagerRejected State = "manager_rejected"
	StatePaid            State = "paid"
)

var validStates = map[State]bool{
	StateDraft:           true,
	StateSubmitted:       true,
	StateFinanceApproved: true,
	StateFinanceRejected: true,
	StateManagerApproved: true,
	StateManagerRejected: true,
	StatePaid:            true,
}

var terminalStates = map[State]bool{
	StatePaid: true,
}

// stateLabels are the display names historically stored in the status column.
var stateLabels = map[State]string{
	StateDraft:           "草稿",
	StateSubmitted:       "待财务审核",
	StateFinanceApproved: "财务已审核",
	StateFinanceRejected: "财务已驳回",
	StateManagerApproved: "总经理已审批",
	StateManagerRejected: "总经理已驳回",
	StatePaid:            "已打款",
}

// legacyStates maps every historical spelling onto the canonical enum.
// A bare "rejected" cannot tell the stage apart and is read as a finance rejection.
var legacyStates = map[string]State{
	"草稿":     StateDraft,
	"待财务审核":  StateSubmitted,
	"待审核":    StateSubmitted,
	"已提交":    StateSubmitted,
	"财务已审核":  StateFinanceApproved,
	"财务已通过":  StateFinanceApproved,
	"财务已驳回":  StateFinanceRejected,
	"总经理已审批": StateManagerApproved,
	"总经理已通过": StateManagerApproved,
	"总经理已驳回": StateManagerRejected,
	"已打款":    StatePaid,
	"已驳回":    StateFinanceRejected,
	"rejected": StateFinanceRejected,
	"pending":  StateSubmitted,
	"approved": StateFinanceApproved,
}

// NormalizeFormStatus converts a stored status string into the canonical
// State. Unknown values return ok=false.
func NormalizeFormStatus(raw string) (State, bool) {
	s := strings.TrimSpace(raw)
	if st := State(strings.ToLower(s)); st.IsValid() {
		return st, true
	}
	if st, ok := legacyStates[s]; ok {
		return st, true
	}
	if st, ok := legacyStates[strings.ToLower(s)]; ok {
		return st, true
	}
	return "", false
}

// IsTerminal returns true if no further transitions are allowed
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsRejected reports whether the state is one of the rejection states
func (s State) IsRejected() bool {
	return s == StateFinanceRejected || s == StateManagerRejected
}

// IsEditable reports whether the owner may still change the form's items
func (s State) IsEditable() bool {
	return s == StateDraft || s.IsRejected()
}

// IsSubmittedOrBeyond reports whether the form has left the owner's hands
func (s State) IsSubmittedOrBeyond() bool {
	switch s {
	case StateSubmitted, StateFinanceApproved, StateManagerApproved, StatePaid:
		return true
	}
	return false
}

// Label returns the Chinese display label of the state
func (s State) Label() string {
	if l, ok := stateLabels[s]; ok {
		return l
	}
	return string(s)
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid form state
func (s State) IsValid() bool {
	return validStates[s]
}

// Aliases returns every stored spelling that normalizes to s, canonical first.
func Aliases(s State) []string {
	aliases := []string{s.String()}
	for legacy, st := range legacyStates {
		if st == s {
			aliases = append(aliases, legacy)
		}
	}
	return aliases
}
