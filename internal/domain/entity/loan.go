package entity

import "time"

// Loan status constants
const (
	LoanStatusPending         = "pending"
	LoanStatusFinanceApproved = "finance_approved"
	LoanStatusManagerApproved = "manager_approved"
	LoanStatusPaid            = "paid"
	LoanStatusPartialRepaid   = "partial_repaid"
	LoanStatusRepaid          = "repaid"
	LoanStatusRejected        = "rejected"
)

// repaidThreshold is the remaining balance at or below which a loan counts as repaid
const repaidThreshold = 0.01

// Loan is a disbursed advance that reimbursements can be offset against
type Loan struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	Amount          float64   `json:"amount"`
	RemainingAmount float64   `json:"remaining_amount"`
	Status          string    `json:"status"`
	Purpose         string    `json:"purpose,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsOutstanding reports whether the loan can absorb offsets
func (l *Loan) IsOutstanding() bool {
	return l.Status == LoanStatusPaid || l.Status == LoanStatusPartialRepaid
}

// DeriveLoanStatus returns the status implied by a balance change.
// Loans that never reached disbursement keep their current status.
func DeriveLoanStatus(amount, remaining float64, current string) string {
	if remaining <= repaidThreshold {
		return LoanStatusRepaid
	}
	if remaining < amount {
		return LoanStatusPartialRepaid
	}
	if current == LoanStatusPartialRepaid || current == LoanStatusRepaid {
		return LoanStatusPaid
	}
	return current
}

// LoanLink ties a loan offset to a reimbursement form
type LoanLink struct {
	ID                      int64     `json:"id"`
	FormID                  int64     `json:"form_id"`
	LoanID                  int64     `json:"loan_id"`
	OffsetAmount            float64   `json:"offset_amount"`
	OriginalRemainingAmount float64   `json:"original_remaining_amount"`
	CreatedBy               int64     `json:"created_by"`
	CreatedAt               time.Time `json:"created_at"`
}
