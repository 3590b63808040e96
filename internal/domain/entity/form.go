package entity

import (
	"time"

	"github.com/garyjia/expense-reimbursement/internal/domain/workflow"
)

// ReimbursementForm groups reimbursement records that travel through approval together
type ReimbursementForm struct {
	ID                    int64          `json:"id"`
	FormNumber            string         `json:"form_number"`
	UserID                int64          `json:"user_id"`
	TotalAmount           float64        `json:"total_amount"`
	Status                workflow.State `json:"status"`
	LoanOffsetAmount      float64        `json:"loan_offset_amount"`
	NetPaymentAmount      float64        `json:"net_payment_amount"`
	PaymentNote           string         `json:"payment_note,omitempty"`
	PaidAt                *time.Time     `json:"paid_at,omitempty"`
	IsLocked              bool           `json:"is_locked"`
	LockReason            string         `json:"lock_reason,omitempty"`
	LockedAt              *time.Time     `json:"locked_at,omitempty"`
	CanCreateFromRejected bool           `json:"can_create_from_rejected"`
	ApprovedRecordCount   int            `json:"approved_record_count"`
	RejectedRecordCount   int            `json:"rejected_record_count"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// StatusLabel is the display label of the current status
func (f *ReimbursementForm) StatusLabel() string {
	return f.Status.Label()
}

// ReimbursementRecord is a single expense line item
type ReimbursementRecord struct {
	ID             int64                 `json:"id"`
	FormID         *int64                `json:"form_id,omitempty"`
	UserID         int64                 `json:"user_id"`
	Amount         float64               `json:"amount"`
	Purpose        string                `json:"purpose"`
	Type           string                `json:"type"`
	Remark         string                `json:"remark,omitempty"`
	InvoiceNumber  string                `json:"invoice_number,omitempty"`
	InvoiceDate    string                `json:"invoice_date,omitempty"`
	BuyerName      string                `json:"buyer_name,omitempty"`
	ServiceName    string                `json:"service_name,omitempty"`
	ApprovalStatus workflow.RecordStatus `json:"approval_status"`
	ApproverID     *int64                `json:"approver_id,omitempty"`
	ApprovedAt     *time.Time            `json:"approved_at,omitempty"`
	RejectReason   string                `json:"reject_reason,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
}
