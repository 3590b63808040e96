package port

import (
	"context"
	"time"

	"github.com/garyjia/expense-reimbursement/internal/domain/entity"
	"github.com/garyjia/expense-reimbursement/internal/domain/workflow"
)

// FormFilter narrows form listings
type FormFilter struct {
	UserID *int64
	Status workflow.State
	Limit  int
	Offset int
}

// FormAmounts are the derived money columns of a form
type FormAmounts struct {
	TotalAmount      float64
	LoanOffsetAmount float64
	NetPaymentAmount float64
}

// FormRepository defines persistence operations for ReimbursementForm
type FormRepository interface {
	Create(ctx context.Context, form *entity.ReimbursementForm) error
	GetByID(ctx context.Context, id int64) (*entity.ReimbursementForm, error)
	ExistsByNumber(ctx context.Context, formNumber string) (bool, error)

	// MaxNumberWithPrefix returns the highest form number starting with prefix, or "" when none exist
	MaxNumberWithPrefix(ctx context.Context, prefix string) (string, error)

	UpdateStatus(ctx context.Context, id int64, status workflow.State) error
	UpdateAmounts(ctx context.Context, id int64, amounts FormAmounts) error
	UpdateReviewCounters(ctx context.Context, id int64, approved, rejected int) error
	Lock(ctx context.Context, id int64, reason string, at time.Time) error
	MarkPaid(ctx context.Context, id int64, note string, at time.Time) error
	SetCanCreateFromRejected(ctx context.Context, id int64, allowed bool) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter FormFilter) ([]*entity.ReimbursementForm, error)
}

// InvoiceHolder identifies the form currently holding an invoice number
type InvoiceHolder struct {
	InvoiceNumber string
	RecordID      int64
	FormID        int64
	FormNumber    string
	FormStatus    workflow.State
	UserID        int64
}

// RecordRepository defines persistence operations for ReimbursementRecord
type RecordRepository interface {
	Create(ctx context.Context, record *entity.ReimbursementRecord) error
	GetByID(ctx context.Context, id int64) (*entity.ReimbursementRecord, error)
	GetByFormID(ctx context.Context, formID int64) ([]*entity.ReimbursementRecord, error)
	Update(ctx context.Context, record *entity.ReimbursementRecord) error
	Delete(ctx context.Context, id int64) error
	DeleteByFormID(ctx context.Context, formID int64) error

	// SetApproval writes one decision onto a set of records
	SetApproval(ctx context.Context, ids []int64, status workflow.RecordStatus, approverID int64, at time.Time, rejectReason string) error

	// ResetApproval puts every record of a form back to pending and clears approver fields
	ResetApproval(ctx context.Context, formID int64) error

	SetStatusByForm(ctx context.Context, formID int64, status workflow.RecordStatus) error
	MoveToForm(ctx context.Context, ids []int64, formID int64) error

	// FindInvoiceHolders returns records attached to a form whose invoice number is in numbers
	FindInvoiceHolders(ctx context.Context, numbers []string, excludeFormID int64) ([]InvoiceHolder, error)
}

// LoanRepository defines persistence operations for Loan
type LoanRepository interface {
	Create(ctx context.Context, loan *entity.Loan) error
	GetByID(ctx context.Context, id int64) (*entity.Loan, error)
	ListOutstandingByUser(ctx context.Context, userID int64) ([]*entity.Loan, error)

	// DecrementRemaining subtracts amount clamped at zero and returns the balance before and after
	DecrementRemaining(ctx context.Context, id int64, amount float64) (before, after float64, err error)
	UpdateStatus(ctx context.Context, id int64, status string) error
}

// LoanLinkRepository defines persistence operations for LoanLink
type LoanLinkRepository interface {
	ReplaceForForm(ctx context.Context, formID int64, links []*entity.LoanLink) error
	GetByFormID(ctx context.Context, formID int64) ([]*entity.LoanLink, error)
	MoveToForm(ctx context.Context, fromFormID, toFormID int64) error
	DeleteByFormID(ctx context.Context, formID int64) error
}

// ApprovalLogRepository defines persistence operations for ApprovalLog
type ApprovalLogRepository interface {
	Append(ctx context.Context, log *entity.ApprovalLog) error

	// GetByFormID returns entries ordered by creation; superseded entries are skipped unless includeSuperseded
	GetByFormID(ctx context.Context, formID int64, includeSuperseded bool) ([]*entity.ApprovalLog, error)

	// Supersede archives the form's current entries
	Supersede(ctx context.Context, formID int64, at time.Time) error

	// HasDecision reports whether any approve_all or partial_approve entry exists for the form
	HasDecision(ctx context.Context, formID int64) (bool, error)
	DeleteByFormID(ctx context.Context, formID int64) error
}

// LineageRepository defines persistence operations for form relations, splits and voucher reuse
type LineageRepository interface {
	CreateRelation(ctx context.Context, rel *entity.FormRelation) error
	CreateSplit(ctx context.Context, split *entity.FormSplit) error
	CreateVoucherReuse(ctx context.Context, reuse *entity.VoucherReuse) error

	// Parents returns the direct ancestors of a form
	Parents(ctx context.Context, formID int64) ([]entity.Ancestor, error)
	HasSplit(ctx context.Context, formID int64) (bool, error)
	DeleteByFormID(ctx context.Context, formID int64) error
}

// VoucherRepository defines persistence operations for vouchers and their record links
type VoucherRepository interface {
	Create(ctx context.Context, voucher *entity.Voucher) error
	GetByID(ctx context.Context, id int64) (*entity.Voucher, error)
	LinkRecord(ctx context.Context, recordID, voucherID int64) error

	// GetByRecordIDs returns vouchers with RecordID set
	GetByRecordIDs(ctx context.Context, recordIDs []int64) ([]*entity.Voucher, error)

	// RepointForm moves vouchers linked to the given records onto another form
	RepointForm(ctx context.Context, recordIDs []int64, formID int64) error

	// DeleteByRecordID removes the record's links and any voucher left without a link
	DeleteByRecordID(ctx context.Context, recordID int64) ([]*entity.Voucher, error)
	DeleteByFormID(ctx context.Context, formID int64) ([]*entity.Voucher, error)
}

// TempAttachmentRepository defines persistence operations for TempAttachment
type TempAttachmentRepository interface {
	Create(ctx context.Context, att *entity.TempAttachment) error
	GetByTempID(ctx context.Context, tempID string) (*entity.TempAttachment, error)
	Delete(ctx context.Context, tempID string) error
	ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*entity.TempAttachment, error)
}

// OperationLogRepository persists audit entries
type OperationLogRepository interface {
	Create(ctx context.Context, log *entity.OperationLog) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]*entity.OperationLog, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
