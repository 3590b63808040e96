package workflow

import "strings"

// RecordStatus is the approval status of a single reimbursement record.
// It moves independently of the owning form during partial approval.
type RecordStatus string

const (
	RecordPending         RecordStatus = "pending"
	RecordFinanceApproved RecordStatus = "finance_approved"
	RecordFinanceRejected RecordStatus = "finance_rejected"
	RecordManagerApproved RecordStatus = "manager_approved"
	RecordManagerRejected RecordStatus = "manager_rejected"
	RecordPaid            RecordStatus = "paid"
)

var validRecordStatuses = map[RecordStatus]bool{
	RecordPending:         true,
	RecordFinanceApproved: true,
	RecordFinanceRejected: true,
	RecordManagerApproved: true,
	RecordManagerRejected: true,
	RecordPaid:            true,
}

var legacyRecordStatuses = map[string]RecordStatus{
	"待审核":    RecordPending,
	"待财务审核":  RecordPending,
	"草稿":     RecordPending,
	"财务已审核":  RecordFinanceApproved,
	"财务已通过":  RecordFinanceApproved,
	"财务已驳回":  RecordFinanceRejected,
	"总经理已审批": RecordManagerApproved,
	"总经理已通过": RecordManagerApproved,
	"总经理已驳回": RecordManagerRejected,
	"已打款":    RecordPaid,
	"已驳回":    RecordFinanceRejected,
	"rejected": RecordFinanceRejected,
	"approved": RecordFinanceApproved,
	"":         RecordPending,
}

// NormalizeRecordStatus converts a stored record status into the canonical enum.
func NormalizeRecordStatus(raw string) (RecordStatus, bool) {
	s := strings.TrimSpace(raw)
	if rs := RecordStatus(strings.ToLower(s)); validRecordStatuses[rs] {
		return rs, true
	}
	if rs, ok := legacyRecordStatuses[s]; ok {
		return rs, true
	}
	if rs, ok := legacyRecordStatuses[strings.ToLower(s)]; ok {
		return rs, true
	}
	return "", false
}

// IsRejected reports whether the record was rejected at any stage
func (r RecordStatus) IsRejected() bool {
	return r == RecordFinanceRejected || r == RecordManagerRejected
}

// IsApproved reports whether any approval has been recorded for the record
func (r RecordStatus) IsApproved() bool {
	return r == RecordFinanceApproved || r == RecordManagerApproved || r == RecordPaid
}

// InReviewScope reports whether a reviewer still has to decide on the record
func (r RecordStatus) InReviewScope() bool {
	return !r.IsRejected() && r != RecordPaid
}

// String returns the string representation of the record status
func (r RecordStatus) String() string {
	return string(r)
}

// Stage identifies one review level of the approval chain
type Stage string

const (
	StageFinance Stage = "finance"
	StageManager Stage = "manager"
)

// StageFor returns the review stage a form in the given state is waiting on.
func StageFor(s State) (Stage, bool) {
	switch s {
	case StateSubmitted:
		return StageFinance, true
	case StateFinanceApproved:
		return StageManager, true
	}
	return "", false
}

// ApprovedState is the form state reached when the stage approves
func (st Stage) ApprovedState() State {
	if st == StageManager {
		return StateManagerApproved
	}
	return StateFinanceApproved
}

// RejectedState is the form state reached when the stage rejects
func (st Stage) RejectedState() State {
	if st == StageManager {
		return StateManagerRejected
	}
	return StateFinanceRejected
}

// ApprovedRecord is the record status written for an approval at this stage
func (st Stage) ApprovedRecord() RecordStatus {
	if st == StageManager {
		return RecordManagerApproved
	}
	return RecordFinanceApproved
}

// RejectedRecord is the record status written for a rejection at this stage
func (st Stage) RejectedRecord() RecordStatus {
	if st == StageManager {
		return RecordManagerRejected
	}
	return RecordFinanceRejected
}

// ApproveTrigger returns the trigger fired on approval at this stage
func (st Stage) ApproveTrigger() Trigger {
	if st == StageManager {
		return TriggerManagerApprove
	}
	return TriggerFinanceApprove
}

// RejectTrigger returns the trigger fired on rejection at this stage
func (st Stage) RejectTrigger() Trigger {
	if st == StageManager {
		return TriggerManagerReject
	}
	return TriggerFinanceReject
}
