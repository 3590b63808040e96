package entity

import "time"

// Approval log actions
const (
	ApprovalActionApproveAll     = "approve_all"
	ApprovalActionRejectAll      = "reject_all"
	ApprovalActionPartialApprove = "partial_approve"
	ApprovalActionSubmit         = "submit"
)

// Lineage levels attached to history entries
const (
	SourceLevelSelf                = "self"
	SourceLevelSplitFinance        = "split_finance"
	SourceLevelSplitManager        = "split_manager"
	SourceLevelCreatedFromRejected = "created_from_rejected"
)

// ApprovalLog is one append-only review decision on a form
type ApprovalLog struct {
	ID                int64      `json:"id"`
	FormID            int64      `json:"form_id"`
	Action            string     `json:"action"`
	ApprovedRecordIDs []int64    `json:"approved_record_ids"`
	RejectedRecordIDs []int64    `json:"rejected_record_ids"`
	ApproverID        int64      `json:"approver_id"`
	ApproverRole      string     `json:"approver_role"`
	Comment           string     `json:"comment,omitempty"`
	SupersededAt      *time.Time `json:"superseded_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`

	// Set on history reads only
	SourceFormID int64  `json:"source_form_id,omitempty"`
	SourceLevel  string `json:"source_level,omitempty"`
}
