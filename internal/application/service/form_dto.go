package service

import (
	"strings"

	"github.com/garyjia/expense-reimbursement/internal/domain/entity"
	"github.com/garyjia/expense-reimbursement/internal/domain/money"
	"github.com/garyjia/expense-reimbursement/internal/domain/workflow"
)

// SaveMode tells create/update whether to leave the form as a draft or submit it
type SaveMode string

const (
	SaveModeDraft  SaveMode = "draft"
	SaveModeSubmit SaveMode = "submit"
)

// Validate rejects unknown modes
func (m SaveMode) Validate() error {
	if m != SaveModeDraft && m != SaveModeSubmit {
		return newError(CodeInvalidInput, "mode must be %q or %q", SaveModeDraft, SaveModeSubmit)
	}
	return nil
}

// ItemInput is one line item as sent by the caller. ID is set for existing records on update.
type ItemInput struct {
	ID                *int64   `json:"id,omitempty"`
	Amount            float64  `json:"amount"`
	Purpose           string   `json:"purpose"`
	Type              string   `json:"type"`
	Remark            string   `json:"remark,omitempty"`
	InvoiceNumber     string   `json:"invoice_number,omitempty"`
	InvoiceDate       string   `json:"invoice_date,omitempty"`
	BuyerName         string   `json:"buyer_name,omitempty"`
	ServiceName       string   `json:"service_name,omitempty"`
	TempAttachmentIDs []string `json:"temp_attachment_ids,omitempty"`
}

// validateItems normalizes a copy of items in one pass and fails on the first invalid one
func validateItems(items []ItemInput) ([]ItemInput, error) {
	if len(items) == 0 {
		return nil, newError(CodeInvalidItem, "at least one item is required")
	}

	out := make([]ItemInput, len(items))
	for i, in := range items {
		in.Amount = money.Round2(in.Amount)
		in.Purpose = strings.TrimSpace(in.Purpose)
		in.Type = strings.TrimSpace(in.Type)
		in.Remark = strings.TrimSpace(in.Remark)
		in.InvoiceNumber = NormalizeInvoiceNumber(in.InvoiceNumber)

		field := ""
		switch {
		case in.Amount <= 0:
			field = "amount"
		case in.Purpose == "":
			field = "purpose"
		case in.Type == "":
			field = "type"
		}
		if field != "" {
			return nil, newError(CodeInvalidItem, "item %d: %s is required and must be valid", i+1, field).
				withDetails(map[string]interface{}{"index": i, "field": field})
		}
		out[i] = in
	}
	return out, nil
}

func invoiceNumbers(items []ItemInput) []string {
	numbers := make([]string, 0, len(items))
	for _, in := range items {
		if in.InvoiceNumber != "" {
			numbers = append(numbers, in.InvoiceNumber)
		}
	}
	return numbers
}

func (in ItemInput) toRecord(formID, userID int64) *entity.ReimbursementRecord {
	return &entity.ReimbursementRecord{
		FormID:         &formID,
		UserID:         userID,
		Amount:         in.Amount,
		Purpose:        in.Purpose,
		Type:           in.Type,
		Remark:         in.Remark,
		InvoiceNumber:  in.InvoiceNumber,
		InvoiceDate:    in.InvoiceDate,
		BuyerName:      in.BuyerName,
		ServiceName:    in.ServiceName,
		ApprovalStatus: workflow.RecordPending,
	}
}

// changed reports whether applying in would modify the stored record
func (in ItemInput) changed(r *entity.ReimbursementRecord) bool {
	return money.Round2(r.Amount) != in.Amount ||
		r.Purpose != in.Purpose ||
		r.Type != in.Type ||
		r.Remark != in.Remark ||
		r.InvoiceNumber != in.InvoiceNumber ||
		r.InvoiceDate != in.InvoiceDate ||
		r.BuyerName != in.BuyerName ||
		r.ServiceName != in.ServiceName
}

// CreateResult is returned by form creation
type CreateResult struct {
	FormID           int64          `json:"form_id"`
	FormNumber       string         `json:"form_number"`
	Status           workflow.State `json:"status"`
	TotalAmount      float64        `json:"total_amount"`
	ReimbursementIDs []int64        `json:"reimbursement_ids"`
}

// FormDetail is a form with everything attached to it
type FormDetail struct {
	Form      *entity.ReimbursementForm     `json:"form"`
	Records   []*entity.ReimbursementRecord `json:"records"`
	Vouchers  map[int64][]*entity.Voucher   `json:"vouchers"`
	LoanLinks []*entity.LoanLink            `json:"loan_links"`
}

// FormListFilter narrows List results
type FormListFilter struct {
	Status string
	Limit  int
	Offset int
}
