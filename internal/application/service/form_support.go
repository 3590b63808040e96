package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/expense-reimbursement/internal/application/port"
	"github.com/garyjia/expense-reimbursement/internal/domain/entity"
	"github.com/garyjia/expense-reimbursement/internal/domain/money"
	"github.com/garyjia/expense-reimbursement/internal/domain/workflow"
)

func loadForm(ctx context.Context, forms port.FormRepository, id int64) (*entity.ReimbursementForm, error) {
	form, err := forms.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get form %d: %w", id, err)
	}
	if form == nil {
		return nil, errFormNotFound(id)
	}
	return form, nil
}

// transition runs the form state machine and converts its failures to business errors
func transition(form *entity.ReimbursementForm, trigger workflow.Trigger) (workflow.State, error) {
	next, err := workflow.Next(form.Status, trigger, form.IsLocked)
	switch {
	case err == nil:
		return next, nil
	case errors.Is(err, workflow.ErrLocked):
		return form.Status, errFormLocked(form.ID, form.LockReason)
	default:
		return form.Status, newError(CodeInvalidState, "cannot %s form in status %s", triggerVerb(trigger), form.Status).
			withDetails(map[string]interface{}{"form_id": form.ID, "status": form.Status}).
			wrap(err)
	}
}

func triggerVerb(t workflow.Trigger) string {
	switch t {
	case workflow.TriggerSubmit:
		return "submit"
	case workflow.TriggerWithdraw:
		return "withdraw"
	case workflow.TriggerPay:
		return "pay"
	case workflow.TriggerFinanceApprove, workflow.TriggerManagerApprove:
		return "approve"
	case workflow.TriggerFinanceReject, workflow.TriggerManagerReject:
		return "reject"
	}
	return t.String()
}

// recalcTotals rewrites total, offset and net payment from the rows attached to the form
func recalcTotals(ctx context.Context, repos Repositories, formID int64) (port.FormAmounts, error) {
	records, err := repos.Records.GetByFormID(ctx, formID)
	if err != nil {
		return port.FormAmounts{}, fmt.Errorf("get records: %w", err)
	}
	links, err := repos.LoanLinks.GetByFormID(ctx, formID)
	if err != nil {
		return port.FormAmounts{}, fmt.Errorf("get loan links: %w", err)
	}

	amounts := make([]float64, len(records))
	for i, r := range records {
		amounts[i] = r.Amount
	}
	offsets := make([]float64, len(links))
	for i, l := range links {
		offsets[i] = l.OffsetAmount
	}

	total := money.Sum(amounts...)
	offset := money.Sum(offsets...)
	result := port.FormAmounts{
		TotalAmount:      total,
		LoanOffsetAmount: offset,
		NetPaymentAmount: money.NetPayment(total, offset),
	}

	if err := repos.Forms.UpdateAmounts(ctx, formID, result); err != nil {
		return port.FormAmounts{}, fmt.Errorf("update amounts: %w", err)
	}
	return result, nil
}

// dropLoanLinksIfExceeded clears the form's loan links once their sum no longer fits the total
func dropLoanLinksIfExceeded(ctx context.Context, repos Repositories, formID int64, amounts port.FormAmounts, logger Logger) (port.FormAmounts, error) {
	if !money.GreaterThan(amounts.LoanOffsetAmount, amounts.TotalAmount) {
		return amounts, nil
	}

	logger.Warn("Loan offsets exceed form total, clearing links",
		"form_id", formID, "offset", amounts.LoanOffsetAmount, "total", amounts.TotalAmount)

	if err := repos.LoanLinks.ReplaceForForm(ctx, formID, nil); err != nil {
		return amounts, fmt.Errorf("clear loan links: %w", err)
	}
	return recalcTotals(ctx, repos, formID)
}

// resetReview puts a resubmitted form back to an unreviewed state and archives its ledger
func resetReview(ctx context.Context, repos Repositories, formID int64, at time.Time) error {
	if err := repos.Records.ResetApproval(ctx, formID); err != nil {
		return fmt.Errorf("reset records: %w", err)
	}
	if err := repos.Forms.UpdateReviewCounters(ctx, formID, 0, 0); err != nil {
		return fmt.Errorf("reset counters: %w", err)
	}
	if err := repos.ApprovalLogs.Supersede(ctx, formID, at); err != nil {
		return fmt.Errorf("archive approval logs: %w", err)
	}
	return nil
}

func newApprovalLog(formID int64, action string, approved, rejected []int64, actor Actor, comment string, at time.Time) *entity.ApprovalLog {
	if approved == nil {
		approved = []int64{}
	}
	if rejected == nil {
		rejected = []int64{}
	}
	return &entity.ApprovalLog{
		FormID:            formID,
		Action:            action,
		ApprovedRecordIDs: approved,
		RejectedRecordIDs: rejected,
		ApproverID:        actor.UserID,
		ApproverRole:      string(actor.Role),
		Comment:           comment,
		CreatedAt:         at,
	}
}

func recordIDs(records []*entity.ReimbursementRecord) []int64 {
	ids := make([]int64, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	return ids
}
