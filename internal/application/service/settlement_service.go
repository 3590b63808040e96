package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/expense-reimbursement/internal/application/port"
	"github.com/garyjia/expense-reimbursement/internal/domain/entity"
	"github.com/garyjia/expense-reimbursement/internal/domain/money"
	"github.com/garyjia/expense-reimbursement/internal/domain/workflow"
)

// LoanLinkInput asks for part of a form's payment to go towards a loan
type LoanLinkInput struct {
	LoanID       int64   `json:"loan_id"`
	OffsetAmount float64 `json:"offset_amount"`
}

// PaymentRequest confirms payment; LoanLinks, when present, replaces the current links first
type PaymentRequest struct {
	LoanLinks   *[]LoanLinkInput `json:"loan_links,omitempty"`
	PaymentNote string           `json:"payment_note"`
}

// PaymentResult summarizes a confirmed payment
type PaymentResult struct {
	FormID           int64           `json:"form_id"`
	Status           workflow.State  `json:"status"`
	TotalAmount      float64         `json:"total_amount"`
	LoanOffsetAmount float64         `json:"loan_offset_amount"`
	NetPaymentAmount float64         `json:"net_payment_amount"`
	PaidAt           time.Time       `json:"paid_at"`
	Offsets          []OffsetOutcome `json:"offsets"`
	// OffsetClamped is set when a loan balance covered less than its linked offset
	OffsetClamped bool `json:"offset_clamped"`
}

// SettlementService links loans to forms and confirms payment
type SettlementService interface {
	LinkLoans(ctx context.Context, formID int64, links []LoanLinkInput, actor Actor) (*entity.ReimbursementForm, error)
	ConfirmPayment(ctx context.Context, formID int64, req PaymentRequest, actor Actor) (*PaymentResult, error)
}

type settlementServiceImpl struct {
	repos   Repositories
	loans   LoanService
	auditor *Auditor
	logger  Logger
}

// NewSettlementService creates a new SettlementService
func NewSettlementService(repos Repositories, loans LoanService, auditor *Auditor, logger Logger) SettlementService {
	return &settlementServiceImpl{
		repos:   repos,
		loans:   loans,
		auditor: auditor,
		logger:  logger,
	}
}

var linkableStates = map[workflow.State]bool{
	workflow.StateSubmitted:       true,
	workflow.StateFinanceApproved: true,
	workflow.StateManagerApproved: true,
}

// LinkLoans replaces the form's loan links after validating all of them
func (s *settlementServiceImpl) LinkLoans(ctx context.Context, formID int64, links []LoanLinkInput, actor Actor) (*entity.ReimbursementForm, error) {
	form, err := loadForm(ctx, s.repos.Forms, formID)
	if err != nil {
		return nil, err
	}
	if !actor.HasRole(RoleFinance, RoleAdmin) {
		return nil, newError(CodeForbidden, "only finance or admin can link loans")
	}
	if form.IsLocked {
		return nil, errFormLocked(form.ID, form.LockReason)
	}
	if !linkableStates[form.Status] {
		return nil, newError(CodeInvalidState, "loans cannot be linked to form %d in status %s", formID, form.Status)
	}

	validated, err := s.validateLinks(ctx, form, links, actor)
	if err != nil {
		return nil, err
	}

	var amounts port.FormAmounts
	err = s.repos.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repos.LoanLinks.ReplaceForForm(txCtx, formID, validated); err != nil {
			return err
		}
		amounts, err = recalcTotals(txCtx, s.repos, formID)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to link loans", "error", err, "form_id", formID)
		return nil, err
	}

	s.logger.Info("Loans linked", "form_id", formID, "links", len(validated),
		"offset", amounts.LoanOffsetAmount, "net", amounts.NetPaymentAmount)
	s.auditor.LogAction(ctx, actor.UserID, ActionFormLoanLink,
		fmt.Sprintf("form %s linked to %d loans, offset %.2f, net %.2f",
			form.FormNumber, len(validated), amounts.LoanOffsetAmount, amounts.NetPaymentAmount))
	return loadForm(ctx, s.repos.Forms, formID)
}

// validateLinks checks every requested link against current balances without writing anything
func (s *settlementServiceImpl) validateLinks(ctx context.Context, form *entity.ReimbursementForm, links []LoanLinkInput, actor Actor) ([]*entity.LoanLink, error) {
	var (
		out     = make([]*entity.LoanLink, 0, len(links))
		offsets = make([]float64, 0, len(links))
		seen    = make(map[int64]bool, len(links))
	)

	for _, in := range links {
		amount := money.Round2(in.OffsetAmount)
		if amount <= 0 {
			return nil, newError(CodeOffsetInvalid, "offset for loan %d must be positive", in.LoanID).
				withDetails(map[string]interface{}{"loan_id": in.LoanID})
		}
		if seen[in.LoanID] {
			return nil, newError(CodeOffsetInvalid, "loan %d is linked more than once", in.LoanID).
				withDetails(map[string]interface{}{"loan_id": in.LoanID})
		}
		seen[in.LoanID] = true

		loan, err := s.repos.Loans.GetByID(ctx, in.LoanID)
		if err != nil {
			return nil, err
		}
		if loan == nil {
			return nil, newError(CodeLoanNotFound, "loan %d not found", in.LoanID).
				withDetails(map[string]interface{}{"loan_id": in.LoanID})
		}
		if loan.UserID != form.UserID {
			return nil, newError(CodeUserMismatch, "loan %d does not belong to the form owner", in.LoanID).
				withDetails(map[string]interface{}{"loan_id": in.LoanID, "loan_user_id": loan.UserID, "form_user_id": form.UserID})
		}
		if !loan.IsOutstanding() {
			return nil, newError(CodeLoanInvalidStatus, "loan %d is %s and cannot be offset", in.LoanID, loan.Status).
				withDetails(map[string]interface{}{"loan_id": in.LoanID, "status": loan.Status})
		}
		remaining := money.Round2(loan.RemainingAmount)
		if money.GreaterThan(amount, remaining) {
			return nil, newError(CodeLoanInsufficient, "offset %.2f exceeds loan %d remaining balance %.2f", amount, in.LoanID, remaining).
				withDetails(map[string]interface{}{"loan_id": in.LoanID, "remaining_amount": remaining, "offset_amount": amount})
		}

		offsets = append(offsets, amount)
		out = append(out, &entity.LoanLink{
			FormID:                  form.ID,
			LoanID:                  in.LoanID,
			OffsetAmount:            amount,
			OriginalRemainingAmount: remaining,
			CreatedBy:               actor.UserID,
		})
	}

	if total := money.Sum(offsets...); money.GreaterThan(total, form.TotalAmount) {
		return nil, newError(CodeOffsetInvalid, "total offset %.2f exceeds form total %.2f", total, form.TotalAmount).
			withDetails(map[string]interface{}{"offset_amount": total, "total_amount": form.TotalAmount})
	}
	return out, nil
}

// ConfirmPayment settles a manager-approved form: loan balances go down, the form and its records become paid
func (s *settlementServiceImpl) ConfirmPayment(ctx context.Context, formID int64, req PaymentRequest, actor Actor) (*PaymentResult, error) {
	form, err := loadForm(ctx, s.repos.Forms, formID)
	if err != nil {
		return nil, err
	}
	if !actor.HasRole(RoleFinance) {
		return nil, newError(CodeForbidden, "only finance can confirm payment")
	}
	if form.IsLocked {
		return nil, errFormLocked(form.ID, form.LockReason)
	}
	next, err := transition(form, workflow.TriggerPay)
	if err != nil {
		return nil, err
	}

	var replacement []*entity.LoanLink
	if req.LoanLinks != nil {
		if replacement, err = s.validateLinks(ctx, form, *req.LoanLinks, actor); err != nil {
			return nil, err
		}
	}

	paidAt := time.Now().UTC()
	result := &PaymentResult{FormID: formID, Status: next, PaidAt: paidAt}

	err = s.repos.Tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if req.LoanLinks != nil {
			if err := s.repos.LoanLinks.ReplaceForForm(txCtx, formID, replacement); err != nil {
				return err
			}
		}

		links, err := s.repos.LoanLinks.GetByFormID(txCtx, formID)
		if err != nil {
			return err
		}
		for _, link := range links {
			outcome, err := s.loans.ApplyOffset(txCtx, link.LoanID, link.OffsetAmount)
			if err != nil {
				return err
			}
			result.Offsets = append(result.Offsets, *outcome)
		}

		amounts, err := recalcTotals(txCtx, s.repos, formID)
		if err != nil {
			return err
		}
		// the form records what actually came off the loans
		if applied := appliedOffset(result.Offsets); money.GreaterThan(amounts.LoanOffsetAmount, applied) {
			amounts.LoanOffsetAmount = applied
			amounts.NetPaymentAmount = money.NetPayment(amounts.TotalAmount, applied)
			result.OffsetClamped = true
			if err := s.repos.Forms.UpdateAmounts(txCtx, formID, amounts); err != nil {
				return fmt.Errorf("update amounts: %w", err)
			}
		}
		result.TotalAmount = amounts.TotalAmount
		result.LoanOffsetAmount = amounts.LoanOffsetAmount
		result.NetPaymentAmount = amounts.NetPaymentAmount

		if err := s.repos.Forms.MarkPaid(txCtx, formID, strings.TrimSpace(req.PaymentNote), paidAt); err != nil {
			return err
		}
		return s.repos.Records.SetStatusByForm(txCtx, formID, workflow.RecordPaid)
	})
	if err != nil {
		s.logger.Error("Failed to confirm payment", "error", err, "form_id", formID)
		return nil, err
	}

	s.logger.Info("Payment confirmed", "form_id", formID,
		"total", result.TotalAmount, "offset", result.LoanOffsetAmount, "net", result.NetPaymentAmount)
	s.auditor.LogAction(ctx, actor.UserID, ActionFormPaymentConfirm,
		fmt.Sprintf("form %s paid: net %.2f, loan offset %.2f", form.FormNumber, result.NetPaymentAmount, result.LoanOffsetAmount))
	s.auditor.Notify(ctx, "报销单已打款",
		fmt.Sprintf("报销单 %s 已打款：实付 ¥%s，借款冲抵 ¥%s",
			form.FormNumber, money.FormatYuan(result.NetPaymentAmount), money.FormatYuan(result.LoanOffsetAmount)))
	return result, nil
}

func appliedOffset(outcomes []OffsetOutcome) float64 {
	applied := make([]float64, len(outcomes))
	for i, o := range outcomes {
		applied[i] = o.Applied
	}
	return money.Sum(applied...)
}
