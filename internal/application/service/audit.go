package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/expense-reimbursement/internal/application/port"
	"github.com/garyjia/expense-reimbursement/internal/domain/entity"
)

// Audit actions written to the operation log
const (
	ActionFormCreateAuto         = "form_create_auto"
	ActionFormUpdate             = "form_update"
	ActionFormSubmit             = "form_submit"
	ActionFormWithdraw           = "form_withdraw"
	ActionFormDelete             = "form_delete"
	ActionFormCreateFromRejected = "form_create_from_rejected"
	ActionFormReview             = "form_review"
	ActionFormLoanLink           = "form_loan_link"
	ActionFormPaymentConfirm     = "form_payment_confirm"
	ActionLoanCreate             = "loan_create"
)

// notifyTimeout bounds a chat notification after the request already succeeded
const notifyTimeout = 10 * time.Second

// Auditor records completed mutations and pushes notifications.
// Neither ever fails the caller.
type Auditor struct {
	actions  port.ActionLogger
	notifier port.Notifier
	logger   Logger
}

// NewAuditor creates an Auditor; a nil notifier disables notifications
func NewAuditor(actions port.ActionLogger, notifier port.Notifier, logger Logger) *Auditor {
	return &Auditor{
		actions:  actions,
		notifier: notifier,
		logger:   logger,
	}
}

// LogAction writes one audit entry, logging instead of returning failures
func (a *Auditor) LogAction(ctx context.Context, userID int64, action, detail string) {
	if a == nil || a.actions == nil {
		return
	}
	if err := a.actions.LogAction(context.WithoutCancel(ctx), userID, action, detail); err != nil {
		a.logger.Warn("Failed to write operation log", "error", err, "user_id", userID, "action", action)
	}
}

// Notify sends a chat notification, logging instead of returning failures
func (a *Auditor) Notify(ctx context.Context, title, body string) {
	if a == nil || a.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := a.notifier.Notify(ctx, port.Notification{Title: title, Body: body}); err != nil {
		a.logger.Warn("Failed to send notification", "error", err, "title", title)
	}
}

type operationLogSink struct {
	repo port.OperationLogRepository
}

// NewOperationLogSink persists audit entries in the operation log table
func NewOperationLogSink(repo port.OperationLogRepository) port.ActionLogger {
	return &operationLogSink{repo: repo}
}

func (s *operationLogSink) LogAction(ctx context.Context, userID int64, action, detail string) error {
	entry := &entity.OperationLog{
		UserID:    userID,
		Action:    action,
		Detail:    detail,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("create operation log: %w", err)
	}
	return nil
}
