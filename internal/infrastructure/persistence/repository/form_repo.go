package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/expense-reimbursement/internal/application/port"
	"github.com/garyjia/expense-reimbursement/internal/domain/entity"
	"github.com/garyjia/expense-reimbursement/internal/domain/workflow"
	"github.com/garyjia/expense-reimbursement/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const formColumns = `
	id, form_number, user_id, total_amount, status, loan_offset_amount,
	net_payment_amount, payment_note, paid_at, is_locked, lock_reason, locked_at,
	can_create_from_rejected, approved_record_count, rejected_record_count,
	created_at, updated_at`

// FormRepository implements port.FormRepository
type FormRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewFormRepository creates a new form repository
func NewFormRepository(db *sql.DB, logger *zap.Logger) port.FormRepository {
	return &FormRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a form and sets its ID
func (r *FormRepository) Create(ctx context.Context, form *entity.ReimbursementForm) error {
	now := time.Now().UTC()
	if form.CreatedAt.IsZero() {
		form.CreatedAt = now
	}
	form.UpdatedAt = now

	query := `
		INSERT INTO reimbursement_forms (
			form_number, user_id, total_amount, status, loan_offset_amount,
			net_payment_amount, can_create_from_rejected, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		form.FormNumber,
		form.UserID,
		form.TotalAmount,
		form.Status.String(),
		form.LoanOffsetAmount,
		form.NetPaymentAmount,
		form.CanCreateFromRejected,
		form.CreatedAt,
		form.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create form", zap.String("form_number", form.FormNumber), zap.Error(err))
		return fmt.Errorf("failed to create form: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	form.ID = id
	return nil
}

// GetByID retrieves a form, or nil when it does not exist
func (r *FormRepository) GetByID(ctx context.Context, id int64) (*entity.ReimbursementForm, error) {
	query := `SELECT ` + formColumns + ` FROM reimbursement_forms WHERE id = ?`

	form, err := r.scan(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get form by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get form: %w", err)
	}
	return form, nil
}

// ExistsByNumber reports whether a form number is taken
func (r *FormRepository) ExistsByNumber(ctx context.Context, formNumber string) (bool, error) {
	var n int
	err := r.getExecutor(ctx).QueryRowContext(ctx,
		`SELECT COUNT(1) FROM reimbursement_forms WHERE form_number = ?`, formNumber,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check form number: %w", err)
	}
	return n > 0, nil
}

// MaxNumberWithPrefix returns the lexically largest form number with the prefix
func (r *FormRepository) MaxNumberWithPrefix(ctx context.Context, prefix string) (string, error) {
	var max sql.NullString
	err := r.getExecutor(ctx).QueryRowContext(ctx,
		`SELECT MAX(form_number) FROM reimbursement_forms WHERE form_number LIKE ? AND length(form_number) = ?`,
		prefix+"%", len(prefix)+4,
	).Scan(&max)
	if err != nil {
		return "", fmt.Errorf("failed to read form number sequence: %w", err)
	}
	return max.String, nil
}

// UpdateStatus sets the canonical status
func (r *FormRepository) UpdateStatus(ctx context.Context, id int64, status workflow.State) error {
	return r.exec(ctx, "update form status",
		`UPDATE reimbursement_forms SET status = ?, updated_at = ? WHERE id = ?`,
		status.String(), time.Now().UTC(), id)
}

// UpdateAmounts writes total, offset and net payment together
func (r *FormRepository) UpdateAmounts(ctx context.Context, id int64, amounts port.FormAmounts) error {
	return r.exec(ctx, "update form amounts",
		`UPDATE reimbursement_forms
		 SET total_amount = ?, loan_offset_amount = ?, net_payment_amount = ?, updated_at = ?
		 WHERE id = ?`,
		amounts.TotalAmount, amounts.LoanOffsetAmount, amounts.NetPaymentAmount, time.Now().UTC(), id)
}

// UpdateReviewCounters sets the approved and rejected record counters
func (r *FormRepository) UpdateReviewCounters(ctx context.Context, id int64, approved, rejected int) error {
	return r.exec(ctx, "update review counters",
		`UPDATE reimbursement_forms
		 SET approved_record_count = ?, rejected_record_count = ?, updated_at = ?
		 WHERE id = ?`,
		approved, rejected, time.Now().UTC(), id)
}

// Lock marks the form read-only
func (r *FormRepository) Lock(ctx context.Context, id int64, reason string, at time.Time) error {
	return r.exec(ctx, "lock form",
		`UPDATE reimbursement_forms
		 SET is_locked = 1, lock_reason = ?, locked_at = ?, updated_at = ?
		 WHERE id = ?`,
		reason, at, at, id)
}

// MarkPaid moves the form to paid
func (r *FormRepository) MarkPaid(ctx context.Context, id int64, note string, at time.Time) error {
	return r.exec(ctx, "mark form paid",
		`UPDATE reimbursement_forms
		 SET status = ?, payment_note = ?, paid_at = ?, updated_at = ?
		 WHERE id = ?`,
		workflow.StatePaid.String(), note, at, at, id)
}

// SetCanCreateFromRejected toggles whether a new form may be created from this one
func (r *FormRepository) SetCanCreateFromRejected(ctx context.Context, id int64, allowed bool) error {
	return r.exec(ctx, "update recreate flag",
		`UPDATE reimbursement_forms SET can_create_from_rejected = ?, updated_at = ? WHERE id = ?`,
		allowed, time.Now().UTC(), id)
}

// Delete removes the form row
func (r *FormRepository) Delete(ctx context.Context, id int64) error {
	return r.exec(ctx, "delete form", `DELETE FROM reimbursement_forms WHERE id = ?`, id)
}

// List returns forms ordered newest first
func (r *FormRepository) List(ctx context.Context, filter port.FormFilter) ([]*entity.ReimbursementForm, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.UserID != nil {
		where = append(where, "user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.Status != "" {
		// legacy spellings are stored too; match on every alias of the status
		aliases := workflow.Aliases(filter.Status)
		where = append(where, "status IN ("+placeholders(len(aliases))+")")
		for _, a := range aliases {
			args = append(args, a)
		}
	}

	query := `SELECT ` + formColumns + ` FROM reimbursement_forms`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list forms", zap.Error(err))
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}
	defer rows.Close()

	var forms []*entity.ReimbursementForm
	for rows.Next() {
		form, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan form: %w", err)
		}
		forms = append(forms, form)
	}
	return forms, rows.Err()
}

func (r *FormRepository) scan(row rowScanner) (*entity.ReimbursementForm, error) {
	var (
		form     entity.ReimbursementForm
		status   string
		paidAt   sql.NullTime
		lockedAt sql.NullTime
	)

	err := row.Scan(
		&form.ID,
		&form.FormNumber,
		&form.UserID,
		&form.TotalAmount,
		&status,
		&form.LoanOffsetAmount,
		&form.NetPaymentAmount,
		&form.PaymentNote,
		&paidAt,
		&form.IsLocked,
		&form.LockReason,
		&lockedAt,
		&form.CanCreateFromRejected,
		&form.ApprovedRecordCount,
		&form.RejectedRecordCount,
		&form.CreatedAt,
		&form.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	normalized, ok := workflow.NormalizeFormStatus(status)
	if !ok {
		r.logger.Warn("Unknown form status in storage",
			zap.Int64("form_id", form.ID), zap.String("status", status))
		normalized = workflow.State(status)
	}
	form.Status = normalized
	form.PaidAt = timePtr(paidAt)
	form.LockedAt = timePtr(lockedAt)

	return &form, nil
}

func (r *FormRepository) exec(ctx context.Context, op, query string, args ...interface{}) error {
	if _, err := r.getExecutor(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("Failed to "+op, zap.Error(err))
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return nil
}

func (r *FormRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.FormRepository = (*FormRepository)(nil)
