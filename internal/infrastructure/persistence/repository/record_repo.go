package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/expense-reimbursement/internal/application/port"
	"github.com/garyjia/expense-reimbursement/internal/domain/entity"
	"github.com/garyjia/expense-reimbursement/internal/domain/workflow"
	"github.com/garyjia/expense-reimbursement/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

const recordColumns = `
	id, form_id, user_id, amount, purpose, type, remark, invoice_number,
	invoice_date, buyer_name, service_name, approval_status, approver_id,
	approved_at, reject_reason, created_at`

// RecordRepository implements port.RecordRepository
type RecordRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRecordRepository creates a new reimbursement record repository
func NewRecordRepository(db *sql.DB, logger *zap.Logger) port.RecordRepository {
	return &RecordRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a record and sets its ID
func (r *RecordRepository) Create(ctx context.Context, record *entity.ReimbursementRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if record.ApprovalStatus == "" {
		record.ApprovalStatus = workflow.RecordPending
	}

	query := `
		INSERT INTO reimbursements (
			form_id, user_id, amount, purpose, type, remark, invoice_number,
			invoice_date, buyer_name, service_name, approval_status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		nullInt64(record.FormID),
		record.UserID,
		record.Amount,
		record.Purpose,
		record.Type,
		record.Remark,
		record.InvoiceNumber,
		record.InvoiceDate,
		record.BuyerName,
		record.ServiceName,
		record.ApprovalStatus.String(),
		record.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create record", zap.Error(err))
		return fmt.Errorf("failed to create record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	record.ID = id
	return nil
}

// GetByID retrieves a record, or nil when it does not exist
func (r *RecordRepository) GetByID(ctx context.Context, id int64) (*entity.ReimbursementRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM reimbursements WHERE id = ?`

	record, err := r.scan(r.getExecutor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get record by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return record, nil
}

// GetByFormID returns the form's records in insertion order
func (r *RecordRepository) GetByFormID(ctx context.Context, formID int64) ([]*entity.ReimbursementRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM reimbursements WHERE form_id = ? ORDER BY id`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, formID)
	if err != nil {
		r.logger.Error("Failed to get records by form", zap.Int64("form_id", formID), zap.Error(err))
		return nil, fmt.Errorf("failed to get records: %w", err)
	}
	defer rows.Close()

	var records []*entity.ReimbursementRecord
	for rows.Next() {
		record, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Update writes the editable item fields
func (r *RecordRepository) Update(ctx context.Context, record *entity.ReimbursementRecord) error {
	query := `
		UPDATE reimbursements
		SET amount = ?, purpose = ?, type = ?, remark = ?, invoice_number = ?,
			invoice_date = ?, buyer_name = ?, service_name = ?
		WHERE id = ?
	`
	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		record.Amount,
		record.Purpose,
		record.Type,
		record.Remark,
		record.InvoiceNumber,
		record.InvoiceDate,
		record.BuyerName,
		record.ServiceName,
		record.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update record", zap.Int64("id", record.ID), zap.Error(err))
		return fmt.Errorf("failed to update record: %w", err)
	}
	return nil
}

// Delete removes one record; its voucher links cascade
func (r *RecordRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.getExecutor(ctx).ExecContext(ctx, `DELETE FROM reimbursements WHERE id = ?`, id); err != nil {
		r.logger.Error("Failed to delete record", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// DeleteByFormID removes every record of a form
func (r *RecordRepository) DeleteByFormID(ctx context.Context, formID int64) error {
	if _, err := r.getExecutor(ctx).ExecContext(ctx, `DELETE FROM reimbursements WHERE form_id = ?`, formID); err != nil {
		r.logger.Error("Failed to delete records", zap.Int64("form_id", formID), zap.Error(err))
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

// SetApproval records one decision on a set of records
func (r *RecordRepository) SetApproval(ctx context.Context, ids []int64, status workflow.RecordStatus, approverID int64, at time.Time, rejectReason string) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		UPDATE reimbursements
		SET approval_status = ?, approver_id = ?, approved_at = ?, reject_reason = ?
		WHERE id IN (` + placeholders(len(ids)) + `)`

	args := append([]interface{}{status.String(), approverID, at, rejectReason}, int64Args(ids)...)
	if _, err := r.getExecutor(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("Failed to set record approval", zap.Int64s("ids", ids), zap.Error(err))
		return fmt.Errorf("failed to set record approval: %w", err)
	}
	return nil
}

// ResetApproval returns the form's records to pending
func (r *RecordRepository) ResetApproval(ctx context.Context, formID int64) error {
	query := `
		UPDATE reimbursements
		SET approval_status = ?, approver_id = NULL, approved_at = NULL, reject_reason = ''
		WHERE form_id = ?
	`
	if _, err := r.getExecutor(ctx).ExecContext(ctx, query, workflow.RecordPending.String(), formID); err != nil {
		r.logger.Error("Failed to reset record approval", zap.Int64("form_id", formID), zap.Error(err))
		return fmt.Errorf("failed to reset record approval: %w", err)
	}
	return nil
}

// SetStatusByForm sets every record of the form to status
func (r *RecordRepository) SetStatusByForm(ctx context.Context, formID int64, status workflow.RecordStatus) error {
	query := `UPDATE reimbursements SET approval_status = ? WHERE form_id = ?`
	if _, err := r.getExecutor(ctx).ExecContext(ctx, query, status.String(), formID); err != nil {
		r.logger.Error("Failed to set record status", zap.Int64("form_id", formID), zap.Error(err))
		return fmt.Errorf("failed to set record status: %w", err)
	}
	return nil
}

// MoveToForm reassigns records to another form
func (r *RecordRepository) MoveToForm(ctx context.Context, ids []int64, formID int64) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE reimbursements SET form_id = ? WHERE id IN (` + placeholders(len(ids)) + `)`
	args := append([]interface{}{formID}, int64Args(ids)...)
	if _, err := r.getExecutor(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("Failed to move records", zap.Int64("form_id", formID), zap.Error(err))
		return fmt.Errorf("failed to move records: %w", err)
	}
	return nil
}

// FindInvoiceHolders looks up which forms already use any of the invoice numbers.
// A rejected form that has been recreated no longer holds its invoices.
func (r *RecordRepository) FindInvoiceHolders(ctx context.Context, numbers []string, excludeFormID int64) ([]port.InvoiceHolder, error) {
	if len(numbers) == 0 {
		return nil, nil
	}

	query := `
		SELECT r.invoice_number, r.id, f.id, f.form_number, f.status, f.user_id, f.can_create_from_rejected
		FROM reimbursements r
		JOIN reimbursement_forms f ON f.id = r.form_id
		WHERE r.invoice_number IN (` + placeholders(len(numbers)) + `)
			AND f.id != ?
		ORDER BY r.id
	`

	args := make([]interface{}, 0, len(numbers)+1)
	for _, n := range numbers {
		args = append(args, n)
	}
	args = append(args, excludeFormID)

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to look up invoice numbers", zap.Error(err))
		return nil, fmt.Errorf("failed to look up invoice numbers: %w", err)
	}
	defer rows.Close()

	var holders []port.InvoiceHolder
	for rows.Next() {
		var (
			h         port.InvoiceHolder
			status    string
			canCreate bool
		)
		if err := rows.Scan(&h.InvoiceNumber, &h.RecordID, &h.FormID, &h.FormNumber, &status, &h.UserID, &canCreate); err != nil {
			return nil, fmt.Errorf("failed to scan invoice holder: %w", err)
		}
		if st, ok := workflow.NormalizeFormStatus(status); ok {
			h.FormStatus = st
		} else {
			h.FormStatus = workflow.State(status)
		}
		if h.FormStatus.IsRejected() && !canCreate {
			continue
		}
		holders = append(holders, h)
	}
	return holders, rows.Err()
}

func (r *RecordRepository) scan(row rowScanner) (*entity.ReimbursementRecord, error) {
	var (
		record     entity.ReimbursementRecord
		formID     sql.NullInt64
		status     string
		approverID sql.NullInt64
		approvedAt sql.NullTime
	)

	err := row.Scan(
		&record.ID,
		&formID,
		&record.UserID,
		&record.Amount,
		&record.Purpose,
		&record.Type,
		&record.Remark,
		&record.InvoiceNumber,
		&record.InvoiceDate,
		&record.BuyerName,
		&record.ServiceName,
		&status,
		&approverID,
		&approvedAt,
		&record.RejectReason,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	normalized, ok := workflow.NormalizeRecordStatus(status)
	if !ok {
		r.logger.Warn("Unknown record status in storage",
			zap.Int64("record_id", record.ID), zap.String("status", status))
		normalized = workflow.RecordStatus(status)
	}
	record.ApprovalStatus = normalized
	record.FormID = int64Ptr(formID)
	record.ApproverID = int64Ptr(approverID)
	record.ApprovedAt = timePtr(approvedAt)

	return &record, nil
}

func (r *RecordRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.RecordRepository = (*RecordRepository)(nil)
