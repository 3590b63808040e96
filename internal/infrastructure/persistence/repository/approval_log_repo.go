package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/expense-reimbursement/internal/application/port"
	"github.com/garyjia/expense-reimbursement/internal/domain/entity"
	"github.com/garyjia/expense-reimbursement/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// ApprovalLogRepository implements port.ApprovalLogRepository
type ApprovalLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApprovalLogRepository creates a new approval log repository
func NewApprovalLogRepository(db *sql.DB, logger *zap.Logger) port.ApprovalLogRepository {
	return &ApprovalLogRepository{
		db:     db,
		logger: logger,
	}
}

// Append writes a new ledger entry
func (r *ApprovalLogRepository) Append(ctx context.Context, log *entity.ApprovalLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO reimbursement_form_approval_logs (
			form_id, action, approved_record_ids, rejected_record_ids,
			approver_id, approver_role, comment, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		log.FormID,
		log.Action,
		encodeIDs(log.ApprovedRecordIDs),
		encodeIDs(log.RejectedRecordIDs),
		log.ApproverID,
		log.ApproverRole,
		log.Comment,
		log.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to append approval log",
			zap.Int64("form_id", log.FormID), zap.String("action", log.Action), zap.Error(err))
		return fmt.Errorf("failed to append approval log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	log.ID = id
	return nil
}

// GetByFormID returns the form's ledger ordered oldest first
func (r *ApprovalLogRepository) GetByFormID(ctx context.Context, formID int64, includeSuperseded bool) ([]*entity.ApprovalLog, error) {
	query := `
		SELECT id, form_id, action, approved_record_ids, rejected_record_ids,
			approver_id, approver_role, comment, superseded_at, created_at
		FROM reimbursement_form_approval_logs
		WHERE form_id = ?`
	if !includeSuperseded {
		query += ` AND superseded_at IS NULL`
	}
	query += ` ORDER BY id`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, formID)
	if err != nil {
		r.logger.Error("Failed to get approval logs", zap.Int64("form_id", formID), zap.Error(err))
		return nil, fmt.Errorf("failed to get approval logs: %w", err)
	}
	defer rows.Close()

	var logs []*entity.ApprovalLog
	for rows.Next() {
		var (
			entry        entity.ApprovalLog
			approved     string
			rejected     string
			supersededAt sql.NullTime
		)
		if err := rows.Scan(
			&entry.ID, &entry.FormID, &entry.Action, &approved, &rejected,
			&entry.ApproverID, &entry.ApproverRole, &entry.Comment, &supersededAt, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan approval log: %w", err)
		}
		entry.ApprovedRecordIDs = decodeIDs(approved)
		entry.RejectedRecordIDs = decodeIDs(rejected)
		entry.SupersededAt = timePtr(supersededAt)
		logs = append(logs, &entry)
	}
	return logs, rows.Err()
}

// Supersede archives the form's active entries
func (r *ApprovalLogRepository) Supersede(ctx context.Context, formID int64, at time.Time) error {
	query := `
		UPDATE reimbursement_form_approval_logs
		SET superseded_at = ?
		WHERE form_id = ? AND superseded_at IS NULL
	`
	if _, err := r.getExecutor(ctx).ExecContext(ctx, query, at, formID); err != nil {
		r.logger.Error("Failed to supersede approval logs", zap.Int64("form_id", formID), zap.Error(err))
		return fmt.Errorf("failed to supersede approval logs: %w", err)
	}
	return nil
}

// HasDecision reports whether the form ever received an approval
func (r *ApprovalLogRepository) HasDecision(ctx context.Context, formID int64) (bool, error) {
	var n int
	err := r.getExecutor(ctx).QueryRowContext(ctx, `
		SELECT COUNT(1) FROM reimbursement_form_approval_logs
		WHERE form_id = ? AND action IN (?, ?)`,
		formID, entity.ApprovalActionApproveAll, entity.ApprovalActionPartialApprove,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check approval decisions: %w", err)
	}
	return n > 0, nil
}

// DeleteByFormID removes the ledger of a deleted form
func (r *ApprovalLogRepository) DeleteByFormID(ctx context.Context, formID int64) error {
	if _, err := r.getExecutor(ctx).ExecContext(ctx,
		`DELETE FROM reimbursement_form_approval_logs WHERE form_id = ?`, formID,
	); err != nil {
		r.logger.Error("Failed to delete approval logs", zap.Int64("form_id", formID), zap.Error(err))
		return fmt.Errorf("failed to delete approval logs: %w", err)
	}
	return nil
}

func (r *ApprovalLogRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.ApprovalLogRepository = (*ApprovalLogRepository)(nil)
