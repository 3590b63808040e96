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

// OperationLogRepository implements port.OperationLogRepository
type OperationLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewOperationLogRepository creates a new operation log repository
func NewOperationLogRepository(db *sql.DB, logger *zap.Logger) port.OperationLogRepository {
	return &OperationLogRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends an audit entry
func (r *OperationLogRepository) Create(ctx context.Context, log *entity.OperationLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	result, err := r.getExecutor(ctx).ExecContext(ctx,
		`INSERT INTO operation_logs (user_id, action, detail, created_at) VALUES (?, ?, ?, ?)`,
		log.UserID, log.Action, log.Detail, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create operation log: %w", err)
	}
	log.ID, err = result.LastInsertId()
	return err
}

// ListByUser returns the user's most recent entries
func (r *OperationLogRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*entity.OperationLog, error) {
	rows, err := r.getExecutor(ctx).QueryContext(ctx, `
		SELECT id, user_id, action, detail, created_at
		FROM operation_logs WHERE user_id = ?
		ORDER BY id DESC LIMIT ?`, userID, limit)
	if err != nil {
		r.logger.Error("Failed to list operation logs", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list operation logs: %w", err)
	}
	defer rows.Close()

	var logs []*entity.OperationLog
	for rows.Next() {
		var l entity.OperationLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.Action, &l.Detail, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan operation log: %w", err)
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}

func (r *OperationLogRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.OperationLogRepository = (*OperationLogRepository)(nil)
