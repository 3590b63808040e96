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

// TempAttachmentRepository implements port.TempAttachmentRepository
type TempAttachmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTempAttachmentRepository creates a new temp attachment repository
func NewTempAttachmentRepository(db *sql.DB, logger *zap.Logger) port.TempAttachmentRepository {
	return &TempAttachmentRepository{
		db:     db,
		logger: logger,
	}
}

// Create stages an uploaded file
func (r *TempAttachmentRepository) Create(ctx context.Context, att *entity.TempAttachment) error {
	if att.CreatedAt.IsZero() {
		att.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO temp_attachments (
			temp_id, user_id, file_path, file_size, file_type, original_name, source_voucher_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		att.TempID, att.UserID, att.FilePath, att.FileSize, att.FileType,
		att.OriginalName, nullInt64(att.SourceVoucherID), att.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create temp attachment", zap.String("temp_id", att.TempID), zap.Error(err))
		return fmt.Errorf("failed to create temp attachment: %w", err)
	}
	return nil
}

// GetByTempID retrieves a staged file, or nil when it does not exist
func (r *TempAttachmentRepository) GetByTempID(ctx context.Context, tempID string) (*entity.TempAttachment, error) {
	query := `
		SELECT temp_id, user_id, file_path, file_size, file_type, original_name, source_voucher_id, created_at
		FROM temp_attachments WHERE temp_id = ?
	`
	att, err := scanTempAttachment(r.getExecutor(ctx).QueryRowContext(ctx, query, tempID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get temp attachment", zap.String("temp_id", tempID), zap.Error(err))
		return nil, fmt.Errorf("failed to get temp attachment: %w", err)
	}
	return att, nil
}

// Delete removes the staging row
func (r *TempAttachmentRepository) Delete(ctx context.Context, tempID string) error {
	if _, err := r.getExecutor(ctx).ExecContext(ctx, `DELETE FROM temp_attachments WHERE temp_id = ?`, tempID); err != nil {
		r.logger.Error("Failed to delete temp attachment", zap.String("temp_id", tempID), zap.Error(err))
		return fmt.Errorf("failed to delete temp attachment: %w", err)
	}
	return nil
}

// ListOlderThan returns staged files created before cutoff
func (r *TempAttachmentRepository) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*entity.TempAttachment, error) {
	query := `
		SELECT temp_id, user_id, file_path, file_size, file_type, original_name, source_voucher_id, created_at
		FROM temp_attachments
		WHERE created_at < ?
		ORDER BY created_at
		LIMIT ?
	`
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, cutoff.UTC(), limit)
	if err != nil {
		r.logger.Error("Failed to list stale temp attachments", zap.Error(err))
		return nil, fmt.Errorf("failed to list temp attachments: %w", err)
	}
	defer rows.Close()

	var atts []*entity.TempAttachment
	for rows.Next() {
		att, err := scanTempAttachment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan temp attachment: %w", err)
		}
		atts = append(atts, att)
	}
	return atts, rows.Err()
}

func scanTempAttachment(row rowScanner) (*entity.TempAttachment, error) {
	var (
		att    entity.TempAttachment
		source sql.NullInt64
	)
	if err := row.Scan(
		&att.TempID, &att.UserID, &att.FilePath, &att.FileSize, &att.FileType,
		&att.OriginalName, &source, &att.CreatedAt,
	); err != nil {
		return nil, err
	}
	att.SourceVoucherID = int64Ptr(source)
	return &att, nil
}

func (r *TempAttachmentRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.TempAttachmentRepository = (*TempAttachmentRepository)(nil)
