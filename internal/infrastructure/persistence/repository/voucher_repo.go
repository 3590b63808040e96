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

// VoucherRepository implements port.VoucherRepository
type VoucherRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewVoucherRepository creates a new voucher repository
func NewVoucherRepository(db *sql.DB, logger *zap.Logger) port.VoucherRepository {
	return &VoucherRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a voucher and sets its ID
func (r *VoucherRepository) Create(ctx context.Context, voucher *entity.Voucher) error {
	if voucher.CreatedAt.IsZero() {
		voucher.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO vouchers (form_id, file_path, file_size, file_type, original_name, uploaded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		voucher.FormID, voucher.FilePath, voucher.FileSize, voucher.FileType,
		voucher.OriginalName, voucher.UploadedBy, voucher.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create voucher", zap.Int64("form_id", voucher.FormID), zap.Error(err))
		return fmt.Errorf("failed to create voucher: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	voucher.ID = id
	return nil
}

// GetByID retrieves a voucher, or nil when it does not exist
func (r *VoucherRepository) GetByID(ctx context.Context, id int64) (*entity.Voucher, error) {
	query := `
		SELECT id, form_id, file_path, file_size, file_type, original_name, uploaded_by, created_at
		FROM vouchers WHERE id = ?
	`
	var v entity.Voucher
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, id).Scan(
		&v.ID, &v.FormID, &v.FilePath, &v.FileSize, &v.FileType, &v.OriginalName, &v.UploadedBy, &v.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get voucher by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get voucher: %w", err)
	}
	return &v, nil
}

// LinkRecord attaches a voucher to a record
func (r *VoucherRepository) LinkRecord(ctx context.Context, recordID, voucherID int64) error {
	query := `
		INSERT OR IGNORE INTO reimbursement_record_vouchers (record_id, voucher_id, created_at)
		VALUES (?, ?, ?)
	`
	if _, err := r.getExecutor(ctx).ExecContext(ctx, query, recordID, voucherID, time.Now().UTC()); err != nil {
		r.logger.Error("Failed to link voucher",
			zap.Int64("record_id", recordID), zap.Int64("voucher_id", voucherID), zap.Error(err))
		return fmt.Errorf("failed to link voucher: %w", err)
	}
	return nil
}

// GetByRecordIDs returns the vouchers linked to any of the records
func (r *VoucherRepository) GetByRecordIDs(ctx context.Context, recordIDs []int64) ([]*entity.Voucher, error) {
	if len(recordIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT v.id, v.form_id, v.file_path, v.file_size, v.file_type, v.original_name,
			v.uploaded_by, v.created_at, rv.record_id
		FROM vouchers v
		JOIN reimbursement_record_vouchers rv ON rv.voucher_id = v.id
		WHERE rv.record_id IN (` + placeholders(len(recordIDs)) + `)
		ORDER BY rv.record_id, v.id
	`
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, int64Args(recordIDs)...)
	if err != nil {
		r.logger.Error("Failed to get vouchers by records", zap.Error(err))
		return nil, fmt.Errorf("failed to get vouchers: %w", err)
	}
	defer rows.Close()

	return scanVouchers(rows, true)
}

// RepointForm moves the vouchers of the given records onto formID
func (r *VoucherRepository) RepointForm(ctx context.Context, recordIDs []int64, formID int64) error {
	if len(recordIDs) == 0 {
		return nil
	}
	query := `
		UPDATE vouchers SET form_id = ?
		WHERE id IN (
			SELECT voucher_id FROM reimbursement_record_vouchers
			WHERE record_id IN (` + placeholders(len(recordIDs)) + `)
		)
	`
	args := append([]interface{}{formID}, int64Args(recordIDs)...)
	if _, err := r.getExecutor(ctx).ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("Failed to repoint vouchers", zap.Int64("form_id", formID), zap.Error(err))
		return fmt.Errorf("failed to repoint vouchers: %w", err)
	}
	return nil
}

// DeleteByRecordID drops the record's links and the vouchers no other record uses
func (r *VoucherRepository) DeleteByRecordID(ctx context.Context, recordID int64) ([]*entity.Voucher, error) {
	exec := r.getExecutor(ctx)

	rows, err := exec.QueryContext(ctx, `
		SELECT v.id, v.form_id, v.file_path, v.file_size, v.file_type, v.original_name, v.uploaded_by, v.created_at
		FROM vouchers v
		JOIN reimbursement_record_vouchers rv ON rv.voucher_id = v.id
		WHERE rv.record_id = ?
			AND NOT EXISTS (
				SELECT 1 FROM reimbursement_record_vouchers o
				WHERE o.voucher_id = v.id AND o.record_id != ?
			)`, recordID, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to find orphaned vouchers: %w", err)
	}
	orphans, err := scanVouchers(rows, false)
	rows.Close()
	if err != nil {
		return nil, err
	}

	if _, err := exec.ExecContext(ctx, `DELETE FROM reimbursement_record_vouchers WHERE record_id = ?`, recordID); err != nil {
		r.logger.Error("Failed to unlink vouchers", zap.Int64("record_id", recordID), zap.Error(err))
		return nil, fmt.Errorf("failed to unlink vouchers: %w", err)
	}
	if err := r.deleteVouchers(ctx, exec, orphans); err != nil {
		return nil, err
	}
	return orphans, nil
}

// DeleteByFormID removes every voucher stored for the form
func (r *VoucherRepository) DeleteByFormID(ctx context.Context, formID int64) ([]*entity.Voucher, error) {
	exec := r.getExecutor(ctx)

	rows, err := exec.QueryContext(ctx, `
		SELECT id, form_id, file_path, file_size, file_type, original_name, uploaded_by, created_at
		FROM vouchers WHERE form_id = ?`, formID)
	if err != nil {
		return nil, fmt.Errorf("failed to list form vouchers: %w", err)
	}
	vouchers, err := scanVouchers(rows, false)
	rows.Close()
	if err != nil {
		return nil, err
	}

	if err := r.deleteVouchers(ctx, exec, vouchers); err != nil {
		return nil, err
	}
	return vouchers, nil
}

func (r *VoucherRepository) deleteVouchers(ctx context.Context, exec sqlite.Executor, vouchers []*entity.Voucher) error {
	if len(vouchers) == 0 {
		return nil
	}
	ids := make([]int64, len(vouchers))
	for i, v := range vouchers {
		ids[i] = v.ID
	}

	if _, err := exec.ExecContext(ctx,
		`DELETE FROM reimbursement_record_vouchers WHERE voucher_id IN (`+placeholders(len(ids))+`)`,
		int64Args(ids)...,
	); err != nil {
		return fmt.Errorf("failed to unlink vouchers: %w", err)
	}
	if _, err := exec.ExecContext(ctx,
		`DELETE FROM vouchers WHERE id IN (`+placeholders(len(ids))+`)`,
		int64Args(ids)...,
	); err != nil {
		r.logger.Error("Failed to delete vouchers", zap.Int64s("ids", ids), zap.Error(err))
		return fmt.Errorf("failed to delete vouchers: %w", err)
	}
	return nil
}

func scanVouchers(rows *sql.Rows, withRecord bool) ([]*entity.Voucher, error) {
	var vouchers []*entity.Voucher
	for rows.Next() {
		var v entity.Voucher
		dest := []interface{}{
			&v.ID, &v.FormID, &v.FilePath, &v.FileSize, &v.FileType, &v.OriginalName, &v.UploadedBy, &v.CreatedAt,
		}
		if withRecord {
			dest = append(dest, &v.RecordID)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan voucher: %w", err)
		}
		vouchers = append(vouchers, &v)
	}
	return vouchers, rows.Err()
}

func (r *VoucherRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.VoucherRepository = (*VoucherRepository)(nil)
