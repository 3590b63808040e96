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

// LineageRepository implements port.LineageRepository
type LineageRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLineageRepository creates a new lineage repository
func NewLineageRepository(db *sql.DB, logger *zap.Logger) port.LineageRepository {
	return &LineageRepository{
		db:     db,
		logger: logger,
	}
}

// CreateRelation records a form recreated from a rejected one
func (r *LineageRepository) CreateRelation(ctx context.Context, rel *entity.FormRelation) error {
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now().UTC()
	}
	result, err := r.getExecutor(ctx).ExecContext(ctx, `
		INSERT INTO reimbursement_form_relations (rejected_form_id, new_form_id, relation_type, created_by, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		rel.RejectedFormID, rel.NewFormID, rel.RelationType, rel.CreatedBy, rel.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create form relation", zap.Int64("rejected_form_id", rel.RejectedFormID), zap.Error(err))
		return fmt.Errorf("failed to create form relation: %w", err)
	}
	rel.ID, err = result.LastInsertId()
	return err
}

// CreateSplit records a split of approved records into a child form
func (r *LineageRepository) CreateSplit(ctx context.Context, split *entity.FormSplit) error {
	if split.CreatedAt.IsZero() {
		split.CreatedAt = time.Now().UTC()
	}
	result, err := r.getExecutor(ctx).ExecContext(ctx, `
		INSERT INTO reimbursement_form_splits (source_form_id, new_form_id, level, record_ids, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		split.SourceFormID, split.NewFormID, split.Level, encodeIDs(split.RecordIDs), split.CreatedBy, split.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create form split", zap.Int64("source_form_id", split.SourceFormID), zap.Error(err))
		return fmt.Errorf("failed to create form split: %w", err)
	}
	split.ID, err = result.LastInsertId()
	return err
}

// CreateVoucherReuse records the provenance of a duplicated voucher
func (r *LineageRepository) CreateVoucherReuse(ctx context.Context, reuse *entity.VoucherReuse) error {
	if reuse.CreatedAt.IsZero() {
		reuse.CreatedAt = time.Now().UTC()
	}
	result, err := r.getExecutor(ctx).ExecContext(ctx, `
		INSERT INTO voucher_reuse_records (source_voucher_id, new_voucher_id, source_form_id, new_form_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		reuse.SourceVoucherID, reuse.NewVoucherID, reuse.SourceFormID, reuse.NewFormID, reuse.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create voucher reuse record", zap.Int64("source_voucher_id", reuse.SourceVoucherID), zap.Error(err))
		return fmt.Errorf("failed to create voucher reuse record: %w", err)
	}
	reuse.ID, err = result.LastInsertId()
	return err
}

// Parents returns the forms the given form was split from or recreated from
func (r *LineageRepository) Parents(ctx context.Context, formID int64) ([]entity.Ancestor, error) {
	query := `
		SELECT source_form_id, 'split_' || level FROM reimbursement_form_splits WHERE new_form_id = ?
		UNION ALL
		SELECT rejected_form_id, relation_type FROM reimbursement_form_relations WHERE new_form_id = ?
	`
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, formID, formID)
	if err != nil {
		r.logger.Error("Failed to get form parents", zap.Int64("form_id", formID), zap.Error(err))
		return nil, fmt.Errorf("failed to get form parents: %w", err)
	}
	defer rows.Close()

	var parents []entity.Ancestor
	for rows.Next() {
		var a entity.Ancestor
		if err := rows.Scan(&a.FormID, &a.Level); err != nil {
			return nil, fmt.Errorf("failed to scan form parent: %w", err)
		}
		parents = append(parents, a)
	}
	return parents, rows.Err()
}

// HasSplit reports whether the form took part in a split on either side
func (r *LineageRepository) HasSplit(ctx context.Context, formID int64) (bool, error) {
	var n int
	err := r.getExecutor(ctx).QueryRowContext(ctx, `
		SELECT COUNT(1) FROM reimbursement_form_splits WHERE source_form_id = ? OR new_form_id = ?`,
		formID, formID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check form splits: %w", err)
	}
	return n > 0, nil
}

// DeleteByFormID removes every lineage row mentioning the form
func (r *LineageRepository) DeleteByFormID(ctx context.Context, formID int64) error {
	statements := []string{
		`DELETE FROM reimbursement_form_splits WHERE source_form_id = ? OR new_form_id = ?`,
		`DELETE FROM reimbursement_form_relations WHERE rejected_form_id = ? OR new_form_id = ?`,
		`DELETE FROM voucher_reuse_records WHERE source_form_id = ? OR new_form_id = ?`,
	}
	exec := r.getExecutor(ctx)
	for _, stmt := range statements {
		if _, err := exec.ExecContext(ctx, stmt, formID, formID); err != nil {
			r.logger.Error("Failed to delete lineage", zap.Int64("form_id", formID), zap.Error(err))
			return fmt.Errorf("failed to delete lineage: %w", err)
		}
	}
	return nil
}

func (r *LineageRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.LineageRepository = (*LineageRepository)(nil)
