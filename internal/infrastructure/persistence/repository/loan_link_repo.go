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

// LoanLinkRepository implements port.LoanLinkRepository
type LoanLinkRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLoanLinkRepository creates a new loan link repository
func NewLoanLinkRepository(db *sql.DB, logger *zap.Logger) port.LoanLinkRepository {
	return &LoanLinkRepository{
		db:     db,
		logger: logger,
	}
}

// ReplaceForForm deletes the form's links and inserts the given ones
func (r *LoanLinkRepository) ReplaceForForm(ctx context.Context, formID int64, links []*entity.LoanLink) error {
	exec := r.getExecutor(ctx)

	if _, err := exec.ExecContext(ctx, `DELETE FROM reimbursement_loan_links WHERE form_id = ?`, formID); err != nil {
		r.logger.Error("Failed to clear loan links", zap.Int64("form_id", formID), zap.Error(err))
		return fmt.Errorf("failed to clear loan links: %w", err)
	}

	query := `
		INSERT INTO reimbursement_loan_links (
			form_id, loan_id, offset_amount, original_remaining_amount, created_by, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`
	now := time.Now().UTC()
	for _, link := range links {
		link.FormID = formID
		link.CreatedAt = now
		result, err := exec.ExecContext(ctx, query,
			formID, link.LoanID, link.OffsetAmount, link.OriginalRemainingAmount, link.CreatedBy, link.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to insert loan link",
				zap.Int64("form_id", formID), zap.Int64("loan_id", link.LoanID), zap.Error(err))
			return fmt.Errorf("failed to insert loan link: %w", err)
		}
		if link.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
	}
	return nil
}

// GetByFormID returns the form's current loan links
func (r *LoanLinkRepository) GetByFormID(ctx context.Context, formID int64) ([]*entity.LoanLink, error) {
	query := `
		SELECT id, form_id, loan_id, offset_amount, original_remaining_amount, created_by, created_at
		FROM reimbursement_loan_links
		WHERE form_id = ?
		ORDER BY id
	`
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, formID)
	if err != nil {
		r.logger.Error("Failed to get loan links", zap.Int64("form_id", formID), zap.Error(err))
		return nil, fmt.Errorf("failed to get loan links: %w", err)
	}
	defer rows.Close()

	var links []*entity.LoanLink
	for rows.Next() {
		var link entity.LoanLink
		if err := rows.Scan(
			&link.ID, &link.FormID, &link.LoanID, &link.OffsetAmount,
			&link.OriginalRemainingAmount, &link.CreatedBy, &link.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan loan link: %w", err)
		}
		links = append(links, &link)
	}
	return links, rows.Err()
}

// MoveToForm reassigns all links of one form to another
func (r *LoanLinkRepository) MoveToForm(ctx context.Context, fromFormID, toFormID int64) error {
	query := `UPDATE reimbursement_loan_links SET form_id = ? WHERE form_id = ?`
	if _, err := r.getExecutor(ctx).ExecContext(ctx, query, toFormID, fromFormID); err != nil {
		r.logger.Error("Failed to move loan links", zap.Int64("from", fromFormID), zap.Int64("to", toFormID), zap.Error(err))
		return fmt.Errorf("failed to move loan links: %w", err)
	}
	return nil
}

// DeleteByFormID removes the form's links
func (r *LoanLinkRepository) DeleteByFormID(ctx context.Context, formID int64) error {
	if _, err := r.getExecutor(ctx).ExecContext(ctx, `DELETE FROM reimbursement_loan_links WHERE form_id = ?`, formID); err != nil {
		r.logger.Error("Failed to delete loan links", zap.Int64("form_id", formID), zap.Error(err))
		return fmt.Errorf("failed to delete loan links: %w", err)
	}
	return nil
}

func (r *LoanLinkRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.LoanLinkRepository = (*LoanLinkRepository)(nil)
