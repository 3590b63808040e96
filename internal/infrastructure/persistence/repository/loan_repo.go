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

// LoanRepository implements port.LoanRepository
type LoanRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewLoanRepository creates a new loan repository
func NewLoanRepository(db *sql.DB, logger *zap.Logger) port.LoanRepository {
	return &LoanRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a loan and sets its ID
func (r *LoanRepository) Create(ctx context.Context, loan *entity.Loan) error {
	now := time.Now().UTC()
	loan.CreatedAt = now
	loan.UpdatedAt = now

	query := `
		INSERT INTO loans (user_id, amount, remaining_amount, status, purpose, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		loan.UserID, loan.Amount, loan.RemainingAmount, loan.Status, loan.Purpose, loan.CreatedAt, loan.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create loan", zap.Int64("user_id", loan.UserID), zap.Error(err))
		return fmt.Errorf("failed to create loan: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	loan.ID = id
	return nil
}

// GetByID retrieves a loan, or nil when it does not exist
func (r *LoanRepository) GetByID(ctx context.Context, id int64) (*entity.Loan, error) {
	query := `
		SELECT id, user_id, amount, remaining_amount, status, purpose, created_at, updated_at
		FROM loans WHERE id = ?
	`
	var loan entity.Loan
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, id).Scan(
		&loan.ID, &loan.UserID, &loan.Amount, &loan.RemainingAmount,
		&loan.Status, &loan.Purpose, &loan.CreatedAt, &loan.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get loan by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return &loan, nil
}

// ListOutstandingByUser returns disbursed loans with a balance left
func (r *LoanRepository) ListOutstandingByUser(ctx context.Context, userID int64) ([]*entity.Loan, error) {
	query := `
		SELECT id, user_id, amount, remaining_amount, status, purpose, created_at, updated_at
		FROM loans
		WHERE user_id = ? AND status IN (?, ?) AND remaining_amount > 0
		ORDER BY created_at, id
	`
	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, userID, entity.LoanStatusPaid, entity.LoanStatusPartialRepaid)
	if err != nil {
		r.logger.Error("Failed to list outstanding loans", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list outstanding loans: %w", err)
	}
	defer rows.Close()

	var loans []*entity.Loan
	for rows.Next() {
		var loan entity.Loan
		if err := rows.Scan(
			&loan.ID, &loan.UserID, &loan.Amount, &loan.RemainingAmount,
			&loan.Status, &loan.Purpose, &loan.CreatedAt, &loan.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, &loan)
	}
	return loans, rows.Err()
}

// DecrementRemaining subtracts amount in a single statement, never below zero
func (r *LoanRepository) DecrementRemaining(ctx context.Context, id int64, amount float64) (float64, float64, error) {
	exec := r.getExecutor(ctx)

	var before float64
	if err := exec.QueryRowContext(ctx, `SELECT remaining_amount FROM loans WHERE id = ?`, id).Scan(&before); err != nil {
		if err == sql.ErrNoRows {
			return 0, 0, fmt.Errorf("loan %d not found", id)
		}
		return 0, 0, fmt.Errorf("failed to read loan balance: %w", err)
	}

	query := `
		UPDATE loans
		SET remaining_amount = MAX(0, ROUND(remaining_amount - ?, 2)), updated_at = ?
		WHERE id = ?
	`
	if _, err := exec.ExecContext(ctx, query, amount, time.Now().UTC(), id); err != nil {
		r.logger.Error("Failed to decrement loan balance", zap.Int64("id", id), zap.Error(err))
		return 0, 0, fmt.Errorf("failed to decrement loan balance: %w", err)
	}

	var after float64
	if err := exec.QueryRowContext(ctx, `SELECT remaining_amount FROM loans WHERE id = ?`, id).Scan(&after); err != nil {
		return 0, 0, fmt.Errorf("failed to read loan balance: %w", err)
	}
	return before, after, nil
}

// UpdateStatus sets the loan status
func (r *LoanRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE loans SET status = ?, updated_at = ? WHERE id = ?`
	if _, err := r.getExecutor(ctx).ExecContext(ctx, query, status, time.Now().UTC(), id); err != nil {
		r.logger.Error("Failed to update loan status", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update loan status: %w", err)
	}
	return nil
}

func (r *LoanRepository) getExecutor(ctx context.Context) sqlite.Executor {
	return sqlite.ExecutorFor(ctx, r.db)
}

// Verify interface compliance
var _ port.LoanRepository = (*LoanRepository)(nil)
