package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/expense-reimbursement/internal/domain/entity"
	"github.com/garyjia/expense-reimbursement/internal/domain/money"
)

// LoanInput seeds a disbursed loan
type LoanInput struct {
	UserID  int64   `json:"user_id"`
	Amount  float64 `json:"amount"`
	Purpose string  `json:"purpose"`
	Status  string  `json:"status,omitempty"`
}

// OffsetOutcome reports one balance change made at settlement
type OffsetOutcome struct {
	LoanID    int64   `json:"loan_id"`
	Requested float64 `json:"requested"`
	Applied   float64 `json:"applied"`
	Before    float64 `json:"before"`
	After     float64 `json:"after"`
	Status    string  `json:"status"`
	Clamped   bool    `json:"clamped"`
}

// LoanService owns loan balances
type LoanService interface {
	Create(ctx context.Context, actor Actor, in LoanInput) (*entity.Loan, error)
	Get(ctx context.Context, loanID int64, actor Actor) (*entity.Loan, error)
	Outstanding(ctx context.Context, actor Actor, userID int64) ([]*entity.Loan, error)

	// ApplyOffset decrements the balance, never below zero, and derives the
	// new status. It runs inside the caller's transaction.
	ApplyOffset(ctx context.Context, loanID int64, amount float64) (*OffsetOutcome, error)
}

type loanServiceImpl struct {
	repos   Repositories
	auditor *Auditor
	logger  Logger
}

// NewLoanService creates a new LoanService
func NewLoanService(repos Repositories, auditor *Auditor, logger Logger) LoanService {
	return &loanServiceImpl{
		repos:   repos,
		auditor: auditor,
		logger:  logger,
	}
}

var seedableLoanStatuses = map[string]bool{
	entity.LoanStatusPending:         true,
	entity.LoanStatusFinanceApproved: true,
	entity.LoanStatusManagerApproved: true,
	entity.LoanStatusPaid:            true,
}

// Create records a loan; without an explicit status it is taken as disbursed
func (s *loanServiceImpl) Create(ctx context.Context, actor Actor, in LoanInput) (*entity.Loan, error) {
	if !actor.HasRole(RoleFinance, RoleAdmin) {
		return nil, newError(CodeForbidden, "only finance or admin can record loans")
	}

	amount := money.Round2(in.Amount)
	if amount <= 0 {
		return nil, newError(CodeInvalidInput, "loan amount must be positive")
	}
	if in.UserID <= 0 {
		return nil, newError(CodeInvalidInput, "loan user_id is required")
	}
	status := strings.TrimSpace(in.Status)
	if status == "" {
		status = entity.LoanStatusPaid
	}
	if !seedableLoanStatuses[status] {
		return nil, newError(CodeInvalidInput, "loan cannot be created with status %q", status)
	}

	now := time.Now().UTC()
	loan := &entity.Loan{
		UserID:          in.UserID,
		Amount:          amount,
		RemainingAmount: amount,
		Status:          status,
		Purpose:         strings.TrimSpace(in.Purpose),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repos.Loans.Create(ctx, loan); err != nil {
		s.logger.Error("Failed to create loan", "error", err, "user_id", in.UserID)
		return nil, err
	}

	s.logger.Info("Loan created", "loan_id", loan.ID, "user_id", loan.UserID, "amount", loan.Amount)
	s.auditor.LogAction(ctx, actor.UserID, ActionLoanCreate,
		fmt.Sprintf("loan %d of %.2f recorded for user %d", loan.ID, loan.Amount, loan.UserID))
	return loan, nil
}

// Get returns a loan visible to the actor
func (s *loanServiceImpl) Get(ctx context.Context, loanID int64, actor Actor) (*entity.Loan, error) {
	loan, err := s.repos.Loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, newError(CodeLoanNotFound, "loan %d not found", loanID)
	}
	if loan.UserID != actor.UserID && !actor.IsReviewer() {
		return nil, newError(CodeForbidden, "loan %d is not visible to user %d", loanID, actor.UserID)
	}
	return loan, nil
}

// Outstanding lists the user's disbursed loans that still carry a balance
func (s *loanServiceImpl) Outstanding(ctx context.Context, actor Actor, userID int64) ([]*entity.Loan, error) {
	if userID == 0 {
		userID = actor.UserID
	}
	if userID != actor.UserID && !actor.IsReviewer() {
		return nil, newError(CodeForbidden, "loans of user %d are not visible to user %d", userID, actor.UserID)
	}
	return s.repos.Loans.ListOutstandingByUser(ctx, userID)
}

// ApplyOffset implements LoanService
func (s *loanServiceImpl) ApplyOffset(ctx context.Context, loanID int64, amount float64) (*OffsetOutcome, error) {
	loan, err := s.repos.Loans.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan == nil {
		return nil, newError(CodeLoanNotFound, "loan %d not found", loanID)
	}

	requested := money.Round2(amount)
	before, after, err := s.repos.Loans.DecrementRemaining(ctx, loanID, requested)
	if err != nil {
		return nil, err
	}

	outcome := &OffsetOutcome{
		LoanID:    loanID,
		Requested: requested,
		Applied:   money.Sub(before, after),
		Before:    before,
		After:     after,
		Clamped:   money.GreaterThan(requested, before),
	}
	if outcome.Clamped {
		s.logger.Warn("Loan offset clamped at zero balance",
			"loan_id", loanID, "requested", requested, "remaining", before)
	}

	outcome.Status = entity.DeriveLoanStatus(loan.Amount, after, loan.Status)
	if outcome.Status != loan.Status {
		if err := s.repos.Loans.UpdateStatus(ctx, loanID, outcome.Status); err != nil {
			return nil, err
		}
	}
	return outcome, nil
}
