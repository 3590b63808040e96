package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/garyjia/expense-reimbursement/internal/application/port"
)

const (
	formNumberPrefix   = "RB"
	maxNumberAttempts  = 10
	formNumberSeqWidth = 4
)

// FormNumberGenerator hands out RB+YYYYMMDD+NNNN numbers
type FormNumberGenerator struct {
	forms port.FormRepository
	now   func() time.Time
}

// NewFormNumberGenerator creates a generator backed by the form table
func NewFormNumberGenerator(forms port.FormRepository) *FormNumberGenerator {
	return &FormNumberGenerator{
		forms: forms,
		now:   time.Now,
	}
}

// Next returns an unused number for today. Callers run it inside the
// transaction that inserts the form.
func (g *FormNumberGenerator) Next(ctx context.Context) (string, error) {
	now := g.now()
	prefix := formNumberPrefix + now.Format("20060102")

	last, err := g.forms.MaxNumberWithPrefix(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("read last form number: %w", err)
	}

	seq := 1
	if last != "" {
		if n, convErr := strconv.Atoi(strings.TrimPrefix(last, prefix)); convErr == nil {
			seq = n + 1
		}
	}

	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		candidate := fmt.Sprintf("%s%0*d", prefix, formNumberSeqWidth, seq+attempt)
		exists, err := g.forms.ExistsByNumber(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check form number: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}

	return fmt.Sprintf("%s-%d", prefix, now.UnixNano()), nil
}
