package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveLoanStatus(t *testing.T) {
	tests := []struct {
		name      string
		amount    float64
		remaining float64
		current   string
		want      string
	}{
		{"fully repaid", 1000, 0, LoanStatusPaid, LoanStatusRepaid},
		{"dust counts as repaid", 1000, 0.01, LoanStatusPartialRepaid, LoanStatusRepaid},
		{"partially repaid", 1000, 700, LoanStatusPaid, LoanStatusPartialRepaid},
		{"untouched disbursed loan", 1000, 1000, LoanStatusPaid, LoanStatusPaid},
		{"untouched pending loan", 1000, 1000, LoanStatusPending, LoanStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveLoanStatus(tt.amount, tt.remaining, tt.current))
		})
	}
}

func TestLoan_IsOutstanding(t *testing.T) {
	assert.True(t, (&Loan{Status: LoanStatusPaid}).IsOutstanding())
	assert.True(t, (&Loan{Status: LoanStatusPartialRepaid}).IsOutstanding())
	assert.False(t, (&Loan{Status: LoanStatusRepaid}).IsOutstanding())
	assert.False(t, (&Loan{Status: LoanStatusPending}).IsOutstanding())
}
