package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{1.005, 1.01},
		{2.675, 2.68},
		{-1.005, -1.01},
		{0.1 + 0.2, 0.3},
		{450, 450},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Round2(tt.in), "Round2(%v)", tt.in)
	}
}

func TestSum_NoDrift(t *testing.T) {
	values := make([]float64, 0, 10)
	for i := 0; i < 10; i++ {
		values = append(values, 0.1)
	}
	assert.Equal(t, 1.0, Sum(values...))
	assert.Equal(t, 450.0, Sum(100, 150.5, 199.5))
}

func TestNetPayment(t *testing.T) {
	assert.Equal(t, 700.0, NetPayment(1000, 300))
	assert.Equal(t, 0.0, NetPayment(100, 300))
	assert.Equal(t, 0.01, NetPayment(0.3, 0.29))
}

func TestClampedDecrement(t *testing.T) {
	next, clamped := ClampedDecrement(300, 300)
	assert.Equal(t, 0.0, next)
	assert.False(t, clamped)

	next, clamped = ClampedDecrement(100, 250)
	assert.Equal(t, 0.0, next)
	assert.True(t, clamped)

	next, clamped = ClampedDecrement(200.1, 0.2)
	assert.Equal(t, 199.9, next)
	assert.False(t, clamped)
}

func TestCentsAndFormat(t *testing.T) {
	assert.Equal(t, int64(12356), Cents(123.56))
	assert.Equal(t, "700.00", FormatYuan(700))
	assert.True(t, GreaterThan(500, 200))
	assert.False(t, GreaterThan(200.001, 200))
}
