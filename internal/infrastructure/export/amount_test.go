package export

import (
	"testing"
)

func TestNumberToChinese(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		want   string
	}{
		{name: "zero amount", amount: 0, want: "零元整"},
		{name: "simple amount with no decimal", amount: 100, want: "壹佰元整"},
		{name: "amount with jiao", amount: 123.50, want: "壹佰贰拾叁元伍角"},
		{name: "amount with fen", amount: 123.56, want: "壹佰贰拾叁元伍角陆分"},
		{name: "fen only after yuan", amount: 100.05, want: "壹佰元零伍分"},
		{name: "cents only", amount: 0.3, want: "叁角"},
		{name: "inner zero", amount: 1005, want: "壹仟零伍元整"},
		{name: "ten thousand", amount: 10000, want: "壹万元整"},
		{name: "zero across groups", amount: 100010, want: "壹拾万零壹拾元整"},
		{name: "float noise", amount: 0.1 + 0.2, want: "叁角"},
		{name: "negative", amount: -5, want: "负伍元整"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := numberToChinese(tt.amount)
			if got != tt.want {
				t.Errorf("numberToChinese(%v) = %v, want %v", tt.amount, got, tt.want)
			}
		})
	}
}
