package export

import (
	"strings"

	"github.com/shopspring/decimal"
)

var (
	cnDigits   = []string{"零", "壹", "贰", "叁", "肆", "伍", "陆", "柒", "捌", "玖"}
	cnUnits    = []string{"", "拾", "佰", "仟"}
	cnBigUnits = []string{"", "万", "亿", "万亿"}
)

// numberToChinese renders an amount in Chinese financial capitals, e.g. 壹佰贰拾叁元伍角陆分
func numberToChinese(amount float64) string {
	d := decimal.NewFromFloat(amount).Round(2)
	prefix := ""
	if d.IsNegative() {
		prefix = "负"
		d = d.Neg()
	}

	fen := d.Mul(decimal.NewFromInt(100)).IntPart()
	if fen == 0 {
		return "零元整"
	}

	yuan, jiao, cents := fen/100, (fen/10)%10, fen%10

	var b strings.Builder
	b.WriteString(prefix)
	if yuan > 0 {
		b.WriteString(convertInteger(yuan))
		b.WriteString("元")
	}

	if jiao == 0 && cents == 0 {
		b.WriteString("整")
		return b.String()
	}
	if jiao != 0 {
		b.WriteString(cnDigits[jiao] + "角")
	} else if yuan > 0 {
		b.WriteString(cnDigits[0])
	}
	if cents != 0 {
		b.WriteString(cnDigits[cents] + "分")
	}
	return b.String()
}

// convertInteger converts the integer part, four digits per big unit
func convertInteger(num int64) string {
	var groups []int64
	for num > 0 {
		groups = append(groups, num%10000)
		num /= 10000
	}

	result := ""
	needZero := false
	for i := len(groups) - 1; i >= 0; i-- {
		g := groups[i]
		if g == 0 {
			if result != "" {
				needZero = true
			}
			continue
		}
		if result != "" && (needZero || g < 1000) {
			result += cnDigits[0]
		}
		result += convertGroup(g) + cnBigUnits[i]
		needZero = false
	}
	return result
}

func convertGroup(g int64) string {
	result := ""
	zero := false
	for pos := 3; pos >= 0; pos-- {
		d := g
		for i := 0; i < pos; i++ {
			d /= 10
		}
		d %= 10
		if d == 0 {
			if result != "" {
				zero = true
			}
			continue
		}
		if zero {
			result += cnDigits[0]
			zero = false
		}
		result += cnDigits[d] + cnUnits[pos]
	}
	return result
}
