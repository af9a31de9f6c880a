// Package money holds the currency and calendar helpers shared by the
// ledger engines. Amounts are fixed-point decimals; whole rupees are the
// smallest unit the desk collects.
package money

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Round rounds half-up to the nearest whole currency unit.
// Amounts on the ledger are never negative, so decimal's half-away-from-zero
// rounding is half-up here.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}

// Percent returns amount × rate / 100.
func Percent(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(hundred)
}

// ParseDigits reads an integer amount out of a formatted string by keeping
// only its digits, so "₹ 12,500/-" parses as 12500. A string with no digits
// yields zero.
func ParseDigits(s string) decimal.Decimal {
	var b strings.Builder
	for _, r := range s {
		if r <= unicode.MaxASCII && unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

// MonthsBetween returns the calendar month difference from -> to, ignoring
// the day of month. It is negative when to falls in an earlier month.
func MonthsBetween(from, to time.Time) int {
	return (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
}

// Format renders an amount the way vouchers print it, e.g. "₹ 1,12,000".
func Format(d decimal.Decimal) string {
	return "₹ " + groupIndian(Round(d).String())
}

// groupIndian inserts lakh/crore separators: the last three digits form
// one group, every group above it has two digits.
func groupIndian(digits string) string {
	neg := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")
	if len(digits) <= 3 {
		if neg {
			return "-" + digits
		}
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}
	if head != "" {
		groups = append([]string{head}, groups...)
	}
	out := strings.Join(groups, ",") + "," + tail
	if neg {
		out = "-" + out
	}
	return out
}

// InWords spells an amount using the Indian crore/lakh/thousand scale the
// printed vouchers use, e.g. 112000 -> "1 Lakh 12 Thousand Only".
func InWords(d decimal.Decimal) string {
	n := Round(d).IntPart()
	if n == 0 {
		return "Zero"
	}
	if n < 0 {
		return "Minus " + InWords(decimal.NewFromInt(-n))
	}
	var words []string
	scales := []struct {
		unit int64
		name string
	}{
		{10000000, "Crore"},
		{100000, "Lakh"},
		{1000, "Thousand"},
	}
	for _, s := range scales {
		if n >= s.unit {
			words = append(words, fmt.Sprintf("%d %s", n/s.unit, s.name))
			n %= s.unit
		}
	}
	if n > 0 {
		words = append(words, fmt.Sprintf("%d", n))
	}
	return strings.Join(words, " ") + " Only"
}
