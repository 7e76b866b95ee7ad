// Package format renders amounts the way Spanish bank statements do:
// dots between thousands and a decimal comma.
package format

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Amount formats d keeping its significant decimals: 1234.5 -> "1.234,5".
func Amount(d decimal.Decimal) string {
	return spanish(d.String())
}

// Fixed formats d rounded to places decimals: 1234.5, 2 -> "1.234,50".
func Fixed(d decimal.Decimal, places int32) string {
	return spanish(d.StringFixed(places))
}

func spanish(s string) string {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte(',')
		b.WriteString(fracPart)
	}
	return b.String()
}

// Pad right-aligns s in a field of width runes.
func Pad(s string, width int) string {
	n := len([]rune(s))
	if n >= width {
		return s
	}
	return strings.Repeat(" ", width-n) + s
}
