package format

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0"},
		{"12", "12"},
		{"1234", "1.234"},
		{"1234.56", "1.234,56"},
		{"-1234567.5", "-1.234.567,5"},
		{"999.99", "999,99"},
		{"100000", "100.000"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Amount(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestFixed(t *testing.T) {
	assert.Equal(t, "1.234,50", Fixed(decimal.RequireFromString("1234.5"), 2))
	assert.Equal(t, "-0,13", Fixed(decimal.RequireFromString("-0.125"), 2))
}

func TestPad(t *testing.T) {
	assert.Equal(t, "   1,5", Pad("1,5", 6))
	assert.Equal(t, "año", Pad("año", 2))
}
