package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRoundHalfUp(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1.00005", "1.0001"},
		{"1.00004", "1.0000"},
		{"848.00005", "848.0001"},
		{"0", "0"},
	}
	for _, tc := range cases {
		got := Round(decimal.RequireFromString(tc.in))
		assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "Round(%s) = %s, want %s", tc.in, got, tc.want)
	}
}

func TestDecimalScanValueRoundTrip(t *testing.T) {
	var d Decimal
	assert.NoError(t, d.Scan("123.4500"))
	assert.True(t, d.Decimal.Equal(decimal.RequireFromString("123.45")))

	v, err := d.Value()
	assert.NoError(t, err)
	assert.Equal(t, "123.4500", v)
}

func TestDecimalScanNil(t *testing.T) {
	var d Decimal
	assert.NoError(t, d.Scan(nil))
	assert.True(t, d.Decimal.Equal(decimal.Zero))
}
