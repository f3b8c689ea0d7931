package taric

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCandidateCodes(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"8471300000", []string{"8471300000", "84713000", "847130", "8471", "84"}},
		{"8471 30 00 00", []string{"8471300000", "84713000", "847130", "8471", "84"}},
		{"8471", []string{"8471", "84"}},
		{"84", []string{"84"}},
		{"8", nil},
	}
	for _, tc := range cases {
		got := candidateCodes(tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestParseExpression(t *testing.T) {
	kind, rate, uom := parseExpression("3.5 %")
	assert.Equal(t, "ad_valorem", kind)
	assert.NotNil(t, rate)
	assert.True(t, rate.Equal(mustDecimal("0.035")))
	assert.Nil(t, uom)

	kind, rate, uom = parseExpression("1.23 EUR / 100 kg")
	assert.Equal(t, "specific", kind)
	assert.Nil(t, rate)
	assert.NotNil(t, uom)
	assert.Equal(t, "EUR", *uom)

	kind, rate, _ = parseExpression("free of duty")
	assert.Equal(t, "unknown", kind)
	assert.Nil(t, rate)
}

func TestSelectEffectiveRate(t *testing.T) {
	duties := []DutyComponent{
		{Kind: "ad_valorem", MeasureTypeCode: "551", Rate: decPtr("0.10")}, // anti-dumping, skipped
		{Kind: "ad_valorem", MeasureTypeCode: "103", Rate: decPtr("0.02")}, // preferential, wins
		{Kind: "ad_valorem", MeasureTypeCode: "103", Rate: decPtr("0.05")},
	}
	rate := selectEffectiveRate(duties)
	assert.NotNil(t, rate)
	assert.True(t, rate.Equal(mustDecimal("0.02")))

	duties = []DutyComponent{
		{Kind: "ad_valorem", MeasureTypeCode: "551", Rate: decPtr("0.10")},
		{Kind: "ad_valorem", MeasureTypeCode: "100", Rate: decPtr("0.035")},
	}
	rate = selectEffectiveRate(duties)
	assert.NotNil(t, rate)
	assert.True(t, rate.Equal(mustDecimal("0.035")))

	duties = []DutyComponent{
		{Kind: "ad_valorem", MeasureTypeCode: "551", Rate: decPtr("0.10")},
	}
	rate = selectEffectiveRate(duties)
	assert.Nil(t, rate)
}
