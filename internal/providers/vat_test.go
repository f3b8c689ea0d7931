package providers

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeVatRate(t *testing.T) {
	assert.True(t, normalizeVatRate(decimal.RequireFromString("20")).Equal(decimal.RequireFromString("0.2")))
	assert.True(t, normalizeVatRate(decimal.RequireFromString("0.2")).Equal(decimal.RequireFromString("0.2")))
	assert.True(t, normalizeVatRate(decimal.RequireFromString("1")).Equal(decimal.RequireFromString("1")))
}

func TestExtractStandardRatePrefersStandardOverGoods(t *testing.T) {
	payload := map[string]any{
		"rates": map[string]any{
			"standard": map[string]any{"rate": "20"},
			"goods":    map[string]any{"rate": "5"},
		},
	}
	rate, err := extractStandardRate(payload)
	assert.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("20")))
}

func TestExtractStandardRateFallsBackToGoods(t *testing.T) {
	payload := map[string]any{
		"rates": map[string]any{
			"goods": map[string]any{"rate": "5"},
		},
	}
	rate, err := extractStandardRate(payload)
	assert.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("5")))
}

func TestExtractStandardRateFallsBackToTopLevel(t *testing.T) {
	payload := map[string]any{"standard_rate": "19"}
	rate, err := extractStandardRate(payload)
	assert.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("19")))
}

func TestExtractStandardRateErrorsWhenMissing(t *testing.T) {
	_, err := extractStandardRate(map[string]any{})
	assert.Error(t, err)
}
