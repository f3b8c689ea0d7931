package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGetRateIdentityShortCircuit covers invariant 4: base==quote must
// always yield rate==1 without touching any collaborator.
func TestGetRateIdentityShortCircuit(t *testing.T) {
	p := &FxProvider{}
	result, err := p.GetRate(context.Background(), "GBP", "GBP", nil)
	require.NoError(t, err)
	require.NotNil(t, result.Rate)
	assert.True(t, result.Rate.Equal(mustDecimal("1")))
	assert.Equal(t, "identity", result.Source)
}

func TestExtractEcbRate(t *testing.T) {
	payload := map[string]any{
		"dataSets": []any{
			map[string]any{
				"series": map[string]any{
					"0:0:0:0:0": map[string]any{
						"observations": map[string]any{
							"0": []any{"0.92"},
							"1": []any{"0.93"},
						},
					},
				},
			},
		},
		"structure": map[string]any{
			"dimensions": map[string]any{
				"observation": []any{
					map[string]any{
						"values": []any{
							map[string]any{"id": "2026-07-27"},
							map[string]any{"id": "2026-07-28"},
						},
					},
				},
			},
		},
	}

	rate, rateDate, err := extractEcbRate(payload)
	assert.NoError(t, err)
	assert.Equal(t, "2026-07-28", rateDate)
	assert.True(t, rate.Equal(mustDecimal("0.93")), "got %s", rate.String())
}

func TestExtractEcbRateMissingDataSets(t *testing.T) {
	_, _, err := extractEcbRate(map[string]any{})
	assert.Error(t, err)
}
