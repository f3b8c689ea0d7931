package providers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadStaticSeedParsesRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.yaml")
	contents := `
preferential_measure_codes: ["103", "105"]
anti_dumping_measure_codes: ["551"]
tariff_overrides:
  - country_group: "UK"
    goods_code: "0101210000"
    preference_flag: false
    rate: "0.05"
vat_rates:
  - country: "GB"
    rate_type: "standard"
    rate: "0.20"
fx_rates:
  - base: "EUR"
    quote: "GBP"
    rate: "0.86"
    rate_date: "2026-07-29"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	seed, err := LoadStaticSeed(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"103", "105"}, seed.PreferentialMeasureCodes)
	assert.Equal(t, []string{"551"}, seed.AntiDumpingMeasureCodes)
	require.Len(t, seed.TariffOverrides, 1)
	assert.Equal(t, "0101210000", seed.TariffOverrides[0].GoodsCode)
	require.Len(t, seed.VatRates, 1)
	assert.Equal(t, "0.20", seed.VatRates[0].Rate)
	require.Len(t, seed.FxRates, 1)
	assert.Equal(t, "2026-07-29", seed.FxRates[0].RateDate)
}

func TestLoadStaticSeedMissingFile(t *testing.T) {
	_, err := LoadStaticSeed("/nonexistent/path/seed.yaml")
	assert.Error(t, err)
}
