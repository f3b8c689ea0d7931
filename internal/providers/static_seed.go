package providers

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// StaticSeed is a development/offline fallback data file: manually curated
// duty/VAT/FX rates plus the measure-type code tables the TARIC resolver
// tie-break relies on, grounded on api_gateway/src/config/config.go's
// file-driven Config struct and LoadConfig's os.ReadFile+yaml.Unmarshal
// pattern.
type StaticSeed struct {
	PreferentialMeasureCodes []string                `yaml:"preferential_measure_codes"`
	AntiDumpingMeasureCodes  []string                `yaml:"anti_dumping_measure_codes"`
	TariffOverrides          []TariffOverrideSeed     `yaml:"tariff_overrides"`
	VatRates                 []VatRateSeed            `yaml:"vat_rates"`
	EuTaricRates             []EuTaricRateSeed        `yaml:"eu_taric_rates"`
	FxRates                  []FxRateSeed             `yaml:"fx_rates"`
}

// TariffOverrideSeed is one row of a YAML-seeded TariffRateOverride.
type TariffOverrideSeed struct {
	CountryGroup   string  `yaml:"country_group"`
	GoodsCode      string  `yaml:"goods_code"`
	OriginCountry  *string `yaml:"origin_country"`
	PreferenceFlag bool    `yaml:"preference_flag"`
	Rate           string  `yaml:"rate"`
}

// VatRateSeed is one row of a YAML-seeded VatRate.
type VatRateSeed struct {
	Country  string `yaml:"country"`
	RateType string `yaml:"rate_type"`
	Rate     string `yaml:"rate"`
}

// EuTaricRateSeed is one row of a YAML-seeded EuTaricRate.
type EuTaricRateSeed struct {
	HsCode         string `yaml:"hs_code"`
	OriginCountry  string `yaml:"origin_country"`
	PreferenceFlag bool   `yaml:"preference_flag"`
	Rate           string `yaml:"rate"`
}

// FxRateSeed is one row of a YAML-seeded FxRateDaily.
type FxRateSeed struct {
	Base     string `yaml:"base"`
	Quote    string `yaml:"quote"`
	Rate     string `yaml:"rate"`
	RateDate string `yaml:"rate_date"` // YYYY-MM-DD
}

// LoadStaticSeed reads and parses a static-override YAML file. An empty or
// unreadable path returns an error; callers with no path configured skip
// seeding without calling it.
func LoadStaticSeed(path string) (*StaticSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("static seed: read %s: %w", path, err)
	}
	seed := &StaticSeed{}
	if err := yaml.Unmarshal(data, seed); err != nil {
		return nil, fmt.Errorf("static seed: parse %s: %w", path, err)
	}
	return seed, nil
}

// Apply upserts the seed's override rows into the database, for local
// development and test environments that don't run against a live TARIC
// snapshot or rate-provider API.
func (s *StaticSeed) Apply(ctx context.Context, db *gorm.DB) error {
	for _, row := range s.TariffOverrides {
		rate, err := decimal.NewFromString(row.Rate)
		if err != nil {
			return fmt.Errorf("static seed: tariff override %s/%s: %w", row.CountryGroup, row.GoodsCode, err)
		}
		override := TariffRateOverride{
			ID:             uuid.New(),
			CountryGroup:   row.CountryGroup,
			GoodsCode:      row.GoodsCode,
			OriginCountry:  row.OriginCountry,
			PreferenceFlag: row.PreferenceFlag,
			Rate:           rate,
		}
		if err := db.WithContext(ctx).
			Where("country_group = ? AND goods_code = ? AND preference_flag = ?", row.CountryGroup, row.GoodsCode, row.PreferenceFlag).
			FirstOrCreate(&override).Error; err != nil {
			return err
		}
	}
	for _, row := range s.VatRates {
		rate, err := decimal.NewFromString(row.Rate)
		if err != nil {
			return fmt.Errorf("static seed: vat rate %s: %w", row.Country, err)
		}
		vat := VatRate{ID: uuid.New(), Country: row.Country, RateType: row.RateType, Rate: rate}
		if err := db.WithContext(ctx).
			Where("country = ? AND rate_type = ?", row.Country, row.RateType).
			FirstOrCreate(&vat).Error; err != nil {
			return err
		}
	}
	for _, row := range s.EuTaricRates {
		rate, err := decimal.NewFromString(row.Rate)
		if err != nil {
			return fmt.Errorf("static seed: eu taric rate %s: %w", row.HsCode, err)
		}
		eu := EuTaricRate{ID: uuid.New(), HsCode: row.HsCode, OriginCountry: row.OriginCountry, PreferenceFlag: row.PreferenceFlag, Rate: rate}
		if err := db.WithContext(ctx).
			Where("hs_code = ? AND origin_country = ? AND preference_flag = ?", row.HsCode, row.OriginCountry, row.PreferenceFlag).
			FirstOrCreate(&eu).Error; err != nil {
			return err
		}
	}
	for _, row := range s.FxRates {
		rate, err := decimal.NewFromString(row.Rate)
		if err != nil {
			return fmt.Errorf("static seed: fx rate %s/%s: %w", row.Base, row.Quote, err)
		}
		rateDate, err := time.Parse("2006-01-02", row.RateDate)
		if err != nil {
			return fmt.Errorf("static seed: fx rate date %s: %w", row.RateDate, err)
		}
		fx := FxRateDaily{ID: uuid.New(), BaseCurrency: row.Base, QuoteCurrency: row.Quote, Rate: rate, RateDate: rateDate}
		if err := db.WithContext(ctx).
			Where("base_currency = ? AND quote_currency = ? AND rate_date = ?", row.Base, row.Quote, rateDate).
			FirstOrCreate(&fx).Error; err != nil {
			return err
		}
	}
	return nil
}
