package providers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TariffRateOverride is a manually curated fallback duty rate used when a
// live tariff API is unavailable, grounded on the original's
// app/models/fallback_tables.py TariffRateOverride.
type TariffRateOverride struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	CountryGroup    string    `gorm:"size:8;not null;index:idx_tariff_override_lookup"` // "UK"
	GoodsCode       string    `gorm:"size:16;not null;index:idx_tariff_override_lookup"`
	OriginCountry   *string   `gorm:"size:8"`
	PreferenceFlag  bool      `gorm:"not null;default:false"`
	Rate            decimal.Decimal `gorm:"type:numeric(12,6);not null"`
	Notes           *string   `gorm:"type:text"`
}

func (TariffRateOverride) TableName() string { return "tariff_rate_override" }

// VatRate is a manually curated fallback standard VAT rate per country,
// grounded on the original's fallback_tables.py VatRate.
type VatRate struct {
	ID       uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Country  string          `gorm:"size:8;not null;index:idx_vat_rate_lookup"`
	RateType string          `gorm:"size:16;not null;index:idx_vat_rate_lookup"` // "standard"
	Rate     decimal.Decimal `gorm:"type:numeric(8,6);not null"`
}

func (VatRate) TableName() string { return "vat_rate" }

// EuTaricRate is a cached/manually curated EU TARIC ad-valorem duty rate,
// grounded on the original's fallback_tables.py EuTaricRate.
type EuTaricRate struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	HsCode         string          `gorm:"size:16;not null;index:idx_eu_taric_rate_lookup"`
	OriginCountry  string          `gorm:"size:8;not null;index:idx_eu_taric_rate_lookup"`
	PreferenceFlag bool            `gorm:"not null;default:false;index:idx_eu_taric_rate_lookup"`
	Rate           decimal.Decimal `gorm:"type:numeric(12,6);not null"`
}

func (EuTaricRate) TableName() string { return "eu_taric_rate" }

// FxRateDaily is the persisted daily FX rate used to avoid re-fetching the
// ECB feed within the same day, grounded on fallback_tables.py FxRateDaily.
type FxRateDaily struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BaseCurrency  string          `gorm:"size:3;not null;uniqueIndex:ux_fx_rate_daily"`
	QuoteCurrency string          `gorm:"size:3;not null;uniqueIndex:ux_fx_rate_daily"`
	RateDate      time.Time       `gorm:"type:date;not null;uniqueIndex:ux_fx_rate_daily"`
	Rate          decimal.Decimal `gorm:"type:numeric(18,8);not null"`
}

func (FxRateDaily) TableName() string { return "fx_rate_daily" }

// OverrideRepository is the read/write gateway onto the four fallback
// tables, grounded on the original's app/repositories/fallback_repo.py.
type OverrideRepository struct {
	db *gorm.DB
}

// NewOverrideRepository wraps an existing *gorm.DB.
func NewOverrideRepository(db *gorm.DB) *OverrideRepository {
	return &OverrideRepository{db: db}
}

// GetTariffOverride mirrors TariffOverrideRepository.get_rate exactly:
// an equality lookup on countryGroup/goodsCode/origin/preferenceFlag (origin
// nil matches rows with a NULL origin_country, same as SQLAlchemy's `== None`).
func (r *OverrideRepository) GetTariffOverride(ctx context.Context, countryGroup, goodsCode string, origin *string, preferenceFlag bool) (*TariffRateOverride, error) {
	q := r.db.WithContext(ctx).
		Where("country_group = ? AND goods_code = ? AND preference_flag = ?", countryGroup, goodsCode, preferenceFlag)
	if origin != nil {
		q = q.Where("origin_country = ?", *origin)
	} else {
		q = q.Where("origin_country IS NULL")
	}
	var row TariffRateOverride
	err := q.Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// GetStandardVatRate mirrors VatRateRepository.get_standard_rate: the
// standard-rate row for country, if one is on file.
func (r *OverrideRepository) GetStandardVatRate(ctx context.Context, country string) (*VatRate, error) {
	var row VatRate
	err := r.db.WithContext(ctx).
		Where("country = ? AND rate_type = ?", country, "standard").
		Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// GetEuTaricRate mirrors EuTaricRepository.get_rate: a cached/curated EU
// TARIC ad-valorem rate for hsCode/origin/preferenceFlag.
func (r *OverrideRepository) GetEuTaricRate(ctx context.Context, hsCode, origin string, preferenceFlag bool) (*EuTaricRate, error) {
	var row EuTaricRate
	err := r.db.WithContext(ctx).
		Where("hs_code = ? AND origin_country = ? AND preference_flag = ?", hsCode, origin, preferenceFlag).
		Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// GetFxRate mirrors FxRateRepository.get_rate: the persisted FX rate for
// base/quote on rateDate, if one was already fetched and stored today.
func (r *OverrideRepository) GetFxRate(ctx context.Context, base, quote string, rateDate time.Time) (*FxRateDaily, error) {
	var row FxRateDaily
	err := r.db.WithContext(ctx).
		Where("base_currency = ? AND quote_currency = ? AND rate_date = ?", base, quote, rateDate).
		Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// UpsertFxRate mirrors FxRateRepository.upsert: persists a freshly fetched
// ECB rate for base/quote/rateDate, replacing any existing row for that key.
func (r *OverrideRepository) UpsertFxRate(ctx context.Context, base, quote string, rate decimal.Decimal, rateDate time.Time) error {
	var existing FxRateDaily
	err := r.db.WithContext(ctx).
		Where("base_currency = ? AND quote_currency = ? AND rate_date = ?", base, quote, rateDate).
		Take(&existing).Error
	if err == nil {
		existing.Rate = rate
		return r.db.WithContext(ctx).Save(&existing).Error
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	return r.db.WithContext(ctx).Create(&FxRateDaily{
		ID:            uuid.New(),
		BaseCurrency:  base,
		QuoteCurrency: quote,
		RateDate:      rateDate,
		Rate:          rate,
	}).Error
}
