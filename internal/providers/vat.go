package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"veritariff/tariffengine/internal/cache"
	"veritariff/tariffengine/internal/httpfetch"
	"veritariff/tariffengine/internal/logging"
)

// VatRateProvider resolves a country's standard VAT rate, grounded on the
// original's app/services/providers/vat.py.
type VatRateProvider struct {
	fast     *cache.FastCache
	snapshot *cache.SnapshotStore
	fetch    *httpfetch.Fetcher
	override *OverrideRepository
	apiBase  string
	apiKey   string
	log      *logging.Logger
}

// NewVatRateProvider wires the cache/DB/remote tiers.
func NewVatRateProvider(fast *cache.FastCache, snapshot *cache.SnapshotStore, fetch *httpfetch.Fetcher, override *OverrideRepository, apiBase, apiKey string, log *logging.Logger) *VatRateProvider {
	if log == nil {
		log = logging.Global()
	}
	return &VatRateProvider{fast: fast, snapshot: snapshot, fetch: fetch, override: override, apiBase: apiBase, apiKey: apiKey, log: log}
}

// GetStandardRate resolves country's standard VAT rate, walking cache → DB
// → remote API → missing. shipmentID is optional and, when given, a
// successful remote fetch is also recorded as a per-shipment snapshot.
func (p *VatRateProvider) GetStandardRate(ctx context.Context, country string, shipmentID *uuid.UUID) (VatRateResult, error) {
	cacheKey := fmt.Sprintf("vat:%s:standard", country)

	var cached vatRatePayload
	if hit, err := p.fast.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
		return cached.toResult(), nil
	}

	row, err := p.override.GetStandardVatRate(ctx, country)
	if err != nil {
		return VatRateResult{}, err
	}
	if row != nil {
		result := VatRateResult{Rate: &row.Rate, Source: "vat_db"}
		_ = p.fast.SetJSON(ctx, cacheKey, vatPayloadFrom(result), 86400*time.Second)
		return result, nil
	}

	if p.apiBase != "" && p.apiKey != "" && p.fetch.Allow("vat") {
		result, raw, err := p.fetchRemote(ctx, country)
		if err == nil {
			_ = p.fast.SetJSON(ctx, cacheKey, vatPayloadFrom(result), 86400*time.Second)
			if shipmentID != nil {
				_ = p.snapshot.Create(ctx, &cache.RateSnapshot{
					ShipmentID:      *shipmentID,
					Provider:        "vat",
					RequestKey:      map[string]any{"country": country},
					ResponsePayload: raw,
					TTLSeconds:      86400,
				})
			}
			return result, nil
		}
	}

	return VatRateResult{Rate: nil, Source: "missing"}, nil
}

func (p *VatRateProvider) fetchRemote(ctx context.Context, country string) (VatRateResult, map[string]any, error) {
	var payload map[string]any
	url := fmt.Sprintf("%s/vat-rate-check", p.apiBase)
	headers := map[string]string{"x-api-key": p.apiKey}
	params := map[string]string{"country_code": country, "rate_type": "GOODS"}
	if err := p.fetch.GetJSON(ctx, "vat", url, headers, params, &payload); err != nil {
		return VatRateResult{}, nil, err
	}
	raw, err := extractStandardRate(payload)
	if err != nil {
		return VatRateResult{}, nil, err
	}
	rate := normalizeVatRate(raw)
	return VatRateResult{Rate: &rate, Source: "vat_api"}, payload, nil
}

// extractStandardRate mirrors _extract_standard_rate: the rate may be
// nested under rates.standard.rate, rates.goods.rate, or a top-level
// standard_rate field, in that priority order.
func extractStandardRate(payload map[string]any) (decimal.Decimal, error) {
	if rates, ok := payload["rates"].(map[string]any); ok {
		if standard, ok := rates["standard"].(map[string]any); ok {
			if rate, ok := decimalFromAny(standard["rate"]); ok {
				return rate, nil
			}
		}
		if goods, ok := rates["goods"].(map[string]any); ok {
			if rate, ok := decimalFromAny(goods["rate"]); ok {
				return rate, nil
			}
		}
	}
	if rate, ok := decimalFromAny(payload["standard_rate"]); ok {
		return rate, nil
	}
	return decimal.Zero, fmt.Errorf("providers: vat response contains no standard rate")
}

// normalizeVatRate mirrors _normalize_rate: a value expressed as a whole
// percentage (e.g. 20) is divided by 100; a value already expressed as a
// fraction (e.g. 0.2) is returned unchanged.
func normalizeVatRate(rate decimal.Decimal) decimal.Decimal {
	if rate.GreaterThan(decimal.NewFromInt(1)) {
		return rate.Div(decimal.NewFromInt(100))
	}
	return rate
}

func decimalFromAny(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case string:
		parsed, err := decimal.NewFromString(t)
		if err != nil {
			return decimal.Zero, false
		}
		return parsed, true
	case float64:
		return decimal.NewFromFloat(t), true
	default:
		return decimal.Zero, false
	}
}

type vatRatePayload struct {
	Rate   *string `json:"rate"`
	Source string  `json:"source"`
}

func vatPayloadFrom(r VatRateResult) vatRatePayload {
	var rateStr *string
	if r.Rate != nil {
		s := r.Rate.String()
		rateStr = &s
	}
	return vatRatePayload{Rate: rateStr, Source: r.Source}
}

func (p vatRatePayload) toResult() VatRateResult {
	var rate *decimal.Decimal
	if p.Rate != nil {
		if parsed, err := decimal.NewFromString(*p.Rate); err == nil {
			rate = &parsed
		}
	}
	return VatRateResult{Rate: rate, Source: p.Source}
}
