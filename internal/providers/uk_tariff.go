package providers

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"veritariff/tariffengine/internal/cache"
	"veritariff/tariffengine/internal/httpfetch"
	"veritariff/tariffengine/internal/logging"
)

// ukDutyExpressionPattern extracts an ad-valorem percentage out of a UK
// trade-tariff commodity measure's duty_expression text (e.g. "3.50 %").
var ukDutyExpressionPattern = regexp.MustCompile(`([0-9.]+)\s*%`)

// UkTariffProvider resolves UK (non-EU) import duty rates, grounded on the
// original's app/services/providers/uk_tariff.py.
type UkTariffProvider struct {
	fast     *cache.FastCache
	snapshot *cache.SnapshotStore
	fetch    *httpfetch.Fetcher
	override *OverrideRepository
	apiBase  string
	log      *logging.Logger
}

// NewUkTariffProvider wires the cache/snapshot/fetch/override tiers.
func NewUkTariffProvider(fast *cache.FastCache, snapshot *cache.SnapshotStore, fetch *httpfetch.Fetcher, override *OverrideRepository, apiBase string, log *logging.Logger) *UkTariffProvider {
	if log == nil {
		log = logging.Global()
	}
	return &UkTariffProvider{fast: fast, snapshot: snapshot, fetch: fetch, override: override, apiBase: apiBase, log: log}
}

// GetDutyRate resolves the UK duty rate for goodsCode/origin, walking the
// cache → per-shipment snapshot → remote API → override chain.
func (p *UkTariffProvider) GetDutyRate(ctx context.Context, shipmentID *uuid.UUID, goodsCode, origin string, preferenceFlag bool) (DutyRateResult, error) {
	cacheKey := fmt.Sprintf("uk_tariff:%s", goodsCode)

	var cached dutyRatePayload
	if hit, err := p.fast.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
		return cached.toResult(), nil
	}

	requestKey := map[string]any{"code": goodsCode, "origin": origin, "preference_flag": preferenceFlag}
	if shipmentID != nil {
		if snap, err := p.snapshot.GetValid(ctx, *shipmentID, "uk_tariff", requestKey); err == nil && snap != nil {
			result := parseUkCommodity(snap.ResponsePayload)
			result.Source = "snapshot"
			return result, nil
		}
	}

	if p.fetch.Allow("uk_tariff") {
		result, raw, err := p.fetchRemote(ctx, goodsCode)
		if err == nil {
			_ = p.fast.SetJSON(ctx, cacheKey, dutyPayloadFrom(result), 86400*time.Second)
			if shipmentID != nil {
				_ = p.snapshot.Create(ctx, &cache.RateSnapshot{
					ShipmentID:      *shipmentID,
					Provider:        "uk_tariff",
					RequestKey:      requestKey,
					ResponsePayload: raw,
					TTLSeconds:      86400,
				})
			}
			return result, nil
		}
	}

	return p.fallback(ctx, goodsCode, origin, preferenceFlag)
}

func (p *UkTariffProvider) fetchRemote(ctx context.Context, goodsCode string) (DutyRateResult, map[string]any, error) {
	var payload map[string]any
	url := fmt.Sprintf("%s/commodities/%s", p.apiBase, goodsCode)
	if err := p.fetch.GetJSON(ctx, "uk_tariff", url, nil, nil, &payload); err != nil {
		return DutyRateResult{}, nil, err
	}
	return parseUkCommodity(payload), payload, nil
}

// parseUkCommodity reads the first ad-valorem percentage out of a UK
// trade-tariff commodity response's included measures.
func parseUkCommodity(payload map[string]any) DutyRateResult {
	included, _ := payload["included"].([]any)
	for _, item := range included {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if entry["type"] != "measure" {
			continue
		}
		attrs, ok := entry["attributes"].(map[string]any)
		if !ok {
			continue
		}
		expr, ok := attrs["duty_expression"].(string)
		if !ok {
			continue
		}
		match := ukDutyExpressionPattern.FindStringSubmatch(expr)
		if match == nil {
			continue
		}
		pct, err := decimal.NewFromString(match[1])
		if err != nil {
			continue
		}
		rate := pct.Div(decimal.NewFromInt(100))
		return DutyRateResult{Rate: &rate, Source: "uk_tariff_api", IsEstimated: false, Missing: false}
	}
	return DutyRateResult{Rate: nil, Source: "uk_tariff_api", IsEstimated: false, Missing: true}
}

func (p *UkTariffProvider) fallback(ctx context.Context, goodsCode, origin string, preferenceFlag bool) (DutyRateResult, error) {
	override, err := p.override.GetTariffOverride(ctx, "UK", goodsCode, &origin, preferenceFlag)
	if err != nil {
		return DutyRateResult{}, err
	}
	if override == nil {
		return DutyRateResult{Rate: nil, Source: "override_missing", IsEstimated: false, Missing: true}, nil
	}
	rate := override.Rate
	return DutyRateResult{Rate: &rate, Source: "override", IsEstimated: true, Missing: false}, nil
}

// dutyRatePayload is the JSON-stable shape a DutyRateResult is cached/
// snapshotted as.
type dutyRatePayload struct {
	Rate        *string `json:"rate"`
	Source      string  `json:"source"`
	IsEstimated bool    `json:"is_estimated"`
	Missing     bool    `json:"missing"`
}

func dutyPayloadFrom(r DutyRateResult) dutyRatePayload {
	var rateStr *string
	if r.Rate != nil {
		s := r.Rate.String()
		rateStr = &s
	}
	return dutyRatePayload{Rate: rateStr, Source: r.Source, IsEstimated: r.IsEstimated, Missing: r.Missing}
}

func (p dutyRatePayload) toResult() DutyRateResult {
	var rate *decimal.Decimal
	if p.Rate != nil {
		if parsed, err := decimal.NewFromString(*p.Rate); err == nil {
			rate = &parsed
		}
	}
	return DutyRateResult{Rate: rate, Source: p.Source, IsEstimated: p.IsEstimated, Missing: p.Missing}
}

func decodeDutyPayload(raw map[string]any) DutyRateResult {
	result := DutyRateResult{Source: "snapshot", Missing: true}
	if raw == nil {
		return result
	}
	if rateStr, ok := raw["rate"].(string); ok && rateStr != "" {
		if parsed, err := decimal.NewFromString(rateStr); err == nil {
			result.Rate = &parsed
			result.Missing = false
		}
	}
	if source, ok := raw["source"].(string); ok {
		result.Source = source
	}
	if estimated, ok := raw["is_estimated"].(bool); ok {
		result.IsEstimated = estimated
	}
	if missing, ok := raw["missing"].(bool); ok {
		result.Missing = missing
	}
	return result
}
