package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"veritariff/tariffengine/internal/cache"
	"veritariff/tariffengine/internal/httpfetch"
	"veritariff/tariffengine/internal/logging"
)

// EuTaricProvider resolves a standalone ad-valorem EU TARIC rate for
// non-IMPORT_EU callers (the full measure-by-measure resolution lives in
// internal/taric.Resolver); grounded on the original's
// app/services/providers/eu_taric.py.
type EuTaricProvider struct {
	fast     *cache.FastCache
	fetch    *httpfetch.Fetcher
	override *OverrideRepository
	apiBase  string
	apiKey   string
	log      *logging.Logger
}

// NewEuTaricProvider wires the cache/DB/remote tiers.
func NewEuTaricProvider(fast *cache.FastCache, fetch *httpfetch.Fetcher, override *OverrideRepository, apiBase, apiKey string, log *logging.Logger) *EuTaricProvider {
	if log == nil {
		log = logging.Global()
	}
	return &EuTaricProvider{fast: fast, fetch: fetch, override: override, apiBase: apiBase, apiKey: apiKey, log: log}
}

// GetDutyRate resolves the EU TARIC ad-valorem rate for hsCode/origin,
// walking cache → curated DB rate → remote API → missing.
func (p *EuTaricProvider) GetDutyRate(ctx context.Context, hsCode, origin string, preferenceFlag bool) (DutyRateResult, error) {
	cacheKey := fmt.Sprintf("eu_taric:%s:%s:%t", hsCode, origin, preferenceFlag)

	var cached dutyRatePayload
	if hit, err := p.fast.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
		return cached.toResult(), nil
	}

	row, err := p.override.GetEuTaricRate(ctx, hsCode, origin, preferenceFlag)
	if err != nil {
		return DutyRateResult{}, err
	}
	if row != nil {
		result := DutyRateResult{Rate: &row.Rate, Source: "eu_taric_db", IsEstimated: true, Missing: false}
		_ = p.fast.SetJSON(ctx, cacheKey, dutyPayloadFrom(result), 86400*time.Second)
		return result, nil
	}

	if p.apiBase != "" && p.apiKey != "" && p.fetch.Allow("eu_taric") {
		result, err := p.fetchRemote(ctx, hsCode, origin, preferenceFlag)
		if err == nil {
			_ = p.fast.SetJSON(ctx, cacheKey, dutyPayloadFrom(result), 86400*time.Second)
			return result, nil
		}
	}

	return DutyRateResult{Rate: nil, Source: "missing", IsEstimated: true, Missing: true}, nil
}

func (p *EuTaricProvider) fetchRemote(ctx context.Context, hsCode, origin string, preferenceFlag bool) (DutyRateResult, error) {
	var payload map[string]any
	url := fmt.Sprintf("%s/taric", p.apiBase)
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	params := map[string]string{
		"hs_code":     hsCode,
		"origin":      origin,
		"preference":  strings.ToLower(fmt.Sprintf("%t", preferenceFlag)),
	}
	if err := p.fetch.GetJSON(ctx, "eu_taric", url, headers, params, &payload); err != nil {
		return DutyRateResult{}, err
	}
	rawRate, ok := payload["duty_rate"]
	if !ok {
		return DutyRateResult{}, fmt.Errorf("providers: eu_taric response missing duty_rate field")
	}
	var rate decimal.Decimal
	switch v := rawRate.(type) {
	case string:
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return DutyRateResult{}, err
		}
		rate = parsed
	case float64:
		rate = decimal.NewFromFloat(v)
	default:
		return DutyRateResult{}, fmt.Errorf("providers: eu_taric duty_rate has unexpected type %T", v)
	}
	return DutyRateResult{Rate: &rate, Source: "eu_taric_api", IsEstimated: false, Missing: false}, nil
}
