package providers

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"veritariff/tariffengine/internal/cache"
	"veritariff/tariffengine/internal/httpfetch"
	"veritariff/tariffengine/internal/logging"
)

// FxProvider resolves same-day FX rates from the ECB reference feed,
// grounded on the original's app/services/providers/fx_ecb.py.
type FxProvider struct {
	fast     *cache.FastCache
	snapshot *cache.SnapshotStore
	fetch    *httpfetch.Fetcher
	override *OverrideRepository
	apiBase  string
	log      *logging.Logger
}

// NewFxProvider wires the cache/DB/remote tiers.
func NewFxProvider(fast *cache.FastCache, snapshot *cache.SnapshotStore, fetch *httpfetch.Fetcher, override *OverrideRepository, apiBase string, log *logging.Logger) *FxProvider {
	if log == nil {
		log = logging.Global()
	}
	return &FxProvider{fast: fast, snapshot: snapshot, fetch: fetch, override: override, apiBase: apiBase, log: log}
}

// GetRate resolves the spot rate to convert one unit of base into quote,
// walking identity → cache → persisted daily rate → remote ECB feed →
// unavailable. shipmentID is optional and, when given, a successful remote
// fetch is also recorded as a per-shipment snapshot.
func (p *FxProvider) GetRate(ctx context.Context, base, quote string, shipmentID *uuid.UUID) (FxRateResult, error) {
	if base == quote {
		today := time.Now().UTC().Format("2006-01-02")
		rate := decimal.NewFromInt(1)
		return FxRateResult{Rate: &rate, Source: "identity", RateDate: &today}, nil
	}

	cacheKey := fmt.Sprintf("fx:%s:%s", base, quote)
	var cached fxRatePayload
	if hit, err := p.fast.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
		return cached.toResult(), nil
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	if row, err := p.override.GetFxRate(ctx, base, quote, today); err == nil && row != nil {
		dateStr := row.RateDate.Format("2006-01-02")
		result := FxRateResult{Rate: &row.Rate, Source: "fx_db", RateDate: &dateStr}
		_ = p.fast.SetJSON(ctx, cacheKey, fxPayloadFrom(result), 86400*time.Second)
		return result, nil
	}

	if !p.fetch.Allow("fx") {
		return FxRateResult{Rate: nil, Source: "unavailable"}, nil
	}

	result, raw, err := p.fetchRemote(ctx, base, quote)
	if err != nil {
		return FxRateResult{Rate: nil, Source: "ecb_error"}, nil
	}

	rateDate := today
	if result.RateDate != nil {
		if parsed, err := time.Parse("2006-01-02", *result.RateDate); err == nil {
			rateDate = parsed
		}
	}
	_ = p.override.UpsertFxRate(ctx, base, quote, *result.Rate, rateDate)
	_ = p.fast.SetJSON(ctx, cacheKey, fxPayloadFrom(result), 86400*time.Second)
	if shipmentID != nil {
		_ = p.snapshot.Create(ctx, &cache.RateSnapshot{
			ShipmentID:      *shipmentID,
			Provider:        "fx",
			RequestKey:      map[string]any{"base": base, "quote": quote},
			ResponsePayload: raw,
			TTLSeconds:      86400,
		})
	}
	return result, nil
}

func (p *FxProvider) fetchRemote(ctx context.Context, base, quote string) (FxRateResult, map[string]any, error) {
	var payload map[string]any
	url := fmt.Sprintf("%s/D.%s.%s.SP00.A", p.apiBase, base, quote)
	params := map[string]string{"format": "jsondata"}
	if err := p.fetch.GetJSON(ctx, "fx", url, nil, params, &payload); err != nil {
		return FxRateResult{}, nil, err
	}
	rate, rateDate, err := extractEcbRate(payload)
	if err != nil {
		return FxRateResult{}, nil, err
	}
	return FxRateResult{Rate: &rate, Source: "ecb", RateDate: &rateDate}, payload, nil
}

// extractEcbRate mirrors _extract_rate: it reads the first series in the
// SDMX-JSON dataSets[0].series block, takes its lexicographically-last
// observation, and resolves that observation's calendar date via the
// matching structure.dimensions.observation[0].values entry.
func extractEcbRate(payload map[string]any) (decimal.Decimal, string, error) {
	dataSets, ok := payload["dataSets"].([]any)
	if !ok || len(dataSets) == 0 {
		return decimal.Zero, "", fmt.Errorf("providers: ecb response missing dataSets")
	}
	dataSet, ok := dataSets[0].(map[string]any)
	if !ok {
		return decimal.Zero, "", fmt.Errorf("providers: ecb response malformed dataSets[0]")
	}
	seriesMap, ok := dataSet["series"].(map[string]any)
	if !ok || len(seriesMap) == 0 {
		return decimal.Zero, "", fmt.Errorf("providers: ecb response missing series")
	}
	var firstKey string
	for k := range seriesMap {
		firstKey = k
		break
	}
	series, ok := seriesMap[firstKey].(map[string]any)
	if !ok {
		return decimal.Zero, "", fmt.Errorf("providers: ecb response malformed series entry")
	}
	observations, ok := series["observations"].(map[string]any)
	if !ok || len(observations) == 0 {
		return decimal.Zero, "", fmt.Errorf("providers: ecb response missing observations")
	}
	keys := make([]string, 0, len(observations))
	for k := range observations {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lastKey := keys[len(keys)-1]

	obsValue, ok := observations[lastKey].([]any)
	if !ok || len(obsValue) == 0 {
		return decimal.Zero, "", fmt.Errorf("providers: ecb response malformed observation %q", lastKey)
	}
	rate, ok := decimalFromAny(obsValue[0])
	if !ok {
		return decimal.Zero, "", fmt.Errorf("providers: ecb observation value not numeric")
	}

	rateDate, err := resolveObservationDate(payload, lastKey)
	if err != nil {
		return decimal.Zero, "", err
	}
	return rate, rateDate, nil
}

func resolveObservationDate(payload map[string]any, observationKey string) (string, error) {
	idx, err := strconv.Atoi(observationKey)
	if err != nil {
		return "", fmt.Errorf("providers: ecb observation key %q not an index: %w", observationKey, err)
	}
	structure, ok := payload["structure"].(map[string]any)
	if !ok {
		return "", fmt.Errorf("providers: ecb response missing structure")
	}
	dimensions, ok := structure["dimensions"].(map[string]any)
	if !ok {
		return "", fmt.Errorf("providers: ecb response missing dimensions")
	}
	observationDims, ok := dimensions["observation"].([]any)
	if !ok || len(observationDims) == 0 {
		return "", fmt.Errorf("providers: ecb response missing observation dimension")
	}
	dim0, ok := observationDims[0].(map[string]any)
	if !ok {
		return "", fmt.Errorf("providers: ecb response malformed observation dimension")
	}
	values, ok := dim0["values"].([]any)
	if !ok || idx < 0 || idx >= len(values) {
		return "", fmt.Errorf("providers: ecb observation index %d out of range", idx)
	}
	entry, ok := values[idx].(map[string]any)
	if !ok {
		return "", fmt.Errorf("providers: ecb response malformed dimension value")
	}
	id, ok := entry["id"].(string)
	if !ok {
		return "", fmt.Errorf("providers: ecb dimension value missing id")
	}
	return id, nil
}

type fxRatePayload struct {
	Rate     *string `json:"rate"`
	Source   string  `json:"source"`
	RateDate *string `json:"rate_date"`
}

func fxPayloadFrom(r FxRateResult) fxRatePayload {
	var rateStr *string
	if r.Rate != nil {
		s := r.Rate.String()
		rateStr = &s
	}
	return fxRatePayload{Rate: rateStr, Source: r.Source, RateDate: r.RateDate}
}

func (p fxRatePayload) toResult() FxRateResult {
	var rate *decimal.Decimal
	if p.Rate != nil {
		if parsed, err := decimal.NewFromString(*p.Rate); err == nil {
			rate = &parsed
		}
	}
	return FxRateResult{Rate: rate, Source: p.Source, RateDate: p.RateDate}
}
