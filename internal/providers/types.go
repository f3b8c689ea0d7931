// Package providers implements the four external rate-lookup collaborators
// of SPEC_FULL.md §4 (C4) — UK tariff, EU TARIC, VAT, and FX — each walking
// a cache-first chain of fallback tiers (UK: cache → snapshot → remote →
// override; EU TARIC and VAT: cache → DB → remote → missing; FX: identity →
// cache → DB → remote), grounded on the original's
// app/services/providers/*.py.
package providers

import (
	"github.com/shopspring/decimal"
)

// DutyRateResult is the uniform outcome of a duty-rate lookup.
type DutyRateResult struct {
	Rate        *decimal.Decimal
	Source      string
	IsEstimated bool
	Missing     bool
	RawPayload  map[string]any
}

// FxRateResult is the uniform outcome of an FX-rate lookup.
type FxRateResult struct {
	Rate       *decimal.Decimal
	Source     string
	RateDate   *string
	RawPayload map[string]any
}

// VatRateResult is the uniform outcome of a standard VAT-rate lookup.
type VatRateResult struct {
	Rate       *decimal.Decimal
	Source     string
	RawPayload map[string]any
}
