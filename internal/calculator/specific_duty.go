package calculator

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"veritariff/tariffengine/internal/money"
	"veritariff/tariffengine/internal/store"
)

// amountPattern and unitPattern parse a specific-duty expression such as
// "1.23 EUR / 100 kg" into an amount and a per-kg divisor. The original
// Python source (app/services/calculator.py _extract_amount/_extract_unit)
// double-escaped its backslashes in a raw string literal, so it actually
// matched a literal backslash rather than "optional decimal point" — see
// DESIGN.md Open Question 1. These patterns use the intended, correctly
// escaped form and do not reproduce that bug.
var (
	amountPattern = regexp.MustCompile(`[0-9]+(?:\.[0-9]+)?`)
	unitPattern   = regexp.MustCompile(`/\s*([0-9]+(?:\.[0-9]+)?)\s*kg`)
)

// computeSpecificDuty evaluates a per-kg specific-duty expression against
// item's net weight, mirroring CalculatorService._compute_specific_duty.
// It returns either a computed amount or a human-readable reason the amount
// could not be computed — never both.
func computeSpecificDuty(expression string, item *store.ShipmentItem) (*decimal.Decimal, *string) {
	lowered := strings.ToLower(expression)
	if !strings.Contains(lowered, "kg") {
		reason := "Specific duty requires quantity/weight to compute."
		return nil, &reason
	}
	if item.WeightNetKg == nil {
		reason := "Specific duty requires weight_kg to compute."
		return nil, &reason
	}

	amountMatch := amountPattern.FindString(lowered)
	if amountMatch == "" {
		reason := "Specific duty expression could not be parsed."
		return nil, &reason
	}
	amount, err := decimal.NewFromString(amountMatch)
	if err != nil {
		reason := "Specific duty expression could not be parsed."
		return nil, &reason
	}

	unit := decimal.NewFromInt(1)
	if m := unitPattern.FindStringSubmatch(lowered); m != nil {
		if parsed, err := decimal.NewFromString(m[1]); err == nil {
			unit = parsed
		}
	}

	result := money.Round(amount.Mul(item.WeightNetKg.Div(unit)))
	return &result, nil
}
