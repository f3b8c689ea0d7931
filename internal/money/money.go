// Package money centralizes the decimal arithmetic rules used across the
// tariff engine: four decimal places, half-up rounding, never float64.
package money

import (
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places every monetary and rate figure is
// rounded to throughout the engine.
const Scale = 4

// Zero is the canonical zero-value decimal, the analogue of the original
// Python service's Decimal("0").
var Zero = decimal.Zero

// One is the identity FX rate.
var One = decimal.NewFromInt(1)

// Round applies half-up rounding to Scale decimal places, the Go analogue
// of the original's `Decimal.quantize(Decimal("0.0001"), ROUND_HALF_UP)`.
// decimal.Decimal.Round rounds half away from zero, which is equivalent to
// half-up for the non-negative monetary figures this engine handles.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Decimal wraps shopspring/decimal.Decimal with GORM Scan/Value so a
// monetary or rate column can round-trip through Postgres numeric without
// touching float64 on write; Value writes Scale decimal places. The store
// models declare decimal.Decimal fields directly rather than this wrapper.
type Decimal struct {
	decimal.Decimal
}

// NewFromDecimal wraps an existing decimal.Decimal for persistence.
func NewFromDecimal(d decimal.Decimal) Decimal {
	return Decimal{d}
}

// Scan implements sql.Scanner.
func (d *Decimal) Scan(value interface{}) error {
	if value == nil {
		d.Decimal = decimal.Zero
		return nil
	}
	switch v := value.(type) {
	case []byte:
		parsed, err := decimal.NewFromString(string(v))
		if err != nil {
			return fmt.Errorf("money: scan decimal from bytes: %w", err)
		}
		d.Decimal = parsed
		return nil
	case string:
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("money: scan decimal from string: %w", err)
		}
		d.Decimal = parsed
		return nil
	case float64:
		d.Decimal = decimal.NewFromFloat(v)
		return nil
	default:
		return fmt.Errorf("money: unsupported scan type %T", value)
	}
}

// Value implements driver.Valuer.
func (d Decimal) Value() (driver.Value, error) {
	return d.Decimal.StringFixed(Scale), nil
}

// PtrOrNil returns nil if d is nil, otherwise the rounded value.
func PtrOrNil(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	rounded := Round(*d)
	return &rounded
}
