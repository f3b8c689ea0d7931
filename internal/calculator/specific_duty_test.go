package calculator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"veritariff/tariffengine/internal/store"
)

func decimalPtr(s string) *decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func TestComputeSpecificDutyRequiresWeight(t *testing.T) {
	item := &store.ShipmentItem{}
	amount, reason := computeSpecificDuty("1.23 EUR / 100 kg", item)
	assert.Nil(t, amount)
	assert.NotNil(t, reason)
	assert.Contains(t, *reason, "weight_kg")
}

func TestComputeSpecificDutyNonWeightExpression(t *testing.T) {
	item := &store.ShipmentItem{WeightNetKg: decimalPtr("500")}
	amount, reason := computeSpecificDuty("3.5%", item)
	assert.Nil(t, amount)
	assert.NotNil(t, reason)
	assert.Contains(t, *reason, "quantity/weight")
}

func TestComputeSpecificDutyParsesDecimalAmount(t *testing.T) {
	item := &store.ShipmentItem{WeightNetKg: decimalPtr("500")}
	amount, reason := computeSpecificDuty("1.23 EUR / 100 kg", item)
	assert.Nil(t, reason)
	if assert.NotNil(t, amount) {
		// 1.23 * (500 / 100) = 6.15
		assert.True(t, amount.Equal(decimal.RequireFromString("6.1500")), "got %s", amount.String())
	}
}

func TestComputeSpecificDutyDefaultsUnitToOne(t *testing.T) {
	item := &store.ShipmentItem{WeightNetKg: decimalPtr("10")}
	amount, reason := computeSpecificDuty("2 EUR per kg", item)
	assert.Nil(t, reason)
	if assert.NotNil(t, amount) {
		// no "/ N kg" divisor present, defaults to 1: 2 * (10/1) = 20
		assert.True(t, amount.Equal(decimal.RequireFromString("20.0000")), "got %s", amount.String())
	}
}
