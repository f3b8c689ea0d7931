package calculator

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veritariff/tariffengine/internal/providers"
	"veritariff/tariffengine/internal/store"
	"veritariff/tariffengine/internal/taric"
)

// fakeShipmentStore mirrors original_source/tests/test_calculator.py's
// FakeShipmentRepo: it holds a single shipment in memory and accepts writes
// without touching a database or recording them.
type fakeShipmentStore struct {
	shipment *store.Shipment
}

func (f *fakeShipmentStore) Get(ctx context.Context, shipmentID, userID uuid.UUID) (*store.Shipment, error) {
	return f.shipment, nil
}

func (f *fakeShipmentStore) Update(ctx context.Context, shipment *store.Shipment) error { return nil }

func (f *fakeShipmentStore) UpdateItem(ctx context.Context, item *store.ShipmentItem) error {
	return nil
}

func (f *fakeShipmentStore) UpsertCosts(ctx context.Context, costs *store.ShipmentCosts) error {
	return nil
}

func (f *fakeShipmentStore) UpsertCalculation(ctx context.Context, calc *store.Calculation) error {
	return nil
}

type fakeDutyProvider struct {
	result providers.DutyRateResult
}

func (f fakeDutyProvider) GetDutyRate(ctx context.Context, shipmentID *uuid.UUID, goodsCode, origin string, preferenceFlag bool) (providers.DutyRateResult, error) {
	return f.result, nil
}

type fakeVatProvider struct {
	result providers.VatRateResult
}

func (f fakeVatProvider) GetStandardRate(ctx context.Context, country string, shipmentID *uuid.UUID) (providers.VatRateResult, error) {
	return f.result, nil
}

type fakeFxProvider struct {
	result providers.FxRateResult
}

func (f fakeFxProvider) GetRate(ctx context.Context, base, quote string, shipmentID *uuid.UUID) (providers.FxRateResult, error) {
	return f.result, nil
}

// fakeTaricResolver mirrors test_multi_item_different_rates' resolve_taric
// stub: a fixed duty rate per HS code.
type fakeTaricResolver struct {
	byHSCode map[string]*taric.Result
}

func (f fakeTaricResolver) Resolve(ctx context.Context, goodsCode, originCountryCode string, asOf time.Time, additionalCode *string) (*taric.Result, error) {
	return f.byHSCode[goodsCode], nil
}

func newTestShipment(direction store.Direction, incoterm store.Incoterm, currency string) *store.Shipment {
	return &store.Shipment{
		ID:                   uuid.New(),
		UserID:               uuid.New(),
		Direction:            direction,
		OriginCountryDefault: "CN",
		Incoterm:             incoterm,
		Currency:             currency,
		Status:               store.StatusDraft,
	}
}

// TestExwMissingFreightInsuranceNeedsInput is scenario S1: an EXW shipment
// with no freight or insurance input must stop at needs_input rather than
// guessing either figure.
func TestExwMissingFreightInsuranceNeedsInput(t *testing.T) {
	shipment := newTestShipment(store.DirectionImportUK, store.IncotermEXW, "USD")
	shipment.Costs = &store.ShipmentCosts{ShipmentID: shipment.ID}

	svc := NewService(&fakeShipmentStore{shipment: shipment}, fakeDutyProvider{}, nil, fakeVatProvider{}, fakeFxProvider{}, fakeTaricResolver{}, nil, nil)

	result, err := svc.Calculate(context.Background(), shipment.ID, shipment.UserID)
	require.NoError(t, err)
	assert.Equal(t, "needs_input", result.Status)
	assert.Contains(t, result.RequiredFields, "freight_amount")
	assert.Contains(t, result.RequiredFields, "insurance_amount")
}

// TestCifUkSingleItemArithmetic is scenario S2: a fully-specified CIF UK
// shipment with stubbed duty/VAT/FX rates must match the original's exact
// decimal arithmetic.
func TestCifUkSingleItemArithmetic(t *testing.T) {
	shipment := newTestShipment(store.DirectionImportUK, store.IncotermCIF, "USD")
	shipment.Items = []store.ShipmentItem{
		{ID: uuid.New(), ShipmentID: shipment.ID, HSCode: "0101", OriginCountry: "CN", Quantity: decimal.RequireFromString("10"), UnitPrice: decimal.RequireFromString("100")},
	}
	shipment.Costs = &store.ShipmentCosts{
		ShipmentID:      shipment.ID,
		FreightAmount:   decimalPtr("50"),
		InsuranceAmount: decimalPtr("10"),
		BrokerageAmount: decimalPtr("5"),
	}

	svc := NewService(
		&fakeShipmentStore{shipment: shipment},
		fakeDutyProvider{result: providers.DutyRateResult{Rate: decimalPtr("0.10")}},
		nil,
		fakeVatProvider{result: providers.VatRateResult{Rate: decimalPtr("0.20")}},
		fakeFxProvider{result: providers.FxRateResult{Rate: decimalPtr("0.80")}},
		fakeTaricResolver{},
		nil,
		nil,
	)

	result, err := svc.Calculate(context.Background(), shipment.ID, shipment.UserID)
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, "848.0000", result.Breakdown["customs_value"])
	assert.Equal(t, "84.8000", result.Breakdown["duty_total"])

	vatTotal, err := decimal.NewFromString(result.Breakdown["vat_total"])
	require.NoError(t, err)
	assert.True(t, vatTotal.GreaterThan(decimal.Zero))
}

// TestEuMultiItemDifferentRates is scenario S3: two items with different
// TARIC-resolved duty rates must allocate customs value proportionally and
// apply each item's own rate.
func TestEuMultiItemDifferentRates(t *testing.T) {
	shipment := newTestShipment(store.DirectionImportEU, store.IncotermCIF, "EUR")
	dest := "FR"
	shipment.DestinationCountry = &dest
	shipment.Items = []store.ShipmentItem{
		{ID: uuid.New(), ShipmentID: shipment.ID, HSCode: "0101", OriginCountry: "CN", Quantity: decimal.RequireFromString("5"), UnitPrice: decimal.RequireFromString("100")},
		{ID: uuid.New(), ShipmentID: shipment.ID, HSCode: "0202", OriginCountry: "US", Quantity: decimal.RequireFromString("5"), UnitPrice: decimal.RequireFromString("200")},
	}
	shipment.Costs = &store.ShipmentCosts{
		ShipmentID:      shipment.ID,
		FreightAmount:   decimalPtr("100"),
		InsuranceAmount: decimalPtr("20"),
	}

	resolver := fakeTaricResolver{byHSCode: map[string]*taric.Result{
		"0101": {GoodsCode: "0101", EffectiveDutyRate: decimalPtr("0.05")},
		"0202": {GoodsCode: "0202", EffectiveDutyRate: decimalPtr("0.20")},
	}}

	svc := NewService(
		&fakeShipmentStore{shipment: shipment},
		fakeDutyProvider{},
		nil,
		fakeVatProvider{result: providers.VatRateResult{Rate: decimalPtr("0.20")}},
		fakeFxProvider{result: providers.FxRateResult{Rate: decimalPtr("1")}},
		resolver,
		nil,
		nil,
	)

	result, err := svc.Calculate(context.Background(), shipment.ID, shipment.UserID)
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Status)

	dutyByHSCode := make(map[string]decimal.Decimal, len(result.PerItem))
	for _, item := range result.PerItem {
		dutyByHSCode[item.HSCode] = item.DutyAmount
	}
	assert.True(t, dutyByHSCode["0101"].GreaterThan(decimal.Zero))
	assert.True(t, dutyByHSCode["0202"].GreaterThan(dutyByHSCode["0101"]))
}
