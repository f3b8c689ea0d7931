// Package calculator implements the landed-cost calculation (C7) of
// SPEC_FULL.md §4, grounded on the original's app/services/calculator.py.
package calculator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"veritariff/tariffengine/internal/logging"
	"veritariff/tariffengine/internal/metrics"
	"veritariff/tariffengine/internal/money"
	"veritariff/tariffengine/internal/providers"
	"veritariff/tariffengine/internal/store"
	"veritariff/tariffengine/internal/taric"
)

// EngineVersion is stamped onto every persisted Calculation row.
const EngineVersion = "1.0.0"

// ErrShipmentNotFound is returned when the requesting user has no shipment
// with the given ID.
var ErrShipmentNotFound = errors.New("calculator: shipment not found")

var insuranceRate = decimal.NewFromFloat(0.005)

// ItemResult is the duty breakdown for a single goods line.
type ItemResult struct {
	ItemID         uuid.UUID
	HSCode         string
	CustomsValue   decimal.Decimal
	DutyRate       *decimal.Decimal
	DutyAmount     decimal.Decimal
	DutyComponents []map[string]any
}

// Result is the outcome of a Calculate call: either a request for more
// shipment input, or a completed landed-cost breakdown.
type Result struct {
	Status         string
	RequiredFields []string
	Message        string
	Breakdown      map[string]string
	PerItem        []ItemResult
	Assumptions    []string
	Warnings       []string
}

// shipmentStore is the subset of *store.ShipmentRepository the calculator
// drives, narrowed so fake-repository tests can substitute an in-memory
// double the way original_source/tests/test_calculator.py's FakeShipmentRepo
// does.
type shipmentStore interface {
	Get(ctx context.Context, shipmentID, userID uuid.UUID) (*store.Shipment, error)
	Update(ctx context.Context, shipment *store.Shipment) error
	UpdateItem(ctx context.Context, item *store.ShipmentItem) error
	UpsertCosts(ctx context.Context, costs *store.ShipmentCosts) error
	UpsertCalculation(ctx context.Context, calc *store.Calculation) error
}

// dutyRateProvider is the subset of *providers.UkTariffProvider Calculate
// needs for non-EU duty lookups.
type dutyRateProvider interface {
	GetDutyRate(ctx context.Context, shipmentID *uuid.UUID, goodsCode, origin string, preferenceFlag bool) (providers.DutyRateResult, error)
}

// vatRateProvider is the subset of *providers.VatRateProvider Calculate needs.
type vatRateProvider interface {
	GetStandardRate(ctx context.Context, country string, shipmentID *uuid.UUID) (providers.VatRateResult, error)
}

// fxRateProvider is the subset of *providers.FxProvider Calculate needs.
type fxRateProvider interface {
	GetRate(ctx context.Context, base, quote string, shipmentID *uuid.UUID) (providers.FxRateResult, error)
}

// dutyResolver is the subset of *taric.Resolver Calculate needs.
type dutyResolver interface {
	Resolve(ctx context.Context, goodsCode, originCountryCode string, asOf time.Time, additionalCode *string) (*taric.Result, error)
}

// Service computes landed cost and customs duty for a shipment, wiring
// together the four rate providers, the TARIC resolver, and the shipment
// store.
type Service struct {
	shipments shipmentStore
	uk        dutyRateProvider
	eu        *providers.EuTaricProvider
	vat       vatRateProvider
	fx        fxRateProvider
	taric     dutyResolver
	log       *logging.Logger
	metrics   *metrics.EngineMetrics
}

// NewService wires a calculator Service from its collaborators. m may be
// nil, in which case metric observations are skipped.
func NewService(shipments shipmentStore, uk dutyRateProvider, eu *providers.EuTaricProvider, vat vatRateProvider, fx fxRateProvider, taricResolver dutyResolver, log *logging.Logger, m *metrics.EngineMetrics) *Service {
	if log == nil {
		log = logging.Global()
	}
	return &Service{shipments: shipments, uk: uk, eu: eu, vat: vat, fx: fx, taric: taricResolver, log: log, metrics: m}
}

// Calculate runs the full landed-cost algorithm for shipmentID, owned by
// userID, mirroring CalculatorService.calculate and, like
// PricingController.recordMetrics, observing outcome metrics on every call
// regardless of status.
func (s *Service) Calculate(ctx context.Context, shipmentID, userID uuid.UUID) (result *Result, err error) {
	start := time.Now()
	defer func() {
		s.recordMetrics(time.Since(start), result, err)
	}()

	shipment, err := s.shipments.Get(ctx, shipmentID, userID)
	if err != nil {
		return nil, err
	}
	if shipment == nil {
		return nil, ErrShipmentNotFound
	}

	costs := shipment.Costs
	if costs == nil {
		costs = &store.ShipmentCosts{ShipmentID: shipment.ID}
		shipment.Costs = costs
	}

	var requiredFields []string
	var assumptions []string
	var warnings []string

	if shipment.Incoterm == store.IncotermEXW || shipment.Incoterm == store.IncotermFOB {
		if costs.FreightAmount == nil {
			requiredFields = append(requiredFields, "freight_amount")
		}
		if costs.InsuranceAmount == nil {
			requiredFields = append(requiredFields, "insurance_amount")
		}
		if len(requiredFields) > 0 {
			shipment.Status = store.StatusNeedsInput
			if err := s.shipments.Update(ctx, shipment); err != nil {
				return nil, err
			}
			return &Result{Status: "needs_input", RequiredFields: requiredFields}, nil
		}
	}

	if shipment.Incoterm == store.IncotermCIF || shipment.Incoterm == store.IncotermDDP || shipment.Incoterm == store.IncotermCFR {
		assumptions = append(assumptions, "Incoterm implies shipping/insurance included unless overridden.")
	}

	if costs.InsuranceAmount == nil {
		totalGoodsLocal, err := s.sumGoodsValue(ctx, shipment)
		if err != nil {
			return nil, err
		}
		estimate := money.Round(totalGoodsLocal.Mul(insuranceRate))
		costs.InsuranceAmount = &estimate
		costs.InsuranceIsEstimated = true
		assumptions = append(assumptions, "Insurance estimated at 0.5% of goods value.")
	}

	fxRate, fxWarning, err := s.ensureFxRate(ctx, shipment)
	if err != nil {
		return nil, err
	}
	if fxWarning != "" {
		warnings = append(warnings, fxWarning)
	}

	totalGoodsLocal, err := s.sumGoodsValue(ctx, shipment)
	if err != nil {
		return nil, err
	}
	totalGoodsValue := totalGoodsLocal.Mul(fxRate)
	freight := decimalOrZero(costs.FreightAmount).Mul(fxRate)
	insurance := decimalOrZero(costs.InsuranceAmount).Mul(fxRate)
	customsValue := totalGoodsValue.Add(freight).Add(insurance)

	var totalDuty decimal.Decimal
	var perItem []ItemResult

	for i := range shipment.Items {
		item := &shipment.Items[i]
		itemGoodsLocal := decimalOrZero(item.GoodsValue)
		if item.GoodsValue == nil {
			itemGoodsLocal = money.Round(item.Quantity.Mul(item.UnitPrice))
		}
		itemGoodsValue := itemGoodsLocal.Mul(fxRate)

		ratio := decimal.Zero
		if totalGoodsValue.GreaterThan(decimal.Zero) {
			ratio = itemGoodsValue.Div(totalGoodsValue)
		}
		itemCustomsValue := itemGoodsValue.Add(freight.Mul(ratio)).Add(insurance.Mul(ratio))

		var dutyRate *decimal.Decimal
		itemDuty := decimal.Zero
		var components []map[string]any

		if shipment.Direction == store.DirectionImportEU {
			asOf := time.Now().UTC()
			if shipment.ImportDate != nil {
				asOf = *shipment.ImportDate
			}
			taricResult, err := s.taric.Resolve(ctx, item.HSCode, item.OriginCountry, asOf, item.AdditionalCode)
			if err != nil {
				return nil, err
			}
			if taricResult.EffectiveDutyRate == nil {
				warnings = append(warnings, fmt.Sprintf("No TARIC duty rate found for HS %s; treated as 0.", item.HSCode))
			} else {
				dutyRate = taricResult.EffectiveDutyRate
				baseAmount := money.Round(itemCustomsValue.Mul(*dutyRate))
				itemDuty = itemDuty.Add(baseAmount)
				components = append(components, map[string]any{
					"type": "ad_valorem", "rate": dutyRate.String(), "amount": baseAmount.String(), "source": "taric_base",
				})
			}
			for _, d := range taricResult.Duties {
				if d.RequiresAdditionalCode {
					warnings = append(warnings, fmt.Sprintf("Additional code required for measure %s on HS %s.", d.MeasureUID, item.HSCode))
				}
				if d.Kind == "ad_valorem" && d.Rate != nil && taric.AntiDumpingCodes[d.MeasureTypeCode] {
					amount := money.Round(itemCustomsValue.Mul(*d.Rate))
					itemDuty = itemDuty.Add(amount)
					components = append(components, map[string]any{
						"type": "anti_dumping", "rate": d.Rate.String(), "amount": amount.String(), "measure_uid": d.MeasureUID,
					})
				}
				if d.Kind == "specific" {
					amount, reason := computeSpecificDuty(d.Expression, item)
					if amount != nil {
						itemDuty = itemDuty.Add(*amount)
						components = append(components, map[string]any{
							"type": "specific", "expression": d.Expression, "amount": amount.String(), "measure_uid": d.MeasureUID,
						})
					} else if reason != nil {
						warnings = append(warnings, *reason)
					}
				}
			}
		} else {
			result, err := s.getDutyRate(ctx, shipment, item)
			if err != nil {
				return nil, err
			}
			if result.Missing || result.Rate == nil {
				warnings = append(warnings, fmt.Sprintf("Missing duty rate for HS %s; treated as 0.", item.HSCode))
				zero := decimal.Zero
				dutyRate = &zero
			} else {
				dutyRate = result.Rate
				if result.IsEstimated {
					warnings = append(warnings, fmt.Sprintf("Duty rate for HS %s is estimated.", item.HSCode))
				}
			}
			itemDuty = money.Round(itemCustomsValue.Mul(*dutyRate))
			components = []map[string]any{{"type": "ad_valorem", "rate": dutyRate.String(), "amount": itemDuty.String()}}
		}

		totalDuty = totalDuty.Add(itemDuty)
		perItem = append(perItem, ItemResult{
			ItemID: item.ID, HSCode: item.HSCode, CustomsValue: itemCustomsValue,
			DutyRate: dutyRate, DutyAmount: itemDuty, DutyComponents: components,
		})
	}

	otherDuties := decimal.Zero
	incidental := decimalOrZero(costs.BrokerageAmount).
		Add(decimalOrZero(costs.PortFeesAmount)).
		Add(decimalOrZero(costs.InlandTransportAmount)).
		Add(decimalOrZero(costs.OtherIncidentalAmount)).
		Mul(fxRate)

	vatRateResult, err := s.getVatRate(ctx, shipment)
	if err != nil {
		return nil, err
	}
	vatRate := decimal.Zero
	if vatRateResult.Rate == nil {
		warnings = append(warnings, "Missing VAT rate; treated as 0.")
	} else {
		vatRate = *vatRateResult.Rate
	}

	vatBase := customsValue.Add(totalDuty).Add(otherDuties).Add(incidental)
	vatTotal := money.Round(vatBase.Mul(vatRate))
	authoritiesTotal := totalDuty.Add(vatTotal).Add(otherDuties)
	landedCostTotal := totalGoodsValue.Add(freight).Add(insurance).Add(incidental).Add(authoritiesTotal)

	totalUnits := decimal.Zero
	for _, item := range shipment.Items {
		totalUnits = totalUnits.Add(item.Quantity)
	}
	if len(shipment.Items) == 0 {
		totalUnits = decimal.NewFromInt(1)
	}
	if totalUnits.LessThanOrEqual(decimal.Zero) {
		totalUnits = decimal.NewFromInt(1)
		warnings = append(warnings, "Total quantity is zero; per-unit cost uses 1 as divisor.")
	}
	landedCostPerUnit := money.Round(landedCostTotal.Div(totalUnits))

	calc := &store.Calculation{
		ShipmentID:        shipment.ID,
		CustomsValue:      money.Round(customsValue),
		DutyTotal:         money.Round(totalDuty),
		VatBase:           money.Round(vatBase),
		VatTotal:          vatTotal,
		OtherDutiesTotal:  money.Round(otherDuties),
		AuthoritiesTotal:  money.Round(authoritiesTotal),
		LandedCostTotal:   money.Round(landedCostTotal),
		LandedCostPerUnit: landedCostPerUnit,
		Assumptions:       assumptions,
		Warnings:          warnings,
		EngineVersion:     EngineVersion,
	}
	if err := s.shipments.UpsertCosts(ctx, costs); err != nil {
		return nil, err
	}
	if err := s.shipments.UpsertCalculation(ctx, calc); err != nil {
		return nil, err
	}
	shipment.Status = store.StatusCalculated
	if err := s.shipments.Update(ctx, shipment); err != nil {
		return nil, err
	}

	s.log.CalculationEventLogger(shipment.ID.String(), string(shipment.Status), len(warnings))

	breakdown := map[string]string{
		"total_goods_value":   totalGoodsValue.StringFixed(money.Scale),
		"freight_amount":      freight.StringFixed(money.Scale),
		"insurance_amount":    insurance.StringFixed(money.Scale),
		"customs_value":       calc.CustomsValue.StringFixed(money.Scale),
		"duty_total":          calc.DutyTotal.StringFixed(money.Scale),
		"incidental_amount":   incidental.StringFixed(money.Scale),
		"vat_base":            calc.VatBase.StringFixed(money.Scale),
		"vat_rate":            vatRate.String(),
		"vat_total":           calc.VatTotal.StringFixed(money.Scale),
		"other_duties_total":  calc.OtherDutiesTotal.StringFixed(money.Scale),
		"authorities_total":   calc.AuthoritiesTotal.StringFixed(money.Scale),
		"landed_cost_total":   calc.LandedCostTotal.StringFixed(money.Scale),
		"landed_cost_per_unit": calc.LandedCostPerUnit.StringFixed(money.Scale),
	}

	return &Result{
		Status:      "ok",
		Breakdown:   breakdown,
		PerItem:     perItem,
		Assumptions: assumptions,
		Warnings:    warnings,
	}, nil
}

// recordMetrics observes the outcome of one Calculate call, mirroring
// PricingController.recordMetrics: a duration histogram on every call, plus
// an error counter for anything that didn't reach a completed calculation.
func (s *Service) recordMetrics(duration time.Duration, result *Result, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.CalculationsTotal.Inc()
	s.metrics.CalculationDuration.Observe(duration.Seconds())
	if err != nil || result == nil || result.Status != "ok" {
		s.metrics.CalculationErrors.Inc()
	}
}

// sumGoodsValue totals each item's goods value in the shipment's own
// currency, computing and persisting quantity*unit_price for any item that
// doesn't have one set yet, mirroring CalculatorService._sum_goods_value.
func (s *Service) sumGoodsValue(ctx context.Context, shipment *store.Shipment) (decimal.Decimal, error) {
	total := decimal.Zero
	for i := range shipment.Items {
		item := &shipment.Items[i]
		if item.GoodsValue == nil {
			computed := money.Round(item.Quantity.Mul(item.UnitPrice))
			item.GoodsValue = &computed
			if err := s.shipments.UpdateItem(ctx, item); err != nil {
				return decimal.Zero, err
			}
		}
		total = total.Add(*item.GoodsValue)
	}
	return total, nil
}

// ensureFxRate resolves the rate to convert shipment.Currency into the
// direction's settlement currency (GBP for IMPORT_UK, EUR otherwise),
// preferring an already-resolved rate stored on the shipment, mirroring
// CalculatorService._ensure_fx_rate.
func (s *Service) ensureFxRate(ctx context.Context, shipment *store.Shipment) (decimal.Decimal, string, error) {
	base := shipment.Currency
	quote := "EUR"
	if shipment.Direction == store.DirectionImportUK {
		quote = "GBP"
	}

	if quote == "GBP" && shipment.FxRateToGBP != nil {
		if rate, err := decimal.NewFromString(*shipment.FxRateToGBP); err == nil {
			return rate, "", nil
		}
	}
	if quote == "EUR" && shipment.FxRateToEUR != nil {
		if rate, err := decimal.NewFromString(*shipment.FxRateToEUR); err == nil {
			return rate, "", nil
		}
	}

	result, err := s.fx.GetRate(ctx, base, quote, &shipment.ID)
	if err != nil {
		return decimal.Zero, "", err
	}
	if result.Rate == nil {
		return decimal.NewFromInt(1), "FX rate unavailable; calculation uses 1.0.", nil
	}

	rateStr := result.Rate.String()
	if quote == "GBP" {
		shipment.FxRateToGBP = &rateStr
	} else {
		shipment.FxRateToEUR = &rateStr
	}
	if err := s.shipments.Update(ctx, shipment); err != nil {
		return decimal.Zero, "", err
	}
	return *result.Rate, "", nil
}

// getDutyRate dispatches to the non-TARIC duty providers for UK imports and
// exports, mirroring CalculatorService._get_duty_rate.
func (s *Service) getDutyRate(ctx context.Context, shipment *store.Shipment, item *store.ShipmentItem) (providers.DutyRateResult, error) {
	switch shipment.Direction {
	case store.DirectionImportUK:
		return s.uk.GetDutyRate(ctx, &shipment.ID, item.HSCode, item.OriginCountry, false)
	default:
		zero := decimal.Zero
		return providers.DutyRateResult{Rate: &zero, Source: "export", IsEstimated: true, Missing: false}, nil
	}
}

// getVatRate dispatches to the standard VAT rate for the shipment's
// direction, mirroring CalculatorService._get_vat_rate.
func (s *Service) getVatRate(ctx context.Context, shipment *store.Shipment) (providers.VatRateResult, error) {
	switch shipment.Direction {
	case store.DirectionImportUK:
		return s.vat.GetStandardRate(ctx, "GB", &shipment.ID)
	case store.DirectionImportEU:
		if shipment.DestinationCountry == nil {
			return providers.VatRateResult{Rate: nil, Source: "missing_country"}, nil
		}
		return s.vat.GetStandardRate(ctx, *shipment.DestinationCountry, &shipment.ID)
	default:
		zero := decimal.Zero
		return providers.VatRateResult{Rate: &zero, Source: "export"}, nil
	}
}

func decimalOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
