// Package store holds the shipment domain's persistent models and
// repository, grounded on services/order_service/src/{database,models} and
// the original's app/models/{shipment,shipment_item,shipment_costs,
// calculation}.py / app/models/enums.py.
package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction is the customs direction of a shipment.
type Direction string

const (
	DirectionImportUK Direction = "IMPORT_UK"
	DirectionImportEU Direction = "IMPORT_EU"
	DirectionExportUK Direction = "EXPORT_UK"
	DirectionExportEU Direction = "EXPORT_EU"
)

// IsExport reports whether direction is one of the export directions.
func (d Direction) IsExport() bool {
	return d == DirectionExportUK || d == DirectionExportEU
}

// ShipmentStatus tracks a shipment through the calculation lifecycle.
type ShipmentStatus string

const (
	StatusDraft      ShipmentStatus = "DRAFT"
	StatusNeedsInput ShipmentStatus = "NEEDS_INPUT"
	StatusReady      ShipmentStatus = "READY"
	StatusCalculated ShipmentStatus = "CALCULATED"
)

// Incoterm is the delivery term governing which costs the seller has
// already included in the goods price.
type Incoterm string

const (
	IncotermEXW Incoterm = "EXW"
	IncotermFOB Incoterm = "FOB"
	IncotermCIF Incoterm = "CIF"
	IncotermCFR Incoterm = "CFR"
	IncotermDDP Incoterm = "DDP"
	IncotermFCA Incoterm = "FCA"
	IncotermCPT Incoterm = "CPT"
	IncotermCIP Incoterm = "CIP"
	IncotermDAP Incoterm = "DAP"
)

// ProviderType names one of the four rate-lookup collaborators. RateSnapshot
// rows are keyed by the providers' own lowercase names ("uk_tariff", "vat",
// "fx"), not by these values.
type ProviderType string

const (
	ProviderUKTariff ProviderType = "UK_TARIFF"
	ProviderEUTaric  ProviderType = "EU_TARIC"
	ProviderVAT      ProviderType = "VAT"
	ProviderFX       ProviderType = "FX"
)

// Shipment is one landed-cost calculation request: a set of goods lines plus
// shared costs (freight, insurance, incidentals) under a single incoterm.
type Shipment struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index:idx_shipments_user"`

	Direction              Direction `gorm:"size:16;not null"`
	DestinationCountry     *string   `gorm:"size:2"`
	OriginCountryDefault   string    `gorm:"size:2;not null"`
	Incoterm               Incoterm  `gorm:"size:8;not null"`
	Currency               string    `gorm:"size:3;not null"`
	ImportDate             *time.Time `gorm:"type:date"`
	FxRateToGBP            *string   `gorm:"size:32"`
	FxRateToEUR            *string   `gorm:"size:32"`

	Status ShipmentStatus `gorm:"size:16;not null;default:DRAFT"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	Items []ShipmentItem  `gorm:"foreignKey:ShipmentID"`
	Costs *ShipmentCosts  `gorm:"foreignKey:ShipmentID"`
}

func (Shipment) TableName() string { return "shipments" }

// ShipmentItem is one goods line within a shipment.
type ShipmentItem struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ShipmentID uuid.UUID `gorm:"type:uuid;not null;index:idx_shipment_items_shipment"`

	Description      string  `gorm:"size:255;not null"`
	HSCode           string  `gorm:"size:16;not null"`
	OriginCountry    string  `gorm:"size:2;not null"`
	AdditionalCode   *string `gorm:"size:8"`

	Quantity     decimal.Decimal  `gorm:"type:numeric(18,4);not null"`
	UnitPrice    decimal.Decimal  `gorm:"type:numeric(18,4);not null"`
	GoodsValue   *decimal.Decimal `gorm:"type:numeric(18,4)"`
	WeightNetKg  *decimal.Decimal `gorm:"type:numeric(18,4)"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (ShipmentItem) TableName() string { return "shipment_items" }

// ShipmentCosts holds the shared, non-per-item costs of a shipment:
// freight, insurance, and incidental fees.
type ShipmentCosts struct {
	ShipmentID uuid.UUID `gorm:"type:uuid;primaryKey"`

	FreightAmount         *decimal.Decimal `gorm:"type:numeric(18,4)"`
	InsuranceAmount       *decimal.Decimal `gorm:"type:numeric(18,4)"`
	InsuranceIsEstimated  bool             `gorm:"not null;default:false"`
	BrokerageAmount       *decimal.Decimal `gorm:"type:numeric(18,4)"`
	PortFeesAmount        *decimal.Decimal `gorm:"type:numeric(18,4)"`
	InlandTransportAmount *decimal.Decimal `gorm:"type:numeric(18,4)"`
	OtherIncidentalAmount *decimal.Decimal `gorm:"type:numeric(18,4)"`
	Notes                 *string          `gorm:"size:1024"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (ShipmentCosts) TableName() string { return "shipment_costs" }

// Calculation is the persisted outcome of the most recent successful
// landed-cost calculation for a shipment, grounded on the original's
// app/models/calculation.py.
type Calculation struct {
	ShipmentID uuid.UUID `gorm:"type:uuid;primaryKey"`

	CustomsValue       decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	DutyTotal          decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	VatBase            decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	VatTotal           decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	OtherDutiesTotal   decimal.Decimal `gorm:"type:numeric(18,4);not null;default:0"`
	AuthoritiesTotal   decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	LandedCostTotal    decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	LandedCostPerUnit  decimal.Decimal `gorm:"type:numeric(18,4);not null"`

	Assumptions []string `gorm:"serializer:json;not null"`
	Warnings    []string `gorm:"serializer:json;not null"`

	CalculatedAt  time.Time `gorm:"autoCreateTime"`
	EngineVersion string    `gorm:"size:32;not null"`
}

func (Calculation) TableName() string { return "calculations" }
