// Package taric implements the TARIC repository (C5) and resolver (C6) of
// SPEC_FULL.md §4, grounded on the original's app/models/taric.py,
// app/repositories/taric_repo.py, and app/services/taric_resolver.py.
package taric

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot records one loaded TARIC data extract. The bulk importer that
// populates this table is out of scope (spec.md §1); only its data shape is
// contractual here.
type Snapshot struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	SnapshotDate time.Time `gorm:"type:date;not null;index:idx_taric_snapshot_date"`
	SourceLabel  string    `gorm:"size:64;not null"`
	ImportedAt   time.Time `gorm:"autoCreateTime"`
	FilesHash    string    `gorm:"size:128;not null;uniqueIndex:ux_taric_snapshot_hash"`
	Notes        string    `gorm:"type:text"`
}

func (Snapshot) TableName() string { return "taric_snapshot" }

// GoodsNomenclature is one node of the HS/CN/TARIC code hierarchy.
type GoodsNomenclature struct {
	GoodsCode       string `gorm:"size:16;primaryKey"`
	ParentGoodsCode *string `gorm:"size:16"`
	Level           *int
	Suffix          *string    `gorm:"size:8"`
	ValidFrom       *time.Time `gorm:"type:date;index:idx_goods_nomenclature_code_valid"`
	ValidTo         *time.Time `gorm:"type:date"`
	SourceRecordID  *string    `gorm:"size:64"`
}

func (GoodsNomenclature) TableName() string { return "goods_nomenclature" }

// GoodsDescription is the human-readable text for a goods code.
type GoodsDescription struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	GoodsCode   string    `gorm:"size:16;not null;index:idx_goods_description_code_valid"`
	Lang        string    `gorm:"size:2;not null;default:EN"`
	Description string    `gorm:"type:text;not null"`
	ValidFrom   *time.Time `gorm:"type:date"`
	ValidTo     *time.Time `gorm:"type:date"`
}

func (GoodsDescription) TableName() string { return "goods_description" }

// GeoArea is a country or a named group of countries (e.g. ERGA_OMNES).
type GeoArea struct {
	GeoCode     string  `gorm:"size:16;primaryKey"`
	Type        *string `gorm:"size:16"`
	Description *string `gorm:"type:text"`
	ValidFrom   *time.Time `gorm:"type:date"`
	ValidTo     *time.Time `gorm:"type:date"`
}

func (GeoArea) TableName() string { return "geo_area" }

// GeoAreaMember maps a country into a geo group for a validity window.
type GeoAreaMember struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	GroupGeoCode  string     `gorm:"size:16;not null;index:idx_geo_area_member_group"`
	MemberGeoCode string     `gorm:"size:16;not null;index:idx_geo_area_member_group"`
	ValidFrom     *time.Time `gorm:"type:date"`
	ValidTo       *time.Time `gorm:"type:date"`
}

func (GeoAreaMember) TableName() string { return "geo_area_member" }

// Measure is a single TARIC measure (duty, prohibition, condition, etc.)
// applicable to a goods code and a geographical scope.
type Measure struct {
	MeasureUID      string         `gorm:"size:64;primaryKey"`
	GoodsCode       string         `gorm:"size:16;not null;index:idx_measure_goods_date"`
	MeasureTypeCode string         `gorm:"size:16;not null"`
	GeoCode         string         `gorm:"size:16;not null;index:idx_measure_geo"`
	RegulationRef   *string        `gorm:"size:64"`
	ValidFrom       *time.Time     `gorm:"type:date"`
	ValidTo         *time.Time     `gorm:"type:date"`
	RawPayload      map[string]any `gorm:"serializer:json"`
	OrphanGoodsCode bool           `gorm:"default:false"`
}

func (Measure) TableName() string { return "measure" }

// DutyExpression is a reusable duty-rate expression text (e.g. "3.5%").
type DutyExpression struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	ExpressionText string    `gorm:"size:255;not null"`
	Currency       *string   `gorm:"size:3"`
	UOM            *string   `gorm:"size:16"`
	ValidFrom      *time.Time `gorm:"type:date"`
	ValidTo        *time.Time `gorm:"type:date"`
}

func (DutyExpression) TableName() string { return "duty_expression" }

// MeasureDutyExpression links a measure to its duty-expression text, either
// inline or via a shared DutyExpression row.
type MeasureDutyExpression struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	MeasureUID     string     `gorm:"size:64;not null;index:idx_measure_duty_measure"`
	ExpressionID   *uuid.UUID `gorm:"type:uuid"`
	ExpressionText *string    `gorm:"size:255"`
	SeqNo          *int
}

func (MeasureDutyExpression) TableName() string { return "measure_duty_expression" }

// AdditionalCode is a TARIC additional-code reference value (e.g. an
// anti-dumping exemption certificate code).
type AdditionalCode struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	CodeType    string     `gorm:"size:8;not null;index:idx_additional_code"`
	Code        string     `gorm:"size:8;not null;index:idx_additional_code"`
	Description *string    `gorm:"type:text"`
	ValidFrom   *time.Time `gorm:"type:date"`
	ValidTo     *time.Time `gorm:"type:date"`
}

func (AdditionalCode) TableName() string { return "additional_code" }

// MeasureAdditionalCode declares that a measure requires one of a set of
// additional codes to apply.
type MeasureAdditionalCode struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	MeasureUID         string    `gorm:"size:64;not null"`
	AdditionalCodeType string    `gorm:"size:8;not null"`
	AdditionalCode     string    `gorm:"size:8;not null"`
}

func (MeasureAdditionalCode) TableName() string { return "measure_additional_code" }

// MeasureCondition is a documentary/certificate condition attached to a measure.
type MeasureCondition struct {
	ID                  uuid.UUID  `gorm:"type:uuid;primaryKey"`
	MeasureUID          string     `gorm:"size:64;not null"`
	ConditionCode       *string    `gorm:"size:8"`
	ActionCode          *string    `gorm:"size:8"`
	CertificateTypeCode *string    `gorm:"size:8"`
	ValidFrom           *time.Time `gorm:"type:date"`
	ValidTo              *time.Time `gorm:"type:date"`
}

func (MeasureCondition) TableName() string { return "measure_condition" }

// Regulation is the legal reference a measure cites.
type Regulation struct {
	RegulationRef string     `gorm:"size:64;primaryKey"`
	PublishedDate *time.Time `gorm:"type:date"`
	ValidFrom     *time.Time `gorm:"type:date"`
	ValidTo       *time.Time `gorm:"type:date"`
	URL           *string    `gorm:"type:text"`
}

func (Regulation) TableName() string { return "regulation" }

// ResolvedCache is the write-through cache of a completed resolution,
// keyed uniquely by (snapshot_date, goods_code, origin_country, as_of_date,
// additional_code) per spec.md §3.
type ResolvedCache struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey"`
	SnapshotDate   time.Time      `gorm:"type:date;not null;uniqueIndex:ux_taric_resolved_cache_key"`
	GoodsCode      string         `gorm:"size:16;not null;uniqueIndex:ux_taric_resolved_cache_key"`
	OriginCountry  string         `gorm:"size:16;not null;uniqueIndex:ux_taric_resolved_cache_key"`
	AsOfDate       time.Time      `gorm:"type:date;not null;uniqueIndex:ux_taric_resolved_cache_key"`
	AdditionalCode *string        `gorm:"size:8;uniqueIndex:ux_taric_resolved_cache_key"`
	Payload        map[string]any `gorm:"serializer:json;not null"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
}

func (ResolvedCache) TableName() string { return "taric_resolved_cache" }
