package taric

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository is the read/write gateway onto the TARIC reference tables,
// grounded on the original's app/repositories/taric_repo.py.
type Repository struct {
	db *gorm.DB
}

// NewRepository wraps an existing *gorm.DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// validOn mirrors TaricRepository._valid_on: a row with a nil bound is open
// on that side, otherwise as_of must fall within [valid_from, valid_to].
func validOn(asOf time.Time, fromCol, toCol string) (string, []interface{}) {
	clause := "(" + fromCol + " IS NULL OR " + fromCol + " <= ?) AND (" + toCol + " IS NULL OR " + toCol + " >= ?)"
	return clause, []interface{}{asOf, asOf}
}

// LatestSnapshotDate returns the most recently loaded TARIC snapshot date,
// or the zero time if none has been loaded.
func (r *Repository) LatestSnapshotDate(ctx context.Context) (time.Time, bool, error) {
	var snap Snapshot
	err := r.db.WithContext(ctx).Order("snapshot_date DESC").Limit(1).Take(&snap).Error
	if err == gorm.ErrRecordNotFound {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return snap.SnapshotDate, true, nil
}

// GoodsCandidates returns the goods_nomenclature rows among codes valid on asOf.
func (r *Repository) GoodsCandidates(ctx context.Context, codes []string, asOf time.Time) ([]GoodsNomenclature, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	clause, args := validOn(asOf, "valid_from", "valid_to")
	var rows []GoodsNomenclature
	err := r.db.WithContext(ctx).
		Where("goods_code IN ?", codes).
		Where(clause, args...).
		Find(&rows).Error
	return rows, err
}

// Measures returns the measure rows for goodsCodes valid on asOf.
func (r *Repository) Measures(ctx context.Context, goodsCodes []string, asOf time.Time) ([]Measure, error) {
	if len(goodsCodes) == 0 {
		return nil, nil
	}
	clause, args := validOn(asOf, "valid_from", "valid_to")
	var rows []Measure
	err := r.db.WithContext(ctx).
		Where("goods_code IN ?", goodsCodes).
		Where(clause, args...).
		Find(&rows).Error
	return rows, err
}

// GeoApplies reports whether a measure's geo scope (geoCode) applies to
// origin on asOf: direct match, the universal ERGA_OMNES group, or
// membership in a geo group valid at asOf.
func (r *Repository) GeoApplies(ctx context.Context, geoCode, origin string, asOf time.Time) (bool, error) {
	if geoCode == origin || geoCode == "ERGA_OMNES" {
		return true, nil
	}
	clause, args := validOn(asOf, "valid_from", "valid_to")
	var member GeoAreaMember
	err := r.db.WithContext(ctx).
		Where("group_geo_code = ? AND member_geo_code = ?", geoCode, origin).
		Where(clause, args...).
		Take(&member).Error
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MeasureDutyExpressions returns the duty-expression links for measureUIDs.
func (r *Repository) MeasureDutyExpressions(ctx context.Context, measureUIDs []string) ([]MeasureDutyExpression, error) {
	if len(measureUIDs) == 0 {
		return nil, nil
	}
	var rows []MeasureDutyExpression
	err := r.db.WithContext(ctx).Where("measure_uid IN ?", measureUIDs).Find(&rows).Error
	return rows, err
}

// DutyExpressions returns the shared duty-expression rows for ids.
func (r *Repository) DutyExpressions(ctx context.Context, ids []uuid.UUID) ([]DutyExpression, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []DutyExpression
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

// MeasureAdditionalCodes returns the additional-code requirements for measureUIDs.
func (r *Repository) MeasureAdditionalCodes(ctx context.Context, measureUIDs []string) ([]MeasureAdditionalCode, error) {
	if len(measureUIDs) == 0 {
		return nil, nil
	}
	var rows []MeasureAdditionalCode
	err := r.db.WithContext(ctx).Where("measure_uid IN ?", measureUIDs).Find(&rows).Error
	return rows, err
}

// MeasureConditions returns the documentary conditions for measureUIDs.
func (r *Repository) MeasureConditions(ctx context.Context, measureUIDs []string) ([]MeasureCondition, error) {
	if len(measureUIDs) == 0 {
		return nil, nil
	}
	var rows []MeasureCondition
	err := r.db.WithContext(ctx).Where("measure_uid IN ?", measureUIDs).Find(&rows).Error
	return rows, err
}

// GoodsDescription returns the description row for goodsCode/lang valid on
// asOf, mirroring TaricRepository.get_goods_description.
func (r *Repository) GoodsDescription(ctx context.Context, goodsCode, lang string, asOf time.Time) (*GoodsDescription, error) {
	clause, args := validOn(asOf, "valid_from", "valid_to")
	var row GoodsDescription
	err := r.db.WithContext(ctx).
		Where("goods_code = ? AND lang = ?", goodsCode, lang).
		Where(clause, args...).
		Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Regulations returns the regulation rows cited by refs, batched in a
// single IN query, mirroring TaricRepository.get_regulations.
func (r *Repository) Regulations(ctx context.Context, refs []string) ([]Regulation, error) {
	if len(refs) == 0 {
		return nil, nil
	}
	var rows []Regulation
	err := r.db.WithContext(ctx).Where("regulation_ref IN ?", refs).Find(&rows).Error
	return rows, err
}

// GetCached returns a previously resolved TARIC lookup, if still keyed
// identically to the request.
func (r *Repository) GetCached(ctx context.Context, snapshotDate time.Time, goodsCode, origin string, asOf time.Time, additionalCode *string) (*ResolvedCache, error) {
	q := r.db.WithContext(ctx).
		Where("snapshot_date = ? AND goods_code = ? AND origin_country = ? AND as_of_date = ?", snapshotDate, goodsCode, origin, asOf)
	if additionalCode != nil {
		q = q.Where("additional_code = ?", *additionalCode)
	} else {
		q = q.Where("additional_code IS NULL")
	}
	var cached ResolvedCache
	err := q.Take(&cached).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cached, nil
}

// UpsertCache writes a freshly computed resolution to the cache table.
func (r *Repository) UpsertCache(ctx context.Context, entry *ResolvedCache) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}
