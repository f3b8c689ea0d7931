package taric

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTaricRepo is an in-memory taricRepo double mirroring
// original_source/tests/test_taric_resolver.py's FakeTaricRepo: it holds
// fixed reference rows and a resolved-cache map instead of a database.
type fakeTaricRepo struct {
	snapshotDate time.Time
	goods        []GoodsNomenclature
	measures     []Measure
	geoMembers   []GeoAreaMember
	exprLinks    []MeasureDutyExpression
	exprs        []DutyExpression
	addCodes     []MeasureAdditionalCode
	conditions   []MeasureCondition
	descriptions []GoodsDescription
	regulations  []Regulation

	cache map[string]*ResolvedCache

	goodsCandidatesCalls int
	measuresCalls        int
}

func newFakeTaricRepo() *fakeTaricRepo {
	return &fakeTaricRepo{
		snapshotDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		cache:        make(map[string]*ResolvedCache),
	}
}

func (f *fakeTaricRepo) LatestSnapshotDate(ctx context.Context) (time.Time, bool, error) {
	return f.snapshotDate, true, nil
}

func cacheKey(snapshotDate time.Time, goodsCode, origin string, asOf time.Time, additionalCode *string) string {
	key := snapshotDate.String() + "|" + goodsCode + "|" + origin + "|" + asOf.String() + "|"
	if additionalCode != nil {
		key += *additionalCode
	}
	return key
}

func (f *fakeTaricRepo) GetCached(ctx context.Context, snapshotDate time.Time, goodsCode, origin string, asOf time.Time, additionalCode *string) (*ResolvedCache, error) {
	return f.cache[cacheKey(snapshotDate, goodsCode, origin, asOf, additionalCode)], nil
}

func (f *fakeTaricRepo) UpsertCache(ctx context.Context, entry *ResolvedCache) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	f.cache[cacheKey(entry.SnapshotDate, entry.GoodsCode, entry.OriginCountry, entry.AsOfDate, entry.AdditionalCode)] = entry
	return nil
}

func (f *fakeTaricRepo) GoodsCandidates(ctx context.Context, codes []string, asOf time.Time) ([]GoodsNomenclature, error) {
	f.goodsCandidatesCalls++
	wanted := make(map[string]bool, len(codes))
	for _, c := range codes {
		wanted[c] = true
	}
	var out []GoodsNomenclature
	for _, row := range f.goods {
		if wanted[row.GoodsCode] {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeTaricRepo) Measures(ctx context.Context, goodsCodes []string, asOf time.Time) ([]Measure, error) {
	f.measuresCalls++
	wanted := make(map[string]bool, len(goodsCodes))
	for _, c := range goodsCodes {
		wanted[c] = true
	}
	var out []Measure
	for _, m := range f.measures {
		if wanted[m.GoodsCode] {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeTaricRepo) GeoApplies(ctx context.Context, geoCode, origin string, asOf time.Time) (bool, error) {
	if geoCode == origin || geoCode == "ERGA_OMNES" {
		return true, nil
	}
	for _, m := range f.geoMembers {
		if m.GroupGeoCode == geoCode && m.MemberGeoCode == origin {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTaricRepo) MeasureDutyExpressions(ctx context.Context, measureUIDs []string) ([]MeasureDutyExpression, error) {
	wanted := make(map[string]bool, len(measureUIDs))
	for _, u := range measureUIDs {
		wanted[u] = true
	}
	var out []MeasureDutyExpression
	for _, l := range f.exprLinks {
		if wanted[l.MeasureUID] {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeTaricRepo) DutyExpressions(ctx context.Context, ids []uuid.UUID) ([]DutyExpression, error) {
	wanted := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []DutyExpression
	for _, e := range f.exprs {
		if wanted[e.ID] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeTaricRepo) MeasureAdditionalCodes(ctx context.Context, measureUIDs []string) ([]MeasureAdditionalCode, error) {
	wanted := make(map[string]bool, len(measureUIDs))
	for _, u := range measureUIDs {
		wanted[u] = true
	}
	var out []MeasureAdditionalCode
	for _, a := range f.addCodes {
		if wanted[a.MeasureUID] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeTaricRepo) MeasureConditions(ctx context.Context, measureUIDs []string) ([]MeasureCondition, error) {
	wanted := make(map[string]bool, len(measureUIDs))
	for _, u := range measureUIDs {
		wanted[u] = true
	}
	var out []MeasureCondition
	for _, c := range f.conditions {
		if wanted[c.MeasureUID] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeTaricRepo) GoodsDescription(ctx context.Context, goodsCode, lang string, asOf time.Time) (*GoodsDescription, error) {
	for _, d := range f.descriptions {
		if d.GoodsCode == goodsCode && d.Lang == lang {
			row := d
			return &row, nil
		}
	}
	return nil, nil
}

func (f *fakeTaricRepo) Regulations(ctx context.Context, refs []string) ([]Regulation, error) {
	wanted := make(map[string]bool, len(refs))
	for _, r := range refs {
		wanted[r] = true
	}
	var out []Regulation
	for _, r := range f.regulations {
		if wanted[r.RegulationRef] {
			out = append(out, r)
		}
	}
	return out, nil
}

// TestResolveHierarchyFallback is scenario S4: a 10-digit goods code with no
// direct nomenclature row falls back to its 4-digit ancestor.
func TestResolveHierarchyFallback(t *testing.T) {
	repo := newFakeTaricRepo()
	repo.goods = []GoodsNomenclature{{GoodsCode: "8471"}}
	repo.measures = []Measure{
		{MeasureUID: "M1", GoodsCode: "8471", MeasureTypeCode: "103", GeoCode: "ERGA_OMNES"},
	}
	repo.exprLinks = []MeasureDutyExpression{
		{ID: uuid.New(), MeasureUID: "M1", ExpressionText: strPtr("3.5%")},
	}

	resolver := NewResolver(repo)
	result, err := resolver.Resolve(context.Background(), "8471300099", "CN", time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)
	require.NotNil(t, result.MatchedGoodsCode)
	assert.Equal(t, "8471", *result.MatchedGoodsCode)
	require.NotNil(t, result.EffectiveDutyRate)
	assert.True(t, result.EffectiveDutyRate.Equal(mustDecimal("0.035")))
}

// TestResolveGeoGroupMembership is scenario S5: a measure scoped to a geo
// group applies only to origins that are members of that group at asOf.
func TestResolveGeoGroupMembership(t *testing.T) {
	repo := newFakeTaricRepo()
	repo.goods = []GoodsNomenclature{{GoodsCode: "0101"}}
	repo.measures = []Measure{
		{MeasureUID: "M_OUT", GoodsCode: "0101", MeasureTypeCode: "100", GeoCode: "NON_MEMBER_GROUP"},
		{MeasureUID: "M_IN", GoodsCode: "0101", MeasureTypeCode: "103", GeoCode: "EU_GROUP"},
	}
	repo.geoMembers = []GeoAreaMember{
		{ID: uuid.New(), GroupGeoCode: "EU_GROUP", MemberGeoCode: "FR"},
	}
	repo.exprLinks = []MeasureDutyExpression{
		{ID: uuid.New(), MeasureUID: "M_OUT", ExpressionText: strPtr("10%")},
		{ID: uuid.New(), MeasureUID: "M_IN", ExpressionText: strPtr("2%")},
	}

	resolver := NewResolver(repo)
	result, err := resolver.Resolve(context.Background(), "0101", "FR", time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), nil)
	require.NoError(t, err)
	require.NotNil(t, result.EffectiveDutyRate)
	assert.True(t, result.EffectiveDutyRate.Equal(mustDecimal("0.02")), "expected only the EU_GROUP measure to apply")

	for _, d := range result.Duties {
		assert.NotEqual(t, "M_OUT", d.MeasureUID, "origin is not a member of NON_MEMBER_GROUP")
	}
}

// TestResolveCacheIdempotence is scenario S6: resolving the same
// (goods code, origin, as-of) twice reuses the write-through cache instead
// of recomputing from the reference tables.
func TestResolveCacheIdempotence(t *testing.T) {
	repo := newFakeTaricRepo()
	repo.goods = []GoodsNomenclature{{GoodsCode: "8471"}}
	repo.measures = []Measure{
		{MeasureUID: "M1", GoodsCode: "8471", MeasureTypeCode: "103", GeoCode: "ERGA_OMNES"},
	}
	repo.exprLinks = []MeasureDutyExpression{
		{ID: uuid.New(), MeasureUID: "M1", ExpressionText: strPtr("3.5%")},
	}

	resolver := NewResolver(repo)
	asOf := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	first, err := resolver.Resolve(context.Background(), "8471", "CN", asOf, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.goodsCandidatesCalls)
	assert.Equal(t, 1, repo.measuresCalls)

	second, err := resolver.Resolve(context.Background(), "8471", "CN", asOf, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.goodsCandidatesCalls, "second resolve must be served from the resolved cache")
	assert.Equal(t, 1, repo.measuresCalls, "second resolve must be served from the resolved cache")

	require.NotNil(t, second.EffectiveDutyRate)
	assert.True(t, first.EffectiveDutyRate.Equal(*second.EffectiveDutyRate))
}

func strPtr(s string) *string { return &s }
