package taric

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PreferentialCodes are the measure-type codes for preferential-origin duty
// rates (e.g. FTA-derived rates), which take priority over the third-country
// base rate per spec.md §4.6 step 9.
var PreferentialCodes = map[string]bool{
	"103": true, "105": true, "106": true,
	"142": true, "143": true, "144": true, "145": true,
}

// AntiDumpingCodes are the measure-type codes for anti-dumping/countervailing
// duties, which stack on top of the effective ad-valorem rate rather than
// competing with it.
var AntiDumpingCodes = map[string]bool{
	"551": true, "552": true, "553": true, "554": true,
}

// DutyComponent is one measure's contribution to the duty picture for a
// goods code: a single ad-valorem or specific-duty line, possibly gated on
// an additional code.
type DutyComponent struct {
	MeasureUID             string
	MeasureTypeCode        string
	Expression             string
	Kind                   string // "ad_valorem" | "specific" | "unknown"
	Rate                   *decimal.Decimal
	UOM                    *string
	RequiresAdditionalCode bool
}

// Requirement is one documentary/certificate condition attached to an
// applicable measure.
type Requirement struct {
	MeasureUID          string
	ConditionCode       *string
	ActionCode          *string
	CertificateTypeCode *string
}

// Result is the outcome of resolving a goods code + origin + as-of date
// against the loaded TARIC snapshot.
type Result struct {
	GoodsCode               string
	MatchedGoodsCode        *string
	MatchedGoodsDescription *string
	Duties                  []DutyComponent
	Requirements            []Requirement
	LegalRefs               []string
	Regulations             []Regulation
	EffectiveDutyRate       *decimal.Decimal
	Notes                   []string
}

// taricRepo is the subset of *Repository Resolve/enrich drive, narrowed so
// fake-repository tests can substitute an in-memory double the way
// original_source/tests/test_taric_resolver.py's FakeTaricRepo does.
type taricRepo interface {
	LatestSnapshotDate(ctx context.Context) (time.Time, bool, error)
	GetCached(ctx context.Context, snapshotDate time.Time, goodsCode, origin string, asOf time.Time, additionalCode *string) (*ResolvedCache, error)
	GoodsCandidates(ctx context.Context, codes []string, asOf time.Time) ([]GoodsNomenclature, error)
	Measures(ctx context.Context, goodsCodes []string, asOf time.Time) ([]Measure, error)
	GeoApplies(ctx context.Context, geoCode, origin string, asOf time.Time) (bool, error)
	MeasureDutyExpressions(ctx context.Context, measureUIDs []string) ([]MeasureDutyExpression, error)
	DutyExpressions(ctx context.Context, ids []uuid.UUID) ([]DutyExpression, error)
	MeasureAdditionalCodes(ctx context.Context, measureUIDs []string) ([]MeasureAdditionalCode, error)
	MeasureConditions(ctx context.Context, measureUIDs []string) ([]MeasureCondition, error)
	GoodsDescription(ctx context.Context, goodsCode, lang string, asOf time.Time) (*GoodsDescription, error)
	Regulations(ctx context.Context, refs []string) ([]Regulation, error)
	UpsertCache(ctx context.Context, entry *ResolvedCache) error
}

// Resolver implements the TARIC resolution algorithm of spec.md §4.6.
type Resolver struct {
	repo taricRepo
}

// NewResolver wraps a Repository.
func NewResolver(repo taricRepo) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve runs the full candidate-code fallback, validity filtering,
// geo-applicability, and effective-rate selection algorithm, write-through
// caching the result keyed by (snapshotDate, goodsCode, originCountryCode,
// asOf, additionalCode).
func (r *Resolver) Resolve(ctx context.Context, goodsCode, originCountryCode string, asOf time.Time, additionalCode *string) (*Result, error) {
	snapshotDate, ok, err := r.repo.LatestSnapshotDate(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Result{
			GoodsCode: goodsCode,
			Notes:     []string{"No TARIC snapshot loaded."},
		}, nil
	}

	cached, err := r.repo.GetCached(ctx, snapshotDate, goodsCode, originCountryCode, asOf, additionalCode)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		result, err := decodeCachedPayload(cached.Payload)
		if err != nil {
			return nil, err
		}
		if err := r.enrich(ctx, result, asOf); err != nil {
			return nil, err
		}
		return result, nil
	}

	codes := candidateCodes(goodsCode)
	goodsRows, err := r.repo.GoodsCandidates(ctx, codes, asOf)
	if err != nil {
		return nil, err
	}
	matchedSet := make(map[string]bool, len(goodsRows))
	for _, row := range goodsRows {
		matchedSet[row.GoodsCode] = true
	}
	var matchedCode *string
	for _, code := range codes {
		if matchedSet[code] {
			c := code
			matchedCode = &c
			break
		}
	}

	lookupCodes := make([]string, 0, len(matchedSet))
	for code := range matchedSet {
		lookupCodes = append(lookupCodes, code)
	}
	if len(lookupCodes) == 0 {
		lookupCodes = codes
	}

	measures, err := r.repo.Measures(ctx, lookupCodes, asOf)
	if err != nil {
		return nil, err
	}

	applicable := make([]Measure, 0, len(measures))
	for _, m := range measures {
		applies, err := r.repo.GeoApplies(ctx, m.GeoCode, originCountryCode, asOf)
		if err != nil {
			return nil, err
		}
		if applies {
			applicable = append(applicable, m)
		}
	}

	measureUIDs := make([]string, 0, len(applicable))
	for _, m := range applicable {
		measureUIDs = append(measureUIDs, m.MeasureUID)
	}

	dutyExprLinks, err := r.repo.MeasureDutyExpressions(ctx, measureUIDs)
	if err != nil {
		return nil, err
	}
	exprIDs := make([]uuid.UUID, 0, len(dutyExprLinks))
	for _, d := range dutyExprLinks {
		if d.ExpressionID != nil {
			exprIDs = append(exprIDs, *d.ExpressionID)
		}
	}
	exprRows, err := r.repo.DutyExpressions(ctx, exprIDs)
	if err != nil {
		return nil, err
	}
	exprByID := make(map[uuid.UUID]DutyExpression, len(exprRows))
	for _, row := range exprRows {
		exprByID[row.ID] = row
	}
	expressionsByMeasure := make(map[string][]string)
	for _, link := range dutyExprLinks {
		text := ""
		if link.ExpressionText != nil {
			text = *link.ExpressionText
		}
		if text == "" && link.ExpressionID != nil {
			if row, ok := exprByID[*link.ExpressionID]; ok {
				text = row.ExpressionText
			}
		}
		if text == "" {
			continue
		}
		expressionsByMeasure[link.MeasureUID] = append(expressionsByMeasure[link.MeasureUID], text)
	}

	additionalCodes, err := r.repo.MeasureAdditionalCodes(ctx, measureUIDs)
	if err != nil {
		return nil, err
	}
	addCodeMap := make(map[string][]string)
	for _, ac := range additionalCodes {
		addCodeMap[ac.MeasureUID] = append(addCodeMap[ac.MeasureUID], ac.AdditionalCode)
	}

	conditions, err := r.repo.MeasureConditions(ctx, measureUIDs)
	if err != nil {
		return nil, err
	}
	requirements := make([]Requirement, 0, len(conditions))
	for _, cond := range conditions {
		requirements = append(requirements, Requirement{
			MeasureUID:          cond.MeasureUID,
			ConditionCode:       cond.ConditionCode,
			ActionCode:          cond.ActionCode,
			CertificateTypeCode: cond.CertificateTypeCode,
		})
	}

	legalRefsSet := make(map[string]bool)
	for _, m := range applicable {
		if m.RegulationRef != nil && *m.RegulationRef != "" {
			legalRefsSet[*m.RegulationRef] = true
		}
	}
	legalRefs := make([]string, 0, len(legalRefsSet))
	for ref := range legalRefsSet {
		legalRefs = append(legalRefs, ref)
	}

	var duties []DutyComponent
	notes := []string{}
	for _, m := range applicable {
		exprs := expressionsByMeasure[m.MeasureUID]
		if len(exprs) == 0 {
			exprs = []string{"0%"}
		}
		_, hasAdditional := addCodeMap[m.MeasureUID]
		requiresAdditional := hasAdditional && additionalCode == nil
		if hasAdditional && additionalCode != nil {
			allowed := make(map[string]bool, len(addCodeMap[m.MeasureUID]))
			for _, code := range addCodeMap[m.MeasureUID] {
				allowed[code] = true
			}
			if !allowed[*additionalCode] {
				requiresAdditional = true
			}
		}
		for _, expr := range exprs {
			kind, rate, uom := parseExpression(expr)
			duties = append(duties, DutyComponent{
				MeasureUID:             m.MeasureUID,
				MeasureTypeCode:        m.MeasureTypeCode,
				Expression:             expr,
				Kind:                   kind,
				Rate:                   rate,
				UOM:                    uom,
				RequiresAdditionalCode: requiresAdditional,
			})
		}
	}

	effectiveRate := selectEffectiveRate(duties)

	payload := encodeResultPayload(goodsCode, matchedCode, duties, requirements, legalRefs, effectiveRate, notes)
	if err := r.repo.UpsertCache(ctx, &ResolvedCache{
		SnapshotDate:   snapshotDate,
		GoodsCode:      goodsCode,
		OriginCountry:  originCountryCode,
		AsOfDate:       asOf,
		AdditionalCode: additionalCode,
		Payload:        payload,
	}); err != nil {
		return nil, err
	}

	result := &Result{
		GoodsCode:         goodsCode,
		MatchedGoodsCode:  matchedCode,
		Duties:            duties,
		Requirements:      requirements,
		LegalRefs:         legalRefs,
		EffectiveDutyRate: effectiveRate,
		Notes:             notes,
	}
	if err := r.enrich(ctx, result, asOf); err != nil {
		return nil, err
	}
	return result, nil
}

// enrich populates the goods description and full regulation citations for
// a resolved result. These are reference lookups outside the cached duty
// payload, mirroring the router's separate get_goods_description call
// (app/routers/taric.py) and the otherwise-unused get_regulations repo
// method (app/repositories/taric_repo.py), folded into resolution here so
// every resolve response carries both.
func (r *Resolver) enrich(ctx context.Context, result *Result, asOf time.Time) error {
	if result.MatchedGoodsCode != nil {
		desc, err := r.repo.GoodsDescription(ctx, *result.MatchedGoodsCode, "EN", asOf)
		if err != nil {
			return err
		}
		if desc != nil {
			result.MatchedGoodsDescription = &desc.Description
		}
	}
	if len(result.LegalRefs) > 0 {
		regs, err := r.repo.Regulations(ctx, result.LegalRefs)
		if err != nil {
			return err
		}
		result.Regulations = regs
	}
	return nil
}

// candidateCodes strips non-digit characters from goodsCode and returns its
// truncations at the standard TARIC hierarchy lengths (10/8/6/4/2 digits),
// longest first, per spec.md §4.6 step 3.
func candidateCodes(goodsCode string) []string {
	var cleaned strings.Builder
	for _, ch := range goodsCode {
		if unicode.IsDigit(ch) {
			cleaned.WriteRune(ch)
		}
	}
	digits := cleaned.String()
	var out []string
	for _, length := range []int{10, 8, 6, 4, 2} {
		if len(digits) >= length {
			out = append(out, digits[:length])
		}
	}
	return out
}

var percentPattern = regexp.MustCompile(`%`)

// parseExpression classifies a raw duty-expression string into ad_valorem
// (a percentage rate), specific (a per-unit EUR amount), or unknown.
func parseExpression(expr string) (kind string, rate *decimal.Decimal, uom *string) {
	trimmed := strings.TrimSpace(expr)
	if percentPattern.MatchString(trimmed) {
		numeric := strings.TrimSpace(strings.ReplaceAll(trimmed, "%", ""))
		parsed, err := decimal.NewFromString(numeric)
		if err != nil {
			return "unknown", nil, nil
		}
		r := parsed.Div(decimal.NewFromInt(100))
		return "ad_valorem", &r, nil
	}
	if strings.Contains(strings.ToUpper(trimmed), "EUR") {
		u := "EUR"
		return "specific", nil, &u
	}
	return "unknown", nil, nil
}

// selectEffectiveRate applies the tie-break of spec.md §4.6 step 9:
// preferential ad-valorem rates win outright; otherwise the first
// third-country ad-valorem rate that isn't itself an anti-dumping duty;
// otherwise no base rate is known.
func selectEffectiveRate(duties []DutyComponent) *decimal.Decimal {
	for _, d := range duties {
		if d.Kind == "ad_valorem" && PreferentialCodes[d.MeasureTypeCode] {
			return d.Rate
		}
	}
	for _, d := range duties {
		if d.Kind == "ad_valorem" && !AntiDumpingCodes[d.MeasureTypeCode] {
			return d.Rate
		}
	}
	return nil
}

func decimalToString(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func encodeResultPayload(goodsCode string, matchedCode *string, duties []DutyComponent, requirements []Requirement, legalRefs []string, effectiveRate *decimal.Decimal, notes []string) map[string]any {
	encodedDuties := make([]any, 0, len(duties))
	for _, d := range duties {
		encodedDuties = append(encodedDuties, map[string]any{
			"measure_uid":              d.MeasureUID,
			"measure_type_code":        d.MeasureTypeCode,
			"expression":               d.Expression,
			"kind":                     d.Kind,
			"rate":                     decimalToString(d.Rate),
			"uom":                      d.UOM,
			"requires_additional_code": d.RequiresAdditionalCode,
		})
	}
	encodedRequirements := make([]any, 0, len(requirements))
	for _, req := range requirements {
		encodedRequirements = append(encodedRequirements, map[string]any{
			"measure_uid":           req.MeasureUID,
			"condition_code":        req.ConditionCode,
			"action_code":           req.ActionCode,
			"certificate_type_code": req.CertificateTypeCode,
		})
	}
	return map[string]any{
		"goods_code":          goodsCode,
		"matched_goods_code":  matchedCode,
		"duties":              encodedDuties,
		"requirements":        encodedRequirements,
		"legal_refs":          legalRefs,
		"effective_duty_rate": decimalToString(effectiveRate),
		"notes":               notes,
	}
}

func decodeCachedPayload(payload map[string]any) (*Result, error) {
	res := &Result{}
	if v, ok := payload["goods_code"].(string); ok {
		res.GoodsCode = v
	}
	if v, ok := payload["matched_goods_code"].(string); ok {
		res.MatchedGoodsCode = &v
	}
	if rawDuties, ok := payload["duties"].([]any); ok {
		for _, raw := range rawDuties {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			d := DutyComponent{
				MeasureUID:      stringField(m, "measure_uid"),
				MeasureTypeCode: stringField(m, "measure_type_code"),
				Expression:      stringField(m, "expression"),
				Kind:            stringField(m, "kind"),
			}
			if rateStr, ok := m["rate"].(string); ok && rateStr != "" {
				if parsed, err := decimal.NewFromString(rateStr); err == nil {
					d.Rate = &parsed
				}
			}
			if uom, ok := m["uom"].(string); ok && uom != "" {
				d.UOM = &uom
			}
			if req, ok := m["requires_additional_code"].(bool); ok {
				d.RequiresAdditionalCode = req
			}
			res.Duties = append(res.Duties, d)
		}
	}
	if rawReqs, ok := payload["requirements"].([]any); ok {
		for _, raw := range rawReqs {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			req := Requirement{MeasureUID: stringField(m, "measure_uid")}
			if v, ok := m["condition_code"].(string); ok {
				req.ConditionCode = &v
			}
			if v, ok := m["action_code"].(string); ok {
				req.ActionCode = &v
			}
			if v, ok := m["certificate_type_code"].(string); ok {
				req.CertificateTypeCode = &v
			}
			res.Requirements = append(res.Requirements, req)
		}
	}
	if refs, ok := payload["legal_refs"].([]any); ok {
		for _, ref := range refs {
			if s, ok := ref.(string); ok {
				res.LegalRefs = append(res.LegalRefs, s)
			}
		}
	}
	if rateStr, ok := payload["effective_duty_rate"].(string); ok && rateStr != "" {
		if parsed, err := decimal.NewFromString(rateStr); err == nil {
			res.EffectiveDutyRate = &parsed
		}
	}
	if notes, ok := payload["notes"].([]any); ok {
		for _, n := range notes {
			if s, ok := n.(string); ok {
				res.Notes = append(res.Notes, s)
			}
		}
	}
	return res, nil
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
