// Package translate turns free-text questions about ARGO float data into
// typed StructuredFilter values. The grammar is rule-based and deterministic:
// the same question always yields the same filter. An optional LLM assist
// can propose a filter for wording the rules miss; its output passes through
// the same clamping as any untrusted input.
package translate

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"floatchat/internal/types"
)

// Translator converts one question into one filter.
type Translator struct {
	assist AssistFunc
}

// AssistFunc proposes a filter for a question the rule grammar could not
// constrain. Implementations typically wrap an LLM call.
type AssistFunc func(ctx context.Context, query string) (*types.StructuredFilter, error)

// Option configures a Translator.
type Option func(*Translator)

// WithAssist installs an LLM-backed fallback for unconstrained questions.
func WithAssist(fn AssistFunc) Option {
	return func(t *Translator) { t.assist = fn }
}

// New creates a Translator.
func New(opts ...Option) *Translator {
	t := &Translator{}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ambiguousTerms flag analysis the store cannot answer from raw profile
// matching. Such questions get a structured rejection, never a guess.
var ambiguousTerms = []string{
	"trend", "correlat", "predict", "forecast", "anomal", "compare", "why ",
}

var (
	reParamCompare = regexp.MustCompile(
		`\b(temperature|temp|salinity|psal|pressure|pres|depth)\s*` +
			`(>=|<=|>|<|above|over|greater than|more than|warmer than|deeper than|below|under|less than|colder than|shallower than)\s*` +
			`(-?\d+(?:\.\d+)?)`)
	reFloatIDs = regexp.MustCompile(`\bfloats?\s+#?(\d{3,8}(?:\s*,\s*\d{3,8})*)\b`)
	reLimit    = regexp.MustCompile(`\b(?:top|first|limit)\s+(\d+)\b`)
)

// paramAliases maps question wording to parameters.
var paramAliases = map[string]types.Parameter{
	"temperature": types.ParamTemperature,
	"temp":        types.ParamTemperature,
	"warmer":      types.ParamTemperature,
	"colder":      types.ParamTemperature,
	"salinity":    types.ParamSalinity,
	"psal":        types.ParamSalinity,
	"saltier":     types.ParamSalinity,
	"pressure":    types.ParamPressure,
	"pres":        types.ParamPressure,
	"depth":       types.ParamPressure,
	"deeper":      types.ParamPressure,
}

// orderedAliases fixes the scan order for bare parameter mentions.
var orderedAliases = []string{
	"temperature", "temp", "salinity", "psal", "pressure", "pres",
	"depth", "warmer", "colder", "saltier", "deeper",
}

var opAliases = map[string]types.CompareOp{
	">": types.OpGT, ">=": types.OpGTE, "<": types.OpLT, "<=": types.OpLTE,
	"above": types.OpGT, "over": types.OpGT, "greater than": types.OpGT,
	"more than": types.OpGT, "warmer than": types.OpGT, "deeper than": types.OpGT,
	"below": types.OpLT, "under": types.OpLT, "less than": types.OpLT,
	"colder than": types.OpLT, "shallower than": types.OpLT,
}

// Translate derives a StructuredFilter from a free-text question. It returns
// a query_ambiguous AppError for questions asking for analysis beyond
// profile retrieval, and never returns an error for merely vague wording:
// an unconstrained filter simply matches everything.
func (t *Translator) Translate(ctx context.Context, query string) (types.StructuredFilter, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	q = strings.Join(strings.Fields(q), " ")
	if q == "" {
		return types.StructuredFilter{}, types.NewAppError(types.ErrCodeValidationMissingField,
			"query text is empty", nil)
	}

	for _, term := range ambiguousTerms {
		if strings.Contains(q, term) {
			return types.StructuredFilter{}, types.NewAppErrorWithDetails(types.ErrCodeQueryAmbiguous,
				"the question asks for analysis this service does not perform", nil,
				map[string]any{
					"hint": "ask for profiles by time, place, float ID, or a measurement threshold",
				})
		}
	}

	var filter types.StructuredFilter
	filter.Time, q = matchTimeRange(q)

	if m := reParamCompare.FindStringSubmatch(q); m != nil {
		param, okP := paramAliases[m[1]]
		op, okO := opAliases[m[2]]
		value, errV := strconv.ParseFloat(m[3], 64)
		if okP && okO && errV == nil {
			filter.Compare = &types.Comparison{Parameter: param, Op: op, Value: value}
		}
		q = reParamCompare.ReplaceAllString(q, " ")
	}

	if m := reFloatIDs.FindStringSubmatch(q); m != nil {
		for _, id := range strings.Split(m[1], ",") {
			filter.FloatIDs = append(filter.FloatIDs, strings.TrimSpace(id))
		}
		q = reFloatIDs.ReplaceAllString(q, " ")
	}

	if m := reLimit.FindStringSubmatch(q); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			filter.Limit = n
		}
		q = reLimit.ReplaceAllString(q, " ")
	}

	filter.Region, filter.RegionName = matchRegion(q)

	// A bare parameter mention constrains to profiles that carry it. The
	// alias list is scanned in a fixed order so ties resolve the same way
	// on every call.
	for _, alias := range orderedAliases {
		if strings.Contains(q, alias) {
			filter.Parameter = paramAliases[alias]
			break
		}
	}
	// Prefer the measured parameter over the comparison's subject when both
	// appear, but fall back to the comparison's subject alone.
	if filter.Parameter == "" && filter.Compare != nil {
		filter.Parameter = filter.Compare.Parameter
	}

	if filter.IsEmpty() && t.assist != nil {
		if proposed, err := t.assist(ctx, query); err == nil && proposed != nil {
			filter = *proposed
		}
	}

	filter.Normalize()
	return filter, nil
}
