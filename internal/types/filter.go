package types

import (
	"fmt"
	"strings"
)

// CompareOp is a relational operator in a parameter comparison.
type CompareOp string

const (
	OpGT  CompareOp = ">"
	OpGTE CompareOp = ">="
	OpLT  CompareOp = "<"
	OpLTE CompareOp = "<="
)

// Valid reports whether the operator is one of the supported four.
func (op CompareOp) Valid() bool {
	switch op {
	case OpGT, OpGTE, OpLT, OpLTE:
		return true
	}
	return false
}

// Comparison is a "parameter <op> value" constraint, e.g. salinity > 35.
// It matches profiles whose series for the parameter contains at least one
// level satisfying the comparison.
type Comparison struct {
	Parameter Parameter `json:"parameter"`
	Op        CompareOp `json:"op"`
	Value     float64   `json:"value"`
}

// StructuredFilter is the typed, validated query derived from a free-text
// question. Every field is optional; the zero filter matches all profiles.
// Fields left unset mean "unconstrained", never an error.
type StructuredFilter struct {
	Time       *TimeRange   `json:"time,omitempty"`
	Region     *BoundingBox `json:"region,omitempty"`
	RegionName string       `json:"region_name,omitempty"`
	FloatIDs   []string     `json:"float_ids,omitempty"`
	Parameter  Parameter    `json:"parameter,omitempty"`
	Compare    *Comparison  `json:"compare,omitempty"`

	// Limit caps the result set. Zero means the store default.
	Limit int `json:"limit,omitempty"`
}

// IsEmpty reports whether no constraint is set (matches everything).
func (f *StructuredFilter) IsEmpty() bool {
	return f.Time == nil && f.Region == nil && f.RegionName == "" &&
		len(f.FloatIDs) == 0 && f.Parameter == "" && f.Compare == nil
}

// Normalize clamps and repairs the filter in place so that whatever reaches
// the Float Store is type- and range-safe. Untrusted sources (the LLM-assisted
// translator in particular) must pass through here before querying.
//
// Repairs applied:
//   - latitude clamped to [-90, 90], longitude to [-180, 180]
//   - inverted lat bounds swapped; inverted time bounds swapped
//   - unknown parameter names dropped (unconstrained, not an error)
//   - comparisons with invalid operator or parameter dropped
//   - float IDs trimmed, empties removed
//   - negative limit zeroed
func (f *StructuredFilter) Normalize() {
	if f.Region != nil {
		f.Region.LatMin = clamp(f.Region.LatMin, -90, 90)
		f.Region.LatMax = clamp(f.Region.LatMax, -90, 90)
		f.Region.LonMin = clamp(f.Region.LonMin, -180, 180)
		f.Region.LonMax = clamp(f.Region.LonMax, -180, 180)
		if f.Region.LatMin > f.Region.LatMax {
			f.Region.LatMin, f.Region.LatMax = f.Region.LatMax, f.Region.LatMin
		}
		// Longitude is left unswapped: LonMin > LonMax is not meaningful for
		// our non-wrapping queries, so collapse to the full range instead.
		if f.Region.LonMin > f.Region.LonMax {
			f.Region.LonMin, f.Region.LonMax = -180, 180
		}
	}

	if f.Time != nil {
		if !f.Time.Start.IsZero() && !f.Time.End.IsZero() && f.Time.Start.After(f.Time.End) {
			f.Time.Start, f.Time.End = f.Time.End, f.Time.Start
		}
		if f.Time.IsZero() {
			f.Time = nil
		}
	}

	if f.Parameter != "" && !f.Parameter.Valid() {
		f.Parameter = ""
	}

	if f.Compare != nil {
		if !f.Compare.Parameter.Valid() || !f.Compare.Op.Valid() {
			f.Compare = nil
		}
	}

	ids := f.FloatIDs[:0]
	for _, id := range f.FloatIDs {
		id = strings.TrimSpace(id)
		if id != "" {
			ids = append(ids, id)
		}
	}
	f.FloatIDs = ids
	if len(f.FloatIDs) == 0 {
		f.FloatIDs = nil
	}

	if f.Limit < 0 {
		f.Limit = 0
	}
}

// Describe renders the filter as a short human-readable clause list, used in
// prompts and no-data answers so the user can see what was searched.
func (f *StructuredFilter) Describe() string {
	var parts []string
	if f.Time != nil {
		switch {
		case !f.Time.Start.IsZero() && !f.Time.End.IsZero():
			parts = append(parts, fmt.Sprintf("between %s and %s",
				f.Time.Start.Format("2006-01-02"), f.Time.End.Format("2006-01-02")))
		case !f.Time.Start.IsZero():
			parts = append(parts, "since "+f.Time.Start.Format("2006-01-02"))
		default:
			parts = append(parts, "until "+f.Time.End.Format("2006-01-02"))
		}
	}
	if f.Region != nil {
		name := f.RegionName
		if name == "" {
			name = fmt.Sprintf("lat [%.1f, %.1f], lon [%.1f, %.1f]",
				f.Region.LatMin, f.Region.LatMax, f.Region.LonMin, f.Region.LonMax)
		}
		parts = append(parts, "in "+name)
	}
	if len(f.FloatIDs) > 0 {
		parts = append(parts, "floats "+strings.Join(f.FloatIDs, ", "))
	}
	if f.Compare != nil {
		parts = append(parts, fmt.Sprintf("%s %s %g",
			f.Compare.Parameter, f.Compare.Op, f.Compare.Value))
	} else if f.Parameter != "" {
		parts = append(parts, "with "+string(f.Parameter))
	}
	if len(parts) == 0 {
		return "all profiles"
	}
	return strings.Join(parts, ", ")
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
