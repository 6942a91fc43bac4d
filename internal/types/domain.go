package types

import (
	"time"
)

// CurrentSchemaVersion is the profile schema version stamped onto every
// stored profile. Bump it whenever the NetCDF → FloatProfile mapping
// changes shape so mixed-vintage rows remain distinguishable.
const CurrentSchemaVersion = 1

// Parameter identifies a physical parameter series within a profile.
type Parameter string

const (
	ParamPressure    Parameter = "pressure"
	ParamTemperature Parameter = "temperature"
	ParamSalinity    Parameter = "salinity"
)

// Parameters lists every parameter a profile may carry, in canonical order.
func Parameters() []Parameter {
	return []Parameter{ParamPressure, ParamTemperature, ParamSalinity}
}

// Valid reports whether p names a known physical parameter.
func (p Parameter) Valid() bool {
	switch p {
	case ParamPressure, ParamTemperature, ParamSalinity:
		return true
	}
	return false
}

// Level is one (depth, value) pair within a parameter series.
// Depth is in decibars, which approximates depth in meters for ARGO floats.
type Level struct {
	Depth float64 `json:"depth"`
	Value float64 `json:"value"`
}

// ParamSeries is a depth-ordered measurement series for a single parameter.
// Invariant: Levels is sorted by strictly increasing Depth with no duplicates.
type ParamSeries struct {
	Parameter Parameter `json:"parameter"`
	Levels    []Level   `json:"levels"`
}

// FloatProfile is one measurement cycle from one ARGO float: position, time,
// and the depth-indexed parameter series decoded from a NetCDF record.
// Identity is (FloatID, CycleNumber); a stored profile is immutable and can
// only be replaced wholesale by re-ingesting the same identity.
type FloatProfile struct {
	FloatID     string    `json:"float_id" db:"float_id"`
	CycleNumber int       `json:"cycle_number" db:"cycle_number"`

	Latitude    float64   `json:"latitude" db:"latitude"`
	Longitude   float64   `json:"longitude" db:"longitude"`
	Timestamp   time.Time `json:"timestamp" db:"profile_date"`
	OceanRegion string    `json:"ocean_region,omitempty" db:"ocean_region"`

	Series []ParamSeries `json:"series" db:"levels"`

	SchemaVersion int       `json:"-" db:"schema_version"`
	CreatedAt     time.Time `json:"created_at,omitempty" db:"created_at"`
}

// Has reports whether the profile carries a series for the given parameter.
func (p *FloatProfile) Has(param Parameter) bool {
	for _, s := range p.Series {
		if s.Parameter == param {
			return true
		}
	}
	return false
}

// SeriesFor returns the series for the given parameter, or nil.
func (p *FloatProfile) SeriesFor(param Parameter) *ParamSeries {
	for i := range p.Series {
		if p.Series[i].Parameter == param {
			return &p.Series[i]
		}
	}
	return nil
}

// ArgoFloat is the per-platform metadata record. One float owns many
// profiles, keyed by its WMO platform number.
type ArgoFloat struct {
	PlatformNumber string     `json:"platform_number" db:"platform_number"`
	DeploymentDate *time.Time `json:"deployment_date,omitempty" db:"deployment_date"`
	DeploymentLat  *float64   `json:"deployment_latitude,omitempty" db:"deployment_latitude"`
	DeploymentLon  *float64   `json:"deployment_longitude,omitempty" db:"deployment_longitude"`
	ProjectName    string     `json:"project_name,omitempty" db:"project_name"`
	DataCenter     string     `json:"data_center,omitempty" db:"data_center"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// TimeRange is a half-open-agnostic [Start, End] pair. Either bound may be
// zero to mean unbounded on that side.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End - Start. Only meaningful when both bounds are set.
func (tr TimeRange) Duration() time.Duration {
	return tr.End.Sub(tr.Start)
}

// IsZero reports whether neither bound is set.
func (tr TimeRange) IsZero() bool {
	return tr.Start.IsZero() && tr.End.IsZero()
}

// BoundingBox is a geographic window in WGS84 degrees.
type BoundingBox struct {
	LatMin float64 `json:"lat_min"`
	LatMax float64 `json:"lat_max"`
	LonMin float64 `json:"lon_min"`
	LonMax float64 `json:"lon_max"`
}

// Contains reports whether the point lies within the box (inclusive).
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.LatMin && lat <= b.LatMax && lon >= b.LonMin && lon <= b.LonMax
}

// StatsSummary is the derived, recomputed-per-request aggregate over the
// Float Store. On an empty store counts are zero and the nullable bounds
// are nil rather than an error.
type StatsSummary struct {
	FloatCount   int64 `json:"float_count"`
	ProfileCount int64 `json:"profile_count"`

	// Null when the store is empty.
	TimeMin *time.Time   `json:"time_min,omitempty"`
	TimeMax *time.Time   `json:"time_max,omitempty"`
	Bounds  *BoundingBox `json:"bounding_box,omitempty"`

	// CoverageRatio maps parameter → profiles carrying it / ProfileCount.
	CoverageRatio map[Parameter]float64 `json:"coverage_ratio"`
}

// IngestReport is the per-file outcome returned to ingestion callers.
// Row-local failures are counted and described, never fatal to the batch.
type IngestReport struct {
	Accepted int      `json:"accepted"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// Merge folds another report into this one.
func (r *IngestReport) Merge(other IngestReport) {
	r.Accepted += other.Accepted
	r.Skipped += other.Skipped
	r.Errors = append(r.Errors, other.Errors...)
}

// ChatAnswer is the response to a chat turn. Truncated is informational:
// the answer is still grounded, but the context was capped oldest-first.
type ChatAnswer struct {
	Answer        string  `json:"answer"`
	MatchedCount  int     `json:"matched_count"`
	Truncated     bool    `json:"truncated"`
	ExecutionTime float64 `json:"execution_time"`
}

// QueryRecord is one persisted chat turn for the query history log.
type QueryRecord struct {
	ID          string    `json:"id" db:"id"`
	UserQuery   string    `json:"user_query" db:"user_query"`
	FilterJSON  []byte    `json:"-" db:"filter"`
	ExecutionMS int64     `json:"execution_ms" db:"execution_ms"`
	ResultCount int       `json:"result_count" db:"result_count"`
	Answer      string    `json:"answer" db:"answer"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
