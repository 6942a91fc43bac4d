package netcdf

import (
	"fmt"
	"math"
	"strings"
	"time"

	"floatchat/internal/types"
)

// ARGO profile files reference timestamps as fractional days since this epoch
// (the REFERENCE_DATE_TIME global attribute, fixed across the programme).
var juldEpoch = time.Date(1950, time.January, 1, 0, 0, 0, 0, time.UTC)

// Default fill values used when a variable omits its _FillValue attribute.
// These match the values the ARGO user manual assigns to each variable.
const (
	defaultPositionFill = 99999.0
	defaultJuldFill     = 999999.0
	defaultParamFill    = 99999.0
)

// ParseResult carries the accepted profiles plus accounting for rows the
// per-row validation rejected.
type ParseResult struct {
	Profiles []types.FloatProfile
	Skipped  int
	// RowErrors holds one human-readable reason per skipped row, in row
	// order, for ingest reporting.
	RowErrors []string
}

// argoVar pairs a decoded numeric slab with its fill value.
type argoVar struct {
	values []float64
	fill   float64
}

func (a *argoVar) ok() bool { return a != nil && a.values != nil }

// valid reports whether the value at index i is present and not fill.
func (a *argoVar) valid(i int) bool {
	if !a.ok() || i >= len(a.values) {
		return false
	}
	v := a.values[i]
	if math.IsNaN(v) {
		return false
	}
	if math.IsNaN(a.fill) { // NaN fill means the variable has no fill check
		return true
	}
	return math.Abs(v-a.fill) > 1e-6
}

func (a *argoVar) at(i int) float64 { return a.values[i] }

// Parse decodes an ARGO profile file and extracts one FloatProfile per valid
// row. Rows failing validation are skipped and counted rather than failing
// the whole file; structural problems (bad magic, missing required variables,
// wrong shapes) fail the parse.
func Parse(data []byte) (*ParseResult, error) {
	f, err := Decode(data)
	if err != nil {
		return nil, err
	}

	nProf, err := requireDim(f, "N_PROF")
	if err != nil {
		return nil, err
	}

	platform, err := readPlatformNumbers(f, nProf)
	if err != nil {
		return nil, err
	}
	cycles, err := readScalarVar(f, "CYCLE_NUMBER", nProf, -1)
	if err != nil {
		return nil, err
	}
	juld, err := readScalarVar(f, "JULD", nProf, defaultJuldFill)
	if err != nil {
		return nil, err
	}
	lat, err := readScalarVar(f, "LATITUDE", nProf, defaultPositionFill)
	if err != nil {
		return nil, err
	}
	lon, err := readScalarVar(f, "LONGITUDE", nProf, defaultPositionFill)
	if err != nil {
		return nil, err
	}

	// Measurement variables share the [N_PROF, N_LEVELS] shape. At least
	// one of them must exist; individually they are optional.
	nLevels := 0
	if id := dimID(f, "N_LEVELS"); id >= 0 {
		nLevels = f.DimLen(id)
	}
	pres := readParamVar(f, "PRES", nProf, nLevels)
	temp := readParamVar(f, "TEMP", nProf, nLevels)
	psal := readParamVar(f, "PSAL", nProf, nLevels)
	if !pres.ok() && !temp.ok() && !psal.ok() {
		return nil, formatErr("file carries none of PRES, TEMP, PSAL")
	}

	res := &ParseResult{}
	for i := 0; i < nProf; i++ {
		profile, reason := buildProfile(i, nLevels, platform, cycles, juld, lat, lon, pres, temp, psal)
		if reason != "" {
			res.Skipped++
			res.RowErrors = append(res.RowErrors, fmt.Sprintf("row %d: %s", i, reason))
			continue
		}
		res.Profiles = append(res.Profiles, profile)
	}

	if len(res.Profiles) == 0 {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeIngestEmpty,
			"file contains no valid profile rows", nil,
			map[string]any{"rows": nProf, "skipped": res.Skipped})
	}
	return res, nil
}

// buildProfile validates one row and assembles its FloatProfile. A non-empty
// reason marks the row as skipped.
func buildProfile(i, nLevels int, platform []string, cycles, juld, lat, lon, pres, temp, psal *argoVar) (types.FloatProfile, string) {
	var p types.FloatProfile

	p.FloatID = platform[i]
	if p.FloatID == "" {
		return p, "empty platform number"
	}
	if !cycles.valid(i) || cycles.at(i) < 0 {
		return p, "missing or negative cycle number"
	}
	p.CycleNumber = int(cycles.at(i))

	if !juld.valid(i) {
		return p, "missing timestamp"
	}
	days := juld.at(i)
	p.Timestamp = juldEpoch.Add(time.Duration(days * float64(24*time.Hour))).UTC()

	if !lat.valid(i) || !lon.valid(i) {
		return p, "missing position"
	}
	p.Latitude, p.Longitude = lat.at(i), lon.at(i)
	if p.Latitude < -90 || p.Latitude > 90 {
		return p, fmt.Sprintf("latitude %.3f out of range", p.Latitude)
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return p, fmt.Sprintf("longitude %.3f out of range", p.Longitude)
	}

	// Pressure is the depth axis: without it no level can be placed, but a
	// row may still carry a bare pressure series with no measurements.
	if !pres.ok() {
		return p, "no pressure data for row"
	}
	base := i * nLevels
	prev := math.Inf(-1)
	var presLevels, tempLevels, psalLevels []types.Level
	for j := 0; j < nLevels; j++ {
		if !pres.valid(base + j) {
			continue
		}
		depth := pres.at(base + j)
		if depth <= prev {
			return p, fmt.Sprintf("pressure not strictly increasing at level %d", j)
		}
		prev = depth
		presLevels = append(presLevels, types.Level{Depth: depth, Value: depth})
		if temp.valid(base + j) {
			tempLevels = append(tempLevels, types.Level{Depth: depth, Value: temp.at(base + j)})
		}
		if psal.valid(base + j) {
			psalLevels = append(psalLevels, types.Level{Depth: depth, Value: psal.at(base + j)})
		}
	}
	if len(presLevels) == 0 {
		return p, "all levels are fill values"
	}

	p.Series = append(p.Series, types.ParamSeries{Parameter: types.ParamPressure, Levels: presLevels})
	if len(tempLevels) > 0 {
		p.Series = append(p.Series, types.ParamSeries{Parameter: types.ParamTemperature, Levels: tempLevels})
	}
	if len(psalLevels) > 0 {
		p.Series = append(p.Series, types.ParamSeries{Parameter: types.ParamSalinity, Levels: psalLevels})
	}
	p.SchemaVersion = types.CurrentSchemaVersion
	return p, ""
}

func dimID(f *File, name string) int {
	for i := range f.Dims {
		if f.Dims[i].Name == name {
			return i
		}
	}
	return -1
}

func requireDim(f *File, name string) (int, error) {
	id := dimID(f, name)
	if id < 0 {
		return 0, types.NewAppError(types.ErrCodeIngestSchema,
			fmt.Sprintf("required dimension %s is missing", name), nil)
	}
	return f.DimLen(id), nil
}

// readPlatformNumbers decodes PLATFORM_NUMBER, a character variable of shape
// [N_PROF, strlen], into trimmed float identifiers.
func readPlatformNumbers(f *File, nProf int) ([]string, error) {
	v := f.Var("PLATFORM_NUMBER")
	if v == nil {
		return nil, types.NewAppError(types.ErrCodeIngestSchema,
			"required variable PLATFORM_NUMBER is missing", nil)
	}
	shape := f.Shape(v)
	if len(shape) != 2 || shape[0] != nProf {
		return nil, schemaShapeErr("PLATFORM_NUMBER", shape)
	}
	raw, err := f.Chars(v)
	if err != nil {
		return nil, err
	}
	strlen := shape[1]
	out := make([]string, nProf)
	for i := 0; i < nProf; i++ {
		s := string(raw[i*strlen : (i+1)*strlen])
		out[i] = strings.TrimRight(strings.TrimSpace(s), "\x00")
	}
	return out, nil
}

// readScalarVar decodes a required per-profile numeric variable of shape
// [N_PROF]. A negative fallback fill disables fill-value checking unless the
// variable declares its own.
func readScalarVar(f *File, name string, nProf int, fallbackFill float64) (*argoVar, error) {
	v := f.Var(name)
	if v == nil {
		return nil, types.NewAppError(types.ErrCodeIngestSchema,
			fmt.Sprintf("required variable %s is missing", name), nil)
	}
	shape := f.Shape(v)
	if len(shape) != 1 || shape[0] != nProf {
		return nil, schemaShapeErr(name, shape)
	}
	values, err := f.Float64s(v)
	if err != nil {
		return nil, err
	}
	fill := fallbackFill
	if declared, ok := v.FillValue(); ok {
		fill = declared
	}
	if fill < 0 {
		fill = math.NaN() // NaN fill never matches, so every value counts
	}
	return &argoVar{values: values, fill: fill}, nil
}

// readParamVar decodes an optional measurement variable of shape
// [N_PROF, N_LEVELS]. A missing or misshapen variable yields a nil-slab var
// that reports every index as invalid.
func readParamVar(f *File, name string, nProf, nLevels int) *argoVar {
	v := f.Var(name)
	if v == nil || nLevels == 0 {
		return &argoVar{}
	}
	shape := f.Shape(v)
	if len(shape) != 2 || shape[0] != nProf || shape[1] != nLevels {
		return &argoVar{}
	}
	values, err := f.Float64s(v)
	if err != nil {
		return &argoVar{}
	}
	fill := defaultParamFill
	if declared, ok := v.FillValue(); ok {
		fill = declared
	}
	return &argoVar{values: values, fill: fill}
}

func schemaShapeErr(name string, shape []int) *types.AppError {
	return types.NewAppErrorWithDetails(types.ErrCodeIngestSchema,
		fmt.Sprintf("variable %s has unexpected shape", name), nil,
		map[string]any{"shape": shape})
}
