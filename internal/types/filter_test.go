package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredFilter_IsEmpty(t *testing.T) {
	var f StructuredFilter
	assert.True(t, f.IsEmpty())

	f.Parameter = ParamSalinity
	assert.False(t, f.IsEmpty())
}

func TestStructuredFilter_Normalize_ClampsCoordinates(t *testing.T) {
	f := StructuredFilter{
		Region: &BoundingBox{LatMin: -120, LatMax: 95, LonMin: -200, LonMax: 181},
	}
	f.Normalize()

	require.NotNil(t, f.Region)
	assert.Equal(t, -90.0, f.Region.LatMin)
	assert.Equal(t, 90.0, f.Region.LatMax)
	assert.Equal(t, -180.0, f.Region.LonMin)
	assert.Equal(t, 180.0, f.Region.LonMax)
}

func TestStructuredFilter_Normalize_SwapsInvertedBounds(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := StructuredFilter{
		Time:   &TimeRange{Start: start, End: end},
		Region: &BoundingBox{LatMin: 30, LatMax: 10, LonMin: 0, LonMax: 20},
	}
	f.Normalize()

	assert.True(t, f.Time.Start.Before(f.Time.End))
	assert.Equal(t, 10.0, f.Region.LatMin)
	assert.Equal(t, 30.0, f.Region.LatMax)
}

func TestStructuredFilter_Normalize_DropsInvalidParameter(t *testing.T) {
	f := StructuredFilter{
		Parameter: Parameter("chlorophyll"),
		Compare:   &Comparison{Parameter: Parameter("oxygen"), Op: OpGT, Value: 3},
	}
	f.Normalize()

	assert.Empty(t, f.Parameter)
	assert.Nil(t, f.Compare)
}

func TestStructuredFilter_Normalize_TrimsFloatIDs(t *testing.T) {
	f := StructuredFilter{FloatIDs: []string{" 2902746 ", "", "  "}}
	f.Normalize()

	assert.Equal(t, []string{"2902746"}, f.FloatIDs)

	f = StructuredFilter{FloatIDs: []string{"", " "}}
	f.Normalize()
	assert.Nil(t, f.FloatIDs)
}

func TestStructuredFilter_Describe(t *testing.T) {
	var empty StructuredFilter
	assert.Equal(t, "all profiles", empty.Describe())

	f := StructuredFilter{
		Time: &TimeRange{
			Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		RegionName: "equatorial band",
		Region:     &BoundingBox{LatMin: -5, LatMax: 5, LonMin: -180, LonMax: 180},
		Compare:    &Comparison{Parameter: ParamSalinity, Op: OpGT, Value: 35},
	}
	desc := f.Describe()
	assert.Contains(t, desc, "between 2025-01-01 and 2025-02-01")
	assert.Contains(t, desc, "in equatorial band")
	assert.Contains(t, desc, "salinity > 35")
}

func TestFloatProfile_Has(t *testing.T) {
	p := FloatProfile{
		Series: []ParamSeries{
			{Parameter: ParamPressure, Levels: []Level{{Depth: 10, Value: 10}}},
			{Parameter: ParamTemperature, Levels: []Level{{Depth: 10, Value: 21.5}}},
		},
	}
	assert.True(t, p.Has(ParamTemperature))
	assert.False(t, p.Has(ParamSalinity))
	require.NotNil(t, p.SeriesFor(ParamPressure))
	assert.Nil(t, p.SeriesFor(ParamSalinity))
}
