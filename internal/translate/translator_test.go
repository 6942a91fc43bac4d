package translate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"floatchat/internal/types"
)

// frozen is the reference "now" for every relative-phrase test.
var frozen = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func newFrozenTranslator(t *testing.T, opts ...Option) *Translator {
	t.Helper()
	SetClock(clockwork.NewFakeClockAt(frozen))
	t.Cleanup(func() { SetClock(nil) })
	return New(opts...)
}

func TestTranslate_SameQuestionSameFilter(t *testing.T) {
	tr := newFrozenTranslator(t)
	ctx := context.Background()

	first, err := tr.Translate(ctx, "salinity near the equator last month")
	require.NoError(t, err)
	second, err := tr.Translate(ctx, "salinity near the equator last month")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTranslate_EquatorLastMonth(t *testing.T) {
	tr := newFrozenTranslator(t)

	f, err := tr.Translate(context.Background(), "show me salinity profiles near the equator in the last month")
	require.NoError(t, err)

	require.NotNil(t, f.Region)
	assert.InDelta(t, -5, f.Region.LatMin, 1e-9)
	assert.InDelta(t, 5, f.Region.LatMax, 1e-9)
	assert.Equal(t, types.ParamSalinity, f.Parameter)

	require.NotNil(t, f.Time)
	assert.Equal(t, frozen.AddDate(0, -1, 0), f.Time.Start)
	assert.Equal(t, frozen, f.Time.End)
}

func TestTranslate_TemporalPhrases(t *testing.T) {
	tr := newFrozenTranslator(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		query string
		start time.Time
		end   time.Time
	}{
		{
			name:  "last N days",
			query: "profiles from the last 10 days",
			start: frozen.AddDate(0, 0, -10),
			end:   frozen,
		},
		{
			name:  "calendar year",
			query: "profiles in 2023",
			start: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "month and year",
			query: "temperature in march 2023",
			start: time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "between dates",
			query: "profiles between 2023-01-01 and 2023-03-01",
			start: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			end:   time.Date(2023, 3, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "since year",
			query: "everything since 2022",
			start: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := tr.Translate(ctx, tc.query)
			require.NoError(t, err)
			require.NotNil(t, f.Time)
			assert.Equal(t, tc.start, f.Time.Start)
			assert.Equal(t, tc.end, f.Time.End)
		})
	}
}

func TestTranslate_NarrowestTimeRangeWins(t *testing.T) {
	tr := newFrozenTranslator(t)

	// Both a year and a month are mentioned; the month is narrower.
	f, err := tr.Translate(context.Background(), "profiles in 2023, especially march 2023")
	require.NoError(t, err)
	require.NotNil(t, f.Time)
	assert.Equal(t, time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC), f.Time.Start)
	assert.Equal(t, time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC), f.Time.End)
}

func TestTranslate_Comparison(t *testing.T) {
	tr := newFrozenTranslator(t)

	f, err := tr.Translate(context.Background(), "where was the temperature above 28.5 in the bay of bengal")
	require.NoError(t, err)

	require.NotNil(t, f.Compare)
	assert.Equal(t, types.ParamTemperature, f.Compare.Parameter)
	assert.Equal(t, types.OpGT, f.Compare.Op)
	assert.InDelta(t, 28.5, f.Compare.Value, 1e-9)

	require.NotNil(t, f.Region)
	assert.Equal(t, "bay_of_bengal", f.RegionName)
}

func TestTranslate_FloatIDsAndLimit(t *testing.T) {
	tr := newFrozenTranslator(t)

	f, err := tr.Translate(context.Background(), "show the first 5 cycles from floats 2902746, 5904321")
	require.NoError(t, err)
	assert.Equal(t, []string{"2902746", "5904321"}, f.FloatIDs)
	assert.Equal(t, 5, f.Limit)
}

func TestTranslate_BasinName(t *testing.T) {
	tr := newFrozenTranslator(t)

	f, err := tr.Translate(context.Background(), "salinity in the indian ocean")
	require.NoError(t, err)
	assert.Nil(t, f.Region)
	assert.Equal(t, "indian", f.RegionName)
	assert.Equal(t, types.ParamSalinity, f.Parameter)
}

func TestTranslate_AmbiguousAnalysisRejected(t *testing.T) {
	tr := newFrozenTranslator(t)

	for _, q := range []string{
		"what is the temperature trend in the pacific",
		"correlate salinity with temperature",
		"predict next month's salinity",
	} {
		_, err := tr.Translate(context.Background(), q)
		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr, q)
		assert.Equal(t, types.ErrCodeQueryAmbiguous, appErr.Code)
		assert.Contains(t, appErr.Details, "hint")
	}
}

func TestTranslate_EmptyQueryRejected(t *testing.T) {
	tr := newFrozenTranslator(t)

	_, err := tr.Translate(context.Background(), "   ")
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationMissingField, appErr.Code)
}

func TestTranslate_UnconstrainedWithoutAssist(t *testing.T) {
	tr := newFrozenTranslator(t)

	f, err := tr.Translate(context.Background(), "show me some interesting ocean data")
	require.NoError(t, err)
	assert.True(t, f.IsEmpty())
}

func TestTranslate_AssistProposalIsClamped(t *testing.T) {
	assist := func(ctx context.Context, query string) (*types.StructuredFilter, error) {
		return &types.StructuredFilter{
			Region: &types.BoundingBox{LatMin: -200, LatMax: 95, LonMin: 10, LonMax: 20},
			Limit:  -3,
		}, nil
	}
	tr := newFrozenTranslator(t, WithAssist(assist))

	f, err := tr.Translate(context.Background(), "show me some interesting ocean data")
	require.NoError(t, err)
	require.NotNil(t, f.Region)
	assert.InDelta(t, -90, f.Region.LatMin, 1e-9)
	assert.InDelta(t, 90, f.Region.LatMax, 1e-9)
	assert.Zero(t, f.Limit)
}

func TestTranslate_AssistErrorFallsBackToEmpty(t *testing.T) {
	assist := func(ctx context.Context, query string) (*types.StructuredFilter, error) {
		return nil, errors.New("model offline")
	}
	tr := newFrozenTranslator(t, WithAssist(assist))

	f, err := tr.Translate(context.Background(), "anything at all")
	require.NoError(t, err)
	assert.True(t, f.IsEmpty())
}
