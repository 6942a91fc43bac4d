package db

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"floatchat/internal/types"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// --- Mock Row ---

type mockRow struct {
	scanErr error
	scanFn  func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanFn != nil {
		return r.scanFn(dest...)
	}
	return r.scanErr
}

// --- Mock Rows for profile queries ---

type profileMockRows struct {
	rows    []types.FloatProfile
	idx     int
	closed  bool
	scanErr error
	errVal  error
}

func newProfileMockRows(rows ...types.FloatProfile) *profileMockRows {
	return &profileMockRows{rows: rows, idx: -1}
}

func (r *profileMockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.rows)
}

func (r *profileMockRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	if r.idx < 0 || r.idx >= len(r.rows) {
		return errors.New("no current row")
	}
	p := r.rows[r.idx]
	levels, _ := json.Marshal(p.Series)
	*dest[0].(*string) = p.FloatID
	*dest[1].(*int) = p.CycleNumber
	*dest[2].(*float64) = p.Latitude
	*dest[3].(*float64) = p.Longitude
	*dest[4].(*time.Time) = p.Timestamp
	*dest[5].(*string) = p.OceanRegion
	*dest[6].(*[]byte) = levels
	*dest[7].(*int) = p.SchemaVersion
	*dest[8].(*time.Time) = p.CreatedAt
	return nil
}

func (r *profileMockRows) Close()                                       { r.closed = true }
func (r *profileMockRows) Err() error                                   { return r.errVal }
func (r *profileMockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *profileMockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *profileMockRows) RawValues() [][]byte                          { return nil }
func (r *profileMockRows) Values() ([]any, error)                       { return nil, nil }
func (r *profileMockRows) Conn() *pgx.Conn                              { return nil }

func sampleProfile() types.FloatProfile {
	return types.FloatProfile{
		FloatID:     "2902746",
		CycleNumber: 12,
		Latitude:    -12.25,
		Longitude:   67.5,
		Timestamp:   time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC),
		OceanRegion: "indian",
		Series: []types.ParamSeries{
			{Parameter: types.ParamPressure, Levels: []types.Level{{Depth: 5, Value: 5}, {Depth: 100, Value: 100}}},
			{Parameter: types.ParamTemperature, Levels: []types.Level{{Depth: 5, Value: 28.1}, {Depth: 100, Value: 15.2}}},
		},
		SchemaVersion: types.CurrentSchemaVersion,
	}
}

// --- buildWhere ---

func TestBuildWhere_EmptyFilter(t *testing.T) {
	where, args := buildWhere(types.StructuredFilter{})
	assert.Empty(t, where)
	assert.Nil(t, args)
}

func TestBuildWhere_AllConstraints(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	filter := types.StructuredFilter{
		Time:      &types.TimeRange{Start: start, End: end},
		Region:    &types.BoundingBox{LatMin: -5, LatMax: 5, LonMin: 40, LonMax: 100},
		FloatIDs:  []string{"2902746"},
		Parameter: types.ParamSalinity,
		Compare:   &types.Comparison{Parameter: types.ParamTemperature, Op: types.OpGT, Value: 20},
	}

	where, args := buildWhere(filter)
	assert.True(t, strings.HasPrefix(where, "WHERE "))
	assert.Contains(t, where, "profile_date >= $1")
	assert.Contains(t, where, "profile_date <= $2")
	assert.Contains(t, where, "latitude BETWEEN $3 AND $4")
	assert.Contains(t, where, "longitude BETWEEN $5 AND $6")
	assert.Contains(t, where, "float_id = ANY($7)")
	assert.Contains(t, where, "has_salinity = TRUE")
	assert.Contains(t, where, "s->>'parameter' = $8")
	assert.Contains(t, where, "> $9")
	require.Len(t, args, 9)
	assert.Equal(t, start, args[0])
	assert.Equal(t, []string{"2902746"}, args[6])
	assert.Equal(t, "temperature", args[7])
	assert.Equal(t, 20.0, args[8])
}

func TestBuildWhere_OpenEndedTimeRange(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	where, args := buildWhere(types.StructuredFilter{Time: &types.TimeRange{Start: start}})
	assert.Equal(t, "WHERE profile_date >= $1", where)
	assert.Len(t, args, 1)
}

// --- Upsert ---

func TestProfileRepository_Upsert_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewProfileRepository(db)
	ctx := context.Background()
	p := sampleProfile()

	db.On("Exec", ctx,
		mock.MatchedBy(func(sql string) bool {
			return strings.Contains(sql, "ON CONFLICT (float_id, cycle_number) DO UPDATE")
		}),
		mock.MatchedBy(func(args []any) bool {
			// has_pressure, has_temperature set; has_salinity clear.
			return args[7] == true && args[8] == true && args[9] == false
		}),
	).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	require.NoError(t, repo.Upsert(ctx, &p))
	db.AssertExpectations(t)
}

func TestProfileRepository_Upsert_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewProfileRepository(db)
	ctx := context.Background()
	p := sampleProfile()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := repo.Upsert(ctx, &p)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

// --- Query ---

func TestProfileRepository_Query_DecodesSeriesAndOrders(t *testing.T) {
	db := new(mockDBTX)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	db.On("Query", ctx,
		mock.MatchedBy(func(sql string) bool {
			return strings.Contains(sql, "ORDER BY profile_date ASC, float_id ASC, cycle_number ASC")
		}),
		mock.Anything,
	).Return(newProfileMockRows(sampleProfile()), nil)

	got, err := repo.Query(ctx, types.StructuredFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2902746", got[0].FloatID)
	require.True(t, got[0].Has(types.ParamTemperature))
	assert.InDelta(t, 28.1, got[0].SeriesFor(types.ParamTemperature).Levels[0].Value, 1e-9)
	db.AssertExpectations(t)
}

func TestProfileRepository_Query_AppliesDefaultLimit(t *testing.T) {
	db := new(mockDBTX)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	db.On("Query", ctx, mock.AnythingOfType("string"),
		mock.MatchedBy(func(args []any) bool {
			return len(args) == 1 && args[0] == defaultQueryLimit
		}),
	).Return(newProfileMockRows(), nil)

	got, err := repo.Query(ctx, types.StructuredFilter{})
	require.NoError(t, err)
	assert.Empty(t, got)
	db.AssertExpectations(t)
}

// --- Count / Stats ---

func TestProfileRepository_Count(t *testing.T) {
	db := new(mockDBTX)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFn: func(dest ...any) error {
			*dest[0].(*int64) = 42
			return nil
		}})

	n, err := repo.Count(ctx, types.StructuredFilter{Parameter: types.ParamTemperature})
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestProfileRepository_Stats_EmptyStore(t *testing.T) {
	db := new(mockDBTX)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFn: func(dest ...any) error {
			*dest[0].(*int64) = 0
			*dest[1].(*int64) = 0
			// Time and position bounds stay nil; coverage defaults to 0.
			return nil
		}})

	s, err := repo.Stats(ctx, types.StructuredFilter{})
	require.NoError(t, err)
	assert.Zero(t, s.FloatCount)
	assert.Zero(t, s.ProfileCount)
	assert.Nil(t, s.TimeMin)
	assert.Nil(t, s.Bounds)
	assert.Zero(t, s.CoverageRatio[types.ParamTemperature])
}

func TestProfileRepository_Stats_PopulatedStore(t *testing.T) {
	db := new(mockDBTX)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	tMin := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tMax := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFn: func(dest ...any) error {
			*dest[0].(*int64) = 3
			*dest[1].(*int64) = 17
			*dest[2].(**time.Time) = &tMin
			*dest[3].(**time.Time) = &tMax
			latMin, latMax := -30.0, 10.0
			lonMin, lonMax := 40.0, 100.0
			*dest[4].(**float64) = &latMin
			*dest[5].(**float64) = &latMax
			*dest[6].(**float64) = &lonMin
			*dest[7].(**float64) = &lonMax
			*dest[8].(*float64) = 1.0
			*dest[9].(*float64) = 0.9
			*dest[10].(*float64) = 0.8
			return nil
		}})

	s, err := repo.Stats(ctx, types.StructuredFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), s.FloatCount)
	assert.Equal(t, int64(17), s.ProfileCount)
	require.NotNil(t, s.Bounds)
	assert.InDelta(t, -30.0, s.Bounds.LatMin, 1e-9)
	assert.InDelta(t, 0.9, s.CoverageRatio[types.ParamTemperature], 1e-9)
}

// --- Get ---

func TestProfileRepository_Get_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.Get(ctx, "999", 1)
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundProfile, appErr.Code)
}
