package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"floatchat/internal/types"
)

// defaultQueryLimit caps unbounded profile queries. Chat applies its own,
// tighter context cap on top of this.
const defaultQueryLimit = 500

// ProfileRepository provides data access for the argo_profiles table.
// Profile identity is (float_id, cycle_number); writes are single-row
// upserts so re-ingesting a cycle replaces it atomically.
type ProfileRepository struct {
	db DBTX
}

// NewProfileRepository creates a ProfileRepository backed by the given
// database connection (pool or transaction).
func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// profileColumns is the standard column set for profile reads. The order
// must match scanProfile.
const profileColumns = `float_id, cycle_number, latitude, longitude,
	profile_date, ocean_region, levels, schema_version, created_at`

// scanProfile scans one profile row. Columns must match profileColumns.
func scanProfile(row pgx.Row) (*types.FloatProfile, error) {
	var p types.FloatProfile
	var levels []byte
	err := row.Scan(
		&p.FloatID,
		&p.CycleNumber,
		&p.Latitude,
		&p.Longitude,
		&p.Timestamp,
		&p.OceanRegion,
		&levels,
		&p.SchemaVersion,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(levels, &p.Series); err != nil {
		return nil, fmt.Errorf("decode level series: %w", err)
	}
	return &p, nil
}

// Upsert inserts a profile or replaces the stored row with the same
// (float_id, cycle_number) identity. Last write wins.
func (r *ProfileRepository) Upsert(ctx context.Context, p *types.FloatProfile) error {
	levels, err := json.Marshal(p.Series)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "encode level series", err)
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO argo_profiles (
			float_id, cycle_number, latitude, longitude, profile_date,
			ocean_region, levels, has_pressure, has_temperature, has_salinity,
			schema_version
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (float_id, cycle_number) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			profile_date = EXCLUDED.profile_date,
			ocean_region = EXCLUDED.ocean_region,
			levels = EXCLUDED.levels,
			has_pressure = EXCLUDED.has_pressure,
			has_temperature = EXCLUDED.has_temperature,
			has_salinity = EXCLUDED.has_salinity,
			schema_version = EXCLUDED.schema_version,
			updated_at = now()`,
		p.FloatID,
		p.CycleNumber,
		p.Latitude,
		p.Longitude,
		p.Timestamp,
		p.OceanRegion,
		levels,
		p.Has(types.ParamPressure),
		p.Has(types.ParamTemperature),
		p.Has(types.ParamSalinity),
		p.SchemaVersion,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "upsert profile", err)
	}
	return nil
}

// presenceColumn maps a parameter to its coverage flag column.
var presenceColumn = map[types.Parameter]string{
	types.ParamPressure:    "has_pressure",
	types.ParamTemperature: "has_temperature",
	types.ParamSalinity:    "has_salinity",
}

// buildWhere translates a StructuredFilter into a WHERE clause with numbered
// placeholders. An empty filter yields an empty clause (match everything).
func buildWhere(filter types.StructuredFilter) (string, []any) {
	var conditions []string
	var args []any
	argIdx := 1

	next := func(v any) string {
		args = append(args, v)
		ph := fmt.Sprintf("$%d", argIdx)
		argIdx++
		return ph
	}

	if filter.Time != nil {
		if !filter.Time.Start.IsZero() {
			conditions = append(conditions, "profile_date >= "+next(filter.Time.Start))
		}
		if !filter.Time.End.IsZero() {
			conditions = append(conditions, "profile_date <= "+next(filter.Time.End))
		}
	}
	if b := filter.Region; b != nil {
		conditions = append(conditions,
			fmt.Sprintf("latitude BETWEEN %s AND %s", next(b.LatMin), next(b.LatMax)),
			fmt.Sprintf("longitude BETWEEN %s AND %s", next(b.LonMin), next(b.LonMax)))
	}
	if filter.Region == nil && filter.RegionName != "" {
		// Basin names match the ocean_region column tagged at ingest time.
		conditions = append(conditions, "ocean_region = "+next(filter.RegionName))
	}
	if len(filter.FloatIDs) > 0 {
		conditions = append(conditions, "float_id = ANY("+next(filter.FloatIDs)+")")
	}
	if col, ok := presenceColumn[filter.Parameter]; ok {
		conditions = append(conditions, col+" = TRUE")
	}
	if cmp := filter.Compare; cmp != nil && cmp.Op.Valid() && cmp.Parameter.Valid() {
		// Match profiles where any level of the parameter satisfies the
		// comparison. The operator is from a closed set, never user text.
		conditions = append(conditions, fmt.Sprintf(
			`EXISTS (
				SELECT 1
				FROM jsonb_array_elements(levels) s,
				     jsonb_array_elements(s->'levels') l
				WHERE s->>'parameter' = %s
				  AND (l->>'value')::double precision %s %s
			)`,
			next(string(cmp.Parameter)), cmp.Op, next(cmp.Value)))
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// Query returns profiles matching the filter in deterministic order:
// profile_date, then float_id, then cycle_number, all ascending.
func (r *ProfileRepository) Query(ctx context.Context, filter types.StructuredFilter) ([]types.FloatProfile, error) {
	where, args := buildWhere(filter)
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	args = append(args, limit)

	sql := fmt.Sprintf(
		`SELECT %s FROM argo_profiles %s
		 ORDER BY profile_date ASC, float_id ASC, cycle_number ASC
		 LIMIT $%d`,
		profileColumns, where, len(args))

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "query profiles", err)
	}
	defer rows.Close()

	var profiles []types.FloatProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "scan profile", err)
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "iterate profiles", err)
	}
	return profiles, nil
}

// Count returns the number of profiles matching the filter, ignoring Limit.
func (r *ProfileRepository) Count(ctx context.Context, filter types.StructuredFilter) (int64, error) {
	where, args := buildWhere(filter)
	var n int64
	err := r.db.QueryRow(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM argo_profiles %s", where), args...).Scan(&n)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "count profiles", err)
	}
	return n, nil
}

// Stats computes the aggregate summary over profiles matching the filter in
// a single pass on the server. It never errors on an empty store: counts
// come back zero and the nullable bounds stay nil.
func (r *ProfileRepository) Stats(ctx context.Context, filter types.StructuredFilter) (*types.StatsSummary, error) {
	where, args := buildWhere(filter)
	sql := fmt.Sprintf(
		`SELECT COUNT(DISTINCT float_id), COUNT(*),
			MIN(profile_date), MAX(profile_date),
			MIN(latitude), MAX(latitude),
			MIN(longitude), MAX(longitude),
			COALESCE(AVG(has_pressure::int), 0),
			COALESCE(AVG(has_temperature::int), 0),
			COALESCE(AVG(has_salinity::int), 0)
		 FROM argo_profiles %s`, where)

	var s types.StatsSummary
	var (
		timeMin, timeMax                   *time.Time
		latMin, latMax, lonMin, lonMax     *float64
		covPressure, covTemp, covSalinity  float64
	)
	err := r.db.QueryRow(ctx, sql, args...).Scan(
		&s.FloatCount,
		&s.ProfileCount,
		&timeMin,
		&timeMax,
		&latMin,
		&latMax,
		&lonMin,
		&lonMax,
		&covPressure,
		&covTemp,
		&covSalinity,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "aggregate stats", err)
	}

	s.TimeMin, s.TimeMax = timeMin, timeMax
	if latMin != nil && latMax != nil && lonMin != nil && lonMax != nil {
		s.Bounds = &types.BoundingBox{
			LatMin: *latMin, LatMax: *latMax,
			LonMin: *lonMin, LonMax: *lonMax,
		}
	}
	s.CoverageRatio = map[types.Parameter]float64{
		types.ParamPressure:    covPressure,
		types.ParamTemperature: covTemp,
		types.ParamSalinity:    covSalinity,
	}
	return &s, nil
}

// Get fetches a single profile by identity.
func (r *ProfileRepository) Get(ctx context.Context, floatID string, cycleNumber int) (*types.FloatProfile, error) {
	p, err := scanProfile(r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM argo_profiles WHERE float_id = $1 AND cycle_number = $2`, profileColumns),
		floatID, cycleNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundProfile,
			fmt.Sprintf("no profile for float %s cycle %d", floatID, cycleNumber), nil)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "get profile", err)
	}
	return p, nil
}
