package db

import (
	"context"
	"fmt"
)

// schemaStatements is the versioned store DDL, applied idempotently at
// startup. The profile table holds one row per (float_id, cycle_number),
// so a profile replace is a single-row upsert and readers never observe a
// half-written profile.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS argo_profiles (
		id              BIGSERIAL PRIMARY KEY,
		float_id        TEXT NOT NULL,
		cycle_number    INTEGER NOT NULL,
		latitude        DOUBLE PRECISION NOT NULL,
		longitude       DOUBLE PRECISION NOT NULL,
		profile_date    TIMESTAMPTZ NOT NULL,
		ocean_region    TEXT NOT NULL DEFAULT '',
		levels          JSONB NOT NULL,
		has_pressure    BOOLEAN NOT NULL DEFAULT FALSE,
		has_temperature BOOLEAN NOT NULL DEFAULT FALSE,
		has_salinity    BOOLEAN NOT NULL DEFAULT FALSE,
		schema_version  INTEGER NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (float_id, cycle_number)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_argo_profiles_date
		ON argo_profiles (profile_date)`,
	`CREATE INDEX IF NOT EXISTS idx_argo_profiles_position
		ON argo_profiles (latitude, longitude)`,
	`CREATE INDEX IF NOT EXISTS idx_argo_profiles_float
		ON argo_profiles (float_id)`,
	`CREATE TABLE IF NOT EXISTS argo_floats (
		platform_number      TEXT PRIMARY KEY,
		deployment_date      TIMESTAMPTZ,
		deployment_latitude  DOUBLE PRECISION,
		deployment_longitude DOUBLE PRECISION,
		project_name         TEXT NOT NULL DEFAULT '',
		data_center          TEXT NOT NULL DEFAULT '',
		created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS query_history (
		id           UUID PRIMARY KEY,
		user_query   TEXT NOT NULL,
		filter       JSONB NOT NULL,
		execution_ms BIGINT NOT NULL,
		result_count INTEGER NOT NULL,
		answer       TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_query_history_created
		ON query_history (created_at DESC)`,
}

// EnsureSchema applies the store DDL. Statements are idempotent, so running
// it on every startup is safe.
func EnsureSchema(ctx context.Context, db DBTX) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
