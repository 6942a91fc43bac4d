package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"floatchat/internal/types"
)

// FloatRepository provides data access for the argo_floats metadata table.
type FloatRepository struct {
	db DBTX
}

// NewFloatRepository creates a FloatRepository backed by the given database
// connection (pool or transaction).
func NewFloatRepository(db DBTX) *FloatRepository {
	return &FloatRepository{db: db}
}

const floatColumns = `platform_number, deployment_date, deployment_latitude,
	deployment_longitude, project_name, data_center, created_at, updated_at`

func scanFloat(row pgx.Row) (*types.ArgoFloat, error) {
	var f types.ArgoFloat
	err := row.Scan(
		&f.PlatformNumber,
		&f.DeploymentDate,
		&f.DeploymentLat,
		&f.DeploymentLon,
		&f.ProjectName,
		&f.DataCenter,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// Upsert inserts or refreshes a float's metadata.
func (r *FloatRepository) Upsert(ctx context.Context, f *types.ArgoFloat) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO argo_floats (
			platform_number, deployment_date, deployment_latitude,
			deployment_longitude, project_name, data_center
		 ) VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (platform_number) DO UPDATE SET
			deployment_date = COALESCE(EXCLUDED.deployment_date, argo_floats.deployment_date),
			deployment_latitude = COALESCE(EXCLUDED.deployment_latitude, argo_floats.deployment_latitude),
			deployment_longitude = COALESCE(EXCLUDED.deployment_longitude, argo_floats.deployment_longitude),
			project_name = CASE WHEN EXCLUDED.project_name <> '' THEN EXCLUDED.project_name ELSE argo_floats.project_name END,
			data_center = CASE WHEN EXCLUDED.data_center <> '' THEN EXCLUDED.data_center ELSE argo_floats.data_center END,
			updated_at = now()`,
		f.PlatformNumber,
		f.DeploymentDate,
		f.DeploymentLat,
		f.DeploymentLon,
		f.ProjectName,
		f.DataCenter,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "upsert float", err)
	}
	return nil
}

// EnsureExists registers a platform number with no metadata if it is not
// already present. Ingestion calls this for every parsed profile.
func (r *FloatRepository) EnsureExists(ctx context.Context, platformNumber string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO argo_floats (platform_number) VALUES ($1)
		 ON CONFLICT (platform_number) DO NOTHING`,
		platformNumber)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "register float", err)
	}
	return nil
}

// Get fetches a single float's metadata.
func (r *FloatRepository) Get(ctx context.Context, platformNumber string) (*types.ArgoFloat, error) {
	f, err := scanFloat(r.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM argo_floats WHERE platform_number = $1`, floatColumns),
		platformNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundFloat,
			fmt.Sprintf("no float %s", platformNumber), nil)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "get float", err)
	}
	return f, nil
}

// List returns floats ordered by platform number.
func (r *FloatRepository) List(ctx context.Context, limit int) ([]types.ArgoFloat, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	rows, err := r.db.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM argo_floats ORDER BY platform_number ASC LIMIT $1`, floatColumns),
		limit)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "list floats", err)
	}
	defer rows.Close()

	var floats []types.ArgoFloat
	for rows.Next() {
		f, err := scanFloat(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "scan float", err)
		}
		floats = append(floats, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "iterate floats", err)
	}
	return floats, nil
}
