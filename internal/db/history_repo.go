package db

import (
	"context"

	"github.com/google/uuid"

	"floatchat/internal/types"
)

// HistoryRepository records answered chat queries in the query_history
// table. History writes are best-effort from the caller's point of view: a
// failed insert never fails the chat answer.
type HistoryRepository struct {
	db DBTX
}

// NewHistoryRepository creates a HistoryRepository backed by the given
// database connection (pool or transaction).
func NewHistoryRepository(db DBTX) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Record inserts one answered query. A missing ID is assigned here.
func (r *HistoryRepository) Record(ctx context.Context, rec *types.QueryRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	filter := rec.FilterJSON
	if len(filter) == 0 {
		filter = []byte("{}")
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO query_history (id, user_query, filter, execution_ms, result_count, answer)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID,
		rec.UserQuery,
		filter,
		rec.ExecutionMS,
		rec.ResultCount,
		rec.Answer,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "record query", err)
	}
	return nil
}

// Recent returns the newest records first.
func (r *HistoryRepository) Recent(ctx context.Context, limit int) ([]types.QueryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, user_query, filter, execution_ms, result_count, answer, created_at
		 FROM query_history ORDER BY created_at DESC LIMIT $1`,
		limit)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "list query history", err)
	}
	defer rows.Close()

	var records []types.QueryRecord
	for rows.Next() {
		var rec types.QueryRecord
		err := rows.Scan(&rec.ID, &rec.UserQuery, &rec.FilterJSON,
			&rec.ExecutionMS, &rec.ResultCount, &rec.Answer, &rec.CreatedAt)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "scan query record", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "iterate query history", err)
	}
	return records, nil
}
