package db

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"floatchat/internal/types"
)

func TestFloatRepository_EnsureExists(t *testing.T) {
	db := new(mockDBTX)
	repo := NewFloatRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx,
		mock.MatchedBy(func(sql string) bool {
			return strings.Contains(sql, "ON CONFLICT (platform_number) DO NOTHING")
		}),
		[]any{"2902746"},
	).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	require.NoError(t, repo.EnsureExists(ctx, "2902746"))
	db.AssertExpectations(t)
}

func TestFloatRepository_Get_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewFloatRepository(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanErr: pgx.ErrNoRows})

	_, err := repo.Get(ctx, "999")
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeNotFoundFloat, appErr.Code)
}

func TestHistoryRepository_Record_AssignsID(t *testing.T) {
	db := new(mockDBTX)
	repo := NewHistoryRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx,
		mock.MatchedBy(func(sql string) bool {
			return strings.Contains(sql, "INSERT INTO query_history")
		}),
		mock.MatchedBy(func(args []any) bool {
			id, ok := args[0].(string)
			// Empty filter JSON defaults to an empty object.
			return ok && id != "" && string(args[2].([]byte)) == "{}"
		}),
	).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	rec := &types.QueryRecord{UserQuery: "salinity near the equator", ResultCount: 3}
	require.NoError(t, repo.Record(ctx, rec))
	assert.NotEmpty(t, rec.ID)
	db.AssertExpectations(t)
}
