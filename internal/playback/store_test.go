package playback

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE watch_progress (
		asset_id TEXT PRIMARY KEY,
		progress REAL NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
	require.NoError(t, err)
	return db
}

func TestStore_SetAndProgress(t *testing.T) {
	s := NewStore(setupTestDB(t))
	ctx := context.Background()

	p, err := s.Progress(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, p)

	require.NoError(t, s.Set(ctx, "a", 0.5))
	require.NoError(t, s.Set(ctx, "a", 0.97))

	p, err = s.Progress(ctx, "a")
	require.NoError(t, err)
	assert.InDelta(t, 0.97, p, 1e-9)
}

func TestStore_SetRejectsOutOfRange(t *testing.T) {
	s := NewStore(setupTestDB(t))

	assert.ErrorIs(t, s.Set(context.Background(), "a", 1.2), ErrInvalidProgress)
	assert.ErrorIs(t, s.Set(context.Background(), "a", -0.1), ErrInvalidProgress)
}

func TestStore_Forget(t *testing.T) {
	s := NewStore(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", 1))
	require.NoError(t, s.Forget(ctx, "a"))

	p, err := s.Progress(ctx, "a")
	require.NoError(t, err)
	assert.Zero(t, p)
}
