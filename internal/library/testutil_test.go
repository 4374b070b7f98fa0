package library

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/vmunix/stowaway/internal/download"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
	require.NoError(t, err)
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestStore returns a store rooted in a temp dir plus its kv.
func newTestStore(t *testing.T) (*Store, *SQLiteKV, string) {
	t.Helper()
	kv := NewSQLiteKV(setupTestDB(t))
	root := filepath.Join(t.TempDir(), "downloads")
	return NewStore(kv, Config{Root: root}, nil, testLogger()), kv, root
}

// writeFile creates a file with size bytes and returns its path.
func writeFile(t *testing.T, path string, size int) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
	return path
}

// completeFile stores a fresh temp file for req.
func completeFile(t *testing.T, s *Store, req download.Request, size int) Asset {
	t.Helper()
	tmp := writeFile(t, filepath.Join(t.TempDir(), req.ID+".mp4"), size)
	id, _, err := s.Complete(tmp, req)
	require.NoError(t, err)
	a, err := s.Get(id)
	require.NoError(t, err)
	return a
}

func episode(id, show string, season, ep int) download.Request {
	return download.Request{
		ID: id, SourceURL: "https://demo.example/" + id, Title: "Episode " + id,
		IsEpisode: true, ShowTitle: show, Season: season, Episode: ep,
	}
}

// failingKV rejects writes.
type failingKV struct{ KV }

func (failingKV) Set(context.Context, string, []byte) error {
	return errors.New("disk is read-only")
}
