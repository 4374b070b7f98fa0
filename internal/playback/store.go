// Package playback records how far each asset has been watched.
package playback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidProgress indicates a fraction outside [0, 1].
var ErrInvalidProgress = errors.New("progress must be between 0 and 1")

// Store persists watch progress in the watch_progress table.
type Store struct {
	db *sql.DB
}

// NewStore creates a watch progress store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Progress returns the watched fraction of an asset. Unknown assets are 0.
func (s *Store) Progress(ctx context.Context, assetID string) (float64, error) {
	var p float64
	err := s.db.QueryRowContext(ctx,
		"SELECT progress FROM watch_progress WHERE asset_id = ?", assetID,
	).Scan(&p)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get progress %s: %w", assetID, err)
	}
	return p, nil
}

// Set records the watched fraction of an asset.
func (s *Store) Set(ctx context.Context, assetID string, progress float64) error {
	if progress < 0 || progress > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidProgress, progress)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO watch_progress (asset_id, progress, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(asset_id) DO UPDATE SET progress = excluded.progress, updated_at = excluded.updated_at`,
		assetID, progress, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set progress %s: %w", assetID, err)
	}
	return nil
}

// Forget removes the progress of a deleted asset.
func (s *Store) Forget(ctx context.Context, assetID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM watch_progress WHERE asset_id = ?", assetID); err != nil {
		return fmt.Errorf("forget progress %s: %w", assetID, err)
	}
	return nil
}
