// Package download owns the download queue: it admits requests under a
// concurrency cap, resolves them to concrete streams, drives the transfer
// primitive and hands finished files to the archive.
package download

import (
	"context"
	"maps"
	"time"
)

// Request is a logical download created at the client boundary. It is
// immutable once enqueued.
type Request struct {
	ID          string            `json:"id"`
	SourceURL   string            `json:"source_url"`
	Headers     map[string]string `json:"headers,omitempty"`
	Title       string            `json:"title"`
	ImageURL    string            `json:"image_url,omitempty"`
	IsEpisode   bool              `json:"is_episode"`
	ShowTitle   string            `json:"show_title,omitempty"`
	Season      int               `json:"season,omitempty"`
	Episode     int               `json:"episode,omitempty"`
	SubtitleURL string            `json:"subtitle_url,omitempty"`
	ModuleID    string            `json:"module_id,omitempty"`
}

// Key returns the identity used to reject duplicate requests.
func (r Request) Key() string {
	if r.IsEpisode && r.ShowTitle != "" {
		return EpisodeKey(r.ShowTitle, r.Season, r.Episode)
	}
	return ItemKey(r.ID)
}

func (r Request) clone() Request {
	r.Headers = maps.Clone(r.Headers)
	return r
}

// Entry is a presentation copy of a live queue entry.
type Entry struct {
	Request
	Status   Status  `json:"status"`
	Progress float64 `json:"progress"`
	// Resolving is set while the stream is being resolved. The entry still
	// reports StatusQueued but already holds an admission slot.
	Resolving  bool      `json:"resolving,omitempty"`
	Paused     bool      `json:"paused,omitempty"`
	Cancelling bool      `json:"cancelling,omitempty"`
	StreamURL  string    `json:"stream_url,omitempty"`
	Variant    string    `json:"variant,omitempty"`
	QueuedAt   time.Time `json:"queued_at"`
	StartedAt  time.Time `json:"started_at,omitzero"`
}

// Snapshot is a point-in-time view of the live registries.
type Snapshot struct {
	Queued []Entry `json:"queued"`
	Active []Entry `json:"active"`
}

// Idle reports whether nothing is queued, resolving, or downloading.
func (s Snapshot) Idle() bool {
	return len(s.Queued) == 0 && len(s.Active) == 0
}

// Listener receives callbacks from a transfer task. Implementations may be
// called from any goroutine.
type Listener interface {
	OnProgress(fraction float64)
	OnFinished(tempPath string)
	OnFailed(err error)
}

// TaskHandle controls a created transfer. Methods must not block on the
// task's own callbacks.
type TaskHandle interface {
	Resume()
	Suspend()
	Cancel()
}

//go:generate mockgen -destination=mocks/mock_transfer.go -package=mocks . Transferer,TaskHandle

// Transferer creates transfer tasks. A task does nothing until resumed and
// reports exactly one of OnFinished or OnFailed.
type Transferer interface {
	CreateTask(ctx context.Context, rawURL string, headers map[string]string, l Listener) (TaskHandle, error)
}

// Archive receives finished transfers.
type Archive interface {
	// Contains reports whether a persisted asset has the given duplicate key.
	Contains(key string) bool
	// Complete moves the temporary file into durable storage and records an
	// asset for req. A non-empty asset ID with a non-nil error means the
	// asset exists in memory but could not be persisted.
	Complete(tempPath string, req Request) (assetID string, localPath string, err error)
}
