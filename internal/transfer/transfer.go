// Package transfer is the HTTP transfer primitive behind the download
// manager. Progressive files are fetched with grab and resume from the
// partial file; HLS streams are fetched segment by segment into one file.
package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vmunix/stowaway/internal/download"
	"github.com/vmunix/stowaway/internal/hls"
)

// Defaults applied to a zero Config.
const (
	DefaultProgressInterval = 500 * time.Millisecond
	DefaultPrefetch         = 4
)

// Config configures the transfer primitive.
type Config struct {
	// TempDir receives in-flight files. The library moves them out on completion.
	TempDir string
	// ProgressInterval is how often a progressive task samples its progress.
	ProgressInterval time.Duration
	// Prefetch is how many HLS segments are fetched concurrently.
	Prefetch int
}

// Transferer creates download tasks.
type Transferer struct {
	cfg       Config
	http      *http.Client
	manifests hls.Fetcher
	log       *slog.Logger
}

var _ download.Transferer = (*Transferer)(nil)

// New creates a transfer primitive. manifests fetches HLS playlists.
func New(cfg Config, manifests hls.Fetcher, log *slog.Logger) *Transferer {
	if log == nil {
		log = slog.Default()
	}
	if cfg.TempDir == "" {
		cfg.TempDir = filepath.Join(os.TempDir(), "stowaway")
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = DefaultProgressInterval
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = DefaultPrefetch
	}
	return &Transferer{
		cfg:       cfg,
		http:      &http.Client{},
		manifests: manifests,
		log:       log.With("component", "transfer"),
	}
}

// CreateTask prepares a task for rawURL. The task starts on Resume and stops
// when ctx is cancelled.
func (t *Transferer) CreateTask(ctx context.Context, rawURL string, headers map[string]string, l download.Listener) (download.TaskHandle, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: unsupported url %q", download.ErrTransferCreation, rawURL)
	}
	if err := os.MkdirAll(t.cfg.TempDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: temp dir: %v", download.ErrTransferCreation, err)
	}

	var (
		dst  string
		work worker
		kind string
	)
	if IsPlaylist(u) {
		kind = "hls"
		dst = filepath.Join(t.cfg.TempDir, uuid.NewString()+".ts")
		work = newSegmentWorker(t.http, t.manifests, rawURL, dst, headers, t.cfg.Prefetch)
	} else {
		kind = "progressive"
		dst = filepath.Join(t.cfg.TempDir, uuid.NewString()+mediaExt(u))
		work = newProgressiveWorker(t.http, rawURL, dst, headers, t.cfg.ProgressInterval)
	}

	t.log.Debug("task created", "kind", kind, "url", rawURL, "dest", dst)
	return newTask(ctx, dst, work, l, t.log.With("dest", filepath.Base(dst))), nil
}

// IsPlaylist reports whether u names an HLS playlist.
func IsPlaylist(u *url.URL) bool {
	return strings.EqualFold(path.Ext(u.Path), ".m3u8")
}

func mediaExt(u *url.URL) string {
	switch ext := strings.ToLower(path.Ext(u.Path)); ext {
	case ".mp4", ".m4v", ".mkv", ".webm", ".mov", ".ts":
		return ext
	default:
		return ".mp4"
	}
}
