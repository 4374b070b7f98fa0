package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cavaliergopher/grab/v3"

	"github.com/vmunix/stowaway/internal/events"
	"github.com/vmunix/stowaway/internal/library"
)

// SubtitleStore records downloaded subtitles.
type SubtitleStore interface {
	Get(id string) (library.Asset, error)
	AttachSubtitle(ctx context.Context, id, subtitleURL, localPath string) error
}

// SubtitleHandler fetches the subtitle of a completed download and stores it
// next to the asset file.
type SubtitleHandler struct {
	*BaseHandler
	store SubtitleStore
}

// NewSubtitleHandler creates a subtitle handler.
func NewSubtitleHandler(bus *events.Bus, store SubtitleStore, logger *slog.Logger) *SubtitleHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubtitleHandler{
		BaseHandler: NewBaseHandler(bus, logger.With("handler", "subtitle")),
		store:       store,
	}
}

// Name returns the handler name.
func (h *SubtitleHandler) Name() string {
	return "subtitle"
}

// Start begins processing events.
func (h *SubtitleHandler) Start(ctx context.Context) error {
	completed := h.Subscribe(events.EventDownloadCompleted, 100)
	defer h.Unsubscribe()

	for {
		select {
		case e := <-completed:
			if e == nil {
				return nil // Channel closed
			}
			h.handleCompleted(ctx, e.(*events.DownloadCompleted))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *SubtitleHandler) handleCompleted(ctx context.Context, e *events.DownloadCompleted) {
	if e.SubtitleURL == "" || e.AssetID == "" {
		return
	}
	asset, err := h.store.Get(e.AssetID)
	if err != nil {
		h.Logger().Warn("asset gone before subtitle download", "asset_id", e.AssetID, "error", err)
		return
	}

	dst := SubtitlePath(asset.LocalPath, e.SubtitleURL)
	if err := h.fetch(ctx, e.SubtitleURL, dst, e.Headers); err != nil {
		h.Logger().Error("subtitle download failed", "asset_id", e.AssetID, "url", e.SubtitleURL, "error", err)
		return
	}
	if err := h.store.AttachSubtitle(ctx, e.AssetID, e.SubtitleURL, dst); err != nil {
		h.Logger().Error("failed to attach subtitle", "asset_id", e.AssetID, "error", err)
		return
	}
	h.Logger().Info("subtitle attached", "asset_id", e.AssetID, "path", dst)
}

func (h *SubtitleHandler) fetch(ctx context.Context, rawURL, dst string, headers map[string]string) error {
	req, err := grab.NewRequest(dst+".part", rawURL)
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	req.NoResume = true
	for k, v := range headers {
		req.HTTPRequest.Header.Set(k, v)
	}

	client := grab.NewClient()
	client.UserAgent = headers["User-Agent"]
	resp := client.Do(req)
	if err := resp.Err(); err != nil {
		_ = os.Remove(dst + ".part")
		return err
	}
	if err := os.Rename(resp.Filename, dst); err != nil {
		return fmt.Errorf("rename subtitle: %w", err)
	}
	return nil
}

// SubtitlePath is where the subtitle for an asset file is stored: the asset
// path with the subtitle's extension, .vtt when the URL has none.
func SubtitlePath(assetPath, subtitleURL string) string {
	ext := ".vtt"
	if u, err := url.Parse(subtitleURL); err == nil {
		switch e := strings.ToLower(path.Ext(u.Path)); e {
		case ".vtt", ".srt", ".ass":
			ext = e
		}
	}
	return strings.TrimSuffix(assetPath, filepath.Ext(assetPath)) + ext
}
