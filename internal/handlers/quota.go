package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/vmunix/stowaway/internal/events"
	"github.com/vmunix/stowaway/internal/quota"
)

// DefaultQuotaInterval is how often usage is recomputed without library changes.
const DefaultQuotaInterval = 10 * time.Minute

// UsageMonitor recomputes storage usage.
type UsageMonitor interface {
	Recompute(ctx context.Context) (quota.Usage, error)
}

// ProgressForgetter drops watch progress for deleted assets.
type ProgressForgetter interface {
	Forget(ctx context.Context, assetID string) error
}

// QuotaHandler keeps storage usage current. It recomputes on every library
// change and on a timer, and forgets watch progress of deleted assets.
type QuotaHandler struct {
	*BaseHandler
	monitor  UsageMonitor
	progress ProgressForgetter
	interval time.Duration
}

// NewQuotaHandler creates a quota handler. progress may be nil.
func NewQuotaHandler(bus *events.Bus, monitor UsageMonitor, progress ProgressForgetter, interval time.Duration, logger *slog.Logger) *QuotaHandler {
	if interval <= 0 {
		interval = DefaultQuotaInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QuotaHandler{
		BaseHandler: NewBaseHandler(bus, logger.With("handler", "quota")),
		monitor:     monitor,
		progress:    progress,
		interval:    interval,
	}
}

// Name returns the handler name.
func (h *QuotaHandler) Name() string {
	return "quota"
}

// Start begins processing events.
func (h *QuotaHandler) Start(ctx context.Context) error {
	changes := h.Subscribe(events.EventLibraryChanged, 100)
	deletes := h.Subscribe(events.EventAssetDeleted, 100)
	defer h.Unsubscribe()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.recompute(ctx)
	for {
		select {
		case e := <-changes:
			if e == nil {
				return nil // Channel closed
			}
			drain(changes)
			h.recompute(ctx)
		case e := <-deletes:
			if e == nil {
				return nil // Channel closed
			}
			h.handleAssetDeleted(ctx, e.(*events.AssetDeleted))
		case <-ticker.C:
			h.recompute(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *QuotaHandler) recompute(ctx context.Context) {
	u, err := h.monitor.Recompute(ctx)
	if err != nil {
		h.Logger().Error("quota recompute failed", "error", err)
		return
	}
	h.Logger().Debug("quota recomputed", "used", u.Used, "limit", u.Limit, "assets", u.Assets)
}

func (h *QuotaHandler) handleAssetDeleted(ctx context.Context, e *events.AssetDeleted) {
	if h.progress == nil {
		return
	}
	if err := h.progress.Forget(ctx, e.EntityID()); err != nil {
		h.Logger().Warn("failed to forget watch progress", "asset_id", e.EntityID(), "error", err)
	}
}
