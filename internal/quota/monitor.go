// Package quota tracks durable storage usage against a limit and evicts
// assets when the limit is nearly reached.
package quota

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/vmunix/stowaway/internal/events"
	"github.com/vmunix/stowaway/internal/library"
)

// Defaults applied to a zero Config.
const (
	DefaultWarningThreshold = 0.8
	DefaultCleanupThreshold = 0.95
	DefaultWatchedThreshold = 0.95

	// reclaimFraction of the limit is freed by one eviction pass.
	reclaimFraction = 0.2
)

// Library is the part of the asset store the monitor needs.
type Library interface {
	Assets() []library.Asset
	FileSize(a library.Asset) int64
	Evict(ctx context.Context, id string) (library.Asset, error)
}

var _ Library = (*library.Store)(nil)

// WatchProgress reports how much of an asset has been watched.
type WatchProgress interface {
	Progress(ctx context.Context, assetID string) (float64, error)
}

// Config configures the monitor.
type Config struct {
	Limit            int64 // bytes; 0 disables the monitor
	WarningThreshold float64
	CleanupThreshold float64
	AutoCleanup      bool
	WatchedThreshold float64
}

func (c Config) withDefaults() Config {
	if c.WarningThreshold <= 0 {
		c.WarningThreshold = DefaultWarningThreshold
	}
	if c.CleanupThreshold <= 0 {
		c.CleanupThreshold = DefaultCleanupThreshold
	}
	if c.WatchedThreshold <= 0 {
		c.WatchedThreshold = DefaultWatchedThreshold
	}
	return c
}

// Usage is the result of a recompute.
type Usage struct {
	Used   int64   `json:"used_bytes"`
	Limit  int64   `json:"limit_bytes"`
	Ratio  float64 `json:"ratio"`
	Assets int     `json:"assets"`
}

// Cleanup is the result of an eviction pass.
type Cleanup struct {
	BytesFreed int64    `json:"bytes_freed"`
	Deleted    []string `json:"deleted"`
}

// Monitor recomputes usage and evicts assets. Recompute and Evict are
// serialized.
type Monitor struct {
	lib   Library
	watch WatchProgress
	bus   *events.Bus
	cfg   Config
	log   *slog.Logger

	mu   sync.Mutex
	last Usage
}

// NewMonitor creates a quota monitor.
func NewMonitor(lib Library, watch WatchProgress, bus *events.Bus, cfg Config, log *slog.Logger) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{
		lib:   lib,
		watch: watch,
		bus:   bus,
		cfg:   cfg.withDefaults(),
		log:   log.With("component", "quota"),
	}
}

// Last returns the most recent usage without touching the filesystem.
func (m *Monitor) Last() Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Recompute sums the sizes of all assets. At the warning threshold it emits
// a storage warning; at the cleanup threshold with auto cleanup enabled it
// evicts.
func (m *Monitor) Recompute(ctx context.Context) (Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.usage()
	m.last = u
	if m.cfg.Limit <= 0 {
		return u, nil
	}

	m.log.Debug("storage usage",
		"used", humanize.Bytes(uint64(u.Used)),
		"limit", humanize.Bytes(uint64(u.Limit)),
		"ratio", u.Ratio)

	if u.Ratio >= m.cfg.WarningThreshold {
		m.log.Warn("storage usage above warning threshold",
			"ratio", fmt.Sprintf("%.2f", u.Ratio), "threshold", m.cfg.WarningThreshold)
		m.publish(ctx, &events.StorageWarning{
			BaseEvent:  events.NewBaseEvent(events.EventStorageWarning, events.EntityStorage, "quota"),
			UsedBytes:  u.Used,
			LimitBytes: u.Limit,
			Ratio:      u.Ratio,
		})
	}

	if u.Ratio >= m.cfg.CleanupThreshold && m.cfg.AutoCleanup {
		if _, err := m.evict(ctx); err != nil {
			return u, err
		}
		m.last = m.usage()
		return m.last, nil
	}
	return u, nil
}

// Evict deletes assets until a fifth of the limit has been freed or no
// candidates remain.
func (m *Monitor) Evict(ctx context.Context) (Cleanup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.evict(ctx)
	m.last = m.usage()
	return c, err
}

func (m *Monitor) usage() Usage {
	assets := m.lib.Assets()
	u := Usage{Limit: m.cfg.Limit, Assets: len(assets)}
	for _, a := range assets {
		u.Used += m.lib.FileSize(a)
	}
	if u.Limit > 0 {
		u.Ratio = float64(u.Used) / float64(u.Limit)
	}
	return u
}

type candidate struct {
	asset   library.Asset
	size    int64
	watched bool
}

// candidates orders assets fully watched first, then by size descending.
func (m *Monitor) candidates(ctx context.Context) []candidate {
	assets := m.lib.Assets()
	out := make([]candidate, 0, len(assets))
	for _, a := range assets {
		c := candidate{asset: a, size: m.lib.FileSize(a)}
		if m.watch != nil {
			p, err := m.watch.Progress(ctx, a.ID)
			if err != nil {
				m.log.Warn("watch progress unavailable", "asset_id", a.ID, "error", err)
			}
			c.watched = p >= m.cfg.WatchedThreshold
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].watched != out[j].watched {
			return out[i].watched
		}
		return out[i].size > out[j].size
	})
	return out
}

func (m *Monitor) evict(ctx context.Context) (Cleanup, error) {
	target := int64(float64(m.cfg.Limit) * reclaimFraction)
	var c Cleanup

	for _, cand := range m.candidates(ctx) {
		if c.BytesFreed >= target {
			break
		}
		if err := ctx.Err(); err != nil {
			return c, err
		}
		if _, err := m.lib.Evict(ctx, cand.asset.ID); err != nil {
			m.log.Error("eviction failed", "asset_id", cand.asset.ID, "error", err)
			continue
		}
		c.BytesFreed += cand.size
		c.Deleted = append(c.Deleted, cand.asset.ID)
		m.log.Info("asset evicted", "asset_id", cand.asset.ID, "name", cand.asset.Name,
			"size", humanize.Bytes(uint64(cand.size)), "watched", cand.watched)
	}

	if len(c.Deleted) == 0 {
		m.log.Warn("eviction found nothing to delete")
		return c, nil
	}

	m.log.Info("eviction finished", "deleted", len(c.Deleted), "freed", humanize.Bytes(uint64(c.BytesFreed)))
	m.publish(ctx, &events.StorageCleanup{
		BaseEvent:  events.NewBaseEvent(events.EventStorageCleanup, events.EntityStorage, "quota"),
		BytesFreed: c.BytesFreed,
		Deleted:    c.Deleted,
	})
	return c, nil
}

func (m *Monitor) publish(ctx context.Context, e events.Event) {
	if m.bus == nil {
		return
	}
	if err := m.bus.Publish(ctx, e); err != nil {
		m.log.Warn("publish failed", "type", e.EventType(), "error", err)
	}
}
