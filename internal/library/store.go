package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/vmunix/stowaway/internal/download"
	"github.com/vmunix/stowaway/internal/events"
)

// AssetsKey is where the asset collection is persisted.
const AssetsKey = "library/downloaded_assets"

// Config locates the durable storage directories.
type Config struct {
	// Root is the durable storage directory.
	Root string
	// LegacyRoots are older locations whose files are moved into Root during
	// reconciliation.
	LegacyRoots []string
}

// Store is the persistent asset store. The in-memory collection is the
// source of truth for the process; writes to the KV store are best effort.
type Store struct {
	kv  KV
	cfg Config
	bus *events.Bus
	log *slog.Logger
	now func() time.Time

	mu     sync.RWMutex
	assets []Asset
	sizes  *sizeCache
}

// NewStore creates an asset store. Load or Reconcile populates it.
func NewStore(kv KV, cfg Config, bus *events.Bus, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{
		kv:    kv,
		cfg:   cfg,
		bus:   bus,
		log:   log.With("component", "library"),
		now:   time.Now,
		sizes: newSizeCache(),
	}
}

// Root returns the durable storage directory.
func (s *Store) Root() string {
	return s.cfg.Root
}

// Load reads the persisted collection. A missing record is an empty library.
func (s *Store) Load(ctx context.Context) error {
	assets, err := s.read(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.assets = assets
	s.sizes.reset()
	s.mu.Unlock()
	return nil
}

func (s *Store) read(ctx context.Context) ([]Asset, error) {
	data, err := s.kv.Get(ctx, AssetsKey)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load assets: %w", err)
	}
	assets, skipped, err := decodeAssets(data)
	if err != nil {
		s.log.Error("asset collection unreadable, starting empty", "error", err)
		return nil, nil
	}
	if skipped > 0 {
		s.log.Warn("skipped undecodable asset records", "count", skipped)
	}
	return assets, nil
}

// persist writes the whole collection. Callers hold s.mu.
func (s *Store) persist(ctx context.Context) error {
	data, err := json.Marshal(s.assets)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := s.kv.Set(ctx, AssetsKey, data); err != nil {
		s.log.Error("failed to persist assets", "count", len(s.assets), "error", err)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// Assets returns a copy of the collection.
func (s *Store) Assets() []Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.assets)
}

// Get returns the asset with the given ID.
func (s *Store) Get(id string) (Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.index(id); i >= 0 {
		return s.assets[i], nil
	}
	return Asset{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Contains reports whether an asset has the given duplicate key.
func (s *Store) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.ContainsFunc(s.assets, func(a Asset) bool { return a.Key() == key })
}

func (s *Store) index(id string) int {
	return slices.IndexFunc(s.assets, func(a Asset) bool { return a.ID == id })
}

// Complete moves a finished transfer into the durable root and records it.
// A non-empty asset ID with ErrPersistence means the asset is recorded in
// memory only.
func (s *Store) Complete(tempPath string, req download.Request) (string, string, error) {
	if err := os.MkdirAll(s.cfg.Root, 0o755); err != nil {
		return "", "", fmt.Errorf("%w: create root: %v", ErrStorageIO, err)
	}

	base := SanitizeFilename(fileTitle(req))
	if base == "" {
		base = req.ID
	}

	s.mu.Lock()
	dst := uniquePath(s.cfg.Root, base, storedExt(tempPath, req.SourceURL))
	if err := moveFile(tempPath, dst); err != nil {
		s.mu.Unlock()
		return "", "", fmt.Errorf("%w: move %s: %v", ErrStorageIO, tempPath, err)
	}

	a := assetFromRequest(req, dst, s.now())
	if i := s.index(a.ID); i >= 0 {
		s.sizes.invalidate(s.assets[i])
		s.assets[i] = a
	} else {
		s.assets = append(s.assets, a)
	}
	s.sizes.invalidate(a)
	err := s.persist(context.Background())
	count := len(s.assets)
	s.mu.Unlock()

	s.log.Info("asset stored", "asset_id", a.ID, "path", dst, "size", humanize.Bytes(uint64(max(s.FileSize(a), 0))))
	s.changed(count, "complete")
	return a.ID, dst, err
}

// fileTitle is the stored file's base name before sanitising.
func fileTitle(req download.Request) string {
	if req.IsEpisode && req.ShowTitle != "" {
		name := fmt.Sprintf("%s - S%02dE%02d", req.ShowTitle, req.Season, req.Episode)
		if req.Title != "" && req.Title != req.ShowTitle {
			name += " - " + req.Title
		}
		return name
	}
	return req.Title
}

// Delete removes an asset and its files.
func (s *Store) Delete(ctx context.Context, id string) (Asset, error) {
	return s.remove(ctx, id, false)
}

// Evict removes an asset to reclaim space.
func (s *Store) Evict(ctx context.Context, id string) (Asset, error) {
	return s.remove(ctx, id, true)
}

func (s *Store) remove(ctx context.Context, id string, evicted bool) (Asset, error) {
	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return Asset{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	a := s.assets[i]
	size := s.sizes.file(a.LocalPath)

	for _, p := range []string{a.LocalPath, a.LocalSubtitlePath} {
		if p == "" {
			continue
		}
		if err := ValidatePath(p, s.cfg.Root); err != nil {
			s.log.Warn("refusing to delete file outside storage root", "asset_id", id, "path", p)
			continue
		}
		if err := removeFile(p); err != nil {
			s.mu.Unlock()
			return Asset{}, fmt.Errorf("%w: remove %s: %v", ErrStorageIO, p, err)
		}
	}

	s.sizes.invalidate(a)
	s.assets = slices.Delete(s.assets, i, i+1)
	err := s.persist(ctx)
	count := len(s.assets)
	s.mu.Unlock()

	s.log.Info("asset deleted", "asset_id", id, "name", a.Name, "evicted", evicted)
	s.publish(ctx, &events.AssetDeleted{
		BaseEvent: events.NewBaseEvent(events.EventAssetDeleted, events.EntityAsset, id),
		Title:     a.Name,
		LocalPath: a.LocalPath,
		Size:      size,
		Evicted:   evicted,
	})
	s.changed(count, "delete")
	return a, err
}

// AttachSubtitle records a downloaded subtitle for an asset.
func (s *Store) AttachSubtitle(ctx context.Context, id, subtitleURL, localPath string) error {
	s.mu.Lock()
	i := s.index(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.assets[i] = s.assets[i].WithSubtitle(subtitleURL, localPath)
	err := s.persist(ctx)
	count := len(s.assets)
	s.mu.Unlock()

	s.publish(ctx, &events.SubtitleAttached{
		BaseEvent:    events.NewBaseEvent(events.EventSubtitleAttached, events.EntityAsset, id),
		SubtitlePath: localPath,
	})
	s.changed(count, "subtitle")
	return err
}

// FileSize returns the asset file's size, or 0 when it is missing.
func (s *Store) FileSize(a Asset) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sizes.file(a.LocalPath)
}

// TotalSize sums the sizes of all asset files.
func (s *Store) TotalSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total int64
	for _, a := range s.assets {
		total += s.sizes.file(a.LocalPath)
	}
	return total
}

func (s *Store) changed(count int, cause string) {
	s.publish(context.Background(), &events.LibraryChanged{
		BaseEvent: events.NewBaseEvent(events.EventLibraryChanged, events.EntityLibrary, "assets"),
		Assets:    count,
		Cause:     cause,
	})
}

func (s *Store) publish(ctx context.Context, e events.Event) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, e); err != nil {
		s.log.Warn("publish failed", "type", e.EventType(), "error", err)
	}
}
