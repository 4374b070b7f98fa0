package download

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"slices"
	"sort"
	"sync/atomic"
	"time"

	"github.com/vmunix/stowaway/internal/events"
	"github.com/vmunix/stowaway/internal/modules"
	"github.com/vmunix/stowaway/internal/resolve"
)

// DefaultMaxConcurrent is used when Config.MaxConcurrent is not positive.
const DefaultMaxConcurrent = 2

// Resolver turns a download target into a concrete stream.
type Resolver interface {
	Resolve(ctx context.Context, t resolve.Target) (*resolve.Resolution, error)
}

// Config tunes the manager.
type Config struct {
	MaxConcurrent int
	UserAgent     string
	// DefaultHeaders apply to modules without explicit headers.
	DefaultHeaders map[string]string
}

// slot is the owner-side state of one live entry.
type slot struct {
	entry     Entry
	mod       *modules.Module
	headers   map[string]string
	subtitles []string
	cancel    context.CancelFunc // stops resolution
	handle    TaskHandle
	gate      progressGate
}

func (s *slot) view() Entry {
	e := s.entry
	e.Headers = maps.Clone(e.Headers)
	return e
}

func (s *slot) subtitleURL() string {
	if s.entry.SubtitleURL != "" {
		return s.entry.SubtitleURL
	}
	if len(s.subtitles) > 0 {
		return s.subtitles[0]
	}
	return ""
}

// Manager is the queue and admission controller. All registry state is owned
// by the goroutine running Run; public methods and transfer callbacks are
// posted to it as commands.
type Manager struct {
	cfg      Config
	resolver Resolver
	transfer Transferer
	archive  Archive
	modules  *modules.Registry
	bus      *events.Bus
	log      *slog.Logger

	box     *mailbox
	done    chan struct{}
	running atomic.Bool
	view    atomic.Pointer[Snapshot]

	// owned by the Run goroutine
	ctx       context.Context
	queue     []*slot
	resolving map[string]*slot
	active    map[string]*slot
	keys      map[string]string // duplicate key -> entry ID
	waiters   []chan struct{}
}

// NewManager creates a download manager. Run must be called before it accepts
// commands.
func NewManager(cfg Config, resolver Resolver, transfer Transferer, archive Archive,
	mods *modules.Registry, bus *events.Bus, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if mods == nil {
		mods = modules.NewRegistry()
	}
	m := &Manager{
		cfg:       cfg,
		resolver:  resolver,
		transfer:  transfer,
		archive:   archive,
		modules:   mods,
		bus:       bus,
		log:       log.With("component", "download"),
		box:       newMailbox(),
		done:      make(chan struct{}),
		resolving: make(map[string]*slot),
		active:    make(map[string]*slot),
		keys:      make(map[string]string),
	}
	m.view.Store(&Snapshot{})
	return m
}

// Run processes commands until ctx is cancelled. Live resolutions and
// transfers are cancelled on the way out.
func (m *Manager) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return errors.New("download manager already running")
	}
	m.ctx = ctx
	defer m.stop()

	m.log.Info("download manager started", "max_concurrent", m.cfg.MaxConcurrent)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.box.signal:
			for _, fn := range m.box.drain() {
				fn()
			}
			m.settle()
		}
	}
}

func (m *Manager) stop() {
	m.box.close()
	for _, s := range m.resolving {
		s.cancel()
	}
	for _, s := range m.active {
		s.handle.Cancel()
	}
	close(m.done)
	m.log.Info("download manager stopped", "queued", len(m.queue), "active", len(m.active))
}

// call runs fn on the owner goroutine and waits for it. The snapshot is
// refreshed before the caller resumes.
func (m *Manager) call(ctx context.Context, fn func()) error {
	reply := make(chan struct{})
	if !m.box.post(func() { fn(); m.settle(); close(reply) }) {
		return ErrClosed
	}
	select {
	case <-reply:
		return nil
	case <-m.done:
		select {
		case <-reply:
			return nil
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue appends a request to the queue. It returns ErrDuplicate when an
// equivalent item is already persisted, downloading, or queued.
func (m *Manager) Enqueue(ctx context.Context, req Request) (Entry, error) {
	if req.SourceURL == "" {
		return Entry{}, fmt.Errorf("%w: missing source url", ErrInvalidRequest)
	}
	if req.ID == "" {
		req.ID = RequestID(req.ModuleID, req.SourceURL)
	}
	if req.Title == "" {
		req.Title = req.SourceURL
	}

	var mod *modules.Module
	if req.ModuleID != "" {
		var err error
		if mod, err = m.modules.Get(req.ModuleID); err != nil {
			return Entry{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}

	req = req.clone()
	var (
		entry Entry
		err   error
	)
	if cerr := m.call(ctx, func() { entry, err = m.enqueue(req, mod) }); cerr != nil {
		return Entry{}, cerr
	}
	return entry, err
}

func (m *Manager) enqueue(req Request, mod *modules.Module) (Entry, error) {
	key := req.Key()
	if id, ok := m.keys[key]; ok {
		return Entry{}, fmt.Errorf("%w: %q is already queued as %s", ErrDuplicate, req.Title, id)
	}
	if m.lookup(req.ID) != nil {
		return Entry{}, fmt.Errorf("%w: id %s is already queued", ErrDuplicate, req.ID)
	}
	if m.archive != nil && m.archive.Contains(key) {
		return Entry{}, fmt.Errorf("%w: %q is already downloaded", ErrDuplicate, req.Title)
	}

	s := &slot{
		entry: Entry{Request: req, Status: StatusQueued, QueuedAt: time.Now()},
		mod:   mod,
	}
	m.queue = append(m.queue, s)
	m.keys[key] = req.ID

	m.log.Info("download queued", "download_id", req.ID, "title", req.Title, "position", len(m.queue))
	m.publish(&events.DownloadQueued{
		BaseEvent: events.NewBaseEvent(events.EventDownloadQueued, events.EntityDownload, req.ID),
		Title:     req.Title,
		URL:       req.SourceURL,
		ModuleID:  req.ModuleID,
		Position:  len(m.queue),
	})

	m.admit()
	return s.view(), nil
}

// admit pops queue heads into free slots. Resolving entries hold a slot, so
// Downloading can never exceed the cap.
func (m *Manager) admit() {
	for len(m.queue) > 0 && len(m.active)+len(m.resolving) < m.cfg.MaxConcurrent {
		s := m.queue[0]
		m.queue[0] = nil
		m.queue = m.queue[1:]
		m.startResolve(s)
	}
}

func (m *Manager) startResolve(s *slot) {
	ctx, cancel := context.WithCancel(m.ctx)
	s.cancel = cancel
	s.entry.Resolving = true
	s.headers = BuildHeaders(s.mod, m.cfg.UserAgent, m.cfg.DefaultHeaders, s.entry.Headers)
	m.resolving[s.entry.ID] = s

	target := resolve.Target{URL: s.entry.SourceURL, Module: s.mod, Headers: maps.Clone(s.headers)}
	m.log.Debug("resolving stream", "download_id", s.entry.ID, "url", target.URL)

	go func() {
		res, err := m.resolver.Resolve(ctx, target)
		m.box.post(func() { m.onResolved(s, res, err) })
	}()
}

func (m *Manager) onResolved(s *slot, res *resolve.Resolution, err error) {
	id := s.entry.ID
	if m.resolving[id] != s {
		return // cancelled while resolving
	}
	delete(m.resolving, id)
	s.cancel()
	s.entry.Resolving = false
	defer m.admit()

	if err == nil && (res == nil || res.URL == "") {
		err = resolve.ErrExhausted
	}
	if err != nil {
		m.fail(s, StatusQueued, events.FailureResolution, err.Error())
		return
	}

	s.entry.StreamURL = res.URL
	s.entry.Variant = res.Variant
	s.subtitles = res.Subtitles
	if res.Headers != nil {
		s.headers = maps.Clone(res.Headers)
	}

	handle, err := m.transfer.CreateTask(m.ctx, res.URL, maps.Clone(s.headers), &taskListener{m: m, s: s})
	if err == nil && handle == nil {
		err = ErrTransferCreation
	}
	if err != nil {
		if !errors.Is(err, ErrTransferCreation) {
			err = fmt.Errorf("%w: %v", ErrTransferCreation, err)
		}
		m.fail(s, StatusQueued, events.FailureTransfer, err.Error())
		return
	}

	s.handle = handle
	s.entry.Status = StatusDownloading
	s.entry.StartedAt = time.Now()
	m.active[id] = s

	m.log.Info("download started", "download_id", id, "stream", res.URL, "strategy", res.Strategy, "variant", res.Variant)
	m.publishStatus(s, StatusQueued, StatusDownloading, "")
	handle.Resume()
}

func (m *Manager) onProgress(s *slot, raw float64) {
	if m.active[s.entry.ID] != s {
		return
	}
	v, ok := s.gate.observe(raw)
	if !ok {
		return
	}
	s.entry.Progress = v
	m.publish(&events.DownloadProgressed{
		BaseEvent: events.NewBaseEvent(events.EventDownloadProgressed, events.EntityDownload, s.entry.ID),
		Progress:  v,
	})
}

// onTerminal is a no-op for entries that already left the active registry.
func (m *Manager) onTerminal(s *slot, tempPath string, err error) {
	id := s.entry.ID
	if m.active[id] != s {
		return
	}
	delete(m.active, id)
	defer m.admit()

	switch {
	case s.entry.Cancelling:
		if err == nil && tempPath != "" {
			_ = os.Remove(tempPath)
		}
		m.cancelled(s, StatusDownloading)
	case err != nil:
		te := Classify(err)
		m.fail(s, StatusDownloading, string(te.Kind), te.Error())
	default:
		m.complete(s, tempPath)
	}
}

func (m *Manager) complete(s *slot, tempPath string) {
	assetID, localPath := s.entry.ID, tempPath
	if m.archive != nil {
		var err error
		assetID, localPath, err = m.archive.Complete(tempPath, s.entry.Request)
		if err != nil && assetID == "" {
			if rerr := os.Remove(tempPath); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
				m.log.Warn("temp file not removed", "download_id", s.entry.ID, "path", tempPath, "error", rerr)
			}
			m.fail(s, StatusDownloading, events.FailureOther, "storage: "+err.Error())
			return
		}
		if err != nil {
			m.log.Error("asset recorded but not persisted", "download_id", s.entry.ID, "error", err)
		}
	}

	m.onProgressFinal(s)
	s.entry.Status = StatusCompleted
	delete(m.keys, s.entry.Key())

	m.log.Info("download completed", "download_id", s.entry.ID, "asset_id", assetID, "path", localPath)
	m.publishStatus(s, StatusDownloading, StatusCompleted, "")
	m.publish(&events.DownloadCompleted{
		BaseEvent:   events.NewBaseEvent(events.EventDownloadCompleted, events.EntityDownload, s.entry.ID),
		AssetID:     assetID,
		Title:       s.entry.Title,
		LocalPath:   localPath,
		SubtitleURL: s.subtitleURL(),
		Headers:     maps.Clone(s.headers),
	})
}

// onProgressFinal reports 1.0 if the transfer finished without saying so.
func (m *Manager) onProgressFinal(s *slot) {
	if v, ok := s.gate.observe(1); ok {
		s.entry.Progress = v
		m.publish(&events.DownloadProgressed{
			BaseEvent: events.NewBaseEvent(events.EventDownloadProgressed, events.EntityDownload, s.entry.ID),
			Progress:  v,
		})
	}
}

func (m *Manager) fail(s *slot, from Status, kind, reason string) {
	s.entry.Status = StatusFailed
	delete(m.keys, s.entry.Key())

	m.log.Warn("download failed", "download_id", s.entry.ID, "title", s.entry.Title, "kind", kind, "reason", reason)
	m.publishStatus(s, from, StatusFailed, kind)
	m.publish(&events.DownloadFailed{
		BaseEvent: events.NewBaseEvent(events.EventDownloadFailed, events.EntityDownload, s.entry.ID),
		Title:     s.entry.Title,
		Reason:    reason,
		Kind:      kind,
	})
}

// cancelled ends an entry without a failure notification.
func (m *Manager) cancelled(s *slot, from Status) {
	s.entry.Status = StatusFailed
	delete(m.keys, s.entry.Key())

	m.log.Info("download cancelled", "download_id", s.entry.ID)
	m.publishStatus(s, from, StatusFailed, string(KindCancelled))
}

// Cancel removes a queued entry immediately. A downloading entry is marked
// cancelling and leaves the registry when the transfer reports back.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	var err error
	if cerr := m.call(ctx, func() { err = m.cancel(id) }); cerr != nil {
		return cerr
	}
	return err
}

func (m *Manager) cancel(id string) error {
	if i := slices.IndexFunc(m.queue, func(s *slot) bool { return s.entry.ID == id }); i >= 0 {
		s := m.queue[i]
		m.queue = slices.Delete(m.queue, i, i+1)
		m.cancelled(s, StatusQueued)
		return nil
	}
	if s, ok := m.resolving[id]; ok {
		delete(m.resolving, id)
		s.cancel()
		s.entry.Resolving = false
		m.cancelled(s, StatusQueued)
		m.admit()
		return nil
	}
	if s, ok := m.active[id]; ok {
		if s.entry.Cancelling {
			return nil
		}
		s.entry.Cancelling = true
		s.handle.Cancel()
		m.log.Info("download cancelling", "download_id", id)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Pause suspends a downloading entry. Its status stays Downloading.
func (m *Manager) Pause(ctx context.Context, id string) error {
	return m.setPaused(ctx, id, true)
}

// Resume continues a paused entry.
func (m *Manager) Resume(ctx context.Context, id string) error {
	return m.setPaused(ctx, id, false)
}

func (m *Manager) setPaused(ctx context.Context, id string, paused bool) error {
	var err error
	cerr := m.call(ctx, func() {
		s, ok := m.active[id]
		switch {
		case !ok && m.lookup(id) != nil:
			err = fmt.Errorf("%w: %s is not downloading", ErrInvalidState, id)
		case !ok:
			err = fmt.Errorf("%w: %s", ErrNotFound, id)
		case s.entry.Cancelling:
			err = fmt.Errorf("%w: %s is cancelling", ErrInvalidState, id)
		case s.entry.Paused == paused:
		case paused:
			s.handle.Suspend()
			s.entry.Paused = true
			m.log.Info("download paused", "download_id", id)
		default:
			s.handle.Resume()
			s.entry.Paused = false
			m.log.Info("download resumed", "download_id", id)
		}
	})
	if cerr != nil {
		return cerr
	}
	return err
}

// Snapshot returns the live registries as of the last processed command.
func (m *Manager) Snapshot() Snapshot {
	return *m.view.Load()
}

// WaitIdle blocks until nothing is queued, resolving, or downloading.
func (m *Manager) WaitIdle(ctx context.Context) error {
	ch := make(chan struct{})
	err := m.call(ctx, func() {
		if m.idle() {
			close(ch)
			return
		}
		m.waiters = append(m.waiters, ch)
	})
	if err != nil {
		return err
	}
	select {
	case <-ch:
		return nil
	case <-m.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) idle() bool {
	return len(m.queue) == 0 && len(m.resolving) == 0 && len(m.active) == 0
}

func (m *Manager) lookup(id string) *slot {
	for _, s := range m.queue {
		if s.entry.ID == id {
			return s
		}
	}
	if s, ok := m.resolving[id]; ok {
		return s
	}
	return m.active[id]
}

// settle runs after each batch of commands.
func (m *Manager) settle() {
	snap := &Snapshot{
		Queued: make([]Entry, 0, len(m.resolving)+len(m.queue)),
		Active: make([]Entry, 0, len(m.active)),
	}
	for _, s := range m.resolving {
		snap.Queued = append(snap.Queued, s.view())
	}
	sort.Slice(snap.Queued, func(i, j int) bool { return snap.Queued[i].QueuedAt.Before(snap.Queued[j].QueuedAt) })
	for _, s := range m.queue {
		snap.Queued = append(snap.Queued, s.view())
	}
	for _, s := range m.active {
		snap.Active = append(snap.Active, s.view())
	}
	sort.Slice(snap.Active, func(i, j int) bool { return snap.Active[i].StartedAt.Before(snap.Active[j].StartedAt) })
	m.view.Store(snap)

	if m.idle() {
		for _, ch := range m.waiters {
			close(ch)
		}
		m.waiters = nil
	}
}

func (m *Manager) publishStatus(s *slot, from, to Status, reason string) {
	if !from.CanTransitionTo(to) {
		m.log.Error("invalid status transition", "download_id", s.entry.ID, "from", from, "to", to)
	}
	m.publish(&events.DownloadStatusChanged{
		BaseEvent: events.NewBaseEvent(events.EventDownloadStatusChanged, events.EntityDownload, s.entry.ID),
		From:      string(from),
		To:        string(to),
		Reason:    reason,
	})
}

func (m *Manager) publish(e events.Event) {
	if m.bus == nil {
		return
	}
	if err := m.bus.Publish(m.ctx, e); err != nil {
		m.log.Warn("publish failed", "type", e.EventType(), "error", err)
	}
}

// taskListener turns transfer callbacks into owner commands.
type taskListener struct {
	m *Manager
	s *slot
}

func (l *taskListener) OnProgress(fraction float64) {
	l.m.box.post(func() { l.m.onProgress(l.s, fraction) })
}

func (l *taskListener) OnFinished(tempPath string) {
	l.m.box.post(func() { l.m.onTerminal(l.s, tempPath, nil) })
}

func (l *taskListener) OnFailed(err error) {
	if err == nil {
		err = errors.New("transfer failed without error")
	}
	l.m.box.post(func() { l.m.onTerminal(l.s, "", err) })
}
