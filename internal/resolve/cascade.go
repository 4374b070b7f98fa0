// Package resolve turns an episode URL into a concrete, downloadable stream
// URL by trying the extraction strategies a module supports in priority order.
package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"strings"
	"sync"

	"github.com/vmunix/stowaway/internal/hls"
	"github.com/vmunix/stowaway/internal/modules"
)

// placeholders are values an engine returns when an asynchronous result was
// never awaited. They are not URLs.
var placeholders = map[string]bool{
	"[object promise]": true,
	"undefined":        true,
	"null":             true,
}

// Target is what to resolve.
type Target struct {
	URL     string
	Module  *modules.Module
	Headers map[string]string
}

// Resolution is a resolved stream ready for transfer.
type Resolution struct {
	URL       string
	Headers   map[string]string
	Subtitles []string
	Strategy  Strategy
	// Variant is the label picked from a master playlist, or empty when the
	// stream was not a playlist.
	Variant string
}

// Cascade runs the resolution strategies for a download attempt.
type Cascade struct {
	extractor Extractor
	manifests hls.Fetcher
	quality   hls.Preference
	remember  bool
	log       *slog.Logger

	mu      sync.Mutex
	lastWin map[string]Strategy // module ID -> last successful strategy
}

// Option configures a Cascade.
type Option func(*Cascade)

// WithQuality sets the preference used when the winning stream is a master
// playlist.
func WithQuality(p hls.Preference) Option {
	return func(c *Cascade) { c.quality = p }
}

// WithStrategyMemo makes the cascade try a module's last successful strategy
// first.
func WithStrategyMemo(enabled bool) Option {
	return func(c *Cascade) { c.remember = enabled }
}

// NewCascade creates a cascade over the given extraction engine. manifests is
// used to follow master playlists.
func NewCascade(extractor Extractor, manifests hls.Fetcher, log *slog.Logger, opts ...Option) *Cascade {
	if log == nil {
		log = slog.Default()
	}
	c := &Cascade{
		extractor: extractor,
		manifests: manifests,
		quality:   hls.PreferenceBest,
		log:       log,
		lastWin:   make(map[string]Strategy),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve tries each applicable strategy until one yields a usable stream.
// It returns ErrExhausted when none does.
func (c *Cascade) Resolve(ctx context.Context, t Target) (*Resolution, error) {
	for _, s := range c.order(t.Module) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := c.extractor.Extract(ctx, t.URL, t.Module, s)
		if err != nil {
			c.log.Warn("extraction failed", "url", t.URL, "strategy", s, "error", err)
			continue
		}

		streams := usable(res.streams())
		if len(streams) == 0 {
			c.log.Debug("extraction empty", "url", t.URL, "strategy", s)
			continue
		}

		stream := pickCandidate(streams)
		final, label := c.followMaster(ctx, stream, t.Headers)
		c.recordWin(t.Module, s)

		c.log.Info("stream resolved", "url", t.URL, "strategy", s, "stream", final, "variant", label)
		return &Resolution{
			URL:       final,
			Headers:   maps.Clone(t.Headers),
			Subtitles: usable(res.subtitles()),
			Strategy:  s,
			Variant:   label,
		}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrExhausted, t.URL)
}

func (r *Result) streams() []string {
	if r == nil {
		return nil
	}
	return r.Streams
}

func (r *Result) subtitles() []string {
	if r == nil {
		return nil
	}
	return r.Subtitles
}

// order returns the strategies to try for m.
func (c *Cascade) order(m *modules.Module) []Strategy {
	var out []Strategy
	if c.remember && m != nil {
		c.mu.Lock()
		last, ok := c.lastWin[m.ID]
		c.mu.Unlock()
		if ok && last.Supported(m) {
			out = append(out, last)
		}
	}
	for _, s := range strategies {
		if !s.Supported(m) || (len(out) > 0 && out[0] == s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (c *Cascade) recordWin(m *modules.Module, s Strategy) {
	if !c.remember || m == nil {
		return
	}
	c.mu.Lock()
	c.lastWin[m.ID] = s
	c.mu.Unlock()
}

// followMaster picks a concrete variant when stream is an HLS playlist. Any
// failure keeps the original URL.
func (c *Cascade) followMaster(ctx context.Context, stream string, headers map[string]string) (string, string) {
	if c.manifests == nil || !hasMarker(stream, ".m3u8") {
		return stream, ""
	}

	body, err := c.manifests.Fetch(ctx, stream, headers)
	if err != nil {
		c.log.Warn("master playlist follow-up failed, using original url", "stream", stream, "error", err)
		return stream, ""
	}

	v := hls.Select(hls.ParseVariants(body, stream), c.quality)
	if v.URL == "" {
		return stream, ""
	}
	return v.URL, v.Label
}

// usable drops blanks and unresolved placeholders.
func usable(urls []string) []string {
	var out []string
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" || placeholders[strings.ToLower(u)] {
			continue
		}
		out = append(out, u)
	}
	return out
}

// pickCandidate prefers an HLS manifest, then a progressive file, then the
// first candidate.
func pickCandidate(candidates []string) string {
	for _, marker := range []string{".m3u8", ".mp4"} {
		for _, u := range candidates {
			if hasMarker(u, marker) {
				return u
			}
		}
	}
	return candidates[0]
}

func hasMarker(rawURL, marker string) bool {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	return strings.Contains(strings.ToLower(p), marker)
}
