// Package extract is a page-scraping extraction engine. It finds stream and
// subtitle URLs for an episode page using one of three strategies.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/vmunix/stowaway/internal/download"
	"github.com/vmunix/stowaway/internal/modules"
	"github.com/vmunix/stowaway/internal/resolve"
)

// Errors returned by Extract.
var (
	// ErrUnsupported indicates the module cannot run the requested strategy.
	ErrUnsupported = errors.New("strategy not supported by module")
	// ErrFetch indicates the page or API could not be retrieved.
	ErrFetch = errors.New("fetch failed")
)

// DefaultTimeout bounds one page or API request.
const DefaultTimeout = 20 * time.Second

const maxPageBytes = 16 << 20

// mediaURL finds absolute media URLs in inline scripts and JSON blobs.
var mediaURL = regexp.MustCompile(`https?://[^\s"'<>\\]+?\.(?:m3u8|mp4|mkv|webm)(?:\?[^\s"'<>\\]*)?`)

var mediaExts = map[string]bool{".m3u8": true, ".mp4": true, ".mkv": true, ".webm": true, ".m4v": true}

// Config configures the engine.
type Config struct {
	UserAgent string
	// Headers is the default header set for modules without their own.
	Headers map[string]string
	Timeout time.Duration
}

// Engine implements resolve.Extractor over HTTP.
type Engine struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

var _ resolve.Extractor = (*Engine)(nil)

// New creates an extraction engine.
func New(cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Engine{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.With("component", "extract"),
	}
}

// Extract runs strategy s for the episode page.
func (e *Engine) Extract(ctx context.Context, episodeURL string, mod *modules.Module, s resolve.Strategy) (*resolve.Result, error) {
	if !s.Supported(mod) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, s)
	}
	headers := download.BuildHeaders(mod, e.cfg.UserAgent, e.cfg.Headers, nil)

	switch s {
	case resolve.StrategyAsync:
		return e.async(ctx, episodeURL, mod, headers)
	case resolve.StrategyStreamAsync:
		return e.streamAsync(ctx, episodeURL, mod, headers)
	default:
		return e.baseline(ctx, episodeURL, headers)
	}
}

// baseline treats a media URL as its own stream; otherwise it scrapes the
// page for video elements, media links and script-embedded URLs.
func (e *Engine) baseline(ctx context.Context, episodeURL string, headers map[string]string) (*resolve.Result, error) {
	if isMedia(episodeURL) {
		return &resolve.Result{Streams: []string{episodeURL}}, nil
	}

	doc, base, err := e.page(ctx, episodeURL, headers)
	if err != nil {
		return nil, err
	}

	c := newCollector(base)
	doc.Find("video[src], video source[src]").Each(func(_ int, sel *goquery.Selection) {
		c.stream(sel.AttrOr("src", ""))
	})
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		if href := sel.AttrOr("href", ""); isMedia(href) {
			c.stream(href)
		}
	})
	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		for _, m := range mediaURL.FindAllString(sel.Text(), -1) {
			c.stream(m)
		}
	})
	collectTracks(doc, c)

	e.log.Debug("baseline scrape", "url", episodeURL, "streams", len(c.res.Streams))
	return c.res, nil
}

// apiResponse is the JSON returned by a module's stream API.
type apiResponse struct {
	Stream    string   `json:"stream"`
	Streams   []string `json:"streams"`
	Subtitle  string   `json:"subtitle"`
	Subtitles []string `json:"subtitles"`
}

// async asks the module's stream API for the episode's streams.
func (e *Engine) async(ctx context.Context, episodeURL string, mod *modules.Module, headers map[string]string) (*resolve.Result, error) {
	if mod.StreamAPI == "" {
		return nil, fmt.Errorf("%w: module %s has no stream_api", ErrUnsupported, mod.ID)
	}
	apiURL := strings.ReplaceAll(mod.StreamAPI, "{url}", url.QueryEscape(episodeURL))

	body, _, err := e.get(ctx, apiURL, headers)
	if err != nil {
		return nil, err
	}
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrFetch, apiURL, err)
	}

	base, _ := url.Parse(apiURL)
	c := newCollector(base)
	c.stream(resp.Stream)
	for _, s := range resp.Streams {
		c.stream(s)
	}
	c.subtitle(resp.Subtitle)
	for _, s := range resp.Subtitles {
		c.subtitle(s)
	}
	return c.res, nil
}

// streamAsync scrapes the page with the module's selector.
func (e *Engine) streamAsync(ctx context.Context, episodeURL string, mod *modules.Module, headers map[string]string) (*resolve.Result, error) {
	if mod.Selector == "" {
		return nil, fmt.Errorf("%w: module %s has no selector", ErrUnsupported, mod.ID)
	}
	doc, base, err := e.page(ctx, episodeURL, headers)
	if err != nil {
		return nil, err
	}

	c := newCollector(base)
	doc.Find(mod.Selector).Each(func(_ int, sel *goquery.Selection) {
		for _, attr := range []string{"src", "data-src", "href"} {
			if v, ok := sel.Attr(attr); ok && v != "" {
				c.stream(v)
				return
			}
		}
	})
	collectTracks(doc, c)
	return c.res, nil
}

func collectTracks(doc *goquery.Document, c *collector) {
	doc.Find("track[src]").Each(func(_ int, sel *goquery.Selection) {
		kind := strings.ToLower(sel.AttrOr("kind", "subtitles"))
		if kind == "subtitles" || kind == "captions" {
			c.subtitle(sel.AttrOr("src", ""))
		}
	})
}

func (e *Engine) page(ctx context.Context, pageURL string, headers map[string]string) (*goquery.Document, *url.URL, error) {
	body, final, err := e.get(ctx, pageURL, headers)
	if err != nil {
		return nil, nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: parse %s: %v", ErrFetch, pageURL, err)
	}
	return doc, final, nil
}

// get returns the body and the final URL after redirects.
func (e *Engine) get(ctx context.Context, rawURL string, headers map[string]string) ([]byte, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("%w: %s returned %d", ErrFetch, rawURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read %s: %v", ErrFetch, rawURL, err)
	}
	return body, resp.Request.URL, nil
}

// collector gathers absolute, de-duplicated URLs in discovery order.
type collector struct {
	base *url.URL
	seen map[string]bool
	res  *resolve.Result
}

func newCollector(base *url.URL) *collector {
	return &collector{base: base, seen: make(map[string]bool), res: &resolve.Result{}}
}

func (c *collector) stream(ref string) {
	if u := c.abs(ref); u != "" {
		c.res.Streams = append(c.res.Streams, u)
	}
}

func (c *collector) subtitle(ref string) {
	if u := c.abs(ref); u != "" {
		c.res.Subtitles = append(c.res.Subtitles, u)
	}
}

func (c *collector) abs(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "blob:") || strings.HasPrefix(ref, "data:") {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if c.base != nil {
		u = c.base.ResolveReference(u)
	}
	s := u.String()
	if c.seen[s] {
		return ""
	}
	c.seen[s] = true
	return s
}

func isMedia(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return mediaExts[strings.ToLower(path.Ext(u.Path))]
}
