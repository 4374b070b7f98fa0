package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/vmunix/stowaway/internal/download"
	"github.com/vmunix/stowaway/internal/hls"
)

// ErrNoSegments indicates a media playlist without segments.
var ErrNoSegments = errors.New("playlist has no segments")

// segmentWorker downloads the segments of an HLS playlist in order and
// concatenates them into one file. Segments are fetched a batch at a time;
// a rerun continues with the first segment not yet written.
type segmentWorker struct {
	http      *http.Client
	manifests hls.Fetcher
	url       string
	dst       string
	headers   map[string]string
	prefetch  int

	segments []string
	next     int
}

func newSegmentWorker(hc *http.Client, manifests hls.Fetcher, rawURL, dst string, headers map[string]string, prefetch int) *segmentWorker {
	return &segmentWorker{
		http:      hc,
		manifests: manifests,
		url:       rawURL,
		dst:       dst,
		headers:   headers,
		prefetch:  prefetch,
	}
}

func (w *segmentWorker) run(ctx context.Context, progress func(float64)) error {
	if w.segments == nil {
		body, err := w.manifests.Fetch(ctx, w.url, w.headers)
		if err != nil {
			return err
		}
		segs, err := hls.Segments(ctx, w.manifests, body, w.url, w.headers)
		if err != nil {
			return err
		}
		if len(segs) == 0 {
			return fmt.Errorf("%w: %s", ErrNoSegments, w.url)
		}
		w.segments = segs
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_APPEND
	if w.next == 0 {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(w.dst, flags, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	total := len(w.segments)
	for w.next < total {
		batch := w.segments[w.next:min(w.next+w.prefetch, total)]
		bufs := make([][]byte, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for i, seg := range batch {
			i, seg := i, seg
			g.Go(func() error {
				b, err := w.fetch(gctx, seg)
				bufs[i] = b
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for _, b := range bufs {
			if _, err := f.Write(b); err != nil {
				return fmt.Errorf("write segment %d: %w", w.next, err)
			}
			w.next++
			progress(float64(w.next) / float64(total))
		}
	}
	return f.Sync()
}

func (w *segmentWorker) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &download.StatusError{Code: resp.StatusCode, URL: rawURL}
	}
	return io.ReadAll(resp.Body)
}
