package transfer

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cavaliergopher/grab/v3"

	"github.com/vmunix/stowaway/internal/download"
)

// progressiveWorker downloads a single file with grab. A rerun after a
// suspension continues the partial file with a range request.
type progressiveWorker struct {
	client   *grab.Client
	url      string
	dst      string
	headers  map[string]string
	interval time.Duration
}

func newProgressiveWorker(hc *http.Client, rawURL, dst string, headers map[string]string, interval time.Duration) *progressiveWorker {
	client := grab.NewClient()
	client.HTTPClient = hc
	client.UserAgent = headers["User-Agent"]
	return &progressiveWorker{
		client:   client,
		url:      rawURL,
		dst:      dst,
		headers:  headers,
		interval: interval,
	}
}

func (w *progressiveWorker) run(ctx context.Context, progress func(float64)) error {
	req, err := grab.NewRequest(w.dst, w.url)
	if err != nil {
		return err
	}
	req = req.WithContext(ctx)
	for k, v := range w.headers {
		req.HTTPRequest.Header.Set(k, v)
	}

	resp := w.client.Do(req)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if p := resp.Progress(); p > 0 {
				progress(p)
			}
		case <-resp.Done:
			return w.result(resp)
		}
	}
}

func (w *progressiveWorker) result(resp *grab.Response) error {
	err := resp.Err()
	if err == nil {
		return nil
	}
	var code grab.StatusCodeError
	if errors.As(err, &code) {
		return &download.StatusError{Code: int(code), URL: w.url}
	}
	if hr := resp.HTTPResponse; hr != nil && (hr.StatusCode < 200 || hr.StatusCode > 299) {
		return &download.StatusError{Code: hr.StatusCode, URL: w.url}
	}
	return err
}
