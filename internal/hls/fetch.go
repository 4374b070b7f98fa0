package hls

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultTimeout bounds a single playlist request.
const DefaultTimeout = 15 * time.Second

// maxPlaylistBytes caps how much of a response is read as playlist text.
const maxPlaylistBytes = 8 << 20

// Client fetches playlists over HTTP.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a playlist client whose requests expire after timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves the playlist at rawURL with the given request headers.
// Transport failures, timeouts and non-2xx statuses wrap ErrManifestFetch;
// a body that is not text or is too large wraps ErrManifestDecode.
func (c *Client) Fetch(ctx context.Context, rawURL string, headers map[string]string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrManifestFetch, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrManifestFetch, rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %s: status %d", ErrManifestFetch, rawURL, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistBytes+1))
	if err != nil {
		return "", fmt.Errorf("%w: %s: read body: %v", ErrManifestFetch, rawURL, err)
	}
	if len(raw) > maxPlaylistBytes {
		return "", fmt.Errorf("%w: %s: playlist exceeds %d bytes", ErrManifestDecode, rawURL, maxPlaylistBytes)
	}

	return Decode(raw)
}

// Decode turns a playlist body into text. UTF-8 and BOM-marked UTF-16 bodies
// are accepted; anything with undecodable bytes wraps ErrManifestDecode.
func Decode(raw []byte) (string, error) {
	decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrManifestDecode, err)
	}
	if bytes.ContainsRune(decoded, utf8.RuneError) {
		return "", fmt.Errorf("%w: invalid byte sequence", ErrManifestDecode)
	}
	return string(decoded), nil
}
