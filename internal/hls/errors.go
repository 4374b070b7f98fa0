package hls

import "errors"

var (
	// ErrManifestFetch is returned when a playlist cannot be retrieved: transport
	// failure, timeout, or a non-success HTTP status.
	ErrManifestFetch = errors.New("manifest fetch failed")

	// ErrManifestDecode is returned when a playlist body is not readable text.
	ErrManifestDecode = errors.New("manifest decode failed")
)
