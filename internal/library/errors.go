package library

import "errors"

var (
	// ErrNotFound indicates the requested asset doesn't exist.
	ErrNotFound = errors.New("asset not found")

	// ErrStorageIO indicates a file could not be moved, copied, or removed.
	ErrStorageIO = errors.New("storage io error")

	// ErrPersistence indicates the asset collection could not be written.
	// The in-memory collection stays authoritative.
	ErrPersistence = errors.New("persistence write error")

	// ErrPathTraversal indicates a path outside the durable root.
	ErrPathTraversal = errors.New("path outside storage root")
)
