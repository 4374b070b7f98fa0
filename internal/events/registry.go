package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownType is returned when decoding a stored event whose type this
// package does not publish.
var ErrUnknownType = errors.New("unknown event type")

// kind describes one published event type.
type kind struct {
	zero      func() Event
	transient bool // delivered live, never appended to the log
}

var kinds = map[string]kind{
	EventDownloadQueued:        {zero: func() Event { return &DownloadQueued{} }},
	EventDownloadStatusChanged: {zero: func() Event { return &DownloadStatusChanged{} }},
	EventDownloadProgressed:    {zero: func() Event { return &DownloadProgressed{} }, transient: true},
	EventDownloadCompleted:     {zero: func() Event { return &DownloadCompleted{} }},
	EventDownloadFailed:        {zero: func() Event { return &DownloadFailed{} }},
	EventLibraryChanged:        {zero: func() Event { return &LibraryChanged{} }},
	EventAssetDeleted:          {zero: func() Event { return &AssetDeleted{} }},
	EventSubtitleAttached:      {zero: func() Event { return &SubtitleAttached{} }},
	EventStorageWarning:        {zero: func() Event { return &StorageWarning{} }},
	EventStorageCleanup:        {zero: func() Event { return &StorageCleanup{} }},
}

// Transient reports whether an event type is delivered but never persisted.
func Transient(eventType string) bool {
	return kinds[eventType].transient
}

// Decode turns a stored event back into its concrete type.
func (r RawEvent) Decode() (Event, error) {
	k, ok := kinds[r.EventType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, r.EventType)
	}

	e := k.zero()
	if err := json.Unmarshal([]byte(r.Payload), e); err != nil {
		return nil, fmt.Errorf("decode %s event %d: %w", r.EventType, r.ID, err)
	}
	if e.EventType() != r.EventType {
		return nil, fmt.Errorf("decode event %d: payload type %q, stored as %q", r.ID, e.EventType(), r.EventType)
	}
	return e, nil
}
