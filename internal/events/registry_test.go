package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawEvent_Decode(t *testing.T) {
	raw := RawEvent{
		ID:        7,
		EventType: EventDownloadQueued,
		Payload:   `{"type":"download.queued","entity_type":"download","entity_id":"dl-7","occurred_at":"2024-01-01T00:00:00Z","title":"Pilot","url":"https://example.com/ep/1","module_id":"demo","position":2}`,
	}

	e, err := raw.Decode()
	require.NoError(t, err)

	queued, ok := e.(*DownloadQueued)
	require.True(t, ok)
	assert.Equal(t, "Pilot", queued.Title)
	assert.Equal(t, "demo", queued.ModuleID)
	assert.Equal(t, 2, queued.Position)
	assert.Equal(t, "dl-7", queued.EntityID())
}

func TestRawEvent_DecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  RawEvent
		want string
	}{
		{"unknown type", RawEvent{EventType: "unknown.event", Payload: `{}`}, "unknown event type"},
		{"bad json", RawEvent{EventType: EventDownloadQueued, Payload: `{invalid json`}, "decode download.queued"},
		{"type mismatch", RawEvent{EventType: EventDownloadFailed, Payload: `{"type":"download.queued"}`}, "payload type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.raw.Decode()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := RawEvent{EventType: "nope"}.Decode()
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestRawEvent_DecodeEveryKind(t *testing.T) {
	for eventType := range kinds {
		t.Run(eventType, func(t *testing.T) {
			raw := RawEvent{
				EventType: eventType,
				Payload:   `{"type":"` + eventType + `","entity_type":"download","entity_id":"x","occurred_at":"2024-01-01T00:00:00Z"}`,
			}
			e, err := raw.Decode()
			require.NoError(t, err)
			assert.Equal(t, eventType, e.EventType())
			assert.Equal(t, "x", e.EntityID())
		})
	}
}

func TestRawEvent_DecodeStorageCleanup(t *testing.T) {
	raw := RawEvent{
		EventType: EventStorageCleanup,
		Payload:   `{"type":"storage.cleanup","entity_type":"storage","entity_id":"quota","occurred_at":"2024-01-01T12:00:00Z","bytes_freed":734003200,"deleted":["a","b"]}`,
	}

	e, err := raw.Decode()
	require.NoError(t, err)

	cleanup, ok := e.(*StorageCleanup)
	require.True(t, ok)
	assert.Equal(t, int64(734003200), cleanup.BytesFreed)
	assert.Equal(t, []string{"a", "b"}, cleanup.Deleted)
}

func TestTransient(t *testing.T) {
	assert.True(t, Transient(EventDownloadProgressed))
	assert.False(t, Transient(EventDownloadCompleted))
	assert.False(t, Transient(EventStorageCleanup))
	assert.False(t, Transient("unknown.event"))
}
