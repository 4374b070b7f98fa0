package events

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewBaseEvent(t *testing.T) {
	e := NewBaseEvent(EventDownloadQueued, EntityDownload, "dl-1")

	assert.Equal(t, "download.queued", e.EventType())
	assert.Equal(t, "download", e.EntityType())
	assert.Equal(t, "dl-1", e.EntityID())
	assert.False(t, e.OccurredAt().IsZero())
}

func TestConcreteEventsSatisfyEvent(t *testing.T) {
	evts := []Event{
		&DownloadQueued{}, &DownloadStatusChanged{}, &DownloadProgressed{},
		&DownloadCompleted{}, &DownloadFailed{}, &LibraryChanged{},
		&AssetDeleted{}, &SubtitleAttached{}, &StorageWarning{}, &StorageCleanup{},
	}
	for _, e := range evts {
		assert.Contains(t, kinds, eventTypeOf(e), "%T has no decoder", e)
	}
	assert.Len(t, kinds, len(evts))
}

// eventTypeOf finds the published type of a zero event through the catalog.
func eventTypeOf(e Event) string {
	for t, k := range kinds {
		if fmt.Sprintf("%T", k.zero()) == fmt.Sprintf("%T", e) {
			return t
		}
	}
	return ""
}
