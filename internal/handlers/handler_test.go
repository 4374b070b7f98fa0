package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/stowaway/internal/events"
)

func TestBaseHandler_Defaults(t *testing.T) {
	bus := events.NewBus(nil, nil)
	defer bus.Close()

	base := NewBaseHandler(bus, nil)
	assert.Same(t, bus, base.Bus())
	assert.NotNil(t, base.Logger())
}

func TestBaseHandler_UnsubscribeClosesChannels(t *testing.T) {
	bus := events.NewBus(nil, nil)
	defer bus.Close()

	base := NewBaseHandler(bus, testLogger())
	a := base.Subscribe(events.EventLibraryChanged, 1)
	b := base.Subscribe(events.EventAssetDeleted, 1)

	base.Unsubscribe()

	_, ok := <-a
	assert.False(t, ok)
	_, ok = <-b
	assert.False(t, ok)

	base.Unsubscribe() // nothing left to release
}

func TestDrain(t *testing.T) {
	bus := events.NewBus(nil, nil)
	defer bus.Close()

	ch := bus.Subscribe(events.EventLibraryChanged, 10)
	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(context.Background(), &events.LibraryChanged{
			BaseEvent: events.NewBaseEvent(events.EventLibraryChanged, events.EntityLibrary, "assets"),
		}))
	}

	drain(ch)
	assert.Empty(t, ch)
}

func TestHandlers_StopWhenBusCloses(t *testing.T) {
	bus := events.NewBus(nil, nil)

	hs := []Handler{
		NewQuotaHandler(bus, &countingMonitor{}, nil, time.Hour, testLogger()),
		NewSubtitleHandler(bus, nil, testLogger()),
	}

	done := make(chan error, len(hs))
	for _, h := range hs {
		h := h
		go func() { done <- h.Start(context.Background()) }()
	}

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, bus.Close())

	for range hs {
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("handler did not stop")
		}
	}
}
