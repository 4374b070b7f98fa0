package transfer

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/vmunix/stowaway/internal/download"
)

// worker advances a transfer until it completes, fails, or ctx is cancelled.
// A worker is run again after a suspension and must continue where it left
// off.
type worker interface {
	run(ctx context.Context, progress func(float64)) error
}

// task drives a worker under Resume/Suspend/Cancel. Exactly one of
// OnFinished or OnFailed is delivered.
type task struct {
	parent context.Context
	dst    string
	work   worker
	l      download.Listener
	log    *slog.Logger

	mu          sync.Mutex
	want        bool // Resume called and not suspended since
	running     bool // loop goroutine alive
	interrupted bool // current run cancelled by Suspend
	cancelled   bool
	done        bool
	stop        context.CancelFunc
}

var _ download.TaskHandle = (*task)(nil)

func newTask(parent context.Context, dst string, work worker, l download.Listener, log *slog.Logger) *task {
	return &task{parent: parent, dst: dst, work: work, l: l, log: log}
}

// Resume starts or continues the transfer.
func (t *task) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done || t.cancelled {
		return
	}
	t.want = true
	if !t.running {
		t.running = true
		go t.loop()
	}
}

// Suspend interrupts the transfer. Data already written is kept.
func (t *task) Suspend() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.want = false
	if t.stop != nil {
		t.interrupted = true
		t.stop()
	}
}

// Cancel aborts the transfer and removes the partial file.
func (t *task) Cancel() {
	t.mu.Lock()
	if t.done || t.cancelled {
		t.mu.Unlock()
		return
	}
	t.cancelled = true
	t.want = false
	if t.running {
		if t.stop != nil {
			t.stop()
		}
		t.mu.Unlock()
		return
	}
	t.done = true
	t.mu.Unlock()

	t.removePartial()
	go t.l.OnFailed(download.ErrCancelled)
}

func (t *task) loop() {
	for {
		t.mu.Lock()
		if !t.want || t.done || t.cancelled {
			t.running = false
			t.mu.Unlock()
			t.settleCancelled()
			return
		}
		ctx, stop := context.WithCancel(t.parent)
		t.stop = stop
		t.interrupted = false
		t.mu.Unlock()

		err := t.work.run(ctx, t.progress)
		stop()

		t.mu.Lock()
		t.stop = nil
		switch {
		case t.cancelled:
			t.done = true
			t.running = false
			t.mu.Unlock()
			t.removePartial()
			t.l.OnFailed(download.ErrCancelled)
			return
		case err == nil:
			t.done = true
			t.running = false
			t.mu.Unlock()
			t.log.Debug("transfer finished")
			t.l.OnFinished(t.dst)
			return
		case t.interrupted && errors.Is(err, context.Canceled):
			t.mu.Unlock()
			t.log.Debug("transfer suspended")
			continue
		default:
			t.done = true
			t.running = false
			t.mu.Unlock()
			if t.parent.Err() != nil {
				err = download.ErrCancelled
			}
			t.log.Debug("transfer failed", "error", err)
			t.l.OnFailed(err)
			return
		}
	}
}

// settleCancelled delivers the failure for a task cancelled while its loop
// was between runs.
func (t *task) settleCancelled() {
	t.mu.Lock()
	if !t.cancelled || t.done {
		t.mu.Unlock()
		return
	}
	t.done = true
	t.mu.Unlock()
	t.removePartial()
	t.l.OnFailed(download.ErrCancelled)
}

func (t *task) progress(fraction float64) {
	t.mu.Lock()
	live := t.running && !t.cancelled && !t.interrupted
	t.mu.Unlock()
	if live {
		t.l.OnProgress(fraction)
	}
}

func (t *task) removePartial() {
	if err := os.Remove(t.dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		t.log.Warn("failed to remove partial file", "error", err)
	}
}
