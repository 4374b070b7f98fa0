package transfer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/stowaway/internal/download"
	"github.com/vmunix/stowaway/internal/hls"
)

// recorder is a download.Listener that records callbacks.
type recorder struct {
	mu       sync.Mutex
	progress []float64
	done     chan struct{}
	path     string
	err      error
	calls    int
}

func newRecorder() *recorder {
	return &recorder{done: make(chan struct{})}
}

func (r *recorder) OnProgress(f float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, f)
}

func (r *recorder) OnFinished(path string) {
	r.finish(path, nil)
}

func (r *recorder) OnFailed(err error) {
	r.finish("", err)
}

func (r *recorder) finish(path string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.calls > 1 {
		return
	}
	r.path, r.err = path, err
	close(r.done)
}

func (r *recorder) wait(t *testing.T) (string, error) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for transfer to finish")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path, r.err
}

func (r *recorder) progressSnapshot() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.progress...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTransferer(t *testing.T, prefetch int) *Transferer {
	t.Helper()
	return New(Config{
		TempDir:          t.TempDir(),
		ProgressInterval: 10 * time.Millisecond,
		Prefetch:         prefetch,
	}, hls.NewClient(time.Second), testLogger())
}

func TestTransferer_Progressive(t *testing.T) {
	content := bytes.Repeat([]byte("stowaway"), 8192)
	var gotHeader atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader.Store(r.Header.Get("Referer"))
		http.ServeContent(w, r, "movie.mp4", time.Time{}, bytes.NewReader(content))
	}))
	defer srv.Close()

	tr := newTestTransferer(t, 1)
	rec := newRecorder()
	h, err := tr.CreateTask(context.Background(), srv.URL+"/movie.mp4",
		map[string]string{"Referer": "https://demo.example/"}, rec)
	require.NoError(t, err)
	h.Resume()

	path, err := rec.wait(t)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".mp4"))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	assert.Equal(t, "https://demo.example/", gotHeader.Load())
}

func TestTransferer_ProgressiveForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	tr := newTestTransferer(t, 1)
	rec := newRecorder()
	h, err := tr.CreateTask(context.Background(), srv.URL+"/movie.mp4", nil, rec)
	require.NoError(t, err)
	h.Resume()

	_, err = rec.wait(t)
	require.Error(t, err)
	assert.Equal(t, download.KindForbidden, download.Classify(err).Kind)
}

// hlsServer serves a master playlist with two variants; the tall one has
// three segments.
func hlsServer(t *testing.T, segment http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/master.m3u8", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "#EXTM3U\n"+
			"#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360\nlo.m3u8\n"+
			"#EXT-X-STREAM-INF:BANDWIDTH=2800000,RESOLUTION=1280x720\nhi.m3u8\n")
	})
	mux.HandleFunc("/hi.m3u8", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "#EXTM3U\n#EXT-X-TARGETDURATION:4\n"+
			"#EXTINF:4,\nseg/1.ts\n#EXTINF:4,\nseg/2.ts\n#EXTINF:4,\nseg/3.ts\n#EXT-X-ENDLIST\n")
	})
	mux.HandleFunc("/lo.m3u8", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "#EXTM3U\n#EXTINF:4,\nlow/1.ts\n#EXT-X-ENDLIST\n")
	})
	mux.HandleFunc("/seg/", segment)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func serveSegment(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "[%s]", strings.TrimPrefix(r.URL.Path, "/seg/"))
}

func TestTransferer_HLSConcatenatesTallestVariant(t *testing.T) {
	srv := hlsServer(t, serveSegment)

	tr := newTestTransferer(t, 2)
	rec := newRecorder()
	h, err := tr.CreateTask(context.Background(), srv.URL+"/master.m3u8", nil, rec)
	require.NoError(t, err)
	h.Resume()

	path, err := rec.wait(t)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".ts"))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[1.ts][2.ts][3.ts]", string(got))

	progress := rec.progressSnapshot()
	require.NotEmpty(t, progress)
	assert.InDelta(t, 1.0, progress[len(progress)-1], 1e-9)
	assert.IsNonDecreasing(t, progress)
}

func TestTransferer_HLSSegmentFailure(t *testing.T) {
	srv := hlsServer(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/2.ts") {
			http.NotFound(w, r)
			return
		}
		serveSegment(w, r)
	})

	tr := newTestTransferer(t, 1)
	rec := newRecorder()
	h, err := tr.CreateTask(context.Background(), srv.URL+"/master.m3u8", nil, rec)
	require.NoError(t, err)
	h.Resume()

	_, err = rec.wait(t)
	var se *download.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
}

func TestTransferer_SuspendResumeContinues(t *testing.T) {
	var (
		first   atomic.Int32
		second  atomic.Int32
		blocked = make(chan struct{})
	)
	srv := hlsServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/1.ts"):
			first.Add(1)
		case strings.HasSuffix(r.URL.Path, "/2.ts"):
			if second.Add(1) == 1 {
				close(blocked)
				<-r.Context().Done()
				return
			}
		}
		serveSegment(w, r)
	})

	tr := newTestTransferer(t, 1)
	rec := newRecorder()
	h, err := tr.CreateTask(context.Background(), srv.URL+"/master.m3u8", nil, rec)
	require.NoError(t, err)
	h.Resume()

	select {
	case <-blocked:
	case <-time.After(5 * time.Second):
		t.Fatal("segment 2 never requested")
	}
	h.Suspend()
	h.Resume()

	path, err := rec.wait(t)
	require.NoError(t, err)
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[1.ts][2.ts][3.ts]", string(got))
	assert.Equal(t, int32(1), first.Load(), "written segments are not fetched again")
	assert.Equal(t, int32(2), second.Load())
}

func TestTransferer_CancelWhileRunning(t *testing.T) {
	blocked := make(chan struct{})
	var once sync.Once
	srv := hlsServer(t, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(blocked) })
		<-r.Context().Done()
	})

	tr := newTestTransferer(t, 1)
	rec := newRecorder()
	h, err := tr.CreateTask(context.Background(), srv.URL+"/master.m3u8", nil, rec)
	require.NoError(t, err)
	h.Resume()

	<-blocked
	h.Cancel()
	h.Cancel()

	_, err = rec.wait(t)
	assert.ErrorIs(t, err, download.ErrCancelled)
	assert.Equal(t, download.KindCancelled, download.Classify(err).Kind)

	entries, err := os.ReadDir(tr.cfg.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "partial file removed")
}

func TestTransferer_CancelBeforeResume(t *testing.T) {
	tr := newTestTransferer(t, 1)
	rec := newRecorder()
	h, err := tr.CreateTask(context.Background(), "https://demo.example/movie.mp4", nil, rec)
	require.NoError(t, err)

	h.Cancel()
	h.Resume()

	_, err = rec.wait(t)
	assert.ErrorIs(t, err, download.ErrCancelled)
}

func TestTransferer_ParentContextCancels(t *testing.T) {
	blocked := make(chan struct{})
	var once sync.Once
	srv := hlsServer(t, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(blocked) })
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	tr := newTestTransferer(t, 1)
	rec := newRecorder()
	h, err := tr.CreateTask(ctx, srv.URL+"/master.m3u8", nil, rec)
	require.NoError(t, err)
	h.Resume()

	<-blocked
	cancel()

	_, err = rec.wait(t)
	assert.ErrorIs(t, err, download.ErrCancelled)
}

func TestTransferer_CreateTaskRejectsBadURL(t *testing.T) {
	tr := newTestTransferer(t, 1)

	_, err := tr.CreateTask(context.Background(), "ftp://demo.example/a.mp4", nil, newRecorder())
	assert.ErrorIs(t, err, download.ErrTransferCreation)

	_, err = tr.CreateTask(context.Background(), "::not a url", nil, newRecorder())
	assert.ErrorIs(t, err, download.ErrTransferCreation)
}
