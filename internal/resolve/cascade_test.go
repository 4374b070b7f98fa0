package resolve_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmunix/stowaway/internal/hls"
	"github.com/vmunix/stowaway/internal/modules"
	"github.com/vmunix/stowaway/internal/resolve"
	"github.com/vmunix/stowaway/internal/resolve/mocks"
	"go.uber.org/mock/gomock"
)

const episodeURL = "https://site.example.com/show/ep-1"

// testLogger returns a discard logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fullModule() *modules.Module {
	return &modules.Module{
		ID:           "site",
		BaseURL:      "https://site.example.com",
		Capabilities: modules.Capabilities{Async: true, StreamAsync: true},
	}
}

func TestCascade_FallsThroughPlaceholderAndEmpty(t *testing.T) {
	ctrl := gomock.NewController(t)
	ext := mocks.NewMockExtractor(ctrl)
	mod := fullModule()

	gomock.InOrder(
		ext.EXPECT().Extract(gomock.Any(), episodeURL, mod, resolve.StrategyAsync).
			Return(&resolve.Result{Streams: []string{"[object Promise]"}}, nil),
		ext.EXPECT().Extract(gomock.Any(), episodeURL, mod, resolve.StrategyStreamAsync).
			Return(&resolve.Result{}, nil),
		ext.EXPECT().Extract(gomock.Any(), episodeURL, mod, resolve.StrategyBaseline).
			Return(&resolve.Result{Streams: []string{"https://cdn.example.com/ep1.mp4"}, Subtitles: []string{"https://cdn.example.com/ep1.vtt"}}, nil),
	)

	c := resolve.NewCascade(ext, nil, testLogger())
	res, err := c.Resolve(context.Background(), resolve.Target{URL: episodeURL, Module: mod, Headers: map[string]string{"Referer": "r"}})

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/ep1.mp4", res.URL)
	assert.Equal(t, resolve.StrategyBaseline, res.Strategy)
	assert.Equal(t, []string{"https://cdn.example.com/ep1.vtt"}, res.Subtitles)
	assert.Equal(t, map[string]string{"Referer": "r"}, res.Headers)
}

func TestCascade_SkipsUnsupportedStrategies(t *testing.T) {
	ctrl := gomock.NewController(t)
	ext := mocks.NewMockExtractor(ctrl)
	mod := &modules.Module{ID: "plain"}

	ext.EXPECT().Extract(gomock.Any(), episodeURL, mod, resolve.StrategyBaseline).
		Return(&resolve.Result{Streams: []string{"https://cdn.example.com/a.mp4"}}, nil)

	c := resolve.NewCascade(ext, nil, testLogger())
	res, err := c.Resolve(context.Background(), resolve.Target{URL: episodeURL, Module: mod})

	require.NoError(t, err)
	assert.Equal(t, resolve.StrategyBaseline, res.Strategy)
}

func TestCascade_ExtractorErrorFallsBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	ext := mocks.NewMockExtractor(ctrl)
	mod := &modules.Module{ID: "m", Capabilities: modules.Capabilities{Async: true}}

	ext.EXPECT().Extract(gomock.Any(), episodeURL, mod, resolve.StrategyAsync).
		Return(nil, errors.New("script error"))
	ext.EXPECT().Extract(gomock.Any(), episodeURL, mod, resolve.StrategyBaseline).
		Return(&resolve.Result{Streams: []string{"https://cdn.example.com/a.mp4"}}, nil)

	c := resolve.NewCascade(ext, nil, testLogger())
	res, err := c.Resolve(context.Background(), resolve.Target{URL: episodeURL, Module: mod})

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.mp4", res.URL)
}

func TestCascade_Exhausted(t *testing.T) {
	ctrl := gomock.NewController(t)
	ext := mocks.NewMockExtractor(ctrl)
	mod := fullModule()

	ext.EXPECT().Extract(gomock.Any(), episodeURL, mod, gomock.Any()).
		Return(&resolve.Result{Streams: []string{"  ", "undefined"}}, nil).
		Times(3)

	c := resolve.NewCascade(ext, nil, testLogger())
	res, err := c.Resolve(context.Background(), resolve.Target{URL: episodeURL, Module: mod})

	assert.Nil(t, res)
	assert.True(t, errors.Is(err, resolve.ErrExhausted))
}

func TestCascade_PrefersManifestThenProgressive(t *testing.T) {
	tests := []struct {
		name    string
		streams []string
		want    string
	}{
		{"hls wins", []string{"https://a/x.mp4", "https://a/y.m3u8?token=1", "https://a/z"}, "https://a/y.m3u8?token=1"},
		{"progressive next", []string{"https://a/page", "https://a/x.MP4"}, "https://a/x.MP4"},
		{"first otherwise", []string{"https://a/one", "https://a/two"}, "https://a/one"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			ext := mocks.NewMockExtractor(ctrl)
			ext.EXPECT().Extract(gomock.Any(), episodeURL, gomock.Any(), resolve.StrategyBaseline).
				Return(&resolve.Result{Streams: tc.streams}, nil)

			// No manifest fetcher: the playlist is used as-is.
			c := resolve.NewCascade(ext, nil, testLogger())
			res, err := c.Resolve(context.Background(), resolve.Target{URL: episodeURL})

			require.NoError(t, err)
			assert.Equal(t, tc.want, res.URL)
		})
	}
}

func TestCascade_FollowsMasterPlaylist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://site.example.com/", r.Header.Get("Referer"))
		_, _ = io.WriteString(w, `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=5000000,RESOLUTION=1920x1080
1080/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2500000,RESOLUTION=1280x720
720/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=1000000,RESOLUTION=854x480
480/index.m3u8
`)
	}))
	defer srv.Close()

	ctrl := gomock.NewController(t)
	ext := mocks.NewMockExtractor(ctrl)
	ext.EXPECT().Extract(gomock.Any(), episodeURL, gomock.Any(), resolve.StrategyBaseline).
		Return(&resolve.Result{Streams: []string{srv.URL + "/master.m3u8"}}, nil)

	c := resolve.NewCascade(ext, hls.NewClient(time.Second), testLogger(), resolve.WithQuality(hls.PreferenceHigh))
	res, err := c.Resolve(context.Background(), resolve.Target{
		URL:     episodeURL,
		Headers: map[string]string{"Referer": "https://site.example.com/"},
	})

	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/720/index.m3u8", res.URL)
	assert.Equal(t, "720p", res.Variant)
}

func TestCascade_MasterFollowUpFailureKeepsOriginal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ctrl := gomock.NewController(t)
	ext := mocks.NewMockExtractor(ctrl)
	ext.EXPECT().Extract(gomock.Any(), episodeURL, gomock.Any(), resolve.StrategyBaseline).
		Return(&resolve.Result{Streams: []string{srv.URL + "/master.m3u8"}}, nil)

	c := resolve.NewCascade(ext, hls.NewClient(time.Second), testLogger())
	res, err := c.Resolve(context.Background(), resolve.Target{URL: episodeURL})

	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/master.m3u8", res.URL)
	assert.Empty(t, res.Variant)
}

func TestCascade_StrategyMemo(t *testing.T) {
	ctrl := gomock.NewController(t)
	ext := mocks.NewMockExtractor(ctrl)
	mod := fullModule()
	ok := &resolve.Result{Streams: []string{"https://cdn.example.com/a.mp4"}}

	// First attempt walks the normal order and wins on stream-async.
	gomock.InOrder(
		ext.EXPECT().Extract(gomock.Any(), episodeURL, mod, resolve.StrategyAsync).Return(&resolve.Result{}, nil),
		ext.EXPECT().Extract(gomock.Any(), episodeURL, mod, resolve.StrategyStreamAsync).Return(ok, nil),
		// Second attempt starts with the remembered strategy.
		ext.EXPECT().Extract(gomock.Any(), episodeURL, mod, resolve.StrategyStreamAsync).Return(ok, nil),
	)

	c := resolve.NewCascade(ext, nil, testLogger(), resolve.WithStrategyMemo(true))
	for i := 0; i < 2; i++ {
		res, err := c.Resolve(context.Background(), resolve.Target{URL: episodeURL, Module: mod})
		require.NoError(t, err)
		assert.Equal(t, resolve.StrategyStreamAsync, res.Strategy)
	}
}

func TestCascade_CanceledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	ext := mocks.NewMockExtractor(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := resolve.NewCascade(ext, nil, testLogger())
	_, err := c.Resolve(ctx, resolve.Target{URL: episodeURL})

	assert.True(t, errors.Is(err, context.Canceled))
}

func TestStrategy_String(t *testing.T) {
	assert.Equal(t, "async", resolve.StrategyAsync.String())
	assert.Equal(t, "stream-async", resolve.StrategyStreamAsync.String())
	assert.Equal(t, "baseline", resolve.StrategyBaseline.String())
	assert.Equal(t, "unknown", resolve.Strategy(9).String())
}
