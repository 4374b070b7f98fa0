package hls

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://site.example.com/", r.Header.Get("Referer"))
		_, _ = w.Write([]byte(masterPlaylist))
	}))
	defer srv.Close()

	c := NewClient(time.Second)
	body, err := c.Fetch(context.Background(), srv.URL+"/master.m3u8", map[string]string{"Referer": "https://site.example.com/"})

	require.NoError(t, err)
	assert.Equal(t, masterPlaylist, body)
}

func TestClient_Fetch_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewClient(time.Second).Fetch(context.Background(), srv.URL, nil)

	assert.True(t, errors.Is(err, ErrManifestFetch))
}

func TestClient_Fetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewClient(50*time.Millisecond).Fetch(context.Background(), srv.URL, nil)

	assert.True(t, errors.Is(err, ErrManifestFetch))
}

func TestClient_Fetch_UndecodableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte{0x23, 0x45, 0xff, 0xfe, 0xfd, 0x80})
	}))
	defer srv.Close()

	_, err := NewClient(time.Second).Fetch(context.Background(), srv.URL, nil)

	assert.True(t, errors.Is(err, ErrManifestDecode))
}

func TestClient_Fetch_OversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "#EXTM3U\n")
		line := strings.Repeat("s.ts\n", 1024)
		for written := 0; written <= maxPlaylistBytes; written += len(line) {
			if _, err := io.WriteString(w, line); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	_, err := NewClient(5*time.Second).Fetch(context.Background(), srv.URL, nil)

	assert.True(t, errors.Is(err, ErrManifestDecode))
}

func TestDecode_StripsBOM(t *testing.T) {
	body, err := Decode(append([]byte{0xef, 0xbb, 0xbf}, []byte("#EXTM3U\n")...))

	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n", body)
}
