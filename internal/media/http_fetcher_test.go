package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher(t *testing.T, maxSize int64) *HTTPFetcher {
	t.Helper()
	f, err := NewHTTPFetcher(HTTPFetcherConfig{
		DownloadDir: t.TempDir(),
		MaxFileSize: maxSize,
		UserAgent:   "rehostd-test/1.0",
	})
	require.NoError(t, err)
	return f
}

func TestHTTPFetcherFetch(t *testing.T) {
	body := []byte("fake video bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "rehostd-test/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write(body)
	}))
	defer server.Close()

	f := newTestFetcher(t, 1<<20)

	result, err := f.Fetch(context.Background(), server.URL+"/clips/video.mp4", Options{ProcessingID: "p1"})
	require.NoError(t, err)

	require.Len(t, result.Artifacts, 2)

	mediaArt := result.Artifacts[0]
	assert.Equal(t, ArtifactMedia, mediaArt.Kind)
	assert.Equal(t, "video/mp4", mediaArt.ContentType)
	assert.Equal(t, int64(len(body)), mediaArt.Size)
	assert.Equal(t, "video.mp4", filepath.Base(mediaArt.Path))

	metaArt := result.Artifacts[1]
	assert.Equal(t, ArtifactMetadata, metaArt.Kind)
	assert.Equal(t, "info.json", filepath.Base(metaArt.Path))

	assert.Equal(t, "video", result.Info.Title)
	assert.Equal(t, int64(len(body)), result.Info.Size)

	content, err := os.ReadFile(mediaArt.Path)
	require.NoError(t, err)
	assert.Equal(t, body, content)
}

func TestHTTPFetcherMetadataOnly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/webm")
		_, _ = w.Write([]byte("should not be downloaded"))
	}))
	defer server.Close()

	f := newTestFetcher(t, 1<<20)

	result, err := f.Fetch(context.Background(), server.URL+"/v", Options{ProcessingID: "p2", MetadataOnly: true})
	require.NoError(t, err)

	require.Len(t, result.Artifacts, 1)
	assert.Equal(t, ArtifactMetadata, result.Artifacts[0].Kind)
}

func TestHTTPFetcherErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"not found is invalid source", http.StatusNotFound, ErrInvalidSource},
		{"gone is invalid source", http.StatusGone, ErrInvalidSource},
		{"forbidden is unsupported", http.StatusForbidden, ErrUnsupportedSource},
		{"teapot is unsupported", http.StatusTeapot, ErrUnsupportedSource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			f := newTestFetcher(t, 1<<20)
			_, err := f.Fetch(context.Background(), server.URL, Options{ProcessingID: "p"})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("server errors stay transient", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		f := newTestFetcher(t, 1<<20)
		_, err := f.Fetch(context.Background(), server.URL, Options{ProcessingID: "p"})
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidSource)
		assert.NotErrorIs(t, err, ErrUnsupportedSource)
	})

	t.Run("malformed URL", func(t *testing.T) {
		f := newTestFetcher(t, 1<<20)
		_, err := f.Fetch(context.Background(), "not-a-url", Options{ProcessingID: "p"})
		assert.ErrorIs(t, err, ErrInvalidSource)
	})
}

func TestHTTPFetcherSizeLimit(t *testing.T) {
	t.Run("announced content length", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Length", "2048")
			_, _ = w.Write(make([]byte, 2048))
		}))
		defer server.Close()

		f := newTestFetcher(t, 1024)
		_, err := f.Fetch(context.Background(), server.URL, Options{ProcessingID: "p"})
		assert.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("unannounced oversized body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Transfer-Encoding", "chunked")
			_, _ = w.Write(make([]byte, 4096))
		}))
		defer server.Close()

		f := newTestFetcher(t, 1024)
		_, err := f.Fetch(context.Background(), server.URL, Options{ProcessingID: "p"})
		assert.ErrorIs(t, err, ErrTooLarge)
	})
}

func TestHTTPFetcherCleansStagingDirOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Transfer-Encoding", "chunked")
		_, _ = w.Write(make([]byte, 4096))
	}))
	defer server.Close()

	dir := t.TempDir()
	f, err := NewHTTPFetcher(HTTPFetcherConfig{DownloadDir: dir, MaxFileSize: 1024})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), server.URL, Options{ProcessingID: "doomed"})
	require.ErrorIs(t, err, ErrTooLarge)

	// Neither the partial download nor the per-task staging directory
	// survives a failed attempt.
	_, statErr := os.Stat(filepath.Join(dir, "doomed"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestHTTPFetcherRespectsDeadline(t *testing.T) {
	blocked := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer server.Close()
	defer close(blocked)

	f := newTestFetcher(t, 1<<20)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.Fetch(ctx, server.URL, Options{ProcessingID: "p"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCleanupFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "stage")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	p1 := filepath.Join(dir, "a.mp4")
	p2 := filepath.Join(dir, "info.json")
	require.NoError(t, os.WriteFile(p1, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(p2, []byte("{}"), 0o644))

	// Missing files are tolerated.
	CleanupFiles([]string{p1, p2, filepath.Join(dir, "never-existed"), ""})

	_, err := os.Stat(p1)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(p2)
	assert.True(t, os.IsNotExist(err))

	// The emptied staging directory is removed too.
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}
