package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rehostd/rehostd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSupabaseTestProvider(t *testing.T, handler http.Handler) *SupabaseProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := NewSupabaseProvider(config.SupabaseStorageConfig{
		URL:        server.URL,
		ServiceKey: "service-key",
		Bucket:     "videos",
	})
	require.NoError(t, err)
	return p
}

func TestSupabaseUpload(t *testing.T) {
	var gotPath, gotAuth, gotUpsert string
	var gotBody []byte

	p := newSupabaseTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotUpsert = r.Header.Get("x-upsert")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))

	src := writeTempFile(t, "mp4 bytes")
	info, err := p.Upload(context.Background(), src, "media/t1/video.mp4", Metadata{"task_id": "t1"})
	require.NoError(t, err)

	assert.Equal(t, "/storage/v1/object/videos/media/t1/video.mp4", gotPath)
	assert.Equal(t, "Bearer service-key", gotAuth)
	assert.Equal(t, "true", gotUpsert)
	assert.Equal(t, "mp4 bytes", string(gotBody))

	assert.Equal(t, "media/t1/video.mp4", info.Key)
	assert.Equal(t, int64(len("mp4 bytes")), info.Size)
	assert.Contains(t, info.URL, "/storage/v1/object/public/videos/media/t1/video.mp4")
}

func TestSupabaseErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"Unauthorized","message":"invalid JWT"}`, ErrUnauthorized},
		{"forbidden", http.StatusForbidden, `{"error":"Forbidden","message":"policy denied"}`, ErrUnauthorized},
		{"payload too large", http.StatusRequestEntityTooLarge, `{"error":"TooLarge","message":"exceeds limit"}`, ErrQuotaExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newSupabaseTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			_, err := p.Upload(context.Background(), writeTempFile(t, "x"), "k", nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var storageErr *Error
			require.ErrorAs(t, err, &storageErr)
			assert.Equal(t, "supabase", storageErr.Provider)
		})
	}
}

func TestSupabaseExists(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		p := newSupabaseTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodHead, r.Method)
			w.WriteHeader(http.StatusOK)
		}))

		exists, err := p.Exists(context.Background(), "media/t1/video.mp4")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("absent", func(t *testing.T) {
		p := newSupabaseTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))

		exists, err := p.Exists(context.Background(), "media/t1/video.mp4")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestSupabaseDelete(t *testing.T) {
	var gotMethod string
	p := newSupabaseTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))

	require.NoError(t, p.Delete(context.Background(), "media/t1/video.mp4"))
	assert.Equal(t, http.MethodDelete, gotMethod)
}

func TestSupabaseRequiredConfig(t *testing.T) {
	_, err := NewSupabaseProvider(config.SupabaseStorageConfig{URL: "https://x.supabase.co"})
	assert.Error(t, err)
}
