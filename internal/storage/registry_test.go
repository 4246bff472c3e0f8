package storage

import (
	"testing"

	"github.com/rehostd/rehostd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrySelectsProviderOnce(t *testing.T) {
	t.Run("local", func(t *testing.T) {
		provider, err := New(config.StorageConfig{
			Provider: "local",
			Local: config.LocalStorageConfig{
				BasePath:      t.TempDir(),
				PublicBaseURL: "http://localhost:8080/media",
			},
		})
		require.NoError(t, err)
		assert.IsType(t, &LocalProvider{}, provider)
	})

	t.Run("supabase", func(t *testing.T) {
		provider, err := New(config.StorageConfig{
			Provider: "supabase",
			Supabase: config.SupabaseStorageConfig{
				URL:        "https://example.supabase.co",
				ServiceKey: "service-key",
				Bucket:     "videos",
			},
		})
		require.NoError(t, err)
		assert.IsType(t, &SupabaseProvider{}, provider)
	})

	t.Run("unknown provider lists available ones", func(t *testing.T) {
		_, err := New(config.StorageConfig{Provider: "gcs"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownProvider)
		assert.Contains(t, err.Error(), "local")
		assert.Contains(t, err.Error(), "supabase")
	})
}

func TestRegistryRegisterReplaces(t *testing.T) {
	r := NewRegistry()

	r.Register("fake", func(cfg config.StorageConfig) (Provider, error) {
		return nil, assert.AnError
	})
	r.Register("fake", func(cfg config.StorageConfig) (Provider, error) {
		return &LocalProvider{}, nil
	})

	provider, err := r.New(config.StorageConfig{Provider: "fake"})
	require.NoError(t, err)
	assert.NotNil(t, provider)
	assert.Equal(t, []string{"fake"}, r.Available())
}
