package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rehostd/rehostd/internal/config"
)

func init() {
	DefaultRegistry.Register("local", func(cfg config.StorageConfig) (Provider, error) {
		return NewLocalProvider(cfg.Local.BasePath, cfg.Local.PublicBaseURL)
	})
}

// LocalProvider implements Provider on the local filesystem. Retrieval URLs
// are built from a configured public base URL, assuming something else serves
// the base path.
type LocalProvider struct {
	basePath      string
	publicBaseURL string
}

// NewLocalProvider creates a filesystem-backed provider rooted at basePath.
func NewLocalProvider(basePath, publicBaseURL string) (*LocalProvider, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}

	return &LocalProvider{
		basePath:      basePath,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
	}, nil
}

// Upload copies the local file under the key.
func (p *LocalProvider) Upload(ctx context.Context, localPath, key string, metadata Metadata) (*ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return nil, &Error{Provider: "local", Err: fmt.Errorf("failed to open source file: %w", err)}
	}
	defer func() { _ = src.Close() }()

	dest := p.keyToPath(key)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, &Error{Provider: "local", Err: fmt.Errorf("failed to create directory: %w", err)}
	}

	out, err := os.Create(dest)
	if err != nil {
		return nil, &Error{Provider: "local", Err: fmt.Errorf("failed to create destination: %w", err)}
	}
	defer func() { _ = out.Close() }()

	size, err := io.Copy(out, src)
	if err != nil {
		_ = os.Remove(dest)
		return nil, &Error{Provider: "local", Err: fmt.Errorf("failed to copy content: %w", err)}
	}

	url, err := p.FileURL(ctx, key)
	if err != nil {
		return nil, err
	}

	return &ObjectInfo{Key: key, URL: url, Size: size}, nil
}

// FileURL returns the public URL for a key.
func (p *LocalProvider) FileURL(_ context.Context, key string) (string, error) {
	return p.publicBaseURL + "/" + strings.TrimPrefix(key, "/"), nil
}

// Delete removes the object stored under the key.
func (p *LocalProvider) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(p.keyToPath(key)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return &Error{Provider: "local", Err: err}
	}
	return nil
}

// Exists reports whether an object is stored under the key.
func (p *LocalProvider) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(p.keyToPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &Error{Provider: "local", Err: err}
	}
	return true, nil
}

// keyToPath maps a storage key onto the filesystem, keeping traversal
// sequences from escaping the base path.
func (p *LocalProvider) keyToPath(key string) string {
	clean := filepath.Clean("/" + strings.TrimPrefix(key, "/"))
	return filepath.Join(p.basePath, clean)
}
