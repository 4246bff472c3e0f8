// Package storage defines the object storage collaborator contract and its
// provider implementations. The provider is chosen once at startup through an
// explicit registry keyed by configuration, never per call.
package storage

import (
	"context"
)

// ObjectInfo describes where an uploaded artifact can be retrieved from.
type ObjectInfo struct {
	Key  string
	URL  string
	Size int64
}

// Metadata is optional descriptive data attached to an upload.
type Metadata map[string]string

// Provider is the closed capability set every storage backend implements.
// All operations must respect the deadline carried by the context.
type Provider interface {
	// Upload persists a local file under the given key and returns its
	// retrievable location.
	Upload(ctx context.Context, localPath, key string, metadata Metadata) (*ObjectInfo, error)

	// FileURL returns the retrieval URL for a stored object.
	FileURL(ctx context.Context, key string) (string, error)

	// Delete removes a stored object.
	Delete(ctx context.Context, key string) error

	// Exists reports whether an object is stored under the key.
	Exists(ctx context.Context, key string) (bool, error)
}
