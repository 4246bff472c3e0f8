// Package media defines the fetch collaborator contract: turning a remote
// source URL into local artifacts ready for upload.
package media

import (
	"context"
)

// ArtifactKind identifies the role of a fetched artifact.
type ArtifactKind string

// Possible artifact kinds
const (
	ArtifactMedia     ArtifactKind = "media"
	ArtifactMetadata  ArtifactKind = "metadata"
	ArtifactThumbnail ArtifactKind = "thumbnail"
)

// Artifact describes one local file produced by a fetch.
type Artifact struct {
	Path        string
	Kind        ArtifactKind
	ContentType string
	Size        int64
}

// Info carries descriptive metadata about the fetched media.
type Info struct {
	Title       string
	ContentType string
	Size        int64
	SourceURL   string
	Extractor   string
}

// FetchResult is the output of a successful fetch: zero or more local
// artifacts plus metadata. Zero media artifacts is a legal result for
// metadata-only sources.
type FetchResult struct {
	Artifacts []Artifact
	Info      Info
}

// Options tunes a single fetch invocation.
type Options struct {
	// ProcessingID namespaces the temp files for this attempt.
	ProcessingID string

	// MetadataOnly skips the content download and produces only the
	// metadata artifact.
	MetadataOnly bool
}

// Fetcher retrieves remote media into local temporary artifacts. The caller
// bounds every invocation with a context deadline; implementations must
// respect it and abandon the transfer when it expires.
type Fetcher interface {
	Fetch(ctx context.Context, sourceURL string, opts Options) (*FetchResult, error)
}
