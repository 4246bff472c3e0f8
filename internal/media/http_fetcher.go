package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rehostd/rehostd/internal/platform/logger"
)

// HTTPFetcher downloads media over plain HTTP(S) into a staging directory.
// It honors the context deadline on every network operation and enforces a
// maximum file size so one oversized source cannot fill the disk.
type HTTPFetcher struct {
	client      *http.Client
	downloadDir string
	maxFileSize int64
	userAgent   string
}

// HTTPFetcherConfig configures an HTTPFetcher.
type HTTPFetcherConfig struct {
	DownloadDir string
	MaxFileSize int64
	UserAgent   string
}

// NewHTTPFetcher creates an HTTPFetcher, ensuring the staging directory exists.
func NewHTTPFetcher(cfg HTTPFetcherConfig) (*HTTPFetcher, error) {
	if err := os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download directory %s: %w", cfg.DownloadDir, err)
	}

	return &HTTPFetcher{
		// No client-level timeout: the per-stage deadline on the request
		// context is the single source of truth for how long a fetch may run.
		client:      &http.Client{},
		downloadDir: cfg.DownloadDir,
		maxFileSize: cfg.MaxFileSize,
		userAgent:   cfg.UserAgent,
	}, nil
}

// Fetch downloads the source into the staging directory and writes a metadata
// JSON artifact next to it.
func (f *HTTPFetcher) Fetch(ctx context.Context, sourceURL string, opts Options) (*FetchResult, error) {
	log := logger.FromContext(ctx)

	parsed, err := url.Parse(sourceURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSource, sourceURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		// Timeouts and connection failures stay unwrapped transport errors;
		// the classifier treats them as recoverable.
		return nil, fmt.Errorf("failed to fetch %s: %w", sourceURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := classifyStatus(resp.StatusCode, sourceURL); err != nil {
		return nil, err
	}

	if resp.ContentLength > 0 && f.maxFileSize > 0 && resp.ContentLength > f.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, resp.ContentLength, f.maxFileSize)
	}

	info := Info{
		Title:       mediaTitle(parsed),
		ContentType: contentType(resp),
		SourceURL:   sourceURL,
		Extractor:   "http",
	}

	stageDir := filepath.Join(f.downloadDir, opts.ProcessingID)
	if err := os.MkdirAll(stageDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	var artifacts []Artifact

	// A failed attempt leaves nothing behind: the caller only learns artifact
	// paths from a successful fetch, so partial downloads and the staging
	// directory itself are removed here on every error exit.
	if !opts.MetadataOnly {
		mediaArtifact, err := f.downloadBody(resp, stageDir, parsed, info.ContentType)
		if err != nil {
			_ = os.RemoveAll(stageDir)
			return nil, err
		}
		info.Size = mediaArtifact.Size
		artifacts = append(artifacts, *mediaArtifact)

		log.Debug("downloaded media artifact",
			"source_url", sourceURL,
			"path", mediaArtifact.Path,
			"size", mediaArtifact.Size)
	}

	metaArtifact, err := writeMetadataArtifact(stageDir, info)
	if err != nil {
		_ = os.RemoveAll(stageDir)
		return nil, err
	}
	artifacts = append(artifacts, *metaArtifact)

	return &FetchResult{Artifacts: artifacts, Info: info}, nil
}

// downloadBody streams the response body to disk, enforcing the size cap even
// when the server did not announce a content length.
func (f *HTTPFetcher) downloadBody(resp *http.Response, stageDir string, parsed *url.URL, ctype string) (*Artifact, error) {
	name := path.Base(parsed.Path)
	if name == "" || name == "/" || name == "." {
		name = "media" + extensionFor(ctype)
	}
	dest := filepath.Join(stageDir, name)

	out, err := os.Create(dest)
	if err != nil {
		return nil, fmt.Errorf("failed to create media file: %w", err)
	}
	defer func() { _ = out.Close() }()

	reader := io.Reader(resp.Body)
	if f.maxFileSize > 0 {
		reader = io.LimitReader(resp.Body, f.maxFileSize+1)
	}

	written, err := io.Copy(out, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to download media body: %w", err)
	}
	if f.maxFileSize > 0 && written > f.maxFileSize {
		return nil, fmt.Errorf("%w: body exceeded %d bytes", ErrTooLarge, f.maxFileSize)
	}

	return &Artifact{
		Path:        dest,
		Kind:        ArtifactMedia,
		ContentType: ctype,
		Size:        written,
	}, nil
}

// writeMetadataArtifact serializes the media info to an info.json artifact,
// mirroring the sidecar metadata file the upload stage expects.
func writeMetadataArtifact(stageDir string, info Info) (*Artifact, error) {
	dest := filepath.Join(stageDir, "info.json")

	data, err := json.MarshalIndent(map[string]any{
		"title":        info.Title,
		"content_type": info.ContentType,
		"size":         info.Size,
		"source_url":   info.SourceURL,
		"extractor":    info.Extractor,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal media info: %w", err)
	}

	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write metadata artifact: %w", err)
	}

	return &Artifact{
		Path:        dest,
		Kind:        ArtifactMetadata,
		ContentType: "application/json",
		Size:        int64(len(data)),
	}, nil
}

// classifyStatus maps HTTP status codes onto the fetch error taxonomy.
// 4xx responses will not change on retry; 5xx and everything else transient
// stays recoverable.
func classifyStatus(status int, sourceURL string) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound || status == http.StatusGone:
		return fmt.Errorf("%w: source returned %d", ErrInvalidSource, status)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: source rejected access with %d", ErrUnsupportedSource, status)
	case status >= 400 && status < 500:
		return fmt.Errorf("%w: source returned %d", ErrUnsupportedSource, status)
	default:
		return fmt.Errorf("transient fetch failure: %s returned %d", sourceURL, status)
	}
}

// CleanupFiles removes temporary artifacts, tolerating files that are already
// gone. It is called on every executor exit path.
func CleanupFiles(paths []string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			continue
		}
		// Drop the per-task staging directory once it empties out.
		_ = os.Remove(filepath.Dir(p))
	}
}

func contentType(resp *http.Response) string {
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		return "application/octet-stream"
	}
	if parsed, _, err := mime.ParseMediaType(ct); err == nil {
		return parsed
	}
	return ct
}

func extensionFor(ctype string) string {
	exts, err := mime.ExtensionsByType(ctype)
	if err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

func mediaTitle(u *url.URL) string {
	name := strings.TrimSuffix(path.Base(u.Path), path.Ext(u.Path))
	if name == "" || name == "/" || name == "." {
		return u.Host
	}
	return name
}
