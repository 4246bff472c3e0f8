package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rehostd/rehostd/internal/config"
)

func init() {
	DefaultRegistry.Register("supabase", func(cfg config.StorageConfig) (Provider, error) {
		return NewSupabaseProvider(cfg.Supabase)
	})
}

// SupabaseProvider implements Provider against the Supabase Storage REST API
// using a service-role key. Objects are uploaded into a single configured
// bucket and served through the public object endpoint.
type SupabaseProvider struct {
	client     *http.Client
	baseURL    string
	serviceKey string
	bucket     string
}

// NewSupabaseProvider creates a Supabase Storage provider.
func NewSupabaseProvider(cfg config.SupabaseStorageConfig) (*SupabaseProvider, error) {
	if cfg.URL == "" || cfg.ServiceKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("supabase storage requires url, service_key and bucket")
	}

	return &SupabaseProvider{
		// Context deadlines bound each call; the client timeout is only a
		// backstop for callers that forget one.
		client:     &http.Client{Timeout: 15 * time.Minute},
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		serviceKey: cfg.ServiceKey,
		bucket:     cfg.Bucket,
	}, nil
}

// Upload streams the local file to the bucket under the given key.
func (p *SupabaseProvider) Upload(ctx context.Context, localPath, key string, metadata Metadata) (*ObjectInfo, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return nil, &Error{Provider: "supabase", Err: fmt.Errorf("failed to open source file: %w", err)}
	}
	defer func() { _ = file.Close() }()

	stat, err := file.Stat()
	if err != nil {
		return nil, &Error{Provider: "supabase", Err: fmt.Errorf("failed to stat source file: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.objectURL(key), file)
	if err != nil {
		return nil, &Error{Provider: "supabase", Err: err}
	}
	req.ContentLength = stat.Size()
	req.Header.Set("Authorization", "Bearer "+p.serviceKey)
	req.Header.Set("Content-Type", contentTypeForPath(localPath))
	// Re-processing a task re-uploads under a fresh key, but upserting keeps
	// a duplicate key from failing the whole attempt.
	req.Header.Set("x-upsert", "true")
	for k, v := range metadata {
		req.Header.Set("x-metadata-"+k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &Error{Provider: "supabase", Err: fmt.Errorf("upload request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if err := p.checkResponse(resp, "upload"); err != nil {
		return nil, err
	}

	url, err := p.FileURL(ctx, key)
	if err != nil {
		return nil, err
	}

	return &ObjectInfo{Key: key, URL: url, Size: stat.Size()}, nil
}

// FileURL returns the public object URL for a key.
func (p *SupabaseProvider) FileURL(_ context.Context, key string) (string, error) {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s",
		p.baseURL, p.bucket, strings.TrimPrefix(key, "/")), nil
}

// Delete removes the object stored under the key.
func (p *SupabaseProvider) Delete(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, p.objectURL(key), nil)
	if err != nil {
		return &Error{Provider: "supabase", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+p.serviceKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return &Error{Provider: "supabase", Err: fmt.Errorf("delete request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	return p.checkResponse(resp, "delete")
}

// Exists probes the object with a HEAD request.
func (p *SupabaseProvider) Exists(ctx context.Context, key string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.objectURL(key), nil)
	if err != nil {
		return false, &Error{Provider: "supabase", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+p.serviceKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return false, &Error{Provider: "supabase", Err: fmt.Errorf("exists request failed: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, p.checkResponse(resp, "exists")
	}
}

// objectURL builds the authenticated object endpoint for a key.
func (p *SupabaseProvider) objectURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/%s/%s",
		p.baseURL, p.bucket, strings.TrimPrefix(key, "/"))
}

// checkResponse maps Supabase error responses onto the storage error taxonomy.
func (p *SupabaseProvider) checkResponse(resp *http.Response, op string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Supabase returns {"statusCode": "...", "error": "...", "message": "..."}.
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &body)

	detail := body.Message
	if detail == "" {
		detail = strings.TrimSpace(string(raw))
	}

	wrapped := fmt.Errorf("%s returned %d: %s", op, resp.StatusCode, detail)
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		wrapped = fmt.Errorf("%w: %v", ErrUnauthorized, wrapped)
	case http.StatusNotFound:
		wrapped = fmt.Errorf("%w: %v", ErrObjectNotFound, wrapped)
	case http.StatusRequestEntityTooLarge, http.StatusInsufficientStorage:
		wrapped = fmt.Errorf("%w: %v", ErrQuotaExceeded, wrapped)
	}

	return &Error{Provider: "supabase", Code: body.Error, Err: wrapped}
}

// contentTypeForPath guesses a content type from the file extension.
func contentTypeForPath(path string) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
