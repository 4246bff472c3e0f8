package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rehostd/rehostd/internal/config"
	"github.com/rehostd/rehostd/internal/domain"
	"github.com/rehostd/rehostd/internal/media"
	"github.com/rehostd/rehostd/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher returns a scripted result, writing real temp files so artifact
// cleanup can be observed.
type fakeFetcher struct {
	t           *testing.T
	err         error
	kinds       []media.ArtifactKind
	slow        bool
	lastResult  *media.FetchResult
	lastOpts    media.Options
	invocations int
}

func (f *fakeFetcher) Fetch(ctx context.Context, sourceURL string, opts media.Options) (*media.FetchResult, error) {
	f.invocations++
	f.lastOpts = opts
	if f.slow {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Minute):
		}
	}
	if f.err != nil {
		return nil, f.err
	}

	dir := filepath.Join(f.t.TempDir(), opts.ProcessingID)
	require.NoError(f.t, os.MkdirAll(dir, 0o755))
	result := &media.FetchResult{
		Info: media.Info{SourceURL: sourceURL, ContentType: "video/mp4", Size: 4, Extractor: "http"},
	}
	for i, kind := range f.kinds {
		path := filepath.Join(dir, fmt.Sprintf("artifact-%d.bin", i))
		require.NoError(f.t, os.WriteFile(path, []byte("data"), 0o644))
		result.Artifacts = append(result.Artifacts, media.Artifact{
			Path: path, Kind: kind, ContentType: "video/mp4", Size: 4,
		})
	}
	f.lastResult = result
	return result, nil
}

// fakeProvider records uploads and can fail on demand.
type fakeProvider struct {
	err     error
	uploads []string
}

func (p *fakeProvider) Upload(ctx context.Context, localPath, key string, metadata storage.Metadata) (*storage.ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.err != nil {
		return nil, p.err
	}
	p.uploads = append(p.uploads, key)
	return &storage.ObjectInfo{Key: key, URL: "https://cdn.example.com/" + key, Size: 4}, nil
}

func (p *fakeProvider) FileURL(ctx context.Context, key string) (string, error) {
	return "https://cdn.example.com/" + key, nil
}

func (p *fakeProvider) Delete(ctx context.Context, key string) error { return nil }

func (p *fakeProvider) Exists(ctx context.Context, key string) (bool, error) { return false, nil }

func testWorkerConfig() config.WorkerConfig {
	return config.WorkerConfig{
		Count:           1,
		IdleInterval:    time.Millisecond,
		ErrorBackoff:    time.Millisecond,
		MaxAttempts:     3,
		BaseDelay:       time.Second,
		FetchTimeout:    5 * time.Second,
		UploadTimeout:   5 * time.Second,
		FinalizeTimeout: time.Second,
		ShutdownGrace:   50 * time.Millisecond,
		StuckAge:        time.Minute,
		DownloadDir:     os.TempDir(),
	}
}

func newTestTask(t *testing.T) *domain.Task {
	t.Helper()
	task, err := domain.NewTask("https://media.example.com/v.mp4", "")
	require.NoError(t, err)
	task.AttemptCount = 1
	return task
}

func TestExecutorHappyPath(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{t: t, kinds: []media.ArtifactKind{media.ArtifactMedia, media.ArtifactMetadata, media.ArtifactThumbnail}}
	provider := &fakeProvider{}
	exec := NewExecutor(fetcher, provider, testWorkerConfig())
	task := newTestTask(t)

	outcome := exec.Execute(context.Background(), task)

	require.Equal(t, OutcomeSuccess, outcome.Class)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, task.ID.String(), outcome.Result.ProcessingID)
	assert.Equal(t, task.SourceURL, outcome.Result.MediaInfo.SourceURL)
	require.NotNil(t, outcome.Result.Media)
	require.NotNil(t, outcome.Result.Metadata)
	require.NotNil(t, outcome.Result.Thumbnail)
	assert.Len(t, provider.uploads, 3)
	for _, key := range provider.uploads {
		assert.Contains(t, key, "media/"+task.ID.String()+"/")
	}

	// Local artifacts are removed once the attempt finishes.
	for _, a := range fetcher.lastResult.Artifacts {
		_, err := os.Stat(a.Path)
		assert.True(t, os.IsNotExist(err), "artifact %s should be cleaned up", a.Path)
	}
}

func TestExecutorZeroArtifactsCompletes(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{t: t}
	provider := &fakeProvider{}
	exec := NewExecutor(fetcher, provider, testWorkerConfig())

	outcome := exec.Execute(context.Background(), newTestTask(t))

	require.Equal(t, OutcomeSuccess, outcome.Class)
	assert.Empty(t, provider.uploads)
	assert.Nil(t, outcome.Result.Media)
	assert.Equal(t, "video/mp4", outcome.Result.MediaInfo.ContentType)
}

func TestExecutorMetadataOnlyPassedToFetcher(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{t: t, kinds: []media.ArtifactKind{media.ArtifactMetadata}}
	exec := NewExecutor(fetcher, &fakeProvider{}, testWorkerConfig())
	task := newTestTask(t)
	task.MetadataOnly = true

	outcome := exec.Execute(context.Background(), task)

	require.Equal(t, OutcomeSuccess, outcome.Class)
	assert.True(t, fetcher.lastOpts.MetadataOnly)
	assert.Nil(t, outcome.Result.Media)
	require.NotNil(t, outcome.Result.Metadata)
}

func TestExecutorFetchFailureClassified(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want OutcomeClass
	}{
		{"invalid source is permanent", media.ErrInvalidSource, OutcomeNonRecoverable},
		{"transient error is recoverable", errors.New("connection reset"), OutcomeRecoverable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			fetcher := &fakeFetcher{t: t, err: tc.err}
			exec := NewExecutor(fetcher, &fakeProvider{}, testWorkerConfig())

			outcome := exec.Execute(context.Background(), newTestTask(t))

			assert.Equal(t, tc.want, outcome.Class)
			assert.Equal(t, StageFetch, outcome.Stage)
			assert.ErrorIs(t, outcome.Err, tc.err)
			assert.Nil(t, outcome.Result)
		})
	}
}

func TestExecutorFetchTimeoutIsRecoverable(t *testing.T) {
	t.Parallel()
	cfg := testWorkerConfig()
	cfg.FetchTimeout = 20 * time.Millisecond
	exec := NewExecutor(&fakeFetcher{t: t, slow: true}, &fakeProvider{}, cfg)

	outcome := exec.Execute(context.Background(), newTestTask(t))

	assert.Equal(t, OutcomeRecoverable, outcome.Class)
	assert.Equal(t, StageFetch, outcome.Stage)
	assert.ErrorIs(t, outcome.Err, context.DeadlineExceeded)
}

func TestExecutorUploadFailureCleansUpArtifacts(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{t: t, kinds: []media.ArtifactKind{media.ArtifactMedia}}
	provider := &fakeProvider{err: storage.ErrUnauthorized}
	exec := NewExecutor(fetcher, provider, testWorkerConfig())

	outcome := exec.Execute(context.Background(), newTestTask(t))

	require.Equal(t, OutcomeRecoverable, outcome.Class)
	assert.Equal(t, StageUpload, outcome.Stage)
	assert.ErrorIs(t, outcome.Err, storage.ErrUnauthorized)
	for _, a := range fetcher.lastResult.Artifacts {
		_, err := os.Stat(a.Path)
		assert.True(t, os.IsNotExist(err))
	}
}
