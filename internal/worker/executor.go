package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rehostd/rehostd/internal/config"
	"github.com/rehostd/rehostd/internal/domain"
	"github.com/rehostd/rehostd/internal/media"
	"github.com/rehostd/rehostd/internal/metrics"
	"github.com/rehostd/rehostd/internal/platform/logger"
	"github.com/rehostd/rehostd/internal/storage"
)

// Executor runs the staged execution of a single claimed task: fetch the
// source into local artifacts, upload them to object storage, assemble the
// result. Each stage runs under its own deadline derived from the worker
// configuration, so a stall in one stage cannot consume the whole attempt
// budget of the others.
type Executor struct {
	fetcher  media.Fetcher
	provider storage.Provider

	fetchTimeout    time.Duration
	uploadTimeout   time.Duration
	finalizeTimeout time.Duration
}

// NewExecutor builds an executor from its collaborators and the worker
// stage-timeout configuration.
func NewExecutor(fetcher media.Fetcher, provider storage.Provider, cfg config.WorkerConfig) *Executor {
	return &Executor{
		fetcher:         fetcher,
		provider:        provider,
		fetchTimeout:    cfg.FetchTimeout,
		uploadTimeout:   cfg.UploadTimeout,
		finalizeTimeout: cfg.FinalizeTimeout,
	}
}

// Execute runs one attempt for the task and returns a classified outcome.
// All local artifacts are removed before Execute returns, on every path.
func (e *Executor) Execute(ctx context.Context, task *domain.Task) Outcome {
	log := logger.FromContext(ctx)

	// Fetch stage.
	fetchStart := time.Now()
	fetchCtx, cancelFetch := context.WithTimeout(ctx, e.fetchTimeout)
	fetched, err := e.fetcher.Fetch(fetchCtx, task.SourceURL, media.Options{
		ProcessingID: task.ID.String(),
		MetadataOnly: task.MetadataOnly,
	})
	cancelFetch()
	metrics.ObserveStage(string(StageFetch), fetchStart)
	if err != nil {
		return failure(StageFetch, err)
	}

	paths := make([]string, 0, len(fetched.Artifacts))
	for _, a := range fetched.Artifacts {
		paths = append(paths, a.Path)
	}
	defer media.CleanupFiles(paths)

	result := &domain.Result{
		ProcessingID: task.ID.String(),
		MediaInfo: domain.MediaInfo{
			Title:       fetched.Info.Title,
			ContentType: fetched.Info.ContentType,
			Size:        fetched.Info.Size,
			SourceURL:   fetched.Info.SourceURL,
			Extractor:   fetched.Info.Extractor,
		},
	}

	// Upload stage. A fetch may legally produce zero artifacts (metadata-only
	// sources); the stage is then a no-op and the task still completes.
	if len(fetched.Artifacts) > 0 {
		uploadStart := time.Now()
		uploadCtx, cancelUpload := context.WithTimeout(ctx, e.uploadTimeout)
		err = e.uploadArtifacts(uploadCtx, task, fetched.Artifacts, result)
		cancelUpload()
		metrics.ObserveStage(string(StageUpload), uploadStart)
		if err != nil {
			return failure(StageUpload, err)
		}
	}

	// Finalize stage: validate the assembled result before it is persisted.
	finalizeStart := time.Now()
	finalizeCtx, cancelFinalize := context.WithTimeout(ctx, e.finalizeTimeout)
	err = finalize(finalizeCtx, result)
	cancelFinalize()
	metrics.ObserveStage(string(StageFinalize), finalizeStart)
	if err != nil {
		return failure(StageFinalize, err)
	}

	log.Debug("task attempt succeeded",
		"task_id", task.ID,
		"artifacts", len(fetched.Artifacts))
	return success(result)
}

// uploadArtifacts pushes every fetched artifact to the provider under a key
// namespaced by the task ID, recording each location on the result.
func (e *Executor) uploadArtifacts(ctx context.Context, task *domain.Task, artifacts []media.Artifact, result *domain.Result) error {
	for _, a := range artifacts {
		key := fmt.Sprintf("media/%s/%s", task.ID, filepath.Base(a.Path))
		info, err := e.provider.Upload(ctx, a.Path, key, storage.Metadata{
			"content-type": a.ContentType,
			"source-url":   task.SourceURL,
		})
		if err != nil {
			return fmt.Errorf("uploading %s artifact: %w", a.Kind, err)
		}

		loc := &domain.ObjectLocation{Key: info.Key, URL: info.URL, Size: info.Size}
		switch a.Kind {
		case media.ArtifactMetadata:
			result.Metadata = loc
		case media.ArtifactThumbnail:
			result.Thumbnail = loc
		default:
			result.Media = loc
		}
	}
	return nil
}

// finalize checks the result is coherent before the completed transition is
// attempted. The context is consulted so a shutdown that has already expired
// the grace period does not commit a half-built result.
func finalize(ctx context.Context, result *domain.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if result.ProcessingID == "" {
		return fmt.Errorf("result missing processing id")
	}
	for _, loc := range result.Locations() {
		if loc.Key == "" || loc.URL == "" {
			return fmt.Errorf("result has incomplete object location %q", loc.Key)
		}
	}
	return nil
}
