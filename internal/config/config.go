package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker" validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage" validate:"required"`
	Fetch    FetchConfig    `mapstructure:"fetch" validate:"required"`
	Webhook  WebhookConfig  `mapstructure:"webhook" validate:"required"`
}

// ServerConfig contains all HTTP server related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// WorkerConfig contains the knobs for the worker loop, the stage executor and
// the retry policy.
type WorkerConfig struct {
	// Count is the number of independent worker loops this process runs.
	// Parallelism across tasks comes from running multiple loops (or multiple
	// processes), never from concurrency within one loop.
	Count int `mapstructure:"count" validate:"required,gte=1"`

	// IdleInterval is how long a loop sleeps after an empty claim before
	// polling the store again.
	IdleInterval time.Duration `mapstructure:"idle_interval" validate:"required,gt=0"`

	// ErrorBackoff is how long a loop sleeps after an infrastructure error
	// (store unreachable) before polling again.
	ErrorBackoff time.Duration `mapstructure:"error_backoff" validate:"required,gt=0"`

	// MaxAttempts is the attempt count at which a recoverable failure becomes
	// terminal. Non-recoverable failures are terminal regardless.
	MaxAttempts int `mapstructure:"max_attempts" validate:"required,gte=1"`

	// BaseDelay is the base of the exponential backoff applied to requeues:
	// delay = BaseDelay * 2^(attempt-1).
	BaseDelay time.Duration `mapstructure:"base_delay" validate:"required,gt=0"`

	// Per-stage hard deadlines.
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout" validate:"required,gt=0"`
	UploadTimeout   time.Duration `mapstructure:"upload_timeout" validate:"required,gt=0"`
	FinalizeTimeout time.Duration `mapstructure:"finalize_timeout" validate:"required,gt=0"`

	// ShutdownGrace is how long an in-flight task may keep running after a
	// shutdown signal before it is aborted as a recoverable failure.
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace" validate:"required,gt=0"`

	// StuckAge is how long a task may sit in processing before the reaper
	// considers its worker dead and requeues it.
	StuckAge time.Duration `mapstructure:"stuck_age" validate:"required,gt=0"`

	// DownloadDir is where fetched artifacts are staged before upload.
	DownloadDir string `mapstructure:"download_dir" validate:"required"`
}

// StorageConfig selects and configures the storage provider. Provider is
// consulted exactly once, at startup, by the storage registry.
type StorageConfig struct {
	Provider string                `mapstructure:"provider" validate:"required,oneof=local supabase"`
	Local    LocalStorageConfig    `mapstructure:"local"`
	Supabase SupabaseStorageConfig `mapstructure:"supabase"`
}

// LocalStorageConfig configures the filesystem storage provider.
type LocalStorageConfig struct {
	BasePath      string `mapstructure:"base_path"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// SupabaseStorageConfig configures the Supabase Storage provider.
type SupabaseStorageConfig struct {
	URL        string `mapstructure:"url"`
	ServiceKey string `mapstructure:"service_key"`
	Bucket     string `mapstructure:"bucket"`
}

// FetchConfig configures the media fetcher.
type FetchConfig struct {
	// MaxFileSize caps the size of a fetched artifact in bytes.
	MaxFileSize int64 `mapstructure:"max_file_size" validate:"required,gt=0"`

	UserAgent string `mapstructure:"user_agent"`
}

// WebhookConfig configures the best-effort completion notifier.
type WebhookConfig struct {
	Timeout     time.Duration `mapstructure:"timeout" validate:"required,gt=0"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"required,gte=1"`
}
