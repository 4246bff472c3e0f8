package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file in the working directory or /etc/rehostd.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/rehostd")
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; anything else is a real error.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables with the REHOSTD_ prefix override file values,
	// e.g. REHOSTD_DATABASE_URL, REHOSTD_WORKER_MAX_ATTEMPTS.
	v.SetEnvPrefix("REHOSTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults must be bound explicitly or AutomaticEnv will not
	// surface them through Unmarshal.
	for _, key := range []string{
		"database.url",
		"storage.supabase.url",
		"storage.supabase.service_key",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate runs struct validation over a populated Config.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	// Provider-specific settings are only required for the selected provider.
	switch cfg.Storage.Provider {
	case "local":
		if cfg.Storage.Local.BasePath == "" {
			return fmt.Errorf("config validation failed: storage.local.base_path is required for the local provider")
		}
	case "supabase":
		if cfg.Storage.Supabase.URL == "" || cfg.Storage.Supabase.ServiceKey == "" || cfg.Storage.Supabase.Bucket == "" {
			return fmt.Errorf("config validation failed: storage.supabase.{url,service_key,bucket} are required for the supabase provider")
		}
	}

	return nil
}

// setDefaults establishes reasonable defaults for everything that has one.
// The database URL and provider credentials have no defaults on purpose.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("worker.count", 1)
	v.SetDefault("worker.idle_interval", 5*time.Second)
	v.SetDefault("worker.error_backoff", 5*time.Second)
	v.SetDefault("worker.max_attempts", 3)
	v.SetDefault("worker.base_delay", 30*time.Second)
	v.SetDefault("worker.fetch_timeout", 15*time.Minute)
	v.SetDefault("worker.upload_timeout", 10*time.Minute)
	v.SetDefault("worker.finalize_timeout", 30*time.Second)
	v.SetDefault("worker.shutdown_grace", 30*time.Second)
	v.SetDefault("worker.stuck_age", 30*time.Minute)
	v.SetDefault("worker.download_dir", "/tmp/rehostd-downloads")

	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.local.base_path", "/var/lib/rehostd/media")
	v.SetDefault("storage.local.public_base_url", "http://localhost:8080/media")
	v.SetDefault("storage.supabase.bucket", "videos")

	v.SetDefault("fetch.max_file_size", int64(1<<30)) // 1 GiB
	v.SetDefault("fetch.user_agent", "rehostd/1.0")

	v.SetDefault("webhook.timeout", 10*time.Second)
	v.SetDefault("webhook.max_attempts", 3)
}
