package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/phrazzld/warden/internal/sizing"
)

// Config file names searched in the working directory when no explicit
// path is given. The template ships with the deployment and is the
// fallback when the primary file is absent.
const (
	primaryConfigName  = "warden"
	templateConfigName = "warden.template"
)

// Load reads configuration with documented precedence: the explicit file
// at path if given, otherwise warden.yaml, otherwise warden.template.yaml,
// otherwise built-in defaults alone. WARDEN_* environment variables
// override values from any file (e.g. WARDEN_LOG_LEVEL, WARDEN_SERVER_BIND_ADDR).
// Returns a validated Config or an error if loading/validation fails.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("WARDEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else if err := readWithFallback(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// Static misconfiguration (duplicate roles, queue-binding collisions)
	// is caught here, before any process is spawned.
	if err := cfg.Topology().Validate(); err != nil {
		return nil, fmt.Errorf("invalid worker topology: %w", err)
	}

	return &cfg, nil
}

// readWithFallback tries the primary config file, then the template.
// Absence of both is not an error; defaults and environment apply.
func readWithFallback(v *viper.Viper) error {
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	for _, name := range []string{primaryConfigName, templateConfigName} {
		v.SetConfigName(name)
		err := v.ReadInConfig()
		if err == nil {
			return nil
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file %s.yaml: %w", name, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("server.bind_addr", "0.0.0.0:8000")
	v.SetDefault("server.admin_addr", "127.0.0.1:9911")
	v.SetDefault("server.worker_command", []string{"appctl", "http-worker"})
	v.SetDefault("server.threads_per_worker", 1)
	v.SetDefault("server.worker_connections", 2000)
	v.SetDefault("server.backlog", 2048)
	v.SetDefault("server.max_requests", 500)
	v.SetDefault("server.max_requests_jitter", 50)
	v.SetDefault("server.request_timeout", "120s")
	v.SetDefault("server.graceful_timeout", "15s")
	v.SetDefault("server.keep_alive", "5s")
	v.SetDefault("server.min_workers", 1)

	v.SetDefault("workers.task_command", []string{"appctl", "task-worker"})
	v.SetDefault("workers.scheduler_command", []string{"appctl", "scheduler"})
	v.SetDefault("workers.grace_window", "2s")
	v.SetDefault("workers.roles", []map[string]any{
		{"name": "blog_generation", "queues": []string{"blog_generation"},
			"concurrency": sizing.BlogGenerationConcurrency},
		{"name": "image_generation", "queues": []string{"image_generation"},
			"concurrency": sizing.ImageGenerationConcurrency},
		{"name": "default", "queues": []string{},
			"concurrency": sizing.DefaultQueueConcurrency},
	})

	v.SetDefault("paths.logs_dir", "logs")
	v.SetDefault("paths.state_file", ".warden/state.json")
	v.SetDefault("paths.heartbeat_dir", ".warden/heartbeat")
}
