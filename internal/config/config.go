package config

import (
	"time"

	"github.com/phrazzld/warden/internal/domain"
)

// Config holds all supervisor configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig  `mapstructure:"server"   validate:"required"`
	Workers  WorkersConfig `mapstructure:"workers"  validate:"required"`
	Paths    PathsConfig   `mapstructure:"paths"    validate:"required"`
	LogLevel string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// ServerConfig contains the HTTP serving pool settings.
type ServerConfig struct {
	// BindAddr is the single listening address shared by the pool.
	BindAddr string `mapstructure:"bind_addr" validate:"required,hostname_port"`

	// AdminAddr is the loopback address of the pool master's status
	// endpoint.
	AdminAddr string `mapstructure:"admin_addr" validate:"required,hostname_port"`

	// WorkerCommand is the argv prefix of the HTTP worker entry point.
	WorkerCommand []string `mapstructure:"worker_command" validate:"required,min=1"`

	// ThreadsPerWorker bounds request-handling threads inside one worker
	// process. The deployment runs 1: process-level parallelism only.
	ThreadsPerWorker int `mapstructure:"threads_per_worker" validate:"required,gte=1"`

	// WorkerConnections caps concurrent connections per worker before
	// new connections queue at the OS socket backlog.
	WorkerConnections int `mapstructure:"worker_connections" validate:"required,gte=1"`

	// Backlog is advertised to workers for their accept loops.
	Backlog int `mapstructure:"backlog" validate:"required,gte=1"`

	// MaxRequests and MaxRequestsJitter bound memory growth: a worker
	// voluntarily exits after serving MaxRequests +/- jitter requests
	// and is transparently replaced.
	MaxRequests       int `mapstructure:"max_requests"        validate:"required,gte=1"`
	MaxRequestsJitter int `mapstructure:"max_requests_jitter" validate:"gte=0"`

	// RequestTimeout is the wall-clock limit per request; a worker
	// exceeding it is treated as stuck and recycled.
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"required,gt=0"`

	// GracefulTimeout bounds how long a recycled or stopping worker may
	// take to finish in-flight requests before forceful termination.
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout" validate:"required,gt=0"`

	// KeepAlive controls how long idle persistent connections stay open.
	// An explicit tunable, 5s to 120s across deployment profiles.
	KeepAlive time.Duration `mapstructure:"keep_alive" validate:"required,gt=0"`

	// MinWorkers clamps the sized pool from below.
	MinWorkers int `mapstructure:"min_workers" validate:"required,gte=1"`
}

// TaskRoleConfig declares one queue-scoped worker role.
type TaskRoleConfig struct {
	Name        string   `mapstructure:"name" validate:"required"`
	Queues      []string `mapstructure:"queues"`
	Concurrency int      `mapstructure:"concurrency" validate:"required,gte=1"`
}

// WorkersConfig contains the task worker group settings.
type WorkersConfig struct {
	// TaskCommand is the argv prefix of the task worker entry point.
	TaskCommand []string `mapstructure:"task_command" validate:"required,min=1"`

	// SchedulerCommand is the argv prefix of the singleton periodic
	// scheduler. At most one scheduler process may run per deployment;
	// the supervisor does not enforce this across invocations.
	SchedulerCommand []string `mapstructure:"scheduler_command" validate:"required,min=1"`

	// Roles are the queue-scoped worker declarations.
	Roles []TaskRoleConfig `mapstructure:"roles" validate:"required,min=1,dive"`

	// GraceWindow is the wait between the graceful and forceful signals
	// during teardown.
	GraceWindow time.Duration `mapstructure:"grace_window" validate:"required,gt=0"`
}

// PathsConfig locates the supervisor's on-disk artifacts.
type PathsConfig struct {
	// LogsDir holds one append-mode log file per role.
	LogsDir string `mapstructure:"logs_dir" validate:"required"`

	// StateFile is the JSON registry of launched processes.
	StateFile string `mapstructure:"state_file" validate:"required"`

	// HeartbeatDir holds per-worker heartbeat files for the HTTP pool.
	HeartbeatDir string `mapstructure:"heartbeat_dir" validate:"required"`
}

// Topology maps the configured roles onto the domain model, including
// the scheduler singleton and the HTTP pool role.
func (c *Config) Topology() domain.Topology {
	roles := make([]domain.WorkerRole, 0, len(c.Workers.Roles)+2)
	for _, rc := range c.Workers.Roles {
		roles = append(roles, domain.WorkerRole{
			Name:        rc.Name,
			Queues:      rc.Queues,
			Concurrency: rc.Concurrency,
		})
	}
	roles = append(roles, domain.WorkerRole{Name: domain.SchedulerRoleName, Singleton: true})
	roles = append(roles, domain.WorkerRole{Name: domain.HTTPRoleName, Concurrency: 1})
	return domain.Topology{Roles: roles}
}
