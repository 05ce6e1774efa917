package domain

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Common validation errors
var (
	ErrEmptyRoleName      = errors.New("role name cannot be empty")
	ErrInvalidConcurrency = errors.New("concurrency limit must be at least 1")
	ErrDuplicateRole      = errors.New("role name must be unique within a topology")
	ErrDuplicateQueue     = errors.New("queue may be bound to at most one role")
	ErrDuplicateSingleton = errors.New("topology may declare at most one scheduler role")
)

// Role names reserved by the supervisor itself.
const (
	SchedulerRoleName = "scheduler"
	HTTPRoleName      = "http"
)

// WorkerRole identifies a class of worker process: its queue bindings,
// its internal concurrency limit, and where its output goes.
//
// Role names are also used as command-line search signatures when
// recovering orphaned processes, so they must not collide with substrings
// of unrelated process command lines. That uniqueness is an operator
// invariant; Validate only catches collisions inside one topology.
type WorkerRole struct {
	// Name is the unique role identifier, e.g. "blog_generation".
	Name string

	// Queues lists the task queues this role consumes. Empty means the
	// worker consumes every queue (the catch-all "default" role).
	Queues []string

	// Concurrency is the maximum number of task items a single worker
	// process runs in parallel internally.
	Concurrency int

	// Singleton marks a role that must have at most one process per
	// deployment (the periodic scheduler).
	Singleton bool
}

// Validate checks the role's own invariants.
func (r WorkerRole) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyRoleName
	}
	if !r.Singleton && r.Concurrency < 1 {
		return fmt.Errorf("role %q: %w", r.Name, ErrInvalidConcurrency)
	}
	return nil
}

// Signature returns the command-line substring that identifies processes
// launched for this role. Every worker the supervisor spawns carries a
// "--role <name>" argument precisely so this match is possible.
func (r WorkerRole) Signature() string {
	return "--role " + r.Name
}

// LogFile returns the role's log path under the given logs directory.
func (r WorkerRole) LogFile(logsDir string) string {
	return filepath.Join(logsDir, r.Name+".log")
}

// Topology is the full declared set of worker roles for one deployment.
type Topology struct {
	Roles []WorkerRole
}

// Validate checks every role plus the cross-role invariants: unique role
// names, no queue consumed by two roles, and at most one singleton.
func (t Topology) Validate() error {
	names := make(map[string]struct{}, len(t.Roles))
	queues := make(map[string]string)
	singletons := 0

	for _, role := range t.Roles {
		if err := role.Validate(); err != nil {
			return err
		}
		if _, dup := names[role.Name]; dup {
			return fmt.Errorf("role %q: %w", role.Name, ErrDuplicateRole)
		}
		names[role.Name] = struct{}{}

		for _, q := range role.Queues {
			if owner, dup := queues[q]; dup {
				return fmt.Errorf("queue %q bound to both %q and %q: %w",
					q, owner, role.Name, ErrDuplicateQueue)
			}
			queues[q] = role.Name
		}

		if role.Singleton {
			singletons++
			if singletons > 1 {
				return ErrDuplicateSingleton
			}
		}
	}
	return nil
}

// TaskRoles returns the non-singleton queue worker roles in declaration
// order, excluding the HTTP pool role.
func (t Topology) TaskRoles() []WorkerRole {
	out := make([]WorkerRole, 0, len(t.Roles))
	for _, role := range t.Roles {
		if role.Singleton || role.Name == HTTPRoleName {
			continue
		}
		out = append(out, role)
	}
	return out
}

// Scheduler returns the singleton scheduler role, if declared.
func (t Topology) Scheduler() (WorkerRole, bool) {
	for _, role := range t.Roles {
		if role.Singleton {
			return role, true
		}
	}
	return WorkerRole{}, false
}
