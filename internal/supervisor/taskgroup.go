package supervisor

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/phrazzld/warden/internal/config"
	"github.com/phrazzld/warden/internal/domain"
)

// RecordSink receives records of launched processes. Implemented by
// registry.File.
type RecordSink interface {
	Append(rec domain.ProcessRecord) error
}

// TaskGroup starts the full declared set of task workers: one process
// per queue-scoped role plus the singleton periodic scheduler.
//
// Start is not idempotent. Invoking it twice without stopping first
// produces duplicate consumers on the same queues; that is operator
// error, not a condition this layer detects.
type TaskGroup struct {
	workers  config.WorkersConfig
	logsDir  string
	launcher Launcher
	records  RecordSink
	logger   *slog.Logger
}

// NewTaskGroup wires a task worker group supervisor.
func NewTaskGroup(
	workers config.WorkersConfig,
	logsDir string,
	launcher Launcher,
	records RecordSink,
	logger *slog.Logger,
) *TaskGroup {
	return &TaskGroup{
		workers:  workers,
		logsDir:  logsDir,
		launcher: launcher,
		records:  records,
		logger:   logger,
	}
}

// Start launches every declared role and then the scheduler, recording
// each process. It returns after the spawns, without waiting on any
// worker; a role whose process exits right after launch is visible only
// in that role's log file.
//
// A launch failure aborts the remaining launches and is returned;
// already-started workers keep running and can be cleaned up with stop.
func (g *TaskGroup) Start(topology domain.Topology) error {
	for _, role := range topology.TaskRoles() {
		if err := g.launchRole(roleSpec(g.workers.TaskCommand, role, g.logsDir)); err != nil {
			return err
		}
	}

	sched, hasScheduler := topology.Scheduler()
	if hasScheduler {
		spec := LaunchSpec{
			Role:    sched.Name,
			Argv:    append(append([]string{}, g.workers.SchedulerCommand...), "--role", sched.Name),
			LogFile: sched.LogFile(g.logsDir),
		}
		if err := g.launchRole(spec); err != nil {
			return err
		}
	}

	g.logger.Info("task worker group launch requested",
		"roles", len(topology.TaskRoles()), "scheduler", hasScheduler)
	return nil
}

func (g *TaskGroup) launchRole(spec LaunchSpec) error {
	rec, err := g.launcher.Launch(spec)
	if err != nil {
		return fmt.Errorf("failed to launch task worker group: %w", err)
	}
	if err := g.records.Append(rec); err != nil {
		return fmt.Errorf("failed to record %s worker: %w", spec.Role, err)
	}
	return nil
}

// roleSpec builds the launch spec for one queue-scoped worker: the task
// command plus role, concurrency, and queue-binding flags. A role with
// no queues consumes all queues and gets no --queues flag.
func roleSpec(taskCommand []string, role domain.WorkerRole, logsDir string) LaunchSpec {
	argv := append([]string{}, taskCommand...)
	argv = append(argv,
		"--role", role.Name,
		"--concurrency", strconv.Itoa(role.Concurrency),
	)
	if len(role.Queues) > 0 {
		argv = append(argv, "--queues", strings.Join(role.Queues, ","))
	}
	return LaunchSpec{
		Role:    role.Name,
		Argv:    argv,
		LogFile: role.LogFile(logsDir),
	}
}
