package supervisor

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/phrazzld/warden/internal/domain"
)

// LaunchSpec describes one detached worker process to start.
type LaunchSpec struct {
	// Role is the worker role name, recorded with the process.
	Role string

	// Argv is the full command line, including the "--role" marker that
	// makes the process findable by signature.
	Argv []string

	// Env entries are appended to the supervisor's environment.
	Env []string

	// LogFile receives the process's stdout and stderr, append mode.
	LogFile string
}

// Signature returns the command-line substring used to rediscover the
// process if its registry record is lost.
func (s LaunchSpec) Signature() string {
	return "--role " + s.Role
}

// Launcher starts detached worker processes. Implemented by
// ExecLauncher; faked in tests.
type Launcher interface {
	Launch(spec LaunchSpec) (domain.ProcessRecord, error)
}

// StartTimer reads a process's start ticks for identity checks.
// Implemented by procfs.Table.
type StartTimer interface {
	StartTicks(pid int) (uint64, error)
}

// ExecLauncher launches workers as detached OS processes: own session,
// output redirected to the role log, never waited on. A worker that dies
// right after spawn surfaces only in its log file; no post-launch health
// check is performed here.
type ExecLauncher struct {
	startTimer StartTimer
	logger     *slog.Logger
}

// NewExecLauncher returns a launcher that records start ticks via the
// given timer.
func NewExecLauncher(startTimer StartTimer, logger *slog.Logger) *ExecLauncher {
	return &ExecLauncher{startTimer: startTimer, logger: logger}
}

// Launch starts the process described by spec and returns its record.
// Control returns to the caller immediately after the spawn succeeds.
func (l *ExecLauncher) Launch(spec LaunchSpec) (domain.ProcessRecord, error) {
	if len(spec.Argv) == 0 {
		return domain.ProcessRecord{}, fmt.Errorf("role %s: empty command", spec.Role)
	}

	logFile, err := openRoleLog(spec.LogFile)
	if err != nil {
		return domain.ProcessRecord{}, fmt.Errorf("role %s: %w", spec.Role, err)
	}
	defer func() {
		if cerr := logFile.Close(); cerr != nil {
			l.logger.Warn("failed to close log file", "role", spec.Role, "error", cerr)
		}
	}()

	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return domain.ProcessRecord{}, fmt.Errorf("role %s: failed to start %q: %w",
			spec.Role, spec.Argv[0], err)
	}
	pid := cmd.Process.Pid

	// The child runs in its own session; release it so the supervisor
	// can exit without holding process state.
	if err := cmd.Process.Release(); err != nil {
		l.logger.Warn("failed to release process handle", "role", spec.Role, "pid", pid, "error", err)
	}

	var ticks uint64
	if t, err := l.startTimer.StartTicks(pid); err == nil {
		ticks = t
	} else {
		l.logger.Warn("could not read process start time", "role", spec.Role, "pid", pid, "error", err)
	}

	l.logger.Info("launched worker process",
		"role", spec.Role, "pid", pid, "log_file", spec.LogFile)
	return domain.NewProcessRecord(spec.Role, pid, spec.Signature(), ticks), nil
}

// openRoleLog opens a role log file in append mode, creating it and its
// directory if absent.
func openRoleLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	return f, nil
}
