// Package shutdown implements the termination coordinator: a per-role
// state machine that escalates shutdown signals over a process set and
// verifies the outcome against the process table.
package shutdown

import (
	"context"
	"log/slog"
	"sort"
	"syscall"
	"time"

	"github.com/phrazzld/warden/internal/domain"
)

// State is the coordinator's position in the teardown of one role group.
type State string

const (
	StateRunning         State = "RUNNING"
	StateGracePeriod     State = "GRACE_PERIOD"
	StateVerifiedStopped State = "VERIFIED_STOPPED"
	StateStuck           State = "STUCK"
)

// Result reports the terminal state for one role group.
type Result struct {
	Role      string
	State     State
	Signalled int   // processes that received the graceful signal
	Forced    int   // processes that needed the forceful signal
	Remaining []int // PIDs still alive after escalation (STUCK only)
}

// Stopped reports whether the group reached VERIFIED_STOPPED.
func (r Result) Stopped() bool {
	return r.State == StateVerifiedStopped
}

// ProcessTable is the subset of the process table the coordinator needs.
// Implemented by procfs.Table; faked in tests.
type ProcessTable interface {
	FindBySignature(signature string) ([]int, error)
	Alive(pid int) bool
	Signal(pid int, sig syscall.Signal) error
}

// Coordinator tears down role groups with a fixed escalation: graceful
// signal, grace window, forceful signal, verification re-scan. The order
// is never changed — skipping the grace window risks corrupting in-flight
// task state, and skipping verification risks leaving zombie consumers
// attached to shared queues.
type Coordinator struct {
	table        ProcessTable
	policy       domain.ShutdownPolicy
	pollInterval time.Duration
	logger       *slog.Logger
}

// New returns a Coordinator using the given table and escalation policy.
func New(table ProcessTable, policy domain.ShutdownPolicy, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		table:        table,
		policy:       policy,
		pollInterval: 100 * time.Millisecond,
		logger:       logger,
	}
}

// Terminate stops every process in the role group identified by the
// recorded PIDs plus any orphan whose command line matches signature.
// It always runs the full escalation and returns the terminal state; a
// STUCK result is reported, not retried.
func (c *Coordinator) Terminate(ctx context.Context, role string, pids []int, signature string) Result {
	logger := c.logger.With("role", role)

	targets := c.collect(pids, signature)
	if len(targets) == 0 {
		logger.Info("no matching processes, already stopped")
		return Result{Role: role, State: StateVerifiedStopped}
	}

	logger.Info("terminating role group", "pids", targets)
	res := Result{Role: role, State: StateRunning}

	// Graceful steps: signal everything alive, then wait out the grace
	// window, polling so fast shutdowns converge early.
	for _, step := range c.policy.Steps {
		alive := c.alive(targets)
		if len(alive) == 0 {
			break
		}
		for _, pid := range alive {
			if err := c.table.Signal(pid, step.Signal); err != nil {
				logger.Warn("failed to deliver graceful signal", "pid", pid, "error", err)
				continue
			}
			res.Signalled++
		}
		res.State = StateGracePeriod
		c.await(ctx, targets, step.Wait)
	}

	// Forceful phase: anything still alive gets the non-catchable kill.
	for _, pid := range c.alive(targets) {
		if err := c.table.Signal(pid, c.policy.Final); err != nil {
			logger.Warn("failed to deliver forceful signal", "pid", pid, "error", err)
		}
		res.Forced++
	}
	if res.Forced > 0 {
		c.await(ctx, targets, c.policy.VerifyWait)
	}

	// Verification re-scan: recorded PIDs and the signature fallback
	// both have to come back empty.
	remaining := c.alive(c.collect(targets, signature))
	if len(remaining) > 0 {
		logger.Warn("role group stuck after forceful signal", "pids", remaining)
		res.State = StateStuck
		res.Remaining = remaining
		return res
	}

	logger.Info("role group stopped", "signalled", res.Signalled, "forced", res.Forced)
	res.State = StateVerifiedStopped
	return res
}

// collect merges recorded PIDs with a signature scan, deduplicated and
// sorted. Scan errors degrade to the recorded PIDs alone.
func (c *Coordinator) collect(pids []int, signature string) []int {
	seen := make(map[int]struct{}, len(pids))
	var out []int
	add := func(pid int) {
		if pid <= 0 {
			return
		}
		if _, dup := seen[pid]; dup {
			return
		}
		seen[pid] = struct{}{}
		out = append(out, pid)
	}

	for _, pid := range pids {
		add(pid)
	}
	if matched, err := c.table.FindBySignature(signature); err != nil {
		c.logger.Warn("process table scan failed, using recorded pids only",
			"signature", signature, "error", err)
	} else {
		for _, pid := range matched {
			add(pid)
		}
	}
	sort.Ints(out)
	return out
}

func (c *Coordinator) alive(pids []int) []int {
	var out []int
	for _, pid := range pids {
		if c.table.Alive(pid) {
			out = append(out, pid)
		}
	}
	return out
}

// await polls until every target is gone or the window elapses.
func (c *Coordinator) await(ctx context.Context, targets []int, window time.Duration) {
	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		if len(c.alive(targets)) == 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.pollInterval):
		}
	}
}
