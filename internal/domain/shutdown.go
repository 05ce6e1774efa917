package domain

import (
	"syscall"
	"time"
)

// ShutdownStep is one rung of the escalation ladder: deliver Signal to
// every live target, then allow up to Wait for them to exit.
type ShutdownStep struct {
	Signal syscall.Signal
	Wait   time.Duration
}

// ShutdownPolicy is the ordered signal escalation applied to a role's
// process set. Graceful steps run first; Final is the non-catchable kill
// sent to anything still alive, followed by a verification re-scan
// bounded by VerifyWait.
type ShutdownPolicy struct {
	Steps      []ShutdownStep
	Final      syscall.Signal
	VerifyWait time.Duration
}

// DefaultShutdownPolicy is the deployment's standard teardown: SIGTERM,
// a 2 second grace window, then SIGKILL with a short verification wait.
func DefaultShutdownPolicy() ShutdownPolicy {
	return ShutdownPolicy{
		Steps: []ShutdownStep{
			{Signal: syscall.SIGTERM, Wait: 2 * time.Second},
		},
		Final:      syscall.SIGKILL,
		VerifyWait: time.Second,
	}
}
