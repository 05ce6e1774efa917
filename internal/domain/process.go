package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProcessRecord describes one worker process the supervisor launched.
// Records are written to the state file at launch so that a later stop
// invocation can target exactly the processes this supervisor spawned,
// instead of trusting command-line substring matches alone.
//
// The process table remains the source of truth: a record whose PID is
// gone, or whose /proc start time no longer matches (PID reuse), is
// stale and is pruned on read.
type ProcessRecord struct {
	ID         uuid.UUID `json:"id"`
	Role       string    `json:"role"`
	PID        int       `json:"pid"`
	Signature  string    `json:"signature"`
	StartTicks uint64    `json:"start_ticks"`
	StartedAt  time.Time `json:"started_at"`
}

// NewProcessRecord builds a record for a freshly launched process.
func NewProcessRecord(role string, pid int, signature string, startTicks uint64) ProcessRecord {
	return ProcessRecord{
		ID:         uuid.New(),
		Role:       role,
		PID:        pid,
		Signature:  signature,
		StartTicks: startTicks,
		StartedAt:  time.Now().UTC(),
	}
}
