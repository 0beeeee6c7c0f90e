package schedule

import (
	"github.com/nerrad567/sunspy/internal/solar"
)

// State is the scheduler's position in its loop.
type State string

// Scheduler states. Idle precedes the first Run; Drained is terminal.
const (
	StateIdle        State = "idle"
	StateWaiting     State = "waiting"
	StateFiring      State = "firing"
	StateRecomputing State = "recomputing"
	StateRescheduled State = "rescheduled"
	StateDrained     State = "drained"
)

// Status is a point-in-time copy of the scheduler, safe to hand to other
// goroutines.
type Status struct {
	State     State          `json:"state"`
	Location  solar.Location `json:"location"`
	Anchors   solar.Anchors  `json:"anchors"`
	Events    []Event        `json:"events"`
	DryRun    bool           `json:"dry_run"`
	Immediate bool           `json:"immediate"`
}
