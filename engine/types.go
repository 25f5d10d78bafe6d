package engine

import (
	"time"

	"github.com/yairfalse/vahti/ledger"
)

// State tracks where an evaluation run is in its lifecycle
type State string

const (
	StatePending    State = "PENDING"
	StateEvaluating State = "EVALUATING"
	StateCompleted  State = "COMPLETED"
	StateFailed     State = "FAILED"
)

// RunResult summarizes one connection's evaluation run
type RunResult struct {
	Connection string                 `json:"connection"`
	State      State                  `json:"state"`
	Policies   int                    `json:"policies"`
	Findings   int                    `json:"findings"`
	Flagged    int                    `json:"flagged"`
	Outcomes   map[ledger.Outcome]int `json:"outcomes,omitempty"`
	Duration   time.Duration          `json:"duration"`
	Err        error                  `json:"-"`
}
