package orchestra

import (
	"fmt"
	"time"
)

// ExecutionID is the stable identifier for one end-to-end run of a task.
type ExecutionID string

// Status captures the execution state machine position.
type Status string

const (
	StatusCreated             Status = "created"
	StatusPlanning            Status = "planning"
	StatusAwaitingTools       Status = "awaiting_tools"
	StatusCompleted           Status = "completed"
	StatusFailed              Status = "failed"
	StatusTimedOut            Status = "timed_out"
	StatusIterationsExhausted Status = "iterations_exhausted"
)

// IsTerminal reports whether a status is a sink state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimedOut, StatusIterationsExhausted:
		return true
	default:
		return false
	}
}

// allowedTransitions encodes the monotonic state machine. AwaitingTools back
// to Planning is the only loop edge; terminal statuses have no exits.
var allowedTransitions = map[Status]map[Status]struct{}{
	StatusCreated: {
		StatusPlanning: {},
		StatusFailed:   {},
	},
	StatusPlanning: {
		StatusAwaitingTools:       {},
		StatusCompleted:           {},
		StatusFailed:              {},
		StatusTimedOut:            {},
		StatusIterationsExhausted: {},
	},
	StatusAwaitingTools: {
		StatusPlanning: {},
		StatusFailed:   {},
	},
	StatusCompleted:           {},
	StatusFailed:              {},
	StatusTimedOut:            {},
	StatusIterationsExhausted: {},
}

// ValidateTransition reports whether from -> to is a legal edge.
func ValidateTransition(from, to Status) error {
	if from == to {
		return nil
	}
	allowed, ok := allowedTransitions[from]
	if !ok {
		return fmt.Errorf("%w: unknown source status %q", ErrInvalidTransition, from)
	}
	if _, ok := allowed[to]; !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Execution is the durable record of one run. It is mutated only by the
// execution engine; retention is an external concern.
type Execution struct {
	ID             ExecutionID `json:"id"`
	Task           string      `json:"task"`
	Status         Status      `json:"status"`
	IterationCount int         `json:"iteration_count"`
	MaxIterations  int         `json:"max_iterations"`
	Deadline       time.Time   `json:"deadline"`
	Output         string      `json:"output,omitempty"`
	Error          string      `json:"error,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	Version        int64       `json:"version"`
}

// Transition moves the execution to a new status after validating the edge.
func (e *Execution) Transition(to Status) error {
	if err := ValidateTransition(e.Status, to); err != nil {
		return err
	}
	e.Status = to
	return nil
}

// Result is the shape handed back across the execution boundary.
type Result struct {
	ExecutionID ExecutionID `json:"execution_id"`
	Status      Status      `json:"status"`
	Answer      string      `json:"result,omitempty"`
	Err         string      `json:"error,omitempty"`
}
