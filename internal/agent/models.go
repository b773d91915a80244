// internal/agent/models.go
package agent

import (
	"errors"
	"time"
)

var (
	// ErrTaskActive is returned by Start while a task is Running or Stopping.
	ErrTaskActive = errors.New("a task is already active")
	// ErrEmptyTask is returned by Start for a blank description.
	ErrEmptyTask = errors.New("task description is empty")
	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("controller is closed")
)

// State is the controller's lifecycle phase.
type State string

const (
	StateIdle     State = "IDLE"
	StateRunning  State = "RUNNING"
	StateStopping State = "STOPPING" // Stop requested, loop not yet at a boundary.
)

// Outcome records how a task ended.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeCompleted Outcome = "COMPLETED" // The model marked an action complete.
	OutcomeExhausted Outcome = "EXHAUSTED" // The turn budget ran out.
	OutcomeStopped   Outcome = "STOPPED"   // The caller stopped the task.
	OutcomeFailed    Outcome = "FAILED"    // The turn loop panicked.
)

// Task is the active goal and its identity.
type Task struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	StartedAt   time.Time `json:"started_at"`
}

// Result summarizes a finished task.
type Result struct {
	Task       Task          `json:"task"`
	Outcome    Outcome       `json:"outcome"`
	Turns      int           `json:"turns"`
	Message    string        `json:"message,omitempty"`
	FinishedAt time.Time     `json:"finished_at"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Snapshot is a point-in-time view of the controller.
type Snapshot struct {
	State     State   `json:"state"`
	Task      *Task   `json:"task,omitempty"`
	TurnCount int     `json:"turn_count"`
	MaxTurns  int     `json:"max_turns"`
	Last      *Result `json:"last,omitempty"`
}

// Running reports whether a task currently holds the controller.
func (s Snapshot) Running() bool { return s.State != StateIdle }
