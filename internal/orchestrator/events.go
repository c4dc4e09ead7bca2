// Package orchestrator drives one sprint: it freezes the scope into an
// ordered task set, then runs the tasks one at a time through matching,
// worktree creation, and the test-first executor.
package orchestrator

import (
	"time"
)

// RunState is the orchestrator's position in the sprint-run state machine.
type RunState string

const (
	StateIdle       RunState = "idle"
	StateStarting   RunState = "starting"
	StateRunning    RunState = "running"
	StateDraining   RunState = "draining"
	StateFinalizing RunState = "finalizing"
	StateHalted     RunState = "halted"
)

// EventType is the kind of sprint-run event.
type EventType string

const (
	// EventSprintStarted fires once the scope is frozen and the sprint is active.
	EventSprintStarted EventType = "sprint_started"
	// EventTaskClaimed fires when a task is selected and an agent recorded.
	EventTaskClaimed EventType = "task_claimed"
	// EventTaskCompleted fires when a task finishes green.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskFailed fires when a task's implementation or tests fail.
	EventTaskFailed EventType = "task_failed"
	// EventTaskBlocked fires when a task is blocked (timeout, coverage, cancel).
	EventTaskBlocked EventType = "task_blocked"
	// EventHandoff fires when ownership moves from one agent to another.
	EventHandoff EventType = "handoff"
	// EventPROpened fires when a pull request was opened for a task branch.
	EventPROpened EventType = "pr_opened"
	// EventSprintCompleted fires when the sprint finalizes.
	EventSprintCompleted EventType = "sprint_completed"
	// EventError reports a non-fatal infrastructure problem.
	EventError EventType = "error"
	// EventHalted fires when a fatal condition stops the run.
	EventHalted EventType = "halted"
)

// Event is one observable emission of a sprint run. Consumers render
// these; the orchestrator never prints.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// RunID identifies one Run invocation; a resumed sprint gets a new one.
	RunID string
	// SprintID is the sprint being run.
	SprintID string
	// TaskID is the related task, if any.
	TaskID string
	// TaskTitle is the related task's title, if any.
	TaskTitle string
	// Agent is the related agent name, if any.
	Agent string
	// FromAgent is the previous owner on handoff events.
	FromAgent string
	// Message provides human-readable context.
	Message string
	// Err carries error detail for error events.
	Err error
	// Timestamp is when the event occurred, UTC.
	Timestamp time.Time
}
