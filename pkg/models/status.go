// Package models defines the entities shared across the sprintforge core:
// stories, tasks, bugs, sprints, epics, roadmaps, agent descriptors and
// worktree records. Entities carry no behavior beyond validation; all
// cross-entity navigation happens by ID through the owning manager.
package models

import "strings"

// StoryStatus represents the lifecycle state of a user story.
type StoryStatus string

const (
	// StoryStatusBacklog indicates the story has not been scheduled.
	StoryStatusBacklog StoryStatus = "backlog"
	// StoryStatusReady indicates the story is estimated and reserved for a sprint.
	StoryStatusReady StoryStatus = "ready"
	// StoryStatusInProgress indicates at least one of the story's tasks is being worked on.
	StoryStatusInProgress StoryStatus = "in_progress"
	// StoryStatusDone indicates every task under the story completed.
	StoryStatusDone StoryStatus = "done"
	// StoryStatusBlocked indicates the story cannot proceed.
	StoryStatusBlocked StoryStatus = "blocked"
)

// Valid returns true if the status is a known value.
func (s StoryStatus) Valid() bool {
	switch s {
	case StoryStatusBacklog, StoryStatusReady, StoryStatusInProgress, StoryStatusDone, StoryStatusBlocked:
		return true
	default:
		return false
	}
}

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has not started.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress indicates the task is being worked on.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusTesting indicates the task is in its test-verification phase.
	TaskStatusTesting TaskStatus = "testing"
	// TaskStatusCompleted indicates the task completed successfully.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusBlocked indicates the task cannot proceed.
	TaskStatusBlocked TaskStatus = "blocked"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusTesting, TaskStatusCompleted, TaskStatusBlocked:
		return true
	default:
		return false
	}
}

// BugStatus represents the lifecycle state of a bug report.
type BugStatus string

const (
	// BugStatusOpen indicates the bug is unscheduled.
	BugStatusOpen BugStatus = "open"
	// BugStatusInProgress indicates the bug is being worked on.
	BugStatusInProgress BugStatus = "in_progress"
	// BugStatusResolved indicates a fix was produced.
	BugStatusResolved BugStatus = "resolved"
	// BugStatusClosed indicates the bug is verified fixed or rejected.
	BugStatusClosed BugStatus = "closed"
)

// Valid returns true if the status is a known value.
func (s BugStatus) Valid() bool {
	switch s {
	case BugStatusOpen, BugStatusInProgress, BugStatusResolved, BugStatusClosed:
		return true
	default:
		return false
	}
}

// SprintStatus represents the lifecycle state of a sprint.
type SprintStatus string

const (
	// SprintStatusPlanned indicates the sprint is planned but not started.
	SprintStatusPlanned SprintStatus = "planned"
	// SprintStatusActive indicates the sprint is running. At most one sprint
	// may be active process-wide.
	SprintStatusActive SprintStatus = "active"
	// SprintStatusCompleted indicates the sprint finished.
	SprintStatusCompleted SprintStatus = "completed"
	// SprintStatusCancelled indicates the sprint was abandoned.
	SprintStatusCancelled SprintStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s SprintStatus) Valid() bool {
	switch s {
	case SprintStatusPlanned, SprintStatusActive, SprintStatusCompleted, SprintStatusCancelled:
		return true
	default:
		return false
	}
}

// Priority orders backlog items for sprint planning.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Valid returns true if the priority is a known value.
func (p Priority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// Rank returns the planning order of the priority, lower first.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

// Severity classifies the impact of a bug.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Valid returns true if the severity is a known value.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	default:
		return false
	}
}

// Points returns the default story points for a bug of this severity.
func (s Severity) Points() int {
	switch s {
	case SeverityCritical:
		return 8
	case SeverityHigh:
		return 5
	case SeverityMedium:
		return 3
	default:
		return 1
	}
}

// normalize lowercases a persisted status string and converts legacy
// space-separated forms ("In Progress") to the canonical snake form.
func normalize(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

// ParseStoryStatus coerces a persisted string into a StoryStatus.
// Unknown values degrade to Backlog; the second return reports whether the
// input was recognized.
func ParseStoryStatus(s string) (StoryStatus, bool) {
	st := StoryStatus(normalize(s))
	if st.Valid() {
		return st, true
	}
	return StoryStatusBacklog, false
}

// ParseTaskStatus coerces a persisted string into a TaskStatus.
// Unknown values degrade to Pending. Legacy data used "done" for completed
// tasks, which is accepted.
func ParseTaskStatus(s string) (TaskStatus, bool) {
	n := normalize(s)
	if n == "done" {
		return TaskStatusCompleted, true
	}
	st := TaskStatus(n)
	if st.Valid() {
		return st, true
	}
	return TaskStatusPending, false
}

// ParseBugStatus coerces a persisted string into a BugStatus.
// Unknown values degrade to Open.
func ParseBugStatus(s string) (BugStatus, bool) {
	st := BugStatus(normalize(s))
	if st.Valid() {
		return st, true
	}
	return BugStatusOpen, false
}

// ParseSprintStatus coerces a persisted string into a SprintStatus.
// Unknown values degrade to Planned.
func ParseSprintStatus(s string) (SprintStatus, bool) {
	st := SprintStatus(normalize(s))
	if st.Valid() {
		return st, true
	}
	return SprintStatusPlanned, false
}

// ParsePriority coerces a persisted string into a Priority.
// Unknown values degrade to Medium.
func ParsePriority(s string) (Priority, bool) {
	p := Priority(normalize(s))
	if p.Valid() {
		return p, true
	}
	return PriorityMedium, false
}

// ParseSeverity coerces a persisted string into a Severity.
// Unknown values degrade to Medium.
func ParseSeverity(s string) (Severity, bool) {
	sv := Severity(normalize(s))
	if sv.Valid() {
		return sv, true
	}
	return SeverityMedium, false
}
