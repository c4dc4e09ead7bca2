package models

import "time"

// StoryPointScale is the Fibonacci scale used for all point estimates.
var StoryPointScale = []int{1, 2, 3, 5, 8, 13, 21}

// ValidPoints returns true if p is on the Fibonacci point scale.
// Zero means "unset" and is accepted everywhere except sprint planning.
func ValidPoints(p int) bool {
	if p == 0 {
		return true
	}
	for _, s := range StoryPointScale {
		if p == s {
			return true
		}
	}
	return false
}

// Story is a user story with acceptance criteria.
type Story struct {
	// ID is the unique identifier, US-XXXXXX.
	ID string `json:"id"`
	// Title is the short description of the story.
	Title string `json:"title"`
	// Role is the "as a ..." part of the story statement.
	Role string `json:"role"`
	// Want is the "I want ..." part of the story statement.
	Want string `json:"want"`
	// Benefit is the "so that ..." part of the story statement.
	Benefit string `json:"benefit"`
	// Description is the rendered story statement plus free-form detail.
	Description string `json:"description,omitempty"`
	// AcceptanceCriteria is the ordered list of completion criteria.
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`
	// Priority orders the story in the backlog.
	Priority Priority `json:"priority"`
	// Status is the current lifecycle state.
	Status StoryStatus `json:"status"`
	// StoryPoints is the Fibonacci estimate, 0 when unestimated.
	StoryPoints int `json:"story_points"`
	// EpicID links the story to an epic, if any.
	EpicID string `json:"epic_id,omitempty"`
	// TaskIDs lists the tasks created under this story.
	TaskIDs []string `json:"task_ids,omitempty"`
	// CreatedAt is when the story was created, UTC.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the story was last modified, UTC.
	UpdatedAt time.Time `json:"updated_at"`
}

// Estimated returns true if the story carries a point estimate.
func (s *Story) Estimated() bool {
	return s.StoryPoints > 0
}

// Task is a unit of work under a story or bug.
type Task struct {
	// ID is the unique identifier, TASK-XXXXXX.
	ID string `json:"id"`
	// StoryID is the owning story; required.
	StoryID string `json:"story_id"`
	// BugID is set instead of a story linkage when the task fixes a bug.
	BugID string `json:"bug_id,omitempty"`
	// Title is the short description of the task.
	Title string `json:"title"`
	// Description provides detail about the work.
	Description string `json:"description,omitempty"`
	// TechnicalDetails carries implementation notes used for agent matching.
	TechnicalDetails string `json:"technical_details,omitempty"`
	// EstimatedHours is the effort estimate; defaults to 4.
	EstimatedHours float64 `json:"estimated_hours"`
	// Status is the current lifecycle state. A task may enter in_progress
	// only when every dependency is completed.
	Status TaskStatus `json:"status"`
	// AssignedAgent is the agent name the matcher or a caller selected.
	AssignedAgent string `json:"assigned_agent,omitempty"`
	// TestCriteria lists the checks the test-first sequence must cover.
	TestCriteria []string `json:"test_criteria,omitempty"`
	// Dependencies lists task IDs that must complete before this task.
	Dependencies []string `json:"dependencies,omitempty"`
	// Priority orders the task within its story.
	Priority Priority `json:"priority"`
	// CreatedAt is when the task was created, UTC.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the task completed, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// BlockedReason explains a blocked status ("coverage", "timeout", ...).
	BlockedReason string `json:"blocked_reason,omitempty"`
}

// Terminal returns true if the task reached a final state.
func (t *Task) Terminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusBlocked
}

// Bug is a defect report. Bugs are schedulable like stories.
type Bug struct {
	// ID is the unique identifier, BUG-XXXXXX.
	ID string `json:"id"`
	// Title is the short description of the bug.
	Title string `json:"title"`
	// Description provides detail about the defect.
	Description string `json:"description,omitempty"`
	// StepsToReproduce is the ordered reproduction recipe.
	StepsToReproduce []string `json:"steps_to_reproduce,omitempty"`
	// Expected describes the correct behavior.
	Expected string `json:"expected,omitempty"`
	// Actual describes the observed behavior.
	Actual string `json:"actual,omitempty"`
	// Severity classifies impact and drives the default point estimate.
	Severity Severity `json:"severity"`
	// Priority orders the bug in the backlog.
	Priority Priority `json:"priority"`
	// Status is the current lifecycle state.
	Status BugStatus `json:"status"`
	// StoryPoints is the estimate; derived from severity when unset.
	StoryPoints int `json:"story_points"`
	// AffectedStories links the bug to stories it impacts.
	AffectedStories []string `json:"affected_stories,omitempty"`
	// TaskIDs lists the fix tasks created under this bug.
	TaskIDs []string `json:"task_ids,omitempty"`
	// CreatedAt is when the bug was reported, UTC.
	CreatedAt time.Time `json:"created_at"`
	// ResolvedAt is when the bug was resolved, if it has been.
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}
