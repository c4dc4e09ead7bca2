package models

import "time"

// ItemKind distinguishes the entity kinds a sprint can commit to.
type ItemKind string

const (
	KindStory ItemKind = "story"
	KindTask  ItemKind = "task"
	KindBug   ItemKind = "bug"
)

// CommittedItem is a (kind, id) reference frozen into a sprint scope.
type CommittedItem struct {
	Kind ItemKind `json:"kind"`
	ID   string   `json:"id"`
}

// BurndownPoint is one sample of the remaining-points time series.
type BurndownPoint struct {
	// At is when the sample was taken, UTC.
	At time.Time `json:"at"`
	// Remaining is the story points not yet completed.
	Remaining int `json:"remaining"`
}

// Handoff records a transition of task ownership between agents.
type Handoff struct {
	FromAgent string    `json:"from_agent"`
	ToAgent   string    `json:"to_agent"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// Sprint is a time-boxed ordered execution of a frozen scope.
type Sprint struct {
	// ID is the unique identifier, SPRINT-XXXXXX.
	ID string `json:"id"`
	// Name is the sprint's human-readable name.
	Name string `json:"name"`
	// Goal states what the sprint should achieve.
	Goal string `json:"goal,omitempty"`
	// DurationDays is the sprint length; default 14.
	DurationDays int `json:"duration_days"`
	// Status is the current lifecycle state. Exactly one sprint may be
	// active process-wide.
	Status SprintStatus `json:"status"`
	// StartDate is set when the sprint starts.
	StartDate *time.Time `json:"start_date,omitempty"`
	// EndDate is StartDate plus DurationDays.
	EndDate *time.Time `json:"end_date,omitempty"`
	// CommittedItems is the ordered frozen scope.
	CommittedItems []CommittedItem `json:"committed_items,omitempty"`
	// VelocityTarget is the point budget used during planning.
	VelocityTarget int `json:"velocity_target"`
	// CommittedPoints is the sum of points planned into the sprint.
	CommittedPoints int `json:"committed_points"`
	// CompletedPoints is the sum of points finished so far.
	CompletedPoints int `json:"completed_points"`
	// Burndown is the remaining-points time series.
	Burndown []BurndownPoint `json:"burndown,omitempty"`
	// Handoffs is the narrative of agent-to-agent transitions.
	Handoffs []Handoff `json:"handoffs,omitempty"`
	// RetrospectiveNotes is recorded when the sprint completes.
	RetrospectiveNotes string `json:"retrospective_notes,omitempty"`
	// CreatedAt is when the sprint was planned, UTC.
	CreatedAt time.Time `json:"created_at"`
}

// Epic aggregates related stories under a theme.
type Epic struct {
	// ID is the unique identifier, EPIC-XXXXXX.
	ID string `json:"id"`
	// Title is the epic's name.
	Title string `json:"title"`
	// Theme describes the grouping.
	Theme string `json:"theme,omitempty"`
	// BusinessValue records why the epic matters.
	BusinessValue string `json:"business_value,omitempty"`
	// StoryIDs lists the member stories.
	StoryIDs []string `json:"story_ids,omitempty"`
	// TotalPoints is the rollup of member story estimates.
	TotalPoints int `json:"total_points"`
	// CompletedPoints is the rollup of completed member story estimates.
	CompletedPoints int `json:"completed_points"`
	// CreatedAt is when the epic was created, UTC.
	CreatedAt time.Time `json:"created_at"`
}

// MilestoneStatus tracks roadmap milestone progress.
type MilestoneStatus string

const (
	MilestonePlanned    MilestoneStatus = "planned"
	MilestoneInProgress MilestoneStatus = "in_progress"
	MilestoneDone       MilestoneStatus = "done"
)

// Milestone is one entry in a roadmap.
type Milestone struct {
	Name       string          `json:"name"`
	TargetDate time.Time       `json:"target_date"`
	StoryIDs   []string        `json:"story_ids,omitempty"`
	Status     MilestoneStatus `json:"status"`
}

// Roadmap is an ordered list of milestones for a project.
type Roadmap struct {
	// ID is the unique identifier, ROADMAP-XXXXXX.
	ID string `json:"id"`
	// Name is the roadmap's title.
	Name string `json:"name"`
	// Vision is the product direction statement.
	Vision string `json:"vision,omitempty"`
	// Milestones is the ordered milestone list.
	Milestones []Milestone `json:"milestones,omitempty"`
	// CreatedAt is when the roadmap was created, UTC.
	CreatedAt time.Time `json:"created_at"`
}
