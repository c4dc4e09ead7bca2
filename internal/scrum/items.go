package scrum

import (
	"fmt"
	"strings"
	"time"

	"github.com/sprintforge/sprintforge/internal/store"
	"github.com/sprintforge/sprintforge/pkg/models"
)

// StoryFields are the caller-supplied fields for creating a story.
type StoryFields struct {
	Title              string
	Role               string
	Want               string
	Benefit            string
	AcceptanceCriteria []string
	Priority           models.Priority
	EpicID             string
}

// CreateStory validates fields, mints an ID and persists a new story in
// the backlog.
func (m *Manager) CreateStory(f StoryFields) (*models.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if strings.TrimSpace(f.Title) == "" {
		return nil, models.NewError(models.KindValidation, "story title is required")
	}
	if f.Priority == "" {
		f.Priority = models.PriorityMedium
	}
	if !f.Priority.Valid() {
		return nil, models.NewError(models.KindValidation, "unknown priority %q", f.Priority)
	}
	if f.EpicID != "" {
		if _, ok := m.epics[f.EpicID]; !ok {
			return nil, models.NewError(models.KindNotFound, "epic %s not found", f.EpicID)
		}
	}

	id, err := m.ids.Next(store.PrefixStory, func(id string) bool {
		_, taken := m.stories[id]
		return taken
	})
	if err != nil {
		return nil, models.WrapError(models.KindIO, err, "generate story id")
	}

	now := m.clock()
	story := &models.Story{
		ID:                 id,
		Title:              f.Title,
		Role:               f.Role,
		Want:               f.Want,
		Benefit:            f.Benefit,
		Description:        storyStatement(f.Role, f.Want, f.Benefit),
		AcceptanceCriteria: f.AcceptanceCriteria,
		Priority:           f.Priority,
		Status:             models.StoryStatusBacklog,
		EpicID:             f.EpicID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	m.stories[id] = story
	if f.EpicID != "" {
		m.epics[f.EpicID].StoryIDs = append(m.epics[f.EpicID].StoryIDs, id)
		if err := m.persist(store.KindEpics, f.EpicID); err != nil {
			delete(m.stories, id)
			return nil, err
		}
	}
	if err := m.persist(store.KindStories, id); err != nil {
		delete(m.stories, id)
		return nil, err
	}

	cp := *story
	return &cp, nil
}

// storyStatement renders the canonical "As a, I want, so that" sentence.
func storyStatement(role, want, benefit string) string {
	if role == "" && want == "" && benefit == "" {
		return ""
	}
	return fmt.Sprintf("As a %s, I want %s, so that %s", role, want, benefit)
}

// TaskFields are the caller-supplied fields for creating a task.
type TaskFields struct {
	StoryID          string
	BugID            string
	Title            string
	Description      string
	TechnicalDetails string
	EstimatedHours   float64
	TestCriteria     []string
	Dependencies     []string
	Priority         models.Priority
}

// CreateTask validates fields and persists a new pending task under an
// existing story (or bug). Dependencies must reference known tasks.
func (m *Manager) CreateTask(f TaskFields) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if strings.TrimSpace(f.Title) == "" {
		return nil, models.NewError(models.KindValidation, "task title is required")
	}
	if f.StoryID == "" && f.BugID == "" {
		return nil, models.NewError(models.KindValidation, "task requires a story_id or bug_id")
	}
	if f.StoryID != "" {
		if _, ok := m.stories[f.StoryID]; !ok {
			return nil, models.NewError(models.KindNotFound, "story %s not found", f.StoryID)
		}
	}
	if f.BugID != "" {
		if _, ok := m.bugs[f.BugID]; !ok {
			return nil, models.NewError(models.KindNotFound, "bug %s not found", f.BugID)
		}
	}
	for _, dep := range f.Dependencies {
		if _, ok := m.tasks[dep]; !ok {
			return nil, models.NewError(models.KindNotFound, "dependency %s not found", dep)
		}
	}
	if f.EstimatedHours <= 0 {
		f.EstimatedHours = 4
	}
	if f.Priority == "" {
		f.Priority = models.PriorityMedium
	}
	if !f.Priority.Valid() {
		return nil, models.NewError(models.KindValidation, "unknown priority %q", f.Priority)
	}

	id, err := m.ids.Next(store.PrefixTask, func(id string) bool {
		_, taken := m.tasks[id]
		return taken
	})
	if err != nil {
		return nil, models.WrapError(models.KindIO, err, "generate task id")
	}

	task := &models.Task{
		ID:               id,
		StoryID:          f.StoryID,
		BugID:            f.BugID,
		Title:            f.Title,
		Description:      f.Description,
		TechnicalDetails: f.TechnicalDetails,
		EstimatedHours:   f.EstimatedHours,
		Status:           models.TaskStatusPending,
		TestCriteria:     f.TestCriteria,
		Dependencies:     f.Dependencies,
		Priority:         f.Priority,
		CreatedAt:        m.clock(),
	}

	m.tasks[id] = task
	if err := m.persist(store.KindTasks, id); err != nil {
		delete(m.tasks, id)
		return nil, err
	}

	if f.StoryID != "" {
		m.stories[f.StoryID].TaskIDs = append(m.stories[f.StoryID].TaskIDs, id)
		m.stories[f.StoryID].UpdatedAt = m.clock()
		if err := m.persist(store.KindStories, f.StoryID); err != nil {
			return nil, err
		}
	}
	if f.BugID != "" {
		m.bugs[f.BugID].TaskIDs = append(m.bugs[f.BugID].TaskIDs, id)
		if err := m.persist(store.KindBugs, f.BugID); err != nil {
			return nil, err
		}
	}

	cp := *task
	return &cp, nil
}

// AddTaskDependency links an existing task to another it must wait for.
// Both tasks must exist; duplicates are refused. Cycle detection is the
// scheduler's concern, at sprint freeze.
func (m *Manager) AddTaskDependency(taskID, dependsOn string) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok {
		return nil, models.NewError(models.KindNotFound, "task %s not found", taskID)
	}
	if _, ok := m.tasks[dependsOn]; !ok {
		return nil, models.NewError(models.KindNotFound, "dependency %s not found", dependsOn)
	}
	if taskID == dependsOn {
		return nil, models.NewError(models.KindValidation, "task %s cannot depend on itself", taskID)
	}
	for _, dep := range t.Dependencies {
		if dep == dependsOn {
			return nil, models.NewError(models.KindConflict, "task %s already depends on %s", taskID, dependsOn)
		}
	}

	t.Dependencies = append(t.Dependencies, dependsOn)
	if err := m.persist(store.KindTasks, taskID); err != nil {
		t.Dependencies = t.Dependencies[:len(t.Dependencies)-1]
		return nil, err
	}
	cp := *t
	return &cp, nil
}

// BugFields are the caller-supplied fields for creating a bug.
type BugFields struct {
	Title            string
	Description      string
	StepsToReproduce []string
	Expected         string
	Actual           string
	Severity         models.Severity
	Priority         models.Priority
	StoryPoints      int
	AffectedStories  []string
}

// CreateBug validates fields and persists a new open bug. Points default
// from severity when unset.
func (m *Manager) CreateBug(f BugFields) (*models.Bug, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if strings.TrimSpace(f.Title) == "" {
		return nil, models.NewError(models.KindValidation, "bug title is required")
	}
	if f.Severity == "" {
		f.Severity = models.SeverityMedium
	}
	if !f.Severity.Valid() {
		return nil, models.NewError(models.KindValidation, "unknown severity %q", f.Severity)
	}
	if f.Priority == "" {
		f.Priority = models.PriorityHigh
	}
	if !f.Priority.Valid() {
		return nil, models.NewError(models.KindValidation, "unknown priority %q", f.Priority)
	}
	if !models.ValidPoints(f.StoryPoints) {
		return nil, models.NewError(models.KindValidation, "points %d not on the Fibonacci scale", f.StoryPoints)
	}
	for _, sid := range f.AffectedStories {
		if _, ok := m.stories[sid]; !ok {
			return nil, models.NewError(models.KindNotFound, "affected story %s not found", sid)
		}
	}

	id, err := m.ids.Next(store.PrefixBug, func(id string) bool {
		_, taken := m.bugs[id]
		return taken
	})
	if err != nil {
		return nil, models.WrapError(models.KindIO, err, "generate bug id")
	}

	points := f.StoryPoints
	if points == 0 {
		points = f.Severity.Points()
	}

	bug := &models.Bug{
		ID:               id,
		Title:            f.Title,
		Description:      f.Description,
		StepsToReproduce: f.StepsToReproduce,
		Expected:         f.Expected,
		Actual:           f.Actual,
		Severity:         f.Severity,
		Priority:         f.Priority,
		Status:           models.BugStatusOpen,
		StoryPoints:      points,
		AffectedStories:  f.AffectedStories,
		CreatedAt:        m.clock(),
	}

	m.bugs[id] = bug
	if err := m.persist(store.KindBugs, id); err != nil {
		delete(m.bugs, id)
		return nil, err
	}

	cp := *bug
	return &cp, nil
}

// CreateEpic persists a new epic.
func (m *Manager) CreateEpic(title, theme, businessValue string) (*models.Epic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if strings.TrimSpace(title) == "" {
		return nil, models.NewError(models.KindValidation, "epic title is required")
	}

	id, err := m.ids.Next(store.PrefixEpic, func(id string) bool {
		_, taken := m.epics[id]
		return taken
	})
	if err != nil {
		return nil, models.WrapError(models.KindIO, err, "generate epic id")
	}

	epic := &models.Epic{
		ID:            id,
		Title:         title,
		Theme:         theme,
		BusinessValue: businessValue,
		CreatedAt:     m.clock(),
	}
	m.epics[id] = epic
	if err := m.persist(store.KindEpics, id); err != nil {
		delete(m.epics, id)
		return nil, err
	}

	cp := *epic
	return &cp, nil
}

// CreateRoadmap persists a new roadmap. When seedMilestones is true the
// roadmap is pre-populated with four quarterly-style milestones spanning
// sixteen weeks, matching the create-project behavior.
func (m *Manager) CreateRoadmap(name, vision string, seedMilestones bool) (*models.Roadmap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if strings.TrimSpace(name) == "" {
		return nil, models.NewError(models.KindValidation, "roadmap name is required")
	}

	id, err := m.ids.Next(store.PrefixRoadmap, func(id string) bool {
		_, taken := m.roadmaps[id]
		return taken
	})
	if err != nil {
		return nil, models.WrapError(models.KindIO, err, "generate roadmap id")
	}

	now := m.clock()
	roadmap := &models.Roadmap{
		ID:        id,
		Name:      name,
		Vision:    vision,
		CreatedAt: now,
	}
	if seedMilestones {
		names := []string{"Foundation", "Core Features", "Hardening", "Launch"}
		for i, n := range names {
			roadmap.Milestones = append(roadmap.Milestones, models.Milestone{
				Name:       n,
				TargetDate: now.AddDate(0, 0, (i+1)*28),
				Status:     models.MilestonePlanned,
			})
		}
	}

	m.roadmaps[id] = roadmap
	if err := m.persist(store.KindRoadmaps, id); err != nil {
		delete(m.roadmaps, id)
		return nil, err
	}

	cp := *roadmap
	return &cp, nil
}

// AddMilestone appends a milestone to a roadmap.
func (m *Manager) AddMilestone(roadmapID, name string, targetDate time.Time, storyIDs []string) (*models.Roadmap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.roadmaps[roadmapID]
	if !ok {
		return nil, models.NewError(models.KindNotFound, "roadmap %s not found", roadmapID)
	}
	for _, sid := range storyIDs {
		if _, ok := m.stories[sid]; !ok {
			return nil, models.NewError(models.KindNotFound, "story %s not found", sid)
		}
	}

	r.Milestones = append(r.Milestones, models.Milestone{
		Name:       name,
		TargetDate: targetDate.UTC(),
		StoryIDs:   storyIDs,
		Status:     models.MilestonePlanned,
	})
	if err := m.persist(store.KindRoadmaps, roadmapID); err != nil {
		return nil, err
	}

	cp := *r
	return &cp, nil
}
