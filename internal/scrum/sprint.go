package scrum

import (
	"sort"
	"time"

	"github.com/sprintforge/sprintforge/internal/store"
	"github.com/sprintforge/sprintforge/pkg/models"
)

// SprintFields is the caller-supplied input for planning a sprint.
// Zero values fall back to the configured defaults. VelocityTarget is a
// pointer so an explicit zero plans an empty sprint while nil takes the
// configured target.
type SprintFields struct {
	Name           string
	Goal           string
	DurationDays   int
	VelocityTarget *int
}

// PlanSprint builds a new planned sprint from the backlog. Critical open
// bugs are committed first, then estimated backlog stories by priority and
// descending points, then remaining open bugs as capacity allows, greedily
// up to the velocity target. Committed stories move to ready. Unestimated
// items are never committed.
func (m *Manager) PlanSprint(f SprintFields) (*models.Sprint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if f.Name == "" {
		return nil, models.NewError(models.KindValidation, "sprint name is required")
	}
	if f.DurationDays <= 0 {
		f.DurationDays = m.cfg.Scrum.DefaultSprintDurationDays
	}
	target := m.cfg.Scrum.VelocityTarget
	if f.VelocityTarget != nil {
		if *f.VelocityTarget < 0 {
			return nil, models.NewError(models.KindValidation, "velocity target must not be negative")
		}
		target = *f.VelocityTarget
	}

	id, err := m.ids.Next(store.PrefixSprint, func(id string) bool {
		_, ok := m.sprints[id]
		return ok
	})
	if err != nil {
		return nil, err
	}

	now := m.clock()
	sp := &models.Sprint{
		ID:             id,
		Name:           f.Name,
		Goal:           f.Goal,
		DurationDays:   f.DurationDays,
		Status:         models.SprintStatusPlanned,
		VelocityTarget: target,
		CreatedAt:      now,
	}

	budget := target
	var committedStories []*models.Story
	committedBugs := make(map[string]bool)

	// Critical open bugs jump the queue ahead of every story.
	for _, b := range m.bugsByUrgencyLocked() {
		if b.Priority != models.PriorityCritical || b.StoryPoints > budget {
			continue
		}
		sp.CommittedItems = append(sp.CommittedItems, models.CommittedItem{Kind: models.KindBug, ID: b.ID})
		sp.CommittedPoints += b.StoryPoints
		budget -= b.StoryPoints
		committedBugs[b.ID] = true
	}

	for _, s := range m.storiesByPriorityLocked() {
		if s.StoryPoints > budget {
			continue
		}
		sp.CommittedItems = append(sp.CommittedItems, models.CommittedItem{Kind: models.KindStory, ID: s.ID})
		sp.CommittedPoints += s.StoryPoints
		budget -= s.StoryPoints
		committedStories = append(committedStories, s)
	}

	// Remaining open bugs fill whatever capacity the stories left.
	for _, b := range m.bugsByUrgencyLocked() {
		if committedBugs[b.ID] || b.StoryPoints > budget {
			continue
		}
		sp.CommittedItems = append(sp.CommittedItems, models.CommittedItem{Kind: models.KindBug, ID: b.ID})
		sp.CommittedPoints += b.StoryPoints
		budget -= b.StoryPoints
		committedBugs[b.ID] = true
	}

	m.sprints[id] = sp
	if err := m.persist(store.KindSprints, id); err != nil {
		delete(m.sprints, id)
		return nil, err
	}

	for _, s := range committedStories {
		s.Status = models.StoryStatusReady
		s.UpdatedAt = now
	}
	if len(committedStories) > 0 {
		if err := m.persist(store.KindStories, committedStories[0].ID); err != nil {
			return nil, err
		}
	}

	cp := *sp
	return &cp, nil
}

// bugsByUrgencyLocked returns estimated open bugs ordered by priority rank,
// then descending points, then creation time. Caller holds the lock.
func (m *Manager) bugsByUrgencyLocked() []*models.Bug {
	var out []*models.Bug
	for _, b := range m.bugs {
		if b.Status == models.BugStatusOpen && b.StoryPoints > 0 {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if a, b := out[i].Priority.Rank(), out[j].Priority.Rank(); a != b {
			return a < b
		}
		if out[i].StoryPoints != out[j].StoryPoints {
			return out[i].StoryPoints > out[j].StoryPoints
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// storiesByPriorityLocked returns estimated backlog stories ordered by
// priority rank, then descending points, then creation time.
func (m *Manager) storiesByPriorityLocked() []*models.Story {
	var out []*models.Story
	for _, s := range m.stories {
		if s.Status == models.StoryStatusBacklog && s.Estimated() {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if a, b := out[i].Priority.Rank(), out[j].Priority.Rank(); a != b {
			return a < b
		}
		if out[i].StoryPoints != out[j].StoryPoints {
			return out[i].StoryPoints > out[j].StoryPoints
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// StartSprint moves a planned sprint to active. At most one sprint may be
// active; starting while another runs is a conflict.
func (m *Manager) StartSprint(id string) (*models.Sprint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sp, ok := m.sprints[id]
	if !ok {
		return nil, models.NewError(models.KindNotFound, "sprint %s not found", id)
	}
	if sp.Status != models.SprintStatusPlanned {
		return nil, models.NewError(models.KindConflict, "sprint %s is %s, only planned sprints can start", id, sp.Status)
	}
	for otherID, other := range m.sprints {
		if other.Status == models.SprintStatusActive {
			return nil, models.NewError(models.KindConflict, "sprint %s is already active", otherID)
		}
	}

	now := m.clock()
	end := now.AddDate(0, 0, sp.DurationDays)
	sp.Status = models.SprintStatusActive
	sp.StartDate = &now
	sp.EndDate = &end
	sp.Burndown = append(sp.Burndown, models.BurndownPoint{At: now, Remaining: sp.CommittedPoints})

	if err := m.persist(store.KindSprints, id); err != nil {
		return nil, err
	}
	cp := *sp
	return &cp, nil
}

// ActiveSprint returns the active sprint, or nil when none is running.
func (m *Manager) ActiveSprint() *models.Sprint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeSprintLocked()
}

func (m *Manager) activeSprintLocked() *models.Sprint {
	for _, sp := range m.sprints {
		if sp.Status == models.SprintStatusActive {
			cp := *sp
			return &cp
		}
	}
	return nil
}

// CompleteSprint closes an active sprint. Unfinished stories return to the
// backlog and unfinished bugs reopen, both keeping their estimates. The
// final burndown sample and retrospective notes are recorded.
func (m *Manager) CompleteSprint(id, retrospective string) (*models.Sprint, error) {
	return m.closeSprint(id, retrospective, models.SprintStatusCompleted)
}

// CancelSprint abandons a sprint. Committed items return to the backlog the
// same way completion returns unfinished work.
func (m *Manager) CancelSprint(id, reason string) (*models.Sprint, error) {
	return m.closeSprint(id, reason, models.SprintStatusCancelled)
}

func (m *Manager) closeSprint(id, notes string, final models.SprintStatus) (*models.Sprint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sp, ok := m.sprints[id]
	if !ok {
		return nil, models.NewError(models.KindNotFound, "sprint %s not found", id)
	}
	if sp.Status != models.SprintStatusActive && !(final == models.SprintStatusCancelled && sp.Status == models.SprintStatusPlanned) {
		return nil, models.NewError(models.KindConflict, "sprint %s is %s, not active", id, sp.Status)
	}

	now := m.clock()
	completed := 0
	storiesDirty := false
	bugsDirty := false
	for _, item := range sp.CommittedItems {
		switch item.Kind {
		case models.KindStory:
			s, ok := m.stories[item.ID]
			if !ok {
				continue
			}
			if s.Status == models.StoryStatusDone {
				completed += s.StoryPoints
			} else {
				s.Status = models.StoryStatusBacklog
				s.UpdatedAt = now
				storiesDirty = true
			}
		case models.KindBug:
			b, ok := m.bugs[item.ID]
			if !ok {
				continue
			}
			if b.Status == models.BugStatusResolved || b.Status == models.BugStatusClosed {
				completed += b.StoryPoints
			} else {
				b.Status = models.BugStatusOpen
				bugsDirty = true
			}
		}
	}

	sp.Status = final
	sp.CompletedPoints = completed
	sp.RetrospectiveNotes = notes
	sp.Burndown = append(sp.Burndown, models.BurndownPoint{At: now, Remaining: sp.CommittedPoints - completed})

	if err := m.persist(store.KindSprints, id); err != nil {
		return nil, err
	}
	if storiesDirty {
		if err := m.persist(store.KindStories, ""); err != nil {
			return nil, err
		}
	}
	if bugsDirty {
		if err := m.persist(store.KindBugs, ""); err != nil {
			return nil, err
		}
	}

	cp := *sp
	return &cp, nil
}

// RecordHandoff appends an agent-to-agent transition to the sprint's
// narrative.
func (m *Manager) RecordHandoff(sprintID string, h models.Handoff) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sp, ok := m.sprints[sprintID]
	if !ok {
		return models.NewError(models.KindNotFound, "sprint %s not found", sprintID)
	}
	if h.Timestamp.IsZero() {
		h.Timestamp = m.clock()
	}
	sp.Handoffs = append(sp.Handoffs, h)
	return m.persist(store.KindSprints, sp.ID)
}

// Velocity returns the mean completed points over the last n completed
// sprints, most recent first. No completed sprints means zero.
func (m *Manager) Velocity(n int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n <= 0 {
		n = 3
	}
	var done []*models.Sprint
	for _, sp := range m.sprints {
		if sp.Status == models.SprintStatusCompleted {
			done = append(done, sp)
		}
	}
	if len(done) == 0 {
		return 0
	}
	sort.Slice(done, func(i, j int) bool { return done[i].CreatedAt.After(done[j].CreatedAt) })
	if len(done) > n {
		done = done[:n]
	}
	sum := 0
	for _, sp := range done {
		sum += sp.CompletedPoints
	}
	return float64(sum) / float64(len(done))
}

// UpdateTaskStatus transitions a task. A task may enter in_progress only
// when every dependency has completed. Completing a task rolls progress up
// to its story or bug, the owning epic, and the active sprint's burndown.
func (m *Manager) UpdateTaskStatus(taskID string, status models.TaskStatus, blockedReason string) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok {
		return nil, models.NewError(models.KindNotFound, "task %s not found", taskID)
	}
	if !status.Valid() {
		return nil, models.NewError(models.KindValidation, "invalid task status %q", status)
	}

	if status == models.TaskStatusInProgress {
		for _, dep := range t.Dependencies {
			d, ok := m.tasks[dep]
			if !ok {
				return nil, models.NewError(models.KindDependency, "task %s depends on unknown task %s", taskID, dep)
			}
			if d.Status != models.TaskStatusCompleted {
				return nil, models.NewError(models.KindDependency,
					"task %s depends on %s which is %s", taskID, dep, d.Status)
			}
		}
	}

	now := m.clock()
	t.Status = status
	switch status {
	case models.TaskStatusCompleted:
		t.CompletedAt = &now
		t.BlockedReason = ""
	case models.TaskStatusBlocked:
		t.BlockedReason = blockedReason
	default:
		t.BlockedReason = ""
	}

	if err := m.persist(store.KindTasks, taskID); err != nil {
		return nil, err
	}

	if t.StoryID != "" {
		if err := m.rollupStoryLocked(t.StoryID, now); err != nil {
			return nil, err
		}
	}
	if t.BugID != "" {
		if err := m.rollupBugLocked(t.BugID, now); err != nil {
			return nil, err
		}
	}

	cp := *t
	return &cp, nil
}

// rollupStoryLocked derives a story's status from its tasks, then the epic
// totals and the active sprint burndown. Caller holds the lock.
func (m *Manager) rollupStoryLocked(storyID string, now time.Time) error {
	s, ok := m.stories[storyID]
	if !ok {
		return nil
	}

	all := len(s.TaskIDs) > 0
	any := false
	for _, tid := range s.TaskIDs {
		t, ok := m.tasks[tid]
		if !ok {
			continue
		}
		if t.Status != models.TaskStatusCompleted {
			all = false
		}
		if t.Status == models.TaskStatusInProgress || t.Status == models.TaskStatusTesting || t.Status == models.TaskStatusCompleted {
			any = true
		}
	}

	prev := s.Status
	switch {
	case all:
		s.Status = models.StoryStatusDone
	case any && (s.Status == models.StoryStatusReady || s.Status == models.StoryStatusBacklog):
		s.Status = models.StoryStatusInProgress
	}
	if s.Status == prev {
		return nil
	}
	s.UpdatedAt = now
	if err := m.persist(store.KindStories, storyID); err != nil {
		return err
	}

	if s.EpicID != "" {
		m.rollupEpicLocked(s.EpicID)
		if err := m.persist(store.KindEpics, s.EpicID); err != nil {
			return err
		}
	}
	if s.Status == models.StoryStatusDone {
		return m.sampleBurndownLocked(now)
	}
	return nil
}

// rollupBugLocked resolves a bug when all its fix tasks have completed.
func (m *Manager) rollupBugLocked(bugID string, now time.Time) error {
	b, ok := m.bugs[bugID]
	if !ok || len(b.TaskIDs) == 0 {
		return nil
	}
	for _, tid := range b.TaskIDs {
		t, ok := m.tasks[tid]
		if !ok || t.Status != models.TaskStatusCompleted {
			return nil
		}
	}
	if b.Status == models.BugStatusResolved || b.Status == models.BugStatusClosed {
		return nil
	}
	b.Status = models.BugStatusResolved
	b.ResolvedAt = &now
	if err := m.persist(store.KindBugs, bugID); err != nil {
		return err
	}
	return m.sampleBurndownLocked(now)
}

// sampleBurndownLocked appends a remaining-points sample to the active
// sprint, if one is running.
func (m *Manager) sampleBurndownLocked(now time.Time) error {
	var sp *models.Sprint
	for _, s := range m.sprints {
		if s.Status == models.SprintStatusActive {
			sp = s
			break
		}
	}
	if sp == nil {
		return nil
	}

	remaining := 0
	for _, item := range sp.CommittedItems {
		switch item.Kind {
		case models.KindStory:
			if s, ok := m.stories[item.ID]; ok && s.Status != models.StoryStatusDone {
				remaining += s.StoryPoints
			}
		case models.KindBug:
			if b, ok := m.bugs[item.ID]; ok && b.Status != models.BugStatusResolved && b.Status != models.BugStatusClosed {
				remaining += b.StoryPoints
			}
		}
	}
	sp.CompletedPoints = sp.CommittedPoints - remaining
	sp.Burndown = append(sp.Burndown, models.BurndownPoint{At: now, Remaining: remaining})
	return m.persist(store.KindSprints, sp.ID)
}
