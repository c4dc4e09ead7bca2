package scrum

import (
	"github.com/sprintforge/sprintforge/pkg/models"
)

// BacklogReport summarizes the current backlog state.
type BacklogReport struct {
	TotalStories     int            `json:"total_stories"`
	EstimatedStories int            `json:"estimated_stories"`
	TotalPoints      int            `json:"total_points"`
	OpenBugs         int            `json:"open_bugs"`
	CriticalBugs     int            `json:"critical_bugs"`
	ByPriority       map[string]int `json:"by_priority"`
}

// SprintReport summarizes one sprint's progress.
type SprintReport struct {
	SprintID        string  `json:"sprint_id"`
	Name            string  `json:"name"`
	Status          string  `json:"status"`
	CommittedPoints int     `json:"committed_points"`
	CompletedPoints int     `json:"completed_points"`
	RemainingPoints int     `json:"remaining_points"`
	Progress        float64 `json:"progress"`
	ItemsTotal      int     `json:"items_total"`
	ItemsDone       int     `json:"items_done"`
	TasksTotal      int     `json:"tasks_total"`
	TasksDone       int     `json:"tasks_done"`
	TasksBlocked    int     `json:"tasks_blocked"`
}

// BacklogReport aggregates unscheduled stories and open bugs.
func (m *Manager) BacklogReport() *BacklogReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := &BacklogReport{ByPriority: make(map[string]int)}
	for _, s := range m.stories {
		if s.Status != models.StoryStatusBacklog && s.Status != models.StoryStatusReady {
			continue
		}
		r.TotalStories++
		if s.Estimated() {
			r.EstimatedStories++
			r.TotalPoints += s.StoryPoints
		}
		r.ByPriority[string(s.Priority)]++
	}
	for _, b := range m.bugs {
		if b.Status != models.BugStatusOpen {
			continue
		}
		r.OpenBugs++
		if b.Priority == models.PriorityCritical {
			r.CriticalBugs++
		}
	}
	return r
}

// SprintReport computes per-sprint progress from the committed items and
// their tasks.
func (m *Manager) SprintReport(sprintID string) (*SprintReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sp, ok := m.sprints[sprintID]
	if !ok {
		return nil, models.NewError(models.KindNotFound, "sprint %s not found", sprintID)
	}

	r := &SprintReport{
		SprintID:        sp.ID,
		Name:            sp.Name,
		Status:          string(sp.Status),
		CommittedPoints: sp.CommittedPoints,
		ItemsTotal:      len(sp.CommittedItems),
	}

	done := 0
	for _, item := range sp.CommittedItems {
		var taskIDs []string
		switch item.Kind {
		case models.KindStory:
			s, ok := m.stories[item.ID]
			if !ok {
				continue
			}
			if s.Status == models.StoryStatusDone {
				done += s.StoryPoints
				r.ItemsDone++
			}
			taskIDs = s.TaskIDs
		case models.KindBug:
			b, ok := m.bugs[item.ID]
			if !ok {
				continue
			}
			if b.Status == models.BugStatusResolved || b.Status == models.BugStatusClosed {
				done += b.StoryPoints
				r.ItemsDone++
			}
			taskIDs = b.TaskIDs
		}
		for _, tid := range taskIDs {
			t, ok := m.tasks[tid]
			if !ok {
				continue
			}
			r.TasksTotal++
			switch t.Status {
			case models.TaskStatusCompleted:
				r.TasksDone++
			case models.TaskStatusBlocked:
				r.TasksBlocked++
			}
		}
	}

	r.CompletedPoints = done
	r.RemainingPoints = sp.CommittedPoints - done
	if sp.CommittedPoints > 0 {
		r.Progress = float64(done) / float64(sp.CommittedPoints)
	}
	return r, nil
}
