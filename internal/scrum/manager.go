// Package scrum implements the backlog and sprint manager: entity CRUD,
// point estimation, sprint planning, velocity and burndown. The manager
// owns stories, tasks, bugs, sprints, epics and roadmaps; every mutation
// persists through the store before returning.
package scrum

import (
	"sort"
	"sync"
	"time"

	"github.com/sprintforge/sprintforge/internal/config"
	"github.com/sprintforge/sprintforge/internal/store"
	"github.com/sprintforge/sprintforge/pkg/models"
)

// ChangeHook observes entity state changes, used by the outbound sync hook.
type ChangeHook func(kind store.Kind, id string)

// Manager owns all scrum entities and their persistence.
type Manager struct {
	mu    sync.Mutex
	st    *store.Store
	ids   *store.IDGenerator
	cfg   *config.Config
	clock func() time.Time

	stories  map[string]*models.Story
	tasks    map[string]*models.Task
	bugs     map[string]*models.Bug
	sprints  map[string]*models.Sprint
	epics    map[string]*models.Epic
	roadmaps map[string]*models.Roadmap

	onChange ChangeHook
	warn     func(format string, args ...any)
}

// NewManager loads all entities from the store and returns a ready manager.
// Kinds whose files are corrupted load empty and stay quarantined in the
// store; reads of the other kinds proceed.
func NewManager(st *store.Store, cfg *config.Config) (*Manager, error) {
	m := &Manager{
		st:       st,
		ids:      store.NewIDGenerator(),
		cfg:      cfg,
		clock:    func() time.Time { return time.Now().UTC() },
		stories:  make(map[string]*models.Story),
		tasks:    make(map[string]*models.Task),
		bugs:     make(map[string]*models.Bug),
		sprints:  make(map[string]*models.Sprint),
		epics:    make(map[string]*models.Epic),
		roadmaps: make(map[string]*models.Roadmap),
		onChange: func(store.Kind, string) {},
		warn:     func(string, ...any) {},
	}

	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

// SetChangeHook installs the outbound change observer. The hook fires after
// a successful persist, synchronously.
func (m *Manager) SetChangeHook(h ChangeHook) {
	if h != nil {
		m.onChange = h
	}
}

// SetWarnFunc installs a sink for schema warnings emitted during load.
func (m *Manager) SetWarnFunc(fn func(format string, args ...any)) {
	if fn != nil {
		m.warn = fn
		m.st.SetWarnFunc(fn)
	}
}

// setClock overrides the time source, for tests.
func (m *Manager) setClock(fn func() time.Time) { m.clock = fn }

// load reads every kind, tolerating quarantined files, and normalizes
// legacy status strings to their canonical form.
func (m *Manager) load() error {
	// Quarantined kinds load empty; the store refuses their mutation later.
	if err := m.st.Load(store.KindStories, &m.stories); err != nil && !models.IsKind(err, models.KindSchema) {
		return err
	}
	if err := m.st.Load(store.KindTasks, &m.tasks); err != nil && !models.IsKind(err, models.KindSchema) {
		return err
	}
	if err := m.st.Load(store.KindBugs, &m.bugs); err != nil && !models.IsKind(err, models.KindSchema) {
		return err
	}
	if err := m.st.Load(store.KindSprints, &m.sprints); err != nil && !models.IsKind(err, models.KindSchema) {
		return err
	}
	if err := m.st.Load(store.KindEpics, &m.epics); err != nil && !models.IsKind(err, models.KindSchema) {
		return err
	}
	if err := m.st.Load(store.KindRoadmaps, &m.roadmaps); err != nil && !models.IsKind(err, models.KindSchema) {
		return err
	}

	m.normalize()
	return nil
}

// normalize coerces legacy status and priority strings to canonical values,
// warning on anything unknown. Persisted data may predate the enums.
func (m *Manager) normalize() {
	for id, s := range m.stories {
		if st, ok := models.ParseStoryStatus(string(s.Status)); !ok {
			m.warn("story %s has unknown status %q, degrading to %s", id, s.Status, st)
			s.Status = st
		} else {
			s.Status = st
		}
		s.Priority, _ = models.ParsePriority(string(s.Priority))
	}
	for id, t := range m.tasks {
		if st, ok := models.ParseTaskStatus(string(t.Status)); !ok {
			m.warn("task %s has unknown status %q, degrading to %s", id, t.Status, st)
			t.Status = st
		} else {
			t.Status = st
		}
		t.Priority, _ = models.ParsePriority(string(t.Priority))
	}
	for id, b := range m.bugs {
		if st, ok := models.ParseBugStatus(string(b.Status)); !ok {
			m.warn("bug %s has unknown status %q, degrading to %s", id, b.Status, st)
			b.Status = st
		} else {
			b.Status = st
		}
		b.Priority, _ = models.ParsePriority(string(b.Priority))
		b.Severity, _ = models.ParseSeverity(string(b.Severity))
	}
	for _, s := range m.sprints {
		s.Status, _ = models.ParseSprintStatus(string(s.Status))
	}
}

// persist saves one kind and fires the change hook for the given id.
func (m *Manager) persist(kind store.Kind, id string) error {
	var err error
	switch kind {
	case store.KindStories:
		err = m.st.Save(kind, m.stories)
	case store.KindTasks:
		err = m.st.Save(kind, m.tasks)
	case store.KindBugs:
		err = m.st.Save(kind, m.bugs)
	case store.KindSprints:
		err = m.st.Save(kind, m.sprints)
	case store.KindEpics:
		err = m.st.Save(kind, m.epics)
	case store.KindRoadmaps:
		err = m.st.Save(kind, m.roadmaps)
	}
	if err != nil {
		return err
	}
	if id != "" {
		m.onChange(kind, id)
	}
	return nil
}

// Story returns a copy of the story, or a NotFound error.
func (m *Manager) Story(id string) (*models.Story, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stories[id]
	if !ok {
		return nil, models.NewError(models.KindNotFound, "story %s not found", id)
	}
	cp := *s
	return &cp, nil
}

// Task returns a copy of the task, or a NotFound error.
func (m *Manager) Task(id string) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, models.NewError(models.KindNotFound, "task %s not found", id)
	}
	cp := *t
	return &cp, nil
}

// Bug returns a copy of the bug, or a NotFound error.
func (m *Manager) Bug(id string) (*models.Bug, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bugs[id]
	if !ok {
		return nil, models.NewError(models.KindNotFound, "bug %s not found", id)
	}
	cp := *b
	return &cp, nil
}

// Sprint returns a copy of the sprint, or a NotFound error.
func (m *Manager) Sprint(id string) (*models.Sprint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sprints[id]
	if !ok {
		return nil, models.NewError(models.KindNotFound, "sprint %s not found", id)
	}
	cp := *s
	return &cp, nil
}

// Epic returns a copy of the epic, or a NotFound error.
func (m *Manager) Epic(id string) (*models.Epic, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.epics[id]
	if !ok {
		return nil, models.NewError(models.KindNotFound, "epic %s not found", id)
	}
	cp := *e
	return &cp, nil
}

// Roadmap returns a copy of the roadmap, or a NotFound error.
func (m *Manager) Roadmap(id string) (*models.Roadmap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roadmaps[id]
	if !ok {
		return nil, models.NewError(models.KindNotFound, "roadmap %s not found", id)
	}
	cp := *r
	return &cp, nil
}

// Stories returns all stories ordered by creation time.
func (m *Manager) Stories() []*models.Story {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Story, 0, len(m.stories))
	for _, s := range m.stories {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Tasks returns all tasks ordered by creation time.
func (m *Manager) Tasks() []*models.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Bugs returns all bugs ordered by creation time.
func (m *Manager) Bugs() []*models.Bug {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Bug, 0, len(m.bugs))
	for _, b := range m.bugs {
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Sprints returns all sprints ordered by creation time.
func (m *Manager) Sprints() []*models.Sprint {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Sprint, 0, len(m.sprints))
	for _, s := range m.sprints {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Epics returns all epics ordered by creation time.
func (m *Manager) Epics() []*models.Epic {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Epic, 0, len(m.epics))
	for _, e := range m.epics {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Roadmaps returns all roadmaps ordered by creation time.
func (m *Manager) Roadmaps() []*models.Roadmap {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Roadmap, 0, len(m.roadmaps))
	for _, r := range m.roadmaps {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// AgentWorkload counts tasks that are pending or in progress per assigned
// agent. The matcher uses this for workload balancing.
func (m *Manager) AgentWorkload() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	workload := make(map[string]int)
	for _, t := range m.tasks {
		if t.AssignedAgent == "" {
			continue
		}
		if t.Status == models.TaskStatusPending || t.Status == models.TaskStatusInProgress {
			workload[t.AssignedAgent]++
		}
	}
	return workload
}

// AssignAgent records a manual agent assignment on a task.
func (m *Manager) AssignAgent(taskID, agent string) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok {
		return nil, models.NewError(models.KindNotFound, "task %s not found", taskID)
	}
	t.AssignedAgent = agent
	if err := m.persist(store.KindTasks, taskID); err != nil {
		return nil, err
	}
	cp := *t
	return &cp, nil
}
