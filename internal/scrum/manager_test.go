package scrum

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sprintforge/sprintforge/internal/config"
	"github.com/sprintforge/sprintforge/internal/store"
	"github.com/sprintforge/sprintforge/pkg/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	m, err := NewManager(st, config.Default("testproj"))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func mustStory(t *testing.T, m *Manager, f StoryFields) *models.Story {
	t.Helper()
	s, err := m.CreateStory(f)
	if err != nil {
		t.Fatalf("create story: %v", err)
	}
	return s
}

func mustTask(t *testing.T, m *Manager, f TaskFields) *models.Task {
	t.Helper()
	tk, err := m.CreateTask(f)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return tk
}

func TestCreateStoryDefaults(t *testing.T) {
	m := newTestManager(t)

	s := mustStory(t, m, StoryFields{
		Title:   "Login form",
		Role:    "user",
		Want:    "to sign in",
		Benefit: "I can access my account",
	})

	if s.Status != models.StoryStatusBacklog {
		t.Errorf("status = %s, want backlog", s.Status)
	}
	if s.Priority != models.PriorityMedium {
		t.Errorf("priority = %s, want medium", s.Priority)
	}
	if s.StoryPoints != 0 {
		t.Errorf("points = %d, want 0 (unestimated)", s.StoryPoints)
	}
	if s.Description == "" {
		t.Error("expected rendered story statement in description")
	}
}

func TestCreateStoryRequiresTitle(t *testing.T) {
	m := newTestManager(t)
	_, err := m.CreateStory(StoryFields{})
	if !models.IsKind(err, models.KindValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestCreateTaskRequiresParent(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.CreateTask(TaskFields{Title: "orphan"}); !models.IsKind(err, models.KindValidation) {
		t.Fatalf("no parent: err = %v, want validation error", err)
	}
	if _, err := m.CreateTask(TaskFields{Title: "ghost", StoryID: "US-ZZZZZZ"}); !models.IsKind(err, models.KindNotFound) {
		t.Fatalf("unknown story: err = %v, want not found", err)
	}
}

func TestCreateTaskLinksStory(t *testing.T) {
	m := newTestManager(t)
	s := mustStory(t, m, StoryFields{Title: "Search", Role: "user", Want: "to search", Benefit: "find things"})

	tk := mustTask(t, m, TaskFields{StoryID: s.ID, Title: "Index documents"})

	if tk.EstimatedHours != 4 {
		t.Errorf("hours = %v, want default 4", tk.EstimatedHours)
	}
	got, err := m.Story(s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.TaskIDs) != 1 || got.TaskIDs[0] != tk.ID {
		t.Errorf("story task ids = %v, want [%s]", got.TaskIDs, tk.ID)
	}
}

func TestCreateBugSeverityPoints(t *testing.T) {
	m := newTestManager(t)

	tests := []struct {
		severity models.Severity
		want     int
	}{
		{models.SeverityCritical, 8},
		{models.SeverityHigh, 5},
		{models.SeverityMedium, 3},
		{models.SeverityLow, 1},
	}
	for _, tt := range tests {
		b, err := m.CreateBug(BugFields{Title: "crash on " + string(tt.severity), Severity: tt.severity})
		if err != nil {
			t.Fatalf("create bug: %v", err)
		}
		if b.StoryPoints != tt.want {
			t.Errorf("%s: points = %d, want %d", tt.severity, b.StoryPoints, tt.want)
		}
		if b.Status != models.BugStatusOpen {
			t.Errorf("%s: status = %s, want open", tt.severity, b.Status)
		}
	}
}

func TestUpdateTaskStatusDependencyGate(t *testing.T) {
	m := newTestManager(t)
	s := mustStory(t, m, StoryFields{Title: "Pipeline", Role: "dev", Want: "stages", Benefit: "order"})
	first := mustTask(t, m, TaskFields{StoryID: s.ID, Title: "stage one"})
	second := mustTask(t, m, TaskFields{StoryID: s.ID, Title: "stage two", Dependencies: []string{first.ID}})

	_, err := m.UpdateTaskStatus(second.ID, models.TaskStatusInProgress, "")
	if !models.IsKind(err, models.KindDependency) {
		t.Fatalf("err = %v, want dependency error", err)
	}

	if _, err := m.UpdateTaskStatus(first.ID, models.TaskStatusCompleted, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := m.UpdateTaskStatus(second.ID, models.TaskStatusInProgress, ""); err != nil {
		t.Fatalf("after dependency completed: %v", err)
	}
}

func TestTaskCompletionRollsUpStory(t *testing.T) {
	m := newTestManager(t)
	s := mustStory(t, m, StoryFields{Title: "Export", Role: "user", Want: "csv export", Benefit: "share data"})
	a := mustTask(t, m, TaskFields{StoryID: s.ID, Title: "writer"})
	b := mustTask(t, m, TaskFields{StoryID: s.ID, Title: "endpoint"})

	if _, err := m.UpdateTaskStatus(a.ID, models.TaskStatusCompleted, ""); err != nil {
		t.Fatal(err)
	}
	got, _ := m.Story(s.ID)
	if got.Status == models.StoryStatusDone {
		t.Fatal("story done with one task remaining")
	}

	if _, err := m.UpdateTaskStatus(b.ID, models.TaskStatusCompleted, ""); err != nil {
		t.Fatal(err)
	}
	got, _ = m.Story(s.ID)
	if got.Status != models.StoryStatusDone {
		t.Errorf("story status = %s, want done", got.Status)
	}
}

func TestBugResolvedWhenTasksComplete(t *testing.T) {
	m := newTestManager(t)
	bug, err := m.CreateBug(BugFields{Title: "nil deref", Severity: models.SeverityHigh})
	if err != nil {
		t.Fatal(err)
	}
	fix := mustTask(t, m, TaskFields{BugID: bug.ID, Title: "guard nil"})

	if _, err := m.UpdateTaskStatus(fix.ID, models.TaskStatusCompleted, ""); err != nil {
		t.Fatal(err)
	}
	got, _ := m.Bug(bug.ID)
	if got.Status != models.BugStatusResolved {
		t.Errorf("bug status = %s, want resolved", got.Status)
	}
	if got.ResolvedAt == nil {
		t.Error("resolved_at not set")
	}
}

func TestBlockedReasonLifecycle(t *testing.T) {
	m := newTestManager(t)
	s := mustStory(t, m, StoryFields{Title: "Flaky", Role: "dev", Want: "stability", Benefit: "trust"})
	tk := mustTask(t, m, TaskFields{StoryID: s.ID, Title: "stabilize"})

	got, err := m.UpdateTaskStatus(tk.ID, models.TaskStatusBlocked, "coverage")
	if err != nil {
		t.Fatal(err)
	}
	if got.BlockedReason != "coverage" {
		t.Errorf("blocked reason = %q, want coverage", got.BlockedReason)
	}

	got, err = m.UpdateTaskStatus(tk.ID, models.TaskStatusPending, "")
	if err != nil {
		t.Fatal(err)
	}
	if got.BlockedReason != "" {
		t.Errorf("blocked reason = %q after unblock, want empty", got.BlockedReason)
	}
}

func TestAgentWorkloadCounts(t *testing.T) {
	m := newTestManager(t)
	s := mustStory(t, m, StoryFields{Title: "Workload", Role: "dev", Want: "balance", Benefit: "fairness"})
	a := mustTask(t, m, TaskFields{StoryID: s.ID, Title: "one"})
	b := mustTask(t, m, TaskFields{StoryID: s.ID, Title: "two"})
	c := mustTask(t, m, TaskFields{StoryID: s.ID, Title: "three"})

	for _, id := range []string{a.ID, b.ID} {
		if _, err := m.AssignAgent(id, "go-engineer"); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := m.AssignAgent(c.ID, "python-engineer"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.UpdateTaskStatus(c.ID, models.TaskStatusCompleted, ""); err != nil {
		t.Fatal(err)
	}

	wl := m.AgentWorkload()
	if wl["go-engineer"] != 2 {
		t.Errorf("go-engineer workload = %d, want 2", wl["go-engineer"])
	}
	if wl["python-engineer"] != 0 {
		t.Errorf("python-engineer workload = %d, want 0 (task completed)", wl["python-engineer"])
	}
}

func TestManagerReloadRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	st, err := store.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Default("testproj")
	m, err := NewManager(st, cfg)
	if err != nil {
		t.Fatal(err)
	}
	s := mustStory(t, m, StoryFields{Title: "Persist me", Role: "user", Want: "durability", Benefit: "no data loss"})

	st2, err := store.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	m2, err := NewManager(st2, cfg)
	if err != nil {
		t.Fatal(err)
	}
	got, err := m2.Story(s.ID)
	if err != nil {
		t.Fatalf("story after reload: %v", err)
	}
	if got.Title != "Persist me" {
		t.Errorf("title = %q", got.Title)
	}
}

func TestChangeHookFires(t *testing.T) {
	m := newTestManager(t)

	var kinds []store.Kind
	m.SetChangeHook(func(kind store.Kind, id string) {
		kinds = append(kinds, kind)
	})

	mustStory(t, m, StoryFields{Title: "Hooked", Role: "user", Want: "sync", Benefit: "mirrors"})
	if len(kinds) == 0 || kinds[len(kinds)-1] != store.KindStories {
		t.Errorf("hook kinds = %v, want trailing stories", kinds)
	}
}

func TestRoadmapSeedsMilestones(t *testing.T) {
	m := newTestManager(t)
	m.setClock(func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) })

	r, err := m.CreateRoadmap("v1", "ship it", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Milestones) != 4 {
		t.Fatalf("milestones = %d, want 4", len(r.Milestones))
	}
	wantNames := []string{"Foundation", "Core Features", "Hardening", "Launch"}
	for i, ms := range r.Milestones {
		if ms.Name != wantNames[i] {
			t.Errorf("milestone %d = %q, want %q", i, ms.Name, wantNames[i])
		}
		wantDate := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 28*(i+1))
		if !ms.TargetDate.Equal(wantDate) {
			t.Errorf("milestone %d target = %v, want %v", i, ms.TargetDate, wantDate)
		}
	}
}
