package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sprintforge/sprintforge/pkg/models"
)

func TestOpen_CreatesAllEntityFiles(t *testing.T) {
	dir := t.TempDir()

	if _, err := Open(dir); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	for _, kind := range Kinds {
		p := filepath.Join(dir, string(kind)+".json")
		data, err := os.ReadFile(p)
		if err != nil {
			t.Errorf("expected %s to exist: %v", p, err)
			continue
		}
		if string(data) != "{}\n" {
			t.Errorf("%s should start empty, got %q", kind, data)
		}
	}
}

func TestOpen_PreservesExistingFiles(t *testing.T) {
	dir := t.TempDir()
	seed := []byte(`{"US-AAAAAA":{"id":"US-AAAAAA","title":"seed"}}`)
	if err := os.WriteFile(filepath.Join(dir, "stories.json"), seed, 0644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	var stories map[string]*models.Story
	if err := s.Load(KindStories, &stories); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if stories["US-AAAAAA"] == nil || stories["US-AAAAAA"].Title != "seed" {
		t.Errorf("existing stories content lost: %v", stories)
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	in := map[string]*models.Bug{
		"BUG-XYZ123": {
			ID:       "BUG-XYZ123",
			Title:    "login fails",
			Severity: models.SeverityHigh,
			Status:   models.BugStatusOpen,
		},
	}
	if err := s.Save(KindBugs, in); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var out map[string]*models.Bug
	if err := s.Load(KindBugs, &out); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if out["BUG-XYZ123"] == nil {
		t.Fatal("bug missing after round trip")
	}
	if out["BUG-XYZ123"].Severity != models.SeverityHigh {
		t.Errorf("Severity = %q", out["BUG-XYZ123"].Severity)
	}
}

func TestLoad_CorruptedFileQuarantinesKind(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	// Corrupt the tasks file with an invalid trailing byte.
	p := filepath.Join(dir, "tasks.json")
	if err := os.WriteFile(p, []byte("{}x"), 0644); err != nil {
		t.Fatal(err)
	}

	var tasks map[string]*models.Task
	err = s.Load(KindTasks, &tasks)
	if !models.IsKind(err, models.KindSchema) {
		t.Fatalf("Load() error = %v, want schema error", err)
	}

	// Mutation of the quarantined kind refuses.
	err = s.Save(KindTasks, map[string]*models.Task{})
	if !models.IsKind(err, models.KindSchema) {
		t.Errorf("Save() after quarantine error = %v, want schema error", err)
	}

	// Other kinds still read and write.
	var stories map[string]*models.Story
	if err := s.Load(KindStories, &stories); err != nil {
		t.Errorf("stories should still load: %v", err)
	}
	if err := s.Save(KindStories, map[string]*models.Story{}); err != nil {
		t.Errorf("stories should still save: %v", err)
	}

	// The corrupted file itself is untouched.
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{}x" {
		t.Errorf("corrupted file was modified: %q", data)
	}
}

func TestOpen_QuarantinesStrayFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.md"), []byte("# notes"), 0644); err != nil {
		t.Fatal(err)
	}

	var warned bool
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	s.SetWarnFunc(func(string, ...any) { warned = true })
	_ = warned

	if _, err := os.Stat(filepath.Join(dir, "notes.md")); !os.IsNotExist(err) {
		t.Error("stray markdown file should be moved out of data/")
	}
	if _, err := os.Stat(filepath.Join(dir, "quarantine", "notes.md")); err != nil {
		t.Errorf("stray file should be in quarantine/: %v", err)
	}
}

func TestStore_IDsStableUnderReload(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	in := map[string]*models.Epic{
		"EPIC-AAA111": {ID: "EPIC-AAA111", Title: "payments"},
		"EPIC-BBB222": {ID: "EPIC-BBB222", Title: "auth"},
	}
	if err := s.Save(KindEpics, in); err != nil {
		t.Fatal(err)
	}
	first, err := os.ReadFile(filepath.Join(dir, "epics.json"))
	if err != nil {
		t.Fatal(err)
	}

	// Read then write back: byte identical.
	var out map[string]*models.Epic
	if err := s.Load(KindEpics, &out); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(KindEpics, out); err != nil {
		t.Fatal(err)
	}
	second, err := os.ReadFile(filepath.Join(dir, "epics.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Error("store file changed across load/save cycle")
	}
}

func TestBackup(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(KindStories, map[string]*models.Story{
		"US-ABC123": {ID: "US-ABC123", Title: "backup me"},
	}); err != nil {
		t.Fatal(err)
	}

	backups := t.TempDir()
	made, err := s.Backup(backups)
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(made, "stories.json"))
	if err != nil {
		t.Fatalf("backup copy missing: %v", err)
	}
	if len(data) == 0 {
		t.Error("backup copy is empty")
	}
}

func TestKindForID(t *testing.T) {
	tests := []struct {
		id   string
		want Kind
		ok   bool
	}{
		{"US-ABC123", KindStories, true},
		{"TASK-ABC123", KindTasks, true},
		{"BUG-ABC123", KindBugs, true},
		{"SPRINT-ABC123", KindSprints, true},
		{"EPIC-ABC123", KindEpics, true},
		{"ROADMAP-ABC123", KindRoadmaps, true},
		{"XX-ABC123", "", false},
	}

	for _, tt := range tests {
		got, ok := KindForID(tt.id)
		if got != tt.want || ok != tt.ok {
			t.Errorf("KindForID(%q) = (%q, %v), want (%q, %v)", tt.id, got, ok, tt.want, tt.ok)
		}
	}
}
