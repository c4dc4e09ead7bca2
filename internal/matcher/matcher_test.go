package matcher

import (
	"testing"

	"github.com/sprintforge/sprintforge/internal/registry"
	"github.com/sprintforge/sprintforge/pkg/models"
)

func newTestMatcher(t *testing.T, workload map[string]int, allowCreate bool) (*Matcher, *registry.Registry) {
	t.Helper()
	reg, err := registry.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return New(reg, func() map[string]int { return workload }, allowCreate), reg
}

func TestMatchTitleTechnology(t *testing.T) {
	m, _ := newTestMatcher(t, nil, false)

	tests := []struct {
		name  string
		task  models.Task
		agent string
	}{
		{"python title", models.Task{Title: "Add Django endpoint"}, "python-engineer"},
		{"go title", models.Task{Title: "Build golang worker"}, "golang-engineer"},
		{"frontend title", models.Task{Title: "React dashboard widget"}, "frontend-engineer"},
		{"devops details", models.Task{Title: "Ship it", TechnicalDetails: "docker compose stack"}, "devops-engineer"},
		{"kotlin title", models.Task{Title: "Android settings screen in Kotlin"}, "kotlin-engineer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Match(&tt.task)
			if err != nil {
				t.Fatal(err)
			}
			if got.Agent != tt.agent {
				t.Errorf("agent = %s, want %s", got.Agent, tt.agent)
			}
			if got.Confidence <= 0 || got.Confidence > 1 {
				t.Errorf("confidence %v out of range", got.Confidence)
			}
		})
	}
}

func TestMatchRailsWithRSpec(t *testing.T) {
	m, _ := newTestMatcher(t, nil, true)

	got, err := m.Match(&models.Task{
		Title:       "Build Rails controller",
		Description: "Use RSpec",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Agent != "ruby-engineer" {
		t.Errorf("agent = %s, want ruby-engineer", got.Agent)
	}
	if got.Confidence < 0.75 {
		t.Errorf("confidence = %v, want >= 0.75", got.Confidence)
	}
}

func TestMatchFirstTitleOccurrenceWinsTies(t *testing.T) {
	m, _ := newTestMatcher(t, nil, false)

	got, err := m.Match(&models.Task{Title: "rust bindings for java library"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Agent != "rust-engineer" {
		t.Errorf("agent = %s, want rust-engineer (first title hit)", got.Agent)
	}
}

func TestMatchTaskTypeFallback(t *testing.T) {
	m, _ := newTestMatcher(t, nil, false)

	got, err := m.Match(&models.Task{Title: "Deploy the new build"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Agent != "devops-engineer" {
		t.Errorf("agent = %s, want devops-engineer", got.Agent)
	}
	if got.Confidence >= 0.75 {
		t.Errorf("fallback confidence = %v, want lower weight", got.Confidence)
	}
}

func TestMatchGenericFallback(t *testing.T) {
	m, reg := newTestMatcher(t, nil, false)

	got, err := m.Match(&models.Task{Title: "Tidy the drawer"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Agent != GenericAgent {
		t.Errorf("agent = %s, want %s", got.Agent, GenericAgent)
	}
	if got.Confidence != 0.25 {
		t.Errorf("confidence = %v, want 0.25", got.Confidence)
	}
	if !reg.Has(GenericAgent) {
		t.Error("generic engineer descriptor not registered")
	}
}

func TestMatchManualOverride(t *testing.T) {
	m, _ := newTestMatcher(t, nil, false)

	got, err := m.Match(&models.Task{
		Title:         "Build Rails controller",
		AssignedAgent: "python-engineer",
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Agent != "python-engineer" {
		t.Errorf("agent = %s, want manual python-engineer", got.Agent)
	}
	if got.Confidence != 1.0 || got.Reason != "manual" {
		t.Errorf("confidence/reason = %v/%q, want 1.0/manual", got.Confidence, got.Reason)
	}
}

func TestMatchCreatesMissingSpecialist(t *testing.T) {
	m, reg := newTestMatcher(t, nil, true)

	got, err := m.Match(&models.Task{Title: "Optimize postgres queries"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Agent != "database-engineer" {
		t.Fatalf("agent = %s, want database-engineer", got.Agent)
	}
	if !got.CreatedNew {
		t.Error("expected descriptor to be created on demand")
	}
	if !reg.Has("database-engineer") {
		t.Error("database-engineer not in registry after creation")
	}
}

func TestMatchCreationDisabledDegradesToGeneric(t *testing.T) {
	m, _ := newTestMatcher(t, nil, false)

	got, err := m.Match(&models.Task{Title: "Optimize postgres queries"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Agent != GenericAgent {
		t.Errorf("agent = %s, want %s", got.Agent, GenericAgent)
	}
	if got.Confidence != 0.25 {
		t.Errorf("confidence = %v, want 0.25", got.Confidence)
	}
}

func TestMatchWorkloadBalancing(t *testing.T) {
	// Title mentions two technologies of equal weight; the idle agent wins.
	workload := map[string]int{"python-engineer": 5, "golang-engineer": 0}
	m, _ := newTestMatcher(t, workload, false)

	got, err := m.Match(&models.Task{Title: "python and golang interop layer"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Agent != "golang-engineer" {
		t.Errorf("agent = %s, want idle golang-engineer", got.Agent)
	}
}
