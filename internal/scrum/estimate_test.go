package scrum

import (
	"testing"

	"github.com/sprintforge/sprintforge/pkg/models"
)

func TestFibBand(t *testing.T) {
	tests := []struct {
		score int
		want  int
	}{
		{0, 1},
		{4, 1},
		{5, 2},
		{9, 2},
		{10, 3},
		{14, 3},
		{15, 5},
		{24, 5},
		{25, 8},
		{39, 8},
		{40, 13},
		{59, 13},
		{60, 21},
		{200, 21},
	}
	for _, tt := range tests {
		if got := fibBand(tt.score); got != tt.want {
			t.Errorf("fibBand(%d) = %d, want %d", tt.score, got, tt.want)
		}
	}
}

func TestEstimateStoryManual(t *testing.T) {
	m := newTestManager(t)
	s := mustStory(t, m, StoryFields{Title: "Manual", Role: "u", Want: "w", Benefit: "b"})

	got, err := m.EstimateStory(s.ID, 8)
	if err != nil {
		t.Fatal(err)
	}
	if got.StoryPoints != 8 {
		t.Errorf("points = %d, want 8", got.StoryPoints)
	}

	if _, err := m.EstimateStory(s.ID, 7); !models.IsKind(err, models.KindValidation) {
		t.Fatalf("off-scale estimate err = %v, want validation", err)
	}
}

func TestEstimateStoryAutoMinimal(t *testing.T) {
	m := newTestManager(t)
	s := mustStory(t, m, StoryFields{Title: "x", Role: "u", Want: "w", Benefit: "b"})

	got, err := m.EstimateStory(s.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got.StoryPoints != 1 {
		t.Errorf("minimal story auto-estimate = %d, want 1", got.StoryPoints)
	}
}

func TestEstimateStoryAutoLoginLandsOnThree(t *testing.T) {
	m := newTestManager(t)
	s := mustStory(t, m, StoryFields{
		Title:   "Login",
		Role:    "user",
		Want:    "to log into my account",
		Benefit: "my data stays private",
		AcceptanceCriteria: []string{
			"email validation", "password strength", "remember me",
		},
	})

	got, err := m.EstimateStory(s.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if got.StoryPoints != 3 {
		t.Errorf("login story auto-estimate = %d, want 3", got.StoryPoints)
	}
}

func TestEstimateStoryAutoDeterministic(t *testing.T) {
	m := newTestManager(t)
	f := StoryFields{
		Title:   "OAuth authentication with payment integration",
		Role:    "customer",
		Want:    "to pay securely",
		Benefit: "my card data stays safe",
		AcceptanceCriteria: []string{
			"login via oauth", "token refresh", "card tokenization",
			"webhook on settlement", "audit trail", "gdpr data export",
		},
	}
	a := mustStory(t, m, f)
	b := mustStory(t, m, f)

	ea, err := m.EstimateStory(a.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	eb, err := m.EstimateStory(b.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if ea.StoryPoints != eb.StoryPoints {
		t.Errorf("same story estimated differently: %d vs %d", ea.StoryPoints, eb.StoryPoints)
	}
	if ea.StoryPoints < 8 {
		t.Errorf("complex story estimate = %d, want at least 8", ea.StoryPoints)
	}
}

func TestEstimateAutoOrdersByComplexity(t *testing.T) {
	m := newTestManager(t)

	simple := mustStory(t, m, StoryFields{
		Title: "Update footer text", Role: "visitor", Want: "current year", Benefit: "trust",
	})
	complex := mustStory(t, m, StoryFields{
		Title: "Database migration with encryption and audit compliance",
		Role:  "admin", Want: "migrate user records", Benefit: "security",
		AcceptanceCriteria: []string{
			"create schema", "read old rows", "update indices",
			"delete staging data", "performance budget held", "rollback plan",
		},
	})

	es, err := m.EstimateStory(simple.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	ec, err := m.EstimateStory(complex.ID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if es.StoryPoints >= ec.StoryPoints {
		t.Errorf("simple %d >= complex %d", es.StoryPoints, ec.StoryPoints)
	}
}

func TestEstimateAllTouchesOnlyUnestimated(t *testing.T) {
	m := newTestManager(t)
	mustStory(t, m, StoryFields{Title: "fresh one", Role: "u", Want: "w", Benefit: "b"})
	pre := mustStory(t, m, StoryFields{Title: "already sized", Role: "u", Want: "w", Benefit: "b"})
	if _, err := m.EstimateStory(pre.ID, 13); err != nil {
		t.Fatal(err)
	}

	touched, err := m.EstimateAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(touched) != 1 {
		t.Fatalf("estimated %d stories, want 1", len(touched))
	}
	got, _ := m.Story(pre.ID)
	if got.StoryPoints != 13 {
		t.Errorf("pre-estimated story changed to %d", got.StoryPoints)
	}
}

func TestEpicRollupOnEstimate(t *testing.T) {
	m := newTestManager(t)
	e, err := m.CreateEpic("Payments", "monetization", "revenue")
	if err != nil {
		t.Fatal(err)
	}
	s := mustStory(t, m, StoryFields{Title: "Charge card", Role: "u", Want: "w", Benefit: "b", EpicID: e.ID})

	if _, err := m.EstimateStory(s.ID, 8); err != nil {
		t.Fatal(err)
	}
	got, err := m.Epic(e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalPoints != 8 {
		t.Errorf("epic total = %d, want 8", got.TotalPoints)
	}
	if got.CompletedPoints != 0 {
		t.Errorf("epic completed = %d, want 0", got.CompletedPoints)
	}
}
