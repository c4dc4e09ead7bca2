package store

import (
	"regexp"
	"strings"
	"testing"
)

var idPattern = regexp.MustCompile(`^US-[A-Z0-9]{6}$`)

func TestIDGenerator_Format(t *testing.T) {
	g := NewIDGenerator()

	for i := 0; i < 100; i++ {
		id, err := g.Next(PrefixStory, nil)
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if !idPattern.MatchString(id) {
			t.Fatalf("id %q does not match US-XXXXXX", id)
		}
	}
}

func TestIDGenerator_RetriesOnCollision(t *testing.T) {
	g := NewIDGenerator()

	taken := map[string]bool{}
	id1, err := g.Next(PrefixTask, func(id string) bool { return taken[id] })
	if err != nil {
		t.Fatal(err)
	}
	taken[id1] = true

	id2, err := g.Next(PrefixTask, func(id string) bool { return taken[id] })
	if err != nil {
		t.Fatal(err)
	}
	if id1 == id2 {
		t.Errorf("generator returned duplicate id %q", id1)
	}
}

func TestIDGenerator_FallsBackToCounter(t *testing.T) {
	g := NewIDGenerator()

	// Simulate a saturated space: every 6-char token is taken, only
	// counter-suffixed IDs are free.
	exists := func(id string) bool {
		return len(strings.TrimPrefix(id, PrefixBug+"-")) == idLength
	}

	id, err := g.Next(PrefixBug, exists)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if exists(id) {
		t.Fatalf("fallback id %q still collides", id)
	}
	if !strings.HasPrefix(id, PrefixBug+"-") {
		t.Errorf("fallback id %q lost its prefix", id)
	}
}

func TestIDGenerator_NoDuplicatesAcrossMany(t *testing.T) {
	g := NewIDGenerator()
	seen := make(map[string]bool)

	for i := 0; i < 1000; i++ {
		id, err := g.Next(PrefixSprint, func(id string) bool { return seen[id] })
		if err != nil {
			t.Fatal(err)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q at iteration %d", id, i)
		}
		seen[id] = true
	}
}
