package store

import (
	"crypto/rand"
	"fmt"
	"sync"
)

// idAlphabet is the character set for the random ID token.
const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// idLength is the length of the random token following the prefix.
const idLength = 6

// maxIDAttempts is how many random tokens are tried before falling back to
// the monotonic counter suffix.
const maxIDAttempts = 8

// Prefixes for each entity kind.
const (
	PrefixStory   = "US"
	PrefixTask    = "TASK"
	PrefixBug     = "BUG"
	PrefixSprint  = "SPRINT"
	PrefixEpic    = "EPIC"
	PrefixRoadmap = "ROADMAP"
)

// IDGenerator mints collision-checked short IDs per entity kind.
type IDGenerator struct {
	mu sync.Mutex
	// counter backs the fallback suffix after repeated collisions.
	counter uint64
}

// NewIDGenerator creates an IDGenerator.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// Next returns a fresh ID of the form <prefix>-<6 chars of [A-Z0-9]>.
// exists reports whether an ID is already taken for the kind; on repeated
// collisions the generator appends a monotonic counter to guarantee progress.
func (g *IDGenerator) Next(prefix string, exists func(string) bool) (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		token, err := randomToken(idLength)
		if err != nil {
			return "", fmt.Errorf("generate id token: %w", err)
		}
		id := prefix + "-" + token
		if exists == nil || !exists(id) {
			return id, nil
		}
	}

	// The random space is effectively exhausted or exists is pathological;
	// fall back to a counter suffix that cannot repeat within a process.
	token, err := randomToken(idLength)
	if err != nil {
		return "", fmt.Errorf("generate id token: %w", err)
	}
	g.mu.Lock()
	g.counter++
	n := g.counter
	g.mu.Unlock()

	for {
		id := fmt.Sprintf("%s-%s%d", prefix, token, n)
		if exists == nil || !exists(id) {
			return id, nil
		}
		g.mu.Lock()
		g.counter++
		n = g.counter
		g.mu.Unlock()
	}
}

// randomToken returns n characters drawn from idAlphabet using crypto/rand.
func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(out), nil
}
