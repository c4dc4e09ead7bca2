// Package jira defines the synchronization contract with an external
// issue tracker. The core exposes an inbound queue of normalized item
// updates and an outbound hook fired on entity changes; the sync logic
// itself lives outside the core.
package jira

import (
	"context"
	"sync"
	"time"
)

// ItemKind identifies which internal entity an update targets.
type ItemKind string

const (
	ItemStory ItemKind = "story"
	ItemTask  ItemKind = "task"
	ItemBug   ItemKind = "bug"
)

// ItemUpdate is one inbound "item updated" event, normalized to the
// internal model. Empty fields mean "unchanged".
type ItemUpdate struct {
	// Kind is the targeted entity kind.
	Kind ItemKind `json:"kind"`
	// ID is the internal entity identifier.
	ID string `json:"id"`
	// ExternalKey is the tracker-side issue key, e.g. "PROJ-123".
	ExternalKey string `json:"external_key,omitempty"`
	// Title replaces the entity title when set.
	Title string `json:"title,omitempty"`
	// Description replaces the entity description when set.
	Description string `json:"description,omitempty"`
	// Status is the tracker-side status mapped to an internal status name.
	Status string `json:"status,omitempty"`
	// StoryPoints replaces the estimate when > 0.
	StoryPoints int `json:"story_points,omitempty"`
	// Assignee replaces the assigned agent when set.
	Assignee string `json:"assignee,omitempty"`
	// ReceivedAt is when the update entered the queue, UTC.
	ReceivedAt time.Time `json:"received_at"`
}

// Change is one outbound entity state change.
type Change struct {
	// Kind is the changed entity kind.
	Kind ItemKind `json:"kind"`
	// ID is the internal entity identifier.
	ID string `json:"id"`
	// At is when the change was observed, UTC.
	At time.Time `json:"at"`
}

// ChangeHook receives outbound changes. Hooks must not block; slow
// consumers should buffer on their side.
type ChangeHook func(Change)

// InboundQueue is the contract an external sync collaborator pushes
// updates through. The core consumes the queue; it never produces to it.
type InboundQueue interface {
	// Push enqueues one normalized update.
	Push(ctx context.Context, u ItemUpdate) error
	// Pop dequeues the oldest pending update, blocking until one is
	// available or ctx is done.
	Pop(ctx context.Context) (ItemUpdate, error)
	// Len reports the number of pending updates.
	Len() int
}

// Queue is an in-memory InboundQueue, suitable for a single process.
type Queue struct {
	mu      sync.Mutex
	pending []ItemUpdate
	signal  chan struct{}
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{signal: make(chan struct{}, 1)}
}

// Push enqueues one update.
func (q *Queue) Push(_ context.Context, u ItemUpdate) error {
	if u.ReceivedAt.IsZero() {
		u.ReceivedAt = time.Now().UTC()
	}
	q.mu.Lock()
	q.pending = append(q.pending, u)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

// Pop dequeues the oldest update, blocking until one arrives or ctx is
// cancelled.
func (q *Queue) Pop(ctx context.Context) (ItemUpdate, error) {
	for {
		q.mu.Lock()
		if len(q.pending) > 0 {
			u := q.pending[0]
			q.pending = q.pending[1:]
			if len(q.pending) > 0 {
				select {
				case q.signal <- struct{}{}:
				default:
				}
			}
			q.mu.Unlock()
			return u, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return ItemUpdate{}, ctx.Err()
		case <-q.signal:
		}
	}
}

// Len reports the number of pending updates.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

var _ InboundQueue = (*Queue)(nil)
