// Package graph provides the task dependency graph the sprint loop
// schedules from.
package graph

import (
	"sort"
	"sync"

	"github.com/sprintforge/sprintforge/pkg/models"
)

// ErrCycle indicates a circular dependency in the frozen task set.
var ErrCycle error = models.NewError(models.KindDependency, "circular dependency detected")

// DependencyGraph is a directed acyclic graph of tasks. Edges point from
// a task to the tasks it is blocked by.
type DependencyGraph struct {
	mu sync.RWMutex
	// nodes maps task ID to the task.
	nodes map[string]*models.Task
	// edges maps task ID to the IDs it depends on.
	edges map[string][]string
	// rank records each task's position in the frozen priority order.
	rank map[string]int
	// done tracks tasks marked complete during the run.
	done map[string]bool
}

// New creates an empty graph.
func New() *DependencyGraph {
	return &DependencyGraph{
		nodes: make(map[string]*models.Task),
		edges: make(map[string][]string),
		rank:  make(map[string]int),
		done:  make(map[string]bool),
	}
}

// Build loads the task set in priority order. Slice position becomes the
// tie-break rank for scheduling. It fails on unknown dependencies or a
// cycle.
func (g *DependencyGraph) Build(tasks []*models.Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, t := range tasks {
		g.nodes[t.ID] = t
		g.edges[t.ID] = nil
		g.rank[t.ID] = i
		if t.Status == models.TaskStatusCompleted {
			g.done[t.ID] = true
		}
	}
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if _, ok := g.nodes[dep]; !ok {
				return models.NewError(models.KindDependency, "task %s depends on unknown task %s", t.ID, dep)
			}
			g.edges[t.ID] = append(g.edges[t.ID], dep)
		}
	}
	if g.hasCycleLocked() {
		return ErrCycle
	}
	return nil
}

// HasCycle reports whether the graph contains a circular dependency.
func (g *DependencyGraph) HasCycle() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.hasCycleLocked()
}

// hasCycleLocked runs a colored depth-first search for back edges.
func (g *DependencyGraph) hasCycleLocked() bool {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current path
		black = 2 // fully explored
	)
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = gray
		for _, dep := range g.edges[id] {
			switch colors[dep] {
			case gray:
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		colors[id] = black
		return false
	}

	for id := range g.nodes {
		if colors[id] == white && visit(id) {
			return true
		}
	}
	return false
}

// Order returns all task IDs with every dependency before its dependents.
// Among tasks whose dependencies are equally satisfied, the frozen
// priority rank decides, so the result is deterministic.
func (g *DependencyGraph) Order() ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.hasCycleLocked() {
		return nil, ErrCycle
	}

	indegree := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string, len(g.nodes))
	for id, deps := range g.edges {
		indegree[id] = len(deps)
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var frontier []string
	for id, n := range indegree {
		if n == 0 {
			frontier = append(frontier, id)
		}
	}

	result := make([]string, 0, len(g.nodes))
	for len(frontier) > 0 {
		sort.Slice(frontier, func(i, j int) bool {
			return g.rank[frontier[i]] < g.rank[frontier[j]]
		})
		id := frontier[0]
		frontier = frontier[1:]
		result = append(result, id)
		for _, dep := range dependents[id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				frontier = append(frontier, dep)
			}
		}
	}
	return result, nil
}

// NextReady returns the highest-ranked unfinished task whose dependencies
// are all complete, or nil when no task is runnable.
func (g *DependencyGraph) NextReady() *models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var best *models.Task
	for id, t := range g.nodes {
		if g.done[id] || t.Terminal() {
			continue
		}
		ready := true
		for _, dep := range g.edges[id] {
			if !g.done[dep] {
				ready = false
				break
			}
		}
		if !ready {
			continue
		}
		if best == nil || g.rank[id] < g.rank[best.ID] {
			best = t
		}
	}
	return best
}

// Remaining returns the IDs of tasks that are neither complete nor in a
// terminal state, in rank order.
func (g *DependencyGraph) Remaining() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var ids []string
	for id, t := range g.nodes {
		if !g.done[id] && !t.Terminal() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return g.rank[ids[i]] < g.rank[ids[j]] })
	return ids
}

// MarkComplete records a finished task so its dependents become eligible.
func (g *DependencyGraph) MarkComplete(taskID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.done[taskID] = true
}

// Blockers returns the unfinished dependencies of a task, for deadlock
// diagnostics.
func (g *DependencyGraph) Blockers(taskID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var blocked []string
	for _, dep := range g.edges[taskID] {
		if !g.done[dep] {
			blocked = append(blocked, dep)
		}
	}
	sort.Strings(blocked)
	return blocked
}

// Task returns the node for taskID, or nil.
func (g *DependencyGraph) Task(taskID string) *models.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[taskID]
}

// Size returns the number of tasks in the graph.
func (g *DependencyGraph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}
