package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sprintforge/sprintforge/internal/executor"
	"github.com/sprintforge/sprintforge/internal/graph"
	"github.com/sprintforge/sprintforge/internal/matcher"
	"github.com/sprintforge/sprintforge/internal/registry"
	"github.com/sprintforge/sprintforge/internal/scrum"
	"github.com/sprintforge/sprintforge/pkg/models"
)

// agentMatcher selects an agent for a task.
type agentMatcher interface {
	Match(task *models.Task) (*matcher.Match, error)
}

// taskExecutor runs one task in its worktree.
type taskExecutor interface {
	Execute(ctx context.Context, task *models.Task, agent *models.AgentDescriptor, workDir string) (*executor.TaskResult, error)
}

// worktreeManager provides the git isolation surface the run loop needs.
type worktreeManager interface {
	Create(ctx context.Context, task *models.Task, agent string) (*models.WorktreeRecord, error)
	Push(ctx context.Context, taskID string) error
	OpenPR(ctx context.Context, taskID, title, body string) (string, error)
	Cleanup(ctx context.Context, removeCompleted bool, taskDone func(taskID string) bool) ([]string, error)
}

// Options tune one sprint run.
type Options struct {
	// Strict halts the sprint on the first Failed or Blocked task. When
	// false the run continues with the next independent task.
	Strict bool
	// CleanupWorktrees removes completed worktrees during finalization.
	CleanupWorktrees bool
}

// Orchestrator runs sprints. Tasks execute strictly one at a time; the
// loop never holds two tasks In Progress.
type Orchestrator struct {
	mu    sync.Mutex
	state RunState

	mgr   *scrum.Manager
	reg   *registry.Registry
	match agentMatcher
	trees worktreeManager
	exec  taskExecutor
	opts  Options

	emit  func(Event)
	clock func() time.Time

	// runID identifies the current Run invocation.
	runID string
	// lastAgent is the previous task's agent, for the handoff narrative.
	lastAgent string
}

// New builds an orchestrator. emit may be nil.
func New(mgr *scrum.Manager, reg *registry.Registry, match agentMatcher, trees worktreeManager, exec taskExecutor, opts Options, emit func(Event)) *Orchestrator {
	if emit == nil {
		emit = func(Event) {}
	}
	return &Orchestrator{
		state: StateIdle,
		mgr:   mgr,
		reg:   reg,
		match: match,
		trees: trees,
		exec:  exec,
		opts:  opts,
		emit:  emit,
		clock: func() time.Time { return time.Now().UTC() },
	}
}

// State returns the current run state.
func (o *Orchestrator) State() RunState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s RunState) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Run freezes the sprint's scope, activates the sprint, and executes its
// tasks sequentially until the scope drains, a fatal condition halts the
// run, or ctx is cancelled. Cancellation leaves the sprint active so a
// later run can resume it.
func (o *Orchestrator) Run(ctx context.Context, sprintID string) error {
	o.mu.Lock()
	if o.state != StateIdle && o.state != StateHalted {
		o.mu.Unlock()
		return models.NewError(models.KindConflict, "a sprint run is already in progress")
	}
	o.state = StateStarting
	o.runID = uuid.NewString()
	o.lastAgent = ""
	o.mu.Unlock()

	g, err := o.freeze(sprintID)
	if err != nil {
		o.setState(StateIdle)
		return err
	}

	sp, err := o.mgr.Sprint(sprintID)
	if err != nil {
		o.setState(StateIdle)
		return err
	}
	if sp.Status == models.SprintStatusPlanned {
		if _, err := o.mgr.StartSprint(sprintID); err != nil {
			o.setState(StateIdle)
			return err
		}
	} else if sp.Status != models.SprintStatusActive {
		o.setState(StateIdle)
		return models.NewError(models.KindConflict, "sprint %s is %s and cannot run", sprintID, sp.Status)
	}

	o.setState(StateRunning)
	o.event(Event{Type: EventSprintStarted, SprintID: sprintID,
		Message: fmt.Sprintf("sprint %s running with %d tasks", sprintID, g.Size())})

	halted, err := o.runLoop(ctx, sprintID, g)
	if err != nil {
		return err
	}
	if halted {
		// State stays Halted; the sprint remains active for inspection.
		return nil
	}

	if ctx.Err() != nil {
		// Drained by cancellation: stop issuing work, leave the sprint
		// active for resume.
		o.setState(StateDraining)
		o.setState(StateIdle)
		return ctx.Err()
	}

	o.setState(StateFinalizing)
	if _, err := o.mgr.CompleteSprint(sprintID, ""); err != nil {
		o.setState(StateIdle)
		return fmt.Errorf("complete sprint: %w", err)
	}
	if o.opts.CleanupWorktrees {
		if _, err := o.trees.Cleanup(ctx, true, o.taskDone); err != nil {
			o.event(Event{Type: EventError, SprintID: sprintID, Err: err,
				Message: "worktree cleanup failed"})
		}
	}
	o.event(Event{Type: EventSprintCompleted, SprintID: sprintID,
		Message: fmt.Sprintf("sprint %s completed", sprintID)})
	o.setState(StateIdle)
	return nil
}

// runLoop executes tasks one at a time until the graph drains, the run
// halts, or ctx is cancelled.
func (o *Orchestrator) runLoop(ctx context.Context, sprintID string, g *graph.DependencyGraph) (halted bool, err error) {
	for {
		if ctx.Err() != nil {
			return false, nil
		}

		task := g.NextReady()
		if task == nil {
			remaining := g.Remaining()
			if len(remaining) == 0 {
				return false, nil
			}
			if o.starved(g, remaining) {
				// Every leftover task sits behind failed or blocked work;
				// the sprint closes and returns them to the backlog.
				return false, nil
			}
			o.setState(StateHalted)
			diag := o.deadlockDiagnostic(g, remaining)
			o.event(Event{Type: EventHalted, SprintID: sprintID, Message: diag})
			return true, models.NewError(models.KindDependency, "dependency deadlock: %s", diag)
		}

		halt, err := o.runTask(ctx, sprintID, g, task)
		if err != nil {
			o.setState(StateHalted)
			o.event(Event{Type: EventHalted, SprintID: sprintID, TaskID: task.ID, Err: err,
				Message: fmt.Sprintf("fatal error on task %s", task.ID)})
			return true, err
		}
		if halt {
			o.setState(StateHalted)
			o.event(Event{Type: EventHalted, SprintID: sprintID, TaskID: task.ID,
				Message: fmt.Sprintf("halted after task %s", task.ID)})
			return true, nil
		}
	}
}

// runTask takes one task through match, worktree, execute, and rollup.
// halt reports whether strict mode must stop the sprint.
func (o *Orchestrator) runTask(ctx context.Context, sprintID string, g *graph.DependencyGraph, task *models.Task) (halt bool, err error) {
	m, err := o.match.Match(task)
	if err != nil {
		return false, fmt.Errorf("match agent for %s: %w", task.ID, err)
	}
	if _, err := o.mgr.AssignAgent(task.ID, m.Agent); err != nil {
		return false, err
	}
	task.AssignedAgent = m.Agent
	o.event(Event{Type: EventTaskClaimed, SprintID: sprintID, TaskID: task.ID,
		TaskTitle: task.Title, Agent: m.Agent,
		Message: fmt.Sprintf("%s claimed by %s (%s)", task.ID, m.Agent, m.Reason)})

	if o.lastAgent != "" && o.lastAgent != m.Agent {
		h := models.Handoff{FromAgent: o.lastAgent, ToAgent: m.Agent,
			Reason: m.Reason, Timestamp: o.clock()}
		if err := o.mgr.RecordHandoff(sprintID, h); err != nil {
			return false, err
		}
		o.event(Event{Type: EventHandoff, SprintID: sprintID, TaskID: task.ID,
			Agent: m.Agent, FromAgent: h.FromAgent,
			Message: fmt.Sprintf("handoff %s -> %s: %s", h.FromAgent, h.ToAgent, h.Reason)})
	}
	o.lastAgent = m.Agent

	desc, err := o.reg.Get(m.Agent)
	if err != nil {
		return false, err
	}

	rec, err := o.trees.Create(ctx, task, m.Agent)
	if err != nil {
		return false, fmt.Errorf("create worktree for %s: %w", task.ID, err)
	}

	if _, err := o.mgr.UpdateTaskStatus(task.ID, models.TaskStatusInProgress, ""); err != nil {
		return false, err
	}

	res, err := o.exec.Execute(ctx, task, desc, rec.Path)
	if err != nil {
		return false, fmt.Errorf("execute %s: %w", task.ID, err)
	}

	switch res.Status {
	case executor.ResultCompleted:
		return o.finishTask(ctx, sprintID, g, task, res)
	case executor.ResultFailed:
		if _, err := o.mgr.UpdateTaskStatus(task.ID, models.TaskStatusBlocked, "failed"); err != nil {
			return false, err
		}
		task.Status = models.TaskStatusBlocked
		o.event(Event{Type: EventTaskFailed, SprintID: sprintID, TaskID: task.ID,
			Agent: m.Agent, Message: res.Summary})
		return o.opts.Strict, nil
	default: // blocked
		if _, err := o.mgr.UpdateTaskStatus(task.ID, models.TaskStatusBlocked, res.BlockedReason); err != nil {
			return false, err
		}
		task.Status = models.TaskStatusBlocked
		o.event(Event{Type: EventTaskBlocked, SprintID: sprintID, TaskID: task.ID,
			Agent: m.Agent, Message: res.Summary})
		if res.BlockedReason == "cancelled" {
			return false, nil
		}
		return o.opts.Strict, nil
	}
}

// finishTask pushes the branch, attempts a PR, and rolls progress up.
func (o *Orchestrator) finishTask(ctx context.Context, sprintID string, g *graph.DependencyGraph, task *models.Task, res *executor.TaskResult) (bool, error) {
	if err := o.trees.Push(ctx, task.ID); err != nil {
		o.event(Event{Type: EventError, SprintID: sprintID, TaskID: task.ID, Err: err,
			Message: fmt.Sprintf("push failed for %s", task.ID)})
	} else {
		title := fmt.Sprintf("[%s] %s", task.ID, task.Title)
		url, err := o.trees.OpenPR(ctx, task.ID, title, o.prBody(sprintID, task, res))
		if err != nil {
			o.event(Event{Type: EventError, SprintID: sprintID, TaskID: task.ID, Err: err,
				Message: fmt.Sprintf("pr failed for %s", task.ID)})
		} else {
			o.event(Event{Type: EventPROpened, SprintID: sprintID, TaskID: task.ID, Message: url})
		}
	}

	if _, err := o.mgr.UpdateTaskStatus(task.ID, models.TaskStatusCompleted, ""); err != nil {
		return false, err
	}
	task.Status = models.TaskStatusCompleted
	g.MarkComplete(task.ID)
	o.event(Event{Type: EventTaskCompleted, SprintID: sprintID, TaskID: task.ID,
		TaskTitle: task.Title, Agent: task.AssignedAgent, Message: res.Summary})
	return false, nil
}

// prBody summarizes the change and current sprint progress.
func (o *Orchestrator) prBody(sprintID string, task *models.Task, res *executor.TaskResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", task.Title)
	if task.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", task.Description)
	}
	if res.CoveragePercent > 0 {
		fmt.Fprintf(&b, "Coverage: %.1f%%\n", res.CoveragePercent)
	}
	if rep, err := o.mgr.SprintReport(sprintID); err == nil {
		fmt.Fprintf(&b, "Sprint progress: %d/%d tasks, %d/%d points\n",
			rep.TasksDone+1, rep.TasksTotal, rep.CompletedPoints, rep.CommittedPoints)
	}
	return b.String()
}

// freeze flattens the sprint's committed stories and bugs into their
// tasks, preserving story priority then dependency order, and rejects
// cycles before the sprint activates.
func (o *Orchestrator) freeze(sprintID string) (*graph.DependencyGraph, error) {
	sp, err := o.mgr.Sprint(sprintID)
	if err != nil {
		return nil, err
	}

	byStory := make(map[string][]*models.Task)
	byBug := make(map[string][]*models.Task)
	for _, t := range o.mgr.Tasks() {
		if t.BugID != "" {
			byBug[t.BugID] = append(byBug[t.BugID], t)
		} else if t.StoryID != "" {
			byStory[t.StoryID] = append(byStory[t.StoryID], t)
		}
	}

	var flat []*models.Task
	for _, item := range sp.CommittedItems {
		var tasks []*models.Task
		switch item.Kind {
		case models.KindStory:
			tasks = byStory[item.ID]
		case models.KindBug:
			tasks = byBug[item.ID]
		case models.KindTask:
			if t, err := o.mgr.Task(item.ID); err == nil {
				tasks = []*models.Task{t}
			}
		}
		sort.SliceStable(tasks, func(i, j int) bool {
			if a, b := tasks[i].Priority.Rank(), tasks[j].Priority.Rank(); a != b {
				return a < b
			}
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		})
		flat = append(flat, tasks...)
	}
	if len(flat) == 0 {
		return nil, models.NewError(models.KindValidation, "sprint %s has no tasks to run", sprintID)
	}

	g := graph.New()
	if err := g.Build(flat); err != nil {
		return nil, fmt.Errorf("freeze sprint %s: %w", sprintID, err)
	}
	// Validate the full order up front so cycles and inconsistencies
	// surface before any task starts.
	if _, err := g.Order(); err != nil {
		return nil, fmt.Errorf("freeze sprint %s: %w", sprintID, err)
	}
	return g, nil
}

// starved reports whether every remaining task is waiting, directly or
// transitively, on a task that already ended Blocked.
func (o *Orchestrator) starved(g *graph.DependencyGraph, remaining []string) bool {
	for _, id := range remaining {
		behindTerminal := false
		for _, dep := range g.Blockers(id) {
			if t := g.Task(dep); t != nil && t.Terminal() {
				behindTerminal = true
				break
			}
		}
		if !behindTerminal {
			return false
		}
	}
	return true
}

func (o *Orchestrator) deadlockDiagnostic(g *graph.DependencyGraph, remaining []string) string {
	parts := make([]string, 0, len(remaining))
	for _, id := range remaining {
		parts = append(parts, fmt.Sprintf("%s waits on %s", id, strings.Join(g.Blockers(id), ", ")))
	}
	return "no runnable task but pending tasks remain: " + strings.Join(parts, "; ")
}

func (o *Orchestrator) taskDone(taskID string) bool {
	t, err := o.mgr.Task(taskID)
	return err == nil && t.Status == models.TaskStatusCompleted
}

func (o *Orchestrator) event(ev Event) {
	ev.RunID = o.runID
	ev.Timestamp = o.clock()
	o.emit(ev)
}
