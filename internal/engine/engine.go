// Package engine is the programmatic façade over the framework: it wires
// the store, scrum manager, agent registry, matcher, worktrees, executor,
// orchestrator and journal together and exposes the operation surface
// callers (such as the CLI) drive.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/sprintforge/sprintforge/internal/config"
	"github.com/sprintforge/sprintforge/internal/exec"
	"github.com/sprintforge/sprintforge/internal/executor"
	"github.com/sprintforge/sprintforge/internal/git"
	"github.com/sprintforge/sprintforge/internal/jira"
	"github.com/sprintforge/sprintforge/internal/journal"
	"github.com/sprintforge/sprintforge/internal/matcher"
	"github.com/sprintforge/sprintforge/internal/orchestrator"
	"github.com/sprintforge/sprintforge/internal/registry"
	"github.com/sprintforge/sprintforge/internal/scrum"
	"github.com/sprintforge/sprintforge/internal/store"
	"github.com/sprintforge/sprintforge/internal/worktree"
	"github.com/sprintforge/sprintforge/pkg/models"
)

// Engine is the façade. One Engine owns one project.
type Engine struct {
	projectRoot string
	stateRoot   string
	cfg         *config.Config

	st    *store.Store
	mgr   *scrum.Manager
	reg   *registry.Registry
	match *matcher.Matcher
	trees *worktree.Manager
	exec  *executor.Executor
	orc   *orchestrator.Orchestrator

	jdb   *journal.DB
	jlog  *journal.Logger
	queue *jira.Queue

	// sprintMu serializes sprint state transitions process-wide.
	sprintMu sync.Mutex

	subMu sync.Mutex
	subs  []func(orchestrator.Event)
	hooks []jira.ChangeHook
}

// Options tune engine construction.
type Options struct {
	// Author performs code-authoring steps; nil skips authoring.
	Author executor.AuthorFunc
	// CleanupWorktrees removes completed worktrees when a sprint finalizes.
	CleanupWorktrees bool
}

// Open builds an engine for the project at projectRoot.
func Open(projectRoot string, opts Options) (*Engine, error) {
	cfg, err := config.Load(projectRoot)
	if err != nil {
		return nil, err
	}
	stateRoot := filepath.Join(projectRoot, config.StateRoot)

	st, err := store.Open(stateRoot)
	if err != nil {
		return nil, err
	}
	mgr, err := scrum.NewManager(st, cfg)
	if err != nil {
		return nil, err
	}
	reg, err := registry.New(stateRoot)
	if err != nil {
		return nil, err
	}
	jdb, err := journal.Open(journal.Path(stateRoot))
	if err != nil {
		return nil, err
	}

	e := &Engine{
		projectRoot: projectRoot,
		stateRoot:   stateRoot,
		cfg:         cfg,
		st:          st,
		mgr:         mgr,
		reg:         reg,
		jdb:         jdb,
		jlog:        journal.NewLogger(stateRoot),
		queue:       jira.NewQueue(),
	}

	e.match = matcher.New(reg, mgr.AgentWorkload, cfg.Agents.AllowDynamicCreation)

	gitRunner := git.NewRunner(projectRoot, cfg.Timeouts.Git)
	cmdRunner := exec.NewRunner()
	e.trees, err = worktree.NewManager(projectRoot, cfg, gitRunner, cmdRunner)
	if err != nil {
		return nil, err
	}

	e.exec = executor.New(cmdRunner, cfg, opts.Author, e.onExecutorEvent)
	e.orc = orchestrator.New(mgr, reg, e.match, e.trees, journalingExecutor{e}, orchestrator.Options{
		Strict:           cfg.Scrum.StrictMode,
		CleanupWorktrees: opts.CleanupWorktrees,
	}, e.onRunEvent)

	mgr.SetChangeHook(e.onEntityChange)
	return e, nil
}

// Close releases the journal and log resources.
func (e *Engine) Close() error {
	var first error
	if err := e.jdb.Close(); err != nil {
		first = err
	}
	if err := e.jlog.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// Config returns the loaded configuration.
func (e *Engine) Config() *config.Config { return e.cfg }

// Scrum exposes the backlog and sprint manager.
func (e *Engine) Scrum() *scrum.Manager { return e.mgr }

// Agents exposes the agent registry.
func (e *Engine) Agents() *registry.Registry { return e.reg }

// Worktrees exposes the worktree manager.
func (e *Engine) Worktrees() *worktree.Manager { return e.trees }

// Journal exposes the sprint journal database.
func (e *Engine) Journal() *journal.DB { return e.jdb }

// Inbound returns the queue an external tracker sync pushes updates
// through. The engine does not consume it; a sync collaborator does.
func (e *Engine) Inbound() *jira.Queue { return e.queue }

// Subscribe registers an observer for sprint-run events.
func (e *Engine) Subscribe(fn func(orchestrator.Event)) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.subs = append(e.subs, fn)
}

// RegisterChangeHook registers an outbound hook fired on story, task and
// bug state changes.
func (e *Engine) RegisterChangeHook(h jira.ChangeHook) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.hooks = append(e.hooks, h)
}

// PlanSprint plans a sprint from the backlog.
func (e *Engine) PlanSprint(f scrum.SprintFields) (*models.Sprint, error) {
	e.sprintMu.Lock()
	defer e.sprintMu.Unlock()
	return e.mgr.PlanSprint(f)
}

// StartSprint activates a planned sprint without running it.
func (e *Engine) StartSprint(id string) (*models.Sprint, error) {
	e.sprintMu.Lock()
	defer e.sprintMu.Unlock()
	return e.mgr.StartSprint(id)
}

// CompleteSprint closes an active sprint.
func (e *Engine) CompleteSprint(id, retrospective string) (*models.Sprint, error) {
	e.sprintMu.Lock()
	defer e.sprintMu.Unlock()
	return e.mgr.CompleteSprint(id, retrospective)
}

// CancelSprint aborts an active sprint. The entity files are backed up
// first so the discarded sprint state can be recovered.
func (e *Engine) CancelSprint(id, reason string) (*models.Sprint, error) {
	e.sprintMu.Lock()
	defer e.sprintMu.Unlock()
	if _, err := e.st.Backup(filepath.Join(e.stateRoot, "backups")); err != nil {
		return nil, err
	}
	return e.mgr.CancelSprint(id, reason)
}

// Start runs a sprint end to end through the orchestrator.
func (e *Engine) Start(ctx context.Context, sprintID string) error {
	return e.orc.Run(ctx, sprintID)
}

// WatchAgents hot-reloads the registry when descriptor files change,
// until ctx is done.
func (e *Engine) WatchAgents(ctx context.Context) error {
	return e.reg.Watch(ctx)
}

// Estimate assigns points to one story, or auto-estimates when points
// is zero.
func (e *Engine) Estimate(storyID string, points int) (*models.Story, error) {
	return e.mgr.EstimateStory(storyID, points)
}

// EstimateAll auto-estimates every unestimated backlog story.
func (e *Engine) EstimateAll() ([]*models.Story, error) {
	return e.mgr.EstimateAll()
}

// CreateEpic groups stories under a theme.
func (e *Engine) CreateEpic(title, theme, businessValue string) (*models.Epic, error) {
	return e.mgr.CreateEpic(title, theme, businessValue)
}

// CreateRoadmap creates a roadmap, optionally pre-seeded with the four
// standard milestones.
func (e *Engine) CreateRoadmap(name, vision string, seedMilestones bool) (*models.Roadmap, error) {
	return e.mgr.CreateRoadmap(name, vision, seedMilestones)
}

// AddMilestone appends a milestone to a roadmap.
func (e *Engine) AddMilestone(roadmapID, name string, targetDate time.Time, storyIDs []string) (*models.Roadmap, error) {
	return e.mgr.AddMilestone(roadmapID, name, targetDate, storyIDs)
}

// AssignAgent manually overrides the agent for a task.
func (e *Engine) AssignAgent(taskID, agent string) (*models.Task, error) {
	if !e.reg.Has(agent) {
		return nil, models.NewError(models.KindNotFound, "agent %s not registered", agent)
	}
	return e.mgr.AssignAgent(taskID, agent)
}

// Delegate runs one task outside a sprint: match, worktree, execute,
// and on success push plus PR.
func (e *Engine) Delegate(ctx context.Context, taskID string) (*executor.TaskResult, error) {
	task, err := e.mgr.Task(taskID)
	if err != nil {
		return nil, err
	}
	if task.Terminal() {
		return nil, models.NewError(models.KindConflict, "task %s already ended %s", taskID, task.Status)
	}

	m, err := e.match.Match(task)
	if err != nil {
		return nil, err
	}
	if _, err := e.mgr.AssignAgent(taskID, m.Agent); err != nil {
		return nil, err
	}
	desc, err := e.reg.Get(m.Agent)
	if err != nil {
		return nil, err
	}
	rec, err := e.trees.Create(ctx, task, m.Agent)
	if err != nil {
		return nil, err
	}
	if _, err := e.mgr.UpdateTaskStatus(taskID, models.TaskStatusInProgress, ""); err != nil {
		return nil, err
	}

	res, err := e.executeJournaled(ctx, task, desc, rec.Path)
	if err != nil {
		return nil, err
	}

	switch res.Status {
	case executor.ResultCompleted:
		if err := e.trees.Push(ctx, taskID); err == nil {
			title := fmt.Sprintf("[%s] %s", taskID, task.Title)
			if url, err := e.trees.OpenPR(ctx, taskID, title, task.Description); err == nil {
				res.PRURL = url
			}
		}
		if _, err := e.mgr.UpdateTaskStatus(taskID, models.TaskStatusCompleted, ""); err != nil {
			return res, err
		}
	case executor.ResultFailed:
		if _, err := e.mgr.UpdateTaskStatus(taskID, models.TaskStatusBlocked, "failed"); err != nil {
			return res, err
		}
	default:
		if _, err := e.mgr.UpdateTaskStatus(taskID, models.TaskStatusBlocked, res.BlockedReason); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Status summarizes the project: active sprint, run state, backlog.
type Status struct {
	ActiveSprint *models.Sprint        `json:"active_sprint,omitempty"`
	RunState     orchestrator.RunState `json:"run_state"`
	Backlog      *scrum.BacklogReport  `json:"backlog"`
	Sprint       *scrum.SprintReport   `json:"sprint,omitempty"`
}

// Status reports the current project state.
func (e *Engine) Status() *Status {
	s := &Status{
		RunState: e.orc.State(),
		Backlog:  e.mgr.BacklogReport(),
	}
	if sp := e.mgr.ActiveSprint(); sp != nil {
		s.ActiveSprint = sp
		if rep, err := e.mgr.SprintReport(sp.ID); err == nil {
			s.Sprint = rep
		}
	}
	return s
}

// Show resolves any entity ID by its prefix and returns the entity.
func (e *Engine) Show(id string) (any, error) {
	kind, ok := store.KindForID(id)
	if !ok {
		return nil, models.NewError(models.KindValidation, "unrecognized id %q", id)
	}
	switch kind {
	case store.KindStories:
		return e.mgr.Story(id)
	case store.KindTasks:
		return e.mgr.Task(id)
	case store.KindBugs:
		return e.mgr.Bug(id)
	case store.KindSprints:
		return e.mgr.Sprint(id)
	case store.KindEpics:
		return e.mgr.Epic(id)
	default:
		return e.mgr.Roadmap(id)
	}
}

// List returns entities of one kind, optionally filtered by status.
func (e *Engine) List(kind, status string) ([]any, error) {
	var out []any
	switch kind {
	case "stories":
		for _, s := range e.mgr.Stories() {
			if status == "" || string(s.Status) == status {
				out = append(out, s)
			}
		}
	case "tasks":
		for _, t := range e.mgr.Tasks() {
			if status == "" || string(t.Status) == status {
				out = append(out, t)
			}
		}
	case "bugs":
		for _, b := range e.mgr.Bugs() {
			if status == "" || string(b.Status) == status {
				out = append(out, b)
			}
		}
	case "sprints":
		for _, sp := range e.mgr.Sprints() {
			if status == "" || string(sp.Status) == status {
				out = append(out, sp)
			}
		}
	case "epics":
		for _, ep := range e.mgr.Epics() {
			out = append(out, ep)
		}
	case "roadmaps":
		for _, r := range e.mgr.Roadmaps() {
			out = append(out, r)
		}
	case "agents":
		for _, a := range e.reg.List() {
			out = append(out, a)
		}
	default:
		return nil, models.NewError(models.KindValidation, "unknown list kind %q", kind)
	}
	return out, nil
}

// executeJournaled runs the executor and records every invocation.
func (e *Engine) executeJournaled(ctx context.Context, task *models.Task, desc *models.AgentDescriptor, workDir string) (*executor.TaskResult, error) {
	res, err := e.exec.Execute(ctx, task, desc, workDir)
	if res != nil {
		sprintID := ""
		if sp := e.mgr.ActiveSprint(); sp != nil {
			sprintID = sp.ID
		}
		for _, inv := range res.Invocations {
			e.jdb.AppendInvocation(journal.InvocationRecord{
				SprintID:   sprintID,
				TaskID:     task.ID,
				Command:    inv.Command,
				ExitCode:   inv.ExitCode,
				Output:     inv.Output,
				Duration:   inv.Duration,
				OccurredAt: time.Now().UTC(),
			})
		}
	}
	return res, err
}

// journalingExecutor adapts executeJournaled to the orchestrator's
// executor contract.
type journalingExecutor struct{ e *Engine }

func (j journalingExecutor) Execute(ctx context.Context, task *models.Task, agent *models.AgentDescriptor, workDir string) (*executor.TaskResult, error) {
	return j.e.executeJournaled(ctx, task, agent, workDir)
}

// onRunEvent journals, logs, and fans out one sprint-run event.
func (e *Engine) onRunEvent(ev orchestrator.Event) {
	e.jdb.AppendEvent(journal.EventRecord{
		SprintID:   ev.SprintID,
		TaskID:     ev.TaskID,
		Agent:      ev.Agent,
		Type:       string(ev.Type),
		Message:    ev.Message,
		OccurredAt: ev.Timestamp,
	})
	if ev.Type == orchestrator.EventHandoff {
		e.jdb.AppendHandoff(journal.HandoffRecord{
			SprintID:   ev.SprintID,
			FromAgent:  ev.FromAgent,
			ToAgent:    ev.Agent,
			Reason:     ev.Message,
			OccurredAt: ev.Timestamp,
		})
	}
	e.jlog.Event(ev.SprintID, ev.TaskID, string(ev.Type), ev.Message)

	e.subMu.Lock()
	subs := make([]func(orchestrator.Event), len(e.subs))
	copy(subs, e.subs)
	e.subMu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}

// onExecutorEvent logs executor phase transitions.
func (e *Engine) onExecutorEvent(ev executor.Event) {
	sprintID := ""
	if sp := e.mgr.ActiveSprint(); sp != nil {
		sprintID = sp.ID
	}
	e.jlog.Event(sprintID, ev.TaskID, string(ev.Phase), ev.Message)
}

// onEntityChange translates persisted entity changes into outbound hooks.
func (e *Engine) onEntityChange(kind store.Kind, id string) {
	var item jira.ItemKind
	switch kind {
	case store.KindStories:
		item = jira.ItemStory
	case store.KindTasks:
		item = jira.ItemTask
	case store.KindBugs:
		item = jira.ItemBug
	default:
		return
	}
	change := jira.Change{Kind: item, ID: id, At: time.Now().UTC()}

	e.subMu.Lock()
	hooks := make([]jira.ChangeHook, len(e.hooks))
	copy(hooks, e.hooks)
	e.subMu.Unlock()
	for _, h := range hooks {
		h(change)
	}
}
