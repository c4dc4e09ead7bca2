// Package executor runs one task through the test-first sequence inside
// its worktree: scaffold tests, expect red, implement, expect green, then
// the coverage gate.
package executor

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sprintforge/sprintforge/internal/config"
	"github.com/sprintforge/sprintforge/internal/exec"
	"github.com/sprintforge/sprintforge/pkg/models"
)

// Phase is one step of the execution sequence.
type Phase string

const (
	PhaseTakeover  Phase = "takeover"
	PhaseWorking   Phase = "working"
	PhaseTesting   Phase = "testing"
	PhaseCoverage  Phase = "coverage"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
	PhaseBlocked   Phase = "blocked"
)

// ResultStatus is the terminal verdict of one execution.
type ResultStatus string

const (
	ResultCompleted ResultStatus = "completed"
	ResultFailed    ResultStatus = "failed"
	ResultBlocked   ResultStatus = "blocked"
)

// Event is an observable status emission; one fires after every phase.
type Event struct {
	TaskID  string
	Agent   string
	Phase   Phase
	Message string
	At      time.Time
}

// Invocation records one shell call for the sprint journal.
type Invocation struct {
	Command  string        `json:"command"`
	ExitCode int           `json:"exit_code"`
	Output   string        `json:"output"`
	Duration time.Duration `json:"duration"`
}

// TaskResult is the terminal report for one execution.
type TaskResult struct {
	Status          ResultStatus
	Summary         string
	CoveragePercent float64
	Artifacts       []string
	PRURL           string
	BlockedReason   string
	Invocations     []Invocation
}

// AuthorFunc performs a code-authoring step (tests or implementation) in
// the worktree. The core never writes code itself; the external agent
// integration supplies this. A nil AuthorFunc skips authoring phases.
type AuthorFunc func(ctx context.Context, workDir string, task *models.Task, phase string) error

// outputExcerptLimit bounds how much subprocess output the journal keeps.
const outputExcerptLimit = 2000

// Executor drives the test-first sequence for (task, agent) pairs.
type Executor struct {
	run    exec.CommandRunner
	cfg    *config.Config
	author AuthorFunc
	emit   func(Event)
	clock  func() time.Time
}

// New builds an executor. emit may be nil when no observer is attached.
func New(run exec.CommandRunner, cfg *config.Config, author AuthorFunc, emit func(Event)) *Executor {
	if emit == nil {
		emit = func(Event) {}
	}
	return &Executor{
		run:    run,
		cfg:    cfg,
		author: author,
		emit:   emit,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// Execute runs the task's test-first sequence in workDir. The returned
// error is reserved for infrastructure faults; task-level failures are
// reported through TaskResult.Status.
func (e *Executor) Execute(ctx context.Context, task *models.Task, agent *models.AgentDescriptor, workDir string) (*TaskResult, error) {
	if agent == nil {
		return nil, models.NewError(models.KindValidation, "agent descriptor is required")
	}
	res := &TaskResult{}
	e.event(task, agent, PhaseTakeover, fmt.Sprintf("%s takes over %s", agent.DisplayName, task.ID))

	if e.cancelled(ctx, task, agent, res) {
		return res, nil
	}

	// Author the tests first.
	e.event(task, agent, PhaseWorking, "scaffolding tests")
	if err := e.authorStep(ctx, workDir, task, "tests"); err != nil {
		return e.fail(task, agent, res, fmt.Sprintf("test scaffolding failed: %v", err)), nil
	}
	if e.cancelled(ctx, task, agent, res) {
		return res, nil
	}

	// Red: the fresh tests are expected to fail against the old code.
	if agent.TestCommand != "" {
		e.event(task, agent, PhaseTesting, "running tests, expecting failure")
		err, halted := e.gatedShell(ctx, workDir, task, agent, res, agent.TestCommand, e.cfg.Timeouts.Test, PhaseTesting)
		if halted {
			return res, nil
		}
		if err == nil {
			// Passing before implementation usually means the scaffold is
			// vacuous; note it and continue.
			e.event(task, agent, PhaseTesting, "tests passed before implementation")
		}
	}
	if e.cancelled(ctx, task, agent, res) {
		return res, nil
	}

	// Author the implementation.
	e.event(task, agent, PhaseWorking, "implementing")
	if err := e.authorStep(ctx, workDir, task, "implementation"); err != nil {
		return e.fail(task, agent, res, fmt.Sprintf("implementation failed: %v", err)), nil
	}
	if e.cancelled(ctx, task, agent, res) {
		return res, nil
	}

	// Green: the suite must now pass.
	if agent.TestCommand != "" {
		e.event(task, agent, PhaseTesting, "running tests, expecting success")
		err, halted := e.gatedShell(ctx, workDir, task, agent, res, agent.TestCommand, e.cfg.Timeouts.Test, PhaseTesting)
		if halted {
			return res, nil
		}
		if err != nil {
			return e.fail(task, agent, res, "tests failed after implementation"), nil
		}
	}
	if e.cancelled(ctx, task, agent, res) {
		return res, nil
	}

	// Coverage gate.
	if agent.CoverageCommand != "" {
		e.event(task, agent, PhaseCoverage, "measuring coverage")
		err, halted := e.gatedShell(ctx, workDir, task, agent, res, agent.CoverageCommand, e.cfg.Timeouts.Coverage, PhaseCoverage)
		if halted {
			return res, nil
		}
		if err != nil {
			return e.fail(task, agent, res, "coverage tool failed"), nil
		}
		pct, ok := parseCoverage(res.Invocations[len(res.Invocations)-1].Output)
		if !ok {
			return e.fail(task, agent, res, "coverage output unparseable"), nil
		}
		res.CoveragePercent = pct
		if pct < float64(e.cfg.Scrum.TestCoverageRequired) {
			res.Status = ResultBlocked
			res.BlockedReason = "coverage"
			res.Summary = fmt.Sprintf("coverage %.1f%% below required %d%%", pct, e.cfg.Scrum.TestCoverageRequired)
			e.event(task, agent, PhaseBlocked, res.Summary)
			return res, nil
		}
	}

	res.Status = ResultCompleted
	res.Summary = fmt.Sprintf("task %s completed by %s", task.ID, agent.Name)
	e.event(task, agent, PhaseCompleted, res.Summary)
	return res, nil
}

func (e *Executor) authorStep(ctx context.Context, workDir string, task *models.Task, phase string) error {
	if e.author == nil {
		return nil
	}
	return e.author(ctx, workDir, task, phase)
}

// gatedShell runs one bounded invocation, retrying a timeout once. It
// halts the sequence when ctx was cancelled mid-command (Blocked with
// reason "cancelled") or when both attempts time out (Blocked with reason
// "timeout"); halted tells the caller to stop.
func (e *Executor) gatedShell(ctx context.Context, workDir string, task *models.Task, agent *models.AgentDescriptor, res *TaskResult, command string, timeout time.Duration, phase Phase) (err error, halted bool) {
	inv, err := e.shell(ctx, workDir, command, timeout)
	res.Invocations = append(res.Invocations, inv)
	if ctx.Err() != nil {
		return err, e.cancelled(ctx, task, agent, res)
	}
	if !exec.IsTimeout(err) {
		return err, false
	}

	e.event(task, agent, phase, "command timed out, retrying once")
	inv, err = e.shell(ctx, workDir, command, timeout)
	res.Invocations = append(res.Invocations, inv)
	if ctx.Err() != nil {
		return err, e.cancelled(ctx, task, agent, res)
	}
	if !exec.IsTimeout(err) {
		return err, false
	}

	res.Status = ResultBlocked
	res.BlockedReason = "timeout"
	res.Summary = fmt.Sprintf("command %q exceeded %s twice", command, timeout)
	e.event(task, agent, PhaseBlocked, res.Summary)
	return err, true
}

// shell runs one bounded shell invocation and records it.
func (e *Executor) shell(ctx context.Context, workDir, command string, timeout time.Duration) (Invocation, error) {
	start := e.clock()
	out, err := e.run.RunTimeout(ctx, workDir, command, timeout)
	inv := Invocation{
		Command:  command,
		ExitCode: exec.ExitCode(err),
		Output:   excerpt(string(out)),
		Duration: e.clock().Sub(start),
	}
	return inv, err
}

func (e *Executor) fail(task *models.Task, agent *models.AgentDescriptor, res *TaskResult, summary string) *TaskResult {
	res.Status = ResultFailed
	res.Summary = summary
	e.event(task, agent, PhaseFailed, summary)
	return res
}

func (e *Executor) cancelled(ctx context.Context, task *models.Task, agent *models.AgentDescriptor, res *TaskResult) bool {
	if ctx.Err() == nil {
		return false
	}
	res.Status = ResultBlocked
	res.BlockedReason = "cancelled"
	res.Summary = "execution cancelled"
	e.event(task, agent, PhaseBlocked, res.Summary)
	return true
}

func (e *Executor) event(task *models.Task, agent *models.AgentDescriptor, phase Phase, msg string) {
	e.emit(Event{
		TaskID:  task.ID,
		Agent:   agent.Name,
		Phase:   phase,
		Message: msg,
		At:      e.clock(),
	})
}

var coverageRe = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)

// parseCoverage extracts the last percentage figure from tool output.
func parseCoverage(out string) (float64, bool) {
	matches := coverageRe.FindAllStringSubmatch(out, -1)
	if len(matches) == 0 {
		return 0, false
	}
	last := matches[len(matches)-1]
	pct, err := strconv.ParseFloat(last[1], 64)
	if err != nil {
		return 0, false
	}
	return pct, true
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= outputExcerptLimit {
		return s
	}
	return s[:outputExcerptLimit]
}
