package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sprintforge/sprintforge/internal/config"
	"github.com/sprintforge/sprintforge/pkg/models"
)

// response is one scripted outcome for a command.
type response struct {
	out string
	err error
}

// fakeRunner replays scripted responses per command, in call order.
type fakeRunner struct {
	script map[string][]response
	calls  []string
}

func (f *fakeRunner) take(command string) ([]byte, error) {
	f.calls = append(f.calls, command)
	queue := f.script[command]
	if len(queue) == 0 {
		return nil, nil
	}
	r := queue[0]
	f.script[command] = queue[1:]
	return []byte(r.out), r.err
}

func (f *fakeRunner) Run(_ context.Context, _ string, name string, args ...string) ([]byte, error) {
	return f.take(strings.Join(append([]string{name}, args...), " "))
}

func (f *fakeRunner) RunShell(_ context.Context, _ string, command string) ([]byte, error) {
	return f.take(command)
}

func (f *fakeRunner) RunTimeout(_ context.Context, _ string, command string, _ time.Duration) ([]byte, error) {
	return f.take(command)
}

func (f *fakeRunner) LookPath(string) bool { return true }

func testAgent() *models.AgentDescriptor {
	return &models.AgentDescriptor{
		Name:            "golang-engineer",
		DisplayName:     "Go Engineer",
		TestCommand:     "go test ./...",
		CoverageCommand: "go test -cover ./...",
	}
}

func testTask() *models.Task {
	return &models.Task{ID: "TASK-1", Title: "Add retry to fetcher"}
}

func newTestExecutor(run *fakeRunner, events *[]Event) *Executor {
	cfg := config.Default("demo")
	emit := func(ev Event) {
		if events != nil {
			*events = append(*events, ev)
		}
	}
	return New(run, cfg, nil, emit)
}

func phases(events []Event) []Phase {
	out := make([]Phase, len(events))
	for i, ev := range events {
		out[i] = ev.Phase
	}
	return out
}

func TestExecuteGreenPath(t *testing.T) {
	run := &fakeRunner{script: map[string][]response{
		"go test ./...": {
			{out: "FAIL", err: errors.New("exit status 1")},
			{out: "ok"},
		},
		"go test -cover ./...": {
			{out: "ok\tcoverage: 100.0% of statements"},
		},
	}}
	var events []Event
	ex := newTestExecutor(run, &events)

	res, err := ex.Execute(context.Background(), testTask(), testAgent(), t.TempDir())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != ResultCompleted {
		t.Fatalf("status = %q, want %q (%s)", res.Status, ResultCompleted, res.Summary)
	}
	if res.CoveragePercent != 100.0 {
		t.Errorf("coverage = %v, want 100", res.CoveragePercent)
	}
	if len(res.Invocations) != 3 {
		t.Fatalf("invocations = %d, want 3", len(res.Invocations))
	}

	want := []Phase{PhaseTakeover, PhaseWorking, PhaseTesting, PhaseWorking, PhaseTesting, PhaseCoverage, PhaseCompleted}
	got := phases(events)
	if len(got) != len(want) {
		t.Fatalf("phases = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("phase[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestExecuteCoverageBelowThreshold(t *testing.T) {
	run := &fakeRunner{script: map[string][]response{
		"go test ./...": {
			{out: "FAIL", err: errors.New("exit status 1")},
			{out: "ok"},
		},
		"go test -cover ./...": {
			{out: "ok\tcoverage: 83.0% of statements"},
		},
	}}
	ex := newTestExecutor(run, nil)

	res, err := ex.Execute(context.Background(), testTask(), testAgent(), t.TempDir())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != ResultBlocked {
		t.Fatalf("status = %q, want blocked", res.Status)
	}
	if res.BlockedReason != "coverage" {
		t.Errorf("blocked reason = %q, want coverage", res.BlockedReason)
	}
	if res.CoveragePercent != 83.0 {
		t.Errorf("coverage = %v, want 83", res.CoveragePercent)
	}
}

func TestExecuteTimeoutRetriesThenBlocks(t *testing.T) {
	run := &fakeRunner{script: map[string][]response{
		"go test ./...": {
			{err: context.DeadlineExceeded},
			{err: context.DeadlineExceeded},
		},
	}}
	ex := newTestExecutor(run, nil)

	res, err := ex.Execute(context.Background(), testTask(), testAgent(), t.TempDir())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != ResultBlocked {
		t.Fatalf("status = %q, want blocked", res.Status)
	}
	if res.BlockedReason != "timeout" {
		t.Errorf("blocked reason = %q, want timeout", res.BlockedReason)
	}
	if len(res.Invocations) != 2 {
		t.Errorf("invocations = %d, want 2 (original plus one retry)", len(res.Invocations))
	}
}

func TestExecuteTimeoutThenRecoversOnRetry(t *testing.T) {
	run := &fakeRunner{script: map[string][]response{
		"go test ./...": {
			{err: context.DeadlineExceeded},
			{out: "FAIL", err: errors.New("exit status 1")}, // red retry succeeds at running
			{out: "ok"},
		},
		"go test -cover ./...": {
			{out: "coverage: 100%"},
		},
	}}
	ex := newTestExecutor(run, nil)

	res, err := ex.Execute(context.Background(), testTask(), testAgent(), t.TempDir())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != ResultCompleted {
		t.Fatalf("status = %q, want completed (%s)", res.Status, res.Summary)
	}
	if len(res.Invocations) != 4 {
		t.Errorf("invocations = %d, want 4", len(res.Invocations))
	}
}

func TestExecuteGreenRunFailureFails(t *testing.T) {
	run := &fakeRunner{script: map[string][]response{
		"go test ./...": {
			{out: "FAIL", err: errors.New("exit status 1")},
			{out: "FAIL", err: errors.New("exit status 1")},
		},
	}}
	ex := newTestExecutor(run, nil)

	res, err := ex.Execute(context.Background(), testTask(), testAgent(), t.TempDir())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != ResultFailed {
		t.Fatalf("status = %q, want failed", res.Status)
	}
	if !strings.Contains(res.Summary, "tests failed") {
		t.Errorf("summary = %q, want test failure note", res.Summary)
	}
}

func TestExecuteCancelledAtPhaseBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run := &fakeRunner{script: map[string][]response{}}
	ex := newTestExecutor(run, nil)

	res, err := ex.Execute(ctx, testTask(), testAgent(), t.TempDir())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != ResultBlocked {
		t.Fatalf("status = %q, want blocked", res.Status)
	}
	if res.BlockedReason != "cancelled" {
		t.Errorf("blocked reason = %q, want cancelled", res.BlockedReason)
	}
	if len(run.calls) != 0 {
		t.Errorf("commands ran after cancellation: %v", run.calls)
	}
}

// cancellingRunner cancels the context on the nth RunTimeout call.
type cancellingRunner struct {
	*fakeRunner
	cancel context.CancelFunc
	at     int
	n      int
}

func (c *cancellingRunner) RunTimeout(ctx context.Context, dir, command string, d time.Duration) ([]byte, error) {
	c.n++
	if c.n == c.at {
		c.cancel()
		return nil, context.Canceled
	}
	return c.fakeRunner.RunTimeout(ctx, dir, command, d)
}

func TestExecuteCancelledMidGreenRunBlocks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	run := &cancellingRunner{
		fakeRunner: &fakeRunner{script: map[string][]response{
			"go test ./...": {
				{out: "FAIL", err: errors.New("exit status 1")},
			},
		}},
		cancel: cancel,
		at:     2, // the green run
	}
	cfg := config.Default("demo")
	ex := New(run, cfg, nil, nil)

	res, err := ex.Execute(ctx, testTask(), testAgent(), t.TempDir())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != ResultBlocked {
		t.Fatalf("status = %q, want blocked (%s)", res.Status, res.Summary)
	}
	if res.BlockedReason != "cancelled" {
		t.Errorf("blocked reason = %q, want cancelled", res.BlockedReason)
	}
}

func TestExecuteCoverageTimeoutRetryKeepsPhase(t *testing.T) {
	run := &fakeRunner{script: map[string][]response{
		"go test ./...": {
			{out: "FAIL", err: errors.New("exit status 1")},
			{out: "ok"},
		},
		"go test -cover ./...": {
			{err: context.DeadlineExceeded},
			{out: "coverage: 100%"},
		},
	}}
	var events []Event
	ex := newTestExecutor(run, &events)

	res, err := ex.Execute(context.Background(), testTask(), testAgent(), t.TempDir())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != ResultCompleted {
		t.Fatalf("status = %q, want completed (%s)", res.Status, res.Summary)
	}

	var retry *Event
	for i := range events {
		if strings.Contains(events[i].Message, "retrying") {
			retry = &events[i]
		}
	}
	if retry == nil {
		t.Fatal("no retry event emitted")
	}
	if retry.Phase != PhaseCoverage {
		t.Errorf("retry event phase = %q, want %q", retry.Phase, PhaseCoverage)
	}
}

func TestExecuteAuthorFailureFails(t *testing.T) {
	run := &fakeRunner{script: map[string][]response{}}
	cfg := config.Default("demo")
	author := func(context.Context, string, *models.Task, string) error {
		return errors.New("agent unavailable")
	}
	ex := New(run, cfg, author, nil)

	res, err := ex.Execute(context.Background(), testTask(), testAgent(), t.TempDir())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Status != ResultFailed {
		t.Fatalf("status = %q, want failed", res.Status)
	}
}

func TestParseCoverage(t *testing.T) {
	cases := []struct {
		out  string
		pct  float64
		ok   bool
		name string
	}{
		{"ok\tcoverage: 87.5% of statements", 87.5, true, "go style"},
		{"TOTAL  100  0  100%", 100, true, "pytest-cov style"},
		{"lines 45.2%\nbranches 61.8%", 61.8, true, "last figure wins"},
		{"no figures here", 0, false, "missing"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pct, ok := parseCoverage(tc.out)
			if ok != tc.ok || pct != tc.pct {
				t.Errorf("parseCoverage(%q) = %v, %v; want %v, %v", tc.out, pct, ok, tc.pct, tc.ok)
			}
		})
	}
}
