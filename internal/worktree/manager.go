// Package worktree maintains one git worktree per active task: branch
// naming, metadata records, push, PR creation and cleanup.
package worktree

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sprintforge/sprintforge/internal/config"
	"github.com/sprintforge/sprintforge/internal/exec"
	"github.com/sprintforge/sprintforge/internal/git"
	"github.com/sprintforge/sprintforge/pkg/models"
)

// metaFile holds worktree records and the branch counter under the state
// root.
const metaFile = "worktrees.json"

// Status reports one worktree's divergence from its base branch.
type Status struct {
	HasChanges    bool `json:"has_changes"`
	CommitsAhead  int  `json:"commits_ahead"`
	CommitsBehind int  `json:"commits_behind"`
}

// metadata is the persisted shape of the manager's state.
type metadata struct {
	// BranchCounter is the monotonic <n> in <type>/<ABBREV>-<n>.
	BranchCounter int `json:"branch_counter"`
	// Records maps task ID to its worktree record.
	Records map[string]*models.WorktreeRecord `json:"records"`
}

// Manager owns worktree records. At most one worktree exists per task.
type Manager struct {
	mu          sync.Mutex
	git         git.Runner
	run         exec.CommandRunner
	cfg         *config.Config
	projectRoot string
	stateRoot   string
	meta        metadata
	clock       func() time.Time
}

// NewManager loads worktree metadata from the state root. The caller
// supplies the project checkout the worktrees hang off.
func NewManager(projectRoot string, cfg *config.Config, g git.Runner, run exec.CommandRunner) (*Manager, error) {
	m := &Manager{
		git:         g,
		run:         run,
		cfg:         cfg,
		projectRoot: projectRoot,
		stateRoot:   filepath.Join(projectRoot, config.StateRoot),
		meta:        metadata{Records: make(map[string]*models.WorktreeRecord)},
		clock:       func() time.Time { return time.Now().UTC() },
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(filepath.Join(m.stateRoot, metaFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return models.WrapError(models.KindIO, err, "read worktree metadata")
	}
	if err := json.Unmarshal(data, &m.meta); err != nil {
		return models.WrapError(models.KindSchema, err, "parse worktree metadata")
	}
	if m.meta.Records == nil {
		m.meta.Records = make(map[string]*models.WorktreeRecord)
	}
	return nil
}

// save writes metadata atomically, temp file then rename.
func (m *Manager) save() error {
	if err := os.MkdirAll(m.stateRoot, 0o755); err != nil {
		return models.WrapError(models.KindIO, err, "create state root")
	}
	data, err := json.MarshalIndent(&m.meta, "", "  ")
	if err != nil {
		return models.WrapError(models.KindIO, err, "marshal worktree metadata")
	}
	path := filepath.Join(m.stateRoot, metaFile)
	tmp, err := os.CreateTemp(m.stateRoot, metaFile+".*")
	if err != nil {
		return models.WrapError(models.KindIO, err, "write worktree metadata")
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return models.WrapError(models.KindIO, err, "write worktree metadata")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return models.WrapError(models.KindIO, err, "write worktree metadata")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return models.WrapError(models.KindIO, err, "write worktree metadata")
	}
	return nil
}

// TreesRoot returns the directory worktrees are created under.
func (m *Manager) TreesRoot() string {
	return filepath.Join(m.projectRoot, m.cfg.Worktrees.Root)
}

// EnsureTreesRoot creates the trees directory and adds it to .gitignore.
// Idempotent.
func (m *Manager) EnsureTreesRoot() error {
	if err := os.MkdirAll(m.TreesRoot(), 0o755); err != nil {
		return models.WrapError(models.KindIO, err, "create trees root")
	}
	return m.ensureIgnored(m.cfg.Worktrees.Root + "/")
}

func (m *Manager) ensureIgnored(entry string) error {
	path := filepath.Join(m.projectRoot, ".gitignore")
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return models.WrapError(models.KindIO, err, "read .gitignore")
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == strings.TrimSuffix(entry, "/") || strings.TrimSpace(line) == entry {
			return nil
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return models.WrapError(models.KindIO, err, "open .gitignore")
	}
	defer f.Close()
	prefix := ""
	if len(data) > 0 && !strings.HasSuffix(string(data), "\n") {
		prefix = "\n"
	}
	if _, err := fmt.Fprintf(f, "%s%s\n", prefix, entry); err != nil {
		return models.WrapError(models.KindIO, err, "append to .gitignore")
	}
	return nil
}

// BranchType classifies the work an item represents.
func BranchType(task *models.Task) string {
	if task.BugID != "" {
		return "fix"
	}
	text := strings.ToLower(task.Title + " " + task.Description)
	if strings.Contains(text, "refactor") {
		return "refactor"
	}
	return "feature"
}

// Create makes a worktree and branch for the task. It refuses when a
// record already exists for that task.
func (m *Manager) Create(ctx context.Context, task *models.Task, agent string) (*models.WorktreeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.meta.Records[task.ID]; ok && rec.Status != models.WorktreeRemoved {
		return nil, models.NewError(models.KindConflict,
			"task %s already has worktree %s", task.ID, rec.Path)
	}
	if err := m.EnsureTreesRoot(); err != nil {
		return nil, err
	}

	m.meta.BranchCounter++
	branch := fmt.Sprintf("%s/%s-%d", BranchType(task), m.cfg.Project.Abbrev, m.meta.BranchCounter)
	slug := strings.ReplaceAll(branch, "/", "-")
	path := filepath.Join(m.TreesRoot(), slug)

	if err := m.git.WorktreeAddNewBranch(ctx, path, branch, m.cfg.PR.BaseBranch); err != nil {
		m.meta.BranchCounter--
		return nil, models.WrapError(models.KindSubprocess, err, "create worktree for %s", task.ID)
	}

	rec := &models.WorktreeRecord{
		TaskID:    task.ID,
		Agent:     agent,
		Branch:    branch,
		Path:      path,
		Status:    models.WorktreeActive,
		CreatedAt: m.clock(),
	}
	m.meta.Records[task.ID] = rec
	if err := m.save(); err != nil {
		return nil, err
	}
	cp := *rec
	return &cp, nil
}

// Get returns the record for a task, or a NotFound error.
func (m *Manager) Get(taskID string) (*models.WorktreeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.meta.Records[taskID]
	if !ok {
		return nil, models.NewError(models.KindNotFound, "no worktree for task %s", taskID)
	}
	cp := *rec
	return &cp, nil
}

// List reconciles metadata with the worktrees git knows about. Records
// whose directory vanished are marked ghost.
func (m *Manager) List(ctx context.Context) ([]*models.WorktreeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	live, err := m.git.WorktreeList(ctx)
	if err != nil {
		return nil, models.WrapError(models.KindSubprocess, err, "list worktrees")
	}
	liveSet := make(map[string]bool, len(live))
	for _, p := range live {
		liveSet[p] = true
	}

	dirty := false
	var out []*models.WorktreeRecord
	for _, rec := range m.meta.Records {
		if rec.Status == models.WorktreeActive || rec.Status == models.WorktreePushed || rec.Status == models.WorktreePROpen {
			if !liveSet[rec.Path] {
				rec.Status = models.WorktreeGhost
				dirty = true
			}
		}
		cp := *rec
		out = append(out, &cp)
	}
	if dirty {
		if err := m.save(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Status reports uncommitted changes and divergence from the base branch.
func (m *Manager) Status(ctx context.Context, taskID string) (*Status, error) {
	m.mu.Lock()
	rec, ok := m.meta.Records[taskID]
	m.mu.Unlock()
	if !ok {
		return nil, models.NewError(models.KindNotFound, "no worktree for task %s", taskID)
	}

	changed, err := m.git.HasChanges(ctx, rec.Path)
	if err != nil {
		return nil, models.WrapError(models.KindSubprocess, err, "status of %s", taskID)
	}
	st := &Status{HasChanges: changed}

	ahead, behind, err := m.git.AheadBehind(ctx, rec.Path, rec.Branch, m.cfg.PR.BaseBranch)
	if err == nil {
		st.CommitsAhead = ahead
		st.CommitsBehind = behind
	}
	return st, nil
}

// Remove deletes a worktree. Uncommitted changes block removal unless
// force is set; the branch itself is left alone.
func (m *Manager) Remove(ctx context.Context, taskID string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.meta.Records[taskID]
	if !ok {
		return models.NewError(models.KindNotFound, "no worktree for task %s", taskID)
	}
	if rec.Status == models.WorktreeRemoved {
		return nil
	}

	if !force && rec.Status != models.WorktreeGhost {
		changed, err := m.git.HasChanges(ctx, rec.Path)
		if err != nil {
			return models.WrapError(models.KindSubprocess, err, "check changes in %s", taskID)
		}
		if changed {
			return models.NewError(models.KindConflict, "worktree for %s has uncommitted changes", taskID).
				WithHint("commit the work or pass force to discard it")
		}
	}

	if err := m.git.WorktreeRemove(ctx, rec.Path, force); err != nil && rec.Status != models.WorktreeGhost {
		return models.WrapError(models.KindSubprocess, err, "remove worktree for %s", taskID)
	}
	rec.Status = models.WorktreeRemoved
	return m.save()
}

// Push pushes the task's branch to origin with upstream tracking and
// advances the record to pushed.
func (m *Manager) Push(ctx context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.meta.Records[taskID]
	if !ok {
		return models.NewError(models.KindNotFound, "no worktree for task %s", taskID)
	}
	if err := m.git.Push(ctx, rec.Path, rec.Branch); err != nil {
		return models.WrapError(models.KindSubprocess, err, "push branch %s", rec.Branch)
	}
	rec.Status = models.WorktreePushed
	return m.save()
}

// OpenPR invokes the configured PR tool and stores the returned URL. On
// failure the record is left untouched.
func (m *Manager) OpenPR(ctx context.Context, taskID, title, body string) (string, error) {
	m.mu.Lock()
	rec, ok := m.meta.Records[taskID]
	m.mu.Unlock()
	if !ok {
		return "", models.NewError(models.KindNotFound, "no worktree for task %s", taskID)
	}

	tool := m.cfg.PR.Tool
	if !m.run.LookPath(tool) {
		return "", models.NewError(models.KindSubprocess, "PR tool %q not found", tool).
			WithHint("install the GitHub CLI or set pr.tool")
	}

	// Argv form so titles and bodies need no shell quoting.
	prCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeouts.PR)
	defer cancel()
	out, err := m.run.Run(prCtx, rec.Path, tool,
		"pr", "create",
		"--title", title,
		"--body", body,
		"--base", m.cfg.PR.BaseBranch,
		"--head", rec.Branch)
	if err != nil {
		return "", models.WrapError(models.KindSubprocess, err, "open PR for %s: %s", taskID, strings.TrimSpace(string(out)))
	}

	url := lastLine(string(out))
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.PRURL = url
	rec.Status = models.WorktreePROpen
	if err := m.save(); err != nil {
		return "", err
	}
	return url, nil
}

// Cleanup prunes ghost records and, optionally, worktrees whose task has
// completed and whose tree is clean. Returns the task IDs cleaned.
func (m *Manager) Cleanup(ctx context.Context, removeCompleted bool, taskDone func(taskID string) bool) ([]string, error) {
	if _, err := m.List(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var cleaned []string
	for id, rec := range m.meta.Records {
		switch rec.Status {
		case models.WorktreeGhost:
			rec.Status = models.WorktreeRemoved
			cleaned = append(cleaned, id)
		case models.WorktreeActive, models.WorktreePushed, models.WorktreePROpen:
			if !removeCompleted || taskDone == nil || !taskDone(id) {
				continue
			}
			changed, err := m.git.HasChanges(ctx, rec.Path)
			if err != nil || changed {
				continue
			}
			if err := m.git.WorktreeRemove(ctx, rec.Path, false); err != nil {
				continue
			}
			rec.Status = models.WorktreeRemoved
			cleaned = append(cleaned, id)
		}
	}
	if err := m.git.WorktreePrune(ctx); err != nil {
		return cleaned, models.WrapError(models.KindSubprocess, err, "prune worktrees")
	}
	if len(cleaned) > 0 {
		if err := m.save(); err != nil {
			return cleaned, err
		}
	}
	return cleaned, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
