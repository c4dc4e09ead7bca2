package git

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ExecRunner implements Runner using exec.Command. Every invocation is
// bounded by the configured timeout on top of the caller's context.
type ExecRunner struct {
	repoPath string
	timeout  time.Duration
}

// NewRunner creates a git runner for the repository at the given path.
// A non-positive timeout disables the per-command bound.
func NewRunner(repoPath string, timeout time.Duration) *ExecRunner {
	return &ExecRunner{repoPath: repoPath, timeout: timeout}
}

// runIn executes a git command in dir (repo root when empty).
func (r *ExecRunner) runIn(ctx context.Context, dir string, args ...string) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir == "" {
		dir = r.repoPath
	}
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), ctx.Err())
		}
		return "", fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, string(out))
	}
	return strings.TrimSpace(string(out)), nil
}

// Run executes an arbitrary git command in the repository root.
func (r *ExecRunner) Run(ctx context.Context, args ...string) (string, error) {
	return r.runIn(ctx, "", args...)
}

// CurrentBranch returns the name of the current branch.
func (r *ExecRunner) CurrentBranch(ctx context.Context) (string, error) {
	return r.runIn(ctx, "", "rev-parse", "--abbrev-ref", "HEAD")
}

// BranchExists returns true if the local branch exists.
func (r *ExecRunner) BranchExists(ctx context.Context, name string) (bool, error) {
	cmd := exec.CommandContext(ctx, "git", "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	cmd.Dir = r.repoPath
	err := cmd.Run()
	if err != nil {
		// Exit code 1 means the branch doesn't exist.
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return false, nil
		}
		return false, fmt.Errorf("check branch exists: %w", err)
	}
	return true, nil
}

// DeleteBranch deletes the specified branch.
func (r *ExecRunner) DeleteBranch(ctx context.Context, name string) error {
	_, err := r.runIn(ctx, "", "branch", "-D", name)
	return err
}

// Status returns the output of git status --porcelain for dir.
func (r *ExecRunner) Status(ctx context.Context, dir string) (string, error) {
	return r.runIn(ctx, dir, "status", "--porcelain")
}

// HasChanges returns true if dir has uncommitted changes.
func (r *ExecRunner) HasChanges(ctx context.Context, dir string) (bool, error) {
	status, err := r.Status(ctx, dir)
	if err != nil {
		return false, err
	}
	return len(status) > 0, nil
}

// AheadBehind counts commits branch is ahead of and behind upstream.
func (r *ExecRunner) AheadBehind(ctx context.Context, dir, branch, upstream string) (int, int, error) {
	out, err := r.runIn(ctx, dir, "rev-list", "--left-right", "--count", branch+"..."+upstream)
	if err != nil {
		return 0, 0, err
	}
	fields := strings.Fields(out)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("unexpected rev-list output %q", out)
	}
	ahead, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("parse ahead count %q: %w", fields[0], err)
	}
	behind, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("parse behind count %q: %w", fields[1], err)
	}
	return ahead, behind, nil
}

// WorktreeAddNewBranch creates a worktree at path with a new branch off base.
func (r *ExecRunner) WorktreeAddNewBranch(ctx context.Context, path, branch, base string) error {
	args := []string{"worktree", "add", path, "-b", branch}
	if base != "" {
		args = append(args, base)
	}
	_, err := r.runIn(ctx, "", args...)
	return err
}

// WorktreeRemove removes the worktree at path, optionally with force.
func (r *ExecRunner) WorktreeRemove(ctx context.Context, path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, path)
	_, err := r.runIn(ctx, "", args...)
	return err
}

// WorktreeList returns the live worktree paths.
func (r *ExecRunner) WorktreeList(ctx context.Context) ([]string, error) {
	out, err := r.runIn(ctx, "", "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "worktree ") {
			paths = append(paths, strings.TrimPrefix(line, "worktree "))
		}
	}
	return paths, nil
}

// WorktreePrune removes stale worktree entries.
func (r *ExecRunner) WorktreePrune(ctx context.Context) error {
	_, err := r.runIn(ctx, "", "worktree", "prune")
	return err
}

// Push pushes the branch to origin with upstream tracking.
func (r *ExecRunner) Push(ctx context.Context, dir, branch string) error {
	_, err := r.runIn(ctx, dir, "push", "-u", "origin", branch)
	return err
}

// HasRemote returns true if an origin remote is configured.
func (r *ExecRunner) HasRemote(ctx context.Context) bool {
	_, err := r.runIn(ctx, "", "remote", "get-url", "origin")
	return err == nil
}

// Verify ExecRunner implements Runner at compile time.
var _ Runner = (*ExecRunner)(nil)
