// Package git provides an interface for the git operations the worktree
// manager needs.
package git

import "context"

// BranchOperations defines the interface for git branch operations.
type BranchOperations interface {
	// CurrentBranch returns the name of the current branch.
	CurrentBranch(ctx context.Context) (string, error)
	// BranchExists returns true if the local branch exists.
	BranchExists(ctx context.Context, name string) (bool, error)
	// DeleteBranch deletes the specified branch (force delete).
	DeleteBranch(ctx context.Context, name string) error
}

// StatusOperations defines the interface for git status and divergence
// queries, scoped to a worktree directory.
type StatusOperations interface {
	// Status returns the output of git status --porcelain for dir.
	Status(ctx context.Context, dir string) (string, error)
	// HasChanges returns true if dir has uncommitted changes.
	HasChanges(ctx context.Context, dir string) (bool, error)
	// AheadBehind returns how many commits branch is ahead of and behind
	// the upstream ref, via git rev-list --left-right --count.
	AheadBehind(ctx context.Context, dir, branch, upstream string) (ahead, behind int, err error)
}

// WorktreeOperations defines the interface for git worktree operations.
type WorktreeOperations interface {
	// WorktreeAddNewBranch creates a worktree at path with a new branch
	// (git worktree add -b) off the given base ref.
	WorktreeAddNewBranch(ctx context.Context, path, branch, base string) error
	// WorktreeRemove removes the worktree at path, optionally with force.
	WorktreeRemove(ctx context.Context, path string, force bool) error
	// WorktreeList returns the live worktree paths.
	WorktreeList(ctx context.Context) ([]string, error)
	// WorktreePrune removes stale worktree entries.
	WorktreePrune(ctx context.Context) error
}

// RemoteOperations defines the interface for git remote operations.
type RemoteOperations interface {
	// Push pushes the branch to origin with upstream tracking (-u).
	Push(ctx context.Context, dir, branch string) error
	// HasRemote returns true if an origin remote is configured.
	HasRemote(ctx context.Context) bool
}

// Runner is the complete git interface. Consumers should prefer the
// focused interfaces when possible.
type Runner interface {
	BranchOperations
	StatusOperations
	WorktreeOperations
	RemoteOperations
	// Run executes an arbitrary git command in the repository root.
	Run(ctx context.Context, args ...string) (string, error)
}
