package models

import "time"

// AgentDescriptor is inert configuration describing an agent. Descriptors
// carry no executable logic; executable behavior is uniform and selected by
// descriptor fields.
type AgentDescriptor struct {
	// Name is the kebab-case identifier, e.g. "python-engineer".
	Name string `yaml:"name" json:"name"`
	// DisplayName is the human-readable name.
	DisplayName string `yaml:"display_name" json:"display_name"`
	// Color is the display color used by terminal frontends.
	Color string `yaml:"color" json:"color"`
	// Emoji is the display glyph.
	Emoji string `yaml:"emoji,omitempty" json:"emoji,omitempty"`
	// ShortLabel is a compact tag for narrow displays.
	ShortLabel string `yaml:"short_label,omitempty" json:"short_label,omitempty"`
	// Language is the agent's exclusive language domain, e.g. "python".
	// Empty for non-language agents such as project-manager.
	Language string `yaml:"language,omitempty" json:"language,omitempty"`
	// Frameworks lists frameworks the agent is fluent in.
	Frameworks []string `yaml:"frameworks,omitempty" json:"frameworks,omitempty"`
	// FilePatterns lists regexes for files the agent may touch.
	FilePatterns []string `yaml:"file_patterns,omitempty" json:"file_patterns,omitempty"`
	// SkillKeywords lists terms the matcher scores against.
	SkillKeywords []string `yaml:"skill_keywords,omitempty" json:"skill_keywords,omitempty"`
	// AllowedTools lists tool names the executor may invoke for this agent.
	AllowedTools []string `yaml:"allowed_tools,omitempty" json:"allowed_tools,omitempty"`
	// TestCommand is the shell command the test-first sequence runs.
	TestCommand string `yaml:"test_command,omitempty" json:"test_command,omitempty"`
	// CoverageCommand is the shell command that reports coverage.
	CoverageCommand string `yaml:"coverage_command,omitempty" json:"coverage_command,omitempty"`
}

// WorktreeStatus tracks a worktree record's lifecycle.
type WorktreeStatus string

const (
	// WorktreeActive indicates the worktree exists and is owned by a task.
	WorktreeActive WorktreeStatus = "active"
	// WorktreePushed indicates the branch was pushed to the remote.
	WorktreePushed WorktreeStatus = "pushed"
	// WorktreePROpen indicates a pull request is open for the branch.
	WorktreePROpen WorktreeStatus = "pr_open"
	// WorktreeAbandoned indicates the task was halted with the tree intact.
	WorktreeAbandoned WorktreeStatus = "abandoned"
	// WorktreeRemoved indicates the worktree directory was removed.
	WorktreeRemoved WorktreeStatus = "removed"
	// WorktreeGhost indicates metadata exists but the directory vanished.
	WorktreeGhost WorktreeStatus = "ghost"
)

// WorktreeRecord is the persisted metadata for one task's worktree.
type WorktreeRecord struct {
	// TaskID owns the worktree; at most one record per task.
	TaskID string `json:"task_id"`
	// Agent is the name of the agent the worktree was created for.
	Agent string `json:"agent"`
	// Branch is the branch checked out in the worktree.
	Branch string `json:"branch"`
	// Path is the absolute worktree directory.
	Path string `json:"path"`
	// Status tracks the record lifecycle.
	Status WorktreeStatus `json:"status"`
	// PRURL is set after a pull request is opened.
	PRURL string `json:"pr_url,omitempty"`
	// CreatedAt is when the worktree was created, UTC.
	CreatedAt time.Time `json:"created_at"`
}
