// Package config handles configuration loading for sprintforge.
// It layers built-in defaults, the project state config
// (<state-root>/config.yaml), a repo-level override file
// (.sprintforge.yaml found by walking parent directories), and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/viper"
)

// StateRoot is the directory under the project root holding all
// sprintforge state.
const StateRoot = ".sprintforge"

// Config holds all configuration for a sprintforge project.
type Config struct {
	Project   ProjectConfig   `mapstructure:"project"`
	Scrum     ScrumConfig     `mapstructure:"scrum"`
	Agents    AgentsConfig    `mapstructure:"agents"`
	Worktrees WorktreesConfig `mapstructure:"worktrees"`
	PR        PRConfig        `mapstructure:"pr"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts"`
}

// ProjectConfig identifies the project.
type ProjectConfig struct {
	// Name is the project's human-readable name.
	Name string `mapstructure:"name"`
	// Abbrev is the 4-letter uppercase abbreviation used in branch names.
	// Derived from Name when absent.
	Abbrev string `mapstructure:"abbrev"`
}

// ScrumConfig holds sprint planning and execution settings.
type ScrumConfig struct {
	// VelocityTarget is the point budget for auto-planning; default 20.
	VelocityTarget int `mapstructure:"velocity_target"`
	// DefaultSprintDurationDays is the sprint length; default 14.
	DefaultSprintDurationDays int `mapstructure:"default_sprint_duration_days"`
	// StrictMode halts the sprint on the first task failure; default true.
	StrictMode bool `mapstructure:"strict_mode"`
	// TestCoverageRequired is the coverage gate percentage; default 100.
	TestCoverageRequired int `mapstructure:"test_coverage_required"`
}

// AgentsConfig holds agent registry settings.
type AgentsConfig struct {
	// AllowDynamicCreation lets the matcher materialize new descriptors.
	AllowDynamicCreation bool `mapstructure:"allow_dynamic_creation"`
}

// WorktreesConfig holds worktree layout settings.
type WorktreesConfig struct {
	// Root is the directory under the project root for worktrees.
	Root string `mapstructure:"root"`
}

// PRConfig holds pull request settings.
type PRConfig struct {
	// Tool is the external PR tool; default "gh".
	Tool string `mapstructure:"tool"`
	// BaseBranch is the branch PRs target; default "main".
	BaseBranch string `mapstructure:"base_branch"`
}

// TimeoutsConfig holds per-subprocess wall-clock timeouts.
type TimeoutsConfig struct {
	Test     time.Duration `mapstructure:"test"`
	Coverage time.Duration `mapstructure:"coverage"`
	Git      time.Duration `mapstructure:"git"`
	PR       time.Duration `mapstructure:"pr"`
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("project.name", "")
	v.SetDefault("project.abbrev", "")

	v.SetDefault("scrum.velocity_target", 20)
	v.SetDefault("scrum.default_sprint_duration_days", 14)
	v.SetDefault("scrum.strict_mode", true)
	v.SetDefault("scrum.test_coverage_required", 100)

	v.SetDefault("agents.allow_dynamic_creation", true)

	v.SetDefault("worktrees.root", "trees")

	v.SetDefault("pr.tool", "gh")
	v.SetDefault("pr.base_branch", "main")

	v.SetDefault("timeouts.test", "10m")
	v.SetDefault("timeouts.coverage", "5m")
	v.SetDefault("timeouts.git", "2m")
	v.SetDefault("timeouts.pr", "1m")
}

// Load loads the configuration for the project rooted at projectRoot.
// Precedence (highest to lowest):
//  1. Environment variables (SPRINTFORGE_*)
//  2. Repo override (.sprintforge.yaml in projectRoot or a parent)
//  3. Project state config (<projectRoot>/.sprintforge/config.yaml)
//  4. Built-in defaults
func Load(projectRoot string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	statePath := filepath.Join(projectRoot, StateRoot, "config.yaml")
	if _, err := os.Stat(statePath); err == nil {
		v.SetConfigFile(statePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config: %w", err)
		}
	}

	if override := findOverrideConfig(projectRoot); override != "" {
		ov := viper.New()
		ov.SetConfigFile(override)
		if err := ov.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(ov.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging override config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("SPRINTFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Project.Abbrev == "" {
		cfg.Project.Abbrev = DeriveAbbrev(cfg.Project.Name)
	}
	cfg.Project.Abbrev = strings.ToUpper(cfg.Project.Abbrev)

	return cfg, nil
}

// Save writes the configuration to the project state config file.
func Save(projectRoot string, cfg *Config) error {
	dir := filepath.Join(projectRoot, StateRoot)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, "config.yaml"))

	v.Set("project.name", cfg.Project.Name)
	v.Set("project.abbrev", cfg.Project.Abbrev)
	v.Set("scrum.velocity_target", cfg.Scrum.VelocityTarget)
	v.Set("scrum.default_sprint_duration_days", cfg.Scrum.DefaultSprintDurationDays)
	v.Set("scrum.strict_mode", cfg.Scrum.StrictMode)
	v.Set("scrum.test_coverage_required", cfg.Scrum.TestCoverageRequired)
	v.Set("agents.allow_dynamic_creation", cfg.Agents.AllowDynamicCreation)
	v.Set("worktrees.root", cfg.Worktrees.Root)
	v.Set("pr.tool", cfg.PR.Tool)
	v.Set("pr.base_branch", cfg.PR.BaseBranch)
	v.Set("timeouts.test", cfg.Timeouts.Test.String())
	v.Set("timeouts.coverage", cfg.Timeouts.Coverage.String())
	v.Set("timeouts.git", cfg.Timeouts.Git.String())
	v.Set("timeouts.pr", cfg.Timeouts.PR.String())

	return v.WriteConfig()
}

// Default returns a Config with built-in defaults for the given project name.
func Default(name string) *Config {
	return &Config{
		Project: ProjectConfig{
			Name:   name,
			Abbrev: DeriveAbbrev(name),
		},
		Scrum: ScrumConfig{
			VelocityTarget:            20,
			DefaultSprintDurationDays: 14,
			StrictMode:                true,
			TestCoverageRequired:      100,
		},
		Agents: AgentsConfig{
			AllowDynamicCreation: true,
		},
		Worktrees: WorktreesConfig{
			Root: "trees",
		},
		PR: PRConfig{
			Tool:       "gh",
			BaseBranch: "main",
		},
		Timeouts: TimeoutsConfig{
			Test:     10 * time.Minute,
			Coverage: 5 * time.Minute,
			Git:      2 * time.Minute,
			PR:       1 * time.Minute,
		},
	}
}

// DeriveAbbrev derives the 4-letter uppercase project abbreviation from a
// project name. Non-letter characters are dropped; short names are padded
// with 'X'.
func DeriveAbbrev(name string) string {
	var letters []rune
	for _, r := range name {
		if unicode.IsLetter(r) {
			letters = append(letters, unicode.ToUpper(r))
		}
	}
	if len(letters) == 0 {
		return "PROJ"
	}
	for len(letters) < 4 {
		letters = append(letters, 'X')
	}
	return string(letters[:4])
}

// findOverrideConfig searches for .sprintforge.yaml starting at dir and
// walking up to the filesystem root.
func findOverrideConfig(dir string) string {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		path := filepath.Join(dir, ".sprintforge.yaml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}
