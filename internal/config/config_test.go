package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Scrum.VelocityTarget != 20 {
		t.Errorf("VelocityTarget = %d, want 20", cfg.Scrum.VelocityTarget)
	}
	if cfg.Scrum.DefaultSprintDurationDays != 14 {
		t.Errorf("DefaultSprintDurationDays = %d, want 14", cfg.Scrum.DefaultSprintDurationDays)
	}
	if !cfg.Scrum.StrictMode {
		t.Error("StrictMode should default to true")
	}
	if cfg.Scrum.TestCoverageRequired != 100 {
		t.Errorf("TestCoverageRequired = %d, want 100", cfg.Scrum.TestCoverageRequired)
	}
	if !cfg.Agents.AllowDynamicCreation {
		t.Error("AllowDynamicCreation should default to true")
	}
	if cfg.Worktrees.Root != "trees" {
		t.Errorf("Worktrees.Root = %q, want trees", cfg.Worktrees.Root)
	}
	if cfg.PR.Tool != "gh" {
		t.Errorf("PR.Tool = %q, want gh", cfg.PR.Tool)
	}
	if cfg.PR.BaseBranch != "main" {
		t.Errorf("PR.BaseBranch = %q, want main", cfg.PR.BaseBranch)
	}
	if cfg.Timeouts.Test != 10*time.Minute {
		t.Errorf("Timeouts.Test = %v, want 10m", cfg.Timeouts.Test)
	}
	if cfg.Timeouts.Git != 2*time.Minute {
		t.Errorf("Timeouts.Git = %v, want 2m", cfg.Timeouts.Git)
	}
}

func TestLoad_ProjectStateConfig(t *testing.T) {
	dir := t.TempDir()
	stateDir := filepath.Join(dir, StateRoot)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		t.Fatal(err)
	}

	content := []byte(`
project:
  name: Payment Service
scrum:
  velocity_target: 35
  strict_mode: false
`)
	if err := os.WriteFile(filepath.Join(stateDir, "config.yaml"), content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Project.Name != "Payment Service" {
		t.Errorf("Project.Name = %q", cfg.Project.Name)
	}
	if cfg.Scrum.VelocityTarget != 35 {
		t.Errorf("VelocityTarget = %d, want 35", cfg.Scrum.VelocityTarget)
	}
	if cfg.Scrum.StrictMode {
		t.Error("StrictMode should be overridden to false")
	}
	// Untouched keys keep defaults.
	if cfg.Scrum.TestCoverageRequired != 100 {
		t.Errorf("TestCoverageRequired = %d, want 100", cfg.Scrum.TestCoverageRequired)
	}
}

func TestLoad_DerivesAbbrev(t *testing.T) {
	dir := t.TempDir()
	stateDir := filepath.Join(dir, StateRoot)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(stateDir, "config.yaml"),
		[]byte("project:\n  name: checkout\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Project.Abbrev != "CHEC" {
		t.Errorf("Abbrev = %q, want CHEC", cfg.Project.Abbrev)
	}
}

func TestDeriveAbbrev(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Payment Service", "PAYM"},
		{"go", "GOXX"},
		{"x", "XXXX"},
		{"", "PROJ"},
		{"123 45", "PROJ"},
		{"my-app", "MYAP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveAbbrev(tt.name); got != tt.want {
				t.Errorf("DeriveAbbrev(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := Default("Checkout Flow")
	cfg.Scrum.VelocityTarget = 13
	cfg.Scrum.TestCoverageRequired = 80

	if err := Save(dir, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if loaded.Project.Name != "Checkout Flow" {
		t.Errorf("Project.Name = %q", loaded.Project.Name)
	}
	if loaded.Project.Abbrev != "CHEC" {
		t.Errorf("Abbrev = %q, want CHEC", loaded.Project.Abbrev)
	}
	if loaded.Scrum.VelocityTarget != 13 {
		t.Errorf("VelocityTarget = %d, want 13", loaded.Scrum.VelocityTarget)
	}
	if loaded.Scrum.TestCoverageRequired != 80 {
		t.Errorf("TestCoverageRequired = %d, want 80", loaded.Scrum.TestCoverageRequired)
	}
}
