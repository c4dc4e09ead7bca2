package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sprintforge/sprintforge/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a sprintforge project",
	Long: `Create the project state directory, default configuration, and
worktree layout. Run inside an existing git repository.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Reinitialize an existing project")
}

func printStatus(symbol, message string, attr color.Attribute) {
	color.New(attr).Printf("%s %s\n", symbol, message)
}

func runInit(cmd *cobra.Command, args []string) error {
	target := "."
	if len(args) == 1 {
		target = args[0]
	}
	absPath, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("resolve project path: %w", err)
	}

	stateRoot := filepath.Join(absPath, config.StateRoot)
	if _, err := os.Stat(stateRoot); err == nil && !initForce {
		fmt.Println("Project already initialized. Use --force to reinitialize.")
		return nil
	}

	if _, err := os.Stat(filepath.Join(absPath, ".git")); err != nil {
		printStatus("✗", "Not a git repository", color.FgRed)
		return fmt.Errorf("%s is not a git repository", absPath)
	}
	printStatus("✓", "Git repository found", color.FgGreen)

	for _, dir := range []string{stateRoot, filepath.Join(stateRoot, "agents"), filepath.Join(stateRoot, "logs")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	printStatus("✓", "Created "+config.StateRoot+" directory structure", color.FgGreen)

	cfg := config.Default(filepath.Base(absPath))
	if err := config.Save(absPath, cfg); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	printStatus("✓", "Wrote default configuration", color.FgGreen)

	e, err := engineAt(absPath)
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.Worktrees().EnsureTreesRoot(); err != nil {
		return fmt.Errorf("prepare worktree root: %w", err)
	}
	printStatus("✓", "Prepared worktree root and .gitignore", color.FgGreen)

	if len(e.Scrum().Roadmaps()) == 0 {
		if _, err := e.CreateRoadmap(cfg.Project.Name, "", true); err != nil {
			return fmt.Errorf("seed roadmap: %w", err)
		}
		printStatus("✓", "Seeded roadmap with standard milestones", color.FgGreen)
	}

	fmt.Printf("\nInitialized sprintforge in %s\n", absPath)
	return nil
}
