package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sprintforge/sprintforge/internal/engine"
	"github.com/sprintforge/sprintforge/internal/version"
)

var projectDir string

var rootCmd = &cobra.Command{
	Use:   "sprintforge",
	Short: "Agent-driven SCRUM execution framework",
	Long: `Sprintforge manages a product backlog and runs sprints with
specialized agents.

Stories, bugs and tasks live in a project-local store. Sprints commit a
frozen scope, and the sprint runner works through the tasks one at a
time: each task gets a matched agent, an isolated git worktree, a
test-first execution pass, and a pull request on success.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openEngine builds the façade for the configured project directory.
func openEngine() (*engine.Engine, error) {
	dir := projectDir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		dir = cwd
	}
	return engineAt(dir)
}

func engineAt(dir string) (*engine.Engine, error) {
	return engine.Open(dir, engine.Options{CleanupWorktrees: true})
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sprintforge version %s\n", version.Get())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project", "C", "", "project directory (default: current directory)")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(storyCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(bugCmd)
	rootCmd.AddCommand(epicCmd)
	rootCmd.AddCommand(roadmapCmd)
	rootCmd.AddCommand(milestoneCmd)
	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(sprintCmd)
	rootCmd.AddCommand(delegateCmd)
	rootCmd.AddCommand(assignCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(versionCmd)
}
