package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"gopkg.in/yaml.v3"

	"github.com/sprintforge/sprintforge/pkg/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backlog and sprint status",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		st := e.Status()
		fmt.Printf("Run state: %s\n", st.RunState)
		fmt.Printf("Backlog: %d stories (%d estimated, %d points), %d open bugs (%d critical)\n",
			st.Backlog.TotalStories, st.Backlog.EstimatedStories, st.Backlog.TotalPoints,
			st.Backlog.OpenBugs, st.Backlog.CriticalBugs)

		if st.ActiveSprint == nil {
			fmt.Println("No active sprint.")
			return nil
		}
		sp := st.ActiveSprint
		color.New(color.Bold).Printf("\nSprint %s (%s)\n", sp.Name, sp.ID)
		if rep := st.Sprint; rep != nil {
			fmt.Printf("  %d/%d points, %d/%d tasks done, %d blocked (%.0f%%)\n",
				rep.CompletedPoints, rep.CommittedPoints,
				rep.TasksDone, rep.TasksTotal, rep.TasksBlocked, rep.Progress*100)
		}
		if len(sp.Burndown) > 0 {
			last := sp.Burndown[len(sp.Burndown)-1]
			fmt.Printf("  Remaining: %d points as of %s\n", last.Remaining, last.At.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var listStatus string

var listCmd = &cobra.Command{
	Use:   "list <stories|tasks|bugs|sprints|epics|roadmaps|agents>",
	Short: "List entities of one kind",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		items, err := e.List(args[0], listStatus)
		if err != nil {
			return err
		}
		for _, item := range items {
			switch v := item.(type) {
			case *models.Story:
				fmt.Printf("%s  [%s]  %dpt  %s\n", v.ID, v.Status, v.StoryPoints, v.Title)
			case *models.Task:
				fmt.Printf("%s  [%s]  %s  %s\n", v.ID, v.Status, v.AssignedAgent, v.Title)
			case *models.Bug:
				fmt.Printf("%s  [%s]  %s  %s\n", v.ID, v.Status, v.Severity, v.Title)
			case *models.Sprint:
				fmt.Printf("%s  [%s]  %d/%d pts  %s\n", v.ID, v.Status, v.CompletedPoints, v.CommittedPoints, v.Name)
			case *models.Epic:
				fmt.Printf("%s  %d/%d pts  %s\n", v.ID, v.CompletedPoints, v.TotalPoints, v.Title)
			case *models.Roadmap:
				fmt.Printf("%s  %d milestones  %s\n", v.ID, len(v.Milestones), v.Name)
			case *models.AgentDescriptor:
				fmt.Printf("%s  %s\n", v.Name, v.DisplayName)
			default:
				fmt.Printf("%+v\n", v)
			}
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show any entity by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		item, err := e.Show(args[0])
		if err != nil {
			return err
		}
		out, err := yaml.Marshal(item)
		if err != nil {
			return fmt.Errorf("render %s: %w", args[0], err)
		}
		fmt.Print(string(out))
		return nil
	},
}

var delegateCmd = &cobra.Command{
	Use:   "delegate <task-id>",
	Short: "Run a single task outside a sprint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		res, err := e.Delegate(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", res.Status, res.Summary)
		if res.PRURL != "" {
			fmt.Printf("PR: %s\n", res.PRURL)
		}
		return nil
	},
}

var assignCmd = &cobra.Command{
	Use:   "assign <task-id> <agent-name>",
	Short: "Manually assign an agent to a task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		t, err := e.AssignAgent(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("%s assigned to %s\n", t.ID, t.AssignedAgent)
		return nil
	},
}

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List registered agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		for _, a := range e.Agents().List() {
			fmt.Printf("%-22s %s\n", a.Name, a.DisplayName)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status")
}
