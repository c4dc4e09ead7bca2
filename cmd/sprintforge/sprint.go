package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sprintforge/sprintforge/internal/orchestrator"
	"github.com/sprintforge/sprintforge/internal/scrum"
)

var sprintCmd = &cobra.Command{
	Use:   "sprint",
	Short: "Plan and run sprints",
}

var (
	sprintGoal     string
	sprintDuration int
	sprintVelocity int
)

var sprintPlanCmd = &cobra.Command{
	Use:   "plan <name>",
	Short: "Plan a sprint from the backlog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		f := scrum.SprintFields{
			Name:         args[0],
			Goal:         sprintGoal,
			DurationDays: sprintDuration,
		}
		if cmd.Flags().Changed("velocity") {
			f.VelocityTarget = &sprintVelocity
		}
		sp, err := e.PlanSprint(f)
		if err != nil {
			return err
		}
		fmt.Printf("Planned %s: %d items, %d points\n", sp.ID, len(sp.CommittedItems), sp.CommittedPoints)
		for _, item := range sp.CommittedItems {
			fmt.Printf("  %s %s\n", item.Kind, item.ID)
		}
		return nil
	},
}

var sprintStartCmd = &cobra.Command{
	Use:   "start <sprint-id>",
	Short: "Run a planned sprint to completion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		e.Subscribe(renderEvent)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Descriptor edits take effect mid-sprint.
		go e.WatchAgents(ctx)

		return e.Start(ctx, args[0])
	},
}

var sprintRetro string

var sprintCompleteCmd = &cobra.Command{
	Use:   "complete <sprint-id>",
	Short: "Close an active sprint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		sp, err := e.CompleteSprint(args[0], sprintRetro)
		if err != nil {
			return err
		}
		fmt.Printf("Completed %s: %d/%d points\n", sp.ID, sp.CompletedPoints, sp.CommittedPoints)
		return nil
	},
}

var sprintCancelReason string

var sprintCancelCmd = &cobra.Command{
	Use:   "cancel <sprint-id>",
	Short: "Abort an active sprint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		sp, err := e.CancelSprint(args[0], sprintCancelReason)
		if err != nil {
			return err
		}
		fmt.Printf("Cancelled %s\n", sp.ID)
		return nil
	},
}

var velocityWindow int

var sprintVelocityCmd = &cobra.Command{
	Use:   "velocity",
	Short: "Show the rolling velocity",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		fmt.Printf("Velocity (last %d sprints): %.1f points\n", velocityWindow, e.Scrum().Velocity(velocityWindow))
		return nil
	},
}

var logTask string

var sprintLogCmd = &cobra.Command{
	Use:   "log <sprint-id>",
	Short: "Show the journaled events and handoffs of a sprint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		if logTask != "" {
			invs, err := e.Journal().Invocations(logTask)
			if err != nil {
				return err
			}
			for _, inv := range invs {
				fmt.Printf("%s  exit %d  %s  %s\n",
					inv.OccurredAt.Format("2006-01-02 15:04:05"), inv.ExitCode, inv.Duration, inv.Command)
			}
			return nil
		}

		events, err := e.Journal().Events(args[0])
		if err != nil {
			return err
		}
		for _, ev := range events {
			fmt.Printf("%s  %-16s %s\n", ev.OccurredAt.Format("2006-01-02 15:04:05"), ev.Type, ev.Message)
		}

		handoffs, err := e.Journal().Handoffs(args[0])
		if err != nil {
			return err
		}
		if len(handoffs) > 0 {
			color.New(color.Bold).Println("\nHandoffs")
			for _, h := range handoffs {
				fmt.Printf("%s  %s -> %s: %s\n",
					h.OccurredAt.Format("2006-01-02 15:04:05"), h.FromAgent, h.ToAgent, h.Reason)
			}
		}
		return nil
	},
}

// renderEvent prints one sprint-run event with per-type coloring.
func renderEvent(ev orchestrator.Event) {
	switch ev.Type {
	case orchestrator.EventTaskCompleted, orchestrator.EventSprintCompleted:
		color.Green("%s %s", ev.Type, ev.Message)
	case orchestrator.EventTaskFailed, orchestrator.EventHalted, orchestrator.EventError:
		color.Red("%s %s", ev.Type, ev.Message)
	case orchestrator.EventTaskBlocked:
		color.Yellow("%s %s", ev.Type, ev.Message)
	case orchestrator.EventHandoff:
		color.Cyan("%s %s", ev.Type, ev.Message)
	default:
		fmt.Printf("%s %s\n", ev.Type, ev.Message)
	}
}

func init() {
	sprintPlanCmd.Flags().StringVar(&sprintGoal, "goal", "", "Sprint goal")
	sprintPlanCmd.Flags().IntVar(&sprintDuration, "days", 0, "Sprint length in days (default from config)")
	sprintPlanCmd.Flags().IntVar(&sprintVelocity, "velocity", 0, "Point budget (default from config)")
	sprintCompleteCmd.Flags().StringVar(&sprintRetro, "retro", "", "Retrospective notes")
	sprintCancelCmd.Flags().StringVar(&sprintCancelReason, "reason", "", "Cancellation reason")
	sprintVelocityCmd.Flags().IntVar(&velocityWindow, "window", 3, "Completed sprints to average")
	sprintLogCmd.Flags().StringVar(&logTask, "task", "", "Show subprocess invocations for one task instead")

	sprintCmd.AddCommand(sprintPlanCmd)
	sprintCmd.AddCommand(sprintStartCmd)
	sprintCmd.AddCommand(sprintCompleteCmd)
	sprintCmd.AddCommand(sprintCancelCmd)
	sprintCmd.AddCommand(sprintVelocityCmd)
	sprintCmd.AddCommand(sprintLogCmd)
}
