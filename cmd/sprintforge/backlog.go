package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sprintforge/sprintforge/internal/scrum"
	"github.com/sprintforge/sprintforge/pkg/models"
)

var (
	storyRole     string
	storyWant     string
	storyBenefit  string
	storyCriteria []string
	storyPriority string
	storyEpic     string
)

var storyCmd = &cobra.Command{
	Use:   "story <title>",
	Short: "Create a user story in the backlog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		s, err := e.Scrum().CreateStory(scrum.StoryFields{
			Title:              args[0],
			Role:               storyRole,
			Want:               storyWant,
			Benefit:            storyBenefit,
			AcceptanceCriteria: storyCriteria,
			Priority:           models.Priority(storyPriority),
			EpicID:             storyEpic,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created %s: %s\n", s.ID, s.Title)
		return nil
	},
}

var (
	taskStory    string
	taskBug      string
	taskDesc     string
	taskTech     string
	taskCriteria []string
	taskDeps     []string
	taskPriority string
)

var taskCmd = &cobra.Command{
	Use:   "task <title>",
	Short: "Create a task under a story or bug",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		t, err := e.Scrum().CreateTask(scrum.TaskFields{
			StoryID:          taskStory,
			BugID:            taskBug,
			Title:            args[0],
			Description:      taskDesc,
			TechnicalDetails: taskTech,
			TestCriteria:     taskCriteria,
			Dependencies:     taskDeps,
			Priority:         models.Priority(taskPriority),
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created %s: %s\n", t.ID, t.Title)
		return nil
	},
}

var (
	bugDesc     string
	bugSeverity string
	bugPriority string
	bugSteps    []string
	bugExpected string
	bugActual   string
)

var bugCmd = &cobra.Command{
	Use:   "bug <title>",
	Short: "Report a bug",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		b, err := e.Scrum().CreateBug(scrum.BugFields{
			Title:            args[0],
			Description:      bugDesc,
			StepsToReproduce: bugSteps,
			Expected:         bugExpected,
			Actual:           bugActual,
			Severity:         models.Severity(bugSeverity),
			Priority:         models.Priority(bugPriority),
		})
		if err != nil {
			return err
		}
		fmt.Printf("Created %s: %s (%d points)\n", b.ID, b.Title, b.StoryPoints)
		return nil
	},
}

var (
	epicTheme string
	epicValue string
)

var epicCmd = &cobra.Command{
	Use:   "epic <title>",
	Short: "Create an epic grouping related stories",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		ep, err := e.CreateEpic(args[0], epicTheme, epicValue)
		if err != nil {
			return err
		}
		fmt.Printf("Created %s: %s\n", ep.ID, ep.Title)
		return nil
	},
}

var (
	roadmapVision string
	roadmapSeed   bool
)

var roadmapCmd = &cobra.Command{
	Use:   "roadmap <name>",
	Short: "Create a product roadmap",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		r, err := e.CreateRoadmap(args[0], roadmapVision, roadmapSeed)
		if err != nil {
			return err
		}
		fmt.Printf("Created %s: %s (%d milestones)\n", r.ID, r.Name, len(r.Milestones))
		return nil
	},
}

var (
	milestoneDate    string
	milestoneStories []string
)

var milestoneCmd = &cobra.Command{
	Use:   "milestone <roadmap-id> <name>",
	Short: "Add a milestone to a roadmap",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		target, err := time.Parse("2006-01-02", milestoneDate)
		if err != nil {
			return fmt.Errorf("parse --date: %w", err)
		}
		r, err := e.AddMilestone(args[0], args[1], target, milestoneStories)
		if err != nil {
			return err
		}
		fmt.Printf("%s now has %d milestones\n", r.ID, len(r.Milestones))
		return nil
	},
}

var estimatePoints int

var estimateCmd = &cobra.Command{
	Use:   "estimate [story-id]",
	Short: "Estimate a story, or every unestimated story",
	Long: `With a story ID and --points, assign that estimate. With a story
ID alone, auto-estimate from the story's text. With no arguments,
auto-estimate every unestimated backlog story.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		defer e.Close()

		if len(args) == 0 {
			stories, err := e.EstimateAll()
			if err != nil {
				return err
			}
			for _, s := range stories {
				fmt.Printf("%s: %d points\n", s.ID, s.StoryPoints)
			}
			fmt.Printf("Estimated %d stories\n", len(stories))
			return nil
		}

		s, err := e.Estimate(args[0], estimatePoints)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d points\n", s.ID, s.StoryPoints)
		return nil
	},
}

func init() {
	storyCmd.Flags().StringVar(&storyRole, "as", "", "Role in \"as a <role>\"")
	storyCmd.Flags().StringVar(&storyWant, "want", "", "What the role wants")
	storyCmd.Flags().StringVar(&storyBenefit, "so-that", "", "The benefit")
	storyCmd.Flags().StringSliceVar(&storyCriteria, "criteria", nil, "Acceptance criteria (repeatable)")
	storyCmd.Flags().StringVar(&storyPriority, "priority", string(models.PriorityMedium), "critical|high|medium|low")
	storyCmd.Flags().StringVar(&storyEpic, "epic", "", "Owning epic ID")

	taskCmd.Flags().StringVar(&taskStory, "story", "", "Owning story ID")
	taskCmd.Flags().StringVar(&taskBug, "bug", "", "Owning bug ID")
	taskCmd.Flags().StringVar(&taskDesc, "description", "", "Task description")
	taskCmd.Flags().StringVar(&taskTech, "tech", "", "Technical details for agent matching")
	taskCmd.Flags().StringSliceVar(&taskCriteria, "criteria", nil, "Test criteria (repeatable)")
	taskCmd.Flags().StringSliceVar(&taskDeps, "depends-on", nil, "Task IDs this task waits for")
	taskCmd.Flags().StringVar(&taskPriority, "priority", string(models.PriorityMedium), "critical|high|medium|low")

	bugCmd.Flags().StringVar(&bugDesc, "description", "", "Bug description")
	bugCmd.Flags().StringSliceVar(&bugSteps, "step", nil, "Reproduction step (repeatable)")
	bugCmd.Flags().StringVar(&bugExpected, "expected", "", "Expected behavior")
	bugCmd.Flags().StringVar(&bugActual, "actual", "", "Actual behavior")
	bugCmd.Flags().StringVar(&bugSeverity, "severity", string(models.SeverityMedium), "critical|high|medium|low")
	bugCmd.Flags().StringVar(&bugPriority, "priority", string(models.PriorityHigh), "critical|high|medium|low")

	epicCmd.Flags().StringVar(&epicTheme, "theme", "", "Theme the epic belongs to")
	epicCmd.Flags().StringVar(&epicValue, "value", "", "Business value statement")

	roadmapCmd.Flags().StringVar(&roadmapVision, "vision", "", "Product vision statement")
	roadmapCmd.Flags().BoolVar(&roadmapSeed, "seed", false, "Seed the standard quarterly milestones")

	milestoneCmd.Flags().StringVar(&milestoneDate, "date", "", "Target date (YYYY-MM-DD)")
	milestoneCmd.Flags().StringSliceVar(&milestoneStories, "story", nil, "Story ID to attach (repeatable)")

	estimateCmd.Flags().IntVar(&estimatePoints, "points", 0, "Explicit Fibonacci estimate (0 = auto)")
}
