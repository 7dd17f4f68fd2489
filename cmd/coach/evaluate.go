package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-coach/internal/behavior"
	"github.com/danielpatrickdp/adaptive-coach/internal/lifecycle"
	"github.com/danielpatrickdp/adaptive-coach/internal/plan"
	"github.com/danielpatrickdp/adaptive-coach/internal/rules"
)

var (
	evalUserID   string
	evalGoalID   string
	evalAutoPlan bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Classify a goal's task history into behavioral signals",
	Long: `Evaluate computes completion rate, consecutive failures and
inactivity for the goal, classifies them into signals, and prints the
adaptation intents the rules engine derives. With --suggest, the top
intent is refined and stored as a suggested adaptation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := context.Background()

		goal, err := a.store.GetGoal(ctx, evalUserID, evalGoalID)
		if err != nil {
			return err
		}
		tasks, err := a.store.ListTasks(ctx, evalGoalID)
		if err != nil {
			return err
		}

		eval := behavior.Evaluate(behavior.EvalInput{
			Tasks:        tasks,
			LastActivity: goal.LastActivityAt,
			EvalDate:     time.Now().UTC(),
			WindowDays:   a.cfg.WindowDays,
		})

		fmt.Printf("goal %s (%s, plan v%d)\n", goal.ID, goal.Difficulty, goal.PlanVersion)
		fmt.Printf("  completion rate: %d%%  consecutive failures: %d  inactive days: %d\n",
			eval.Metrics.CompletionRate, eval.Metrics.ConsecutiveFailures, eval.Metrics.InactiveDays)
		for _, sig := range eval.Signals {
			fmt.Printf("  signal: %-17s severity=%-8s %s\n", sig.Type, sig.Severity, sig.Message)
		}

		if !eval.ShouldAdapt && !evalAutoPlan {
			fmt.Println("  no adaptation warranted")
			return nil
		}

		result := rules.BuildIntents(eval.Signals, eval.Metrics, rules.Context{
			GoalID:            goal.ID,
			CurrentDifficulty: plan.PredominantDifficulty(tasks),
			OpenTaskIDs:       openTaskIDs(tasks),
			EvalDate:          time.Now().UTC(),
		})
		fmt.Printf("  rules: %s\n", result.Summary)

		if !evalAutoPlan || len(result.Intents) == 0 {
			return nil
		}

		top := result.Intents[0]
		ns, err := a.refiner.Refine(ctx, top)
		if err != nil {
			return fmt.Errorf("refine intent: %w", err)
		}
		created, err := a.manager.Suggest(ctx, lifecycle.SuggestRequest{
			UserID:    evalUserID,
			GoalID:    goal.ID,
			Type:      top.Type,
			Reason:    top.Reason,
			NewState:  ns,
			CreatedBy: top.CreatedBy,
		})
		if err != nil {
			return err
		}
		fmt.Printf("  suggested adaptation %s (%s)\n", created.ID, created.Type)
		return nil
	},
}

func openTaskIDs(tasks []plan.Task) []string {
	var ids []string
	for _, t := range tasks {
		if t.Status == plan.TaskPending || t.Status == plan.TaskOverdue {
			ids = append(ids, t.ID)
		}
	}
	return ids
}

func init() {
	evaluateCmd.Flags().StringVar(&evalUserID, "user", "", "Owning user id")
	evaluateCmd.Flags().StringVar(&evalGoalID, "goal", "", "Goal id")
	evaluateCmd.Flags().BoolVar(&evalAutoPlan, "suggest", false, "Store the top intent as a suggested adaptation")
	evaluateCmd.MarkFlagRequired("user")
	evaluateCmd.MarkFlagRequired("goal")
	rootCmd.AddCommand(evaluateCmd)
}
