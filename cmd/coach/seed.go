package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-coach/internal/plan"
)

var (
	seedUserID string
	seedTitle  string
	seedTasks  int
	seedSkips  int
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create a demo goal with tasks",
	Long: `Seed creates a medium-difficulty goal with a task history for
trying the evaluate and harm commands. --skipped marks the most recent
tasks skipped so the behavioral engine has something to find.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := context.Background()

		now := time.Now().UTC()
		goal := plan.Goal{
			ID:             uuid.New().String(),
			UserID:         seedUserID,
			Title:          seedTitle,
			Difficulty:     plan.DifficultyMedium,
			PlanVersion:    1,
			Active:         true,
			LastActivityAt: &now,
			CreatedAt:      now,
		}
		if err := a.store.CreateGoal(ctx, goal); err != nil {
			return err
		}

		for i := 0; i < seedTasks; i++ {
			status := plan.TaskCompleted
			var completedAt *time.Time
			// Newest tasks first get the skips.
			if i < seedSkips {
				status = plan.TaskSkipped
			} else {
				done := now.Add(-time.Duration(i) * 24 * time.Hour)
				completedAt = &done
			}
			task := plan.Task{
				ID:               uuid.New().String(),
				GoalID:           goal.ID,
				Title:            fmt.Sprintf("session %d", seedTasks-i),
				Status:           status,
				Difficulty:       plan.DifficultyMedium,
				FrequencyPerWeek: 3,
				DurationMinutes:  30,
				SortOrder:        seedTasks - i,
				CreatedAt:        now.Add(-time.Duration(i) * 24 * time.Hour),
				CompletedAt:      completedAt,
			}
			if err := a.store.CreateTask(ctx, task); err != nil {
				return err
			}
		}

		fmt.Printf("seeded goal %s with %d task(s) for user %s\n", goal.ID, seedTasks, seedUserID)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedUserID, "user", "demo", "Owning user id")
	seedCmd.Flags().StringVar(&seedTitle, "title", "train for a half marathon", "Goal title")
	seedCmd.Flags().IntVar(&seedTasks, "tasks", 6, "Number of tasks to create")
	seedCmd.Flags().IntVar(&seedSkips, "skipped", 3, "Most recent tasks marked skipped")
	rootCmd.AddCommand(seedCmd)
}
