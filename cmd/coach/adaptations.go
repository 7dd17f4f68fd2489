package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-coach/internal/lifecycle"
	"github.com/danielpatrickdp/adaptive-coach/internal/plan"
	"github.com/danielpatrickdp/adaptive-coach/internal/rules"
	"github.com/danielpatrickdp/adaptive-coach/internal/store"
)

var (
	adUserID     string
	adGoalID     string
	adType       string
	adReason     string
	adDifficulty string
	adBufferDays int
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Create a user-originated adaptation suggestion",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ns := plan.NewState{
			Description:      adReason,
			TargetDifficulty: plan.Difficulty(adDifficulty),
			BufferDays:       adBufferDays,
		}
		created, err := a.manager.Suggest(context.Background(), lifecycle.SuggestRequest{
			UserID:    adUserID,
			GoalID:    adGoalID,
			Type:      rules.IntentType(adType),
			Reason:    adReason,
			NewState:  ns,
			CreatedBy: adUserID,
		})
		if err != nil {
			return err
		}
		fmt.Printf("suggested %s (%s) for goal %s\n", created.ID, created.Type, created.GoalID)
		return nil
	},
}

var acceptCmd = &cobra.Command{
	Use:   "accept <adaptation-id>",
	Short: "Accept a suggested adaptation and apply its changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.manager.Accept(context.Background(), adUserID, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("accepted %s: %d task(s) modified, plan now v%d\n",
			res.Adaptation.ID, res.TasksModified, res.PlanVersion)
		return nil
	},
}

var rejectCmd = &cobra.Command{
	Use:   "reject <adaptation-id>",
	Short: "Reject a suggested adaptation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		rejected, err := a.manager.Reject(context.Background(), adUserID, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("rejected %s, %s blocked until %s\n",
			rejected.ID, rejected.Type, rejected.BlockedUntil.Format("2006-01-02 15:04"))
		return nil
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback <adaptation-id>",
	Short: "Revert an accepted adaptation within its window",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		rolled, err := a.manager.Rollback(context.Background(), adUserID, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("rolled back %s: %d task(s) restored\n",
			rolled.ID, len(rolled.PreviousState.Tasks))
		return nil
	},
}

var listAdaptationsCmd = &cobra.Command{
	Use:   "adaptations",
	Short: "List a goal's adaptations, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		list, err := a.manager.ListByGoal(context.Background(), adUserID, adGoalID)
		if err != nil {
			return err
		}
		for _, ad := range list {
			fmt.Printf("%s  %-17s %-11s by=%-8s %s\n",
				ad.ID, ad.Type, ad.Status, ad.CreatedBy, ad.CreatedAt.Format("2006-01-02"))
			if ad.Status == store.StatusRejected || ad.Status == store.StatusRolledBack {
				if ad.BlockedUntil != nil {
					fmt.Printf("    blocked until %s\n", ad.BlockedUntil.Format("2006-01-02 15:04"))
				}
			}
		}
		if len(list) == 0 {
			fmt.Println("no adaptations")
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{suggestCmd, acceptCmd, rejectCmd, rollbackCmd, listAdaptationsCmd} {
		c.Flags().StringVar(&adUserID, "user", "", "Owning user id")
		c.MarkFlagRequired("user")
		rootCmd.AddCommand(c)
	}
	suggestCmd.Flags().StringVar(&adGoalID, "goal", "", "Goal id")
	suggestCmd.Flags().StringVar(&adType, "type", string(rules.IntentDifficultyChange), "Adaptation type")
	suggestCmd.Flags().StringVar(&adReason, "reason", "user request", "Reason shown in the proposal")
	suggestCmd.Flags().StringVar(&adDifficulty, "difficulty", "", "Target difficulty (difficulty_change)")
	suggestCmd.Flags().IntVar(&adBufferDays, "buffer-days", 0, "Buffer days (buffer_add)")
	suggestCmd.MarkFlagRequired("goal")

	listAdaptationsCmd.Flags().StringVar(&adGoalID, "goal", "", "Goal id")
	listAdaptationsCmd.MarkFlagRequired("goal")
}
