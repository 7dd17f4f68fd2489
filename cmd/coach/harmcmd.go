package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/adaptive-coach/internal/harm"
)

var (
	harmUserID   string
	harmGoalID   string
	harmMessage  string
	harmPrevRate float64
	harmCurRate  float64
)

var harmCmd = &cobra.Command{
	Use:   "harm",
	Short: "Run the harm-detection safety layer",
}

var harmReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Evaluate a harm report and record an incident if it fires",
	Long: `Report runs the three detectors: unrealistic-task flags (read
from the store), consistency drop (when --previous/--current are given)
and distress language in --message. A detection persists an incident,
disables automatic adaptation, and may force the plan down to easy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		rep := harm.Report{
			UserID:              harmUserID,
			GoalID:              harmGoalID,
			Message:             harmMessage,
			PreviousConsistency: harmPrevRate,
			CurrentConsistency:  harmCurRate,
			HasConsistency:      cmd.Flags().Changed("previous") && cmd.Flags().Changed("current"),
		}
		inc, err := a.monitor.ProcessHarm(context.Background(), rep)
		if err != nil {
			return err
		}
		if inc == nil {
			fmt.Println("no harm detected")
			return nil
		}
		fmt.Printf("incident %s: %s (%s)\n", inc.ID, inc.SignalType, inc.Severity)
		if inc.ForcedDifficulty {
			fmt.Printf("  difficulty forced to %s\n", inc.NewDifficulty)
		}
		fmt.Println("  automatic adaptation disabled, confirmation required")
		return nil
	},
}

var harmConfirmCmd = &cobra.Command{
	Use:   "confirm <incident-id>",
	Short: "Record the user's confirm-to-proceed on an incident",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.monitor.ConfirmIncident(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("incident %s confirmed\n", args[0])
		return nil
	},
}

var harmResolveCmd = &cobra.Command{
	Use:   "resolve <incident-id>",
	Short: "Close an incident without user confirmation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.monitor.ResolveIncident(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("incident %s resolved\n", args[0])
		return nil
	},
}

var harmExpireCmd = &cobra.Command{
	Use:   "expire",
	Short: "Expire lapsed warning incidents for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.monitor.ExpireIncidents(context.Background(), harmUserID)
		if err != nil {
			return err
		}
		fmt.Printf("%d incident(s) expired\n", n)
		return nil
	},
}

var harmStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the user's harm gate and active incidents",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := context.Background()

		disabled, err := a.monitor.AutoAdaptationDisabled(ctx, harmUserID)
		if err != nil {
			return err
		}
		pending, err := a.monitor.PendingConfirmation(ctx, harmUserID)
		if err != nil {
			return err
		}
		fmt.Printf("auto adaptation disabled: %v\npending confirmation: %v\n", disabled, pending)

		actives, err := a.store.ListActiveIncidents(ctx, harmUserID)
		if err != nil {
			return err
		}
		for _, inc := range actives {
			fmt.Printf("active %s  %-17s %-9s %s\n", inc.ID, inc.SignalType, inc.Severity, inc.Message)
		}
		return nil
	},
}

func init() {
	harmCmd.PersistentFlags().StringVar(&harmUserID, "user", "", "User id")
	harmCmd.MarkPersistentFlagRequired("user")

	harmReportCmd.Flags().StringVar(&harmGoalID, "goal", "", "Goal id, enables forced reduction")
	harmReportCmd.Flags().StringVar(&harmMessage, "message", "", "User message to scan for distress")
	harmReportCmd.Flags().Float64Var(&harmPrevRate, "previous", 0, "Consistency before the adaptation")
	harmReportCmd.Flags().Float64Var(&harmCurRate, "current", 0, "Consistency after the adaptation")

	harmCmd.AddCommand(harmReportCmd, harmConfirmCmd, harmResolveCmd, harmExpireCmd, harmStatusCmd)
	rootCmd.AddCommand(harmCmd)
}
