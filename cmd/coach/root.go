package main

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "coach",
	Short: "Adaptive coaching core CLI",
	Long: `coach drives the adaptive coaching core: it evaluates task
histories into behavioral signals, turns signals into bounded adaptation
proposals, walks proposals through their accept/reject/rollback
lifecycle, and runs the harm-detection safety layer that can override
all of it.

Core commands:
  evaluate     Classify a goal's task history into behavioral signals
  suggest      Create an adaptation suggestion for a goal
  accept       Accept a suggested adaptation and apply its changes
  reject       Reject a suggested adaptation
  rollback     Revert an accepted adaptation within its window
  adaptations  List a goal's adaptations
  harm         Report, confirm, resolve or expire harm incidents
  audit        Inspect the append-only audit log
  seed         Create a demo goal with tasks`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (YAML, optional)")
}
