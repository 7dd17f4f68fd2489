package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var auditLimit int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the append-only audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		recs, err := a.sink.List(context.Background(), auditLimit)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			fmt.Printf("%s  %-9s %-24s actor=%-8s %s/%s\n",
				rec.CreatedAt.Format("2006-01-02 15:04:05"),
				rec.Category, rec.EventType, rec.Actor, rec.EntityKind, rec.EntityID)
			if rec.PayloadJSON != "" {
				fmt.Printf("    %s\n", rec.PayloadJSON)
			}
		}
		if len(recs) == 0 {
			fmt.Println("audit log is empty")
		}
		return nil
	},
}

func init() {
	auditCmd.Flags().IntVar(&auditLimit, "limit", 50, "Maximum records to show")
	rootCmd.AddCommand(auditCmd)
}
