package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Check the library against the files on disk",
	Args:  cobra.NoArgs,
	RunE:  runReconcileCmd,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcileCmd(cmd *cobra.Command, _ []string) error {
	app, _, err := openApp(cmd, nil)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	report, err := app.Library.Reconcile(cmd.Context())
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}

	if jsonOutput {
		printJSON(report)
		return nil
	}

	fmt.Printf("Kept:      %d\n", report.Kept)
	fmt.Printf("Relinked:  %d\n", report.Relinked)
	fmt.Printf("Migrated:  %d\n", report.Migrated)
	fmt.Printf("Dropped:   %d\n", len(report.Dropped))
	for _, id := range report.Dropped {
		fmt.Printf("  %s\n", id)
	}
	if report.SubtitlesCleared > 0 {
		fmt.Printf("Subtitles cleared: %d\n", report.SubtitlesCleared)
	}
	return nil
}
