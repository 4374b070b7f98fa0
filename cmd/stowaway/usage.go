package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show storage usage against the quota",
	Args:  cobra.NoArgs,
	RunE:  runUsageCmd,
}

func init() {
	rootCmd.AddCommand(usageCmd)
	usageCmd.Flags().Bool("evict", false, "Evict assets now, regardless of thresholds")
}

func runUsageCmd(cmd *cobra.Command, _ []string) error {
	evict, _ := cmd.Flags().GetBool("evict")

	app, _, err := openApp(cmd, nil)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	usage, err := app.Quota.Recompute(cmd.Context())
	if err != nil {
		return fmt.Errorf("recompute: %w", err)
	}

	out := map[string]any{"usage": usage}
	if evict {
		cleanup, err := app.Quota.Evict(cmd.Context())
		if err != nil {
			return fmt.Errorf("evict: %w", err)
		}
		out["cleanup"] = cleanup
		if !jsonOutput {
			fmt.Printf("Evicted %d assets, freed %s\n", len(cleanup.Deleted), formatSize(cleanup.BytesFreed))
		}
		if usage, err = app.Quota.Recompute(cmd.Context()); err != nil {
			return fmt.Errorf("recompute: %w", err)
		}
		out["usage"] = usage
	}

	if jsonOutput {
		printJSON(out)
		return nil
	}

	if usage.Limit <= 0 {
		fmt.Printf("Used: %s in %d assets (no limit)\n", formatSize(usage.Used), usage.Assets)
		return nil
	}
	fmt.Printf("Used: %s of %s (%s) in %d assets\n",
		formatSize(usage.Used), formatSize(usage.Limit), formatPercent(usage.Ratio), usage.Assets)
	return nil
}
