package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var watchedCmd = &cobra.Command{
	Use:   "watched <asset-id> <fraction>",
	Short: "Record how much of an asset has been watched",
	Args:  cobra.ExactArgs(2),
	RunE:  runWatchedCmd,
}

func init() {
	rootCmd.AddCommand(watchedCmd)
}

func runWatchedCmd(cmd *cobra.Command, args []string) error {
	fraction, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid fraction %q: %w", args[1], err)
	}

	app, _, err := openApp(cmd, nil)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	if _, err := app.Library.Get(args[0]); err != nil {
		return err
	}
	if err := app.Progress.Set(cmd.Context(), args[0], fraction); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]any{"asset_id": args[0], "progress": fraction})
		return nil
	}
	fmt.Printf("%s watched %s\n", args[0], formatPercent(fraction))
	return nil
}
