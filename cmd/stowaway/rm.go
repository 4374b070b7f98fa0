package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm <asset-id>...",
	Short: "Delete assets and their files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRmCmd,
}

func init() {
	rootCmd.AddCommand(rmCmd)
}

func runRmCmd(cmd *cobra.Command, args []string) error {
	app, _, err := openApp(cmd, nil)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	var errs []error
	for _, id := range args {
		a, err := app.Library.Delete(cmd.Context(), id)
		if err != nil && a.ID == "" {
			errs = append(errs, err)
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("deleted %s but not persisted: %w", id, err))
		}
		if !jsonOutput {
			fmt.Printf("Deleted %s (%s)\n", a.Name, id)
		}
	}
	if jsonOutput {
		printJSON(map[string]any{"deleted": len(args) - len(errs)})
	}
	return errors.Join(errs...)
}
