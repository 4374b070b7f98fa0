package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vmunix/stowaway/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file",
	Long: `Write a config file to --config or the default location.

Without flags the commented example is written. With --root or --limit
the example is resolved, adjusted, and written without comments.`,
	Args: cobra.NoArgs,
	RunE: runInitCmd,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("force", false, "Overwrite an existing config")
	initCmd.Flags().String("root", "", "Library directory")
	initCmd.Flags().String("limit", "", `Storage quota, e.g. "50 GB" ("off" disables it)`)
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")
	root, _ := cmd.Flags().GetString("root")
	limit, _ := cmd.Flags().GetString("limit")

	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}

	if err := writeConfig(path, root, limit); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

func writeConfig(path, root, limit string) error {
	if root == "" && limit == "" {
		if err := config.WriteDefault(path); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		return nil
	}

	cfg, err := config.Default()
	if err != nil {
		return err
	}
	if root != "" {
		cfg.Storage.Root = root
	}
	switch limit {
	case "":
	case "off":
		cfg.Quota.Limit = ""
	default:
		cfg.Quota.Limit = limit
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return &config.ConfigError{Path: path, Errors: errs}
	}
	if err := cfg.Write(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
