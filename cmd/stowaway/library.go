package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vmunix/stowaway/internal/library"
)

var libraryCmd = &cobra.Command{
	Use:     "library",
	Aliases: []string{"ls"},
	Short:   "List downloaded assets grouped by title",
	Args:    cobra.NoArgs,
	RunE:    runLibraryCmd,
}

func init() {
	rootCmd.AddCommand(libraryCmd)
}

func runLibraryCmd(cmd *cobra.Command, _ []string) error {
	app, _, err := openApp(cmd, nil)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	groups := app.Library.Groups()
	if jsonOutput {
		printJSON(groups)
		return nil
	}

	if len(groups) == 0 {
		fmt.Println("Library is empty")
		return nil
	}

	var total int64
	for _, g := range groups {
		total += g.TotalSize
	}
	fmt.Printf("Library (%d titles, %s):\n\n", len(groups), formatSize(total))
	for _, g := range groups {
		printGroup(g)
	}
	return nil
}

func printGroup(g library.Group) {
	fmt.Printf("  %s  [%d, %s]\n", g.Title, len(g.Assets), formatSize(g.TotalSize))
	for _, a := range g.Assets {
		label := a.Name
		if a.Type == library.AssetEpisode {
			label = fmt.Sprintf("S%02dE%02d %s", a.Metadata.Season, a.Metadata.Episode, a.Name)
		}
		var flags []string
		if a.LocalSubtitlePath != "" {
			flags = append(flags, "sub")
		}
		suffix := ""
		if len(flags) > 0 {
			suffix = " (" + strings.Join(flags, ",") + ")"
		}
		fmt.Printf("    %-36s  %-40s%s\n", a.ID, truncate(label, 40), suffix)
	}
}
