package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmunix/stowaway/internal/events"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent events",
	Args:  cobra.NoArgs,
	RunE:  runEventsCmd,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().IntP("limit", "n", 20, "Number of events to show")
	eventsCmd.Flags().String("entity", "", "Only events for this download or asset id")
	eventsCmd.Flags().Duration("since", 0, "Only events newer than this")
	eventsCmd.Flags().Duration("prune", 0, "Delete events older than this before listing")
}

func runEventsCmd(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	entity, _ := cmd.Flags().GetString("entity")
	since, _ := cmd.Flags().GetDuration("since")
	prune, _ := cmd.Flags().GetDuration("prune")

	app, _, err := openApp(cmd, nil)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	ctx := cmd.Context()
	if prune > 0 {
		n, err := app.Events.Prune(ctx, prune)
		if err != nil {
			return err
		}
		if !jsonOutput {
			fmt.Printf("Pruned %d events\n", n)
		}
	}

	filter := events.Filter{EntityID: entity, Limit: limit}
	if since > 0 {
		filter.Since = time.Now().Add(-since)
	}
	evts, err := app.Events.Find(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to fetch events: %w", err)
	}

	if jsonOutput {
		printJSON(evts)
		return nil
	}

	if len(evts) == 0 {
		fmt.Println("No events")
		return nil
	}

	fmt.Printf("Events (%d):\n\n", len(evts))
	fmt.Printf("  %-12s %-24s %-14s %s\n", "TIME", "TYPE", "ENTITY", "DETAIL")
	fmt.Println("  " + strings.Repeat("-", 78))

	for _, raw := range evts {
		detail := ""
		if e, err := raw.Decode(); err == nil {
			detail = eventDetail(e)
		}
		fmt.Printf("  %-12s %-24s %-14s %s\n",
			formatTimeAgo(raw.OccurredAt), raw.EventType, truncate(raw.EntityID, 14), truncate(detail, 40))
	}
	return nil
}

// eventDetail is a one-line summary of the fields that matter for e.
func eventDetail(e events.Event) string {
	switch ev := e.(type) {
	case *events.DownloadQueued:
		return fmt.Sprintf("%s (#%d)", ev.Title, ev.Position)
	case *events.DownloadStatusChanged:
		s := ev.From + " -> " + ev.To
		if ev.Reason != "" {
			s += " (" + ev.Reason + ")"
		}
		return s
	case *events.DownloadCompleted:
		return ev.Title
	case *events.DownloadFailed:
		return fmt.Sprintf("%s: %s", ev.Kind, ev.Reason)
	case *events.LibraryChanged:
		return fmt.Sprintf("%s, %d assets", ev.Cause, ev.Assets)
	case *events.AssetDeleted:
		s := fmt.Sprintf("%s, %s", ev.Title, formatSize(ev.Size))
		if ev.Evicted {
			s += ", evicted"
		}
		return s
	case *events.SubtitleAttached:
		return ev.SubtitlePath
	case *events.StorageWarning:
		return fmt.Sprintf("%s of %s", formatPercent(ev.Ratio), formatSize(ev.LimitBytes))
	case *events.StorageCleanup:
		return fmt.Sprintf("freed %s, %d assets", formatSize(ev.BytesFreed), len(ev.Deleted))
	}
	return ""
}
