package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmunix/stowaway/internal/config"
	"github.com/vmunix/stowaway/internal/download"
	"github.com/vmunix/stowaway/internal/events"
	"github.com/vmunix/stowaway/internal/server"
)

var getCmd = &cobra.Command{
	Use:   "get <url>...",
	Short: "Download episode pages or stream URLs into the library",
	Long: `Enqueue one or more URLs and run the downloader until the queue is idle.

With --show, each URL is an episode and episode numbers count up from
--episode.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGetCmd,
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().String("module", "", "Source module id")
	getCmd.Flags().String("title", "", "Title (default: the URL)")
	getCmd.Flags().String("show", "", "Show title; marks the downloads as episodes")
	getCmd.Flags().Int("season", 1, "Season number")
	getCmd.Flags().Int("episode", 1, "First episode number")
	getCmd.Flags().String("subtitle", "", "Subtitle URL")
	getCmd.Flags().String("quality", "", "Quality preference (best|high|medium|low)")
	getCmd.Flags().StringToString("header", nil, "Extra request header (key=value)")
	getCmd.Flags().Duration("subtitle-wait", 30*time.Second, "How long to wait for subtitles after the queue drains")
}

type getOptions struct {
	module   string
	title    string
	show     string
	season   int
	episode  int
	subtitle string
	headers  map[string]string
}

// buildRequests turns command-line URLs into download requests. IDs derive
// from the module and URL, so fetching the same URL again is a duplicate.
func buildRequests(urls []string, o getOptions) []download.Request {
	reqs := make([]download.Request, 0, len(urls))
	for i, u := range urls {
		req := download.Request{
			ID:          download.RequestID(o.module, u),
			SourceURL:   u,
			Title:       o.title,
			Headers:     o.headers,
			SubtitleURL: o.subtitle,
			ModuleID:    o.module,
		}
		if len(urls) > 1 && o.title != "" && o.show == "" {
			req.Title = fmt.Sprintf("%s %d", o.title, i+1)
		}
		if o.show != "" {
			req.IsEpisode = true
			req.ShowTitle = o.show
			req.Season = o.season
			req.Episode = o.episode + i
		}
		reqs = append(reqs, req)
	}
	return reqs
}

func runGetCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	var o getOptions
	o.module, _ = flags.GetString("module")
	o.title, _ = flags.GetString("title")
	o.show, _ = flags.GetString("show")
	o.season, _ = flags.GetInt("season")
	o.episode, _ = flags.GetInt("episode")
	o.subtitle, _ = flags.GetString("subtitle")
	o.headers, _ = flags.GetStringToString("header")
	quality, _ := flags.GetString("quality")
	subtitleWait, _ := flags.GetDuration("subtitle-wait")

	app, logger, err := openApp(cmd, func(cfg *config.Config) {
		if quality != "" {
			cfg.Downloads.Quality = quality
		}
	})
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	w := newGetWatcher(jsonOutput)
	feed := app.Bus.SubscribeAll(256)
	go w.consume(feed)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	runErr := make(chan error, 1)
	go func() {
		runErr <- server.NewRunner(app, logger).Run(ctx)
		cancel()
	}()

	var ids []string
	for _, req := range buildRequests(args, o) {
		entry, err := app.Manager.Enqueue(ctx, req)
		switch {
		case errors.Is(err, download.ErrDuplicate):
			fmt.Fprintf(os.Stderr, "skipped: %v\n", err)
			continue
		case err != nil:
			cancel()
			return errors.Join(fmt.Errorf("enqueue %s: %w", req.SourceURL, err), <-runErr)
		}
		w.track(entry)
		ids = append(ids, entry.ID)
	}

	if err := app.Manager.WaitIdle(ctx); err != nil {
		cancel()
		return errors.Join(err, <-runErr)
	}

	waitCtx, waitCancel := context.WithTimeout(ctx, subtitleWait)
	defer waitCancel()
	if !w.wait(waitCtx, ids) {
		fmt.Fprintln(os.Stderr, "gave up waiting for subtitles")
	}

	cancel()
	if err := <-runErr; err != nil {
		return err
	}
	if n := w.failures(); n > 0 {
		return fmt.Errorf("%d download(s) failed", n)
	}
	return nil
}

// getWatcher prints bus events for the command and tracks when every
// enqueued download has settled.
type getWatcher struct {
	asJSON bool

	mu      sync.Mutex
	titles  map[string]string
	settled map[string]bool
	pending map[string]bool // asset ids waiting for a subtitle
	failed  int
}

func newGetWatcher(asJSON bool) *getWatcher {
	return &getWatcher{
		asJSON:  asJSON,
		titles:  make(map[string]string),
		settled: make(map[string]bool),
		pending: make(map[string]bool),
	}
}

func (w *getWatcher) track(e download.Entry) {
	w.mu.Lock()
	w.titles[e.ID] = e.Title
	w.mu.Unlock()
}

func (w *getWatcher) consume(feed <-chan events.Event) {
	for e := range feed {
		w.observe(e)
	}
}

func (w *getWatcher) observe(e events.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch ev := e.(type) {
	case *events.DownloadCompleted:
		w.settled[ev.EntityID()] = true
		if ev.SubtitleURL != "" && ev.AssetID != "" {
			w.pending[ev.AssetID] = true
		}
	case *events.DownloadStatusChanged:
		if ev.To == string(download.StatusFailed) {
			w.settled[ev.EntityID()] = true
			if ev.Reason != string(download.KindCancelled) {
				w.failed++
			}
		}
	case *events.SubtitleAttached:
		delete(w.pending, ev.EntityID())
	}

	if w.asJSON {
		_ = json.NewEncoder(os.Stdout).Encode(e)
		return
	}
	if line := w.describe(e); line != "" {
		fmt.Println(line)
	}
}

func (w *getWatcher) describe(e events.Event) string {
	switch ev := e.(type) {
	case *events.DownloadQueued:
		return fmt.Sprintf("queued    %s", ev.Title)
	case *events.DownloadStatusChanged:
		if ev.To == string(download.StatusDownloading) {
			return fmt.Sprintf("started   %s", w.titles[ev.EntityID()])
		}
	case *events.DownloadProgressed:
		return fmt.Sprintf("          %-40s %s", truncate(w.titles[ev.EntityID()], 40), formatPercent(ev.Progress))
	case *events.DownloadCompleted:
		return fmt.Sprintf("done      %s -> %s", ev.Title, ev.LocalPath)
	case *events.DownloadFailed:
		return fmt.Sprintf("failed    %s (%s): %s", ev.Title, ev.Kind, ev.Reason)
	case *events.SubtitleAttached:
		return fmt.Sprintf("subtitle  %s", ev.SubtitlePath)
	case *events.StorageWarning:
		return fmt.Sprintf("warning   storage at %s of %s", formatPercent(ev.Ratio), formatSize(ev.LimitBytes))
	case *events.StorageCleanup:
		return fmt.Sprintf("cleanup   freed %s (%d assets)", formatSize(ev.BytesFreed), len(ev.Deleted))
	}
	return ""
}

func (w *getWatcher) done(ids []string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, id := range ids {
		if !w.settled[id] {
			return false
		}
	}
	return len(w.pending) == 0
}

// wait blocks until every id has settled and no subtitle is pending. It
// reports false when ctx ends first.
func (w *getWatcher) wait(ctx context.Context, ids []string) bool {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for !w.done(ids) {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
	return true
}

func (w *getWatcher) failures() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.failed
}
