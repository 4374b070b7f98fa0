// Package server wires the download core and runs its components.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Runner manages the event-driven components.
type Runner struct {
	app    *App
	logger *slog.Logger
}

// NewRunner creates a new runner.
func NewRunner(app *App, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		app:    app,
		logger: logger.With("component", "runner"),
	}
}

// Run reconciles the library, then starts the download manager and every
// handler. It blocks until the context is canceled or a component fails.
func (r *Runner) Run(ctx context.Context) error {
	report, err := r.app.Library.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	if len(report.Dropped) > 0 {
		r.logger.Warn("assets dropped during reconcile", "ids", report.Dropped)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.app.Manager.Run(ctx)
	})

	for _, h := range r.app.Handlers {
		h := h
		g.Go(func() error {
			r.logger.Debug("handler started", "handler", h.Name())
			if err := h.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s handler: %w", h.Name(), err)
			}
			return nil
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
