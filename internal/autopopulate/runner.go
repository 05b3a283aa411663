// Package autopopulate schedules periodic population sweeps so that
// every schedule keeps a full horizon of events without manual calls.
package autopopulate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

type populator interface {
	PopulateAll(ctx context.Context) error
}

// Runner triggers populator sweeps on a cron schedule. Sweeps never
// overlap; a tick arriving while one is still running is skipped.
type Runner struct {
	mu       sync.Mutex
	populate populator
	spec     string
	timeout  time.Duration
	logger   *slog.Logger

	cron    *cron.Cron
	running bool
}

// NewRunner builds a runner for the given cron spec. The spec uses the
// standard five field format, descriptors such as @hourly included.
func NewRunner(populate populator, spec string, timeout time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.Level(12)}))
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Runner{populate: populate, spec: spec, timeout: timeout, logger: logger}
}

// Start registers the sweep and begins firing it. It validates the cron
// spec and returns the parse error before anything runs.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return errors.New("autopopulate: already started")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))
	if _, err := c.AddFunc(r.spec, func() { r.Sweep(ctx) }); err != nil {
		return err
	}

	r.cron = c
	c.Start()
	r.logger.InfoContext(ctx, "auto populate started", "spec", r.spec)
	return nil
}

// Stop halts the cron loop and waits for an in-flight sweep to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	r.logger.Info("auto populate stopped")
}

// Sweep runs one population pass immediately. It returns true when the
// pass ran and false when another pass was already in flight.
func (r *Runner) Sweep(ctx context.Context) bool {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		r.logger.WarnContext(ctx, "auto populate sweep skipped, previous still running")
		return false
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	started := time.Now()
	if err := r.populate.PopulateAll(runCtx); err != nil {
		r.logger.WarnContext(ctx, "auto populate sweep finished with errors",
			"error", err, "elapsed", time.Since(started))
		return true
	}
	r.logger.InfoContext(ctx, "auto populate sweep complete", "elapsed", time.Since(started))
	return true
}
