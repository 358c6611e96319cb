package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Runner invokes a job on a cron schedule. A run still in progress when the
// next tick arrives causes that tick to be skipped.
type Runner struct {
	c      *cron.Cron
	log    *slog.Logger
	cancel context.CancelFunc
}

// NewRunner parses spec (standard five-field syntax or descriptors such as
// "@every 1m") and registers job. Each run gets timeout as its deadline.
func NewRunner(spec string, loc *time.Location, timeout time.Duration, job func(ctx context.Context) error, log *slog.Logger) (*Runner, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{c: c, log: log, cancel: cancel}

	_, err := c.AddFunc(spec, func() {
		runCtx, done := context.WithTimeout(ctx, timeout)
		defer done()
		started := time.Now()
		if err := job(runCtx); err != nil {
			log.Warn("scheduled scan failed", "error", err, "elapsed", time.Since(started))
			return
		}
		log.Debug("scheduled scan finished", "elapsed", time.Since(started))
	})
	if err != nil {
		cancel()
		return nil, err
	}
	return r, nil
}

func (r *Runner) Start() {
	r.c.Start()
	r.log.Info("scan scheduler started", "tz", r.c.Location().String())
}

// Stop halts the schedule and waits for a running job to return.
func (r *Runner) Stop(ctx context.Context) {
	r.cancel()
	select {
	case <-r.c.Stop().Done():
	case <-ctx.Done():
	}
	r.log.Info("scan scheduler stopped")
}
