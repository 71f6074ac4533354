// Package refresh periodically reloads symbol-backed charts so their series
// follow the market.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"pulsechart/internal/chartsvc"
	"pulsechart/internal/metrics"
	"pulsechart/internal/util"
)

// Reloader is the part of the chart registry the job needs.
type Reloader interface {
	Sourced() []string
	Reload(ctx context.Context, id string) (bool, error)
}

// Result summarizes one refresh pass.
type Result struct {
	Checked int
	Changed int
	Failed  int
}

// Job reloads every sourced chart on a cron schedule.
type Job struct {
	Cron *cron.Cron

	charts  Reloader
	metrics *metrics.Recorder
	log     *slog.Logger
	timeout time.Duration
	now     func() time.Time

	// TradingDaysOnly skips scheduled passes on weekends.
	TradingDaysOnly bool
}

// New creates a Job. Schedules use the six-field (with seconds) cron format.
func New(charts Reloader, rec *metrics.Recorder, log *slog.Logger) *Job {
	if log == nil {
		log = slog.Default()
	}
	return &Job{
		Cron:    cron.New(cron.WithSeconds()),
		charts:  charts,
		metrics: rec,
		log:     log.With("component", "refresh"),
		timeout: time.Minute,
		now:     time.Now,
	}
}

// Schedule registers the refresh pass under spec.
func (j *Job) Schedule(spec string) error {
	if _, err := j.Cron.AddFunc(spec, j.scheduled); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (j *Job) Start() {
	j.Cron.Start()
	j.log.Info("refresh scheduler started")
}

// Stop stops the scheduler and waits for a running pass to finish.
func (j *Job) Stop() {
	<-j.Cron.Stop().Done()
	j.log.Info("refresh scheduler stopped")
}

func (j *Job) scheduled() {
	if j.TradingDaysOnly && !util.IsTradingDay(j.now()) {
		j.log.Debug("skipping refresh on non-trading day")
		j.metrics.RecordRefresh("skipped")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	j.RunOnce(ctx)
}

// RunOnce reloads every sourced chart once. Charts deleted while the pass
// runs are ignored.
func (j *Job) RunOnce(ctx context.Context) Result {
	var res Result
	for _, id := range j.charts.Sourced() {
		if ctx.Err() != nil {
			break
		}
		changed, err := j.charts.Reload(ctx, id)
		switch {
		case errors.Is(err, chartsvc.ErrNotFound):
			continue
		case err != nil:
			res.Checked++
			res.Failed++
			j.metrics.RecordRefresh("error")
			j.log.Warn("refresh failed", "chart", id, "error", err)
		case changed:
			res.Checked++
			res.Changed++
			j.metrics.RecordRefresh("changed")
		default:
			res.Checked++
			j.metrics.RecordRefresh("unchanged")
		}
	}
	j.log.Info("refresh pass done", "checked", res.Checked, "changed", res.Changed, "failed", res.Failed)
	return res
}
