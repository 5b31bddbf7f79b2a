package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/cinechat/internal/core"
)

// RunCanceller is the subset of the orchestrator needed by the watchdog.
type RunCanceller interface {
	CancelStale(maxAge time.Duration) int
}

// StaleRunJob cancels agent runs that have been running longer than MaxAge.
type StaleRunJob struct {
	Runs         RunCanceller
	MaxAge       time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = "@every 1m"
}

var _ Job = (*StaleRunJob)(nil)

// Name implements Job.
func (j *StaleRunJob) Name() string { return "stale_run_watchdog" }

// Schedule implements Job.
func (j *StaleRunJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "@every 1m"
}

// Run cancels every run older than MaxAge.
func (j *StaleRunJob) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("cron: watchdog cancelled: %w", ctx.Err())
	}
	if n := j.Runs.CancelStale(j.MaxAge); n > 0 {
		j.Logger.Warn("cron: cancelled stale runs", "count", n, "max_age", j.MaxAge)
	}
	return nil
}

// HealthProbeJob runs the registered health checks in the background so
// an unavailable upstream shows in the logs before a user hits it.
type HealthProbeJob struct {
	Checks       []core.NamedCheck
	Timeout      time.Duration // per check; zero means 5s
	Logger       *slog.Logger
	ScheduleExpr string // empty = "@every 5m"
}

var _ Job = (*HealthProbeJob)(nil)

// Name implements Job.
func (j *HealthProbeJob) Name() string { return "health_probe" }

// Schedule implements Job.
func (j *HealthProbeJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "@every 5m"
}

// Run probes each check in turn and returns an error naming the first
// failing component.
func (j *HealthProbeJob) Run(ctx context.Context) error {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	var failed error
	for _, c := range j.Checks {
		if ctx.Err() != nil {
			return fmt.Errorf("cron: health probe cancelled: %w", ctx.Err())
		}
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		err := c.Check(checkCtx)
		cancel()
		if err != nil {
			j.Logger.Warn("cron: component unavailable", "component", c.Name, "error", err)
			if failed == nil {
				failed = fmt.Errorf("cron: %s unavailable: %w", c.Name, err)
			}
		}
	}
	return failed
}
