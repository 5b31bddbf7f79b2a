package cron_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/flemzord/cinechat/internal/core"
	"github.com/flemzord/cinechat/internal/cron"
	"github.com/flemzord/cinechat/internal/cron/crontest"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStaleRunJob(t *testing.T) {
	t.Parallel()

	runs := &crontest.MockRunCanceller{
		Stale: func(time.Duration) int { return 2 },
	}
	j := &cron.StaleRunJob{Runs: runs, MaxAge: 10 * time.Minute, Logger: discard()}

	if j.Name() != "stale_run_watchdog" {
		t.Errorf("name = %q", j.Name())
	}
	if j.Schedule() != "@every 1m" {
		t.Errorf("schedule = %q, want @every 1m", j.Schedule())
	}
	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ages := runs.Ages(); len(ages) != 1 || ages[0] != 10*time.Minute {
		t.Errorf("CancelStale calls = %v, want one call with 10m", ages)
	}
}

func TestStaleRunJob_CancelledContext(t *testing.T) {
	t.Parallel()

	runs := &crontest.MockRunCanceller{}
	j := &cron.StaleRunJob{Runs: runs, MaxAge: time.Minute, Logger: discard()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := j.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
	if len(runs.Ages()) != 0 {
		t.Error("CancelStale should not run after shutdown")
	}
}

func TestHealthProbeJob(t *testing.T) {
	t.Parallel()

	var slowErr error
	j := &cron.HealthProbeJob{
		Checks: []core.NamedCheck{
			{Name: "database", Check: func(context.Context) error { return nil }},
			{Name: "tmdb_api", Check: func(ctx context.Context) error {
				<-ctx.Done()
				slowErr = ctx.Err()
				return slowErr
			}},
			{Name: "tvmaze_api", Check: func(context.Context) error { return errors.New("502") }},
		},
		Timeout: 10 * time.Millisecond,
		Logger:  discard(),
	}

	if j.Schedule() != "@every 5m" {
		t.Errorf("schedule = %q", j.Schedule())
	}
	err := j.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "tmdb_api") {
		t.Fatalf("Run = %v, want first failing component named", err)
	}
	if !errors.Is(slowErr, context.DeadlineExceeded) {
		t.Errorf("slow check ended with %v, want deadline", slowErr)
	}
}

func TestHealthProbeJob_AllHealthy(t *testing.T) {
	t.Parallel()

	j := &cron.HealthProbeJob{
		Checks: []core.NamedCheck{{Name: "database", Check: func(context.Context) error { return nil }}},
		Logger: discard(),
	}
	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestScheduler_RunsWatchdog(t *testing.T) {
	t.Parallel()

	fired := make(chan struct{}, 1)
	runs := &crontest.MockRunCanceller{
		Stale: func(time.Duration) int {
			select {
			case fired <- struct{}{}:
			default:
			}
			return 0
		},
	}

	s := cron.NewScheduler(discard())
	if err := s.RegisterJob(&cron.StaleRunJob{Runs: runs, MaxAge: time.Minute, Logger: discard(), ScheduleExpr: "@every 1s"}); err != nil {
		t.Fatalf("RegisterJob: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = s.Stop(context.Background()) }()

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("watchdog never ran")
	}
}
