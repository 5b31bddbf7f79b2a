package cron

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// specParser accepts five-field expressions and descriptors ("@hourly",
// "@every 30s").
var specParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule validates a job schedule.
func ParseSchedule(expr string) (cron.Schedule, error) {
	return specParser.Parse(expr)
}

// Scheduler runs registered jobs on their schedules. A job whose previous
// run is still going skips the tick; a panicking job is logged and the
// scheduler keeps going.
type Scheduler struct {
	mu      sync.Mutex
	logger  *slog.Logger
	entries map[string]scheduledJob
	order   []string

	runner *cron.Cron
	cancel context.CancelFunc
}

type scheduledJob struct {
	job      Job
	schedule cron.Schedule
	id       cron.EntryID
}

// NewScheduler returns an idle scheduler. A nil logger uses slog.Default().
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		logger:  logger,
		entries: make(map[string]scheduledJob),
	}
}

// RegisterJob adds j. Names must be unique and the schedule must parse.
func (s *Scheduler) RegisterJob(j Job) error {
	schedule, err := ParseSchedule(j.Schedule())
	if err != nil {
		return fmt.Errorf("cron: job %q: invalid schedule %q: %w", j.Name(), j.Schedule(), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runner != nil {
		return fmt.Errorf("cron: job %q registered after start", j.Name())
	}
	if _, dup := s.entries[j.Name()]; dup {
		return fmt.Errorf("cron: duplicate job name %q", j.Name())
	}
	s.entries[j.Name()] = scheduledJob{job: j, schedule: schedule}
	s.order = append(s.order, j.Name())
	return nil
}

// Start begins ticking. Calling it twice is an error.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runner != nil {
		return fmt.Errorf("cron: scheduler already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	log := cronLogger{s.logger}
	s.runner = cron.New(
		cron.WithParser(specParser),
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)
	s.cancel = cancel

	for _, name := range s.order {
		entry := s.entries[name]
		entry.id = s.runner.Schedule(entry.schedule, cron.FuncJob(s.runFunc(ctx, entry.job)))
		s.entries[name] = entry
	}

	s.runner.Start()
	s.logger.Info("cron: scheduler started", "jobs", len(s.order))
	return nil
}

func (s *Scheduler) runFunc(ctx context.Context, j Job) func() {
	return func() {
		started := time.Now()
		err := j.Run(ctx)
		elapsed := time.Since(started)
		if err != nil {
			s.logger.Error("cron: job failed", "job", j.Name(), "elapsed", elapsed, "error", err)
			return
		}
		s.logger.Debug("cron: job done", "job", j.Name(), "elapsed", elapsed)
	}
}

// Next reports when the named job runs next. The second result is false
// for unknown jobs or before Start.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[name]
	if !ok || s.runner == nil {
		return time.Time{}, false
	}
	next := s.runner.Entry(entry.id).Next
	return next, !next.IsZero()
}

// Stop cancels the jobs' context and waits for in-flight runs until ctx
// expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	runner, cancel := s.runner, s.cancel
	s.mu.Unlock()
	if runner == nil {
		return nil
	}

	cancel()
	select {
	case <-runner.Stop().Done():
		s.logger.Info("cron: scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("cron: waiting for running jobs: %w", ctx.Err())
	}
}

// cronLogger routes the library's own messages (skipped ticks, recovered
// panics) through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
