// Package cron runs periodic background jobs such as the stale-run
// watchdog and the upstream health probe.
package cron

import "context"

// Job is a named unit of background work on a fixed schedule.
type Job interface {
	// Name identifies the job in logs. Names are unique per Scheduler.
	Name() string
	// Schedule is a five-field cron expression or a descriptor like "@every 1m".
	Schedule() string
	// Run is cancelled through ctx when the scheduler stops.
	Run(ctx context.Context) error
}

// Func adapts a plain function to Job.
type Func struct {
	ID    string
	Every string
	Fn    func(ctx context.Context) error
}

var _ Job = Func{}

// Name implements Job.
func (f Func) Name() string { return f.ID }

// Schedule implements Job.
func (f Func) Schedule() string { return f.Every }

// Run implements Job.
func (f Func) Run(ctx context.Context) error { return f.Fn(ctx) }
