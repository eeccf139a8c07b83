// Package scheduler keeps ICS subscriptions in sync on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "kalender/internal/log"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context)

type Scheduler struct {
	cron *cron.Cron
	spec string
	job  Job
}

// New creates a scheduler running job on spec (standard 5-field cron) in loc.
// Overlapping runs are skipped.
func New(spec string, loc *time.Location, job Job) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	return &Scheduler{cron: c, spec: spec, job: job}
}

// Start registers the job, runs it once immediately and blocks until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	id, err := s.cron.AddFunc(s.spec, func() { s.job(ctx) })
	if err != nil {
		return fmt.Errorf("add sync job %q: %w", s.spec, err)
	}

	s.job(ctx)
	s.cron.Start()
	appLog.Info("scheduler started", "spec", s.spec, "next", s.cron.Entry(id).Next.Format(time.RFC3339))

	<-ctx.Done()
	s.Stop()
	return nil
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	appLog.Info("scheduler stopped")
}

// ValidateSpec reports whether spec parses as a 5-field cron expression.
func ValidateSpec(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return nil
}
