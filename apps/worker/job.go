package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/edugest/core"
	"github.com/trezcool/edugest/core/reminder"
)

const jobTimeout = 10 * time.Minute

// dispatcher is satisfied by *reminder.Dispatcher.
type dispatcher interface {
	Run(ctx context.Context, now time.Time) (reminder.Report, error)
}

// reminderJob runs the reminder dispatcher once per cron tick.
type reminderJob struct {
	dispatcher dispatcher
	logger     core.Logger
	timeout    time.Duration
}

var _ cron.Job = (*reminderJob)(nil)

func (j *reminderJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	rep, err := j.dispatcher.Run(ctx, core.NowFunc())
	if err != nil {
		j.logger.Error(fmt.Sprintf("reminder run failed: %v", err), err)
	}
	j.logger.Info(fmt.Sprintf(
		"reminder run: %d recorded, %d sent, %d failed (%s)",
		rep.Recorded, rep.Sent, rep.Failed, time.Since(start).Round(time.Millisecond),
	))
}

// newScheduler registers job on the cron schedule; runs never overlap.
func newScheduler(schedule string, job cron.Job, logger cron.Logger) (*cron.Cron, error) {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddJob(schedule, job); err != nil {
		return nil, errors.Wrapf(err, "invalid reminders schedule %q", schedule)
	}
	return c, nil
}
