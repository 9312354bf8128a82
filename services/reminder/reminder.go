// Package reminder notifies employees of their next day's jobs on a cron schedule.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/fieldpro/core"
	"github.com/trezcool/fieldpro/core/job"
	"github.com/trezcool/fieldpro/core/notification"
)

const runTimeout = 2 * time.Minute

type Scheduler struct {
	spec          string
	cron          *cron.Cron
	jobs          job.Repository
	notifications notification.Service
	logger        core.Logger
	now           func() time.Time
}

func NewScheduler(conf core.RemindersConfig, jobs job.Repository, notifications notification.Service, logger core.Logger) *Scheduler {
	return &Scheduler{
		spec:          conf.Spec,
		cron:          cron.New(cron.WithLocation(time.UTC)),
		jobs:          jobs,
		notifications: notifications,
		logger:        logger,
		now:           core.Now,
	}
}

// Start schedules the reminders and starts the cron goroutine.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.run); err != nil {
		return errors.Wrapf(err, "scheduling reminders %q", s.spec)
	}
	s.cron.Start()
	s.logger.Info("reminders scheduled: " + s.spec)
	return nil
}

// Stop stops the scheduler and waits for a running job, or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	sent, err := s.RemindTomorrow(ctx)
	if err != nil {
		s.logger.Error("sending job reminders", err)
		return
	}
	s.logger.Info(fmt.Sprintf("sent %d job reminder(s)", sent))
}

// RemindTomorrow notifies the assigned employee of every open job scheduled for tomorrow.
// It returns the number of notifications created.
func (s *Scheduler) RemindTomorrow(ctx context.Context) (int, error) {
	tomorrow := s.now().AddDate(0, 0, 1).Format("2006-01-02")
	jobs, err := s.jobs.QueryJobs(ctx, job.QueryFilter{
		DateFrom: tomorrow,
		DateTo:   tomorrow,
		Statuses: []string{job.StatusPending, job.StatusConfirmed, job.StatusAwaitingDeposit},
	})
	if err != nil {
		return 0, errors.Wrap(err, "querying tomorrow's jobs")
	}

	var sent int
	for _, j := range jobs {
		if j.EmployeeID == "" {
			continue
		}
		_, err = s.notifications.Create(ctx, notification.NewNotification{
			UserID:  j.EmployeeID,
			Title:   "Job tomorrow",
			Message: message(j),
			Type:    notification.TypeReminder,
		})
		if err != nil {
			return sent, errors.Wrapf(err, "notifying %s of job %s", j.EmployeeID, j.ID)
		}
		sent++
	}
	return sent, nil
}

func message(j job.Job) string {
	when := "tomorrow"
	if j.ScheduledTime != "" {
		when += " at " + j.ScheduledTime
	}
	return fmt.Sprintf("%s is scheduled %s (%s).", j.Title, when, j.CustomerReference)
}
