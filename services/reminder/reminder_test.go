package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/fieldpro/core"
	"github.com/trezcool/fieldpro/core/job"
	"github.com/trezcool/fieldpro/core/notification"
	"github.com/trezcool/fieldpro/storage/localstore"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func TestRemindTomorrow(t *testing.T) {
	ctx := context.Background()
	store, err := localstore.Open(t.TempDir(), nil)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	newJob := func(date, employee, status string) {
		_, err := store.CreateJob(ctx, job.Job{
			ID:                core.NewID(),
			Title:             "Fit rollers",
			JobType:           job.TypeInstallation,
			Status:            status,
			CustomerID:        "c1",
			EmployeeID:        employee,
			BusinessID:        "b1",
			ScheduledDate:     date,
			ScheduledTime:     "09:30",
			CustomerReference: "REF-123456",
			WorkflowStep:      job.StepStart,
			CreatedAt:         core.Now(),
		})
		require.NoError(t, err)
	}
	newJob("2026-03-03", "e1", job.StatusConfirmed)
	newJob("2026-03-03", "e2", job.StatusAwaitingDeposit)
	// not reminded: unassigned, cancelled, the day after
	newJob("2026-03-03", "", job.StatusPending)
	newJob("2026-03-03", "e2", job.StatusCancelled)
	newJob("2026-03-04", "e1", job.StatusConfirmed)

	notifications := notification.NewService(store)
	s := NewScheduler(core.RemindersConfig{Spec: "0 18 * * *"}, store, notifications, nopLogger{})
	s.now = func() time.Time { return time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC) }

	sent, err := s.RemindTomorrow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	got, err := notifications.QueryForUser(ctx, "e1", notification.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, notification.TypeReminder, got[0].Type)
	assert.Equal(t, "Fit rollers is scheduled tomorrow at 09:30 (REF-123456).", got[0].Message)
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := NewScheduler(core.RemindersConfig{Spec: "every day"}, nil, nil, nopLogger{})
	assert.Error(t, s.Start())

	s = NewScheduler(core.RemindersConfig{Spec: "@daily"}, nil, nil, nopLogger{})
	require.NoError(t, s.Start())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
