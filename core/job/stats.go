package job

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/fieldpro/core"
	"github.com/trezcool/fieldpro/core/user"
)

// maxCalendarDays bounds calendar ranges.
const maxCalendarDays = 92

type CalendarDay struct {
	Date string `json:"date"` // YYYY-MM-DD
	Jobs []Job  `json:"jobs"`
}

type DashboardStats struct {
	TotalJobs       int     `json:"total_jobs"`
	CompletedJobs   int     `json:"completed_jobs"`
	PendingJobs     int     `json:"pending_jobs"`
	CancelledJobs   int     `json:"cancelled_jobs"`
	TotalRevenue    float64 `json:"total_revenue"`
	ActiveEmployees int     `json:"active_employees"`
}

// ComputeStats aggregates jobs; ActiveEmployees is left to the caller.
func ComputeStats(jobs []Job) DashboardStats {
	var stats DashboardStats
	stats.TotalJobs = len(jobs)
	for _, j := range jobs {
		switch j.Status {
		case StatusCompleted:
			stats.CompletedJobs++
			stats.TotalRevenue += j.Revenue()
		case StatusPending:
			stats.PendingJobs++
		case StatusCancelled:
			stats.CancelledJobs++
		}
	}
	return stats
}

// GroupByDate groups jobs by scheduled date, one entry per day from `from` to `to` inclusive.
// Jobs must be sorted by schedule.
func GroupByDate(jobs []Job, from, to time.Time) []CalendarDay {
	byDate := make(map[string][]Job)
	for _, j := range jobs {
		byDate[j.ScheduledDate] = append(byDate[j.ScheduledDate], j)
	}
	var days []CalendarDay
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		date := d.Format(DateLayout)
		dayJobs := byDate[date]
		if dayJobs == nil {
			dayJobs = []Job{}
		}
		days = append(days, CalendarDay{Date: date, Jobs: dayJobs})
	}
	return days
}

// Calendar returns the jobs actor can see grouped by day, from `from` to `to` (YYYY-MM-DD) inclusive.
// Defaults to the current week starting on monday.
func (svc *service) Calendar(ctx context.Context, actor user.User, from, to string) ([]CalendarDay, error) {
	start, end, err := calendarRange(from, to)
	if err != nil {
		return nil, err
	}
	jobs, err := svc.Query(ctx, actor, QueryFilter{
		DateFrom: start.Format(DateLayout),
		DateTo:   end.Format(DateLayout),
	}, nil)
	if err != nil {
		return nil, err
	}
	return GroupByDate(jobs, start, end), nil
}

func calendarRange(from, to string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if from == "" {
		today := core.Now().Truncate(24 * time.Hour)
		offset := (int(today.Weekday()) + 6) % 7 // days since monday
		start = today.AddDate(0, 0, -offset)
	} else if start, err = time.Parse(DateLayout, from); err != nil {
		return start, end, core.NewFieldError("from", "date must be in the YYYY-MM-DD format")
	}

	if to == "" {
		end = start.AddDate(0, 0, 6)
	} else if end, err = time.Parse(DateLayout, to); err != nil {
		return start, end, core.NewFieldError("to", "date must be in the YYYY-MM-DD format")
	}

	if end.Before(start) {
		return start, end, core.NewFieldError("to", "end date must not be before start date")
	}
	if end.Sub(start) > maxCalendarDays*24*time.Hour {
		return start, end, core.NewFieldError("to", "date range is too large")
	}
	return start, end, nil
}

// Stats computes the dashboard statistics over what actor can see.
func (svc *service) Stats(ctx context.Context, actor user.User) (DashboardStats, error) {
	jobs, err := svc.Query(ctx, actor, QueryFilter{}, nil)
	if err != nil {
		return DashboardStats{}, errors.Wrap(err, "querying jobs")
	}
	stats := ComputeStats(jobs)

	active := true
	filter := user.QueryFilter{Roles: []string{user.RoleEmployee}, IsActive: &active}
	if !actor.IsAdmin() {
		if actor.BusinessID == "" {
			return stats, nil
		}
		filter.BusinessID = actor.BusinessID
	}
	employees, err := svc.users.Query(ctx, filter, nil)
	if err != nil {
		return DashboardStats{}, errors.Wrap(err, "querying employees")
	}
	stats.ActiveEmployees = len(employees)
	return stats, nil
}
