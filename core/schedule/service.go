package schedule

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// DateLayout is the layout of scheduled dates.
const DateLayout = "2006-01-02"

var ErrNotFound = errors.New("working hours not found")

type (
	Repository interface {
		GetWorkingHours(ctx context.Context, userID string) (WorkingHours, error)
		SaveWorkingHours(ctx context.Context, userID string, wh WorkingHours) error
	}

	Service interface {
		Get(ctx context.Context, userID string) (WorkingHours, error)
		Set(ctx context.Context, userID string, wh WorkingHours) (WorkingHours, error)
		// IsAvailable reports whether the user works on `date` (YYYY-MM-DD) at `hhmm` (HH:MM, optional).
		IsAvailable(ctx context.Context, userID, date, hhmm string) (bool, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Get(ctx context.Context, userID string) (WorkingHours, error) {
	wh, err := svc.repo.GetWorkingHours(ctx, userID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return DefaultWorkingHours(), nil
		}
		return WorkingHours{}, err
	}
	return wh, nil
}

func (svc *service) Set(ctx context.Context, userID string, wh WorkingHours) (WorkingHours, error) {
	if err := svc.repo.SaveWorkingHours(ctx, userID, wh); err != nil {
		return WorkingHours{}, err
	}
	return wh, nil
}

func (svc *service) IsAvailable(ctx context.Context, userID, date, hhmm string) (bool, error) {
	day, err := time.Parse(DateLayout, date)
	if err != nil {
		return false, errors.Wrap(err, "parsing date")
	}
	wh, err := svc.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	dh := wh.Day(day.Weekday())
	if hhmm == "" {
		return dh.Available, nil
	}
	return dh.Contains(hhmm), nil
}
