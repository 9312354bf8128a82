package notification

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/fieldpro/core"
)

var ErrNotFound = errors.New("notification not found")

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		GetNotification(ctx context.Context, id string) (Notification, error)
		QueryNotifications(ctx context.Context, filter QueryFilter) ([]Notification, error)
		UpdateNotification(ctx context.Context, n Notification) (Notification, error)
		DeleteNotification(ctx context.Context, id string) error
	}

	Service interface {
		Create(ctx context.Context, nn NewNotification) (Notification, error)
		QueryForUser(ctx context.Context, userID string, filter QueryFilter) ([]Notification, error)
		UnreadCount(ctx context.Context, userID string) (int, error)
		GetForUser(ctx context.Context, userID, id string) (Notification, error)
		MarkRead(ctx context.Context, userID, id string) (Notification, error)
		MarkAllRead(ctx context.Context, userID string) error
		Delete(ctx context.Context, userID, id string) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, nn NewNotification) (Notification, error) {
	n := Notification{
		ID:        core.NewID(),
		UserID:    nn.UserID,
		Title:     nn.Title,
		Message:   nn.Message,
		Type:      nn.Type,
		CreatedAt: core.Now(),
	}
	return svc.repo.CreateNotification(ctx, n)
}

func (svc *service) QueryForUser(ctx context.Context, userID string, filter QueryFilter) ([]Notification, error) {
	filter.UserID = userID
	notifications, err := svc.repo.QueryNotifications(ctx, filter)
	if err != nil {
		return nil, err
	}
	Sort(notifications)
	return notifications, nil
}

func (svc *service) UnreadCount(ctx context.Context, userID string) (int, error) {
	unread, err := svc.repo.QueryNotifications(ctx, QueryFilter{UserID: userID, Unread: true})
	if err != nil {
		return 0, err
	}
	return len(unread), nil
}

// GetForUser only returns notifications addressed to userID.
func (svc *service) GetForUser(ctx context.Context, userID, id string) (Notification, error) {
	n, err := svc.repo.GetNotification(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if n.UserID != userID {
		return Notification{}, ErrNotFound
	}
	return n, nil
}

func (svc *service) MarkRead(ctx context.Context, userID, id string) (Notification, error) {
	n, err := svc.GetForUser(ctx, userID, id)
	if err != nil {
		return Notification{}, err
	}
	if n.Read {
		return n, nil
	}
	n.Read = true
	return svc.repo.UpdateNotification(ctx, n)
}

func (svc *service) MarkAllRead(ctx context.Context, userID string) error {
	unread, err := svc.repo.QueryNotifications(ctx, QueryFilter{UserID: userID, Unread: true})
	if err != nil {
		return err
	}
	for _, n := range unread {
		n.Read = true
		if _, err = svc.repo.UpdateNotification(ctx, n); err != nil {
			return errors.Wrapf(err, "marking notification %s as read", n.ID)
		}
	}
	return nil
}

func (svc *service) Delete(ctx context.Context, userID, id string) error {
	if _, err := svc.GetForUser(ctx, userID, id); err != nil {
		return err
	}
	return svc.repo.DeleteNotification(ctx, id)
}
