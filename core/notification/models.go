package notification

import (
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/fieldpro/core"
)

// Types
const (
	TypeReminder = "reminder"
	TypeJob      = "job"
	TypeSystem   = "system"
)

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type NewNotification struct {
	UserID  string `json:"user_id" validate:"required"`
	Title   string `json:"title" validate:"required"`
	Message string `json:"message" validate:"required"`
	Type    string `json:"type" validate:"required,oneof=reminder job system"`
}

func (nn *NewNotification) Validate(validate *validator.Validate) error {
	nn.Title = core.CleanString(nn.Title)
	nn.Message = core.CleanString(nn.Message)
	nn.Type = core.CleanString(nn.Type, true /* lower */)
	if nn.Type == "" {
		nn.Type = TypeSystem
	}
	return validate.Struct(nn)
}

type QueryFilter struct {
	UserID string `query:"-"`
	Unread bool   `query:"unread"`
	Type   string `query:"type"`
}

func (qf QueryFilter) Match(n Notification) bool {
	if qf.UserID != "" && n.UserID != qf.UserID {
		return false
	}
	if qf.Unread && n.Read {
		return false
	}
	return qf.Type == "" || n.Type == qf.Type
}

// Sort orders notifications newest first.
func Sort(notifications []Notification) {
	sort.SliceStable(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.After(notifications[j].CreatedAt)
	})
}
