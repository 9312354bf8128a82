package business

import (
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/fieldpro/core"
)

// Subscriptions
const (
	SubscriptionBasic      = "basic"
	SubscriptionPremium    = "premium"
	SubscriptionEnterprise = "enterprise"
)

type Business struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Address       string    `json:"address"`
	Phone         string    `json:"phone"`
	Email         string    `json:"email"`
	AdminID       string    `json:"admin_id"`
	Features      []string  `json:"features"`
	Subscription  string    `json:"subscription"`
	VRViewEnabled bool      `json:"vr_view_enabled"`
	CreatedAt     time.Time `json:"created_at"` // UTC
}

// HasFeature reports whether the business has the named feature enabled.
func (b Business) HasFeature(feature string) bool {
	return core.StringIn(feature, b.Features...)
}

type NewBusiness struct {
	Name          string   `json:"name" validate:"required"`
	Address       string   `json:"address" validate:"required"`
	Phone         string   `json:"phone" validate:"omitempty,phone"`
	Email         string   `json:"email" validate:"required,email"`
	AdminID       string   `json:"admin_id"`
	Features      []string `json:"features"`
	Subscription  string   `json:"subscription" validate:"omitempty,oneof=basic premium enterprise"`
	VRViewEnabled bool     `json:"vr_view_enabled"`
}

func (nb *NewBusiness) Validate(validate *validator.Validate) error {
	nb.Name = core.CleanString(nb.Name)
	nb.Address = core.CleanString(nb.Address)
	nb.Phone = core.CleanString(nb.Phone)
	nb.Email = core.CleanString(nb.Email, true /* lower */)
	nb.Subscription = core.CleanString(nb.Subscription, true /* lower */)
	if nb.Subscription == "" {
		nb.Subscription = SubscriptionBasic
	}
	return validate.Struct(nb)
}

type UpdateBusiness struct {
	Name          *string  `json:"name" validate:"omitempty,min=1"`
	Address       *string  `json:"address"`
	Phone         *string  `json:"phone" validate:"omitempty,phone"`
	Email         *string  `json:"email" validate:"omitempty,email"`
	AdminID       *string  `json:"admin_id"`
	Features      []string `json:"features"`
	Subscription  *string  `json:"subscription" validate:"omitempty,oneof=basic premium enterprise"`
	VRViewEnabled *bool    `json:"vr_view_enabled"`
}

func (ub *UpdateBusiness) Validate(validate *validator.Validate) error {
	if ub.Email != nil {
		email := core.CleanString(*ub.Email, true /* lower */)
		ub.Email = &email
	}
	return validate.Struct(ub)
}

// ChangesPlan reports whether ub modifies fields only an admin may change.
func (ub UpdateBusiness) ChangesPlan() bool {
	return ub.AdminID != nil || ub.Features != nil || ub.Subscription != nil || ub.VRViewEnabled != nil
}

func (ub UpdateBusiness) apply(b *Business) {
	if ub.Name != nil {
		b.Name = core.CleanString(*ub.Name)
	}
	if ub.Address != nil {
		b.Address = core.CleanString(*ub.Address)
	}
	if ub.Phone != nil {
		b.Phone = core.CleanString(*ub.Phone)
	}
	if ub.Email != nil {
		b.Email = *ub.Email
	}
	if ub.AdminID != nil {
		b.AdminID = *ub.AdminID
	}
	if ub.Features != nil {
		b.Features = ub.Features
	}
	if ub.Subscription != nil {
		b.Subscription = *ub.Subscription
	}
	if ub.VRViewEnabled != nil {
		b.VRViewEnabled = *ub.VRViewEnabled
	}
}

type QueryFilter struct {
	Search       string `query:"search"`
	Subscription string `query:"subscription"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Subscription = core.CleanString(qf.Subscription, true /* lower */)
}

func (qf QueryFilter) Match(b Business) bool {
	if qf.Search != "" && !(core.ContainsFold(b.Name, qf.Search) || core.ContainsFold(b.Email, qf.Search)) {
		return false
	}
	return qf.Subscription == "" || strings.EqualFold(b.Subscription, qf.Subscription)
}

// Sort orders businesses by name.
func Sort(businesses []Business) {
	sort.SliceStable(businesses, func(i, j int) bool {
		return strings.ToLower(businesses[i].Name) < strings.ToLower(businesses[j].Name)
	})
}
