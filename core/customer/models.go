package customer

import (
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/fieldpro/core"
)

type Customer struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Mobile     string    `json:"mobile"`
	Address    string    `json:"address"`
	Postcode   string    `json:"postcode"`
	BusinessID string    `json:"business_id"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

type NewCustomer struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"omitempty,email"`
	Phone      string `json:"phone" validate:"omitempty,phone"`
	Mobile     string `json:"mobile" validate:"omitempty,phone"`
	Address    string `json:"address" validate:"required"`
	Postcode   string `json:"postcode" validate:"omitempty,postcode"`
	BusinessID string `json:"business_id" validate:"required"`
}

func (nc *NewCustomer) Clean() {
	nc.Name = core.CleanString(nc.Name)
	nc.Email = core.CleanString(nc.Email, true /* lower */)
	nc.Phone = core.CleanString(nc.Phone)
	nc.Mobile = core.CleanString(nc.Mobile)
	nc.Address = core.CleanString(nc.Address)
	nc.Postcode = strings.ToUpper(core.CleanString(nc.Postcode))
	nc.BusinessID = core.CleanString(nc.BusinessID)
}

func (nc *NewCustomer) Validate(validate *validator.Validate) error {
	nc.Clean()
	return validate.Struct(nc)
}

type UpdateCustomer struct {
	Name     *string `json:"name" validate:"omitempty,min=1"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone" validate:"omitempty,phone"`
	Mobile   *string `json:"mobile" validate:"omitempty,phone"`
	Address  *string `json:"address"`
	Postcode *string `json:"postcode" validate:"omitempty,postcode"`
}

func (uc *UpdateCustomer) Validate(validate *validator.Validate) error {
	if uc.Email != nil {
		email := core.CleanString(*uc.Email, true /* lower */)
		uc.Email = &email
	}
	if uc.Postcode != nil {
		pc := strings.ToUpper(core.CleanString(*uc.Postcode))
		uc.Postcode = &pc
	}
	return validate.Struct(uc)
}

func (uc UpdateCustomer) apply(c *Customer) {
	if uc.Name != nil {
		c.Name = core.CleanString(*uc.Name)
	}
	if uc.Email != nil {
		c.Email = *uc.Email
	}
	if uc.Phone != nil {
		c.Phone = core.CleanString(*uc.Phone)
	}
	if uc.Mobile != nil {
		c.Mobile = core.CleanString(*uc.Mobile)
	}
	if uc.Address != nil {
		c.Address = core.CleanString(*uc.Address)
	}
	if uc.Postcode != nil {
		c.Postcode = *uc.Postcode
	}
}

type QueryFilter struct {
	Search     string `query:"search"`
	BusinessID string `query:"business_id"`
	Email      string `query:"email"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.BusinessID = core.CleanString(qf.BusinessID)
	qf.Email = core.CleanString(qf.Email, true /* lower */)
}

// Match applies AND operation on available QueryFilter fields.
// Search does a case-insensitive match on one of name, email, phone, mobile or postcode.
func (qf QueryFilter) Match(c Customer) bool {
	if qf.BusinessID != "" && c.BusinessID != qf.BusinessID {
		return false
	}
	if qf.Email != "" && c.Email != qf.Email {
		return false
	}
	if qf.Search != "" {
		for _, s := range []string{c.Name, c.Email, c.Phone, c.Mobile, c.Postcode} {
			if core.ContainsFold(s, qf.Search) {
				return true
			}
		}
		return false
	}
	return true
}

// Sort orders customers by name.
func Sort(customers []Customer) {
	sort.SliceStable(customers, func(i, j int) bool {
		return strings.ToLower(customers[i].Name) < strings.ToLower(customers[j].Name)
	})
}
