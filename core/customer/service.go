package customer

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/fieldpro/core"
)

var ErrNotFound = errors.New("customer not found")

type (
	Repository interface {
		CreateCustomer(ctx context.Context, c Customer) (Customer, error)
		GetCustomer(ctx context.Context, id string) (Customer, error)
		QueryCustomers(ctx context.Context, filter QueryFilter) ([]Customer, error)
		UpdateCustomer(ctx context.Context, c Customer) (Customer, error)
		DeleteCustomer(ctx context.Context, id string) error
	}

	Service interface {
		Create(ctx context.Context, nc NewCustomer) (Customer, error)
		// FindOrCreate returns the customer of the business with the same email, creating it if needed.
		// nc must have been validated.
		FindOrCreate(ctx context.Context, nc NewCustomer) (Customer, error)
		Query(ctx context.Context, filter QueryFilter) ([]Customer, error)
		GetByID(ctx context.Context, id string) (Customer, error)
		Update(ctx context.Context, id string, uc UpdateCustomer) (Customer, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) Create(ctx context.Context, nc NewCustomer) (Customer, error) {
	c := Customer{
		ID:         core.NewID(),
		Name:       nc.Name,
		Email:      nc.Email,
		Phone:      nc.Phone,
		Mobile:     nc.Mobile,
		Address:    nc.Address,
		Postcode:   nc.Postcode,
		BusinessID: nc.BusinessID,
		CreatedAt:  core.Now(),
	}
	return svc.repo.CreateCustomer(ctx, c)
}

func (svc *service) FindOrCreate(ctx context.Context, nc NewCustomer) (Customer, error) {
	if nc.Email != "" {
		found, err := svc.repo.QueryCustomers(ctx, QueryFilter{BusinessID: nc.BusinessID, Email: nc.Email})
		if err != nil {
			return Customer{}, errors.Wrap(err, "querying customers")
		}
		if len(found) > 0 {
			return found[0], nil
		}
	}
	return svc.Create(ctx, nc)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]Customer, error) {
	customers, err := svc.repo.QueryCustomers(ctx, filter)
	if err != nil {
		return nil, err
	}
	Sort(customers)
	return customers, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Customer, error) {
	return svc.repo.GetCustomer(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, uc UpdateCustomer) (Customer, error) {
	c, err := svc.repo.GetCustomer(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	uc.apply(&c)
	return svc.repo.UpdateCustomer(ctx, c)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteCustomer(ctx, id)
}
