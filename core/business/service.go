package business

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/fieldpro/core"
)

var ErrNotFound = errors.New("business not found")

type (
	Repository interface {
		CreateBusiness(ctx context.Context, b Business) (Business, error)
		GetBusiness(ctx context.Context, id string) (Business, error)
		QueryBusinesses(ctx context.Context, filter QueryFilter) ([]Business, error)
		UpdateBusiness(ctx context.Context, b Business) (Business, error)
		DeleteBusiness(ctx context.Context, id string) error
	}

	Service interface {
		Create(ctx context.Context, nb NewBusiness) (Business, error)
		Query(ctx context.Context, filter QueryFilter) ([]Business, error)
		GetByID(ctx context.Context, id string) (Business, error)
		Update(ctx context.Context, id string, ub UpdateBusiness) (Business, error)
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

func (svc *service) Create(ctx context.Context, nb NewBusiness) (Business, error) {
	b := Business{
		ID:            core.NewID(),
		Name:          nb.Name,
		Address:       nb.Address,
		Phone:         nb.Phone,
		Email:         nb.Email,
		AdminID:       nb.AdminID,
		Features:      nb.Features,
		Subscription:  nb.Subscription,
		VRViewEnabled: nb.VRViewEnabled,
		CreatedAt:     core.Now(),
	}
	if b.Features == nil {
		b.Features = []string{}
	}
	return svc.repo.CreateBusiness(ctx, b)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]Business, error) {
	businesses, err := svc.repo.QueryBusinesses(ctx, filter)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(businesses, func(i, j int) bool { return businesses[i].Name < businesses[j].Name })
	return businesses, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Business, error) {
	return svc.repo.GetBusiness(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, ub UpdateBusiness) (Business, error) {
	b, err := svc.repo.GetBusiness(ctx, id)
	if err != nil {
		return Business{}, err
	}
	ub.apply(&b)
	return svc.repo.UpdateBusiness(ctx, b)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteBusiness(ctx, id)
}
