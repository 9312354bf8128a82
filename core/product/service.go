package product

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/fieldpro/core"
)

var ErrNotFound = errors.New("product not found")

type (
	Repository interface {
		CreateProduct(ctx context.Context, p Product) (Product, error)
		GetProduct(ctx context.Context, id string) (Product, error)
		QueryProducts(ctx context.Context, filter QueryFilter) ([]Product, error)
		UpdateProduct(ctx context.Context, p Product) (Product, error)
		DeleteProduct(ctx context.Context, id string) error
	}

	Service interface {
		Create(ctx context.Context, np NewProduct) (Product, error)
		Query(ctx context.Context, filter QueryFilter) ([]Product, error)
		Categories(ctx context.Context) ([]string, error)
		GetByID(ctx context.Context, id string) (Product, error)
		Update(ctx context.Context, id string, up UpdateProduct) (Product, error)
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

func (svc *service) Create(ctx context.Context, np NewProduct) (Product, error) {
	p := Product{
		ID:             core.NewID(),
		Name:           np.Name,
		Category:       np.Category,
		Description:    np.Description,
		Image:          np.Image,
		Model3D:        np.Model3D,
		ARModel:        np.ARModel,
		Specifications: np.Specifications,
		Price:          np.Price,
		IsActive:       np.IsActive == nil || *np.IsActive,
		CreatedAt:      core.Now(),
	}
	if p.Specifications == nil {
		p.Specifications = map[string]string{}
	}
	return svc.repo.CreateProduct(ctx, p)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]Product, error) {
	products, err := svc.repo.QueryProducts(ctx, filter)
	if err != nil {
		return nil, err
	}
	Sort(products)
	return products, nil
}

// Categories lists the distinct categories of active products.
func (svc *service) Categories(ctx context.Context) ([]string, error) {
	active := true
	products, err := svc.Query(ctx, QueryFilter{IsActive: &active})
	if err != nil {
		return nil, err
	}
	cats := make([]string, 0)
	for _, p := range products {
		if !core.StringIn(p.Category, cats...) {
			cats = append(cats, p.Category)
		}
	}
	return cats, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Product, error) {
	return svc.repo.GetProduct(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, up UpdateProduct) (Product, error) {
	p, err := svc.repo.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	up.apply(&p)
	return svc.repo.UpdateProduct(ctx, p)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteProduct(ctx, id)
}
