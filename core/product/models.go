package product

import (
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/fieldpro/core"
)

type Product struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Category       string            `json:"category"`
	Description    string            `json:"description"`
	Image          string            `json:"image"`
	Model3D        string            `json:"model_3d"`
	ARModel        string            `json:"ar_model"`
	Specifications map[string]string `json:"specifications"`
	Price          float64           `json:"price"`
	IsActive       bool              `json:"is_active"`
	CreatedAt      time.Time         `json:"created_at"` // UTC
}

type NewProduct struct {
	Name           string            `json:"name" validate:"required"`
	Category       string            `json:"category" validate:"required"`
	Description    string            `json:"description"`
	Image          string            `json:"image"`
	Model3D        string            `json:"model_3d"`
	ARModel        string            `json:"ar_model"`
	Specifications map[string]string `json:"specifications"`
	Price          float64           `json:"price" validate:"gte=0"`
	IsActive       *bool             `json:"is_active"`
}

func (np *NewProduct) Validate(validate *validator.Validate) error {
	np.Name = core.CleanString(np.Name)
	np.Category = core.CleanString(np.Category)
	np.Description = core.CleanString(np.Description)
	return validate.Struct(np)
}

type UpdateProduct struct {
	Name           *string           `json:"name" validate:"omitempty,min=1"`
	Category       *string           `json:"category" validate:"omitempty,min=1"`
	Description    *string           `json:"description"`
	Image          *string           `json:"image"`
	Model3D        *string           `json:"model_3d"`
	ARModel        *string           `json:"ar_model"`
	Specifications map[string]string `json:"specifications"`
	Price          *float64          `json:"price" validate:"omitempty,gte=0"`
	IsActive       *bool             `json:"is_active"`
}

func (up *UpdateProduct) Validate(validate *validator.Validate) error { return validate.Struct(up) }

func (up UpdateProduct) apply(p *Product) {
	if up.Name != nil {
		p.Name = core.CleanString(*up.Name)
	}
	if up.Category != nil {
		p.Category = core.CleanString(*up.Category)
	}
	if up.Description != nil {
		p.Description = core.CleanString(*up.Description)
	}
	if up.Image != nil {
		p.Image = *up.Image
	}
	if up.Model3D != nil {
		p.Model3D = *up.Model3D
	}
	if up.ARModel != nil {
		p.ARModel = *up.ARModel
	}
	if up.Specifications != nil {
		p.Specifications = up.Specifications
	}
	if up.Price != nil {
		p.Price = *up.Price
	}
	if up.IsActive != nil {
		p.IsActive = *up.IsActive
	}
}

type QueryFilter struct {
	Search   string `query:"search"`
	Category string `query:"category"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Category = core.CleanString(qf.Category)
}

func (qf QueryFilter) Match(p Product) bool {
	if qf.Search != "" && !(core.ContainsFold(p.Name, qf.Search) || core.ContainsFold(p.Description, qf.Search)) {
		return false
	}
	if qf.Category != "" && !strings.EqualFold(p.Category, qf.Category) {
		return false
	}
	return qf.IsActive == nil || p.IsActive == *qf.IsActive
}

// Sort orders products by category then name.
func Sort(products []Product) {
	sort.SliceStable(products, func(i, j int) bool {
		if products[i].Category != products[j].Category {
			return products[i].Category < products[j].Category
		}
		return products[i].Name < products[j].Name
	})
}
