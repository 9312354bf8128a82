package job

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/fieldpro/core"
	"github.com/trezcool/fieldpro/core/product"
)

type NewSelectedProduct struct {
	ProductID        string `json:"product_id" validate:"required"`
	Quantity         int    `json:"quantity" validate:"omitempty,gte=1"`
	ARScreenshot     string `json:"ar_screenshot"`
	CustomerApproved bool   `json:"customer_approved"`
}

func (np *NewSelectedProduct) Validate(validate *validator.Validate) error {
	np.ProductID = core.CleanString(np.ProductID)
	if np.Quantity == 0 {
		np.Quantity = 1
	}
	return validate.Struct(np)
}

// AddProduct adds prod to the job selection; adding an already selected product increments its quantity.
func AddProduct(j *Job, prod product.Product, np NewSelectedProduct) {
	qty := np.Quantity
	if qty < 1 {
		qty = 1
	}
	for i, sp := range j.SelectedProducts {
		if sp.ProductID == prod.ID {
			j.SelectedProducts[i].Quantity += qty
			if np.ARScreenshot != "" {
				j.SelectedProducts[i].ARScreenshot = np.ARScreenshot
			}
			if np.CustomerApproved {
				j.SelectedProducts[i].CustomerApproved = true
			}
			return
		}
	}
	j.SelectedProducts = append(j.SelectedProducts, SelectedProduct{
		ID:               core.NewID(),
		ProductID:        prod.ID,
		ProductName:      prod.Name,
		Quantity:         qty,
		Price:            prod.Price,
		ARScreenshot:     np.ARScreenshot,
		CustomerApproved: np.CustomerApproved,
		CreatedAt:        core.Now(),
	})
}

// SetProductQuantity updates the quantity of a selected product; a quantity below 1 removes it.
func SetProductQuantity(j *Job, productID string, quantity int) error {
	for i, sp := range j.SelectedProducts {
		if sp.ProductID != productID {
			continue
		}
		if quantity < 1 {
			j.SelectedProducts = append(j.SelectedProducts[:i], j.SelectedProducts[i+1:]...)
		} else {
			j.SelectedProducts[i].Quantity = quantity
		}
		return nil
	}
	return core.NewFieldError("product_id", "product not selected")
}

func ToggleChecklistItem(j *Job, itemID string) error {
	for i := range j.Checklist {
		if j.Checklist[i].ID == itemID {
			j.Checklist[i].Completed = !j.Checklist[i].Completed
			return nil
		}
	}
	return core.NewFieldError("item_id", "checklist item not found")
}
