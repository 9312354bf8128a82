package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/fieldpro/core/product"
)

func TestAddProduct(t *testing.T) {
	roller := product.Product{ID: "p1", Name: "Roller", Price: 99}
	vertical := product.Product{ID: "p2", Name: "Vertical", Price: 120}

	j := newTestJob(TypeMeasurement)
	AddProduct(&j, roller, NewSelectedProduct{ProductID: roller.ID})
	AddProduct(&j, vertical, NewSelectedProduct{ProductID: vertical.ID, Quantity: 2})
	AddProduct(&j, roller, NewSelectedProduct{ProductID: roller.ID, Quantity: 3, CustomerApproved: true})

	require.Len(t, j.SelectedProducts, 2)
	assert.Equal(t, 4, j.SelectedProducts[0].Quantity)
	assert.True(t, j.SelectedProducts[0].CustomerApproved)
	assert.Equal(t, "Roller", j.SelectedProducts[0].ProductName)
	assert.Equal(t, 99.0, j.SelectedProducts[0].Price)
	assert.Equal(t, 2, j.SelectedProducts[1].Quantity)
}

func TestSetProductQuantity(t *testing.T) {
	j := newTestJob(TypeMeasurement)
	AddProduct(&j, product.Product{ID: "p1", Name: "Roller"}, NewSelectedProduct{})
	AddProduct(&j, product.Product{ID: "p2", Name: "Roman"}, NewSelectedProduct{})

	require.NoError(t, SetProductQuantity(&j, "p2", 5))
	assert.Equal(t, 5, j.SelectedProducts[1].Quantity)

	require.NoError(t, SetProductQuantity(&j, "p1", 0))
	require.Len(t, j.SelectedProducts, 1)
	assert.Equal(t, "p2", j.SelectedProducts[0].ProductID)

	assert.Error(t, SetProductQuantity(&j, "p1", 1))
}

func TestToggleChecklistItem(t *testing.T) {
	j := newTestJob(TypeInstallation)
	require.Len(t, j.Checklist, 5)
	assert.Equal(t, "Installation preparation", j.Checklist[0].Text)

	id := j.Checklist[2].ID
	require.NoError(t, ToggleChecklistItem(&j, id))
	assert.True(t, j.Checklist[2].Completed)
	require.NoError(t, ToggleChecklistItem(&j, id))
	assert.False(t, j.Checklist[2].Completed)

	assert.Error(t, ToggleChecklistItem(&j, "nope"))
}
