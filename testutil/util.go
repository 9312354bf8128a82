// Package testutil creates entities in a throwaway local store for tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/fieldpro/core"
	"github.com/trezcool/fieldpro/core/business"
	"github.com/trezcool/fieldpro/core/customer"
	"github.com/trezcool/fieldpro/core/job"
	"github.com/trezcool/fieldpro/core/product"
	"github.com/trezcool/fieldpro/core/user"
	"github.com/trezcool/fieldpro/storage/localstore"
)

// OpenStore opens a local store in a temp dir, closed when the test ends.
func OpenStore(t *testing.T) *localstore.Store {
	t.Helper()
	store, err := localstore.Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("OpenStore() failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd, role, businessID string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := core.Now()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:          core.NewID(),
		Name:        name,
		Email:       email,
		Role:        role,
		BusinessID:  businessID,
		Permissions: []string{},
		IsActive:    isActive,
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateBusiness(t *testing.T, repo business.Repository, name string) business.Business {
	t.Helper()
	b, err := repo.CreateBusiness(context.Background(), business.Business{
		ID:           core.NewID(),
		Name:         name,
		Address:      "1 High Street",
		Email:        "office@" + core.NewID()[:8] + ".test",
		Features:     []string{},
		Subscription: business.SubscriptionBasic,
		CreatedAt:    core.Now(),
	})
	if err != nil {
		t.Fatalf("CreateBusiness() failed: %v", err)
	}
	return b
}

func CreateCustomer(t *testing.T, repo customer.Repository, name, email, businessID string) customer.Customer {
	t.Helper()
	c, err := repo.CreateCustomer(context.Background(), customer.Customer{
		ID:         core.NewID(),
		Name:       name,
		Email:      email,
		Address:    "12 Rose Lane",
		Postcode:   "AB1 2CD",
		BusinessID: businessID,
		CreatedAt:  core.Now(),
	})
	if err != nil {
		t.Fatalf("CreateCustomer() failed: %v", err)
	}
	return c
}

func CreateProduct(t *testing.T, repo product.Repository, name, category string, price float64, isActive bool) product.Product {
	t.Helper()
	p, err := repo.CreateProduct(context.Background(), product.Product{
		ID:             core.NewID(),
		Name:           name,
		Category:       category,
		Specifications: map[string]string{},
		Price:          price,
		IsActive:       isActive,
		CreatedAt:      core.Now(),
	})
	if err != nil {
		t.Fatalf("CreateProduct() failed: %v", err)
	}
	return p
}

// CreateJob creates a pending job; employeeID may be empty.
func CreateJob(t *testing.T, repo job.Repository, jobType, businessID, customerID, employeeID, date string) job.Job {
	t.Helper()
	status := job.StatusPending
	if employeeID != "" {
		status = job.StatusConfirmed
	}
	j, err := repo.CreateJob(context.Background(), job.Job{
		ID:                core.NewID(),
		Title:             "Fit blinds",
		JobType:           jobType,
		Status:            status,
		CustomerID:        customerID,
		EmployeeID:        employeeID,
		BusinessID:        businessID,
		ScheduledDate:     date,
		ScheduledTime:     "10:00",
		CustomerReference: "REF-000001",
		Images:            []string{},
		Documents:         []string{},
		Checklist:         job.DefaultChecklist(jobType),
		Measurements:      []job.Measurement{},
		SelectedProducts:  []job.SelectedProduct{},
		WorkflowStep:      job.StepStart,
		CreatedAt:         core.Now(),
	})
	if err != nil {
		t.Fatalf("CreateJob() failed: %v", err)
	}
	return j
}
