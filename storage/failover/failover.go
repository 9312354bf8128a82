// Package failover writes to the local store when the remote backend fails.
//
// Reads always go to the primary backend. There is no reconciliation: writes that
// land locally stay local, and each one is logged.
package failover

import (
	"context"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/trezcool/fieldpro/core"
	"github.com/trezcool/fieldpro/core/ar"
	"github.com/trezcool/fieldpro/core/business"
	"github.com/trezcool/fieldpro/core/customer"
	"github.com/trezcool/fieldpro/core/job"
	"github.com/trezcool/fieldpro/core/notification"
	"github.com/trezcool/fieldpro/core/product"
	"github.com/trezcool/fieldpro/core/schedule"
	"github.com/trezcool/fieldpro/core/user"
)

// Backend is a store implementing every domain repository.
type Backend interface {
	user.Repository
	business.Repository
	customer.Repository
	product.Repository
	notification.Repository
	job.Repository
	schedule.Repository
	ar.Repository
}

// domain outcomes, which the local store would not change
var final = []error{
	user.ErrNotFound,
	user.ErrEmailExists,
	business.ErrNotFound,
	customer.ErrNotFound,
	product.ErrNotFound,
	notification.ErrNotFound,
	job.ErrNotFound,
	schedule.ErrNotFound,
	ar.ErrNotFound,
	ar.ErrSceneNotFound,
	context.Canceled,
}

func recoverable(err error) bool {
	for _, e := range final {
		if errors.Is(err, e) {
			return false
		}
	}
	return true
}

type Repository struct {
	Backend // primary, serves reads

	local    Backend
	logger   core.Logger
	degraded atomic.Bool
}

var _ Backend = (*Repository)(nil) // interface compliance check

func New(primary, local Backend, logger core.Logger) *Repository {
	return &Repository{Backend: primary, local: local, logger: logger}
}

// Degraded reports whether any write has landed in the local store.
func (f *Repository) Degraded() bool {
	return f.degraded.Load()
}

func (f *Repository) degrade(op string, err error) {
	if !f.degraded.Swap(true) && f.logger != nil {
		f.logger.Warn("storage degraded: writing to the local store until restart")
	}
	if f.logger != nil {
		f.logger.Warn("remote "+op+" failed, falling back to the local store", err)
	}
}

func write[T any](f *Repository, op string, remote, local func() (T, error)) (T, error) {
	v, err := remote()
	if err == nil || !recoverable(err) {
		return v, err
	}
	f.degrade(op, err)
	return local()
}

// upsert updates locally, creating the entity when the local store never had it.
func upsert[T any](update, create func() (T, error), notFound error) func() (T, error) {
	return func() (T, error) {
		v, err := update()
		if errors.Is(err, notFound) {
			return create()
		}
		return v, err
	}
}

func del(f *Repository, op string, remote, local func() error, notFound error) error {
	err := remote()
	if err == nil || !recoverable(err) {
		return err
	}
	f.degrade(op, err)
	if lerr := local(); lerr != nil {
		if errors.Is(lerr, notFound) {
			// nothing was deleted anywhere
			return err
		}
		return lerr
	}
	return nil
}

func (f *Repository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	return write(f, "create user",
		func() (user.User, error) { return f.Backend.CreateUser(ctx, usr) },
		func() (user.User, error) { return f.local.CreateUser(ctx, usr) })
}

func (f *Repository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	return write(f, "update user",
		func() (user.User, error) { return f.Backend.UpdateUser(ctx, usr) },
		upsert(
			func() (user.User, error) { return f.local.UpdateUser(ctx, usr) },
			func() (user.User, error) { return f.local.CreateUser(ctx, usr) },
			user.ErrNotFound))
}

func (f *Repository) CreateBusiness(ctx context.Context, b business.Business) (business.Business, error) {
	return write(f, "create business",
		func() (business.Business, error) { return f.Backend.CreateBusiness(ctx, b) },
		func() (business.Business, error) { return f.local.CreateBusiness(ctx, b) })
}

func (f *Repository) UpdateBusiness(ctx context.Context, b business.Business) (business.Business, error) {
	return write(f, "update business",
		func() (business.Business, error) { return f.Backend.UpdateBusiness(ctx, b) },
		upsert(
			func() (business.Business, error) { return f.local.UpdateBusiness(ctx, b) },
			func() (business.Business, error) { return f.local.CreateBusiness(ctx, b) },
			business.ErrNotFound))
}

func (f *Repository) DeleteBusiness(ctx context.Context, id string) error {
	return del(f, "delete business",
		func() error { return f.Backend.DeleteBusiness(ctx, id) },
		func() error { return f.local.DeleteBusiness(ctx, id) },
		business.ErrNotFound)
}

func (f *Repository) CreateCustomer(ctx context.Context, c customer.Customer) (customer.Customer, error) {
	return write(f, "create customer",
		func() (customer.Customer, error) { return f.Backend.CreateCustomer(ctx, c) },
		func() (customer.Customer, error) { return f.local.CreateCustomer(ctx, c) })
}

func (f *Repository) UpdateCustomer(ctx context.Context, c customer.Customer) (customer.Customer, error) {
	return write(f, "update customer",
		func() (customer.Customer, error) { return f.Backend.UpdateCustomer(ctx, c) },
		upsert(
			func() (customer.Customer, error) { return f.local.UpdateCustomer(ctx, c) },
			func() (customer.Customer, error) { return f.local.CreateCustomer(ctx, c) },
			customer.ErrNotFound))
}

func (f *Repository) DeleteCustomer(ctx context.Context, id string) error {
	return del(f, "delete customer",
		func() error { return f.Backend.DeleteCustomer(ctx, id) },
		func() error { return f.local.DeleteCustomer(ctx, id) },
		customer.ErrNotFound)
}

func (f *Repository) CreateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	return write(f, "create product",
		func() (product.Product, error) { return f.Backend.CreateProduct(ctx, p) },
		func() (product.Product, error) { return f.local.CreateProduct(ctx, p) })
}

func (f *Repository) UpdateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	return write(f, "update product",
		func() (product.Product, error) { return f.Backend.UpdateProduct(ctx, p) },
		upsert(
			func() (product.Product, error) { return f.local.UpdateProduct(ctx, p) },
			func() (product.Product, error) { return f.local.CreateProduct(ctx, p) },
			product.ErrNotFound))
}

func (f *Repository) DeleteProduct(ctx context.Context, id string) error {
	return del(f, "delete product",
		func() error { return f.Backend.DeleteProduct(ctx, id) },
		func() error { return f.local.DeleteProduct(ctx, id) },
		product.ErrNotFound)
}

func (f *Repository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	return write(f, "create notification",
		func() (notification.Notification, error) { return f.Backend.CreateNotification(ctx, n) },
		func() (notification.Notification, error) { return f.local.CreateNotification(ctx, n) })
}

func (f *Repository) UpdateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	return write(f, "update notification",
		func() (notification.Notification, error) { return f.Backend.UpdateNotification(ctx, n) },
		upsert(
			func() (notification.Notification, error) { return f.local.UpdateNotification(ctx, n) },
			func() (notification.Notification, error) { return f.local.CreateNotification(ctx, n) },
			notification.ErrNotFound))
}

func (f *Repository) DeleteNotification(ctx context.Context, id string) error {
	return del(f, "delete notification",
		func() error { return f.Backend.DeleteNotification(ctx, id) },
		func() error { return f.local.DeleteNotification(ctx, id) },
		notification.ErrNotFound)
}

func (f *Repository) CreateJob(ctx context.Context, j job.Job) (job.Job, error) {
	return write(f, "create job",
		func() (job.Job, error) { return f.Backend.CreateJob(ctx, j) },
		func() (job.Job, error) { return f.local.CreateJob(ctx, j) })
}

func (f *Repository) UpdateJob(ctx context.Context, j job.Job) (job.Job, error) {
	return write(f, "update job",
		func() (job.Job, error) { return f.Backend.UpdateJob(ctx, j) },
		upsert(
			func() (job.Job, error) { return f.local.UpdateJob(ctx, j) },
			func() (job.Job, error) { return f.local.CreateJob(ctx, j) },
			job.ErrNotFound))
}

func (f *Repository) DeleteJob(ctx context.Context, id string) error {
	return del(f, "delete job",
		func() error { return f.Backend.DeleteJob(ctx, id) },
		func() error { return f.local.DeleteJob(ctx, id) },
		job.ErrNotFound)
}

func (f *Repository) SaveWorkingHours(ctx context.Context, userID string, wh schedule.WorkingHours) error {
	_, err := write(f, "save working hours",
		func() (struct{}, error) { return struct{}{}, f.Backend.SaveWorkingHours(ctx, userID, wh) },
		func() (struct{}, error) { return struct{}{}, f.local.SaveWorkingHours(ctx, userID, wh) })
	return err
}

func (f *Repository) CreateAsset(ctx context.Context, a ar.Asset) (ar.Asset, error) {
	return write(f, "create ar asset",
		func() (ar.Asset, error) { return f.Backend.CreateAsset(ctx, a) },
		func() (ar.Asset, error) { return f.local.CreateAsset(ctx, a) })
}

func (f *Repository) DeleteAsset(ctx context.Context, id string) error {
	return del(f, "delete ar asset",
		func() error { return f.Backend.DeleteAsset(ctx, id) },
		func() error { return f.local.DeleteAsset(ctx, id) },
		ar.ErrNotFound)
}

func (f *Repository) CreateScene(ctx context.Context, s ar.Scene) (ar.Scene, error) {
	return write(f, "create ar scene",
		func() (ar.Scene, error) { return f.Backend.CreateScene(ctx, s) },
		func() (ar.Scene, error) { return f.local.CreateScene(ctx, s) })
}

func (f *Repository) DeleteScene(ctx context.Context, id string) error {
	return del(f, "delete ar scene",
		func() error { return f.Backend.DeleteScene(ctx, id) },
		func() error { return f.local.DeleteScene(ctx, id) },
		ar.ErrSceneNotFound)
}
