package localstore

import (
	"context"
	"strings"

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
	"github.com/trezcool/fieldpro/storage/internal/rows"
)

// interface compliance checks
var (
	_ user.Repository         = (*Store)(nil)
	_ business.Repository     = (*Store)(nil)
	_ customer.Repository     = (*Store)(nil)
	_ product.Repository      = (*Store)(nil)
	_ notification.Repository = (*Store)(nil)
	_ job.Repository          = (*Store)(nil)
	_ schedule.Repository     = (*Store)(nil)
	_ ar.Repository           = (*Store)(nil)
)

func userID(r rows.User) string                 { return r.ID }
func businessID(r rows.Business) string         { return r.ID }
func customerID(r rows.Customer) string         { return r.ID }
func productID(r rows.Product) string           { return r.ID }
func notificationID(r rows.Notification) string { return r.ID }
func jobID(r rows.Job) string                   { return r.ID }
func assetID(r rows.Asset) string               { return r.ID }
func sceneID(r rows.Scene) string               { return r.ID }

// users

func (s *Store) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	if err := mutate(s, rows.TableUsers, func(rs []rows.User) ([]rows.User, error) {
		for _, r := range rs {
			if strings.EqualFold(r.Email, usr.Email) {
				return nil, user.ErrEmailExists
			}
		}
		if _, exists := find(rs, userID, usr.ID); exists {
			return nil, errors.Errorf("users: duplicate id %s", usr.ID)
		}
		return append(rs, rows.FromUser(usr)), nil
	}); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	r, err := get(s, rows.TableUsers, userID, id, user.ErrNotFound)
	if err != nil {
		return user.User{}, err
	}
	return r.ToUser(), nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (user.User, error) {
	rs, err := load[rows.User](s, rows.TableUsers)
	if err != nil {
		return user.User{}, err
	}
	for _, r := range rs {
		if strings.EqualFold(r.Email, email) {
			return r.ToUser(), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (s *Store) QueryUsers(_ context.Context, filter user.QueryFilter, orderings ...core.DBOrdering) ([]user.User, error) {
	rs, err := load[rows.User](s, rows.TableUsers)
	if err != nil {
		return nil, err
	}
	users := make([]user.User, 0, len(rs))
	for _, r := range rs {
		if usr := r.ToUser(); filter.Match(usr) {
			users = append(users, usr)
		}
	}
	user.Sort(users, orderings)
	return users, nil
}

func (s *Store) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	if err := mutate(s, rows.TableUsers, func(rs []rows.User) ([]rows.User, error) {
		i, ok := find(rs, userID, usr.ID)
		if !ok {
			return nil, user.ErrNotFound
		}
		for _, r := range rs {
			if r.ID != usr.ID && strings.EqualFold(r.Email, usr.Email) {
				return nil, user.ErrEmailExists
			}
		}
		rs[i] = rows.FromUser(usr)
		return rs, nil
	}); err != nil {
		return user.User{}, err
	}
	return usr, nil
}

// businesses

func (s *Store) CreateBusiness(_ context.Context, b business.Business) (business.Business, error) {
	if err := insert(s, rows.TableBusinesses, businessID, rows.FromBusiness(b)); err != nil {
		return business.Business{}, err
	}
	return b, nil
}

func (s *Store) GetBusiness(_ context.Context, id string) (business.Business, error) {
	r, err := get(s, rows.TableBusinesses, businessID, id, business.ErrNotFound)
	if err != nil {
		return business.Business{}, err
	}
	return r.ToBusiness(), nil
}

func (s *Store) QueryBusinesses(_ context.Context, filter business.QueryFilter) ([]business.Business, error) {
	rs, err := load[rows.Business](s, rows.TableBusinesses)
	if err != nil {
		return nil, err
	}
	businesses := make([]business.Business, 0, len(rs))
	for _, r := range rs {
		if b := r.ToBusiness(); filter.Match(b) {
			businesses = append(businesses, b)
		}
	}
	business.Sort(businesses)
	return businesses, nil
}

func (s *Store) UpdateBusiness(_ context.Context, b business.Business) (business.Business, error) {
	if err := replace(s, rows.TableBusinesses, businessID, rows.FromBusiness(b), business.ErrNotFound); err != nil {
		return business.Business{}, err
	}
	return b, nil
}

func (s *Store) DeleteBusiness(_ context.Context, id string) error {
	return remove(s, rows.TableBusinesses, businessID, id, business.ErrNotFound)
}

// customers

func (s *Store) CreateCustomer(_ context.Context, c customer.Customer) (customer.Customer, error) {
	if err := insert(s, rows.TableCustomers, customerID, rows.FromCustomer(c)); err != nil {
		return customer.Customer{}, err
	}
	return c, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (customer.Customer, error) {
	r, err := get(s, rows.TableCustomers, customerID, id, customer.ErrNotFound)
	if err != nil {
		return customer.Customer{}, err
	}
	return r.ToCustomer(), nil
}

func (s *Store) QueryCustomers(_ context.Context, filter customer.QueryFilter) ([]customer.Customer, error) {
	rs, err := load[rows.Customer](s, rows.TableCustomers)
	if err != nil {
		return nil, err
	}
	customers := make([]customer.Customer, 0, len(rs))
	for _, r := range rs {
		if c := r.ToCustomer(); filter.Match(c) {
			customers = append(customers, c)
		}
	}
	customer.Sort(customers)
	return customers, nil
}

func (s *Store) UpdateCustomer(_ context.Context, c customer.Customer) (customer.Customer, error) {
	if err := replace(s, rows.TableCustomers, customerID, rows.FromCustomer(c), customer.ErrNotFound); err != nil {
		return customer.Customer{}, err
	}
	return c, nil
}

func (s *Store) DeleteCustomer(_ context.Context, id string) error {
	return remove(s, rows.TableCustomers, customerID, id, customer.ErrNotFound)
}

// products

func (s *Store) CreateProduct(_ context.Context, p product.Product) (product.Product, error) {
	r, err := rows.FromProduct(p)
	if err != nil {
		return product.Product{}, err
	}
	if err = insert(s, rows.TableProducts, productID, r); err != nil {
		return product.Product{}, err
	}
	return p, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (product.Product, error) {
	r, err := get(s, rows.TableProducts, productID, id, product.ErrNotFound)
	if err != nil {
		return product.Product{}, err
	}
	return r.ToProduct()
}

func (s *Store) QueryProducts(_ context.Context, filter product.QueryFilter) ([]product.Product, error) {
	rs, err := load[rows.Product](s, rows.TableProducts)
	if err != nil {
		return nil, err
	}
	products := make([]product.Product, 0, len(rs))
	for _, r := range rs {
		p, err := r.ToProduct()
		if err != nil {
			return nil, err
		}
		if filter.Match(p) {
			products = append(products, p)
		}
	}
	product.Sort(products)
	return products, nil
}

func (s *Store) UpdateProduct(_ context.Context, p product.Product) (product.Product, error) {
	r, err := rows.FromProduct(p)
	if err != nil {
		return product.Product{}, err
	}
	if err = replace(s, rows.TableProducts, productID, r, product.ErrNotFound); err != nil {
		return product.Product{}, err
	}
	return p, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	return remove(s, rows.TableProducts, productID, id, product.ErrNotFound)
}

// notifications

func (s *Store) CreateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	if err := insert(s, rows.TableNotifications, notificationID, rows.FromNotification(n)); err != nil {
		return notification.Notification{}, err
	}
	return n, nil
}

func (s *Store) GetNotification(_ context.Context, id string) (notification.Notification, error) {
	r, err := get(s, rows.TableNotifications, notificationID, id, notification.ErrNotFound)
	if err != nil {
		return notification.Notification{}, err
	}
	return r.ToNotification(), nil
}

func (s *Store) QueryNotifications(_ context.Context, filter notification.QueryFilter) ([]notification.Notification, error) {
	rs, err := load[rows.Notification](s, rows.TableNotifications)
	if err != nil {
		return nil, err
	}
	notifications := make([]notification.Notification, 0, len(rs))
	for _, r := range rs {
		if n := r.ToNotification(); filter.Match(n) {
			notifications = append(notifications, n)
		}
	}
	notification.Sort(notifications)
	return notifications, nil
}

func (s *Store) UpdateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	err := replace(s, rows.TableNotifications, notificationID, rows.FromNotification(n), notification.ErrNotFound)
	if err != nil {
		return notification.Notification{}, err
	}
	return n, nil
}

func (s *Store) DeleteNotification(_ context.Context, id string) error {
	return remove(s, rows.TableNotifications, notificationID, id, notification.ErrNotFound)
}

// jobs

func (s *Store) CreateJob(_ context.Context, j job.Job) (job.Job, error) {
	r, err := rows.FromJob(j)
	if err != nil {
		return job.Job{}, err
	}
	if err = insert(s, rows.TableJobs, jobID, r); err != nil {
		return job.Job{}, err
	}
	return j, nil
}

func (s *Store) GetJob(_ context.Context, id string) (job.Job, error) {
	r, err := get(s, rows.TableJobs, jobID, id, job.ErrNotFound)
	if err != nil {
		return job.Job{}, err
	}
	return r.ToJob()
}

func (s *Store) QueryJobs(_ context.Context, filter job.QueryFilter, orderings ...core.DBOrdering) ([]job.Job, error) {
	rs, err := load[rows.Job](s, rows.TableJobs)
	if err != nil {
		return nil, err
	}
	jobs := make([]job.Job, 0, len(rs))
	for _, r := range rs {
		j, err := r.ToJob()
		if err != nil {
			return nil, err
		}
		if filter.Match(j) {
			jobs = append(jobs, j)
		}
	}
	job.Sort(jobs, orderings)
	return jobs, nil
}

func (s *Store) UpdateJob(_ context.Context, j job.Job) (job.Job, error) {
	r, err := rows.FromJob(j)
	if err != nil {
		return job.Job{}, err
	}
	if err = replace(s, rows.TableJobs, jobID, r, job.ErrNotFound); err != nil {
		return job.Job{}, err
	}
	return j, nil
}

func (s *Store) DeleteJob(_ context.Context, id string) error {
	return remove(s, rows.TableJobs, jobID, id, job.ErrNotFound)
}

// working hours, one document per user

func workingHoursKey(userID string) string {
	return rows.TableWorkingHours + "_" + userID
}

func (s *Store) GetWorkingHours(_ context.Context, userID string) (schedule.WorkingHours, error) {
	var r rows.WorkingHours
	found, err := s.Get(workingHoursKey(userID), &r)
	if err != nil {
		return schedule.WorkingHours{}, err
	}
	if !found {
		return schedule.WorkingHours{}, schedule.ErrNotFound
	}
	return r.ToWorkingHours()
}

func (s *Store) SaveWorkingHours(_ context.Context, userID string, wh schedule.WorkingHours) error {
	r, err := rows.FromWorkingHours(userID, wh)
	if err != nil {
		return err
	}
	return s.Put(workingHoursKey(userID), r)
}

// WorkingHoursUsers lists the users with saved working hours.
func (s *Store) WorkingHoursUsers() ([]string, error) {
	keys, err := s.Keys(workingHoursKey("*"))
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = strings.TrimPrefix(k, workingHoursKey(""))
	}
	return ids, nil
}

// ar

func (s *Store) CreateAsset(_ context.Context, a ar.Asset) (ar.Asset, error) {
	if err := insert(s, rows.TableARFiles, assetID, rows.FromAsset(a)); err != nil {
		return ar.Asset{}, err
	}
	return a, nil
}

func (s *Store) GetAsset(_ context.Context, id string) (ar.Asset, error) {
	r, err := get(s, rows.TableARFiles, assetID, id, ar.ErrNotFound)
	if err != nil {
		return ar.Asset{}, err
	}
	return r.ToAsset(), nil
}

func (s *Store) QueryAssets(_ context.Context, filter ar.QueryFilter) ([]ar.Asset, error) {
	rs, err := load[rows.Asset](s, rows.TableARFiles)
	if err != nil {
		return nil, err
	}
	assets := make([]ar.Asset, 0, len(rs))
	for i := len(rs) - 1; i >= 0; i-- { // newest first
		if a := rs[i].ToAsset(); filter.MatchAsset(a) {
			assets = append(assets, a)
		}
	}
	return assets, nil
}

func (s *Store) DeleteAsset(_ context.Context, id string) error {
	return remove(s, rows.TableARFiles, assetID, id, ar.ErrNotFound)
}

func (s *Store) CreateScene(_ context.Context, sc ar.Scene) (ar.Scene, error) {
	if err := insert(s, rows.TableARScenes, sceneID, rows.FromScene(sc)); err != nil {
		return ar.Scene{}, err
	}
	return sc, nil
}

func (s *Store) GetScene(_ context.Context, id string) (ar.Scene, error) {
	r, err := get(s, rows.TableARScenes, sceneID, id, ar.ErrSceneNotFound)
	if err != nil {
		return ar.Scene{}, err
	}
	return r.ToScene(), nil
}

func (s *Store) QueryScenes(_ context.Context, filter ar.QueryFilter) ([]ar.Scene, error) {
	rs, err := load[rows.Scene](s, rows.TableARScenes)
	if err != nil {
		return nil, err
	}
	scenes := make([]ar.Scene, 0, len(rs))
	for i := len(rs) - 1; i >= 0; i-- {
		if sc := rs[i].ToScene(); filter.MatchScene(sc) {
			scenes = append(scenes, sc)
		}
	}
	return scenes, nil
}

func (s *Store) DeleteScene(_ context.Context, id string) error {
	return remove(s, rows.TableARScenes, sceneID, id, ar.ErrSceneNotFound)
}
