package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
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

const codeUniqueViolation = "23505"

var (
	usersTable = table{name: rows.TableUsers, key: "id", cols: []string{
		"id", "email", "name", "role", "business_id", "permissions", "is_active", "email_verified",
		"password_hash", "created_at", "updated_at", "last_login",
	}}
	businessesTable = table{name: rows.TableBusinesses, key: "id", cols: []string{
		"id", "name", "address", "phone", "email", "admin_id", "features", "subscription", "vr_view_enabled", "created_at",
	}}
	customersTable = table{name: rows.TableCustomers, key: "id", cols: []string{
		"id", "name", "email", "phone", "mobile", "address", "postcode", "business_id", "created_at",
	}}
	productsTable = table{
		name: rows.TableProducts,
		key:  "id",
		cols: []string{
			"id", "name", "category", "description", "image", "model_3d", "ar_model", "specifications",
			"price", "is_active", "created_at",
		},
		json: map[string]bool{"specifications": true},
	}
	notificationsTable = table{name: rows.TableNotifications, key: "id", cols: []string{
		"id", "user_id", "title", "message", "type", "read", "created_at",
	}}
	jobsTable = table{
		name: rows.TableJobs,
		key:  "id",
		cols: []string{
			"id", "title", "description", "job_type", "status", "customer_id", "employee_id", "business_id",
			"scheduled_date", "scheduled_time", "completed_date", "start_time", "end_time", "quotation",
			"quotation_sent", "invoice", "deposit", "deposit_paid", "payment_method", "customer_reference",
			"signature", "images", "documents", "checklist", "measurements", "selected_products",
			"job_history", "parent_job_id", "workflow_step", "created_at",
		},
		json: map[string]bool{"checklist": true, "measurements": true, "selected_products": true, "job_history": true},
	}
	workingHoursTable = table{
		name: rows.TableWorkingHours,
		key:  "user_id",
		cols: []string{"user_id", "hours"},
		json: map[string]bool{"hours": true},
	}
	assetsTable = table{name: rows.TableARFiles, key: "id", cols: []string{
		"id", "business_id", "name", "kind", "content_type", "size", "path", "created_at",
	}}
	scenesTable = table{name: rows.TableARScenes, key: "id", cols: []string{
		"id", "business_id", "name", "asset_id", "shape", "width", "height", "depth", "radius", "theta", "created_at",
	}}
)

// Repository implements every domain repository over a direct database connection.
// Queries narrow results in SQL; ordering follows the domain Sort so that every backend agrees.
type Repository struct {
	db *sqlx.DB
}

// interface compliance checks
var (
	_ user.Repository         = (*Repository)(nil)
	_ business.Repository     = (*Repository)(nil)
	_ customer.Repository     = (*Repository)(nil)
	_ product.Repository      = (*Repository)(nil)
	_ notification.Repository = (*Repository)(nil)
	_ job.Repository          = (*Repository)(nil)
	_ schedule.Repository     = (*Repository)(nil)
	_ ar.Repository           = (*Repository)(nil)
)

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Ping checks that the database is reachable.
func (repo *Repository) Ping(ctx context.Context) error {
	return errors.Wrap(repo.db.PingContext(ctx), "DB ping")
}

func (repo *Repository) Close() error {
	return repo.db.Close()
}

func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeUniqueViolation
}

func (repo *Repository) get(ctx context.Context, dest interface{}, t table, id string, notFound error) error {
	err := repo.db.GetContext(ctx, dest, repo.db.Rebind(t.selectSQL()+" WHERE "+t.key+" = ?"), id)
	if err != nil {
		return trapNoRowsErr(err, notFound, "selecting "+t.name)
	}
	return nil
}

func (repo *Repository) query(ctx context.Context, dest interface{}, t table, w *where, orderBy string) error {
	q, args, err := w.build(repo.db, t.selectSQL())
	if err != nil {
		return errors.Wrap(err, "building "+t.name+" query")
	}
	if orderBy != "" {
		q += " ORDER BY " + orderBy
	}
	return errors.Wrap(repo.db.SelectContext(ctx, dest, q, args...), "selecting "+t.name)
}

func (repo *Repository) insert(ctx context.Context, t table, row interface{}) error {
	_, err := repo.db.NamedExecContext(ctx, t.insertSQL(), row)
	return err
}

func (repo *Repository) update(ctx context.Context, t table, row interface{}, notFound error) error {
	res, err := repo.db.NamedExecContext(ctx, t.updateSQL(), row)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "updating "+t.name)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func (repo *Repository) delete(ctx context.Context, t table, id string, notFound error) error {
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind("DELETE FROM "+t.name+" WHERE "+t.key+" = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting from "+t.name)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting from "+t.name)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// users

func (repo *Repository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if err := repo.insert(ctx, usersTable, rows.FromUser(usr)); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *Repository) GetUser(ctx context.Context, id string) (user.User, error) {
	var r rows.User
	if err := repo.get(ctx, &r, usersTable, id, user.ErrNotFound); err != nil {
		return user.User{}, err
	}
	return r.ToUser(), nil
}

func (repo *Repository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var r rows.User
	err := repo.db.GetContext(ctx, &r, "SELECT * FROM users WHERE lower(email) = lower($1)", email)
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "selecting user by email")
	}
	return r.ToUser(), nil
}

func (repo *Repository) QueryUsers(ctx context.Context, filter user.QueryFilter, orderings ...core.DBOrdering) ([]user.User, error) {
	w := new(where)
	if filter.Search != "" {
		w.contains(filter.Search, "name", "email")
	}
	if len(filter.Roles) > 0 {
		w.add("role IN (?)", filter.Roles)
	}
	if filter.BusinessID != "" {
		w.add("business_id = ?", filter.BusinessID)
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}

	var rs []rows.User
	if err := repo.query(ctx, &rs, usersTable, w, ""); err != nil {
		return nil, err
	}
	users := make([]user.User, len(rs))
	for i, r := range rs {
		users[i] = r.ToUser()
	}
	user.Sort(users, orderings)
	return users, nil
}

func (repo *Repository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if err := repo.update(ctx, usersTable, rows.FromUser(usr), user.ErrNotFound); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		if err == user.ErrNotFound {
			return user.User{}, err
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return usr, nil
}

// businesses

func (repo *Repository) CreateBusiness(ctx context.Context, b business.Business) (business.Business, error) {
	if err := repo.insert(ctx, businessesTable, rows.FromBusiness(b)); err != nil {
		return business.Business{}, errors.Wrap(err, "inserting business")
	}
	return b, nil
}

func (repo *Repository) GetBusiness(ctx context.Context, id string) (business.Business, error) {
	var r rows.Business
	if err := repo.get(ctx, &r, businessesTable, id, business.ErrNotFound); err != nil {
		return business.Business{}, err
	}
	return r.ToBusiness(), nil
}

func (repo *Repository) QueryBusinesses(ctx context.Context, filter business.QueryFilter) ([]business.Business, error) {
	w := new(where)
	if filter.Search != "" {
		w.contains(filter.Search, "name", "email")
	}
	if filter.Subscription != "" {
		w.add("lower(subscription) = lower(?)", filter.Subscription)
	}

	var rs []rows.Business
	if err := repo.query(ctx, &rs, businessesTable, w, ""); err != nil {
		return nil, err
	}
	businesses := make([]business.Business, len(rs))
	for i, r := range rs {
		businesses[i] = r.ToBusiness()
	}
	business.Sort(businesses)
	return businesses, nil
}

func (repo *Repository) UpdateBusiness(ctx context.Context, b business.Business) (business.Business, error) {
	if err := repo.update(ctx, businessesTable, rows.FromBusiness(b), business.ErrNotFound); err != nil {
		if err == business.ErrNotFound {
			return business.Business{}, err
		}
		return business.Business{}, errors.Wrap(err, "updating business")
	}
	return b, nil
}

func (repo *Repository) DeleteBusiness(ctx context.Context, id string) error {
	return repo.delete(ctx, businessesTable, id, business.ErrNotFound)
}

// customers

func (repo *Repository) CreateCustomer(ctx context.Context, c customer.Customer) (customer.Customer, error) {
	if err := repo.insert(ctx, customersTable, rows.FromCustomer(c)); err != nil {
		return customer.Customer{}, errors.Wrap(err, "inserting customer")
	}
	return c, nil
}

func (repo *Repository) GetCustomer(ctx context.Context, id string) (customer.Customer, error) {
	var r rows.Customer
	if err := repo.get(ctx, &r, customersTable, id, customer.ErrNotFound); err != nil {
		return customer.Customer{}, err
	}
	return r.ToCustomer(), nil
}

func (repo *Repository) QueryCustomers(ctx context.Context, filter customer.QueryFilter) ([]customer.Customer, error) {
	w := new(where)
	if filter.Search != "" {
		w.contains(filter.Search, "name", "email", "phone", "mobile", "postcode")
	}
	if filter.BusinessID != "" {
		w.add("business_id = ?", filter.BusinessID)
	}
	if filter.Email != "" {
		w.add("email = ?", filter.Email)
	}

	var rs []rows.Customer
	if err := repo.query(ctx, &rs, customersTable, w, ""); err != nil {
		return nil, err
	}
	customers := make([]customer.Customer, len(rs))
	for i, r := range rs {
		customers[i] = r.ToCustomer()
	}
	customer.Sort(customers)
	return customers, nil
}

func (repo *Repository) UpdateCustomer(ctx context.Context, c customer.Customer) (customer.Customer, error) {
	if err := repo.update(ctx, customersTable, rows.FromCustomer(c), customer.ErrNotFound); err != nil {
		if err == customer.ErrNotFound {
			return customer.Customer{}, err
		}
		return customer.Customer{}, errors.Wrap(err, "updating customer")
	}
	return c, nil
}

func (repo *Repository) DeleteCustomer(ctx context.Context, id string) error {
	return repo.delete(ctx, customersTable, id, customer.ErrNotFound)
}

// products

func (repo *Repository) CreateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	r, err := rows.FromProduct(p)
	if err != nil {
		return product.Product{}, err
	}
	if err = repo.insert(ctx, productsTable, r); err != nil {
		return product.Product{}, errors.Wrap(err, "inserting product")
	}
	return p, nil
}

func (repo *Repository) GetProduct(ctx context.Context, id string) (product.Product, error) {
	var r rows.Product
	if err := repo.get(ctx, &r, productsTable, id, product.ErrNotFound); err != nil {
		return product.Product{}, err
	}
	return r.ToProduct()
}

func (repo *Repository) QueryProducts(ctx context.Context, filter product.QueryFilter) ([]product.Product, error) {
	w := new(where)
	if filter.Search != "" {
		w.contains(filter.Search, "name", "description")
	}
	if filter.Category != "" {
		w.add("lower(category) = lower(?)", filter.Category)
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}

	var rs []rows.Product
	if err := repo.query(ctx, &rs, productsTable, w, ""); err != nil {
		return nil, err
	}
	products := make([]product.Product, len(rs))
	for i, r := range rs {
		p, err := r.ToProduct()
		if err != nil {
			return nil, err
		}
		products[i] = p
	}
	product.Sort(products)
	return products, nil
}

func (repo *Repository) UpdateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	r, err := rows.FromProduct(p)
	if err != nil {
		return product.Product{}, err
	}
	if err = repo.update(ctx, productsTable, r, product.ErrNotFound); err != nil {
		if err == product.ErrNotFound {
			return product.Product{}, err
		}
		return product.Product{}, errors.Wrap(err, "updating product")
	}
	return p, nil
}

func (repo *Repository) DeleteProduct(ctx context.Context, id string) error {
	return repo.delete(ctx, productsTable, id, product.ErrNotFound)
}

// notifications

func (repo *Repository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	if err := repo.insert(ctx, notificationsTable, rows.FromNotification(n)); err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return n, nil
}

func (repo *Repository) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	var r rows.Notification
	if err := repo.get(ctx, &r, notificationsTable, id, notification.ErrNotFound); err != nil {
		return notification.Notification{}, err
	}
	return r.ToNotification(), nil
}

func (repo *Repository) QueryNotifications(ctx context.Context, filter notification.QueryFilter) ([]notification.Notification, error) {
	w := new(where)
	if filter.UserID != "" {
		w.add("user_id = ?", filter.UserID)
	}
	if filter.Unread {
		w.add("read = ?", false)
	}
	if filter.Type != "" {
		w.add("type = ?", filter.Type)
	}

	var rs []rows.Notification
	if err := repo.query(ctx, &rs, notificationsTable, w, "created_at DESC"); err != nil {
		return nil, err
	}
	notifications := make([]notification.Notification, len(rs))
	for i, r := range rs {
		notifications[i] = r.ToNotification()
	}
	notification.Sort(notifications)
	return notifications, nil
}

func (repo *Repository) UpdateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	if err := repo.update(ctx, notificationsTable, rows.FromNotification(n), notification.ErrNotFound); err != nil {
		if err == notification.ErrNotFound {
			return notification.Notification{}, err
		}
		return notification.Notification{}, errors.Wrap(err, "updating notification")
	}
	return n, nil
}

func (repo *Repository) DeleteNotification(ctx context.Context, id string) error {
	return repo.delete(ctx, notificationsTable, id, notification.ErrNotFound)
}

// jobs

func (repo *Repository) CreateJob(ctx context.Context, j job.Job) (job.Job, error) {
	r, err := rows.FromJob(j)
	if err != nil {
		return job.Job{}, err
	}
	if err = repo.insert(ctx, jobsTable, r); err != nil {
		return job.Job{}, errors.Wrap(err, "inserting job")
	}
	return j, nil
}

func (repo *Repository) GetJob(ctx context.Context, id string) (job.Job, error) {
	var r rows.Job
	if err := repo.get(ctx, &r, jobsTable, id, job.ErrNotFound); err != nil {
		return job.Job{}, err
	}
	return r.ToJob()
}

func jobsWhere(filter job.QueryFilter) *where {
	w := new(where)
	switch {
	case filter.ScopeBusinessID != "" && filter.ScopeEmployeeID != "":
		w.add("(business_id = ? OR employee_id = ?)", filter.ScopeBusinessID, filter.ScopeEmployeeID)
	case filter.ScopeBusinessID != "":
		w.add("business_id = ?", filter.ScopeBusinessID)
	case filter.ScopeEmployeeID != "":
		w.add("employee_id = ?", filter.ScopeEmployeeID)
	}
	if filter.Search != "" {
		w.contains(filter.Search, "title", "description", "customer_reference")
	}
	if len(filter.Statuses) > 0 {
		w.add("status IN (?)", filter.Statuses)
	}
	if filter.JobType != "" {
		w.add("job_type = ?", filter.JobType)
	}
	if filter.EmployeeID != "" {
		w.add("employee_id = ?", filter.EmployeeID)
	}
	if filter.Unassigned {
		w.add("employee_id IS NULL")
	}
	if filter.CustomerID != "" {
		w.add("customer_id = ?", filter.CustomerID)
	}
	if filter.BusinessID != "" {
		w.add("business_id = ?", filter.BusinessID)
	}
	if filter.ParentJobID != "" {
		w.add("parent_job_id = ?", filter.ParentJobID)
	}
	if filter.DateFrom != "" {
		w.add("scheduled_date >= ?", filter.DateFrom)
	}
	if filter.DateTo != "" {
		w.add("scheduled_date <= ?", filter.DateTo)
	}
	return w
}

func (repo *Repository) QueryJobs(ctx context.Context, filter job.QueryFilter, orderings ...core.DBOrdering) ([]job.Job, error) {
	var rs []rows.Job
	if err := repo.query(ctx, &rs, jobsTable, jobsWhere(filter), ""); err != nil {
		return nil, err
	}
	jobs := make([]job.Job, len(rs))
	for i, r := range rs {
		j, err := r.ToJob()
		if err != nil {
			return nil, err
		}
		jobs[i] = j
	}
	job.Sort(jobs, orderings)
	return jobs, nil
}

func (repo *Repository) UpdateJob(ctx context.Context, j job.Job) (job.Job, error) {
	r, err := rows.FromJob(j)
	if err != nil {
		return job.Job{}, err
	}
	if err = repo.update(ctx, jobsTable, r, job.ErrNotFound); err != nil {
		if err == job.ErrNotFound {
			return job.Job{}, err
		}
		return job.Job{}, errors.Wrap(err, "updating job")
	}
	return j, nil
}

func (repo *Repository) DeleteJob(ctx context.Context, id string) error {
	return repo.delete(ctx, jobsTable, id, job.ErrNotFound)
}

// working hours

func (repo *Repository) GetWorkingHours(ctx context.Context, userID string) (schedule.WorkingHours, error) {
	var r rows.WorkingHours
	if err := repo.get(ctx, &r, workingHoursTable, userID, schedule.ErrNotFound); err != nil {
		return schedule.WorkingHours{}, err
	}
	return r.ToWorkingHours()
}

func (repo *Repository) SaveWorkingHours(ctx context.Context, userID string, wh schedule.WorkingHours) error {
	r, err := rows.FromWorkingHours(userID, wh)
	if err != nil {
		return err
	}
	_, err = repo.db.NamedExecContext(ctx, workingHoursTable.upsertSQL(), r)
	return errors.Wrap(err, "upserting working hours")
}

// ar

func (repo *Repository) CreateAsset(ctx context.Context, a ar.Asset) (ar.Asset, error) {
	if err := repo.insert(ctx, assetsTable, rows.FromAsset(a)); err != nil {
		return ar.Asset{}, errors.Wrap(err, "inserting ar file")
	}
	return a, nil
}

func (repo *Repository) GetAsset(ctx context.Context, id string) (ar.Asset, error) {
	var r rows.Asset
	if err := repo.get(ctx, &r, assetsTable, id, ar.ErrNotFound); err != nil {
		return ar.Asset{}, err
	}
	return r.ToAsset(), nil
}

func arWhere(filter ar.QueryFilter) *where {
	w := new(where)
	if filter.Scoped {
		if filter.BusinessID == "" {
			w.add("business_id IS NULL")
		} else {
			w.add("business_id = ?", filter.BusinessID)
		}
	}
	return w
}

func (repo *Repository) QueryAssets(ctx context.Context, filter ar.QueryFilter) ([]ar.Asset, error) {
	w := arWhere(filter)
	if filter.Kind != "" {
		w.add("kind = ?", filter.Kind)
	}

	var rs []rows.Asset
	if err := repo.query(ctx, &rs, assetsTable, w, "created_at DESC"); err != nil {
		return nil, err
	}
	assets := make([]ar.Asset, len(rs))
	for i, r := range rs {
		assets[i] = r.ToAsset()
	}
	return assets, nil
}

func (repo *Repository) DeleteAsset(ctx context.Context, id string) error {
	return repo.delete(ctx, assetsTable, id, ar.ErrNotFound)
}

func (repo *Repository) CreateScene(ctx context.Context, s ar.Scene) (ar.Scene, error) {
	if err := repo.insert(ctx, scenesTable, rows.FromScene(s)); err != nil {
		return ar.Scene{}, errors.Wrap(err, "inserting ar scene")
	}
	return s, nil
}

func (repo *Repository) GetScene(ctx context.Context, id string) (ar.Scene, error) {
	var r rows.Scene
	if err := repo.get(ctx, &r, scenesTable, id, ar.ErrSceneNotFound); err != nil {
		return ar.Scene{}, err
	}
	return r.ToScene(), nil
}

func (repo *Repository) QueryScenes(ctx context.Context, filter ar.QueryFilter) ([]ar.Scene, error) {
	var rs []rows.Scene
	if err := repo.query(ctx, &rs, scenesTable, arWhere(filter), "created_at DESC"); err != nil {
		return nil, err
	}
	scenes := make([]ar.Scene, len(rs))
	for i, r := range rs {
		scenes[i] = r.ToScene()
	}
	return scenes, nil
}

func (repo *Repository) DeleteScene(ctx context.Context, id string) error {
	return repo.delete(ctx, scenesTable, id, ar.ErrSceneNotFound)
}
