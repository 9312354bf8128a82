package supabase

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

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

// Repository implements every domain repository on the hosted tables.
// Filters are narrowed server-side where PostgREST can express them, and the
// domain Match/Sort semantics are always applied on the result.
type Repository struct {
	client    *Client
	transport *ResilientTransport
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

// NewRepository builds a resilient, rate limited client from conf.
// onStateChange, if set, is told about circuit breaker transitions.
func NewRepository(conf core.SupabaseConfig, onStateChange func(from, to CircuitState)) (*Repository, error) {
	retry := DefaultRetryConfig()
	retry.MaxRetries = conf.MaxRetries
	breaker := DefaultCircuitBreakerConfig()
	breaker.OnStateChange = onStateChange
	transport := NewResilientTransport(nil, retry, breaker)

	var limiter *rate.Limiter
	if conf.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(conf.RateLimit), int(conf.RateLimit)+1)
	}

	client, err := New(Config{
		URL:        conf.URL,
		APIKey:     conf.AnonKey,
		HTTPClient: &http.Client{Transport: transport, Timeout: conf.Timeout},
		Limiter:    limiter,
	})
	if err != nil {
		return nil, err
	}
	return &Repository{client: client, transport: transport}, nil
}

// NewRepositoryWithClient is used with a preconfigured client.
func NewRepositoryWithClient(client *Client) *Repository {
	return &Repository{client: client}
}

// Ping checks that the hosted backend is reachable.
func (repo *Repository) Ping(ctx context.Context) error {
	return repo.client.Ping(ctx, rows.TableUsers)
}

// CircuitState reports the state of the circuit breaker, closed when there is none.
func (repo *Repository) CircuitState() CircuitState {
	if repo.transport == nil {
		return CircuitClosed
	}
	return repo.transport.CircuitState()
}

// check turns transport and API errors into errors; an empty result is notFound when not nil.
func check(resp *Response, err error, notFound error, msg string) error {
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if err = resp.Error(); err != nil {
		return errors.Wrap(err, msg)
	}
	if notFound != nil && resp.Empty() {
		return notFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == codeUniqueViolation
}

func selectRows[R any](ctx context.Context, q *QueryBuilder, msg string) ([]R, error) {
	resp, err := q.Select("*").Execute(ctx)
	if err = check(resp, err, nil, msg); err != nil {
		return nil, err
	}
	var rs []R
	if err = resp.JSON(&rs); err != nil {
		return nil, errors.Wrap(err, msg)
	}
	return rs, nil
}

func getRow[R any](ctx context.Context, c *Client, table, id string, notFound error) (R, error) {
	var zero R
	rs, err := selectRows[R](ctx, c.From(table).Eq("id", id).Limit(1), "selecting "+table)
	if err != nil {
		return zero, err
	}
	if len(rs) == 0 {
		return zero, notFound
	}
	return rs[0], nil
}

func insertRow(ctx context.Context, c *Client, table string, row interface{}) error {
	resp, err := c.From(table).ExecuteInsert(ctx, row)
	return check(resp, err, nil, "inserting into "+table)
}

func updateRow(ctx context.Context, c *Client, table, id string, row interface{}, notFound error) error {
	resp, err := c.From(table).Eq("id", id).ExecuteUpdate(ctx, row)
	return check(resp, err, notFound, "updating "+table)
}

func deleteRow(ctx context.Context, c *Client, table, id string, notFound error) error {
	resp, err := c.From(table).Eq("id", id).ExecuteDelete(ctx)
	return check(resp, err, notFound, "deleting from "+table)
}

// users

func (repo *Repository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if err := insertRow(ctx, repo.client, rows.TableUsers, rows.FromUser(usr)); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, err
	}
	return usr, nil
}

func (repo *Repository) GetUser(ctx context.Context, id string) (user.User, error) {
	r, err := getRow[rows.User](ctx, repo.client, rows.TableUsers, id, user.ErrNotFound)
	if err != nil {
		return user.User{}, err
	}
	return r.ToUser(), nil
}

func (repo *Repository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	rs, err := selectRows[rows.User](ctx, repo.client.From(rows.TableUsers).ILike("email", email), "selecting users")
	if err != nil {
		return user.User{}, err
	}
	for _, r := range rs {
		// ilike treats _ as a wildcard
		if strings.EqualFold(r.Email, email) {
			return r.ToUser(), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *Repository) QueryUsers(ctx context.Context, filter user.QueryFilter, orderings ...core.DBOrdering) ([]user.User, error) {
	q := repo.client.From(rows.TableUsers)
	if len(filter.Roles) > 0 {
		q.In("role", filter.Roles...)
	}
	if filter.BusinessID != "" {
		q.Eq("business_id", filter.BusinessID)
	}
	if filter.IsActive != nil {
		q.Is("is_active", *filter.IsActive)
	}
	rs, err := selectRows[rows.User](ctx, q, "selecting users")
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

func (repo *Repository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if err := updateRow(ctx, repo.client, rows.TableUsers, usr.ID, rows.FromUser(usr), user.ErrNotFound); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, err
	}
	return usr, nil
}

// businesses

func (repo *Repository) CreateBusiness(ctx context.Context, b business.Business) (business.Business, error) {
	if err := insertRow(ctx, repo.client, rows.TableBusinesses, rows.FromBusiness(b)); err != nil {
		return business.Business{}, err
	}
	return b, nil
}

func (repo *Repository) GetBusiness(ctx context.Context, id string) (business.Business, error) {
	r, err := getRow[rows.Business](ctx, repo.client, rows.TableBusinesses, id, business.ErrNotFound)
	if err != nil {
		return business.Business{}, err
	}
	return r.ToBusiness(), nil
}

func (repo *Repository) QueryBusinesses(ctx context.Context, filter business.QueryFilter) ([]business.Business, error) {
	q := repo.client.From(rows.TableBusinesses)
	if filter.Subscription != "" {
		q.Eq("subscription", filter.Subscription)
	}
	rs, err := selectRows[rows.Business](ctx, q, "selecting businesses")
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

func (repo *Repository) UpdateBusiness(ctx context.Context, b business.Business) (business.Business, error) {
	err := updateRow(ctx, repo.client, rows.TableBusinesses, b.ID, rows.FromBusiness(b), business.ErrNotFound)
	if err != nil {
		return business.Business{}, err
	}
	return b, nil
}

func (repo *Repository) DeleteBusiness(ctx context.Context, id string) error {
	return deleteRow(ctx, repo.client, rows.TableBusinesses, id, business.ErrNotFound)
}

// customers

func (repo *Repository) CreateCustomer(ctx context.Context, c customer.Customer) (customer.Customer, error) {
	if err := insertRow(ctx, repo.client, rows.TableCustomers, rows.FromCustomer(c)); err != nil {
		return customer.Customer{}, err
	}
	return c, nil
}

func (repo *Repository) GetCustomer(ctx context.Context, id string) (customer.Customer, error) {
	r, err := getRow[rows.Customer](ctx, repo.client, rows.TableCustomers, id, customer.ErrNotFound)
	if err != nil {
		return customer.Customer{}, err
	}
	return r.ToCustomer(), nil
}

func (repo *Repository) QueryCustomers(ctx context.Context, filter customer.QueryFilter) ([]customer.Customer, error) {
	q := repo.client.From(rows.TableCustomers)
	if filter.BusinessID != "" {
		q.Eq("business_id", filter.BusinessID)
	}
	if filter.Email != "" {
		q.Eq("email", filter.Email)
	}
	rs, err := selectRows[rows.Customer](ctx, q, "selecting customers")
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

func (repo *Repository) UpdateCustomer(ctx context.Context, c customer.Customer) (customer.Customer, error) {
	err := updateRow(ctx, repo.client, rows.TableCustomers, c.ID, rows.FromCustomer(c), customer.ErrNotFound)
	if err != nil {
		return customer.Customer{}, err
	}
	return c, nil
}

func (repo *Repository) DeleteCustomer(ctx context.Context, id string) error {
	return deleteRow(ctx, repo.client, rows.TableCustomers, id, customer.ErrNotFound)
}

// products

func (repo *Repository) CreateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	r, err := rows.FromProduct(p)
	if err != nil {
		return product.Product{}, err
	}
	if err = insertRow(ctx, repo.client, rows.TableProducts, r); err != nil {
		return product.Product{}, err
	}
	return p, nil
}

func (repo *Repository) GetProduct(ctx context.Context, id string) (product.Product, error) {
	r, err := getRow[rows.Product](ctx, repo.client, rows.TableProducts, id, product.ErrNotFound)
	if err != nil {
		return product.Product{}, err
	}
	return r.ToProduct()
}

func (repo *Repository) QueryProducts(ctx context.Context, filter product.QueryFilter) ([]product.Product, error) {
	q := repo.client.From(rows.TableProducts)
	if filter.IsActive != nil {
		q.Is("is_active", *filter.IsActive)
	}
	rs, err := selectRows[rows.Product](ctx, q, "selecting products")
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

func (repo *Repository) UpdateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	r, err := rows.FromProduct(p)
	if err != nil {
		return product.Product{}, err
	}
	if err = updateRow(ctx, repo.client, rows.TableProducts, p.ID, r, product.ErrNotFound); err != nil {
		return product.Product{}, err
	}
	return p, nil
}

func (repo *Repository) DeleteProduct(ctx context.Context, id string) error {
	return deleteRow(ctx, repo.client, rows.TableProducts, id, product.ErrNotFound)
}

// notifications

func (repo *Repository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	if err := insertRow(ctx, repo.client, rows.TableNotifications, rows.FromNotification(n)); err != nil {
		return notification.Notification{}, err
	}
	return n, nil
}

func (repo *Repository) GetNotification(ctx context.Context, id string) (notification.Notification, error) {
	r, err := getRow[rows.Notification](ctx, repo.client, rows.TableNotifications, id, notification.ErrNotFound)
	if err != nil {
		return notification.Notification{}, err
	}
	return r.ToNotification(), nil
}

func (repo *Repository) QueryNotifications(ctx context.Context, filter notification.QueryFilter) ([]notification.Notification, error) {
	q := repo.client.From(rows.TableNotifications).Order("created_at", false)
	if filter.UserID != "" {
		q.Eq("user_id", filter.UserID)
	}
	if filter.Unread {
		q.Is("read", false)
	}
	if filter.Type != "" {
		q.Eq("type", filter.Type)
	}
	rs, err := selectRows[rows.Notification](ctx, q, "selecting notifications")
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

func (repo *Repository) UpdateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	err := updateRow(ctx, repo.client, rows.TableNotifications, n.ID, rows.FromNotification(n), notification.ErrNotFound)
	if err != nil {
		return notification.Notification{}, err
	}
	return n, nil
}

func (repo *Repository) DeleteNotification(ctx context.Context, id string) error {
	return deleteRow(ctx, repo.client, rows.TableNotifications, id, notification.ErrNotFound)
}

// jobs

func (repo *Repository) CreateJob(ctx context.Context, j job.Job) (job.Job, error) {
	r, err := rows.FromJob(j)
	if err != nil {
		return job.Job{}, err
	}
	if err = insertRow(ctx, repo.client, rows.TableJobs, r); err != nil {
		return job.Job{}, err
	}
	return j, nil
}

func (repo *Repository) GetJob(ctx context.Context, id string) (job.Job, error) {
	r, err := getRow[rows.Job](ctx, repo.client, rows.TableJobs, id, job.ErrNotFound)
	if err != nil {
		return job.Job{}, err
	}
	return r.ToJob()
}

func (repo *Repository) QueryJobs(ctx context.Context, filter job.QueryFilter, orderings ...core.DBOrdering) ([]job.Job, error) {
	q := repo.client.From(rows.TableJobs)
	switch {
	case filter.ScopeBusinessID != "" && filter.ScopeEmployeeID != "":
		q.Or("business_id.eq."+filter.ScopeBusinessID, "employee_id.eq."+filter.ScopeEmployeeID)
	case filter.ScopeBusinessID != "":
		q.Eq("business_id", filter.ScopeBusinessID)
	case filter.ScopeEmployeeID != "":
		q.Eq("employee_id", filter.ScopeEmployeeID)
	}
	if len(filter.Statuses) > 0 {
		q.In("status", filter.Statuses...)
	}
	if filter.JobType != "" {
		q.Eq("job_type", filter.JobType)
	}
	if filter.EmployeeID != "" {
		q.Eq("employee_id", filter.EmployeeID)
	}
	if filter.Unassigned {
		q.Is("employee_id", "null")
	}
	if filter.CustomerID != "" {
		q.Eq("customer_id", filter.CustomerID)
	}
	if filter.BusinessID != "" {
		q.Eq("business_id", filter.BusinessID)
	}
	if filter.ParentJobID != "" {
		q.Eq("parent_job_id", filter.ParentJobID)
	}
	if filter.DateFrom != "" {
		q.Gte("scheduled_date", filter.DateFrom)
	}
	if filter.DateTo != "" {
		q.Lte("scheduled_date", filter.DateTo)
	}

	rs, err := selectRows[rows.Job](ctx, q, "selecting jobs")
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

func (repo *Repository) UpdateJob(ctx context.Context, j job.Job) (job.Job, error) {
	r, err := rows.FromJob(j)
	if err != nil {
		return job.Job{}, err
	}
	if err = updateRow(ctx, repo.client, rows.TableJobs, j.ID, r, job.ErrNotFound); err != nil {
		return job.Job{}, err
	}
	return j, nil
}

func (repo *Repository) DeleteJob(ctx context.Context, id string) error {
	return deleteRow(ctx, repo.client, rows.TableJobs, id, job.ErrNotFound)
}

// working hours

func (repo *Repository) GetWorkingHours(ctx context.Context, userID string) (schedule.WorkingHours, error) {
	q := repo.client.From(rows.TableWorkingHours).Eq("user_id", userID).Limit(1)
	rs, err := selectRows[rows.WorkingHours](ctx, q, "selecting working hours")
	if err != nil {
		return schedule.WorkingHours{}, err
	}
	if len(rs) == 0 {
		return schedule.WorkingHours{}, schedule.ErrNotFound
	}
	return rs[0].ToWorkingHours()
}

func (repo *Repository) SaveWorkingHours(ctx context.Context, userID string, wh schedule.WorkingHours) error {
	r, err := rows.FromWorkingHours(userID, wh)
	if err != nil {
		return err
	}
	resp, err := repo.client.From(rows.TableWorkingHours).OnConflict("user_id").ExecuteInsert(ctx, r)
	return check(resp, err, nil, "upserting working hours")
}

// ar

func (repo *Repository) CreateAsset(ctx context.Context, a ar.Asset) (ar.Asset, error) {
	if err := insertRow(ctx, repo.client, rows.TableARFiles, rows.FromAsset(a)); err != nil {
		return ar.Asset{}, err
	}
	return a, nil
}

func (repo *Repository) GetAsset(ctx context.Context, id string) (ar.Asset, error) {
	r, err := getRow[rows.Asset](ctx, repo.client, rows.TableARFiles, id, ar.ErrNotFound)
	if err != nil {
		return ar.Asset{}, err
	}
	return r.ToAsset(), nil
}

func (repo *Repository) QueryAssets(ctx context.Context, filter ar.QueryFilter) ([]ar.Asset, error) {
	q := repo.client.From(rows.TableARFiles).Order("created_at", false)
	if filter.Kind != "" {
		q.Eq("kind", filter.Kind)
	}
	rs, err := selectRows[rows.Asset](ctx, q, "selecting ar files")
	if err != nil {
		return nil, err
	}
	assets := make([]ar.Asset, 0, len(rs))
	for _, r := range rs {
		if a := r.ToAsset(); filter.MatchAsset(a) {
			assets = append(assets, a)
		}
	}
	return assets, nil
}

func (repo *Repository) DeleteAsset(ctx context.Context, id string) error {
	return deleteRow(ctx, repo.client, rows.TableARFiles, id, ar.ErrNotFound)
}

func (repo *Repository) CreateScene(ctx context.Context, s ar.Scene) (ar.Scene, error) {
	if err := insertRow(ctx, repo.client, rows.TableARScenes, rows.FromScene(s)); err != nil {
		return ar.Scene{}, err
	}
	return s, nil
}

func (repo *Repository) GetScene(ctx context.Context, id string) (ar.Scene, error) {
	r, err := getRow[rows.Scene](ctx, repo.client, rows.TableARScenes, id, ar.ErrSceneNotFound)
	if err != nil {
		return ar.Scene{}, err
	}
	return r.ToScene(), nil
}

func (repo *Repository) QueryScenes(ctx context.Context, filter ar.QueryFilter) ([]ar.Scene, error) {
	q := repo.client.From(rows.TableARScenes).Order("created_at", false)
	rs, err := selectRows[rows.Scene](ctx, q, "selecting ar scenes")
	if err != nil {
		return nil, err
	}
	scenes := make([]ar.Scene, 0, len(rs))
	for _, r := range rs {
		if s := r.ToScene(); filter.MatchScene(s) {
			scenes = append(scenes, s)
		}
	}
	return scenes, nil
}

func (repo *Repository) DeleteScene(ctx context.Context, id string) error {
	return deleteRow(ctx, repo.client, rows.TableARScenes, id, ar.ErrSceneNotFound)
}
