// Package rows holds the persisted shape of every entity, shared by all storage adapters.
// Field names are the snake_case column names of the hosted backend; the local store
// serialises the same rows to JSON.
package rows

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/fieldpro/core/ar"
	"github.com/trezcool/fieldpro/core/business"
	"github.com/trezcool/fieldpro/core/customer"
	"github.com/trezcool/fieldpro/core/job"
	"github.com/trezcool/fieldpro/core/notification"
	"github.com/trezcool/fieldpro/core/product"
	"github.com/trezcool/fieldpro/core/schedule"
	"github.com/trezcool/fieldpro/core/user"
)

// Table names, also the keys of the local store.
const (
	TableUsers         = "users"
	TableBusinesses    = "businesses"
	TableCustomers     = "customers"
	TableProducts      = "products"
	TableJobs          = "jobs"
	TableNotifications = "notifications"
	TableWorkingHours  = "working_hours"
	TableARFiles       = "ar_files"
	TableARScenes      = "ar_scenes"
)

func strings(s []string) pq.StringArray {
	if s == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(s)
}

func unstrings(s pq.StringArray) []string {
	if s == nil {
		return []string{}
	}
	return []string(s)
}

func marshalJSON(v interface{}) (null.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return null.JSON{}, err
	}
	return null.JSONFrom(b), nil
}

func unmarshalJSON(j null.JSON, v interface{}) error {
	if !j.Valid || len(j.JSON) == 0 {
		return nil
	}
	return json.Unmarshal(j.JSON, v)
}

func timePtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

type User struct {
	ID            string         `db:"id" json:"id"`
	Email         string         `db:"email" json:"email"`
	Name          string         `db:"name" json:"name"`
	Role          string         `db:"role" json:"role"`
	BusinessID    null.String    `db:"business_id" json:"business_id"`
	Permissions   pq.StringArray `db:"permissions" json:"permissions"`
	IsActive      bool           `db:"is_active" json:"is_active"`
	EmailVerified bool           `db:"email_verified" json:"email_verified"`
	PasswordHash  string         `db:"password_hash" json:"password_hash"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
	LastLogin     null.Time      `db:"last_login" json:"last_login"`
}

func FromUser(u user.User) User {
	return User{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Role:          u.Role,
		BusinessID:    null.NewString(u.BusinessID, u.BusinessID != ""),
		Permissions:   strings(u.Permissions),
		IsActive:      u.IsActive,
		EmailVerified: u.EmailVerified,
		PasswordHash:  string(u.PasswordHash),
		CreatedAt:     u.CreatedAt.UTC(),
		UpdatedAt:     u.UpdatedAt.UTC(),
		LastLogin:     null.NewTime(u.LastLogin.UTC(), !u.LastLogin.IsZero()),
	}
}

func (r User) ToUser() user.User {
	usr := user.User{
		ID:            r.ID,
		Email:         r.Email,
		Name:          r.Name,
		Role:          r.Role,
		BusinessID:    r.BusinessID.String,
		Permissions:   unstrings(r.Permissions),
		IsActive:      r.IsActive,
		EmailVerified: r.EmailVerified,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
		LastLogin:     r.LastLogin.Time.UTC(),
	}
	if r.PasswordHash != "" {
		usr.PasswordHash = []byte(r.PasswordHash)
	}
	return usr
}

type Business struct {
	ID            string         `db:"id" json:"id"`
	Name          string         `db:"name" json:"name"`
	Address       string         `db:"address" json:"address"`
	Phone         string         `db:"phone" json:"phone"`
	Email         string         `db:"email" json:"email"`
	AdminID       null.String    `db:"admin_id" json:"admin_id"`
	Features      pq.StringArray `db:"features" json:"features"`
	Subscription  string         `db:"subscription" json:"subscription"`
	VRViewEnabled bool           `db:"vr_view_enabled" json:"vr_view_enabled"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

func FromBusiness(b business.Business) Business {
	return Business{
		ID:            b.ID,
		Name:          b.Name,
		Address:       b.Address,
		Phone:         b.Phone,
		Email:         b.Email,
		AdminID:       null.NewString(b.AdminID, b.AdminID != ""),
		Features:      strings(b.Features),
		Subscription:  b.Subscription,
		VRViewEnabled: b.VRViewEnabled,
		CreatedAt:     b.CreatedAt.UTC(),
	}
}

func (r Business) ToBusiness() business.Business {
	return business.Business{
		ID:            r.ID,
		Name:          r.Name,
		Address:       r.Address,
		Phone:         r.Phone,
		Email:         r.Email,
		AdminID:       r.AdminID.String,
		Features:      unstrings(r.Features),
		Subscription:  r.Subscription,
		VRViewEnabled: r.VRViewEnabled,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

type Customer struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Email      string    `db:"email" json:"email"`
	Phone      string    `db:"phone" json:"phone"`
	Mobile     string    `db:"mobile" json:"mobile"`
	Address    string    `db:"address" json:"address"`
	Postcode   string    `db:"postcode" json:"postcode"`
	BusinessID string    `db:"business_id" json:"business_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

func FromCustomer(c customer.Customer) Customer {
	return Customer{
		ID:         c.ID,
		Name:       c.Name,
		Email:      c.Email,
		Phone:      c.Phone,
		Mobile:     c.Mobile,
		Address:    c.Address,
		Postcode:   c.Postcode,
		BusinessID: c.BusinessID,
		CreatedAt:  c.CreatedAt.UTC(),
	}
}

func (r Customer) ToCustomer() customer.Customer {
	return customer.Customer{
		ID:         r.ID,
		Name:       r.Name,
		Email:      r.Email,
		Phone:      r.Phone,
		Mobile:     r.Mobile,
		Address:    r.Address,
		Postcode:   r.Postcode,
		BusinessID: r.BusinessID,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

type Product struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Category       string    `db:"category" json:"category"`
	Description    string    `db:"description" json:"description"`
	Image          string    `db:"image" json:"image"`
	Model3D        string    `db:"model_3d" json:"model_3d"`
	ARModel        string    `db:"ar_model" json:"ar_model"`
	Specifications null.JSON `db:"specifications" json:"specifications"`
	Price          float64   `db:"price" json:"price"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

func FromProduct(p product.Product) (Product, error) {
	specs := p.Specifications
	if specs == nil {
		specs = map[string]string{}
	}
	js, err := marshalJSON(specs)
	if err != nil {
		return Product{}, errors.Wrap(err, "marshalling specifications")
	}
	return Product{
		ID:             p.ID,
		Name:           p.Name,
		Category:       p.Category,
		Description:    p.Description,
		Image:          p.Image,
		Model3D:        p.Model3D,
		ARModel:        p.ARModel,
		Specifications: js,
		Price:          p.Price,
		IsActive:       p.IsActive,
		CreatedAt:      p.CreatedAt.UTC(),
	}, nil
}

func (r Product) ToProduct() (product.Product, error) {
	p := product.Product{
		ID:             r.ID,
		Name:           r.Name,
		Category:       r.Category,
		Description:    r.Description,
		Image:          r.Image,
		Model3D:        r.Model3D,
		ARModel:        r.ARModel,
		Specifications: map[string]string{},
		Price:          r.Price,
		IsActive:       r.IsActive,
		CreatedAt:      r.CreatedAt.UTC(),
	}
	if err := unmarshalJSON(r.Specifications, &p.Specifications); err != nil {
		return product.Product{}, errors.Wrapf(err, "unmarshalling specifications of product %s", r.ID)
	}
	return p, nil
}

type Notification struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Title     string    `db:"title" json:"title"`
	Message   string    `db:"message" json:"message"`
	Type      string    `db:"type" json:"type"`
	Read      bool      `db:"read" json:"read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func FromNotification(n notification.Notification) Notification {
	return Notification{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Message:   n.Message,
		Type:      n.Type,
		Read:      n.Read,
		CreatedAt: n.CreatedAt.UTC(),
	}
}

func (r Notification) ToNotification() notification.Notification {
	return notification.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Title:     r.Title,
		Message:   r.Message,
		Type:      r.Type,
		Read:      r.Read,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type Job struct {
	ID                string         `db:"id" json:"id"`
	Title             string         `db:"title" json:"title"`
	Description       string         `db:"description" json:"description"`
	JobType           string         `db:"job_type" json:"job_type"`
	Status            string         `db:"status" json:"status"`
	CustomerID        string         `db:"customer_id" json:"customer_id"`
	EmployeeID        null.String    `db:"employee_id" json:"employee_id"`
	BusinessID        string         `db:"business_id" json:"business_id"`
	ScheduledDate     string         `db:"scheduled_date" json:"scheduled_date"`
	ScheduledTime     string         `db:"scheduled_time" json:"scheduled_time"`
	CompletedDate     null.String    `db:"completed_date" json:"completed_date"`
	StartTime         null.Time      `db:"start_time" json:"start_time"`
	EndTime           null.Time      `db:"end_time" json:"end_time"`
	Quotation         float64        `db:"quotation" json:"quotation"`
	QuotationSent     bool           `db:"quotation_sent" json:"quotation_sent"`
	Invoice           float64        `db:"invoice" json:"invoice"`
	Deposit           float64        `db:"deposit" json:"deposit"`
	DepositPaid       bool           `db:"deposit_paid" json:"deposit_paid"`
	PaymentMethod     null.String    `db:"payment_method" json:"payment_method"`
	CustomerReference string         `db:"customer_reference" json:"customer_reference"`
	Signature         null.String    `db:"signature" json:"signature"`
	Images            pq.StringArray `db:"images" json:"images"`
	Documents         pq.StringArray `db:"documents" json:"documents"`
	Checklist         null.JSON      `db:"checklist" json:"checklist"`
	Measurements      null.JSON      `db:"measurements" json:"measurements"`
	SelectedProducts  null.JSON      `db:"selected_products" json:"selected_products"`
	JobHistory        null.JSON      `db:"job_history" json:"job_history"`
	ParentJobID       null.String    `db:"parent_job_id" json:"parent_job_id"`
	WorkflowStep      string         `db:"workflow_step" json:"workflow_step"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
}

func FromJob(j job.Job) (Job, error) {
	r := Job{
		ID:                j.ID,
		Title:             j.Title,
		Description:       j.Description,
		JobType:           j.JobType,
		Status:            j.Status,
		CustomerID:        j.CustomerID,
		EmployeeID:        null.NewString(j.EmployeeID, j.EmployeeID != ""),
		BusinessID:        j.BusinessID,
		ScheduledDate:     j.ScheduledDate,
		ScheduledTime:     j.ScheduledTime,
		CompletedDate:     null.NewString(j.CompletedDate, j.CompletedDate != ""),
		StartTime:         null.TimeFromPtr(j.StartTime),
		EndTime:           null.TimeFromPtr(j.EndTime),
		Quotation:         j.Quotation,
		QuotationSent:     j.QuotationSent,
		Invoice:           j.Invoice,
		Deposit:           j.Deposit,
		DepositPaid:       j.DepositPaid,
		PaymentMethod:     null.NewString(j.PaymentMethod, j.PaymentMethod != ""),
		CustomerReference: j.CustomerReference,
		Signature:         null.NewString(j.Signature, j.Signature != ""),
		Images:            strings(j.Images),
		Documents:         strings(j.Documents),
		ParentJobID:       null.NewString(j.ParentJobID, j.ParentJobID != ""),
		WorkflowStep:      j.WorkflowStep,
		CreatedAt:         j.CreatedAt.UTC(),
	}

	var err error
	if r.Checklist, err = marshalJSON(nonNil(j.Checklist)); err != nil {
		return Job{}, errors.Wrap(err, "marshalling checklist")
	}
	if r.Measurements, err = marshalJSON(nonNil(j.Measurements)); err != nil {
		return Job{}, errors.Wrap(err, "marshalling measurements")
	}
	if r.SelectedProducts, err = marshalJSON(nonNil(j.SelectedProducts)); err != nil {
		return Job{}, errors.Wrap(err, "marshalling selected products")
	}
	if r.JobHistory, err = marshalJSON(nonNil(j.JobHistory)); err != nil {
		return Job{}, errors.Wrap(err, "marshalling job history")
	}
	return r, nil
}

// nonNil stores empty lists as [] rather than null.
func nonNil(v interface{}) interface{} {
	switch s := v.(type) {
	case []job.ChecklistItem:
		if s == nil {
			return []job.ChecklistItem{}
		}
	case []job.Measurement:
		if s == nil {
			return []job.Measurement{}
		}
	case []job.SelectedProduct:
		if s == nil {
			return []job.SelectedProduct{}
		}
	case []job.HistoryEntry:
		if s == nil {
			return []job.HistoryEntry{}
		}
	}
	return v
}

func (r Job) ToJob() (job.Job, error) {
	j := job.Job{
		ID:                r.ID,
		Title:             r.Title,
		Description:       r.Description,
		JobType:           r.JobType,
		Status:            r.Status,
		CustomerID:        r.CustomerID,
		EmployeeID:        r.EmployeeID.String,
		BusinessID:        r.BusinessID,
		ScheduledDate:     r.ScheduledDate,
		ScheduledTime:     r.ScheduledTime,
		CompletedDate:     r.CompletedDate.String,
		StartTime:         timePtr(r.StartTime),
		EndTime:           timePtr(r.EndTime),
		Quotation:         r.Quotation,
		QuotationSent:     r.QuotationSent,
		Invoice:           r.Invoice,
		Deposit:           r.Deposit,
		DepositPaid:       r.DepositPaid,
		PaymentMethod:     r.PaymentMethod.String,
		CustomerReference: r.CustomerReference,
		Signature:         r.Signature.String,
		Images:            unstrings(r.Images),
		Documents:         unstrings(r.Documents),
		Checklist:         []job.ChecklistItem{},
		Measurements:      []job.Measurement{},
		SelectedProducts:  []job.SelectedProduct{},
		JobHistory:        []job.HistoryEntry{},
		ParentJobID:       r.ParentJobID.String,
		WorkflowStep:      r.WorkflowStep,
		CreatedAt:         r.CreatedAt.UTC(),
	}
	if j.WorkflowStep == "" {
		j.WorkflowStep = job.StepStart
	}

	for _, f := range []struct {
		name string
		src  null.JSON
		dst  interface{}
	}{
		{"checklist", r.Checklist, &j.Checklist},
		{"measurements", r.Measurements, &j.Measurements},
		{"selected products", r.SelectedProducts, &j.SelectedProducts},
		{"job history", r.JobHistory, &j.JobHistory},
	} {
		if err := unmarshalJSON(f.src, f.dst); err != nil {
			return job.Job{}, errors.Wrapf(err, "unmarshalling %s of job %s", f.name, r.ID)
		}
	}
	return j, nil
}

type WorkingHours struct {
	UserID string    `db:"user_id" json:"user_id"`
	Hours  null.JSON `db:"hours" json:"hours"`
}

func FromWorkingHours(userID string, wh schedule.WorkingHours) (WorkingHours, error) {
	js, err := marshalJSON(wh)
	if err != nil {
		return WorkingHours{}, errors.Wrap(err, "marshalling working hours")
	}
	return WorkingHours{UserID: userID, Hours: js}, nil
}

func (r WorkingHours) ToWorkingHours() (schedule.WorkingHours, error) {
	wh := schedule.DefaultWorkingHours()
	if err := unmarshalJSON(r.Hours, &wh); err != nil {
		return schedule.WorkingHours{}, errors.Wrapf(err, "unmarshalling working hours of user %s", r.UserID)
	}
	return wh, nil
}

type Asset struct {
	ID          string      `db:"id" json:"id"`
	BusinessID  null.String `db:"business_id" json:"business_id"`
	Name        string      `db:"name" json:"name"`
	Kind        string      `db:"kind" json:"kind"`
	ContentType string      `db:"content_type" json:"content_type"`
	Size        int64       `db:"size" json:"size"`
	Path        string      `db:"path" json:"path"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
}

func FromAsset(a ar.Asset) Asset {
	return Asset{
		ID:          a.ID,
		BusinessID:  null.NewString(a.BusinessID, a.BusinessID != ""),
		Name:        a.Name,
		Kind:        a.Kind,
		ContentType: a.ContentType,
		Size:        a.Size,
		Path:        a.Path,
		CreatedAt:   a.CreatedAt.UTC(),
	}
}

func (r Asset) ToAsset() ar.Asset {
	return ar.Asset{
		ID:          r.ID,
		BusinessID:  r.BusinessID.String,
		Name:        r.Name,
		Kind:        r.Kind,
		ContentType: r.ContentType,
		Size:        r.Size,
		Path:        r.Path,
		CreatedAt:   r.CreatedAt.UTC(),
	}
}

type Scene struct {
	ID         string      `db:"id" json:"id"`
	BusinessID null.String `db:"business_id" json:"business_id"`
	Name       string      `db:"name" json:"name"`
	AssetID    string      `db:"asset_id" json:"asset_id"`
	Shape      string      `db:"shape" json:"shape"`
	Width      float64     `db:"width" json:"width"`
	Height     float64     `db:"height" json:"height"`
	Depth      float64     `db:"depth" json:"depth"`
	Radius     float64     `db:"radius" json:"radius"`
	Theta      float64     `db:"theta" json:"theta"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}

func FromScene(s ar.Scene) Scene {
	return Scene{
		ID:         s.ID,
		BusinessID: null.NewString(s.BusinessID, s.BusinessID != ""),
		Name:       s.Name,
		AssetID:    s.AssetID,
		Shape:      s.Shape,
		Width:      s.Width,
		Height:     s.Height,
		Depth:      s.Depth,
		Radius:     s.Radius,
		Theta:      s.Theta,
		CreatedAt:  s.CreatedAt.UTC(),
	}
}

func (r Scene) ToScene() ar.Scene {
	return ar.Scene{
		ID:         r.ID,
		BusinessID: r.BusinessID.String,
		Name:       r.Name,
		AssetID:    r.AssetID,
		Shape:      r.Shape,
		Width:      r.Width,
		Height:     r.Height,
		Depth:      r.Depth,
		Radius:     r.Radius,
		Theta:      r.Theta,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}
