package job

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/fieldpro/core"
	"github.com/trezcool/fieldpro/core/customer"
)

// Job types
const (
	TypeMeasurement  = "measurement"
	TypeInstallation = "installation"
)

// Statuses
const (
	StatusPending         = "pending"
	StatusConfirmed       = "confirmed"
	StatusInProgress      = "in-progress"
	StatusCompleted       = "completed"
	StatusCancelled       = "cancelled"
	StatusTBD             = "tbd"
	StatusAwaitingDeposit = "awaiting-deposit"
	StatusAwaitingPayment = "awaiting-payment"
)

// Payment methods
const (
	PaymentCard         = "card"
	PaymentCash         = "cash"
	PaymentBankTransfer = "bank-transfer"
)

var (
	AllTypes    = []string{TypeMeasurement, TypeInstallation}
	AllStatuses = []string{
		StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted,
		StatusCancelled, StatusTBD, StatusAwaitingDeposit, StatusAwaitingPayment,
	}

	// OrderingFields are the fields jobs can be ordered by.
	OrderingFields = []string{"scheduled_date", "status", "job_type", "quotation", "created_at"}

	defaultChecklists = map[string][]string{
		TypeMeasurement: {
			"Customer consultation",
			"Window measurements",
			"Product selection",
			"Quotation preparation",
			"Customer approval",
		},
		TypeInstallation: {
			"Installation preparation",
			"Blinds installation",
			"Quality check",
			"Customer satisfaction",
			"Final payment",
		},
	}
)

type Measurement struct {
	ID          string    `json:"id"`
	WindowID    string    `json:"window_id" validate:"required"`
	Width       float64   `json:"width" validate:"gt=0"`
	Height      float64   `json:"height" validate:"gt=0"`
	Notes       string    `json:"notes"`
	Location    string    `json:"location"`
	ControlType string    `json:"control_type,omitempty" validate:"omitempty,oneof=chain-cord wand none"`
	BracketType string    `json:"bracket_type,omitempty" validate:"omitempty,oneof=top-fix face-fix"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

type SelectedProduct struct {
	ID               string    `json:"id"`
	ProductID        string    `json:"product_id" validate:"required"`
	ProductName      string    `json:"product_name"`
	Quantity         int       `json:"quantity" validate:"gte=1"`
	Price            float64   `json:"price" validate:"gte=0"`
	ARScreenshot     string    `json:"ar_screenshot,omitempty"`
	CustomerApproved bool      `json:"customer_approved"`
	CreatedAt        time.Time `json:"created_at"` // UTC
}

// Subtotal is the line price.
func (sp SelectedProduct) Subtotal() float64 {
	return sp.Price * float64(sp.Quantity)
}

type ChecklistItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

type HistoryEntry struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"` // UTC
	Action      string          `json:"action"`
	Description string          `json:"description"`
	UserID      string          `json:"user_id"`
	UserName    string          `json:"user_name"`
	Data        json.RawMessage `json:"data,omitempty"`
}

type Job struct {
	ID                string            `json:"id"`
	Title             string            `json:"title"`
	Description       string            `json:"description"`
	JobType           string            `json:"job_type"`
	Status            string            `json:"status"`
	CustomerID        string            `json:"customer_id"`
	EmployeeID        string            `json:"employee_id"`
	BusinessID        string            `json:"business_id"`
	ScheduledDate     string            `json:"scheduled_date"` // YYYY-MM-DD
	ScheduledTime     string            `json:"scheduled_time"` // HH:MM
	CompletedDate     string            `json:"completed_date,omitempty"`
	StartTime         *time.Time        `json:"start_time,omitempty"` // UTC
	EndTime           *time.Time        `json:"end_time,omitempty"`   // UTC
	Quotation         float64           `json:"quotation"`
	QuotationSent     bool              `json:"quotation_sent"`
	Invoice           float64           `json:"invoice"`
	Deposit           float64           `json:"deposit"`
	DepositPaid       bool              `json:"deposit_paid"`
	PaymentMethod     string            `json:"payment_method,omitempty"`
	CustomerReference string            `json:"customer_reference"`
	Signature         string            `json:"signature,omitempty"`
	Images            []string          `json:"images"`
	Documents         []string          `json:"documents"`
	Checklist         []ChecklistItem   `json:"checklist"`
	Measurements      []Measurement     `json:"measurements"`
	SelectedProducts  []SelectedProduct `json:"selected_products"`
	JobHistory        []HistoryEntry    `json:"job_history"`
	ParentJobID       string            `json:"parent_job_id,omitempty"`
	WorkflowStep      string            `json:"workflow_step"`
	CreatedAt         time.Time         `json:"created_at"` // UTC
}

// Revenue is what a completed job brought in: the invoice, or the quotation when not invoiced.
func (j Job) Revenue() float64 {
	if j.Invoice > 0 {
		return j.Invoice
	}
	return j.Quotation
}

func (j *Job) addHistory(actor core.Person, action, description string, data interface{}) {
	entry := HistoryEntry{
		ID:          core.NewID(),
		Timestamp:   core.Now(),
		Action:      action,
		Description: description,
		UserID:      actor.ID,
		UserName:    actor.Name,
	}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil && string(raw) != "null" {
			entry.Data = raw
		}
	}
	j.JobHistory = append(j.JobHistory, entry)
}

// DefaultChecklist returns a fresh checklist for the job type.
func DefaultChecklist(jobType string) []ChecklistItem {
	texts := defaultChecklists[jobType]
	items := make([]ChecklistItem, 0, len(texts))
	for _, t := range texts {
		items = append(items, ChecklistItem{ID: core.NewID(), Text: t})
	}
	return items
}

// NewJob contains information needed to create a new Job.
// The customer is either an existing CustomerID or new Customer details.
type NewJob struct {
	Title         string                `json:"title" validate:"required"`
	Description   string                `json:"description"`
	JobType       string                `json:"job_type" validate:"required,oneof=measurement installation"`
	CustomerID    string                `json:"customer_id"`
	Customer      *customer.NewCustomer `json:"customer"`
	BusinessID    string                `json:"business_id" validate:"required"`
	ScheduledDate string                `json:"scheduled_date" validate:"required,ymd"`
	ScheduledTime string                `json:"scheduled_time" validate:"required,hhmm"`
	Quotation     float64               `json:"quotation" validate:"gte=0"`
	Deposit       float64               `json:"deposit" validate:"gte=0"`
	ParentJobID   string                `json:"parent_job_id"`
}

func (nj *NewJob) Validate(validate *validator.Validate) error {
	nj.Title = core.CleanString(nj.Title)
	nj.Description = core.CleanString(nj.Description)
	nj.JobType = core.CleanString(nj.JobType, true /* lower */)
	nj.CustomerID = core.CleanString(nj.CustomerID)
	nj.BusinessID = core.CleanString(nj.BusinessID)
	nj.ScheduledDate = core.CleanString(nj.ScheduledDate)
	nj.ScheduledTime = core.CleanString(nj.ScheduledTime)
	nj.ParentJobID = core.CleanString(nj.ParentJobID)
	if nj.Customer != nil {
		nj.Customer.BusinessID = nj.BusinessID
		nj.Customer.Clean()
	}
	return validate.Struct(nj)
}

// UpdateJob defines what information may be provided to modify an existing Job.
type UpdateJob struct {
	Title         *string  `json:"title" validate:"omitempty,min=1"`
	Description   *string  `json:"description"`
	Status        *string  `json:"status" validate:"omitempty,oneof=pending confirmed in-progress completed cancelled tbd awaiting-deposit awaiting-payment"`
	ScheduledDate *string  `json:"scheduled_date" validate:"omitempty,ymd"`
	ScheduledTime *string  `json:"scheduled_time" validate:"omitempty,hhmm"`
	Quotation     *float64 `json:"quotation" validate:"omitempty,gte=0"`
	Invoice       *float64 `json:"invoice" validate:"omitempty,gte=0"`
	Deposit       *float64 `json:"deposit" validate:"omitempty,gte=0"`
	DepositPaid   *bool    `json:"deposit_paid"`
	PaymentMethod *string  `json:"payment_method" validate:"omitempty,oneof=card cash bank-transfer"`
	Images        []string `json:"images"`
	Documents     []string `json:"documents"`
}

func (uj *UpdateJob) Validate(validate *validator.Validate) error {
	if uj.Status != nil {
		s := core.CleanString(*uj.Status, true /* lower */)
		uj.Status = &s
	}
	if uj.PaymentMethod != nil {
		pm := core.CleanString(*uj.PaymentMethod, true /* lower */)
		uj.PaymentMethod = &pm
	}
	return validate.Struct(uj)
}

func (uj UpdateJob) apply(j *Job) {
	if uj.Title != nil {
		j.Title = core.CleanString(*uj.Title)
	}
	if uj.Description != nil {
		j.Description = core.CleanString(*uj.Description)
	}
	if uj.Status != nil {
		j.Status = *uj.Status
	}
	if uj.ScheduledDate != nil {
		j.ScheduledDate = core.CleanString(*uj.ScheduledDate)
	}
	if uj.ScheduledTime != nil {
		j.ScheduledTime = core.CleanString(*uj.ScheduledTime)
	}
	if uj.Quotation != nil {
		j.Quotation = *uj.Quotation
	}
	if uj.Invoice != nil {
		j.Invoice = *uj.Invoice
	}
	if uj.Deposit != nil {
		j.Deposit = *uj.Deposit
	}
	if uj.DepositPaid != nil {
		j.DepositPaid = *uj.DepositPaid
	}
	if uj.PaymentMethod != nil {
		j.PaymentMethod = *uj.PaymentMethod
	}
	if uj.Images != nil {
		j.Images = uj.Images
	}
	if uj.Documents != nil {
		j.Documents = uj.Documents
	}
}

type AssignJob struct {
	EmployeeID string `json:"employee_id" validate:"required"`
}

type QueryFilter struct {
	Search      string   `query:"search"`
	Statuses    []string `query:"status"`
	JobType     string   `query:"job_type"`
	EmployeeID  string   `query:"employee_id"`
	CustomerID  string   `query:"customer_id"`
	BusinessID  string   `query:"business_id"`
	ParentJobID string   `query:"parent_job_id"`
	DateFrom    string   `query:"date_from"` // YYYY-MM-DD, inclusive
	DateTo      string   `query:"date_to"`   // YYYY-MM-DD, inclusive
	Unassigned  bool     `query:"unassigned"`

	// visibility scope, set from the acting user; a job matches either scope field.
	ScopeBusinessID string `query:"-"`
	ScopeEmployeeID string `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.JobType = core.CleanString(qf.JobType, true /* lower */)
	qf.EmployeeID = core.CleanString(qf.EmployeeID)
	qf.CustomerID = core.CleanString(qf.CustomerID)
	qf.BusinessID = core.CleanString(qf.BusinessID)
	qf.ParentJobID = core.CleanString(qf.ParentJobID)
	qf.DateFrom = core.CleanString(qf.DateFrom)
	qf.DateTo = core.CleanString(qf.DateTo)
	for i, s := range qf.Statuses {
		qf.Statuses[i] = core.CleanString(s, true /* lower */)
	}
}

// Scoped reports whether the filter carries a visibility scope.
func (qf QueryFilter) Scoped() bool {
	return qf.ScopeBusinessID != "" || qf.ScopeEmployeeID != ""
}

// InScope reports whether j is within the visibility scope of the filter.
func (qf QueryFilter) InScope(j Job) bool {
	if !qf.Scoped() {
		return true
	}
	return (qf.ScopeBusinessID != "" && j.BusinessID == qf.ScopeBusinessID) ||
		(qf.ScopeEmployeeID != "" && j.EmployeeID == qf.ScopeEmployeeID)
}

// Match applies AND operation on available QueryFilter fields, within the visibility scope.
// Search does a case-insensitive match on one of title, description or customer reference.
func (qf QueryFilter) Match(j Job) bool {
	if !qf.InScope(j) {
		return false
	}
	if qf.Search != "" && !(core.ContainsFold(j.Title, qf.Search) ||
		core.ContainsFold(j.Description, qf.Search) || core.ContainsFold(j.CustomerReference, qf.Search)) {
		return false
	}
	if len(qf.Statuses) > 0 && !core.StringIn(j.Status, qf.Statuses...) {
		return false
	}
	if qf.JobType != "" && j.JobType != qf.JobType {
		return false
	}
	if qf.EmployeeID != "" && j.EmployeeID != qf.EmployeeID {
		return false
	}
	if qf.Unassigned && j.EmployeeID != "" {
		return false
	}
	if qf.CustomerID != "" && j.CustomerID != qf.CustomerID {
		return false
	}
	if qf.BusinessID != "" && j.BusinessID != qf.BusinessID {
		return false
	}
	if qf.ParentJobID != "" && j.ParentJobID != qf.ParentJobID {
		return false
	}
	if qf.DateFrom != "" && j.ScheduledDate < qf.DateFrom {
		return false
	}
	if qf.DateTo != "" && j.ScheduledDate > qf.DateTo {
		return false
	}
	return true
}

// Sort orders jobs in place; defaults to the schedule, earliest first.
func Sort(jobs []Job, orderings []core.DBOrdering) {
	orderings = core.AllowedOrderings(orderings, OrderingFields...)
	if len(orderings) == 0 {
		orderings = []core.DBOrdering{{Field: "scheduled_date", Ascending: true}}
	}
	sort.SliceStable(jobs, func(i, k int) bool {
		for _, ord := range orderings {
			c := compareField(jobs[i], jobs[k], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func compareField(a, b Job, field string) int {
	switch field {
	case "scheduled_date":
		if c := strings.Compare(a.ScheduledDate, b.ScheduledDate); c != 0 {
			return c
		}
		return strings.Compare(a.ScheduledTime, b.ScheduledTime)
	case "status":
		return strings.Compare(a.Status, b.Status)
	case "job_type":
		return strings.Compare(a.JobType, b.JobType)
	case "quotation":
		switch {
		case a.Quotation < b.Quotation:
			return -1
		case a.Quotation > b.Quotation:
			return 1
		}
		return 0
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	}
	return 0
}
