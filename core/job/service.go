package job

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"strconv"

	"github.com/pkg/errors"

	"github.com/trezcool/fieldpro/core"
	"github.com/trezcool/fieldpro/core/business"
	"github.com/trezcool/fieldpro/core/customer"
	"github.com/trezcool/fieldpro/core/notification"
	"github.com/trezcool/fieldpro/core/product"
	"github.com/trezcool/fieldpro/core/schedule"
	"github.com/trezcool/fieldpro/core/user"
)

// DateLayout is the layout of scheduled and completed dates.
const DateLayout = schedule.DateLayout

var (
	// errors
	ErrNotFound        = errors.New("job not found")
	ErrNotAssignable   = errors.New("only unassigned pending jobs can be assigned")
	ErrInvalidEmployee = errors.New("employee must be an active employee of the job's business")
	ErrNoCustomerEmail = errors.New("customer has no email address")
)

type (
	Repository interface {
		CreateJob(ctx context.Context, j Job) (Job, error)
		GetJob(ctx context.Context, id string) (Job, error)
		// QueryJobs applies QueryFilter.Match semantics, ordered with Sort semantics.
		QueryJobs(ctx context.Context, filter QueryFilter, orderings ...core.DBOrdering) ([]Job, error)
		UpdateJob(ctx context.Context, j Job) (Job, error)
		DeleteJob(ctx context.Context, id string) error
	}

	Service interface {
		Create(ctx context.Context, actor user.User, nj NewJob) (Job, error)
		Query(ctx context.Context, actor user.User, filter QueryFilter, orderings []core.DBOrdering) ([]Job, error)
		GetByID(ctx context.Context, actor user.User, id string) (Job, error)
		Update(ctx context.Context, actor user.User, id string, uj UpdateJob) (Job, error)
		Delete(ctx context.Context, actor user.User, id string) error
		Assign(ctx context.Context, actor user.User, id, employeeID string) (Job, error)
		Calendar(ctx context.Context, actor user.User, from, to string) ([]CalendarDay, error)
		Stats(ctx context.Context, actor user.User) (DashboardStats, error)

		// workflow
		Start(ctx context.Context, actor user.User, id string) (Job, error)
		CompleteStep(ctx context.Context, actor user.User, id, step string, data StepData) (Job, error)
		MarkTBD(ctx context.Context, actor user.User, id string, quotation float64) (Job, error)
		AddProduct(ctx context.Context, actor user.User, id string, np NewSelectedProduct) (Job, error)
		SetProductQuantity(ctx context.Context, actor user.User, id, productID string, quantity int) (Job, error)
		ToggleChecklistItem(ctx context.Context, actor user.User, id, itemID string) (Job, error)
		Quotation(ctx context.Context, actor user.User, id string) (Quotation, error)
		QuotationPDF(ctx context.Context, actor user.User, id string) ([]byte, error)
		SendQuotation(ctx context.Context, actor user.User, id string, cc ...string) (Job, error)
	}

	service struct {
		repo          Repository
		businesses    business.Service
		customers     customer.Service
		users         user.Service
		products      product.Service
		notifications notification.Service
		mailSvc       core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	businesses business.Service,
	customers customer.Service,
	users user.Service,
	products product.Service,
	notifications notification.Service,
	mailSvc core.EmailService,
) Service {
	return &service{
		repo:          repo,
		businesses:    businesses,
		customers:     customers,
		users:         users,
		products:      products,
		notifications: notifications,
		mailSvc:       mailSvc,
	}
}

// newReference builds a customer reference from the last 6 digits of the unix millis timestamp.
func newReference() string {
	ms := strconv.FormatInt(core.Now().UnixNano()/1e6, 10)
	if len(ms) > 6 {
		ms = ms[len(ms)-6:]
	}
	return "REF-" + ms
}

func (svc *service) Create(ctx context.Context, actor user.User, nj NewJob) (Job, error) {
	if !CanCreate(actor, nj.BusinessID) {
		return Job{}, core.ErrForbidden
	}

	if nj.ParentJobID != "" {
		parent, err := svc.GetByID(ctx, actor, nj.ParentJobID)
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				return Job{}, core.NewFieldError("parent_job_id", "parent job not found")
			}
			return Job{}, err
		}
		if nj.CustomerID == "" && nj.Customer == nil {
			nj.CustomerID = parent.CustomerID
		}
	}

	cust, err := svc.resolveCustomer(ctx, nj)
	if err != nil {
		return Job{}, err
	}

	now := core.Now()
	j := Job{
		ID:                core.NewID(),
		Title:             nj.Title,
		Description:       nj.Description,
		JobType:           nj.JobType,
		Status:            StatusPending,
		CustomerID:        cust.ID,
		BusinessID:        nj.BusinessID,
		ScheduledDate:     nj.ScheduledDate,
		ScheduledTime:     nj.ScheduledTime,
		Quotation:         nj.Quotation,
		Deposit:           nj.Deposit,
		CustomerReference: newReference(),
		Images:            []string{},
		Documents:         []string{},
		Checklist:         DefaultChecklist(nj.JobType),
		Measurements:      []Measurement{},
		SelectedProducts:  []SelectedProduct{},
		ParentJobID:       nj.ParentJobID,
		WorkflowStep:      StepStart,
		CreatedAt:         now,
	}
	j.addHistory(actor.Person(), "job_created", fmt.Sprintf("%s job created", j.JobType), nil)

	if j, err = svc.repo.CreateJob(ctx, j); err != nil {
		return Job{}, err
	}
	svc.sendConfirmation(j, cust)
	return j, nil
}

func (svc *service) resolveCustomer(ctx context.Context, nj NewJob) (customer.Customer, error) {
	if nj.CustomerID != "" {
		cust, err := svc.customers.GetByID(ctx, nj.CustomerID)
		if err != nil {
			if errors.Cause(err) == customer.ErrNotFound {
				return customer.Customer{}, core.NewFieldError("customer_id", "customer not found")
			}
			return customer.Customer{}, err
		}
		if cust.BusinessID != nj.BusinessID {
			return customer.Customer{}, core.NewFieldError("customer_id", "customer not found")
		}
		return cust, nil
	}
	if nj.Customer == nil {
		return customer.Customer{}, core.NewFieldError("customer", customerRequiredText)
	}
	return svc.customers.FindOrCreate(ctx, *nj.Customer)
}

func (svc *service) Query(ctx context.Context, actor user.User, filter QueryFilter, orderings []core.DBOrdering) ([]Job, error) {
	ScopeFilter(actor, &filter)
	return svc.repo.QueryJobs(ctx, filter, orderings...)
}

// GetByID returns ErrNotFound for jobs actor cannot see.
func (svc *service) GetByID(ctx context.Context, actor user.User, id string) (Job, error) {
	j, err := svc.repo.GetJob(ctx, id)
	if err != nil {
		return Job{}, err
	}
	if !CanView(actor, j) {
		return Job{}, ErrNotFound
	}
	return j, nil
}

func (svc *service) getForEdit(ctx context.Context, actor user.User, id string) (Job, error) {
	j, err := svc.GetByID(ctx, actor, id)
	if err != nil {
		return Job{}, err
	}
	if !CanEdit(actor, j) {
		return Job{}, core.ErrForbidden
	}
	return j, nil
}

func (svc *service) Update(ctx context.Context, actor user.User, id string, uj UpdateJob) (Job, error) {
	j, err := svc.getForEdit(ctx, actor, id)
	if err != nil {
		return Job{}, err
	}
	uj.apply(&j)
	return svc.repo.UpdateJob(ctx, j)
}

func (svc *service) Delete(ctx context.Context, actor user.User, id string) error {
	j, err := svc.GetByID(ctx, actor, id)
	if err != nil {
		return err
	}
	if !CanDelete(actor, j) {
		return core.ErrForbidden
	}
	return svc.repo.DeleteJob(ctx, id)
}

func (svc *service) Assign(ctx context.Context, actor user.User, id, employeeID string) (Job, error) {
	if actor.IsEmployee() {
		return Job{}, core.ErrForbidden
	}
	j, err := svc.getForEdit(ctx, actor, id)
	if err != nil {
		return Job{}, err
	}
	if j.Status != StatusPending || j.EmployeeID != "" {
		return Job{}, core.NewValidationError(ErrNotAssignable)
	}

	emp, err := svc.users.GetByID(ctx, employeeID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Job{}, core.NewValidationError(ErrInvalidEmployee,
				core.FieldError{Field: "employee_id", Error: ErrInvalidEmployee.Error()})
		}
		return Job{}, err
	}
	if !emp.IsEmployee() || !emp.IsActive || emp.BusinessID != j.BusinessID {
		return Job{}, core.NewValidationError(ErrInvalidEmployee,
			core.FieldError{Field: "employee_id", Error: ErrInvalidEmployee.Error()})
	}

	j.EmployeeID = emp.ID
	j.Status = StatusConfirmed
	j.addHistory(actor.Person(), "job_assigned", fmt.Sprintf("Job assigned to %s", emp.Name), nil)
	if j, err = svc.repo.UpdateJob(ctx, j); err != nil {
		return Job{}, err
	}

	_, err = svc.notifications.Create(ctx, notification.NewNotification{
		UserID:  emp.ID,
		Title:   "New job assigned",
		Message: fmt.Sprintf("%s on %s at %s", j.Title, j.ScheduledDate, j.ScheduledTime),
		Type:    notification.TypeJob,
	})
	return j, errors.Wrap(err, "notifying employee")
}

// update persists a job after a workflow transition.
func (svc *service) update(ctx context.Context, actor user.User, id string, fn func(j *Job) error) (Job, error) {
	j, err := svc.getForEdit(ctx, actor, id)
	if err != nil {
		return Job{}, err
	}
	if err = fn(&j); err != nil {
		return Job{}, err
	}
	return svc.repo.UpdateJob(ctx, j)
}

func (svc *service) Start(ctx context.Context, actor user.User, id string) (Job, error) {
	return svc.update(ctx, actor, id, func(j *Job) error {
		return Start(j, actor.Person())
	})
}

func (svc *service) CompleteStep(ctx context.Context, actor user.User, id, step string, data StepData) (Job, error) {
	return svc.update(ctx, actor, id, func(j *Job) error {
		return CompleteStep(j, actor.Person(), step, data)
	})
}

func (svc *service) MarkTBD(ctx context.Context, actor user.User, id string, quotation float64) (Job, error) {
	return svc.update(ctx, actor, id, func(j *Job) error {
		return MarkTBD(j, actor.Person(), quotation)
	})
}

func (svc *service) AddProduct(ctx context.Context, actor user.User, id string, np NewSelectedProduct) (Job, error) {
	prod, err := svc.products.GetByID(ctx, np.ProductID)
	if err != nil {
		if errors.Cause(err) == product.ErrNotFound {
			return Job{}, core.NewFieldError("product_id", "product not found")
		}
		return Job{}, err
	}
	if !prod.IsActive {
		return Job{}, core.NewFieldError("product_id", "product is not available")
	}
	return svc.update(ctx, actor, id, func(j *Job) error {
		AddProduct(j, prod, np)
		return nil
	})
}

func (svc *service) SetProductQuantity(ctx context.Context, actor user.User, id, productID string, quantity int) (Job, error) {
	return svc.update(ctx, actor, id, func(j *Job) error {
		return SetProductQuantity(j, productID, quantity)
	})
}

func (svc *service) ToggleChecklistItem(ctx context.Context, actor user.User, id, itemID string) (Job, error) {
	return svc.update(ctx, actor, id, func(j *Job) error {
		return ToggleChecklistItem(j, itemID)
	})
}

func (svc *service) Quotation(ctx context.Context, actor user.User, id string) (Quotation, error) {
	j, err := svc.GetByID(ctx, actor, id)
	if err != nil {
		return Quotation{}, err
	}
	return NewQuotation(j), nil
}

func (svc *service) QuotationPDF(ctx context.Context, actor user.User, id string) ([]byte, error) {
	j, err := svc.GetByID(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	cust, err := svc.customers.GetByID(ctx, j.CustomerID)
	if err != nil {
		return nil, errors.Wrap(err, "getting customer")
	}
	return RenderQuotationPDF(j, cust, svc.businessName(ctx, j.BusinessID))
}

func (svc *service) businessName(ctx context.Context, id string) string {
	b, err := svc.businesses.GetByID(ctx, id)
	if err != nil {
		return "Quotation"
	}
	return b.Name
}

// SendQuotation emails the quotation PDF to the customer, and to any `cc` address.
func (svc *service) SendQuotation(ctx context.Context, actor user.User, id string, cc ...string) (Job, error) {
	j, err := svc.getForEdit(ctx, actor, id)
	if err != nil {
		return Job{}, err
	}
	cust, err := svc.customers.GetByID(ctx, j.CustomerID)
	if err != nil {
		return Job{}, errors.Wrap(err, "getting customer")
	}
	if cust.Email == "" {
		return Job{}, core.NewValidationError(ErrNoCustomerEmail)
	}

	pdf, err := RenderQuotationPDF(j, cust, svc.businessName(ctx, j.BusinessID))
	if err != nil {
		return Job{}, err
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: cust.Name, Address: cust.Email}},
		Subject:      fmt.Sprintf("Your quotation %s", j.CustomerReference),
		TemplateName: "quotation",
		TemplateData: quotationData{
			CustomerName: cust.Name,
			Reference:    j.CustomerReference,
			Total:        QuotationTotal(j),
		},
	}
	for _, addr := range cc {
		if a, err := mail.ParseAddress(addr); err == nil {
			msg.Cc = append(msg.Cc, *a)
		}
	}
	if err = msg.Attach(bytes.NewReader(pdf), fmt.Sprintf("quotation-%s.pdf", j.CustomerReference), "application/pdf"); err != nil {
		return Job{}, errors.Wrap(err, "attaching quotation")
	}
	if svc.mailSvc != nil {
		svc.mailSvc.SendMessages(msg)
	}

	j.QuotationSent = true
	if j.Quotation == 0 {
		j.Quotation = QuotationTotal(j)
	}
	j.addHistory(actor.Person(), "quotation_sent", fmt.Sprintf("Quotation sent to %s", cust.Email), nil)
	return svc.repo.UpdateJob(ctx, j)
}

type (
	confirmationData struct {
		CustomerName  string
		JobType       string
		Reference     string
		ScheduledDate string
		ScheduledTime string
		Address       string
	}

	quotationData struct {
		CustomerName string
		Reference    string
		Total        float64
	}
)

func (svc *service) sendConfirmation(j Job, cust customer.Customer) {
	if svc.mailSvc == nil || cust.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: cust.Name, Address: cust.Email}},
		Subject:      fmt.Sprintf("Your %s appointment is booked", j.JobType),
		TemplateName: "job_confirmation",
		TemplateData: confirmationData{
			CustomerName:  cust.Name,
			JobType:       j.JobType,
			Reference:     j.CustomerReference,
			ScheduledDate: j.ScheduledDate,
			ScheduledTime: j.ScheduledTime,
			Address:       cust.Address,
		},
	})
}
