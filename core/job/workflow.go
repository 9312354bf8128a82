package job

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/fieldpro/core"
)

// Workflow steps
const (
	StepStart        = "start"
	StepProducts     = "products"
	StepMeasurements = "measurements"
	StepQuotation    = "quotation"
	StepPayment      = "payment"
	StepSignature    = "signature"
	StepComplete     = "complete"
)

var (
	ErrInvalidStep = errors.New("invalid workflow step")

	AllSteps = []string{
		StepStart, StepProducts, StepMeasurements, StepQuotation, StepPayment, StepSignature, StepComplete,
	}
)

// StepData carries what the worker captured on a step; only the fields relevant to the step are used.
type StepData struct {
	SelectedProducts []SelectedProduct `json:"selected_products,omitempty" validate:"omitempty,dive"`
	Measurements     []Measurement     `json:"measurements,omitempty" validate:"omitempty,dive"`
	Quotation        *float64          `json:"quotation,omitempty" validate:"omitempty,gte=0"`
	Approved         *bool             `json:"approved,omitempty"`
	Invoice          *float64          `json:"invoice,omitempty" validate:"omitempty,gte=0"`
	Deposit          *float64          `json:"deposit,omitempty" validate:"omitempty,gte=0"`
	DepositPaid      *bool             `json:"deposit_paid,omitempty"`
	PaymentMethod    string            `json:"payment_method,omitempty" validate:"omitempty,oneof=card cash bank-transfer"`
	Signature        string            `json:"signature,omitempty"`
}

func (sd *StepData) Validate(validate *validator.Validate) error {
	sd.PaymentMethod = core.CleanString(sd.PaymentMethod, true /* lower */)
	sd.Signature = core.CleanString(sd.Signature)
	return validate.Struct(sd)
}

// CurrentStep returns the workflow step of j, `start` for jobs never started.
func CurrentStep(j Job) string {
	if j.WorkflowStep == "" {
		return StepStart
	}
	return j.WorkflowStep
}

// Steps returns the steps a job of type `jobType` goes through, in order.
func Steps(jobType string) []string {
	steps := []string{StepStart, StepProducts}
	if jobType == TypeMeasurement {
		steps = append(steps, StepMeasurements)
	}
	steps = append(steps, StepQuotation, StepPayment)
	if jobType == TypeInstallation {
		steps = append(steps, StepSignature)
	}
	return append(steps, StepComplete)
}

// Progress is the completion percentage of the job's workflow.
// Installation jobs never visit measurements, yet the step still counts towards progress.
func Progress(j Job) float64 {
	steps := []string{StepStart, StepProducts, StepMeasurements, StepQuotation, StepPayment}
	if j.JobType == TypeInstallation {
		steps = append(steps, StepSignature)
	}
	steps = append(steps, StepComplete)

	current := CurrentStep(j)
	for i, s := range steps {
		if s == current {
			return float64(i) / float64(len(steps)-1) * 100
		}
	}
	return 0
}

// nextStep returns the step following `step` for a job of type `jobType`.
func nextStep(jobType, step string) string {
	switch step {
	case StepStart:
		return StepProducts
	case StepProducts:
		if jobType == TypeMeasurement {
			return StepMeasurements
		}
		return StepQuotation
	case StepMeasurements:
		return StepQuotation
	case StepQuotation:
		return StepPayment
	case StepPayment:
		if jobType == TypeInstallation {
			return StepSignature
		}
		return StepComplete
	default:
		return StepComplete
	}
}

func invalidStepError(msg string) error {
	return core.NewValidationError(ErrInvalidStep, core.FieldError{Field: "step", Error: msg})
}

// Start starts the workflow of a job at the `start` step.
func Start(j *Job, actor core.Person) error {
	if CurrentStep(*j) != StepStart {
		return invalidStepError("job already started")
	}
	now := core.Now()
	j.Status = StatusInProgress
	j.StartTime = &now
	j.addHistory(actor, "job_started", fmt.Sprintf("%s job started", j.JobType), nil)
	j.WorkflowStep = nextStep(j.JobType, StepStart)
	return nil
}

// CompleteStep merges `data` into j and moves the workflow on.
// `step` must be the current step of the job.
func CompleteStep(j *Job, actor core.Person, step string, data StepData) error {
	current := CurrentStep(*j)
	if step != current || current == StepStart || current == StepComplete {
		return invalidStepError(fmt.Sprintf("cannot complete %q, job is at %q", step, current))
	}

	if err := mergeStepData(j, step, &data); err != nil {
		return err
	}
	j.addHistory(actor, step+"_completed", fmt.Sprintf("%s step completed", step), data)

	j.WorkflowStep = nextStep(j.JobType, step)
	if j.WorkflowStep == StepComplete {
		now := core.Now()
		j.Status = StatusCompleted
		j.CompletedDate = now.Format(DateLayout)
		j.EndTime = &now
	}
	return nil
}

func mergeStepData(j *Job, step string, data *StepData) error {
	switch step {
	case StepProducts:
		if data.SelectedProducts != nil {
			j.SelectedProducts = stampProducts(data.SelectedProducts)
		}

	case StepMeasurements:
		if data.Measurements != nil {
			j.Measurements = stampMeasurements(data.Measurements)
		}
		if len(j.Measurements) == 0 {
			return core.NewFieldError("measurements", "at least one measurement is required")
		}

	case StepQuotation:
		if data.Quotation == nil {
			total := QuotationTotal(*j)
			data.Quotation = &total
		}
		j.Quotation = *data.Quotation
		j.QuotationSent = true
		if data.Approved == nil || *data.Approved {
			j.Status = StatusConfirmed
		}

	case StepPayment:
		if data.PaymentMethod != "" {
			j.PaymentMethod = data.PaymentMethod
		}
		if j.PaymentMethod == "" {
			return core.NewFieldError("payment_method", "payment method is required")
		}
		if data.Deposit != nil {
			j.Deposit = *data.Deposit
		}
		if data.DepositPaid != nil {
			j.DepositPaid = *data.DepositPaid
		}
		switch {
		case data.Invoice != nil:
			j.Invoice = *data.Invoice
		case j.Invoice == 0:
			j.Invoice = j.Quotation
		}

	case StepSignature:
		if data.Signature != "" {
			j.Signature = data.Signature
		}
		if j.Signature == "" {
			return core.NewFieldError("signature", "customer signature is required")
		}
	}
	return nil
}

// MarkTBD records that the customer is still deciding on the quotation.
// The workflow stays at the quotation step so it can be resumed later.
func MarkTBD(j *Job, actor core.Person, quotation float64) error {
	if CurrentStep(*j) != StepQuotation {
		return invalidStepError("job is not at the quotation step")
	}
	if quotation > 0 {
		j.Quotation = quotation
	}
	j.Status = StatusTBD
	j.addHistory(actor, "quotation_tbd", "Customer still deciding on quotation", nil)
	j.WorkflowStep = StepQuotation
	return nil
}

func stampProducts(products []SelectedProduct) []SelectedProduct {
	now := core.Now()
	for i := range products {
		if products[i].ID == "" {
			products[i].ID = core.NewID()
		}
		if products[i].CreatedAt.IsZero() {
			products[i].CreatedAt = now
		}
	}
	return products
}

func stampMeasurements(measurements []Measurement) []Measurement {
	now := core.Now()
	for i := range measurements {
		if measurements[i].ID == "" {
			measurements[i].ID = core.NewID()
		}
		if measurements[i].CreatedAt.IsZero() {
			measurements[i].CreatedAt = now
		}
	}
	return measurements
}
