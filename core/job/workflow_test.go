package job

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/fieldpro/core"
)

var worker = core.Person{ID: "emp-1", Name: "Emma Employee", Email: "emma@blinds.test"}

func newTestJob(jobType string) Job {
	return Job{
		ID:            core.NewID(),
		Title:         "Living room blinds",
		JobType:       jobType,
		Status:        StatusConfirmed,
		ScheduledDate: "2026-10-20",
		ScheduledTime: "10:00",
		WorkflowStep:  StepStart,
		Checklist:     DefaultChecklist(jobType),
	}
}

func floatPtr(f float64) *float64 { return &f }

// runWorkflow drives j to completion, recording each visited step.
func runWorkflow(t *testing.T, j *Job) []string {
	t.Helper()
	visited := []string{CurrentStep(*j)}
	require.NoError(t, Start(j, worker))
	for CurrentStep(*j) != StepComplete {
		step := CurrentStep(*j)
		visited = append(visited, step)

		var data StepData
		switch step {
		case StepProducts:
			data.SelectedProducts = []SelectedProduct{{ProductID: "p1", ProductName: "Roller", Quantity: 2, Price: 100}}
		case StepMeasurements:
			data.Measurements = []Measurement{{WindowID: "w1", Width: 120, Height: 150}}
		case StepPayment:
			data.PaymentMethod = PaymentCard
		case StepSignature:
			data.Signature = "data:image/png;base64,iVBORw0KGgo="
		}
		require.NoError(t, CompleteStep(j, worker, step, data), "completing %s", step)
		require.Less(t, len(visited), len(AllSteps)+1, "workflow does not terminate")
	}
	return append(visited, StepComplete)
}

func TestWorkflowSteps(t *testing.T) {
	tests := []struct {
		name    string
		jobType string
		want    []string
	}{
		{
			name:    "measurement",
			jobType: TypeMeasurement,
			want:    []string{StepStart, StepProducts, StepMeasurements, StepQuotation, StepPayment, StepComplete},
		},
		{
			name:    "installation",
			jobType: TypeInstallation,
			want:    []string{StepStart, StepProducts, StepQuotation, StepPayment, StepSignature, StepComplete},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := newTestJob(tt.jobType)
			visited := runWorkflow(t, &j)

			assert.Equal(t, tt.want, visited)
			assert.Equal(t, Steps(tt.jobType), visited)
			if tt.jobType == TypeInstallation {
				assert.NotContains(t, visited, StepMeasurements)
			} else {
				assert.NotContains(t, visited, StepSignature)
			}

			assert.Equal(t, StatusCompleted, j.Status)
			assert.NotEmpty(t, j.CompletedDate)
			assert.NotNil(t, j.StartTime)
			assert.NotNil(t, j.EndTime)
			assert.Equal(t, 100.0, Progress(j))
		})
	}
}

func TestWorkflowHistory(t *testing.T) {
	j := newTestJob(TypeInstallation)
	require.NoError(t, Start(&j, worker))
	require.Len(t, j.JobHistory, 1)
	assert.Equal(t, "job_started", j.JobHistory[0].Action)
	assert.Equal(t, "installation job started", j.JobHistory[0].Description)

	before := len(j.JobHistory)
	require.NoError(t, CompleteStep(&j, worker, StepProducts, StepData{}))
	require.Len(t, j.JobHistory, before+1)

	last := j.JobHistory[len(j.JobHistory)-1]
	assert.Equal(t, "products_completed", last.Action)
	assert.Equal(t, "products step completed", last.Description)
	assert.Equal(t, worker.ID, last.UserID)
	assert.Equal(t, worker.Name, last.UserName)
	assert.NotEmpty(t, last.ID)
	assert.False(t, last.Timestamp.IsZero())
}

func TestCompleteStepOutOfOrder(t *testing.T) {
	j := newTestJob(TypeMeasurement)

	err := CompleteStep(&j, worker, StepProducts, StepData{})
	assert.True(t, errors.Is(err, ErrInvalidStep), "completing before start: %v", err)

	require.NoError(t, Start(&j, worker))
	err = Start(&j, worker)
	assert.True(t, errors.Is(err, ErrInvalidStep), "starting twice: %v", err)

	histLen := len(j.JobHistory)
	err = CompleteStep(&j, worker, StepQuotation, StepData{})
	assert.True(t, errors.Is(err, ErrInvalidStep), "skipping steps: %v", err)
	assert.Len(t, j.JobHistory, histLen)
	assert.Equal(t, StepProducts, j.WorkflowStep)
}

func TestCompleteStepRequirements(t *testing.T) {
	tests := []struct {
		name    string
		jobType string
		step    string
		data    StepData
		field   string
	}{
		{name: "no measurement", jobType: TypeMeasurement, step: StepMeasurements, field: "measurements"},
		{name: "no payment method", jobType: TypeMeasurement, step: StepPayment, field: "payment_method"},
		{name: "no signature", jobType: TypeInstallation, step: StepSignature, field: "signature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := newTestJob(tt.jobType)
			j.WorkflowStep = tt.step

			err := CompleteStep(&j, worker, tt.step, tt.data)
			var vErr *core.ValidationError
			require.True(t, errors.As(err, &vErr), "got %v", err)
			require.Len(t, vErr.Fields, 1)
			assert.Equal(t, tt.field, vErr.Fields[0].Field)
			assert.Equal(t, tt.step, j.WorkflowStep)
		})
	}
}

func TestQuotationStep(t *testing.T) {
	j := newTestJob(TypeMeasurement)
	j.WorkflowStep = StepQuotation
	j.SelectedProducts = []SelectedProduct{
		{ProductID: "p1", Quantity: 2, Price: 100},
		{ProductID: "p2", Quantity: 1, Price: 49.5},
	}
	j.Measurements = []Measurement{{WindowID: "w1"}, {WindowID: "w2"}, {WindowID: "w3"}}

	require.NoError(t, CompleteStep(&j, worker, StepQuotation, StepData{}))
	assert.Equal(t, 399.5, j.Quotation)
	assert.True(t, j.QuotationSent)
	assert.Equal(t, StatusConfirmed, j.Status)
	assert.Equal(t, StepPayment, j.WorkflowStep)

	require.NoError(t, CompleteStep(&j, worker, StepPayment, StepData{PaymentMethod: PaymentCash}))
	assert.Equal(t, 399.5, j.Invoice, "invoice defaults to the quotation")
	assert.Equal(t, StepComplete, j.WorkflowStep)
}

func TestMarkTBD(t *testing.T) {
	j := newTestJob(TypeMeasurement)
	assert.True(t, errors.Is(MarkTBD(&j, worker, 100), ErrInvalidStep))

	j.WorkflowStep = StepQuotation
	require.NoError(t, MarkTBD(&j, worker, 250))
	assert.Equal(t, StatusTBD, j.Status)
	assert.Equal(t, 250.0, j.Quotation)
	assert.Equal(t, StepQuotation, j.WorkflowStep)

	last := j.JobHistory[len(j.JobHistory)-1]
	assert.Equal(t, "quotation_tbd", last.Action)
	assert.Equal(t, "Customer still deciding on quotation", last.Description)

	// the workflow resumes from the quotation
	require.NoError(t, CompleteStep(&j, worker, StepQuotation, StepData{Quotation: floatPtr(240)}))
	assert.Equal(t, 240.0, j.Quotation)
	assert.Equal(t, StatusConfirmed, j.Status)
}

func TestProgress(t *testing.T) {
	tests := []struct {
		jobType string
		step    string
		want    float64
	}{
		{TypeMeasurement, StepStart, 0},
		{TypeMeasurement, StepMeasurements, 100 * 2.0 / 5},
		{TypeMeasurement, StepPayment, 100 * 4.0 / 5},
		{TypeInstallation, StepQuotation, 100 * 3.0 / 6},
		{TypeInstallation, StepSignature, 100 * 5.0 / 6},
		{TypeInstallation, StepComplete, 100},
	}
	for _, tt := range tests {
		t.Run(tt.jobType+"/"+tt.step, func(t *testing.T) {
			j := newTestJob(tt.jobType)
			j.WorkflowStep = tt.step
			assert.InDelta(t, tt.want, Progress(j), 0.0001)
		})
	}
}
