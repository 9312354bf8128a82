package job

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/fieldpro/core"
)

var (
	customerRequiredTag  = "customer_required"
	customerRequiredText = "an existing customer or new customer details are required"

	parentTypeTag  = "parent_type"
	parentTypeText = "only installation jobs can follow up on another job"
)

// InitValidators registers the job validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(newJobStructValidation, NewJob{})
	core.RegisterCustomTranslation(validate, translator, customerRequiredTag, customerRequiredText)
	core.RegisterCustomTranslation(validate, translator, parentTypeTag, parentTypeText)
}

func newJobStructValidation(sl validator.StructLevel) {
	nj := sl.Current().Interface().(NewJob)
	if nj.CustomerID == "" && nj.Customer == nil && nj.ParentJobID == "" {
		sl.ReportError(nj.CustomerID, "customer_id", "CustomerID", customerRequiredTag, "")
	}
	if nj.ParentJobID != "" && nj.JobType != TypeInstallation {
		sl.ReportError(nj.ParentJobID, "parent_job_id", "ParentJobID", parentTypeTag, "")
	}
}
