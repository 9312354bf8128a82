// Package shared holds the validation setup of the apps.
package shared

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/fieldpro/core"
	"github.com/trezcool/fieldpro/core/job"
	"github.com/trezcool/fieldpro/core/schedule"
	"github.com/trezcool/fieldpro/core/user"
)

// NewTranslator returns the english translator used for validation messages.
func NewTranslator() ut.Translator {
	return core.NewTranslator()
}

// NewValidator returns a validator with every custom validation of the domain registered.
func NewValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	InitValidators(validate, translator)
	return validate
}

// InitValidators registers the custom validations and their english messages.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	job.InitValidators(validate, translator)
	schedule.InitValidators(validate, translator)
}
