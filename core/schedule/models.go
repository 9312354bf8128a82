package schedule

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/fieldpro/core"
)

var (
	timeRangeTag  = "timerange"
	timeRangeText = "start must be before end"
)

// DayHours are the working hours of a single weekday, HH:MM 24h times.
type DayHours struct {
	Start     string `json:"start" validate:"required,hhmm"`
	End       string `json:"end" validate:"required,hhmm"`
	Available bool   `json:"available"`
}

// Contains reports whether the HH:MM time `hhmm` is within [Start, End).
func (d DayHours) Contains(hhmm string) bool {
	return d.Available && hhmm >= d.Start && hhmm < d.End
}

type WorkingHours struct {
	Monday    DayHours `json:"monday"`
	Tuesday   DayHours `json:"tuesday"`
	Wednesday DayHours `json:"wednesday"`
	Thursday  DayHours `json:"thursday"`
	Friday    DayHours `json:"friday"`
	Saturday  DayHours `json:"saturday"`
	Sunday    DayHours `json:"sunday"`
}

// DefaultWorkingHours are used for employees who never set theirs.
func DefaultWorkingHours() WorkingHours {
	weekday := DayHours{Start: "09:00", End: "17:00", Available: true}
	weekend := DayHours{Start: "09:00", End: "13:00", Available: false}
	return WorkingHours{
		Monday:    weekday,
		Tuesday:   weekday,
		Wednesday: weekday,
		Thursday:  weekday,
		Friday:    weekday,
		Saturday:  weekend,
		Sunday:    weekend,
	}
}

func (wh WorkingHours) Day(d time.Weekday) DayHours {
	switch d {
	case time.Monday:
		return wh.Monday
	case time.Tuesday:
		return wh.Tuesday
	case time.Wednesday:
		return wh.Wednesday
	case time.Thursday:
		return wh.Thursday
	case time.Friday:
		return wh.Friday
	case time.Saturday:
		return wh.Saturday
	default:
		return wh.Sunday
	}
}

func (wh *WorkingHours) Validate(validate *validator.Validate) error {
	return validate.Struct(wh)
}

// InitValidators registers the working hours validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	validate.RegisterStructValidation(dayHoursStructValidation, DayHours{})
	core.RegisterCustomTranslation(validate, translator, timeRangeTag, timeRangeText)
}

func dayHoursStructValidation(sl validator.StructLevel) {
	d := sl.Current().Interface().(DayHours)
	if d.Start != "" && d.End != "" && d.Start >= d.End {
		sl.ReportError(d.End, "end", "End", timeRangeTag, "")
	}
}
