package student

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ismis/core"
)

var (
	gradeFieldTag  = "gradefield"
	gradeFieldText = "must be one of C1..Cn, exam or status"

	planTypeTag  = "plantype"
	planTypeText = "invalid payment plan"
)

// InitValidators registers the student validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(gradeFieldTag, gradeFieldValidation)
	core.RegisterCustomTranslation(validate, translator, gradeFieldTag, gradeFieldText)

	_ = validate.RegisterValidation(planTypeTag, planTypeValidation)
	core.RegisterCustomTranslation(validate, translator, planTypeTag, planTypeText)
}

func gradeFieldValidation(fl validator.FieldLevel) bool {
	field := fl.Field().String()
	if field == FieldExam || field == FieldStatus {
		return true
	}
	_, ok := classworkIndex(field)
	return ok
}

func planTypeValidation(fl validator.FieldLevel) bool {
	return validPlan(fl.Field().String())
}
