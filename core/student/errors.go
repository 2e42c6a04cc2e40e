package student

import (
	"github.com/pkg/errors"

	"github.com/trezcool/ismis/core"
)

var (
	ErrNotFound           = errors.New("student record not found")
	ErrConflict           = errors.New("student record was modified concurrently, reload and retry")
	ErrCourseNotFound     = errors.New("course not found")
	ErrSubjectNotFound    = errors.New("subject not found")
	ErrClassworkNotFound  = errors.New("classwork column does not exist")
	ErrInvalidGradeField  = errors.New("must be one of C1..Cn, exam or status")
	ErrInvalidGradeStatus = errors.New("status must be Pending or Ratified")
	ErrFinalNotSettable   = errors.New("final is computed from classwork and exam")
	ErrNoCourse           = errors.New("please select at least one course")
	ErrUnknownCourse      = errors.New("unknown course")
	ErrInvalidPlan        = errors.New("invalid payment plan")
)

func fieldError(field string, err error) error {
	return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
}
