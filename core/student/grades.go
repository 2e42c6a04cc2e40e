package student

import (
	"math"
	"strconv"
	"strings"

	"github.com/trezcool/ismis/core"
)

const (
	classworkWeight = 0.4
	examWeight      = 0.6

	// NotAvailable is the course average of a course without subjects.
	NotAvailable = "N/A"
)

// GradeEdit sets one grade field of one subject of one course.
type GradeEdit struct {
	Course  string `json:"course" validate:"required"`
	Subject string `json:"subject" validate:"required"`
	Field   string `json:"field" validate:"required,gradefield"`
	Value   string `json:"value"`
}

func parseScore(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ComputeFinal returns avg(classwork)*0.4 + exam*0.6 with 2 decimals.
// Empty, non-numeric or non-finite classwork values are skipped; ok is false when no classwork value or the exam is not a number.
func ComputeFinal(classwork []string, exam string) (final string, ok bool) {
	examScore, ok := parseScore(exam)
	if !ok {
		return "", false
	}
	var sum float64
	var n int
	for _, v := range classwork {
		if score, ok := parseScore(v); ok {
			sum += score
			n++
		}
	}
	if n == 0 {
		return "", false
	}
	return core.FormatDecimal(sum/float64(n)*classworkWeight + examScore*examWeight), true
}

// Set sets `field` to `value`, recomputing Final when a classwork or exam value changes.
// Final itself cannot be set. Setting C<k> requires column k to exist (see AddClasswork).
func (g *Grades) Set(field, value string) error {
	value = strings.TrimSpace(value)
	switch field {
	case FieldFinal:
		return fieldError("field", ErrFinalNotSettable)
	case FieldStatus:
		status := GradeStatus(value)
		if !status.Valid() {
			return fieldError("value", ErrInvalidGradeStatus)
		}
		g.Status = status
		return nil
	case FieldExam:
		g.Exam = value
	default:
		idx, ok := classworkIndex(field)
		if !ok {
			return fieldError("field", ErrInvalidGradeField)
		}
		if idx >= len(g.Classwork) {
			return fieldError("field", ErrClassworkNotFound)
		}
		g.Classwork[idx] = value
	}

	if final, ok := ComputeFinal(g.Classwork, g.Exam); ok {
		g.Final = final
	}
	return nil
}

// AddClasswork appends an empty classwork column and returns its name.
func (g *Grades) AddClasswork() string {
	g.Classwork = append(g.Classwork, "")
	return ClassworkField(len(g.Classwork) - 1)
}

// CourseAverage is the mean of the subjects' finals (an empty final counts as 0) with 2 decimals, or N/A.
func CourseAverage(subjects []Subject) string {
	if len(subjects) == 0 {
		return NotAvailable
	}
	var sum float64
	for _, s := range subjects {
		score, _ := parseScore(s.Grades.Final)
		sum += score
	}
	return core.FormatDecimal(sum / float64(len(subjects)))
}

// EditSession accumulates grade edits on a private copy of a record until it is saved.
type EditSession struct {
	rec   Record
	dirty bool
}

func NewEditSession(rec Record) *EditSession {
	return &EditSession{rec: rec.Clone()}
}

func (es *EditSession) Apply(edit GradeEdit) error {
	subj, err := es.rec.findSubject(edit.Course, edit.Subject)
	if err != nil {
		return err
	}
	if err := subj.Grades.Set(edit.Field, edit.Value); err != nil {
		return err
	}
	es.dirty = true
	return nil
}

func (es *EditSession) AddClasswork(course, subject string) (string, error) {
	subj, err := es.rec.findSubject(course, subject)
	if err != nil {
		return "", err
	}
	es.dirty = true
	return subj.Grades.AddClasswork(), nil
}

func (es *EditSession) Dirty() bool { return es.dirty }

// Record returns a copy of the edited record; its Version is the one the session started from.
func (es *EditSession) Record() Record { return es.rec.Clone() }
