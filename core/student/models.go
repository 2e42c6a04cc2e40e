package student

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"
)

type PaymentStatus string

const (
	StatusUnpaid        PaymentStatus = "Unpaid"
	StatusPartiallyPaid PaymentStatus = "Partially Paid"
	StatusPaid          PaymentStatus = "Paid"
)

type GradeStatus string

const (
	GradePending  GradeStatus = "Pending"
	GradeRatified GradeStatus = "Ratified"
)

func (s GradeStatus) Valid() bool {
	switch s {
	case GradePending, GradeRatified:
		return true
	default:
		return false
	}
}

// Grade field names
const (
	FieldExam       = "exam"
	FieldFinal      = "final"
	FieldStatus     = "status"
	classworkPrefix = "C"
)

// ClassworkField returns the name of the i-th (0-based) classwork column, eg. 0 -> "C1".
func ClassworkField(i int) string {
	return classworkPrefix + strconv.Itoa(i+1)
}

// classworkIndex returns the 0-based index named by `field` ("C3" -> 2).
func classworkIndex(field string) (int, bool) {
	if !strings.HasPrefix(field, classworkPrefix) {
		return 0, false
	}
	k, err := strconv.Atoi(field[len(classworkPrefix):])
	if err != nil || k < 1 {
		return 0, false
	}
	return k - 1, true
}

// Grades of one subject. Classwork[i] is the value of column C<i+1>.
type Grades struct {
	Classwork []string
	Exam      string
	Final     string
	Status    GradeStatus
}

// NewGrades returns the grades every newly enrolled subject starts with.
func NewGrades() Grades {
	return Grades{Classwork: []string{"", ""}, Status: GradePending}
}

func (g Grades) Clone() Grades {
	g.Classwork = append([]string(nil), g.Classwork...)
	return g
}

// ToMap flattens the grades into {"C1": .., "exam": .., "final": .., "status": ..}.
func (g Grades) ToMap() map[string]string {
	m := make(map[string]string, len(g.Classwork)+3)
	for i, v := range g.Classwork {
		m[ClassworkField(i)] = v
	}
	m[FieldExam] = g.Exam
	m[FieldFinal] = g.Final
	m[FieldStatus] = string(g.Status)
	return m
}

// GradesFromMap is the inverse of Grades.ToMap. Classwork columns are ordered by number, gaps are closed.
func GradesFromMap(m map[string]string) Grades {
	type col struct {
		idx int
		val string
	}
	cols := make([]col, 0, len(m))
	for k, v := range m {
		if idx, ok := classworkIndex(k); ok {
			cols = append(cols, col{idx, v})
		}
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].idx < cols[j].idx })

	g := Grades{
		Classwork: make([]string, 0, len(cols)),
		Exam:      m[FieldExam],
		Final:     m[FieldFinal],
		Status:    GradeStatus(m[FieldStatus]),
	}
	for _, c := range cols {
		g.Classwork = append(g.Classwork, c.val)
	}
	if g.Status == "" {
		g.Status = GradePending
	}
	return g
}

func (g Grades) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.ToMap())
}

func (g *Grades) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*g = GradesFromMap(m)
	return nil
}

type Subject struct {
	Name   string `json:"name"`
	Grades Grades `json:"grades"`
}

type Course struct {
	Name     string    `json:"name"`
	Fee      float64   `json:"fee"`
	Subjects []Subject `json:"subjects"`
}

type Installment struct {
	Amount  float64   `json:"amount"`
	DueDate time.Time `json:"due_date"`
	Paid    bool      `json:"paid"`
}

type PaymentPlan struct {
	PlanType     string        `json:"plan_type"`
	Installments []Installment `json:"installments"`
}

// Record is the academic & financial record of one student; its ID is the student's user ID.
type Record struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Courses       []Course      `json:"courses"`
	TotalOwed     float64       `json:"total_owed"`
	TotalPaid     float64       `json:"total_paid"`
	Balance       float64       `json:"balance"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Clearance     bool          `json:"clearance"`
	PaymentPlan   PaymentPlan   `json:"payment_plan"`
	Version       int64         `json:"version"`
	UpdatedAt     time.Time     `json:"updated_at"` // UTC
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	courses := make([]Course, len(r.Courses))
	for i, c := range r.Courses {
		subjects := make([]Subject, len(c.Subjects))
		for j, s := range c.Subjects {
			subjects[j] = Subject{Name: s.Name, Grades: s.Grades.Clone()}
		}
		c.Subjects = subjects
		courses[i] = c
	}
	r.Courses = courses
	r.PaymentPlan.Installments = append([]Installment(nil), r.PaymentPlan.Installments...)
	return r
}

func (r *Record) findSubject(course, subject string) (*Subject, error) {
	for i := range r.Courses {
		if r.Courses[i].Name != course {
			continue
		}
		for j := range r.Courses[i].Subjects {
			if r.Courses[i].Subjects[j].Name == subject {
				return &r.Courses[i].Subjects[j], nil
			}
		}
		return nil, fieldError("subject", ErrSubjectNotFound)
	}
	return nil, fieldError("course", ErrCourseNotFound)
}
