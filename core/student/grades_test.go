package student

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ismis/core"
)

func TestComputeFinal(t *testing.T) {
	tests := []struct {
		name      string
		classwork []string
		exam      string
		wantFinal string
		wantOk    bool
	}{
		{name: "weighted", classwork: []string{"80", "90"}, exam: "70", wantFinal: "76.00", wantOk: true},
		{name: "two decimals", classwork: []string{"85", "90", "78"}, exam: "66.5", wantFinal: "73.63", wantOk: true},
		{name: "empty classwork skipped", classwork: []string{"80", ""}, exam: "70", wantFinal: "74.00", wantOk: true},
		{name: "text classwork skipped", classwork: []string{"abc", "90"}, exam: "70", wantFinal: "78.00", wantOk: true},
		{name: "no classwork number", classwork: []string{"", "x"}, exam: "70", wantOk: false},
		{name: "empty exam", classwork: []string{"80", "90"}, exam: "", wantOk: false},
		{name: "text exam", classwork: []string{"80", "90"}, exam: "absent", wantOk: false},
		{name: "NaN exam", classwork: []string{"80", "90"}, exam: "NaN", wantOk: false},
		{name: "infinite exam", classwork: []string{"80", "90"}, exam: "-Inf", wantOk: false},
		{name: "infinite classwork skipped", classwork: []string{"Inf", "90"}, exam: "70", wantFinal: "78.00", wantOk: true},
		{name: "only non-finite classwork", classwork: []string{"NaN", "Infinity"}, exam: "70", wantOk: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			final, ok := ComputeFinal(tt.classwork, tt.exam)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.wantFinal, final)
		})
	}
}

func TestGrades_Set(t *testing.T) {
	tests := []struct {
		name       string
		field      string
		value      string
		wantErr    error
		wantGrades Grades
	}{
		{
			name:       "classwork recomputes final",
			field:      "C2",
			value:      " 90 ",
			wantGrades: Grades{Classwork: []string{"80", "90"}, Exam: "70", Final: "76.00", Status: GradePending},
		},
		{
			name:       "exam recomputes final",
			field:      FieldExam,
			value:      "100",
			wantGrades: Grades{Classwork: []string{"80", ""}, Exam: "100", Final: "92.00", Status: GradePending},
		},
		{
			name:       "unparseable exam keeps final",
			field:      FieldExam,
			value:      "",
			wantGrades: Grades{Classwork: []string{"80", ""}, Exam: "", Final: "old", Status: GradePending},
		},
		{
			name:       "NaN exam keeps final",
			field:      FieldExam,
			value:      "NaN",
			wantGrades: Grades{Classwork: []string{"80", ""}, Exam: "NaN", Final: "old", Status: GradePending},
		},
		{
			name:       "infinite classwork is skipped",
			field:      "C2",
			value:      "Inf",
			wantGrades: Grades{Classwork: []string{"80", "Inf"}, Exam: "70", Final: "74.00", Status: GradePending},
		},
		{
			name:       "status",
			field:      FieldStatus,
			value:      "Ratified",
			wantGrades: Grades{Classwork: []string{"80", ""}, Exam: "70", Final: "old", Status: GradeRatified},
		},
		{name: "invalid status", field: FieldStatus, value: "Done", wantErr: ErrInvalidGradeStatus},
		{name: "final", field: FieldFinal, value: "99", wantErr: ErrFinalNotSettable},
		{name: "unknown field", field: "midterm", value: "99", wantErr: ErrInvalidGradeField},
		{name: "C0", field: "C0", value: "99", wantErr: ErrInvalidGradeField},
		{name: "missing column", field: "C3", value: "99", wantErr: ErrClassworkNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Grades{Classwork: []string{"80", ""}, Exam: "70", Final: "old", Status: GradePending}
			err := g.Set(tt.field, tt.value)
			if tt.wantErr != nil {
				require.Error(t, err)
				vErr, ok := err.(*core.ValidationError)
				require.True(t, ok)
				assert.Equal(t, tt.wantErr, vErr.Err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantGrades, g)
		})
	}
}

func TestGrades_AddClasswork(t *testing.T) {
	g := NewGrades()
	assert.Equal(t, "C3", g.AddClasswork())
	assert.Equal(t, "C4", g.AddClasswork())
	assert.Len(t, g.Classwork, 4)
	assert.NoError(t, g.Set("C4", "50"))
}

func TestGrades_JSON(t *testing.T) {
	g := Grades{Classwork: []string{"80", "90", "", "", "", "", "", "", "", "75"}, Exam: "70", Final: "78.00", Status: GradeRatified}

	data, err := json.Marshal(g)
	require.NoError(t, err)
	var m map[string]string
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "80", m["C1"])
	assert.Equal(t, "75", m["C10"])
	assert.Equal(t, "Ratified", m["status"])

	var decoded Grades
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, g, decoded)

	t.Run("new subject defaults", func(t *testing.T) {
		data, err := json.Marshal(NewGrades())
		require.NoError(t, err)
		assert.JSONEq(t, `{"C1": "", "C2": "", "exam": "", "final": "", "status": "Pending"}`, string(data))
	})
}

func TestCourseAverage(t *testing.T) {
	withFinal := func(finals ...string) []Subject {
		subjects := make([]Subject, len(finals))
		for i, f := range finals {
			subjects[i] = Subject{Name: f, Grades: Grades{Final: f}}
		}
		return subjects
	}

	assert.Equal(t, NotAvailable, CourseAverage(nil))
	assert.Equal(t, "75.00", CourseAverage(withFinal("70", "80")))
	assert.Equal(t, "40.00", CourseAverage(withFinal("80", "")))
	assert.Equal(t, "76.33", CourseAverage(withFinal("76.00", "77", "76")))
}

func TestEditSession(t *testing.T) {
	courses, _ := enrolledCourses([]string{"Computer Course"})
	rec := Record{ID: "s1", Courses: courses, Version: 3}
	es := NewEditSession(rec)

	assert.False(t, es.Dirty())
	require.NoError(t, es.Apply(GradeEdit{Course: "Computer Course", Subject: "Operating Systems", Field: "C1", Value: "80"}))
	require.NoError(t, es.Apply(GradeEdit{Course: "Computer Course", Subject: "Operating Systems", Field: "C2", Value: "90"}))
	require.NoError(t, es.Apply(GradeEdit{Course: "Computer Course", Subject: "Operating Systems", Field: "exam", Value: "70"}))
	field, err := es.AddClasswork("Computer Course", "Operating Systems")
	require.NoError(t, err)
	assert.Equal(t, "C3", field)
	assert.True(t, es.Dirty())

	edited := es.Record()
	assert.Equal(t, int64(3), edited.Version)
	grades := edited.Courses[0].Subjects[3].Grades
	assert.Equal(t, []string{"80", "90", ""}, grades.Classwork)
	assert.Equal(t, "76.00", grades.Final)

	// original left untouched
	assert.Equal(t, []string{"", ""}, rec.Courses[0].Subjects[3].Grades.Classwork)

	t.Run("unknown course", func(t *testing.T) {
		err := es.Apply(GradeEdit{Course: "Art", Subject: "Operating Systems", Field: "C1"})
		require.Error(t, err)
		assert.Equal(t, ErrCourseNotFound, err.(*core.ValidationError).Err)
	})

	t.Run("unknown subject", func(t *testing.T) {
		_, err := es.AddClasswork("Computer Course", "Painting")
		require.Error(t, err)
		assert.Equal(t, ErrSubjectNotFound, err.(*core.ValidationError).Err)
	})
}
