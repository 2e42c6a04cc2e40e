package student_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ismis/core"
	"github.com/trezcool/ismis/core/student"
	"github.com/trezcool/ismis/core/user"
	dummydb "github.com/trezcool/ismis/storage/database/dummy"
	"github.com/trezcool/ismis/testutil"
)

const (
	computer = "Computer Course"
	science  = "Science Course"
	intro    = "Introduction to Programming"
)

var (
	teacher  = user.Profile{ID: "t1", Name: "Tom", Role: user.RoleTeacher}
	admin    = user.Profile{ID: "a1", Name: "Ann", Role: user.RoleAdmin}
	accounts = user.Profile{ID: "c1", Name: "Cam", Role: user.RoleAccountsAdmin}
	jane     = user.Profile{ID: "s1", Name: "Jane", Role: user.RoleStudent}
	john     = user.Profile{ID: "s2", Name: "John", Role: user.RoleStudent}
)

func setup(t *testing.T) student.Service {
	t.Helper()
	validate, _ := testutil.NewValidator()
	svc := student.NewService(dummydb.NewStudentRepository(dummydb.Open()), validate)

	ctx := context.Background()
	require.NoError(t, svc.Enroll(ctx, jane, []string{computer, science}, student.PlanTwoInstallments))
	require.NoError(t, svc.Enroll(ctx, john, []string{computer}, student.PlanFull))
	return svc
}

func subjectGrades(t *testing.T, rec student.Record, course, subject string) student.Grades {
	t.Helper()
	for _, c := range rec.Courses {
		if c.Name != course {
			continue
		}
		for _, s := range c.Subjects {
			if s.Name == subject {
				return s.Grades
			}
		}
	}
	t.Fatalf("%s / %s not found", course, subject)
	return student.Grades{}
}

func TestService_Get(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	tests := []struct {
		name    string
		actor   user.Profile
		id      string
		wantErr error
	}{
		{"own record", jane, jane.ID, nil},
		{"other student", jane, john.ID, student.ErrNotFound},
		{"teacher", teacher, john.ID, nil},
		{"accounts admin", accounts, jane.ID, nil},
		{"unknown", admin, "nope", student.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := svc.Get(ctx, tt.actor, tt.id)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, rec.ID)
		})
	}
}

func TestService_Enroll(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	rec, err := svc.Get(ctx, admin, jane.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane", rec.Name)
	assert.Equal(t, int64(1), rec.Version)
	assert.Equal(t, 325000.0, rec.TotalOwed)
	require.Len(t, rec.Courses, 2)
	assert.Len(t, rec.Courses[0].Subjects, 6)
	assert.Equal(t, student.NewGrades(), rec.Courses[0].Subjects[0].Grades)
	require.Len(t, rec.PaymentPlan.Installments, 2)
	assert.Equal(t, 162500.0, rec.PaymentPlan.Installments[0].Amount)
	assert.Equal(t, 30*24*time.Hour, rec.PaymentPlan.Installments[1].DueDate.Sub(rec.PaymentPlan.Installments[0].DueDate))
}

func TestService_Query(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	_, err := svc.Query(ctx, jane)
	assert.Equal(t, user.ErrPermissionDenied, err)

	recs, err := svc.Query(ctx, teacher)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, []string{"Jane", "John"}, []string{recs[0].Name, recs[1].Name})

	// unknown fields are ignored
	recs, err = svc.Query(ctx, accounts, core.DBOrdering{Field: "password"}, core.DBOrdering{Field: "total_owed"})
	require.NoError(t, err)
	assert.Equal(t, []string{"John", "Jane"}, []string{recs[0].Name, recs[1].Name})

	recs, err = svc.Query(ctx, accounts, core.DBOrdering{Field: "name"})
	require.NoError(t, err)
	assert.Equal(t, []string{"John", "Jane"}, []string{recs[0].Name, recs[1].Name})
}

func TestService_SaveGrades(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		svc := setup(t)
		rec, err := svc.SaveGrades(ctx, teacher, jane.ID, 1, []student.GradeEdit{
			{Course: computer, Subject: intro, Field: "C1", Value: "80"},
			{Course: computer, Subject: intro, Field: "C2", Value: "90"},
			{Course: computer, Subject: intro, Field: "exam", Value: "70"},
			{Course: computer, Subject: intro, Field: "status", Value: "Ratified"},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(2), rec.Version)

		g := subjectGrades(t, rec, computer, intro)
		assert.Equal(t, []string{"80", "90"}, g.Classwork)
		assert.Equal(t, "76.00", g.Final)
		assert.Equal(t, student.GradeRatified, g.Status)

		stored, err := svc.Get(ctx, jane, jane.ID)
		require.NoError(t, err)
		assert.Equal(t, rec, stored)
	})

	t.Run("stale version", func(t *testing.T) {
		svc := setup(t)
		edit := student.GradeEdit{Course: computer, Subject: intro, Field: "exam", Value: "50"}
		_, err := svc.SaveGrades(ctx, admin, jane.ID, 1, []student.GradeEdit{edit})
		require.NoError(t, err)

		_, err = svc.SaveGrades(ctx, teacher, jane.ID, 1, []student.GradeEdit{edit})
		assert.Equal(t, student.ErrConflict, errors.Cause(err))
	})

	t.Run("nothing saved on error", func(t *testing.T) {
		svc := setup(t)
		_, err := svc.SaveGrades(ctx, teacher, jane.ID, 1, []student.GradeEdit{
			{Course: computer, Subject: intro, Field: "exam", Value: "50"},
			{Course: computer, Subject: intro, Field: "C3", Value: "50"},
		})
		require.True(t, core.IsValidationError(err), "%v", err)
		assert.Equal(t, student.ErrClassworkNotFound, errors.Cause(err).(*core.ValidationError).Err)

		rec, err := svc.Get(ctx, teacher, jane.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), rec.Version)
		assert.Empty(t, subjectGrades(t, rec, computer, intro).Exam)
	})

	t.Run("no edits", func(t *testing.T) {
		svc := setup(t)
		rec, err := svc.SaveGrades(ctx, teacher, jane.ID, 1, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1), rec.Version)
	})

	denied := []user.Profile{jane, accounts}
	for _, actor := range denied {
		t.Run("denied "+actor.Role.String(), func(t *testing.T) {
			svc := setup(t)
			_, err := svc.SaveGrades(ctx, actor, jane.ID, 1, []student.GradeEdit{
				{Course: computer, Subject: intro, Field: "exam", Value: "50"},
			})
			assert.Equal(t, user.ErrPermissionDenied, err)
		})
	}

	t.Run("invalid field", func(t *testing.T) {
		svc := setup(t)
		_, err := svc.SaveGrades(ctx, teacher, jane.ID, 1, []student.GradeEdit{
			{Course: computer, Subject: intro, Field: "final", Value: "99"},
		})
		assert.Error(t, err)
	})
}

func TestService_SetGrade(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	rec, err := svc.SetGrade(ctx, teacher, john.ID, student.GradeEdit{Course: computer, Subject: intro, Field: "C1", Value: "60"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Version)

	rec, err = svc.SetGrade(ctx, teacher, john.ID, student.GradeEdit{Course: computer, Subject: intro, Field: "exam", Value: "80"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.Version)
	assert.Equal(t, "72.00", subjectGrades(t, rec, computer, intro).Final)

	_, err = svc.SetGrade(ctx, teacher, john.ID, student.GradeEdit{Course: science, Subject: intro, Field: "exam", Value: "80"})
	require.True(t, core.IsValidationError(err))
	assert.Equal(t, student.ErrCourseNotFound, errors.Cause(err).(*core.ValidationError).Err)

	_, err = svc.SetGrade(ctx, teacher, john.ID, student.GradeEdit{Course: computer, Subject: "Art", Field: "exam", Value: "80"})
	require.True(t, core.IsValidationError(err))
	assert.Equal(t, student.ErrSubjectNotFound, errors.Cause(err).(*core.ValidationError).Err)
}

func TestService_AddClassworkField(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	rec, err := svc.AddClassworkField(ctx, teacher, jane.ID, computer, intro)
	require.NoError(t, err)
	assert.Equal(t, []string{"", "", ""}, subjectGrades(t, rec, computer, intro).Classwork)

	rec, err = svc.SetGrade(ctx, teacher, jane.ID, student.GradeEdit{Course: computer, Subject: intro, Field: "C3", Value: "75"})
	require.NoError(t, err)
	assert.Equal(t, "75", subjectGrades(t, rec, computer, intro).Classwork[2])

	_, err = svc.AddClassworkField(ctx, jane, jane.ID, computer, intro)
	assert.Equal(t, user.ErrPermissionDenied, err)
}

func TestService_SetClearance(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	for _, actor := range []user.Profile{admin, accounts} {
		rec, err := svc.SetClearance(ctx, actor, jane.ID, true)
		require.NoError(t, err)
		assert.True(t, rec.Clearance)

		rec, err = svc.SetClearance(ctx, actor, jane.ID, false)
		require.NoError(t, err)
		assert.False(t, rec.Clearance)
	}

	for _, actor := range []user.Profile{teacher, jane} {
		_, err := svc.SetClearance(ctx, actor, jane.ID, true)
		assert.Equal(t, user.ErrPermissionDenied, err)
	}

	_, err := svc.SetClearance(ctx, admin, "nope", true)
	assert.Equal(t, student.ErrNotFound, errors.Cause(err))
}

func TestService_GradeReports(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	_, err := svc.SaveGrades(ctx, teacher, john.ID, 1, []student.GradeEdit{
		{Course: computer, Subject: intro, Field: "C1", Value: "100"},
		{Course: computer, Subject: intro, Field: "exam", Value: "100"},
	})
	require.NoError(t, err)

	rpt, err := svc.GradeReport(ctx, john, john.ID)
	require.NoError(t, err)
	require.Len(t, rpt.Courses, 1)
	assert.Equal(t, "John", rpt.StudentName)
	assert.Equal(t, "16.67", rpt.Courses[0].Average)

	_, err = svc.GradeReport(ctx, john, jane.ID)
	assert.Equal(t, student.ErrNotFound, err)

	_, err = svc.GradeReports(ctx, john)
	assert.Equal(t, user.ErrPermissionDenied, err)

	reports, err := svc.GradeReports(ctx, teacher)
	require.NoError(t, err)
	assert.Len(t, reports, 2)
}
