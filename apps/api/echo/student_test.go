package echoapi

import (
	"bytes"
	"encoding/csv"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/ismis/core/payment"
	"github.com/trezcool/ismis/core/student"
)

const (
	computer = "Computer Course"
	intro    = "Introduction to Programming"
)

func Test_studentApi_query(t *testing.T) {
	app := newTestApp(t)
	jane, john := app.record(t, app.jane.ID), app.record(t, app.john.ID)

	app.run(t, []httpTest{
		{name: "auth required", path: "/v1/students", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, missingTokenErr)},
		{
			name: "staff required", path: "/v1/students", token: app.token(t, app.jane),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, forbiddenErr),
		},
		{name: "teacher", path: "/v1/students", token: app.token(t, app.teacher), wantData: marchallList(t, jane, john)},
		{name: "accounts admin", path: "/v1/students", token: app.token(t, app.accounts), wantData: marchallList(t, jane, john)},
		{
			name: "ordering=-total_owed", path: "/v1/students?ordering=-total_owed", token: app.token(t, app.admin),
			wantData: marchallList(t, jane, john),
		},
		{
			name: "ordering=total_owed", path: "/v1/students?ordering=total_owed", token: app.token(t, app.admin),
			wantData: marchallList(t, john, jane),
		},
		{
			name: "ordering (unknown field)", path: "/v1/students?ordering=-nope", token: app.token(t, app.admin),
			wantData: marchallList(t, jane, john),
		},
	})
}

func Test_studentApi_retrieve(t *testing.T) {
	app := newTestApp(t)
	jane, john := app.record(t, app.jane.ID), app.record(t, app.john.ID)
	notFound := marchallObj(t, httpErr{Error: student.ErrNotFound.Error()})

	app.run(t, []httpTest{
		{name: "me", path: "/v1/students/me", token: app.token(t, app.jane), wantData: marchallObj(t, jane)},
		{
			name: "me (staff)", path: "/v1/students/me", token: app.token(t, app.teacher),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, forbiddenErr),
		},
		{name: "own", path: "/v1/students/" + app.jane.ID, token: app.token(t, app.jane), wantData: marchallObj(t, jane)},
		{
			name: "other student", path: "/v1/students/" + app.john.ID, token: app.token(t, app.jane),
			wantCode: http.StatusNotFound, wantData: notFound,
		},
		{name: "teacher", path: "/v1/students/" + app.john.ID, token: app.token(t, app.teacher), wantData: marchallObj(t, john)},
		{
			name: "unknown", path: "/v1/students/nope", token: app.token(t, app.admin),
			wantCode: http.StatusNotFound, wantData: notFound,
		},
		{
			name: "grades (me)", path: "/v1/students/me/grades", token: app.token(t, app.john),
			wantData: marchallObj(t, student.BuildReport(john)),
		},
		{
			name: "grades", path: "/v1/students/" + app.jane.ID + "/grades", token: app.token(t, app.accounts),
			wantData: marchallObj(t, student.BuildReport(jane)),
		},
	})
}

func Test_studentApi_grades(t *testing.T) {
	app := newTestApp(t)
	path := "/v1/students/" + app.jane.ID + "/grades"
	teacherToken := app.token(t, app.teacher)

	save := func(version int64, edits ...student.GradeEdit) []byte {
		return marchallObj(t, SaveGradesRequest{Version: version, Edits: edits})
	}
	edit := func(field, value string) student.GradeEdit {
		return student.GradeEdit{Course: computer, Subject: intro, Field: field, Value: value}
	}

	app.run(t, []httpTest{
		{
			name: "student cannot edit", method: http.MethodPatch, path: path, token: app.token(t, app.jane),
			body: save(1, edit("exam", "99")), wantCode: http.StatusForbidden, wantData: marchallObj(t, forbiddenErr),
		},
		{
			name: "accounts admin cannot edit", method: http.MethodPatch, path: path, token: app.token(t, app.accounts),
			body: save(1, edit("exam", "99")), wantCode: http.StatusForbidden, wantData: marchallObj(t, forbiddenErr),
		},
		{
			name: "final is computed", method: http.MethodPatch, path: path, token: teacherToken,
			body: save(1, edit("final", "99")), wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown classwork", method: http.MethodPatch, path: path, token: teacherToken,
			body:     save(1, edit("C3", "99")),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"field": student.ErrClassworkNotFound.Error()}),
		},
		{
			name: "unknown course", method: http.MethodPatch, path: path, token: teacherToken,
			body:     save(1, student.GradeEdit{Course: "Art", Subject: intro, Field: "exam", Value: "1"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"course": student.ErrCourseNotFound.Error()}),
		},
	})

	t.Run("save then conflict", func(t *testing.T) {
		rec := app.serve(httpTest{
			method: http.MethodPatch, path: path, token: teacherToken,
			body: save(1, edit("C1", "80"), edit("C2", "90"), edit("exam", "70")),
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var updated student.Record
		decode(t, rec, &updated)
		assert.Equal(t, int64(2), updated.Version)
		assert.Equal(t, "76.00", updated.Courses[0].Subjects[0].Grades.Final)

		checkCodeAndData(t, httpTest{
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "the record was modified by someone else, please reload it"}),
		}, app.serve(httpTest{method: http.MethodPatch, path: path, token: app.token(t, app.admin), body: save(1, edit("exam", "10"))}))
	})

	t.Run("set single grade", func(t *testing.T) {
		rec := app.serve(httpTest{
			method: http.MethodPut, path: path + "/status", token: teacherToken,
			body: marchallObj(t, student.GradeEdit{Course: computer, Subject: intro, Value: "Ratified"}),
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var updated student.Record
		decode(t, rec, &updated)
		assert.Equal(t, student.GradeRatified, updated.Courses[0].Subjects[0].Grades.Status)
	})

	t.Run("add classwork", func(t *testing.T) {
		rec := app.serve(httpTest{
			method: http.MethodPost, path: path + "/classwork", token: teacherToken,
			body: marchallObj(t, AddClassworkRequest{Course: computer, Subject: intro}),
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = app.serve(httpTest{
			method: http.MethodPut, path: path + "/C3", token: teacherToken,
			body: marchallObj(t, student.GradeEdit{Course: computer, Subject: intro, Value: "100"}),
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var updated student.Record
		decode(t, rec, &updated)
		assert.Equal(t, []string{"80", "90", "100"}, updated.Courses[0].Subjects[0].Grades.Classwork)
		assert.Equal(t, "78.00", updated.Courses[0].Subjects[0].Grades.Final)
	})
}

func Test_studentApi_setClearance(t *testing.T) {
	app := newTestApp(t)
	path := "/v1/students/" + app.john.ID + "/clearance"
	granted := marchallObj(t, map[string]bool{"clearance": true})

	app.run(t, []httpTest{
		{
			name: "teacher", method: http.MethodPut, path: path, token: app.token(t, app.teacher), body: granted,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, forbiddenErr),
		},
		{
			name: "missing value", method: http.MethodPut, path: path, token: app.token(t, app.accounts), body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"clearance": "clearance is a required field"}),
		},
		{
			name: "unknown student", method: http.MethodPut, path: "/v1/students/nope/clearance", token: app.token(t, app.admin),
			body: granted, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: student.ErrNotFound.Error()}),
		},
	})

	rec := app.serve(httpTest{method: http.MethodPut, path: path, token: app.token(t, app.accounts), body: granted})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, app.record(t, app.john.ID).Clearance)

	rec = app.serve(httpTest{
		method: http.MethodPut, path: path, token: app.token(t, app.admin), body: marchallObj(t, map[string]bool{"clearance": false}),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, app.record(t, app.john.ID).Clearance)
}

func Test_studentApi_gradeReports(t *testing.T) {
	app := newTestApp(t)
	path := "/v1/reports/grades"
	token := app.token(t, app.teacher)
	reports := []interface{}{student.BuildReport(app.record(t, app.jane.ID)), student.BuildReport(app.record(t, app.john.ID))}

	app.run(t, []httpTest{
		{
			name: "staff required", path: path, token: app.token(t, app.jane),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, forbiddenErr),
		},
		{name: "json", path: path, token: token, wantData: marchallList(t, reports...)},
		{name: "format=json", path: path + "?format=json", token: token, wantData: marchallList(t, reports...)},
		{
			name: "unknown format", path: path + "?format=pdf", token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"format": errUnknownFormat.Error()}),
		},
	})

	t.Run("csv", func(t *testing.T) {
		rec := app.serve(httpTest{path: path + "?format=csv", token: token})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, mimeCSV, rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "grades.csv")

		rows, err := csv.NewReader(rec.Body).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 1+12+6) // header + jane's subjects + john's subjects
		assert.Equal(t, []string{"Student", "Course", "Subject", "Classwork", "Exam", "Final", "Status"}, rows[0])
		assert.Equal(t, []string{"Jane", computer, intro, "C1=; C2=", "", "", "Pending"}, rows[1])
	})

	t.Run("xlsx", func(t *testing.T) {
		rec := app.serve(httpTest{path: path + "?format=XLSX", token: token})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, mimeXLSX, rec.Header().Get("Content-Type"))

		f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
		require.NoError(t, err)
		defer f.Close()
		rows, err := f.GetRows("Grades")
		require.NoError(t, err)
		require.Len(t, rows, 19)
		assert.Equal(t, "John", rows[18][0])
	})
}

func Test_studentApi_pay(t *testing.T) {
	app := newTestApp(t)
	path := "/v1/students/me/payments"
	token := app.token(t, app.jane)
	body := marchallObj(t, payment.PayRequest{Amount: 16000, PaymentMethodID: "pm_card_visa"})
	invalidAmount := marchallObj(t, map[string]string{"amount": payment.ErrInvalidAmount.Error()})

	app.run(t, []httpTest{
		{
			name: "student required", method: http.MethodPost, path: path, token: app.token(t, app.accounts), body: body,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, forbiddenErr),
		},
		{
			name: "amount not a number", method: http.MethodPost, path: path, token: token,
			body:     []byte(`{"amount": "lots", "payment_method_id": "pm_card_visa"}`),
			wantCode: http.StatusBadRequest, wantData: invalidAmount,
		},
		{
			name: "negative amount", method: http.MethodPost, path: path, token: token,
			body:     marchallObj(t, payment.PayRequest{Amount: -5, PaymentMethodID: "pm_card_visa"}),
			wantCode: http.StatusBadRequest, wantData: invalidAmount,
		},
		{
			name: "too large", method: http.MethodPost, path: path, token: token,
			body:     marchallObj(t, payment.PayRequest{Amount: 1000000, PaymentMethodID: "pm_card_visa"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"amount": payment.ErrAmountTooLarge.Error()}),
		},
	})
	require.Zero(t, app.gateway.Calls())

	var first payment.Receipt
	t.Run("success", func(t *testing.T) {
		rec := app.serve(httpTest{method: http.MethodPost, path: path, token: token, body: body, headers: map[string]string{"Idempotency-Key": "k1"}})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		decode(t, rec, &first)
		assert.Equal(t, 100.0, first.AmountUSD)
		assert.Equal(t, 16000.0, first.Student.TotalPaid)
		assert.Equal(t, student.StatusPartiallyPaid, first.Student.PaymentStatus)
		assert.Len(t, app.mailSvc.SentMessages(), 1)
	})

	t.Run("replay", func(t *testing.T) {
		rec := app.serve(httpTest{method: http.MethodPost, path: path, token: token, body: body, headers: map[string]string{"Idempotency-Key": "k1"}})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var again payment.Receipt
		decode(t, rec, &again)
		assert.Equal(t, first.Payment.ID, again.Payment.ID)
		assert.Equal(t, 1, app.gateway.Calls())
		assert.Equal(t, 16000.0, app.record(t, app.jane.ID).TotalPaid)
	})

	t.Run("declined", func(t *testing.T) {
		app.gateway.Err = payment.NewProcessorError(0, "card_declined", "Your card was declined.")
		defer func() { app.gateway.Err = nil }()

		checkCodeAndData(t, httpTest{
			wantCode: http.StatusPaymentRequired, wantData: marchallObj(t, httpErr{Error: "Your card was declined."}),
		}, app.serve(httpTest{method: http.MethodPost, path: path, token: token, body: body}))
	})

	t.Run("history", func(t *testing.T) {
		history := marchallList(t, first.Payment)
		checkCodeAndData(t, httpTest{wantData: history}, app.serve(httpTest{path: path, token: token}))
		checkCodeAndData(t, httpTest{wantData: history},
			app.serve(httpTest{path: "/v1/students/" + app.jane.ID + "/payments", token: app.token(t, app.accounts)}))
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, forbiddenErr)},
			app.serve(httpTest{path: "/v1/students/" + app.jane.ID + "/payments", token: app.token(t, app.john)}))
	})
}
