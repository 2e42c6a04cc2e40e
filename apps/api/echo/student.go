package echoapi

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ismis/core"
	"github.com/trezcool/ismis/core/payment"
	"github.com/trezcool/ismis/core/student"
	"github.com/trezcool/ismis/core/user"
)

const (
	mimeCSV  = "text/csv; charset=utf-8"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type studentApi struct {
	svc    student.Service
	paySvc payment.Service
}

func registerStudentAPI(g *echo.Group, auth echo.MiddlewareFunc, svc student.Service, paySvc payment.Service) {
	api := studentApi{svc: svc, paySvc: paySvc}

	sg := g.Group("/students", auth)
	sg.GET("", api.query, requireRoles(user.StaffRoles...))

	mg := sg.Group("/me", requireRoles(user.RoleStudent))
	mg.GET("", api.retrieveMe)
	mg.GET("/grades", api.gradeReportMe)
	mg.GET("/payments", api.paymentsMe)
	mg.POST("/payments", api.pay)

	dg := sg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.GET("/grades", api.gradeReport)
	dg.GET("/payments", api.payments)
	dg.PATCH("/grades", api.saveGrades, requireRoles(user.RoleTeacher, user.RoleAdmin))
	dg.PUT("/grades/:field", api.setGrade, requireRoles(user.RoleTeacher, user.RoleAdmin))
	dg.POST("/grades/classwork", api.addClasswork, requireRoles(user.RoleTeacher, user.RoleAdmin))
	dg.PUT("/clearance", api.setClearance, requireRoles(user.RoleAdmin, user.RoleAccountsAdmin))

	g.GET("/reports/grades", api.gradeReports, auth, requireRoles(user.StaffRoles...))
}

// Handlers

func (api *studentApi) query(ctx echo.Context) error {
	prof, err := getContextProfile(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context profile")
	}
	ordering, err := bindOrdering(ctx)
	if err != nil {
		return err
	}

	recs, err := api.svc.Query(ctx.Request().Context(), prof, ordering...)
	if err != nil {
		return errors.Wrap(err, "querying records")
	}
	if recs == nil {
		recs = []student.Record{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *studentApi) retrieveRecord(ctx echo.Context, id string) error {
	prof, err := getContextProfile(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context profile")
	}
	rec, err := api.svc.Get(ctx.Request().Context(), prof, id)
	if err != nil {
		return errors.Wrap(err, "getting record")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *studentApi) retrieveMe(ctx echo.Context) error {
	prof, err := getContextProfile(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context profile")
	}
	return api.retrieveRecord(ctx, prof.ID)
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	return api.retrieveRecord(ctx, ctx.Param("id"))
}

func (api *studentApi) report(ctx echo.Context, id string) error {
	prof, err := getContextProfile(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context profile")
	}
	rpt, err := api.svc.GradeReport(ctx.Request().Context(), prof, id)
	if err != nil {
		return errors.Wrap(err, "building grade report")
	}
	return ctx.JSON(http.StatusOK, rpt)
}

func (api *studentApi) gradeReportMe(ctx echo.Context) error {
	prof, err := getContextProfile(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context profile")
	}
	return api.report(ctx, prof.ID)
}

func (api *studentApi) gradeReport(ctx echo.Context) error {
	return api.report(ctx, ctx.Param("id"))
}

func (api *studentApi) history(ctx echo.Context, id string) error {
	prof, err := getContextProfile(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context profile")
	}
	payments, err := api.paySvc.History(ctx.Request().Context(), prof, id)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if payments == nil {
		payments = []payment.Payment{}
	}
	return ctx.JSON(http.StatusOK, payments)
}

func (api *studentApi) paymentsMe(ctx echo.Context) error {
	prof, err := getContextProfile(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context profile")
	}
	return api.history(ctx, prof.ID)
}

func (api *studentApi) payments(ctx echo.Context) error {
	return api.history(ctx, ctx.Param("id"))
}

func (api *studentApi) pay(ctx echo.Context) error {
	prof, err := getContextProfile(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context profile")
	}
	var data payment.PayRequest
	if err = ctx.Bind(&data); err != nil {
		return core.NewValidationError(payment.ErrInvalidAmount, core.FieldError{Field: "amount", Error: payment.ErrInvalidAmount.Error()})
	}
	data.IdempotencyKey = strings.TrimSpace(ctx.Request().Header.Get("Idempotency-Key"))

	receipt, err := api.paySvc.Pay(ctx.Request().Context(), prof, data)
	if err != nil {
		return errors.Wrap(err, "paying")
	}
	return ctx.JSON(http.StatusCreated, receipt)
}

func (api *studentApi) saveGrades(ctx echo.Context) error {
	prof, err := getContextProfile(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context profile")
	}
	var data SaveGradesRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveGradesRequest")
	}

	rec, err := api.svc.SaveGrades(ctx.Request().Context(), prof, ctx.Param("id"), data.Version, data.Edits)
	if err != nil {
		return errors.Wrap(err, "saving grades")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *studentApi) setGrade(ctx echo.Context) error {
	prof, err := getContextProfile(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context profile")
	}
	var data student.GradeEdit
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeEdit")
	}
	data.Field = ctx.Param("field")

	rec, err := api.svc.SetGrade(ctx.Request().Context(), prof, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "setting grade")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *studentApi) addClasswork(ctx echo.Context) error {
	prof, err := getContextProfile(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context profile")
	}
	var data AddClassworkRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AddClassworkRequest")
	}

	rec, err := api.svc.AddClassworkField(ctx.Request().Context(), prof, ctx.Param("id"), data.Course, data.Subject)
	if err != nil {
		return errors.Wrap(err, "adding classwork field")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *studentApi) setClearance(ctx echo.Context) error {
	prof, err := getContextProfile(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context profile")
	}
	var data ClearanceRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ClearanceRequest")
	}
	if data.Clearance == nil {
		return core.NewValidationError(nil, core.FieldError{Field: "clearance", Error: "clearance is a required field"})
	}

	rec, err := api.svc.SetClearance(ctx.Request().Context(), prof, ctx.Param("id"), *data.Clearance)
	if err != nil {
		return errors.Wrap(err, "setting clearance")
	}
	return ctx.JSON(http.StatusOK, rec)
}

// gradeReports renders every student's grades as JSON (default), CSV or XLSX.
func (api *studentApi) gradeReports(ctx echo.Context) error {
	prof, err := getContextProfile(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context profile")
	}
	format := strings.ToLower(ctx.QueryParam("format"))
	switch format {
	case "", "json", "csv", "xlsx":
	default:
		return core.NewValidationError(errUnknownFormat, core.FieldError{Field: "format", Error: errUnknownFormat.Error()})
	}

	reports, err := api.svc.GradeReports(ctx.Request().Context(), prof)
	if err != nil {
		return errors.Wrap(err, "building grade reports")
	}

	resp := ctx.Response()
	switch format {
	case "csv":
		resp.Header().Set(echo.HeaderContentType, mimeCSV)
		resp.Header().Set(echo.HeaderContentDisposition, `attachment; filename="grades.csv"`)
		resp.WriteHeader(http.StatusOK)
		return errors.Wrap(student.WriteReportsCSV(resp, reports), "writing csv")
	case "xlsx":
		resp.Header().Set(echo.HeaderContentType, mimeXLSX)
		resp.Header().Set(echo.HeaderContentDisposition, `attachment; filename="grades.xlsx"`)
		resp.WriteHeader(http.StatusOK)
		return errors.Wrap(student.WriteReportsXLSX(resp, reports), "writing xlsx")
	default:
		if reports == nil {
			reports = []student.Report{}
		}
		return ctx.JSON(http.StatusOK, reports)
	}
}

type (
	SaveGradesRequest struct {
		Version int64               `json:"version"`
		Edits   []student.GradeEdit `json:"edits"`
	}

	AddClassworkRequest struct {
		Course  string `json:"course"`
		Subject string `json:"subject"`
	}

	ClearanceRequest struct {
		Clearance *bool `json:"clearance"`
	}
)
