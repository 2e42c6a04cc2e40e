package student

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/ismis/core"
	"github.com/trezcool/ismis/core/user"
)

var (
	defaultOrdering = []core.DBOrdering{{Field: "name", Ascending: true}}

	// fields records may be ordered by
	orderingFields = map[string]bool{
		"name":           true,
		"total_owed":     true,
		"total_paid":     true,
		"balance":        true,
		"payment_status": true,
		"updated_at":     true,
	}
)

type (
	Repository interface {
		CreateRecord(ctx context.Context, rec Record) (Record, error)
		GetRecord(ctx context.Context, id string) (Record, error)
		QueryRecords(ctx context.Context, ordering ...core.DBOrdering) ([]Record, error)
		// UpdateRecord stores `rec` if the stored version still equals rec.Version (ErrConflict otherwise)
		// and returns it with its new version.
		UpdateRecord(ctx context.Context, rec Record) (Record, error)
		SetClearance(ctx context.Context, id string, clearance bool) (Record, error)
	}

	Service interface {
		user.StudentEnroller

		Get(ctx context.Context, actor user.Profile, id string) (Record, error)
		Query(ctx context.Context, actor user.Profile, ordering ...core.DBOrdering) ([]Record, error)
		// SaveGrades applies `edits` to the record at `version` and saves them at once.
		SaveGrades(ctx context.Context, actor user.Profile, id string, version int64, edits []GradeEdit) (Record, error)
		// SetGrade applies a single edit to the current version of the record.
		SetGrade(ctx context.Context, actor user.Profile, id string, edit GradeEdit) (Record, error)
		AddClassworkField(ctx context.Context, actor user.Profile, id, course, subject string) (Record, error)
		SetClearance(ctx context.Context, actor user.Profile, id string, clearance bool) (Record, error)
		GradeReport(ctx context.Context, actor user.Profile, id string) (Report, error)
		GradeReports(ctx context.Context, actor user.Profile) ([]Report, error)
	}

	service struct {
		repo     Repository
		validate *validator.Validate
		nowFunc  func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, validate *validator.Validate) Service {
	return &service{
		repo:     repo,
		validate: validate,
		nowFunc:  time.Now,
	}
}

func (svc *service) ValidateEnrollment(courses []string, plan string) error {
	if len(courses) == 0 {
		return fieldError("courses", ErrNoCourse)
	}
	for _, name := range courses {
		if _, ok := findCatalogCourse(name); !ok {
			return core.NewValidationError(ErrUnknownCourse, core.FieldError{
				Field: "courses",
				Error: ErrUnknownCourse.Error() + ": " + name,
			})
		}
	}
	if !validPlan(plan) {
		return fieldError("payment_plan", ErrInvalidPlan)
	}
	return nil
}

func (svc *service) Enroll(ctx context.Context, p user.Profile, courses []string, plan string) error {
	if err := svc.ValidateEnrollment(courses, plan); err != nil {
		return err
	}
	now := svc.nowFunc().UTC()
	enrolled, total := enrolledCourses(courses)
	rec := Record{
		ID:            p.ID,
		Name:          p.Name,
		Courses:       enrolled,
		TotalOwed:     total,
		TotalPaid:     0,
		Balance:       total,
		PaymentStatus: StatusUnpaid,
		Clearance:     false,
		PaymentPlan: PaymentPlan{
			PlanType:     plan,
			Installments: BuildInstallments(plan, total, now),
		},
		Version:   1,
		UpdatedAt: now,
	}
	_, err := svc.repo.CreateRecord(ctx, rec)
	return errors.Wrap(err, "creating record")
}

// canView: staff see every record, students only their own.
func canView(actor user.Profile, id string) bool {
	return actor.Role.IsStaff() || (actor.Role == user.RoleStudent && actor.ID == id)
}

func (svc *service) Get(ctx context.Context, actor user.Profile, id string) (Record, error) {
	if !canView(actor, id) {
		return Record{}, ErrNotFound
	}
	return svc.repo.GetRecord(ctx, id)
}

func cleanOrdering(ordering []core.DBOrdering) []core.DBOrdering {
	cleaned := make([]core.DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		if orderingFields[ord.Field] {
			cleaned = append(cleaned, ord)
		}
	}
	if len(cleaned) == 0 {
		return defaultOrdering
	}
	return cleaned
}

func (svc *service) Query(ctx context.Context, actor user.Profile, ordering ...core.DBOrdering) ([]Record, error) {
	if !actor.Role.IsStaff() {
		return nil, user.ErrPermissionDenied
	}
	return svc.repo.QueryRecords(ctx, cleanOrdering(ordering)...)
}

func (svc *service) SaveGrades(ctx context.Context, actor user.Profile, id string, version int64, edits []GradeEdit) (Record, error) {
	if !actor.Role.CanEditGrades() {
		return Record{}, user.ErrPermissionDenied
	}
	for _, edit := range edits {
		if err := svc.validate.Struct(edit); err != nil {
			return Record{}, err
		}
	}

	rec, err := svc.repo.GetRecord(ctx, id)
	if err != nil {
		return Record{}, errors.Wrap(err, "getting record")
	}
	if rec.Version != version {
		return Record{}, ErrConflict
	}
	return svc.saveSession(ctx, rec, func(es *EditSession) error {
		for _, edit := range edits {
			if err := es.Apply(edit); err != nil {
				return err
			}
		}
		return nil
	})
}

func (svc *service) SetGrade(ctx context.Context, actor user.Profile, id string, edit GradeEdit) (Record, error) {
	if !actor.Role.CanEditGrades() {
		return Record{}, user.ErrPermissionDenied
	}
	if err := svc.validate.Struct(edit); err != nil {
		return Record{}, err
	}

	rec, err := svc.repo.GetRecord(ctx, id)
	if err != nil {
		return Record{}, errors.Wrap(err, "getting record")
	}
	return svc.saveSession(ctx, rec, func(es *EditSession) error { return es.Apply(edit) })
}

func (svc *service) AddClassworkField(ctx context.Context, actor user.Profile, id, course, subject string) (Record, error) {
	if !actor.Role.CanEditGrades() {
		return Record{}, user.ErrPermissionDenied
	}

	rec, err := svc.repo.GetRecord(ctx, id)
	if err != nil {
		return Record{}, errors.Wrap(err, "getting record")
	}
	return svc.saveSession(ctx, rec, func(es *EditSession) error {
		_, err := es.AddClasswork(course, subject)
		return err
	})
}

// saveSession runs `edit` in an EditSession on `rec` and flushes it if anything changed.
func (svc *service) saveSession(ctx context.Context, rec Record, edit func(*EditSession) error) (Record, error) {
	es := NewEditSession(rec)
	if err := edit(es); err != nil {
		return Record{}, err
	}
	if !es.Dirty() {
		return rec, nil
	}
	updated := es.Record()
	updated.UpdatedAt = svc.nowFunc().UTC()
	updated, err := svc.repo.UpdateRecord(ctx, updated)
	return updated, errors.Wrap(err, "updating record")
}

func (svc *service) SetClearance(ctx context.Context, actor user.Profile, id string, clearance bool) (Record, error) {
	if !actor.Role.CanManageClearance() {
		return Record{}, user.ErrPermissionDenied
	}
	rec, err := svc.repo.SetClearance(ctx, id, clearance)
	return rec, errors.Wrap(err, "setting clearance")
}

func (svc *service) GradeReport(ctx context.Context, actor user.Profile, id string) (Report, error) {
	rec, err := svc.Get(ctx, actor, id)
	if err != nil {
		return Report{}, err
	}
	return BuildReport(rec), nil
}

func (svc *service) GradeReports(ctx context.Context, actor user.Profile) ([]Report, error) {
	recs, err := svc.Query(ctx, actor)
	if err != nil {
		return nil, err
	}
	reports := make([]Report, len(recs))
	for i, rec := range recs {
		reports[i] = BuildReport(rec)
	}
	return reports, nil
}
