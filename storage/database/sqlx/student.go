package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"

	"github.com/trezcool/ismis/core"
	"github.com/trezcool/ismis/core/student"
)

const studentColumns = `id, name, courses, total_owed, total_paid, balance, payment_status, clearance, payment_plan, version, updated_at`

// columns records may be ordered by
var orderingColumns = map[string]bool{
	"name":           true,
	"total_owed":     true,
	"total_paid":     true,
	"balance":        true,
	"payment_status": true,
	"updated_at":     true,
}

type studentRow struct {
	ID            string         `db:"id"`
	Name          string         `db:"name"`
	Courses       types.JSONText `db:"courses"`
	TotalOwed     float64        `db:"total_owed"`
	TotalPaid     float64        `db:"total_paid"`
	Balance       float64        `db:"balance"`
	PaymentStatus string         `db:"payment_status"`
	Clearance     bool           `db:"clearance"`
	PaymentPlan   types.JSONText `db:"payment_plan"`
	Version       int64          `db:"version"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

func newStudentRow(rec student.Record) (studentRow, error) {
	courses, err := json.Marshal(rec.Courses)
	if err != nil {
		return studentRow{}, errors.Wrap(err, "marshaling courses")
	}
	plan, err := json.Marshal(rec.PaymentPlan)
	if err != nil {
		return studentRow{}, errors.Wrap(err, "marshaling payment plan")
	}
	return studentRow{
		ID:            rec.ID,
		Name:          rec.Name,
		Courses:       courses,
		TotalOwed:     rec.TotalOwed,
		TotalPaid:     rec.TotalPaid,
		Balance:       rec.Balance,
		PaymentStatus: string(rec.PaymentStatus),
		Clearance:     rec.Clearance,
		PaymentPlan:   plan,
		Version:       rec.Version,
		UpdatedAt:     rec.UpdatedAt,
	}, nil
}

func (r studentRow) toRecord() (student.Record, error) {
	rec := student.Record{
		ID:            r.ID,
		Name:          r.Name,
		TotalOwed:     r.TotalOwed,
		TotalPaid:     r.TotalPaid,
		Balance:       r.Balance,
		PaymentStatus: student.PaymentStatus(r.PaymentStatus),
		Clearance:     r.Clearance,
		Version:       r.Version,
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
	if err := r.Courses.Unmarshal(&rec.Courses); err != nil {
		return student.Record{}, errors.Wrap(err, "unmarshaling courses")
	}
	if err := r.PaymentPlan.Unmarshal(&rec.PaymentPlan); err != nil {
		return student.Record{}, errors.Wrap(err, "unmarshaling payment plan")
	}
	return rec, nil
}

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CreateRecord(ctx context.Context, rec student.Record) (student.Record, error) {
	if rec.Version == 0 {
		rec.Version = 1
	}
	row, err := newStudentRow(rec)
	if err != nil {
		return student.Record{}, err
	}
	_, err = repo.db.NamedExecContext(ctx, `
		INSERT INTO students (`+studentColumns+`)
		VALUES (:id, :name, :courses, :total_owed, :total_paid, :balance, :payment_status, :clearance, :payment_plan, :version, :updated_at)`,
		row,
	)
	return rec, errors.Wrap(err, "inserting record")
}

func getRecord(ctx context.Context, q sqlx.QueryerContext, id string, forUpdate bool) (student.Record, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var row studentRow
	if err := sqlx.GetContext(ctx, q, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return student.Record{}, student.ErrNotFound
		}
		return student.Record{}, errors.Wrap(err, "selecting record")
	}
	return row.toRecord()
}

func (repo *studentRepository) GetRecord(ctx context.Context, id string) (student.Record, error) {
	return getRecord(ctx, repo.db, id, false)
}

func orderBy(ordering []core.DBOrdering) string {
	clauses := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if orderingColumns[ord.Field] {
			clauses = append(clauses, ord.String())
		}
	}
	clauses = append(clauses, "id")
	return " ORDER BY " + strings.Join(clauses, ", ")
}

func (repo *studentRepository) QueryRecords(ctx context.Context, ordering ...core.DBOrdering) ([]student.Record, error) {
	var rows []studentRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT `+studentColumns+` FROM students`+orderBy(ordering)); err != nil {
		return nil, errors.Wrap(err, "selecting records")
	}
	recs := make([]student.Record, len(rows))
	for i, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		recs[i] = rec
	}
	return recs, nil
}

// updateRecord stores `rec` if its version is still current; the version is bumped.
func updateRecord(ctx context.Context, ext sqlx.ExtContext, rec student.Record) (student.Record, error) {
	row, err := newStudentRow(rec)
	if err != nil {
		return student.Record{}, err
	}
	query, args, err := sqlx.Named(`
		UPDATE students SET
			name = :name, courses = :courses, total_owed = :total_owed, total_paid = :total_paid,
			balance = :balance, payment_status = :payment_status, clearance = :clearance,
			payment_plan = :payment_plan, updated_at = :updated_at, version = version + 1
		WHERE id = :id AND version = :version
		RETURNING version`, row)
	if err != nil {
		return student.Record{}, errors.Wrap(err, "binding record")
	}

	var version int64
	err = sqlx.GetContext(ctx, ext, &version, ext.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		// either gone or changed in between
		var found bool
		if err = sqlx.GetContext(ctx, ext, &found, `SELECT true FROM students WHERE id = $1`, rec.ID); errors.Is(err, sql.ErrNoRows) {
			return student.Record{}, student.ErrNotFound
		} else if err != nil {
			return student.Record{}, errors.Wrap(err, "checking record")
		}
		return student.Record{}, student.ErrConflict
	}
	if err != nil {
		return student.Record{}, errors.Wrap(err, "updating record")
	}
	rec.Version = version
	return rec, nil
}

func (repo *studentRepository) UpdateRecord(ctx context.Context, rec student.Record) (student.Record, error) {
	return updateRecord(ctx, repo.db, rec)
}

func (repo *studentRepository) SetClearance(ctx context.Context, id string, clearance bool) (student.Record, error) {
	var row studentRow
	err := repo.db.GetContext(ctx, &row, `
		UPDATE students SET clearance = $2, version = version + 1, updated_at = $3
		WHERE id = $1
		RETURNING `+studentColumns,
		id, clearance, time.Now().UTC(),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return student.Record{}, student.ErrNotFound
		}
		return student.Record{}, errors.Wrap(err, "updating clearance")
	}
	return row.toRecord()
}
