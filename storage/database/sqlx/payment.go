package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ismis/core/payment"
	"github.com/trezcool/ismis/core/student"
)

const paymentColumns = `id, student_id, amount_local, amount_minor, currency, exchange_rate, charge_id, idempotency_key, created_at`

type paymentRow struct {
	ID             string      `db:"id"`
	StudentID      string      `db:"student_id"`
	AmountLocal    float64     `db:"amount_local"`
	AmountMinor    int64       `db:"amount_minor"`
	Currency       string      `db:"currency"`
	ExchangeRate   float64     `db:"exchange_rate"`
	ChargeID       string      `db:"charge_id"`
	IdempotencyKey null.String `db:"idempotency_key"`
	CreatedAt      time.Time   `db:"created_at"`
}

func newPaymentRow(p payment.Payment) paymentRow {
	return paymentRow{
		ID:             p.ID,
		StudentID:      p.StudentID,
		AmountLocal:    p.AmountLocal,
		AmountMinor:    p.AmountMinor,
		Currency:       p.Currency,
		ExchangeRate:   p.ExchangeRate,
		ChargeID:       p.ChargeID,
		IdempotencyKey: null.NewString(p.IdempotencyKey, p.IdempotencyKey != ""),
		CreatedAt:      p.CreatedAt,
	}
}

func (r paymentRow) toPayment() payment.Payment {
	return payment.Payment{
		ID:             r.ID,
		StudentID:      r.StudentID,
		AmountLocal:    r.AmountLocal,
		AmountMinor:    r.AmountMinor,
		Currency:       r.Currency,
		ExchangeRate:   r.ExchangeRate,
		ChargeID:       r.ChargeID,
		IdempotencyKey: r.IdempotencyKey.String,
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

type paymentRepository struct {
	db *sqlx.DB
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(db *sqlx.DB) payment.Repository {
	return &paymentRepository{db: db}
}

// ApplyPayment locks the student's row for the duration of the transaction.
func (repo *paymentRepository) ApplyPayment(
	ctx context.Context,
	p payment.Payment,
	apply func(*student.Record) error,
) (rec student.Record, saved payment.Payment, err error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return student.Record{}, payment.Payment{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rec, err = getRecord(ctx, tx, p.StudentID, true)
	if err != nil {
		return student.Record{}, payment.Payment{}, err
	}
	if err = apply(&rec); err != nil {
		return student.Record{}, payment.Payment{}, err
	}
	if rec, err = updateRecord(ctx, tx, rec); err != nil {
		return student.Record{}, payment.Payment{}, err
	}
	if _, err = tx.NamedExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES (:id, :student_id, :amount_local, :amount_minor, :currency, :exchange_rate, :charge_id, :idempotency_key, :created_at)`,
		newPaymentRow(p),
	); err != nil {
		if isUniqueViolation(err) {
			return student.Record{}, payment.Payment{}, payment.ErrDuplicateKey
		}
		return student.Record{}, payment.Payment{}, errors.Wrap(err, "inserting payment")
	}
	if err = tx.Commit(); err != nil {
		return student.Record{}, payment.Payment{}, errors.Wrap(err, "committing payment")
	}
	return rec, p, nil
}

func (repo *paymentRepository) GetPaymentByKey(ctx context.Context, studentID, key string) (payment.Payment, error) {
	var row paymentRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT `+paymentColumns+` FROM payments WHERE student_id = $1 AND idempotency_key = $2`, studentID, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return payment.Payment{}, payment.ErrNotFound
		}
		return payment.Payment{}, errors.Wrap(err, "selecting payment")
	}
	return row.toPayment(), nil
}

func (repo *paymentRepository) QueryPayments(ctx context.Context, studentID string) ([]payment.Payment, error) {
	var rows []paymentRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT `+paymentColumns+` FROM payments WHERE student_id = $1 ORDER BY created_at, id`, studentID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting payments")
	}
	payments := make([]payment.Payment, len(rows))
	for i, row := range rows {
		payments[i] = row.toPayment()
	}
	return payments, nil
}
