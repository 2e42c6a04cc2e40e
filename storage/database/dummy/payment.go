package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/ismis/core/payment"
	"github.com/trezcool/ismis/core/student"
)

type paymentRepository struct {
	students *studentTable
	db       *paymentTable
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(db *DB) payment.Repository {
	return &paymentRepository{students: db.student, db: db.payment}
}

func (repo *paymentRepository) ApplyPayment(
	_ context.Context,
	p payment.Payment,
	apply func(*student.Record) error,
) (student.Record, payment.Payment, error) {
	repo.students.Lock()
	defer repo.students.Unlock()
	repo.db.Lock()
	defer repo.db.Unlock()

	if p.IdempotencyKey != "" {
		for _, other := range repo.db.table {
			if other.StudentID == p.StudentID && other.IdempotencyKey == p.IdempotencyKey {
				return student.Record{}, payment.Payment{}, payment.ErrDuplicateKey
			}
		}
	}

	stored, ok := repo.students.table[p.StudentID]
	if !ok {
		return student.Record{}, payment.Payment{}, student.ErrNotFound
	}
	rec := stored.Clone()
	if err := apply(&rec); err != nil {
		return student.Record{}, payment.Payment{}, err
	}
	rec, err := updateRecord(repo.students, rec)
	if err != nil {
		return student.Record{}, payment.Payment{}, err
	}
	repo.db.table[p.ID] = &p
	return rec, p, nil
}

func (repo *paymentRepository) GetPaymentByKey(_ context.Context, studentID, key string) (payment.Payment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, p := range repo.db.table {
		if p.StudentID == studentID && p.IdempotencyKey == key {
			return *p, nil
		}
	}
	return payment.Payment{}, payment.ErrNotFound
}

func (repo *paymentRepository) QueryPayments(_ context.Context, studentID string) ([]payment.Payment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	payments := make([]payment.Payment, 0)
	for _, p := range repo.db.table {
		if p.StudentID == studentID {
			payments = append(payments, *p)
		}
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].CreatedAt.Before(payments[j].CreatedAt) })
	return payments, nil
}
