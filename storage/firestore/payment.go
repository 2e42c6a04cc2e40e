package firestoredb

import (
	"context"
	"sort"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"

	"github.com/trezcool/ismis/core/payment"
	"github.com/trezcool/ismis/core/student"
)

type paymentRepository struct {
	client *firestore.Client
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(client *firestore.Client) payment.Repository {
	return &paymentRepository{client: client}
}

// ApplyPayment runs in a transaction: firestore retries it when the student document changed in between.
// Keyed payments are stored under payment.NewID, so a second one with the same key is rejected.
func (repo *paymentRepository) ApplyPayment(
	ctx context.Context,
	p payment.Payment,
	apply func(*student.Record) error,
) (student.Record, payment.Payment, error) {
	if p.IdempotencyKey != "" {
		p.ID = payment.NewID(p.StudentID, p.IdempotencyKey)
	}
	recRef := repo.client.Collection(studentsCol).Doc(p.StudentID)
	payRef := repo.client.Collection(paymentsCol).Doc(p.ID)

	var updated student.Record
	err := repo.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if p.IdempotencyKey != "" {
			if _, err := tx.Get(payRef); err == nil {
				return payment.ErrDuplicateKey
			} else if !isNotFound(err) {
				return errors.Wrap(err, "getting payment")
			}
		}
		current, err := getRecord(ctx, tx, recRef)
		if err != nil {
			return err
		}
		rec := current.Clone()
		if err = apply(&rec); err != nil {
			return err
		}
		if updated, err = updateRecord(tx, recRef, current, rec); err != nil {
			return err
		}
		return errors.Wrap(tx.Create(payRef, newPaymentDoc(p)), "creating payment")
	})
	if err != nil {
		if isAlreadyExists(errors.Cause(err)) {
			return student.Record{}, payment.Payment{}, payment.ErrDuplicateKey
		}
		return student.Record{}, payment.Payment{}, err
	}
	return updated, p, nil
}

func (repo *paymentRepository) GetPaymentByKey(ctx context.Context, studentID, key string) (payment.Payment, error) {
	snap, err := first(ctx, repo.client.Collection(paymentsCol).
		Where("studentId", "==", studentID).
		Where("idempotencyKey", "==", key))
	if err != nil {
		return payment.Payment{}, errors.Wrap(err, "querying payment")
	}
	if snap == nil {
		return payment.Payment{}, payment.ErrNotFound
	}
	var doc paymentDoc
	if err = snap.DataTo(&doc); err != nil {
		return payment.Payment{}, errors.Wrap(err, "decoding payment")
	}
	return doc.toPayment(snap.Ref.ID), nil
}

func (repo *paymentRepository) QueryPayments(ctx context.Context, studentID string) ([]payment.Payment, error) {
	iter := repo.client.Collection(paymentsCol).Where("studentId", "==", studentID).Documents(ctx)
	defer iter.Stop()

	payments := make([]payment.Payment, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "iterating payments")
		}
		var doc paymentDoc
		if err = snap.DataTo(&doc); err != nil {
			return nil, errors.Wrap(err, "decoding payment")
		}
		payments = append(payments, doc.toPayment(snap.Ref.ID))
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].CreatedAt.Before(payments[j].CreatedAt) })
	return payments, nil
}
