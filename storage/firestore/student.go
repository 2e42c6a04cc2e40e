package firestoredb

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"

	"github.com/trezcool/ismis/core"
	"github.com/trezcool/ismis/core/student"
)

type studentRepository struct {
	client *firestore.Client
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(client *firestore.Client) student.Repository {
	return &studentRepository{client: client}
}

func (repo *studentRepository) doc(id string) *firestore.DocumentRef {
	return repo.client.Collection(studentsCol).Doc(id)
}

func (repo *studentRepository) CreateRecord(ctx context.Context, rec student.Record) (student.Record, error) {
	if rec.Version == 0 {
		rec.Version = 1
	}
	_, err := repo.doc(rec.ID).Create(ctx, newStudentDoc(rec))
	return rec, errors.Wrap(err, "creating record")
}

func decodeRecord(snap *firestore.DocumentSnapshot) (student.Record, error) {
	var doc studentDoc
	if err := snap.DataTo(&doc); err != nil {
		return student.Record{}, errors.Wrap(err, "decoding record")
	}
	return doc.toRecord(snap.Ref.ID), nil
}

// getRecord reads inside `tx` when it is not nil.
func getRecord(ctx context.Context, tx *firestore.Transaction, ref *firestore.DocumentRef) (student.Record, error) {
	var snap *firestore.DocumentSnapshot
	var err error
	if tx != nil {
		snap, err = tx.Get(ref)
	} else {
		snap, err = ref.Get(ctx)
	}
	if err != nil {
		if isNotFound(err) {
			return student.Record{}, student.ErrNotFound
		}
		return student.Record{}, errors.Wrap(err, "getting record")
	}
	return decodeRecord(snap)
}

func (repo *studentRepository) GetRecord(ctx context.Context, id string) (student.Record, error) {
	return getRecord(ctx, nil, repo.doc(id))
}

func (repo *studentRepository) QueryRecords(ctx context.Context, ordering ...core.DBOrdering) ([]student.Record, error) {
	q := repo.client.Collection(studentsCol).Query
	for _, ord := range ordering {
		field, ok := orderingFields[ord.Field]
		if !ok {
			continue
		}
		dir := firestore.Desc
		if ord.Ascending {
			dir = firestore.Asc
		}
		q = q.OrderBy(field, dir)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	recs := make([]student.Record, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "iterating records")
		}
		rec, err := decodeRecord(snap)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// updateRecord writes `rec` in `tx` if its version is still current; the version is bumped.
func updateRecord(tx *firestore.Transaction, ref *firestore.DocumentRef, current, rec student.Record) (student.Record, error) {
	if current.Version != rec.Version {
		return student.Record{}, student.ErrConflict
	}
	rec.Version++
	if err := tx.Set(ref, newStudentDoc(rec)); err != nil {
		return student.Record{}, errors.Wrap(err, "setting record")
	}
	return rec, nil
}

func (repo *studentRepository) UpdateRecord(ctx context.Context, rec student.Record) (student.Record, error) {
	ref := repo.doc(rec.ID)
	var updated student.Record
	err := repo.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current, err := getRecord(ctx, tx, ref)
		if err != nil {
			return err
		}
		updated, err = updateRecord(tx, ref, current, rec)
		return err
	})
	if err != nil {
		return student.Record{}, err
	}
	return updated, nil
}

func (repo *studentRepository) SetClearance(ctx context.Context, id string, clearance bool) (student.Record, error) {
	ref := repo.doc(id)
	var updated student.Record
	err := repo.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		current, err := getRecord(ctx, tx, ref)
		if err != nil {
			return err
		}
		rec := current.Clone()
		rec.Clearance = clearance
		rec.UpdatedAt = time.Now().UTC()
		updated, err = updateRecord(tx, ref, current, rec)
		return err
	})
	if err != nil {
		return student.Record{}, err
	}
	return updated, nil
}
