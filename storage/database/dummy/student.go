package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/ismis/core"
	"github.com/trezcool/ismis/core/student"
)

type studentRepository struct {
	db *studentTable
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db.student}
}

func (repo *studentRepository) CreateRecord(_ context.Context, rec student.Record) (student.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if rec.Version == 0 {
		rec.Version = 1
	}
	stored := rec.Clone()
	repo.db.table[rec.ID] = &stored
	return rec, nil
}

func (repo *studentRepository) GetRecord(_ context.Context, id string) (student.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if rec, ok := repo.db.table[id]; ok {
		return rec.Clone(), nil
	}
	return student.Record{}, student.ErrNotFound
}

func (repo *studentRepository) QueryRecords(_ context.Context, ordering ...core.DBOrdering) ([]student.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	recs := make([]student.Record, 0, len(repo.db.table))
	for _, rec := range repo.db.table {
		recs = append(recs, rec.Clone())
	}
	sortRecords(recs, ordering)
	return recs, nil
}

func (repo *studentRepository) UpdateRecord(_ context.Context, rec student.Record) (student.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	return updateRecord(repo.db, rec)
}

// updateRecord must be called with the table locked.
func updateRecord(db *studentTable, rec student.Record) (student.Record, error) {
	stored, ok := db.table[rec.ID]
	if !ok {
		return student.Record{}, student.ErrNotFound
	}
	if stored.Version != rec.Version {
		return student.Record{}, student.ErrConflict
	}
	rec.Version++
	updated := rec.Clone()
	db.table[rec.ID] = &updated
	return rec, nil
}

func (repo *studentRepository) SetClearance(_ context.Context, id string, clearance bool) (student.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.table[id]
	if !ok {
		return student.Record{}, student.ErrNotFound
	}
	stored.Clearance = clearance
	stored.Version++
	stored.UpdatedAt = time.Now().UTC()
	return stored.Clone(), nil
}

func sortRecords(recs []student.Record, ordering []core.DBOrdering) {
	sort.SliceStable(recs, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareRecords(recs[i], recs[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return recs[i].ID < recs[j].ID
	})
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareRecords(a, b student.Record, field string) int {
	switch field {
	case "name":
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case "total_owed":
		return compareFloats(a.TotalOwed, b.TotalOwed)
	case "total_paid":
		return compareFloats(a.TotalPaid, b.TotalPaid)
	case "balance":
		return compareFloats(a.Balance, b.Balance)
	case "payment_status":
		return strings.Compare(string(a.PaymentStatus), string(b.PaymentStatus))
	case "updated_at":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return 0
	}
}
