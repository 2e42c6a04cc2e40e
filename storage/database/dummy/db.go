package dummydb

import (
	"sync"

	"github.com/trezcool/ismis/core/payment"
	"github.com/trezcool/ismis/core/student"
	"github.com/trezcool/ismis/core/user"
)

type (
	// DB is an in-memory database for DEV & tests. Every table is guarded by its own lock;
	// payments are applied under the student table lock so a payment and its ledger update are atomic.
	DB struct {
		user       *userTable
		credential *credentialTable
		student    *studentTable
		payment    *paymentTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.Profile
	}

	credentialTable struct {
		sync.RWMutex
		table map[string]*user.Credential
	}

	studentTable struct {
		sync.RWMutex
		table map[string]*student.Record
	}

	paymentTable struct {
		sync.RWMutex
		table map[string]*payment.Payment
	}
)

func Open() *DB {
	return &DB{
		user:       &userTable{table: make(map[string]*user.Profile)},
		credential: &credentialTable{table: make(map[string]*user.Credential)},
		student:    &studentTable{table: make(map[string]*student.Record)},
		payment:    &paymentTable{table: make(map[string]*payment.Payment)},
	}
}
