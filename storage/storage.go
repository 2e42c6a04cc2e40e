package storage

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/ismis/core"
	"github.com/trezcool/ismis/core/payment"
	"github.com/trezcool/ismis/core/student"
	"github.com/trezcool/ismis/core/user"
	"github.com/trezcool/ismis/storage/database"
	dummydb "github.com/trezcool/ismis/storage/database/dummy"
	sqlxrepos "github.com/trezcool/ismis/storage/database/sqlx"
	firestoredb "github.com/trezcool/ismis/storage/firestore"
)

// Repositories of the configured storage engine.
type Repositories struct {
	Users       user.Repository
	Credentials user.CredentialRepository
	Students    student.Repository
	Payments    payment.Repository

	close func() error
}

func (r *Repositories) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

func NewMemory() *Repositories {
	db := dummydb.Open()
	return &Repositories{
		Users:       dummydb.NewUserRepository(db),
		Credentials: dummydb.NewCredentialRepository(db),
		Students:    dummydb.NewStudentRepository(db),
		Payments:    dummydb.NewPaymentRepository(db),
	}
}

// Open opens the storage engine named by conf.StorageEngine. Postgres databases are migrated up.
func Open(ctx context.Context, conf *core.Config) (*Repositories, error) {
	switch conf.StorageEngine {
	case core.StorageMemory:
		return NewMemory(), nil

	case core.StoragePostgres:
		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if err = database.Migrate(ctx, db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &Repositories{
			Users:       sqlxrepos.NewUserRepository(db),
			Credentials: sqlxrepos.NewCredentialRepository(db),
			Students:    sqlxrepos.NewStudentRepository(db),
			Payments:    sqlxrepos.NewPaymentRepository(db),
			close:       db.Close,
		}, nil

	case core.StorageFirestore:
		client, err := firestoredb.Open(ctx, conf)
		if err != nil {
			return nil, err
		}
		return &Repositories{
			Users:       firestoredb.NewUserRepository(client),
			Credentials: firestoredb.NewCredentialRepository(client),
			Students:    firestoredb.NewStudentRepository(client),
			Payments:    firestoredb.NewPaymentRepository(client),
			close:       client.Close,
		}, nil

	default:
		return nil, errors.Errorf("unknown storage engine %q", conf.StorageEngine)
	}
}
