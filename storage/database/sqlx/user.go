package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/ismis/core/user"
)

// unique_violation
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

type profileRow struct {
	ID        string    `db:"id"`
	Email     string    `db:"email"`
	Name      string    `db:"name"`
	Role      string    `db:"role"`
	CreatedAt time.Time `db:"created_at"`
}

func (r profileRow) toProfile() user.Profile {
	return user.Profile{ID: r.ID, Email: r.Email, Name: r.Name, Role: user.Role(r.Role), CreatedAt: r.CreatedAt.UTC()}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CreateProfile(ctx context.Context, p user.Profile) (user.Profile, error) {
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO users (id, email, name, role, created_at) VALUES (:id, :email, :name, :role, :created_at)`,
		profileRow{ID: p.ID, Email: p.Email, Name: p.Name, Role: p.Role.String(), CreatedAt: p.CreatedAt},
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.Profile{}, user.ErrEmailExists
		}
		return user.Profile{}, errors.Wrap(err, "inserting profile")
	}
	return p, nil
}

func (repo *userRepository) getProfile(ctx context.Context, where string, arg interface{}) (user.Profile, error) {
	var row profileRow
	err := repo.db.GetContext(ctx, &row, `SELECT id, email, name, role, created_at FROM users WHERE `+where, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.Profile{}, user.ErrNotFound
		}
		return user.Profile{}, errors.Wrap(err, "selecting profile")
	}
	return row.toProfile(), nil
}

func (repo *userRepository) GetProfile(ctx context.Context, id string) (user.Profile, error) {
	return repo.getProfile(ctx, "id = $1", id)
}

func (repo *userRepository) GetProfileByEmail(ctx context.Context, email string) (user.Profile, error) {
	return repo.getProfile(ctx, "email = $1", email)
}

func (repo *userRepository) QueryProfiles(ctx context.Context, filter user.QueryFilter) ([]user.Profile, error) {
	var rows []profileRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT id, email, name, role, created_at FROM users WHERE ($1 = '' OR role = $1) ORDER BY name, id`,
		filter.Role.String(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting profiles")
	}
	profiles := make([]user.Profile, len(rows))
	for i, row := range rows {
		profiles[i] = row.toProfile()
	}
	return profiles, nil
}

func (repo *userRepository) DeleteProfile(ctx context.Context, id string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	return errors.Wrap(err, "deleting profile")
}

type credentialRow struct {
	UID          string    `db:"uid"`
	Email        string    `db:"email"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

type credentialRepository struct {
	db *sqlx.DB
}

var _ user.CredentialRepository = (*credentialRepository)(nil) // interface compliance check

func NewCredentialRepository(db *sqlx.DB) user.CredentialRepository {
	return &credentialRepository{db: db}
}

func (repo *credentialRepository) SaveCredential(ctx context.Context, cred user.Credential) error {
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO credentials (uid, email, password_hash, created_at)
		VALUES (:uid, :email, :password_hash, :created_at)
		ON CONFLICT (uid) DO UPDATE SET email = EXCLUDED.email, password_hash = EXCLUDED.password_hash`,
		credentialRow{UID: cred.UID, Email: cred.Email, PasswordHash: cred.PasswordHash, CreatedAt: cred.CreatedAt},
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.ErrEmailExists
		}
		return errors.Wrap(err, "saving credential")
	}
	return nil
}

func (repo *credentialRepository) GetCredentialByEmail(ctx context.Context, email string) (user.Credential, error) {
	var row credentialRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT uid, email, password_hash, created_at FROM credentials WHERE email = $1`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.Credential{}, user.ErrNotFound
		}
		return user.Credential{}, errors.Wrap(err, "selecting credential")
	}
	return user.Credential{UID: row.UID, Email: row.Email, PasswordHash: row.PasswordHash, CreatedAt: row.CreatedAt.UTC()}, nil
}

func (repo *credentialRepository) DeleteCredential(ctx context.Context, uid string) error {
	_, err := repo.db.ExecContext(ctx, `DELETE FROM credentials WHERE uid = $1`, uid)
	return errors.Wrap(err, "deleting credential")
}
