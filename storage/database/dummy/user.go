package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/ismis/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) CreateProfile(_ context.Context, p user.Profile) (user.Profile, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, prof := range repo.db.table {
		if prof.Email == p.Email {
			return user.Profile{}, user.ErrEmailExists
		}
	}
	repo.db.table[p.ID] = &p
	return p, nil
}

func (repo *userRepository) GetProfile(_ context.Context, id string) (user.Profile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.table[id]; ok {
		return *p, nil
	}
	return user.Profile{}, user.ErrNotFound
}

func (repo *userRepository) GetProfileByEmail(_ context.Context, email string) (user.Profile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, p := range repo.db.table {
		if p.Email == email {
			return *p, nil
		}
	}
	return user.Profile{}, user.ErrNotFound
}

func (repo *userRepository) QueryProfiles(_ context.Context, filter user.QueryFilter) ([]user.Profile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	profiles := make([]user.Profile, 0, len(repo.db.table))
	for _, p := range repo.db.table {
		if filter.Role == "" || p.Role == filter.Role {
			profiles = append(profiles, *p)
		}
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles, nil
}

func (repo *userRepository) DeleteProfile(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.table, id)
	return nil
}

type credentialRepository struct {
	db *credentialTable
}

var _ user.CredentialRepository = (*credentialRepository)(nil) // interface compliance check

func NewCredentialRepository(db *DB) user.CredentialRepository {
	return &credentialRepository{db: db.credential}
}

func (repo *credentialRepository) SaveCredential(_ context.Context, cred user.Credential) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for uid, c := range repo.db.table {
		if c.Email == cred.Email && uid != cred.UID {
			return user.ErrEmailExists
		}
	}
	cred.PasswordHash = append([]byte(nil), cred.PasswordHash...)
	repo.db.table[cred.UID] = &cred
	return nil
}

func (repo *credentialRepository) GetCredentialByEmail(_ context.Context, email string) (user.Credential, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, c := range repo.db.table {
		if c.Email == email {
			return *c, nil
		}
	}
	return user.Credential{}, user.ErrNotFound
}

func (repo *credentialRepository) DeleteCredential(_ context.Context, uid string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.table, uid)
	return nil
}
