package firestoredb

import (
	"context"
	"sort"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"

	"github.com/trezcool/ismis/core/user"
)

type userRepository struct {
	client *firestore.Client
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(client *firestore.Client) user.Repository {
	return &userRepository{client: client}
}

// CreateProfile checks email uniqueness in the same transaction as the write.
func (repo *userRepository) CreateProfile(ctx context.Context, p user.Profile) (user.Profile, error) {
	col := repo.client.Collection(usersCol)
	err := repo.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snaps, err := tx.Documents(col.Where("email", "==", p.Email).Limit(1)).GetAll()
		if err != nil {
			return errors.Wrap(err, "checking email")
		}
		if len(snaps) > 0 {
			return user.ErrEmailExists
		}
		return tx.Create(col.Doc(p.ID), newUserDoc(p))
	})
	if err != nil {
		if isAlreadyExists(err) {
			return user.Profile{}, user.ErrEmailExists
		}
		return user.Profile{}, errors.Wrap(err, "creating profile")
	}
	return p, nil
}

func (repo *userRepository) GetProfile(ctx context.Context, id string) (user.Profile, error) {
	snap, err := repo.client.Collection(usersCol).Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return user.Profile{}, user.ErrNotFound
		}
		return user.Profile{}, errors.Wrap(err, "getting profile")
	}
	var doc userDoc
	if err = snap.DataTo(&doc); err != nil {
		return user.Profile{}, errors.Wrap(err, "decoding profile")
	}
	return doc.toProfile(snap.Ref.ID), nil
}

func (repo *userRepository) GetProfileByEmail(ctx context.Context, email string) (user.Profile, error) {
	snap, err := first(ctx, repo.client.Collection(usersCol).Where("email", "==", email))
	if err != nil {
		return user.Profile{}, errors.Wrap(err, "querying profile")
	}
	if snap == nil {
		return user.Profile{}, user.ErrNotFound
	}
	var doc userDoc
	if err = snap.DataTo(&doc); err != nil {
		return user.Profile{}, errors.Wrap(err, "decoding profile")
	}
	return doc.toProfile(snap.Ref.ID), nil
}

func (repo *userRepository) QueryProfiles(ctx context.Context, filter user.QueryFilter) ([]user.Profile, error) {
	q := repo.client.Collection(usersCol).Query
	if filter.Role != "" {
		q = q.Where("role", "==", filter.Role.String())
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	profiles := make([]user.Profile, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "iterating profiles")
		}
		var doc userDoc
		if err = snap.DataTo(&doc); err != nil {
			return nil, errors.Wrap(err, "decoding profile")
		}
		profiles = append(profiles, doc.toProfile(snap.Ref.ID))
	}
	// sorted here: ordering by name after a filter on role needs a composite index
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles, nil
}

func (repo *userRepository) DeleteProfile(ctx context.Context, id string) error {
	_, err := repo.client.Collection(usersCol).Doc(id).Delete(ctx)
	return errors.Wrap(err, "deleting profile")
}

type credentialRepository struct {
	client *firestore.Client
}

var _ user.CredentialRepository = (*credentialRepository)(nil) // interface compliance check

func NewCredentialRepository(client *firestore.Client) user.CredentialRepository {
	return &credentialRepository{client: client}
}

func (repo *credentialRepository) SaveCredential(ctx context.Context, cred user.Credential) error {
	col := repo.client.Collection(credentialsCol)
	err := repo.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snaps, err := tx.Documents(col.Where("email", "==", cred.Email).Limit(1)).GetAll()
		if err != nil {
			return errors.Wrap(err, "checking email")
		}
		if len(snaps) > 0 && snaps[0].Ref.ID != cred.UID {
			return user.ErrEmailExists
		}
		return tx.Set(col.Doc(cred.UID), credentialDoc{Email: cred.Email, PasswordHash: cred.PasswordHash, CreatedAt: cred.CreatedAt})
	})
	if err != nil && errors.Cause(err) != user.ErrEmailExists {
		return errors.Wrap(err, "saving credential")
	}
	return err
}

func (repo *credentialRepository) GetCredentialByEmail(ctx context.Context, email string) (user.Credential, error) {
	snap, err := first(ctx, repo.client.Collection(credentialsCol).Where("email", "==", email))
	if err != nil {
		return user.Credential{}, errors.Wrap(err, "querying credential")
	}
	if snap == nil {
		return user.Credential{}, user.ErrNotFound
	}
	var doc credentialDoc
	if err = snap.DataTo(&doc); err != nil {
		return user.Credential{}, errors.Wrap(err, "decoding credential")
	}
	return user.Credential{UID: snap.Ref.ID, Email: doc.Email, PasswordHash: doc.PasswordHash, CreatedAt: doc.CreatedAt.UTC()}, nil
}

func (repo *credentialRepository) DeleteCredential(ctx context.Context, uid string) error {
	_, err := repo.client.Collection(credentialsCol).Doc(uid).Delete(ctx)
	return errors.Wrap(err, "deleting credential")
}
