package identity

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/trezcool/ismis/core"
	"github.com/trezcool/ismis/core/user"
)

// NewFirebaseApp initializes the Firebase app shared by the identity provider and the Firestore storage.
// Without a credentials file, the application default credentials are used.
func NewFirebaseApp(ctx context.Context, conf *core.Config) (*firebase.App, error) {
	var opts []option.ClientOption
	if conf.Firebase.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(conf.Firebase.CredentialsFile))
	}
	var fbConf *firebase.Config
	if conf.Firebase.ProjectID != "" {
		fbConf = &firebase.Config{ProjectID: conf.Firebase.ProjectID}
	}
	app, err := firebase.NewApp(ctx, fbConf, opts...)
	return app, errors.Wrap(err, "initializing firebase app")
}

// Firebase delegates identities to Firebase Authentication; clients sign in with the Firebase SDK
// and send their ID token.
type Firebase struct {
	client *auth.Client
}

var _ user.IdentityProvider = (*Firebase)(nil) // interface compliance check

func NewFirebase(ctx context.Context, app *firebase.App) (*Firebase, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "initializing auth client")
	}
	return &Firebase{client: client}, nil
}

func (fb *Firebase) CreateIdentity(ctx context.Context, email, password, displayName string) (string, error) {
	params := (&auth.UserToCreate{}).
		Email(email).
		Password(password).
		DisplayName(displayName)
	rec, err := fb.client.CreateUser(ctx, params)
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return "", user.ErrEmailExists
		}
		return "", errors.Wrap(err, "creating firebase user")
	}
	return rec.UID, nil
}

func (fb *Firebase) DeleteIdentity(ctx context.Context, uid string) error {
	if err := fb.client.DeleteUser(ctx, uid); err != nil && !auth.IsUserNotFound(err) {
		return errors.Wrap(err, "deleting firebase user")
	}
	return nil
}

func (fb *Firebase) VerifyToken(ctx context.Context, token string) (string, error) {
	tok, err := fb.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", errors.Wrap(user.ErrInvalidToken, err.Error())
	}
	return tok.UID, nil
}
