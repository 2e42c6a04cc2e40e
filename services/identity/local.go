package identity

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/ismis/core"
	"github.com/trezcool/ismis/core/user"
)

// Local is the identity provider used in DEV & tests: bcrypt hashed passwords and HS256 signed tokens.
type Local struct {
	creds   user.CredentialRepository
	key     []byte
	issuer  string
	expiry  time.Duration
	nowFunc func() time.Time
}

var (
	_ user.IdentityProvider      = (*Local)(nil) // interface compliance check
	_ user.PasswordAuthenticator = (*Local)(nil)
)

func NewLocal(creds user.CredentialRepository, conf *core.Config) *Local {
	return &Local{
		creds:   creds,
		key:     []byte(conf.SecretKey),
		issuer:  conf.AppName,
		expiry:  conf.JWTExpirationDelta,
		nowFunc: time.Now,
	}
}

func (l *Local) CreateIdentity(ctx context.Context, email, password, _ string) (string, error) {
	if _, err := l.creds.GetCredentialByEmail(ctx, email); err == nil {
		return "", user.ErrEmailExists
	} else if errors.Cause(err) != user.ErrNotFound {
		return "", errors.Wrap(err, "finding credential")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hashing password")
	}
	cred := user.Credential{
		UID:          uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    l.nowFunc().UTC(),
	}
	if err := l.creds.SaveCredential(ctx, cred); err != nil {
		return "", errors.Wrap(err, "saving credential")
	}
	return cred.UID, nil
}

func (l *Local) DeleteIdentity(ctx context.Context, uid string) error {
	return errors.Wrap(l.creds.DeleteCredential(ctx, uid), "deleting credential")
}

func (l *Local) Authenticate(ctx context.Context, email, password string) (string, error) {
	cred, err := l.creds.GetCredentialByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return "", user.ErrInvalidCredentials
		}
		return "", errors.Wrap(err, "finding credential")
	}
	if err := bcrypt.CompareHashAndPassword(cred.PasswordHash, []byte(password)); err != nil {
		return "", user.ErrInvalidCredentials
	}
	return cred.UID, nil
}

// IssueToken generates a signed JWT for `uid`.
func (l *Local) IssueToken(uid string) (string, error) {
	now := l.nowFunc()
	claims := jwt.RegisteredClaims{
		Issuer:    l.issuer,
		Subject:   uid,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(l.expiry)),
	}
	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(l.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (l *Local) VerifyToken(_ context.Context, token string) (string, error) {
	claims := new(jwt.RegisteredClaims)
	parsed, err := jwt.ParseWithClaims(
		token,
		claims,
		func(*jwt.Token) (interface{}, error) { return l.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !parsed.Valid {
		return "", user.ErrInvalidToken
	}
	if claims.Subject == "" || !claims.VerifyIssuer(l.issuer, true) {
		return "", user.ErrInvalidToken
	}
	return claims.Subject, nil
}
