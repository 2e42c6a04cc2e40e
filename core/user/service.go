package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/ismis/core"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrProfileMismatch    = errors.New("username or role does not match registered data")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrLoginUnsupported   = errors.New("password login is not supported by the identity provider")
)

type (
	// IdentityProvider is the hosted (or local) identity service owning the credentials.
	IdentityProvider interface {
		// CreateIdentity returns the uid of the new identity; ErrEmailExists if the email is taken.
		CreateIdentity(ctx context.Context, email, password, displayName string) (string, error)
		DeleteIdentity(ctx context.Context, uid string) error
		// VerifyToken returns the uid the bearer token was issued for; ErrInvalidToken otherwise.
		VerifyToken(ctx context.Context, token string) (string, error)
	}

	// PasswordAuthenticator is implemented by identity providers that can check passwords server-side.
	PasswordAuthenticator interface {
		// Authenticate returns the uid owning email/password; ErrInvalidCredentials otherwise.
		Authenticate(ctx context.Context, email, password string) (string, error)
		IssueToken(uid string) (string, error)
	}

	// StudentEnroller creates the academic & financial record of newly registered students.
	StudentEnroller interface {
		ValidateEnrollment(courses []string, plan string) error
		Enroll(ctx context.Context, p Profile, courses []string, plan string) error
	}

	Repository interface {
		CreateProfile(ctx context.Context, p Profile) (Profile, error)
		GetProfile(ctx context.Context, id string) (Profile, error)
		GetProfileByEmail(ctx context.Context, email string) (Profile, error)
		QueryProfiles(ctx context.Context, filter QueryFilter) ([]Profile, error)
		DeleteProfile(ctx context.Context, id string) error
	}

	// CredentialRepository stores the credentials of the local identity provider.
	CredentialRepository interface {
		SaveCredential(ctx context.Context, cred Credential) error
		GetCredentialByEmail(ctx context.Context, email string) (Credential, error) // ErrNotFound
		DeleteCredential(ctx context.Context, uid string) error
	}

	Service interface {
		Register(ctx context.Context, reg Registration) (Profile, error)
		// Login checks the credentials plus name & role against the profile and returns a bearer token.
		Login(ctx context.Context, lr LoginRequest) (string, error)
		// Authenticate resolves a bearer token into the profile of its owner.
		Authenticate(ctx context.Context, token string) (Profile, error)
		GetByID(ctx context.Context, id string) (Profile, error)
		Query(ctx context.Context, filter QueryFilter) ([]Profile, error)
	}

	service struct {
		repo     Repository
		idp      IdentityProvider
		enroller StudentEnroller
		validate *validator.Validate
		logger   core.Logger
		nowFunc  func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	idp IdentityProvider,
	enroller StudentEnroller,
	validate *validator.Validate,
	logger core.Logger,
) Service {
	return &service{
		repo:     repo,
		idp:      idp,
		enroller: enroller,
		validate: validate,
		logger:   logger,
		nowFunc:  time.Now,
	}
}

func (svc *service) checkUniqueness(ctx context.Context, email string) error {
	_, err := svc.repo.GetProfileByEmail(ctx, email)
	switch {
	case err == nil:
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	case errors.Cause(err) == ErrNotFound:
		return nil
	default:
		return errors.Wrap(err, "finding profile by email")
	}
}

func (svc *service) Register(ctx context.Context, reg Registration) (Profile, error) {
	if err := reg.Validate(svc.validate); err != nil {
		return Profile{}, err
	}
	if reg.Role == RoleStudent {
		if err := svc.enroller.ValidateEnrollment(reg.Courses, reg.PaymentPlan); err != nil {
			return Profile{}, err
		}
	}
	if err := svc.checkUniqueness(ctx, reg.Email); err != nil {
		return Profile{}, err
	}

	uid, err := svc.idp.CreateIdentity(ctx, reg.Email, reg.Password, reg.Name)
	if err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return Profile{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		}
		return Profile{}, errors.Wrap(err, "creating identity")
	}

	prof, err := svc.repo.CreateProfile(ctx, Profile{
		ID:        uid,
		Email:     reg.Email,
		Name:      reg.Name,
		Role:      reg.Role,
		CreatedAt: svc.nowFunc().UTC(),
	})
	if err != nil {
		svc.rollbackIdentity(ctx, uid)
		return Profile{}, errors.Wrap(err, "creating profile")
	}

	if prof.Role == RoleStudent {
		if err := svc.enroller.Enroll(ctx, prof, reg.Courses, reg.PaymentPlan); err != nil {
			if dErr := svc.repo.DeleteProfile(ctx, uid); dErr != nil {
				svc.logger.Error("deleting orphan profile", errors.Wrap(dErr, uid))
			}
			svc.rollbackIdentity(ctx, uid)
			return Profile{}, errors.Wrap(err, "enrolling student")
		}
	}
	return prof, nil
}

func (svc *service) rollbackIdentity(ctx context.Context, uid string) {
	if err := svc.idp.DeleteIdentity(ctx, uid); err != nil {
		svc.logger.Error("deleting orphan identity", errors.Wrap(err, uid))
	}
}

func (svc *service) Login(ctx context.Context, lr LoginRequest) (string, error) {
	auth, ok := svc.idp.(PasswordAuthenticator)
	if !ok {
		return "", core.NewValidationError(ErrLoginUnsupported)
	}
	if err := lr.Validate(svc.validate); err != nil {
		return "", err
	}

	uid, err := auth.Authenticate(ctx, lr.Email, lr.Password)
	if err != nil {
		if errors.Cause(err) == ErrInvalidCredentials {
			return "", core.NewValidationError(ErrInvalidCredentials)
		}
		return "", errors.Wrap(err, "authenticating")
	}

	prof, err := svc.repo.GetProfile(ctx, uid)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return "", core.NewValidationError(ErrInvalidCredentials)
		}
		return "", errors.Wrap(err, "finding profile")
	}
	if !lr.matchesProfile(prof) {
		return "", core.NewValidationError(ErrProfileMismatch)
	}

	token, err := auth.IssueToken(uid)
	return token, errors.Wrap(err, "issuing token")
}

func (svc *service) Authenticate(ctx context.Context, token string) (Profile, error) {
	if token == "" {
		return Profile{}, ErrInvalidToken
	}
	uid, err := svc.idp.VerifyToken(ctx, token)
	if err != nil {
		return Profile{}, errors.Wrap(err, "verifying token")
	}
	prof, err := svc.repo.GetProfile(ctx, uid)
	return prof, errors.Wrap(err, "finding profile")
}

func (svc *service) GetByID(ctx context.Context, id string) (Profile, error) {
	return svc.repo.GetProfile(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]Profile, error) {
	if filter.Role != "" && !filter.Role.Valid() {
		return nil, core.NewValidationError(ErrInvalidRole, core.FieldError{Field: "role", Error: ErrInvalidRole.Error()})
	}
	return svc.repo.QueryProfiles(ctx, filter)
}
