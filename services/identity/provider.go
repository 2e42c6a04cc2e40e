package identity

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/ismis/core"
	"github.com/trezcool/ismis/core/user"
)

// New returns the identity provider named by conf.IdentityProvider.
// `creds` is only used by the local provider.
func New(ctx context.Context, conf *core.Config, creds user.CredentialRepository) (user.IdentityProvider, error) {
	switch conf.IdentityProvider {
	case core.IdentityLocal:
		return NewLocal(creds, conf), nil

	case core.IdentityFirebase:
		app, err := NewFirebaseApp(ctx, conf)
		if err != nil {
			return nil, err
		}
		fb, err := NewFirebase(ctx, app)
		if err != nil {
			return nil, err
		}
		return fb, nil

	default:
		return nil, errors.Errorf("unknown identity provider %q", conf.IdentityProvider)
	}
}
