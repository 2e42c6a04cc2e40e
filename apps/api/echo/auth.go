package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/ismis/core/user"
)

const contextProfileKey = "profile"

// newAuthConfig returns the bearer token auth middleware config.
// Tokens are verified by the identity provider behind `svc`; the profile owning the token is stored in the context.
func newAuthConfig(svc user.Service) middleware.KeyAuthConfig {
	return middleware.KeyAuthConfig{
		KeyLookup:  "header:" + echo.HeaderAuthorization,
		AuthScheme: "Bearer",
		Validator: func(token string, ctx echo.Context) (bool, error) {
			prof, err := svc.Authenticate(ctx.Request().Context(), token)
			if err != nil {
				switch errors.Cause(err) {
				case user.ErrInvalidToken:
					return false, user.ErrInvalidToken
				case user.ErrNotFound:
					return false, errProfileNotFound
				}
				return false, errors.Wrap(err, "authenticating")
			}
			ctx.Set(contextProfileKey, prof)
			return true, nil
		},
		ErrorHandler: func(err error, _ echo.Context) error {
			// extraction failures (no header, other scheme) are reported as bad requests
			var herr *echo.HTTPError
			if errors.As(err, &herr) && herr.Code == http.StatusBadRequest {
				return errMissingToken
			}
			return err
		},
	}
}

func authMiddleware(svc user.Service) echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(newAuthConfig(svc))
}

// optionalAuthMiddleware authenticates requests carrying an Authorization header only.
func optionalAuthMiddleware(svc user.Service) echo.MiddlewareFunc {
	conf := newAuthConfig(svc)
	conf.Skipper = func(ctx echo.Context) bool {
		return ctx.Request().Header.Get(echo.HeaderAuthorization) == ""
	}
	return middleware.KeyAuthWithConfig(conf)
}

func getContextProfile(ctx echo.Context) (user.Profile, error) {
	if prof, ok := ctx.Get(contextProfileKey).(user.Profile); ok {
		return prof, nil
	}
	return user.Profile{}, errUnauthorized
}
