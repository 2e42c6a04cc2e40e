package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ismis/core"
	"github.com/trezcool/ismis/core/payment"
	"github.com/trezcool/ismis/core/student"
	"github.com/trezcool/ismis/core/user"
)

var (
	errMissingToken    = echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed token")
	errUnauthorized    = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errProfileNotFound = echo.NewHTTPError(http.StatusForbidden, "profile not found")
	errHttpForbidden   = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errUnknownFormat   = errors.New("unknown format")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		cause := errors.Cause(err)
		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *payment.ProcessorError:
			code = origErr.Status
			message = origErr.Message
		default:
			switch cause {
			case user.ErrNotFound, student.ErrNotFound, payment.ErrNotFound:
				code = http.StatusNotFound
				message = cause.Error()
			case student.ErrConflict:
				code = http.StatusConflict
				message = "the record was modified by someone else, please reload it"
			case user.ErrPermissionDenied:
				code = http.StatusForbidden
				message = cause.Error()
			case user.ErrInvalidToken:
				code = http.StatusUnauthorized
				message = cause.Error()
			case payment.ErrGatewayNotConfigured:
				code = http.StatusInternalServerError
				message = cause.Error()
				logger.Error(cause.Error(), err)
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				args := []interface{}{errors.Wrap(err, msg)}
				if prof, pErr := getContextProfile(ctx); pErr == nil {
					args = append(args, prof)
				}
				logger.Error(msg, args...)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
