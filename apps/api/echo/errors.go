package echoapi

import (
	"fmt"
	"net/http"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/soka/core"
	"github.com/trezcool/soka/core/user"
)

var (
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errSessionClosed      = echo.NewHTTPError(http.StatusUnauthorized, "session expired or revoked")
	errInvalidCredentials = echo.NewHTTPError(http.StatusBadRequest, "invalid credentials")
	errAccountDeactivated = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired     = echo.NewHTTPError(http.StatusUnauthorized, "refresh has expired")
	errHttpForbidden      = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound       = echo.NewHTTPError(http.StatusNotFound, "not found")

	invalidDataText   = "invalid data"
	serverErrorText   = "internal server error"
	forbiddenText     = "permission denied"
	roleNotAllowedTxt = "you cannot assign this role"
)

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code := http.StatusInternalServerError
		res := errorResponse{Error: serverErrorText}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				res.Error = fmt.Sprint(origErr.Message)
				break
			}
			if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
				origErr = herr
			}
			code = origErr.Code
			res.Error = fmt.Sprint(origErr.Message)
		case validator.ValidationErrors:
			code = http.StatusBadRequest
			res = errorResponse{Error: invalidDataText, Fields: translateFieldErrors(origErr, translator)}
		case *core.ValidationError:
			code = http.StatusBadRequest
			res = errorResponse{Error: origErr.Error(), Fields: fieldErrors(origErr.Fields)}
			if res.Error == "" {
				res.Error = invalidDataText
			}
		case *core.ConflictError:
			code = http.StatusConflict
			res = errorResponse{Error: origErr.Error(), Fields: fieldErrors(origErr.Fields)}
		case *core.NotFoundError:
			code = http.StatusNotFound
			res.Error = origErr.Error()
		default:
			if origErr == core.ErrForbidden {
				code = http.StatusForbidden
				res.Error = forbiddenText
				break
			}

			// any other error is a server error
			args := []interface{}{errors.Wrap(err, serverErrorText)}
			if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
				args = append(args, usr)
			}
			logger.Error(serverErrorText, args...)
			if ctx.Echo().Debug {
				res.Error = err.Error()
			}

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, res)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// translateFieldErrors keys the messages by the json path of the field, e.g. attendance[0].status.
func translateFieldErrors(vErrs validator.ValidationErrors, translator ut.Translator) map[string]string {
	fldErrs := make(map[string]string, len(vErrs))
	for _, vErr := range vErrs {
		field := vErr.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:] // drop the struct name
		}
		fldErrs[field] = vErr.Translate(translator)
	}
	return fldErrs
}

func fieldErrors(flds []core.FieldError) map[string]string {
	if len(flds) == 0 {
		return nil
	}
	fldErrs := make(map[string]string, len(flds))
	for _, fErr := range flds {
		fldErrs[fErr.Field] = fErr.Error
	}
	return fldErrs
}
