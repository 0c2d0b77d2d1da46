package echoweb

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/dossier/core"
)

const msgPermissionDenied = "You do not have permission to access this page."

var errHttpNotFound = echo.NewHTTPError(http.StatusNotFound, "page not found")

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// The server is shut down gracefully whenever a core.shutdown error is caught.
func (s *Server) newAppHTTPErrorHandler() echo.HTTPErrorHandler {
	logger := s.deps.Logger

	return func(err error, ctx echo.Context) {
		var code int
		var message string

		var httpErr *echo.HTTPError
		var vErr *core.ValidationError
		switch {
		case errors.As(err, &httpErr):
			if herr, ok := httpErr.Internal.(*echo.HTTPError); ok {
				httpErr = herr
			}
			code = httpErr.Code
			message = fmt.Sprint(httpErr.Message)
		case errors.Is(err, core.ErrPermissionDenied):
			code = http.StatusForbidden
			message = msgPermissionDenied
		case errors.Is(err, core.ErrNotFound):
			code = http.StatusNotFound
			message = errors.Cause(err).Error()
		case errors.As(err, &vErr):
			code = http.StatusBadRequest
			message = vErr.Error()
		default: // any other error is a server error
			code = http.StatusInternalServerError
			message = http.StatusText(http.StatusInternalServerError)

			args := []interface{}{errors.Wrap(err, message)}
			if usr, ok := getContextUser(ctx); ok {
				args = append(args, usr)
			}
			logger.Error(fmt.Sprintf("%s %s: %v", ctx.Request().Method, ctx.Request().URL.Path, err), args...)

			// shutting down...
			if core.IsShutdown(err) {
				s.signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}

		// Send response
		if ctx.Response().Committed {
			return
		}
		if ctx.Request().Method == http.MethodHead { // Issue #608
			err = ctx.NoContent(code)
		} else {
			p := s.newPage(ctx, http.StatusText(code), echo.Map{"code": code, "message": message})
			err = s.render(ctx, code, "error", p)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
			_ = ctx.String(code, message)
		}
	}
}
