// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the response utilities used across all endpoints. Every
// failure goes through writeError (or fail for transport-level problems) so
// clients always receive a middleware.ErrorDetail.
//
// Conventions:
//   - Service errors are translated in exactly one place (writeError) using
//     errors.Is / errors.As.
//   - 5xx responses never carry the raw error; it is logged with the
//     request-scoped logger instead.
//   - `ok()` and `noContent()` write success responses in a consistent shape.
//
// Example error response:
//
//	HTTP/1.1 400 Bad Request
//	{
//	  "title": "Bad Request Exception, Invalid Fields",
//	  "status": 400,
//	  "detail": "Check the field(s) error",
//	  "developerMessage": "validation_failed",
//	  "timestamp": "2024-05-01T10:00:00Z",
//	  "fields": "name, name",
//	  "fieldsMessage": "The anime's name cannot be null, The anime's name cannot be empty"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-anime-catalog/internal/http/middleware"
	"github.com/tbourn/go-anime-catalog/internal/services"
	"github.com/tbourn/go-anime-catalog/internal/validation"
)

// detailInternal is the only detail a 5xx response ever carries.
const detailInternal = "internal server error"

// fail aborts the request with an ErrorDetail and logs server-side errors.
func fail(c *gin.Context, status int, title, code, detail string) {
	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", detail).
			Msg("api error")
		detail = detailInternal
	}
	middleware.AbortWithDetail(c, middleware.NewErrorDetail(c, status, title, detail, code))
}

// Fail is the exported variant of fail().
//
// External packages (e.g., router setup) should call Fail to return
// consistent error bodies without directly depending on unexported helpers.
func Fail(c *gin.Context, status int, title, code, detail string) {
	fail(c, status, title, code, detail)
}

// writeError translates an error returned by validation or the service layer
// into the matching ErrorDetail.
//
//   - *validation.ValidationError   → 400 Invalid Fields (fields, fieldsMessage)
//   - services.ErrAnimeNotFound     → 400 Check the Documentation
//   - services.ErrInvalidCredentials → 401
//   - services.ErrForbidden         → 403
//   - anything else                 → 500 (raw error logged, not returned)
func writeError(c *gin.Context, err error) {
	var ve *validation.ValidationError
	switch {
	case errors.As(err, &ve):
		d := middleware.NewErrorDetail(c, http.StatusBadRequest, TitleInvalidFields, "Check the field(s) error", ErrCodeValidation)
		d.Fields = ve.Violations.Fields()
		d.FieldsMessage = ve.Violations.Messages()
		middleware.AbortWithDetail(c, d)
	case errors.Is(err, services.ErrAnimeNotFound):
		fail(c, http.StatusBadRequest, TitleCheckDocs, ErrCodeAnimeNotFound, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials):
		fail(c, http.StatusUnauthorized, TitleUnauthorized, ErrCodeUnauthorized, err.Error())
	case errors.Is(err, services.ErrForbidden):
		fail(c, http.StatusForbidden, TitleForbidden, ErrCodeForbidden, err.Error())
	default:
		fail(c, http.StatusInternalServerError, TitleInternal, ErrCodeInternal, err.Error())
	}
}

// ok writes a success JSON response.
//
// It serializes `body` as JSON with the given HTTP status code.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
//
// Used when the operation succeeds but there is no response body.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
