// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements HTTP Basic authentication and role checks. BasicAuth
// resolves the Authorization header through an Authenticator and stores the
// user in the Gin context ("userID" holds the username so the rate limiter,
// idempotency lookup and access logs key on it). RequireRole gates a route on
// one of the user's authorities.
package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-anime-catalog/internal/domain"
	"github.com/tbourn/go-anime-catalog/internal/services"
)

// BasicRealm is the challenge sent with every 401.
const BasicRealm = `Basic realm="anime"`

const ctxKeyUser = "auth.user"

// Authenticator resolves a username/password pair. It returns
// services.ErrInvalidCredentials for a bad pair; any other error is treated
// as a server failure.
type Authenticator func(ctx context.Context, username, password string) (*domain.User, error)

// BasicAuth authenticates every request in the chain.
//
//   - Missing or malformed Authorization: 401 with WWW-Authenticate.
//   - Bad credentials: 401 with WWW-Authenticate.
//   - Authenticator failure: 500.
func BasicAuth(authenticate Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok {
			unauthorized(c, "missing")
			return
		}
		u, err := authenticate(c.Request.Context(), username, password)
		if errors.Is(err, services.ErrInvalidCredentials) {
			unauthorized(c, "invalid")
			return
		}
		if err != nil {
			lg := LoggerFrom(c)
			lg.Error().Err(err).Msg("authenticate")
			AbortWithDetail(c, NewErrorDetail(c, http.StatusInternalServerError,
				"Internal Server Error", "internal server error", "internal_error"))
			return
		}

		c.Set("userID", u.Username)
		c.Set(ctxKeyUser, u)
		lg := LoggerFrom(c).With().Str("user_id", u.Username).Logger()
		c.Set(loggerKey, &lg)
		c.Next()
	}
}

// CurrentUser returns the user stored by BasicAuth.
func CurrentUser(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(ctxKeyUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*domain.User)
	return u, ok && u != nil
}

// RequireRole aborts with 403 unless the authenticated user holds role.
// Install it after BasicAuth.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok || !u.HasRole(role) {
			authFailures.WithLabelValues("forbidden").Inc()
			AbortWithDetail(c, NewErrorDetail(c, http.StatusForbidden,
				"Forbidden", services.ErrForbidden.Error(), "forbidden"))
			return
		}
		c.Next()
	}
}

func unauthorized(c *gin.Context, reason string) {
	authFailures.WithLabelValues(reason).Inc()
	c.Header("WWW-Authenticate", BasicRealm)
	AbortWithDetail(c, NewErrorDetail(c, http.StatusUnauthorized,
		"Unauthorized", "full authentication is required to access this resource", "unauthorized"))
}
