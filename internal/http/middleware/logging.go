// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file provides the correlation id, access log and panic recovery
// middleware, plus LoggerFrom for handlers that want the request-scoped
// zerolog.Logger. Install them in the order RequestID, Logger (or
// RedactingLogger), Recovery so every log line and error body carries the
// request id.
package middleware

import (
	"net/http"
	"regexp"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

const (
	requestIDKey    = "requestID"
	loggerKey       = "logger" // *zerolog.Logger
	requestIDHeader = "X-Request-ID"

	maxQueryLogLength = 2048
	maxRequestIDLen   = 128
)

// Client-supplied ids outside this alphabet are replaced, so they cannot
// smuggle newlines or markup into logs and error bodies.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:\-]+$`)

// quietPaths are probes and scrapes; their access logs drop to debug.
var quietPaths = map[string]bool{"/health": true, "/ready": true, "/metrics": true}

// RequestID reuses a well-formed X-Request-ID or generates a UUID, echoes it
// on the response and stores it in the context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if len(rid) > maxRequestIDLen || !requestIDPattern.MatchString(rid) {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Logger attaches a request-scoped logger and writes one access log line
// per request once the chain has run. The user and anime id are read after
// c.Next because BasicAuth and the route params live on the API group.
//
// Levels: error for 5xx or recorded gin errors, warn for 4xx, info
// otherwise, debug for quietPaths.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		l := baseLogger(c).
			Str("user_agent", c.Request.UserAgent()).
			Str("referer", c.Request.Referer()).
			Str("query", truncate(c.Request.URL.RawQuery, maxQueryLogLength)).
			Logger()
		c.Set(loggerKey, &l)

		c.Next()

		accessEvent(c, l, start).Msg("request")
	}
}

// baseLogger carries the fields shared by Logger and RedactingLogger.
func baseLogger(c *gin.Context) zerolog.Context {
	lc := log.With().Str("request_id", requestIDOf(c))
	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
		lc = lc.Str("trace_id", sc.TraceID().String())
	}
	return lc.
		Str("method", c.Request.Method).
		Str("path", routeOf(c)).
		Str("remote_ip", c.ClientIP()).
		Int64("bytes_in", c.Request.ContentLength) // -1 when unknown
}

// accessEvent picks the level for the finished request and adds the response
// fields.
func accessEvent(c *gin.Context, l zerolog.Logger, start time.Time) *zerolog.Event {
	status := c.Writer.Status()

	var ev *zerolog.Event
	switch {
	case len(c.Errors) > 0:
		ev = l.Error().Str("errors", c.Errors.String())
	case status >= 500:
		ev = l.Error()
	case quietPaths[c.FullPath()]:
		ev = l.Debug()
	case status >= 400:
		ev = l.Warn()
	default:
		ev = l.Info()
	}

	uid, _ := c.Get("userID")
	if s := asString(uid); s != "" {
		ev = ev.Str("user_id", s)
	}
	if id := c.Param("id"); id != "" {
		ev = ev.Str("anime_id", id)
	}
	return ev.
		Int("status", status).
		Dur("latency", time.Since(start)).
		Int("bytes_out", c.Writer.Size())
}

// Recovery turns a panic into a 500 ErrorDetail and logs the stack. When the
// handler already wrote a response only the status can be forced.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			log.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", requestIDOf(c)).
				Str("path", routeOf(c)).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			AbortWithDetail(c, NewErrorDetail(c, http.StatusInternalServerError,
				"Internal Server Error", "internal server error", "internal_error"))
		}()
		c.Next()
	}
}

// LoggerFrom returns the request-scoped logger, or a copy of the global one
// when no logging middleware ran.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

// requestIDOf returns the id stored by RequestID, falling back to the
// response header for chains that set it some other way.
func requestIDOf(c *gin.Context) string {
	if v, ok := c.Get(requestIDKey); ok {
		return asString(v)
	}
	return c.Writer.Header().Get(requestIDHeader)
}

// routeOf returns the matched route template, or the raw path for 404s.
func routeOf(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return c.Request.URL.Path
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// truncate caps s at max bytes plus an ellipsis; max <= 0 disables it.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
