// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file defines ErrorDetail, the single JSON error body returned by every
// endpoint and every middleware that aborts a request.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorDetail is the uniform error body. Fields and FieldsMessage are only
// populated for validation failures.
type ErrorDetail struct {
	// Short classification of the failure
	Title string `json:"title" example:"Bad Request Exception, Check the Documentation"`
	// HTTP status code, repeated in the body
	Status int `json:"status" example:"400"`
	// Human-readable description, safe to show to users
	Detail string `json:"detail" example:"anime not found"`
	// Stable, machine-readable code (see handlers/errors.go)
	DeveloperMessage string `json:"developerMessage" example:"anime_not_found"`
	// Time the error was produced (UTC)
	Timestamp time.Time `json:"timestamp" example:"2024-05-01T10:00:00Z"`
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Offending fields, comma separated
	Fields string `json:"fields,omitempty" example:"name"`
	// Messages aligned with Fields, comma separated
	FieldsMessage string `json:"fieldsMessage,omitempty" example:"The anime's name cannot be empty"`
}

// NewErrorDetail builds an ErrorDetail stamped with the current time and the
// request's correlation ID.
func NewErrorDetail(c *gin.Context, status int, title, detail, code string) ErrorDetail {
	return ErrorDetail{
		Title:            title,
		Status:           status,
		Detail:           detail,
		DeveloperMessage: code,
		Timestamp:        time.Now().UTC(),
		RequestID:        c.Writer.Header().Get(requestIDHeader),
	}
}

// AbortWithDetail writes d with its status and stops the handler chain.
func AbortWithDetail(c *gin.Context, d ErrorDetail) {
	c.AbortWithStatusJSON(d.Status, d)
}
