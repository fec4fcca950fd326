// Package handlers defines HTTP-layer error codes and titles used across all
// API endpoints.
//
// Every failure is rendered as an ErrorDetail (see response.go). The Title
// constants are the human-facing headline; the ErrCode constants travel in
// the developerMessage field and give clients a stable, machine-readable
// taxonomy to branch on.
//
// Example response:
//
//	{
//	  "title": "Bad Request Exception, Check the Documentation",
//	  "status": 400,
//	  "detail": "anime not found",
//	  "developerMessage": "anime_not_found",
//	  "timestamp": "2024-05-01T10:00:00Z",
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeUnavailable      = "unavailable"

	// Domain-specific:
	ErrCodeAnimeNotFound    = "anime_not_found"
	ErrCodeValidation       = "validation_failed"
	ErrCodeInvalidJSON      = "invalid_json"
	ErrCodeInvalidID        = "invalid_id"
	ErrCodeInvalidPaging    = "invalid_paging"
	ErrCodeIdempotencyStore = "idempotency_failed"
)

const (
	TitleCheckDocs        = "Bad Request Exception, Check the Documentation"
	TitleInvalidFields    = "Bad Request Exception, Invalid Fields"
	TitleInvalidJSON      = "Bad Request Exception, Invalid JSON"
	TitleBadRequest       = "Bad Request Exception"
	TitleUnauthorized     = "Unauthorized"
	TitleForbidden        = "Forbidden"
	TitleNotFound         = "Not Found"
	TitleMethodNotAllowed = "Method Not Allowed"
	TitleTooManyRequests  = "Too Many Requests"
	TitleInternal         = "Internal Server Error"
	TitleUnavailable      = "Service Unavailable"
)
