// Package services defines the business logic for the anime catalog and its
// credential checks. This file centralizes service-level error values so that
// they can be consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

var (
	// ErrAnimeNotFound indicates that the referenced anime id does not exist.
	ErrAnimeNotFound = errors.New("anime not found")

	// ErrInvalidCredentials is returned when a username/password pair does
	// not match the credential store.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrForbidden is returned when an authenticated caller lacks the role
	// required by an operation.
	ErrForbidden = errors.New("access denied")
)
