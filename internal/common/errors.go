// Package common defines sentinel errors and constants shared by the
// TokenKeeper server, its transport and the command-line client. Callers
// should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors. The transport maps each of them to one status code.
	ErrorValidation   = errors.New("validation error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrorInternal     = errors.New("internal error")

	// Token verification errors. They are kept apart for logs and metrics
	// only; every one of them means "unauthenticated" to the caller.
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenMalformed   = errors.New("malformed token")
	ErrTokenExpired     = errors.New("token expired")
)
