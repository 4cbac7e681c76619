package common

import "errors"

// Infrastructure errors shared by client and server. Domain errors of the
// pool itself live in internal/pool. Callers should use errors.Is to match.
var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorRateLimited  = errors.New("rate limited")

	// Auth errors (invalid or malformed token, bad login proof).
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrLoginExpired     = errors.New("login proof outside allowed clock skew")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")
)
