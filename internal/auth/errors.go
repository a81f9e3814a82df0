package auth

import "errors"

var (
	ErrNotFound           = errors.New("auth: not found")
	ErrDuplicateEmail     = errors.New("auth: email already registered")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrAccountInactive    = errors.New("auth: account is inactive")

	// ErrTokenInvalid covers bad signature, wrong type tag, revoked and
	// missing tokens alike; clients must not learn which one it was.
	ErrTokenInvalid = errors.New("auth: invalid token")
	// ErrTokenExpired is distinguished from ErrTokenInvalid only in logs.
	ErrTokenExpired = errors.New("auth: token expired")
)
