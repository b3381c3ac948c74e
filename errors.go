package signon

import (
	"github.com/goliatone/go-errors"
)

const (
	TextCodeTokenInvalid     = "token_invalid"
	TextCodeTokenExpired     = "token_expired"
	TextCodeInvalidUsername  = "invalid_username"
	TextCodeUsernameTaken    = "username_taken"
	TextCodeUnauthorized     = "unauthorized"
	TextCodeIdentityNotFound = "identity_not_found"
	TextCodeSessionNotFound  = "session_not_found"
)

// ErrTokenInvalid is returned for tokens with a bad signature or shape.
// Always a client/tamper condition, never retried.
var ErrTokenInvalid = errors.New("invalid token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned for well-formed tokens past their expiry.
// The user must restart the provider flow.
var ErrTokenExpired = errors.New("token expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidUsername is returned when a chosen username fails validation.
var ErrInvalidUsername = errors.New("invalid username", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidUsername).
	WithCode(errors.CodeBadRequest)

// ErrUsernameTaken is returned when a different identity already holds
// the chosen username.
var ErrUsernameTaken = errors.New("username already taken", errors.CategoryConflict).
	WithTextCode(TextCodeUsernameTaken).
	WithCode(errors.CodeConflict)

// ErrUnauthorized is the generic guard failure. All guard failure modes
// collapse into it so callers cannot probe which check failed.
var ErrUnauthorized = errors.New("unauthorized", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(errors.CodeUnauthorized)

// ErrIdentityNotFound is returned for external identities with no local
// account.
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound).
	WithCode(errors.CodeNotFound)

// ErrSessionNotFound is returned by SessionStore.Get for unknown or
// expired session identifiers.
var ErrSessionNotFound = errors.New("session not found", errors.CategoryAuth).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(errors.CodeUnauthorized)

// IsTokenInvalid reports whether err carries the invalid-token text code.
func IsTokenInvalid(err error) bool {
	return hasTextCode(err, TextCodeTokenInvalid)
}

// IsTokenExpired reports whether err carries the expired-token text code.
func IsTokenExpired(err error) bool {
	return hasTextCode(err, TextCodeTokenExpired)
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}

	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}
