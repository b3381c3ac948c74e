package oauth

import "github.com/goliatone/go-errors"

const (
	TextCodeProviderNotFound  = "oauth_provider_not_found"
	TextCodeInvalidState      = "oauth_invalid_state"
	TextCodeStateExpired      = "oauth_state_expired"
	TextCodeTokenExchangeFail = "oauth_token_exchange_failed"
	TextCodeUserInfoFail      = "oauth_user_info_failed"
	TextCodeEmailNotVerified  = "oauth_email_not_verified"
	TextCodeProviderDenied    = "oauth_provider_denied"
)

// ErrProviderNotFound is returned when a requested provider is not configured.
var ErrProviderNotFound = errors.New("oauth provider not found", errors.CategoryNotFound).
	WithTextCode(TextCodeProviderNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidState is returned when the callback state is invalid or tampered.
var ErrInvalidState = errors.New("invalid oauth state", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidState).
	WithCode(errors.CodeBadRequest)

// ErrStateExpired is returned when the callback state has expired.
var ErrStateExpired = errors.New("oauth state expired", errors.CategoryBadInput).
	WithTextCode(TextCodeStateExpired).
	WithCode(errors.CodeBadRequest)

// ErrTokenExchangeFailed is returned when a provider token exchange fails.
var ErrTokenExchangeFailed = errors.New("token exchange failed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExchangeFail).
	WithCode(errors.CodeUnauthorized)

// ErrUserInfoFailed is returned when fetching the provider profile fails.
var ErrUserInfoFailed = errors.New("failed to fetch user info", errors.CategoryAuth).
	WithTextCode(TextCodeUserInfoFail).
	WithCode(errors.CodeUnauthorized)

// ErrEmailNotVerified is returned when the provider email is not verified.
var ErrEmailNotVerified = errors.New("email not verified", errors.CategoryAuth).
	WithTextCode(TextCodeEmailNotVerified).
	WithCode(errors.CodeForbidden)

// ErrProviderDenied is returned when the provider reports the user denied
// the authorization request.
var ErrProviderDenied = errors.New("authorization denied by provider", errors.CategoryAuth).
	WithTextCode(TextCodeProviderDenied).
	WithCode(errors.CodeUnauthorized)
