package signon

import (
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// ExternalIdentity is the (provider, externalId, email) triple asserted
// by an identity provider for one authentication event. It is never
// persisted directly.
type ExternalIdentity struct {
	Provider   string `json:"provider"`
	ExternalID string `json:"external_id"`
	Email      string `json:"email"`
}

// Identity holds the attributes of an authenticated identity
type Identity interface {
	ID() string
	Username() string
	Email() string
}

// Config holds auth options, loaded once at process start.
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	// GetTokenExpiration is the bearer token lifetime in hours.
	GetTokenExpiration() int
	// GetPendingWindow is the pending-registration token lifetime.
	GetPendingWindow() time.Duration
	GetSessionTTL() time.Duration
	// GetContextKey names both the session cookie and the router locals
	// entry populated by SessionGuard.
	GetContextKey() string
}

// DefaultLogger returns the stdout fallback logger.
func DefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SIGNON "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] SIGNON "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SIGNON "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SIGNON "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
