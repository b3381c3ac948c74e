package signon

import (
	"context"

	"github.com/goliatone/go-router"
)

var userCtxKey = &contextKey{"user"}
var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok
}

// WithSessionContext sets the SessionData in the given context
func WithSessionContext(r context.Context, session *SessionData) context.Context {
	return context.WithValue(r, sessionCtxKey, session)
}

// SessionFromContext finds the session from the context.
func SessionFromContext(ctx context.Context) (*SessionData, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(*SessionData)
	return raw, ok
}

// GetRouterSession extracts the SessionData from the router context
func GetRouterSession(ctx router.Context, key string) (*SessionData, bool) {
	if key == "" {
		key = "session"
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	session, ok := raw.(*SessionData)
	return session, ok
}
