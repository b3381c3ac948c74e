package signon

import (
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// GuardOption customizes guard middleware behavior.
type GuardOption func(*guardOptions)

type guardOptions struct {
	errorHandler func(router.Context, error) error
	logger       Logger
}

// WithGuardErrorHandler overrides how guard failures are rendered.
func WithGuardErrorHandler(handler func(router.Context, error) error) GuardOption {
	return func(o *guardOptions) {
		if handler != nil {
			o.errorHandler = handler
		}
	}
}

// WithGuardLogger overrides the logger used by the guard.
func WithGuardLogger(logger Logger) GuardOption {
	return func(o *guardOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func resolveGuardOptions(opts []GuardOption) *guardOptions {
	o := &guardOptions{
		errorHandler: defaultGuardErrorHandler,
		logger:       defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// defaultGuardErrorHandler renders every failure as the same 401 body
// so callers cannot probe which check failed.
func defaultGuardErrorHandler(c router.Context, _ error) error {
	return c.JSON(errors.CodeUnauthorized, ErrUnauthorized)
}

// NewSessionGuard returns middleware that admits requests carrying a
// valid session cookie. The cookie name and the locals key both come
// from cfg.GetContextKey. On success the session is available through
// ctx.Locals and SessionFromContext.
func NewSessionGuard(cfg Config, sessions SessionStore, opts ...GuardOption) router.MiddlewareFunc {
	o := resolveGuardOptions(opts)
	contextKey := cfg.GetContextKey()

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			sessionID := c.Cookies(contextKey)
			if sessionID == "" {
				return o.errorHandler(c, ErrUnauthorized)
			}

			session, err := sessions.Get(c.Context(), sessionID)
			if err != nil {
				o.logger.Debug("session guard rejected request: %v", err)
				return o.errorHandler(c, ErrUnauthorized)
			}

			c.Locals(contextKey, session)
			c.SetContext(WithSessionContext(c.Context(), session))

			return next(c)
		}
	}
}

// NewTokenGuard returns middleware that admits requests carrying a
// valid bearer token in the Authorization header. Claims are stored
// under cfg.GetContextKey in the router locals.
func NewTokenGuard(cfg Config, tokens TokenService, opts ...GuardOption) router.MiddlewareFunc {
	o := resolveGuardOptions(opts)
	contextKey := cfg.GetContextKey()

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			raw := bearerToken(c.Header("Authorization"))
			if raw == "" {
				return o.errorHandler(c, ErrUnauthorized)
			}

			claims, err := tokens.Validate(raw)
			if err != nil {
				o.logger.Debug("token guard rejected request: %v", err)
				return o.errorHandler(c, ErrUnauthorized)
			}

			c.Locals(contextKey, claims)

			return next(c)
		}
	}
}

func bearerToken(header string) string {
	const scheme = "Bearer "
	if len(header) <= len(scheme) {
		return ""
	}
	if !strings.EqualFold(header[:len(scheme)], scheme) {
		return ""
	}
	return strings.TrimSpace(header[len(scheme):])
}
