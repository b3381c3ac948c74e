// Package basicauth implements HTTP Basic authentication middleware.
//
// Credentials are checked in constant time. Stored passwords may be
// plaintext or bcrypt hashes; hashes are detected by their prefix.
package basicauth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"github.com/goliatone/go-router"
	"golang.org/x/crypto/bcrypt"
)

// DefaultRealm is the realm sent in the authentication challenge.
const DefaultRealm = "Restricted"

// Config defines the configuration for basic auth middleware
type Config struct {
	// Skip defines a function to skip middleware
	Skip func(router.Context) bool

	// Users maps usernames to passwords. Values starting with a bcrypt
	// prefix are treated as hashes.
	Users map[string]string

	// Authorizer overrides the Users lookup entirely when set.
	Authorizer func(username, password string) bool

	// Realm is the authentication realm in the challenge header
	Realm string

	// ContextKey defines the locals key holding the authenticated
	// username (default: "username")
	ContextKey string

	// ErrorHandler defines the error handler. Defaults to a bare 401
	// with a challenge header; all failure modes share it.
	ErrorHandler router.ErrorHandler
}

// New creates basic auth middleware from the config.
func New(config Config) router.MiddlewareFunc {
	cfg := setDefaults(config)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if cfg.Skip != nil && cfg.Skip(c) {
				return next(c)
			}

			username, password, ok := parseCredentials(c.Header("Authorization"))
			if !ok || !cfg.Authorizer(username, password) {
				return cfg.ErrorHandler(c, nil)
			}

			c.Locals(cfg.ContextKey, username)

			return next(c)
		}
	}
}

func setDefaults(config Config) Config {
	cfg := config

	if cfg.Realm == "" {
		cfg.Realm = DefaultRealm
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "username"
	}

	if cfg.Authorizer == nil {
		users := cfg.Users
		cfg.Authorizer = func(username, password string) bool {
			stored, ok := users[username]
			if !ok {
				// Burn comparable time for unknown usernames.
				secureCompare(password, password)
				return false
			}
			return matchPassword(password, stored)
		}
	}

	if cfg.ErrorHandler == nil {
		realm := cfg.Realm
		cfg.ErrorHandler = func(c router.Context, _ error) error {
			c.SetHeader("WWW-Authenticate", `Basic realm="`+realm+`"`)
			return c.JSON(router.StatusUnauthorized, map[string]string{
				"error": "unauthorized",
			})
		}
	}

	return cfg
}

func parseCredentials(header string) (string, string, bool) {
	const scheme = "Basic "
	if len(header) <= len(scheme) || !strings.EqualFold(header[:len(scheme)], scheme) {
		return "", "", false
	}

	decoded, err := base64.StdEncoding.DecodeString(header[len(scheme):])
	if err != nil {
		return "", "", false
	}

	username, password, found := strings.Cut(string(decoded), ":")
	if !found || username == "" {
		return "", "", false
	}

	return username, password, true
}

func matchPassword(password, stored string) bool {
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	}
	return secureCompare(password, stored)
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") ||
		strings.HasPrefix(s, "$2b$") ||
		strings.HasPrefix(s, "$2y$")
}

// secureCompare hashes both inputs so the comparison runs in constant
// time regardless of length.
func secureCompare(given, actual string) bool {
	givenSum := sha256.Sum256([]byte(given))
	actualSum := sha256.Sum256([]byte(actual))
	return subtle.ConstantTimeCompare(givenSum[:], actualSum[:]) == 1
}
