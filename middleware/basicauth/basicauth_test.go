package basicauth

import (
	"encoding/base64"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func encodeCredentials(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func TestParseCredentials(t *testing.T) {
	t.Run("valid header", func(t *testing.T) {
		username, password, ok := parseCredentials(encodeCredentials("ada", "secret"))
		require.True(t, ok)
		assert.Equal(t, "ada", username)
		assert.Equal(t, "secret", password)
	})

	t.Run("password may contain colons", func(t *testing.T) {
		username, password, ok := parseCredentials(encodeCredentials("ada", "se:cr:et"))
		require.True(t, ok)
		assert.Equal(t, "ada", username)
		assert.Equal(t, "se:cr:et", password)
	})

	t.Run("case insensitive scheme", func(t *testing.T) {
		header := "basic " + base64.StdEncoding.EncodeToString([]byte("ada:secret"))
		_, _, ok := parseCredentials(header)
		assert.True(t, ok)
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		for _, header := range []string{
			"",
			"Basic ",
			"Bearer abc",
			"Basic not-base64!!!",
			"Basic " + base64.StdEncoding.EncodeToString([]byte("no-separator")),
			"Basic " + base64.StdEncoding.EncodeToString([]byte(":password-only")),
		} {
			_, _, ok := parseCredentials(header)
			assert.False(t, ok, "header %q should be rejected", header)
		}
	})
}

func TestMatchPassword(t *testing.T) {
	t.Run("plaintext", func(t *testing.T) {
		assert.True(t, matchPassword("secret", "secret"))
		assert.False(t, matchPassword("secret", "other"))
	})

	t.Run("bcrypt hash", func(t *testing.T) {
		hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
		require.NoError(t, err)

		assert.True(t, matchPassword("secret", string(hash)))
		assert.False(t, matchPassword("wrong", string(hash)))
	})
}

func TestDefaultAuthorizer(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-secret"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := setDefaults(Config{
		Users: map[string]string{
			"ada":   "plain-secret",
			"grace": string(hash),
		},
	})

	assert.True(t, cfg.Authorizer("ada", "plain-secret"))
	assert.True(t, cfg.Authorizer("grace", "hashed-secret"))

	assert.False(t, cfg.Authorizer("ada", "wrong"))
	assert.False(t, cfg.Authorizer("grace", "wrong"))
	assert.False(t, cfg.Authorizer("nobody", "plain-secret"))
}

func TestMiddleware(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	handler := New(Config{
		Users: map[string]string{"ada": string(hash)},
	})(func(c router.Context) error { return c.Next() })

	newRequestContext := func(header string) *router.MockContext {
		ctx := router.NewMockContext()
		ctx.HeadersM["Authorization"] = header
		ctx.On("Header", "Authorization").Return(header).Maybe()
		return ctx
	}

	t.Run("valid credentials", func(t *testing.T) {
		ctx := newRequestContext(encodeCredentials("ada", "secret"))
		ctx.On("Locals", "username", "ada").Return(nil)

		require.NoError(t, handler(ctx))
		assert.True(t, ctx.NextCalled)
	})

	expectChallenge := func(t *testing.T, header string) {
		ctx := newRequestContext(header)
		ctx.On("SetHeader", "WWW-Authenticate", `Basic realm="Restricted"`).Return(ctx)

		var payload map[string]string
		ctx.On("JSON", router.StatusUnauthorized, mock.Anything).Run(func(args mock.Arguments) {
			payload = args.Get(1).(map[string]string)
		}).Return(nil)

		require.NoError(t, handler(ctx))
		assert.False(t, ctx.NextCalled)
		assert.Equal(t, "unauthorized", payload["error"])
		ctx.AssertCalled(t, "SetHeader", "WWW-Authenticate", `Basic realm="Restricted"`)
	}

	t.Run("wrong password", func(t *testing.T) {
		expectChallenge(t, encodeCredentials("ada", "wrong"))
	})

	t.Run("unknown user", func(t *testing.T) {
		expectChallenge(t, encodeCredentials("grace", "secret"))
	})

	t.Run("missing header", func(t *testing.T) {
		expectChallenge(t, "")
	})

	t.Run("malformed header", func(t *testing.T) {
		expectChallenge(t, "Basic not-base64!!!")
	})
}

func TestMiddlewareSkip(t *testing.T) {
	handler := New(Config{
		Users: map[string]string{"ada": "secret"},
		Skip:  func(router.Context) bool { return true },
	})(func(c router.Context) error { return c.Next() })

	ctx := router.NewMockContext()

	require.NoError(t, handler(ctx))
	assert.True(t, ctx.NextCalled)
}

func TestSetDefaults(t *testing.T) {
	cfg := setDefaults(Config{})

	assert.Equal(t, DefaultRealm, cfg.Realm)
	assert.Equal(t, "username", cfg.ContextKey)
	assert.NotNil(t, cfg.Authorizer)
	assert.NotNil(t, cfg.ErrorHandler)
}
