package oauth

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-router"
	"github.com/skaife/go-signon"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPController handles the provider redirect and callback routes.
type HTTPController struct {
	authenticator *Authenticator
	config        HTTPConfig
}

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// PathPrefix for routes (default: "/auth")
	PathPrefix string

	// SessionCookieName names the session cookie (default: "session")
	SessionCookieName string

	// SessionCookieTTL bounds the cookie lifetime (default: 24h)
	SessionCookieTTL time.Duration

	// CookieSecure sets the Secure flag on cookies
	CookieSecure bool

	// CookieSameSite sets the SameSite attribute (e.g. "Lax", "Strict", "None")
	CookieSameSite string

	// SuccessRedirect is the default redirect after successful auth
	SuccessRedirect string

	// RegistrationRedirect receives unknown identities; the pending
	// token and the provider email are appended as query parameters so
	// the form can prefill
	RegistrationRedirect string

	// ErrorRedirect is the redirect for auth errors
	ErrorRedirect string

	// ErrorHandler handles errors (optional)
	ErrorHandler func(ctx router.Context, err error) error
}

// NewHTTPController creates an HTTP controller over the authenticator.
func NewHTTPController(authenticator *Authenticator, cfg HTTPConfig) *HTTPController {
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = "/auth"
	}
	if cfg.SessionCookieName == "" {
		cfg.SessionCookieName = "session"
	}
	if cfg.SessionCookieTTL == 0 {
		cfg.SessionCookieTTL = 24 * time.Hour
	}
	if cfg.CookieSameSite == "" {
		cfg.CookieSameSite = "Lax"
	}
	if cfg.SuccessRedirect == "" {
		cfg.SuccessRedirect = "/"
	}
	if cfg.RegistrationRedirect == "" {
		cfg.RegistrationRedirect = "/register"
	}
	if cfg.ErrorRedirect == "" {
		cfg.ErrorRedirect = "/login?error=auth_failed"
	}

	return &HTTPController{
		authenticator: authenticator,
		config:        cfg,
	}
}

// RegisterRoutes registers the provider routes.
func (c *HTTPController) RegisterRoutes(group RouteRegistrar) {
	group.Get("/providers", c.ListProviders)
	group.Get("/:provider/callback", c.Callback)
	group.Get("/:provider", c.BeginAuth)
}

// ListProviders returns available providers.
func (c *HTTPController) ListProviders(ctx router.Context) error {
	providers := c.authenticator.ListProviders()
	return ctx.JSON(router.StatusOK, map[string]any{
		"providers": providers,
	})
}

// BeginAuth starts the provider flow.
func (c *HTTPController) BeginAuth(ctx router.Context) error {
	providerName := ctx.Param("provider")

	redirectURL := ctx.Query("redirect_url")
	if redirectURL == "" {
		redirectURL = c.config.SuccessRedirect
	}

	redirect, err := c.authenticator.BeginAuth(ctx.Context(), providerName, WithRedirectURL(redirectURL))
	if err != nil {
		return c.handleError(ctx, err)
	}

	return ctx.Redirect(redirect.URL, http.StatusTemporaryRedirect)
}

// Callback handles the provider callback. Known identities get a
// session cookie and land on their redirect; unknown identities are
// sent to the registration form carrying a pending token and the
// provider email for prefill.
func (c *HTTPController) Callback(ctx router.Context) error {
	providerName := ctx.Param("provider")
	code := ctx.Query("code")
	state := ctx.Query("state")

	if errCode := ctx.Query("error"); errCode != "" {
		errDesc := ctx.Query("error_description")
		redirectURL := appendQueryParam(c.config.ErrorRedirect, "oauth_error", errCode)
		if errDesc != "" {
			redirectURL = appendQueryParam(redirectURL, "desc", errDesc)
		}
		return ctx.Redirect(redirectURL, http.StatusTemporaryRedirect)
	}

	if code == "" || state == "" {
		redirectURL := appendQueryParam(c.config.ErrorRedirect, "error", "missing_params")
		return ctx.Redirect(redirectURL, http.StatusTemporaryRedirect)
	}

	result, err := c.authenticator.CompleteAuth(ctx.Context(), providerName, code, state)
	if err != nil {
		return c.handleError(ctx, err)
	}

	if result.NeedsRegistration {
		redirectURL := appendQueryParam(c.config.RegistrationRedirect, "token", result.PendingToken)
		if result.Profile != nil && result.Profile.Email != "" {
			redirectURL = appendQueryParam(redirectURL, "email", result.Profile.Email)
		}
		return ctx.Redirect(redirectURL, http.StatusTemporaryRedirect)
	}

	c.setSessionCookie(ctx, result.Session)

	redirectURL := result.RedirectURL
	if redirectURL == "" {
		redirectURL = c.config.SuccessRedirect
	}

	return ctx.Redirect(redirectURL, http.StatusTemporaryRedirect)
}

func (c *HTTPController) setSessionCookie(ctx router.Context, session *signon.SessionData) {
	if session == nil {
		return
	}

	ctx.Cookie(&router.Cookie{
		Name:     c.config.SessionCookieName,
		Value:    session.SessionID,
		Path:     "/",
		Expires:  time.Now().Add(c.config.SessionCookieTTL),
		Secure:   c.config.CookieSecure,
		HTTPOnly: true,
		SameSite: c.config.CookieSameSite,
	})
}

func (c *HTTPController) handleError(ctx router.Context, err error) error {
	if c.config.ErrorHandler != nil {
		return c.config.ErrorHandler(ctx, err)
	}

	redirectURL := appendQueryParam(c.config.ErrorRedirect, "error", err.Error())
	return ctx.Redirect(redirectURL, http.StatusTemporaryRedirect)
}

func appendQueryParam(rawURL, key, value string) string {
	if rawURL == "" {
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err == nil {
		query := parsed.Query()
		query.Set(key, value)
		parsed.RawQuery = query.Encode()
		return parsed.String()
	}

	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}
