package signon

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// RegisterRegistrationRoutes mounts the registration completion and
// session endpoints on the given router.
func RegisterRegistrationRoutes[T any](app router.Router[T], opts ...RegistrationControllerOption) {
	controller := NewRegistrationController(opts...)

	app.Post(controller.Routes.Complete, controller.CompleteRegistration).
		SetName("registration.complete")

	app.Post(controller.Routes.Logout, controller.Logout).
		SetName("session.logout")

	app.Get(controller.Routes.Me, controller.Me).
		SetName("session.me")
}

type RegistrationControllerRoutes struct {
	Complete string
	Logout   string
	Me       string
}

type RegistrationController struct {
	Logger       Logger
	Config       Config
	Repo         RepositoryManager
	Pending      *PendingTokenService
	Sessions     SessionStore
	Tokens       TokenService
	Routes       *RegistrationControllerRoutes
	ErrorHandler func(router.Context, error) error
}

type RegistrationControllerOption func(*RegistrationController) *RegistrationController

func NewRegistrationController(opts ...RegistrationControllerOption) *RegistrationController {
	c := &RegistrationController{
		Logger:       defLogger{},
		ErrorHandler: renderError,
		Routes: &RegistrationControllerRoutes{
			Complete: "/register/complete",
			Logout:   "/logout",
			Me:       "/me",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Config == nil {
		panic("Missing Config in registration controller...")
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in registration controller...")
	}

	if c.Pending == nil {
		panic("Missing PendingTokenService in registration controller...")
	}

	if c.Sessions == nil {
		panic("Missing SessionStore in registration controller...")
	}

	return c
}

func WithControllerConfig(cfg Config) RegistrationControllerOption {
	return func(c *RegistrationController) *RegistrationController {
		c.Config = cfg
		return c
	}
}

func WithControllerRepo(repo RepositoryManager) RegistrationControllerOption {
	return func(c *RegistrationController) *RegistrationController {
		c.Repo = repo
		return c
	}
}

func WithControllerPending(pending *PendingTokenService) RegistrationControllerOption {
	return func(c *RegistrationController) *RegistrationController {
		c.Pending = pending
		return c
	}
}

func WithControllerSessions(sessions SessionStore) RegistrationControllerOption {
	return func(c *RegistrationController) *RegistrationController {
		c.Sessions = sessions
		return c
	}
}

func WithControllerTokens(tokens TokenService) RegistrationControllerOption {
	return func(c *RegistrationController) *RegistrationController {
		c.Tokens = tokens
		return c
	}
}

func WithControllerLogger(logger Logger) RegistrationControllerOption {
	return func(c *RegistrationController) *RegistrationController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// CompleteRegistrationResponse is returned on successful registration.
type CompleteRegistrationResponse struct {
	User  Profile `json:"user"`
	Token string  `json:"token,omitempty"`
}

// CompleteRegistration exchanges a pending registration token plus a
// chosen username for a local account and a live session.
func (a *RegistrationController) CompleteRegistration(ctx router.Context) error {
	payload := new(CompleteRegistrationMessage)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("complete registration parse payload: %v", err)
		return a.ErrorHandler(ctx, errors.Wrap(err, errors.CategoryBadInput, "failed to parse body").
			WithCode(errors.CodeBadRequest))
	}

	handler := NewCompleteRegistrationHandler(a.Repo, a.Pending).WithLogger(a.Logger)

	user, err := handler.Execute(ctx.Context(), *payload)
	if err != nil {
		a.Logger.Error("complete registration: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	session, err := a.Sessions.Issue(ctx.Context(), user)
	if err != nil {
		a.Logger.Error("complete registration issue session: %v", err)
		return a.ErrorHandler(ctx, err)
	}

	a.setSessionCookie(ctx, session.SessionID)

	response := CompleteRegistrationResponse{
		User: user.PublicProfile(),
	}

	if a.Tokens != nil {
		token, err := a.Tokens.Generate(user)
		if err != nil {
			a.Logger.Error("complete registration mint token: %v", err)
			return a.ErrorHandler(ctx, err)
		}
		response.Token = token
	}

	return ctx.JSON(fiber.StatusCreated, response)
}

// Logout destroys the session named by the cookie. Unknown sessions
// still clear the cookie and succeed.
func (a *RegistrationController) Logout(ctx router.Context) error {
	contextKey := a.Config.GetContextKey()

	if sessionID := ctx.Cookies(contextKey); sessionID != "" {
		if err := a.Sessions.Delete(ctx.Context(), sessionID); err != nil {
			a.Logger.Error("logout delete session: %v", err)
			return a.ErrorHandler(ctx, err)
		}
	}

	a.clearSessionCookie(ctx)

	return ctx.NoContent(fiber.StatusNoContent)
}

// Me returns the profile of the session owner. Mount it behind
// NewSessionGuard.
func (a *RegistrationController) Me(ctx router.Context) error {
	session, ok := GetRouterSession(ctx, a.Config.GetContextKey())
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthorized)
	}

	user, err := a.Repo.Users().GetByID(ctx.Context(), session.UserID)
	if err != nil {
		a.Logger.Error("me lookup user: %v", err)
		return a.ErrorHandler(ctx, ErrUnauthorized)
	}

	return ctx.JSON(router.StatusOK, user.PublicProfile())
}

func (a *RegistrationController) setSessionCookie(c router.Context, val string) {
	ttl := a.Config.GetSessionTTL()
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	c.Cookie(&router.Cookie{
		Name:     a.Config.GetContextKey(),
		Value:    val,
		Expires:  time.Now().Add(ttl),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RegistrationController) clearSessionCookie(c router.Context) {
	c.Cookie(&router.Cookie{
		Name:     a.Config.GetContextKey(),
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// renderError maps rich errors onto JSON responses.
func renderError(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	code := richErr.Code
	if code == 0 {
		code = errors.CodeInternal
	}

	return c.JSON(code, map[string]any{
		"error": map[string]any{
			"message":   richErr.Message,
			"text_code": richErr.TextCode,
		},
	})
}
