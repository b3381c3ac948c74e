package oauth

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/skaife/go-signon"
)

// Authenticator orchestrates the provider round trip. A callback
// resolves to exactly one of two outcomes: a live session for a known
// identity, or a pending registration token for an unknown one. No
// account row is written during the callback either way.
type Authenticator struct {
	providers    map[string]Provider
	stateManager StateManager
	users        signon.Users
	sessions     signon.SessionStore
	pending      *signon.PendingTokenService
	logger       signon.Logger
	config       AuthConfig
}

// AuthConfig configures the authenticator.
type AuthConfig struct {
	BaseURL              string
	CallbackPath         string
	DefaultRedirectURL   string
	StateEncryptionKey   []byte
	StateHMACKey         []byte
	StateTTL             time.Duration
	RequireEmailVerified bool
}

// AuthOption configures the authenticator.
type AuthOption func(*Authenticator)

// NewAuthenticator creates an authenticator over the given stores.
func NewAuthenticator(
	users signon.Users,
	sessions signon.SessionStore,
	pending *signon.PendingTokenService,
	config AuthConfig,
	opts ...AuthOption,
) *Authenticator {
	cfg := config
	if cfg.StateTTL == 0 {
		cfg.StateTTL = DefaultStateTTL
	}

	a := &Authenticator{
		providers: make(map[string]Provider),
		users:     users,
		sessions:  sessions,
		pending:   pending,
		config:    cfg,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	if a.stateManager == nil {
		a.stateManager = NewEncryptedStateManager(
			cfg.StateEncryptionKey,
			cfg.StateHMACKey,
			cfg.StateTTL,
		)
	}

	if a.logger == nil {
		a.logger = signon.DefaultLogger()
	}

	return a
}

// WithProvider registers a provider.
func WithProvider(provider Provider) AuthOption {
	return func(a *Authenticator) {
		if provider == nil {
			return
		}
		a.providers[provider.Name()] = provider
	}
}

// WithStateManager sets a custom state manager.
func WithStateManager(sm StateManager) AuthOption {
	return func(a *Authenticator) {
		a.stateManager = sm
	}
}

// WithLogger sets the logger.
func WithLogger(logger signon.Logger) AuthOption {
	return func(a *Authenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// BeginAuth starts the flow for a provider.
func (a *Authenticator) BeginAuth(
	ctx context.Context,
	providerName string,
	opts ...BeginAuthOption,
) (*AuthRedirect, error) {
	provider, ok := a.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerName)
	}

	if a.stateManager == nil {
		return nil, ErrInvalidState
	}

	cfg := &beginAuthConfig{
		redirectURL: a.config.DefaultRedirectURL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	codeVerifier, err := generateCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}
	codeChallenge := computeCodeChallenge(codeVerifier)

	state := &State{
		Nonce:        generateNonce(),
		Provider:     providerName,
		CodeVerifier: codeVerifier,
		RedirectURL:  cfg.redirectURL,
		IssuedAt:     time.Now().Unix(),
		ExpiresAt:    time.Now().Add(a.config.StateTTL).Unix(),
	}

	stateToken, err := a.stateManager.Encode(state)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}

	authURL := provider.AuthCodeURL(stateToken, WithPKCE(codeChallenge, "S256"))

	return &AuthRedirect{
		URL:      authURL,
		State:    stateToken,
		Provider: providerName,
	}, nil
}

// CompleteAuth finishes the flow after callback.
func (a *Authenticator) CompleteAuth(
	ctx context.Context,
	providerName string,
	code string,
	stateToken string,
) (*AuthResult, error) {
	if a.stateManager == nil {
		return nil, ErrInvalidState
	}

	state, err := a.stateManager.Decode(stateToken)
	if err != nil {
		if errors.Is(err, ErrStateExpired) {
			return nil, ErrStateExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	if state.Provider != providerName {
		return nil, fmt.Errorf("%w: provider mismatch", ErrInvalidState)
	}

	if time.Now().Unix() > state.ExpiresAt {
		return nil, ErrStateExpired
	}

	provider, ok := a.providers[providerName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerName)
	}

	token, err := provider.Exchange(ctx, code, WithCodeVerifier(state.CodeVerifier))
	if err != nil {
		return nil, wrapProviderError(ErrTokenExchangeFailed, providerName, "exchange", err)
	}

	profile, err := provider.UserInfo(ctx, token)
	if err != nil {
		return nil, wrapProviderError(ErrUserInfoFailed, providerName, "user_info", err)
	}

	if a.config.RequireEmailVerified && !profile.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	identity := profile.Identity()
	identity.Provider = providerName

	user, err := a.users.GetByProviderID(ctx, identity.Provider, identity.ExternalID)
	if err != nil {
		if !signon.IsIdentityNotFound(err) {
			return nil, err
		}

		pendingToken, perr := a.pending.Issue(identity)
		if perr != nil {
			return nil, perr
		}

		a.logger.Info("unknown %s identity, continuing to registration", providerName)

		return &AuthResult{
			Provider:          providerName,
			Profile:           profile,
			PendingToken:      pendingToken,
			NeedsRegistration: true,
			RedirectURL:       state.RedirectURL,
		}, nil
	}

	session, err := a.sessions.Issue(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session: %w", err)
	}

	return &AuthResult{
		User:        user,
		Session:     session,
		Provider:    providerName,
		Profile:     profile,
		RedirectURL: state.RedirectURL,
	}, nil
}

// ListProviders returns all registered providers.
func (a *Authenticator) ListProviders() []ProviderInfo {
	var providers []ProviderInfo
	for name, p := range a.providers {
		providers = append(providers, ProviderInfo{
			Name:    name,
			AuthURL: p.AuthCodeURL(""),
		})
	}
	return providers
}

// ProviderInfo describes an available provider.
type ProviderInfo struct {
	Name    string
	AuthURL string
}

// AuthRedirect contains the authorization URL for redirecting users.
type AuthRedirect struct {
	URL      string
	State    string
	Provider string
}

// AuthResult is the callback outcome. Exactly one of Session or
// PendingToken is set.
type AuthResult struct {
	User              *signon.User
	Session           *signon.SessionData
	PendingToken      string
	NeedsRegistration bool
	Provider          string
	Profile           *Profile
	RedirectURL       string
}

// BeginAuthOption configures the auth initiation.
type BeginAuthOption func(*beginAuthConfig)

type beginAuthConfig struct {
	redirectURL string
}

// WithRedirectURL sets the post-auth redirect URL.
func WithRedirectURL(url string) BeginAuthOption {
	return func(c *beginAuthConfig) {
		c.redirectURL = url
	}
}
