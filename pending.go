package signon

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultPendingWindow bounds how long a pending-registration token is
// honored. Rotating the signing key invalidates outstanding tokens by
// design.
const DefaultPendingWindow = 15 * time.Minute

// PendingRegistrationClaims carry an unverified external identity across
// the registration form submission. They only ever live inside a signed
// token, never server side.
type PendingRegistrationClaims struct {
	jwt.RegisteredClaims
	Provider   string `json:"prv,omitempty"`
	ExternalID string `json:"eid,omitempty"`
	Email      string `json:"eml,omitempty"`
}

// Identity returns the identity triple carried by the claims.
func (c *PendingRegistrationClaims) Identity() ExternalIdentity {
	return ExternalIdentity{
		Provider:   c.Provider,
		ExternalID: c.ExternalID,
		Email:      c.Email,
	}
}

// PendingTokenService issues and verifies pending-registration tokens.
type PendingTokenService struct {
	codec  *SignedCodec[*PendingRegistrationClaims]
	window time.Duration
}

// NewPendingTokenService creates the service from process configuration.
func NewPendingTokenService(cfg Config, logger Logger) *PendingTokenService {
	window := cfg.GetPendingWindow()
	if window <= 0 {
		window = DefaultPendingWindow
	}

	codec := NewSignedCodec(
		[]byte(cfg.GetSigningKey()),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		func() *PendingRegistrationClaims { return &PendingRegistrationClaims{} },
		logger,
	)

	return &PendingTokenService{
		codec:  codec,
		window: window,
	}
}

// Window returns the configured token lifetime.
func (s *PendingTokenService) Window() time.Duration {
	return s.window
}

// Issue stamps issued-at and expiry onto the identity and signs it.
func (s *PendingTokenService) Issue(identity ExternalIdentity) (string, error) {
	now := time.Now()
	claims := &PendingRegistrationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.codec.Issuer(),
			Subject:   identity.ExternalID,
			Audience:  s.codec.Audience(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.window)),
		},
		Provider:   identity.Provider,
		ExternalID: identity.ExternalID,
		Email:      identity.Email,
	}

	return s.codec.Encode(claims)
}

// Verify decodes the token and re-raises the codec failure kinds
// unchanged. Callers must not proceed to account creation on either
// failure; the user restarts the provider flow.
func (s *PendingTokenService) Verify(raw string) (ExternalIdentity, error) {
	claims, err := s.codec.Decode(raw)
	if err != nil {
		return ExternalIdentity{}, err
	}

	if claims.Provider == "" || claims.ExternalID == "" {
		return ExternalIdentity{}, ErrTokenInvalid
	}

	return claims.Identity(), nil
}
