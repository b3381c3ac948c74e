package signon

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
)

// DefaultTokenExpiration is the bearer token lifetime, in hours, when
// the configuration leaves it unset.
const DefaultTokenExpiration = 24

// AccessClaims are the bearer token claims minted for a registered user.
type AccessClaims struct {
	jwt.RegisteredClaims
	UID      string `json:"uid,omitempty"`
	PublicID string `json:"pub,omitempty"`
	Username string `json:"username,omitempty"`
}

// TokenService mints and validates bearer tokens for registered users.
type TokenService interface {
	Generate(user *User) (string, error)
	Validate(raw string) (*AccessClaims, error)
}

type tokenService struct {
	codec           *SignedCodec[*AccessClaims]
	tokenExpiration int
}

// NewTokenService creates a TokenService from process configuration.
// Token expiration is expressed in hours.
func NewTokenService(cfg Config, logger Logger) TokenService {
	expiration := cfg.GetTokenExpiration()
	if expiration <= 0 {
		expiration = DefaultTokenExpiration
	}

	codec := NewSignedCodec(
		[]byte(cfg.GetSigningKey()),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		func() *AccessClaims { return &AccessClaims{} },
		logger,
	)

	return &tokenService{
		codec:           codec,
		tokenExpiration: expiration,
	}
}

// Generate mints a bearer token for the user. The public identifier is
// derived deterministically from the identity anchor so it survives
// database migrations that reassign primary keys.
func (ts *tokenService) Generate(user *User) (string, error) {
	if user == nil {
		return "", errors.New("user must not be nil", errors.CategoryInternal)
	}

	publicID, err := hashid.NewUUID(user.Provider + ":" + user.ExternalID)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to derive public id")
	}

	now := time.Now()
	claims := &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.codec.Issuer(),
			Subject:   user.ID.String(),
			Audience:  ts.codec.Audience(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ts.tokenExpiration) * time.Hour)),
		},
		UID:      user.ID.String(),
		PublicID: publicID.String(),
		Username: user.Username,
	}

	return ts.codec.Encode(claims)
}

// Validate parses and verifies a bearer token string.
func (ts *tokenService) Validate(raw string) (*AccessClaims, error) {
	return ts.codec.Decode(raw)
}
