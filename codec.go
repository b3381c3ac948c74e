package signon

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// SignedCodec is a generic HMAC-signed token codec. It knows nothing
// about auth semantics: callers stamp their own claims, the codec only
// guarantees tamper evidence and expiry enforcement.
type SignedCodec[T jwt.Claims] struct {
	signingKey []byte
	issuer     string
	audience   jwt.ClaimStrings
	newClaims  func() T
	logger     Logger
}

// NewSignedCodec creates a codec for one claims type. newClaims must
// return a fresh, addressable claims value for the parser to fill.
func NewSignedCodec[T jwt.Claims](signingKey []byte, issuer string, audience jwt.ClaimStrings, newClaims func() T, logger Logger) *SignedCodec[T] {
	if logger == nil {
		logger = defLogger{}
	}
	return &SignedCodec[T]{
		signingKey: signingKey,
		issuer:     issuer,
		audience:   audience,
		newClaims:  newClaims,
		logger:     logger,
	}
}

// Issuer returns the configured issuer claim.
func (c *SignedCodec[T]) Issuer() string {
	return c.issuer
}

// Audience returns a copy of the configured audience claim.
func (c *SignedCodec[T]) Audience() jwt.ClaimStrings {
	if len(c.audience) == 0 {
		return nil
	}
	aud := make(jwt.ClaimStrings, len(c.audience))
	copy(aud, c.audience)
	return aud
}

// Encode signs the claims using the configured key. The result is an
// opaque string safe to embed in a URL query parameter or cookie.
func (c *SignedCodec[T]) Encode(claims T) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(c.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign token")
	}

	return signed, nil
}

// Decode parses and verifies a token. It fails with ErrTokenExpired for
// well-formed tokens past their expiry and ErrTokenInvalid for anything
// else: bad signature, malformed structure, unexpected algorithm.
func (c *SignedCodec[T]) Decode(raw string) (T, error) {
	var zero T

	parserOptions := make([]jwt.ParserOption, 0, 2)
	if c.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(c.issuer))
	}
	if len(c.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(c.audience...))
	}

	token, err := jwt.ParseWithClaims(raw, c.newClaims(), func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			c.logger.Error("SignedCodec decode rejected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return zero, ErrTokenExpired
		}
		return zero, errors.Wrap(err, ErrTokenInvalid.Category, ErrTokenInvalid.Message).
			WithTextCode(ErrTokenInvalid.TextCode).
			WithCode(errors.CodeUnauthorized)
	}

	claims, ok := token.Claims.(T)
	if !ok || !token.Valid {
		c.logger.Error("SignedCodec decode could not map claims")
		return zero, ErrTokenInvalid
	}

	return claims, nil
}
