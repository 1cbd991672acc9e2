package auth

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ggoodman/webadmin-go/identity"
)

// DefaultTokenAudience is both the issuer and the audience of session tokens.
const DefaultTokenAudience = "webadmin"

// Token is a minted bearer token.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TokenOption configures a TokenIssuer.
type TokenOption func(*TokenIssuer)

// WithTokenTTL sets the lifetime of issued tokens. Defaults to one hour.
func WithTokenTTL(d time.Duration) TokenOption {
	return func(ti *TokenIssuer) { ti.ttl = d }
}

// WithTokenAudience overrides the issuer/audience value.
func WithTokenAudience(aud string) TokenOption {
	return func(ti *TokenIssuer) { ti.audience = aud }
}

// WithTokenClock overrides the clock used for iat/exp.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(ti *TokenIssuer) { ti.now = now }
}

// TokenIssuer mints EdDSA JWTs for identities that completed the
// handshake, and validates them as an Authenticator.
type TokenIssuer struct {
	key      ed25519.PrivateKey
	pub      ed25519.PublicKey
	audience string
	ttl      time.Duration
	now      func() time.Time
}

var _ Authenticator = (*TokenIssuer)(nil)

// NewTokenIssuer builds an issuer signing with key.
func NewTokenIssuer(key ed25519.PrivateKey, opts ...TokenOption) (*TokenIssuer, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("auth: bad token key size %d", len(key))
	}
	ti := &TokenIssuer{
		key:      key,
		pub:      key.Public().(ed25519.PublicKey),
		audience: DefaultTokenAudience,
		ttl:      time.Hour,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(ti)
	}
	if ti.ttl <= 0 {
		return nil, errors.New("auth: token ttl must be positive")
	}
	return ti, nil
}

// Issue mints a token for id.
func (ti *TokenIssuer) Issue(id identity.Identity) (Token, error) {
	if id.IsUnknown() {
		return Token{}, errors.New("auth: cannot issue token for unknown identity")
	}
	now := ti.now()
	exp := now.Add(ti.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    ti.audience,
		Subject:   id.String(),
		Audience:  jwt.ClaimStrings{ti.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	s, err := tok.SignedString(ti.key)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Value: s, ExpiresAt: exp.UTC().Truncate(time.Second)}, nil
}

func (ti *TokenIssuer) CheckAuthentication(ctx context.Context, tok string) (UserInfo, error) {
	if tok == "" {
		return nil, fmt.Errorf("%w: empty token", ErrUnauthorized)
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(ti.audience),
		jwt.WithAudience(ti.audience),
		jwt.WithTimeFunc(ti.now),
	)
	var claims jwt.RegisteredClaims
	_, err := parser.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		return ti.pub, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: token parse/verify failed: %v", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrUnauthorized)
	}
	return tokenUserInfo{claims: claims}, nil
}

type tokenUserInfo struct{ claims jwt.RegisteredClaims }

func (u tokenUserInfo) Identity() identity.Identity { return identity.Identity(u.claims.Subject) }

func (u tokenUserInfo) Claims(ref any) error {
	b, err := json.Marshal(u.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, ref)
}
