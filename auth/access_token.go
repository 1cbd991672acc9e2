package auth

import (
	"context"
	"errors"
	"time"

	"github.com/ggoodman/webadmin-go/identity"
	"github.com/ggoodman/webadmin-go/internal/jwtauth"
)

// AccessTokenAuthOption configures optional aspects of the RFC 9068 access
// token authenticator (algorithms, leeway, extra audiences).
type AccessTokenAuthOption func(*jwtauth.Config)

// WithAllowedAlgs restricts allowed JWS algorithms. "none" is never allowed.
func WithAllowedAlgs(algs ...string) AccessTokenAuthOption {
	return func(c *jwtauth.Config) {
		c.AllowedAlgs = append([]string(nil), algs...)
	}
}

// WithLeeway sets clock skew tolerance for time-based claims.
func WithLeeway(d time.Duration) AccessTokenAuthOption {
	return func(c *jwtauth.Config) { c.Leeway = d }
}

// WithAdditionalAudiences accepts further "aud" values beside the primary one.
func WithAdditionalAudiences(auds ...string) AccessTokenAuthOption {
	return func(c *jwtauth.Config) { c.ExpectedAudiences = append(c.ExpectedAudiences, auds...) }
}

// WithoutTypCheck accepts tokens whose typ header is not at+jwt.
func WithoutTypCheck() AccessTokenAuthOption {
	return func(c *jwtauth.Config) { c.RequireATType = false }
}

// NewFromDiscovery returns an Authenticator that verifies RFC 9068 JWT access
// tokens from an OpenID Connect issuer. The token subject becomes the
// caller's identity, so operators can list their IdP subjects in the
// admin set.
func NewFromDiscovery(ctx context.Context, issuer string, audience string, opts ...AccessTokenAuthOption) (Authenticator, error) {
	if audience == "" {
		return nil, errors.New("audience is required")
	}
	cfg := jwtauth.DefaultConfig()
	cfg.Issuer = issuer
	cfg.ExpectedAudiences = []string{audience}
	for _, opt := range opts {
		opt(cfg)
	}
	v, err := jwtauth.NewFromDiscovery(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &accessTokenAuthenticator{v: v}, nil
}

type accessTokenAuthenticator struct {
	v *jwtauth.Verifier
}

func (a *accessTokenAuthenticator) CheckAuthentication(ctx context.Context, tok string) (UserInfo, error) {
	claims, err := a.v.Verify(ctx, tok)
	if err != nil {
		return nil, errors.Join(ErrUnauthorized, err)
	}
	return accessTokenUserInfo{c: claims}, nil
}

type accessTokenUserInfo struct{ c *jwtauth.Claims }

func (u accessTokenUserInfo) Identity() identity.Identity { return identity.Identity(u.c.Subject) }
func (u accessTokenUserInfo) Claims(ref any) error        { return u.c.Decode(ref) }
