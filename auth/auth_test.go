package auth_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ggoodman/webadmin-go/auth"
	"github.com/ggoodman/webadmin-go/auth/authtest"
	"github.com/ggoodman/webadmin-go/identity"
	"github.com/ggoodman/webadmin-go/internal/jwtauth"
)

func newKey(t *testing.T) ed25519.PrivateKey {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return priv
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	ti, err := auth.NewTokenIssuer(newKey(t), auth.WithTokenTTL(time.Minute))
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	tok, err := ti.Issue("alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if tok.Value == "" {
		t.Fatalf("expected token value")
	}
	if d := time.Until(tok.ExpiresAt); d <= 0 || d > time.Minute {
		t.Fatalf("unexpected expiry %v", tok.ExpiresAt)
	}
	ui, err := ti.CheckAuthentication(context.Background(), tok.Value)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if ui.Identity() != "alice" {
		t.Fatalf("want alice got %q", ui.Identity())
	}
	var claims struct {
		Jti string   `json:"jti"`
		Aud []string `json:"aud"`
	}
	if err := ui.Claims(&claims); err != nil {
		t.Fatalf("claims: %v", err)
	}
	if claims.Jti == "" {
		t.Fatalf("expected jti")
	}
	if len(claims.Aud) != 1 || claims.Aud[0] != auth.DefaultTokenAudience {
		t.Fatalf("unexpected aud %v", claims.Aud)
	}
}

func TestTokenIssuer_Rejections(t *testing.T) {
	key := newKey(t)
	now := time.Now()
	ti, err := auth.NewTokenIssuer(key, auth.WithTokenTTL(time.Minute), auth.WithTokenClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	tok, err := ti.Issue("alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	later, _ := auth.NewTokenIssuer(key, auth.WithTokenClock(func() time.Time { return now.Add(2 * time.Minute) }))
	other, _ := auth.NewTokenIssuer(newKey(t))
	otherAud, _ := auth.NewTokenIssuer(key, auth.WithTokenAudience("elsewhere"), auth.WithTokenClock(func() time.Time { return now }))

	cases := []struct {
		name string
		ti   *auth.TokenIssuer
		tok  string
	}{
		{"empty", ti, ""},
		{"garbage", ti, "not-a-jwt"},
		{"expired", later, tok.Value},
		{"wrong key", other, tok.Value},
		{"wrong audience", otherAud, tok.Value},
		{"tampered", ti, tok.Value[:len(tok.Value)-2] + "AA"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.ti.CheckAuthentication(context.Background(), tc.tok)
			if !errors.Is(err, auth.ErrUnauthorized) {
				t.Fatalf("want ErrUnauthorized got %v", err)
			}
		})
	}
}

func TestTokenIssuer_Invalid(t *testing.T) {
	if _, err := auth.NewTokenIssuer(ed25519.PrivateKey("short")); err == nil {
		t.Fatalf("expected key size error")
	}
	if _, err := auth.NewTokenIssuer(newKey(t), auth.WithTokenTTL(0)); err == nil {
		t.Fatalf("expected ttl error")
	}
	ti, _ := auth.NewTokenIssuer(newKey(t))
	if _, err := ti.Issue(identity.Unknown); err == nil {
		t.Fatalf("expected error issuing for unknown identity")
	}
}

func TestChain(t *testing.T) {
	ti, _ := auth.NewTokenIssuer(newKey(t))
	tok, _ := ti.Issue("bob")
	static := authtest.Static{"static-token": "carol"}
	chain := auth.Chain(static, ti)

	ui, err := chain.CheckAuthentication(context.Background(), "static-token")
	if err != nil || ui.Identity() != "carol" {
		t.Fatalf("static: want carol got %v, %v", ui, err)
	}
	ui, err = chain.CheckAuthentication(context.Background(), tok.Value)
	if err != nil || ui.Identity() != "bob" {
		t.Fatalf("issued: want bob got %v, %v", ui, err)
	}
	_, err = chain.CheckAuthentication(context.Background(), "nope")
	if !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized got %v", err)
	}
	if !strings.Contains(err.Error(), "unknown token") {
		t.Fatalf("expected joined errors, got %v", err)
	}
	if _, err := auth.Chain().CheckAuthentication(context.Background(), "x"); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("empty chain: want ErrUnauthorized got %v", err)
	}
}

func TestNewFromDiscovery_RequiresAudience(t *testing.T) {
	if _, err := auth.NewFromDiscovery(context.Background(), "https://issuer.example", ""); err == nil {
		t.Fatalf("expected audience error")
	}
}

func TestAccessTokenOptions(t *testing.T) {
	tests := []struct {
		name  string
		opt   auth.AccessTokenAuthOption
		check func(*jwtauth.Config) bool
	}{
		{"algs", auth.WithAllowedAlgs("ES256"), func(c *jwtauth.Config) bool { return slices.Equal(c.AllowedAlgs, []string{"ES256"}) }},
		{"leeway", auth.WithLeeway(5 * time.Second), func(c *jwtauth.Config) bool { return c.Leeway == 5*time.Second }},
		{"audiences", auth.WithAdditionalAudiences("b", "c"), func(c *jwtauth.Config) bool {
			return slices.Equal(c.ExpectedAudiences, []string{"a", "b", "c"})
		}},
		{"typ", auth.WithoutTypCheck(), func(c *jwtauth.Config) bool { return !c.RequireATType }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := jwtauth.DefaultConfig()
			cfg.ExpectedAudiences = []string{"a"}
			tt.opt(cfg)
			if !tt.check(cfg) {
				t.Fatalf("option not applied: %+v", cfg)
			}
		})
	}
}

// newIssuer serves OIDC discovery and a JWKS for a fresh RSA key.
func newIssuer(t *testing.T) (string, *rsa.PrivateKey) {
	t.Helper()
	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	jwks, err := json.Marshal(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{Key: &pk.PublicKey, KeyID: "k1", Algorithm: "RS256", Use: "sig"}}})
	if err != nil {
		t.Fatalf("marshal jwks: %v", err)
	}
	var issuer string
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"issuer": issuer, "jwks_uri": issuer + "/keys"})
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(jwks)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	issuer = srv.URL
	return issuer, pk
}

func TestNewFromDiscovery_Options(t *testing.T) {
	issuer, pk := newIssuer(t)
	sign := func(typ, aud string) string {
		t.Helper()
		tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
			"iss": issuer,
			"sub": "operator-1",
			"aud": aud,
			"exp": time.Now().Add(time.Hour).Unix(),
			"iat": time.Now().Unix(),
		})
		tok.Header["kid"] = "k1"
		tok.Header["typ"] = typ
		s, err := tok.SignedString(pk)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	strict, err := auth.NewFromDiscovery(ctx, issuer, "webadmin")
	if err != nil {
		t.Fatalf("strict: %v", err)
	}
	relaxed, err := auth.NewFromDiscovery(ctx, issuer, "webadmin", auth.WithoutTypCheck(), auth.WithAdditionalAudiences("https://admin.example.com"))
	if err != nil {
		t.Fatalf("relaxed: %v", err)
	}

	tests := []struct {
		name      string
		tok       string
		strictOK  bool
		relaxedOK bool
	}{
		{"access token", sign("at+jwt", "webadmin"), true, true},
		{"plain jwt", sign("JWT", "webadmin"), false, true},
		{"extra audience", sign("at+jwt", "https://admin.example.com"), false, true},
		{"foreign audience", sign("at+jwt", "https://other.example.com"), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, c := range []struct {
				a  auth.Authenticator
				ok bool
			}{{strict, tt.strictOK}, {relaxed, tt.relaxedOK}} {
				info, err := c.a.CheckAuthentication(ctx, tt.tok)
				if !c.ok {
					if !errors.Is(err, auth.ErrUnauthorized) {
						t.Fatalf("want ErrUnauthorized got %v", err)
					}
					continue
				}
				if err != nil {
					t.Fatalf("check: %v", err)
				}
				if info.Identity() != "operator-1" {
					t.Fatalf("want identity operator-1 got %q", info.Identity())
				}
			}
		})
	}
}
