package authtoken_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/ggoodman/webadmin-go/action"
	"github.com/ggoodman/webadmin-go/admins"
	"github.com/ggoodman/webadmin-go/auth"
	"github.com/ggoodman/webadmin-go/resources"
	"github.com/ggoodman/webadmin-go/resources/authtoken"
)

func TestIssue(t *testing.T) {
	ctx := context.Background()
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	issuer, err := auth.NewTokenIssuer(key)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	r := resources.NewRouter(admins.NewStore(nil))
	r.Register(authtoken.Name, authtoken.New(issuer))

	res := r.Handle(ctx, resources.Path{"authToken"}, "POST", nil, resources.Anonymous)
	if res.Status() != action.StatusUnauthorized {
		t.Fatalf("anonymous: want UNAUTHORIZED got %v", res)
	}

	res = r.Handle(ctx, resources.Path{"authToken"}, "POST", nil, resources.Authenticated("alice"))
	if res.Status() != action.StatusOK {
		t.Fatalf("want OK got %v", res)
	}
	var tok auth.Token
	if err := res.DecodePayload(&tok); err != nil {
		t.Fatalf("decode: %v", err)
	}
	ui, err := issuer.CheckAuthentication(ctx, tok.Value)
	if err != nil {
		t.Fatalf("check issued token: %v", err)
	}
	if ui.Identity() != "alice" {
		t.Fatalf("want alice got %q", ui.Identity())
	}

	if res := r.Handle(ctx, resources.Path{"authToken"}, "GET", nil, resources.Authenticated("alice")); res.Status() != action.StatusActionNotAllowed {
		t.Fatalf("GET: want ACTION_NOT_ALLOWED got %v", res)
	}
}
