package auth

import (
	"context"
	"errors"

	"github.com/ggoodman/webadmin-go/identity"
)

// ErrUnauthorized indicates authentication failed or no valid credentials were supplied.
var ErrUnauthorized = errors.New("unauthorized")

// UserInfo represents an authenticated principal.
// Implementations should be lightweight and safe for concurrent use.
type UserInfo interface {
	// Identity returns the identity the token was issued to.
	Identity() identity.Identity
	// Claims unmarshalls the token's claims into the provided struct reference.
	Claims(ref any) error
}

// Authenticator validates bearer tokens and returns associated user info.
// It should return an error wrapping ErrUnauthorized for invalid credentials.
type Authenticator interface {
	CheckAuthentication(ctx context.Context, tok string) (UserInfo, error)
}

// Chain returns an Authenticator trying each of authenticators in order.
// The first success wins; if all fail the errors are joined.
func Chain(authenticators ...Authenticator) Authenticator {
	return chain(authenticators)
}

type chain []Authenticator

func (c chain) CheckAuthentication(ctx context.Context, tok string) (UserInfo, error) {
	if len(c) == 0 {
		return nil, ErrUnauthorized
	}
	errs := make([]error, 0, len(c))
	for _, a := range c {
		ui, err := a.CheckAuthentication(ctx, tok)
		if err == nil {
			return ui, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(append([]error{ErrUnauthorized}, errs...)...)
}
