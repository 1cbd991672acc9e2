// Package authtest provides authenticators for tests.
package authtest

import (
	"context"
	"fmt"

	"github.com/ggoodman/webadmin-go/auth"
	"github.com/ggoodman/webadmin-go/identity"
)

// Static accepts a fixed set of tokens, each mapped to an identity.
type Static map[string]identity.Identity

func (s Static) CheckAuthentication(ctx context.Context, tok string) (auth.UserInfo, error) {
	id, ok := s[tok]
	if !ok {
		return nil, fmt.Errorf("%w: unknown token", auth.ErrUnauthorized)
	}
	return userInfo(id), nil
}

type userInfo identity.Identity

func (u userInfo) Identity() identity.Identity { return identity.Identity(u) }
func (u userInfo) Claims(ref any) error        { return nil }
