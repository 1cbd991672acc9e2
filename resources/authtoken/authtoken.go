// Package authtoken exposes bearer token minting as the "authToken"
// resource, so a client authenticated on the persistent channel can call
// the HTTP API as the same identity.
package authtoken

import (
	"context"

	"github.com/ggoodman/webadmin-go/auth"
	"github.com/ggoodman/webadmin-go/resources"
)

// Name is the resource path segment.
const Name = "authToken"

// New returns a resource whose POST issues a token for the caller.
func New(issuer *auth.TokenIssuer) *resources.SimpleResource {
	return resources.NewSimpleResource(
		resources.NewParameterlessMethod(resources.POST, resources.RequireAuth,
			func(ctx context.Context, c *resources.Call) (auth.Token, error) {
				return issuer.Issue(c.Identity())
			}, resources.WithDescription("Issue a bearer token for the HTTP API")),
	)
}
