// Package auth authenticates bearer tokens on the HTTP API.
//
// Two token sources are supported and can be combined with Chain:
//
//   - TokenIssuer mints short-lived EdDSA JWTs for clients that completed
//     the certificate handshake on the persistent channel (see the
//     authToken resource), and validates them.
//   - NewFromDiscovery validates RFC 9068 access tokens from an external
//     OpenID Connect issuer, mapping the token subject onto an identity.
//
// Example:
//
//	issuer, _ := auth.NewTokenIssuer(serverKey, auth.WithTokenTTL(time.Hour))
//	authn := auth.Chain(issuer)
//	ui, err := authn.CheckAuthentication(ctx, bearer)
//	if errors.Is(err, auth.ErrUnauthorized) { /* 401 */ }
//	id := ui.Identity()
package auth
