// Package handshake implements the challenge/response exchange that binds
// a client's certificate to a session.
//
// The server sends a Hello carrying its certificate and a fresh random
// challenge. The client answers with its own Hello and a compact EdDSA JWS
// over SigningInput(serverHello, clientHello), made with the private key
// matching its certificate. A verified answer yields the client's
// identity.Identity; any failure yields ErrAuthenticationFailed and
// nothing else.
//
// Every Protocol value serves one session. Each InitServerHello starts a
// new attempt and Authenticate consumes it, so a challenge is never
// accepted twice.
//
// Example (client side):
//
//	c, _ := handshake.NewClient(priv)
//	msg, err := c.Respond(serverHello)
//	if err != nil { ... }
//	// send msg as AUTHENTICATION_DATA
package handshake
