// Package identity defines client identities and the Ed25519 JWK
// certificates they are derived from.
package identity
