package identity

import (
	"crypto"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"
)

// Unknown is the zero Identity carried by unauthenticated sessions.
const Unknown Identity = ""

// Identity uniquely identifies a client. It is the id of the certificate
// the client proved ownership of during the handshake.
type Identity string

// IsUnknown reports whether id is Unknown.
func (id Identity) IsUnknown() bool { return id == Unknown }

func (id Identity) String() string { return string(id) }

// ErrMalformedCertificate indicates a certificate whose key material is
// unusable or whose id does not match its key.
var ErrMalformedCertificate = errors.New("identity: malformed certificate")

// Certificate is the public half of a client or server key pair together
// with its id. The id is the RFC 7638 SHA-256 thumbprint of the public key,
// base64url encoded without padding.
type Certificate struct {
	ID        string          `json:"id"`
	PublicKey jose.JSONWebKey `json:"publicKey"`
}

// NewCertificate builds the certificate for an Ed25519 public key.
func NewCertificate(pub ed25519.PublicKey) (Certificate, error) {
	if len(pub) != ed25519.PublicKeySize {
		return Certificate{}, fmt.Errorf("%w: bad ed25519 key size %d", ErrMalformedCertificate, len(pub))
	}
	jwk := jose.JSONWebKey{Key: pub, Algorithm: string(jose.EdDSA), Use: "sig"}
	id, err := Thumbprint(jwk)
	if err != nil {
		return Certificate{}, err
	}
	jwk.KeyID = id
	return Certificate{ID: id, PublicKey: jwk}, nil
}

// Thumbprint computes the certificate id for a public JWK.
func Thumbprint(jwk jose.JSONWebKey) (string, error) {
	tp, err := jwk.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("%w: thumbprint: %v", ErrMalformedCertificate, err)
	}
	return base64.RawURLEncoding.EncodeToString(tp), nil
}

// Identity returns the identity the certificate stands for.
func (c Certificate) Identity() Identity { return Identity(c.ID) }

// Verify checks that the certificate holds a public Ed25519 key and that
// its id is the key's thumbprint. It returns the usable public key.
func (c Certificate) Verify() (ed25519.PublicKey, error) {
	if c.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrMalformedCertificate)
	}
	if c.PublicKey.Key == nil {
		return nil, fmt.Errorf("%w: missing key", ErrMalformedCertificate)
	}
	if !c.PublicKey.IsPublic() {
		return nil, fmt.Errorf("%w: key is not public", ErrMalformedCertificate)
	}
	pub, ok := c.PublicKey.Key.(ed25519.PublicKey)
	if !ok || len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: key is not ed25519", ErrMalformedCertificate)
	}
	id, err := Thumbprint(c.PublicKey)
	if err != nil {
		return nil, err
	}
	if id != c.ID {
		return nil, fmt.Errorf("%w: id does not match key", ErrMalformedCertificate)
	}
	return pub, nil
}
