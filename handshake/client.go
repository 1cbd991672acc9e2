package handshake

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/ggoodman/webadmin-go/identity"
)

// ErrUnexpectedServer is returned by Client.Respond when the server
// certificate is not the one the client was pinned to.
var ErrUnexpectedServer = errors.New("handshake: unexpected server certificate")

// Client is the client side of the handshake.
type Client struct {
	key      ed25519.PrivateKey
	cert     identity.Certificate
	expected identity.Identity
	rand     io.Reader
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithExpectedServer pins the server identity the client will answer.
func WithExpectedServer(id identity.Identity) ClientOption {
	return func(c *Client) { c.expected = id }
}

// WithClientRandom overrides the source of the client random.
func WithClientRandom(r io.Reader) ClientOption {
	return func(c *Client) { c.rand = r }
}

// NewClient builds a Client for the given Ed25519 key.
func NewClient(key ed25519.PrivateKey, opts ...ClientOption) (*Client, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("handshake: bad client key size %d", len(key))
	}
	cert, err := identity.NewCertificate(key.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	c := &Client{key: key, cert: cert, rand: rand.Reader}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Identity returns the identity the server will assign after a successful
// handshake.
func (c *Client) Identity() identity.Identity { return c.cert.Identity() }

// Certificate returns the client certificate.
func (c *Client) Certificate() identity.Certificate { return c.cert }

// Respond builds the authentication message answering serverHello.
func (c *Client) Respond(serverHello Hello) (ClientAuthenticationMessage, error) {
	if serverHello.Certificate == nil {
		return ClientAuthenticationMessage{}, fmt.Errorf("%w: missing", ErrUnexpectedServer)
	}
	if _, err := serverHello.Certificate.Verify(); err != nil {
		return ClientAuthenticationMessage{}, fmt.Errorf("%w: %v", ErrUnexpectedServer, err)
	}
	if !c.expected.IsUnknown() && serverHello.Certificate.Identity() != c.expected {
		return ClientAuthenticationMessage{}, ErrUnexpectedServer
	}

	random := make([]byte, RandomSize)
	if _, err := io.ReadFull(c.rand, random); err != nil {
		return ClientAuthenticationMessage{}, fmt.Errorf("handshake: read client random: %w", err)
	}
	cert := c.cert
	hello := Hello{Random: random, Certificate: &cert, Timestamp: time.Now().UnixMilli()}

	sig, err := Sign(c.key, SigningInput(serverHello, hello))
	if err != nil {
		return ClientAuthenticationMessage{}, err
	}
	return ClientAuthenticationMessage{ClientHello: &hello, Signature: sig}, nil
}

// Sign produces a compact EdDSA JWS over payload.
func Sign(key ed25519.PrivateKey, payload []byte) (string, error) {
	opts := (&jose.SignerOptions{}).WithType("webadmin-auth")
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.EdDSA, Key: key}, opts)
	if err != nil {
		return "", fmt.Errorf("failed to create signer: %w", err)
	}
	jws, err := signer.Sign(payload)
	if err != nil {
		return "", fmt.Errorf("failed to sign payload: %w", err)
	}
	compact, err := jws.CompactSerialize()
	if err != nil {
		return "", fmt.Errorf("failed to serialize jws: %w", err)
	}
	return compact, nil
}
