package handshake

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/ggoodman/webadmin-go/identity"
)

// RandomSize is the length in bytes of both the server challenge and the
// client random.
const RandomSize = 32

const signingDomain = "webadmin-handshake-v1"

// ErrAuthenticationFailed is returned for every handshake failure. The
// reason is logged, never returned.
var ErrAuthenticationFailed = errors.New("handshake: authentication failed")

// Hello is the greeting each side contributes to a handshake.
type Hello struct {
	Random      []byte                `json:"random"`
	Certificate *identity.Certificate `json:"certificate"`
	Timestamp   int64                 `json:"timestamp"`
}

// ClientAuthenticationMessage is the client's answer to a server hello.
type ClientAuthenticationMessage struct {
	ClientHello *Hello `json:"clientHello"`
	Signature   string `json:"signature"`
}

// SigningInput returns the exact bytes a client signs to prove possession
// of its key. It binds the server challenge and both certificate ids.
func SigningInput(server, client Hello) []byte {
	var buf bytes.Buffer
	buf.WriteString(signingDomain)
	buf.WriteByte(0)
	buf.Write(server.Random)
	if server.Certificate != nil {
		buf.WriteString(server.Certificate.ID)
	}
	buf.WriteByte(0)
	buf.Write(client.Random)
	if client.Certificate != nil {
		buf.WriteString(client.Certificate.ID)
	}
	return buf.Bytes()
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for failure diagnostics. Defaults to discard.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithRandom overrides the source of challenge bytes.
func WithRandom(r io.Reader) Option {
	return func(s *Server) { s.rand = r }
}

// WithClock overrides the clock used to stamp server hellos.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// Server holds the long-lived server certificate and mints one Protocol
// per session.
type Server struct {
	cert identity.Certificate
	log  *slog.Logger
	rand io.Reader
	now  func() time.Time
}

// NewServer builds a Server around the server's Ed25519 key.
func NewServer(key ed25519.PrivateKey, opts ...Option) (*Server, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("handshake: bad server key size %d", len(key))
	}
	cert, err := identity.NewCertificate(key.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	s := &Server{
		cert: cert,
		log:  slog.New(slog.DiscardHandler),
		rand: rand.Reader,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Certificate returns the server certificate advertised in every hello.
func (s *Server) Certificate() identity.Certificate { return s.cert }

// NewProtocol returns a fresh protocol instance with no pending challenge.
func (s *Server) NewProtocol() *Protocol {
	return &Protocol{srv: s}
}

// Protocol is the server side of a single client's handshake. Each call to
// InitServerHello starts a new attempt; Authenticate consumes it.
type Protocol struct {
	srv *Server

	mu      sync.Mutex
	pending *Hello
}

// InitServerHello generates a fresh challenge, remembers it and returns
// the hello to send to the client. Any earlier attempt is invalidated.
func (p *Protocol) InitServerHello() (Hello, error) {
	random := make([]byte, RandomSize)
	if _, err := io.ReadFull(p.srv.rand, random); err != nil {
		return Hello{}, fmt.Errorf("handshake: read challenge: %w", err)
	}
	cert := p.srv.cert
	hello := Hello{Random: random, Certificate: &cert, Timestamp: p.srv.now().UnixMilli()}

	p.mu.Lock()
	p.pending = &hello
	p.mu.Unlock()

	return copyHello(hello), nil
}

// Authenticate verifies the client's proof against the pending challenge
// and returns the client's identity. The pending challenge is consumed
// whether or not verification succeeds.
func (p *Protocol) Authenticate(clientHello Hello, signature string) (identity.Identity, error) {
	p.mu.Lock()
	server := p.pending
	p.pending = nil
	p.mu.Unlock()

	id, reason := p.verify(server, clientHello, signature)
	if reason != "" {
		p.srv.log.Debug("handshake.authenticate.fail", slog.String("reason", reason))
		return identity.Unknown, ErrAuthenticationFailed
	}
	return id, nil
}

func (p *Protocol) verify(server *Hello, client Hello, signature string) (identity.Identity, string) {
	if server == nil {
		return identity.Unknown, "no pending challenge"
	}
	if len(client.Random) != RandomSize {
		return identity.Unknown, "client random has wrong size"
	}
	if client.Certificate == nil {
		return identity.Unknown, "client certificate missing"
	}
	pub, err := client.Certificate.Verify()
	if err != nil {
		return identity.Unknown, err.Error()
	}
	if signature == "" {
		return identity.Unknown, "signature missing"
	}
	jws, err := jose.ParseSigned(signature, []jose.SignatureAlgorithm{jose.EdDSA})
	if err != nil {
		return identity.Unknown, "parse signature: " + err.Error()
	}
	if len(jws.Signatures) != 1 {
		return identity.Unknown, fmt.Sprintf("unexpected signatures: %d", len(jws.Signatures))
	}
	payload, err := jws.Verify(pub)
	if err != nil {
		return identity.Unknown, "signature verification failed"
	}
	want := SigningInput(*server, client)
	if subtle.ConstantTimeCompare(payload, want) != 1 {
		return identity.Unknown, "signed content does not match challenge"
	}
	return client.Certificate.Identity(), ""
}

func copyHello(h Hello) Hello {
	out := h
	out.Random = bytes.Clone(h.Random)
	if h.Certificate != nil {
		c := *h.Certificate
		out.Certificate = &c
	}
	return out
}
