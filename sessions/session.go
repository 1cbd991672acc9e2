package sessions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/ggoodman/webadmin-go/action"
	"github.com/ggoodman/webadmin-go/handshake"
	"github.com/ggoodman/webadmin-go/identity"
)

// State is the authentication state of a Session.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticated   State = "authenticated"
)

// Handshake is the server side of the authentication exchange a Session
// drives. *handshake.Protocol implements it.
type Handshake interface {
	InitServerHello() (handshake.Hello, error)
	Authenticate(clientHello handshake.Hello, signature string) (identity.Identity, error)
}

var _ Handshake = (*handshake.Protocol)(nil)

var (
	resultAlreadyAuthenticated = action.NewMessage(action.StatusUnauthorized, "Already authenticated")
	resultAuthenticationFailed = action.NewMessage(action.StatusUnauthorized, "Authentication failed")
	resultInvalidData          = action.NewMessage(action.StatusBadRequest, "Invalid authentication data")
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger. Defaults to discard.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithID overrides the generated session id.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// Session is the per-connection authentication state machine. It starts
// unauthenticated and moves to authenticated exactly once, when the
// handshake succeeds; it never moves back.
type Session struct {
	id  string
	hs  Handshake
	log *slog.Logger

	mu       sync.RWMutex
	identity identity.Identity
}

// New returns an unauthenticated Session driving hs.
func New(hs Handshake, opts ...Option) *Session {
	s := &Session{
		id:  uuid.NewString(),
		hs:  hs,
		log: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// IsAuthenticated reports whether the handshake has completed.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.identity.IsUnknown()
}

// Identity returns the client identity, or identity.Unknown before
// authentication.
func (s *Session) Identity() identity.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// State returns the current state.
func (s *Session) State() State {
	if s.IsAuthenticated() {
		return StateAuthenticated
	}
	return StateUnauthenticated
}

// InitAuthentication starts a handshake attempt. The OK result carries the
// server hello.
func (s *Session) InitAuthentication(ctx context.Context) action.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.identity.IsUnknown() {
		s.log.InfoContext(ctx, "session.auth.init.rejected", slog.String("reason", "already authenticated"))
		return resultAlreadyAuthenticated
	}
	hello, err := s.hs.InitServerHello()
	if err != nil {
		s.log.ErrorContext(ctx, "session.auth.init.fail", slog.String("err", err.Error()))
		return action.InternalError
	}
	s.log.DebugContext(ctx, "session.auth.init.ok")
	return action.Payload(hello)
}

// FinishAuthentication completes the pending attempt with the client's
// handshake.ClientAuthenticationMessage, given as raw JSON.
func (s *Session) FinishAuthentication(ctx context.Context, data json.RawMessage) action.Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.identity.IsUnknown() {
		s.log.InfoContext(ctx, "session.auth.finish.rejected", slog.String("reason", "already authenticated"))
		return resultAlreadyAuthenticated
	}

	msg, err := decodeAuthenticationMessage(data)
	if err != nil {
		s.log.InfoContext(ctx, "session.auth.finish.invalid", slog.String("err", err.Error()))
		return resultInvalidData
	}

	id, err := s.hs.Authenticate(*msg.ClientHello, msg.Signature)
	if err != nil {
		s.log.InfoContext(ctx, "session.auth.finish.fail", slog.String("err", err.Error()))
		return resultAuthenticationFailed
	}
	s.identity = id
	s.log.InfoContext(ctx, "session.auth.finish.ok", slog.String("identity", id.String()))
	return action.OK()
}

func decodeAuthenticationMessage(data json.RawMessage) (*handshake.ClientAuthenticationMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errors.New("authentication data must be a JSON object")
	}
	var msg handshake.ClientAuthenticationMessage
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return nil, err
	}
	switch {
	case msg.ClientHello == nil:
		return nil, errors.New("clientHello missing")
	case msg.ClientHello.Certificate == nil:
		return nil, errors.New("clientHello.certificate missing")
	case msg.Signature == "":
		return nil, errors.New("signature missing")
	}
	return &msg, nil
}
