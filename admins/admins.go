package admins

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/ggoodman/webadmin-go/identity"
)

// ErrNoBackend is returned by Save when the store has nowhere to persist.
var ErrNoBackend = errors.New("admins: no backend configured")

// Backend persists the admin set as a whole.
type Backend interface {
	// ReadAll returns the persisted set. Implementations return an error
	// when the set is missing or cannot be decoded.
	ReadAll(ctx context.Context) ([]identity.Identity, error)
	// WriteAll replaces the persisted set.
	WriteAll(ctx context.Context, ids []identity.Identity) error
}

// ChangeFunc is called with the sorted admin list after every change.
// It must not mutate the Store.
type ChangeFunc func(ctx context.Context, admins []identity.Identity)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to discard.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithAutoSave controls whether each mutation persists immediately.
// Defaults to true.
func WithAutoSave(v bool) Option {
	return func(s *Store) { s.autoSave = v }
}

// WithOnChange registers a change callback at construction time.
func WithOnChange(fn ChangeFunc) Option {
	return func(s *Store) { s.listeners = append(s.listeners, fn) }
}

// Store is the authoritative set of administrator identities. An empty
// set means anonymous admin access: every authenticated client is
// treated as an administrator until the first admin is recorded.
type Store struct {
	backend  Backend
	autoSave bool
	log      *slog.Logger

	// mu guards admins, listeners and serializes persistence.
	mu        sync.Mutex
	admins    map[identity.Identity]struct{}
	listeners []ChangeFunc

	// Callbacks run outside mu, one change at a time, in the order the
	// changes were applied. seq is the last issued change (guarded by mu);
	// delivered is the last one whose callbacks finished (guarded by
	// notifyMu).
	seq       uint64
	notifyMu  sync.Mutex
	notified  *sync.Cond
	delivered uint64
}

// NewStore builds an empty Store over backend. A nil backend yields a
// purely in-memory store whose Save fails with ErrNoBackend.
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		autoSave: true,
		log:      slog.New(slog.DiscardHandler),
		admins:   make(map[identity.Identity]struct{}),
	}
	s.notified = sync.NewCond(&s.notifyMu)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange registers an additional change callback.
func (s *Store) OnChange(fn ChangeFunc) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Load replaces the in-memory set with the persisted one. On failure the
// set becomes empty, which enables anonymous admin access; the failure is
// logged and returned for callers that want to act on it. Use Load once at
// startup and Reload for later refreshes.
func (s *Store) Load(ctx context.Context) error {
	return s.load(ctx, false)
}

// Reload replaces the in-memory set with the persisted one, like Load, but
// keeps the current set when the backend cannot be read. A half-written
// file therefore never reopens anonymous admin access.
func (s *Store) Reload(ctx context.Context) error {
	return s.load(ctx, true)
}

func (s *Store) load(ctx context.Context, keepOnFailure bool) error {
	// mu is held across the read so a concurrent mutation is either
	// visible to ReadAll or applied after the replace.
	s.mu.Lock()
	var (
		ids []identity.Identity
		err error
	)
	if s.backend == nil {
		err = ErrNoBackend
	} else {
		ids, err = s.backend.ReadAll(ctx)
	}

	if err != nil && keepOnFailure {
		count := len(s.admins)
		s.mu.Unlock()
		s.log.WarnContext(ctx, "admins.reload.fail", slog.String("err", err.Error()), slog.Int("count", count))
		return err
	}

	next := make(map[identity.Identity]struct{}, len(ids))
	if err == nil {
		for _, id := range ids {
			if !id.IsUnknown() {
				next[id] = struct{}{}
			}
		}
	}

	changed := !sameMembers(s.admins, next)
	s.admins = next
	snapshot := s.snapshotLocked()
	var (
		ticket    uint64
		listeners []ChangeFunc
	)
	if changed {
		ticket, listeners = s.issueLocked()
	}
	s.mu.Unlock()

	if err != nil {
		s.log.WarnContext(ctx, "admins.load.fail", slog.String("err", err.Error()))
	} else {
		s.log.InfoContext(ctx, "admins.load.ok", slog.Int("count", len(snapshot)))
	}
	if len(snapshot) == 0 {
		s.log.WarnContext(ctx, "admins.anonymous_access.enabled")
	}
	if changed {
		s.deliver(ctx, ticket, listeners, snapshot)
	}
	return err
}

// Save persists the current set. A failure is logged and returned; the
// in-memory set is unaffected.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked(ctx, s.snapshotLocked())
}

// IsAnonymousAdminAccessEnabled reports whether the admin set is empty.
func (s *Store) IsAnonymousAdminAccessEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.admins) == 0
}

// HasAdminPermissions reports whether id may perform admin actions: it is
// a recorded admin or the set is empty.
func (s *Store) HasAdminPermissions(id identity.Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.admins) == 0 {
		return true
	}
	_, ok := s.admins[id]
	return ok
}

// IsAdmin reports strict membership, ignoring anonymous access.
func (s *Store) IsAdmin(id identity.Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.admins[id]
	return ok
}

// Admins returns the sorted admin list.
func (s *Store) Admins() []identity.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Add records id as an administrator. It reports whether the set changed.
func (s *Store) Add(ctx context.Context, id identity.Identity) bool {
	return s.mutate(ctx, "add", id, func() bool {
		if _, ok := s.admins[id]; ok {
			return false
		}
		s.admins[id] = struct{}{}
		return true
	})
}

// Remove drops id from the admin set. It reports whether the set changed.
// Removing the last admin re-enables anonymous admin access.
func (s *Store) Remove(ctx context.Context, id identity.Identity) bool {
	return s.mutate(ctx, "remove", id, func() bool {
		if _, ok := s.admins[id]; !ok {
			return false
		}
		delete(s.admins, id)
		return true
	})
}

// AddFirstAdminIfNecessary records id only if the set is empty, closing
// anonymous admin access. The check and insert are atomic.
func (s *Store) AddFirstAdminIfNecessary(ctx context.Context, id identity.Identity) bool {
	return s.mutate(ctx, "bootstrap", id, func() bool {
		if len(s.admins) > 0 {
			return false
		}
		s.admins[id] = struct{}{}
		return true
	})
}

func (s *Store) mutate(ctx context.Context, op string, id identity.Identity, apply func() bool) bool {
	if id.IsUnknown() {
		return false
	}
	s.mu.Lock()
	if !apply() {
		s.mu.Unlock()
		return false
	}
	snapshot := s.snapshotLocked()
	if s.autoSave {
		_ = s.persistLocked(ctx, snapshot)
	}
	ticket, listeners := s.issueLocked()
	s.mu.Unlock()

	s.log.InfoContext(ctx, "admins."+op+".ok", slog.String("identity", id.String()), slog.Int("count", len(snapshot)))
	if len(snapshot) == 0 {
		s.log.WarnContext(ctx, "admins.anonymous_access.enabled")
	}
	s.deliver(ctx, ticket, listeners, snapshot)
	return true
}

func (s *Store) issueLocked() (uint64, []ChangeFunc) {
	s.seq++
	return s.seq, slices.Clone(s.listeners)
}

func (s *Store) deliver(ctx context.Context, ticket uint64, listeners []ChangeFunc, snapshot []identity.Identity) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	for s.delivered != ticket-1 {
		s.notified.Wait()
	}
	defer func() {
		s.delivered = ticket
		s.notified.Broadcast()
	}()
	for _, fn := range listeners {
		fn(ctx, slices.Clone(snapshot))
	}
}

func (s *Store) persistLocked(ctx context.Context, snapshot []identity.Identity) error {
	if s.backend == nil {
		return ErrNoBackend
	}
	if err := s.backend.WriteAll(ctx, snapshot); err != nil {
		s.log.ErrorContext(ctx, "admins.save.fail", slog.String("err", err.Error()))
		return err
	}
	return nil
}

func (s *Store) snapshotLocked() []identity.Identity {
	out := make([]identity.Identity, 0, len(s.admins))
	for id := range s.admins {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func sameMembers(a, b map[identity.Identity]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
