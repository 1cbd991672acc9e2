package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ggoodman/webadmin-go/identity"
)

// DefaultBuffer is the per-subscription queue length used when Subscribe
// is given a non-positive size.
const DefaultBuffer = 64

// Event is a server-initiated notification about a resource.
type Event struct {
	ResourcePath []string        `json:"resourcePath"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// NewEvent encodes data into an Event for the resource at path.
func NewEvent(data any, path ...string) (Event, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("encode event: %w", err)
	}
	return Event{ResourcePath: path, Data: b}, nil
}

// Principal identifies the client behind a subscription. It is consulted
// at delivery time, so a subscription starts receiving targeted events as
// soon as its session authenticates.
type Principal interface {
	IsAuthenticated() bool
	Identity() identity.Identity
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger. Defaults to discard.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// Hub fans events out to subscribed connections. Delivery never blocks:
// an event is dropped for a subscriber whose queue is full.
type Hub struct {
	log *slog.Logger

	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewHub returns an empty Hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		log:  slog.New(slog.DiscardHandler),
		subs: make(map[*Subscription]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscription is one connection's event queue.
type Subscription struct {
	hub       *Hub
	principal Principal
	ch        chan Event
	dropped   atomic.Int64
	once      sync.Once
}

// Events returns the queue. It is closed when the subscription or the hub
// is closed.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Dropped reports how many events were discarded because the queue was full.
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	delete(s.hub.subs, s)
	s.hub.mu.Unlock()
	s.closeChan()
}

func (s *Subscription) closeChan() {
	s.once.Do(func() { close(s.ch) })
}

// Subscribe registers a queue of the given size for p.
func (h *Hub) Subscribe(p Principal, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	s := &Subscription{hub: h, principal: p, ch: make(chan Event, buffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.closeChan()
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

// Broadcast delivers ev to every authenticated subscriber and returns the
// number of queues it was placed on.
func (h *Hub) Broadcast(ctx context.Context, ev Event) int {
	return h.deliver(ctx, ev, func(p Principal) bool { return p.IsAuthenticated() })
}

// Send delivers ev to every subscriber authenticated as id.
func (h *Hub) Send(ctx context.Context, id identity.Identity, ev Event) int {
	if id.IsUnknown() {
		return 0
	}
	return h.deliver(ctx, ev, func(p Principal) bool {
		return p.IsAuthenticated() && p.Identity() == id
	})
}

func (h *Hub) deliver(ctx context.Context, ev Event, match func(Principal) bool) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return 0
	}
	n := 0
	for s := range h.subs {
		if !match(s.principal) {
			continue
		}
		select {
		case s.ch <- ev:
			n++
		default:
			s.dropped.Add(1)
			h.log.WarnContext(ctx, "events.deliver.dropped", slog.Any("resource_path", ev.ResourcePath))
		}
	}
	return n
}

// Close closes every subscription and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[*Subscription]struct{})
	h.mu.Unlock()

	for s := range subs {
		s.closeChan()
	}
}
