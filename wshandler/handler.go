package wshandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/ggoodman/webadmin-go/action"
	"github.com/ggoodman/webadmin-go/events"
	"github.com/ggoodman/webadmin-go/handshake"
	"github.com/ggoodman/webadmin-go/identity"
	"github.com/ggoodman/webadmin-go/internal/logctx"
	"github.com/ggoodman/webadmin-go/internal/wire"
	"github.com/ggoodman/webadmin-go/resources"
	"github.com/ggoodman/webadmin-go/sessions"
)

var _ http.Handler = (*Handler)(nil)

const (
	DefaultReadLimit    = 1 << 20
	DefaultIdleTimeout  = 10 * time.Minute
	DefaultWriteTimeout = 5 * time.Second
)

var (
	resultInvalidMessage = action.NewMessage(action.StatusBadRequest, "Invalid message")
	resultUnknownType    = action.NewMessage(action.StatusBadRequest, "Unknown message type")
	resultBinaryMessage  = action.NewMessage(action.StatusBadRequest, "Binary messages are not supported")
)

// AdminBootstrapper records the first identity to authenticate as an
// administrator. *admins.Store implements it.
type AdminBootstrapper interface {
	AddFirstAdminIfNecessary(ctx context.Context, id identity.Identity) bool
}

// Option configures the Handler.
type Option func(*Handler)

// WithLogger sets the logger. If not provided, logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = slog.New(logctx.Handler{Handler: l.Handler()})
		}
	}
}

// WithAdminBootstrap promotes the first identity to authenticate while the
// admin set is empty.
func WithAdminBootstrap(b AdminBootstrapper) Option {
	return func(h *Handler) { h.bootstrap = b }
}

// WithHub forwards resource events from hub to connected clients.
func WithHub(hub *events.Hub) Option {
	return func(h *Handler) { h.hub = hub }
}

// WithIdleTimeout closes connections that send nothing for d.
func WithIdleTimeout(d time.Duration) Option {
	return func(h *Handler) { h.idleTimeout = d }
}

// WithReadLimit bounds the size of a single client frame.
func WithReadLimit(n int64) Option {
	return func(h *Handler) { h.readLimit = n }
}

// WithOriginPatterns allows cross-origin upgrades from hosts matching the
// patterns. Same-origin upgrades are always allowed.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Handler) { h.originPatterns = append(h.originPatterns, patterns...) }
}

// Handler upgrades HTTP requests to the persistent admin channel. Each
// connection owns one session; frames are processed in arrival order.
type Handler struct {
	server *handshake.Server
	router *resources.Router

	bootstrap      AdminBootstrapper
	hub            *events.Hub
	log            *slog.Logger
	idleTimeout    time.Duration
	readLimit      int64
	originPatterns []string
}

// New returns a Handler authenticating clients against server and
// dispatching their actions to router.
func New(server *handshake.Server, router *resources.Router, opts ...Option) *Handler {
	h := &Handler{
		server:      server,
		router:      router,
		log:         slog.New(slog.DiscardHandler),
		idleTimeout: DefaultIdleTimeout,
		readLimit:   DefaultReadLimit,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.log.InfoContext(r.Context(), "ws.accept.fail", slog.String("err", err.Error()))
		return
	}
	conn.SetReadLimit(h.readLimit)

	c := &connection{
		h:    h,
		conn: conn,
		id:   uuid.NewString(),
	}
	c.sess = sessions.New(h.server.NewProtocol(), sessions.WithID(c.id), sessions.WithLogger(h.log))

	ctx, cancel := context.WithCancel(logctx.WithConnData(r.Context(), &logctx.ConnData{
		ConnID:    c.id,
		SessionID: c.sess.ID(),
		Identity:  func() string { return c.sess.Identity().String() },
	}))
	defer cancel()

	h.log.InfoContext(ctx, "ws.conn.open", slog.String("remote_addr", r.RemoteAddr))
	start := time.Now()

	if h.hub != nil {
		sub := h.hub.Subscribe(c.sess, events.DefaultBuffer)
		defer sub.Close()
		go c.forwardEvents(ctx, cancel, sub)
	}

	reason := c.readLoop(ctx)
	h.log.InfoContext(ctx, "ws.conn.close", slog.String("reason", reason), slog.Int64("duration_ms", time.Since(start).Milliseconds()))
}

type connection struct {
	h    *Handler
	conn *websocket.Conn
	id   string
	sess *sessions.Session
}

// readLoop serves frames until the peer goes away, the idle timeout fires
// or ctx ends. It returns a short reason for the log.
func (c *connection) readLoop(ctx context.Context) string {
	for {
		readCtx, cancelRead := context.WithTimeout(ctx, c.h.idleTimeout)
		typ, data, err := c.conn.Read(readCtx)
		idle := errors.Is(readCtx.Err(), context.DeadlineExceeded)
		cancelRead()
		if err != nil {
			switch {
			case idle:
				_ = c.conn.Close(websocket.StatusPolicyViolation, "idle timeout")
				return "idle"
			case websocket.CloseStatus(err) != -1:
				return "peer closed"
			case ctx.Err() != nil:
				_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
				return "context done"
			default:
				c.h.log.InfoContext(ctx, "ws.read.fail", slog.String("err", err.Error()))
				_ = c.conn.CloseNow()
				return "read error"
			}
		}
		if typ != websocket.MessageText {
			c.reply(ctx, wireOrNil(wire.NewActionResult(nil, resultBinaryMessage)))
			continue
		}
		c.handleFrame(ctx, data)
	}
}

func (c *connection) handleFrame(ctx context.Context, data []byte) {
	in, err := wire.Decode(data)
	if err != nil {
		c.h.log.InfoContext(ctx, "ws.frame.invalid", slog.String("err", err.Error()))
		res := resultInvalidMessage
		if errors.Is(err, wire.ErrUnknownMessageType) {
			res = resultUnknownType
		}
		c.reply(ctx, wireOrNil(wire.NewActionResult(in, res)))
		return
	}

	switch in.Type {
	case wire.AuthenticationRequest:
		c.reply(ctx, wireOrNil(wire.NewAuthenticationResult(c.sess.InitAuthentication(ctx))))

	case wire.AuthenticationData:
		wasAuthenticated := c.sess.IsAuthenticated()
		res := c.sess.FinishAuthentication(ctx, in.Data)
		if !wasAuthenticated && c.sess.IsAuthenticated() && c.h.bootstrap != nil {
			if c.h.bootstrap.AddFirstAdminIfNecessary(ctx, c.sess.Identity()) {
				c.h.log.InfoContext(ctx, "ws.admin.bootstrap", slog.String("identity", c.sess.Identity().String()))
			}
		}
		c.reply(ctx, wireOrNil(wire.NewAuthenticationResult(res)))

	case wire.Action:
		actx := logctx.WithActionData(ctx, &logctx.ActionData{
			Path:      resources.Path(in.ResourcePath).String(),
			Verb:      in.Method,
			RequestID: in.RequestID.String(),
		})
		res := c.h.router.Handle(actx, resources.Path(in.ResourcePath), in.Method, in.Data, c.sess)
		c.reply(actx, wireOrNil(wire.NewActionResult(in, res)))
	}
}

// forwardEvents writes hub events to the client until the subscription
// closes. A failed write tears the connection down.
func (c *connection) forwardEvents(ctx context.Context, cancel context.CancelFunc, sub *events.Subscription) {
	for ev := range sub.Events() {
		if err := c.write(ctx, wire.NewResourceEvent(ev.ResourcePath, ev.Data)); err != nil {
			c.h.log.InfoContext(ctx, "ws.event.write.fail", slog.String("err", err.Error()))
			cancel()
			return
		}
	}
}

func (c *connection) reply(ctx context.Context, out *wire.Outbound) {
	if out == nil {
		return
	}
	if err := c.write(ctx, out); err != nil {
		c.h.log.InfoContext(ctx, "ws.write.fail", slog.String("err", err.Error()))
	}
}

func (c *connection) write(ctx context.Context, out *wire.Outbound) error {
	wctx, cancel := context.WithTimeout(ctx, DefaultWriteTimeout)
	defer cancel()
	return wsjson.Write(wctx, c.conn, out)
}

// wireOrNil drops frames that failed to encode. Results always encode, so
// this only guards against programming errors.
func wireOrNil(out *wire.Outbound, err error) *wire.Outbound {
	if err != nil {
		return nil
	}
	return out
}
