package resources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ggoodman/webadmin-go/action"
	"github.com/ggoodman/webadmin-go/internal/logctx"
)

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithLogger sets the logger. Defaults to discard.
func WithLogger(l *slog.Logger) RouterOption {
	return func(r *Router) {
		if l != nil {
			r.log = slog.New(logctx.Handler{Handler: l.Handler()})
		}
	}
}

// Router dispatches actions to registered resources.
type Router struct {
	admins AdminChecker
	log    *slog.Logger

	mu        sync.RWMutex
	resources map[string]Resource
}

// NewRouter returns an empty Router that consults admins for
// RequireAdmin methods.
func NewRouter(admins AdminChecker, opts ...RouterOption) *Router {
	r := &Router{
		admins:    admins,
		log:       slog.New(slog.DiscardHandler),
		resources: make(map[string]Resource),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds res to name. It panics on an empty or duplicate name.
func (r *Router) Register(name string, res Resource) {
	if name == "" || res == nil {
		panic("resources: Register requires a name and a resource")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.resources[name]; dup {
		panic(fmt.Sprintf("resources: resource %q already registered", name))
	}
	r.resources[name] = res
}

func (r *Router) lookup(name string) (Resource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.resources[name]
	return res, ok
}

// Handle dispatches one action and always returns a Result. Resolution
// and the security check happen before the payload is decoded, so an
// unauthorized caller never reaches the decoder or the handler.
func (r *Router) Handle(ctx context.Context, path Path, verb string, payload json.RawMessage, p Principal) action.Result {
	if p == nil {
		p = Anonymous
	}
	res := r.dispatch(ctx, path, verb, payload, p)
	r.log.DebugContext(ctx, "resources.dispatch", slog.String("path", path.String()), slog.String("verb", verb), slog.String("status", res.Status().String()))
	return res
}

func (r *Router) dispatch(ctx context.Context, path Path, verb string, payload json.RawMessage, p Principal) action.Result {
	if len(path) == 0 {
		return action.NotFound
	}
	res, ok := r.lookup(path[0])
	if !ok {
		return action.NotFound
	}
	v, ok := ParseVerb(verb)
	if !ok {
		return action.MethodNotAllowed
	}
	m, item, err := res.Resolve(v, path[1:])
	if err != nil {
		out, _ := resultForError(err)
		return out
	}
	if !permitted(m.requirement, p, r.admins) {
		r.log.InfoContext(ctx, "resources.dispatch.unauthorized", slog.String("path", path.String()), slog.String("requirement", m.requirement.String()))
		return action.Unauthorized
	}

	call := &Call{Principal: p, Path: path, Item: item}
	out, err := r.invoke(ctx, m, call, payload)
	if err != nil {
		var de *decodeError
		if errors.As(err, &de) {
			r.log.InfoContext(ctx, "resources.dispatch.bad_payload", slog.String("path", path.String()), slog.String("err", de.Error()))
			return resultInvalidPayload
		}
		result, internal := resultForError(err)
		if internal {
			r.log.ErrorContext(ctx, "resources.dispatch.fail", slog.String("path", path.String()), slog.String("err", err.Error()))
		}
		return result
	}
	if m.void {
		return action.OK()
	}
	return action.Payload(out)
}

func (r *Router) invoke(ctx context.Context, m Method, c *Call, payload json.RawMessage) (out any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("handler panic: %v", rec)
		}
	}()
	return m.run(ctx, c, payload)
}

// Catalog lists every registered resource, sorted by name.
func (r *Router) Catalog() []ResourceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ResourceInfo, 0, len(r.resources))
	for name, res := range r.resources {
		out = append(out, ResourceInfo{Name: name, Methods: res.Describe()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
