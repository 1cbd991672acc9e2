// Package console exposes command execution as the "console" resource.
//
// Clients POST a command string; the command runs through an Executor on
// behalf of the caller. Output produced later by the server is pushed back
// to that caller as a "console" resource event.
package console

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ggoodman/webadmin-go/events"
	"github.com/ggoodman/webadmin-go/identity"
	"github.com/ggoodman/webadmin-go/resources"
)

// Name is the resource path segment.
const Name = "console"

// Executor runs console commands. It may return a *resources.Error to
// choose the result status; any other error is reported as an internal
// error.
type Executor interface {
	Execute(ctx context.Context, command string, caller identity.Identity) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, command string, caller identity.Identity) error

func (f ExecutorFunc) Execute(ctx context.Context, command string, caller identity.Identity) error {
	return f(ctx, command, caller)
}

// Message is the payload of a console event.
type Message struct {
	Message string `json:"message"`
}

// Option configures a Console.
type Option func(*Console)

// WithLogger sets the logger. Defaults to discard.
func WithLogger(l *slog.Logger) Option {
	return func(c *Console) {
		if l != nil {
			c.log = l
		}
	}
}

// Console binds an Executor to the event hub.
type Console struct {
	exec Executor
	hub  *events.Hub
	log  *slog.Logger
}

// New returns a Console. hub may be nil, in which case Notify drops output.
func New(exec Executor, hub *events.Hub, opts ...Option) *Console {
	c := &Console{
		exec: exec,
		hub:  hub,
		log:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resource returns the resource to register under Name.
func (c *Console) Resource() *resources.SimpleResource {
	return resources.NewSimpleResource(
		resources.NewVoidMethod(resources.POST, resources.RequireAuth, c.execute,
			resources.WithDescription("Run a console command as the caller")),
	)
}

func (c *Console) execute(ctx context.Context, call *resources.Call, command string) error {
	command = strings.TrimSpace(command)
	if command == "" {
		return resources.BadRequest("Empty command")
	}
	c.log.InfoContext(ctx, "console.execute", slog.String("identity", call.Identity().String()), slog.String("command", command))
	return c.exec.Execute(ctx, command, call.Identity())
}

// Notify publishes console output to the sessions of id. An unknown id
// broadcasts to every authenticated session. It returns the number of
// sessions the message was queued for.
func (c *Console) Notify(ctx context.Context, id identity.Identity, message string) int {
	if c.hub == nil {
		return 0
	}
	ev, err := events.NewEvent(Message{Message: message}, Name)
	if err != nil {
		c.log.ErrorContext(ctx, "console.notify.fail", slog.String("err", err.Error()))
		return 0
	}
	if id.IsUnknown() {
		return c.hub.Broadcast(ctx, ev)
	}
	return c.hub.Send(ctx, id, ev)
}
