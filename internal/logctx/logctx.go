package logctx

import (
	"context"
	"log/slog"
)

// Handler decorates records with the request, connection and action data
// carried in the context.
type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		r.AddAttrs(slog.Group("req",
			slog.String("id", rd.RequestID),
			slog.String("method", rd.Method),
			slog.String("user_agent", rd.UserAgent),
			slog.String("remote_addr", rd.RemoteAddr),
			slog.String("path", rd.Path),
		))
	}

	if cd, ok := ctx.Value(connDataKey{}).(*ConnData); ok {
		attrs := []any{
			slog.String("id", cd.ConnID),
			slog.String("session_id", cd.SessionID),
		}
		if cd.Identity != nil {
			attrs = append(attrs, slog.String("identity", cd.Identity()))
		}
		r.AddAttrs(slog.Group("conn", attrs...))
	}

	if ad, ok := ctx.Value(actionDataKey{}).(*ActionData); ok {
		r.AddAttrs(slog.Group("action",
			slog.String("path", ad.Path),
			slog.String("verb", ad.Verb),
			slog.String("request_id", ad.RequestID),
		))
	}

	return h.Handler.Handle(ctx, r)
}

func (h Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return Handler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h Handler) WithGroup(name string) slog.Handler {
	return Handler{Handler: h.Handler.WithGroup(name)}
}

type requestDataKey struct{}

type RequestData struct {
	RequestID  string
	Method     string
	UserAgent  string
	RemoteAddr string
	Path       string
}

func WithRequestData(ctx context.Context, data *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, data)
}

type connDataKey struct{}

// ConnData describes a persistent client connection. Identity is read
// lazily because it changes once the session authenticates.
type ConnData struct {
	ConnID    string
	SessionID string
	Identity  func() string
}

func WithConnData(ctx context.Context, data *ConnData) context.Context {
	return context.WithValue(ctx, connDataKey{}, data)
}

type actionDataKey struct{}

type ActionData struct {
	Path      string
	Verb      string
	RequestID string
}

func WithActionData(ctx context.Context, data *ActionData) context.Context {
	return context.WithValue(ctx, actionDataKey{}, data)
}
