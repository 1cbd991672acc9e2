package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"

	"github.com/ggoodman/webadmin-go/auth"
	"github.com/ggoodman/webadmin-go/internal/logctx"
	"github.com/ggoodman/webadmin-go/resources"
)

var _ http.Handler = (*Handler)(nil)

var jsonMediaType = contenttype.NewMediaType("application/json")

const (
	authorizationHeader   = "Authorization"
	wwwAuthenticateHeader = "WWW-Authenticate"
	requestIDHeader       = "X-Request-Id"

	// DefaultMaxBodyBytes bounds request payloads.
	DefaultMaxBodyBytes = 1 << 20
)

// writeJSONError emits a transport-level rejection that happens before a
// resource is dispatched. Shape: {"error":{"code":<httpStatus>,"message":"<reason>"}}
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": status, "message": msg}})
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

// WithAuthenticator enables bearer tokens. Without one every request is
// dispatched as an unauthenticated caller and Authorization headers are
// rejected.
func WithAuthenticator(a auth.Authenticator) Option {
	return func(h *Handler) { h.auth = a }
}

// WithRealm sets the realm advertised in WWW-Authenticate challenges. The
// attribute is omitted when empty.
func WithRealm(realm string) Option {
	return func(h *Handler) { h.realm = strings.TrimSpace(realm) }
}

// WithPrefix mounts the routes below prefix, e.g. "/api".
func WithPrefix(prefix string) Option {
	return func(h *Handler) { h.prefix = "/" + strings.Trim(prefix, "/") }
}

// WithMaxBodyBytes bounds request bodies. Defaults to DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) { h.maxBody = n }
}

// buildBearerChallenge builds a Bearer challenge header value:
//
//	Bearer realm="<realm>", error="...", error_description="..."
//
// Attributes with empty values are omitted.
func buildBearerChallenge(realm, errCode, description string) string {
	esc := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	pieces := make([]string, 0, 3)
	if realm != "" {
		pieces = append(pieces, fmt.Sprintf(`realm="%s"`, esc.Replace(realm)))
	}
	if errCode != "" {
		pieces = append(pieces, fmt.Sprintf(`error="%s"`, esc.Replace(errCode)))
	}
	if description != "" {
		pieces = append(pieces, fmt.Sprintf(`error_description="%s"`, esc.Replace(description)))
	}
	if len(pieces) == 0 {
		return "Bearer"
	}
	return "Bearer " + strings.Join(pieces, ", ")
}

// Handler serves the resource router over plain HTTP:
//
//	{GET,POST,PUT,PATCH,DELETE} <prefix>/resources/{path...}
//
// The response body is the action result and the HTTP status mirrors the
// result status.
type Handler struct {
	mux     *http.ServeMux
	router  *resources.Router
	auth    auth.Authenticator
	log     *slog.Logger
	realm   string
	prefix  string
	maxBody int64
}

// New returns a Handler dispatching to router.
func New(router *resources.Router, opts ...Option) *Handler {
	h := &Handler{
		router:  router,
		log:     slog.New(slog.DiscardHandler),
		maxBody: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.prefix == "/" {
		h.prefix = ""
	}

	h.mux = http.NewServeMux()
	for _, verb := range []resources.Verb{resources.GET, resources.POST, resources.PUT, resources.PATCH, resources.DELETE} {
		h.mux.HandleFunc(fmt.Sprintf("%s %s/resources/{path...}", verb, h.prefix), h.handleAction)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.NewString()
	w.Header().Set(requestIDHeader, reqID)
	h.mux.ServeHTTP(w, r.WithContext(logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  reqID,
		Method:     r.Method,
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})))
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	path := resources.ParsePath(r.PathValue("path"))
	ctx = logctx.WithActionData(ctx, &logctx.ActionData{Path: path.String(), Verb: r.Method})
	h.log.DebugContext(ctx, "http.action.start")

	principal, ok := h.checkAuthentication(ctx, r, w)
	if !ok {
		return
	}

	payload, err := h.readPayload(r)
	if err != nil {
		var he *httpError
		if errors.As(err, &he) {
			writeJSONError(w, he.status, he.msg)
		} else {
			writeJSONError(w, http.StatusBadRequest, "unable to read request body")
		}
		h.log.WarnContext(ctx, "http.body.reject", slog.String("err", err.Error()))
		return
	}

	res := h.router.Handle(ctx, path, r.Method, payload, principal)

	status := res.Status().HTTPStatus()
	if status == http.StatusUnauthorized && !principal.IsAuthenticated() {
		// RFC 6750 3.1: no credentials supplied, so no error code.
		w.Header().Add(wwwAuthenticateHeader, buildBearerChallenge(h.realm, "", ""))
	}
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		h.log.ErrorContext(ctx, "http.response.write.fail", slog.String("err", err.Error()))
		return
	}
	h.log.InfoContext(ctx, "http.action.ok", slog.String("status", res.Status().String()), slog.Int64("duration_ms", time.Since(start).Milliseconds()))
}

type httpError struct {
	status int
	msg    string
}

func (e *httpError) Error() string { return e.msg }

// readPayload returns the request body, requiring a JSON content type when
// it is non-empty. An empty body is a nil payload.
func (h *Handler) readPayload(r *http.Request) (json.RawMessage, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, h.maxBody))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, &httpError{status: http.StatusRequestEntityTooLarge, msg: "request body too large"}
		}
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}
	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		return nil, &httpError{status: http.StatusUnsupportedMediaType, msg: "content-type must be application/json"}
	}
	if !json.Valid(body) {
		return nil, &httpError{status: http.StatusBadRequest, msg: "invalid JSON body"}
	}
	return body, nil
}

// checkAuthentication resolves the caller. A request without an
// Authorization header is anonymous. On failure the response has been
// written and ok is false.
func (h *Handler) checkAuthentication(ctx context.Context, r *http.Request, w http.ResponseWriter) (p resources.Principal, ok bool) {
	authHeader := r.Header.Get(authorizationHeader)
	if authHeader == "" {
		return resources.Anonymous, true
	}

	// Malformed header or wrong scheme -> invalid_request 400 per RFC 6750 3.1.
	const bearerPrefix = "Bearer "
	if len(authHeader) <= len(bearerPrefix) || !strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
		h.log.InfoContext(ctx, "auth.check.invalid", slog.String("err", "malformed bearer authorization header"))
		w.Header().Add(wwwAuthenticateHeader, buildBearerChallenge(h.realm, "invalid_request", "malformed bearer authorization header"))
		writeJSONError(w, http.StatusBadRequest, "malformed bearer authorization header")
		return nil, false
	}
	tok := strings.TrimSpace(authHeader[len(bearerPrefix):])
	if tok == "" {
		h.log.InfoContext(ctx, "auth.check.invalid", slog.String("err", "empty bearer token"))
		w.Header().Add(wwwAuthenticateHeader, buildBearerChallenge(h.realm, "invalid_request", "empty bearer token"))
		writeJSONError(w, http.StatusBadRequest, "empty bearer token")
		return nil, false
	}

	if h.auth == nil {
		h.log.InfoContext(ctx, "auth.check.fail", slog.String("err", "bearer tokens are not accepted"))
		w.Header().Add(wwwAuthenticateHeader, buildBearerChallenge(h.realm, "invalid_token", "bearer tokens are not accepted"))
		writeJSONError(w, http.StatusUnauthorized, "bearer tokens are not accepted")
		return nil, false
	}

	userInfo, err := h.auth.CheckAuthentication(ctx, tok)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			h.log.InfoContext(ctx, "auth.check.fail", slog.String("err", err.Error()))
			w.Header().Add(wwwAuthenticateHeader, buildBearerChallenge(h.realm, "invalid_token", "the access token is invalid"))
			writeJSONError(w, http.StatusUnauthorized, "invalid token")
			return nil, false
		}
		h.log.ErrorContext(ctx, "auth.check.err", slog.String("err", err.Error()))
		writeJSONError(w, http.StatusInternalServerError, "authentication unavailable")
		return nil, false
	}

	id := userInfo.Identity()
	if id.IsUnknown() {
		h.log.InfoContext(ctx, "auth.check.fail", slog.String("err", "token has no subject"))
		w.Header().Add(wwwAuthenticateHeader, buildBearerChallenge(h.realm, "invalid_token", "the access token has no subject"))
		writeJSONError(w, http.StatusUnauthorized, "invalid token")
		return nil, false
	}
	h.log.DebugContext(ctx, "auth.check.ok", slog.String("identity", id.String()))
	return resources.Authenticated(id), true
}
