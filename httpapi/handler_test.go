package httpapi_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ggoodman/webadmin-go/action"
	"github.com/ggoodman/webadmin-go/admins"
	"github.com/ggoodman/webadmin-go/auth/authtest"
	"github.com/ggoodman/webadmin-go/httpapi"
	"github.com/ggoodman/webadmin-go/identity"
	"github.com/ggoodman/webadmin-go/resources"
	"github.com/ggoodman/webadmin-go/resources/serveradmins"
)

type greeting struct {
	Name string `json:"name"`
}

func mustServer(t *testing.T, opts ...httpapi.Option) (*httptest.Server, *admins.Store) {
	t.Helper()
	store := admins.NewStore(admins.NewMemoryBackend([]identity.Identity{"alice"}))
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	r := resources.NewRouter(store)
	r.Register(serveradmins.Name, serveradmins.New(store))
	r.Register("greet", resources.NewSimpleResource(
		resources.NewMethod(resources.POST, resources.RequireNone, func(ctx context.Context, c *resources.Call, in greeting) (string, error) {
			return "hello " + in.Name, nil
		}),
		resources.NewParameterlessMethod(resources.GET, resources.RequireAuth, func(ctx context.Context, c *resources.Call) (string, error) {
			return "hello " + c.Identity().String(), nil
		}),
	))
	opts = append([]httpapi.Option{
		httpapi.WithPrefix("/api"),
		httpapi.WithAuthenticator(authtest.Static{"alice-token": "alice", "bob-token": "bob"}),
	}, opts...)
	srv := httptest.NewServer(httpapi.New(r, opts...))
	t.Cleanup(srv.Close)
	return srv, store
}

type response struct {
	status int
	header http.Header
	result action.Result
	body   string
}

func do(t *testing.T, srv *httptest.Server, method, path, token, ctype, body string) response {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	if ctype != "" {
		req.Header.Set("Content-Type", ctype)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	out := response{status: resp.StatusCode, header: resp.Header, body: string(b)}
	if resp.Header.Get("Content-Type") == "application/json" {
		_ = json.Unmarshal(b, &out.result)
	}
	return out
}

func TestActions(t *testing.T) {
	srv, _ := mustServer(t)
	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		ctype      string
		body       string
		wantStatus int
		wantResult action.Status
		wantData   string
	}{
		{"anonymous list", "GET", "/api/resources/serverAdmins", "", "", "", 200, action.StatusOK, `["alice"]`},
		{"typed payload", "POST", "/api/resources/greet", "", "application/json", `{"name":"bob"}`, 200, action.StatusOK, `"hello bob"`},
		{"json with charset", "POST", "/api/resources/greet", "", "application/json; charset=utf-8", `{"name":"eve"}`, 200, action.StatusOK, `"hello eve"`},
		{"authenticated", "GET", "/api/resources/greet", "Bearer bob-token", "", "", 200, action.StatusOK, `"hello bob"`},
		{"auth required", "GET", "/api/resources/greet", "", "", "", 401, action.StatusUnauthorized, ``},
		{"admin add", "POST", "/api/resources/serverAdmins", "Bearer alice-token", "application/json", `"bob"`, 200, action.StatusOK, `["alice","bob"]`},
		{"non-admin add", "POST", "/api/resources/serverAdmins", "Bearer bob-token", "application/json", `"bob"`, 401, action.StatusUnauthorized, ``},
		{"unknown resource", "GET", "/api/resources/nope", "", "", "", 404, action.StatusNotFound, ``},
		{"empty path", "GET", "/api/resources/", "", "", "", 404, action.StatusNotFound, ``},
		{"unsupported verb", "PUT", "/api/resources/greet", "", "", "", 405, action.StatusActionNotAllowed, ``},
		{"bad payload", "POST", "/api/resources/greet", "", "application/json", `{"nom":"x"}`, 400, action.StatusBadRequest, ``},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(t, srv, tc.method, tc.path, tc.token, tc.ctype, tc.body)
			if resp.status != tc.wantStatus {
				t.Fatalf("want HTTP %d got %d (%s)", tc.wantStatus, resp.status, resp.body)
			}
			if resp.result.Status() != tc.wantResult {
				t.Fatalf("want %v got %v", tc.wantResult, resp.result)
			}
			if tc.wantData != "" && string(resp.result.Payload()) != tc.wantData {
				t.Fatalf("want data %s got %s", tc.wantData, resp.result.Payload())
			}
			if resp.header.Get("X-Request-Id") == "" {
				t.Fatalf("expected request id header")
			}
		})
	}
}

func TestTransportRejections(t *testing.T) {
	srv, store := mustServer(t, httpapi.WithMaxBodyBytes(64), httpapi.WithRealm("webadmin"))
	tests := []struct {
		name       string
		method     string
		token      string
		ctype      string
		body       string
		wantStatus int
		wantChal   string
	}{
		{"wrong content type", "POST", "Bearer alice-token", "text/plain", `"bob"`, 415, ""},
		{"missing content type", "POST", "Bearer alice-token", "", `"bob"`, 415, ""},
		{"invalid json", "POST", "Bearer alice-token", "application/json", `{"`, 400, ""},
		{"too large", "POST", "Bearer alice-token", "application/json", `"` + strings.Repeat("x", 100) + `"`, 413, ""},
		{"bad scheme", "POST", "Basic Zm9vOmJhcg==", "application/json", `"bob"`, 400, `Bearer realm="webadmin", error="invalid_request"`},
		{"empty token", "POST", "Bearer    ", "application/json", `"bob"`, 400, `Bearer realm="webadmin", error="invalid_request"`},
		{"unknown token", "POST", "Bearer mallory-token", "application/json", `"bob"`, 401, `Bearer realm="webadmin", error="invalid_token"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(t, srv, tc.method, "/api/resources/serverAdmins", tc.token, tc.ctype, tc.body)
			if resp.status != tc.wantStatus {
				t.Fatalf("want HTTP %d got %d (%s)", tc.wantStatus, resp.status, resp.body)
			}
			if !strings.HasPrefix(resp.header.Get("WWW-Authenticate"), tc.wantChal) {
				t.Fatalf("want challenge prefix %q got %q", tc.wantChal, resp.header.Get("WWW-Authenticate"))
			}
		})
	}
	if store.IsAdmin("bob") {
		t.Fatalf("rejected requests must not reach the store")
	}
}

func TestAnonymousChallenge(t *testing.T) {
	srv, _ := mustServer(t)
	resp := do(t, srv, "GET", "/api/resources/greet", "", "", "")
	if got := resp.header.Get("WWW-Authenticate"); got != "Bearer" {
		t.Fatalf("want bare Bearer challenge got %q", got)
	}
}

func TestWithoutAuthenticator(t *testing.T) {
	srv := httptest.NewServer(httpapi.New(resources.NewRouter(admins.NewStore(nil)), httpapi.WithLogger(nil)))
	defer srv.Close()
	resp := do(t, srv, "GET", "/resources/anything", "Bearer x", "", "")
	if resp.status != http.StatusUnauthorized {
		t.Fatalf("want 401 got %d", resp.status)
	}
	resp = do(t, srv, "GET", "/resources/anything", "", "", "")
	if resp.status != http.StatusNotFound {
		t.Fatalf("want 404 got %d", resp.status)
	}
}
