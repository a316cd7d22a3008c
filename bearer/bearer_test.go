package bearer

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ggoodman/okta-jwt-verifier-go/internal/logctx"
	"github.com/ggoodman/okta-jwt-verifier-go/verifier"
	"github.com/ggoodman/okta-jwt-verifier-go/verifiertest"
	"github.com/google/uuid"
)

func newProtected(t *testing.T, opts ...Option) (*verifiertest.Issuer, http.Handler, *bool) {
	t.Helper()
	iss := verifiertest.NewIssuer(t)
	iss.AddKey(t, "k1")
	v, err := verifier.New(context.Background(), iss.URL(), verifier.WithHTTPClient(iss.Client()))
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		tok, ok := FromContext(r.Context())
		if !ok {
			t.Errorf("token missing from context")
			return
		}
		if RequestID(r.Context()) == "" {
			t.Errorf("request id missing from context")
		}
		_, _ = w.Write([]byte("hello " + tok.Claims.Sub))
	})
	return iss, New(v, opts...).Wrap(next), &called
}

func do(h http.Handler, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_Admits(t *testing.T) {
	iss, h, called := newProtected(t)
	rec := do(h, "Bearer "+iss.Sign(t, "k1", iss.Claims("user-1")))
	if rec.Code != http.StatusOK || !*called {
		t.Fatalf("want 200 and handler call, got %d (called=%v)", rec.Code, *called)
	}
	if rec.Body.String() != "hello user-1" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
	if _, err := uuid.Parse(rec.Header().Get("X-Request-Id")); err != nil {
		t.Fatalf("response lacks a request id: %v", err)
	}
}

func TestMiddleware_Rejects(t *testing.T) {
	tests := []struct {
		name      string
		authz     func(*verifiertest.Issuer) string
		status    int
		errCode   string
		challenge string
	}{
		{
			name:      "missing header",
			authz:     func(*verifiertest.Issuer) string { return "" },
			status:    http.StatusUnauthorized,
			challenge: `Bearer realm="api"`,
		},
		{
			name:    "wrong scheme",
			authz:   func(*verifiertest.Issuer) string { return "Basic dXNlcjpwYXNz" },
			status:  http.StatusBadRequest,
			errCode: "invalid_request",
		},
		{
			name:    "scheme only",
			authz:   func(*verifiertest.Issuer) string { return "Bearer" },
			status:  http.StatusBadRequest,
			errCode: "invalid_request",
		},
		{
			name:    "empty token",
			authz:   func(*verifiertest.Issuer) string { return "Bearer    " },
			status:  http.StatusBadRequest,
			errCode: "invalid_request",
		},
		{
			name:    "garbage token",
			authz:   func(*verifiertest.Issuer) string { return "Bearer not-a-jwt" },
			status:  http.StatusUnauthorized,
			errCode: "invalid_token",
		},
		{
			name: "expired token",
			authz: func(iss *verifiertest.Issuer) string {
				c := iss.Claims("user-1")
				c["exp"] = c["iat"].(int64) - 3600
				return "Bearer " + iss.Sign(t, "k1", c)
			},
			status:  http.StatusUnauthorized,
			errCode: "invalid_token",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iss, h, called := newProtected(t, WithRealm("api"))
			rec := do(h, tt.authz(iss))
			if rec.Code != tt.status {
				t.Fatalf("want %d, got %d", tt.status, rec.Code)
			}
			if *called {
				t.Fatalf("handler must not run on rejection")
			}
			chal := rec.Header().Get("WWW-Authenticate")
			if !strings.HasPrefix(chal, `Bearer realm="api"`) {
				t.Fatalf("unexpected challenge %q", chal)
			}
			if tt.challenge != "" && chal != tt.challenge {
				t.Fatalf("want challenge %q, got %q", tt.challenge, chal)
			}
			if tt.errCode != "" && !strings.Contains(chal, `error="`+tt.errCode+`"`) {
				t.Fatalf("challenge %q lacks error %s", chal, tt.errCode)
			}

			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"] != tt.errCode {
				t.Fatalf("want body error %q, got %q", tt.errCode, body["error"])
			}
		})
	}
}

func TestMiddleware_RequiredScopes(t *testing.T) {
	iss, h, called := newProtected(t, WithRequiredScopes("read"))

	c := iss.Claims("user-1")
	c["scp"] = []string{"openid"}
	rec := do(h, "Bearer "+iss.Sign(t, "k1", c))
	if rec.Code != http.StatusForbidden || *called {
		t.Fatalf("want 403 without handler call, got %d", rec.Code)
	}
	if chal := rec.Header().Get("WWW-Authenticate"); !strings.Contains(chal, `error="insufficient_scope"`) || !strings.Contains(chal, `scope="read"`) {
		t.Fatalf("unexpected challenge %q", chal)
	}

	c["scp"] = []string{"openid", "read"}
	if rec := do(h, "Bearer "+iss.Sign(t, "k1", c)); rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
}

func TestMiddleware_PropagatesRequestID(t *testing.T) {
	iss, h, _ := newProtected(t)
	id := uuid.NewString()

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+iss.Sign(t, "k1", iss.Claims("user-1")))
	req.Header.Set("X-Request-Id", id)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got != id {
		t.Fatalf("want request id %s, got %s", id, got)
	}

	req.Header.Set("X-Request-Id", "not a uuid")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got == "not a uuid" || got == "" {
		t.Fatalf("malformed request id must be replaced, got %q", got)
	}
}

func TestBuildBearerChallenge(t *testing.T) {
	tests := []struct {
		realm, rm string
		params    map[string]string
		want      string
	}{
		{want: "Bearer"},
		{realm: "api", want: `Bearer realm="api"`},
		{rm: "https://rs/.well-known/oauth-protected-resource", want: `Bearer resource_metadata="https://rs/.well-known/oauth-protected-resource"`},
		{
			realm:  `a"b`,
			params: map[string]string{"error_description": "bad", "error": "invalid_token"},
			want:   `Bearer realm="a\"b", error="invalid_token", error_description="bad"`,
		},
	}
	for _, tt := range tests {
		if got := buildBearerChallenge(tt.realm, tt.rm, tt.params); got != tt.want {
			t.Errorf("buildBearerChallenge() = %q, want %q", got, tt.want)
		}
	}
}

func TestMetadataHandler(t *testing.T) {
	h := MetadataHandler("https://api.example.com", "https://example.okta.com/oauth2/default", "https://example.okta.com/oauth2/default/v1/keys", "read")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, MetadataPath, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var doc map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc["resource"] != "https://api.example.com" {
		t.Fatalf("unexpected resource: %v", doc["resource"])
	}
	servers, _ := doc["authorization_servers"].([]any)
	if len(servers) != 1 || servers[0] != "https://example.okta.com/oauth2/default" {
		t.Fatalf("unexpected authorization_servers: %v", doc["authorization_servers"])
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, MetadataPath, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
}

func TestMiddleware_RejectionOmitsVerifyDetail(t *testing.T) {
	iss, h, _ := newProtected(t)
	tok := verifiertest.SignToken(t, verifiertest.SharedKey(t), "unpublished-kid", iss.Claims("user-1"))

	rec := do(h, "Bearer "+tok)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", rec.Code)
	}
	chal := rec.Header().Get("WWW-Authenticate")
	if strings.Contains(chal, "unpublished-kid") || strings.Contains(rec.Body.String(), "unpublished-kid") {
		t.Fatalf("response leaks the token kid: %q %s", chal, rec.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error_description"] != "token rejected: no_matching_key" {
		t.Fatalf("unexpected description %q", body["error_description"])
	}
}

func TestNew_WrapsLoggerOnce(t *testing.T) {
	inner := slog.DiscardHandler

	m := New(nil, WithLogger(slog.New(logctx.Handler{Handler: inner})))
	h, ok := m.log.Handler().(logctx.Handler)
	if !ok {
		t.Fatalf("handler is %T, want logctx.Handler", m.log.Handler())
	}
	if _, nested := h.Handler.(logctx.Handler); nested {
		t.Fatalf("logctx.Handler wrapped twice")
	}

	m = New(nil, WithLogger(slog.New(inner)))
	if _, ok := m.log.Handler().(logctx.Handler); !ok {
		t.Fatalf("plain logger must be wrapped, got %T", m.log.Handler())
	}
}
