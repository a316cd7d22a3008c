// Package bearer provides HTTP middleware that admits requests carrying a
// valid Okta access token in the Authorization header (RFC 6750).
//
// Requests are failed closed: the wrapped handler runs only after the token
// verifies, and the verified token is available through FromContext.
package bearer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/ggoodman/okta-jwt-verifier-go/internal/logctx"
	"github.com/ggoodman/okta-jwt-verifier-go/internal/wellknown"
	"github.com/ggoodman/okta-jwt-verifier-go/verifier"
	"github.com/google/uuid"
)

const (
	authorizationHeader   = "Authorization"
	wwwAuthenticateHeader = "WWW-Authenticate"
	requestIDHeader       = "X-Request-Id"
)

var jsonMediaType = contenttype.NewMediaType("application/json")

// TokenVerifier verifies a raw bearer token. *verifier.Verifier satisfies it.
type TokenVerifier interface {
	Verify(tok string) (*verifier.Token[verifier.DefaultClaims], error)
}

// Middleware authenticates requests before handing them to the next handler.
type Middleware struct {
	v                TokenVerifier
	log              *slog.Logger
	realm            string
	resourceMetadata string
	scopes           []string
}

// Option configures a Middleware.
type Option func(*Middleware)

// WithLogger sets the logger. If not provided, logs are discarded.
func WithLogger(l *slog.Logger) Option {
	return func(m *Middleware) { m.log = l }
}

// WithRealm sets the realm advertised in WWW-Authenticate challenges. Empty
// omits the attribute.
func WithRealm(realm string) Option {
	return func(m *Middleware) { m.realm = strings.TrimSpace(realm) }
}

// WithResourceMetadata advertises the protected resource metadata document
// URL in challenges (RFC 9728).
func WithResourceMetadata(url string) Option {
	return func(m *Middleware) { m.resourceMetadata = url }
}

// WithRequiredScopes rejects verified tokens lacking any of scopes with 403
// insufficient_scope.
func WithRequiredScopes(scopes ...string) Option {
	return func(m *Middleware) { m.scopes = append([]string(nil), scopes...) }
}

// New returns middleware verifying tokens with v.
func New(v TokenVerifier, opts ...Option) *Middleware {
	m := &Middleware{v: v, log: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(m)
	}
	if _, ok := m.log.Handler().(logctx.Handler); !ok {
		m.log = slog.New(logctx.Handler{Handler: m.log.Handler()})
	}
	return m
}

type tokenKey struct{}

// FromContext returns the verified token of the current request.
func FromContext(ctx context.Context) (*verifier.Token[verifier.DefaultClaims], bool) {
	tok, ok := ctx.Value(tokenKey{}).(*verifier.Token[verifier.DefaultClaims])
	return tok, ok
}

// WithToken returns ctx carrying tok, for handlers tested without the
// middleware in front of them.
func WithToken(ctx context.Context, tok *verifier.Token[verifier.DefaultClaims]) context.Context {
	return context.WithValue(ctx, tokenKey{}, tok)
}

// RequestID returns the id assigned to the current request.
func RequestID(ctx context.Context) string {
	if rd, ok := logctx.RequestDataFrom(ctx); ok {
		return rd.RequestID
	}
	return ""
}

// Wrap returns next guarded by the middleware.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := requestID(r)
		w.Header().Set(requestIDHeader, reqID)
		ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
			RequestID:  reqID,
			Method:     r.Method,
			UserAgent:  r.UserAgent(),
			RemoteAddr: r.RemoteAddr,
			Path:       r.URL.Path,
		})

		tok, ok := m.authenticate(ctx, w, r)
		if !ok {
			return
		}

		ctx = logctx.WithTokenData(ctx, &logctx.TokenData{
			Subject:  tok.Claims.Sub,
			ClientID: tok.Claims.Cid,
			KeyID:    tok.Header.Kid,
		})
		m.log.InfoContext(ctx, "auth.check.ok", slog.Duration("dur", time.Since(start)))
		next.ServeHTTP(w, r.WithContext(WithToken(ctx, tok)))
	})
}

func (m *Middleware) authenticate(ctx context.Context, w http.ResponseWriter, r *http.Request) (*verifier.Token[verifier.DefaultClaims], bool) {
	authHeader := r.Header.Get(authorizationHeader)
	if authHeader == "" {
		// No credentials: bare challenge without an error code (RFC 6750 §3.1).
		m.log.InfoContext(ctx, "auth.check.missing", slog.String("err", "no authorization header"))
		w.Header().Add(wwwAuthenticateHeader, buildBearerChallenge(m.realm, m.resourceMetadata, nil))
		writeJSONError(w, http.StatusUnauthorized, "", "authorization required")
		return nil, false
	}

	scheme, tok, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		m.reject(ctx, w, http.StatusBadRequest, "invalid_request", "malformed bearer authorization header")
		return nil, false
	}
	tok = strings.TrimSpace(tok)
	if tok == "" {
		m.reject(ctx, w, http.StatusBadRequest, "invalid_request", "empty bearer token")
		return nil, false
	}

	verified, err := m.v.Verify(tok)
	if err != nil {
		m.log.InfoContext(ctx, "auth.check.fail", slog.String("class", verifier.Class(err)), slog.String("err", err.Error()))
		m.reject(ctx, w, http.StatusUnauthorized, "invalid_token", "token rejected: "+verifier.Class(err))
		return nil, false
	}

	for _, s := range m.scopes {
		if !verified.Claims.HasScope(s) {
			desc := fmt.Sprintf("scope %q required", s)
			m.log.InfoContext(ctx, "auth.check.scope", slog.String("err", desc))
			w.Header().Add(wwwAuthenticateHeader, buildBearerChallenge(m.realm, m.resourceMetadata, map[string]string{
				"error":             "insufficient_scope",
				"error_description": desc,
				"scope":             strings.Join(m.scopes, " "),
			}))
			writeJSONError(w, http.StatusForbidden, "insufficient_scope", desc)
			return nil, false
		}
	}
	return verified, true
}

func (m *Middleware) reject(ctx context.Context, w http.ResponseWriter, status int, code, desc string) {
	if status == http.StatusBadRequest {
		m.log.InfoContext(ctx, "auth.check.invalid", slog.String("err", desc))
	}
	w.Header().Add(wwwAuthenticateHeader, buildBearerChallenge(m.realm, m.resourceMetadata, map[string]string{
		"error":             code,
		"error_description": desc,
	}))
	writeJSONError(w, status, code, desc)
}

// requestID reuses a well-formed incoming X-Request-Id or mints a new one.
func requestID(r *http.Request) string {
	if id, err := uuid.Parse(r.Header.Get(requestIDHeader)); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// writeJSONError emits {"error": code, "error_description": desc}. Must be
// called before the status is written.
func writeJSONError(w http.ResponseWriter, status int, code, desc string) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(status)
	body := map[string]string{"error_description": desc}
	if code != "" {
		body["error"] = code
	}
	_ = json.NewEncoder(w).Encode(body)
}

// buildBearerChallenge builds a Bearer challenge header value:
//
//	Bearer realm="<realm>", resource_metadata="<url>", error="...", error_description="..."
//
// Empty attributes are omitted. Params are emitted as error,
// error_description, scope; other keys are ignored.
func buildBearerChallenge(realm string, resourceMetadata string, params map[string]string) string {
	pieces := make([]string, 0, 2+len(params))
	esc := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace
	if realm != "" {
		pieces = append(pieces, fmt.Sprintf(`realm="%s"`, esc(realm)))
	}
	if resourceMetadata != "" {
		pieces = append(pieces, fmt.Sprintf(`resource_metadata="%s"`, esc(resourceMetadata)))
	}
	for _, k := range []string{"error", "error_description", "scope"} {
		if v, ok := params[k]; ok {
			pieces = append(pieces, fmt.Sprintf(`%s="%s"`, k, esc(v)))
		}
	}
	if len(pieces) == 0 {
		return "Bearer"
	}
	return "Bearer " + strings.Join(pieces, ", ")
}

// MetadataHandler serves the OAuth 2.0 protected resource metadata document
// for resource, naming issuer as its authorization server.
func MetadataHandler(resource, issuer, jwksURI string, scopes ...string) http.Handler {
	doc := wellknown.NewProtectedResourceMetadata(resource, issuer, jwksURI)
	doc.ScopesSupported = scopes
	doc.ResourceSigningAlgValuesSupported = []string{"RS256"}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")
			w.Header().Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Content-Type", jsonMediaType.String())
		if err := json.NewEncoder(w).Encode(doc); err != nil {
			http.Error(w, fmt.Sprintf("failed to encode protected resource metadata: %v", err), http.StatusInternalServerError)
		}
	})
}

// MetadataPath is where MetadataHandler is conventionally mounted.
const MetadataPath = wellknown.ProtectedResourceMetadataPath
