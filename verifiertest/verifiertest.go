// Package verifiertest provides a mock authorization server and signing
// helpers for tests that exercise token verification end to end.
package verifiertest

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ggoodman/okta-jwt-verifier-go/jwks"
	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

// IssuerPath is the path under which the mock issuer lives, mirroring an
// Okta custom authorization server.
const IssuerPath = "/oauth2/default"

// KeysEndpoint is the keys path relative to the issuer.
const KeysEndpoint = "/v1/keys"

// Issuer is an httptest-backed authorization server that publishes a JWKS
// document and an OpenID Connect discovery document.
type Issuer struct {
	srv    *httptest.Server
	issuer string

	mu           sync.Mutex
	order        []string
	keys         map[string]*rsa.PrivateKey
	document     []byte
	cacheControl string
	status       int

	keyHits atomic.Int64
}

// NewIssuer starts a mock issuer with no keys. It is closed via t.Cleanup.
func NewIssuer(t testing.TB) *Issuer {
	t.Helper()
	iss := &Issuer{keys: map[string]*rsa.PrivateKey{}}
	mux := http.NewServeMux()
	mux.HandleFunc(IssuerPath+"/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                   iss.issuer,
			"jwks_uri":                 iss.issuer + KeysEndpoint,
			"authorization_endpoint":   iss.issuer + "/v1/authorize",
			"token_endpoint":           iss.issuer + "/v1/token",
			"response_types_supported": []string{"code"},
		})
	})
	mux.HandleFunc(IssuerPath+KeysEndpoint, iss.serveKeys)
	iss.srv = httptest.NewServer(mux)
	iss.issuer = iss.srv.URL + IssuerPath
	t.Cleanup(iss.srv.Close)
	return iss
}

func (i *Issuer) serveKeys(w http.ResponseWriter, r *http.Request) {
	i.keyHits.Add(1)
	i.mu.Lock()
	status, cc := i.status, i.cacheControl
	body := i.document
	if body == nil {
		body = i.marshalKeysLocked()
	}
	i.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if cc != "" {
		w.Header().Set("Cache-Control", cc)
	}
	if status != 0 {
		w.WriteHeader(status)
	}
	_, _ = w.Write(body)
}

func (i *Issuer) marshalKeysLocked() []byte {
	set := struct {
		Keys []jose.JSONWebKey `json:"keys"`
	}{Keys: []jose.JSONWebKey{}}
	for _, kid := range i.order {
		set.Keys = append(set.Keys, jose.JSONWebKey{Key: &i.keys[kid].PublicKey, KeyID: kid, Algorithm: "RS256", Use: "sig"})
	}
	b, _ := json.Marshal(set)
	return b
}

// URL returns the issuer identifier, e.g. http://127.0.0.1:1234/oauth2/default.
func (i *Issuer) URL() string { return i.issuer }

// KeysURL returns the absolute URL of the JWKS document.
func (i *Issuer) KeysURL() string { return i.issuer + KeysEndpoint }

// Client returns an HTTP client that talks to the mock server.
func (i *Issuer) Client() *http.Client { return i.srv.Client() }

// KeyHits reports how many times the JWKS document has been requested.
func (i *Issuer) KeyHits() int { return int(i.keyHits.Load()) }

// AddKey generates and publishes a new RSA key under kid.
func (i *Issuer) AddKey(t testing.TB, kid string) *rsa.PrivateKey {
	t.Helper()
	pk := GenerateKey(t)
	i.PublishKey(kid, pk)
	return pk
}

// PublishKey publishes pk under kid, replacing any key with the same kid.
func (i *Issuer) PublishKey(kid string, pk *rsa.PrivateKey) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, ok := i.keys[kid]; !ok {
		i.order = append(i.order, kid)
	}
	i.keys[kid] = pk
}

// RemoveKey stops publishing kid.
func (i *Issuer) RemoveKey(kid string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.keys, kid)
	for n, k := range i.order {
		if k == kid {
			i.order = append(i.order[:n], i.order[n+1:]...)
			break
		}
	}
}

// SetDocument overrides the JWKS response body. Nil restores the generated one.
func (i *Issuer) SetDocument(body []byte) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.document = body
}

// SetStatus overrides the JWKS response status. Zero restores 200.
func (i *Issuer) SetStatus(code int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.status = code
}

// SetCacheControl sets the Cache-Control header on JWKS responses.
func (i *Issuer) SetCacheControl(v string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.cacheControl = v
}

// Sign signs claims with the key published under kid.
func (i *Issuer) Sign(t testing.TB, kid string, claims jwt.MapClaims) string {
	t.Helper()
	i.mu.Lock()
	pk, ok := i.keys[kid]
	i.mu.Unlock()
	if !ok {
		t.Fatalf("verifiertest: no key %q", kid)
	}
	return SignToken(t, pk, kid, claims)
}

// Claims returns a valid claim set for sub: issued now, expiring in an hour.
func (i *Issuer) Claims(sub string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss": i.issuer,
		"sub": sub,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
}

var (
	sharedOnce sync.Once
	sharedKey  *rsa.PrivateKey
	sharedErr  error
)

// GenerateKey returns a 2048-bit RSA key.
func GenerateKey(t testing.TB) *rsa.PrivateKey {
	t.Helper()
	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	return pk
}

// SharedKey returns a process-wide RSA key for tests that do not care about
// key identity.
func SharedKey(t testing.TB) *rsa.PrivateKey {
	t.Helper()
	sharedOnce.Do(func() { sharedKey, sharedErr = rsa.GenerateKey(rand.Reader, 2048) })
	if sharedErr != nil {
		t.Fatalf("gen key: %v", sharedErr)
	}
	return sharedKey
}

// SignToken signs claims with RS256 and sets kid in the header. An empty
// kid leaves the header without one.
func SignToken(t testing.TB, pk *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	s, err := tok.SignedString(pk)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

// PublicJWK returns the public half of pk as a JWK.
func PublicJWK(t testing.TB, pk *rsa.PrivateKey, kid string) jwks.JWK {
	t.Helper()
	b, err := jose.JSONWebKey{Key: &pk.PublicKey, KeyID: kid, Algorithm: "RS256", Use: "sig"}.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal jwk: %v", err)
	}
	var k jwks.JWK
	if err := json.Unmarshal(b, &k); err != nil {
		t.Fatalf("unmarshal jwk: %v", err)
	}
	return k
}

// Document renders keys as a JWKS document.
func Document(t testing.TB, keys ...jwks.JWK) []byte {
	t.Helper()
	b, err := json.Marshal(map[string]any{"keys": keys})
	if err != nil {
		t.Fatalf("marshal jwks: %v", err)
	}
	return b
}

// StaticFetcher serves fixed documents by URL and records every request.
type StaticFetcher struct {
	mu        sync.Mutex
	documents map[string][]byte
	requested []string
}

// NewStaticFetcher returns a fetcher serving documents keyed by URL.
func NewStaticFetcher(documents map[string][]byte) *StaticFetcher {
	return &StaticFetcher{documents: documents}
}

func (f *StaticFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, url)
	body, ok := f.documents[url]
	if !ok {
		return nil, jwks.ErrNetwork
	}
	return body, nil
}

// Requested returns the URLs fetched so far.
func (f *StaticFetcher) Requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requested...)
}

var _ jwks.Fetcher = (*StaticFetcher)(nil)
