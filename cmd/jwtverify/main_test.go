package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ggoodman/okta-jwt-verifier-go/verifier"
	"github.com/ggoodman/okta-jwt-verifier-go/verifiertest"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVerifyCommand(t *testing.T) {
	iss := verifiertest.NewIssuer(t)
	iss.AddKey(t, "k1")
	tok := iss.Sign(t, "k1", iss.Claims("user-1"))

	out, err := run(t, "", "verify", "--issuer", iss.URL(), "--no-cache", tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	var got struct {
		Header verifier.Header        `json:"header"`
		Claims verifier.DefaultClaims `json:"claims"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if got.Claims.Sub != "user-1" || got.Header.Kid != "k1" {
		t.Fatalf("unexpected output: %s", out)
	}

	// Token on stdin, cached keys.
	out, err = run(t, "Bearer "+tok+"\n", "verify", "--issuer", iss.URL(), "--raw")
	if err != nil {
		t.Fatalf("verify from stdin: %v", err)
	}
	if !strings.Contains(out, `"sub": "user-1"`) {
		t.Fatalf("unexpected raw output: %s", out)
	}
}

func TestVerifyCommand_Failure(t *testing.T) {
	iss := verifiertest.NewIssuer(t)
	iss.AddKey(t, "k1")
	c := iss.Claims("user-1")
	c["iss"] = "https://elsewhere"
	tok := iss.Sign(t, "k1", c)

	_, err := run(t, "", "verify", "--issuer", iss.URL(), "--no-cache", tok)
	if err == nil || !strings.HasPrefix(err.Error(), "issuer_mismatch:") {
		t.Fatalf("want issuer_mismatch, got %v", err)
	}

	if _, err := run(t, "", "verify", "--issuer", iss.URL(), "--no-cache"); err == nil {
		t.Fatalf("expected error for missing token")
	}
	if _, err := run(t, "", "verify", "--issuer", "not a url", tok); err == nil {
		t.Fatalf("expected configuration error")
	}
}

func TestKeysCommand(t *testing.T) {
	iss := verifiertest.NewIssuer(t)
	iss.AddKey(t, "k2")
	iss.AddKey(t, "k1")

	out, err := run(t, "", "keys", "--issuer", iss.URL(), "--discover")
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[1], "k1") || !strings.HasPrefix(lines[2], "k2") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestTokenCommand(t *testing.T) {
	var gotAuth, gotGrant string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth2/default/v1/token" {
			http.NotFound(w, r)
			return
		}
		_ = r.ParseForm()
		gotAuth = r.Header.Get("Authorization")
		gotGrant = r.PostForm.Get("grant_type")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"at-123","token_type":"Bearer","expires_in":3600}`)
	}))
	defer srv.Close()

	t.Setenv("CLIENT_SECRET", "s3cret")
	out, err := run(t, "", "token", "--issuer", srv.URL+"/oauth2/default", "--client-id", "cid", "--scope", "read")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if strings.TrimSpace(out) != "at-123" {
		t.Fatalf("unexpected output %q", out)
	}
	if gotGrant != "client_credentials" || !strings.HasPrefix(gotAuth, "Basic ") {
		t.Fatalf("unexpected request: grant=%q auth=%q", gotGrant, gotAuth)
	}
}

func TestServeMux(t *testing.T) {
	iss := verifiertest.NewIssuer(t)
	iss.AddKey(t, "k1")
	v, err := verifier.New(context.Background(), iss.URL(), verifier.WithHTTPClient(iss.Client()))
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	mux := newServeMux(v, slog.New(slog.DiscardHandler), "http://api.test", iss.KeysURL(), nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("public route status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/protected", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("protected route without token: status = %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("WWW-Authenticate"), `resource_metadata="http://api.test/.well-known/oauth-protected-resource"`) {
		t.Fatalf("unexpected challenge %q", rec.Header().Get("WWW-Authenticate"))
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+iss.Sign(t, "k1", iss.Claims("user-1")))
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Hello, user-1!") {
		t.Fatalf("protected route: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.well-known/oauth-protected-resource", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), iss.URL()) {
		t.Fatalf("metadata route: %d %s", rec.Code, rec.Body.String())
	}
}
