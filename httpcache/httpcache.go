// Package httpcache provides an http.RoundTripper that keeps fresh GET
// responses in a storage.Storage, so key documents survive process restarts
// and can be shared between instances through Redis.
package httpcache

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"strconv"
	"strings"
	"time"

	"github.com/ggoodman/okta-jwt-verifier-go/storage"
	"github.com/lestrrat-go/httpcc"
)

const (
	// HeaderCache reports whether a response was served from the cache.
	HeaderCache = "X-Cache"

	// DefaultNamespace scopes cache entries inside the backing store.
	DefaultNamespace = "httpcache"
)

// Transport is a caching http.RoundTripper.
type Transport struct {
	store     storage.Storage
	next      http.RoundTripper
	log       *slog.Logger
	now       func() time.Time
	namespace string
}

// Option configures a Transport.
type Option func(*Transport)

// WithTransport sets the upstream round tripper. Defaults to
// http.DefaultTransport.
func WithTransport(rt http.RoundTripper) Option {
	return func(t *Transport) { t.next = rt }
}

// WithLogger sets the logger for cache events.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) { t.log = l }
}

// WithClock overrides the clock used to compute freshness.
func WithClock(now func() time.Time) Option {
	return func(t *Transport) { t.now = now }
}

// WithNamespace overrides the storage namespace of cache entries.
func WithNamespace(ns string) Option {
	return func(t *Transport) { t.namespace = ns }
}

// New returns a Transport caching into store.
func New(store storage.Storage, opts ...Option) *Transport {
	t := &Transport{
		store:     store,
		next:      http.DefaultTransport,
		log:       slog.New(slog.DiscardHandler),
		now:       time.Now,
		namespace: DefaultNamespace,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Client returns an http.Client using t.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet || req.Header.Get("Authorization") != "" {
		return t.next.RoundTrip(req)
	}

	ctx := req.Context()
	key := cacheKey(req)

	if res, ok := t.lookup(ctx, key, req); ok {
		t.log.DebugContext(ctx, "cache.hit", slog.String("url", req.URL.String()))
		return res, nil
	}

	res, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	res.Header.Set(HeaderCache, "MISS")

	ttl, ok := freshness(res, t.now())
	if !ok {
		return res, nil
	}

	dump, err := httputil.DumpResponse(res, true)
	if err != nil {
		t.log.WarnContext(ctx, "cache.dump.fail", slog.String("url", req.URL.String()), slog.String("err", err.Error()))
		return res, nil
	}
	if err := t.store.Set(ctx, key, dump, storage.WithNamespace(t.namespace), storage.WithTTL(ttl)); err != nil {
		t.log.WarnContext(ctx, "cache.set.fail", slog.String("url", req.URL.String()), slog.String("err", err.Error()))
	} else {
		t.log.DebugContext(ctx, "cache.store", slog.String("url", req.URL.String()), slog.Duration("ttl", ttl))
	}
	return res, nil
}

func (t *Transport) lookup(ctx context.Context, key string, req *http.Request) (*http.Response, bool) {
	item, err := t.store.Get(ctx, key, storage.WithNamespace(t.namespace))
	if err != nil {
		t.log.WarnContext(ctx, "cache.get.fail", slog.String("url", req.URL.String()), slog.String("err", err.Error()))
		return nil, false
	}
	if item == nil {
		return nil, false
	}
	res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(item.Data)), req)
	if err != nil {
		t.log.WarnContext(ctx, "cache.decode.fail", slog.String("url", req.URL.String()), slog.String("err", err.Error()))
		return nil, false
	}
	res.Header.Set(HeaderCache, "HIT")
	return res, true
}

func cacheKey(req *http.Request) string {
	return req.Method + " " + req.URL.String()
}

// freshness returns how long res may be served from the cache. Only 200
// responses with an explicit positive lifetime are cacheable.
func freshness(res *http.Response, now time.Time) (time.Duration, bool) {
	if res.StatusCode != http.StatusOK {
		return 0, false
	}

	var (
		lifetime  time.Duration
		hasMaxAge bool
	)
	if cc := res.Header.Get("Cache-Control"); cc != "" {
		tokens, err := httpcc.ParseResponseDirectives(cc)
		if err != nil {
			return 0, false
		}
		for _, tok := range tokens {
			switch strings.ToLower(tok.Name) {
			case httpcc.NoStore, httpcc.NoCache, httpcc.Private:
				return 0, false
			}
		}
		dir, err := httpcc.ParseResponse(cc)
		if err != nil {
			return 0, false
		}
		if maxAge, ok := dir.MaxAge(); ok {
			lifetime = time.Duration(maxAge) * time.Second
			hasMaxAge = true
		}
	}

	// Expires is ignored whenever max-age is present (RFC 9111 §5.3).
	if !hasMaxAge {
		exp, err := http.ParseTime(res.Header.Get("Expires"))
		if err != nil {
			return 0, false
		}
		base := now
		if date, err := http.ParseTime(res.Header.Get("Date")); err == nil {
			base = date
		}
		lifetime = exp.Sub(base)
	}

	if age, err := strconv.Atoi(res.Header.Get("Age")); err == nil && age > 0 {
		lifetime -= time.Duration(age) * time.Second
	}
	if lifetime <= 0 {
		return 0, false
	}
	return lifetime, true
}

// String describes the transport for diagnostics.
func (t *Transport) String() string {
	return fmt.Sprintf("httpcache(namespace=%s)", t.namespace)
}
