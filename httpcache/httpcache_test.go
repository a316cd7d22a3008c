package httpcache

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/ggoodman/okta-jwt-verifier-go/jwks"
	"github.com/ggoodman/okta-jwt-verifier-go/storage"
	"github.com/ggoodman/okta-jwt-verifier-go/storage/memory"
	"github.com/ggoodman/okta-jwt-verifier-go/verifiertest"
)

func newStore(t *testing.T) *memory.Storage {
	t.Helper()
	s, err := memory.New(16, 0)
	if err != nil {
		t.Fatalf("memory.New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func get(t *testing.T, c *http.Client, url string) *http.Response {
	t.Helper()
	res, err := c.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	if _, err := io.ReadAll(res.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	_ = res.Body.Close()
	return res
}

func TestTransport_CachesFreshResponses(t *testing.T) {
	iss := verifiertest.NewIssuer(t)
	iss.AddKey(t, "k1")
	iss.SetCacheControl("max-age=300, must-revalidate")

	tr := New(newStore(t), WithTransport(iss.Client().Transport))
	client := tr.Client()

	first := get(t, client, iss.KeysURL())
	if first.Header.Get(HeaderCache) != "MISS" {
		t.Fatalf("first response should be a miss, got %q", first.Header.Get(HeaderCache))
	}
	second := get(t, client, iss.KeysURL())
	if second.Header.Get(HeaderCache) != "HIT" {
		t.Fatalf("second response should be a hit, got %q", second.Header.Get(HeaderCache))
	}
	if second.StatusCode != http.StatusOK {
		t.Fatalf("cached status = %d", second.StatusCode)
	}
	if iss.KeyHits() != 1 {
		t.Fatalf("want one upstream request, got %d", iss.KeyHits())
	}
}

func TestTransport_KeySetSurvivesAcrossFetches(t *testing.T) {
	iss := verifiertest.NewIssuer(t)
	iss.AddKey(t, "k1")
	iss.SetCacheControl("max-age=300")

	store := newStore(t)
	for i := 0; i < 3; i++ {
		// A fresh transport over the same store behaves like a restarted process.
		client := New(store, WithTransport(iss.Client().Transport)).Client()
		set, err := jwks.Fetch(context.Background(), jwks.HTTPFetcher{Client: client}, iss.URL(), verifiertest.KeysEndpoint)
		if err != nil {
			t.Fatalf("fetch %d: %v", i, err)
		}
		if _, ok := set.Lookup("k1"); !ok {
			t.Fatalf("fetch %d: missing k1", i)
		}
	}
	if iss.KeyHits() != 1 {
		t.Fatalf("want one upstream request, got %d", iss.KeyHits())
	}
}

func TestTransport_DoesNotCache(t *testing.T) {
	tests := []struct {
		name   string
		cc     string
		status int
	}{
		{name: "no cache-control"},
		{name: "no-store", cc: "no-store"},
		{name: "no-cache", cc: "no-cache, max-age=300"},
		{name: "private", cc: "private, max-age=300"},
		{name: "zero max-age", cc: "max-age=0"},
		{name: "error status", cc: "max-age=300", status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iss := verifiertest.NewIssuer(t)
			iss.SetCacheControl(tt.cc)
			iss.SetStatus(tt.status)

			client := New(newStore(t), WithTransport(iss.Client().Transport)).Client()
			get(t, client, iss.KeysURL())
			res := get(t, client, iss.KeysURL())
			if res.Header.Get(HeaderCache) == "HIT" {
				t.Fatalf("response should not be cached")
			}
			if iss.KeyHits() != 2 {
				t.Fatalf("want two upstream requests, got %d", iss.KeyHits())
			}
		})
	}
}

type failingStore struct {
	sets int
}

func (f *failingStore) Get(context.Context, string, ...storage.Option) (*storage.Item, error) {
	return nil, errors.New("backend down")
}

func (f *failingStore) Set(context.Context, string, []byte, ...storage.Option) error {
	f.sets++
	return errors.New("backend down")
}

func (f *failingStore) Delete(context.Context, string, ...storage.Option) error { return nil }
func (f *failingStore) Close() error                                          { return nil }

func TestTransport_StorageFailureIsAMiss(t *testing.T) {
	iss := verifiertest.NewIssuer(t)
	iss.AddKey(t, "k1")
	iss.SetCacheControl("max-age=300")

	store := &failingStore{}
	client := New(store, WithTransport(iss.Client().Transport)).Client()
	for i := 0; i < 2; i++ {
		if res := get(t, client, iss.KeysURL()); res.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", res.StatusCode)
		}
	}
	if iss.KeyHits() != 2 || store.sets != 2 {
		t.Fatalf("want two upstream requests and two store attempts, got %d and %d", iss.KeyHits(), store.sets)
	}
}

func TestFreshness(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		headers map[string]string
		want    time.Duration
		ok      bool
	}{
		{name: "max-age", headers: map[string]string{"Cache-Control": "max-age=600"}, want: 10 * time.Minute, ok: true},
		{name: "max-age minus age", headers: map[string]string{"Cache-Control": "max-age=600", "Age": "100"}, want: 500 * time.Second, ok: true},
		{name: "age exceeds max-age", headers: map[string]string{"Cache-Control": "max-age=60", "Age": "100"}},
		{name: "expires relative to date", headers: map[string]string{
			"Expires": now.Add(time.Hour).Format(http.TimeFormat),
			"Date":    now.Format(http.TimeFormat),
		}, want: time.Hour, ok: true},
		{name: "expires relative to now", headers: map[string]string{"Expires": now.Add(30 * time.Minute).Format(http.TimeFormat)}, want: 30 * time.Minute, ok: true},
		{name: "expires in the past", headers: map[string]string{"Expires": now.Add(-time.Minute).Format(http.TimeFormat)}},
		{name: "zero max-age overrides expires", headers: map[string]string{
			"Cache-Control": "max-age=0",
			"Expires":       now.Add(time.Hour).Format(http.TimeFormat),
		}},
		{name: "max-age overrides later expires", headers: map[string]string{
			"Cache-Control": "max-age=60",
			"Expires":       now.Add(time.Hour).Format(http.TimeFormat),
		}, want: time.Minute, ok: true},
		{name: "invalid expires", headers: map[string]string{"Expires": "0"}},
		{name: "malformed cache-control", headers: map[string]string{"Cache-Control": `max-age="60"`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &http.Response{StatusCode: http.StatusOK, Header: http.Header{}}
			for k, v := range tt.headers {
				res.Header.Set(k, v)
			}
			got, ok := freshness(res, now)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("freshness = %v, %v; want %v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestTransport_PassesThroughNonGET(t *testing.T) {
	iss := verifiertest.NewIssuer(t)
	iss.SetCacheControl("max-age=300")
	client := New(newStore(t), WithTransport(iss.Client().Transport)).Client()

	for i := 0; i < 2; i++ {
		res, err := client.Post(iss.KeysURL(), "application/json", nil)
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		_ = res.Body.Close()
		if res.Header.Get(HeaderCache) != "" {
			t.Fatalf("non-GET requests must bypass the cache")
		}
	}
	if iss.KeyHits() != 2 {
		t.Fatalf("want two upstream requests, got %d", iss.KeyHits())
	}
}
