package verifier

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/ggoodman/okta-jwt-verifier-go/jwks"
)

// Verifier validates tokens from one issuer against a frozen key set. It is
// safe for concurrent use; builder methods return copies.
type Verifier struct {
	issuer string
	cfg    Config
	keys   *jwks.KeySet
	log    *slog.Logger
}

// New fetches the issuer's keys and returns a Verifier configured by
// DefaultConfig and opts.
func New(ctx context.Context, issuer string, opts ...Option) (*Verifier, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewWithConfig(ctx, issuer, cfg)
}

// NewWithConfig fetches the issuer's keys once and returns a Verifier using
// cfg as given. An empty KeysEndpoint means DefaultKeysEndpoint. If the
// fetch fails no Verifier is returned.
func NewWithConfig(ctx context.Context, issuer string, cfg Config) (*Verifier, error) {
	if issuer == "" {
		return nil, errors.New("verifier: issuer is required")
	}
	cfg = cfg.clone()
	if cfg.KeysEndpoint == "" {
		cfg.KeysEndpoint = DefaultKeysEndpoint
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	start := time.Now()
	keys, err := jwks.Fetch(ctx, cfg.Fetcher, issuer, cfg.KeysEndpoint)
	if err != nil {
		log.ErrorContext(ctx, "jwks.fetch.fail",
			slog.String("url", jwks.URL(issuer, cfg.KeysEndpoint)),
			slog.String("err", err.Error()))
		return nil, err
	}
	log.InfoContext(ctx, "jwks.fetch.ok",
		slog.String("url", jwks.URL(issuer, cfg.KeysEndpoint)),
		slog.Int("keys", keys.Len()),
		slog.Duration("dur", time.Since(start)))

	return &Verifier{issuer: issuer, cfg: cfg, keys: keys, log: log}, nil
}

// Refresh fetches the issuer's keys again and returns a new Verifier with
// the same configuration. The receiver is left untouched and keeps working
// with its original keys.
func (v *Verifier) Refresh(ctx context.Context) (*Verifier, error) {
	return NewWithConfig(ctx, v.issuer, v.cfg)
}

// Issuer returns the issuer tokens must carry in iss.
func (v *Verifier) Issuer() string { return v.issuer }

// Keys returns the key set fetched at construction.
func (v *Verifier) Keys() *jwks.KeySet { return v.keys }

// Config returns a copy of the active configuration.
func (v *Verifier) Config() Config { return v.cfg.clone() }

// Leeway returns a copy of v tolerating d of clock skew.
func (v *Verifier) Leeway(d time.Duration) *Verifier {
	c := v.clone()
	c.cfg.Leeway = d
	return c
}

// Audience returns a copy of v accepting exactly aud. No arguments disables
// the audience check.
func (v *Verifier) Audience(aud ...string) *Verifier {
	c := v.clone()
	c.cfg.Audience = append([]string(nil), aud...)
	return c
}

// AddAudience returns a copy of v that also accepts aud.
func (v *Verifier) AddAudience(aud string) *Verifier {
	c := v.clone()
	if !slices.Contains(c.cfg.Audience, aud) {
		c.cfg.Audience = append(c.cfg.Audience, aud)
	}
	return c
}

// ClientID returns a copy of v requiring cid to equal id. An empty id
// disables the check.
func (v *Verifier) ClientID(id string) *Verifier {
	c := v.clone()
	c.cfg.ClientID = id
	return c
}

func (v *Verifier) clone() *Verifier {
	c := *v
	c.cfg = v.cfg.clone()
	return &c
}
