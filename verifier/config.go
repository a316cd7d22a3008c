package verifier

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/creasty/defaults"
	"github.com/ggoodman/okta-jwt-verifier-go/jwks"
)

// DefaultKeysEndpoint is the keys path used when none is configured.
const DefaultKeysEndpoint = "/v1/keys"

// Config is the validation configuration of a Verifier. Start from
// DefaultConfig; the zero value disables the leeway entirely.
type Config struct {
	// KeysEndpoint is appended verbatim to the issuer to locate the JWKS.
	KeysEndpoint string `default:"/v1/keys"`
	// ClientID, when set, must equal the token's cid claim.
	ClientID string
	// Leeway is the clock skew tolerated on exp and nbf.
	Leeway time.Duration `default:"120s"`
	// Audience, when non-empty, must intersect the token's aud claim.
	Audience []string

	// Fetcher retrieves the keys document. Nil uses jwks.HTTPFetcher.
	Fetcher jwks.Fetcher
	// Logger receives key retrieval events. Nil discards them.
	Logger *slog.Logger
	// Now overrides the validation clock. Nil uses time.Now.
	Now func() time.Time
}

// DefaultConfig returns the defaults: keys at /v1/keys, 120s of leeway, no
// audience or client id checks.
func DefaultConfig() Config {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		panic("verifier: invalid config defaults: " + err.Error())
	}
	return cfg
}

func (c Config) clone() Config {
	c.Audience = append([]string(nil), c.Audience...)
	return c
}

// Option adjusts a Config before the Verifier is built.
type Option func(*Config)

// WithKeysEndpoint overrides the keys path appended to the issuer.
func WithKeysEndpoint(endpoint string) Option {
	return func(c *Config) { c.KeysEndpoint = endpoint }
}

// WithClientID requires the cid claim to equal id.
func WithClientID(id string) Option {
	return func(c *Config) { c.ClientID = id }
}

// WithLeeway sets clock skew tolerance for time-based claims.
func WithLeeway(d time.Duration) Option {
	return func(c *Config) { c.Leeway = d }
}

// WithAudience replaces the accepted audience set.
func WithAudience(aud ...string) Option {
	return func(c *Config) { c.Audience = append([]string(nil), aud...) }
}

// WithFetcher sets the keys document fetcher.
func WithFetcher(f jwks.Fetcher) Option {
	return func(c *Config) { c.Fetcher = f }
}

// WithHTTPClient fetches keys with client, e.g. one whose transport caches
// responses.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) { c.Fetcher = jwks.HTTPFetcher{Client: client} }
}

// WithLogger sets the logger for key retrieval events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithClock overrides the validation clock.
func WithClock(now func() time.Time) Option {
	return func(c *Config) { c.Now = now }
}
