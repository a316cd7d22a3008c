package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ggoodman/okta-jwt-verifier-go/httpcache"
	"github.com/ggoodman/okta-jwt-verifier-go/internal/config"
	"github.com/ggoodman/okta-jwt-verifier-go/internal/logctx"
	"github.com/ggoodman/okta-jwt-verifier-go/jwks"
	"github.com/ggoodman/okta-jwt-verifier-go/storage"
	"github.com/ggoodman/okta-jwt-verifier-go/storage/memory"
	"github.com/ggoodman/okta-jwt-verifier-go/storage/redis"
	"github.com/ggoodman/okta-jwt-verifier-go/verifier"
	"github.com/spf13/cobra"
)

// httpTimeout bounds every request made to the issuer.
const httpTimeout = 10 * time.Second

// app is the state shared by subcommands once the root pre-run completes.
type app struct {
	cfg *config.Config
	log *slog.Logger

	// flag values, applied over the environment when set
	issuer       string
	keysEndpoint string
	clientID     string
	audience     []string
	leeway       time.Duration
	discover     bool
	redisAddr    string
	logLevel     string
	noCache      bool
	configFile   string
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "jwtverify",
		Short:         "Verify Okta access tokens",
		Long:          `jwtverify validates Okta-issued JWT access tokens against the issuer's published RSA keys.`,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configFile, "config", "", "YAML config file, overriding the environment")
	f.StringVar(&a.issuer, "issuer", "", "issuer URL (env ISSUER)")
	f.StringVar(&a.keysEndpoint, "keys-endpoint", "", "keys path appended to the issuer (env KEYS_ENDPOINT)")
	f.StringVar(&a.clientID, "client-id", "", "required cid claim / client id (env CLIENT_ID)")
	f.StringSliceVar(&a.audience, "audience", nil, "accepted audience, repeatable (env AUDIENCE, ';' separated)")
	f.DurationVar(&a.leeway, "leeway", 0, "clock skew tolerance (env LEEWAY)")
	f.BoolVar(&a.discover, "discover", false, "locate the keys endpoint with OpenID Connect discovery (env DISCOVER)")
	f.StringVar(&a.redisAddr, "redis-addr", "", "share cached keys through Redis (env REDIS_ADDR)")
	f.StringVar(&a.logLevel, "log-level", "", "DEBUG, INFO, WARN or ERROR (env LOG_LEVEL)")
	f.BoolVar(&a.noCache, "no-cache", false, "do not cache the keys document")

	root.AddCommand(
		newVerifyCmd(a),
		newKeysCmd(a),
		newTokenCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.configFile != "" {
		if err := cfg.MergeFile(a.configFile); err != nil {
			return err
		}
	}
	flags := cmd.Flags()
	if flags.Changed("issuer") {
		cfg.Issuer = a.issuer
	}
	if flags.Changed("keys-endpoint") {
		cfg.KeysEndpoint = a.keysEndpoint
	}
	if flags.Changed("client-id") {
		cfg.ClientID = a.clientID
	}
	if flags.Changed("audience") {
		cfg.Audience = a.audience
	}
	if flags.Changed("leeway") {
		cfg.Leeway = a.leeway
	}
	if flags.Changed("discover") {
		cfg.Discover = a.discover
	}
	if flags.Changed("redis-addr") {
		cfg.RedisAddr = a.redisAddr
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.log = newLogger(cmd.ErrOrStderr(), cfg.Level())
	a.log.Debug("config.load.ok", slog.Any("config", cfg))
	return nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(logctx.Handler{Handler: h})
}

// openStore returns the cache backend: Redis when configured, memory
// otherwise.
func (a *app) openStore(ctx context.Context) (storage.Storage, error) {
	if a.cfg.RedisAddr != "" {
		return redis.Dial(ctx, a.cfg.RedisAddr, a.cfg.CacheKeyPrefix)
	}
	return memory.New(64, memory.DefaultCleanupInterval)
}

// httpClient returns the client used to reach the issuer and a function
// releasing its cache.
func (a *app) httpClient(ctx context.Context) (*http.Client, func(), error) {
	base := &http.Client{Timeout: httpTimeout}
	if a.noCache {
		return base, func() {}, nil
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	tr := httpcache.New(store, httpcache.WithLogger(a.log))
	return &http.Client{Transport: tr, Timeout: base.Timeout}, func() { _ = store.Close() }, nil
}

// resolveKeysEndpoint resolves the keys path, running discovery when enabled.
func (a *app) resolveKeysEndpoint(ctx context.Context, client *http.Client) (string, error) {
	if !a.cfg.Discover {
		return a.cfg.KeysEndpoint, nil
	}
	endpoint, err := jwks.Discover(ctx, client, a.cfg.Issuer)
	if err != nil {
		return "", err
	}
	a.log.InfoContext(ctx, "jwks.discover.ok", slog.String("keys_endpoint", endpoint))
	return endpoint, nil
}

// newVerifier builds a Verifier from the resolved configuration.
func (a *app) newVerifier(ctx context.Context) (*verifier.Verifier, func(), error) {
	client, release, err := a.httpClient(ctx)
	if err != nil {
		return nil, nil, err
	}
	endpoint, err := a.resolveKeysEndpoint(ctx, client)
	if err != nil {
		release()
		return nil, nil, err
	}
	v, err := verifier.New(ctx, a.cfg.Issuer,
		verifier.WithHTTPClient(client),
		verifier.WithKeysEndpoint(endpoint),
		verifier.WithClientID(a.cfg.ClientID),
		verifier.WithAudience(a.cfg.Audience...),
		verifier.WithLeeway(a.cfg.Leeway),
		verifier.WithLogger(a.log),
	)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("%s: %w", verifier.Class(err), err)
	}
	return v, release, nil
}
