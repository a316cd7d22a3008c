// Package config loads process configuration for the jwtverify command from
// the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Config holds settings shared by every jwtverify subcommand.
type Config struct {
	// Issuer is the authorization server, e.g. https://example.okta.com/oauth2/default.
	Issuer string `env:"ISSUER" yaml:"issuer" validate:"required,url"`
	// KeysEndpoint is appended to Issuer to locate the keys document.
	KeysEndpoint string `env:"KEYS_ENDPOINT,default=/v1/keys" yaml:"keys_endpoint" validate:"required"`
	// Discover resolves KeysEndpoint through OpenID Connect discovery.
	Discover bool `env:"DISCOVER,default=false" yaml:"discover"`

	ClientID     string        `env:"CLIENT_ID" yaml:"client_id"`
	ClientSecret string        `env:"CLIENT_SECRET" yaml:"client_secret" secret:"true"`
	Audience     []string      `env:"AUDIENCE" yaml:"audience"`
	Leeway       time.Duration `env:"LEEWAY,default=120s" yaml:"leeway" validate:"gte=0"`

	// RedisAddr enables the shared key cache when set.
	RedisAddr      string `env:"REDIS_ADDR" yaml:"redis_addr"`
	CacheKeyPrefix string `env:"CACHE_KEY_PREFIX,default=okta-jwt:" yaml:"cache_key_prefix"`

	ListenAddr string `env:"LISTEN_ADDR,default=:8080" yaml:"listen_addr" validate:"required"`
	LogLevel   string `env:"LOG_LEVEL,default=INFO" yaml:"log_level" validate:"oneof=DEBUG INFO WARN ERROR"`
}

var validate = validator.New()

// Load decodes the environment. It does not validate, so that flags can
// fill in what the environment leaves out; call Validate afterwards.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}
	cfg.LogLevel = strings.ToUpper(cfg.LogLevel)
	return &cfg, nil
}

// MergeFile overlays the YAML document at path onto c. Keys absent from the
// file keep their current value.
func (c *Config) MergeFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.LogLevel = strings.ToUpper(c.LogLevel)
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Level returns the slog level named by LogLevel, defaulting to INFO.
func (c *Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// String returns a string representation of the config with secret fields redacted.
func (c *Config) String() string {
	v := reflect.ValueOf(*c)
	t := v.Type()
	var sb strings.Builder
	sb.WriteString("Config{")
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		value := fmt.Sprintf("%v", v.Field(i).Interface())
		if field.Tag.Get("secret") == "true" && value != "" {
			value = "***REDACTED***"
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(field.Name + ": " + value)
	}
	sb.WriteString("}")
	return sb.String()
}

// LogValue implements slog.LogValuer so configs never leak secrets into logs.
func (c *Config) LogValue() slog.Value {
	return slog.StringValue(c.String())
}
