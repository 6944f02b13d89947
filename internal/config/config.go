// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

// Package config loads Warden configuration from defaults, a YAML file,
// command-line flags, and secret environment variables, in that order.
package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/gobwas/glob"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/wardenid/warden/internal/auth"
	"github.com/wardenid/warden/internal/xdg"
)

// Mail transports.
const (
	TransportSMTP  = "smtp"
	TransportQueue = "queue"
	TransportLog   = "log"
)

// Config is the complete service configuration.
type Config struct {
	HTTP      HTTPConfig      `koanf:"http"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Database  DatabaseConfig  `koanf:"database"`
	Auth      AuthConfig      `koanf:"auth"`
	Mail      MailConfig      `koanf:"mail"`
	Redis     RedisConfig     `koanf:"redis"`
	Log       LogConfig       `koanf:"log"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `koanf:"addr"`
	// PublicURL, when set, is the base of password reset links.
	PublicURL string `koanf:"public_url"`
	// TrustedHosts are host globs accepted when PublicURL is empty.
	TrustedHosts    []string      `koanf:"trusted_hosts"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// TrustedProxies are the peer addresses or CIDRs whose forwarded client
	// address headers are honoured. Empty means the TCP peer is the client.
	TrustedProxies []string `koanf:"trusted_proxies"`
	// DevMode relaxes security headers and allows the log mail transport.
	DevMode bool `koanf:"dev_mode"`
}

// MetricsConfig configures the observability listener.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig configures PostgreSQL.
type DatabaseConfig struct {
	URL             string `koanf:"url"`
	ConnectAttempts uint64 `koanf:"connect_attempts"`
}

// AuthConfig configures credentials.
type AuthConfig struct {
	SessionSecret      string        `koanf:"session_secret"`
	SessionTTL         time.Duration `koanf:"session_ttl"`
	BcryptCost         int           `koanf:"bcrypt_cost"`
	ResetPurgeInterval time.Duration `koanf:"reset_purge_interval"`
}

// MailConfig configures outgoing mail.
type MailConfig struct {
	Transport           string     `koanf:"transport"`
	From                string     `koanf:"from"`
	RecoverySubject     string     `koanf:"recovery_subject"`
	ConfirmationSubject string     `koanf:"confirmation_subject"`
	SMTP                SMTPConfig `koanf:"smtp"`
	WorkerConcurrency   int        `koanf:"worker_concurrency"`
}

// SMTPConfig configures the SMTP relay.
type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	StartTLS bool   `koanf:"starttls"`
}

// RedisConfig locates the mail queue.
type RedisConfig struct {
	URL string `koanf:"url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// RateLimitConfig limits /signin and /recovery per client IP.
type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	d := auth.DefaultResetMailConfig()
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			TrustedHosts:    []string{"localhost", "127.0.0.1"},
			ShutdownTimeout: 10 * time.Second,
		},
		Metrics:  MetricsConfig{Addr: "127.0.0.1:9100"},
		Database: DatabaseConfig{ConnectAttempts: 8},
		Auth: AuthConfig{
			SessionTTL:         auth.SessionTokenExpiry,
			BcryptCost:         auth.DefaultHashCost,
			ResetPurgeInterval: time.Hour,
		},
		Mail: MailConfig{
			Transport:           TransportSMTP,
			From:                d.From,
			RecoverySubject:     d.RecoverySubject,
			ConfirmationSubject: d.ConfirmationSubject,
			SMTP:                SMTPConfig{Port: 587, StartTLS: true},
			WorkerConcurrency:   4,
		},
		Redis:     RedisConfig{URL: "redis://localhost:6379/0"},
		Log:       LogConfig{Format: "json", Level: "info"},
		RateLimit: RateLimitConfig{Requests: 10, Window: time.Minute},
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"addr":           "http.addr",
	"public-url":     "http.public_url",
	"trusted-host":   "http.trusted_hosts",
	"trusted-proxy":  "http.trusted_proxies",
	"dev":            "http.dev_mode",
	"metrics-addr":   "metrics.addr",
	"database-url":   "database.url",
	"mail-transport": "mail.transport",
	"redis-url":      "redis.url",
	"log-format":     "log.format",
	"log-level":      "log.level",
}

// envKeys maps secret environment variables to configuration keys.
var envKeys = map[string]string{
	"DATABASE_URL":          "database.url",
	"WARDEN_SESSION_SECRET": "auth.session_secret",
	"WARDEN_SMTP_PASSWORD":  "mail.smtp.password",
	"WARDEN_REDIS_URL":      "redis.url",
}

// RegisterFlags adds the overridable settings to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Defaults()
	flags.String("addr", d.HTTP.Addr, "API listen address")
	flags.String("public-url", d.HTTP.PublicURL, "base URL for password reset links")
	flags.StringSlice("trusted-host", d.HTTP.TrustedHosts, "host glob accepted when deriving reset links (repeatable)")
	flags.StringSlice("trusted-proxy", d.HTTP.TrustedProxies, "proxy address or CIDR whose X-Forwarded-For is honoured (repeatable)")
	flags.Bool("dev", d.HTTP.DevMode, "development mode: relaxed security headers, log mail transport allowed")
	flags.String("metrics-addr", d.Metrics.Addr, "metrics and health listen address")
	flags.String("database-url", "", "PostgreSQL URL (prefer DATABASE_URL)")
	flags.String("mail-transport", d.Mail.Transport, "mail transport: smtp, queue, or log")
	flags.String("redis-url", d.Redis.URL, "Redis URL for the mail queue")
	flags.String("log-format", d.Log.Format, "log format: json or text")
	flags.String("log-level", d.Log.Level, "log level: debug, info, warn, or error")
}

// Load builds a Config. path names a YAML file; when empty the XDG default
// is used if it exists. flags may be nil; only flags the user set override
// file values.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		if p, err := xdg.ConfigFile(); err == nil {
			path = p
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
			}
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	for env, key := range envKeys {
		if v, ok := os.LookupEnv(env); ok && v != "" {
			if err := k.Set(key, v); err != nil {
				return nil, oops.Code("CONFIG_LOAD_FAILED").With("env", env).Wrap(err)
			}
		}
	}

	cfg := Defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "unmarshal").Wrap(err)
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail at first use.
// Database and mail settings are checked by the commands that need them.
func (c *Config) Validate() error {
	if len(c.Auth.SessionSecret) < auth.MinSessionSecretBytes {
		return oops.Code("CONFIG_INVALID").
			With("field", "auth.session_secret").
			Errorf("session secret must be at least %d bytes (set WARDEN_SESSION_SECRET)", auth.MinSessionSecretBytes)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			With("field", "log.format").
			Errorf("log format must be json or text, got %q", c.Log.Format)
	}
	switch c.Mail.Transport {
	case TransportSMTP, TransportQueue, TransportLog:
	default:
		return oops.Code("CONFIG_INVALID").
			With("field", "mail.transport").
			Errorf("mail transport must be smtp, queue, or log, got %q", c.Mail.Transport)
	}
	if c.Mail.Transport == TransportLog && !c.HTTP.DevMode {
		return oops.Code("CONFIG_INVALID").
			With("field", "mail.transport").
			Errorf("log mail transport writes reset links to the log and requires dev mode")
	}
	for _, pattern := range c.HTTP.TrustedHosts {
		if _, err := glob.Compile(pattern, '.'); err != nil {
			return oops.Code("CONFIG_INVALID").
				With("field", "http.trusted_hosts").
				With("pattern", pattern).
				Wrap(err)
		}
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return oops.Code("CONFIG_INVALID").
			With("field", "rate_limit").
			Errorf("rate limit requests and window must be positive")
	}
	return nil
}

// RequireDatabase checks that a database URL is configured.
func (c *Config) RequireDatabase() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			With("field", "database.url").
			Errorf("database url is required (set DATABASE_URL)")
	}
	return nil
}
