// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenid/warden/pkg/errutil"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// isolate points XDG and secret env vars away from the developer's machine.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for env := range envKeys {
		t.Setenv(env, "")
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	isolate(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), *cfg)
	assert.Equal(t, TransportSMTP, cfg.Mail.Transport, "default transport must not log mail bodies")
	assert.Empty(t, cfg.HTTP.TrustedProxies)
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	isolate(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
}

func TestLoad_XDGFileIsUsed(t *testing.T) {
	isolate(t)
	dir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "warden")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("http:\n  addr: \":9999\"\n"), 0o600))

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	isolate(t)
	path := writeFile(t, strings.Join([]string{
		"http:",
		"  public_url: https://id.example.com",
		"  trusted_hosts: ['*.example.com']",
		"auth:",
		"  session_ttl: 2h",
		"  bcrypt_cost: 12",
		"mail:",
		"  transport: smtp",
		"  smtp:",
		"    host: mail.example.com",
		"    port: 2525",
		"rate_limit:",
		"  window: 30s",
	}, "\n"))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://id.example.com", cfg.HTTP.PublicURL)
	assert.Equal(t, []string{"*.example.com"}, cfg.HTTP.TrustedHosts)
	assert.Equal(t, 2*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, TransportSMTP, cfg.Mail.Transport)
	assert.Equal(t, "mail.example.com", cfg.Mail.SMTP.Host)
	assert.Equal(t, 2525, cfg.Mail.SMTP.Port)
	assert.True(t, cfg.Mail.SMTP.StartTLS, "unset keys keep defaults")
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, 10, cfg.RateLimit.Requests)
}

func TestLoad_FlagsOverrideFileOnlyWhenSet(t *testing.T) {
	isolate(t)
	path := writeFile(t, "http:\n  addr: \":7000\"\nlog:\n  format: text\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{
		"--addr", ":7001",
		"--trusted-host", "a.test", "--trusted-host", "b.test",
		"--trusted-proxy", "10.0.0.0/8",
	}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, ":7001", cfg.HTTP.Addr)
	assert.Equal(t, "text", cfg.Log.Format, "unset flag must not clobber file value")
	assert.Equal(t, []string{"a.test", "b.test"}, cfg.HTTP.TrustedHosts)
	assert.Equal(t, []string{"10.0.0.0/8"}, cfg.HTTP.TrustedProxies)
}

func TestLoad_EnvSecretsOverrideEverything(t *testing.T) {
	isolate(t)
	path := writeFile(t, "database:\n  url: postgres://file\nauth:\n  session_secret: from-file\n")
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("WARDEN_SESSION_SECRET", testSecret)
	t.Setenv("WARDEN_SMTP_PASSWORD", "hunter2")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"--database-url", "postgres://flag"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env", cfg.Database.URL)
	assert.Equal(t, testSecret, cfg.Auth.SessionSecret)
	assert.Equal(t, "hunter2", cfg.Mail.SMTP.Password)
}

func TestLoad_MalformedYAML(t *testing.T) {
	isolate(t)
	_, err := Load(writeFile(t, "http: [unclosed"), nil)
	errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		c := Defaults()
		c.Auth.SessionSecret = testSecret
		return &c
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"short secret", func(c *Config) { c.Auth.SessionSecret = "short" }, "auth.session_secret"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad transport", func(c *Config) { c.Mail.Transport = "pigeon" }, "mail.transport"},
		{"log transport outside dev mode", func(c *Config) { c.Mail.Transport = TransportLog }, "mail.transport"},
		{"bad host glob", func(c *Config) { c.HTTP.TrustedHosts = []string{"[unclosed"} }, "http.trusted_hosts"},
		{"zero rate limit", func(c *Config) { c.RateLimit.Requests = 0 }, "rate_limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
			errutil.AssertErrorContext(t, err, "field", tt.field)
		})
	}

	t.Run("log transport in dev mode", func(t *testing.T) {
		c := valid()
		c.Mail.Transport = TransportLog
		c.HTTP.DevMode = true
		assert.NoError(t, c.Validate())
	})
}

func TestConfig_RequireDatabase(t *testing.T) {
	c := Defaults()
	errutil.AssertErrorCode(t, c.RequireDatabase(), "CONFIG_INVALID")
	c.Database.URL = "postgres://db"
	require.NoError(t, c.RequireDatabase())
}
