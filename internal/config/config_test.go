package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "vault.toml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestDefault(t *testing.T) {
	c := Default()
	require.Equal(t, ":8443", c.Addr)
	require.Equal(t, StorageMemory, c.Storage)
	require.Equal(t, 15*time.Minute, c.Limiter.Window.Duration)
	require.True(t, c.LimiterEnabled())
	require.Error(t, c.Validate(), "defaults lack jwt key and verifier")
}

func TestLoad_FlagsOnly(t *testing.T) {
	c, err := Load([]string{"-jwt-key", "k", "-verifier", "0xV", "-attesters", "aa, bb,", "-plaintext"})
	require.NoError(t, err)
	require.Equal(t, "k", c.JWTKey)
	require.Equal(t, "0xV", c.Verifier)
	require.Equal(t, []string{"aa", "bb"}, c.Attesters)
	require.True(t, c.Plaintext)
}

func TestLoad_FileThenFlags(t *testing.T) {
	path := writeTOML(t, `
addr = ":9000"
storage = "postgres"
dsn = "postgres://u:p@db/vault"
jwt_key = "from-file"
verifier = "0xfeed"
attesters = ["11", "22"]
log_level = "debug"

[limiter]
max_fails = 3
window = "1m"
block_for = "2h"

[report]
sink = "s3"
s3_bucket = "audits"
age_recipients = ["age1xyz"]
`)
	c, err := Load([]string{"-config", path, "-addr", ":7000", "-limiter-max-fails", "9"})
	require.NoError(t, err)

	require.Equal(t, ":7000", c.Addr, "flags override file")
	require.Equal(t, StoragePostgres, c.Storage)
	require.Equal(t, "from-file", c.JWTKey)
	require.Equal(t, []string{"11", "22"}, c.Attesters)
	require.Equal(t, "debug", c.LogLevel)
	require.Equal(t, 9, c.Limiter.MaxFails)
	require.Equal(t, time.Minute, c.Limiter.Window.Duration)
	require.Equal(t, 2*time.Hour, c.Limiter.BlockFor.Duration)
	require.Equal(t, SinkS3, c.Report.Sink)
	require.Equal(t, "audits", c.Report.S3Bucket)
	require.Equal(t, []string{"age1xyz"}, c.Report.AgeRecipients)
	require.Equal(t, "reports", c.Report.Dir, "unset keys keep defaults")
}

func TestLoad_ConfigEqualsForm(t *testing.T) {
	path := writeTOML(t, "jwt_key = \"k\"\nverifier = \"v\"\n")
	c, err := Load([]string{"--config=" + path})
	require.NoError(t, err)
	require.Equal(t, "k", c.JWTKey)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load([]string{"-config", filepath.Join(t.TempDir(), "missing.toml")})
	require.Error(t, err)

	bad := writeTOML(t, "addr = [")
	_, err = Load([]string{"-config", bad})
	require.Error(t, err)

	badDur := writeTOML(t, "[limiter]\nwindow = \"soon\"\n")
	_, err = Load([]string{"-config", badDur})
	require.Error(t, err)

	_, err = Load([]string{"-no-such-flag"})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.JWTKey, c.Verifier = "k", "0xV"
		return c
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(c *Config){
		"no jwt key":       func(c *Config) { c.JWTKey = "" },
		"no verifier":      func(c *Config) { c.Verifier = " " },
		"bad storage":      func(c *Config) { c.Storage = "sqlite" },
		"postgres w/o dsn": func(c *Config) { c.Storage = StoragePostgres },
		"bad sink":         func(c *Config) { c.Report.Sink = "ftp" },
		"s3 w/o bucket":    func(c *Config) { c.Report.Sink = SinkS3 },
		"file w/o dir":     func(c *Config) { c.Report.Sink, c.Report.Dir = SinkFile, "" },
		"negative buffer":  func(c *Config) { c.EventBuffer = -1 },
	}
	for name, mutate := range cases {
		c := valid()
		mutate(c)
		require.Error(t, c.Validate(), name)
	}

	c := valid()
	c.Storage, c.DSN = StoragePostgres, "postgres://x"
	require.NoError(t, c.Validate())
}
