// Package config assembles server settings from defaults, an optional TOML
// file and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Report sinks.
const (
	SinkFile = "file"
	SinkS3   = "s3"
)

// Duration is a time.Duration read from TOML strings such as "15m".
type Duration struct{ time.Duration }

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Limiter configures invalid-proof throttling. MaxFails <= 0 disables it.
type Limiter struct {
	MaxFails int      `toml:"max_fails"`
	Window   Duration `toml:"window"`
	BlockFor Duration `toml:"block_for"`
}

// Report configures where audit reports are written. An empty Sink disables reports.
type Report struct {
	Sink          string   `toml:"sink"`
	Dir           string   `toml:"dir"`
	S3Bucket      string   `toml:"s3_bucket"`
	S3Prefix      string   `toml:"s3_prefix"`
	S3Region      string   `toml:"s3_region"`
	S3Endpoint    string   `toml:"s3_endpoint"`
	S3AccessKey   string   `toml:"s3_access_key"`
	S3SecretKey   string   `toml:"s3_secret_key"`
	AgeRecipients []string `toml:"age_recipients"`
}

// Config holds runtime settings for the ledger server.
type Config struct {
	Addr          string   `toml:"addr"`
	Storage       string   `toml:"storage"`
	DSN           string   `toml:"dsn"`
	JWTKey        string   `toml:"jwt_key"`
	Verifier      string   `toml:"verifier"`
	Attesters     []string `toml:"attesters"`
	TLSCert       string   `toml:"tls_cert"`
	TLSKey        string   `toml:"tls_key"`
	Plaintext     bool     `toml:"plaintext"`
	Dev           bool     `toml:"dev"`
	LogLevel      string   `toml:"log_level"`
	EventBuffer   int      `toml:"event_buffer"`
	DisclosureKey string   `toml:"disclosure_key"`

	Limiter Limiter `toml:"limiter"`
	Report  Report  `toml:"report"`
}

// Default returns development defaults. The jwt key and verifier have no default.
func Default() *Config {
	return &Config{
		Addr:        ":8443",
		Storage:     StorageMemory,
		TLSCert:     "cert.pem",
		TLSKey:      "key.pem",
		LogLevel:    "info",
		EventBuffer: 64,
		Limiter: Limiter{
			MaxFails: 5,
			Window:   Duration{15 * time.Minute},
			BlockFor: Duration{15 * time.Minute},
		},
		Report: Report{Dir: "reports"},
	}
}

// Load applies defaults, then the TOML file named by -config (if any), then flags.
func Load(args []string) (*Config, error) {
	cfg := Default()
	if path := configPath(args); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := cfg.parseFlags(args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configPath finds -config/--config in args without parsing the rest.
func configPath(args []string) string {
	for i, a := range args {
		name, val, hasVal := strings.Cut(strings.TrimLeft(a, "-"), "=")
		if !strings.HasPrefix(a, "-") || name != "config" {
			continue
		}
		if hasVal {
			return val
		}
		if i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func (c *Config) parseFlags(args []string) error {
	fs := flag.NewFlagSet("payroll-vault", flag.ContinueOnError)

	fs.String("config", "", "TOML config file")
	fs.StringVar(&c.Addr, "addr", c.Addr, "listen address")
	fs.StringVar(&c.Storage, "storage", c.Storage, "storage backend: memory|postgres")
	fs.StringVar(&c.DSN, "dsn", c.DSN, "PostgreSQL DSN")
	fs.StringVar(&c.JWTKey, "jwt-key", c.JWTKey, "HS256 signing key (required)")
	fs.StringVar(&c.Verifier, "verifier", c.Verifier, "verifier identity (required)")
	fs.Func("attesters", "comma-separated hex Ed25519 attester public keys", func(s string) error {
		c.Attesters = splitList(s)
		return nil
	})
	fs.StringVar(&c.TLSCert, "tls-cert", c.TLSCert, "TLS certificate (PEM)")
	fs.StringVar(&c.TLSKey, "tls-key", c.TLSKey, "TLS private key (PEM)")
	fs.BoolVar(&c.Plaintext, "plaintext", c.Plaintext, "serve without TLS (dev only)")
	fs.BoolVar(&c.Dev, "dev", c.Dev, "enable server reflection (dev only)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level")
	fs.IntVar(&c.EventBuffer, "event-buffer", c.EventBuffer, "per-subscriber event buffer")
	fs.StringVar(&c.DisclosureKey, "disclosure-key", c.DisclosureKey, "hex 32-byte key opening sealed amounts for the verifier")

	fs.IntVar(&c.Limiter.MaxFails, "limiter-max-fails", c.Limiter.MaxFails, "invalid proofs before blocking (0 disables)")
	fs.DurationVar(&c.Limiter.Window.Duration, "limiter-window", c.Limiter.Window.Duration, "failure counting window")
	fs.DurationVar(&c.Limiter.BlockFor.Duration, "limiter-block-for", c.Limiter.BlockFor.Duration, "block duration")

	fs.StringVar(&c.Report.Sink, "report-sink", c.Report.Sink, "audit report sink: file|s3 (empty disables)")
	fs.StringVar(&c.Report.Dir, "report-dir", c.Report.Dir, "directory for the file sink")
	fs.StringVar(&c.Report.S3Bucket, "report-s3-bucket", c.Report.S3Bucket, "S3 bucket")
	fs.StringVar(&c.Report.S3Prefix, "report-s3-prefix", c.Report.S3Prefix, "S3 key prefix")
	fs.StringVar(&c.Report.S3Region, "report-s3-region", c.Report.S3Region, "S3 region")
	fs.StringVar(&c.Report.S3Endpoint, "report-s3-endpoint", c.Report.S3Endpoint, "S3-compatible endpoint")
	fs.StringVar(&c.Report.S3AccessKey, "report-s3-access-key", c.Report.S3AccessKey, "S3 access key")
	fs.StringVar(&c.Report.S3SecretKey, "report-s3-secret-key", c.Report.S3SecretKey, "S3 secret key")
	fs.Func("report-age-recipients", "comma-separated age recipients for sealed reports", func(s string) error {
		c.Report.AgeRecipients = splitList(s)
		return nil
	})

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTKey == "" {
		errs = append(errs, errors.New("missing jwt signing key (jwt_key / -jwt-key)"))
	}
	if strings.TrimSpace(c.Verifier) == "" {
		errs = append(errs, errors.New("missing verifier identity (verifier / -verifier)"))
	}
	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.DSN == "" {
			errs = append(errs, errors.New("postgres storage requires a dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage %q", c.Storage))
	}
	switch c.Report.Sink {
	case "":
	case SinkFile:
		if c.Report.Dir == "" {
			errs = append(errs, errors.New("file report sink requires a dir"))
		}
	case SinkS3:
		if c.Report.S3Bucket == "" {
			errs = append(errs, errors.New("s3 report sink requires a bucket"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown report sink %q", c.Report.Sink))
	}
	if c.EventBuffer < 0 {
		errs = append(errs, errors.New("event_buffer must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// LimiterEnabled reports whether invalid-proof throttling is configured.
func (c *Config) LimiterEnabled() bool { return c.Limiter.MaxFails > 0 }
