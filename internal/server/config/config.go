// Package config handles configuration for the server component:
// defaults, an optional YAML or JSON file, then command-line flags.
// Secrets are not part of it; see package keyring.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/dmitrijs2005/attachlink/internal/common"
)

const (
	BackendDiscord = "discord"
	BackendS3      = "s3"
)

// Config holds runtime settings for the attachlink server.
//
// Fields:
//   - ListenAddr: bind address of the HTTP server.
//   - Backend: blob store, "discord" or "s3".
//   - EnvFile: optional dotenv file with the secrets.
//   - MaxUploadSize: largest payload stored as a single blob; larger ones are segmented.
//   - MaxSegmentSize: upper bound for every segment.
//   - MaxRequestSize: largest accepted request body.
//   - UpstreamTimeout: per-call bound on refresh, fetch and upload.
//   - UploadConcurrency / FetchConcurrency: parallel segment transfers.
//   - CacheMaxAge: Cache-Control max-age for content without expiry.
//   - S3Buckets: one uploader per bucket when Backend is "s3".
type Config struct {
	ListenAddr        string
	LogLevel          string
	Backend           string
	EnvFile           string
	DiscordAPIBase    string
	DiscordCDNBase    string
	CompactIDs        bool
	MaxUploadSize     int64
	MaxSegmentSize    int64
	MaxRequestSize    int64
	UpstreamTimeout   time.Duration
	UploadConcurrency int
	FetchConcurrency  int
	ObfuscateImages   bool
	JPEGQuality       int
	CacheMaxAge       time.Duration
	CORSOrigins       []string
	S3Buckets         []string
	S3Region          string
	S3BaseEndpoint    string
	PresignExpiry     time.Duration
	ShutdownTimeout   time.Duration
}

// LoadDefaults populates Config with the production defaults.
func (c *Config) LoadDefaults() {
	c.ListenAddr = ":8000"
	c.LogLevel = "info"
	c.Backend = BackendDiscord
	c.EnvFile = ".env"
	c.DiscordAPIBase = "https://discord.com/api/v9"
	c.DiscordCDNBase = "https://cdn.discordapp.com"
	c.CompactIDs = true
	c.MaxUploadSize = common.MaxUploadSize
	c.MaxSegmentSize = common.MaxSegmentSize
	c.MaxRequestSize = 512 << 20
	c.UpstreamTimeout = 60 * time.Second
	c.UploadConcurrency = 1
	c.FetchConcurrency = 1
	c.ObfuscateImages = true
	c.JPEGQuality = 95
	c.CacheMaxAge = common.CacheMaxAgeSeconds * time.Second
	c.CORSOrigins = []string{"*"}
	c.S3Buckets = nil
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = ""
	c.PresignExpiry = 15 * time.Minute
	c.ShutdownTimeout = 10 * time.Second
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional config file and finally from command-line flags.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var ErrInvalidConfig = errors.New("invalid config")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// Validate reports every inconsistent setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	switch c.Backend {
	case BackendDiscord:
	case BackendS3:
		if len(c.S3Buckets) == 0 {
			result = multierror.Append(result, invalid("s3 backend needs at least one bucket"))
		}
	default:
		result = multierror.Append(result, invalid("unknown backend %q", c.Backend))
	}

	if c.MaxUploadSize <= 0 {
		result = multierror.Append(result, invalid("max upload size must be positive"))
	}
	if c.MaxSegmentSize <= 0 || c.MaxSegmentSize > c.MaxUploadSize {
		result = multierror.Append(result, invalid("max segment size must be positive and not above max upload size"))
	}
	if c.MaxRequestSize < c.MaxUploadSize {
		result = multierror.Append(result, invalid("max request size must not be below max upload size"))
	}
	if c.UploadConcurrency < 1 || c.FetchConcurrency < 1 {
		result = multierror.Append(result, invalid("concurrency must be at least 1"))
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		result = multierror.Append(result, invalid("jpeg quality must be within 1..100"))
	}
	if c.UpstreamTimeout < 0 {
		result = multierror.Append(result, invalid("upstream timeout must not be negative"))
	}

	return result.ErrorOrNil()
}
