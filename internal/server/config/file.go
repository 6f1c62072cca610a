package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dmitrijs2005/attachlink/internal/flagx"
	"github.com/dmitrijs2005/attachlink/internal/timex"
)

// FileConfig is the on-disk shape of Config. YAML is a superset of JSON,
// so either format loads. Durations accept "30s" or integer nanoseconds.
type FileConfig struct {
	ListenAddr        string         `yaml:"listen_addr"`
	LogLevel          string         `yaml:"log_level"`
	Backend           string         `yaml:"backend"`
	EnvFile           string         `yaml:"env_file"`
	DiscordAPIBase    string         `yaml:"discord_api_base"`
	DiscordCDNBase    string         `yaml:"discord_cdn_base"`
	CompactIDs        bool           `yaml:"compact_ids"`
	MaxUploadSize     int64          `yaml:"max_upload_size"`
	MaxSegmentSize    int64          `yaml:"max_segment_size"`
	MaxRequestSize    int64          `yaml:"max_request_size"`
	UpstreamTimeout   timex.Duration `yaml:"upstream_timeout"`
	UploadConcurrency int            `yaml:"upload_concurrency"`
	FetchConcurrency  int            `yaml:"fetch_concurrency"`
	ObfuscateImages   bool           `yaml:"obfuscate_images"`
	JPEGQuality       int            `yaml:"jpeg_quality"`
	CacheMaxAge       timex.Duration `yaml:"cache_max_age"`
	CORSOrigins       []string       `yaml:"cors_origins"`
	S3Buckets         []string       `yaml:"s3_buckets"`
	S3Region          string         `yaml:"s3_region"`
	S3BaseEndpoint    string         `yaml:"s3_base_endpoint"`
	PresignExpiry     timex.Duration `yaml:"presign_expiry"`
	ShutdownTimeout   timex.Duration `yaml:"shutdown_timeout"`
}

func toFile(c *Config) FileConfig {
	return FileConfig{
		ListenAddr:        c.ListenAddr,
		LogLevel:          c.LogLevel,
		Backend:           c.Backend,
		EnvFile:           c.EnvFile,
		DiscordAPIBase:    c.DiscordAPIBase,
		DiscordCDNBase:    c.DiscordCDNBase,
		CompactIDs:        c.CompactIDs,
		MaxUploadSize:     c.MaxUploadSize,
		MaxSegmentSize:    c.MaxSegmentSize,
		MaxRequestSize:    c.MaxRequestSize,
		UpstreamTimeout:   timex.Duration{Duration: c.UpstreamTimeout},
		UploadConcurrency: c.UploadConcurrency,
		FetchConcurrency:  c.FetchConcurrency,
		ObfuscateImages:   c.ObfuscateImages,
		JPEGQuality:       c.JPEGQuality,
		CacheMaxAge:       timex.Duration{Duration: c.CacheMaxAge},
		CORSOrigins:       c.CORSOrigins,
		S3Buckets:         c.S3Buckets,
		S3Region:          c.S3Region,
		S3BaseEndpoint:    c.S3BaseEndpoint,
		PresignExpiry:     timex.Duration{Duration: c.PresignExpiry},
		ShutdownTimeout:   timex.Duration{Duration: c.ShutdownTimeout},
	}
}

func (f FileConfig) apply(c *Config) {
	c.ListenAddr = f.ListenAddr
	c.LogLevel = f.LogLevel
	c.Backend = f.Backend
	c.EnvFile = f.EnvFile
	c.DiscordAPIBase = f.DiscordAPIBase
	c.DiscordCDNBase = f.DiscordCDNBase
	c.CompactIDs = f.CompactIDs
	c.MaxUploadSize = f.MaxUploadSize
	c.MaxSegmentSize = f.MaxSegmentSize
	c.MaxRequestSize = f.MaxRequestSize
	c.UpstreamTimeout = f.UpstreamTimeout.Duration
	c.UploadConcurrency = f.UploadConcurrency
	c.FetchConcurrency = f.FetchConcurrency
	c.ObfuscateImages = f.ObfuscateImages
	c.JPEGQuality = f.JPEGQuality
	c.CacheMaxAge = f.CacheMaxAge.Duration
	c.CORSOrigins = f.CORSOrigins
	c.S3Buckets = f.S3Buckets
	c.S3Region = f.S3Region
	c.S3BaseEndpoint = f.S3BaseEndpoint
	c.PresignExpiry = f.PresignExpiry.Duration
	c.ShutdownTimeout = f.ShutdownTimeout.Duration
}

// parseFile overlays the file named by -c/-config onto config. Keys absent
// from the file keep their current values. No flag means no file.
func parseFile(config *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	fc := toFile(config)
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	fc.apply(config)
	return nil
}
