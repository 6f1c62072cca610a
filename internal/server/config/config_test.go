package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":8000", c.ListenAddr)
	assert.Equal(t, BackendDiscord, c.Backend)
	assert.Equal(t, "https://discord.com/api/v9", c.DiscordAPIBase)
	assert.Equal(t, "https://cdn.discordapp.com", c.DiscordCDNBase)
	assert.True(t, c.CompactIDs)
	assert.Equal(t, int64(10<<20), c.MaxUploadSize)
	assert.Equal(t, int64(9<<20), c.MaxSegmentSize)
	assert.Equal(t, int64(512<<20), c.MaxRequestSize)
	assert.Equal(t, 60*time.Second, c.UpstreamTimeout)
	assert.Equal(t, 1, c.UploadConcurrency)
	assert.Equal(t, 1, c.FetchConcurrency)
	assert.True(t, c.ObfuscateImages)
	assert.Equal(t, 95, c.JPEGQuality)
	assert.Equal(t, 315360000*time.Second, c.CacheMaxAge)
	assert.Equal(t, []string{"*"}, c.CORSOrigins)
	assert.Equal(t, 15*time.Minute, c.PresignExpiry)
	assert.Equal(t, 10*time.Second, c.ShutdownTimeout)
	assert.NoError(t, c.Validate())
}

func TestLoadConfig_UsesDefaultsWithoutArgs(t *testing.T) {
	c, err := LoadConfig(nil)
	require.NoError(t, err)

	var want Config
	want.LoadDefaults()
	assert.Equal(t, &want, c)
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	var c Config
	c.LoadDefaults()
	c.Backend = "ftp"
	c.JPEGQuality = 0
	c.UploadConcurrency = 0
	c.MaxSegmentSize = c.MaxUploadSize + 1

	err := c.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	for _, part := range []string{"unknown backend", "jpeg quality", "concurrency", "max segment size"} {
		assert.Contains(t, err.Error(), part)
	}
}

func TestValidate_S3NeedsBucket(t *testing.T) {
	var c Config
	c.LoadDefaults()
	c.Backend = BackendS3
	assert.ErrorContains(t, c.Validate(), "bucket")

	c.S3Buckets = []string{"media"}
	assert.NoError(t, c.Validate())
}
