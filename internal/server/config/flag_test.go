package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		check   func(t *testing.T, c *Config)
		wantErr bool
	}{
		{
			name: "all flags",
			args: []string{
				"-a", "127.0.0.1:9090", "-l", "debug", "-b", "s3", "-e", "prod.env",
				"-t", "5s", "-u", "4", "-f", "8", "-o=false",
				"-g", "eu-west-1", "-s", "http://minio:9000", "-k", "media, thumbs",
			},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, "127.0.0.1:9090", c.ListenAddr)
				assert.Equal(t, "debug", c.LogLevel)
				assert.Equal(t, BackendS3, c.Backend)
				assert.Equal(t, "prod.env", c.EnvFile)
				assert.Equal(t, 5*time.Second, c.UpstreamTimeout)
				assert.Equal(t, 4, c.UploadConcurrency)
				assert.Equal(t, 8, c.FetchConcurrency)
				assert.False(t, c.ObfuscateImages)
				assert.Equal(t, "eu-west-1", c.S3Region)
				assert.Equal(t, "http://minio:9000", c.S3BaseEndpoint)
				assert.Equal(t, []string{"media", "thumbs"}, c.S3Buckets)
			},
		},
		{
			name: "foreign flags are ignored",
			args: []string{"-c", "conf.yaml", "-x", "1", "-a", ":9000"},
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, ":9000", c.ListenAddr)
				assert.Equal(t, BackendDiscord, c.Backend)
			},
		},
		{
			name:    "bad duration",
			args:    []string{"-t", "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Config{}
			c.LoadDefaults()

			err := parseFlags(c, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, c)
		})
	}
}
