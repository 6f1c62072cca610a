package config

import (
	"flag"
	"io"
	"strings"

	"github.com/dmitrijs2005/attachlink/internal/flagx"
)

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string     HTTP bind address (e.g. ":8000")
//	-l string     log level: debug, info, warn, error
//	-b string     backend: discord or s3
//	-e string     dotenv file with secrets
//	-t duration   per-call upstream timeout (e.g. "30s")
//	-u int        parallel segment uploads
//	-f int        parallel segment fetches
//	-o bool       scramble images before storing (use -o=false to disable)
//	-g string     S3 region
//	-s string     S3 base endpoint
//	-k string     comma-separated S3 buckets
//
// args is filtered with flagx.FilterArgs first so that flags owned by other
// parsers (such as -c) do not collide.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-l", "-b", "-e", "-t", "-u", "-f", "-o", "-g", "-s", "-k"})

	fs := flag.NewFlagSet("attachlink", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to run server")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.Backend, "b", config.Backend, "blob store backend")
	fs.StringVar(&config.EnvFile, "e", config.EnvFile, "dotenv file")
	fs.DurationVar(&config.UpstreamTimeout, "t", config.UpstreamTimeout, "upstream call timeout")
	fs.IntVar(&config.UploadConcurrency, "u", config.UploadConcurrency, "parallel segment uploads")
	fs.IntVar(&config.FetchConcurrency, "f", config.FetchConcurrency, "parallel segment fetches")
	fs.BoolVar(&config.ObfuscateImages, "o", config.ObfuscateImages, "scramble images")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "s", config.S3BaseEndpoint, "S3 base endpoint")
	fs.Func("k", "comma-separated S3 buckets", func(v string) error {
		config.S3Buckets = splitList(v)
		return nil
	})

	return fs.Parse(args)
}
