// Package server wires configuration, secrets, the blob store backend and
// the HTTP surface into a runnable application and handles graceful
// shutdown on SIGINT, SIGTERM and SIGQUIT.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/attachlink/internal/keyring"
	"github.com/dmitrijs2005/attachlink/internal/logging"
	"github.com/dmitrijs2005/attachlink/internal/metrics"
	"github.com/dmitrijs2005/attachlink/internal/segment"
	"github.com/dmitrijs2005/attachlink/internal/server/config"
	"github.com/dmitrijs2005/attachlink/internal/server/httpapi"
	"github.com/dmitrijs2005/attachlink/internal/token"
	"github.com/dmitrijs2005/attachlink/internal/transfer"
	"github.com/dmitrijs2005/attachlink/internal/upstream"
	"github.com/dmitrijs2005/attachlink/internal/upstream/discord"
	"github.com/dmitrijs2005/attachlink/internal/upstream/s3store"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	metrics *metrics.Metrics
	server  *httpapi.Server
}

// backend is the blob store selected by configuration.
type backend struct {
	refresher upstream.Refresher
	uploaders []upstream.Uploader
}

func requirementFor(cfg *config.Config) keyring.Requirement {
	if cfg.Backend == config.BackendS3 {
		return keyring.RequireS3
	}
	return keyring.RequireDiscord
}

func newBackend(ctx context.Context, cfg *config.Config, keys *keyring.Keyring, client *http.Client) (*backend, error) {
	switch cfg.Backend {
	case config.BackendS3:
		store, err := s3store.New(ctx, s3store.Config{
			Region:        cfg.S3Region,
			BaseEndpoint:  cfg.S3BaseEndpoint,
			AccessKey:     keys.S3AccessKey(),
			SecretKey:     keys.S3SecretKey(),
			PresignExpiry: cfg.PresignExpiry,
		}, client)
		if err != nil {
			return nil, fmt.Errorf("s3 init error: %w", err)
		}
		b := &backend{refresher: store}
		for _, bucket := range cfg.S3Buckets {
			b.uploaders = append(b.uploaders, store.Bucket(bucket))
		}
		return b, nil

	case config.BackendDiscord:
		b := &backend{refresher: discord.NewRefresher(cfg.DiscordAPIBase, cfg.DiscordCDNBase, keys.DiscordToken(), client)}
		for i, u := range keys.WebhookURLs() {
			w, err := discord.NewWebhook(u, cfg.CompactIDs, client)
			if err != nil {
				return nil, fmt.Errorf("%s%d: %w", keyring.EnvWebhookPrefix, i+1, err)
			}
			b.uploaders = append(b.uploaders, w)
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w: unknown backend %q", config.ErrInvalidConfig, cfg.Backend)
}

// NewApp loads the secrets for cfg and assembles every component.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, cfg.LogLevel)

	keys, err := keyring.Load(requirementFor(cfg), cfg.EnvFile)
	if err != nil {
		return nil, fmt.Errorf("secrets error: %w", err)
	}

	return newApp(ctx, cfg, keys, logger)
}

func newApp(ctx context.Context, cfg *config.Config, keys *keyring.Keyring, logger logging.Logger) (*App, error) {
	m := metrics.New()
	httpClient := &http.Client{}

	b, err := newBackend(ctx, cfg, keys, httpClient)
	if err != nil {
		return nil, err
	}
	pool, err := upstream.NewPool(b.uploaders...)
	if err != nil {
		return nil, err
	}

	client := upstream.NewClient(b.refresher, upstream.NewHTTPFetcher(httpClient), pool,
		upstream.WithTimeout(cfg.UpstreamTimeout),
		upstream.WithLogger(logger),
		upstream.WithMetrics(m),
	)

	engine := segment.NewEngine(client,
		segment.WithMaxSegmentSize(cfg.MaxSegmentSize),
		segment.WithConcurrency(cfg.UploadConcurrency, cfg.FetchConcurrency),
		segment.WithLogger(logger),
		segment.WithMetrics(m),
	)

	svc := transfer.NewService(token.NewCodec(keys), client, engine, transfer.Options{
		MaxUploadSize:   cfg.MaxUploadSize,
		ObfuscateImages: cfg.ObfuscateImages,
		ImageSecret:     keys.ImageSecret(),
		JPEGQuality:     cfg.JPEGQuality,
	}, logger, m)

	srv := httpapi.NewServer(httpapi.Options{
		Address:         cfg.ListenAddr,
		MaxRequestSize:  cfg.MaxRequestSize,
		CacheMaxAge:     cfg.CacheMaxAge,
		CORSOrigins:     cfg.CORSOrigins,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, svc, logger, m)

	return &App{config: cfg, logger: logger, metrics: m, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until a termination signal arrives, ctx is cancelled or the
// server fails.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "backend", app.config.Backend)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()
	app.logger.Info(ctx, "App stopped")
}
