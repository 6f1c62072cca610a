// Package httpapi serves the token, issuance, upload and obfuscation
// endpoints over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/attachlink/internal/descriptor"
	"github.com/dmitrijs2005/attachlink/internal/logging"
	"github.com/dmitrijs2005/attachlink/internal/metrics"
	"github.com/dmitrijs2005/attachlink/internal/token"
	"github.com/dmitrijs2005/attachlink/internal/transfer"
)

// Service is what the handlers need from the transfer layer.
type Service interface {
	Issue(ctx context.Context, d descriptor.Descriptor) (token.Token, error)
	Store(ctx context.Context, u transfer.Upload) (token.Token, error)
	Retrieve(ctx context.Context, digit, encrypted string) (*transfer.Content, error)
	Scramble(ctx context.Context, data []byte, mimeType string) ([]byte, error)
}

type Options struct {
	Address         string
	MaxRequestSize  int64
	CacheMaxAge     time.Duration
	CORSOrigins     []string
	ShutdownTimeout time.Duration
}

type Server struct {
	opts    Options
	handler http.Handler
	logger  logging.Logger
}

func NewServer(opts Options, svc Service, l logging.Logger, m *metrics.Metrics) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	logger := l.With("module", "http_server")
	h := &handler{
		svc:         svc,
		logger:      logger,
		cacheMaxAge: opts.CacheMaxAge,
	}
	return &Server{
		opts:    opts,
		handler: newRouter(h, opts, logger, m),
		logger:  logger,
	}
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler { return s.handler }

// Run serves until ctx is cancelled, then drains in-flight requests for
// at most the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.opts.Address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

func (s *Server) Serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ShutdownTimeout)
		defer cancel()
		done <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-done
}
