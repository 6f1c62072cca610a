package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/attachlink/internal/common"
	"github.com/dmitrijs2005/attachlink/internal/descriptor"
	"github.com/dmitrijs2005/attachlink/internal/logging"
	"github.com/dmitrijs2005/attachlink/internal/metrics"
)

// Client is the upstream access façade used by the transfer layer.
type Client struct {
	refresher Refresher
	fetcher   Fetcher
	pool      *Pool
	timeout   time.Duration
	logger    logging.Logger
	metrics   *metrics.Metrics
}

type ClientOption func(*Client)

// WithTimeout bounds every upstream call. Zero disables the bound.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(l logging.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

func NewClient(r Refresher, f Fetcher, pool *Pool, opts ...ClientOption) *Client {
	c := &Client{
		refresher: r,
		fetcher:   f,
		pool:      pool,
		logger:    logging.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.With("module", "upstream")
	return c
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// normalize reports an expired per-call deadline as a gateway timeout.
// Cancellation by the caller passes through untouched.
func normalize(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, common.NewUpstreamError(http.StatusGatewayTimeout, "upstream "+op+" timed out"))
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (c *Client) finish(ctx context.Context, op string, start time.Time, err error) error {
	c.metrics.ObserveUpstream(op, time.Since(start), err)
	if err != nil {
		c.logger.Warn(ctx, "upstream call failed", "op", op, "error", err.Error())
	}
	return normalize(op, err)
}

// Refresh exchanges locators for short-lived URLs in batches of at most
// MaxRefreshBatch. The result is aligned with locators.
func (c *Client) Refresh(ctx context.Context, locators []descriptor.Locator) ([]string, error) {
	urls := make([]string, 0, len(locators))
	for start := 0; start < len(locators); start += MaxRefreshBatch {
		end := min(start+MaxRefreshBatch, len(locators))
		batch, err := c.refreshBatch(ctx, locators[start:end])
		if err != nil {
			return nil, err
		}
		urls = append(urls, batch...)
	}
	return urls, nil
}

func (c *Client) refreshBatch(ctx context.Context, locators []descriptor.Locator) ([]string, error) {
	callCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	urls, err := c.refresher.Refresh(callCtx, locators)
	if err == nil && len(urls) != len(locators) {
		err = common.NewUpstreamError(http.StatusBadGateway, fmt.Sprintf("refresh returned %d urls for %d locators", len(urls), len(locators)))
	}
	if err := c.finish(ctx, "refresh", start, err); err != nil {
		return nil, err
	}
	return urls, nil
}

// Fetch downloads url. The per-call deadline stays armed until the
// returned body is closed.
func (c *Client) Fetch(ctx context.Context, url string) (*Object, error) {
	callCtx, cancel := c.withTimeout(ctx)

	start := time.Now()
	obj, err := c.fetcher.Fetch(callCtx, url)
	if err := c.finish(ctx, "fetch", start, err); err != nil {
		cancel()
		return nil, err
	}

	obj.Body = &cancelOnClose{ReadCloser: obj.Body, cancel: cancel}
	return obj, nil
}

// Upload stores f through a randomly chosen pool member.
func (c *Client) Upload(ctx context.Context, f File) (descriptor.Locator, error) {
	callCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	loc, err := c.pool.Upload(callCtx, f)
	if err := c.finish(ctx, "upload", start, err); err != nil {
		return descriptor.Locator{}, err
	}
	c.logger.Debug(ctx, "blob uploaded", "locator", loc.String(), "bytes", len(f.Data))
	return loc, nil
}

// Resolve refreshes a single locator and fetches it.
func (c *Client) Resolve(ctx context.Context, l descriptor.Locator) (*Object, error) {
	urls, err := c.Refresh(ctx, []descriptor.Locator{l})
	if err != nil {
		return nil, err
	}
	return c.Fetch(ctx, urls[0])
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		err = common.NewUpstreamError(http.StatusGatewayTimeout, "upstream fetch timed out")
	}
	return n, err
}

func (b *cancelOnClose) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}
