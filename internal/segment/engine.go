// Package segment moves payloads too large for a single upstream blob. It
// splits them into bounded chunks, uploads each independently and puts
// them back together strictly by index.
package segment

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/attachlink/internal/common"
	"github.com/dmitrijs2005/attachlink/internal/descriptor"
	"github.com/dmitrijs2005/attachlink/internal/logging"
	"github.com/dmitrijs2005/attachlink/internal/metrics"
	"github.com/dmitrijs2005/attachlink/internal/upstream"
)

// Transport is the subset of upstream.Client the engine needs.
type Transport interface {
	Refresh(ctx context.Context, locators []descriptor.Locator) ([]string, error)
	Fetch(ctx context.Context, url string) (*upstream.Object, error)
	Upload(ctx context.Context, f upstream.File) (descriptor.Locator, error)
}

type Engine struct {
	transport         Transport
	maxSegment        int64
	uploadConcurrency int
	fetchConcurrency  int
	logger            logging.Logger
	metrics           *metrics.Metrics
}

type Option func(*Engine)

func WithMaxSegmentSize(n int64) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSegment = n
		}
	}
}

// WithConcurrency bounds parallel segment uploads and fetches. Values
// below one mean serial transfer.
func WithConcurrency(upload, fetch int) Option {
	return func(e *Engine) {
		e.uploadConcurrency = max(upload, 1)
		e.fetchConcurrency = max(fetch, 1)
	}
}

func WithLogger(l logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func NewEngine(t Transport, opts ...Option) *Engine {
	e := &Engine{
		transport:         t,
		maxSegment:        common.MaxSegmentSize,
		uploadConcurrency: 1,
		fetchConcurrency:  1,
		logger:            logging.Nop(),
	}
	for _, o := range opts {
		o(e)
	}
	e.logger = e.logger.With("module", "segment")
	return e
}

// SegmentName is the stored name of chunk index of a file called name.
func SegmentName(name string, index int) string {
	return fmt.Sprintf("%s.%03d", name, index)
}

// Upload splits r (total bytes long) and stores every chunk. The returned
// segments are sorted by index whatever order the uploads finished in.
// A failed chunk aborts the rest; chunks already stored are left in place.
func (e *Engine) Upload(ctx context.Context, r io.Reader, total int64, name, contentType string) ([]descriptor.Segment, error) {
	size := ChunkSize(total, e.maxSegment)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.uploadConcurrency)

	var (
		mu       sync.Mutex
		segments []descriptor.Segment
	)

	splitErr := Split(r, int(size), func(index int, chunk []byte) error {
		if err := gctx.Err(); err != nil {
			return err
		}
		g.Go(func() error {
			loc, err := e.transport.Upload(gctx, upstream.File{
				Name:        SegmentName(name, index),
				ContentType: contentType,
				Data:        chunk,
			})
			if err != nil {
				return &common.SegmentError{Op: common.SegmentUpload, Index: index, Err: err}
			}
			e.logger.Debug(ctx, "segment uploaded", "index", index, "bytes", len(chunk))

			mu.Lock()
			segments = append(segments, descriptor.NewSegment(loc, index))
			mu.Unlock()
			return nil
		})
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if splitErr != nil {
		return nil, splitErr
	}

	descriptor.SortSegments(segments)
	e.metrics.AddSegments("upload", len(segments))
	e.logger.Info(ctx, "segmented upload complete", "name", name, "segments", len(segments), "chunk", size)
	return segments, nil
}

// Download refreshes and fetches every segment and returns them assembled
// in index order. Any failure discards everything fetched so far.
func (e *Engine) Download(ctx context.Context, segments []descriptor.Segment) (*Assembly, error) {
	ordered := append([]descriptor.Segment(nil), segments...)
	descriptor.SortSegments(ordered)

	urls := make([]string, 0, len(ordered))
	for start := 0; start < len(ordered); start += upstream.MaxRefreshBatch {
		end := min(start+upstream.MaxRefreshBatch, len(ordered))
		locs := make([]descriptor.Locator, 0, end-start)
		for _, s := range ordered[start:end] {
			locs = append(locs, s.Locator())
		}
		batch, err := e.transport.Refresh(ctx, locs)
		if err != nil {
			return nil, &common.SegmentError{Op: common.SegmentFetch, Index: ordered[start].SegmentIndex, Err: err}
		}
		urls = append(urls, batch...)
	}

	parts := make([][]byte, len(ordered))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.fetchConcurrency)

	for i, s := range ordered {
		g.Go(func() error {
			data, err := e.fetch(gctx, urls[i])
			if err != nil {
				return &common.SegmentError{Op: common.SegmentFetch, Index: s.SegmentIndex, Err: err}
			}
			parts[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.metrics.AddSegments("fetch", len(parts))
	return &Assembly{parts: parts}, nil
}

func (e *Engine) fetch(ctx context.Context, url string) ([]byte, error) {
	obj, err := e.transport.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	defer obj.Body.Close()

	var buf bytes.Buffer
	if obj.ContentLength > 0 {
		buf.Grow(int(obj.ContentLength))
	}
	if _, err := buf.ReadFrom(obj.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Assembly is a reassembled payload held in memory as its segments.
type Assembly struct {
	parts [][]byte
}

// Len is the total payload size.
func (a *Assembly) Len() int64 {
	var n int64
	for _, p := range a.parts {
		n += int64(len(p))
	}
	return n
}

// Reader streams the segments in order without copying them.
func (a *Assembly) Reader() io.Reader {
	readers := make([]io.Reader, len(a.parts))
	for i, p := range a.parts {
		readers[i] = bytes.NewReader(p)
	}
	return io.MultiReader(readers...)
}

// Bytes returns the payload as one contiguous slice.
func (a *Assembly) Bytes() []byte {
	return bytes.Join(a.parts, nil)
}
