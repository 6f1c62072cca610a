// Package upstream is the single way the rest of attachlink talks to the
// blob store: exchange stored locators for short-lived URLs, fetch bytes
// from those URLs and upload new blobs through a pool of endpoints.
//
// Backends live in subpackages; Client adds per-call timeouts, error
// normalisation, logging and metrics on top of them.
package upstream

import (
	"context"
	"io"

	"github.com/dmitrijs2005/attachlink/internal/descriptor"
)

// MaxRefreshBatch is the largest number of locators one Refresh call may carry.
const MaxRefreshBatch = 50

// Object is a fetched blob. The caller must close Body.
type Object struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
}

// File is a blob to upload. Segments are bounded in size, so uploads are
// buffered in memory.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Refresher exchanges locators for fetchable URLs, in the same order.
type Refresher interface {
	Refresh(ctx context.Context, locators []descriptor.Locator) ([]string, error)
}

// Fetcher downloads the bytes behind a URL returned by a Refresher.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Object, error)
}

// Uploader stores a blob and returns where it landed.
type Uploader interface {
	Upload(ctx context.Context, f File) (descriptor.Locator, error)
}
