package upstream

import (
	"context"
	"net/http"

	"github.com/dmitrijs2005/attachlink/internal/netx"
)

// HTTPFetcher downloads refreshed URLs with a plain GET.
type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Object, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if err := netx.ResponseError(resp); err != nil {
		return nil, err
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &Object{Body: resp.Body, ContentType: ct, ContentLength: resp.ContentLength}, nil
}
