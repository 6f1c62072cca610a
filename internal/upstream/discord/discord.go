// Package discord stores blobs as chat attachments: uploads go through
// channel webhooks and reads exchange the permanent attachment URL for a
// signed, short-lived CDN URL.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/attachlink/internal/common"
	"github.com/dmitrijs2005/attachlink/internal/descriptor"
	"github.com/dmitrijs2005/attachlink/internal/netx"
)

const (
	DefaultAPIBase = "https://discord.com/api/v9"
	DefaultCDNBase = "https://cdn.discordapp.com"
)

// Refresher implements upstream.Refresher with the attachment refresh API.
type Refresher struct {
	apiBase string
	cdnBase string
	token   string
	client  *http.Client
}

func NewRefresher(apiBase, cdnBase, token string, client *http.Client) *Refresher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Refresher{
		apiBase: strings.TrimRight(apiBase, "/"),
		cdnBase: strings.TrimRight(cdnBase, "/"),
		token:   token,
		client:  client,
	}
}

// AttachmentURL is the permanent, unsigned URL of a stored attachment.
// Compact ids are expanded first.
func (r *Refresher) AttachmentURL(l descriptor.Locator) (string, error) {
	l, err := descriptor.DecodeLocator(l)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrMalformedDescriptor, err)
	}
	return r.cdnBase + "/attachments/" + l.ChannelID + "/" + l.MessageID + "/" + url.PathEscape(l.ContentName), nil
}

type refreshRequest struct {
	AttachmentURLs []string `json:"attachment_urls"`
}

type refreshResponse struct {
	RefreshedURLs []struct {
		Original  string `json:"original"`
		Refreshed string `json:"refreshed"`
	} `json:"refreshed_urls"`
}

func (r *Refresher) Refresh(ctx context.Context, locators []descriptor.Locator) ([]string, error) {
	originals := make([]string, len(locators))
	for i, l := range locators {
		u, err := r.AttachmentURL(l)
		if err != nil {
			return nil, err
		}
		originals[i] = u
	}

	body, err := json.Marshal(refreshRequest{AttachmentURLs: originals})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.apiBase+"/attachments/refresh-urls", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", r.token)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	var out refreshResponse
	if err := netx.DecodeJSON(resp, &out); err != nil {
		return nil, err
	}

	byOriginal := make(map[string]string, len(out.RefreshedURLs))
	for _, u := range out.RefreshedURLs {
		byOriginal[u.Original] = u.Refreshed
	}

	urls := make([]string, len(originals))
	for i, o := range originals {
		refreshed, ok := byOriginal[o]
		if !ok && i < len(out.RefreshedURLs) {
			refreshed = out.RefreshedURLs[i].Refreshed
		}
		if refreshed == "" {
			return nil, common.NewUpstreamError(http.StatusBadGateway, "no refreshed url for "+o)
		}
		urls[i] = refreshed
	}
	return urls, nil
}
