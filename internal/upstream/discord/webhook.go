package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"github.com/dmitrijs2005/attachlink/internal/common"
	"github.com/dmitrijs2005/attachlink/internal/descriptor"
	"github.com/dmitrijs2005/attachlink/internal/netx"
	"github.com/dmitrijs2005/attachlink/internal/upstream"
)

// Webhook uploads one attachment per message through a channel webhook.
type Webhook struct {
	endpoint   string
	compactIDs bool
	client     *http.Client
}

// NewWebhook prepares rawURL for synchronous execution (?wait=true) so the
// created message comes back in the response.
func NewWebhook(rawURL string, compactIDs bool, client *http.Client) (*Webhook, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid webhook url %q", rawURL)
	}
	q := u.Query()
	q.Set("wait", "true")
	u.RawQuery = q.Encode()

	if client == nil {
		client = http.DefaultClient
	}
	return &Webhook{endpoint: u.String(), compactIDs: compactIDs, client: client}, nil
}

type attachmentRef struct {
	ID       int    `json:"id"`
	Filename string `json:"filename"`
}

type webhookPayload struct {
	Attachments []attachmentRef `json:"attachments"`
}

type message struct {
	ID          string `json:"id"`
	ChannelID   string `json:"channel_id"`
	Attachments []struct {
		Filename string `json:"filename"`
	} `json:"attachments"`
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (w *Webhook) body(f upstream.File) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	payload, err := json.Marshal(webhookPayload{Attachments: []attachmentRef{{ID: 0, Filename: f.Name}}})
	if err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("payload_json", string(payload)); err != nil {
		return nil, "", err
	}

	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files[0]"; filename="%s"`, quoteEscaper.Replace(f.Name)))
	h.Set("Content-Type", ct)
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(f.Data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

// Upload posts f as the single attachment of a new message.
func (w *Webhook) Upload(ctx context.Context, f upstream.File) (descriptor.Locator, error) {
	body, contentType, err := w.body(f)
	if err != nil {
		return descriptor.Locator{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, body)
	if err != nil {
		return descriptor.Locator{}, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := w.client.Do(req)
	if err != nil {
		return descriptor.Locator{}, err
	}
	var msg message
	if err := netx.DecodeJSON(resp, &msg); err != nil {
		return descriptor.Locator{}, err
	}
	if msg.ID == "" || msg.ChannelID == "" || len(msg.Attachments) == 0 {
		return descriptor.Locator{}, common.NewUpstreamError(http.StatusBadGateway, "webhook response has no attachment")
	}

	loc := descriptor.Locator{
		ChannelID:   msg.ChannelID,
		MessageID:   msg.ID,
		ContentName: msg.Attachments[0].Filename,
	}
	if w.compactIDs {
		loc.ChannelID = descriptor.EncodeID(loc.ChannelID)
		loc.MessageID = descriptor.EncodeID(loc.MessageID)
	}
	return loc, nil
}
