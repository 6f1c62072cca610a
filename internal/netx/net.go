// Package netx holds the small HTTP helpers shared by the upstream
// backends: status checking with a readable reason and presigned uploads.
package netx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/attachlink/internal/common"
)

// maxErrorBody bounds how much of a failed response is read for its reason.
const maxErrorBody = 4 << 10

// ResponseError returns nil for a 2xx response. Otherwise it drains and
// closes the body and returns a *common.UpstreamError whose reason is the
// JSON "message" field when present, else the trimmed body text, else the
// status text.
func ResponseError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()

	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return common.NewUpstreamError(resp.StatusCode, reason(b))
}

func reason(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		return payload.Message
	}
	text := strings.TrimSpace(string(body))
	if strings.HasPrefix(text, "<") {
		// XML or HTML error pages are not useful as a one-line reason.
		return ""
	}
	return text
}

// DecodeJSON checks resp and decodes a successful body into v.
func DecodeJSON(resp *http.Response, v any) error {
	if err := ResponseError(resp); err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

// UploadToPresignedURL PUTs data to a presigned object-store URL.
func UploadToPresignedURL(ctx context.Context, client *http.Client, url string, data []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	if err := ResponseError(resp); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}
