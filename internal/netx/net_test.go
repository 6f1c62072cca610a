package netx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/attachlink/internal/common"
)

func TestUploadToPresignedURL(t *testing.T) {
	file := []byte("hello, s3")

	t.Run("success 200 OK", func(t *testing.T) {
		var gotBody []byte
		var gotCT string
		var gotMethod string

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotCT = r.Header.Get("Content-Type")
			body, _ := io.ReadAll(r.Body)
			_ = r.Body.Close()
			gotBody = body
			w.WriteHeader(http.StatusOK)
		}))
		defer ts.Close()

		err := UploadToPresignedURL(context.Background(), ts.Client(), ts.URL+"/some/presigned?X-Amz-Signature=abc", file, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gotMethod != http.MethodPut {
			t.Fatalf("method = %q, want PUT", gotMethod)
		}
		if gotCT != "application/octet-stream" {
			t.Fatalf("Content-Type = %q, want application/octet-stream", gotCT)
		}
		if !bytes.Equal(gotBody, file) {
			t.Fatalf("body = %q, want %q", string(gotBody), string(file))
		}
	})

	t.Run("non-2xx -> upstream error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte("<Error><Code>AccessDenied</Code></Error>"))
		}))
		defer ts.Close()

		err := UploadToPresignedURL(context.Background(), ts.Client(), ts.URL, file, "image/png")
		var ue *common.UpstreamError
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, http.StatusForbidden, ue.Status)
		assert.Equal(t, "Forbidden", ue.Reason)
	})

	t.Run("network error", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		ts.Close()

		err := UploadToPresignedURL(context.Background(), http.DefaultClient, ts.URL, file, "")
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		var ue *common.UpstreamError
		if errors.As(err, &ue) {
			t.Fatalf("got wrong kind of error: %v", err)
		}
	})
}

func response(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestResponseError_Reason(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"json message", http.StatusUnauthorized, `{"message": "401: Unauthorized", "code": 0}`, "401: Unauthorized"},
		{"plain text", http.StatusBadGateway, "bad gateway from cdn\n", "bad gateway from cdn"},
		{"empty body", http.StatusNotFound, "", "Not Found"},
		{"html page", http.StatusServiceUnavailable, "<html>down</html>", "Service Unavailable"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ResponseError(response(tc.status, tc.body))
			var ue *common.UpstreamError
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, tc.status, ue.Status)
			assert.Equal(t, tc.want, ue.Reason)
		})
	}

	assert.NoError(t, ResponseError(response(http.StatusNoContent, "")))
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		A int `json:"a"`
	}
	require.NoError(t, DecodeJSON(response(http.StatusOK, `{"a":7}`), &v))
	assert.Equal(t, 7, v.A)

	err := DecodeJSON(response(http.StatusTooManyRequests, `{"message":"You are being rate limited."}`), &v)
	var ue *common.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "You are being rate limited.", ue.Reason)
}
