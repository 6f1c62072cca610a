package discord

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/attachlink/internal/common"
	"github.com/dmitrijs2005/attachlink/internal/descriptor"
	"github.com/dmitrijs2005/attachlink/internal/upstream"
)

const cdn = "https://cdn.example"

func TestRefresher_AttachmentURLExpandsCompactIDs(t *testing.T) {
	r := NewRefresher("http://api", cdn+"/", "tok", nil)

	u, err := r.AttachmentURL(descriptor.Locator{ChannelID: "97qS0b7N2m", MessageID: "2", ContentName: "a b.png"})
	require.NoError(t, err)
	assert.Equal(t, cdn+"/attachments/123456789012345678/2/a%20b.png", u)

	_, err = r.AttachmentURL(descriptor.Locator{ChannelID: "bad/id", MessageID: "2", ContentName: "a"})
	assert.ErrorIs(t, err, common.ErrMalformedDescriptor)
}

func TestRefresher_Refresh(t *testing.T) {
	var gotAuth string
	var gotBody refreshRequest

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v9/attachments/refresh-urls", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		// answered out of order; matched back by original url
		_ = json.NewEncoder(w).Encode(map[string]any{
			"refreshed_urls": []map[string]string{
				{"original": gotBody.AttachmentURLs[1], "refreshed": gotBody.AttachmentURLs[1] + "?ex=2"},
				{"original": gotBody.AttachmentURLs[0], "refreshed": gotBody.AttachmentURLs[0] + "?ex=1"},
			},
		})
	}))
	defer ts.Close()

	r := NewRefresher(ts.URL+"/api/v9", cdn, "bot-token", ts.Client())
	urls, err := r.Refresh(context.Background(), []descriptor.Locator{
		{ChannelID: "1", MessageID: "2", ContentName: "a.png"},
		{ChannelID: "1", MessageID: "3", ContentName: "b.png"},
	})
	require.NoError(t, err)

	assert.Equal(t, "bot-token", gotAuth)
	assert.Equal(t, []string{cdn + "/attachments/1/2/a.png", cdn + "/attachments/1/3/b.png"}, gotBody.AttachmentURLs)
	assert.Equal(t, []string{cdn + "/attachments/1/2/a.png?ex=1", cdn + "/attachments/1/3/b.png?ex=2"}, urls)
}

func TestRefresher_FallsBackToPosition(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"refreshed_urls":[{"original":"normalised-elsewhere","refreshed":"https://signed"}]}`))
	}))
	defer ts.Close()

	urls, err := NewRefresher(ts.URL, cdn, "t", ts.Client()).Refresh(context.Background(), []descriptor.Locator{{ChannelID: "1", MessageID: "2", ContentName: "a"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://signed"}, urls)
}

func TestRefresher_UpstreamStatusPassesThrough(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message": "401: Unauthorized", "code": 0}`))
	}))
	defer ts.Close()

	_, err := NewRefresher(ts.URL, cdn, "t", ts.Client()).Refresh(context.Background(), []descriptor.Locator{{ChannelID: "1", MessageID: "2", ContentName: "a"}})
	var ue *common.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusUnauthorized, ue.Status)
	assert.Equal(t, "401: Unauthorized", ue.Reason)
}

func TestRefresher_MissingEntry(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"refreshed_urls":[]}`))
	}))
	defer ts.Close()

	_, err := NewRefresher(ts.URL, cdn, "t", ts.Client()).Refresh(context.Background(), []descriptor.Locator{{ChannelID: "1", MessageID: "2", ContentName: "a"}})
	var ue *common.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusBadGateway, ue.Status)
}

func TestNewWebhook_AddsWait(t *testing.T) {
	w, err := NewWebhook("https://discord.example/api/webhooks/1/abc?thread_id=9", false, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://discord.example/api/webhooks/1/abc?thread_id=9&wait=true", w.endpoint)

	_, err = NewWebhook("not a url", false, nil)
	assert.Error(t, err)
}

func TestWebhook_Upload(t *testing.T) {
	var (
		gotPayload string
		gotFile    []byte
		gotName    string
		gotType    string
	)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("wait"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotPayload = r.FormValue("payload_json")

		f, hdr, err := r.FormFile("files[0]")
		require.NoError(t, err)
		defer f.Close()
		gotFile, _ = io.ReadAll(f)
		gotName = hdr.Filename
		gotType = hdr.Header.Get("Content-Type")

		_, _ = w.Write([]byte(`{"id":"1234567890123456789","channel_id":"123456789012345678","attachments":[{"id":"5","filename":"clip.mp4.001"}]}`))
	}))
	defer ts.Close()

	w, err := NewWebhook(ts.URL+"/api/webhooks/1/abc", true, ts.Client())
	require.NoError(t, err)

	loc, err := w.Upload(context.Background(), upstream.File{Name: "clip.mp4.001", ContentType: "video/mp4", Data: []byte("chunk")})
	require.NoError(t, err)

	assert.JSONEq(t, `{"attachments":[{"id":0,"filename":"clip.mp4.001"}]}`, gotPayload)
	assert.Equal(t, "chunk", string(gotFile))
	assert.Equal(t, "clip.mp4.001", gotName)
	assert.Equal(t, "video/mp4", gotType)
	assert.Equal(t, descriptor.Locator{ChannelID: "97qS0b7N2m", MessageID: "1tckI1NfUnH", ContentName: "clip.mp4.001"}, loc)
}

func TestWebhook_UploadErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/limited":
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			_, _ = w.Write([]byte(`{"message":"Request entity too large"}`))
		default:
			_, _ = w.Write([]byte(`{"id":"1","channel_id":"2","attachments":[]}`))
		}
	}))
	defer ts.Close()

	w, err := NewWebhook(ts.URL+"/limited", false, ts.Client())
	require.NoError(t, err)
	_, err = w.Upload(context.Background(), upstream.File{Name: "a", Data: []byte("x")})
	var ue *common.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusRequestEntityTooLarge, ue.Status)

	w, err = NewWebhook(ts.URL+"/empty", false, ts.Client())
	require.NoError(t, err)
	_, err = w.Upload(context.Background(), upstream.File{Name: "a", Data: []byte("x")})
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusBadGateway, ue.Status)
}
