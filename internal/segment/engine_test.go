package segment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/attachlink/internal/common"
	"github.com/dmitrijs2005/attachlink/internal/descriptor"
	"github.com/dmitrijs2005/attachlink/internal/upstream"
)

// memStore is an in-memory upstream keyed by message id.
type memStore struct {
	mu       sync.Mutex
	blobs    map[string][]byte
	delay    func(name string) time.Duration
	failName string
	refresh  [][]descriptor.Locator
}

func newMemStore() *memStore {
	return &memStore{blobs: map[string][]byte{}}
}

func (m *memStore) Upload(ctx context.Context, f upstream.File) (descriptor.Locator, error) {
	if m.delay != nil {
		select {
		case <-time.After(m.delay(f.Name)):
		case <-ctx.Done():
			return descriptor.Locator{}, ctx.Err()
		}
	}
	if f.Name == m.failName {
		return descriptor.Locator{}, common.NewUpstreamError(http.StatusRequestEntityTooLarge, "")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := fmt.Sprintf("m%d", len(m.blobs))
	m.blobs[id] = append([]byte(nil), f.Data...)
	return descriptor.Locator{ChannelID: "c", MessageID: id, ContentName: f.Name}, nil
}

func (m *memStore) Refresh(_ context.Context, locs []descriptor.Locator) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh = append(m.refresh, locs)
	urls := make([]string, len(locs))
	for i, l := range locs {
		urls[i] = l.MessageID
	}
	return urls, nil
}

func (m *memStore) Fetch(_ context.Context, url string) (*upstream.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[url]
	if !ok {
		return nil, common.NewUpstreamError(http.StatusNotFound, "")
	}
	return &upstream.Object{Body: io.NopCloser(bytes.NewReader(b)), ContentLength: int64(len(b))}, nil
}

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 31)
	}
	return b
}

func TestEngine_UploadDownloadRoundTrip(t *testing.T) {
	store := newMemStore()
	e := NewEngine(store, WithMaxSegmentSize(100))
	data := payload(250)

	segs, err := e.Upload(context.Background(), bytes.NewReader(data), int64(len(data)), "clip.mp4", "video/mp4")
	require.NoError(t, err)
	require.Len(t, segs, 3)
	for i, s := range segs {
		assert.Equal(t, i, s.SegmentIndex)
		assert.Equal(t, SegmentName("clip.mp4", i), s.ContentName)
	}
	assert.Len(t, store.blobs[segs[2].MessageID], 50)

	asm, err := e.Download(context.Background(), segs)
	require.NoError(t, err)
	assert.Equal(t, int64(250), asm.Len())
	assert.Equal(t, data, asm.Bytes())

	streamed, err := io.ReadAll(asm.Reader())
	require.NoError(t, err)
	assert.Equal(t, data, streamed)
}

func TestEngine_UploadSortsReverseCompletion(t *testing.T) {
	store := newMemStore()
	// later segments finish first
	store.delay = func(name string) time.Duration {
		switch {
		case strings.HasSuffix(name, ".000"):
			return 60 * time.Millisecond
		case strings.HasSuffix(name, ".001"):
			return 30 * time.Millisecond
		}
		return 0
	}
	e := NewEngine(store, WithMaxSegmentSize(100), WithConcurrency(4, 4))
	data := payload(250)

	segs, err := e.Upload(context.Background(), bytes.NewReader(data), int64(len(data)), "f", "application/octet-stream")
	require.NoError(t, err)
	require.Len(t, segs, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{segs[0].SegmentIndex, segs[1].SegmentIndex, segs[2].SegmentIndex})
	// message ids reflect completion order, so the sort did real work
	assert.Equal(t, "m0", segs[2].MessageID)

	asm, err := e.Download(context.Background(), segs)
	require.NoError(t, err)
	assert.Equal(t, data, asm.Bytes())
}

func TestEngine_DownloadReassemblesByIndexNotListOrder(t *testing.T) {
	store := newMemStore()
	e := NewEngine(store, WithMaxSegmentSize(10), WithConcurrency(1, 3))
	data := payload(95)

	segs, err := e.Upload(context.Background(), bytes.NewReader(data), int64(len(data)), "f", "x/y")
	require.NoError(t, err)

	shuffled := []descriptor.Segment{segs[4], segs[0], segs[9], segs[2], segs[1], segs[3], segs[8], segs[5], segs[7], segs[6]}
	asm, err := e.Download(context.Background(), shuffled)
	require.NoError(t, err)
	assert.Equal(t, data, asm.Bytes())
}

func TestEngine_BalancesTwoSegmentPayloads(t *testing.T) {
	store := newMemStore()
	e := NewEngine(store, WithMaxSegmentSize(100))

	segs, err := e.Upload(context.Background(), bytes.NewReader(payload(150)), 150, "f", "x/y")
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Len(t, store.blobs[segs[0].MessageID], 75)
	assert.Len(t, store.blobs[segs[1].MessageID], 75)
}

func TestEngine_UploadFailureReportsIndex(t *testing.T) {
	store := newMemStore()
	store.failName = SegmentName("f", 1)
	e := NewEngine(store, WithMaxSegmentSize(100))

	_, err := e.Upload(context.Background(), bytes.NewReader(payload(250)), 250, "f", "x/y")
	require.ErrorIs(t, err, common.ErrSegmentUploadFailed)

	var se *common.SegmentError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, se.Index)

	var ue *common.UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusRequestEntityTooLarge, ue.Status)
}

func TestEngine_UploadReadError(t *testing.T) {
	e := NewEngine(newMemStore(), WithMaxSegmentSize(10))
	boom := errors.New("disk on fire")

	_, err := e.Upload(context.Background(), io.MultiReader(bytes.NewReader(payload(15)), errReader{boom}), 30, "f", "x/y")
	assert.ErrorIs(t, err, boom)
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

func TestEngine_DownloadFailureReportsIndex(t *testing.T) {
	store := newMemStore()
	e := NewEngine(store, WithMaxSegmentSize(10))

	segs, err := e.Upload(context.Background(), bytes.NewReader(payload(30)), 30, "f", "x/y")
	require.NoError(t, err)
	delete(store.blobs, segs[2].MessageID)

	_, err = e.Download(context.Background(), segs)
	require.ErrorIs(t, err, common.ErrSegmentFetchFailed)
	var se *common.SegmentError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 2, se.Index)
}

func TestEngine_DownloadRefreshesInBatches(t *testing.T) {
	store := newMemStore()
	e := NewEngine(store, WithMaxSegmentSize(1), WithConcurrency(8, 8))

	segs, err := e.Upload(context.Background(), bytes.NewReader(payload(120)), 120, "f", "x/y")
	require.NoError(t, err)
	require.Len(t, segs, 120)

	_, err = e.Download(context.Background(), segs)
	require.NoError(t, err)
	require.Len(t, store.refresh, 3)
	assert.Len(t, store.refresh[0], upstream.MaxRefreshBatch)
	assert.Len(t, store.refresh[2], 20)
}
