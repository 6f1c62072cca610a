package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------- WipeByteArray ----------

func TestWipeByteArray_ZerosBuffer(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	WipeByteArray(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("expected buf[%d]==0, got %d", i, v)
		}
	}
}

func TestWipeByteArray_NilSafe(t *testing.T) {
	WipeByteArray(nil)
}

// ---------- GenerateRandByteArray ----------

func TestGenerateRandByteArray_Basic(t *testing.T) {
	const n = 24
	buf := GenerateRandByteArray(n)
	require.NotNil(t, buf)
	assert.Len(t, buf, n)
}

func TestGenerateRandByteArray_EntropyHint(t *testing.T) {
	const n = 32
	a := GenerateRandByteArray(n)
	b := GenerateRandByteArray(n)
	if string(a) == string(b) {
		t.Logf("warning: two GenerateRandByteArray(%d) results are identical; extremely unlikely", n)
	}
}

// ---------- errors ----------

func TestSegmentError_MatchesOwnSentinelOnly(t *testing.T) {
	up := &SegmentError{Op: SegmentUpload, Index: 2, Err: errors.New("boom")}
	fe := &SegmentError{Op: SegmentFetch, Index: 0, Err: errors.New("boom")}

	assert.ErrorIs(t, up, ErrSegmentUploadFailed)
	assert.NotErrorIs(t, up, ErrSegmentFetchFailed)
	assert.ErrorIs(t, fe, ErrSegmentFetchFailed)
	assert.NotErrorIs(t, fe, ErrSegmentUploadFailed)
	assert.Contains(t, up.Error(), "segment 2 upload failed")
}

func TestSegmentError_UnwrapsUpstreamError(t *testing.T) {
	err := fmt.Errorf("download: %w", &SegmentError{
		Op:    SegmentFetch,
		Index: 1,
		Err:   NewUpstreamError(http.StatusNotFound, ""),
	})

	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, http.StatusNotFound, ue.Status)
	assert.Equal(t, "Not Found", ue.Reason)
}

func TestIsInlineType(t *testing.T) {
	tests := []struct {
		ct   string
		want bool
	}{
		{"image/png", true},
		{"Video/MP4", true},
		{"audio/ogg", true},
		{"application/pdf", false},
		{"", false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, IsInlineType(tc.ct), tc.ct)
	}
}
