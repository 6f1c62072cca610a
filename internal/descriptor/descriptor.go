// Package descriptor defines the record a content token carries: where the
// bytes of one stored item live upstream and how to present them.
package descriptor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/attachlink/internal/common"
)

// Locator identifies one stored blob: a whole file or a single segment.
type Locator struct {
	ChannelID   string `json:"channelId"`
	MessageID   string `json:"messageId"`
	ContentName string `json:"contentName"`
}

// Complete reports whether all three parts are set.
func (l Locator) Complete() bool {
	return l.ChannelID != "" && l.MessageID != "" && l.ContentName != ""
}

func (l Locator) String() string {
	return l.ChannelID + "/" + l.MessageID + "/" + l.ContentName
}

// Segment is one chunk of a split payload.
type Segment struct {
	ChannelID    string `json:"channelId"`
	MessageID    string `json:"messageId"`
	ContentName  string `json:"contentName"`
	SegmentIndex int    `json:"segmentIndex"`
}

// NewSegment attaches an index to the locator an upload returned.
func NewSegment(l Locator, index int) Segment {
	return Segment{ChannelID: l.ChannelID, MessageID: l.MessageID, ContentName: l.ContentName, SegmentIndex: index}
}

func (s Segment) Locator() Locator {
	return Locator{ChannelID: s.ChannelID, MessageID: s.MessageID, ContentName: s.ContentName}
}

// SortSegments orders segments by ascending SegmentIndex in place.
func SortSegments(segments []Segment) {
	slices.SortFunc(segments, func(a, b Segment) int { return a.SegmentIndex - b.SegmentIndex })
}

// Descriptor is serialized into every token. Field order is the canonical
// JSON key order; empty optional fields are omitted, never written as null.
type Descriptor struct {
	ChannelID        string    `json:"channelId,omitempty"`
	MessageID        string    `json:"messageId,omitempty"`
	ContentName      string    `json:"contentName,omitempty"`
	ContentType      string    `json:"contentType,omitempty"`
	OriginalFileName string    `json:"originalFileName,omitempty"`
	ExpiredAt        string    `json:"expiredAt,omitempty"`
	Scrambled        bool      `json:"scrambled,omitempty"`
	Segments         []Segment `json:"segments,omitempty"`
}

// Locator returns the single-segment locator triple.
func (d Descriptor) Locator() Locator {
	return Locator{ChannelID: d.ChannelID, MessageID: d.MessageID, ContentName: d.ContentName}
}

// Segmented reports whether retrieval must go through the segment list.
func (d Descriptor) Segmented() bool {
	return len(d.Segments) > 0
}

// FileName is the name presented to the caller.
func (d Descriptor) FileName() string {
	if d.OriginalFileName != "" {
		return d.OriginalFileName
	}
	if d.ContentName != "" {
		return d.ContentName
	}
	if len(d.Segments) > 0 {
		return d.Segments[0].ContentName
	}
	return ""
}

// Validate checks the structural invariants: either a complete locator
// triple, or a contiguous zero-based segment list with a content type.
func (d Descriptor) Validate() error {
	if !d.Segmented() {
		if !d.Locator().Complete() {
			return fmt.Errorf("%w: channelId, messageId and contentName are required", common.ErrMalformedDescriptor)
		}
		return nil
	}

	if d.ContentType == "" {
		return fmt.Errorf("%w: contentType is required for segmented content", common.ErrMalformedDescriptor)
	}

	seen := make([]bool, len(d.Segments))
	for _, s := range d.Segments {
		if !s.Locator().Complete() {
			return fmt.Errorf("%w: segment %d has an incomplete locator", common.ErrMalformedDescriptor, s.SegmentIndex)
		}
		if s.SegmentIndex < 0 || s.SegmentIndex >= len(d.Segments) || seen[s.SegmentIndex] {
			return fmt.Errorf("%w: segment indices must be unique and contiguous from 0", common.ErrMalformedDescriptor)
		}
		seen[s.SegmentIndex] = true
	}
	return nil
}

// Marshal returns the canonical serialization signed and encrypted into tokens.
func (d Descriptor) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(d); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Parse decodes and validates an authenticated plaintext. Wrong JSON types
// and missing required fields are reported as ErrMalformedDescriptor.
func Parse(data []byte) (Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return Descriptor{}, fmt.Errorf("%w: %v", common.ErrMalformedDescriptor, err)
	}
	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// ExpiresAt returns the expiry instant, ok=false when none is set.
func (d Descriptor) ExpiresAt() (t time.Time, ok bool, err error) {
	if d.ExpiredAt == "" {
		return time.Time{}, false, nil
	}
	ms, err := parseMillis(d.ExpiredAt)
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

// CheckExpiry fails with ErrInvalidExpiry for a non-numeric expiredAt and
// with ErrTokenExpired once now is past it.
func (d Descriptor) CheckExpiry(now time.Time) error {
	if d.ExpiredAt == "" {
		return nil
	}
	ms, err := parseMillis(d.ExpiredAt)
	if err != nil {
		return err
	}
	if now.UnixMilli() > ms {
		return common.ErrTokenExpired
	}
	return nil
}

// parseMillis accepts an integer or a finite decimal. Values outside the
// int64 range saturate.
func parseMillis(s string) (int64, error) {
	s = strings.TrimSpace(s)
	ms, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return ms, nil
	}
	if errors.Is(err, strconv.ErrRange) {
		if strings.HasPrefix(s, "-") {
			return math.MinInt64, nil
		}
		return math.MaxInt64, nil
	}

	if strings.ContainsAny(s, "xXpP_") {
		return 0, fmt.Errorf("%w: %q", common.ErrInvalidExpiry, s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) || err == nil && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return 0, fmt.Errorf("%w: %q", common.ErrInvalidExpiry, s)
	}
	switch {
	case f >= math.MaxInt64:
		return math.MaxInt64, nil
	case f <= math.MinInt64:
		return math.MinInt64, nil
	}
	return int64(f), nil
}
