package common

import "strings"

const (
	// MaxUploadSize is the largest payload stored as a single attachment.
	MaxUploadSize = 10 << 20
	// MaxSegmentSize bounds every segment of a split payload.
	MaxSegmentSize = 9 << 20
	// CacheMaxAgeSeconds is ten years, used for content that never expires.
	CacheMaxAgeSeconds = 315360000

	// RequestIDHeaderName is echoed on every response.
	RequestIDHeaderName = "X-Request-ID"
)

// IsInlineType reports whether content of this MIME type is displayed
// in the browser rather than downloaded.
func IsInlineType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return strings.HasPrefix(ct, "image/") ||
		strings.HasPrefix(ct, "video/") ||
		strings.HasPrefix(ct, "audio/")
}
