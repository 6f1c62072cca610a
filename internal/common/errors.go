// Package common defines shared constants and sentinel errors used across
// the token, transfer and HTTP layers of attachlink. Callers should use
// errors.Is / errors.As to match these values.
package common

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Token errors. ErrInvalidSignature is the only authenticity failure a
	// caller ever sees, whatever went wrong while opening the token.
	ErrInvalidSignature    = errors.New("invalid digit")
	ErrMalformedDescriptor = errors.New("malformed descriptor")
	ErrInvalidExpiry       = errors.New("invalid expiredAt format")
	ErrTokenExpired        = errors.New("token expired")

	// Image obfuscation errors.
	ErrUnsupportedImageType = errors.New("unsupported image type")
	ErrImageDecodeFailed    = errors.New("image decode failed")
	ErrImageEncodeFailed    = errors.New("image encode failed")

	// Segmented transfer errors.
	ErrSegmentUploadFailed = errors.New("segment upload failed")
	ErrSegmentFetchFailed  = errors.New("segment fetch failed")

	// Request validation errors.
	ErrBadRequest = errors.New("bad request")

	// Catch-all.
	ErrorInternal = errors.New("internal error")
)

// SegmentOp names the direction of a failed segment transfer.
type SegmentOp string

const (
	SegmentUpload SegmentOp = "upload"
	SegmentFetch  SegmentOp = "fetch"
)

// SegmentError reports which segment aborted a segmented transfer.
// It matches ErrSegmentUploadFailed or ErrSegmentFetchFailed depending on Op.
type SegmentError struct {
	Op    SegmentOp
	Index int
	Err   error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %d %s failed: %v", e.Index, e.Op, e.Err)
}

func (e *SegmentError) Unwrap() error { return e.Err }

func (e *SegmentError) Is(target error) bool {
	switch target {
	case ErrSegmentUploadFailed:
		return e.Op == SegmentUpload
	case ErrSegmentFetchFailed:
		return e.Op == SegmentFetch
	}
	return false
}

// UpstreamError carries the status and reason returned by the storage
// platform so the HTTP layer can pass them through verbatim.
type UpstreamError struct {
	Status int
	Reason string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream error: %d %s", e.Status, e.Reason)
}

// NewUpstreamError builds an UpstreamError, defaulting the reason to the
// standard status text.
func NewUpstreamError(status int, reason string) *UpstreamError {
	if reason == "" {
		reason = http.StatusText(status)
	}
	return &UpstreamError{Status: status, Reason: reason}
}
