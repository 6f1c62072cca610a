package segment

import (
	"errors"
	"fmt"
	"io"
)

var ErrInvalidChunkSize = errors.New("chunk size must be positive")

// ChunkSize picks the segment size for a payload of total bytes when no
// segment may exceed max. Payloads that would split into exactly two
// segments are balanced instead of leaving a small tail.
func ChunkSize(total, max int64) int64 {
	if max < 1 {
		max = 1
	}
	if total > 2*max {
		return max
	}
	half := (total + 1) / 2
	if half < 1 {
		return 1
	}
	return half
}

// Split reads r in chunks of exactly size bytes and hands each one to fn
// with its zero-based index. A shorter final chunk is delivered last; an
// empty remainder is not. fn owns the chunk it receives.
//
// Split stops at the first error from r or fn.
func Split(r io.Reader, size int, fn func(index int, chunk []byte) error) error {
	if size <= 0 {
		return ErrInvalidChunkSize
	}

	for index := 0; ; index++ {
		buf := make([]byte, size)
		n, err := io.ReadFull(r, buf)

		switch {
		case err == nil:
			if ferr := fn(index, buf); ferr != nil {
				return ferr
			}
		case errors.Is(err, io.ErrUnexpectedEOF):
			return fn(index, buf[:n])
		case errors.Is(err, io.EOF):
			return nil
		default:
			return fmt.Errorf("read segment %d: %w", index, err)
		}
	}
}
