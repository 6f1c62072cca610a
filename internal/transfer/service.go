// Package transfer ties tokens, upstream storage, segmentation and image
// obfuscation together into the operations the HTTP surface exposes.
package transfer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/attachlink/internal/common"
	"github.com/dmitrijs2005/attachlink/internal/descriptor"
	"github.com/dmitrijs2005/attachlink/internal/logging"
	"github.com/dmitrijs2005/attachlink/internal/metrics"
	"github.com/dmitrijs2005/attachlink/internal/obfuscate"
	"github.com/dmitrijs2005/attachlink/internal/segment"
	"github.com/dmitrijs2005/attachlink/internal/token"
	"github.com/dmitrijs2005/attachlink/internal/upstream"
)

type Codec interface {
	Encode(d descriptor.Descriptor) (token.Token, error)
	Decode(digit, encrypted string) (descriptor.Descriptor, error)
}

type Upstream interface {
	Resolve(ctx context.Context, l descriptor.Locator) (*upstream.Object, error)
	Upload(ctx context.Context, f upstream.File) (descriptor.Locator, error)
}

type Segmenter interface {
	Upload(ctx context.Context, r io.Reader, total int64, name, contentType string) ([]descriptor.Segment, error)
	Download(ctx context.Context, segments []descriptor.Segment) (*segment.Assembly, error)
}

type Options struct {
	// MaxUploadSize is the largest payload stored as one blob.
	MaxUploadSize   int64
	ObfuscateImages bool
	ImageSecret     string
	JPEGQuality     int
}

type Service struct {
	codec    Codec
	upstream Upstream
	segments Segmenter
	opts     Options
	logger   logging.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewService(codec Codec, up Upstream, seg Segmenter, opts Options, logger logging.Logger, m *metrics.Metrics) *Service {
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = common.MaxUploadSize
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{
		codec:    codec,
		upstream: up,
		segments: seg,
		opts:     opts,
		logger:   logger.With("module", "transfer"),
		metrics:  m,
		now:      time.Now,
	}
}

// Upload is one file handed to Store.
type Upload struct {
	Body io.Reader
	// Size is the payload length, or negative when unknown.
	Size        int64
	FileName    string
	ContentType string
	ExpiredAt   string
}

// Content is a resolved token ready to stream. The caller closes Body.
type Content struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	FileName      string
	// ExpiresAt is zero for content without an expiry.
	ExpiresAt time.Time
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrBadRequest, fmt.Sprintf(format, args...))
}

// Issue mints a token for content the caller already stored. Segment lists
// are built only by Store and are refused here. A scrambled flag is only
// accepted for image types Restore can decode.
func (s *Service) Issue(ctx context.Context, d descriptor.Descriptor) (token.Token, error) {
	if len(d.Segments) > 0 {
		return token.Token{}, badRequest("segments cannot be supplied")
	}
	if d.Scrambled && !obfuscate.Supported(d.ContentType) {
		return token.Token{}, badRequest("scrambled requires a supported image contentType, got %q", d.ContentType)
	}
	if !d.Locator().Complete() {
		return token.Token{}, badRequest("channelId, messageId and contentName are required")
	}
	return s.issue(ctx, d)
}

func (s *Service) issue(ctx context.Context, d descriptor.Descriptor) (token.Token, error) {
	if err := d.CheckExpiry(s.now()); err != nil {
		return token.Token{}, err
	}
	if err := d.Validate(); err != nil {
		return token.Token{}, err
	}
	tok, err := s.codec.Encode(d)
	if err != nil {
		return token.Token{}, err
	}
	s.logger.Debug(ctx, "token issued", "segmented", d.Segmented(), "scrambled", d.Scrambled)
	return tok, nil
}

// sniff fills in a missing or generic content type from the first bytes.
func sniff(r io.Reader, declared string) (io.Reader, string) {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		return r, declared
	}
	br := bufio.NewReaderSize(r, 512)
	head, _ := br.Peek(512)
	return br, http.DetectContentType(head)
}

func storedName(name string) string {
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(strings.TrimSpace(name))
	if name == "" {
		return "file"
	}
	return name
}

// Store uploads a file and returns a token for it. Supported images are
// scrambled first when obfuscation is on. Payloads above MaxUploadSize are
// split into segments.
func (s *Service) Store(ctx context.Context, u Upload) (token.Token, error) {
	d := descriptor.Descriptor{
		OriginalFileName: u.FileName,
		ExpiredAt:        u.ExpiredAt,
	}
	if err := d.CheckExpiry(s.now()); err != nil {
		return token.Token{}, err
	}

	body, contentType := sniff(u.Body, u.ContentType)
	d.ContentType = contentType
	size := u.Size
	name := storedName(u.FileName)

	if s.opts.ObfuscateImages && obfuscate.Supported(contentType) {
		data, err := io.ReadAll(body)
		if err != nil {
			return token.Token{}, err
		}
		scrambled, err := s.Scramble(ctx, data, contentType)
		if err != nil {
			return token.Token{}, err
		}
		body, size = bytes.NewReader(scrambled), int64(len(scrambled))
		d.Scrambled = true
	}

	if size < 0 {
		data, err := io.ReadAll(body)
		if err != nil {
			return token.Token{}, err
		}
		body, size = bytes.NewReader(data), int64(len(data))
	}

	if size > s.opts.MaxUploadSize {
		segments, err := s.segments.Upload(ctx, body, size, name, contentType)
		if err != nil {
			return token.Token{}, err
		}
		d.Segments = segments
	} else {
		data, err := io.ReadAll(io.LimitReader(body, size))
		if err != nil {
			return token.Token{}, err
		}
		loc, err := s.upstream.Upload(ctx, upstream.File{Name: name, ContentType: contentType, Data: data})
		if err != nil {
			return token.Token{}, err
		}
		d.ChannelID, d.MessageID, d.ContentName = loc.ChannelID, loc.MessageID, loc.ContentName
	}

	s.metrics.AddBytes("in", size)
	s.logger.Info(ctx, "content stored", "name", name, "bytes", size, "segments", len(d.Segments), "scrambled", d.Scrambled)
	return s.issue(ctx, d)
}

// Retrieve authenticates a token and opens the content it points to.
func (s *Service) Retrieve(ctx context.Context, digit, encrypted string) (*Content, error) {
	d, err := s.codec.Decode(digit, encrypted)
	if err != nil {
		return nil, err
	}

	c := &Content{FileName: d.FileName(), ContentType: d.ContentType}
	if t, ok, _ := d.ExpiresAt(); ok {
		c.ExpiresAt = t
	}

	if d.Segmented() {
		asm, err := s.segments.Download(ctx, d.Segments)
		if err != nil {
			return nil, err
		}
		c.Body, c.ContentLength = io.NopCloser(asm.Reader()), asm.Len()
	} else {
		obj, err := s.upstream.Resolve(ctx, d.Locator())
		if err != nil {
			return nil, err
		}
		c.Body, c.ContentLength = obj.Body, obj.ContentLength
		if c.ContentType == "" {
			c.ContentType = obj.ContentType
		}
	}
	if c.ContentType == "" {
		c.ContentType = "application/octet-stream"
	}

	if d.Scrambled {
		if err := s.restore(c); err != nil {
			return nil, err
		}
	}

	s.metrics.AddBytes("out", c.ContentLength)
	return c, nil
}

func (s *Service) restore(c *Content) error {
	defer c.Body.Close()

	data, err := io.ReadAll(c.Body)
	if err != nil {
		return err
	}
	restored, err := obfuscate.Restore(data, c.ContentType, s.opts.ImageSecret, obfuscate.WithJPEGQuality(s.opts.JPEGQuality))
	if err != nil {
		return err
	}
	c.Body = io.NopCloser(bytes.NewReader(restored))
	c.ContentLength = int64(len(restored))
	return nil
}

// Scramble obfuscates an image with the configured secret.
func (s *Service) Scramble(_ context.Context, data []byte, mimeType string) ([]byte, error) {
	out, err := obfuscate.Scramble(data, mimeType, s.opts.ImageSecret, obfuscate.WithJPEGQuality(s.opts.JPEGQuality))
	if errors.Is(err, obfuscate.ErrEmptyKey) {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return out, err
}
