package obfuscate

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"mime"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/dmitrijs2005/attachlink/internal/common"
)

type format struct {
	decode func(r *bytes.Reader) (image.Image, error)
	encode func(buf *bytes.Buffer, img image.Image, o options) error
}

var formats = map[string]format{
	"image/png": {
		decode: func(r *bytes.Reader) (image.Image, error) { return png.Decode(r) },
		encode: func(buf *bytes.Buffer, img image.Image, _ options) error { return png.Encode(buf, img) },
	},
	"image/jpeg": {
		decode: func(r *bytes.Reader) (image.Image, error) { return jpeg.Decode(r) },
		encode: func(buf *bytes.Buffer, img image.Image, o options) error {
			return jpeg.Encode(buf, img, &jpeg.Options{Quality: o.jpegQuality})
		},
	},
	"image/bmp": {
		decode: func(r *bytes.Reader) (image.Image, error) { return bmp.Decode(r) },
		encode: func(buf *bytes.Buffer, img image.Image, _ options) error { return bmp.Encode(buf, img) },
	},
	"image/tiff": {
		decode: func(r *bytes.Reader) (image.Image, error) { return tiff.Decode(r) },
		encode: func(buf *bytes.Buffer, img image.Image, _ options) error {
			return tiff.Encode(buf, img, &tiff.Options{Compression: tiff.Deflate})
		},
	},
}

var aliases = map[string]string{
	"image/jpg":      "image/jpeg",
	"image/pjpeg":    "image/jpeg",
	"image/x-ms-bmp": "image/bmp",
	"image/x-bmp":    "image/bmp",
}

// normalize strips parameters and maps alternative spellings onto the
// canonical MIME type.
func normalize(mimeType string) string {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mimeType))
	}
	if canonical, ok := aliases[mt]; ok {
		return canonical
	}
	return mt
}

// Supported reports whether images of this MIME type can be scrambled.
func Supported(mimeType string) bool {
	_, ok := formats[normalize(mimeType)]
	return ok
}

func lookup(mimeType string) (format, error) {
	f, ok := formats[normalize(mimeType)]
	if !ok {
		return format{}, fmt.Errorf("%w: %q", common.ErrUnsupportedImageType, mimeType)
	}
	return f, nil
}

func (f format) decodeBytes(data []byte) (image.Image, error) {
	img, err := f.decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrImageDecodeFailed, err)
	}
	return img, nil
}

func (f format) encodeBytes(img image.Image, o options) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.encode(&buf, img, o); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrImageEncodeFailed, err)
	}
	return buf.Bytes(), nil
}
