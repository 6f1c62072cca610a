// Package obfuscate scrambles images by shuffling equal-sized blocks in a
// key-derived order, and puts them back.
//
// The block grid depends only on the image size: along each axis it is the
// largest divisor of the dimension not above TargetBlocks. Block n (1-based,
// raster order) is ranked by xxhash64 of one key character followed by the
// decimal n; ties keep raster order. Lossless formats restore pixel-exactly.
package obfuscate

import (
	"errors"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// ErrEmptyKey is returned when no obfuscation secret is configured.
var ErrEmptyKey = errors.New("obfuscation key is empty")

type options struct {
	jpegQuality int
}

type Option func(*options)

// WithJPEGQuality sets the re-encode quality for JPEG output (1-100).
func WithJPEGQuality(q int) Option {
	return func(o *options) {
		if q >= 1 && q <= 100 {
			o.jpegQuality = q
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{jpegQuality: jpeg.DefaultQuality}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Scramble decodes data as mimeType, permutes its blocks under key and
// re-encodes it in the same format.
func Scramble(data []byte, mimeType, key string, opts ...Option) ([]byte, error) {
	return transform(data, mimeType, key, opts, func(dst draw.Image, src image.Image, g grid, perm []int) {
		for k, from := range perm {
			copyBlock(dst, g.block(k), src, g.block(from))
		}
	})
}

// Restore undoes Scramble performed with the same key.
func Restore(data []byte, mimeType, key string, opts ...Option) ([]byte, error) {
	return transform(data, mimeType, key, opts, func(dst draw.Image, src image.Image, g grid, perm []int) {
		for k, to := range perm {
			copyBlock(dst, g.block(to), src, g.block(k))
		}
	})
}

func transform(data []byte, mimeType, key string, opts []Option, apply func(draw.Image, image.Image, grid, []int)) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	f, err := lookup(mimeType)
	if err != nil {
		return nil, err
	}
	src, err := f.decodeBytes(data)
	if err != nil {
		return nil, err
	}

	g := newGrid(src.Bounds())
	dst := newCanvas(src)
	apply(dst, src, g, permutation(key, g.count()))

	return f.encodeBytes(dst, buildOptions(opts))
}

func copyBlock(dst draw.Image, to image.Rectangle, src image.Image, from image.Rectangle) {
	draw.Draw(dst, to, src, from.Min, draw.Src)
}

// newCanvas allocates an image with the same bounds and, where possible,
// the same pixel model as src.
func newCanvas(src image.Image) draw.Image {
	b := src.Bounds()
	switch s := src.(type) {
	case *image.RGBA:
		return image.NewRGBA(b)
	case *image.NRGBA:
		return image.NewNRGBA(b)
	case *image.RGBA64:
		return image.NewRGBA64(b)
	case *image.NRGBA64:
		return image.NewNRGBA64(b)
	case *image.Gray:
		return image.NewGray(b)
	case *image.Gray16:
		return image.NewGray16(b)
	case *image.CMYK:
		return image.NewCMYK(b)
	case *image.Paletted:
		return image.NewPaletted(b, s.Palette)
	default:
		return image.NewRGBA(b)
	}
}
