// Package images - Raw image model and the decode/encode boundary used by the OCR pipeline.
package images

import (
	"bytes"
	"image"
	"image/draw"

	// Register the decoders accepted from uploads and sketch snapshots.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/pkg/errors"
)

// MaxPixels bounds width*height of an accepted image so a small, highly
// compressed file cannot expand into buffers of several gigabytes.
const MaxPixels = 1 << 25

// Image represents an encoded image with its format and natural dimensions.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"-" yaml:"-"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
}

// DecodeError is returned when a byte sequence cannot be loaded as an image.
type DecodeError struct {
	// Format is the format sniffed from the input, if any.
	Format ImageFormat
	// Err is the underlying decoder failure.
	Err error
}

func (e *DecodeError) Error() string {
	if e.Format != "" && e.Format != FormatUnknown {
		return "decode " + string(e.Format) + " image: " + e.Err.Error()
	}
	return "decode image: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecodeError reports whether err (or anything it wraps) is a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// New reads the header of data and returns an Image describing it.
//
// Arguments:
//   - data: The encoded image bytes.
//
// Returns:
//   - *Image: The image with format and natural dimensions populated.
//   - error: A *DecodeError if data is not a supported image or has more
//     than MaxPixels pixels.
func New(data []byte) (*Image, error) {
	cfg, name, err := decodeConfig(data)
	if err != nil {
		return nil, err
	}
	return &Image{
		Format: ParseFormat(name),
		Data:   data,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

// Decode loads encoded image bytes into an exclusively owned pixel buffer.
//
// The returned buffer is non-premultiplied RGBA anchored at the origin, so the
// flat Pix slice is indexed by (y*width + x)*4 + channel.
//
// Arguments:
//   - data: The encoded image bytes (PNG, JPEG, GIF, BMP or WebP).
//
// Returns:
//   - *image.NRGBA: The decoded pixel buffer at the image's natural size.
//   - error: A *DecodeError if data is not a supported image or has more
//     than MaxPixels pixels.
func Decode(data []byte) (*image.NRGBA, error) {
	if _, _, err := decodeConfig(data); err != nil {
		return nil, err
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Format: DetectFormat(data), Err: err}
	}
	return ToNRGBA(src), nil
}

// decodeConfig reads the image header and enforces MaxPixels.
func decodeConfig(data []byte) (image.Config, string, error) {
	if len(data) == 0 {
		return image.Config{}, "", &DecodeError{Err: errors.New("image data is empty")}
	}
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", &DecodeError{Format: DetectFormat(data), Err: errors.Wrap(err, "read image header")}
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return image.Config{}, "", &DecodeError{
			Format: ParseFormat(name),
			Err:    errors.Errorf("image %dx%d exceeds %d pixels", cfg.Width, cfg.Height, MaxPixels),
		}
	}
	return cfg, name, nil
}

// ToNRGBA copies src into a new origin-anchored *image.NRGBA.
//
// The copy is always made, even when src is already NRGBA, because callers
// mutate the returned buffer in place.
func ToNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if n, ok := src.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			so := n.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+b.Dx()*4], n.Pix[so:so+b.Dx()*4])
		}
		return dst
	}
	draw.Draw(dst, dst.Rect, src, b.Min, draw.Src)
	return dst
}
