package images

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// ImageFormat represents supported image formats
type ImageFormat string

const (
	FormatJPEG    ImageFormat = "jpeg"
	FormatPNG     ImageFormat = "png"
	FormatGIF     ImageFormat = "gif"
	FormatBMP     ImageFormat = "bmp"
	FormatWebP    ImageFormat = "webp"
	FormatUnknown ImageFormat = "unknown"
)

// dataURIPrefix is the only data URI layout produced by EncodeDataURI.
const dataURIPrefix = "data:image/png;base64,"

// MIMEType returns the web MIME type for the format.
func (f ImageFormat) MIMEType() string {
	switch f {
	case FormatUnknown, "":
		return "application/octet-stream"
	default:
		return "image/" + string(f)
	}
}

// ParseFormat maps a decoder name or MIME type to an ImageFormat.
func ParseFormat(name string) ImageFormat {
	name = strings.TrimPrefix(strings.ToLower(name), "image/")
	switch name {
	case "jpeg", "jpg":
		return FormatJPEG
	case "png":
		return FormatPNG
	case "gif":
		return FormatGIF
	case "bmp", "x-ms-bmp":
		return FormatBMP
	case "webp":
		return FormatWebP
	default:
		return FormatUnknown
	}
}

// DetectFormat sniffs the content type of data.
func DetectFormat(data []byte) ImageFormat {
	return ParseFormat(http.DetectContentType(data))
}

// EncodePNG serializes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(err, "encode png")
	}
	return buf.Bytes(), nil
}

// EncodeDataURI wraps PNG bytes in a base64 data URI.
func EncodeDataURI(pngData []byte) string {
	return dataURIPrefix + base64.StdEncoding.EncodeToString(pngData)
}

// DecodeDataURI extracts the payload from a base64 image data URI.
//
// Arguments:
//   - uri: A data URI such as "data:image/png;base64,iVBORw0...".
//
// Returns:
//   - []byte: The decoded payload.
//   - error: A *DecodeError if uri is not a base64 image data URI.
func DecodeDataURI(uri string) ([]byte, error) {
	header, payload, ok := strings.Cut(uri, ",")
	if !ok || !strings.HasPrefix(header, "data:image/") || !strings.HasSuffix(header, ";base64") {
		return nil, &DecodeError{Err: errors.New("not a base64 image data uri")}
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, &DecodeError{Err: errors.Wrap(err, "decode base64 payload")}
	}
	return data, nil
}
