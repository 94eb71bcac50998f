package images

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeTestPNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNewReadsHeader(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 12, 7))
	data := encodeTestPNG(t, img)

	got, err := New(data)
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, got.Format)
	assert.Equal(t, 12, got.Width)
	assert.Equal(t, 7, got.Height)
}

func TestDecodeJPEG(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 16, 9))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, src, nil))

	got, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 16, 9), got.Rect)
	assert.Equal(t, 16*4, got.Stride)
}

func TestDecodeRejectsNonImage(t *testing.T) {
	cases := map[string][]byte{
		"empty":         nil,
		"text":          []byte("definitely not an image"),
		"truncated png": encodeTestPNG(t, image.NewNRGBA(image.Rect(0, 0, 4, 4)))[:20],
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, err := Decode(data)
				require.Error(t, err)
				assert.True(t, IsDecodeError(err), "expected DecodeError, got %T", err)
			})
		})
	}
}

// pngDeclaring returns a small PNG whose header claims w x h pixels.
func pngDeclaring(t *testing.T, w, h uint32) []byte {
	t.Helper()
	data := encodeTestPNG(t, image.NewNRGBA(image.Rect(0, 0, 1, 1)))
	// Signature (8) + length (4) + "IHDR" (4), then width and height.
	require.Equal(t, "IHDR", string(data[12:16]))
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}

func TestRejectsOversizedImage(t *testing.T) {
	data := pngDeclaring(t, 20000, 20000)

	_, err := New(data)
	require.Error(t, err)
	assert.True(t, IsDecodeError(err))
	assert.Contains(t, err.Error(), "exceeds")

	_, err = Decode(data)
	require.Error(t, err)
	assert.True(t, IsDecodeError(err))

	got, err := New(pngDeclaring(t, 4000, 3000))
	require.NoError(t, err, "header within the limit is accepted")
	assert.Equal(t, 4000, got.Width)
}

func TestToNRGBACopiesAndReanchors(t *testing.T) {
	src := image.NewNRGBA(image.Rect(5, 5, 8, 7))
	src.SetNRGBA(5, 5, color.NRGBA{R: 1, G: 2, B: 3, A: 4})

	dst := ToNRGBA(src)
	assert.Equal(t, image.Rect(0, 0, 3, 2), dst.Rect)
	assert.Equal(t, color.NRGBA{R: 1, G: 2, B: 3, A: 4}, dst.NRGBAAt(0, 0))

	dst.Pix[0] = 99
	assert.Equal(t, uint8(1), src.NRGBAAt(5, 5).R, "source must not alias the copy")
}

func TestDataURIRoundTrip(t *testing.T) {
	data := encodeTestPNG(t, image.NewNRGBA(image.Rect(0, 0, 2, 2)))
	uri := EncodeDataURI(data)
	assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))

	back, err := DecodeDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, data, back)

	_, err = DecodeDataURI("data:text/plain,hello")
	assert.True(t, IsDecodeError(err))
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJPEG, ParseFormat("image/jpeg"))
	assert.Equal(t, FormatJPEG, ParseFormat("JPG"))
	assert.Equal(t, FormatWebP, ParseFormat("webp"))
	assert.Equal(t, FormatUnknown, ParseFormat("text/plain; charset=utf-8"))
	assert.Equal(t, "image/png", FormatPNG.MIMEType())
}

func TestThumbnailFitsPreviewBox(t *testing.T) {
	big := image.NewNRGBA(image.Rect(0, 0, 900, 300))
	thumb := Thumbnail(big, PreviewWidth, PreviewHeight)
	assert.LessOrEqual(t, thumb.Bounds().Dx(), PreviewWidth)
	assert.LessOrEqual(t, thumb.Bounds().Dy(), PreviewHeight)

	small := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	assert.Same(t, small, Thumbnail(small, PreviewWidth, PreviewHeight).(*image.NRGBA))
}
