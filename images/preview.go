package images

import (
	"image"

	"github.com/nfnt/resize"
)

const (
	// PreviewWidth is the width of the upload preview box.
	PreviewWidth = 300
	// PreviewHeight is the height of the upload preview box.
	PreviewHeight = 200
)

// Thumbnail scales img down to fit within maxWidth x maxHeight, preserving the
// aspect ratio. Images that already fit are returned unchanged.
//
// Arguments:
//   - img: The image to scale.
//   - maxWidth: The maximum width of the result.
//   - maxHeight: The maximum height of the result.
//
// Returns:
//   - image.Image: The scaled image.
func Thumbnail(img image.Image, maxWidth, maxHeight int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxWidth && b.Dy() <= maxHeight {
		return img
	}
	return resize.Thumbnail(uint(maxWidth), uint(maxHeight), img, resize.Lanczos3)
}

// Preview decodes data and encodes a PNG thumbnail sized for the preview box.
func Preview(data []byte) ([]byte, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return EncodePNG(Thumbnail(img, PreviewWidth, PreviewHeight))
}
