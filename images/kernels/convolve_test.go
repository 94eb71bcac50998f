package kernels

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func fill(img *image.NRGBA, c color.NRGBA) {
	for y := 0; y < img.Rect.Dy(); y++ {
		for x := 0; x < img.Rect.Dx(); x++ {
			img.SetNRGBA(x, y, c)
		}
	}
}

func TestEdgeDetectionWeightsSumToZero(t *testing.T) {
	assert.Equal(t, 0, EdgeDetection.Sum())
}

func TestConvolveUniformInteriorIsZero(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 7, 5))
	c := color.NRGBA{R: 120, G: 33, B: 250, A: 200}
	fill(img, c)

	Convolve(img, EdgeDetection)

	for y := 0; y < 5; y++ {
		for x := 0; x < 7; x++ {
			got := img.NRGBAAt(x, y)
			if x == 0 || y == 0 || x == 6 || y == 4 {
				assert.Equal(t, c, got, "border pixel (%d,%d) must be untouched", x, y)
				continue
			}
			assert.Equal(t, color.NRGBA{R: 0, G: 0, B: 0, A: 200}, got, "interior pixel (%d,%d)", x, y)
		}
	}
}

func TestConvolveTruncatesInsteadOfClamping(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	fill(img, color.NRGBA{R: 10, G: 0, B: 100, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{R: 0, G: 40, B: 0, A: 255})

	Convolve(img, EdgeDetection)

	got := img.NRGBAAt(1, 1)
	// R: 8*0 - 8*10 = -80 stored as 176.
	assert.Equal(t, uint8(176), got.R)
	// G: 8*40 - 0 = 320 stored as 64.
	assert.Equal(t, uint8(64), got.G)
	// B: 0 - 800 = -800 stored as 224.
	assert.Equal(t, uint8(224), got.B)
	assert.Equal(t, uint8(255), got.A)
}

func TestConvolveReadsInputValuesOnly(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	fill(img, color.NRGBA{R: 50, G: 50, B: 50, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{R: 60, G: 50, B: 50, A: 255})

	Convolve(img, EdgeDetection)

	// (2,1) sees the input value 60 at (1,1), not the rewritten value.
	assert.Equal(t, uint8(246), img.NRGBAAt(2, 1).R) // -10
	assert.Equal(t, uint8(80), img.NRGBAAt(1, 1).R)
}

func TestConvolveSmallImagesUntouched(t *testing.T) {
	for _, r := range []image.Rectangle{image.Rect(0, 0, 2, 5), image.Rect(0, 0, 5, 2), image.Rect(0, 0, 1, 1)} {
		img := genNRGBA(r.Dx(), r.Dy(), true)
		before := append([]uint8(nil), img.Pix...)
		Convolve(img, EdgeDetection)
		assert.Equal(t, before, img.Pix)
	}
}
