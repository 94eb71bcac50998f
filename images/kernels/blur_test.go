package kernels

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlurOperationsRadiusZeroReturnsCopy(t *testing.T) {
	img := genNRGBA(8, 7, true)
	out := BoxBlur(img, Options{Radius: 0, Edge: EdgeClamp})
	require.Equal(t, img.Bounds(), out.Bounds())
	assert.Equal(t, img.Pix, out.Pix)

	out.Pix[0]++
	assert.NotEqual(t, img.Pix[0], out.Pix[0], "not a copy")
}

func TestBlurOperationsUniformImageUnchanged(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 9, 6))
	for i := 0; i < len(img.Pix); i += 4 {
		copy(img.Pix[i:i+4], []uint8{10, 20, 30, 255})
	}
	for _, edge := range []EdgeMode{EdgeClamp, EdgeMirror, EdgeWrap} {
		out := BoxBlur(img, Options{Radius: 2, Edge: edge})
		assert.Equal(t, img.Pix, out.Pix, "edge mode %d", edge)
	}
}

func TestBlurOperationsSpreadsImpulse(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 1))
	img.SetNRGBA(0, 0, color.NRGBA{0, 0, 0, 255})
	img.SetNRGBA(1, 0, color.NRGBA{255, 0, 0, 255})
	img.SetNRGBA(2, 0, color.NRGBA{0, 0, 0, 255})

	out := BoxBlur(img, Options{Radius: 1, Edge: EdgeClamp})
	// Window of three: (0+255+0)/3 at the centre, (0+0+255)/3 at the clamped edges.
	assert.Equal(t, uint8(85), out.NRGBAAt(1, 0).R)
	assert.Equal(t, uint8(85), out.NRGBAAt(0, 0).R)

	wrap := BoxBlur(img, Options{Radius: 1, Edge: EdgeWrap})
	assert.Equal(t, uint8(85), wrap.NRGBAAt(2, 0).R)
}

func TestBlurOperationsPreservesAlpha(t *testing.T) {
	img := genNRGBA(32, 20, true)
	out := GaussianBlur(img, 2, Options{Edge: EdgeClamp, Parallel: true})
	require.Equal(t, img.Rect, out.Rect)
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != out.Pix[i] {
			t.Fatalf("alpha changed at byte %d: %d -> %d", i, img.Pix[i], out.Pix[i])
		}
	}
}

func TestBlurOperationsParallelMatchesSequential(t *testing.T) {
	img := genNRGBA(600, 40, false)
	seq := BoxBlur(img, Options{Radius: 2, Edge: EdgeMirror})
	par := BoxBlur(img, Options{Radius: 2, Edge: EdgeMirror, Parallel: true, Pool: &Pool{}})
	assert.Equal(t, seq.Pix, par.Pix)
}

func TestBoxRadiiForGaussian(t *testing.T) {
	// sigma=2 with three passes gives widths 3, 3, 5.
	assert.Equal(t, []int{1, 1, 2}, BoxRadiiForGaussian(2, 3))
	assert.Nil(t, BoxRadiiForGaussian(0, 3))
}

func TestMapCoord(t *testing.T) {
	assert.Equal(t, 0, mapCoord(-3, 5, EdgeClamp))
	assert.Equal(t, 4, mapCoord(9, 5, EdgeClamp))
	assert.Equal(t, 1, mapCoord(-2, 5, EdgeMirror))
	assert.Equal(t, 4, mapCoord(5, 5, EdgeMirror))
	assert.Equal(t, 3, mapCoord(-2, 5, EdgeWrap))
	assert.Equal(t, 0, mapCoord(5, 5, EdgeWrap))
}

func TestEdgeModeText(t *testing.T) {
	for _, m := range []EdgeMode{EdgeClamp, EdgeMirror, EdgeWrap} {
		text, err := m.MarshalText()
		require.NoError(t, err)
		var back EdgeMode
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, m, back)
	}

	m, err := ParseEdgeMode(" Mirror ")
	require.NoError(t, err)
	assert.Equal(t, EdgeMirror, m)
	m, err = ParseEdgeMode("")
	require.NoError(t, err)
	assert.Equal(t, EdgeClamp, m)

	_, err = ParseEdgeMode("sideways")
	assert.Error(t, err)
	_, err = EdgeMode(9).MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "wrap", EdgeWrap.String())
}
