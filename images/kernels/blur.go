package kernels

import (
	"image"
	"math"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// EdgeMode defines how sampling behaves outside the image bounds.
// - Clamp: repeats edge pixels (fast, common, can darken edges slightly).
// - Mirror: reflects coordinates (better edge energy preservation).
// - Wrap: tiles the image (for periodic patterns).
type EdgeMode int

const (
	EdgeClamp EdgeMode = iota
	EdgeMirror
	EdgeWrap
)

var edgeModeNames = [...]string{EdgeClamp: "clamp", EdgeMirror: "mirror", EdgeWrap: "wrap"}

func (m EdgeMode) String() string {
	if m < 0 || int(m) >= len(edgeModeNames) {
		return "unknown"
	}
	return edgeModeNames[m]
}

// ParseEdgeMode parses "clamp", "mirror" or "wrap". An empty string is clamp.
func ParseEdgeMode(s string) (EdgeMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return EdgeClamp, nil
	}
	for m, name := range edgeModeNames {
		if s == name {
			return EdgeMode(m), nil
		}
	}
	return EdgeClamp, errors.Errorf("unknown edge mode %q", s)
}

// MarshalText encodes the mode by name, so config files carry "mirror"
// rather than an integer.
func (m EdgeMode) MarshalText() ([]byte, error) {
	if m < 0 || int(m) >= len(edgeModeNames) {
		return nil, errors.Errorf("unknown edge mode %d", int(m))
	}
	return []byte(edgeModeNames[m]), nil
}

func (m *EdgeMode) UnmarshalText(text []byte) error {
	parsed, err := ParseEdgeMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Options configures the blur call.
type Options struct {
	Radius   int      // Blur radius (window size = 2*Radius + 1). Must be >= 0.
	Edge     EdgeMode // Edge sampling mode.
	Pool     *Pool    // Optional buffer pool for intermediate/dst reuse.
	Parallel bool     // Enable row/column parallelism (good for large scans).
}

// Pool lets callers reuse large buffers between passes.
type Pool struct {
	nrgba sync.Pool // *image.NRGBA
}

func (p *Pool) GetNRGBA(bounds image.Rectangle) *image.NRGBA {
	if p == nil {
		return image.NewNRGBA(bounds)
	}
	if v := p.nrgba.Get(); v != nil {
		img := v.(*image.NRGBA)
		if img.Rect == bounds {
			return img
		}
	}
	return image.NewNRGBA(bounds)
}

func (p *Pool) PutNRGBA(img *image.NRGBA) {
	if p == nil || img == nil {
		return
	}
	// Every pass fully overwrites its destination, so no clearing is needed.
	p.nrgba.Put(img)
}

// BoxBlur applies a separable box blur to the colour channels of src.
//
// The blur runs a sliding window per row and then per column, so each pass is
// O(W*H) regardless of Radius. Only R, G and B are averaged; the alpha channel
// is copied through untouched, and the result has the same bounds as src.
//
// Arguments:
//   - src: The pixel buffer to blur. It is not modified.
//   - opt: Radius, edge mode, buffer pool and parallelism.
//
// Returns:
//   - *image.NRGBA: A new buffer holding the blurred pixels.
func BoxBlur(src *image.NRGBA, opt Options) *image.NRGBA {
	b := src.Rect
	dst := opt.Pool.GetNRGBA(b)
	if opt.Radius <= 0 {
		copyPix(dst, src)
		return dst
	}

	tmp := opt.Pool.GetNRGBA(b)
	boxBlurHoriz(src, tmp, opt.Radius, opt.Edge, opt.Parallel)
	boxBlurVert(tmp, dst, opt.Radius, opt.Edge, opt.Parallel)
	opt.Pool.PutNRGBA(tmp)
	return dst
}

// GaussianBlur approximates a Gaussian blur of standard deviation sigma with
// three successive box blurs.
//
// Arguments:
//   - src: The pixel buffer to blur. It is not modified.
//   - sigma: The standard deviation of the Gaussian, in pixels.
//   - opt: Edge mode, pool and parallelism. Radius is ignored.
//
// Returns:
//   - *image.NRGBA: A new buffer holding the blurred pixels.
func GaussianBlur(src *image.NRGBA, sigma float64, opt Options) *image.NRGBA {
	radii := BoxRadiiForGaussian(sigma, 3)
	out := src
	for _, r := range radii {
		opt.Radius = r
		next := BoxBlur(out, opt)
		if out != src {
			opt.Pool.PutNRGBA(out)
		}
		out = next
	}
	if out == src {
		out = BoxBlur(src, Options{Pool: opt.Pool})
	}
	return out
}

// BoxRadiiForGaussian returns the radii of n box blurs whose composition
// approximates a Gaussian of standard deviation sigma.
//
// See http://blog.ivank.net/fastest-gaussian-blur.html for the derivation.
func BoxRadiiForGaussian(sigma float64, n int) []int {
	if sigma <= 0 || n <= 0 {
		return nil
	}
	nf := float64(n)
	wIdeal := math.Sqrt(12*sigma*sigma/nf + 1)
	wl := int(math.Floor(wIdeal))
	if wl%2 == 0 {
		wl--
	}
	wu := wl + 2
	wlf := float64(wl)
	mIdeal := (12*sigma*sigma - nf*wlf*wlf - 4*nf*wlf - 3*nf) / (-4*wlf - 4)
	m := int(math.Round(mIdeal))

	radii := make([]int, n)
	for i := range radii {
		if i < m {
			radii[i] = (wl - 1) / 2
		} else {
			radii[i] = (wu - 1) / 2
		}
	}
	return radii
}

func copyPix(dst, src *image.NRGBA) {
	w := src.Rect.Dx() * 4
	for y := 0; y < src.Rect.Dy(); y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+w], src.Pix[y*src.Stride:y*src.Stride+w])
	}
}

// boxBlurHoriz blurs rows of src into dst using a sliding window.
// For each step to the right, the pixel leaving on the left is subtracted and
// the pixel entering on the right is added, keeping O(1) cost per pixel.
func boxBlurHoriz(src, dst *image.NRGBA, r int, edge EdgeMode, parallel bool) {
	w := src.Rect.Dx()
	h := src.Rect.Dy()
	if w == 0 || h == 0 {
		return
	}

	window := uint32(2*r + 1)
	half := window / 2
	rowTask := func(y int) {
		srcRow := y * src.Stride
		dstRow := y * dst.Stride

		load := func(xRel int) (uint32, uint32, uint32) {
			off := srcRow + mapCoord(xRel, w, edge)*4
			p := src.Pix[off : off+3 : off+3]
			return uint32(p[0]), uint32(p[1]), uint32(p[2])
		}

		var sumR, sumG, sumB uint32
		for dx := -r; dx <= r; dx++ {
			r8, g8, b8 := load(dx)
			sumR += r8
			sumG += g8
			sumB += b8
		}

		for x := 0; x < w; x++ {
			off := dstRow + x*4
			dst.Pix[off+0] = uint8((sumR + half) / window)
			dst.Pix[off+1] = uint8((sumG + half) / window)
			dst.Pix[off+2] = uint8((sumB + half) / window)
			dst.Pix[off+3] = src.Pix[srcRow+x*4+3]

			lr, lg, lb := load(x - r)
			rr, rg, rb := load(x + r + 1)
			sumR += rr - lr
			sumG += rg - lg
			sumB += rb - lb
		}
	}

	runChunked(h, parallel, rowTask)
}

// boxBlurVert mirrors the horizontal pass along columns.
func boxBlurVert(src, dst *image.NRGBA, r int, edge EdgeMode, parallel bool) {
	w := src.Rect.Dx()
	h := src.Rect.Dy()
	if w == 0 || h == 0 {
		return
	}

	window := uint32(2*r + 1)
	half := window / 2
	colTask := func(x int) {
		load := func(yRel int) (uint32, uint32, uint32) {
			off := mapCoord(yRel, h, edge)*src.Stride + x*4
			p := src.Pix[off : off+3 : off+3]
			return uint32(p[0]), uint32(p[1]), uint32(p[2])
		}

		var sumR, sumG, sumB uint32
		for dy := -r; dy <= r; dy++ {
			r8, g8, b8 := load(dy)
			sumR += r8
			sumG += g8
			sumB += b8
		}

		for y := 0; y < h; y++ {
			off := y*dst.Stride + x*4
			dst.Pix[off+0] = uint8((sumR + half) / window)
			dst.Pix[off+1] = uint8((sumG + half) / window)
			dst.Pix[off+2] = uint8((sumB + half) / window)
			dst.Pix[off+3] = src.Pix[y*src.Stride+x*4+3]

			lr, lg, lb := load(y - r)
			rr, rg, rb := load(y + r + 1)
			sumR += rr - lr
			sumG += rg - lg
			sumB += rb - lb
		}
	}

	runChunked(w, parallel, colTask)
}

// runChunked calls task for every index in [0, n), splitting the range across
// goroutines when parallel is set and n is large enough to benefit.
func runChunked(n int, parallel bool, task func(int)) {
	if !parallel || n < 4 {
		for i := 0; i < n; i++ {
			task(i)
		}
		return
	}
	chunk := chooseChunk(n)
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				task(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// mapCoord maps an index i to [0, n) according to edge mode.
// For Clamp: clamp to [0, n-1].
// For Mirror: reflect indices ... -2,-1,0,1,2, ... -> 1,0,0,1,2, ... (no duplication at edges).
// For Wrap: modulo wrap to [0, n).
func mapCoord(i, n int, mode EdgeMode) int {
	switch mode {
	case EdgeMirror:
		if n == 1 {
			return 0
		}
		for i < 0 || i >= n {
			if i < 0 {
				i = -i - 1
			} else {
				i = 2*n - i - 1
			}
		}
		return i
	case EdgeWrap:
		if n == 0 {
			return 0
		}
		i %= n
		if i < 0 {
			i += n
		}
		return i
	default:
		if i < 0 {
			return 0
		}
		if i >= n {
			return n - 1
		}
		return i
	}
}

// chooseChunk picks a work chunk size that balances overhead and cache locality.
func chooseChunk(n int) int {
	switch {
	case n >= 2048:
		return 128
	case n >= 512:
		return 64
	default:
		return 32
	}
}
