package kernels

import "image"

// Kernel is a 3x3 matrix of integer weights in row-major order.
type Kernel [9]int

// EdgeDetection is the Laplacian-style edge detector applied before OCR.
var EdgeDetection = Kernel{
	-1, -1, -1,
	-1, 8, -1,
	-1, -1, -1,
}

// Sum returns the sum of the kernel weights.
func (k Kernel) Sum() int {
	s := 0
	for _, w := range k {
		s += w
	}
	return s
}

// Convolve applies k to the colour channels of every interior pixel of buf,
// in place.
//
// Only pixels with a full 3x3 neighbourhood (1 <= x < W-1, 1 <= y < H-1) are
// visited, so the outermost 1px ring keeps its input values. Sums are read
// from the input values, never from pixels already rewritten by this pass.
// Each sum is stored with a truncating 8-bit store: uint8(sum) keeps the low
// eight bits, so -80 becomes 176 and 300 becomes 44. Alpha is never written.
//
// Arguments:
//   - buf: The pixel buffer to convolve. Its dimensions never change.
//   - k: The kernel to apply.
func Convolve(buf *image.NRGBA, k Kernel) {
	w := buf.Rect.Dx()
	h := buf.Rect.Dy()
	if w < 3 || h < 3 {
		return
	}

	src := make([]uint8, len(buf.Pix))
	copy(src, buf.Pix)
	stride := buf.Stride

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			var r, g, b int
			for ky := -1; ky <= 1; ky++ {
				row := (y + ky) * stride
				for kx := -1; kx <= 1; kx++ {
					weight := k[(ky+1)*3+(kx+1)]
					off := row + (x+kx)*4
					r += int(src[off]) * weight
					g += int(src[off+1]) * weight
					b += int(src[off+2]) * weight
				}
			}
			off := y*stride + x*4
			buf.Pix[off] = uint8(r)
			buf.Pix[off+1] = uint8(g)
			buf.Pix[off+2] = uint8(b)
		}
	}
}
