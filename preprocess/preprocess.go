// Package preprocess prepares raw images for OCR: decode, blur, edge detection
// and re-encode.
package preprocess

import (
	"image"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-ocr/images"
	"github.com/nvr-ai/go-ocr/images/kernels"
	"github.com/nvr-ai/go-ocr/log"
)

// DefaultBlurSigma is the standard deviation, in pixels, of the smoothing pass.
const DefaultBlurSigma = 2.0

// Options configures the preprocessing steps.
type Options struct {
	// BlurSigma is the Gaussian standard deviation of the blur pass. Zero
	// selects DefaultBlurSigma.
	BlurSigma float64 `json:"blur_sigma" yaml:"blur_sigma"`
	// SkipBlur disables the blur pass.
	SkipBlur bool `json:"skip_blur" yaml:"skip_blur"`
	// Edge selects how the blur samples beyond the image border.
	Edge kernels.EdgeMode `json:"edge_mode" yaml:"edge_mode"`
	// SkipEdges disables the edge-detection convolution.
	SkipEdges bool `json:"skip_edges" yaml:"skip_edges"`
	// Kernel overrides the convolution kernel. The zero value selects
	// kernels.EdgeDetection.
	Kernel kernels.Kernel `json:"-" yaml:"-"`
	// Parallel spreads the blur rows and columns across goroutines.
	Parallel bool `json:"parallel" yaml:"parallel"`
}

// Result is the processed image handed to the OCR engine.
type Result struct {
	// PNG is the encoded processed image.
	PNG []byte
	// DataURI is PNG as a base64 data URI.
	DataURI string
	// Width is the width of the processed image, equal to the input width.
	Width int
	// Height is the height of the processed image, equal to the input height.
	Height int
	// SourceFormat is the sniffed format of the raw input.
	SourceFormat images.ImageFormat
}

// Preprocessor runs the blur + edge-detection pipeline. It holds no per-call
// state, so one instance may serve concurrent calls.
type Preprocessor struct {
	opts   Options
	pool   *kernels.Pool
	logger log.Logger
}

// NewPreprocessor creates a new preprocessor with the given options.
//
// Arguments:
//   - opts: The preprocessing options. Zero values select the defaults.
//
// Returns:
//   - *Preprocessor: A configured preprocessor.
//
// @example
//
//	p := preprocess.NewPreprocessor(preprocess.Options{})
//	res, err := p.Preprocess(pngBytes)
func NewPreprocessor(opts Options) *Preprocessor {
	if opts.BlurSigma <= 0 {
		opts.BlurSigma = DefaultBlurSigma
	}
	if opts.Kernel == (kernels.Kernel{}) {
		opts.Kernel = kernels.EdgeDetection
	}
	return &Preprocessor{
		opts:   opts,
		pool:   &kernels.Pool{},
		logger: log.Default,
	}
}

// SetLogger replaces the logger used for debug output.
func (p *Preprocessor) SetLogger(l log.Logger) {
	if l != nil {
		p.logger = l
	}
}

// Options returns the effective options.
func (p *Preprocessor) Options() Options { return p.opts }

// Preprocess decodes raw, applies the blur and edge-detection passes and
// encodes the result as PNG.
//
// There is no cancellation: once started, a call runs to completion or
// failure.
//
// Arguments:
//   - raw: The encoded input image (PNG, JPEG, ...).
//
// Returns:
//   - *Result: The processed image, with the same dimensions as the input.
//   - error: An *images.DecodeError if raw is not a loadable image.
func (p *Preprocessor) Preprocess(raw []byte) (*Result, error) {
	buf, err := images.Decode(raw)
	if err != nil {
		return nil, err
	}
	p.logger.Debugf("preprocess: decoded %dx%d image", buf.Rect.Dx(), buf.Rect.Dy())

	buf = p.Apply(buf)

	data, err := images.EncodePNG(buf)
	if err != nil {
		return nil, errors.Wrap(err, "encode processed image")
	}
	p.logger.Debugf("preprocess: encoded %d bytes", len(data))

	return &Result{
		PNG:          data,
		DataURI:      images.EncodeDataURI(data),
		Width:        buf.Rect.Dx(),
		Height:       buf.Rect.Dy(),
		SourceFormat: images.DetectFormat(raw),
	}, nil
}

// Apply runs the blur and convolution passes on buf. Ownership of buf passes
// to Apply; the returned buffer has the same bounds and must be used instead.
func (p *Preprocessor) Apply(buf *image.NRGBA) *image.NRGBA {
	if !p.opts.SkipBlur {
		blurred := kernels.GaussianBlur(buf, p.opts.BlurSigma, kernels.Options{
			Edge:     p.opts.Edge,
			Pool:     p.pool,
			Parallel: p.opts.Parallel,
		})
		buf = blurred
	}
	if !p.opts.SkipEdges {
		kernels.Convolve(buf, p.opts.Kernel)
	}
	return buf
}
