package ocr

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/nvr-ai/go-ocr/images"
)

// InputOption mutates an OCR input.
type InputOption func(*Input)

// WithLanguages sets the recognition languages.
func WithLanguages(langs ...string) InputOption {
	return func(in *Input) { in.Languages = append([]string(nil), langs...) }
}

// WithWhitelist restricts recognition to the provided characters.
func WithWhitelist(chars string) InputOption {
	return func(in *Input) { in.Whitelist = chars }
}

// WithPageSegMode sets the Tesseract page segmentation mode.
// See https://tesseract-ocr.github.io/tessdoc/ImproveQuality.html#page-segmentation-method for values.
func WithPageSegMode(mode int) InputOption {
	return WithVariable("tessedit_pageseg_mode", strconv.Itoa(mode))
}

// WithVariable sets an engine-specific variable.
func WithVariable(key, value string) InputOption {
	return func(in *Input) {
		if in.Metadata == nil {
			in.Metadata = make(map[string]string)
		}
		in.Metadata[key] = value
	}
}

// WithProgress installs a progress callback.
func WithProgress(fn ProgressFunc) InputOption {
	return func(in *Input) { in.Progress = fn }
}

// WithID overrides the generated input ID.
func WithID(id string) InputOption {
	return func(in *Input) { in.ID = id }
}

// NewInput builds an Input for an encoded image. A random ID is generated
// unless WithID is given.
func NewInput(data []byte, opts ...InputOption) Input {
	in := Input{
		ID:     uuid.NewString(),
		Image:  data,
		Format: images.DetectFormat(data),
	}
	for _, opt := range opts {
		opt(&in)
	}
	return in
}
