package ocr

import (
	"context"

	"github.com/nvr-ai/go-ocr/images"
)

// DigitsWhitelist restricts recognition to decimal digits.
const DigitsWhitelist = "0123456789"

// Common Tesseract language codes.
const (
	LanguageEnglish = "eng"
	LanguageArabic  = "ara"
)

// Progress statuses reported while an engine works on an input.
const (
	StatusInitializing = "initializing api"
	StatusRecognizing  = "recognizing text"
	StatusDone         = "done"
)

// ProgressEvent is a single progress notification from an engine.
type ProgressEvent struct {
	// InputID is the Input.ID being processed.
	InputID string `json:"input_id"`
	// Status is a short human-readable stage name.
	Status string `json:"status"`
	// Progress is the completion fraction of the stage in [0, 1].
	Progress float64 `json:"progress"`
}

// ProgressFunc receives progress events. It is called synchronously from the
// engine and must not block.
type ProgressFunc func(ProgressEvent)

// Input is a single image submitted for recognition.
type Input struct {
	// ID is echoed back in the corresponding Result.
	ID string
	// Image is the encoded image payload.
	Image []byte
	// Format declares the image format.
	Format images.ImageFormat
	// Languages are Tesseract language codes (e.g. "eng", "ara").
	Languages []string
	// Whitelist restricts recognition to these characters when non-empty.
	Whitelist string
	// Metadata carries engine-specific variables (e.g. "tessedit_pageseg_mode").
	Metadata map[string]string
	// Progress, when set, receives progress events.
	Progress ProgressFunc
}

// Report forwards a progress event if a ProgressFunc is configured.
func (in Input) Report(status string, progress float64) {
	if in.Progress != nil {
		in.Progress(ProgressEvent{InputID: in.ID, Status: status, Progress: progress})
	}
}

// Word is a single recognized token.
type Word struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Result captures the OCR output for one input.
type Result struct {
	// InputID mirrors the Input.ID that produced this result.
	InputID string `json:"input_id"`
	// Text is the linearized recognized text.
	Text string `json:"text"`
	// Words carries per-token confidences when the engine reports them.
	Words []Word `json:"words,omitempty"`
	// Confidence is the mean word confidence in [0, 1].
	Confidence float64 `json:"confidence"`
	// Language is the primary language used for recognition.
	Language string `json:"language"`
}

// Engine is the OCR provider contract: one image in, one result out.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, input Input) (Result, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, input Input) (Result, error)

// Name implements Engine.
func (f EngineFunc) Name() string { return "func" }

// Recognize implements Engine.
func (f EngineFunc) Recognize(ctx context.Context, input Input) (Result, error) {
	return f(ctx, input)
}
