package ocr

import (
	"context"

	"github.com/pkg/errors"
)

// RecognitionError reports a failure of the OCR collaborator.
type RecognitionError struct {
	// Engine is the name of the failing engine.
	Engine string
	// InputID is the input that failed.
	InputID string
	// Err is the underlying failure.
	Err error
}

func (e *RecognitionError) Error() string {
	return "ocr " + e.Engine + ": recognize " + e.InputID + ": " + e.Err.Error()
}

func (e *RecognitionError) Unwrap() error { return e.Err }

// IsRecognitionError reports whether err (or anything it wraps) is a
// *RecognitionError.
func IsRecognitionError(err error) bool {
	var re *RecognitionError
	return errors.As(err, &re)
}

// Recognize runs engine on input and normalizes failures. Any error, and any
// panic raised inside the engine, is returned as a *RecognitionError.
//
// Arguments:
//   - ctx: Cancels the recognition if the engine honours it.
//   - engine: The OCR engine.
//   - input: The image and recognition configuration.
//
// Returns:
//   - Result: The recognized text.
//   - error: A *RecognitionError on failure.
func Recognize(ctx context.Context, engine Engine, input Input) (res Result, err error) {
	if engine == nil {
		return Result{}, &RecognitionError{Engine: "none", InputID: input.ID, Err: errors.New("no ocr engine configured")}
	}
	defer func() {
		if r := recover(); r != nil {
			res = Result{}
			err = &RecognitionError{Engine: engine.Name(), InputID: input.ID, Err: errors.Errorf("engine panic: %v", r)}
		}
	}()

	if err := ctx.Err(); err != nil {
		return Result{}, &RecognitionError{Engine: engine.Name(), InputID: input.ID, Err: err}
	}
	res, err = engine.Recognize(ctx, input)
	if err != nil {
		if IsRecognitionError(err) {
			return Result{}, err
		}
		return Result{}, &RecognitionError{Engine: engine.Name(), InputID: input.ID, Err: err}
	}
	if res.InputID == "" {
		res.InputID = input.ID
	}
	return res, nil
}
