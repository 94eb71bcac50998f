package ocr

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecognizeWrapsEngineFailure(t *testing.T) {
	cause := errors.New("tessdata missing")
	engine := EngineFunc(func(ctx context.Context, in Input) (Result, error) {
		return Result{}, cause
	})

	_, err := Recognize(context.Background(), engine, Input{ID: "in-1"})
	require.Error(t, err)

	var re *RecognitionError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "in-1", re.InputID)
	assert.Equal(t, "func", re.Engine)
	assert.Equal(t, cause, errors.Cause(re.Err))
	assert.Contains(t, err.Error(), "tessdata missing")
}

func TestRecognizeRecoversPanics(t *testing.T) {
	engine := EngineFunc(func(ctx context.Context, in Input) (Result, error) {
		panic("native crash")
	})

	var err error
	assert.NotPanics(t, func() {
		_, err = Recognize(context.Background(), engine, Input{ID: "in-2"})
	})
	assert.True(t, IsRecognitionError(err))
}

func TestRecognizeHonoursCancelledContext(t *testing.T) {
	called := false
	engine := EngineFunc(func(ctx context.Context, in Input) (Result, error) {
		called = true
		return Result{}, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Recognize(ctx, engine, Input{})
	assert.True(t, IsRecognitionError(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestRecognizeFillsInputID(t *testing.T) {
	engine := EngineFunc(func(ctx context.Context, in Input) (Result, error) {
		return Result{Text: "42"}, nil
	})
	res, err := Recognize(context.Background(), engine, Input{ID: "in-3"})
	require.NoError(t, err)
	assert.Equal(t, "in-3", res.InputID)
	assert.Equal(t, "42", res.Text)
}

func TestRecognizeWithoutEngine(t *testing.T) {
	_, err := Recognize(context.Background(), nil, Input{ID: "x"})
	assert.True(t, IsRecognitionError(err))
}
