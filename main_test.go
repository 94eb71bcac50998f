package main

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-ocr/controller"
	"github.com/nvr-ai/go-ocr/images"
	"github.com/nvr-ai/go-ocr/log"
	"github.com/nvr-ai/go-ocr/ocr"
	"github.com/nvr-ai/go-ocr/state"
	"github.com/nvr-ai/go-ocr/util"
)

func TestValidateInputFlags(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(img, []byte("x"), 0o600))
	txt := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(txt, []byte("x"), 0o600))

	cfg, err := validateInputFlags(img, "")
	require.NoError(t, err)
	assert.Equal(t, InputImage, cfg.Type)

	cfg, err = validateInputFlags("", dir)
	require.NoError(t, err)
	assert.Equal(t, InputDirectory, cfg.Type)

	_, err = validateInputFlags(img, dir)
	assert.Error(t, err)
	_, err = validateInputFlags("", "")
	assert.Error(t, err)
	_, err = validateInputFlags(txt, "")
	assert.ErrorContains(t, err, "unsupported file extension")
	_, err = validateInputFlags(filepath.Join(dir, "missing.png"), "")
	assert.ErrorContains(t, err, "file not found")
	_, err = validateInputFlags("", img)
	assert.ErrorContains(t, err, "not a directory")
}

func TestProcessFilesKeepsOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 8, 8))))
	files := []util.ImageFile{
		{Name: "0.png", Data: buf.Bytes()},
		{Name: "1.txt", Data: []byte("nope")},
		{Name: "2.png", Data: buf.Bytes()},
	}
	engine := ocr.EngineFunc(func(context.Context, ocr.Input) (ocr.Result, error) {
		return ocr.Result{Text: " 9\n"}, nil
	})

	results, err := processFiles(context.Background(), controller.Digits(),
		controller.Dependencies{Engine: engine, Logger: log.Nop}, files, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, state.PhaseSuccess, results[0].state.Phase)
	assert.Equal(t, state.PhaseError, results[1].state.Phase)
	assert.Equal(t, "2.png", results[2].file.Name)
	assert.Equal(t, "9", oneLine(results[2].state.Text))

	out := t.TempDir()
	require.NoError(t, writeProcessed(out, results[0].file, results[0].state))
	data, err := os.ReadFile(filepath.Join(out, "processed_0.png"))
	require.NoError(t, err)
	img, err := images.New(data)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Width)
}
