package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-ocr/images/kernels"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 2.0, cfg.Preprocess.BlurSigma)
	assert.Equal(t, "https://api.mymemory.translated.net", cfg.Translate.Endpoint)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: "127.0.0.1:9000"
  read_timeout: 5s
log:
  level: debug
preprocess:
  blur_sigma: 1.5
  edge_mode: mirror
  skip_edges: true
translate:
  email: ops@example.com
workers: 8
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxUploadBytes)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 1.5, cfg.Preprocess.BlurSigma)
	assert.True(t, cfg.Preprocess.SkipEdges)
	assert.Equal(t, kernels.EdgeMirror, cfg.Preprocess.Edge)
	assert.Equal(t, "ops@example.com", cfg.Translate.Email)
	assert.Equal(t, 15*time.Second, cfg.Translate.Timeout)
	assert.Equal(t, 8, cfg.Workers)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "workers: [oops"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "workers: 0"))
	assert.ErrorContains(t, err, "workers")

	_, err = Load(writeConfig(t, "preprocess:\n  edge_mode: sideways\n"))
	assert.ErrorContains(t, err, "edge mode")

	cfg := Default()
	cfg.Preprocess.Edge = kernels.EdgeMode(7)
	assert.ErrorContains(t, cfg.Validate(), "edge_mode")
}
