// Package config loads the service configuration from YAML.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-ocr/images/kernels"
	"github.com/nvr-ai/go-ocr/preprocess"
	"github.com/nvr-ai/go-ocr/translate"
)

// Config is the top-level configuration.
type Config struct {
	Server     ServerConfig       `yaml:"server"`
	Log        LogConfig          `yaml:"log"`
	Preprocess preprocess.Options `yaml:"preprocess"`
	OCR        OCRConfig          `yaml:"ocr"`
	Translate  TranslateConfig    `yaml:"translate"`
	Workers    int                `yaml:"workers"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// OCRConfig configures the Tesseract engine.
type OCRConfig struct {
	TessdataPrefix string        `yaml:"tessdata_prefix"`
	Timeout        time.Duration `yaml:"timeout"`
}

// TranslateConfig configures the MyMemory client.
type TranslateConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Email    string        `yaml:"email"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
			MaxUploadBytes: 10 << 20,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   2 * time.Minute,
		},
		Log:        LogConfig{Level: "info"},
		Preprocess: preprocess.Options{BlurSigma: preprocess.DefaultBlurSigma},
		OCR:        OCRConfig{Timeout: time.Minute},
		Translate: TranslateConfig{
			Endpoint: translate.DefaultMyMemoryEndpoint,
			Timeout:  15 * time.Second,
		},
		Workers: 4,
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default values.
//
// Arguments:
//   - path: The YAML file to read.
//
// Returns:
//   - Config: The merged configuration.
//   - error: If the file cannot be read, parsed or validated.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, cfg.Validate()
}

// Validate checks the values that would otherwise fail late at runtime.
func (c Config) Validate() error {
	if c.Workers <= 0 {
		return errors.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.Errorf("server.max_upload_bytes must be positive, got %d", c.Server.MaxUploadBytes)
	}
	if e := c.Preprocess.Edge; e < kernels.EdgeClamp || e > kernels.EdgeWrap {
		return errors.Errorf("preprocess.edge_mode is invalid: %d", int(e))
	}
	if c.Preprocess.BlurSigma < 0 {
		return errors.Errorf("preprocess.blur_sigma must not be negative, got %v", c.Preprocess.BlurSigma)
	}
	return nil
}
