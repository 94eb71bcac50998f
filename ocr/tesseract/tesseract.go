// Package tesseract implements ocr.Engine on top of the gosseract bindings.
package tesseract

import (
	"context"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-ocr/ocr"
)

// Config configures the Tesseract engine.
type Config struct {
	// TessdataPrefix points at the directory holding *.traineddata files.
	// Empty uses the library default.
	TessdataPrefix string `json:"tessdata_prefix" yaml:"tessdata_prefix"`
	// DefaultLanguages are used when an input carries no language hint.
	DefaultLanguages []string `json:"default_languages" yaml:"default_languages"`
}

// Engine implements ocr.Engine using a fresh gosseract client per call, so
// concurrent recognitions never share native state.
type Engine struct {
	cfg           Config
	clientFactory func() *gosseract.Client
}

// New constructs a Tesseract-backed OCR engine.
func New(cfg Config) *Engine {
	if len(cfg.DefaultLanguages) == 0 {
		cfg.DefaultLanguages = []string{ocr.LanguageEnglish}
	}
	return &Engine{cfg: cfg, clientFactory: gosseract.NewClient}
}

// Name implements ocr.Engine.
func (e *Engine) Name() string { return "tesseract" }

// Recognize performs OCR on a single image input.
func (e *Engine) Recognize(ctx context.Context, in ocr.Input) (ocr.Result, error) {
	in.Report(ocr.StatusInitializing, 0)
	c := e.clientFactory()
	defer c.Close()

	if err := e.configure(c, in); err != nil {
		return ocr.Result{}, err
	}
	in.Report(ocr.StatusInitializing, 1)

	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}
	in.Report(ocr.StatusRecognizing, 0)
	text, err := c.Text()
	if err != nil {
		return ocr.Result{}, errors.Wrap(err, "recognize text")
	}
	words, conf := extractWords(c)
	in.Report(ocr.StatusRecognizing, 1)
	in.Report(ocr.StatusDone, 1)

	return ocr.Result{
		InputID:    in.ID,
		Text:       strings.TrimSpace(text),
		Words:      words,
		Confidence: conf,
		Language:   e.languages(in)[0],
	}, nil
}

func (e *Engine) configure(c *gosseract.Client, in ocr.Input) error {
	if e.cfg.TessdataPrefix != "" {
		if err := c.SetTessdataPrefix(e.cfg.TessdataPrefix); err != nil {
			return errors.Wrap(err, "set tessdata prefix")
		}
	}
	if err := c.SetLanguage(e.languages(in)...); err != nil {
		return errors.Wrap(err, "set languages")
	}
	if err := c.SetImageFromBytes(in.Image); err != nil {
		return errors.Wrap(err, "set image")
	}
	if in.Whitelist != "" {
		if err := c.SetWhitelist(in.Whitelist); err != nil {
			return errors.Wrap(err, "set whitelist")
		}
	}
	for k, v := range in.Metadata {
		if err := c.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return errors.Wrapf(err, "set variable %s", k)
		}
	}
	return nil
}

func (e *Engine) languages(in ocr.Input) []string {
	if len(in.Languages) > 0 {
		return in.Languages
	}
	return e.cfg.DefaultLanguages
}

func extractWords(c *gosseract.Client) ([]ocr.Word, float64) {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return nil, 0
	}
	words := make([]ocr.Word, 0, len(boxes))
	var sum float64
	for _, b := range boxes {
		conf := b.Confidence / 100.0
		sum += conf
		words = append(words, ocr.Word{Text: b.Word, Confidence: conf})
	}
	return words, sum / float64(len(words))
}
