// Package app wires the configured collaborators shared by the CLI and the
// HTTP server.
package app

import (
	"github.com/nvr-ai/go-ocr/config"
	"github.com/nvr-ai/go-ocr/controller"
	"github.com/nvr-ai/go-ocr/log"
	"github.com/nvr-ai/go-ocr/ocr"
	"github.com/nvr-ai/go-ocr/ocr/tesseract"
	"github.com/nvr-ai/go-ocr/preprocess"
	"github.com/nvr-ai/go-ocr/profiler"
	"github.com/nvr-ai/go-ocr/translate"
)

// Dependencies builds the pipeline collaborators described by cfg.
//
// Arguments:
//   - cfg: The loaded configuration.
//   - prof: The profiler shared by every page. Nil creates one.
//
// Returns:
//   - controller.Dependencies: Ready to hand to controller.New or NewSet.
func Dependencies(cfg config.Config, prof *profiler.RuntimeProfiler) controller.Dependencies {
	log.SetLevel(cfg.Log.Level)
	if prof == nil {
		prof = profiler.NewRuntimeProfiler(profiler.ProfilingOptions{})
	}

	pre := preprocess.NewPreprocessor(cfg.Preprocess)
	engine := tesseract.New(tesseract.Config{
		TessdataPrefix:   cfg.OCR.TessdataPrefix,
		DefaultLanguages: []string{ocr.LanguageEnglish},
	})
	translator := translate.NewMyMemory(translate.MyMemoryConfig{
		Endpoint: cfg.Translate.Endpoint,
		Email:    cfg.Translate.Email,
		Timeout:  cfg.Translate.Timeout,
	}, nil)

	return controller.Dependencies{
		Preprocessor: pre,
		Engine:       engine,
		Translator:   translator,
		Profiler:     prof,
		Logger:       log.Default,
		OCRTimeout:   cfg.OCR.Timeout,
	}
}

// Pages returns the page configurations selected by name. An empty list
// selects every page.
func Pages(names ...string) ([]controller.Page, bool) {
	all := map[string]controller.Page{
		controller.PageDigits:    controller.Digits(),
		controller.PageTranslate: controller.Translate(),
	}
	if len(names) == 0 {
		return []controller.Page{controller.Digits(), controller.Translate()}, true
	}
	pages := make([]controller.Page, 0, len(names))
	for _, name := range names {
		p, ok := all[name]
		if !ok {
			return nil, false
		}
		pages = append(pages, p)
	}
	return pages, true
}
