package controller

import (
	"github.com/nvr-ai/go-ocr/ocr"
	"github.com/nvr-ai/go-ocr/translate"
)

// Page names.
const (
	PageDigits    = "digits"
	PageTranslate = "translate"
)

// Page describes how one page runs the pipeline.
type Page struct {
	// Name identifies the page in routes and logs.
	Name string `json:"name"`
	// Languages are the OCR languages.
	Languages []string `json:"languages"`
	// Whitelist restricts OCR to these characters when non-empty.
	Whitelist string `json:"whitelist,omitempty"`
	// Preprocess runs blur and edge detection before OCR.
	Preprocess bool `json:"preprocess"`
	// ProcessOnUpload starts processing as soon as an image is selected.
	ProcessOnUpload bool `json:"processOnUpload"`
	// AllowSketch enables the freehand capture surface.
	AllowSketch bool `json:"allowSketch"`
	// Translate sends the recognized text through the translator.
	Translate bool `json:"translate"`
	// LangPair is the translation direction when Translate is set.
	LangPair translate.LangPair `json:"langPair"`
}

// Digits is the handwritten digit recognition page.
func Digits() Page {
	return Page{
		Name:            PageDigits,
		Languages:       []string{ocr.LanguageEnglish},
		Whitelist:       ocr.DigitsWhitelist,
		Preprocess:      true,
		ProcessOnUpload: true,
		AllowSketch:     true,
	}
}

// Translate is the Arabic text recognition and translation page.
func Translate() Page {
	return Page{
		Name:      PageTranslate,
		Languages: []string{ocr.LanguageArabic},
		Translate: true,
		LangPair:  translate.ArabicToEnglish,
	}
}
