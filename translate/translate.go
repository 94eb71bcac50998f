// Package translate defines the translation collaborator and a client for the
// MyMemory public translation API.
package translate

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// LangPair is a source/target language pair such as ar|en.
type LangPair struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// ArabicToEnglish is the pair used by the translate page.
var ArabicToEnglish = LangPair{Source: "ar", Target: "en"}

// String renders the pair in MyMemory's "src|dst" form.
func (p LangPair) String() string { return p.Source + "|" + p.Target }

// ParseLangPair parses "src|dst".
func ParseLangPair(s string) (LangPair, error) {
	src, dst, ok := strings.Cut(s, "|")
	if !ok || src == "" || dst == "" {
		return LangPair{}, errors.Errorf("invalid language pair %q, want src|dst", s)
	}
	return LangPair{Source: src, Target: dst}, nil
}

// Translator translates text between languages.
type Translator interface {
	Translate(ctx context.Context, text string, pair LangPair) (string, error)
}

// TranslatorFunc adapts a function to the Translator interface.
type TranslatorFunc func(ctx context.Context, text string, pair LangPair) (string, error)

// Translate implements Translator.
func (f TranslatorFunc) Translate(ctx context.Context, text string, pair LangPair) (string, error) {
	return f(ctx, text, pair)
}

// TranslationError reports a network or service failure of the translator.
type TranslationError struct {
	// Pair is the requested language pair.
	Pair LangPair
	// StatusCode is the HTTP or service status, when one was received.
	StatusCode int
	// Err is the underlying failure.
	Err error
}

func (e *TranslationError) Error() string {
	return "translate " + e.Pair.String() + ": " + e.Err.Error()
}

func (e *TranslationError) Unwrap() error { return e.Err }

// IsTranslationError reports whether err (or anything it wraps) is a
// *TranslationError.
func IsTranslationError(err error) bool {
	var te *TranslationError
	return errors.As(err, &te)
}
