// Package state holds the page state object and the reducer that moves it
// through idle, loading, success and error.
package state

import (
	"sync"

	"github.com/nvr-ai/go-ocr/images"
)

// Phase is the lifecycle position of a page.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseSuccess Phase = "success"
	PhaseError   Phase = "error"
)

// ErrorKind classifies a failure for display.
type ErrorKind string

const (
	KindDecode      ErrorKind = "decode"
	KindRecognition ErrorKind = "recognition"
	KindTranslation ErrorKind = "translation"
)

// User-visible failure messages.
const (
	MessageDecode      = "Unsupported image. Please upload a PNG or JPEG file."
	MessageRecognition = "Failed to process the image. Please try again."
	MessageTranslation = "Failed to translate the text. Please try again."
)

// MessageFor returns the user-visible message for kind.
func MessageFor(kind ErrorKind) string {
	switch kind {
	case KindDecode:
		return MessageDecode
	case KindTranslation:
		return MessageTranslation
	default:
		return MessageRecognition
	}
}

// State is the snapshot of one page.
type State struct {
	Phase          Phase         `json:"phase"`
	Image          *images.Image `json:"image,omitempty"`
	Processed      string        `json:"processed,omitempty"`
	Text           string        `json:"text"`
	TranslatedText string        `json:"translatedText"`
	Error          string        `json:"error,omitempty"`
	ErrorKind      ErrorKind     `json:"errorKind,omitempty"`
	Seq            uint64        `json:"seq"`
}

// Action is a state transition request.
type Action interface {
	isAction()
}

// Selected records a newly chosen image and starts a new sequence.
type Selected struct {
	Seq   uint64
	Image *images.Image
}

// Started marks processing of Seq as in flight.
type Started struct {
	Seq uint64
}

// Preprocessed stores the processed preview for Seq.
type Preprocessed struct {
	Seq     uint64
	DataURI string
}

// Recognized completes recognition for Seq. Final marks the run finished.
type Recognized struct {
	Seq   uint64
	Text  string
	Final bool
}

// Translated completes translation for Seq.
type Translated struct {
	Seq  uint64
	Text string
}

// Failed reports a failure for Seq.
type Failed struct {
	Seq     uint64
	Kind    ErrorKind
	Message string
}

// Reset returns the page to its initial state.
type Reset struct{}

func (Selected) isAction()     {}
func (Started) isAction()      {}
func (Preprocessed) isAction() {}
func (Recognized) isAction()   {}
func (Translated) isAction()   {}
func (Failed) isAction()       {}
func (Reset) isAction()        {}

// Initial returns the state of a freshly loaded page.
func Initial() State {
	return State{Phase: PhaseIdle}
}

// Reduce applies a to s and returns the new state. It never mutates s.
//
// Every action except Selected and Reset carries the sequence number of the
// run it belongs to; actions for an older sequence are dropped so a slow
// result can never overwrite a newer selection. Reset starts a new sequence,
// so a run still in flight when the page is reset is dropped as well.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case Selected:
		if a.Seq <= s.Seq {
			return s
		}
		return State{Phase: PhaseIdle, Image: a.Image, Seq: a.Seq}
	case Reset:
		return State{Phase: PhaseIdle, Seq: s.Seq + 1}
	}

	if seqOf(a) != s.Seq {
		return s
	}

	switch a := a.(type) {
	case Started:
		s.Phase = PhaseLoading
		s.Text = ""
		s.TranslatedText = ""
		s.Error = ""
		s.ErrorKind = ""
	case Preprocessed:
		s.Processed = a.DataURI
	case Recognized:
		s.Text = a.Text
		if a.Final {
			s.Phase = PhaseSuccess
		}
	case Translated:
		s.TranslatedText = a.Text
		s.Phase = PhaseSuccess
	case Failed:
		s.Phase = PhaseError
		s.ErrorKind = a.Kind
		s.Error = a.Message
		if s.Error == "" {
			s.Error = MessageFor(a.Kind)
		}
		if a.Kind != KindTranslation {
			s.Text = ""
		}
		s.TranslatedText = ""
	}
	return s
}

func seqOf(a Action) uint64 {
	switch a := a.(type) {
	case Started:
		return a.Seq
	case Preprocessed:
		return a.Seq
	case Recognized:
		return a.Seq
	case Translated:
		return a.Seq
	case Failed:
		return a.Seq
	}
	return 0
}

// Store serializes dispatches against one page state.
type Store struct {
	mu    sync.RWMutex
	state State
}

// NewStore returns a store holding the initial state.
func NewStore() *Store {
	return &Store{state: Initial()}
}

// Dispatch reduces a into the store and returns the resulting state.
func (st *Store) Dispatch(a Action) State {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.state = Reduce(st.state, a)
	return st.state
}

// Select dispatches Selected with the next sequence number and returns it.
func (st *Store) Select(img *images.Image) (uint64, State) {
	st.mu.Lock()
	defer st.mu.Unlock()
	seq := st.state.Seq + 1
	st.state = Reduce(st.state, Selected{Seq: seq, Image: img})
	return seq, st.state
}

// Start dispatches Started for the current selection unless it has no image
// or is already loading. It returns the state before the dispatch and
// whether the run was started; the check and the dispatch are atomic.
func (st *Store) Start() (State, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	prev := st.state
	if prev.Image == nil || prev.Phase == PhaseLoading {
		return prev, false
	}
	st.state = Reduce(st.state, Started{Seq: prev.Seq})
	return prev, true
}

// Snapshot returns a copy of the current state.
func (st *Store) Snapshot() State {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.state
}
