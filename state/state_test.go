package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-ocr/images"
)

func TestReduceHappyPath(t *testing.T) {
	img := &images.Image{Format: images.FormatPNG}
	s := Reduce(Initial(), Selected{Seq: 1, Image: img})
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Same(t, img, s.Image)

	s = Reduce(s, Started{Seq: 1})
	assert.Equal(t, PhaseLoading, s.Phase)

	s = Reduce(s, Preprocessed{Seq: 1, DataURI: "data:image/png;base64,AA"})
	s = Reduce(s, Recognized{Seq: 1, Text: "42"})
	assert.Equal(t, PhaseLoading, s.Phase, "non-final recognition keeps loading")

	s = Reduce(s, Translated{Seq: 1, Text: "forty two"})
	assert.Equal(t, PhaseSuccess, s.Phase)
	assert.Equal(t, "42", s.Text)
	assert.Equal(t, "forty two", s.TranslatedText)
	assert.Equal(t, "data:image/png;base64,AA", s.Processed)
}

func TestReduceIgnoresStaleCompletions(t *testing.T) {
	s := Reduce(Initial(), Selected{Seq: 1})
	s = Reduce(s, Started{Seq: 1})
	s = Reduce(s, Selected{Seq: 2})
	s = Reduce(s, Started{Seq: 2})

	after := Reduce(s, Recognized{Seq: 1, Text: "old", Final: true})
	assert.Equal(t, s, after)

	after = Reduce(s, Failed{Seq: 1, Kind: KindRecognition})
	assert.Equal(t, s, after)

	after = Reduce(s, Selected{Seq: 1})
	assert.Equal(t, uint64(2), after.Seq)
}

func TestReduceFailures(t *testing.T) {
	s := Reduce(Initial(), Selected{Seq: 1})
	s = Reduce(s, Started{Seq: 1})

	rec := Reduce(s, Failed{Seq: 1, Kind: KindRecognition})
	assert.Equal(t, PhaseError, rec.Phase)
	assert.Equal(t, MessageRecognition, rec.Error)

	s = Reduce(s, Recognized{Seq: 1, Text: "مرحبا"})
	tr := Reduce(s, Failed{Seq: 1, Kind: KindTranslation})
	assert.Equal(t, PhaseError, tr.Phase)
	assert.Equal(t, MessageTranslation, tr.Error)
	assert.Equal(t, "مرحبا", tr.Text, "recognized text survives a translation failure")

	dec := Reduce(s, Failed{Seq: 1, Kind: KindDecode, Message: "custom"})
	assert.Equal(t, "custom", dec.Error)
	assert.Empty(t, dec.Text)
}

func TestReduceRestartClearsPreviousRun(t *testing.T) {
	s := Reduce(Initial(), Selected{Seq: 1})
	s = Reduce(s, Started{Seq: 1})
	s = Reduce(s, Failed{Seq: 1, Kind: KindRecognition})

	s = Reduce(s, Started{Seq: 1})
	assert.Equal(t, PhaseLoading, s.Phase)
	assert.Empty(t, s.Error)
	assert.Empty(t, s.ErrorKind)
}

func TestReduceReset(t *testing.T) {
	s := Reduce(Initial(), Selected{Seq: 3, Image: &images.Image{}})
	s = Reduce(s, Reset{})
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Nil(t, s.Image)
	assert.Equal(t, uint64(4), s.Seq)
}

func TestReduceResetDropsRunningResult(t *testing.T) {
	s := Reduce(Initial(), Selected{Seq: 1, Image: &images.Image{}})
	s = Reduce(s, Started{Seq: 1})
	s = Reduce(s, Reset{})

	for _, a := range []Action{
		Preprocessed{Seq: 1, DataURI: "data:image/png;base64,AA=="},
		Recognized{Seq: 1, Text: "late", Final: true},
		Translated{Seq: 1, Text: "late"},
		Failed{Seq: 1, Kind: KindRecognition},
	} {
		s = Reduce(s, a)
	}
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Empty(t, s.Text)
	assert.Empty(t, s.TranslatedText)
	assert.Empty(t, s.Processed)
	assert.Empty(t, s.Error)
	assert.Nil(t, s.Image)

	s = Reduce(s, Selected{Seq: 3, Image: &images.Image{}})
	assert.NotNil(t, s.Image, "selection after reset is accepted")
}

func TestStoreConcurrentSelect(t *testing.T) {
	st := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st.Select(&images.Image{})
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(50), st.Snapshot().Seq)
}

func TestStoreDispatch(t *testing.T) {
	st := NewStore()
	seq, s := st.Select(&images.Image{})
	require.Equal(t, uint64(1), seq)
	assert.Equal(t, PhaseIdle, s.Phase)

	st.Dispatch(Started{Seq: seq})
	got := st.Dispatch(Recognized{Seq: seq, Text: "7", Final: true})
	assert.Equal(t, PhaseSuccess, got.Phase)
	assert.Equal(t, got, st.Snapshot())
}

func TestStoreStart(t *testing.T) {
	st := NewStore()
	_, ok := st.Start()
	assert.False(t, ok, "nothing selected")

	seq, _ := st.Select(&images.Image{})
	prev, ok := st.Start()
	require.True(t, ok)
	assert.Equal(t, seq, prev.Seq)
	assert.Equal(t, PhaseLoading, st.Snapshot().Phase)

	_, ok = st.Start()
	assert.False(t, ok, "already loading")

	st.Dispatch(Recognized{Seq: seq, Text: "1", Final: true})
	_, ok = st.Start()
	assert.True(t, ok, "a finished page can run again")
}
