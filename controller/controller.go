// Package controller drives the preprocessing, recognition and translation
// pipeline for a page and records every transition in the page state.
package controller

import (
	"context"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-ocr/images"
	"github.com/nvr-ai/go-ocr/log"
	"github.com/nvr-ai/go-ocr/ocr"
	"github.com/nvr-ai/go-ocr/preprocess"
	"github.com/nvr-ai/go-ocr/profiler"
	"github.com/nvr-ai/go-ocr/sketch"
	"github.com/nvr-ai/go-ocr/state"
	"github.com/nvr-ai/go-ocr/translate"
)

var (
	// ErrNoImage is returned by Process when no image has been selected.
	ErrNoImage = errors.New("no image selected")
	// ErrSketchUnsupported is returned for sketches on a page without a canvas.
	ErrSketchUnsupported = errors.New("page does not accept sketches")
	// ErrNoPool is returned by Submit when the controller has no worker pool.
	ErrNoPool = errors.New("no worker pool configured")
	// ErrBusy is returned by Process while the page is already processing.
	ErrBusy = errors.New("page is already processing")
)

// Dependencies are the collaborators shared by all pages.
type Dependencies struct {
	Preprocessor *preprocess.Preprocessor
	Engine       ocr.Engine
	Translator   translate.Translator
	Profiler     *profiler.RuntimeProfiler
	Logger       log.Logger
	// OCRTimeout bounds a single recognition call. Zero disables the bound.
	OCRTimeout time.Duration
}

// Op selects what a Request does.
type Op int

const (
	// OpUpload selects a new image and, on auto-processing pages, runs it.
	OpUpload Op = iota
	// OpProcess runs the currently selected image.
	OpProcess
	// OpSketch selects a canvas snapshot and runs it.
	OpSketch
)

// Request is one page operation.
type Request struct {
	Op     Op
	Image  []byte
	Sketch sketch.Request
}

// Controller runs the pipeline for one page.
type Controller struct {
	page  Page
	deps  Dependencies
	pool  *ants.Pool
	store *state.Store
	wg    sync.WaitGroup
}

// New creates a controller for page.
//
// Arguments:
//   - page: The page configuration.
//   - deps: The pipeline collaborators. Preprocessor, Profiler and Logger
//     default when nil.
//   - pool: The worker pool used by Submit. May be nil for synchronous use.
//
// Returns:
//   - *Controller: A controller in the idle state.
func New(page Page, deps Dependencies, pool *ants.Pool) *Controller {
	if deps.Preprocessor == nil {
		deps.Preprocessor = preprocess.NewPreprocessor(preprocess.Options{})
	}
	if deps.Profiler == nil {
		deps.Profiler = profiler.NewRuntimeProfiler(profiler.ProfilingOptions{Logger: deps.Logger})
	}
	if deps.Logger == nil {
		deps.Logger = log.Default
	}
	return &Controller{
		page:  page,
		deps:  deps,
		pool:  pool,
		store: state.NewStore(),
	}
}

// Page returns the page configuration.
func (c *Controller) Page() Page { return c.page }

// State returns a snapshot of the page state.
func (c *Controller) State() state.State { return c.store.Snapshot() }

// Upload selects data as the current image. On pages that process on upload
// the pipeline runs before Upload returns.
func (c *Controller) Upload(ctx context.Context, data []byte) (state.State, error) {
	return c.Do(ctx, Request{Op: OpUpload, Image: data})
}

// Process runs the pipeline on the current image.
func (c *Controller) Process(ctx context.Context) (state.State, error) {
	return c.Do(ctx, Request{Op: OpProcess})
}

// ProcessSketch selects a canvas snapshot and runs the pipeline on it.
func (c *Controller) ProcessSketch(ctx context.Context, req sketch.Request) (state.State, error) {
	return c.Do(ctx, Request{Op: OpSketch, Sketch: req})
}

// Reset returns the page to its initial state. Results of runs started
// before the reset are dropped.
func (c *Controller) Reset() state.State {
	return c.store.Dispatch(state.Reset{})
}

// Do runs req to completion.
//
// Pipeline failures never surface as errors: they are recorded in the
// returned state. The error reports requests the page cannot serve.
func (c *Controller) Do(ctx context.Context, req Request) (state.State, error) {
	j, err := c.prepare(req)
	if err != nil {
		return c.State(), err
	}
	if j != nil {
		c.run(ctx, *j)
	}
	return c.State(), nil
}

// Submit performs the selection part of req immediately and queues the
// pipeline run on the worker pool. The returned state is the loading state
// observed right after queuing.
func (c *Controller) Submit(ctx context.Context, req Request) (state.State, error) {
	if c.pool == nil {
		return c.State(), ErrNoPool
	}
	j, err := c.prepare(req)
	if err != nil {
		return c.State(), err
	}
	if j == nil {
		return c.State(), nil
	}

	// The run outlives the request that queued it.
	runCtx := context.WithoutCancel(ctx)
	c.wg.Add(1)
	err = c.pool.Submit(func() {
		defer c.wg.Done()
		c.run(runCtx, *j)
	})
	if err != nil {
		c.wg.Done()
		c.store.Dispatch(state.Failed{Seq: j.seq, Kind: state.KindRecognition})
		return c.State(), errors.Wrap(err, "queue page job")
	}
	return c.State(), nil
}

// Wait blocks until every submitted run has finished.
func (c *Controller) Wait() { c.wg.Wait() }

type job struct {
	seq   uint64
	image *images.Image
}

// prepare applies the synchronous part of req and returns the run to perform,
// or nil when nothing should run.
func (c *Controller) prepare(req Request) (*job, error) {
	switch req.Op {
	case OpUpload:
		return c.selectImage(req.Image, c.page.ProcessOnUpload), nil
	case OpSketch:
		if !c.page.AllowSketch {
			return nil, ErrSketchUnsupported
		}
		data, err := sketch.Snapshot(req.Sketch)
		if err != nil && !images.IsDecodeError(err) {
			return nil, errors.Wrap(err, "render sketch")
		}
		return c.selectImage(data, true), nil
	case OpProcess:
		s, ok := c.store.Start()
		switch {
		case s.Image == nil:
			return nil, ErrNoImage
		case !ok:
			return nil, ErrBusy
		}
		return &job{seq: s.Seq, image: s.Image}, nil
	default:
		return nil, errors.Errorf("unknown operation %d", req.Op)
	}
}

// selectImage records data as the new selection. Undecodable data moves the
// page straight to the error state.
func (c *Controller) selectImage(data []byte, start bool) *job {
	img, err := images.New(data)
	seq, _ := c.store.Select(img)
	if err != nil {
		c.deps.Logger.Warnw("rejected image", "page", c.page.Name, "seq", seq, "error", err)
		c.store.Dispatch(state.Started{Seq: seq})
		c.store.Dispatch(state.Failed{Seq: seq, Kind: state.KindDecode})
		return nil
	}
	c.deps.Logger.Debugw("image selected", "page", c.page.Name, "seq", seq,
		"format", img.Format, "width", img.Width, "height", img.Height)
	if !start {
		return nil
	}
	c.store.Dispatch(state.Started{Seq: seq})
	return &job{seq: seq, image: img}
}

// run executes the pipeline for j and dispatches the outcome.
func (c *Controller) run(ctx context.Context, j job) {
	done := c.deps.Profiler.StartOperation(c.page.Name + ".pipeline")
	var runErr error
	defer func() {
		if r := recover(); r != nil {
			runErr = errors.Errorf("pipeline panic: %v", r)
			c.fail(j.seq, state.KindRecognition, runErr)
		}
		done(runErr)
	}()
	runErr = c.pipeline(ctx, j)
}

func (c *Controller) pipeline(ctx context.Context, j job) error {
	data := j.image.Data

	if c.page.Preprocess {
		done := c.deps.Profiler.StartOperation(c.page.Name + ".preprocess")
		res, err := c.deps.Preprocessor.Preprocess(data)
		done(err)
		if err != nil {
			kind := state.KindRecognition
			if images.IsDecodeError(err) {
				kind = state.KindDecode
			}
			c.fail(j.seq, kind, err)
			return err
		}
		c.store.Dispatch(state.Preprocessed{Seq: j.seq, DataURI: res.DataURI})
		data = res.PNG
	}

	if c.stale(j.seq) {
		return nil
	}
	text, err := c.recognize(ctx, j, data)
	if err != nil {
		c.fail(j.seq, state.KindRecognition, err)
		return err
	}
	c.store.Dispatch(state.Recognized{Seq: j.seq, Text: text, Final: !c.page.Translate})
	if !c.page.Translate || c.stale(j.seq) {
		return nil
	}

	done := c.deps.Profiler.StartOperation(c.page.Name + ".translate")
	translated, err := c.translate(ctx, text)
	done(err)
	if err != nil {
		c.fail(j.seq, state.KindTranslation, err)
		return err
	}
	c.store.Dispatch(state.Translated{Seq: j.seq, Text: translated})
	c.deps.Logger.Infow("page processed", "page", c.page.Name, "seq", j.seq)
	return nil
}

func (c *Controller) recognize(ctx context.Context, j job, data []byte) (string, error) {
	if c.deps.OCRTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.deps.OCRTimeout)
		defer cancel()
	}

	opts := []ocr.InputOption{
		ocr.WithLanguages(c.page.Languages...),
		ocr.WithProgress(func(ev ocr.ProgressEvent) {
			c.deps.Logger.Debugw("ocr progress", "page", c.page.Name, "seq", j.seq,
				"status", ev.Status, "progress", ev.Progress)
		}),
	}
	if c.page.Whitelist != "" {
		opts = append(opts, ocr.WithWhitelist(c.page.Whitelist))
	}

	done := c.deps.Profiler.StartOperation(c.page.Name + ".ocr")
	res, err := ocr.Recognize(ctx, c.deps.Engine, ocr.NewInput(data, opts...))
	done(err)
	if err != nil {
		return "", err
	}
	c.deps.Logger.Debugw("ocr finished", "page", c.page.Name, "seq", j.seq,
		"confidence", res.Confidence, "chars", len(res.Text))
	return res.Text, nil
}

func (c *Controller) translate(ctx context.Context, text string) (string, error) {
	if c.deps.Translator == nil {
		return "", &translate.TranslationError{Pair: c.page.LangPair, Err: errors.New("no translator configured")}
	}
	return c.deps.Translator.Translate(ctx, text, c.page.LangPair)
}

// stale reports whether a newer selection or a reset superseded seq.
func (c *Controller) stale(seq uint64) bool {
	s := c.store.Snapshot()
	return s.Seq != seq || s.Phase != state.PhaseLoading
}

func (c *Controller) fail(seq uint64, kind state.ErrorKind, err error) {
	c.deps.Logger.Errorw("page run failed", "page", c.page.Name, "seq", seq, "kind", kind, "error", err)
	c.store.Dispatch(state.Failed{Seq: seq, Kind: kind})
}
