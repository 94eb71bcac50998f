// Package server exposes the pages over a JSON HTTP API.
package server

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
	"github.com/rs/cors"

	"github.com/nvr-ai/go-ocr/controller"
	"github.com/nvr-ai/go-ocr/images"
	"github.com/nvr-ai/go-ocr/log"
	"github.com/nvr-ai/go-ocr/profiler"
	"github.com/nvr-ai/go-ocr/sketch"
	"github.com/nvr-ai/go-ocr/state"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultMaxUploadBytes bounds multipart uploads and sketch bodies.
const DefaultMaxUploadBytes = 10 << 20

// Server serves the page API.
type Server struct {
	pages          *controller.Set
	profiler       *profiler.RuntimeProfiler
	logger         log.Logger
	router         *mux.Router
	handler        http.Handler
	allowedOrigins []string
	maxUploadBytes int64
}

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins sets the CORS allowed origins. The default allows any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.allowedOrigins = origins }
}

// WithMaxUploadBytes bounds request bodies.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithProfiler exposes p on /api/stats.
func WithProfiler(p *profiler.RuntimeProfiler) Option {
	return func(s *Server) { s.profiler = p }
}

// New creates a server for the given pages.
func New(pages *controller.Set, opts ...Option) *Server {
	s := &Server{
		pages:          pages,
		logger:         log.Default,
		router:         mux.NewRouter(),
		allowedOrigins: []string{"*"},
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerRoutes()
	c := cors.New(cors.Options{
		AllowedOrigins: s.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Length", "Content-Type"},
	})
	s.handler = c.Handler(s.router)
	return s
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/stats", s.handleStats).Methods(http.MethodGet)
	s.router.HandleFunc("/api/pages", s.handleListPages).Methods(http.MethodGet)

	// Page APIs.
	s.router.HandleFunc("/api/pages/{page}", s.withPage(s.handleGetState)).Methods(http.MethodGet)
	s.router.HandleFunc("/api/pages/{page}/upload", s.withPage(s.handleUpload)).Methods(http.MethodPost)
	s.router.HandleFunc("/api/pages/{page}/process", s.withPage(s.handleProcess)).Methods(http.MethodPost)
	s.router.HandleFunc("/api/pages/{page}/sketch", s.withPage(s.handleSketch)).Methods(http.MethodPost)
	s.router.HandleFunc("/api/pages/{page}/reset", s.withPage(s.handleReset)).Methods(http.MethodPost)
	s.router.HandleFunc("/api/pages/{page}/preview", s.withPage(s.handlePreview)).Methods(http.MethodGet)
}

type pageHandler func(w http.ResponseWriter, r *http.Request, c *controller.Controller)

func (s *Server) withPage(h pageHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["page"]
		c, ok := s.pages.Get(name)
		if !ok {
			s.writeError(w, http.StatusNotFound, errors.Errorf("unknown page %q", name))
			return
		}
		h(w, r, c)
	}
}

// ---- Handlers -----------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	if s.profiler == nil {
		s.writeError(w, http.StatusNotFound, errors.New("profiling disabled"))
		return
	}
	s.writeJSON(w, http.StatusOK, s.profiler.Stats())
}

type pageInfo struct {
	controller.Page
	State state.State `json:"state"`
}

func (s *Server) handleListPages(w http.ResponseWriter, _ *http.Request) {
	names := s.pages.Names()
	out := make([]pageInfo, 0, len(names))
	for _, name := range names {
		c, _ := s.pages.Get(name)
		out = append(out, pageInfo{Page: c.Page(), State: c.State()})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request, c *controller.Controller) {
	s.writeJSON(w, http.StatusOK, c.State())
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, c *controller.Controller) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	file, _, err := r.FormFile("image")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.Wrap(err, "read multipart field \"image\""))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.Wrap(err, "read upload"))
		return
	}
	s.run(w, r, c, controller.Request{Op: controller.OpUpload, Image: data})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request, c *controller.Controller) {
	s.run(w, r, c, controller.Request{Op: controller.OpProcess})
}

func (s *Server) handleSketch(w http.ResponseWriter, r *http.Request, c *controller.Controller) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxUploadBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errors.Wrap(err, "read sketch"))
		return
	}
	req, err := sketch.Decode(body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.run(w, r, c, controller.Request{Op: controller.OpSketch, Sketch: req})
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request, c *controller.Controller) {
	s.writeJSON(w, http.StatusOK, c.Reset())
}

func (s *Server) handlePreview(w http.ResponseWriter, _ *http.Request, c *controller.Controller) {
	img := c.State().Image
	if img == nil {
		s.writeError(w, http.StatusNotFound, controller.ErrNoImage)
		return
	}
	data, err := images.Preview(img.Data)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	w.Header().Set("Content-Type", images.FormatPNG.MIMEType())
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// run executes req synchronously when ?wait=true, otherwise queues it and
// answers 202 with the loading state.
func (s *Server) run(w http.ResponseWriter, r *http.Request, c *controller.Controller, req controller.Request) {
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))

	var (
		st  state.State
		err error
	)
	if wait {
		st, err = c.Do(r.Context(), req)
	} else {
		st, err = c.Submit(r.Context(), req)
	}
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	status := http.StatusOK
	if !wait && st.Phase == state.PhaseLoading {
		status = http.StatusAccepted
	}
	s.writeJSON(w, status, st)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, controller.ErrNoImage),
		errors.Is(err, controller.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, controller.ErrSketchUnsupported):
		return http.StatusNotFound
	case errors.Is(err, controller.ErrNoPool),
		errors.Is(err, ants.ErrPoolOverload),
		errors.Is(err, ants.ErrPoolClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Errorw("request failed", "status", status, "error", err)
	} else {
		s.logger.Debugw("request rejected", "status", status, "error", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
