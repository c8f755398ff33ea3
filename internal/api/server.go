// Package api exposes a try-on session over HTTP: asset catalog listing,
// asset selection, landmark frame ingestion, capture and recorded traces.
package api

import (
	"image"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/banshee-data/tryon/internal/catalog"
	"github.com/banshee-data/tryon/internal/db"
	"github.com/banshee-data/tryon/internal/monitoring"
	"github.com/banshee-data/tryon/internal/tryon/assets"
	"github.com/banshee-data/tryon/internal/tryon/pipeline"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// maxBodyBytes bounds JSON and image request bodies. A full landmark frame
// is about 35KB; video stills are larger.
const maxBodyBytes = 8 << 20

// Flusher is implemented by frame recorders that buffer writes.
type Flusher interface {
	Flush() error
}

// Options configures the optional collaborators of a Server.
type Options struct {
	Catalog catalog.Catalog
	Loader  *assets.Loader
	// DB enables the session history and trace endpoints.
	DB *db.DB
	// Recorder is flushed before traces of the live session are read.
	Recorder Flusher
}

type Server struct {
	catalog  catalog.Catalog
	loader   *assets.Loader
	db       *db.DB
	recorder Flusher
	validate *validator.Validate

	// mu serialises frame processing; HTTP clients may post frames
	// concurrently but a session is single-threaded.
	mu      sync.Mutex
	session *pipeline.Session
	last    pipeline.Frame

	videoMu sync.RWMutex
	video   image.Image
}

func NewServer(sess *pipeline.Session, opts Options) *Server {
	loader := opts.Loader
	if loader == nil {
		loader = assets.NewLoader(nil)
	}
	return &Server{
		catalog:  opts.Catalog,
		loader:   loader,
		db:       opts.DB,
		recorder: opts.Recorder,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		session:  sess,
	}
}

// Session returns the live session.
func (s *Server) Session() *pipeline.Session { return s.session }

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/resources/{folder...}", s.listResources)
	mux.HandleFunc("POST /api/select", s.selectAsset)
	mux.HandleFunc("DELETE /api/select", s.clearAsset)
	mux.HandleFunc("POST /api/frame", s.processFrame)
	mux.HandleFunc("GET /api/frame", s.lastFrame)
	mux.HandleFunc("GET /api/frame.png", s.captureFrame)
	mux.HandleFunc("PUT /api/video", s.putVideo)
	mux.HandleFunc("POST /api/resize", s.resize)
	mux.HandleFunc("POST /api/reset", s.reset)
	mux.HandleFunc("GET /api/config", s.showConfig)
	mux.HandleFunc("GET /api/sessions", s.listSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.getSession)
	mux.HandleFunc("GET /api/sessions/{id}/jitter", s.sessionJitter)
	mux.HandleFunc("GET /debug/traces/{id}", s.traceChart)
	return mux
}
