// Package server exposes the kiosk panel and its JSON API over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/MrCodeEU/facekiosk/pkg/assistant"
	"github.com/MrCodeEU/facekiosk/pkg/attendance"
	"github.com/MrCodeEU/facekiosk/pkg/config"
	"github.com/MrCodeEU/facekiosk/pkg/display"
	"github.com/MrCodeEU/facekiosk/pkg/kiosk"
	"github.com/MrCodeEU/facekiosk/pkg/logging"
	"github.com/MrCodeEU/facekiosk/pkg/roster"
)

// Capture controls the camera loop.
type Capture interface {
	Start(ctx context.Context) error
	Stop()
	Status() kiosk.Status
	CheckIn(ctx context.Context, id, kind string) (bool, error)
}

// TrainSummary lists which employees contributed recognition data.
type TrainSummary struct {
	Backend   string   `json:"backend"`
	Processed []string `json:"processed"`
	Failed    []string `json:"failed"`
}

// Trainer rebuilds recognition data from enrollment images.
type Trainer interface {
	Train(ctx context.Context) (TrainSummary, error)
}

// Enroller adds an employee from an uploaded image.
type Enroller interface {
	Enroll(id, name, imagePath string) (roster.Employee, error)
}

// Deps are the components the handlers operate on. Trainer and Enroller may
// be nil.
type Deps struct {
	Capture  Capture
	Roster   *roster.Roster
	Store    attendance.Store
	Queries  *assistant.Queue
	Canvas   *display.Canvas
	Trainer  Trainer
	Enroller Enroller
	Logs     *logging.Ring
}

// Server represents the web server.
type Server struct {
	config     *config.Config
	deps       Deps
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer creates a new web server.
func NewServer(cfg *config.Config, deps Deps) *Server {
	r := chi.NewRouter()
	if deps.Logs == nil {
		deps.Logs = logging.History
	}

	s := &Server{
		config: cfg,
		deps:   deps,
		router: r,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chiMiddleware.Recoverer)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:        cfg.Addr(),
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		// No write timeout: /stream is long-lived.
		IdleTimeout: 60 * time.Second,
	}
	return s
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	logging.Component("http").Infof("Starting web server on http://%s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Component("http").Info("Shutting down web server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.WithFields(logging.Fields{
			"component":  "http",
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"request_id": chiMiddleware.GetReqID(r.Context()),
			"duration":   time.Since(start).String(),
		}).Debug("request")
	})
}
