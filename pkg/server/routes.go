package server

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrCodeEU/facekiosk/pkg/display"
)

//go:embed static
var staticFiles embed.FS

func (s *Server) setupRoutes() {
	static, _ := fs.Sub(staticFiles, "static")

	s.router.Get("/healthz", s.health)
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.Handle("/stream", display.MJPEGHandler(s.deps.Canvas))
	s.router.Handle("/*", http.FileServer(http.FS(static)))

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Get("/log", s.logLines)

		r.Post("/camera/start", s.startCamera)
		r.Post("/camera/stop", s.stopCamera)

		r.Get("/employees", s.listEmployees)
		r.Post("/employees", s.addEmployee)
		r.Post("/train", s.train)

		r.Get("/attendance", s.attendance)
		r.Post("/checkin", s.checkIn)

		r.Post("/query", s.submitQuery)
		r.Get("/query/{id}", s.getQuery)
	})
}
