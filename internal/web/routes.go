package web

import (
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.deps.Pinger, s.deps.Matcher)
	identitiesHandler := handlers.NewIdentitiesHandler(s.deps.Matcher)
	attendanceHandler := handlers.NewAttendanceHandler()
	eventsHandler := handlers.NewEventsHandler(s.deps.Events)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", healthHandler.Health)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireToken([]byte(s.config.JWTSecret)))

		// Long-lived stream, not subject to the request timeout
		r.Get("/events", eventsHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(30 * time.Second))

			r.Get("/stats", healthHandler.Stats)

			// Gallery
			r.Get("/identities", identitiesHandler.List)
			r.Get("/identities/{id}", identitiesHandler.Get)
			r.Delete("/identities/{id}", identitiesHandler.Delete)
			if s.deps.Matcher != nil {
				r.Post("/gallery/reload", handlers.NewGalleryHandler(s.deps.Matcher).Reload)
			}

			// Ledger
			r.Get("/attendance", attendanceHandler.List)

			// Frames pushed by remote cameras
			if s.deps.Processor != nil {
				r.Post("/frames", handlers.NewFramesHandler(s.deps.Processor, s.deps.Sink).Upload)
			}
		})
	})
}
