package web

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/pipeline"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

// Dependencies are the runtime components exposed over HTTP
type Dependencies struct {
	Matcher   *facematch.Matcher
	Processor handlers.FrameProcessor // nil disables frame uploads
	Sink      pipeline.RenderSink     // receives results of uploaded frames, may be nil
	Events    *handlers.EventBroadcaster
	Pinger    handlers.Pinger
}

// Server represents the web server
type Server struct {
	config     config.WebConfig
	deps       Dependencies
	router     *chi.Mux
	httpServer *http.Server
}

// NewServer creates a new web server
func NewServer(cfg config.WebConfig, deps Dependencies) *Server {
	r := chi.NewRouter()

	if deps.Events == nil {
		deps.Events = handlers.NewEventBroadcaster()
	}

	s := &Server{
		config: cfg,
		deps:   deps,
		router: r,
	}

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	// Request contexts end on Shutdown so open event streams close.
	baseCtx, cancel := context.WithCancel(context.Background())
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Minute, // the event stream clears its own deadline
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}
	s.httpServer.RegisterOnShutdown(cancel)

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
