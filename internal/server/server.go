package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/michaelbrown/skillforge/internal/storage"
	"github.com/michaelbrown/skillforge/internal/submission"
)

// Toolchain reports whether the compiler can be invoked.
type Toolchain interface {
	CompilerAvailable(ctx context.Context) bool
	CompilerPath() string
}

// Server is the HTTP server for the skillforge API.
type Server struct {
	store     storage.Store
	service   *submission.Service
	toolchain Toolchain
	runs      *RunTracker
	logger    *zap.SugaredLogger
	router    chi.Router
	http      *http.Server
}

// New creates a new Server.
func New(store storage.Store, service *submission.Service, toolchain Toolchain, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{
		store:     store,
		service:   service,
		toolchain: toolchain,
		runs:      NewRunTracker(),
		logger:    logger,
		router:    chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Route("/api", func(r chi.Router) {
		r.Use(jsonContentType)

		r.Get("/health", s.handleHealth)

		// Tasks
		r.Get("/tasks", s.handleListTasks)
		r.Post("/tasks", s.handleCreateTask)
		r.Get("/tasks/{id}", s.handleGetTask)

		// Submissions
		r.Get("/tasks/{id}/submissions", s.handleListSubmissions)
		r.Post("/tasks/{id}/submissions", s.handleSubmit)
		r.Get("/submissions/{id}", s.handleGetSubmission)

		// Ad-hoc check, nothing stored
		r.Post("/check", s.handleCheck)

		// WebSocket (no JSON content-type)
		r.Get("/tasks/{id}/ws", s.handleWebSocket)
	})
}

// jsonContentType sets Content-Type to application/json for API routes.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening on the given port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infow("skillforge server starting", "addr", "http://localhost"+addr)
	return s.http.ListenAndServe()
}

// Shutdown cancels running checks and gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	s.runs.CancelAll()

	if s.http == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.http.Shutdown(shutdownCtx)
}
