// Package server provides the HTTP API for Bunko.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hakobune/bunko/internal/config"
	"github.com/hakobune/bunko/internal/rag"
)

// Server is the HTTP server for the Bunko API.
type Server struct {
	rag    *rag.RAG
	config *config.ServerConfig
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server over the given facade.
func NewServer(r *rag.RAG, cfg *config.ServerConfig, logger *zap.Logger) *Server {
	return &Server{
		rag:    r,
		config: cfg,
		logger: logger,
	}
}

// routes builds the API router.
func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/projects", s.handleCreateProject)
	r.Get("/api/v1/projects", s.handleListProjects)
	r.Get("/api/v1/projects/{id}", s.handleGetProject)
	r.Delete("/api/v1/projects/{id}", s.handleDeleteProject)
	r.Post("/api/v1/projects/{id}/documents", s.handleAddDocument)
	r.Get("/api/v1/projects/{id}/documents", s.handleListDocuments)
	r.Get("/api/v1/projects/{id}/documents/{docID}", s.handleGetDocument)
	r.Delete("/api/v1/projects/{id}/documents/{docID}", s.handleDeleteDocument)
	r.Post("/api/v1/projects/{id}/search", s.handleSearch)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
