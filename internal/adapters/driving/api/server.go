// Package api serves the query and ingestion paths over HTTP with fiber.
package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/custodia-labs/paperlens/internal/core/ports/driving"
	"github.com/custodia-labs/paperlens/internal/logger"
)

// shutdownTimeout bounds graceful shutdown once the context is cancelled.
const shutdownTimeout = 10 * time.Second

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("api: query service is required")

// Ports aggregates the driving ports served over HTTP.
type Ports struct {
	Query   driving.QueryService
	Ingest  driving.IngestService
	Library driving.LibraryService

	// UploadDir receives multipart uploads before ingestion.
	UploadDir string
	// Roots are the directories, besides UploadDir, whose files may be
	// ingested by path.
	Roots []string
}

// Server is the HTTP front end.
type Server struct {
	listenAddr string
	app        *fiber.App
}

// NewServer builds the fiber app and registers routes. Routes for
// optional ports are only mounted when the port is set.
func NewServer(addr string, ports *Ports) (*Server, error) {
	if ports == nil || ports.Query == nil {
		return nil, ErrMissingQueryService
	}

	var (
		app          = fiber.New(fiber.Config{ErrorHandler: ErrorHandler, DisableStartupMessage: true})
		checkHandler = NewCheckHandler()
		queryHandler = NewQueryHandler(ports.Query)
		check        = app.Group("/check")
		apiv1        = app.Group("/api/v1")
	)

	check.Get("/healthy", checkHandler.HandleHealthy)
	apiv1.Post("/query", queryHandler.HandleQuery)
	apiv1.Post("/retrieve", queryHandler.HandleRetrieve)

	if ports.Ingest != nil {
		ingestHandler := NewIngestHandler(ports.Ingest, ports.UploadDir, ports.Roots...)
		apiv1.Post("/ingest", ingestHandler.HandleIngest)
		apiv1.Get("/documents/:id/status", ingestHandler.HandleStatus)
		apiv1.Delete("/documents/:id", ingestHandler.HandleDelete)
	}
	if ports.Library != nil {
		libraryHandler := NewLibraryHandler(ports.Library)
		apiv1.Get("/stats", libraryHandler.HandleStats)
		apiv1.Get("/duplicates", libraryHandler.HandleDuplicates)
		apiv1.Get("/documents", libraryHandler.HandleDocuments)
	}

	return &Server{listenAddr: addr, app: app}, nil
}

// App exposes the fiber app, mainly for app.Test in tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening on %s", s.listenAddr)
		errCh <- s.app.Listen(s.listenAddr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
			return err
		}
		logger.Info("HTTP server stopped")
		return <-errCh
	}
}
