package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/kestrelpm/invoice-ingest/internal/core"
)

// Server is the webhook receiver. It accepts inbound email deliveries from
// mail providers over HTTP and feeds them into the ingestion pipeline.
type Server struct {
	addr           string
	maxUploadBytes int64
	service        *core.IngestService
	logger         *zap.Logger
	httpServer     *http.Server
}

// NewServer creates a new webhook server
func NewServer(addr string, maxUploadBytes int64, service *core.IngestService, logger *zap.Logger) *Server {
	s := &Server{
		addr:           addr,
		maxUploadBytes: maxUploadBytes,
		service:        service,
		logger:         logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler)

	r.Post("/invoice-receiver", s.handleInvoiceReceiver)
	r.Get("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start begins serving webhook requests. It blocks until the listener fails
// or Stop is called.
func (s *Server) Start() error {
	s.logger.Info("Starting webhook server", zap.String("addr", s.addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully
func (s *Server) Stop() error {
	s.logger.Info("Stopping webhook server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
