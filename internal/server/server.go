// Package server provides the HTTP API for Med-Bot.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/medbot/internal/config"
	"github.com/hyperjump/medbot/internal/index"
	"github.com/hyperjump/medbot/internal/models"
	"github.com/hyperjump/medbot/internal/storage"
)

const serviceName = "medbot"

// ChatService answers chat messages. Reply never fails.
type ChatService interface {
	Reply(ctx context.Context, message string) *models.ChatResponse
}

// IndexManager is the part of the vector index the API reports on and rebuilds.
type IndexManager interface {
	Info() index.Info
	Rebuild(ctx context.Context, source func(context.Context) ([]*models.Provider, error)) error
}

// Server is the HTTP server for the Med-Bot API.
type Server struct {
	chat         ChatService
	store        storage.ProviderReader
	index        IndexManager
	config       *config.Config
	encoderModel string
	logger       *zap.Logger
	server       *http.Server
}

// NewServer creates a server with the given dependencies. encoderModel is reported by the
// status endpoint and may be empty when no encoder is configured.
func NewServer(
	chat ChatService,
	store storage.ProviderReader,
	idx IndexManager,
	cfg *config.Config,
	encoderModel string,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		chat:         chat,
		store:        store,
		index:        idx,
		config:       cfg,
		encoderModel: encoderModel,
		logger:       logger,
	}
}

// Handler returns the routed and instrumented HTTP handler.
func (s *Server) Handler() http.Handler {
	timeout := s.config.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.Compress(5))
	r.Use(cors(s.config.Server.CORSOrigin))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Post("/api/chat", s.handleChat)
	r.Get("/doctors", s.handleListDoctors)
	r.Get("/doctors/search", s.handleSearchDoctors)
	r.Get("/doctors/{id}", s.handleGetDoctor)
	r.Get("/api/v1/status", s.handleStatus)
	r.Post("/api/v1/index/rebuild", s.handleRebuild)

	return otelhttp.NewHandler(r, serviceName)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
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

// cors sets CORS headers and answers preflight requests.
func cors(origin string) func(http.Handler) http.Handler {
	if origin == "" {
		origin = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
