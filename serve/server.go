package serve

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	team "github.com/everydev1618/goteam"
)

// Config holds server configuration.
type Config struct {
	Addr   string
	DBPath string
}

// Server is the HTTP front end for a team orchestrator.
type Server struct {
	orch      *team.Orchestrator
	builder   *team.Builder
	store     Store
	cfg       Config
	startedAt time.Time
}

// New creates a new Server.
func New(orch *team.Orchestrator, builder *team.Builder, cfg Config) *Server {
	return &Server{
		orch:    orch,
		builder: builder,
		cfg:     cfg,
	}
}

// Start initializes the store, registers routes, and listens for HTTP
// requests. It blocks until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.startedAt = time.Now()

	store, err := NewSQLiteStore(s.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	s.store = store
	if err := store.Init(); err != nil {
		return fmt.Errorf("init database: %w", err)
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: corsMiddleware(mux),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("team serve started", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-errCh:
		return err
	}

	// Graceful shutdown with 5s timeout.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	if err := store.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	return nil
}

// registerRoutes adds all API routes to the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /team/status", s.handleTeamStatus)
	mux.HandleFunc("GET /templates", s.handleTemplates)
	mux.HandleFunc("POST /team/chat", s.handleChat)
	mux.HandleFunc("GET /team/chat/stream", s.handleChatStream)
	mux.HandleFunc("POST /build-agent", s.handleBuildAgent)
	mux.HandleFunc("GET /conversations", s.handleListConversations)
	mux.HandleFunc("GET /conversations/{id}", s.handleConversation)
}

// corsMiddleware adds permissive CORS headers for development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
