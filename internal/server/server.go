// Package server exposes the overlay state over HTTP for browser sources.
package server

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/verte-zerg/osutrack/internal/completion"
	"github.com/verte-zerg/osutrack/internal/model"
)

const shutdownTimeout = 5 * time.Second

// StateSource provides the published overlay state.
type StateSource interface {
	Snapshot() model.OverlayState
	Subscribe() (<-chan model.OverlayState, func())
}

// RunLister reads the run journal.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error)
	CountOutcomes(ctx context.Context, sessionID string) (map[model.RunOutcome]int, error)
}

// Options configures a Server.
type Options struct {
	Source        StateSource
	Runs          RunLister
	Checker       completion.ScoreChecker
	EventsEnabled bool
	Logger        *log.Logger
}

// Server serves the overlay API.
type Server struct {
	handlers *Handlers
	router   chi.Router
	logger   *log.Logger
}

// New builds the router.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	h := &Handlers{
		source:        opts.Source,
		runs:          opts.Runs,
		checker:       opts.Checker,
		eventsEnabled: opts.EventsEnabled,
		logger:        logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: logger, NoColor: true}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", h.RegisterRoutes)
	r.Get("/ws", h.StreamOverlay)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{handlers: h, router: r, logger: logger}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("server: listening on http://%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Printf("server: stopped")
	return nil
}
