package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/goparty/client/internal/storage"
)

type Config struct {
	Host         string
	Port         int
	MembersLimit int
}

// Server is the party service: REST auth plus the websocket room fan-out.
type Server struct {
	cfg    Config
	logger *slog.Logger
	auth   *authHandler
	ws     *wsHandler
	mux    http.Handler
}

func New(store storage.Storage, logger *slog.Logger, cfg Config) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		auth:   newAuthHandler(store, logger),
		ws:     newWSHandler(store, cfg.MembersLimit, logger),
	}
	s.mux = s.getMux()
	return s
}

// Handler exposes the mux for tests that mount the server in-process.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:     s.mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "starting server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
