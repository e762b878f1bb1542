// Package server exposes the HTTP and WebSocket surface.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/quotefeed/internal/cache"
	"github.com/rickgao/quotefeed/internal/config"
	"github.com/rickgao/quotefeed/internal/connection"
	"github.com/rickgao/quotefeed/internal/history"
	"github.com/rickgao/quotefeed/internal/hub"
	"github.com/rickgao/quotefeed/internal/model"
	"github.com/rickgao/quotefeed/internal/poller"
	"github.com/rickgao/quotefeed/internal/store"
)

const (
	healthTimeout   = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

// WorkerStatus reports poll worker state for /health.
type WorkerStatus interface {
	Stats() poller.Stats
}

// Deps are the components the server reads from.
type Deps struct {
	History *history.Service
	Hub     *hub.Hub
	Store   store.Store
	Cache   *cache.Cache // nil disables /api/latest
	Worker  WorkerStatus // optional
	Symbols model.SymbolSet

	// OnConnect runs for every new WebSocket subscriber, before it is
	// registered with the hub.
	OnConnect func()
}

// Server serves history, latest prices, realtime updates and health.
type Server struct {
	cfg      config.ServerConfig
	deps     Deps
	conn     connection.Config
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// New creates a Server.
func New(cfg config.ServerConfig, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	connCfg := connection.DefaultConfig()
	if cfg.SendBuffer > 0 {
		connCfg.SendBuffer = cfg.SendBuffer
	}

	return &Server{
		cfg:     cfg,
		deps:    deps,
		conn:    connCfg,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/data", s.handleData)
	mux.HandleFunc("GET /api/latest", s.handleLatest)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

// Run listens on the configured port until ctx is cancelled, then shuts down.
// Open WebSocket connections are closed through ctx.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "port", s.cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen on %s: %w", srv.Addr, err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}
