package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/smukkama/env-monitor/internal/alerting"
	"github.com/smukkama/env-monitor/internal/database"
	"github.com/smukkama/env-monitor/internal/monitor"
)

// AlertHistory reads persisted alert events
type AlertHistory interface {
	RecentAlertLogs(ctx context.Context, city string, limit int) ([]*database.AlertLog, error)
}

// Deps are the components the API exposes. Tracker and History are optional.
type Deps struct {
	Feed     *alerting.Feed
	Settings *alerting.Settings
	Poller   *monitor.AlertsPoller
	Loader   *monitor.Loader
	Tracker  *alerting.BreachTracker
	History  AlertHistory
}

// HTTPServer serves the monitor API
type HTTPServer struct {
	addr     string
	handler  http.Handler
	srv      *http.Server
	listener net.Listener
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// NewHTTPServer creates a server listening on addr
func NewHTTPServer(addr string, deps Deps, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPServer{
		addr:    addr,
		handler: requestLogger(logger, NewMux(deps, logger)),
		logger:  logger,
	}
}

// Start begins listening. Serve errors other than a clean shutdown are sent on the returned channel.
func (s *HTTPServer) Start() (<-chan error, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to start HTTP server: %w", err)
	}
	s.listener = listener
	s.srv = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("http listening", "addr", listener.Addr().String())
		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	return errCh, nil
}

// Addr returns the bound address, useful when listening on port 0
func (s *HTTPServer) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down gracefully
func (s *HTTPServer) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	err := s.srv.Shutdown(ctx)
	s.wg.Wait()
	s.logger.Info("http server stopped")
	return err
}
