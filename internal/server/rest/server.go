// Package rest is the HTTP/JSON transport of the session service.
package rest

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/tokenkeeper/internal/logging"
)

type Server struct {
	address         string
	handler         http.Handler
	logger          logging.Logger
	errorLog        *slog.Logger
	shutdownTimeout time.Duration
}

// NewServer serves handler on address. errorLog, when set, receives
// net/http's own diagnostics.
func NewServer(address string, handler http.Handler, l logging.Logger, errorLog *slog.Logger, shutdownTimeout time.Duration) *Server {
	return &Server{
		address:         address,
		handler:         handler,
		logger:          l.With("module", "http_server"),
		errorLog:        errorLog,
		shutdownTimeout: shutdownTimeout,
	}
}

// Run listens and serves until ctx is cancelled, then drains in-flight
// requests for at most the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve is Run on an existing listener. It returns only after the shutdown
// goroutine has finished.
func (s *Server) Serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if s.errorLog != nil {
		srv.ErrorLog = slog.NewLogLogger(s.errorLog.Handler(), slog.LevelError)
	}

	stopped := make(chan struct{})
	shutdownErr := make(chan error, 1)
	go func() {
		select {
		case <-ctx.Done():
		case <-stopped:
			shutdownErr <- nil
			return
		}
		s.logger.Info(ctx, "Stopping HTTP server...")

		sctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		shutdownErr <- srv.Shutdown(sctx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		close(stopped)
		<-shutdownErr
		return err
	}

	return <-shutdownErr
}
