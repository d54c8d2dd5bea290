package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playdeck/internal/shared"
	"golang.org/x/oauth2"
)

const (
	DefaultAuthTimeout = 2 * time.Minute
	shutdownTimeout    = 5 * time.Second
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an http.Handler that knows the paths it serves.
type Handler interface {
	http.Handler
	Routes() []string
}

// Router registers handlers and applies middleware.
type Router interface {
	Use(middleware ...Middleware)
	Handle(method, path string, handler http.Handler)
	Handler(handler Handler)
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// CallbackServer is a short-lived local server that receives one OAuth callback.
type CallbackServer struct {
	addr    string
	handler *OAuthHandler
	logger  *log.Logger
	timeout time.Duration
}

// NewCallbackServer serves handler on addr (host:port).
func NewCallbackServer(addr string, handler *OAuthHandler, logger *log.Logger) *CallbackServer {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &CallbackServer{addr: addr, handler: handler, logger: logger, timeout: DefaultAuthTimeout}
}

// WithTimeout overrides how long [CallbackServer.Authorize] waits for the callback.
func (s *CallbackServer) WithTimeout(d time.Duration) *CallbackServer {
	s.timeout = d
	return s
}

// Authorize listens, calls open with the authorization URL and blocks until the callback arrives,
// the timeout elapses or ctx is cancelled. The server is shut down before returning.
func (s *CallbackServer) Authorize(ctx context.Context, open func(url string) error) (*oauth2.Token, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	router := NewBasicRouter()
	router.Use(RequestLogger(s.logger))
	router.Handler(s.handler)
	httpServer := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("starting OAuth callback server", "addr", listener.Addr().String())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("error shutting down server", "error", err)
		}
	}()

	if open != nil {
		if err := open(s.handler.AuthURL()); err != nil {
			s.logger.Warn("failed to open authorization url", "error", err)
		}
	}

	timeout := time.NewTimer(s.timeout)
	defer timeout.Stop()

	var result OAuthResult
	select {
	case result = <-s.handler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrAuthFailed, s.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}
