package imageai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/fujiwara/ridge"
	"github.com/mashiike/imageai/transport"
)

// DefaultHealthPath serves the liveness probe.
const DefaultHealthPath = "/health"

// Server hosts the image-ai endpoints over HTTP, or through AWS Lambda when
// running on the Lambda runtime, similar to http.Server
type Server struct {
	// Addr specifies the TCP address for the server to listen on,
	// in the form "host:port". If empty, ":8080" is used.
	Addr string

	// EnhancePath and GeneratePath default to /image-ai/enhance and /image-ai/generate.
	EnhancePath  string
	GeneratePath string

	// HealthPath defaults to DefaultHealthPath.
	HealthPath string

	// Service handles the image-ai requests.
	// This field is required and cannot be nil.
	Service transport.ImageService

	// Authenticator verifies the bearer token of every image-ai request.
	// If nil, no authentication is required.
	Authenticator transport.Authenticator

	// MaxBodyBytes limits request bodies, transport.DefaultMaxBodyBytes if zero.
	MaxBodyBytes int64

	Logger *slog.Logger

	LambdaOptions []lambda.Option // Options for AWS Lambda integration

	// Internal fields
	httpServer     *http.Server
	mux            *http.ServeMux                    // HTTP request multiplexer
	handler        http.Handler                      // mux with middlewares applied
	customHandlers map[string]http.Handler           // Custom handlers stored before initialization
	middlewares    []func(http.Handler) http.Handler // HTTP middlewares applied to all requests
	mu             sync.Mutex
}

// Use adds HTTP middlewares to the server.
// Middlewares are applied to all HTTP requests in the order they are added.
func (s *Server) Use(middlewares ...func(http.Handler) http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.middlewares = append(s.middlewares, middlewares...)
}

// Run starts the server and blocks until the server shuts down.
func (s *Server) Run() error {
	return s.RunWithContext(context.Background())
}

// RunWithContext starts the server with the given context and blocks until
// the server shuts down or the context is cancelled.
func (s *Server) RunWithContext(ctx context.Context) error {
	if err := s.initialize(); err != nil {
		return err
	}

	if ridge.OnLambdaRuntime() {
		return s.runOnLambdaRuntime(ctx)
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger().InfoContext(ctx, "starting image-ai server", "addr", s.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

func (s *Server) runOnLambdaRuntime(ctx context.Context) error {
	opts := append([]lambda.Option{
		lambda.WithContext(ctx),
	}, s.LambdaOptions...)
	lambda.StartWithOptions(
		func(ctx context.Context, event json.RawMessage) (interface{}, error) {
			req, err := ridge.NewRequest(event)
			if err != nil || req.Method == "" || req.URL.Path == "" {
				s.logger().DebugContext(ctx, "skipping non-HTTP event", "payload", string(event))
				return json.RawMessage(`"skipped"`), nil
			}
			w := ridge.NewResponseWriter()
			s.handler.ServeHTTP(w, req.WithContext(ctx))
			return w.Response(), nil
		},
		opts...,
	)
	return nil
}

// Shutdown gracefully shuts down the server without interrupting any
// active connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
	}
	return nil
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// initialize sets up the server with default values if not configured
func (s *Server) initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initializeLocked()
}

func (s *Server) initializeLocked() error {
	if s.Service == nil {
		return errors.New("Service field is required and cannot be nil")
	}
	if s.Addr == "" {
		s.Addr = ":8080"
	}
	if s.EnhancePath == "" {
		s.EnhancePath = "/image-ai/enhance"
	}
	if s.GeneratePath == "" {
		s.GeneratePath = "/image-ai/generate"
	}
	if s.HealthPath == "" {
		s.HealthPath = DefaultHealthPath
	}

	if s.mux == nil {
		handlerOptions := []transport.HandlerOption{
			transport.WithEnhancePath(s.EnhancePath),
			transport.WithGeneratePath(s.GeneratePath),
			transport.WithLogger(s.logger()),
		}
		if s.Authenticator != nil {
			handlerOptions = append(handlerOptions, transport.WithAuthenticator(s.Authenticator))
		}
		if s.MaxBodyBytes > 0 {
			handlerOptions = append(handlerOptions, transport.WithMaxBodyBytes(s.MaxBodyBytes))
		}
		handler := transport.NewHandler(s.Service, handlerOptions...)
		s.mux = http.NewServeMux()
		s.mux.Handle(s.EnhancePath, handler)
		s.mux.Handle(s.GeneratePath, handler)
		s.mux.HandleFunc(s.HealthPath, healthHandler)

		// Register custom handlers
		for pattern, customHandler := range s.customHandlers {
			s.mux.Handle(pattern, customHandler)
		}
		s.customHandlers = nil // Clear to free memory
	}

	if s.handler == nil {
		s.handler = s.applyMiddleware(s.mux)
	}

	if s.httpServer == nil {
		s.httpServer = &http.Server{
			Addr:              s.Addr,
			Handler:           s.handler,
			ReadHeaderTimeout: 30 * time.Second,
		}
	}

	return nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// isProtectedPattern checks if the pattern conflicts with the built-in endpoints
func (s *Server) isProtectedPattern(pattern string) bool {
	for _, p := range []struct{ value, fallback string }{
		{s.EnhancePath, "/image-ai/enhance"},
		{s.GeneratePath, "/image-ai/generate"},
		{s.HealthPath, DefaultHealthPath},
	} {
		protected := p.value
		if protected == "" {
			protected = p.fallback
		}
		if pattern == protected {
			return true
		}
	}
	return false
}

// Handle registers a handler for the given pattern.
// It panics if the pattern is already registered or conflicts with the built-in endpoints.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isProtectedPattern(pattern) {
		panic(fmt.Sprintf("pattern %s conflicts with image-ai endpoints", pattern))
	}

	// If mux is already initialized, register directly
	if s.mux != nil {
		s.mux.Handle(pattern, handler)
		return
	}

	// Store for later registration during initialization
	if s.customHandlers == nil {
		s.customHandlers = make(map[string]http.Handler)
	}

	if _, exists := s.customHandlers[pattern]; exists {
		panic(fmt.Sprintf("http: multiple registrations for %s", pattern))
	}

	s.customHandlers[pattern] = handler
}

// HandleFunc registers a handler function for the given pattern.
func (s *Server) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.Handle(pattern, http.HandlerFunc(handler))
}

// ServeHTTP implements http.Handler with every middleware applied.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.handler == nil {
		if err := s.initializeLocked(); err != nil {
			s.mu.Unlock()
			panic(fmt.Sprintf("failed to initialize server: %v", err))
		}
	}
	handler := s.handler
	s.mu.Unlock()
	handler.ServeHTTP(w, r)
}

// applyMiddleware applies all registered middlewares to the given handler
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	// Apply middlewares in registration order (first registered wraps outermost)
	result := handler
	for i := len(s.middlewares) - 1; i >= 0; i-- {
		result = s.middlewares[i](result)
	}
	return result
}
