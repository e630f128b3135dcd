package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// Fixed client-facing error messages.
const (
	ErrorMessageUnauthorized = "Unauthorized"
	ErrorMessageProcessing   = "Failed to process message"
	ErrorMessageNotFound     = "Not found"
	ErrorMessageMethod       = "Method not allowed"
)

// DefaultMaxBodyBytes bounds request bodies. Reference images travel inline as base64.
const DefaultMaxBodyBytes = 32 << 20

// HandlerOption defines configuration option for Handler
type HandlerOption func(*handlerConfig)

// handlerConfig holds internal configuration for Handler
type handlerConfig struct {
	enhancePath   string
	generatePath  string
	maxBodyBytes  int64
	logger        *slog.Logger
	authenticator Authenticator
}

// WithEnhancePath sets the enhance endpoint path (default: "/image-ai/enhance")
func WithEnhancePath(path string) HandlerOption {
	return func(c *handlerConfig) {
		c.enhancePath = path
	}
}

// WithGeneratePath sets the generate endpoint path (default: "/image-ai/generate")
func WithGeneratePath(path string) HandlerOption {
	return func(c *handlerConfig) {
		c.generatePath = path
	}
}

// WithMaxBodyBytes sets the request body limit (default: 32MiB)
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(c *handlerConfig) {
		c.maxBodyBytes = n
	}
}

// WithAuthenticator sets the authenticator for the handler
func WithAuthenticator(auth Authenticator) HandlerOption {
	return func(c *handlerConfig) {
		c.authenticator = auth
	}
}

// WithLogger sets an optional logger for debug output
func WithLogger(logger *slog.Logger) HandlerOption {
	return func(c *handlerConfig) {
		c.logger = logger
	}
}

// Handler serves the image-ai JSON endpoints on top of an ImageService.
type Handler struct {
	service ImageService
	config  handlerConfig
}

// NewHandler creates a new image-ai handler with options
func NewHandler(service ImageService, options ...HandlerOption) *Handler {
	config := handlerConfig{
		enhancePath:  "/image-ai/enhance",
		generatePath: "/image-ai/generate",
		maxBodyBytes: DefaultMaxBodyBytes,
		logger:       slog.Default(),
	}
	for _, option := range options {
		option(&config)
	}
	return &Handler{
		service: service,
		config:  config,
	}
}

// ServeHTTP implements http.Handler interface
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.canHandlePath(r.URL.Path) {
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: ErrorMessageNotFound})
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: ErrorMessageMethod})
		return
	}

	requestID := r.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, requestID)
	ctx := WithRequestID(r.Context(), requestID)
	ctx = WithHTTPHeaders(ctx, r.Header)
	r = r.WithContext(ctx)
	logger := h.config.logger.With("request_id", requestID, "path", r.URL.Path)

	if h.config.authenticator != nil {
		newReq, err := h.config.authenticator.Authenticate(ctx, r)
		if err != nil {
			logger.InfoContext(ctx, "authentication failed", "error", err)
			h.writeAuthError(w, err)
			return
		}
		r = newReq
		ctx = r.Context()
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.config.maxBodyBytes)

	var (
		resp *Response
		err  error
	)
	switch r.URL.Path {
	case h.config.enhancePath:
		var req EnhanceRequest
		if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
			err = fmt.Errorf("failed to decode request body: %w", err)
			break
		}
		resp, err = h.service.Enhance(ctx, &req)
	case h.config.generatePath:
		var req GenerateRequest
		if err = json.NewDecoder(r.Body).Decode(&req); err != nil {
			err = fmt.Errorf("failed to decode request body: %w", err)
			break
		}
		resp, err = h.service.Generate(ctx, &req)
	}

	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			logger.InfoContext(ctx, "upstream authentication failed", "error", err)
			h.writeAuthError(w, err)
			return
		}
		logger.ErrorContext(ctx, "error processing chat message", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: ErrorMessageProcessing})
		return
	}
	if resp == nil {
		resp = &Response{}
	}
	logger.DebugContext(ctx, "request processed", "has_image", resp.ImageData != "")
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) canHandlePath(path string) bool {
	return path == h.config.enhancePath || path == h.config.generatePath
}

// canHandle checks if the handler can process the request
func (h *Handler) canHandle(r *http.Request) bool {
	return h.canHandlePath(r.URL.Path)
}

// ImageAIMiddleware creates middleware that handles image-ai requests and passes others to next handler
func ImageAIMiddleware(service ImageService, options ...HandlerOption) func(http.Handler) http.Handler {
	handler := NewHandler(service, options...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if handler.canHandle(r) {
				handler.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.config.logger.Error("failed to write response", "error", err)
	}
}

// writeAuthError writes an authentication error response. The body never
// reveals why authentication failed.
func (h *Handler) writeAuthError(w http.ResponseWriter, err error) {
	var authErr *AuthError
	if errors.As(err, &authErr) && authErr.Scheme != "" {
		w.Header().Set("WWW-Authenticate", fmt.Sprintf("%s error=%q", authErr.Scheme, authErr.Code))
	}
	h.writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: ErrorMessageUnauthorized})
}

