//go:generate go tool mockgen -source=model.go -destination=mock_model_test.go -package=model

// Package model defines the contract shared by every generative-AI provider
// adapter together with a provider registry and call hooks.
package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/mashiike/imageai/imagecodec"
)

// =============================================================================
// CORE MODEL TYPES
// =============================================================================

// Image is a base64 encoded image paired with its MIME type.
type Image struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

// Response is the normalized output of an image-capable call.
// An empty ImageData means a text-only result.
type Response struct {
	Text      string `json:"text"`
	ImageData string `json:"imageData,omitempty"` // base64, never a URL
}

// HasImage reports whether the response carries image data.
func (r *Response) HasImage() bool {
	return r != nil && r.ImageData != ""
}

// Model is implemented once per provider.
type Model interface {
	// Generate returns a plain text completion for prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// GenerateWithImage creates an image from prompt, or transforms image
	// guided by prompt when image is non-nil.
	GenerateWithImage(ctx context.Context, prompt string, image *Image) (*Response, error)
}

// Config carries the settings a provider needs to build a Model.
type Config struct {
	ModelID       string // text model
	APIKey        string
	ImageModelID  string // image generation model, provider default when empty
	VisionModelID string // image understanding model, provider default when empty
	EditModelID   string // native edit model; empty disables native editing
	HTTPClient    *http.Client
	Fetcher       *imagecodec.Fetcher // downloads URL-only image results
	Logger        *slog.Logger
}

// GetLogger returns the configured logger or slog.Default.
func (c Config) GetLogger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// GetFetcher returns the configured fetcher or a new one.
func (c Config) GetFetcher() *imagecodec.Fetcher {
	if c.Fetcher != nil {
		return c.Fetcher
	}
	opts := []imagecodec.FetcherOption{imagecodec.WithLogger(c.GetLogger())}
	if c.HTTPClient != nil {
		opts = append(opts, imagecodec.WithHTTPClient(c.HTTPClient))
	}
	return imagecodec.NewFetcher(opts...)
}

// ProviderError reports a failed call to an AI backend.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err unless it already is a ProviderError.
func NewProviderError(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: provider, Op: op, Err: err}
}

// Operation names passed to hooks.
const (
	OpGenerate          = "generate"
	OpGenerateWithImage = "generate_with_image"
)

// =============================================================================
// MODEL HOOKS
// =============================================================================

// PreGenerateHook is called before a Model operation is executed
type PreGenerateHook func(ctx context.Context, providerID string, op string) error

// PostGenerateHook is called after a Model operation is executed
type PostGenerateHook func(ctx context.Context, providerID string, op string, resp *Response, err error) error

// ModelHooks contains hook functions for model operations
type ModelHooks struct {
	PreGenerate  []PreGenerateHook
	PostGenerate []PostGenerateHook
}

// HookedModel wraps a Model with hooks
type HookedModel struct {
	model      Model
	hooks      *ModelHooks
	providerID string
	logger     *slog.Logger
}

// Generate runs the hooks around the wrapped Generate.
func (h *HookedModel) Generate(ctx context.Context, prompt string) (string, error) {
	if err := h.pre(ctx, OpGenerate); err != nil {
		return "", err
	}
	text, err := h.model.Generate(ctx, prompt)
	h.post(ctx, OpGenerate, &Response{Text: text}, err)
	return text, err
}

// GenerateWithImage runs the hooks around the wrapped GenerateWithImage.
func (h *HookedModel) GenerateWithImage(ctx context.Context, prompt string, image *Image) (*Response, error) {
	if err := h.pre(ctx, OpGenerateWithImage); err != nil {
		return nil, err
	}
	resp, err := h.model.GenerateWithImage(ctx, prompt, image)
	h.post(ctx, OpGenerateWithImage, resp, err)
	return resp, err
}

// Unwrap returns the wrapped model.
func (h *HookedModel) Unwrap() Model {
	return h.model
}

func (h *HookedModel) pre(ctx context.Context, op string) error {
	for _, hook := range h.hooks.PreGenerate {
		if err := hook(ctx, h.providerID, op); err != nil {
			return fmt.Errorf("pre-generate hook failed: %w", err)
		}
	}
	return nil
}

func (h *HookedModel) post(ctx context.Context, op string, resp *Response, err error) {
	for _, hook := range h.hooks.PostGenerate {
		// hook errors never replace the call result
		if hookErr := hook(ctx, h.providerID, op, resp, err); hookErr != nil {
			h.logger.WarnContext(ctx, "post-generate hook failed", "provider", h.providerID, "op", op, "error", hookErr)
		}
	}
}

// =============================================================================
// PROVIDER REGISTRY
// =============================================================================

// ProviderFunc builds a Model for one provider.
type ProviderFunc func(ctx context.Context, cfg Config) (Model, error)

// ErrProviderNotRegistered is returned for unknown provider names.
var ErrProviderNotRegistered = errors.New("provider not registered")

// Registry manages registered model providers
type Registry struct {
	providers map[string]ProviderFunc
	hooks     *ModelHooks
	mutex     sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]ProviderFunc),
		hooks:     &ModelHooks{},
	}
}

// Register registers a model provider with the given name
func (r *Registry) Register(name string, provider ProviderFunc) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.providers[name] = provider
}

// AddPreGenerateHook adds a pre-generate hook applied to every model built afterwards
func (r *Registry) AddPreGenerateHook(hook PreGenerateHook) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.hooks.PreGenerate = append(r.hooks.PreGenerate, hook)
}

// AddPostGenerateHook adds a post-generate hook applied to every model built afterwards
func (r *Registry) AddPostGenerateHook(hook PostGenerateHook) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.hooks.PostGenerate = append(r.hooks.PostGenerate, hook)
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	_, ok := r.providers[name]
	return ok
}

// ListProviders returns all registered provider names in sorted order
func (r *Registry) ListProviders() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetModel builds a model and wraps it with hooks if any are registered
func (r *Registry) GetModel(ctx context.Context, providerName string, cfg Config) (Model, error) {
	r.mutex.RLock()
	provider, exists := r.providers[providerName]
	hooks := &ModelHooks{
		PreGenerate:  append([]PreGenerateHook(nil), r.hooks.PreGenerate...),
		PostGenerate: append([]PostGenerateHook(nil), r.hooks.PostGenerate...),
	}
	r.mutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotRegistered, providerName)
	}

	m, err := provider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if len(hooks.PreGenerate) == 0 && len(hooks.PostGenerate) == 0 {
		return m, nil
	}

	return &HookedModel{
		model:      m,
		hooks:      hooks,
		providerID: providerName,
		logger:     cfg.GetLogger(),
	}, nil
}
