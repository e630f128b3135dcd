package imageai

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mashiike/imageai/model"
	"github.com/mashiike/imageai/model/bedrock"
	"github.com/mashiike/imageai/model/gemini"
	"github.com/mashiike/imageai/model/openai"
)

// DefaultProvider is used when the configured provider is unknown.
const DefaultProvider = openai.ProviderName

// NewDefaultRegistry returns a registry with the openai, gemini and bedrock
// providers.
func NewDefaultRegistry() *model.Registry {
	registry := model.NewRegistry()
	registry.Register(openai.ProviderName, (&openai.ModelProvider{}).GetModel)
	registry.Register(gemini.ProviderName, (&gemini.ModelProvider{}).GetModel)
	registry.Register(bedrock.ProviderName, (&bedrock.ModelProvider{}).GetModel)
	return registry
}

// FactoryConfig is read once at process start.
type FactoryConfig struct {
	// Provider names a registered provider. Unknown names fall back to
	// DefaultProvider.
	Provider string
	Model    model.Config
	// Registry defaults to NewDefaultRegistry.
	Registry *model.Registry
	Logger   *slog.Logger
}

// Factory builds the Model once and binds it to agents.
type Factory struct {
	provider string
	cfg      model.Config
	registry *model.Registry
	logger   *slog.Logger

	mu    sync.Mutex
	model model.Model
}

// NewFactory creates a Factory. No provider call happens until the first
// Model or Agent call.
func NewFactory(cfg FactoryConfig) *Factory {
	f := &Factory{
		provider: cfg.Provider,
		cfg:      cfg.Model,
		registry: cfg.Registry,
		logger:   cfg.Logger,
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	if f.cfg.Logger == nil {
		f.cfg.Logger = f.logger
	}
	if f.registry == nil {
		f.registry = NewDefaultRegistry()
	}
	if !f.registry.Has(f.provider) {
		f.logger.Warn("unknown AI provider, falling back to default", "provider", f.provider, "default", DefaultProvider)
		f.provider = DefaultProvider
	}
	return f
}

// Provider returns the selected provider name.
func (f *Factory) Provider() string {
	return f.provider
}

// Model returns the memoized model, building it on first use. A failed
// build is not memoized.
func (f *Factory) Model(ctx context.Context) (model.Model, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.model != nil {
		return f.model, nil
	}
	m, err := f.registry.GetModel(ctx, f.provider, f.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s model: %w", f.provider, err)
	}
	f.logger.InfoContext(ctx, "AI model initialized", "provider", f.provider, "model", f.cfg.ModelID)
	f.model = m
	return m, nil
}

// Agent binds the model to an agent of kind. Unknown kinds get a Generator.
func (f *Factory) Agent(ctx context.Context, kind AgentKind) (Agent, error) {
	m, err := f.Model(ctx)
	if err != nil {
		return nil, err
	}
	switch kind {
	case AgentKindEnhancer:
		return NewEnhancer(m, f.logger), nil
	case AgentKindGenerator:
		return NewGenerator(m, f.logger), nil
	default:
		f.logger.WarnContext(ctx, "unknown agent kind, using generator", "kind", kind)
		return NewGenerator(m, f.logger), nil
	}
}
