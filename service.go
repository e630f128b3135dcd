package imageai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mashiike/imageai/imagecodec"
	"github.com/mashiike/imageai/model"
	"github.com/mashiike/imageai/transport"
)

//go:generate go tool mockgen -source=service.go -destination=mock_service_test.go -package=imageai

// AssetResolver maps a host asset ID to a downloadable URL.
type AssetResolver interface {
	ResolveAssetURL(ctx context.Context, assetID string) (string, error)
}

// AssetResolverFunc adapts a function to AssetResolver.
type AssetResolverFunc func(ctx context.Context, assetID string) (string, error)

// ResolveAssetURL implements AssetResolver.
func (f AssetResolverFunc) ResolveAssetURL(ctx context.Context, assetID string) (string, error) {
	return f(ctx, assetID)
}

// AgentProvider hands out agents by kind. Factory implements it.
type AgentProvider interface {
	Agent(ctx context.Context, kind AgentKind) (Agent, error)
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithFetcher sets the fetcher for asset images.
func WithFetcher(fetcher *imagecodec.Fetcher) ServiceOption {
	return func(s *Service) {
		s.fetcher = fetcher
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// Service implements transport.ImageService on top of the agents.
type Service struct {
	agents  AgentProvider
	assets  AssetResolver
	fetcher *imagecodec.Fetcher
	logger  *slog.Logger
}

var _ transport.ImageService = (*Service)(nil)

// NewService creates a Service. assets may be nil when only Generate is used.
func NewService(agents AgentProvider, assets AssetResolver, opts ...ServiceOption) *Service {
	s := &Service{
		agents: agents,
		assets: assets,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fetcher == nil {
		s.fetcher = imagecodec.NewFetcher(imagecodec.WithLogger(s.logger))
	}
	return s
}

// Enhance implements transport.ImageService.
func (s *Service) Enhance(ctx context.Context, req *transport.EnhanceRequest) (*transport.Response, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, NewValidationError("message", "Message is required")
	}
	if req.SelectedImage == "" {
		return nil, NewValidationError("selectedImage", "selectedImage is required")
	}
	if s.assets == nil {
		return nil, fmt.Errorf("no asset resolver configured")
	}

	assetURL, err := s.assets.ResolveAssetURL(ctx, req.SelectedImage)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve asset %s: %w", req.SelectedImage, err)
	}
	if !imagecodec.IsSupportedExtension(assetURL) {
		return nil, NewValidationError("selectedImage",
			"Unsupported extension: %s. Please select a PNG, JPEG, WEBP, HEIC, or HEIF image instead.",
			imagecodec.Extension(assetURL))
	}
	data, ok := s.fetcher.FetchAsBase64(ctx, assetURL)
	if !ok {
		return nil, NewValidationError("selectedImage",
			"I couldn't process the selected image. Please try with a different image in a supported format.")
	}
	image := model.Image{Data: data, MimeType: imagecodec.MimeTypeFromPath(assetURL)}

	agent, err := s.agents.Agent(ctx, AgentKindEnhancer)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "enhancing image",
		"request_id", transport.GetRequestID(ctx),
		"asset_id", req.SelectedImage,
		"mime_type", image.MimeType)
	resp, err := agent.Respond(ctx, req.Message, []model.Image{image})
	if err != nil {
		return nil, err
	}
	return &transport.Response{Response: resp.Text, ImageData: resp.ImageData}, nil
}

// Generate implements transport.ImageService.
func (s *Service) Generate(ctx context.Context, req *transport.GenerateRequest) (*transport.Response, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, NewValidationError("message", "Message is required")
	}
	for i, image := range req.Images {
		if image.Data == "" {
			return nil, NewValidationError(fmt.Sprintf("images[%d]", i), "image data is required")
		}
		if !imagecodec.IsSupported(image.MimeType) {
			return nil, NewValidationError(fmt.Sprintf("images[%d]", i), "Unsupported image type: %s", image.MimeType)
		}
	}

	agent, err := s.agents.Agent(ctx, AgentKindGenerator)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "generating image",
		"request_id", transport.GetRequestID(ctx),
		"reference_images", len(req.Images))
	resp, err := agent.Respond(ctx, req.Message, req.Images)
	if err != nil {
		return nil, err
	}
	return &transport.Response{Response: resp.Text, ImageData: resp.ImageData}, nil
}
