// Package gemini adapts the Google Gemini API to model.Model.
package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mashiike/imageai/imagecodec"
	"github.com/mashiike/imageai/model"
	"google.golang.org/genai"
)

//go:generate go tool mockgen -source=model.go -destination=mock_model_test.go -package=gemini

// ProviderName is the name the provider is registered under.
const ProviderName = "gemini"

// Defaults used when model.Config leaves a model ID empty.
const (
	DefaultModelID      = "gemini-2.0-flash"
	DefaultImageModelID = "gemini-2.0-flash-preview-image-generation"
)

// defaultImageText is returned when the model produced an image without text.
const defaultImageText = "Image processing complete."

// ContentGenerator is implemented by *genai.Models.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ModelProvider builds Models sharing one Gemini client.
type ModelProvider struct {
	once      sync.Once
	generator ContentGenerator
	loadErr   error
}

// SetClient sets the content generator for dependency injection
func (p *ModelProvider) SetClient(generator ContentGenerator) {
	p.once.Do(func() {
		p.generator = generator
	})
}

// GetClient returns the content generator, initializing it from cfg if necessary
func (p *ModelProvider) GetClient(ctx context.Context, cfg model.Config) (ContentGenerator, error) {
	p.once.Do(func() {
		if p.generator != nil {
			return
		}
		if cfg.APIKey == "" {
			p.loadErr = errors.New("gemini api key is required")
			return
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:     cfg.APIKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: cfg.HTTPClient,
		})
		if err != nil {
			p.loadErr = fmt.Errorf("failed to create gemini client: %w", err)
			return
		}
		p.generator = client.Models
	})

	if p.loadErr != nil {
		return nil, p.loadErr
	}
	if p.generator == nil {
		return nil, errors.New("gemini client is not initialized")
	}
	return p.generator, nil
}

// GetModel returns a model for cfg. It has the model.ProviderFunc signature.
func (p *ModelProvider) GetModel(ctx context.Context, cfg model.Config) (model.Model, error) {
	generator, err := p.GetClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(generator, cfg), nil
}

// Model implements model.Model for Gemini.
type Model struct {
	generator    ContentGenerator
	modelID      string
	imageModelID string
	fetcher      *imagecodec.Fetcher
	logger       *slog.Logger
}

// New creates a Model using generator.
func New(generator ContentGenerator, cfg model.Config) *Model {
	m := &Model{
		generator:    generator,
		modelID:      cfg.ModelID,
		imageModelID: cfg.ImageModelID,
		fetcher:      cfg.GetFetcher(),
		logger:       cfg.GetLogger(),
	}
	if m.modelID == "" {
		m.modelID = DefaultModelID
	}
	if m.imageModelID == "" {
		m.imageModelID = DefaultImageModelID
	}
	return m
}

// Generate returns a text completion for prompt.
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(prompt)}, genai.RoleUser),
	}
	resp, err := m.generator.GenerateContent(ctx, m.modelID, contents, nil)
	if err != nil {
		return "", model.NewProviderError(ProviderName, model.OpGenerate, err)
	}
	text, _, err := m.extract(ctx, resp)
	if err != nil {
		return "", model.NewProviderError(ProviderName, model.OpGenerate, err)
	}
	return text, nil
}

// GenerateWithImage asks the image generation model for text and image output.
// A response without an image is returned as text only.
func (m *Model) GenerateWithImage(ctx context.Context, prompt string, image *model.Image) (*model.Response, error) {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if image != nil {
		data, err := base64.StdEncoding.DecodeString(image.Data)
		if err != nil {
			return nil, model.NewProviderError(ProviderName, model.OpGenerateWithImage,
				fmt.Errorf("failed to decode base64 image data: %w", err))
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: image.MimeType, Data: data}})
	}

	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := m.generator.GenerateContent(ctx, m.imageModelID, contents, config)
	if err != nil {
		return nil, model.NewProviderError(ProviderName, model.OpGenerateWithImage, err)
	}

	text, imageData, err := m.extract(ctx, resp)
	if err != nil {
		return nil, model.NewProviderError(ProviderName, model.OpGenerateWithImage, err)
	}
	if imageData == "" {
		m.logger.DebugContext(ctx, "gemini returned no image", "model", m.imageModelID)
	}
	if text == "" {
		text = defaultImageText
	}
	return &model.Response{Text: text, ImageData: imageData}, nil
}

// extract concatenates the text parts of the first candidate and returns its
// last image base64 encoded. File references are downloaded.
func (m *Model) extract(ctx context.Context, resp *genai.GenerateContentResponse) (string, string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", "", nil
	}

	var text strings.Builder
	var imageData string
	for _, part := range resp.Candidates[0].Content.Parts {
		switch {
		case part == nil:
		case part.Text != "":
			text.WriteString(part.Text)
		case part.InlineData != nil && len(part.InlineData.Data) > 0:
			imageData = base64.StdEncoding.EncodeToString(part.InlineData.Data)
		case part.FileData != nil && part.FileData.FileURI != "":
			data, err := m.fetcher.DownloadBase64(ctx, part.FileData.FileURI)
			if err != nil {
				return "", "", err
			}
			imageData = data
		}
	}
	return text.String(), imageData, nil
}
