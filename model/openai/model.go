// Package openai adapts the OpenAI chat and image APIs to model.Model.
//
// Image editing uses a two step path unless an edit model is configured:
// the reference image is analyzed with a vision model and the analysis is
// fed to the image generation model as context.
package openai

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/mashiike/imageai/imagecodec"
	"github.com/mashiike/imageai/model"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// ProviderName is the name the provider is registered under.
const ProviderName = "openai"

// Defaults used when model.Config leaves a model ID empty.
const (
	DefaultModelID       = "gpt-4o-mini"
	DefaultImageModelID  = "dall-e-3"
	DefaultVisionModelID = "gpt-4o"
)

// ModelProvider builds Models sharing one OpenAI client.
type ModelProvider struct {
	once    sync.Once
	client  OpenAIClient
	loadErr error
}

// SetClient sets the OpenAI client for dependency injection
func (p *ModelProvider) SetClient(client OpenAIClient) {
	p.once.Do(func() {
		p.client = client
	})
}

// GetClient returns the OpenAI client, initializing it from cfg if necessary
func (p *ModelProvider) GetClient(cfg model.Config) (OpenAIClient, error) {
	p.once.Do(func() {
		if p.client != nil {
			return
		}
		if cfg.APIKey == "" {
			p.loadErr = errors.New("openai api key is required")
			return
		}

		opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
		if cfg.HTTPClient != nil {
			opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
		}
		realClient := openai.NewClient(opts...)
		p.client = NewClientAdapter(&realClient)
	})

	if p.loadErr != nil {
		return nil, p.loadErr
	}
	if p.client == nil {
		return nil, errors.New("openai client is not initialized")
	}
	return p.client, nil
}

// GetModel returns a model for cfg. It has the model.ProviderFunc signature.
func (p *ModelProvider) GetModel(ctx context.Context, cfg model.Config) (model.Model, error) {
	client, err := p.GetClient(cfg)
	if err != nil {
		return nil, err
	}
	return New(client, cfg), nil
}

// Model implements model.Model for OpenAI.
type Model struct {
	client        OpenAIClient
	modelID       string
	imageModelID  string
	visionModelID string
	editModelID   string
	fetcher       *imagecodec.Fetcher
	logger        *slog.Logger
}

// New creates a Model using client. Empty model IDs fall back to the package defaults.
func New(client OpenAIClient, cfg model.Config) *Model {
	m := &Model{
		client:        client,
		modelID:       cfg.ModelID,
		imageModelID:  cfg.ImageModelID,
		visionModelID: cfg.VisionModelID,
		editModelID:   cfg.EditModelID,
		fetcher:       cfg.GetFetcher(),
		logger:        cfg.GetLogger(),
	}
	if m.modelID == "" {
		m.modelID = DefaultModelID
	}
	if m.imageModelID == "" {
		m.imageModelID = DefaultImageModelID
	}
	if m.visionModelID == "" {
		m.visionModelID = DefaultVisionModelID
	}
	return m
}

// Generate returns a chat completion for prompt.
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := m.complete(ctx, m.modelID, openai.UserMessage(prompt))
	if err != nil {
		return "", model.NewProviderError(ProviderName, model.OpGenerate, err)
	}
	return text, nil
}

// describe asks the vision model about image.
func (m *Model) describe(ctx context.Context, prompt string, image *model.Image) (string, error) {
	parts := []openai.ChatCompletionContentPartUnionParam{
		{OfText: &openai.ChatCompletionContentPartTextParam{Text: prompt}},
		{OfImageURL: &openai.ChatCompletionContentPartImageParam{
			ImageURL: openai.ChatCompletionContentPartImageImageURLParam{
				URL: imagecodec.DataURL(image.MimeType, image.Data),
			},
		}},
	}
	msg := openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfArrayOfContentParts: parts,
			},
		},
	}
	return m.complete(ctx, m.visionModelID, msg)
}

func (m *Model) complete(ctx context.Context, modelID string, msg openai.ChatCompletionMessageParamUnion) (string, error) {
	response, err := m.client.NewChatCompletion(ctx, openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(modelID),
		Messages: []openai.ChatCompletionMessageParamUnion{msg},
	})
	if err != nil {
		return "", err
	}
	if len(response.Choices) == 0 {
		return "", errors.New("no choices returned from OpenAI API")
	}
	return response.Choices[0].Message.Content, nil
}
