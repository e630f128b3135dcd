package openai

import (
	"context"

	"github.com/openai/openai-go"
)

//go:generate go tool mockgen -source=client.go -destination=mock_client_test.go -package=openai

// OpenAIClient is the subset of the OpenAI API used by Model.
type OpenAIClient interface {
	NewChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
	GenerateImage(ctx context.Context, params openai.ImageGenerateParams) (*openai.ImagesResponse, error)
	EditImage(ctx context.Context, params openai.ImageEditParams) (*openai.ImagesResponse, error)
}

// ClientAdapter wraps the official OpenAI client to implement our interface
type ClientAdapter struct {
	client *openai.Client
}

// NewClientAdapter wraps client.
func NewClientAdapter(client *openai.Client) *ClientAdapter {
	return &ClientAdapter{client: client}
}

func (a *ClientAdapter) NewChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return a.client.Chat.Completions.New(ctx, params)
}

func (a *ClientAdapter) GenerateImage(ctx context.Context, params openai.ImageGenerateParams) (*openai.ImagesResponse, error) {
	return a.client.Images.Generate(ctx, params)
}

func (a *ClientAdapter) EditImage(ctx context.Context, params openai.ImageEditParams) (*openai.ImagesResponse, error) {
	return a.client.Images.Edit(ctx, params)
}
