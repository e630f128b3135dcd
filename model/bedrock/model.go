// Package bedrock provides integration with AWS Bedrock. Text and vision calls
// use the Converse API, images are generated with Amazon Titan Image Generator
// through InvokeModel.
package bedrock

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/mashiike/imageai/model"
)

// ProviderName is the name the provider is registered under.
const ProviderName = "bedrock"

// Defaults used when model.Config leaves a model ID empty.
const (
	DefaultModelID      = "anthropic.claude-3-haiku-20240307-v1:0"
	DefaultImageModelID = "amazon.titan-image-generator-v2:0"
)

// titanMaxPromptLength is the Titan Image Generator text limit.
const titanMaxPromptLength = 512

type BedrockClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

type ModelProvider struct {
	once    sync.Once
	awsCfg  *aws.Config
	client  BedrockClient
	loadErr error
}

func (p *ModelProvider) SetAWSConfig(cfg *aws.Config) {
	p.once.Do(func() {
		p.awsCfg = cfg
	})
}

func (p *ModelProvider) GetClient(ctx context.Context) (BedrockClient, error) {
	p.once.Do(func() {
		if p.client != nil {
			return
		}
		if p.awsCfg == nil {
			cfg, err := config.LoadDefaultConfig(ctx)
			if err != nil {
				p.loadErr = err
				return
			}
			p.awsCfg = &cfg
		}
		p.client = bedrockruntime.NewFromConfig(*p.awsCfg)
	})
	if p.loadErr != nil {
		return nil, p.loadErr
	}
	if p.client == nil {
		return nil, errors.New("bedrock client is not initialized")
	}
	return p.client, nil
}

func (p *ModelProvider) SetClient(client BedrockClient) {
	p.once.Do(func() {
		p.client = client
	})
}

// GetModel returns a model for cfg. It has the model.ProviderFunc signature.
// Credentials come from the AWS default chain, cfg.APIKey is ignored.
func (p *ModelProvider) GetModel(ctx context.Context, cfg model.Config) (model.Model, error) {
	client, err := p.GetClient(ctx)
	if err != nil {
		return nil, err
	}
	m := &Model{
		modelID:       cfg.ModelID,
		imageModelID:  cfg.ImageModelID,
		visionModelID: cfg.VisionModelID,
		client:        client,
		logger:        cfg.GetLogger(),
	}
	if m.modelID == "" {
		m.modelID = DefaultModelID
	}
	if m.imageModelID == "" {
		m.imageModelID = DefaultImageModelID
	}
	if m.visionModelID == "" {
		m.visionModelID = m.modelID
	}
	return m, nil
}

type Model struct {
	modelID       string
	imageModelID  string
	visionModelID string
	client        BedrockClient
	logger        *slog.Logger
}

func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := m.converse(ctx, m.modelID, []types.ContentBlock{
		&types.ContentBlockMemberText{Value: prompt},
	})
	if err != nil {
		return "", model.NewProviderError(ProviderName, model.OpGenerate, err)
	}
	return text, nil
}

// GenerateWithImage generates an image with Titan. A reference image turns the
// request into an image variation. If the variation fails, the vision model
// describes the image once and that text is returned without an image.
func (m *Model) GenerateWithImage(ctx context.Context, prompt string, image *model.Image) (*model.Response, error) {
	req := titanRequest{
		ImageGenerationConfig: titanImageConfig{NumberOfImages: 1, Height: 1024, Width: 1024},
	}
	text := truncate(prompt, titanMaxPromptLength)
	if image == nil {
		req.TaskType = "TEXT_IMAGE"
		req.TextToImageParams = &titanTextToImageParams{Text: text}
	} else {
		req.TaskType = "IMAGE_VARIATION"
		req.ImageVariationParams = &titanImageVariationParams{
			Text:               text,
			Images:             []string{image.Data},
			SimilarityStrength: 0.7,
		}
	}

	imageData, err := m.invokeTitan(ctx, req)
	if err == nil {
		return &model.Response{ImageData: imageData}, nil
	}
	if image == nil {
		return nil, model.NewProviderError(ProviderName, model.OpGenerateWithImage, err)
	}

	m.logger.WarnContext(ctx, "image variation failed, falling back to description", "error", err)
	block, blockErr := imageBlock(image)
	if blockErr != nil {
		return nil, model.NewProviderError(ProviderName, model.OpGenerateWithImage, err)
	}
	description, fallbackErr := m.converse(ctx, m.visionModelID, []types.ContentBlock{
		&types.ContentBlockMemberText{Value: "I couldn't generate a new image, but here's my analysis: " + prompt},
		block,
	})
	if fallbackErr != nil {
		m.logger.ErrorContext(ctx, "fallback description failed", "error", fallbackErr)
		return nil, model.NewProviderError(ProviderName, model.OpGenerateWithImage, err)
	}
	return &model.Response{Text: description}, nil
}

func (m *Model) converse(ctx context.Context, modelID string, content []types.ContentBlock) (string, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(modelID),
		Messages: []types.Message{
			{Role: types.ConversationRoleUser, Content: content},
		},
	}
	output, err := m.client.Converse(ctx, input)
	if err != nil {
		return "", fmt.Errorf("bedrock converse failed: %w", err)
	}

	msgOutput, ok := output.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return "", errors.New("bedrock converse returned no message")
	}
	var text strings.Builder
	for _, block := range msgOutput.Value.Content {
		if t, ok := block.(*types.ContentBlockMemberText); ok {
			text.WriteString(t.Value)
		}
	}
	if output.Usage != nil {
		m.logger.DebugContext(ctx, "bedrock converse usage",
			"model", modelID,
			"input_tokens", aws.ToInt32(output.Usage.InputTokens),
			"output_tokens", aws.ToInt32(output.Usage.OutputTokens),
		)
	}
	return text.String(), nil
}

func (m *Model) invokeTitan(ctx context.Context, req titanRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal titan request: %w", err)
	}
	output, err := m.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(m.imageModelID),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("bedrock invoke model failed: %w", err)
	}

	var resp titanResponse
	if err := json.Unmarshal(output.Body, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal titan response: %w", err)
	}
	if resp.Error != "" {
		return "", errors.New(resp.Error)
	}
	if len(resp.Images) == 0 || resp.Images[0] == "" {
		return "", errors.New("no images returned from titan")
	}
	return resp.Images[0], nil
}

var imageFormats = map[string]types.ImageFormat{
	"image/png":  types.ImageFormatPng,
	"image/jpeg": types.ImageFormatJpeg,
	"image/gif":  types.ImageFormatGif,
	"image/webp": types.ImageFormatWebp,
}

// imageBlock converts image to a Converse content block.
func imageBlock(image *model.Image) (types.ContentBlock, error) {
	format, ok := imageFormats[image.MimeType]
	if !ok {
		return nil, fmt.Errorf("unsupported image format for bedrock: %s", image.MimeType)
	}
	raw, err := base64.StdEncoding.DecodeString(image.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 image data: %w", err)
	}
	return &types.ContentBlockMemberImage{
		Value: types.ImageBlock{
			Format: format,
			Source: &types.ImageSourceMemberBytes{Value: raw},
		},
	}, nil
}

type titanRequest struct {
	TaskType              string                     `json:"taskType"`
	TextToImageParams     *titanTextToImageParams    `json:"textToImageParams,omitempty"`
	ImageVariationParams  *titanImageVariationParams `json:"imageVariationParams,omitempty"`
	ImageGenerationConfig titanImageConfig           `json:"imageGenerationConfig"`
}

type titanTextToImageParams struct {
	Text string `json:"text"`
}

type titanImageVariationParams struct {
	Text               string   `json:"text,omitempty"`
	Images             []string `json:"images"`
	SimilarityStrength float64  `json:"similarityStrength,omitempty"`
}

type titanImageConfig struct {
	NumberOfImages int `json:"numberOfImages"`
	Height         int `json:"height"`
	Width          int `json:"width"`
}

type titanResponse struct {
	Images []string `json:"images"`
	Error  string   `json:"error,omitempty"`
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
