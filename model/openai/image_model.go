package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/mashiike/imageai/model"
	"github.com/openai/openai-go"
)

// maxImagePromptLength is the DALL-E 3 prompt limit.
const maxImagePromptLength = 4000

// GenerateWithImage generates an image from prompt, or derives a new image
// from image guided by prompt. When image generation fails with a reference
// image present, one describe-only call is made and its text returned; if that
// fails too the original error is returned.
func (m *Model) GenerateWithImage(ctx context.Context, prompt string, image *model.Image) (*model.Response, error) {
	if image == nil {
		resp, err := m.generateFromText(ctx, prompt)
		if err != nil {
			return nil, model.NewProviderError(ProviderName, model.OpGenerateWithImage, err)
		}
		return resp, nil
	}

	var (
		resp *model.Response
		err  error
	)
	if m.editModelID != "" {
		resp, err = m.editImage(ctx, prompt, image)
	} else {
		resp, err = m.analyzeAndGenerate(ctx, prompt, image)
	}
	if err == nil {
		return resp, nil
	}

	m.logger.WarnContext(ctx, "image generation failed, falling back to description", "error", err)
	text, fallbackErr := m.describe(ctx, "I couldn't generate a new image, but here's my analysis: "+prompt, image)
	if fallbackErr != nil {
		m.logger.ErrorContext(ctx, "fallback description failed", "error", fallbackErr)
		return nil, model.NewProviderError(ProviderName, model.OpGenerateWithImage, err)
	}
	return &model.Response{Text: text}, nil
}

// analyzeAndGenerate describes image and generates a new one using the description as context.
func (m *Model) analyzeAndGenerate(ctx context.Context, prompt string, image *model.Image) (*model.Response, error) {
	analysis, err := m.describe(ctx, "Analyze this image: "+prompt, image)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze image: %w", err)
	}

	generated, err := m.generateFromText(ctx, prompt+"\n\nContext from original image: "+analysis)
	if err != nil {
		return nil, err
	}
	return &model.Response{Text: analysis, ImageData: generated.ImageData}, nil
}

// generateFromText generates an image from prompt alone.
func (m *Model) generateFromText(ctx context.Context, prompt string) (*model.Response, error) {
	if prompt == "" {
		return nil, errors.New("text prompt is required for image generation")
	}
	params := openai.ImageGenerateParams{
		Prompt:         truncate(prompt, maxImagePromptLength),
		Model:          openai.ImageModel(m.imageModelID),
		N:              openai.Int(1),
		Size:           openai.ImageGenerateParamsSize1024x1024,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	}

	response, err := m.client.GenerateImage(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to generate image: %w", err)
	}
	return m.convertImagesResponse(ctx, response)
}

// editImage uses the native edit endpoint.
func (m *Model) editImage(ctx context.Context, prompt string, image *model.Image) (*model.Response, error) {
	reader, err := base64ToReader(image.Data, image.MimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image data: %w", err)
	}

	params := openai.ImageEditParams{
		Image: openai.ImageEditParamsImageUnion{
			OfFile: reader,
		},
		Prompt: prompt,
		Model:  openai.ImageModel(m.editModelID),
		N:      openai.Int(1),
	}

	response, err := m.client.EditImage(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to edit image: %w", err)
	}
	return m.convertImagesResponse(ctx, response)
}

// convertImagesResponse prefers inline base64 data and downloads URL-only results.
func (m *Model) convertImagesResponse(ctx context.Context, response *openai.ImagesResponse) (*model.Response, error) {
	if response == nil || len(response.Data) == 0 {
		return nil, errors.New("no images returned from OpenAI API")
	}

	img := response.Data[0]
	switch {
	case img.B64JSON != "":
		return &model.Response{Text: img.RevisedPrompt, ImageData: img.B64JSON}, nil
	case img.URL != "":
		data, err := m.fetcher.DownloadBase64(ctx, img.URL)
		if err != nil {
			return nil, err
		}
		return &model.Response{Text: img.RevisedPrompt, ImageData: data}, nil
	default:
		return nil, errors.New("no image data in response")
	}
}
