package transport

import (
	"context"

	"github.com/mashiike/imageai/model"
)

//go:generate go tool mockgen -source=service.go -destination=./mock_service_test.go -package transport

// EnhanceRequest is the body of POST /image-ai/enhance.
type EnhanceRequest struct {
	Message string `json:"message"`
	// SelectedImage is the host asset ID of the image to enhance.
	SelectedImage string `json:"selectedImage"`
}

// GenerateRequest is the body of POST /image-ai/generate.
type GenerateRequest struct {
	Message string        `json:"message"`
	Images  []model.Image `json:"images,omitempty"`
}

// Response is the success body of both endpoints.
type Response struct {
	Response  string `json:"response"`
	ImageData string `json:"imageData,omitempty"`
}

// ErrorResponse is the failure body of both endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ImageService defines the interface behind the image-ai endpoints.
type ImageService interface {
	// Enhance resolves the selected asset and transforms it following the message.
	Enhance(ctx context.Context, req *EnhanceRequest) (*Response, error)

	// Generate creates an image from the message, optionally guided by reference images.
	Generate(ctx context.Context, req *GenerateRequest) (*Response, error)
}
