// Package imageai bridges a design tool and generative-AI image providers:
// agents that enhance or generate images, the factory selecting the provider,
// the service behind the HTTP endpoints and the server hosting them.
package imageai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mashiike/imageai/model"
)

//go:generate go tool mockgen -source=agent.go -destination=mock_agent_test.go -package=imageai

// Texts returned by agents.
const (
	NoReferenceImageText = "No reference images provided."
	DefaultImageText     = "Here's your generated image."
	errorTextPrefix      = "There was an error generating your image. "
)

// AgentKind selects an agent built by the Factory.
type AgentKind string

const (
	AgentKindEnhancer  AgentKind = "imageEnhancer"
	AgentKindGenerator AgentKind = "imageGenerator"
)

// Agent answers a request with text and an optional image. Provider errors
// never leave an agent; they become a text-only response.
type Agent interface {
	Respond(ctx context.Context, query string, images []model.Image) (*model.Response, error)
}

// Enhancer transforms the first reference image while keeping it as close to
// the original as possible.
type Enhancer struct {
	model  model.Model
	logger *slog.Logger
}

// NewEnhancer creates an Enhancer backed by m.
func NewEnhancer(m model.Model, logger *slog.Logger) *Enhancer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Enhancer{model: m, logger: logger}
}

// EnhancePrompt wraps query in the preserve-the-original template.
func EnhancePrompt(query string) string {
	return "Keep the image as close to the original as possible and enhance with the following prompt: " + strings.TrimSpace(query)
}

// Respond implements Agent. Without images it returns NoReferenceImageText
// and makes no provider call.
func (a *Enhancer) Respond(ctx context.Context, query string, images []model.Image) (*model.Response, error) {
	if len(images) == 0 {
		return &model.Response{Text: NoReferenceImageText}, nil
	}
	image := images[0]
	return respond(ctx, a.logger, "enhancer", func() (*model.Response, error) {
		return a.model.GenerateWithImage(ctx, EnhancePrompt(query), &image)
	})
}

// Generator creates a new image from query, guided by the first reference
// image when one is given.
type Generator struct {
	model  model.Model
	logger *slog.Logger
}

// NewGenerator creates a Generator backed by m.
func NewGenerator(m model.Model, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{model: m, logger: logger}
}

// Respond implements Agent.
func (a *Generator) Respond(ctx context.Context, query string, images []model.Image) (*model.Response, error) {
	var image *model.Image
	if len(images) > 0 {
		image = &images[0]
	}
	return respond(ctx, a.logger, "generator", func() (*model.Response, error) {
		return a.model.GenerateWithImage(ctx, query, image)
	})
}

func respond(ctx context.Context, logger *slog.Logger, agent string, call func() (*model.Response, error)) (*model.Response, error) {
	resp, err := call()
	if err != nil {
		logger.ErrorContext(ctx, "image generation failed", "agent", agent, "error", err)
		return &model.Response{Text: errorTextPrefix + err.Error()}, nil
	}
	if resp == nil {
		resp = &model.Response{}
	}
	out := &model.Response{Text: resp.Text, ImageData: resp.ImageData}
	if out.Text == "" {
		out.Text = DefaultImageText
	}
	logger.DebugContext(ctx, "agent responded", "agent", agent, "has_image", out.HasImage())
	return out, nil
}

// AgentFunc adapts a function to Agent.
type AgentFunc func(ctx context.Context, query string, images []model.Image) (*model.Response, error)

// Respond implements Agent.
func (f AgentFunc) Respond(ctx context.Context, query string, images []model.Image) (*model.Response, error) {
	return f(ctx, query, images)
}

// String implements fmt.Stringer.
func (k AgentKind) String() string {
	return string(k)
}

// ParseAgentKind accepts the canonical kinds and the endpoint names
// "enhance" and "generate".
func ParseAgentKind(s string) (AgentKind, error) {
	switch s {
	case string(AgentKindEnhancer), "enhance", "enhancer":
		return AgentKindEnhancer, nil
	case string(AgentKindGenerator), "generate", "generator":
		return AgentKindGenerator, nil
	}
	return "", fmt.Errorf("unknown agent kind %q", s)
}
