package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/mashiike/imageai/model"
)

// ClientOption defines configuration option for Client
type ClientOption func(*clientConfig)

// clientConfig holds internal configuration for Client
type clientConfig struct {
	httpClient   *http.Client
	enhancePath  string
	generatePath string
	logger       *slog.Logger
	userAgent    string
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithClientEnhancePath sets the enhance endpoint path (default: "/image-ai/enhance")
func WithClientEnhancePath(path string) ClientOption {
	return func(c *clientConfig) {
		c.enhancePath = path
	}
}

// WithClientGeneratePath sets the generate endpoint path (default: "/image-ai/generate")
func WithClientGeneratePath(path string) ClientOption {
	return func(c *clientConfig) {
		c.generatePath = path
	}
}

// WithClientLogger sets an optional logger for debug output
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(userAgent string) ClientOption {
	return func(c *clientConfig) {
		c.userAgent = userAgent
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("image-ai request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("image-ai request failed with status %d: %s", e.StatusCode, e.Message)
}

// Client calls the image-ai endpoints.
type Client struct {
	baseURL string
	config  clientConfig
}

// NewClient creates a new image-ai client. No timeout is set by default;
// image generation routinely takes tens of seconds.
func NewClient(baseURL string, options ...ClientOption) *Client {
	config := clientConfig{
		httpClient:   &http.Client{},
		enhancePath:  "/image-ai/enhance",
		generatePath: "/image-ai/generate",
		logger:       slog.Default(),
		userAgent:    "imageai-client/1.0",
	}

	for _, option := range options {
		option(&config)
	}

	return &Client{
		baseURL: baseURL,
		config:  config,
	}
}

// Enhance asks the server to enhance the host asset assetID.
func (c *Client) Enhance(ctx context.Context, token, message, assetID string) (*Response, error) {
	return c.post(ctx, c.config.enhancePath, token, &EnhanceRequest{Message: message, SelectedImage: assetID})
}

// Generate asks the server for a new image, optionally guided by images.
func (c *Client) Generate(ctx context.Context, token, message string, images []model.Image) (*Response, error) {
	return c.post(ctx, c.config.generatePath, token, &GenerateRequest{Message: message, Images: images})
}

// buildURL constructs URL for specific endpoint
func (c *Client) buildURL(endpoint string) (string, error) {
	baseURL, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}

	baseURL.Path = path.Join(baseURL.Path, endpoint)
	return baseURL.String(), nil
}

func (c *Client) post(ctx context.Context, endpoint, token string, body any) (*Response, error) {
	reqURL, err := c.buildURL(endpoint)
	if err != nil {
		return nil, err
	}
	reqBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if c.config.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.config.userAgent)
	}

	start := time.Now()
	c.config.logger.DebugContext(ctx, "sending image-ai request", "url", reqURL)
	httpResp, err := c.config.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	c.config.logger.DebugContext(ctx, "received image-ai response",
		"status", httpResp.StatusCode,
		"bodySize", len(respBody),
		"elapsed", time.Since(start))

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		var errResp ErrorResponse
		_ = json.Unmarshal(respBody, &errResp)
		return nil, &StatusError{StatusCode: httpResp.StatusCode, Message: errResp.Error}
	}

	var resp Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &resp, nil
}

// WithToken returns an ImageService that calls the endpoints with token.
func (c *Client) WithToken(token string) ImageService {
	return &tokenService{client: c, token: token}
}

type tokenService struct {
	client *Client
	token  string
}

func (s *tokenService) Enhance(ctx context.Context, req *EnhanceRequest) (*Response, error) {
	return s.client.Enhance(ctx, s.token, req.Message, req.SelectedImage)
}

func (s *tokenService) Generate(ctx context.Context, req *GenerateRequest) (*Response, error) {
	return s.client.Generate(ctx, s.token, req.Message, req.Images)
}
