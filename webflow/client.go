// Package webflow resolves Webflow asset IDs to hosted URLs through the
// Webflow Data API, authenticating with the caller's access token.
package webflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mashiike/imageai"
	"github.com/mashiike/imageai/transport"
)

// DefaultBaseURL is the Webflow Data API v2 endpoint.
const DefaultBaseURL = "https://api.webflow.com/v2"

// ErrAssetNotFound is returned when Webflow reports an unknown asset.
var ErrAssetNotFound = errors.New("webflow asset not found")

// TokenFunc extracts the Webflow access token from a request context.
type TokenFunc func(ctx context.Context) (string, bool)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTokenFunc changes where the access token is read from.
// The default reads it from the verified JWT of the request.
func WithTokenFunc(fn TokenFunc) Option {
	return func(c *Client) {
		c.token = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// Asset is the subset of the Webflow asset resource used here.
type Asset struct {
	ID               string    `json:"id"`
	ContentType      string    `json:"contentType"`
	Size             int64     `json:"size"`
	SiteID           string    `json:"siteId"`
	HostedURL        string    `json:"hostedUrl"`
	OriginalFileName string    `json:"originalFileName"`
	DisplayName      string    `json:"displayName"`
	LastUpdated      time.Time `json:"lastUpdated"`
	CreatedOn        time.Time `json:"createdOn"`
}

// Client is a minimal Webflow Data API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenFunc
	logger     *slog.Logger
}

var _ imageai.AssetResolver = (*Client)(nil)

// NewClient creates a Client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		token:      imageai.GetAccessToken,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetAsset fetches asset metadata.
func (c *Client) GetAsset(ctx context.Context, assetID string) (*Asset, error) {
	if assetID == "" {
		return nil, errors.New("asset ID is required")
	}
	token, ok := c.token(ctx)
	if !ok || token == "" {
		return nil, transport.NewAuthError(transport.AuthErrorCodeMissingCredentials, "Webflow access token is missing")
	}

	endpoint := c.baseURL + "/assets/" + url.PathEscape(assetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get asset %s: %w", assetID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, transport.NewAuthError(transport.AuthErrorCodeInvalidCredentials, "Webflow rejected the access token")
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, assetID)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("webflow API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var asset Asset
	if err := json.NewDecoder(resp.Body).Decode(&asset); err != nil {
		return nil, fmt.Errorf("failed to decode asset: %w", err)
	}
	c.logger.DebugContext(ctx, "webflow asset resolved", "asset_id", assetID, "hosted_url", asset.HostedURL)
	return &asset, nil
}

// ResolveAssetURL implements imageai.AssetResolver.
func (c *Client) ResolveAssetURL(ctx context.Context, assetID string) (string, error) {
	asset, err := c.GetAsset(ctx, assetID)
	if err != nil {
		return "", err
	}
	if asset.HostedURL == "" {
		return "", fmt.Errorf("webflow asset %s has no hosted URL", assetID)
	}
	return asset.HostedURL, nil
}
