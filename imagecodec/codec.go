// Package imagecodec detects image MIME types, validates supported formats and
// moves image bytes in and out of the base64 text form used on the wire.
package imagecodec

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"
)

// MIME types accepted by the image endpoints.
const (
	MimeTypePNG  = "image/png"
	MimeTypeJPEG = "image/jpeg"
	MimeTypeWebP = "image/webp"
	MimeTypeHEIC = "image/heic"
	MimeTypeHEIF = "image/heif"
)

// DefaultMaxDownloadBytes caps a single image download.
const DefaultMaxDownloadBytes int64 = 50 << 20

// ErrTooLarge is returned when a download exceeds the fetcher's limit.
var ErrTooLarge = errors.New("image exceeds download size limit")

// DefaultMimeType is returned for paths whose extension is not recognized.
const DefaultMimeType = MimeTypeJPEG

var extensionMimeTypes = map[string]string{
	".png":  MimeTypePNG,
	".jpg":  MimeTypeJPEG,
	".jpeg": MimeTypeJPEG,
	".webp": MimeTypeWebP,
	".heic": MimeTypeHEIC,
	".heif": MimeTypeHEIF,
}

// SupportedMimeTypes lists the image formats that can be sent to a model.
var SupportedMimeTypes = []string{MimeTypePNG, MimeTypeJPEG, MimeTypeWebP, MimeTypeHEIC, MimeTypeHEIF}

// SupportedExtensions lists the file extensions matching SupportedMimeTypes.
var SupportedExtensions = []string{".png", ".jpg", ".jpeg", ".webp", ".heic", ".heif"}

// Extension returns the lower-cased extension of a path or URL, ignoring any
// query string or fragment.
func Extension(p string) string {
	if u, err := url.Parse(p); err == nil && u.Path != "" {
		p = u.Path
	}
	return strings.ToLower(path.Ext(p))
}

// MimeTypeFromPath maps the extension of p to a MIME type. Unknown extensions
// map to DefaultMimeType.
func MimeTypeFromPath(p string) string {
	if mimeType, ok := extensionMimeTypes[Extension(p)]; ok {
		return mimeType
	}
	return DefaultMimeType
}

// IsSupported reports whether mimeType is one of SupportedMimeTypes.
func IsSupported(mimeType string) bool {
	return slices.Contains(SupportedMimeTypes, mimeType)
}

// IsSupportedExtension reports whether the extension of p is one of SupportedExtensions.
func IsSupportedExtension(p string) bool {
	return slices.Contains(SupportedExtensions, Extension(p))
}

// DataURL builds a data URL from a MIME type and base64 payload.
func DataURL(mimeType, b64 string) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, b64)
}

// ParseDataURL splits a base64 data URL into its MIME type and payload.
func ParseDataURL(dataURL string) (mimeType string, b64 string, err error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", "", errors.New("not a data URL")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", errors.New("malformed data URL")
	}
	mimeType, ok = strings.CutSuffix(header, ";base64")
	if !ok {
		return "", "", errors.New("data URL is not base64 encoded")
	}
	return mimeType, payload, nil
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets the HTTP client used for downloads.
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithLogger sets the logger used to report soft failures.
func WithLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithMaxBytes sets the largest body Download accepts.
func WithMaxBytes(n int64) FetcherOption {
	return func(f *Fetcher) {
		f.maxBytes = n
	}
}

// Fetcher downloads remote images.
type Fetcher struct {
	client   *http.Client
	logger   *slog.Logger
	maxBytes int64
}

// NewFetcher creates a Fetcher. The default HTTP client has a 60 second timeout.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:   &http.Client{Timeout: 60 * time.Second},
		logger:   slog.Default(),
		maxBytes: DefaultMaxDownloadBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Download fetches rawURL and returns its body. Bodies larger than the
// fetcher's limit fail with ErrTooLarge.
func (f *Fetcher) Download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	if resp.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}
	imageBytes, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(imageBytes)) > f.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxBytes)
	}
	return imageBytes, nil
}

// DownloadBase64 fetches rawURL and returns its body base64 encoded.
func (f *Fetcher) DownloadBase64(ctx context.Context, rawURL string) (string, error) {
	imageBytes, err := f.Download(ctx, rawURL)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(imageBytes), nil
}

// FetchAsBase64 downloads an image in a supported format and returns it base64
// encoded. It fails soft: an unsupported format or any network failure yields
// ok == false.
func (f *Fetcher) FetchAsBase64(ctx context.Context, rawURL string) (string, bool) {
	if !IsSupported(MimeTypeFromPath(rawURL)) {
		return "", false
	}
	b64, err := f.DownloadBase64(ctx, rawURL)
	if err != nil {
		f.logger.WarnContext(ctx, "could not fetch image", "url", rawURL, "error", err)
		return "", false
	}
	return b64, true
}
