package awsadp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/mashiike/imageai/host"
)

//go:generate go tool mockgen -source=s3_asset_store.go -destination=mock_s3_test.go -package=awsadp

// DefaultPresignExpires is the lifetime of resolved asset URLs.
const DefaultPresignExpires = 15 * time.Minute

// ErrAssetNotFound is returned when the asset object does not exist.
var ErrAssetNotFound = errors.New("asset not found")

// S3API is the subset of *s3.Client used by S3AssetStore.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// S3Presigner is the subset of *s3.PresignClient used by S3AssetStore.
type S3Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3AssetStoreConfig provides configuration for S3AssetStore
type S3AssetStoreConfig struct {
	Client    S3API
	Presigner S3Presigner // Optional, derived from Client when it is an *s3.Client
	Bucket    string
	Prefix    string        // Optional prefix for all object keys (useful for testing isolation)
	Expires   time.Duration // Presigned URL lifetime, defaults to DefaultPresignExpires
	// PublicBaseURL serves assets from a public endpoint (e.g. a CDN) instead
	// of presigned URLs when set.
	PublicBaseURL string
	Logger        *slog.Logger
}

// S3AssetStore keeps image assets in an S3 bucket. Asset IDs are object keys
// relative to the configured prefix.
type S3AssetStore struct {
	client        S3API
	presigner     S3Presigner
	bucket        string
	prefix        string
	expires       time.Duration
	publicBaseURL string
	logger        *slog.Logger
}

var _ host.AssetCreator = (*S3AssetStore)(nil)

// NewS3AssetStore creates a new S3AssetStore instance
func NewS3AssetStore(config S3AssetStoreConfig) (*S3AssetStore, error) {
	if config.Client == nil {
		return nil, errors.New("S3 Client is required")
	}
	if config.Bucket == "" {
		return nil, errors.New("bucket is required")
	}

	presigner := config.Presigner
	if presigner == nil && config.PublicBaseURL == "" {
		client, ok := config.Client.(*s3.Client)
		if !ok {
			return nil, errors.New("Presigner is required when Client is not an *s3.Client")
		}
		presigner = s3.NewPresignClient(client)
	}

	expires := config.Expires
	if expires <= 0 {
		expires = DefaultPresignExpires
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &S3AssetStore{
		client:        config.Client,
		presigner:     presigner,
		bucket:        config.Bucket,
		prefix:        strings.Trim(config.Prefix, "/"),
		expires:       expires,
		publicBaseURL: strings.TrimSuffix(config.PublicBaseURL, "/"),
		logger:        logger,
	}, nil
}

// ResolveAssetURL returns a URL the asset can be downloaded from.
func (s *S3AssetStore) ResolveAssetURL(ctx context.Context, assetID string) (string, error) {
	key, err := s.getAssetKey(assetID)
	if err != nil {
		return "", err
	}

	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("%w: %s", ErrAssetNotFound, assetID)
		}
		return "", fmt.Errorf("failed to head asset object: %w", err)
	}

	return s.objectURL(ctx, key)
}

// CreateAsset uploads file under a new asset ID.
func (s *S3AssetStore) CreateAsset(ctx context.Context, file host.File) (*host.Asset, error) {
	if len(file.Data) == 0 {
		return nil, fmt.Errorf("asset %q is empty", file.Name)
	}
	name := path.Base(strings.ReplaceAll(file.Name, "\\", "/"))
	if name == "." || name == "/" {
		name = "asset"
	}
	assetID := uuid.Must(uuid.NewV7()).String() + "/" + name
	key, err := s.getAssetKey(assetID)
	if err != nil {
		return nil, err
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(file.Data),
	}
	if file.MimeType != "" {
		input.ContentType = aws.String(file.MimeType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return nil, fmt.Errorf("failed to put asset object: %w", err)
	}
	s.logger.InfoContext(ctx, "asset created", "bucket", s.bucket, "key", key, "size", len(file.Data))

	u, err := s.objectURL(ctx, key)
	if err != nil {
		return nil, err
	}
	return &host.Asset{
		ID:       assetID,
		URL:      u,
		Name:     name,
		MimeType: file.MimeType,
	}, nil
}

func (s *S3AssetStore) objectURL(ctx context.Context, key string) (string, error) {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + (&url.URL{Path: key}).EscapedPath(), nil
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expires))
	if err != nil {
		return "", fmt.Errorf("failed to presign asset URL: %w", err)
	}
	return req.URL, nil
}

// Helper methods for S3 key generation

func (s *S3AssetStore) getAssetKey(assetID string) (string, error) {
	if assetID == "" {
		return "", errors.New("asset ID is required")
	}
	for _, part := range strings.Split(assetID, "/") {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("invalid asset ID: %s", assetID)
		}
	}
	if s.prefix != "" {
		return fmt.Sprintf("%s/assets/%s", s.prefix, assetID), nil
	}
	return fmt.Sprintf("assets/%s", assetID), nil
}
