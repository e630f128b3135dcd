package chat

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Songmu/flextime"
	"github.com/mashiike/imageai/host"
	"github.com/mashiike/imageai/imagecodec"
)

// Notification texts of the acceptance flow.
const (
	MessageAssetCreated  = "Asset created successfully!"
	MessageNoSelection   = "Image is not selected."
	MessageAssetCreation = "Error creating asset"
)

// ImageAcceptor commits a returned image into the host document.
type ImageAcceptor interface {
	Accept(ctx context.Context, imageRef string) error
}

// AcceptorOption configures an Acceptor.
type AcceptorOption func(*Acceptor)

// WithFetcher sets the fetcher used for URL image references.
func WithFetcher(fetcher *imagecodec.Fetcher) AcceptorOption {
	return func(a *Acceptor) {
		a.fetcher = fetcher
	}
}

// WithAcceptorLogger sets the logger.
func WithAcceptorLogger(logger *slog.Logger) AcceptorOption {
	return func(a *Acceptor) {
		a.logger = logger
	}
}

// Acceptor uploads an image as a new asset and binds it to the selected
// image element. Each failure posts exactly one error notification.
type Acceptor struct {
	document host.Document
	fetcher  *imagecodec.Fetcher
	logger   *slog.Logger
}

var _ ImageAcceptor = (*Acceptor)(nil)

// NewAcceptor creates an Acceptor for document.
func NewAcceptor(document host.Document, opts ...AcceptorOption) *Acceptor {
	a := &Acceptor{
		document: document,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.fetcher == nil {
		a.fetcher = imagecodec.NewFetcher(imagecodec.WithLogger(a.logger))
	}
	return a
}

// Accept accepts a data URL, a remote URL or raw base64 text.
func (a *Acceptor) Accept(ctx context.Context, imageRef string) error {
	if imageRef == "" {
		return ErrNoImage
	}
	data, err := a.materialize(ctx, imageRef)
	if err != nil {
		return a.fail(ctx, fmt.Errorf("failed to load image: %w", err))
	}

	file := host.File{
		Name:     fmt.Sprintf("enhanced-image-%d.png", flextime.Now().UnixMilli()),
		MimeType: imagecodec.MimeTypePNG,
		Data:     data,
	}
	asset, err := a.document.CreateAsset(ctx, file)
	if err != nil {
		return a.fail(ctx, fmt.Errorf("failed to create asset: %w", err))
	}

	el, err := a.document.SelectedElement(ctx)
	if err != nil {
		return a.fail(ctx, fmt.Errorf("failed to get selected element: %w", err))
	}
	if el == nil || el.Type() != host.ElementTypeImage {
		a.notify(ctx, host.NotificationError, MessageNoSelection)
		return host.ErrNoSelection
	}
	if err := el.SetAsset(ctx, asset); err != nil {
		return a.fail(ctx, fmt.Errorf("failed to set asset: %w", err))
	}

	a.logger.InfoContext(ctx, "asset accepted", "asset_id", asset.ID, "name", asset.Name)
	a.notify(ctx, host.NotificationSuccess, MessageAssetCreated)
	return nil
}

func (a *Acceptor) materialize(ctx context.Context, imageRef string) ([]byte, error) {
	if strings.HasPrefix(imageRef, "data:") {
		_, payload, err := imagecodec.ParseDataURL(imageRef)
		if err != nil {
			return nil, err
		}
		return base64.StdEncoding.DecodeString(payload)
	}
	for _, scheme := range []string{"http://", "https://", "file://"} {
		if strings.HasPrefix(imageRef, scheme) {
			return a.fetcher.Download(ctx, imageRef)
		}
	}
	return base64.StdEncoding.DecodeString(imageRef)
}

func (a *Acceptor) fail(ctx context.Context, err error) error {
	a.logger.ErrorContext(ctx, "error creating asset", "error", err)
	a.notify(ctx, host.NotificationError, MessageAssetCreation)
	return err
}

func (a *Acceptor) notify(ctx context.Context, t host.NotificationType, message string) {
	if err := a.document.Notify(ctx, host.Notification{Type: t, Message: message}); err != nil {
		a.logger.WarnContext(ctx, "failed to post notification", "message", message, "error", err)
	}
}
