// Package host describes the design document the chat session edits: its
// current selection, its asset library and its notification surface.
package host

import (
	"context"
	"errors"
)

//go:generate go tool mockgen -source=document.go -destination=mock_document_test.go -package=host

// ElementTypeImage is the element type that can carry an image asset.
const ElementTypeImage = "Image"

// ErrNoSelection is returned when no image element is selected.
var ErrNoSelection = errors.New("image is not selected")

// NotificationType is the severity of a user-visible notification.
type NotificationType string

const (
	NotificationSuccess NotificationType = "Success"
	NotificationError   NotificationType = "Error"
	NotificationInfo    NotificationType = "Info"
)

// Notification is a message shown to the user by the host.
type Notification struct {
	Type    NotificationType `json:"type"`
	Message string           `json:"message"`
}

// Asset is an entry in the host asset library.
type Asset struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
}

// File is a named binary payload to upload as an asset.
type File struct {
	Name     string
	MimeType string
	Data     []byte
}

// Notifier posts user-visible notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// AssetCreator uploads files into an asset library.
type AssetCreator interface {
	// CreateAsset uploads file and returns the new asset.
	CreateAsset(ctx context.Context, file File) (*Asset, error)
}

// Element is a node of the host document.
type Element interface {
	// Type returns the element type, ElementTypeImage for images.
	Type() string

	// Asset returns the asset bound to the element, nil when none is bound.
	Asset(ctx context.Context) (*Asset, error)

	// SetAsset binds asset to the element.
	SetAsset(ctx context.Context, asset *Asset) error
}

// Document is the host capability surface consumed by the chat session.
type Document interface {
	Notifier
	AssetCreator

	// SelectedElement returns the currently selected element, nil when
	// nothing is selected.
	SelectedElement(ctx context.Context) (Element, error)
}

// SelectedImageAsset returns the asset of the selected image element.
// It fails with ErrNoSelection when the selection is empty, is not an image
// or carries no asset.
func SelectedImageAsset(ctx context.Context, doc Document) (Element, *Asset, error) {
	el, err := doc.SelectedElement(ctx)
	if err != nil {
		return nil, nil, err
	}
	if el == nil || el.Type() != ElementTypeImage {
		return nil, nil, ErrNoSelection
	}
	asset, err := el.Asset(ctx)
	if err != nil {
		return el, nil, err
	}
	if asset == nil {
		return el, nil, ErrNoSelection
	}
	return el, asset, nil
}
