package host

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// MemoryOption configures a MemoryDocument.
type MemoryOption func(*MemoryDocument)

// WithAssetDir makes CreateAsset write asset files under dir and address them
// with file:// URLs.
func WithAssetDir(dir string) MemoryOption {
	return func(d *MemoryDocument) {
		d.assetDir = dir
	}
}

// WithMemoryLogger sets the logger notifications are echoed to.
func WithMemoryLogger(logger *slog.Logger) MemoryOption {
	return func(d *MemoryDocument) {
		d.logger = logger
	}
}

// WithAssetCreator delegates CreateAsset uploads to creator, for example an
// object store. The created asset is still registered in the document.
func WithAssetCreator(creator AssetCreator) MemoryOption {
	return func(d *MemoryDocument) {
		d.creator = creator
	}
}

// WithNotifier forwards every notification to n after recording it.
func WithNotifier(n Notifier) MemoryOption {
	return func(d *MemoryDocument) {
		d.forward = n
	}
}

// MemoryDocument is an in-process Document used by the CLI and by tests.
type MemoryDocument struct {
	mu            sync.Mutex
	assets        map[string]*Asset
	data          map[string][]byte
	elements      map[string]*MemoryElement
	selected      Element
	notifications []Notification
	assetDir      string
	creator       AssetCreator
	forward       Notifier
	logger        *slog.Logger
}

var _ Document = (*MemoryDocument)(nil)

// NewMemoryDocument creates an empty document.
func NewMemoryDocument(opts ...MemoryOption) *MemoryDocument {
	d := &MemoryDocument{
		assets:   make(map[string]*Asset),
		data:     make(map[string][]byte),
		elements: make(map[string]*MemoryElement),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AddAsset registers an existing asset, for example a local file.
func (d *MemoryDocument) AddAsset(asset *Asset) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.assets[asset.ID] = asset
}

// AddElement adds an element of elementType bound to asset.
func (d *MemoryDocument) AddElement(id, elementType string, asset *Asset) *MemoryElement {
	d.mu.Lock()
	defer d.mu.Unlock()
	el := &MemoryElement{id: id, elementType: elementType, asset: asset}
	d.elements[id] = el
	if asset != nil {
		d.assets[asset.ID] = asset
	}
	return el
}

// Select changes the current selection. A nil element clears it.
func (d *MemoryDocument) Select(el Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selected = el
}

// SelectedElement implements Document.
func (d *MemoryDocument) SelectedElement(_ context.Context) (Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selected, nil
}

// CreateAsset implements Document.
func (d *MemoryDocument) CreateAsset(ctx context.Context, file File) (*Asset, error) {
	if len(file.Data) == 0 {
		return nil, fmt.Errorf("asset %q is empty", file.Name)
	}
	if d.creator != nil {
		asset, err := d.creator.CreateAsset(ctx, file)
		if err != nil {
			return nil, err
		}
		d.AddAsset(asset)
		return asset, nil
	}
	id := uuid.Must(uuid.NewV7()).String()
	asset := &Asset{
		ID:       id,
		Name:     file.Name,
		MimeType: file.MimeType,
		URL:      "memory://assets/" + id + "/" + url.PathEscape(file.Name),
	}
	if d.assetDir != "" {
		p, err := filepath.Abs(filepath.Join(d.assetDir, file.Name))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve asset path: %w", err)
		}
		if err := os.WriteFile(p, file.Data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write asset: %w", err)
		}
		asset.URL = (&url.URL{Scheme: "file", Path: filepath.ToSlash(p)}).String()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.assets[id] = asset
	d.data[id] = append([]byte(nil), file.Data...)
	return asset, nil
}

// Notify implements Notifier.
func (d *MemoryDocument) Notify(ctx context.Context, n Notification) error {
	d.mu.Lock()
	d.notifications = append(d.notifications, n)
	d.mu.Unlock()
	d.logger.InfoContext(ctx, "notification", "type", n.Type, "message", n.Message)
	if d.forward != nil {
		return d.forward.Notify(ctx, n)
	}
	return nil
}

// Notifications returns every notification posted so far.
func (d *MemoryDocument) Notifications() []Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Notification(nil), d.notifications...)
}

// Asset looks up an asset by ID.
func (d *MemoryDocument) Asset(id string) (*Asset, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	asset, ok := d.assets[id]
	return asset, ok
}

// AssetData returns the bytes uploaded with CreateAsset.
func (d *MemoryDocument) AssetData(id string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.data[id]
	return data, ok
}

// ResolveAssetURL returns the URL of asset id.
func (d *MemoryDocument) ResolveAssetURL(_ context.Context, id string) (string, error) {
	asset, ok := d.Asset(id)
	if !ok {
		return "", fmt.Errorf("asset %s not found", id)
	}
	return asset.URL, nil
}

// MemoryElement is an Element of a MemoryDocument.
type MemoryElement struct {
	mu          sync.Mutex
	id          string
	elementType string
	asset       *Asset
}

var _ Element = (*MemoryElement)(nil)

// ID returns the element ID.
func (e *MemoryElement) ID() string { return e.id }

// Type implements Element.
func (e *MemoryElement) Type() string { return e.elementType }

// Asset implements Element.
func (e *MemoryElement) Asset(_ context.Context) (*Asset, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.asset, nil
}

// SetAsset implements Element.
func (e *MemoryElement) SetAsset(_ context.Context, asset *Asset) error {
	if e.elementType != ElementTypeImage {
		return fmt.Errorf("element %s of type %s cannot hold an image asset", e.id, e.elementType)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.asset = asset
	return nil
}
