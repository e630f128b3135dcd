package chat

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/mashiike/imageai/imagecodec"
)

// Attachment is an image picked by the user for a send.
type Attachment struct {
	Name     string
	MimeType string
	Data     []byte
}

// mimeType returns the declared MIME type or one derived from the name.
func (a Attachment) mimeType() string {
	if a.MimeType != "" {
		return a.MimeType
	}
	return imagecodec.MimeTypeFromPath(a.Name)
}

// Previewer creates displayable handles for attachments. Every handle
// returned by Create is passed to Revoke exactly once by the session.
type Previewer interface {
	Create(ctx context.Context, a Attachment) (string, error)
	Revoke(handle string)
}

// DataURLPreviewer renders attachments as data URLs. Revoke is a no-op.
type DataURLPreviewer struct{}

// Create implements Previewer.
func (DataURLPreviewer) Create(_ context.Context, a Attachment) (string, error) {
	if len(a.Data) == 0 {
		return "", errors.New("attachment is empty")
	}
	return imagecodec.DataURL(a.mimeType(), base64.StdEncoding.EncodeToString(a.Data)), nil
}

// Revoke implements Previewer.
func (DataURLPreviewer) Revoke(string) {}
