package openai

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/mashiike/imageai/imagecodec"
)

// imageReader wraps bytes.Reader with ContentType method for OpenAI SDK
type imageReader struct {
	*bytes.Reader
	contentType string
	filename    string
}

// ContentType returns the MIME type for multipart uploads
func (r *imageReader) ContentType() string {
	return r.contentType
}

// Filename returns the filename for multipart uploads
func (r *imageReader) Filename() string {
	return r.filename
}

var mimeExtensions = map[string]string{
	imagecodec.MimeTypePNG:  "png",
	imagecodec.MimeTypeJPEG: "jpg",
	imagecodec.MimeTypeWebP: "webp",
}

// base64ToReader converts base64 image data to a named multipart reader.
// Formats the edit endpoint does not accept are rejected.
func base64ToReader(base64Data, mimeType string) (io.Reader, error) {
	ext, ok := mimeExtensions[mimeType]
	if !ok {
		return nil, fmt.Errorf("unsupported image type for edit: %q", mimeType)
	}
	imageBytes, err := base64.StdEncoding.DecodeString(base64Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 image data: %w", err)
	}

	return &imageReader{
		Reader:      bytes.NewReader(imageBytes),
		contentType: mimeType,
		filename:    "input." + ext,
	}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
