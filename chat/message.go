// Package chat holds the client-side conversation state of the image-ai
// assistant: message history per mode, pending image selection, the loading
// gate around sends and the accept/decline lifecycle of returned images.
package chat

import (
	"fmt"
	"time"
)

// Mode selects the endpoint a send goes to.
type Mode string

const (
	ModeEnhance  Mode = "enhance"
	ModeGenerate Mode = "generate"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeEnhance || m == ModeGenerate
}

// ParseMode converts s to a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
	return m, nil
}

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ImageStatus is the review state of an image returned by the assistant.
// The zero value means the message carries no image.
type ImageStatus string

const (
	ImageStatusNone     ImageStatus = ""
	ImageStatusPending  ImageStatus = "pending"
	ImageStatusAccepted ImageStatus = "accepted"
	ImageStatusDeclined ImageStatus = "declined"
)

// Terminal reports whether no further transition is allowed.
func (s ImageStatus) Terminal() bool {
	return s == ImageStatusAccepted || s == ImageStatusDeclined
}

// Message is one entry of a conversation.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	// Images holds the preview handles of the images attached by the user.
	Images []string `json:"images,omitempty"`
	// EnhancedImageURL is a data URL of the returned image.
	EnhancedImageURL  string      `json:"enhancedImageUrl,omitempty"`
	EnhancedImageData string      `json:"enhancedImageData,omitempty"`
	ImageStatus       ImageStatus `json:"imageStatus,omitempty"`
}

// HasImage reports whether the message carries a returned image.
func (m *Message) HasImage() bool {
	return m.EnhancedImageURL != "" || m.EnhancedImageData != ""
}

// ImageRef returns the reference handed to the acceptance flow.
func (m *Message) ImageRef() string {
	if m.EnhancedImageURL != "" {
		return m.EnhancedImageURL
	}
	return m.EnhancedImageData
}

func (m *Message) clone() Message {
	c := *m
	c.Images = append([]string(nil), m.Images...)
	return c
}
