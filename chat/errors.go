package chat

import "errors"

var (
	// ErrBusy is returned when a send is attempted while another is in flight.
	ErrBusy = errors.New("a message is already being processed")
	// ErrEmptyMessage is returned when there is neither text nor an image to send.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("chat session is closed")
	// ErrInvalidMode is returned for an unknown mode.
	ErrInvalidMode = errors.New("invalid chat mode")
	// ErrIndexOutOfRange is returned by RemoveImage for a bad index.
	ErrIndexOutOfRange = errors.New("image index out of range")
	// ErrMessageNotFound is returned when no message has the given ID.
	ErrMessageNotFound = errors.New("message not found")
	// ErrNoImage is returned when a message has no image to accept or decline.
	ErrNoImage = errors.New("message has no image")
	// ErrInvalidTransition is returned when the image status cannot change as requested.
	ErrInvalidTransition = errors.New("invalid image status transition")
	// ErrAcceptInProgress is returned while the image of a message is being accepted.
	ErrAcceptInProgress = errors.New("image acceptance is in progress")
)
