package chat

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Songmu/flextime"
	"github.com/mashiike/imageai/host"
	"github.com/mashiike/imageai/imagecodec"
	"github.com/mashiike/imageai/model"
	"github.com/mashiike/imageai/transport"
)

//go:generate go tool mockgen -destination=mock_service_test.go -package=chat github.com/mashiike/imageai/transport ImageService

// User-facing texts of a send.
const (
	MessageSelectImage      = "Please select an image first."
	MessageResponseReceived = "AI response with enhanced image received!"
	MessageProcessingFailed = "Failed to process your request. Please try again."
	MessageAssistantError   = "I'm sorry, I encountered an error while processing your message. Please try again."
)

// Option configures a Session.
type Option func(*Session)

// WithPreviewer sets the previewer for attachments. Default is DataURLPreviewer.
func WithPreviewer(p Previewer) Option {
	return func(s *Session) {
		s.previewer = p
	}
}

// WithAcceptor replaces the acceptance flow.
func WithAcceptor(a ImageAcceptor) Option {
	return func(s *Session) {
		s.acceptor = a
	}
}

// WithIDGenerator sets the message ID generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Session) {
		s.ids = g
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithMode sets the initial mode. Default is ModeEnhance.
func WithMode(m Mode) Option {
	return func(s *Session) {
		s.mode = m
	}
}

// Session is the conversation state of one user. It is safe for concurrent
// use; a second Send while one is in flight fails with ErrBusy.
type Session struct {
	service   transport.ImageService
	document  host.Document
	previewer Previewer
	acceptor  ImageAcceptor
	ids       IDGenerator
	logger    *slog.Logger

	mu          sync.Mutex
	mode        Mode
	input       string
	attachments []Attachment
	previews    []string
	retained    []string // previews referenced by sent messages
	messages    map[Mode][]*Message
	loading     bool
	lastImage   string
	accepting   map[string]bool
	closed      bool
}

// NewSession creates a session sending through service and editing document.
func NewSession(service transport.ImageService, document host.Document, opts ...Option) *Session {
	s := &Session{
		service:   service,
		document:  document,
		previewer: DataURLPreviewer{},
		ids:       &DefaultIDGenerator{},
		logger:    slog.Default(),
		mode:      ModeEnhance,
		messages: map[Mode][]*Message{
			ModeEnhance:  nil,
			ModeGenerate: nil,
		},
		accepting: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	if !s.mode.Valid() {
		s.mode = ModeEnhance
	}
	if s.acceptor == nil {
		s.acceptor = NewAcceptor(document, WithAcceptorLogger(s.logger))
	}
	return s
}

// SetInput replaces the pending text.
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = text
}

// Input returns the pending text.
func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// Mode returns the current mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches the active conversation. Each mode keeps its own history.
func (s *Session) SetMode(m Mode) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, m)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
	return nil
}

// SelectImages appends attachments to the pending selection. Either all of
// them are added together with their previews or none is.
func (s *Session) SelectImages(ctx context.Context, attachments ...Attachment) error {
	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	previews := make([]string, 0, len(attachments))
	for _, a := range attachments {
		handle, err := s.previewer.Create(ctx, a)
		if err != nil {
			for _, h := range previews {
				s.previewer.Revoke(h)
			}
			return fmt.Errorf("failed to preview %s: %w", a.Name, err)
		}
		previews = append(previews, handle)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		for _, h := range previews {
			s.previewer.Revoke(h)
		}
		return err
	}
	s.attachments = append(s.attachments, attachments...)
	s.previews = append(s.previews, previews...)
	return nil
}

// RemoveImage drops the attachment at index and revokes its preview.
func (s *Session) RemoveImage(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.attachments) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	s.previewer.Revoke(s.previews[index])
	s.attachments = append(s.attachments[:index], s.attachments[index+1:]...)
	s.previews = append(s.previews[:index], s.previews[index+1:]...)
	return nil
}

// SelectedImages returns the pending attachments.
func (s *Session) SelectedImages() []Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Attachment(nil), s.attachments...)
}

// Previews returns the preview handles of the pending attachments.
func (s *Session) Previews() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.previews...)
}

// Loading reports whether a send is in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// LastImage returns the data URL of the last image received, empty when
// the last send returned none.
func (s *Session) LastImage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastImage
}

// Messages returns a copy of the history of mode.
func (s *Session) Messages(m Mode) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, 0, len(s.messages[m]))
	for _, msg := range s.messages[m] {
		out = append(out, msg.clone())
	}
	return out
}

// Send posts the pending input and attachments in the current mode and
// returns the assistant reply. On failure the reply is an apology message
// and the error is returned alongside it.
func (s *Session) Send(ctx context.Context) (*Message, error) {
	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if strings.TrimSpace(s.input) == "" && len(s.attachments) == 0 {
		s.mu.Unlock()
		return nil, ErrEmptyMessage
	}

	mode := s.mode
	text := s.input
	attachments := s.attachments
	userMsg := &Message{
		ID:        s.ids.GenerateMessageID(),
		Role:      RoleUser,
		Content:   text,
		Timestamp: flextime.Now(),
		Images:    append([]string(nil), s.previews...),
	}
	s.messages[mode] = append(s.messages[mode], userMsg)
	s.retained = append(s.retained, s.previews...)
	s.input = ""
	s.attachments = nil
	s.previews = nil
	s.loading = true
	s.lastImage = ""
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	resp, err := s.request(ctx, mode, text, attachments)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to send message", "mode", mode, "error", err)
		reply := s.appendReply(mode, &Message{Role: RoleAssistant, Content: MessageAssistantError})
		s.notify(ctx, host.NotificationError, MessageProcessingFailed)
		return reply, err
	}

	reply := &Message{Role: RoleAssistant, Content: resp.Response}
	if resp.ImageData != "" {
		reply.EnhancedImageURL = imagecodec.DataURL(imagecodec.MimeTypePNG, resp.ImageData)
		reply.EnhancedImageData = resp.ImageData
		reply.ImageStatus = ImageStatusPending
		s.mu.Lock()
		s.lastImage = reply.EnhancedImageURL
		s.mu.Unlock()
	}
	reply = s.appendReply(mode, reply)
	if reply.HasImage() {
		s.notify(ctx, host.NotificationSuccess, MessageResponseReceived)
	}
	return reply, nil
}

func (s *Session) request(ctx context.Context, mode Mode, text string, attachments []Attachment) (*transport.Response, error) {
	switch mode {
	case ModeEnhance:
		_, asset, err := host.SelectedImageAsset(ctx, s.document)
		if err != nil {
			if errors.Is(err, host.ErrNoSelection) {
				return nil, fmt.Errorf("%s: %w", MessageSelectImage, err)
			}
			return nil, err
		}
		return s.service.Enhance(ctx, &transport.EnhanceRequest{Message: text, SelectedImage: asset.ID})
	default:
		var images []model.Image
		for _, a := range attachments {
			images = append(images, model.Image{
				Data:     base64.StdEncoding.EncodeToString(a.Data),
				MimeType: a.mimeType(),
			})
		}
		return s.service.Generate(ctx, &transport.GenerateRequest{Message: text, Images: images})
	}
}

func (s *Session) appendReply(mode Mode, msg *Message) *Message {
	msg.ID = s.ids.GenerateMessageID()
	msg.Timestamp = flextime.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[mode] = append(s.messages[mode], msg)
	c := msg.clone()
	return &c
}

// Accept commits the image of message id to the host document. The status
// becomes accepted only when the flow succeeds; accepting an accepted
// message is a no-op.
func (s *Session) Accept(ctx context.Context, id string) error {
	s.mu.Lock()
	msg := s.findLocked(id)
	if msg == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	switch {
	case msg.ImageStatus == ImageStatusAccepted:
		s.mu.Unlock()
		return nil
	case msg.ImageStatus == ImageStatusNone:
		s.mu.Unlock()
		return ErrNoImage
	case msg.ImageStatus == ImageStatusDeclined:
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, msg.ImageStatus, ImageStatusAccepted)
	case s.accepting[id]:
		s.mu.Unlock()
		return ErrAcceptInProgress
	}
	s.accepting[id] = true
	ref := msg.ImageRef()
	s.mu.Unlock()

	err := s.acceptor.Accept(ctx, ref)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accepting, id)
	if err != nil {
		return err
	}
	msg.ImageStatus = ImageStatusAccepted
	return nil
}

// Decline marks the image of message id as declined. Declining twice is a
// no-op.
func (s *Session) Decline(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := s.findLocked(id)
	if msg == nil {
		return fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	switch {
	case msg.ImageStatus == ImageStatusDeclined:
		return nil
	case msg.ImageStatus == ImageStatusNone:
		return ErrNoImage
	case msg.ImageStatus == ImageStatusAccepted:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, msg.ImageStatus, ImageStatusDeclined)
	case s.accepting[id]:
		return ErrAcceptInProgress
	}
	msg.ImageStatus = ImageStatusDeclined
	return nil
}

// Close revokes every preview handle still held. Further sends fail with
// ErrClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, h := range s.retained {
		s.previewer.Revoke(h)
	}
	for _, h := range s.previews {
		s.previewer.Revoke(h)
	}
	s.retained = nil
	s.previews = nil
	s.attachments = nil
	return nil
}

func (s *Session) usableLocked() error {
	if s.closed {
		return ErrClosed
	}
	if s.loading {
		return ErrBusy
	}
	return nil
}

func (s *Session) findLocked(id string) *Message {
	for _, m := range []Mode{ModeEnhance, ModeGenerate} {
		for _, msg := range s.messages[m] {
			if msg.ID == id {
				return msg
			}
		}
	}
	return nil
}

func (s *Session) notify(ctx context.Context, t host.NotificationType, message string) {
	if err := s.document.Notify(ctx, host.Notification{Type: t, Message: message}); err != nil {
		s.logger.WarnContext(ctx, "failed to post notification", "message", message, "error", err)
	}
}
