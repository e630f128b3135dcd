package chat

import "github.com/google/uuid"

//go:generate go tool mockgen -source=id_generator.go -destination=mock_id_generator_test.go -package=chat

// IDGenerator provides unique message IDs
type IDGenerator interface {
	// GenerateMessageID generates a unique message identifier
	GenerateMessageID() string
}

// DefaultIDGenerator implements IDGenerator using UUID v7
type DefaultIDGenerator struct{}

// GenerateMessageID generates a message ID using UUID v7
func (g *DefaultIDGenerator) GenerateMessageID() string {
	return uuid.Must(uuid.NewV7()).String()
}
