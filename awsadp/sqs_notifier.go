package awsadp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Songmu/flextime"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/mashiike/imageai/host"
)

//go:generate go tool mockgen -source=sqs_notifier.go -destination=mock_sqs_test.go -package=awsadp

// SQSAPI is the subset of *sqs.Client used by SQSNotifier.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
}

// SQSNotifierConfig represents the configuration for SQSNotifier
type SQSNotifierConfig struct {
	Client    SQSAPI
	QueueURL  string
	QueueName string       // Resolved with GetQueueUrl when QueueURL is empty (Optional)
	Source    string       // Optional value of the "source" message attribute
	Logger    *slog.Logger // Optional logger, defaults to slog.Default()
}

// NotificationMessage is the body of every message sent by SQSNotifier.
type NotificationMessage struct {
	Type      host.NotificationType `json:"type"`
	Message   string                `json:"message"`
	Timestamp time.Time             `json:"timestamp"`
}

// SQSNotifier publishes host notifications to an SQS queue so a headless
// host can relay them to its users.
type SQSNotifier struct {
	client   SQSAPI
	queueURL string
	source   string
	logger   *slog.Logger
}

var _ host.Notifier = (*SQSNotifier)(nil)

// NewSQSNotifier creates a new SQS-based notifier
func NewSQSNotifier(ctx context.Context, config SQSNotifierConfig) (*SQSNotifier, error) {
	if config.Client == nil {
		return nil, errors.New("SQS Client is required")
	}

	queueURL := config.QueueURL
	if queueURL == "" && config.QueueName == "" {
		return nil, errors.New("either QueueURL or QueueName must be specified")
	}

	if queueURL == "" {
		result, err := config.Client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
			QueueName: aws.String(config.QueueName),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get queue URL for %s: %w", config.QueueName, err)
		}
		queueURL = aws.ToString(result.QueueUrl)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SQSNotifier{
		client:   config.Client,
		queueURL: queueURL,
		source:   config.Source,
		logger:   logger,
	}, nil
}

// QueueURL returns the queue notifications are sent to.
func (n *SQSNotifier) QueueURL() string {
	return n.queueURL
}

// Notify sends the notification as a JSON message.
func (n *SQSNotifier) Notify(ctx context.Context, notification host.Notification) error {
	body, err := json.Marshal(NotificationMessage{
		Type:      notification.Type,
		Message:   notification.Message,
		Timestamp: flextime.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	attrs := map[string]sqstypes.MessageAttributeValue{
		"type": {
			DataType:    aws.String("String"),
			StringValue: aws.String(string(notification.Type)),
		},
	}
	if n.source != "" {
		attrs["source"] = sqstypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(n.source),
		}
	}

	out, err := n.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(n.queueURL),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("failed to send message to SQS: %w", err)
	}
	if out != nil {
		n.logger.DebugContext(ctx, "notification sent", "message_id", aws.ToString(out.MessageId), "type", notification.Type)
	}
	return nil
}
