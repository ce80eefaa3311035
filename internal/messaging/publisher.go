package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/baechuer/rapidphoto/internal/config"
)

// RoutingKeyUploadConfirmed routes PhotoUploadConfirmed events to the
// processing pipeline's queue binding.
const RoutingKeyUploadConfirmed = "photo.upload.confirmed"

// PhotoUploadConfirmed is the immutable event emitted once per successful
// confirmation. Delivery is at-least-once; consumers are expected to be
// idempotent.
type PhotoUploadConfirmed struct {
	PhotoID     uuid.UUID `json:"photo_id"`
	UploadID    uuid.UUID `json:"upload_id"`
	UserID      uuid.UUID `json:"user_id"`
	S3Key       string    `json:"s3_key"`
	FileName    string    `json:"file_name"`
	FileSize    int64     `json:"file_size"`
	MimeType    string    `json:"mime_type"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

// Publisher publishes domain events to RabbitMQ.
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	attempts int
	log      zerolog.Logger
}

// NewPublisher creates a new RabbitMQ publisher on a durable topic exchange.
func NewPublisher(cfg *config.Config, log zerolog.Logger) (*Publisher, error) {
	var conn *amqp.Connection
	var err error

	// Retry connection for up to 30 seconds
	for i := 0; i < 6; i++ {
		conn, err = amqp.Dial(cfg.RabbitURL)
		if err == nil {
			break
		}
		log.Warn().Err(err).Msgf("failed to connect to RabbitMQ, retrying in 5s... (%d/6)", i+1)
		time.Sleep(5 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ after retries: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.RabbitExchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	attempts := cfg.PublishAttempts
	if attempts < 1 {
		attempts = 1
	}

	return &Publisher{
		conn:     conn,
		channel:  ch,
		exchange: cfg.RabbitExchange,
		attempts: attempts,
		log:      log,
	}, nil
}

// PublishUploadConfirmed publishes a PhotoUploadConfirmed event. Transient
// broker failures are retried with backoff up to the configured attempt
// count; after that the error surfaces and the client retries the whole
// confirmation, which is safe because confirm is idempotent.
func (p *Publisher) PublishUploadConfirmed(ctx context.Context, ev PhotoUploadConfirmed) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		lastErr = p.channel.PublishWithContext(ctx,
			p.exchange,
			RoutingKeyUploadConfirmed,
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    uuid.NewString(),
				Timestamp:    time.Now().UTC(),
				Body:         body,
			},
		)
		if lastErr == nil {
			p.log.Info().
				Str("photo_id", ev.PhotoID.String()).
				Str("upload_id", ev.UploadID.String()).
				Msg("published upload confirmed event")
			return nil
		}

		p.log.Warn().Err(lastErr).Int("attempt", attempt).Msg("publish failed")
		if attempt < p.attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			}
		}
	}
	return fmt.Errorf("failed to publish after %d attempts: %w", p.attempts, lastErr)
}

// Close closes the publisher connection.
func (p *Publisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
