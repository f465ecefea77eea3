package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/charlesng35/talenthub/pkg/logger"
	"github.com/charlesng35/talenthub/pkg/metrics"
)

// Producer identifies this service in event metadata.
const Producer = "talenthub"

const defaultPublishTimeout = 2 * time.Second

// Publisher sends domain events to subscribers outside the process.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data any) error
	Close() error
}

// NoopPublisher discards every event. It is used when no broker is configured.
type NoopPublisher struct{}

// Publish implements Publisher.
func (NoopPublisher) Publish(context.Context, string, any) error { return nil }

// Close implements Publisher.
func (NoopPublisher) Close() error { return nil }

// AMQPConfig configures an AMQPPublisher.
type AMQPConfig struct {
	URL           string
	Exchange      string
	RetryAttempts int
	RetryDelay    time.Duration
	// PublishTimeout bounds a single Publish call.
	PublishTimeout time.Duration
}

// AMQPPublisher publishes envelopes to a durable topic exchange, using the
// event type as routing key. One channel is shared by all publishes and
// reopened when the broker closes it.
type AMQPPublisher struct {
	conn     *amqp091.Connection
	exchange string
	timeout  time.Duration
	log      *zap.Logger

	mu sync.Mutex
	ch *amqp091.Channel
}

// NewAMQPPublisher dials the broker and declares the exchange.
func NewAMQPPublisher(ctx context.Context, cfg AMQPConfig) (*AMQPPublisher, error) {
	exchange := strings.TrimSpace(cfg.Exchange)
	if exchange == "" {
		return nil, errors.New("events: exchange is required")
	}

	log := logger.WithModule("events")
	conn, err := DialWithRetry(ctx, ConnectionOptions{
		URL:           cfg.URL,
		RetryAttempts: cfg.RetryAttempts,
		Delay:         cfg.RetryDelay,
		Logger:        log,
	})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("events: open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("events: declare exchange: %w", err)
	}

	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}

	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange, timeout: timeout, log: log}, nil
}

// Publish implements Publisher.
func (p *AMQPPublisher) Publish(ctx context.Context, eventType string, data any) error {
	msg, err := buildPublishing(NewEnvelope(eventType, Producer, data))
	if err != nil {
		metrics.EventsPublished.WithLabelValues("failed").Inc()
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		metrics.EventsPublished.WithLabelValues("failed").Inc()
		return err
	}

	if err := ch.PublishWithContext(ctx, p.exchange, eventType, false, false, msg); err != nil {
		metrics.EventsPublished.WithLabelValues("failed").Inc()
		return fmt.Errorf("events: publish %s: %w", eventType, err)
	}

	metrics.EventsPublished.WithLabelValues("published").Inc()
	p.log.Debug("published", zap.String("key", eventType), zap.String("exchange", p.exchange))
	return nil
}

// channel returns the shared channel, reopening it after a broker close.
// Callers hold p.mu.
func (p *AMQPPublisher) channel() (*amqp091.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("events: open channel: %w", err)
	}
	p.ch = ch
	return ch, nil
}

// Close implements Publisher.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	if p.ch != nil && !p.ch.IsClosed() {
		_ = p.ch.Close()
	}
	p.ch = nil
	p.mu.Unlock()
	return p.conn.Close()
}

func buildPublishing(env Envelope) (amqp091.Publishing, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return amqp091.Publishing{}, fmt.Errorf("events: encode %s: %w", env.Meta.Type, err)
	}

	correlationID := env.Meta.ID
	if env.Meta.CorrelationID != nil {
		correlationID = *env.Meta.CorrelationID
	}

	return amqp091.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp091.Persistent,
		MessageId:     env.Meta.ID,
		CorrelationId: correlationID,
		Type:          env.Meta.Type,
		Timestamp:     env.Meta.Time,
		Body:          body,
	}, nil
}
