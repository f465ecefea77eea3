package events

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const maxDialDelay = 60 * time.Second

// ConnectionOptions controls DialWithRetry.
type ConnectionOptions struct {
	URL           string
	RetryAttempts int
	Delay         time.Duration
	Logger        *zap.Logger
}

// DialWithRetry connects to RabbitMQ, doubling the delay between attempts up
// to a minute. It stops early when ctx is cancelled.
func DialWithRetry(ctx context.Context, opts ConnectionOptions) (*amqp091.Connection, error) {
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 1
	}
	if opts.Delay <= 0 {
		opts.Delay = time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	var lastErr error
	delay := opts.Delay
	for attempt := 1; attempt <= opts.RetryAttempts; attempt++ {
		conn, err := amqp091.Dial(opts.URL)
		if err == nil {
			if attempt > 1 {
				log.Info("broker connected", zap.Int("attempt", attempt))
			}
			return conn, nil
		}
		lastErr = err

		if attempt == opts.RetryAttempts {
			break
		}

		log.Warn("broker dial failed",
			zap.Int("attempt", attempt),
			zap.Duration("sleep", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("dial cancelled: %w", ctx.Err())
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDialDelay {
			delay = maxDialDelay
		}
	}

	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", opts.RetryAttempts, lastErr)
}
