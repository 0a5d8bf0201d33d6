package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

// ConsumerConfig controls the worker-side consumption of delivery jobs.
type ConsumerConfig struct {
	// Concurrency is the number of handler goroutines per lane.
	Concurrency int
	// Prefetch bounds unacknowledged deliveries per consumer channel.
	Prefetch int
	// RetryBackoff is the fixed delay before a retried job is re-published.
	RetryBackoff time.Duration
}

// DefaultConsumerConfig returns the production defaults: modest concurrency
// with a short fixed backoff between delivery attempts.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Concurrency:  4,
		Prefetch:     8,
		RetryBackoff: 1 * time.Second,
	}
}

// Consumer pulls delivery jobs from every lane and hands them to the handler.
// A VerdictRetry re-publishes the job with attempt+1 after the fixed backoff;
// either way the original delivery is acknowledged, so redelivery storms from
// crashed workers are the only duplicate source (and the processor tolerates
// those).
type Consumer struct {
	conn      *amqp.Connection
	publisher *Publisher
	handler   HandleFunc
	cfg       ConsumerConfig
	logger    *slog.Logger
}

func NewConsumer(conn *amqp.Connection, publisher *Publisher, handler HandleFunc, cfg ConsumerConfig, logger *slog.Logger) *Consumer {
	return &Consumer{conn: conn, publisher: publisher, handler: handler, cfg: cfg, logger: logger}
}

// Run consumes all lanes until the context is cancelled. It blocks.
func (c *Consumer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, lane := range Lanes {
		lane := lane
		ch, err := c.conn.Channel()
		if err != nil {
			return fmt.Errorf("Run: open channel for %s: %w", lane, err)
		}
		if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
			return fmt.Errorf("Run: qos for %s: %w", lane, err)
		}
		if _, err := ch.QueueDeclare(lane, true, false, false, false, nil); err != nil {
			return fmt.Errorf("Run: declare %s: %w", lane, err)
		}
		deliveries, err := ch.Consume(lane, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("Run: consume %s: %w", lane, err)
		}

		for i := 0; i < c.cfg.Concurrency; i++ {
			g.Go(func() error {
				c.consumeLoop(ctx, lane, deliveries)
				return nil
			})
		}
	}
	return g.Wait()
}

func (c *Consumer) consumeLoop(ctx context.Context, lane string, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			c.handleDelivery(ctx, lane, d)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, lane string, d amqp.Delivery) {
	var j job
	if err := json.Unmarshal(d.Body, &j); err != nil {
		c.logger.Error("dropping malformed delivery job",
			slog.String("lane", lane),
			slog.Any("error", err))
		_ = d.Ack(false)
		return
	}
	attempt := attemptFrom(d.Headers)

	verdict := c.handler(ctx, j.MessageID, attempt)
	switch verdict {
	case VerdictRetry:
		// Fixed-delay backoff before the job becomes visible again.
		select {
		case <-time.After(c.cfg.RetryBackoff):
		case <-ctx.Done():
		}
		if err := c.publisher.Requeue(ctx, lane, j.MessageID, attempt+1); err != nil {
			c.logger.Error("failed to requeue delivery job",
				slog.String("lane", lane),
				slog.String("message_id", j.MessageID),
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			// Nack with requeue so the broker redelivers instead of losing it.
			_ = d.Nack(false, true)
			return
		}
		_ = d.Ack(false)
	default:
		_ = d.Ack(false)
	}
}

func attemptFrom(headers amqp.Table) int {
	switch v := headers[attemptsHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 1
}
