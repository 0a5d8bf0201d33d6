package queue

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"notifrelay/internal/domain/entity"
	"notifrelay/internal/observability/metrics"
)

// Publisher publishes delivery jobs onto the priority lanes.
type Publisher struct {
	ch *amqp.Channel
}

// NewPublisher opens a channel and declares the three durable lanes.
func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("NewPublisher: open channel: %w", err)
	}
	for _, lane := range Lanes {
		if _, err := ch.QueueDeclare(lane, true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("NewPublisher: declare %s: %w", lane, err)
		}
	}
	return &Publisher{ch: ch}, nil
}

// Publish enqueues a first-attempt delivery job for the message.
func (p *Publisher) Publish(ctx context.Context, messageID string, priority entity.Priority) error {
	lane, err := LaneFor(priority)
	if err != nil {
		return fmt.Errorf("Publish: %w", err)
	}
	return p.publish(ctx, lane, messageID, 1)
}

// Requeue re-publishes a job on the same lane with the given attempt number.
func (p *Publisher) Requeue(ctx context.Context, lane, messageID string, attempt int) error {
	return p.publish(ctx, lane, messageID, attempt)
}

func (p *Publisher) publish(ctx context.Context, lane, messageID string, attempt int) error {
	body, err := json.Marshal(job{MessageID: messageID})
	if err != nil {
		return fmt.Errorf("publish: marshal: %w", err)
	}
	err = p.ch.PublishWithContext(ctx, "", lane, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         body,
		Headers:      amqp.Table{attemptsHeader: int32(attempt)},
	})
	if err != nil {
		metrics.RecordQueuePublishError(lane)
		return fmt.Errorf("publish to %s: %w", lane, err)
	}
	return nil
}

// Depths returns the ready-message count per lane for the metrics summary.
func (p *Publisher) Depths(ctx context.Context) (map[string]int, error) {
	depths := make(map[string]int, len(Lanes))
	for _, lane := range Lanes {
		q, err := p.ch.QueueDeclarePassive(lane, true, false, false, false, nil)
		if err != nil {
			return nil, fmt.Errorf("Depths: inspect %s: %w", lane, err)
		}
		depths[lane] = q.Messages
	}
	return depths, nil
}

// Close releases the underlying channel.
func (p *Publisher) Close() error {
	return p.ch.Close()
}
