// Package queue implements the delivery job transport on RabbitMQ. Jobs carry
// a message id and an attempt counter; three durable queues form the priority
// lanes. Delivery is at-least-once; the processor's terminal-status check
// makes duplicate deliveries harmless.
package queue

import (
	"context"
	"fmt"

	"notifrelay/internal/domain/entity"
)

const (
	LaneLow    = "notif.low"
	LaneNormal = "notif.normal"
	LaneHigh   = "notif.high"

	attemptsHeader = "x-attempts"
)

// Lanes lists every queue, highest priority first.
var Lanes = []string{LaneHigh, LaneNormal, LaneLow}

// LaneFor maps a message priority to its queue lane.
func LaneFor(p entity.Priority) (string, error) {
	switch p {
	case entity.PriorityLow:
		return LaneLow, nil
	case entity.PriorityNormal:
		return LaneNormal, nil
	case entity.PriorityHigh:
		return LaneHigh, nil
	}
	return "", fmt.Errorf("LaneFor: unknown priority %q", p)
}

// job is the wire payload of a delivery job.
type job struct {
	MessageID string `json:"message_id"`
}

// Verdict tells the consumer what to do with a processed delivery.
type Verdict int

const (
	// VerdictAck acknowledges the delivery; the job is done (success, terminal
	// failure already recorded, or idempotent no-op).
	VerdictAck Verdict = iota
	// VerdictRetry re-publishes the job with an incremented attempt counter
	// after the fixed backoff, then acknowledges the original delivery.
	VerdictRetry
)

// HandleFunc processes one delivery job. attempt starts at 1.
type HandleFunc func(ctx context.Context, messageID string, attempt int) Verdict
