// Package entity defines the core domain entities and validation logic for the
// notification pipeline. It contains the fundamental business objects such as
// Request and Message, along with their status enums and domain-specific errors.
package entity

import "time"

// Status represents the lifecycle state of a request or message.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
	StatusUnknown    Status = "unknown"
)

// IsValid reports whether the status is one of the known lifecycle states.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusSent, StatusFailed, StatusCancelled, StatusUnknown:
		return true
	}
	return false
}

// IsTerminal reports whether a message in this status must never be
// reprocessed. Duplicate queue deliveries rely on this check.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSent, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Channel identifies the delivery channel of a request.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

// IsValid reports whether the channel is one of the supported channels.
func (c Channel) IsValid() bool {
	switch c {
	case ChannelSMS, ChannelEmail, ChannelPush:
		return true
	}
	return false
}

// Priority selects the queue lane a message is dispatched on.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// IsValid reports whether the priority is one of the three lanes.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return true
	}
	return false
}

// Template is the subject/body pair submitted with a request. BodyPath is set
// by channel policies that relocate large bodies to blob storage.
type Template struct {
	Subject  string
	Body     string
	BodyPath string
}

// Request represents a notification batch: one template fanned out to many
// recipients over a single channel. Counter columns form the rollup invariant
// accepted = sent + failed + pending + cancelled.
type Request struct {
	ID             string
	ClientID       string
	IdempotencyKey string
	CorrelationID  string
	Channel        Channel
	Priority       Priority
	Template       Template
	RequestedCount int
	AcceptedCount  int
	PendingCount   int
	SentCount      int
	FailedCount    int
	CancelledCount int
	Status         Status
	ScheduledAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RejectedCount is derived, not stored: recipients that failed per-recipient
// validation at intake.
func (r *Request) RejectedCount() int {
	return r.RequestedCount - r.AcceptedCount
}

// CountsConsistent reports whether the rollup invariant holds.
func (r *Request) CountsConsistent() bool {
	return r.AcceptedCount == r.SentCount+r.FailedCount+r.PendingCount+r.CancelledCount
}
