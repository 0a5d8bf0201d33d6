package entity

import "time"

// DeliveryState is the provider-facing outcome dimension of a message. It is
// decoupled from the internal Status: a message can be SENT internally while
// the provider still reports it as queued.
type DeliveryState string

const (
	DeliveryQueued    DeliveryState = "queued"
	DeliveryDelivered DeliveryState = "delivered"
	DeliveryFailed    DeliveryState = "failed"
	DeliveryRejected  DeliveryState = "rejected"
	DeliveryExpired   DeliveryState = "expired"
	DeliveryUnknown   DeliveryState = "unknown"
)

// IsValid reports whether the delivery state is one of the known states.
func (d DeliveryState) IsValid() bool {
	switch d {
	case DeliveryQueued, DeliveryDelivered, DeliveryFailed, DeliveryRejected, DeliveryExpired, DeliveryUnknown:
		return true
	}
	return false
}

// Message is a single per-recipient delivery unit owned by a Request.
// Lifecycle: PENDING -> PROCESSING -> {SENT, FAILED, CANCELLED}. Once terminal
// it is immutable.
type Message struct {
	ID                string
	RequestID         string
	To                string
	Vars              map[string]any
	Channel           Channel
	Priority          Priority
	Status            Status
	DeliveryState     DeliveryState
	Attempts          int
	ProviderMessageID string
	LastError         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ScalarVars reports whether every recipient variable is a scalar value
// (string, number or boolean). Structured values are rejected at intake.
func ScalarVars(vars map[string]any) bool {
	for _, v := range vars {
		switch v.(type) {
		case string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
		default:
			return false
		}
	}
	return true
}
