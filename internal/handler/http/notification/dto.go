package notification

import (
	"time"

	"notifrelay/internal/domain/entity"
)

// DTO is the public representation of a notification request.
type DTO struct {
	ID             string      `json:"id"`
	IdempotencyKey string      `json:"idempotency_key"`
	CorrelationID  string      `json:"correlation_id"`
	Channel        string      `json:"channel"`
	Priority       string      `json:"priority"`
	Status         string      `json:"status"`
	Counts         CountsDTO   `json:"counts"`
	ScheduledAt    *time.Time  `json:"scheduled_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// CountsDTO is the per-request rollup. Rejected is derived from the gap
// between requested and accepted recipients.
type CountsDTO struct {
	Requested int `json:"requested"`
	Accepted  int `json:"accepted"`
	Rejected  int `json:"rejected"`
	Pending   int `json:"pending"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}

// MessageDTO is the public representation of one per-recipient message.
type MessageDTO struct {
	ID                string    `json:"id"`
	To                string    `json:"to"`
	Status            string    `json:"status"`
	DeliveryState     string    `json:"delivery_state,omitempty"`
	Attempts          int       `json:"attempts"`
	ProviderMessageID string    `json:"provider_message_id,omitempty"`
	LastError         string    `json:"last_error,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// detailResponse is the GET /notifications/{id} body: the request plus its
// message breakdown.
type detailResponse struct {
	DTO
	Messages []MessageDTO `json:"messages"`
}

func toMessageDTOs(msgs []*entity.Message) []MessageDTO {
	out := make([]MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageDTO{
			ID:                m.ID,
			To:                m.To,
			Status:            string(m.Status),
			DeliveryState:     string(m.DeliveryState),
			Attempts:          m.Attempts,
			ProviderMessageID: m.ProviderMessageID,
			LastError:         m.LastError,
			CreatedAt:         m.CreatedAt,
			UpdatedAt:         m.UpdatedAt,
		})
	}
	return out
}

func toDTO(req *entity.Request) DTO {
	return DTO{
		ID:             req.ID,
		IdempotencyKey: req.IdempotencyKey,
		CorrelationID:  req.CorrelationID,
		Channel:        string(req.Channel),
		Priority:       string(req.Priority),
		Status:         string(req.Status),
		Counts: CountsDTO{
			Requested: req.RequestedCount,
			Accepted:  req.AcceptedCount,
			Rejected:  req.RejectedCount(),
			Pending:   req.PendingCount,
			Sent:      req.SentCount,
			Failed:    req.FailedCount,
			Cancelled: req.CancelledCount,
		},
		ScheduledAt: req.ScheduledAt,
		CreatedAt:   req.CreatedAt,
		UpdatedAt:   req.UpdatedAt,
	}
}
