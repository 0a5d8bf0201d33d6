// Package notification exposes the HTTP surface of the pipeline: request
// intake, status reads, cancellation and the operational summary.
package notification

import (
	"encoding/json"
	"net/http"
	"time"

	"notifrelay/internal/domain/entity"
	"notifrelay/internal/handler/http/clientauth"
	"notifrelay/internal/handler/http/correlation"
	"notifrelay/internal/handler/http/respond"
	"notifrelay/internal/usecase/intake"
)

type CreateHandler struct{ Svc *intake.Service }

type createRequest struct {
	IdempotencyKey string             `json:"idempotency_key"`
	Channel        string             `json:"channel"`
	Priority       string             `json:"priority"`
	Subject        string             `json:"subject"`
	Body           string             `json:"body"`
	Recipients     []recipientRequest `json:"recipients"`
	ScheduledAt    *time.Time         `json:"scheduled_at"`
}

type recipientRequest struct {
	To   string         `json:"to"`
	Vars map[string]any `json:"vars"`
}

func (h CreateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	recipients := make([]intake.RecipientInput, 0, len(req.Recipients))
	for _, rcpt := range req.Recipients {
		recipients = append(recipients, intake.RecipientInput{To: rcpt.To, Vars: rcpt.Vars})
	}

	result, err := h.Svc.Create(r.Context(), intake.CreateInput{
		ClientID:       clientauth.FromContext(r.Context()),
		IdempotencyKey: req.IdempotencyKey,
		CorrelationID:  correlation.FromContext(r.Context()),
		Channel:        entity.Channel(req.Channel),
		Priority:       entity.Priority(req.Priority),
		Subject:        req.Subject,
		Body:           req.Body,
		Recipients:     recipients,
		ScheduledAt:    req.ScheduledAt,
	})
	if err != nil {
		respond.DomainError(w, err)
		return
	}

	code := http.StatusCreated
	if !result.Created {
		// Idempotent replay returns the original request unchanged.
		code = http.StatusOK
	}
	respond.JSON(w, code, toDTO(result.Request))
}
