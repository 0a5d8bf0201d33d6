package notification

import (
	"net/http"

	"notifrelay/internal/handler/http/clientauth"
	"notifrelay/internal/handler/http/respond"
	"notifrelay/internal/usecase/cancel"
)

// CancelRequestHandler cancels every still-pending message of a request.
type CancelRequestHandler struct{ Svc *cancel.Service }

type cancelRequestResponse struct {
	RequestID      string `json:"request_id"`
	CancelledCount int    `json:"cancelled_count"`
	PendingCount   int    `json:"pending_count"`
	Status         string `json:"status"`
}

func (h CancelRequestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	result, err := h.Svc.CancelRequest(r.Context(), id, clientauth.FromContext(r.Context()))
	if err != nil {
		respond.DomainError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, cancelRequestResponse{
		RequestID:      id,
		CancelledCount: result.CancelledCount,
		PendingCount:   result.PendingCount,
		Status:         string(result.Status),
	})
}

// CancelMessageHandler cancels a single pending message.
type CancelMessageHandler struct{ Svc *cancel.Service }

type cancelMessageResponse struct {
	MessageID     string `json:"message_id"`
	RequestID     string `json:"request_id"`
	Status        string `json:"status"`
	RequestStatus string `json:"request_status"`
}

func (h CancelMessageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	result, err := h.Svc.CancelMessage(r.Context(), id, clientauth.FromContext(r.Context()))
	if err != nil {
		respond.DomainError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, cancelMessageResponse{
		MessageID:     id,
		RequestID:     result.RequestID,
		Status:        string(result.Status),
		RequestStatus: string(result.RequestStatus),
	})
}
