package notification

import (
	"net/http"

	"notifrelay/internal/handler/http/clientauth"
	"notifrelay/internal/handler/http/respond"
	"notifrelay/internal/usecase/intake"
)

type GetHandler struct{ Svc *intake.Service }

func (h GetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, msgs, err := h.Svc.GetWithMessages(r.Context(), clientauth.FromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		respond.DomainError(w, err)
		return
	}
	if req == nil {
		respond.Error(w, http.StatusNotFound, "not found")
		return
	}
	respond.JSON(w, http.StatusOK, detailResponse{DTO: toDTO(req), Messages: toMessageDTOs(msgs)})
}
