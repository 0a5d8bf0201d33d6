package notification

import (
	"net/http"
	"strconv"
	"time"

	"notifrelay/internal/domain/entity"
	"notifrelay/internal/handler/http/clientauth"
	"notifrelay/internal/handler/http/respond"
	"notifrelay/internal/repository"
	"notifrelay/internal/usecase/intake"
)

type ListHandler struct{ Svc *intake.Service }

type listResponse struct {
	Items  []DTO `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

func (h ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.Svc.List(r.Context(), clientauth.FromContext(r.Context()), filter)
	if err != nil {
		respond.DomainError(w, err)
		return
	}

	out := make([]DTO, 0, len(items))
	for _, req := range items {
		out = append(out, toDTO(req))
	}
	respond.JSON(w, http.StatusOK, listResponse{
		Items:  out,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

func parseFilter(r *http.Request) (repository.RequestFilter, error) {
	q := r.URL.Query()
	f := repository.RequestFilter{Limit: defaultListLimit}

	if s := q.Get("status"); s != "" {
		status := entity.Status(s)
		if !status.IsValid() {
			return f, &entity.ValidationError{Field: "status", Message: "unknown status"}
		}
		f.Status = &status
	}
	if c := q.Get("channel"); c != "" {
		channel := entity.Channel(c)
		if !channel.IsValid() {
			return f, &entity.ValidationError{Field: "channel", Message: "unknown channel"}
		}
		f.Channel = &channel
	}
	if v := q.Get("from"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, &entity.ValidationError{Field: "from", Message: "must be RFC3339"}
		}
		f.From = &ts
	}
	if v := q.Get("to"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, &entity.ValidationError{Field: "to", Message: "must be RFC3339"}
		}
		f.To = &ts
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxListLimit {
			return f, &entity.ValidationError{Field: "limit", Message: "must be 1-100"}
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, &entity.ValidationError{Field: "offset", Message: "must be >= 0"}
		}
		f.Offset = n
	}
	return f, nil
}
