// Package respond provides JSON response helpers with domain error mapping.
// Internal error details are sanitized before they reach clients.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"notifrelay/internal/domain/entity"
)

// JSON writes a JSON response with the given status code and data.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			slog.Default().Error("failed to encode JSON response",
				slog.Int("status_code", code),
				slog.Any("error", err))
		}
	}
}

// Error writes a JSON error body {"error": ...}.
func Error(w http.ResponseWriter, code int, msg string) {
	JSON(w, code, map[string]string{"error": msg})
}

// validationBody flattens field-level errors into {"errors": {field: message}}.
func validationBody(errs entity.ValidationErrors) map[string]any {
	fields := make(map[string]string, len(errs))
	for _, v := range errs {
		fields[v.Field] = v.Message
	}
	return map[string]any{"error": "validation failed", "errors": fields}
}

// DomainError maps a usecase error onto an HTTP response:
//
//	ValidationError(s)   422 with per-field messages
//	entity.ErrNotFound   404
//	entity.ErrConflict   409
//	anything else        500, detail logged but not echoed to the client
func DomainError(w http.ResponseWriter, err error) {
	var multi entity.ValidationErrors
	if errors.As(err, &multi) {
		JSON(w, http.StatusUnprocessableEntity, validationBody(multi))
		return
	}
	var single *entity.ValidationError
	if errors.As(err, &single) {
		JSON(w, http.StatusUnprocessableEntity, validationBody(entity.ValidationErrors{single}))
		return
	}
	switch {
	case errors.Is(err, entity.ErrNotFound):
		Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, entity.ErrConflict):
		Error(w, http.StatusConflict, err.Error())
	default:
		slog.Default().Error("internal server error",
			slog.String("error", Sanitize(err)))
		Error(w, http.StatusInternalServerError, "internal server error")
	}
}
