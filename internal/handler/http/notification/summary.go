package notification

import (
	"net/http"
	"strconv"

	"notifrelay/internal/handler/http/respond"
	"notifrelay/internal/usecase/metricsreport"
)

// SummaryHandler serves the operational dashboard snapshot.
type SummaryHandler struct{ Svc *metricsreport.Service }

type summaryResponse struct {
	WindowMinutes     int              `json:"window_minutes"`
	RequestCounts     map[string]int64 `json:"request_counts"`
	MessageCounts     map[string]int64 `json:"message_counts"`
	SuccessRate       float64          `json:"success_rate"`
	FailureRate       float64          `json:"failure_rate"`
	AvgLatencySeconds float64          `json:"avg_latency_seconds"`
	QueueDepths       map[string]int   `json:"queue_depths,omitempty"`
}

func (h SummaryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	window := 0
	if v := r.URL.Query().Get("window"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 24*60 {
			respond.Error(w, http.StatusBadRequest, "window must be 1-1440 minutes")
			return
		}
		window = n
	}

	summary, err := h.Svc.Summary(r.Context(), window)
	if err != nil {
		respond.DomainError(w, err)
		return
	}

	out := summaryResponse{
		WindowMinutes:     summary.WindowMinutes,
		RequestCounts:     make(map[string]int64, len(summary.RequestCounts)),
		MessageCounts:     make(map[string]int64, len(summary.MessageCounts)),
		SuccessRate:       summary.SuccessRate,
		FailureRate:       summary.FailureRate,
		AvgLatencySeconds: summary.AvgLatencySeconds,
		QueueDepths:       summary.QueueDepths,
	}
	for status, n := range summary.RequestCounts {
		out.RequestCounts[string(status)] = n
	}
	for status, n := range summary.MessageCounts {
		out.MessageCounts[string(status)] = n
	}
	respond.JSON(w, http.StatusOK, out)
}
