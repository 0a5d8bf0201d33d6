package notification

import (
	"net/http"

	"notifrelay/internal/handler/http/clientauth"
	"notifrelay/internal/handler/http/middleware"
	"notifrelay/internal/usecase/cancel"
	"notifrelay/internal/usecase/intake"
	"notifrelay/internal/usecase/metricsreport"
)

// Register wires the notification routes. Every route is client-scoped; the
// intake endpoint additionally carries a per-client rate limit.
func Register(mux *http.ServeMux, intakeSvc *intake.Service, cancelSvc *cancel.Service,
	reportSvc *metricsreport.Service, intakeLimiter *middleware.RateLimiter) {

	scoped := func(h http.Handler) http.Handler { return clientauth.Middleware(h) }
	clientKey := func(r *http.Request) string { return clientauth.FromRequest(r) }

	mux.Handle("POST /notifications",
		scoped(intakeLimiter.Middleware(clientKey, CreateHandler{intakeSvc})))
	mux.Handle("GET /notifications", scoped(ListHandler{intakeSvc}))
	mux.Handle("GET /notifications/{id}", scoped(GetHandler{intakeSvc}))
	mux.Handle("DELETE /notifications/{id}", scoped(CancelRequestHandler{cancelSvc}))
	mux.Handle("DELETE /messages/{id}", scoped(CancelMessageHandler{cancelSvc}))

	mux.Handle("GET /metrics/summary", SummaryHandler{reportSvc})
}
