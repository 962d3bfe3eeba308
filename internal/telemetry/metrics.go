package telemetry

import (
	"expvar"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

var (
	apiRequestsTotal         = expvar.NewInt("api_requests_total")
	apiRequestsErrorsTotal   = expvar.NewInt("api_requests_errors_total")
	apiRequestLatencyMsTotal = expvar.NewInt("api_request_latency_ms_total")
	apiRequestLatencySamples = expvar.NewInt("api_request_latency_samples_total")
	apiRequestsByRoute       = expvar.NewMap("api_requests_by_route")
	apiRequestErrorsByRoute  = expvar.NewMap("api_request_errors_by_route")

	tradesExecutedTotal = expvar.NewMap("trades_executed_total")
	tradesRejectedTotal = expvar.NewMap("trades_rejected_total")
	refreshRunsTotal    = expvar.NewInt("price_refresh_runs_total")
	refreshUpdatedTotal = expvar.NewInt("price_refresh_instruments_updated_total")

	streamConnectionsActive = expvar.NewInt("stream_connections_active")
	streamConnectionsTotal  = expvar.NewInt("stream_connections_total")
	streamAuthFailuresTotal = expvar.NewInt("stream_auth_failures_total")
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// APIRequestMetricsMiddleware records request volume, error rate, and latency per route.
func APIRequestMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		route := requestRoute(r)
		key := strings.TrimSpace(r.Method + " " + route)
		if key == "" {
			key = r.Method + " /unknown"
		}

		apiRequestsTotal.Add(1)
		apiRequestsByRoute.Add(key, 1)

		if recorder.status >= http.StatusBadRequest {
			apiRequestsErrorsTotal.Add(1)
			apiRequestErrorsByRoute.Add(key, 1)
		}

		apiRequestLatencyMsTotal.Add(time.Since(start).Milliseconds())
		apiRequestLatencySamples.Add(1)
	})
}

func requestRoute(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := strings.TrimSpace(rctx.RoutePattern()); pattern != "" {
			return pattern
		}
	}
	return strings.TrimSpace(r.URL.Path)
}

func TradeExecuted(side string) {
	tradesExecutedTotal.Add(side, 1)
}

func TradeRejected(side string) {
	tradesRejectedTotal.Add(side, 1)
}

func RefreshRun(updated int) {
	refreshRunsTotal.Add(1)
	refreshUpdatedTotal.Add(int64(updated))
}

func StreamConnectionOpened() {
	streamConnectionsTotal.Add(1)
	streamConnectionsActive.Add(1)
}

func StreamConnectionClosed() {
	streamConnectionsActive.Add(-1)
}

func StreamAuthFailure() {
	streamAuthFailuresTotal.Add(1)
}
