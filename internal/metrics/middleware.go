package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// unmatchedRoute labels requests no route matched, keeping raw paths out
// of label values.
const unmatchedRoute = "unmatched"

// Middleware measures inflight, total, duration, size and 5xx errors,
// labelled by the chi route pattern.
func (m *ServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// a route context created here is filled in by chi further down
		if chi.RouteContext(r.Context()) == nil {
			r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, chi.NewRouteContext()))
		}

		m.inflight.Inc()
		defer m.inflight.Dec()

		snoop := httpsnoop.CaptureMetrics(next, w, r)

		route := routeLabel(r)
		method := r.Method

		m.reqTotal.WithLabelValues(method, route, strconv.Itoa(snoop.Code)).Inc()
		if snoop.Code >= http.StatusInternalServerError {
			m.errorsTotal.WithLabelValues(method, route).Inc()
		}
		m.observeDuration(r.Context(), method, route, snoop.Duration.Seconds())
		m.respBytes.WithLabelValues(method, route).Observe(float64(snoop.Written))
	})
}

func routeLabel(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return unmatchedRoute
}

func (m *ServerMetrics) observeDuration(ctx context.Context, method, route string, seconds float64) {
	obs := m.reqDur.WithLabelValues(method, route)
	if ex := traceExemplar(ctx); ex != nil {
		if eo, ok := obs.(prometheus.ExemplarObserver); ok {
			eo.ObserveWithExemplar(seconds, ex)
			return
		}
	}
	obs.Observe(seconds)
}

// traceExemplar links a sampled trace to the observation.
func traceExemplar(ctx context.Context) prometheus.Labels {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() || !sc.IsSampled() {
		return nil
	}
	return prometheus.Labels{"trace_id": sc.TraceID().String()}
}
