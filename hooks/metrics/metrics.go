// Package metrics provides server hooks that record Twirp request counts
// and handling durations as Prometheus metrics.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hopin-team/twirp-go"
)

type contextKey int

const (
	startTimeKey contextKey = iota
	errorCodeKey
)

type serverMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewServerHooks returns hooks that record a counter of handled requests,
// labeled by service, method, and response code, and a histogram of handling
// durations, labeled by service and method. The response code label is the
// Twirp error code of failed requests and "ok" otherwise.
//
// The collectors are registered with reg; if reg is nil they are registered
// with prometheus.DefaultRegisterer. Registration fails if collectors with
// the same names are already registered, so create one set of hooks and
// share it across servers.
func NewServerHooks(reg prometheus.Registerer) (*twirp.ServerHooks, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &serverMetrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "twirp_requests_total",
			Help: "Number of Twirp requests handled, by service, method, and response code.",
		}, []string{"service", "method", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "twirp_request_duration_seconds",
			Help:    "Time spent handling Twirp requests, by service and method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"service", "method"}),
	}
	for _, c := range []prometheus.Collector{m.requestsTotal, m.requestDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m.hooks(), nil
}

// MustNewServerHooks is like NewServerHooks but panics if registration fails.
func MustNewServerHooks(reg prometheus.Registerer) *twirp.ServerHooks {
	hooks, err := NewServerHooks(reg)
	if err != nil {
		panic(err)
	}
	return hooks
}

func (m *serverMetrics) hooks() *twirp.ServerHooks {
	return &twirp.ServerHooks{
		RequestReceived: func(ctx context.Context) (context.Context, error) {
			return context.WithValue(ctx, startTimeKey, time.Now()), nil
		},
		Error: func(ctx context.Context, terr *twirp.Error) context.Context {
			return context.WithValue(ctx, errorCodeKey, string(terr.Code()))
		},
		ResponseSent: func(ctx context.Context) {
			service, method := callLabels(ctx)
			code := "ok"
			if c, ok := ctx.Value(errorCodeKey).(string); ok {
				code = c
			}
			m.requestsTotal.WithLabelValues(service, method, code).Inc()
			if start, ok := ctx.Value(startTimeKey).(time.Time); ok {
				m.requestDuration.WithLabelValues(service, method).Observe(time.Since(start).Seconds())
			}
		},
	}
}

// callLabels resolves the service and method labels from the request
// context. Requests that fail before routing resolves a method, such as bad
// routes, are labeled "unknown" so they still land in a single series.
func callLabels(ctx context.Context) (string, string) {
	service, ok := twirp.ServiceName(ctx)
	if !ok {
		service = "unknown"
	} else if pkg, ok := twirp.PackageName(ctx); ok && pkg != "" {
		service = pkg + "." + service
	}
	method, ok := twirp.MethodName(ctx)
	if !ok {
		method = "unknown"
	}
	return service, method
}
