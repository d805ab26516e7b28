// Package observability wires OpenTelemetry metrics and traces for the
// Invested services.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

const meterName = "github.com/Sanidhya49/Invested"

var globalMeterProvider *sdkmetric.MeterProvider

// InitMetrics installs a MeterProvider exporting to the default Prometheus
// registry. Serve it with MetricsHandler.
func InitMetrics(serviceName string) (*sdkmetric.MeterProvider, error) {
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(provider)
	globalMeterProvider = provider
	return provider, nil
}

// MetricsHandler serves the Prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// ShutdownMetrics flushes and stops the meter provider.
func ShutdownMetrics(ctx context.Context) error {
	if globalMeterProvider != nil {
		return globalMeterProvider.Shutdown(ctx)
	}
	return nil
}

// Metrics holds the service instruments. A nil *Metrics records nothing.
type Metrics struct {
	httpRequests metric.Int64Counter
	httpLatency  metric.Float64Histogram
	agentRuns    metric.Int64Counter
	llmCalls     metric.Int64Counter
}

// NewMetrics creates the instruments on the current global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	httpRequests, err := meter.Int64Counter(
		"invested.http.requests",
		metric.WithDescription("HTTP requests served"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}
	httpLatency, err := meter.Float64Histogram(
		"invested.http.latency",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create latency histogram: %w", err)
	}
	agentRuns, err := meter.Int64Counter(
		"invested.agent.runs",
		metric.WithDescription("Agent runs by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent counter: %w", err)
	}
	llmCalls, err := meter.Int64Counter(
		"invested.llm.calls",
		metric.WithDescription("LLM provider calls"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm counter: %w", err)
	}

	return &Metrics{
		httpRequests: httpRequests,
		httpLatency:  httpLatency,
		agentRuns:    agentRuns,
		llmCalls:     llmCalls,
	}, nil
}

// RecordHTTP records one served request.
func (m *Metrics) RecordHTTP(ctx context.Context, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpLatency.Record(ctx, float64(elapsed.Microseconds())/1000.0, attrs)
}

// RecordAgentRun counts an agent run with its outcome (ok, defaults, cached, llm_error, system).
func (m *Metrics) RecordAgentRun(ctx context.Context, agent, outcome string) {
	if m == nil {
		return
	}
	m.agentRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agent", agent),
		attribute.String("outcome", outcome),
	))
}

// RecordLLMCall counts a provider call; status is "success" or "error".
func (m *Metrics) RecordLLMCall(ctx context.Context, provider, status string) {
	if m == nil {
		return
	}
	m.llmCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	))
}

// Middleware records request count and latency keyed by the chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RecordHTTP(r.Context(), route, status, time.Since(start))
	})
}
