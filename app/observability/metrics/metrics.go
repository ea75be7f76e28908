package metrics

import (
	"context"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	RetrievalRequestsTotal    metric.Int64Counter
	RetrievalDurationSeconds  metric.Float64Histogram
	GenerationRequestsTotal   metric.Int64Counter
	GenerationRetriesTotal    metric.Int64Counter
	GenerationDurationSeconds metric.Float64Histogram
	SessionTransitionsTotal   metric.Int64Counter
	GuardRejectionsTotal      metric.Int64Counter
	DbQueryErrorsTotal        metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("WanderPlan")
		var err error
		m := &AppMetrics{}

		m.RetrievalRequestsTotal, err = meter.Int64Counter(
			"retrieval_requests_total",
			metric.WithDescription("Total number of candidate retrieval calls"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create retrieval_requests_total: %v", err)
		}

		m.RetrievalDurationSeconds, err = meter.Float64Histogram(
			"retrieval_duration_seconds",
			metric.WithDescription("Duration of candidate retrieval calls in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create retrieval_duration_seconds: %v", err)
		}

		m.GenerationRequestsTotal, err = meter.Int64Counter(
			"generation_requests_total",
			metric.WithDescription("Total number of itinerary generation calls"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create generation_requests_total: %v", err)
		}

		m.GenerationRetriesTotal, err = meter.Int64Counter(
			"generation_retries_total",
			metric.WithDescription("Total number of strict-format generation retries"),
			metric.WithUnit("{retry}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create generation_retries_total: %v", err)
		}

		m.GenerationDurationSeconds, err = meter.Float64Histogram(
			"generation_duration_seconds",
			metric.WithDescription("Duration of itinerary generation calls in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create generation_duration_seconds: %v", err)
		}

		m.SessionTransitionsTotal, err = meter.Int64Counter(
			"session_transitions_total",
			metric.WithDescription("Total number of accepted session stage transitions"),
			metric.WithUnit("{transition}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create session_transitions_total: %v", err)
		}

		m.GuardRejectionsTotal, err = meter.Int64Counter(
			"guard_rejections_total",
			metric.WithDescription("Total number of transitions rejected by a guard"),
			metric.WithUnit("{rejection}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create guard_rejections_total: %v", err)
		}

		m.DbQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// RecordDBError counts one failed database operation on the shared counter.
// Repositories call it from their query and exec error branches.
func RecordDBError(ctx context.Context, table, operation string) {
	Get().DbQueryErrorsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("table", table),
		attribute.String("operation", operation),
	))
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}
