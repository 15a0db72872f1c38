package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the application's instruments.
type Metrics struct {
	plansCreated   metric.Int64Counter
	placesResolved metric.Int64Counter
	remindersSent  metric.Int64Counter
	httpRequests   metric.Int64Counter
	httpDuration   metric.Float64Histogram
}

// NewMetrics creates instruments from the global meter provider. Instruments
// created before InitProviders runs are forwarded once it does.
func NewMetrics() (*Metrics, error) {
	return newMetrics(otel.GetMeterProvider().Meter("planahead"))
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.plansCreated, err = meter.Int64Counter("plans_created_total",
		metric.WithDescription("Plans created"),
		metric.WithUnit("{plan}"),
	); err != nil {
		return nil, fmt.Errorf("plans_created_total: %w", err)
	}
	if m.placesResolved, err = meter.Int64Counter("places_resolved_total",
		metric.WithDescription("Place resolutions by outcome"),
		metric.WithUnit("{place}"),
	); err != nil {
		return nil, fmt.Errorf("places_resolved_total: %w", err)
	}
	if m.remindersSent, err = meter.Int64Counter("plan_reminders_total",
		metric.WithDescription("Plan reminders dispatched"),
		metric.WithUnit("{reminder}"),
	); err != nil {
		return nil, fmt.Errorf("plan_reminders_total: %w", err)
	}
	if m.httpRequests, err = meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests completed"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, fmt.Errorf("http_requests_total: %w", err)
	}
	if m.httpDuration, err = meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("Duration of HTTP requests in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("http_request_duration_seconds: %w", err)
	}
	return &m, nil
}

func (m *Metrics) PlanCreated(ctx context.Context) {
	m.plansCreated.Add(ctx, 1)
}

func (m *Metrics) PlaceResolved(ctx context.Context, outcome string) {
	m.placesResolved.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) ReminderSent(ctx context.Context) {
	m.remindersSent.Add(ctx, 1)
}

func (m *Metrics) HTTPRequest(ctx context.Context, method, route string, status int, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("route", route),
		attribute.Int("status", status),
	)
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpDuration.Record(ctx, seconds, attrs)
}
