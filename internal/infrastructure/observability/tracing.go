package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "relaydesk/services/channel-api"

// StartSpan starts a span on the service tracer.
func StartSpan(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, opts...)
}

// AddSpanAttributes adds attributes to the current span.
func AddSpanAttributes(ctx context.Context, attributes ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(attributes...)
	}
}

// WebhookItemEvent records the outcome of one webhook change item on the
// current span. Empty externalID and reason are omitted.
func WebhookItemEvent(ctx context.Context, kind, externalID, status, reason string) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("webhook.kind", kind),
		attribute.String("webhook.status", status),
	}
	if externalID != "" {
		attrs = append(attrs, attribute.String("webhook.external_id", externalID))
	}
	if reason != "" {
		attrs = append(attrs, attribute.String("webhook.reason", reason))
	}
	span.AddEvent("webhook.item", trace.WithAttributes(attrs...))
}

// RecordError records an error on the current span and marks it failed.
func RecordError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
