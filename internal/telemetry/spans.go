package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanAttrs are optional span attributes keyed by short name
type SpanAttrs map[string]interface{}

// TraceElasticsearchCall creates a client span for a backend operation
// such as search, index, bulk, update or delete_by_query.
func TraceElasticsearchCall(ctx context.Context, operation string, attrs SpanAttrs) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("elasticsearch").Start(ctx, "es."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("es.operation", operation)),
	)

	if index, ok := attrs["index"].(string); ok && index != "" {
		span.SetAttributes(attribute.String("es.index", index))
	}
	if query, ok := attrs["query"].(string); ok && query != "" {
		span.SetAttributes(attribute.String("es.query", truncate(query)))
	}
	if docID, ok := attrs["doc_id"].(string); ok && docID != "" {
		span.SetAttributes(attribute.String("es.doc_id", docID))
	}
	if bulkSize, ok := attrs["bulk_size"].(int); ok && bulkSize > 0 {
		span.SetAttributes(attribute.Int("es.bulk_size", bulkSize))
	}

	return ctx, span
}

// TraceSearchCall creates an internal span around a coordinator operation
func TraceSearchCall(ctx context.Context, operation string, attrs SpanAttrs) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("petsearch").Start(ctx, "search."+operation,
		trace.WithAttributes(attribute.String("search.operation", operation)),
	)

	if query, ok := attrs["query"].(string); ok && query != "" {
		span.SetAttributes(attribute.String("search.query", truncate(query)))
	}
	if userID, ok := attrs["user_id"].(string); ok && userID != "" {
		span.SetAttributes(attribute.String("user.id", userID))
	}
	if page, ok := attrs["page"].(int); ok && page > 0 {
		span.SetAttributes(attribute.Int("search.page", page))
	}
	if limit, ok := attrs["limit"].(int); ok && limit > 0 {
		span.SetAttributes(attribute.Int("search.limit", limit))
	}

	return ctx, span
}

// TraceCacheCall creates a span for Redis operations
func TraceCacheCall(ctx context.Context, operation string, key string) (context.Context, trace.Span) {
	return otel.Tracer("cache").Start(ctx, "cache."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("cache.operation", operation),
			attribute.String("cache.key", key),
		),
	)
}

// RecordError marks the span failed
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.SetStatus(codes.Error, err.Error())
	span.RecordError(err)
}

// RecordSuccess marks the span ok and attaches the result size
func RecordSuccess(span trace.Span, itemCount int) {
	span.SetAttributes(attribute.Int("result.item_count", itemCount))
	span.SetStatus(codes.Ok, "")
}

func truncate(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
