package limiterobs

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns a tracer scoped to this module, using the global
// TracerProvider if provider is nil.
func Tracer(provider trace.TracerProvider) trace.Tracer {
	if provider == nil {
		provider = trace.GetTracerProvider()
	}
	return provider.Tracer(instrumentationName)
}

// StartSpan starts a span named spanName with the standard "name"
// attribute set, returning the derived context and span.
func StartSpan(ctx context.Context, tracer trace.Tracer, spanName, name string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, spanName)
	span.SetAttributes(attribute.String("name", name))
	return ctx, span
}

// EndOK marks the span as successful and ends it.
func EndOK(span trace.Span) {
	span.SetStatus(codes.Ok, "")
	span.End()
}

// EndError marks the span as failed with err and ends it. A nil err is a
// no-op guard so defer sites can call this unconditionally.
func EndError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
