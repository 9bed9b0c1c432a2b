package tracing

import (
    "context"

    "go.opentelemetry.io/otel"
    "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
    sdktrace "go.opentelemetry.io/otel/sdk/trace"
    "go.opentelemetry.io/otel/trace"
)

const tracerName = "clusterstate"

var enabled bool

// Setup installs a global stdout tracer provider when enable is true and
// returns a shutdown function to defer. With enable false both Setup and
// StartSpan are no-ops, so transports can call StartSpan unconditionally.
func Setup(enable bool) (func(context.Context) error, error) {
    enabled = enable
    if !enable {
        return func(context.Context) error { return nil }, nil
    }
    exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
    if err != nil {
        return nil, err
    }
    tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
    otel.SetTracerProvider(tp)
    return tp.Shutdown, nil
}

// StartSpan opens a span on the global tracer; the returned func ends it.
func StartSpan(ctx context.Context, name string) (context.Context, func()) {
    if !enabled {
        return ctx, func() {}
    }
    var span trace.Span
    ctx, span = otel.Tracer(tracerName).Start(ctx, name)
    return ctx, func() { span.End() }
}
