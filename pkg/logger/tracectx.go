package logger

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

type ctxKey int

const connIDKey ctxKey = iota

// WithConnID tags ctx with a websocket connection id for log correlation.
func WithConnID(ctx context.Context, connID string) context.Context {
	return context.WithValue(ctx, connIDKey, connID)
}

func ConnIDFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(connIDKey).(string)
	return v
}

// AttrsFromCtx returns trace/span ids and the connection id when present.
func AttrsFromCtx(ctx context.Context) []slog.Attr {
	var out []slog.Attr

	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.IsValid() {
		out = append(out,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	if id := ConnIDFromCtx(ctx); id != "" {
		out = append(out, slog.String("conn_id", id))
	}

	return out
}

// Args converts AttrsFromCtx for the variadic slog helpers.
func Args(ctx context.Context) []any {
	attrs := AttrsFromCtx(ctx)
	out := make([]any, len(attrs))
	for i, a := range attrs {
		out[i] = a
	}

	return out
}
