package grpcx

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor logs, recovers panics and applies defaultTimeout to
// calls that arrive without a deadline.
func UnaryServerInterceptor(defaultTimeout time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		if _, ok := ctx.Deadline(); !ok && defaultTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
			defer cancel()
		}
		defer observe("unary", info.FullMethod, time.Now(), &err)

		return handler(ctx, req)
	}
}

// StreamServerInterceptor logs and recovers panics. Health Watch streams are
// long-lived, so no timeout is applied.
func StreamServerInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer observe("stream", info.FullMethod, time.Now(), &err)

		return handler(srv, ss)
	}
}

// observe must be deferred directly so recover sees the handler's panic.
func observe(kind, method string, start time.Time, errp *error) {
	if r := recover(); r != nil {
		slog.Error("grpc."+kind+" panic", "method", method, "panic", r, "stack", string(debug.Stack()))
		*errp = status.Error(codes.Internal, "internal server error")
	}

	code := status.Code(*errp)
	lvl := slog.LevelDebug
	if code == codes.Internal || code == codes.Unknown {
		lvl = slog.LevelWarn
	}
	slog.Log(context.Background(), lvl, "grpc."+kind,
		"method", method,
		"code", code.String(),
		"dur_ms", time.Since(start).Milliseconds())
}
