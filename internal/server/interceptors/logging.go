package interceptors

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"synq/backend/internal/logging"
)

// LoggingUnary returns a unary server interceptor that logs each RPC with its status code and duration.
// skipMethods is the set of full method names to not log (e.g. frequent health probes).
func LoggingUnary(log logging.Logger, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if log == nil || skipMethods[info.FullMethod] {
			return resp, err
		}
		code := status.Code(err)
		args := []any{
			"method", info.FullMethod,
			"code", code.String(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", ClientIP(ctx),
		}
		if code == codes.Internal || code == codes.Unknown {
			log.Error(ctx, "grpc request failed", append(args, "error", err)...)
		} else {
			log.Info(ctx, "grpc request", args...)
		}
		return resp, err
	}
}

// RecoveryUnary returns a unary server interceptor that turns a handler panic into codes.Internal.
func RecoveryUnary(log logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if p := recover(); p != nil {
				if log != nil {
					log.Error(ctx, "grpc handler panic", "method", info.FullMethod, "panic", p)
				}
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}
