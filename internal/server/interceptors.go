package server

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ajaxzhan/fileserver/internal/logging"
	"github.com/ajaxzhan/fileserver/internal/sentryx"
	"github.com/ajaxzhan/fileserver/pkg/types"
)

// recoveryInterceptor turns a handler panic into codes.Internal.
func recoveryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.Error("Panic in handler",
					logging.String("method", info.FullMethod),
					logging.String("panic", fmt.Sprint(rec)),
				)
				sentryx.CaptureMessage(sentry.LevelFatal,
					"grpc panic method=%s panic=%v stack=%s",
					info.FullMethod, rec, string(debug.Stack()),
				)
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// rateLimitInterceptor rejects calls once the token bucket is empty.
func rateLimitInterceptor(limiter *rate.Limiter) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !limiter.Allow() {
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}

// identityInterceptor stores the caller identity in the context. Requests
// without one proceed as local invocations.
func identityInterceptor(ex IdentityExtractor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if id, ok := ex.ClientID(ctx); ok {
			ctx = types.WithClientID(ctx, id)
		}
		return handler(ctx, req)
	}
}

// loggingInterceptor logs one line per call.
func loggingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		id, _ := types.ClientIDFromContext(ctx)
		code := status.Code(err)
		fields := []zap.Field{
			logging.String("request_id", uuid.NewString()),
			logging.String("method", info.FullMethod),
			logging.Client(string(id)),
			logging.String("code", code.String()),
			logging.Duration("duration", time.Since(start)),
		}
		logCall(code, err, fields)
		return resp, err
	}
}

func logCall(code codes.Code, err error, fields []zap.Field) {
	switch code {
	case codes.OK:
		logging.Info("RPC completed", fields...)
	case codes.Internal, codes.Unknown, codes.DataLoss:
		logging.Error("RPC failed", append(fields, logging.Err(err))...)
	default:
		logging.Warn("RPC rejected", append(fields, logging.Err(err))...)
	}
}
