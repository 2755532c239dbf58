package rpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// UnaryLogger logs one line per unary call, mirroring the HTTP request log.
func UnaryLogger(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("duration", time.Since(start)),
		}
		switch code {
		case codes.OK:
			logger.Info("rpc", fields...)
		case codes.Internal, codes.Unknown, codes.DataLoss, codes.Unavailable:
			logger.Error("rpc", append(fields, zap.Error(err))...)
		default:
			logger.Warn("rpc", append(fields, zap.Error(err))...)
		}
		return resp, err
	}
}
