package grpcx

import (
	"context"
	"strings"

	"github.com/md-rashed-zaman/meetslot/libs/httpx"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

var requestIDKey = strings.ToLower(httpx.RequestIDHeader)

// NewServer builds a gRPC server with tracing and request-id propagation installed.
func NewServer(extra ...grpc.ServerOption) *grpc.Server {
	opts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(requestIDInterceptor),
	}
	return grpc.NewServer(append(opts, extra...)...)
}

// requestIDInterceptor shares the HTTP request-id context slot, so handlers and loggers
// read the id the same way on both transports.
func requestIDInterceptor(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	var id string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(requestIDKey); len(vals) > 0 {
			id = vals[0]
		}
	}
	id = httpx.AcceptRequestID(id)
	_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDKey, id))
	return handler(httpx.ContextWithRequestID(ctx, id), req)
}
