package server

import (
	"context"
	"strings"
	"time"

	"golang.org/x/net/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/mablr/trace2e/internal/metrics"
)

// LatencyInterceptor buckets every unary call by its full method name and
// resulting gRPC status code into metrics.RPCLatency, and attaches an
// x/net/trace.Trace to the context for the duration of the call so handlers
// can addTrace their own decision points (same trace.FromContext/LazyPrintf
// pairing consumer.Service uses for its own long-lived RPCs).
func LatencyInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		service, method := splitMethod(info.FullMethod)

		tr := trace.New(service, method)
		defer tr.Finish()
		ctx = trace.NewContext(ctx, tr)

		start := time.Now()
		resp, err := handler(ctx, req)

		if err != nil {
			tr.SetError()
			tr.LazyPrintf("error: %v", err)
		}
		metrics.RPCLatency.WithLabelValues(service, method, status.Code(err).String()).Observe(time.Since(start).Seconds())
		return resp, err
	}
}

// addTrace logs format/args against ctx's x/net/trace.Trace, if one is
// attached, mirroring consumer.Service's own addTrace helper.
func addTrace(ctx context.Context, format string, args ...interface{}) {
	if tr, ok := trace.FromContext(ctx); ok {
		tr.LazyPrintf(format, args...)
	}
}

func splitMethod(fullMethod string) (service, method string) {
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.SplitN(fullMethod, "/", 2)
	if len(parts) != 2 {
		return fullMethod, ""
	}
	return parts[0], parts[1]
}
