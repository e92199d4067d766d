// Package server is the top-level runtime concern of a TracE2E middleware
// process: it drives one kernel.Node's lifetime, exposes it as the three
// gRPC services of spec.md §6 (P2M, M2M, O2M), and coordinates graceful
// shutdown the same way consumer.Service does for a gazette consumer — a
// stoppingCh closed once, a GracefulStop drain, and a wait for in-flight
// work to actually finish before returning.
package server

import (
	"context"
	"net"
	"net/http"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/trace"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/mablr/trace2e/genproto/m2mpb"
	"github.com/mablr/trace2e/genproto/o2mpb"
	"github.com/mablr/trace2e/genproto/p2mpb"
	"github.com/mablr/trace2e/internal/kernel"
	"github.com/mablr/trace2e/internal/metrics"
	"github.com/mablr/trace2e/internal/wire"
)

// Service is the runtime wrapper around one kernel.Node: it owns the gRPC
// server the node's three surfaces are registered against, and (optionally)
// the HTTP listener metrics.Handler is served from.
type Service struct {
	node *kernel.Node
	log  *log.Entry

	p2mAddr     string
	m2mAddr     string
	o2mAddr     string
	metricsAddr string // empty disables the metrics listener

	grpcServer *grpc.Server
}

// NewService wires node's P2M/M2M/O2M surfaces onto a single grpc.Server
// (spec.md §6 registers one service per endpoint; nothing prevents sharing
// one listener address across all three, which is what cmd/trace2ed does by
// default) using the trace2e-json codec of internal/wire.
func NewService(node *kernel.Node, listenAddr, metricsAddr string, logger *log.Entry) *Service {
	grpcServer := grpc.NewServer(
		grpc.ForceServerCodec(encoding.GetCodec(wire.Name)),
		grpc.ChainUnaryInterceptor(LatencyInterceptor()),
	)

	p2mpb.RegisterP2MServer(grpcServer, NewP2M(node))
	m2mpb.RegisterM2MServer(grpcServer, NewM2M(node))
	o2mpb.RegisterO2MServer(grpcServer, NewO2M(node))

	return &Service{
		node:        node,
		log:         logger,
		p2mAddr:     listenAddr,
		m2mAddr:     listenAddr,
		o2mAddr:     listenAddr,
		metricsAddr: metricsAddr,
		grpcServer:  grpcServer,
	}
}

// Serve runs the gRPC server (and, if configured, the metrics HTTP server)
// until ctx is cancelled, then drains outstanding RPCs via GracefulStop
// before returning. Mirrors consumer.Service.QueueTasks's
// watch/GracefulStop pairing, generalized from gazette's internal task.Group
// to the importable golang.org/x/sync/errgroup.
func (svc *Service) Serve(ctx context.Context) error {
	lis, err := net.Listen("tcp", svc.p2mAddr)
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return svc.grpcServer.Serve(lis)
	})

	var metricsSrv *http.Server
	if svc.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		// Long-form per-RPC traces recorded by LatencyInterceptor, rendered
		// the same way gazette's own consumer.Service leaves x/net/trace's
		// /debug/requests and /debug/events pages available for operators.
		mux.HandleFunc("/debug/requests", func(w http.ResponseWriter, req *http.Request) {
			trace.Render(w, req, true)
		})
		mux.HandleFunc("/debug/events", func(w http.ResponseWriter, req *http.Request) {
			trace.RenderEvents(w, req, true)
		})
		metricsSrv = &http.Server{Addr: svc.metricsAddr, Handler: mux}

		group.Go(func() error {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()

		// Close the node's stopping channel before we drain the server.
		svc.node.BeginShutdown()

		svc.grpcServer.GracefulStop()
		if metricsSrv != nil {
			return metricsSrv.Close()
		}
		return nil
	})

	return group.Wait()
}

// Stopping returns a channel which signals when the underlying node is in
// the process of shutting down, for callers that need to observe it
// independent of Serve's own context.
func (svc *Service) Stopping() <-chan struct{} { return svc.node.Stopping() }
