// Package peerdial manages this node's outbound M2M connections: one lazily
// established grpc.ClientConn per peer NodeID, kept in a small pool so
// repeated M2M calls (reserve_remote, sync_provenance, evaluate_compliance,
// broadcast_deletion, notify_consent) to the same peer reuse a connection
// instead of redialing.
//
// MapGRPCCtxErr is carried over from broker/client/reader.go's helper of the
// same purpose: gRPC surfaces context cancellation/deadline as a status code
// rather than the original context.Context error, and callers up the stack
// want to compare against context.Canceled/context.DeadlineExceeded directly.
package peerdial

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mablr/trace2e/api"
)

// Resolver maps a peer NodeID to a dialable network address. The set of
// peers is small and flag/config-provided (spec.md §6: "Default listen
// endpoint ... configurable"), not subject to distributed membership.
type Resolver func(api.NodeID) (addr string, ok bool)

// Dialer owns one lazily-dialed grpc.ClientConn per peer.
type Dialer struct {
	resolve  Resolver
	log      *log.Entry
	dialOpts []grpc.DialOption

	mu    sync.Mutex
	conns map[api.NodeID]*grpc.ClientConn
}

// New returns a Dialer using resolve to map peer ids to addresses, and opts
// applied to every dial (e.g. transport credentials).
func New(resolve Resolver, logger *log.Entry, opts ...grpc.DialOption) *Dialer {
	return &Dialer{
		resolve: resolve,
		log:     logger,
		dialOpts: append([]grpc.DialOption{
			grpc.WithConnectParams(grpc.ConnectParams{Backoff: backoff.DefaultConfig}),
		}, opts...),
		conns: make(map[api.NodeID]*grpc.ClientConn),
	}
}

// ErrUnknownPeer is returned when resolve has no address for the requested peer.
var ErrUnknownPeer = errors.New("no known address for peer node")

// Conn returns the (possibly newly dialed) connection to peer.
func (d *Dialer) Conn(peer api.NodeID) (*grpc.ClientConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cc, ok := d.conns[peer]; ok {
		return cc, nil
	}

	addr, ok := d.resolve(peer)
	if !ok {
		return nil, ErrUnknownPeer
	}

	cc, err := grpc.Dial(addr, d.dialOpts...)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing peer %s at %s", peer, addr)
	}
	d.conns[peer] = cc
	d.log.WithFields(log.Fields{"peer": peer, "addr": addr}).Info("peerdial: connection established")
	return cc, nil
}

// KnownPeers returns the peer ids currently holding a dialed connection.
// Used by operations that must fan out to "every peer we talk to" (e.g.
// broadcast_deletion) absent a precise reverse index of who references a
// given resource.
func (d *Dialer) KnownPeers() []api.NodeID {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]api.NodeID, 0, len(d.conns))
	for peer := range d.conns {
		out = append(out, peer)
	}
	return out
}

// Close tears down every pooled connection, for use during node shutdown.
func (d *Dialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var first error
	for peer, cc := range d.conns {
		if err := cc.Close(); err != nil && first == nil {
			first = errors.Wrapf(err, "closing connection to peer %s", peer)
		}
		delete(d.conns, peer)
	}
	return first
}

// MapGRPCCtxErr returns ctx.Err() iff err represents a gRPC status whose
// code matches ctx.Err(), unwrapping gRPC's context-error re-encoding back
// to the original context package sentinel. M2M callers use this so a
// cancelled/timed-out evaluate_compliance or sync_provenance call is
// reported the same way a local ctx.Done() would be, rather than as an
// opaque gRPC status.
func MapGRPCCtxErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() == context.DeadlineExceeded && status.Code(err) == codes.DeadlineExceeded {
		return ctx.Err()
	}
	if ctx.Err() == context.Canceled && status.Code(err) == codes.Canceled {
		return ctx.Err()
	}
	return err
}
