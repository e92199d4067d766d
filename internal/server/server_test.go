package server

import (
	"context"
	"net"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/test/bufconn"

	"github.com/mablr/trace2e/api"
	"github.com/mablr/trace2e/genproto/p2mpb"
	"github.com/mablr/trace2e/internal/consent"
	"github.com/mablr/trace2e/internal/kernel"
	"github.com/mablr/trace2e/internal/peerdial"
	"github.com/mablr/trace2e/internal/policy"
	"github.com/mablr/trace2e/internal/provenance"
	"github.com/mablr/trace2e/internal/registry"
	"github.com/mablr/trace2e/internal/sequencer"
	"github.com/mablr/trace2e/internal/wire"
)

const testSelf api.NodeID = "node-a"

func noPeers(api.NodeID) (string, bool) { return "", false }

// newTestNode builds a *kernel.Node the same way cmd/trace2ed does, minus
// reading flags, for in-process bufconn exercising of the P2M surface.
func newTestNode() *kernel.Node {
	entry := log.NewEntry(log.New())
	reg := registry.New(testSelf, entry)
	seq := sequencer.New(entry)
	prov := provenance.New(testSelf, entry)
	pol := policy.New(entry)
	cons := consent.New(nil, entry)
	peers := peerdial.New(noPeers, entry)
	return kernel.New(testSelf, reg, seq, prov, pol, cons, peers, entry)
}

// dialP2M brings up node's P2M surface on an in-memory bufconn listener and
// returns a connected client plus a teardown func, the same bufconn pattern
// teleport's api/client package uses for its own gRPC service tests.
func dialP2M(t *testing.T, node *kernel.Node) p2mpb.P2MClient {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	grpcServer := grpc.NewServer(grpc.ForceServerCodec(encoding.GetCodec(wire.Name)))
	p2mpb.RegisterP2MServer(grpcServer, NewP2M(node))

	go func() { _ = grpcServer.Serve(lis) }()
	t.Cleanup(grpcServer.Stop)

	dialer := func(context.Context, string) (net.Conn, error) { return lis.Dial() }
	conn, err := grpc.NewClient("passthrough:///bufconn",
		grpc.WithContextDialer(dialer),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(encoding.GetCodec(wire.Name))),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return p2mpb.NewP2MClient(conn)
}

func TestLocalEnrollThenIoRequestGrantsAndReports(t *testing.T) {
	node := newTestNode()
	client := dialP2M(t, node)
	ctx := context.Background()

	_, err := client.LocalEnroll(ctx, &p2mpb.LocalCt{ProcessID: 1, FileDescriptor: 3, Path: "/tmp/a"})
	require.NoError(t, err)

	grant, err := client.IoRequest(ctx, &p2mpb.IoInfo{ProcessID: 1, FileDescriptor: 3, Flow: p2mpb.FlowOutput})
	require.NoError(t, err)
	assert.NotEqual(t, wire.DenialGrantID(), grant.ID)

	_, err = client.IoReport(ctx, &p2mpb.IoResult{ProcessID: 1, FileDescriptor: 3, GrantID: grant.ID, Result: true})
	require.NoError(t, err)
}

func TestIoRequestOnUnenrolledHandleIsDenied(t *testing.T) {
	node := newTestNode()
	client := dialP2M(t, node)
	ctx := context.Background()

	grant, err := client.IoRequest(ctx, &p2mpb.IoInfo{ProcessID: 99, FileDescriptor: 7, Flow: p2mpb.FlowInput})
	require.NoError(t, err)
	assert.Equal(t, wire.DenialGrantID(), grant.ID)
	assert.Equal(t, "unknown_handle", grant.Reason)
}

func TestConflictingEnrollIsRejected(t *testing.T) {
	node := newTestNode()
	client := dialP2M(t, node)
	ctx := context.Background()

	_, err := client.LocalEnroll(ctx, &p2mpb.LocalCt{ProcessID: 1, FileDescriptor: 3, Path: "/tmp/a"})
	require.NoError(t, err)

	_, err = client.LocalEnroll(ctx, &p2mpb.LocalCt{ProcessID: 1, FileDescriptor: 3, Path: "/tmp/b"})
	assert.Error(t, err)
}
