package server

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/test/bufconn"

	"github.com/mablr/trace2e/genproto/m2mpb"
	"github.com/mablr/trace2e/genproto/o2mpb"
	"github.com/mablr/trace2e/genproto/p2mpb"
	"github.com/mablr/trace2e/internal/kernel"
	"github.com/mablr/trace2e/internal/wire"
)

func dialM2MO2M(t *testing.T, node *kernel.Node) (m2mpb.M2MClient, o2mpb.O2MClient) {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	grpcServer := grpc.NewServer(grpc.ForceServerCodec(encoding.GetCodec(wire.Name)))
	m2mpb.RegisterM2MServer(grpcServer, NewM2M(node))
	o2mpb.RegisterO2MServer(grpcServer, NewO2M(node))

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

	return m2mpb.NewM2MClient(conn), o2mpb.NewO2MClient(conn)
}

func resourceID(path string) m2mpb.Id {
	return m2mpb.Id{Node: string(testSelf), Resource: m2mpb.Resource{Kind: m2mpb.ResourceFile, Path: path}}
}

func TestSetDeletedThenIoRequestOnCarrierDenies(t *testing.T) {
	node := newTestNode()
	p2m := dialP2M(t, node)
	_, o2m := dialM2MO2M(t, node)
	ctx := context.Background()

	_, err := p2m.LocalEnroll(ctx, &p2mpb.LocalCt{ProcessID: 1, FileDescriptor: 3, Path: "/tmp/a"})
	require.NoError(t, err)

	_, err = o2m.SetDeleted(ctx, &o2mpb.SetDeleted{Resource: resourceID("/tmp/a")})
	require.NoError(t, err)

	grant, err := p2m.IoRequest(ctx, &p2mpb.IoInfo{ProcessID: 1, FileDescriptor: 3, Flow: p2mpb.FlowOutput})
	require.NoError(t, err)
	assert.Equal(t, wire.DenialGrantID(), grant.ID)
	assert.Equal(t, "deletion", grant.Reason)
}

func TestGetPoliciesReflectsSetLocalConfidentiality(t *testing.T) {
	node := newTestNode()
	_, o2m := dialM2MO2M(t, node)
	ctx := context.Background()

	id := resourceID("/tmp/secret")
	_, err := o2m.SetLocalConfidentiality(ctx, &o2mpb.SetFlag{Resource: id, On: true})
	require.NoError(t, err)

	policies, err := o2m.GetPolicies(ctx, &o2mpb.GetPoliciesRequest{Resource: id})
	require.NoError(t, err)
	assert.True(t, policies.LocalConfidentiality)
	assert.Equal(t, "none", policies.Deleted)
}

func TestEvaluateComplianceAllowsAbsentAncestors(t *testing.T) {
	node := newTestNode()
	m2m, _ := dialM2MO2M(t, node)
	ctx := context.Background()

	resp, err := m2m.EvaluateCompliance(ctx, &m2mpb.EvaluateComplianceRequest{
		Ancestors:   nil,
		Destination: resourceID("/tmp/dest"),
	})
	require.NoError(t, err)
	assert.True(t, resp.Allow)
}
