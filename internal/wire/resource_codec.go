// resource_codec.go converts between the domain vocabulary of api and the
// wire shapes of genproto/m2mpb, enforcing the same invariant
// consumer/key_space.go's decoder enforces for ShardSpec/ConsumerSpec: a
// decoded value's embedded identifier must match the identifier that names
// it, never left to silently diverge.
package wire

import (
	"github.com/pkg/errors"

	"github.com/mablr/trace2e/api"
	"github.com/mablr/trace2e/genproto/m2mpb"
)

// DecodeResource converts a wire Resource oneof into its api.Resource
// equivalent, validating the message first.
func DecodeResource(w *m2mpb.Resource) (api.Resource, error) {
	if err := w.Validate(); err != nil {
		return api.Resource{}, err
	}
	switch w.Kind {
	case m2mpb.ResourceFile:
		return api.File(w.Path), nil
	case m2mpb.ResourceStream:
		return api.Stream(api.Endpoint(w.LocalSocket), api.Endpoint(w.PeerSocket)), nil
	case m2mpb.ResourceProcess:
		return api.Process(w.Pid, w.StartTime, w.ExePath), nil
	default:
		return api.Resource{}, errors.Errorf("wire: unrecognized resource kind %d", w.Kind)
	}
}

// EncodeResource converts an api.Resource into its wire representation.
func EncodeResource(r api.Resource) m2mpb.Resource {
	switch r.Kind {
	case api.KindFile:
		return m2mpb.Resource{Kind: m2mpb.ResourceFile, Path: r.Path}
	case api.KindStream:
		return m2mpb.Resource{Kind: m2mpb.ResourceStream, LocalSocket: string(r.Local), PeerSocket: string(r.Peer)}
	case api.KindProcess:
		return m2mpb.Resource{Kind: m2mpb.ResourceProcess, Pid: r.Pid, StartTime: r.StartTime, ExePath: r.Executable}
	default:
		return m2mpb.Resource{}
	}
}

// DecodeID converts a wire Id into its api.ID equivalent. The resource
// embedded within w must itself validate; there is no separate "does this
// id's resource match some external key" check here because, unlike a
// ShardSpec decoded out of an Etcd key, an Id carries its full identity
// inline — but callers that receive an Id as part of a larger message (e.g.
// ComplianceLabel.identifier) should still confirm it matches whatever
// outer key or handle resolution produced it, the same discipline the
// decoder enforces for ShardSpec.Id.
func DecodeID(w *m2mpb.Id) (api.ID, error) {
	if err := w.Validate(); err != nil {
		return api.ID{}, err
	}
	res, err := DecodeResource(&w.Resource)
	if err != nil {
		return api.ID{}, err
	}
	return api.ID{Node: api.NodeID(w.Node), Resource: res}, nil
}

// EncodeID converts an api.ID into its wire representation.
func EncodeID(id api.ID) m2mpb.Id {
	return m2mpb.Id{Node: string(id.Node), Resource: EncodeResource(id.Resource)}
}

// DecodeIDs decodes a slice of wire Ids, failing on the first invalid one.
func DecodeIDs(ws []m2mpb.Id) ([]api.ID, error) {
	out := make([]api.ID, 0, len(ws))
	for i := range ws {
		id, err := DecodeID(&ws[i])
		if err != nil {
			return nil, errors.Wrapf(err, "decoding id at index %d", i)
		}
		out = append(out, id)
	}
	return out, nil
}

// EncodeIDs encodes a slice of api.IDs for the wire.
func EncodeIDs(ids []api.ID) []m2mpb.Id {
	out := make([]m2mpb.Id, len(ids))
	for i, id := range ids {
		out[i] = EncodeID(id)
	}
	return out
}
