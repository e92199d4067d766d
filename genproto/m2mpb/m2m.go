// Package m2mpb holds the middleware-to-middleware wire messages of
// spec.md §6, hand-written in the shape protoc-gen-go would generate from
// proto/m2m/m2m.proto.
package m2mpb

import "github.com/pkg/errors"

// Stream identifies a Stream resource by its ordered socket pair.
type Stream struct {
	LocalSocket string `json:"local_socket"`
	PeerSocket  string `json:"peer_socket"`
}

func (m *Stream) Validate() error {
	if m.LocalSocket == "" || m.PeerSocket == "" {
		return errors.New("m2mpb: Stream sockets must be non-empty")
	}
	return nil
}

// ResourceKind discriminates the Resource oneof on the wire.
type ResourceKind int32

const (
	ResourceFile ResourceKind = iota
	ResourceStream
	ResourceProcess
)

// Resource is the wire oneof {File, Stream, Process} of spec.md §6.
type Resource struct {
	Kind ResourceKind `json:"kind"`

	Path string `json:"path,omitempty"` // Kind == ResourceFile

	LocalSocket string `json:"local_socket,omitempty"` // Kind == ResourceStream
	PeerSocket  string `json:"peer_socket,omitempty"`

	Pid       int32  `json:"pid,omitempty"` // Kind == ResourceProcess
	StartTime int64  `json:"starttime,omitempty"`
	ExePath   string `json:"exe_path,omitempty"`
}

func (m *Resource) Validate() error {
	switch m.Kind {
	case ResourceFile:
		if m.Path == "" {
			return errors.New("m2mpb: Resource(File).path must be non-empty")
		}
	case ResourceStream:
		if m.LocalSocket == "" || m.PeerSocket == "" {
			return errors.New("m2mpb: Resource(Stream) sockets must be non-empty")
		}
	case ResourceProcess:
		if m.Pid <= 0 || m.ExePath == "" {
			return errors.New("m2mpb: Resource(Process) pid/exe_path must be set")
		}
	default:
		return errors.Errorf("m2mpb: Resource.kind %d unrecognized", m.Kind)
	}
	return nil
}

// Id is a (node, resource) pair, per spec.md §6.
type Id struct {
	Node     string   `json:"node"`
	Resource Resource `json:"resource"`
}

func (m *Id) Validate() error {
	if m.Node == "" {
		return errors.New("m2mpb: Id.node must be non-empty")
	}
	return m.Resource.Validate()
}

// ComplianceLabel pairs a resource identifier with its local policy flags.
type ComplianceLabel struct {
	Identifier           Id   `json:"identifier"`
	LocalConfidentiality bool `json:"local_confidentiality"`
	LocalIntegrity       bool `json:"local_integrity"`
}

// Labels bundles a compliance label with the provenance set it was computed
// against.
type Labels struct {
	Compliance ComplianceLabel `json:"compliance"`
	Provenance []Id            `json:"provenance"`
}

// StreamProv pairs a Stream identity with the provenance set to merge onto
// the peer's copy of that stream resource (sync_provenance).
type StreamProv struct {
	LocalSocket string `json:"local_socket"`
	PeerSocket  string `json:"peer_socket"`
	Provenance  []Id   `json:"provenance"`
}

func (m *StreamProv) Validate() error {
	if m.LocalSocket == "" || m.PeerSocket == "" {
		return errors.New("m2mpb: StreamProv sockets must be non-empty")
	}
	return nil
}

// EvaluateComplianceRequest carries the ancestor set to evaluate against a
// destination, per evaluate_compliance(ancestor_set, destination).
type EvaluateComplianceRequest struct {
	Ancestors   []Id `json:"ancestors"`
	Destination Id   `json:"destination"`
}

func (m *EvaluateComplianceRequest) Validate() error { return m.Destination.Validate() }

// Decision is the allow/deny result of evaluate_compliance.
type Decision struct {
	Allow  bool   `json:"allow"`
	Reason string `json:"reason,omitempty"`
}

func (m *Decision) Validate() error { return nil }

// DeletionNotice names a resource marked for deletion, for broadcast_deletion.
type DeletionNotice struct {
	Resource Id `json:"resource"`
}

func (m *DeletionNotice) Validate() error { return m.Resource.Validate() }

// ConsentQuery is the (source, destination) pair that notify_consent routes
// to the resource owner.
type ConsentQuery struct {
	Source      Id `json:"source"`
	Destination Id `json:"destination"`
}

func (m *ConsentQuery) Validate() error {
	if err := m.Source.Validate(); err != nil {
		return err
	}
	return m.Destination.Validate()
}

// ConsentReply carries the owner's decision (or a timeout, surfaced as
// Denied with TimedOut set) back to the requesting peer.
type ConsentReply struct {
	Granted  bool `json:"granted"`
	TimedOut bool `json:"timed_out"`
}

func (m *ConsentReply) Validate() error { return nil }

// Ack is the empty acknowledgement shared across M2M calls that have no
// other result to report.
type Ack struct{}

func (m *Ack) Validate() error { return nil }
