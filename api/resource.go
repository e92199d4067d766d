// Package api defines the node-local and wire-shared domain vocabulary of
// TracE2E: resources, handles, identifiers, and the policy/consent/deletion
// records attached to them. Nothing here owns state; the owning components
// live under internal/.
package api

import "fmt"

// NodeID names a TracE2E middleware instance. Peers are addressed by NodeID
// over M2M; a resource's owning node is the node where it was first enrolled.
type NodeID string

// ResourceKind discriminates the three Resource variants of spec.md §3.
type ResourceKind int

const (
	KindFile ResourceKind = iota
	KindStream
	KindProcess
)

func (k ResourceKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindStream:
		return "stream"
	case KindProcess:
		return "process"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Endpoint is a "host:port" socket pair member, as used by Stream resources.
type Endpoint string

// Resource is the tagged variant described in spec.md §3: a File (absolute
// path), a Stream (ordered local/peer endpoint pair), or a Process
// (pid+starttime+executable). Canonicalization is by-value: two Resources are
// the same resource iff Kind and all populated fields compare equal, which is
// exactly what Go's == on this comparable struct gives us.
type Resource struct {
	Kind ResourceKind

	// Populated iff Kind == KindFile.
	Path string

	// Populated iff Kind == KindStream. The pair is ordered: (local, peer) is
	// a distinct resource identity from (peer, local), matching spec.md's
	// "direction is not recorded; the ordered pair distinguishes identity".
	Local Endpoint
	Peer  Endpoint

	// Populated iff Kind == KindProcess.
	Pid        int32
	StartTime  int64
	Executable string
}

// File constructs a File resource.
func File(path string) Resource { return Resource{Kind: KindFile, Path: path} }

// Stream constructs a Stream resource from the ordered (local, peer) pair.
func Stream(local, peer Endpoint) Resource {
	return Resource{Kind: KindStream, Local: local, Peer: peer}
}

// Process constructs a Process resource.
func Process(pid int32, startTime int64, exe string) Resource {
	return Resource{Kind: KindProcess, Pid: pid, StartTime: startTime, Executable: exe}
}

// Valid reports whether r is a well-formed Resource of its declared Kind.
// Malformed resources (empty path, empty socket halves, non-positive pid)
// are MalformedRequest at the P2M/M2M surfaces (spec.md §7) and must never
// be admitted into the registry or provenance store.
func (r Resource) Valid() bool {
	switch r.Kind {
	case KindFile:
		return r.Path != ""
	case KindStream:
		return r.Local != "" && r.Peer != ""
	case KindProcess:
		return r.Pid > 0 && r.Executable != ""
	default:
		return false
	}
}

func (r Resource) String() string {
	switch r.Kind {
	case KindFile:
		return "file:" + r.Path
	case KindStream:
		return fmt.Sprintf("stream:%s<->%s", r.Local, r.Peer)
	case KindProcess:
		return fmt.Sprintf("process:%d@%d:%s", r.Pid, r.StartTime, r.Executable)
	default:
		return "invalid-resource"
	}
}

// ID is a (node, resource) pair: the globally-unique identity of a resource,
// per spec.md §3 ("A resource identifier is (node id, resource)").
type ID struct {
	Node     NodeID
	Resource Resource
}

func (id ID) String() string { return string(id.Node) + "/" + id.Resource.String() }

// Handle is a (pid, fd) pair local to one node, bound 1→1 to a Resource while
// the fd is open (spec.md §3).
type Handle struct {
	Pid int32
	Fd  int32
}

func (h Handle) String() string { return fmt.Sprintf("%d:%d", h.Pid, h.Fd) }

// Direction of a proposed flow, per spec.md §4.4.
type Direction int

const (
	DirectionInput Direction = iota
	DirectionOutput
)

func (d Direction) String() string {
	if d == DirectionInput {
		return "input"
	}
	return "output"
}
