// Package p2mpb holds the process-to-middleware wire messages of spec.md
// §6, hand-written in the shape protoc-gen-go would generate from
// proto/p2m/p2m.proto, since this tree is built without running protoc.
// Field names and types are bit-exact with spec.md's description; grant ids
// are carried as decimal strings of an underlying uint256,
// since protobuf (and this JSON wire codec) has no native 128-bit integer.
package p2mpb

import (
	"github.com/pkg/errors"
)

// Flow mirrors spec.md §6's IoInfo.flow enum. NONE is accepted on the wire
// for compatibility with older client variants but is never valid input to
// io_request.
type Flow int32

const (
	FlowNone Flow = iota
	FlowInput
	FlowOutput
)

// LocalCt enrolls a local file descriptor against a filesystem path.
type LocalCt struct {
	ProcessID      int32  `json:"process_id"`
	FileDescriptor int32  `json:"file_descriptor"`
	Path           string `json:"path"`
}

func (m *LocalCt) Validate() error {
	if m.FileDescriptor < 0 {
		return errors.New("p2mpb: LocalCt.file_descriptor must be >= 0")
	}
	if m.Path == "" {
		return errors.New("p2mpb: LocalCt.path must be non-empty")
	}
	return nil
}

// RemoteCt enrolls a local file descriptor against a socket pair.
type RemoteCt struct {
	ProcessID      int32  `json:"process_id"`
	FileDescriptor int32  `json:"file_descriptor"`
	LocalSocket    string `json:"local_socket"`
	PeerSocket     string `json:"peer_socket"`
}

func (m *RemoteCt) Validate() error {
	if m.FileDescriptor < 0 {
		return errors.New("p2mpb: RemoteCt.file_descriptor must be >= 0")
	}
	if m.LocalSocket == "" || m.PeerSocket == "" {
		return errors.New("p2mpb: RemoteCt sockets must be non-empty")
	}
	return nil
}

// IoInfo requests a reservation + compliance decision for a direction of
// flow on an already-enrolled handle.
type IoInfo struct {
	ProcessID      int32 `json:"process_id"`
	FileDescriptor int32 `json:"file_descriptor"`
	Flow           Flow  `json:"flow"`
}

func (m *IoInfo) Validate() error {
	if m.Flow != FlowInput && m.Flow != FlowOutput {
		return errors.New("p2mpb: IoInfo.flow must be INPUT or OUTPUT")
	}
	return nil
}

// IoResult reports the outcome of an I/O operation performed under a grant,
// so the middleware can update provenance and release the reservation.
type IoResult struct {
	ProcessID      int32  `json:"process_id"`
	FileDescriptor int32  `json:"file_descriptor"`
	GrantID        string `json:"grant_id"`
	Result         bool   `json:"result"`
}

func (m *IoResult) Validate() error {
	if m.GrantID == "" {
		return errors.New("p2mpb: IoResult.grant_id must be non-empty")
	}
	return nil
}

// Grant carries the decimal-string encoded u128 grant id, or the denial
// sentinel (max representable u128 value) if the flow was denied.
type Grant struct {
	ID string `json:"id"`

	// Reason is an observability-only field (spec.md §9 Open Question
	// resolution 2): it never substitutes for checking ID against the
	// sentinel, but callers who want to log *why* a flow was denied can.
	Reason string `json:"reason,omitempty"`
}

func (m *Grant) Validate() error {
	if m.ID == "" {
		return errors.New("p2mpb: Grant.id must be non-empty")
	}
	return nil
}

// Ack is the empty acknowledgement returned by local_enroll, remote_enroll,
// and io_report.
type Ack struct{}

func (m *Ack) Validate() error { return nil }
