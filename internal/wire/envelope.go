// Package wire defines the on-the-wire message contract shared by the
// P2M/M2M/O2M surfaces and a JSON codec that satisfies it over gRPC.
//
// spec.md §1 treats "the on-wire serialization framework choice" as an
// external concern; this package keeps the message *shapes* of spec.md §6
// fixed (same field names and types) while choosing gRPC's codec extension
// point (google.golang.org/grpc/encoding) over the default protobuf-wire
// codec, so the transport stays gRPC without depending on generated
// descriptor machinery. Validator is carried over from message/interfaces.go's
// Validator alias: any request/response type that can check itself is
// rejected before it reaches a handler.
package wire

// Validator is implemented by any genproto message capable of checking its
// own well-formedness before a handler ever sees it — the same contract
// message.Validator(=pb.Validator) gives gazette's generated protocol types.
type Validator interface {
	Validate() error
}
