package wire

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// Name is registered as the gRPC codec name and negotiated via the
// "grpc-encoding"/content-subtype mechanism. Using a name other than
// "proto" means existing protobuf-codec assumptions elsewhere in the
// process (e.g. reflection, default codec) are left untouched.
const Name = "trace2e-json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// jsonCodec implements encoding.Codec by marshalling messages as JSON
// instead of the protobuf wire format, the same Marshal/Unmarshal split
// message/json_framing.go's jsonFraming keeps for its own line-delimited
// JSON encoding of journal content, adapted here to gRPC's per-RPC codec
// contract (one message per Marshal/Unmarshal call, no line framing).
type jsonCodec struct{}

func (jsonCodec) Name() string { return Name }

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal %T: %w", v, err)
	}
	return b, nil
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("wire: unmarshal %T: %w", v, err)
	}
	if val, ok := v.(Validator); ok {
		return val.Validate()
	}
	return nil
}
