package server

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/proto"
)

// codec carries protobuf messages as protobuf and everything else as JSON,
// so plain Go request structs and the standard protobuf services (health,
// reflection) share one server.
type codec struct{}

// Codec returns the codec the server is forced to use. Clients of the
// JSON-bodied services pass it with grpc.ForceCodec.
func Codec() encoding.Codec { return codec{} }

func (codec) Marshal(v any) ([]byte, error) {
	if m, ok := v.(proto.Message); ok {
		return proto.Marshal(m)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	return b, nil
}

func (codec) Unmarshal(data []byte, v any) error {
	if m, ok := v.(proto.Message); ok {
		return proto.Unmarshal(data, m)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return nil
}

// Name keeps the default content-subtype so stock gRPC clients are accepted.
func (codec) Name() string { return "proto" }
