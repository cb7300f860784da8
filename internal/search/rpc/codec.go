// Package rpc implements the leaf-scan gRPC service used by the search
// coordinator to dispatch ScanPlans to querier nodes. Generated
// protobuf stubs need a protoc toolchain this module does not assume
// is available at build time, so the wire format is plain JSON framed
// by the standard gRPC codec interface instead of a .proto schema; see
// DESIGN.md.
package rpc

import (
	"github.com/bytedance/sonic"
	"google.golang.org/grpc/encoding"
)

const codecName = "json"

// jsonCodec implements encoding.Codec (registered process-wide under
// "json") using sonic, the same JSON library the rest of this module
// uses for hot-path encode/decode.
type jsonCodec struct{}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

func (jsonCodec) Name() string { return codecName }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return sonic.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}
