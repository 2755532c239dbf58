// Package rpc carries gRPC plumbing shared by services that exchange plain
// JSON messages instead of generated protobuf types.
package rpc

import (
	"bytes"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the content-subtype clients select with CallOption().
const CodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }
func (jsonCodec) Name() string                          { return CodecName }

// Unmarshal rejects unknown fields, matching httpx.Decode.
func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// CallOption makes a client call use the JSON codec.
func CallOption() grpc.CallOption {
	return grpc.CallContentSubtype(CodecName)
}
