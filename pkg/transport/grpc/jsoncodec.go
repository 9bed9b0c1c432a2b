package grpc

import (
    "encoding/json"

    "google.golang.org/grpc/encoding"
)

// codecName is the content subtype negotiated by client and server.
const codecName = "json"

// jsonCodec carries management payloads as JSON so the service needs no
// protobuf codegen; every request/response type already has JSON tags.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error)   { return json.Marshal(v) }
func (jsonCodec) Unmarshal(b []byte, v interface{}) error { return json.Unmarshal(b, v) }
func (jsonCodec) Name() string                            { return codecName }

func init() {
    encoding.RegisterCodec(jsonCodec{})
}
