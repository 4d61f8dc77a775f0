// Package api defines the PayrollVault gRPC contract: request/response
// messages, the service descriptor and a typed client. Messages travel as
// JSON under the "json" content-subtype.
package api

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// Codec is the content-subtype clients must request.
const Codec = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return Codec }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
