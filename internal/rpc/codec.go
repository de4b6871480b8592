// Package rpc defines the wire contract between the device agent and the
// remote workspace store: message types, a JSON codec, and hand-written
// client stubs and server registration for the SyncService.
//
// Messages travel as JSON (content-subtype "json"), so no generated
// bindings are required; clients opt in with grpc.CallContentSubtype(Codec{}.Name()).
package rpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// Codec marshals rpc messages as JSON.
type Codec struct{}

func (Codec) Name() string { return "json" }

func (Codec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (Codec) Unmarshal(data []byte, v any) error {
	if v == nil {
		return fmt.Errorf("json codec: unmarshal into nil")
	}
	return json.Unmarshal(data, v)
}

func init() {
	encoding.RegisterCodec(Codec{})
}
