// Package api defines the settleup RPC surface: request and response messages,
// Connect handlers for the server side and typed clients for callers.
//
// Messages are plain Go structs carried as JSON, so any HTTP client can call a
// procedure with a POST of Content-Type application/json to its path, e.g.
// /settleup.v1.GroupService/GetGroupBalances.
package api

import (
	"encoding/json"
	"fmt"

	"connectrpc.com/connect"
)

// CodecName is the Connect codec name, selected by Content-Type application/json.
const CodecName = "json"

// Codec marshals messages with encoding/json. It replaces Connect's protojson
// codec of the same name, which only accepts proto.Message values.
type Codec struct{}

var _ connect.Codec = Codec{}

func (Codec) Name() string { return CodecName }

func (Codec) Marshal(msg any) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", msg, err)
	}
	return b, nil
}

func (Codec) Unmarshal(data []byte, msg any) error {
	// Connect sends an empty body for messages with no fields set
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("failed to unmarshal %T: %w", msg, err)
	}
	return nil
}

func handlerOptions(opts []connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)
}

func clientOptions(opts []connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
}
