// Package admin exposes a small gRPC control surface over the master's
// state machine: Status, Reload (HUP), Reopen (USR1), and Upgrade
// (USR2), served on a loopback unix socket so an operator or deploy
// tool can drive a reconfigure without shelling in to send a signal.
//
// grpc-go needs protoc-generated stubs for its usual Marshal/Unmarshal
// path; this environment has no protoc available, so instead of
// vendoring generated code this package hand-writes the
// grpc.ServiceDesc a generated *_grpc.pb.go would normally produce and
// swaps the server's wire codec for plain JSON via grpc.ForceServerCodec
// — genuine grpc-go usage (HTTP/2 framing,
// streaming-capable transport, the same Dial/Serve API any other gRPC
// service uses), just without protobuf's binary encoding.
package admin

import "encoding/json"

// jsonCodec implements encoding.Codec by delegating to encoding/json.
// It is not registered as a content-subtype; the server installs it
// with grpc.ForceServerCodec, so a client must send JSON-encoded messages.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return "json" }
