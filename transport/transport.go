// Package transport defines the four-operation contract that both the
// client and server sessions use to move CSWP frames, plus a TCP binding.
package transport

import "context"

// Transport connects, disconnects, and exchanges whole CSWP frames.
//
// Send must write all of b or return an error. Receive must deliver one
// whole frame per call — a message-oriented transport (USB bulk) satisfies
// this naturally; a stream transport (TCP) is wrapped in a framer that
// reads the 4-byte length prefix then the body, as TCPTransport does below.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Send(b []byte) error
	Receive(buf []byte) (n int, err error)
}
