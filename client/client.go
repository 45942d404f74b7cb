// Package client implements the CSWP session state machine: request
// encoding, batch accumulation, and the transact flush protocol that walks
// queued responses in FIFO order against the commands that produced them.
package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/coresight/cswp/internal/logging"
	"github.com/coresight/cswp/internal/wire"
	"github.com/coresight/cswp/protocol"
	"github.com/coresight/cswp/transport"
)

// defaultBufSize sizes the request/response scratch buffers. A session
// talking to a device with large memory transfers should raise this via
// Config.BufferSize.
const defaultBufSize = 64 * 1024

// headerReserve is the space set aside at the front of the request buffer
// for the 4-byte length prefix plus the varint command count and the
// 1-byte error policy, before any command body is known to exist. The
// frame header is finalized by seeking back into this region once the
// body and its true command count are known, the same trick
// cswp_client_transact uses to avoid a second copy of the body.
const headerReserve = protocol.FrameLengthSize + protocol.MaxFrameHeaderSize

// Config configures a new Client.
type Config struct {
	// BufferSize sizes the request/response scratch buffers. Zero uses
	// defaultBufSize.
	BufferSize int
	Logger     logging.Logger
}

// ServerInfo is the server identity returned by ConnectAndInit.
type ServerInfo struct {
	ProtocolVersion uint64
	ServerID        string
	ServerVersion   uint64
}

type pendingResponse struct {
	msgType  protocol.MessageType
	complete func(rsp *wire.Buffer) error
}

// Client drives one CSWP session over a transport.Transport. It is not
// safe for concurrent use by multiple goroutines: CSWP's batching model
// assumes a single caller accumulating commands before a flush.
type Client struct {
	mu sync.Mutex

	transport transport.Transport
	logger    logging.Logger

	cmd *wire.Buffer
	rsp *wire.Buffer

	accumulating bool
	policy       protocol.ErrorPolicy
	numCmds      uint64
	pending      []pendingResponse

	lastErrorMsg string

	Server ServerInfo
}

// New builds a Client bound to transport t. The transport is not connected
// until ConnectAndInit (or the caller's own Connect) is called.
func New(t transport.Transport, cfg Config) *Client {
	size := cfg.BufferSize
	if size <= 0 {
		size = defaultBufSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		transport: t,
		logger:    logger,
		cmd:       wire.NewBuffer(size),
		rsp:       wire.NewBuffer(size),
	}
	c.resetRequest()
	return c
}

// resetRequest clears the request buffer and reserves the frame-header
// region, leaving the cursor positioned where the first command body
// begins.
func (c *Client) resetRequest() {
	c.cmd.Clear()
	c.cmd.Skip(headerReserve)
	c.numCmds = 0
	c.pending = c.pending[:0]
}

// LastError returns the message carried by the most recent non-Success
// response, mirroring cswp_client_error's session-scoped error buffer.
func (c *Client) LastError() string { return c.lastErrorMsg }

// ConnectAndInit connects the transport (if not already connected) and
// performs the INIT handshake, recording the server's reported protocol
// version and identity.
func (c *Client) ConnectAndInit(ctx context.Context, clientID string) (ServerInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.transport.Connect(ctx); err != nil {
		return ServerInfo{}, err
	}

	if err := protocol.EncodeCommandHeader(c.cmd, protocol.MsgInit); err != nil {
		return ServerInfo{}, err
	}
	if err := protocol.EncodeInitRequest(c.cmd, protocol.ProtocolVersion, clientID); err != nil {
		return ServerInfo{}, err
	}

	var info ServerInfo
	c.pending = append(c.pending, pendingResponse{
		msgType: protocol.MsgInit,
		complete: func(rsp *wire.Buffer) error {
			proto, serverID, version, err := protocol.DecodeInitResponse(rsp, wire.MaxStringLen)
			if err != nil {
				return err
			}
			info = ServerInfo{ProtocolVersion: proto, ServerID: serverID, ServerVersion: version}
			return nil
		},
	})
	c.numCmds = 1

	if _, err := c.transact(); err != nil {
		return ServerInfo{}, err
	}
	c.Server = info
	return info, nil
}

// Term sends TERM and disconnects the transport.
func (c *Client) Term(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := protocol.EncodeCommandHeader(c.cmd, protocol.MsgTerm); err != nil {
		return err
	}
	c.pending = append(c.pending, pendingResponse{msgType: protocol.MsgTerm})
	c.numCmds = 1
	_, err := c.transact()
	if discErr := c.transport.Disconnect(); err == nil {
		err = discErr
	}
	return err
}

// BatchBegin switches the session into batch-accumulation mode: subsequent
// command calls enqueue into the shared request buffer without flushing.
// abortOnError selects PolicyAbort (remaining slots filled with Cancelled
// on the first failure) over PolicyContinue.
func (c *Client) BatchBegin(abortOnError bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accumulating = true
	if abortOnError {
		c.policy = protocol.PolicyAbort
	} else {
		c.policy = protocol.PolicyContinue
	}
}

// BatchEnd flushes the accumulated batch and returns the number of
// sub-commands whose completion callback ran before the walk stopped
// (either because every queued response was processed, or because the
// first error response was hit; under PolicyAbort the server fills the
// slots after it with Cancelled).
func (c *Client) BatchEnd() (opsCompleted int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.accumulating {
		return 0, fmt.Errorf("client: BatchEnd called without a matching BatchBegin")
	}
	opsCompleted, err = c.transact()
	c.accumulating = false
	return opsCompleted, err
}

// enqueue encodes a command's type and body, queues its completion
// callback, and — unless a batch is being accumulated — flushes
// immediately.
func (c *Client) enqueue(msgType protocol.MessageType, encodeBody func(*wire.Buffer) error, complete func(*wire.Buffer) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := protocol.EncodeCommandHeader(c.cmd, msgType); err != nil {
		return err
	}
	if err := encodeBody(c.cmd); err != nil {
		return err
	}
	c.pending = append(c.pending, pendingResponse{msgType: msgType, complete: complete})
	c.numCmds++

	if c.accumulating {
		return nil
	}
	_, err := c.transact()
	return err
}

// transact finalizes the frame header, sends the request, receives the
// response, and walks queued completions in order, stopping at the first
// non-Success response — cswp_client_process_response's documented
// behavior, left unresolved by its own "TODO: continue processing on
// error?" comment. It always clears the pending queue and resets the
// request buffer before returning, matching cswp_client_transact's
// unconditional cleanup regardless of where the response walk stopped.
// The returned int is the number of completions that ran before the walk
// stopped (or returned early on a framing error).
func (c *Client) transact() (int, error) {
	numCmds := c.numCmds
	pending := c.pending
	policy := c.policy
	if !c.accumulating {
		policy = protocol.PolicyNone
	}
	defer func() {
		c.resetRequest()
		c.policy = protocol.PolicyNone
	}()

	hdrLen := 1 + wire.VarintLen(numCmds)
	reqOffset := headerReserve - protocol.FrameLengthSize - hdrLen
	frameLen := c.cmd.Used() - reqOffset

	c.cmd.Seek(reqOffset)
	if err := c.cmd.PutU32(uint32(frameLen)); err != nil {
		return 0, err
	}
	if err := c.cmd.PutVarint(numCmds); err != nil {
		return 0, err
	}
	if err := c.cmd.PutU8(uint8(policy)); err != nil {
		return 0, err
	}

	if err := c.transport.Send(c.cmd.Bytes()[reqOffset:]); err != nil {
		return 0, err
	}

	n, err := c.transport.Receive(c.rsp.Raw())
	if err != nil {
		return 0, err
	}
	c.rsp.SetUsed(n)
	c.rsp.Seek(0)

	reportedLen, err := c.rsp.GetU32()
	if err != nil {
		return 0, err
	}
	if int(reportedLen) > n {
		return 0, wire.NewError(wire.Comms, "response reports %d bytes, received %d", reportedLen, n)
	}
	numRsps, err := c.rsp.GetVarint()
	if err != nil {
		return 0, err
	}
	if numRsps != numCmds {
		return 0, wire.NewError(wire.Comms, "response count %d does not match request count %d", numRsps, numCmds)
	}

	completed := 0
	for _, pr := range pending {
		msgType, code, err := protocol.DecodeResponseHeader(c.rsp)
		if err != nil {
			return completed, err
		}
		if msgType != pr.msgType {
			return completed, wire.NewError(wire.Comms, "unexpected response type %s for request %s", msgType, pr.msgType)
		}
		if code != wire.Success {
			msg, _ := protocol.DecodeErrorBody(c.rsp)
			c.lastErrorMsg = msg
			return completed, &wire.Error{Code: code, Message: msg}
		}
		if pr.complete != nil {
			if err := pr.complete(c.rsp); err != nil {
				return completed, err
			}
		}
		completed++
	}
	return completed, nil
}
