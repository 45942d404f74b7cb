package server

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/coresight/cswp/internal/logging"
	"github.com/coresight/cswp/internal/wire"
	"github.com/coresight/cswp/protocol"
	"github.com/coresight/cswp/transport"
)

// defaultBufSize sizes the request/response scratch buffers.
const defaultBufSize = 64 * 1024

// Config configures a new Dispatcher.
type Config struct {
	BufferSize int
	Logger     logging.Logger

	// ServerID and ServerVersion are reported in the INIT response.
	ServerID      string
	ServerVersion uint64
}

const (
	defaultServerID      = "CSWP Go Server"
	defaultServerVersion = 1
)

// Dispatcher serves one CSWP connection against a Backend: it reads a
// request frame, dispatches each sub-command, and writes the response
// frame, filling the remaining slots with Cancelled when an abort-policy
// batch hits its first failing sub-command — cswp_server.c's main loop.
type Dispatcher struct {
	transport transport.Transport
	backend   Backend
	logger    logging.Logger

	req *wire.Buffer
	rsp *wire.Buffer

	serverID      string
	serverVersion uint64

	sendMu sync.Mutex // serializes Notify against the main response send
}

// NewDispatcher builds a Dispatcher bound to an already-accepted
// transport and a Backend implementation.
func NewDispatcher(t transport.Transport, backend Backend, cfg Config) *Dispatcher {
	size := cfg.BufferSize
	if size <= 0 {
		size = defaultBufSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	serverID := cfg.ServerID
	if serverID == "" {
		serverID = defaultServerID
	}
	serverVersion := cfg.ServerVersion
	if serverVersion == 0 {
		serverVersion = defaultServerVersion
	}
	return &Dispatcher{
		transport:     t,
		backend:       backend,
		logger:        logger,
		req:           wire.NewBuffer(size),
		rsp:           wire.NewBuffer(size),
		serverID:      serverID,
		serverVersion: serverVersion,
	}
}

// Serve processes frames until the transport is closed or ctx is
// cancelled, returning nil on a clean peer disconnect.
func (d *Dispatcher) Serve(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := d.serveFrame(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// serveFrame processes exactly one request frame.
func (d *Dispatcher) serveFrame() error {
	n, err := d.transport.Receive(d.req.Raw())
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return err
	}
	d.req.SetUsed(n)
	d.req.Seek(4)

	numCmds, err := d.req.GetVarint()
	if err != nil {
		return err
	}
	policy, err := d.req.GetU8()
	if err != nil {
		return err
	}

	d.rsp.Clear()
	d.rsp.Skip(protocol.FrameLengthSize)
	if err := d.rsp.PutVarint(numCmds); err != nil {
		return err
	}

	aborted := false
	for i := uint64(0); i < numCmds; i++ {
		if aborted {
			if err := protocol.EncodeErrorResponse(d.rsp, protocol.MsgNone, wire.Cancelled, "Cancelled"); err != nil {
				return err
			}
			continue
		}
		if d.req.Remaining() == 0 {
			return wire.NewError(wire.Comms, "frame claims %d commands but body is exhausted after %d", numCmds, i)
		}
		msgType, derr := protocol.DecodeCommandHeader(d.req)
		if derr != nil {
			return derr
		}
		code := d.dispatch(msgType)
		if code != wire.Success && protocol.ErrorPolicy(policy) == protocol.PolicyAbort {
			aborted = true
		}
	}

	d.sendMu.Lock()
	defer d.sendMu.Unlock()
	d.rsp.Seek(0)
	if err := d.rsp.PutU32(uint32(d.rsp.Used())); err != nil {
		return err
	}
	return d.transport.Send(d.rsp.Bytes())
}

// Notify implements Notifier by writing an unsolicited ASYNC_MESSAGE frame
// directly to the transport, serialized against the main response send so
// the two never interleave on the wire.
func (d *Dispatcher) Notify(devNo uint64, level protocol.LogLevel, message string) error {
	buf := wire.NewBuffer(defaultBufSize)
	buf.Skip(protocol.FrameLengthSize)
	if err := buf.PutVarint(1); err != nil {
		return err
	}
	if err := protocol.EncodeResponseHeader(buf, protocol.MsgAsyncMessage, wire.Success); err != nil {
		return err
	}
	if err := protocol.EncodeAsyncMessage(buf, devNo, level, message); err != nil {
		return err
	}
	buf.Seek(0)
	if err := buf.PutU32(uint32(buf.Used())); err != nil {
		return err
	}

	d.sendMu.Lock()
	defer d.sendMu.Unlock()
	return d.transport.Send(buf.Bytes())
}
