package server

import (
	"net"
	"testing"

	"github.com/coresight/cswp/backend/membackend"
	"github.com/coresight/cswp/internal/wire"
	"github.com/coresight/cswp/protocol"
	"github.com/coresight/cswp/transport"
)

func newTestServer(t *testing.T) (*Dispatcher, net.Conn, func()) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	bk := membackend.New(membackend.RegisterCatalog{
		"cpu": {
			{ID: 0, Name: "r0", SizeWords: 1, DisplayName: "R0", Description: "general purpose 0"},
			{ID: 15, Name: "pc", SizeWords: 1, DisplayName: "PC", Description: "program counter"},
		},
	}, 4096)
	d := NewDispatcher(transport.NewTCPTransportFromConn(serverConn), bk, Config{})
	return d, clientConn, func() {
		serverConn.Close()
		clientConn.Close()
	}
}

// sendFrame encodes numCmds commands (already-encoded bodies) with the
// given policy and returns the server's response frame.
func sendFrame(t *testing.T, conn net.Conn, policy protocol.ErrorPolicy, bodies [][]byte) *wire.Buffer {
	t.Helper()
	cmd := wire.NewBuffer(64 * 1024)
	cmd.Skip(protocol.FrameLengthSize)
	if err := cmd.PutVarint(uint64(len(bodies))); err != nil {
		t.Fatal(err)
	}
	if err := cmd.PutU8(uint8(policy)); err != nil {
		t.Fatal(err)
	}
	for _, b := range bodies {
		if err := cmd.PutData(b); err != nil {
			t.Fatal(err)
		}
	}
	cmd.Seek(0)
	if err := cmd.PutU32(uint32(cmd.Used())); err != nil {
		t.Fatal(err)
	}
	tr := transport.NewTCPTransportFromConn(conn)
	if err := tr.Send(cmd.Bytes()); err != nil {
		t.Fatal(err)
	}
	rspBuf := make([]byte, 64*1024)
	n, err := tr.Receive(rspBuf)
	if err != nil {
		t.Fatal(err)
	}
	rsp := wire.WrapBuffer(rspBuf[:n])
	rsp.Seek(4)
	return rsp
}

func encodeBody(t *testing.T, fn func(buf *wire.Buffer) error) []byte {
	t.Helper()
	buf := wire.NewBuffer(4096)
	if err := fn(buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestServerInitHandshake(t *testing.T) {
	d, conn, cleanup := newTestServer(t)
	defer cleanup()
	go func() {
		if err := d.serveFrame(); err != nil {
			t.Errorf("serveFrame: %v", err)
		}
	}()

	body := encodeBody(t, func(buf *wire.Buffer) error {
		if err := protocol.EncodeCommandHeader(buf, protocol.MsgInit); err != nil {
			return err
		}
		return protocol.EncodeInitRequest(buf, protocol.ProtocolVersion, "test client")
	})
	rsp := sendFrame(t, conn, protocol.PolicyNone, [][]byte{body})

	numRsps, err := rsp.GetVarint()
	if err != nil || numRsps != 1 {
		t.Fatalf("numRsps = %d, %v", numRsps, err)
	}
	msgType, code, err := protocol.DecodeResponseHeader(rsp)
	if err != nil || msgType != protocol.MsgInit || code != wire.Success {
		t.Fatalf("header: %v %v %v", msgType, code, err)
	}
	_, serverID, _, err := protocol.DecodeInitResponse(rsp, wire.MaxStringLen)
	if err != nil || serverID != defaultServerID {
		t.Fatalf("serverID = %q, %v", serverID, err)
	}
}

func TestServerRegReadWrite(t *testing.T) {
	d, conn, cleanup := newTestServer(t)
	defer cleanup()

	step := func(bodies [][]byte) *wire.Buffer {
		done := make(chan struct{})
		go func() {
			if err := d.serveFrame(); err != nil {
				t.Errorf("serveFrame: %v", err)
			}
			close(done)
		}()
		rsp := sendFrame(t, conn, protocol.PolicyNone, bodies)
		<-done
		return rsp
	}

	setDevices := encodeBody(t, func(buf *wire.Buffer) error {
		if err := protocol.EncodeCommandHeader(buf, protocol.MsgSetDevices); err != nil {
			return err
		}
		return protocol.EncodeSetDevicesRequest(buf, []protocol.DeviceSpec{{Name: "core0", Type: "cpu"}})
	})
	step([][]byte{setDevices})

	open := encodeBody(t, func(buf *wire.Buffer) error {
		if err := protocol.EncodeCommandHeader(buf, protocol.MsgDeviceOpen); err != nil {
			return err
		}
		return protocol.EncodeDeviceOpenRequest(buf, 0)
	})
	step([][]byte{open})

	write := encodeBody(t, func(buf *wire.Buffer) error {
		if err := protocol.EncodeCommandHeader(buf, protocol.MsgRegWrite); err != nil {
			return err
		}
		return protocol.EncodeRegWriteRequest(buf, 0, []protocol.RegisterWrite{{RegID: 0, Value: 0xDEADBEEF}})
	})
	rsp := step([][]byte{write})
	if _, err := rsp.GetVarint(); err != nil {
		t.Fatal(err)
	}
	if _, code, err := protocol.DecodeResponseHeader(rsp); err != nil || code != wire.Success {
		t.Fatalf("write response: %v %v", code, err)
	}

	read := encodeBody(t, func(buf *wire.Buffer) error {
		if err := protocol.EncodeCommandHeader(buf, protocol.MsgRegRead); err != nil {
			return err
		}
		return protocol.EncodeRegReadRequest(buf, 0, []uint32{0})
	})
	rsp = step([][]byte{read})
	if _, err := rsp.GetVarint(); err != nil {
		t.Fatal(err)
	}
	msgType, code, err := protocol.DecodeResponseHeader(rsp)
	if err != nil || msgType != protocol.MsgRegRead || code != wire.Success {
		t.Fatalf("read response header: %v %v %v", msgType, code, err)
	}
	values, err := protocol.DecodeRegReadResponse(rsp)
	if err != nil || len(values) != 1 || values[0] != 0xDEADBEEF {
		t.Fatalf("values = %v, %v", values, err)
	}
}

func TestServerAbortFillsCancelled(t *testing.T) {
	d, conn, cleanup := newTestServer(t)
	defer cleanup()

	// No SET_DEVICES has been issued, so DEVICE_OPEN on device 0 fails.
	open := encodeBody(t, func(buf *wire.Buffer) error {
		if err := protocol.EncodeCommandHeader(buf, protocol.MsgDeviceOpen); err != nil {
			return err
		}
		return protocol.EncodeDeviceOpenRequest(buf, 0)
	})
	term := encodeBody(t, func(buf *wire.Buffer) error {
		return protocol.EncodeCommandHeader(buf, protocol.MsgTerm)
	})

	go func() {
		if err := d.serveFrame(); err != nil {
			t.Errorf("serveFrame: %v", err)
		}
	}()
	rsp := sendFrame(t, conn, protocol.PolicyAbort, [][]byte{open, term})

	numRsps, err := rsp.GetVarint()
	if err != nil || numRsps != 2 {
		t.Fatalf("numRsps = %d, %v", numRsps, err)
	}
	msgType, code, err := protocol.DecodeResponseHeader(rsp)
	if err != nil || msgType != protocol.MsgDeviceOpen || code == wire.Success {
		t.Fatalf("first response: %v %v %v", msgType, code, err)
	}
	if _, err := protocol.DecodeErrorBody(rsp); err != nil {
		t.Fatal(err)
	}
	msgType, code, err = protocol.DecodeResponseHeader(rsp)
	if err != nil || msgType != protocol.MsgNone || code != wire.Cancelled {
		t.Fatalf("second response: %v %v %v, want (None, Cancelled)", msgType, code, err)
	}
}

func TestServerUnknownMessageType(t *testing.T) {
	d, conn, cleanup := newTestServer(t)
	defer cleanup()

	body := encodeBody(t, func(buf *wire.Buffer) error {
		return protocol.EncodeCommandHeader(buf, protocol.MessageType(0x9000))
	})
	go func() {
		if err := d.serveFrame(); err != nil {
			t.Errorf("serveFrame: %v", err)
		}
	}()
	rsp := sendFrame(t, conn, protocol.PolicyContinue, [][]byte{body})
	if _, err := rsp.GetVarint(); err != nil {
		t.Fatal(err)
	}
	msgType, code, err := protocol.DecodeResponseHeader(rsp)
	if err != nil || msgType != protocol.MessageType(0x9000) || code != wire.Unsupported {
		t.Fatalf("response: %v %v %v", msgType, code, err)
	}
}

func TestDispatcherImplementsNotifier(t *testing.T) {
	var _ Notifier = (*Dispatcher)(nil)
}
