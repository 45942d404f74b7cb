package transport

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"
)

// TCPTransport frames CSWP requests/responses over a TCP stream: a 4-byte
// little-endian total-length prefix followed by the frame body, read with
// the same read-all discipline as connectionmgr.Manager.readAll in the
// reference IIOD client — the socket is unbuffered for writes and
// bufio-buffered for reads so a short TCP read never loses bytes.
type TCPTransport struct {
	Addr    string
	Timeout time.Duration

	conn net.Conn
	br   *bufio.Reader
}

// NewTCPTransport builds a transport that dials addr on Connect.
func NewTCPTransport(addr string, timeout time.Duration) *TCPTransport {
	return &TCPTransport{Addr: addr, Timeout: timeout}
}

// NewTCPTransportFromConn wraps an already-accepted connection, used
// server-side where the listener has already performed the accept.
func NewTCPTransportFromConn(conn net.Conn) *TCPTransport {
	return &TCPTransport{conn: conn, br: bufio.NewReader(conn)}
}

func (t *TCPTransport) Connect(ctx context.Context) error {
	if t.conn != nil {
		return nil
	}
	var d net.Dialer
	if t.Timeout > 0 {
		d.Timeout = t.Timeout
	}
	conn, err := d.DialContext(ctx, "tcp", t.Addr)
	if err != nil {
		return fmt.Errorf("transport: dial %s: %w", t.Addr, err)
	}
	t.conn = conn
	t.br = bufio.NewReader(conn)
	return nil
}

func (t *TCPTransport) Disconnect() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.br = nil
	return err
}

func (t *TCPTransport) Send(b []byte) error {
	if t.conn == nil {
		return fmt.Errorf("transport: not connected")
	}
	if t.Timeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.Timeout))
	}
	for len(b) > 0 {
		n, err := t.conn.Write(b)
		if err != nil {
			return fmt.Errorf("transport: send: %w", err)
		}
		b = b[n:]
	}
	return nil
}

// Receive reads one CSWP frame: the 4-byte length prefix followed by the
// remainder of the frame, into buf. It returns the total number of bytes
// placed in buf (the length prefix included, matching the wire layout the
// caller's codec expects to decode from offset 0).
func (t *TCPTransport) Receive(buf []byte) (int, error) {
	if t.conn == nil {
		return 0, fmt.Errorf("transport: not connected")
	}
	if t.Timeout > 0 {
		_ = t.conn.SetReadDeadline(time.Now().Add(t.Timeout))
	}
	if len(buf) < 4 {
		return 0, fmt.Errorf("transport: receive buffer too small for length prefix")
	}
	if _, err := io.ReadFull(t.br, buf[:4]); err != nil {
		return 0, fmt.Errorf("transport: read length prefix: %w", err)
	}
	length := binary.LittleEndian.Uint32(buf[:4])
	if int(length) > len(buf) {
		return 0, fmt.Errorf("transport: frame of %d bytes exceeds %d-byte receive buffer", length, len(buf))
	}
	if length < 4 {
		return 0, fmt.Errorf("transport: implausible frame length %d", length)
	}
	if _, err := io.ReadFull(t.br, buf[4:length]); err != nil {
		return 0, fmt.Errorf("transport: read frame body: %w", err)
	}
	return int(length), nil
}
