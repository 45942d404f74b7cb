package protocol

import "github.com/coresight/cswp/internal/wire"

// FrameLengthSize is the width of the little-endian total-length prefix
// that begins every CSWP frame, in both directions.
const FrameLengthSize = 4

// MaxFrameHeaderSize bounds the count+policy header: a varint count can be
// up to 10 bytes plus the 1-byte error policy.
const MaxFrameHeaderSize = 10 + 1

// EncodeCommandHeader writes the varint message type that precedes every
// command or response body.
func EncodeCommandHeader(buf *wire.Buffer, msgType MessageType) error {
	return buf.PutVarint(uint64(msgType))
}

// DecodeCommandHeader reads the varint message type from a command body.
func DecodeCommandHeader(buf *wire.Buffer) (MessageType, error) {
	v, err := buf.GetVarint()
	if err != nil {
		return MsgNone, err
	}
	return MessageType(v), nil
}

// EncodeResponseHeader writes {varint type, varint errorCode}.
func EncodeResponseHeader(buf *wire.Buffer, msgType MessageType, code wire.ResultCode) error {
	if err := buf.PutVarint(uint64(msgType)); err != nil {
		return err
	}
	return buf.PutVarint(uint64(code))
}

// DecodeResponseHeader reads {varint type, varint errorCode}.
func DecodeResponseHeader(buf *wire.Buffer) (MessageType, wire.ResultCode, error) {
	t, err := buf.GetVarint()
	if err != nil {
		return MsgNone, 0, err
	}
	c, err := buf.GetVarint()
	if err != nil {
		return MsgNone, 0, err
	}
	return MessageType(t), wire.ResultCode(c), nil
}

// EncodeErrorResponse writes a full error response: header followed by the
// string errorMessage body.
func EncodeErrorResponse(buf *wire.Buffer, msgType MessageType, code wire.ResultCode, format string, args ...any) error {
	if err := EncodeResponseHeader(buf, msgType, code); err != nil {
		return err
	}
	return buf.PutString(wire.NewError(code, format, args...).Message)
}

// DecodeErrorBody decodes the string errorMessage that follows a non-zero
// error response header.
func DecodeErrorBody(buf *wire.Buffer) (string, error) {
	return buf.GetString(wire.MaxStringLen)
}
