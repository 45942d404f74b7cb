// Package protocol implements the CSWP command catalog: the message-type
// and capability constants and the per-command encode/decode functions that
// sit on top of the internal/wire codec. Message-type IDs and result codes
// are part of the wire ABI and must not be renumbered.
package protocol

import "github.com/coresight/cswp/internal/wire"

// ProtocolVersion is the CSWP protocol version implemented by this module.
const ProtocolVersion = 1

// DefaultStringCap bounds string decodes that have no caller-owned
// destination buffer to validate against (device/register names, config
// keys), matching the server reference implementation's 256-byte default
// for stack-sized command arguments.
const DefaultStringCap = 256

// MessageType identifies a CSWP command or response.
type MessageType uint64

const (
	MsgNone MessageType = 0x0000

	MsgInit                  MessageType = 0x0001
	MsgTerm                  MessageType = 0x0002
	MsgClientInfo            MessageType = 0x0005
	MsgSetDevices            MessageType = 0x0010
	MsgGetDevices            MessageType = 0x0011
	MsgGetSystemDescription  MessageType = 0x0012
	MsgDeviceOpen            MessageType = 0x0100
	MsgDeviceClose           MessageType = 0x0101
	MsgSetConfig             MessageType = 0x0102
	MsgGetConfig             MessageType = 0x0103
	MsgGetDeviceCapabilities MessageType = 0x0104
	MsgRegList               MessageType = 0x0200
	MsgRegRead               MessageType = 0x0201
	MsgRegWrite              MessageType = 0x0202
	MsgMemRead               MessageType = 0x0300
	MsgMemWrite              MessageType = 0x0301
	MsgMemPoll               MessageType = 0x0302
	MsgAsyncMessage          MessageType = 0x1000

	MsgImplementationDefinedBegin MessageType = 0x8000
	MsgImplementationDefinedEnd   MessageType = 0xFFFF
)

func (m MessageType) String() string {
	switch m {
	case MsgNone:
		return "None"
	case MsgInit:
		return "Init"
	case MsgTerm:
		return "Term"
	case MsgClientInfo:
		return "ClientInfo"
	case MsgSetDevices:
		return "SetDevices"
	case MsgGetDevices:
		return "GetDevices"
	case MsgGetSystemDescription:
		return "GetSystemDescription"
	case MsgDeviceOpen:
		return "DeviceOpen"
	case MsgDeviceClose:
		return "DeviceClose"
	case MsgSetConfig:
		return "SetConfig"
	case MsgGetConfig:
		return "GetConfig"
	case MsgGetDeviceCapabilities:
		return "GetDeviceCapabilities"
	case MsgRegList:
		return "RegList"
	case MsgRegRead:
		return "RegRead"
	case MsgRegWrite:
		return "RegWrite"
	case MsgMemRead:
		return "MemRead"
	case MsgMemWrite:
		return "MemWrite"
	case MsgMemPoll:
		return "MemPoll"
	case MsgAsyncMessage:
		return "AsyncMessage"
	default:
		return "Unknown"
	}
}

// ErrorPolicy controls batch-level behavior when a sub-command fails.
type ErrorPolicy uint8

const (
	// PolicyNone marks a non-batched, single-command transaction.
	PolicyNone ErrorPolicy = 0
	// PolicyContinue attempts every sub-command independently.
	PolicyContinue ErrorPolicy = 1
	// PolicyAbort halts on the first failing sub-command and fills the
	// remaining response slots with Cancelled.
	PolicyAbort ErrorPolicy = 2
)

func (p ErrorPolicy) String() string {
	switch p {
	case PolicyNone:
		return "None"
	case PolicyContinue:
		return "Continue"
	case PolicyAbort:
		return "Abort"
	default:
		return "Unknown"
	}
}

// AccessSize is the element width for a memory operation.
type AccessSize uint64

const (
	AccessDefault AccessSize = 0
	Access8       AccessSize = 1
	Access16      AccessSize = 2
	Access32      AccessSize = 3
	Access64      AccessSize = 4
)

// Memory access flag bits. Bits above MemPollCheckLast are transport/AP
// specific and passed through opaquely by the core protocol.
const (
	MemNoAddrInc     uint64 = 1 << 0
	MemPollMatchNE   uint64 = 1 << 1
	MemPollCheckLast uint64 = 1 << 2
)

// Device capability bits reported by GET_DEVICE_CAPABILITIES.
const (
	CapReg     uint64 = 0x1
	CapMem     uint64 = 0x2
	CapMemPoll uint64 = 0x200
)

// DeviceSpec names and types a device as set by SET_DEVICES / listed by
// GET_DEVICES.
type DeviceSpec struct {
	Name string
	Type string
}

// RegisterInfo describes one register exposed by an opened device.
type RegisterInfo struct {
	ID          uint32
	Name        string
	SizeWords   uint32
	DisplayName string
	Description string
}

// RegisterWrite pairs a register ID with the value to write to it.
type RegisterWrite struct {
	RegID uint32
	Value uint32
}

// SystemDescription is the optional SDF-format system description blob
// returned by GET_SYSTEM_DESCRIPTION.
type SystemDescription struct {
	Format uint64
	Data   []byte
}

// LogLevel classifies an ASYNC_MESSAGE notification's severity.
type LogLevel uint64

const (
	LogError LogLevel = 0
	LogWarn  LogLevel = 1
	LogInfo  LogLevel = 2
	LogDebug LogLevel = 3
)

// Error adapts a wire.ResultCode/message pair to an error. Kept as a thin
// alias so callers can use protocol.Error uniformly across codec failures
// and decoded server error bodies.
type Error = wire.Error

// NewError builds a protocol-level error with the given result code.
func NewError(code wire.ResultCode, format string, args ...any) *Error {
	return wire.NewError(code, format, args...)
}
