// Package server implements the CSWP server-side dispatch loop: decoding
// a request frame, routing each command to a pluggable Backend, and
// framing the responses (including the abort-on-error Cancelled fill-in).
package server

import "github.com/coresight/cswp/protocol"

// Backend is the device-access surface a CSWP server dispatches commands
// onto. It mirrors cswp_server_impl.h's capability set, adapted to
// explicit Go error returns in place of out-parameter buffers and
// CSWP_RESULT_T returns.
type Backend interface {
	// Init is called each time the dispatcher handles an INIT command.
	// The dispatcher does not require INIT before other commands.
	Init() error
	// Term is called when the client sends TERM, before the connection
	// is torn down.
	Term() error

	SetDevices(devices []protocol.DeviceSpec) error
	GetDevices() ([]protocol.DeviceSpec, error)
	GetSystemDescription() (protocol.SystemDescription, error)

	DeviceOpen(devNo uint64) (deviceInfo string, err error)
	DeviceClose(devNo uint64) error

	SetConfig(devNo uint64, name, value string) error
	GetConfig(devNo uint64, name string) (string, error)

	GetDeviceCapabilities(devNo uint64) (capabilities, capabilityData uint64, err error)

	// RegList returns devNo's register catalog, building it lazily on
	// first call per cswp_server_commands.c's register_list_build.
	RegList(devNo uint64) ([]protocol.RegisterInfo, error)
	RegRead(devNo uint64, regIDs []uint32) ([]uint32, error)
	RegWrite(devNo uint64, writes []protocol.RegisterWrite) error

	MemRead(args protocol.MemArgs) ([]byte, error)
	MemWrite(args protocol.MemArgs, data []byte) error
	// MemPoll repeatedly samples memory per args until it matches
	// mask/value (or, with MemPollMatchNE, until it stops matching) or
	// args.Tries is exhausted, returning the last-sampled data either way.
	MemPoll(args protocol.MemPollArgs, mask, value []byte) ([]byte, error)
}

// Notifier lets a Backend push an unsolicited ASYNC_MESSAGE to the client
// between request/response cycles. The dispatcher implements it directly
// against the connection's transport; nothing in the core frame loop
// emits ASYNC_MESSAGE on its own.
type Notifier interface {
	Notify(devNo uint64, level protocol.LogLevel, message string) error
}
