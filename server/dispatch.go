package server

import (
	"github.com/coresight/cswp/internal/logging"
	"github.com/coresight/cswp/internal/wire"
	"github.com/coresight/cswp/protocol"
)

// dispatch decodes and handles exactly one command already positioned at
// its body (the command header varint has been consumed by the caller),
// writing either a success response or an error response into d.rsp, and
// returns the result code so the caller can apply abort-on-error policy.
func (d *Dispatcher) dispatch(msgType protocol.MessageType) wire.ResultCode {
	switch msgType {
	case protocol.MsgInit:
		return d.handleInit()
	case protocol.MsgTerm:
		return d.handleTerm()
	case protocol.MsgClientInfo:
		return d.handleClientInfo()
	case protocol.MsgSetDevices:
		return d.handleSetDevices()
	case protocol.MsgGetDevices:
		return d.handleGetDevices()
	case protocol.MsgGetSystemDescription:
		return d.handleGetSystemDescription()
	case protocol.MsgDeviceOpen:
		return d.handleDeviceOpen()
	case protocol.MsgDeviceClose:
		return d.handleDeviceClose()
	case protocol.MsgSetConfig:
		return d.handleSetConfig()
	case protocol.MsgGetConfig:
		return d.handleGetConfig()
	case protocol.MsgGetDeviceCapabilities:
		return d.handleGetDeviceCapabilities()
	case protocol.MsgRegList:
		return d.handleRegList()
	case protocol.MsgRegRead:
		return d.handleRegRead()
	case protocol.MsgRegWrite:
		return d.handleRegWrite()
	case protocol.MsgMemRead:
		return d.handleMemRead()
	case protocol.MsgMemWrite:
		return d.handleMemWrite()
	case protocol.MsgMemPoll:
		return d.handleMemPoll()
	default:
		return d.respondError(msgType, wire.Unsupported, "Unknown message type %d", uint64(msgType))
	}
}

// respondError writes an error response for msgType and returns code, the
// form every handler uses on failure.
func (d *Dispatcher) respondError(msgType protocol.MessageType, code wire.ResultCode, format string, args ...any) wire.ResultCode {
	if err := protocol.EncodeErrorResponse(d.rsp, msgType, code, format, args...); err != nil {
		d.logger.Error("failed to encode error response", logField("error", err))
	}
	return code
}

// respondBackendError turns a Backend error into an error response,
// preferring its carried ResultCode (if any) over Failed.
func (d *Dispatcher) respondBackendError(msgType protocol.MessageType, err error) wire.ResultCode {
	code := wire.CodeOf(err)
	return d.respondError(msgType, code, "%s", err.Error())
}

func (d *Dispatcher) handleInit() wire.ResultCode {
	_, clientID, err := protocol.DecodeInitRequest(d.req)
	if err != nil {
		return d.respondError(protocol.MsgInit, wire.Comms, "malformed INIT request: %s", err.Error())
	}
	if err := d.backend.Init(); err != nil {
		return d.respondBackendError(protocol.MsgInit, err)
	}
	d.logger.Info("client connected", logField("client_id", clientID))
	if err := protocol.EncodeResponseHeader(d.rsp, protocol.MsgInit, wire.Success); err != nil {
		return wire.Failed
	}
	if err := protocol.EncodeInitResponse(d.rsp, protocol.ProtocolVersion, d.serverID, d.serverVersion); err != nil {
		return wire.Failed
	}
	return wire.Success
}

func (d *Dispatcher) handleTerm() wire.ResultCode {
	if err := d.backend.Term(); err != nil {
		return d.respondBackendError(protocol.MsgTerm, err)
	}
	if err := protocol.EncodeResponseHeader(d.rsp, protocol.MsgTerm, wire.Success); err != nil {
		return wire.Failed
	}
	return wire.Success
}

func (d *Dispatcher) handleClientInfo() wire.ResultCode {
	message, err := protocol.DecodeClientInfoRequest(d.req)
	if err != nil {
		return d.respondError(protocol.MsgClientInfo, wire.Comms, "malformed CLIENT_INFO request: %s", err.Error())
	}
	d.logger.Info("client info", logField("message", message))
	if err := protocol.EncodeResponseHeader(d.rsp, protocol.MsgClientInfo, wire.Success); err != nil {
		return wire.Failed
	}
	return wire.Success
}

func (d *Dispatcher) handleSetDevices() wire.ResultCode {
	devices, err := protocol.DecodeSetDevicesRequest(d.req)
	if err != nil {
		return d.respondError(protocol.MsgSetDevices, wire.Comms, "malformed SET_DEVICES request: %s", err.Error())
	}
	if err := d.backend.SetDevices(devices); err != nil {
		return d.respondBackendError(protocol.MsgSetDevices, err)
	}
	if err := protocol.EncodeResponseHeader(d.rsp, protocol.MsgSetDevices, wire.Success); err != nil {
		return wire.Failed
	}
	return wire.Success
}

func (d *Dispatcher) handleGetDevices() wire.ResultCode {
	devices, err := d.backend.GetDevices()
	if err != nil {
		return d.respondBackendError(protocol.MsgGetDevices, err)
	}
	if err := protocol.EncodeResponseHeader(d.rsp, protocol.MsgGetDevices, wire.Success); err != nil {
		return wire.Failed
	}
	if err := protocol.EncodeGetDevicesResponse(d.rsp, devices); err != nil {
		return wire.Failed
	}
	return wire.Success
}

func (d *Dispatcher) handleGetSystemDescription() wire.ResultCode {
	desc, err := d.backend.GetSystemDescription()
	if err != nil {
		return d.respondBackendError(protocol.MsgGetSystemDescription, err)
	}
	if err := protocol.EncodeResponseHeader(d.rsp, protocol.MsgGetSystemDescription, wire.Success); err != nil {
		return wire.Failed
	}
	if err := protocol.EncodeGetSystemDescriptionResponse(d.rsp, desc); err != nil {
		return wire.Failed
	}
	return wire.Success
}

func (d *Dispatcher) handleDeviceOpen() wire.ResultCode {
	devNo, err := protocol.DecodeDeviceOpenRequest(d.req)
	if err != nil {
		return d.respondError(protocol.MsgDeviceOpen, wire.Comms, "malformed DEVICE_OPEN request: %s", err.Error())
	}
	info, err := d.backend.DeviceOpen(devNo)
	if err != nil {
		return d.respondBackendError(protocol.MsgDeviceOpen, err)
	}
	if err := protocol.EncodeResponseHeader(d.rsp, protocol.MsgDeviceOpen, wire.Success); err != nil {
		return wire.Failed
	}
	if err := protocol.EncodeDeviceOpenResponse(d.rsp, info); err != nil {
		return wire.Failed
	}
	return wire.Success
}

func (d *Dispatcher) handleDeviceClose() wire.ResultCode {
	devNo, err := protocol.DecodeDeviceCloseRequest(d.req)
	if err != nil {
		return d.respondError(protocol.MsgDeviceClose, wire.Comms, "malformed DEVICE_CLOSE request: %s", err.Error())
	}
	if err := d.backend.DeviceClose(devNo); err != nil {
		return d.respondBackendError(protocol.MsgDeviceClose, err)
	}
	if err := protocol.EncodeResponseHeader(d.rsp, protocol.MsgDeviceClose, wire.Success); err != nil {
		return wire.Failed
	}
	return wire.Success
}

func (d *Dispatcher) handleSetConfig() wire.ResultCode {
	devNo, name, value, err := protocol.DecodeSetConfigRequest(d.req)
	if err != nil {
		return d.respondError(protocol.MsgSetConfig, wire.Comms, "malformed SET_CONFIG request: %s", err.Error())
	}
	if err := d.backend.SetConfig(devNo, name, value); err != nil {
		return d.respondBackendError(protocol.MsgSetConfig, err)
	}
	if err := protocol.EncodeResponseHeader(d.rsp, protocol.MsgSetConfig, wire.Success); err != nil {
		return wire.Failed
	}
	return wire.Success
}

func (d *Dispatcher) handleGetConfig() wire.ResultCode {
	devNo, name, err := protocol.DecodeGetConfigRequest(d.req)
	if err != nil {
		return d.respondError(protocol.MsgGetConfig, wire.Comms, "malformed GET_CONFIG request: %s", err.Error())
	}
	value, err := d.backend.GetConfig(devNo, name)
	if err != nil {
		return d.respondBackendError(protocol.MsgGetConfig, err)
	}
	if err := protocol.EncodeResponseHeader(d.rsp, protocol.MsgGetConfig, wire.Success); err != nil {
		return wire.Failed
	}
	if err := protocol.EncodeGetConfigResponse(d.rsp, value); err != nil {
		return wire.Failed
	}
	return wire.Success
}

func (d *Dispatcher) handleGetDeviceCapabilities() wire.ResultCode {
	devNo, err := protocol.DecodeGetDeviceCapabilitiesRequest(d.req)
	if err != nil {
		return d.respondError(protocol.MsgGetDeviceCapabilities, wire.Comms, "malformed GET_DEVICE_CAPABILITIES request: %s", err.Error())
	}
	caps, data, err := d.backend.GetDeviceCapabilities(devNo)
	if err != nil {
		return d.respondBackendError(protocol.MsgGetDeviceCapabilities, err)
	}
	if err := protocol.EncodeResponseHeader(d.rsp, protocol.MsgGetDeviceCapabilities, wire.Success); err != nil {
		return wire.Failed
	}
	if err := protocol.EncodeGetDeviceCapabilitiesResponse(d.rsp, caps, data); err != nil {
		return wire.Failed
	}
	return wire.Success
}

func (d *Dispatcher) handleRegList() wire.ResultCode {
	devNo, err := protocol.DecodeRegListRequest(d.req)
	if err != nil {
		return d.respondError(protocol.MsgRegList, wire.Comms, "malformed REG_LIST request: %s", err.Error())
	}
	regs, err := d.backend.RegList(devNo)
	if err != nil {
		return d.respondBackendError(protocol.MsgRegList, err)
	}
	if err := protocol.EncodeResponseHeader(d.rsp, protocol.MsgRegList, wire.Success); err != nil {
		return wire.Failed
	}
	if err := protocol.EncodeRegListResponse(d.rsp, regs); err != nil {
		return wire.Failed
	}
	return wire.Success
}

func (d *Dispatcher) handleRegRead() wire.ResultCode {
	devNo, regIDs, err := protocol.DecodeRegReadRequest(d.req)
	if err != nil {
		return d.respondError(protocol.MsgRegRead, wire.Comms, "malformed REG_READ request: %s", err.Error())
	}
	values, err := d.backend.RegRead(devNo, regIDs)
	if err != nil {
		return d.respondBackendError(protocol.MsgRegRead, err)
	}
	if err := protocol.EncodeResponseHeader(d.rsp, protocol.MsgRegRead, wire.Success); err != nil {
		return wire.Failed
	}
	if err := protocol.EncodeRegReadResponse(d.rsp, values); err != nil {
		return wire.Failed
	}
	return wire.Success
}

func (d *Dispatcher) handleRegWrite() wire.ResultCode {
	devNo, writes, err := protocol.DecodeRegWriteRequest(d.req)
	if err != nil {
		return d.respondError(protocol.MsgRegWrite, wire.Comms, "malformed REG_WRITE request: %s", err.Error())
	}
	if err := d.backend.RegWrite(devNo, writes); err != nil {
		return d.respondBackendError(protocol.MsgRegWrite, err)
	}
	if err := protocol.EncodeResponseHeader(d.rsp, protocol.MsgRegWrite, wire.Success); err != nil {
		return wire.Failed
	}
	return wire.Success
}

func (d *Dispatcher) handleMemRead() wire.ResultCode {
	args, err := protocol.DecodeMemReadRequest(d.req)
	if err != nil {
		return d.respondError(protocol.MsgMemRead, wire.Comms, "malformed MEM_READ request: %s", err.Error())
	}
	data, err := d.backend.MemRead(args)
	if err != nil {
		return d.respondBackendError(protocol.MsgMemRead, err)
	}
	if err := protocol.EncodeResponseHeader(d.rsp, protocol.MsgMemRead, wire.Success); err != nil {
		return wire.Failed
	}
	if err := protocol.EncodeMemReadResponse(d.rsp, data); err != nil {
		return wire.Failed
	}
	return wire.Success
}

func (d *Dispatcher) handleMemWrite() wire.ResultCode {
	args, data, err := protocol.DecodeMemWriteRequest(d.req)
	if err != nil {
		return d.respondError(protocol.MsgMemWrite, wire.Comms, "malformed MEM_WRITE request: %s", err.Error())
	}
	if err := d.backend.MemWrite(args, data); err != nil {
		return d.respondBackendError(protocol.MsgMemWrite, err)
	}
	if err := protocol.EncodeResponseHeader(d.rsp, protocol.MsgMemWrite, wire.Success); err != nil {
		return wire.Failed
	}
	return wire.Success
}

func (d *Dispatcher) handleMemPoll() wire.ResultCode {
	args, mask, value, err := protocol.DecodeMemPollRequest(d.req)
	if err != nil {
		return d.respondError(protocol.MsgMemPoll, wire.Comms, "malformed MEM_POLL request: %s", err.Error())
	}
	data, err := d.backend.MemPoll(args, mask, value)
	if err != nil {
		return d.respondBackendError(protocol.MsgMemPoll, err)
	}
	if err := protocol.EncodeResponseHeader(d.rsp, protocol.MsgMemPoll, wire.Success); err != nil {
		return wire.Failed
	}
	if err := protocol.EncodeMemPollResponse(d.rsp, data); err != nil {
		return wire.Failed
	}
	return wire.Success
}

func logField(key string, value any) logging.Field { return logging.Field{Key: key, Value: value} }
