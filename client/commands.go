package client

import (
	"context"

	"github.com/coresight/cswp/internal/wire"
	"github.com/coresight/cswp/protocol"
)

// ClientInfo sends a free-form diagnostic message to the server.
func (c *Client) ClientInfo(ctx context.Context, message string) error {
	return c.enqueue(protocol.MsgClientInfo,
		func(buf *wire.Buffer) error { return protocol.EncodeClientInfoRequest(buf, message) },
		nil,
	)
}

// SetDevices configures the device list the server should expose for the
// remainder of the session.
func (c *Client) SetDevices(ctx context.Context, devices []protocol.DeviceSpec) error {
	return c.enqueue(protocol.MsgSetDevices,
		func(buf *wire.Buffer) error { return protocol.EncodeSetDevicesRequest(buf, devices) },
		nil,
	)
}

// DevicesResult carries GetDevices's decoded device list. A batched call
// populates it only once BatchEnd has returned without error.
type DevicesResult struct {
	Devices []protocol.DeviceSpec
}

// GetDevices lists the devices currently configured on the server.
func (c *Client) GetDevices(ctx context.Context) (*DevicesResult, error) {
	res := &DevicesResult{}
	err := c.enqueue(protocol.MsgGetDevices,
		func(buf *wire.Buffer) error { return nil },
		func(rsp *wire.Buffer) error {
			devices, err := protocol.DecodeGetDevicesResponse(rsp)
			if err != nil {
				return err
			}
			res.Devices = devices
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// SystemDescriptionResult carries GetSystemDescription's decoded body.
type SystemDescriptionResult struct {
	Description protocol.SystemDescription
}

// GetSystemDescription retrieves the optional SDF-format system
// description blob.
func (c *Client) GetSystemDescription(ctx context.Context) (*SystemDescriptionResult, error) {
	res := &SystemDescriptionResult{}
	err := c.enqueue(protocol.MsgGetSystemDescription,
		func(buf *wire.Buffer) error { return nil },
		func(rsp *wire.Buffer) error {
			desc, err := protocol.DecodeGetSystemDescriptionResponse(rsp)
			if err != nil {
				return err
			}
			res.Description = desc
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// DeviceOpenResult carries DeviceOpen's decoded device-info string.
type DeviceOpenResult struct {
	DeviceInfo string
}

// DeviceOpen opens devNo for register/memory access.
func (c *Client) DeviceOpen(ctx context.Context, devNo uint64) (*DeviceOpenResult, error) {
	res := &DeviceOpenResult{}
	err := c.enqueue(protocol.MsgDeviceOpen,
		func(buf *wire.Buffer) error { return protocol.EncodeDeviceOpenRequest(buf, devNo) },
		func(rsp *wire.Buffer) error {
			info, err := protocol.DecodeDeviceOpenResponse(rsp, wire.MaxStringLen)
			if err != nil {
				return err
			}
			res.DeviceInfo = info
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// DeviceClose closes a previously opened device.
func (c *Client) DeviceClose(ctx context.Context, devNo uint64) error {
	return c.enqueue(protocol.MsgDeviceClose,
		func(buf *wire.Buffer) error { return protocol.EncodeDeviceCloseRequest(buf, devNo) },
		nil,
	)
}

// SetConfig sets a device (or devNo==0 global) configuration item.
func (c *Client) SetConfig(ctx context.Context, devNo uint64, name, value string) error {
	return c.enqueue(protocol.MsgSetConfig,
		func(buf *wire.Buffer) error { return protocol.EncodeSetConfigRequest(buf, devNo, name, value) },
		nil,
	)
}

// ConfigResult carries GetConfig's decoded value.
type ConfigResult struct {
	Value string
}

// GetConfig reads a device (or devNo==0 global) configuration item.
func (c *Client) GetConfig(ctx context.Context, devNo uint64, name string) (*ConfigResult, error) {
	res := &ConfigResult{}
	err := c.enqueue(protocol.MsgGetConfig,
		func(buf *wire.Buffer) error { return protocol.EncodeGetConfigRequest(buf, devNo, name) },
		func(rsp *wire.Buffer) error {
			value, err := protocol.DecodeGetConfigResponse(rsp, wire.MaxStringLen)
			if err != nil {
				return err
			}
			res.Value = value
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// CapabilitiesResult carries GetDeviceCapabilities's decoded bitmask.
type CapabilitiesResult struct {
	Capabilities   uint64
	CapabilityData uint64
}

// GetDeviceCapabilities reports the capability bitmask for devNo.
func (c *Client) GetDeviceCapabilities(ctx context.Context, devNo uint64) (*CapabilitiesResult, error) {
	res := &CapabilitiesResult{}
	err := c.enqueue(protocol.MsgGetDeviceCapabilities,
		func(buf *wire.Buffer) error { return protocol.EncodeGetDeviceCapabilitiesRequest(buf, devNo) },
		func(rsp *wire.Buffer) error {
			caps, data, err := protocol.DecodeGetDeviceCapabilitiesResponse(rsp)
			if err != nil {
				return err
			}
			res.Capabilities, res.CapabilityData = caps, data
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// RegListResult carries RegList's decoded register catalog.
type RegListResult struct {
	Registers []protocol.RegisterInfo
}

// RegList lists the registers devNo exposes, building the catalog lazily
// on the server the first time it is requested.
func (c *Client) RegList(ctx context.Context, devNo uint64) (*RegListResult, error) {
	res := &RegListResult{}
	err := c.enqueue(protocol.MsgRegList,
		func(buf *wire.Buffer) error { return protocol.EncodeRegListRequest(buf, devNo) },
		func(rsp *wire.Buffer) error {
			regs, err := protocol.DecodeRegListResponse(rsp)
			if err != nil {
				return err
			}
			res.Registers = regs
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// RegReadResult carries RegRead's decoded register values, in the same
// order as the requested register IDs.
type RegReadResult struct {
	Values []uint32
}

// RegRead reads the given register IDs on devNo.
func (c *Client) RegRead(ctx context.Context, devNo uint64, regIDs []uint32) (*RegReadResult, error) {
	res := &RegReadResult{}
	err := c.enqueue(protocol.MsgRegRead,
		func(buf *wire.Buffer) error { return protocol.EncodeRegReadRequest(buf, devNo, regIDs) },
		func(rsp *wire.Buffer) error {
			values, err := protocol.DecodeRegReadResponse(rsp)
			if err != nil {
				return err
			}
			res.Values = values
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// RegWrite writes the given register/value pairs on devNo.
func (c *Client) RegWrite(ctx context.Context, devNo uint64, writes []protocol.RegisterWrite) error {
	return c.enqueue(protocol.MsgRegWrite,
		func(buf *wire.Buffer) error { return protocol.EncodeRegWriteRequest(buf, devNo, writes) },
		nil,
	)
}

// MemReadResult carries MemRead's decoded payload.
type MemReadResult struct {
	Data []byte
}

// MemRead reads memory per the given MemArgs.
func (c *Client) MemRead(ctx context.Context, args protocol.MemArgs) (*MemReadResult, error) {
	res := &MemReadResult{}
	err := c.enqueue(protocol.MsgMemRead,
		func(buf *wire.Buffer) error { return protocol.EncodeMemReadRequest(buf, args) },
		func(rsp *wire.Buffer) error {
			data, err := protocol.DecodeMemReadResponse(rsp)
			if err != nil {
				return err
			}
			res.Data = data
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// MemWrite writes data to memory per the given MemArgs. args.Size is
// ignored and replaced with len(data).
func (c *Client) MemWrite(ctx context.Context, args protocol.MemArgs, data []byte) error {
	args.Size = uint64(len(data))
	return c.enqueue(protocol.MsgMemWrite,
		func(buf *wire.Buffer) error { return protocol.EncodeMemWriteRequest(buf, args, data) },
		nil,
	)
}

// MemPollResult carries MemPoll's decoded payload, the memory contents
// observed when the poll stopped on a successful match. An exhausted poll
// comes back as an error response (MemPollNoMatch) and carries no data.
type MemPollResult struct {
	Data []byte
}

// MemPoll repeatedly reads memory per args, comparing it against mask and
// value until it matches (or, with MemPollMatchNE set, until it no longer
// matches) or args.Tries is exhausted.
func (c *Client) MemPoll(ctx context.Context, args protocol.MemPollArgs, mask, value []byte) (*MemPollResult, error) {
	res := &MemPollResult{}
	err := c.enqueue(protocol.MsgMemPoll,
		func(buf *wire.Buffer) error { return protocol.EncodeMemPollRequest(buf, args, mask, value) },
		func(rsp *wire.Buffer) error {
			data, err := protocol.DecodeMemPollResponse(rsp)
			if err != nil {
				return err
			}
			res.Data = data
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return res, nil
}
