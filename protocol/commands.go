package protocol

import "github.com/coresight/cswp/internal/wire"

// ---------------------------------------------------------------------
// INIT
// ---------------------------------------------------------------------

func EncodeInitRequest(buf *wire.Buffer, clientProto uint64, clientID string) error {
	if err := buf.PutVarint(clientProto); err != nil {
		return err
	}
	return buf.PutString(clientID)
}

func DecodeInitRequest(buf *wire.Buffer) (clientProto uint64, clientID string, err error) {
	if clientProto, err = buf.GetVarint(); err != nil {
		return 0, "", err
	}
	if clientID, err = buf.GetString(DefaultStringCap); err != nil {
		return 0, "", err
	}
	return clientProto, clientID, nil
}

func EncodeInitResponse(buf *wire.Buffer, serverProto uint64, serverID string, serverVersion uint64) error {
	if err := buf.PutVarint(serverProto); err != nil {
		return err
	}
	if err := buf.PutString(serverID); err != nil {
		return err
	}
	return buf.PutVarint(serverVersion)
}

func DecodeInitResponse(buf *wire.Buffer, serverIDCap int) (serverProto uint64, serverID string, serverVersion uint64, err error) {
	if serverProto, err = buf.GetVarint(); err != nil {
		return 0, "", 0, err
	}
	if serverID, err = buf.GetString(serverIDCap); err != nil {
		return 0, "", 0, err
	}
	if serverVersion, err = buf.GetVarint(); err != nil {
		return 0, "", 0, err
	}
	return serverProto, serverID, serverVersion, nil
}

// ---------------------------------------------------------------------
// CLIENT_INFO
// ---------------------------------------------------------------------

func EncodeClientInfoRequest(buf *wire.Buffer, message string) error {
	return buf.PutString(message)
}

func DecodeClientInfoRequest(buf *wire.Buffer) (string, error) {
	return buf.GetString(DefaultStringCap)
}

// ---------------------------------------------------------------------
// SET_DEVICES / GET_DEVICES
// ---------------------------------------------------------------------

func EncodeSetDevicesRequest(buf *wire.Buffer, devices []DeviceSpec) error {
	if err := buf.PutVarint(uint64(len(devices))); err != nil {
		return err
	}
	for _, d := range devices {
		if err := buf.PutString(d.Name); err != nil {
			return err
		}
		if err := buf.PutString(d.Type); err != nil {
			return err
		}
	}
	return nil
}

func DecodeSetDevicesRequest(buf *wire.Buffer) ([]DeviceSpec, error) {
	n, err := buf.GetVarint()
	if err != nil {
		return nil, err
	}
	devices := make([]DeviceSpec, 0, n)
	for i := uint64(0); i < n; i++ {
		name, err := buf.GetString(DefaultStringCap)
		if err != nil {
			return nil, err
		}
		typ, err := buf.GetString(DefaultStringCap)
		if err != nil {
			return nil, err
		}
		devices = append(devices, DeviceSpec{Name: name, Type: typ})
	}
	return devices, nil
}

func EncodeGetDevicesResponse(buf *wire.Buffer, devices []DeviceSpec) error {
	return EncodeSetDevicesRequest(buf, devices)
}

func DecodeGetDevicesResponse(buf *wire.Buffer) ([]DeviceSpec, error) {
	return DecodeSetDevicesRequest(buf)
}

// ---------------------------------------------------------------------
// GET_SYSTEM_DESCRIPTION
// ---------------------------------------------------------------------

func EncodeGetSystemDescriptionResponse(buf *wire.Buffer, desc SystemDescription) error {
	if err := buf.PutVarint(desc.Format); err != nil {
		return err
	}
	if err := buf.PutVarint(uint64(len(desc.Data))); err != nil {
		return err
	}
	return buf.PutData(desc.Data)
}

func DecodeGetSystemDescriptionResponse(buf *wire.Buffer) (SystemDescription, error) {
	format, err := buf.GetVarint()
	if err != nil {
		return SystemDescription{}, err
	}
	size, err := buf.GetVarint()
	if err != nil {
		return SystemDescription{}, err
	}
	data, err := buf.GetData(int(size))
	if err != nil {
		return SystemDescription{}, err
	}
	return SystemDescription{Format: format, Data: data}, nil
}

// ---------------------------------------------------------------------
// DEVICE_OPEN / DEVICE_CLOSE
// ---------------------------------------------------------------------

func EncodeDeviceOpenRequest(buf *wire.Buffer, devNo uint64) error {
	return buf.PutVarint(devNo)
}

func DecodeDeviceOpenRequest(buf *wire.Buffer) (uint64, error) {
	return buf.GetVarint()
}

func EncodeDeviceOpenResponse(buf *wire.Buffer, deviceInfo string) error {
	return buf.PutString(deviceInfo)
}

func DecodeDeviceOpenResponse(buf *wire.Buffer, deviceInfoCap int) (string, error) {
	return buf.GetString(deviceInfoCap)
}

func EncodeDeviceCloseRequest(buf *wire.Buffer, devNo uint64) error {
	return buf.PutVarint(devNo)
}

func DecodeDeviceCloseRequest(buf *wire.Buffer) (uint64, error) {
	return buf.GetVarint()
}

// ---------------------------------------------------------------------
// SET_CONFIG / GET_CONFIG
// ---------------------------------------------------------------------

func EncodeSetConfigRequest(buf *wire.Buffer, devNo uint64, name, value string) error {
	if err := buf.PutVarint(devNo); err != nil {
		return err
	}
	if err := buf.PutString(name); err != nil {
		return err
	}
	return buf.PutString(value)
}

func DecodeSetConfigRequest(buf *wire.Buffer) (devNo uint64, name, value string, err error) {
	if devNo, err = buf.GetVarint(); err != nil {
		return 0, "", "", err
	}
	if name, err = buf.GetString(DefaultStringCap); err != nil {
		return 0, "", "", err
	}
	if value, err = buf.GetString(DefaultStringCap); err != nil {
		return 0, "", "", err
	}
	return devNo, name, value, nil
}

func EncodeGetConfigRequest(buf *wire.Buffer, devNo uint64, name string) error {
	if err := buf.PutVarint(devNo); err != nil {
		return err
	}
	return buf.PutString(name)
}

func DecodeGetConfigRequest(buf *wire.Buffer) (devNo uint64, name string, err error) {
	if devNo, err = buf.GetVarint(); err != nil {
		return 0, "", err
	}
	if name, err = buf.GetString(DefaultStringCap); err != nil {
		return 0, "", err
	}
	return devNo, name, nil
}

func EncodeGetConfigResponse(buf *wire.Buffer, value string) error {
	return buf.PutString(value)
}

func DecodeGetConfigResponse(buf *wire.Buffer, valueCap int) (string, error) {
	return buf.GetString(valueCap)
}

// ---------------------------------------------------------------------
// GET_DEVICE_CAPABILITIES
// ---------------------------------------------------------------------

func EncodeGetDeviceCapabilitiesRequest(buf *wire.Buffer, devNo uint64) error {
	return buf.PutVarint(devNo)
}

func DecodeGetDeviceCapabilitiesRequest(buf *wire.Buffer) (uint64, error) {
	return buf.GetVarint()
}

func EncodeGetDeviceCapabilitiesResponse(buf *wire.Buffer, capabilities, capabilityData uint64) error {
	if err := buf.PutVarint(capabilities); err != nil {
		return err
	}
	return buf.PutVarint(capabilityData)
}

func DecodeGetDeviceCapabilitiesResponse(buf *wire.Buffer) (capabilities, capabilityData uint64, err error) {
	if capabilities, err = buf.GetVarint(); err != nil {
		return 0, 0, err
	}
	if capabilityData, err = buf.GetVarint(); err != nil {
		return 0, 0, err
	}
	return capabilities, capabilityData, nil
}

// ---------------------------------------------------------------------
// REG_LIST
// ---------------------------------------------------------------------

func EncodeRegListRequest(buf *wire.Buffer, devNo uint64) error {
	return buf.PutVarint(devNo)
}

func DecodeRegListRequest(buf *wire.Buffer) (uint64, error) {
	return buf.GetVarint()
}

func encodeRegisterInfo(buf *wire.Buffer, r RegisterInfo) error {
	if err := buf.PutVarint(uint64(r.ID)); err != nil {
		return err
	}
	if err := buf.PutString(r.Name); err != nil {
		return err
	}
	if err := buf.PutVarint(uint64(r.SizeWords)); err != nil {
		return err
	}
	if err := buf.PutString(r.DisplayName); err != nil {
		return err
	}
	return buf.PutString(r.Description)
}

func decodeRegisterInfo(buf *wire.Buffer) (RegisterInfo, error) {
	id, err := buf.GetVarint()
	if err != nil {
		return RegisterInfo{}, err
	}
	name, err := buf.GetString(DefaultStringCap)
	if err != nil {
		return RegisterInfo{}, err
	}
	size, err := buf.GetVarint()
	if err != nil {
		return RegisterInfo{}, err
	}
	displayName, err := buf.GetString(DefaultStringCap)
	if err != nil {
		return RegisterInfo{}, err
	}
	description, err := buf.GetString(DefaultStringCap)
	if err != nil {
		return RegisterInfo{}, err
	}
	return RegisterInfo{
		ID:          uint32(id),
		Name:        name,
		SizeWords:   uint32(size),
		DisplayName: displayName,
		Description: description,
	}, nil
}

func EncodeRegListResponse(buf *wire.Buffer, regs []RegisterInfo) error {
	if err := buf.PutVarint(uint64(len(regs))); err != nil {
		return err
	}
	for _, r := range regs {
		if err := encodeRegisterInfo(buf, r); err != nil {
			return err
		}
	}
	return nil
}

func DecodeRegListResponse(buf *wire.Buffer) ([]RegisterInfo, error) {
	n, err := buf.GetVarint()
	if err != nil {
		return nil, err
	}
	regs := make([]RegisterInfo, 0, n)
	for i := uint64(0); i < n; i++ {
		r, err := decodeRegisterInfo(buf)
		if err != nil {
			return nil, err
		}
		regs = append(regs, r)
	}
	return regs, nil
}

// ---------------------------------------------------------------------
// REG_READ / REG_WRITE
// ---------------------------------------------------------------------

func EncodeRegReadRequest(buf *wire.Buffer, devNo uint64, regIDs []uint32) error {
	if err := buf.PutVarint(devNo); err != nil {
		return err
	}
	if err := buf.PutVarint(uint64(len(regIDs))); err != nil {
		return err
	}
	for _, id := range regIDs {
		if err := buf.PutVarint(uint64(id)); err != nil {
			return err
		}
	}
	return nil
}

func DecodeRegReadRequest(buf *wire.Buffer) (devNo uint64, regIDs []uint32, err error) {
	if devNo, err = buf.GetVarint(); err != nil {
		return 0, nil, err
	}
	n, err := buf.GetVarint()
	if err != nil {
		return 0, nil, err
	}
	regIDs = make([]uint32, 0, n)
	for i := uint64(0); i < n; i++ {
		id, err := buf.GetVarint()
		if err != nil {
			return 0, nil, err
		}
		regIDs = append(regIDs, uint32(id))
	}
	return devNo, regIDs, nil
}

func EncodeRegReadResponse(buf *wire.Buffer, values []uint32) error {
	if err := buf.PutVarint(uint64(len(values))); err != nil {
		return err
	}
	for _, v := range values {
		if err := buf.PutU32(v); err != nil {
			return err
		}
	}
	return nil
}

func DecodeRegReadResponse(buf *wire.Buffer) ([]uint32, error) {
	n, err := buf.GetVarint()
	if err != nil {
		return nil, err
	}
	values := make([]uint32, 0, n)
	for i := uint64(0); i < n; i++ {
		v, err := buf.GetU32()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func EncodeRegWriteRequest(buf *wire.Buffer, devNo uint64, writes []RegisterWrite) error {
	if err := buf.PutVarint(devNo); err != nil {
		return err
	}
	if err := buf.PutVarint(uint64(len(writes))); err != nil {
		return err
	}
	for _, w := range writes {
		if err := buf.PutVarint(uint64(w.RegID)); err != nil {
			return err
		}
		if err := buf.PutU32(w.Value); err != nil {
			return err
		}
	}
	return nil
}

func DecodeRegWriteRequest(buf *wire.Buffer) (devNo uint64, writes []RegisterWrite, err error) {
	if devNo, err = buf.GetVarint(); err != nil {
		return 0, nil, err
	}
	n, err := buf.GetVarint()
	if err != nil {
		return 0, nil, err
	}
	writes = make([]RegisterWrite, 0, n)
	for i := uint64(0); i < n; i++ {
		regID, err := buf.GetVarint()
		if err != nil {
			return 0, nil, err
		}
		value, err := buf.GetU32()
		if err != nil {
			return 0, nil, err
		}
		writes = append(writes, RegisterWrite{RegID: uint32(regID), Value: value})
	}
	return devNo, writes, nil
}

// ---------------------------------------------------------------------
// MEM_READ / MEM_WRITE / MEM_POLL
// ---------------------------------------------------------------------

// MemArgs carries the common leading fields of all three memory commands.
type MemArgs struct {
	DevNo      uint64
	Addr       uint64
	Size       uint64
	AccessSize AccessSize
	Flags      uint64
}

func encodeMemArgs(buf *wire.Buffer, a MemArgs) error {
	if err := buf.PutVarint(a.DevNo); err != nil {
		return err
	}
	if err := buf.PutU64(a.Addr); err != nil {
		return err
	}
	if err := buf.PutVarint(a.Size); err != nil {
		return err
	}
	if err := buf.PutVarint(uint64(a.AccessSize)); err != nil {
		return err
	}
	return buf.PutVarint(a.Flags)
}

func decodeMemArgs(buf *wire.Buffer) (MemArgs, error) {
	var a MemArgs
	var err error
	if a.DevNo, err = buf.GetVarint(); err != nil {
		return MemArgs{}, err
	}
	if a.Addr, err = buf.GetU64(); err != nil {
		return MemArgs{}, err
	}
	if a.Size, err = buf.GetVarint(); err != nil {
		return MemArgs{}, err
	}
	accessSize, err := buf.GetVarint()
	if err != nil {
		return MemArgs{}, err
	}
	a.AccessSize = AccessSize(accessSize)
	if a.Flags, err = buf.GetVarint(); err != nil {
		return MemArgs{}, err
	}
	return a, nil
}

func EncodeMemReadRequest(buf *wire.Buffer, a MemArgs) error {
	return encodeMemArgs(buf, a)
}

func DecodeMemReadRequest(buf *wire.Buffer) (MemArgs, error) {
	return decodeMemArgs(buf)
}

func EncodeMemReadResponse(buf *wire.Buffer, data []byte) error {
	if err := buf.PutVarint(uint64(len(data))); err != nil {
		return err
	}
	return buf.PutData(data)
}

func DecodeMemReadResponse(buf *wire.Buffer) ([]byte, error) {
	n, err := buf.GetVarint()
	if err != nil {
		return nil, err
	}
	return buf.GetData(int(n))
}

func EncodeMemWriteRequest(buf *wire.Buffer, a MemArgs, data []byte) error {
	if err := encodeMemArgs(buf, a); err != nil {
		return err
	}
	return buf.PutData(data)
}

func DecodeMemWriteRequest(buf *wire.Buffer) (MemArgs, []byte, error) {
	a, err := decodeMemArgs(buf)
	if err != nil {
		return MemArgs{}, nil, err
	}
	data, err := buf.GetData(int(a.Size))
	if err != nil {
		return MemArgs{}, nil, err
	}
	return a, data, nil
}

// MemPollArgs extends MemArgs with the poll-specific fields.
type MemPollArgs struct {
	MemArgs
	Tries     uint64
	IntervalUs uint64
}

func EncodeMemPollRequest(buf *wire.Buffer, a MemPollArgs, mask, value []byte) error {
	if err := encodeMemArgs(buf, a.MemArgs); err != nil {
		return err
	}
	if err := buf.PutVarint(a.Tries); err != nil {
		return err
	}
	if err := buf.PutVarint(a.IntervalUs); err != nil {
		return err
	}
	if err := buf.PutData(mask); err != nil {
		return err
	}
	return buf.PutData(value)
}

func DecodeMemPollRequest(buf *wire.Buffer) (a MemPollArgs, mask, value []byte, err error) {
	memArgs, err := decodeMemArgs(buf)
	if err != nil {
		return MemPollArgs{}, nil, nil, err
	}
	a.MemArgs = memArgs
	if a.Tries, err = buf.GetVarint(); err != nil {
		return MemPollArgs{}, nil, nil, err
	}
	if a.IntervalUs, err = buf.GetVarint(); err != nil {
		return MemPollArgs{}, nil, nil, err
	}
	if mask, err = buf.GetData(int(a.Size)); err != nil {
		return MemPollArgs{}, nil, nil, err
	}
	if value, err = buf.GetData(int(a.Size)); err != nil {
		return MemPollArgs{}, nil, nil, err
	}
	return a, mask, value, nil
}

func EncodeMemPollResponse(buf *wire.Buffer, data []byte) error {
	return EncodeMemReadResponse(buf, data)
}

func DecodeMemPollResponse(buf *wire.Buffer) ([]byte, error) {
	return DecodeMemReadResponse(buf)
}

// ---------------------------------------------------------------------
// ASYNC_MESSAGE
// ---------------------------------------------------------------------

func EncodeAsyncMessage(buf *wire.Buffer, devNo uint64, level LogLevel, message string) error {
	if err := buf.PutVarint(devNo); err != nil {
		return err
	}
	if err := buf.PutVarint(uint64(level)); err != nil {
		return err
	}
	return buf.PutString(message)
}

func DecodeAsyncMessage(buf *wire.Buffer) (devNo uint64, level LogLevel, message string, err error) {
	if devNo, err = buf.GetVarint(); err != nil {
		return 0, 0, "", err
	}
	lvl, err := buf.GetVarint()
	if err != nil {
		return 0, 0, "", err
	}
	level = LogLevel(lvl)
	if message, err = buf.GetString(DefaultStringCap); err != nil {
		return 0, 0, "", err
	}
	return devNo, level, message, nil
}
