// Package membackend implements an in-memory server.Backend, a mock
// debug target useful for tests and for exercising a CSWP server without
// real hardware, in the style of the reference SDR mock backend.
package membackend

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coresight/cswp/internal/wire"
	"github.com/coresight/cswp/protocol"
)

// configItemsKey is the pseudo config name whose GET_CONFIG response lists
// the config names set so far for a device, mirroring cswp_impl.c's
// special-cased "CONFIG_ITEMS" key.
const configItemsKey = "CONFIG_ITEMS"

// RegisterCatalog maps a device type name (as set by SET_DEVICES) to the
// register catalog that DEVICE_OPEN + REG_LIST should expose for devices
// of that type.
type RegisterCatalog map[string][]protocol.RegisterInfo

// deviceState holds the per-device mutable state: whether it is open, its
// register values, its memory image, and its lazily built register list.
type deviceState struct {
	open        bool
	regs        map[uint32]uint32
	memory      []byte
	memBase     uint64
	regCatalog  []protocol.RegisterInfo
	catalogBuilt bool
	lastPoll    []byte
}

// Backend is an in-memory server.Backend. It is safe for concurrent use.
type Backend struct {
	mu sync.Mutex

	catalog RegisterCatalog
	memSize int

	systemDescription protocol.SystemDescription
	devices            []protocol.DeviceSpec
	states              []*deviceState
	globalConfig        map[string]string
	deviceConfig        map[uint64]map[string]string
}

// New builds an empty Backend. catalog supplies the register set exposed
// for each device type named by a later SET_DEVICES call. memSize sizes
// the zero-filled memory image allocated for each device on DEVICE_OPEN.
func New(catalog RegisterCatalog, memSize int) *Backend {
	return &Backend{
		catalog:      catalog,
		memSize:      memSize,
		globalConfig: make(map[string]string),
		deviceConfig: make(map[uint64]map[string]string),
	}
}

// WithSystemDescription sets the blob GET_SYSTEM_DESCRIPTION returns.
func (b *Backend) WithSystemDescription(desc protocol.SystemDescription) *Backend {
	b.systemDescription = desc
	return b
}

func (b *Backend) Init() error { return nil }
func (b *Backend) Term() error { return nil }

func (b *Backend) SetDevices(devices []protocol.DeviceSpec) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices = append([]protocol.DeviceSpec(nil), devices...)
	b.states = make([]*deviceState, len(devices))
	for i := range b.states {
		b.states[i] = &deviceState{regs: make(map[uint32]uint32)}
	}
	return nil
}

func (b *Backend) GetDevices() ([]protocol.DeviceSpec, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]protocol.DeviceSpec(nil), b.devices...), nil
}

func (b *Backend) GetSystemDescription() (protocol.SystemDescription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.systemDescription, nil
}

func (b *Backend) device(devNo uint64) (*deviceState, error) {
	if devNo >= uint64(len(b.states)) {
		return nil, protocol.NewError(wire.InvalidDevice, "no such device %d", devNo)
	}
	return b.states[devNo], nil
}

func (b *Backend) DeviceOpen(devNo uint64) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, err := b.device(devNo)
	if err != nil {
		return "", err
	}
	if st.memory == nil && b.memSize > 0 {
		st.memory = make([]byte, b.memSize)
	}
	st.open = true
	return fmt.Sprintf("%s (%s)", b.devices[devNo].Name, b.devices[devNo].Type), nil
}

func (b *Backend) DeviceClose(devNo uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, err := b.device(devNo)
	if err != nil {
		return err
	}
	st.open = false
	st.regCatalog = nil
	st.catalogBuilt = false
	return nil
}

func configKey(devNo uint64, name string) string { return name }

func (b *Backend) SetConfig(devNo uint64, name, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if name == configItemsKey {
		return protocol.NewError(wire.Unsupported, "%s is read-only", configItemsKey)
	}
	if devNo == 0 {
		b.globalConfig[configKey(devNo, name)] = value
		return nil
	}
	if _, err := b.device(devNo); err != nil {
		return err
	}
	m := b.deviceConfig[devNo]
	if m == nil {
		m = make(map[string]string)
		b.deviceConfig[devNo] = m
	}
	m[configKey(devNo, name)] = value
	return nil
}

// configNames returns the sorted config names set for m, used to answer
// CONFIG_ITEMS.
func configNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (b *Backend) GetConfig(devNo uint64, name string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if devNo == 0 {
		if name == configItemsKey {
			return strings.Join(configNames(b.globalConfig), ","), nil
		}
		v, ok := b.globalConfig[configKey(devNo, name)]
		if !ok {
			return "", protocol.NewError(wire.InvalidDevice, "no such config item %q", name)
		}
		return v, nil
	}
	if _, err := b.device(devNo); err != nil {
		return "", err
	}
	if name == configItemsKey {
		return strings.Join(configNames(b.deviceConfig[devNo]), ","), nil
	}
	v, ok := b.deviceConfig[devNo][configKey(devNo, name)]
	if !ok {
		return "", protocol.NewError(wire.InvalidDevice, "no such config item %q on device %d", name, devNo)
	}
	return v, nil
}

func (b *Backend) GetDeviceCapabilities(devNo uint64) (uint64, uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.device(devNo); err != nil {
		return 0, 0, err
	}
	caps := protocol.CapReg | protocol.CapMem | protocol.CapMemPoll
	return caps, 0, nil
}

// buildCatalog lazily resolves and caches a device's register list,
// mirroring cswp_server_commands.c's register_list_build being invoked on
// the first REG_LIST request for a device rather than at DEVICE_OPEN.
func (b *Backend) buildCatalog(devNo uint64, st *deviceState) {
	if st.catalogBuilt {
		return
	}
	st.regCatalog = b.catalog[b.devices[devNo].Type]
	st.catalogBuilt = true
}

func (b *Backend) RegList(devNo uint64) ([]protocol.RegisterInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, err := b.device(devNo)
	if err != nil {
		return nil, err
	}
	b.buildCatalog(devNo, st)
	return append([]protocol.RegisterInfo(nil), st.regCatalog...), nil
}

func (b *Backend) RegRead(devNo uint64, regIDs []uint32) ([]uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, err := b.device(devNo)
	if err != nil {
		return nil, err
	}
	values := make([]uint32, len(regIDs))
	for i, id := range regIDs {
		values[i] = st.regs[id]
	}
	return values, nil
}

func (b *Backend) RegWrite(devNo uint64, writes []protocol.RegisterWrite) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, err := b.device(devNo)
	if err != nil {
		return err
	}
	for _, w := range writes {
		st.regs[w.RegID] = w.Value
	}
	return nil
}

func (b *Backend) memRange(st *deviceState, args protocol.MemArgs) ([]byte, error) {
	if st.memory == nil {
		return nil, protocol.NewError(wire.MemFailed, "device has no memory region")
	}
	if args.Addr+args.Size > uint64(len(st.memory)) {
		return nil, protocol.NewError(wire.MemInvalidAddress, "address range [0x%x,0x%x) out of bounds", args.Addr, args.Addr+args.Size)
	}
	return st.memory[args.Addr : args.Addr+args.Size], nil
}

func (b *Backend) MemRead(args protocol.MemArgs) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, err := b.device(args.DevNo)
	if err != nil {
		return nil, err
	}
	region, err := b.memRange(st, args)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(region))
	copy(out, region)
	return out, nil
}

func (b *Backend) MemWrite(args protocol.MemArgs, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, err := b.device(args.DevNo)
	if err != nil {
		return err
	}
	region, err := b.memRange(st, args)
	if err != nil {
		return err
	}
	copy(region, data)
	return nil
}

// MemPoll samples memory up to args.Tries times, comparing the masked
// bytes against value (or, with MemPollMatchNE, stopping when they no
// longer match). With MemPollCheckLast it compares against the device's
// last-sampled snapshot instead of re-reading, matching the
// CSWP_MEM_POLL_CHECK_LAST flag's documented shortcut.
func (b *Backend) MemPoll(args protocol.MemPollArgs, mask, value []byte) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, err := b.device(args.DevNo)
	if err != nil {
		return nil, err
	}

	tries := args.Tries
	if tries == 0 {
		tries = 1
	}
	var sample []byte
	for i := uint64(0); i < tries; i++ {
		if i > 0 && args.IntervalUs > 0 {
			time.Sleep(time.Duration(args.IntervalUs) * time.Microsecond)
		}
		if args.Flags&protocol.MemPollCheckLast != 0 && st.lastPoll != nil {
			sample = st.lastPoll
		} else {
			region, err := b.memRange(st, args.MemArgs)
			if err != nil {
				return nil, err
			}
			sample = append([]byte(nil), region...)
			st.lastPoll = sample
		}
		if masksMatch(sample, mask, value) != (args.Flags&protocol.MemPollMatchNE != 0) {
			return sample, nil
		}
	}
	return sample, protocol.NewError(wire.MemPollNoMatch, "poll exhausted %d tries without a match", tries)
}

func masksMatch(sample, mask, value []byte) bool {
	for i := range sample {
		if i >= len(mask) || i >= len(value) {
			break
		}
		if sample[i]&mask[i] != value[i]&mask[i] {
			return false
		}
	}
	return true
}
