// Package sshremote implements a server.Backend that proxies register and
// memory access to a remote target's sysfs/devmem nodes over SSH, adapted
// from the reference SDR client's SSH-based sysfs attribute writer.
package sshremote

import (
	"encoding/base64"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/coresight/cswp/internal/wire"
	"github.com/coresight/cswp/protocol"
)

// Config describes how to reach and address the remote target.
type Config struct {
	Host      string
	User      string
	Password  string
	KeyPath   string
	Port      int
	SysfsRoot string // register attribute directory, default /sys/cswp/regs
	MemDevice string // raw memory node read with dd, default /dev/mem
}

// RegisterCatalog maps a device type name to the register catalog
// DEVICE_OPEN/REG_LIST expose for devices of that type, same shape as
// membackend.RegisterCatalog.
type RegisterCatalog map[string][]protocol.RegisterInfo

// Backend proxies CSWP register/memory commands to sysfs attribute files
// and a raw memory device over one shared SSH connection.
type Backend struct {
	mu      sync.Mutex
	cfg     Config
	client  *ssh.Client
	devices []protocol.DeviceSpec
	catalog RegisterCatalog
}

// New builds a Backend. The SSH connection is dialed lazily on first use.
func New(cfg Config, catalog RegisterCatalog) *Backend {
	if cfg.User == "" {
		cfg.User = "root"
	}
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.SysfsRoot == "" {
		cfg.SysfsRoot = "/sys/cswp/regs"
	}
	if cfg.MemDevice == "" {
		cfg.MemDevice = "/dev/mem"
	}
	return &Backend{cfg: cfg, catalog: catalog}
}

func (b *Backend) dial() (*ssh.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		return b.client, nil
	}

	var auth []ssh.AuthMethod
	if b.cfg.Password != "" {
		auth = append(auth, ssh.Password(b.cfg.Password))
	}
	if b.cfg.KeyPath != "" {
		key, err := os.ReadFile(b.cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("sshremote: read key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("sshremote: parse key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("sshremote: no password or key configured")
	}

	config := &ssh.ClientConfig{
		User:            b.cfg.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	}
	addr := fmt.Sprintf("%s:%d", b.cfg.Host, b.cfg.Port)
	conn, err := (&net.Dialer{}).Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("sshremote: dial: %w", err)
	}
	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		return nil, fmt.Errorf("sshremote: handshake: %w", err)
	}
	b.client = ssh.NewClient(clientConn, chans, reqs)
	return b.client, nil
}

func (b *Backend) run(cmd string) (string, error) {
	client, err := b.dial()
	if err != nil {
		return "", err
	}
	session, err := client.NewSession()
	if err != nil {
		return "", fmt.Errorf("sshremote: new session: %w", err)
	}
	defer session.Close()
	out, err := session.Output(cmd)
	if err != nil {
		return "", fmt.Errorf("sshremote: run %q: %w", cmd, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func shellQuote(value string) string {
	return "'" + strings.ReplaceAll(value, "'", `'\''`) + "'"
}

func (b *Backend) regPath(devNo uint64, regID uint32) string {
	return filepath.Join(b.cfg.SysfsRoot, fmt.Sprintf("dev%d", devNo), fmt.Sprintf("reg%d", regID))
}

func (b *Backend) Init() error { _, err := b.dial(); return err }
func (b *Backend) Term() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client == nil {
		return nil
	}
	err := b.client.Close()
	b.client = nil
	return err
}

func (b *Backend) SetDevices(devices []protocol.DeviceSpec) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices = append([]protocol.DeviceSpec(nil), devices...)
	return nil
}

func (b *Backend) GetDevices() ([]protocol.DeviceSpec, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]protocol.DeviceSpec(nil), b.devices...), nil
}

func (b *Backend) GetSystemDescription() (protocol.SystemDescription, error) {
	return protocol.SystemDescription{}, nil
}

func (b *Backend) deviceType(devNo uint64) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if devNo >= uint64(len(b.devices)) {
		return "", wire.NewError(wire.InvalidDevice, "no such device %d", devNo)
	}
	return b.devices[devNo].Type, nil
}

func (b *Backend) DeviceOpen(devNo uint64) (string, error) {
	if _, err := b.dial(); err != nil {
		return "", err
	}
	typ, err := b.deviceType(devNo)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("remote device %d (%s) via %s", devNo, typ, b.cfg.Host), nil
}

func (b *Backend) DeviceClose(devNo uint64) error { return nil }

func (b *Backend) SetConfig(devNo uint64, name, value string) error {
	path := filepath.Join(b.cfg.SysfsRoot, fmt.Sprintf("dev%d", devNo), "config", name)
	cmd := fmt.Sprintf("printf %s > %s", shellQuote(value), path)
	_, err := b.run(cmd)
	return err
}

func (b *Backend) GetConfig(devNo uint64, name string) (string, error) {
	path := filepath.Join(b.cfg.SysfsRoot, fmt.Sprintf("dev%d", devNo), "config", name)
	return b.run(fmt.Sprintf("cat %s", path))
}

func (b *Backend) GetDeviceCapabilities(devNo uint64) (uint64, uint64, error) {
	if _, err := b.deviceType(devNo); err != nil {
		return 0, 0, err
	}
	return protocol.CapReg | protocol.CapMem, 0, nil
}

func (b *Backend) RegList(devNo uint64) ([]protocol.RegisterInfo, error) {
	typ, err := b.deviceType(devNo)
	if err != nil {
		return nil, err
	}
	return b.catalog[typ], nil
}

func (b *Backend) RegRead(devNo uint64, regIDs []uint32) ([]uint32, error) {
	values := make([]uint32, len(regIDs))
	for i, id := range regIDs {
		out, err := b.run(fmt.Sprintf("cat %s", b.regPath(devNo, id)))
		if err != nil {
			return nil, err
		}
		v, err := strconv.ParseUint(strings.TrimPrefix(out, "0x"), 16, 32)
		if err != nil {
			return nil, wire.NewError(wire.RegFailed, "register %d: unparseable value %q", id, out)
		}
		values[i] = uint32(v)
	}
	return values, nil
}

func (b *Backend) RegWrite(devNo uint64, writes []protocol.RegisterWrite) error {
	for _, w := range writes {
		cmd := fmt.Sprintf("printf '0x%08x' > %s", w.Value, b.regPath(devNo, w.RegID))
		if _, err := b.run(cmd); err != nil {
			return wire.NewError(wire.RegFailed, "register %d: %s", w.RegID, err.Error())
		}
	}
	return nil
}

func (b *Backend) MemRead(args protocol.MemArgs) ([]byte, error) {
	cmd := fmt.Sprintf("dd if=%s bs=1 skip=%d count=%d 2>/dev/null | base64", b.cfg.MemDevice, args.Addr, args.Size)
	out, err := b.run(cmd)
	if err != nil {
		return nil, wire.NewError(wire.MemFailed, "mem read: %s", err.Error())
	}
	data, err := base64.StdEncoding.DecodeString(out)
	if err != nil {
		return nil, wire.NewError(wire.MemFailed, "mem read: undecodable payload")
	}
	return data, nil
}

func (b *Backend) MemWrite(args protocol.MemArgs, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	cmd := fmt.Sprintf("echo %s | base64 -d | dd of=%s bs=1 seek=%d conv=notrunc 2>/dev/null", shellQuote(encoded), b.cfg.MemDevice, args.Addr)
	if _, err := b.run(cmd); err != nil {
		return wire.NewError(wire.MemFailed, "mem write: %s", err.Error())
	}
	return nil
}

func (b *Backend) MemPoll(args protocol.MemPollArgs, mask, value []byte) ([]byte, error) {
	tries := args.Tries
	if tries == 0 {
		tries = 1
	}
	var sample []byte
	for i := uint64(0); i < tries; i++ {
		if i > 0 && args.IntervalUs > 0 {
			time.Sleep(time.Duration(args.IntervalUs) * time.Microsecond)
		}
		data, err := b.MemRead(args.MemArgs)
		if err != nil {
			return nil, err
		}
		sample = data
		matched := true
		for j := range data {
			if j >= len(mask) || j >= len(value) {
				break
			}
			if data[j]&mask[j] != value[j]&mask[j] {
				matched = false
				break
			}
		}
		if matched != (args.Flags&protocol.MemPollMatchNE != 0) {
			return sample, nil
		}
	}
	return sample, wire.NewError(wire.MemPollNoMatch, "poll exhausted %d tries without a match", tries)
}
