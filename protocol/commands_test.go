package protocol

import (
	"bytes"
	"testing"

	"github.com/coresight/cswp/internal/wire"
)

func TestInitRequestWireLayout(t *testing.T) {
	buf := wire.NewBuffer(64)
	if err := EncodeCommandHeader(buf, MsgInit); err != nil {
		t.Fatal(err)
	}
	if err := EncodeInitRequest(buf, 1, "Test client"); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x01, 0x01, 0x0B, 'T', 'e', 's', 't', ' ', 'c', 'l', 'i', 'e', 'n', 't'}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("encode(INIT) = % X, want % X", buf.Bytes(), want)
	}

	buf.Seek(0)
	msgType, err := DecodeCommandHeader(buf)
	if err != nil || msgType != MsgInit {
		t.Fatalf("DecodeCommandHeader: %v, %v", msgType, err)
	}
	proto, clientID, err := DecodeInitRequest(buf)
	if err != nil {
		t.Fatal(err)
	}
	if proto != 1 || clientID != "Test client" {
		t.Fatalf("decoded (%d, %q), want (1, Test client)", proto, clientID)
	}
}

func TestInitResponseRoundTrip(t *testing.T) {
	buf := wire.NewBuffer(128)
	if err := EncodeResponseHeader(buf, MsgInit, wire.Success); err != nil {
		t.Fatal(err)
	}
	if err := EncodeInitResponse(buf, 1, "AMIS PoC CSWP Server", 0x100); err != nil {
		t.Fatal(err)
	}

	buf.Seek(0)
	msgType, code, err := DecodeResponseHeader(buf)
	if err != nil || msgType != MsgInit || code != wire.Success {
		t.Fatalf("header: %v %v %v", msgType, code, err)
	}
	proto, serverID, version, err := DecodeInitResponse(buf, DefaultStringCap)
	if err != nil {
		t.Fatal(err)
	}
	if proto != 1 || serverID != "AMIS PoC CSWP Server" || version != 0x100 {
		t.Fatalf("decoded (%d, %q, %#x)", proto, serverID, version)
	}
}

func TestMemReadZeroCopyResponse(t *testing.T) {
	payload := []byte("Hello world\x00")
	buf := wire.NewBuffer(64)
	if err := EncodeMemReadResponse(buf, payload); err != nil {
		t.Fatal(err)
	}
	buf.Seek(0)
	n, err := buf.GetVarint()
	if err != nil || n != uint64(len(payload)) {
		t.Fatalf("length = %d, %v", n, err)
	}
	got, err := buf.GetDirect(int(n))
	if err != nil || !bytes.Equal(got, payload) {
		t.Fatalf("payload = %q, %v", got, err)
	}
}

func TestMemReadResponseZeroSize(t *testing.T) {
	buf := wire.NewBuffer(16)
	if err := EncodeMemReadResponse(buf, nil); err != nil {
		t.Fatal(err)
	}
	buf.Seek(0)
	data, err := DecodeMemReadResponse(buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Fatalf("len(data) = %d, want 0", len(data))
	}
}

func TestRegListRoundTrip(t *testing.T) {
	regs := []RegisterInfo{
		{ID: 1, Name: "r0", SizeWords: 1, DisplayName: "R0", Description: "general purpose 0"},
		{ID: 6, Name: "pc", SizeWords: 1, DisplayName: "PC", Description: "program counter"},
	}
	buf := wire.NewBuffer(256)
	if err := EncodeRegListResponse(buf, regs); err != nil {
		t.Fatal(err)
	}
	buf.Seek(0)
	got, err := DecodeRegListResponse(buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != regs[0] || got[1] != regs[1] {
		t.Fatalf("decoded %+v, want %+v", got, regs)
	}
}

func TestErrorResponseRoundTrip(t *testing.T) {
	buf := wire.NewBuffer(128)
	if err := EncodeErrorResponse(buf, MsgRegRead, wire.Unsupported, "register ops unsupported on device %d", 1); err != nil {
		t.Fatal(err)
	}
	buf.Seek(0)
	msgType, code, err := DecodeResponseHeader(buf)
	if err != nil || msgType != MsgRegRead || code != wire.Unsupported {
		t.Fatalf("header: %v %v %v", msgType, code, err)
	}
	msg, err := DecodeErrorBody(buf)
	if err != nil {
		t.Fatal(err)
	}
	if msg != "register ops unsupported on device 1" {
		t.Fatalf("message = %q", msg)
	}
}

func TestMemPollRoundTripWithMaskAndValue(t *testing.T) {
	args := MemPollArgs{
		MemArgs: MemArgs{DevNo: 0, Addr: 0x1000, Size: 4, AccessSize: Access32, Flags: MemPollCheckLast},
		Tries:   5,
		IntervalUs: 100,
	}
	mask := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	value := []byte{0x01, 0x00, 0x00, 0x00}
	buf := wire.NewBuffer(128)
	if err := EncodeMemPollRequest(buf, args, mask, value); err != nil {
		t.Fatal(err)
	}
	buf.Seek(0)
	gotArgs, gotMask, gotValue, err := DecodeMemPollRequest(buf)
	if err != nil {
		t.Fatal(err)
	}
	if gotArgs != args {
		t.Fatalf("args = %+v, want %+v", gotArgs, args)
	}
	if !bytes.Equal(gotMask, mask) || !bytes.Equal(gotValue, value) {
		t.Fatalf("mask/value mismatch")
	}
}
