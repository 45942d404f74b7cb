package wire

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestVarintRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 0x7F, 0x80, 0x3FFF, 0xFFFFFFFF, 0xFFFFFFFFFFFFFFFF}
	for _, v := range cases {
		buf := NewBuffer(16)
		if err := buf.PutVarint(v); err != nil {
			t.Fatalf("PutVarint(%d): %v", v, err)
		}
		n := VarintLen(v)
		if n < 1 || n > 10 {
			t.Fatalf("VarintLen(%d) = %d, want [1,10]", v, n)
		}
		buf.Seek(0)
		got, err := buf.GetVarint()
		if err != nil {
			t.Fatalf("GetVarint: %v", err)
		}
		if got != v {
			t.Fatalf("round trip %d -> %d", v, got)
		}
	}
}

func TestVarintEncodingScenarios(t *testing.T) {
	cases := []struct {
		v    uint64
		want []byte
	}{
		{0x7F, []byte{0x7F}},
		{0x80, []byte{0x80, 0x01}},
		{0x3FFF, []byte{0xFF, 0x7F}},
		{0xFFFFFFFF, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x0F}},
	}
	for _, c := range cases {
		buf := NewBuffer(16)
		if err := buf.PutVarint(c.v); err != nil {
			t.Fatalf("PutVarint(%#x): %v", c.v, err)
		}
		if !bytes.Equal(buf.Bytes(), c.want) {
			t.Errorf("encode(%#x) = % X, want % X", c.v, buf.Bytes(), c.want)
		}
	}
}

func TestMaxVarintIsTenBytes(t *testing.T) {
	buf := NewBuffer(16)
	if err := buf.PutVarint(^uint64(0)); err != nil {
		t.Fatalf("PutVarint: %v", err)
	}
	if buf.Used() != 10 {
		t.Fatalf("2^64-1 encoded in %d bytes, want 10", buf.Used())
	}
}

func TestStringRoundTrip(t *testing.T) {
	cases := []string{"", "Hello", strings.Repeat("A", 128)}
	for _, s := range cases {
		buf := NewBuffer(256)
		if err := buf.PutString(s); err != nil {
			t.Fatalf("PutString(%d bytes): %v", len(s), err)
		}
		wantAdvance := VarintLen(uint64(len(s))) + len(s)
		if buf.Pos() != wantAdvance {
			t.Fatalf("pos after PutString = %d, want %d", buf.Pos(), wantAdvance)
		}
		buf.Seek(0)
		got, err := buf.GetString(MaxStringLen)
		if err != nil {
			t.Fatalf("GetString: %v", err)
		}
		if got != s {
			t.Fatalf("round trip %q -> %q", s, got)
		}
		if buf.Pos() != wantAdvance {
			t.Fatalf("pos after GetString = %d, want %d", buf.Pos(), wantAdvance)
		}
	}
}

func TestStringEncodingScenarios(t *testing.T) {
	buf := NewBuffer(256)
	if err := buf.PutString("Hello"); err != nil {
		t.Fatal(err)
	}
	want := append([]byte{0x05}, "Hello"...)
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("encode(Hello) = % X, want % X", buf.Bytes(), want)
	}

	buf2 := NewBuffer(256)
	long := strings.Repeat("A", 128)
	if err := buf2.PutString(long); err != nil {
		t.Fatal(err)
	}
	wantLong := append([]byte{0x80, 0x01}, []byte(long)...)
	if !bytes.Equal(buf2.Bytes(), wantLong) {
		t.Errorf("encode(128*A) length = %d, want %d", len(buf2.Bytes()), len(wantLong))
	}
}

func TestGetStringOutputOverflow(t *testing.T) {
	buf := NewBuffer(256)
	if err := buf.PutString("Hello"); err != nil {
		t.Fatal(err)
	}
	buf.Seek(0)
	if _, err := buf.GetString(5); CodeOf(err) != OutputOverflow {
		t.Fatalf("GetString with dstCap == length: got %v, want OutputOverflow", err)
	}

	buf.Seek(0)
	if _, err := buf.GetString(6); err != nil {
		t.Fatalf("GetString with dstCap == length+1 should succeed: %v", err)
	}
}

func TestPutStringPartialMutationOnOverflow(t *testing.T) {
	// Capacity fits the length prefix but not the payload.
	buf := NewBuffer(1)
	err := buf.PutString("Hello")
	if CodeOf(err) != BufferFull {
		t.Fatalf("PutString: got %v, want BufferFull", err)
	}
	// The length varint committed before the payload write failed.
	if buf.Used() != 1 || buf.Pos() != 1 {
		t.Fatalf("buffer state after partial write: used=%d pos=%d, want 1,1", buf.Used(), buf.Pos())
	}
}

func TestFixedWidthIntegers(t *testing.T) {
	buf := NewBuffer(32)
	if err := buf.PutU8(0xAB); err != nil {
		t.Fatal(err)
	}
	if err := buf.PutU32(0x01020304); err != nil {
		t.Fatal(err)
	}
	if err := buf.PutU64(0x0102030405060708); err != nil {
		t.Fatal(err)
	}
	buf.Seek(0)
	u8, err := buf.GetU8()
	if err != nil || u8 != 0xAB {
		t.Fatalf("GetU8 = %v, %v", u8, err)
	}
	u32, err := buf.GetU32()
	if err != nil || u32 != 0x01020304 {
		t.Fatalf("GetU32 = %v, %v", u32, err)
	}
	u64, err := buf.GetU64()
	if err != nil || u64 != 0x0102030405060708 {
		t.Fatalf("GetU64 = %v, %v", u64, err)
	}
}

func TestBufferFullStopsAtFirstOverflow(t *testing.T) {
	buf := NewBuffer(5)
	if err := buf.PutU32(1); err != nil {
		t.Fatal(err)
	}
	// One byte remains; a second PutU32 cannot fit.
	if err := buf.PutU32(2); CodeOf(err) != BufferFull {
		t.Fatalf("second PutU32: got %v, want BufferFull", err)
	}
	// What succeeded before the overflow must still decode correctly.
	buf.Seek(0)
	v, err := buf.GetU32()
	if err != nil || v != 1 {
		t.Fatalf("decode after overflow: v=%v err=%v", v, err)
	}
}

func TestBufferEmptyOnShortRead(t *testing.T) {
	buf := NewBuffer(4)
	if err := buf.PutU8(1); err != nil {
		t.Fatal(err)
	}
	buf.Seek(0)
	if _, err := buf.GetU32(); CodeOf(err) != BufferEmpty {
		t.Fatalf("GetU32 on 1-byte buffer: got %v, want BufferEmpty", err)
	}
}

func TestGetDirectZeroCopyView(t *testing.T) {
	buf := NewBuffer(16)
	payload := []byte("Hello world\x00")
	if err := buf.PutData(payload); err != nil {
		t.Fatal(err)
	}
	buf.Seek(0)
	view, err := buf.GetDirect(len(payload))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(view, payload) {
		t.Fatalf("GetDirect = %q, want %q", view, payload)
	}
	if buf.Pos() != len(payload) {
		t.Fatalf("pos after GetDirect = %d, want %d", buf.Pos(), len(payload))
	}
}

func TestClearResetsCursors(t *testing.T) {
	buf := NewBuffer(8)
	_ = buf.PutU32(1)
	buf.Clear()
	if buf.Used() != 0 || buf.Pos() != 0 {
		t.Fatalf("Clear left used=%d pos=%d", buf.Used(), buf.Pos())
	}
}

func TestErrorUnwrapsToResultCode(t *testing.T) {
	buf := NewBuffer(0)
	err := buf.PutU8(1)
	var wireErr *Error
	if !errors.As(err, &wireErr) {
		t.Fatalf("expected *wire.Error, got %T", err)
	}
	if wireErr.Code != BufferFull {
		t.Fatalf("code = %v, want BufferFull", wireErr.Code)
	}
}
