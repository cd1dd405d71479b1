package buffer_test

import (
	"testing"

	"chunktree/pkg/buffer"
)

func TestPutGetRoundTrip(t *testing.T) {
	b := buffer.New()
	b.PutInt8(-7)
	b.PutUint8(250)
	b.PutInt16(-1234)
	b.PutInt32(-123456789)
	b.PutInt64(9223372036854775807)
	b.PutVarInt(-42)
	b.PutBytes([]byte("hello"))

	b.Seek(0)
	if v, err := b.GetInt8(); err != nil || v != -7 {
		t.Fatalf("GetInt8 = %d, %v", v, err)
	}
	if v, err := b.GetUint8(); err != nil || v != 250 {
		t.Fatalf("GetUint8 = %d, %v", v, err)
	}
	if v, err := b.GetInt16(); err != nil || v != -1234 {
		t.Fatalf("GetInt16 = %d, %v", v, err)
	}
	if v, err := b.GetInt32(); err != nil || v != -123456789 {
		t.Fatalf("GetInt32 = %d, %v", v, err)
	}
	if v, err := b.GetInt64(); err != nil || v != 9223372036854775807 {
		t.Fatalf("GetInt64 = %d, %v", v, err)
	}
	if v, err := b.GetVarInt(); err != nil || v != -42 {
		t.Fatalf("GetVarInt = %d, %v", v, err)
	}
	if got, err := b.GetBytes(5); err != nil || string(got) != "hello" {
		t.Fatalf("GetBytes = %q, %v", got, err)
	}
}

func TestGetPastEndReturnsShortBuffer(t *testing.T) {
	b := buffer.New()
	b.PutInt8(1)
	b.Seek(0)
	if _, err := b.GetInt64(); err != buffer.ErrShortBuffer {
		t.Fatalf("want ErrShortBuffer, got %v", err)
	}
}

func TestWithPatchRestoresCursor(t *testing.T) {
	b := buffer.New()
	b.PutInt32(0) // placeholder
	b.PutBytes([]byte("tail"))
	endPos := b.Position()

	b.WithPatch(0, func(p *buffer.DataBuffer) { p.PutInt32(99) })

	if b.Position() != endPos {
		t.Fatalf("cursor not restored: got %d, want %d", b.Position(), endPos)
	}
	b.Seek(0)
	v, err := b.GetInt32()
	if err != nil || v != 99 {
		t.Fatalf("patched value = %d, %v", v, err)
	}
}

func TestWrapReadsExistingBytes(t *testing.T) {
	src := buffer.New()
	src.PutInt64(42)
	b := buffer.Wrap(src.Bytes())
	if v, err := b.GetInt64(); err != nil || v != 42 {
		t.Fatalf("GetInt64 = %d, %v", v, err)
	}
}
