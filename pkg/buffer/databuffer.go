// Package buffer implements DataBuffer, the growable byte buffer the node
// page format is serialized into and read back out of. It plays the role
// the teacher's pager.Page.Update plays for a single fixed page, but for a
// growable chunk-sized buffer that supports seeking back to patch a
// previously-written field and then resuming at the end, the pattern
// writeUnsavedRecursive needs to fix up child positions after the fact.
package buffer

import (
	"encoding/binary"
	"errors"
)

// ErrShortBuffer is returned by Get* calls that run past the end of the
// buffer, e.g. when reading a corrupt or truncated page.
var ErrShortBuffer = errors.New("buffer: short buffer")

// DataBuffer is a big-endian, growable byte buffer with a cursor. Writes
// past the end grow the buffer; writes before the end patch in place.
type DataBuffer struct {
	buf []byte
	pos int
}

// New returns an empty DataBuffer.
func New() *DataBuffer {
	return &DataBuffer{}
}

// Wrap returns a DataBuffer reading from (and, if needed, writing atop) an
// existing byte slice, cursor at the start.
func Wrap(data []byte) *DataBuffer {
	return &DataBuffer{buf: data}
}

// Bytes returns the full underlying buffer, regardless of cursor position.
func (b *DataBuffer) Bytes() []byte {
	return b.buf
}

// Len returns the total length of the buffer.
func (b *DataBuffer) Len() int {
	return len(b.buf)
}

// Position returns the current cursor offset.
func (b *DataBuffer) Position() int {
	return b.pos
}

// Seek moves the cursor to the given absolute offset and returns the
// previous cursor position, so callers can restore it later.
func (b *DataBuffer) Seek(pos int) (prev int) {
	prev = b.pos
	b.pos = pos
	return prev
}

// WithPatch seeks to pos, runs fn (which is expected to overwrite
// already-allocated bytes, not grow the buffer), then restores the cursor
// to wherever it was before the call. This is the "patch position, rewrite,
// restore cursor" step used by writeUnsavedRecursive.
func (b *DataBuffer) WithPatch(pos int, fn func(*DataBuffer)) {
	end := b.pos
	b.pos = pos
	fn(b)
	b.pos = end
}

// grow ensures the buffer can hold n more bytes starting at the cursor,
// extending the backing slice if the cursor is at or past the current end.
func (b *DataBuffer) grow(n int) {
	need := b.pos + n
	if need <= len(b.buf) {
		return
	}
	grown := make([]byte, need)
	copy(grown, b.buf)
	b.buf = grown
}

func (b *DataBuffer) PutInt8(v int8) {
	b.grow(1)
	b.buf[b.pos] = byte(v)
	b.pos++
}

func (b *DataBuffer) PutUint8(v uint8) {
	b.PutInt8(int8(v))
}

func (b *DataBuffer) PutInt16(v int16) {
	b.grow(2)
	binary.BigEndian.PutUint16(b.buf[b.pos:], uint16(v))
	b.pos += 2
}

func (b *DataBuffer) PutInt32(v int32) {
	b.grow(4)
	binary.BigEndian.PutUint32(b.buf[b.pos:], uint32(v))
	b.pos += 4
}

func (b *DataBuffer) PutInt64(v int64) {
	b.grow(8)
	binary.BigEndian.PutUint64(b.buf[b.pos:], uint64(v))
	b.pos += 8
}

// PutVarInt writes v as a variable-length zig-zag varint, in the manner of
// encoding/binary.PutVarint, at the cursor.
func (b *DataBuffer) PutVarInt(v int64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutVarint(tmp[:], v)
	b.PutBytes(tmp[:n])
}

// PutBytes appends raw bytes at the cursor.
func (b *DataBuffer) PutBytes(data []byte) {
	b.grow(len(data))
	copy(b.buf[b.pos:], data)
	b.pos += len(data)
}

func (b *DataBuffer) GetInt8() (int8, error) {
	if b.pos+1 > len(b.buf) {
		return 0, ErrShortBuffer
	}
	v := int8(b.buf[b.pos])
	b.pos++
	return v, nil
}

func (b *DataBuffer) GetUint8() (uint8, error) {
	v, err := b.GetInt8()
	return uint8(v), err
}

func (b *DataBuffer) GetInt16() (int16, error) {
	if b.pos+2 > len(b.buf) {
		return 0, ErrShortBuffer
	}
	v := int16(binary.BigEndian.Uint16(b.buf[b.pos:]))
	b.pos += 2
	return v, nil
}

func (b *DataBuffer) GetInt32() (int32, error) {
	if b.pos+4 > len(b.buf) {
		return 0, ErrShortBuffer
	}
	v := int32(binary.BigEndian.Uint32(b.buf[b.pos:]))
	b.pos += 4
	return v, nil
}

func (b *DataBuffer) GetInt64() (int64, error) {
	if b.pos+8 > len(b.buf) {
		return 0, ErrShortBuffer
	}
	v := int64(binary.BigEndian.Uint64(b.buf[b.pos:]))
	b.pos += 8
	return v, nil
}

// GetVarInt reads a variable-length zig-zag varint at the cursor.
func (b *DataBuffer) GetVarInt() (int64, error) {
	v, n := binary.Varint(b.buf[b.pos:])
	if n <= 0 {
		return 0, ErrShortBuffer
	}
	b.pos += n
	return v, nil
}

// GetBytes reads n raw bytes at the cursor.
func (b *DataBuffer) GetBytes(n int) ([]byte, error) {
	if b.pos+n > len(b.buf) {
		return nil, ErrShortBuffer
	}
	out := b.buf[b.pos : b.pos+n]
	b.pos += n
	return out, nil
}
