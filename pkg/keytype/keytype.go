// Package keytype is the KeyType codec collaborator named in spec §6: it
// must be deterministic and lossless, translating a node page's in-memory
// keys to and from the bytes the page body stores. It is grounded on the
// teacher's pkg/entry.Entry, which marshals an int64 key with
// binary.PutVarint/binary.Varint rather than a fixed-width encoding.
package keytype

import (
	"encoding/binary"

	"chunktree/pkg/buffer"
)

// Codec is the out-of-scope key-type collaborator's contract.
type Codec interface {
	// Memory returns the byte-count estimate for a single key, used for
	// the node's running memory accounting.
	Memory(key int64) int
	// Write serializes n keys from the front of keys into buf.
	Write(buf *buffer.DataBuffer, keys []int64, n int)
	// Read deserializes n keys from buf into the front of outKeys.
	Read(buf *buffer.DataBuffer, outKeys []int64, n int) error
}

// Int64Codec is the reference KeyType implementation: plain signed 64-bit
// integer keys, varint-encoded exactly as the teacher's Entry.Marshal
// encodes its Key field.
type Int64Codec struct{}

// Memory reports the worst-case varint width for an int64 key.
func (Int64Codec) Memory(key int64) int {
	return binary.MaxVarintLen64
}

func (Int64Codec) Write(buf *buffer.DataBuffer, keys []int64, n int) {
	for i := 0; i < n; i++ {
		buf.PutVarInt(keys[i])
	}
}

func (Int64Codec) Read(buf *buffer.DataBuffer, outKeys []int64, n int) error {
	for i := 0; i < n; i++ {
		v, err := buf.GetVarInt()
		if err != nil {
			return err
		}
		outKeys[i] = v
	}
	return nil
}
