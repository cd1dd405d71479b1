// Package checksum computes the 16-bit check value stored in a node page's
// header (spec §4.6), derived from the chunk id, start offset and page
// length. It is grounded on the teacher's pkg/hash hashers, which reach for
// xxhash and murmur3 rather than hand-rolling a hash function.
package checksum

import (
	"encoding/binary"

	"github.com/cespare/xxhash"
	"github.com/spaolacci/murmur3"

	"chunktree/pkg/config"
)

// Compute folds a fast 64-bit hash of (chunkID, startOffset, pageLength)
// down to the 16-bit check value written into the page header. The
// algorithm used is selected by kind, matching the "type byte records...
// by which algorithm" allowance for the body compression flag (spec §4.6),
// applied here to the check-value side of the same header.
func Compute(kind config.ChecksumAlgorithmKind, chunkID int32, startOffset int64, pageLength int32) int16 {
	buf := make([]byte, 4+8+4)
	binary.BigEndian.PutUint32(buf[0:4], uint32(chunkID))
	binary.BigEndian.PutUint64(buf[4:12], uint64(startOffset))
	binary.BigEndian.PutUint32(buf[12:16], uint32(pageLength))

	var sum uint64
	switch kind {
	case config.ChecksumMurmur3:
		sum = murmur3.Sum64(buf)
	default:
		sum = xxhash.Sum64(buf)
	}
	return int16(uint16(sum) ^ uint16(sum>>32))
}

// Verify recomputes the check value for (chunkID, startOffset, pageLength)
// under the given algorithm and reports whether it matches want.
func Verify(kind config.ChecksumAlgorithmKind, chunkID int32, startOffset int64, pageLength int32, want int16) bool {
	return Compute(kind, chunkID, startOffset, pageLength) == want
}
