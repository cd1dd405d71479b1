// Global storage engine config.
package config

// Name of the storage engine.
const EngineName = "chunktree"

// PageSize is the maximum number of bytes a node page's serialized form
// should occupy before a split is triggered.
const PageSize int64 = 4096

// PageMemoryChild is the fixed per-child byte estimate added to a node's
// memory accounting for each entry in its children slice.
const PageMemoryChild int = 24

// MaxChunksInBuffer is a limit on how many chunk buffers a Storage
// implementation keeps mapped in memory at once before invoking GC.
// memstore.MemStorage does not apply it: it keeps every chunk it creates.
const MaxChunksInBuffer = 32

// PrettyPrintFanout bounds how many sibling subtrees a pretty-printing
// traversal will descend into concurrently.
const PrettyPrintFanout = 4

// ChecksumAlgorithmKind selects which hash backs the on-disk check value.
type ChecksumAlgorithmKind byte

const (
	ChecksumXxHash  ChecksumAlgorithmKind = 0
	ChecksumMurmur3 ChecksumAlgorithmKind = 1
)

// DefaultChecksumAlgorithm is used unless a caller asks for an alternate.
const DefaultChecksumAlgorithm = ChecksumXxHash

// Name of the write-ahead/diagnostic log file, kept for parity with the
// wider engine even though this subsystem never opens it directly.
const LogFileName = "chunktree.log"
