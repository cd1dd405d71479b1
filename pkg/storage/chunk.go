package storage

import (
	"fmt"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/google/uuid"
)

// blockSize is the granularity at which a MemChunk tracks free space. It
// plays the same role the teacher's directio.BlockSize plays for pager.Page
// alignment, but for variable-length page records within one chunk buffer.
const blockSize = 64

// pageRecord is the offset/length/kind a Chunk remembers about one of its
// previously-registered pages.
type pageRecord struct {
	start  int64
	length int32
	kind   PageKind
}

// MemChunk is a concrete, in-memory Chunk. Its free-space bookkeeping uses
// a bitset.BitSet over block-sized slots. The teacher's go.mod carries
// bits-and-blooms/bitset without ever importing it; this is where this
// subsystem puts it to work, tracking which blocks of the chunk buffer are
// occupied so that chunk-compaction (named out of scope in spec §1) would
// have something concrete to consult.
type MemChunk struct {
	id        int32
	sessionID uuid.UUID // diagnostic only; see SPEC_FULL.md domain-stack table
	mu        sync.Mutex
	free      *bitset.BitSet
	pages     map[int64]pageRecord
	size      int64
}

// NewMemChunk constructs an empty chunk with the given id and an initial
// free-space tracking capacity of capacityBlocks blocks.
func NewMemChunk(id int32, capacityBlocks uint) *MemChunk {
	return &MemChunk{
		id:        id,
		sessionID: uuid.New(),
		free:      bitset.New(capacityBlocks).Complement(), // all blocks start free
		pages:     make(map[int64]pageRecord),
	}
}

func (c *MemChunk) ID() int32 { return c.id }

// SessionID returns the diagnostic uuid tagging this chunk's write-back
// session. No other package in this module reads it.
func (c *MemChunk) SessionID() uuid.UUID { return c.sessionID }

func (c *MemChunk) RegisterPage(start int64, pageLength int32, kind PageKind) (Pos, error) {
	if pageLength <= 0 {
		return NoPos, fmt.Errorf("storage: invalid page length %d", pageLength)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	firstBlock := uint(start / blockSize)
	blockCount := uint((int64(pageLength) + blockSize - 1) / blockSize)
	c.ensureCapacity(firstBlock + blockCount)
	for b := firstBlock; b < firstBlock+blockCount; b++ {
		c.free.Clear(b)
	}
	c.pages[start] = pageRecord{start: start, length: pageLength, kind: kind}
	if end := start + int64(pageLength); end > c.size {
		c.size = end
	}
	return EncodePos(c.id, start, LengthCodeFor(pageLength), kind), nil
}

// ensureCapacity grows the free bitset so that index n is addressable.
// Caller must hold c.mu.
func (c *MemChunk) ensureCapacity(n uint) {
	if c.free.Len() >= n {
		return
	}
	grown := bitset.New(n).Complement()
	for b := uint(0); b < c.free.Len(); b++ {
		if !c.free.Test(b) {
			grown.Clear(b) // keep occupied blocks occupied
		}
	}
	c.free = grown
}

// PageAt returns the previously-registered record for the page starting at
// start, if any. Used by MemStorage to locate bytes for a read.
func (c *MemChunk) PageAt(start int64) (length int32, kind PageKind, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.pages[start]
	if !ok {
		return 0, 0, false
	}
	return rec.length, rec.kind, true
}

// FreeBlocks reports how many blocks of capacity blocks are currently
// unoccupied, used by tests asserting that compaction would have work to
// reclaim.
func (c *MemChunk) FreeBlocks() uint {
	return c.free.Count()
}

// Release marks the blocks backing the page at start as reclaimable. A
// real chunk-compaction process (explicitly out of scope per spec §1)
// would eventually reuse them; this only updates the free-space map.
func (c *MemChunk) Release(start int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.pages[start]
	if !ok {
		return
	}
	firstBlock := uint(rec.start / blockSize)
	blockCount := uint((int64(rec.length) + blockSize - 1) / blockSize)
	for b := firstBlock; b < firstBlock+blockCount && b < c.free.Len(); b++ {
		c.free.Set(b)
	}
	delete(c.pages, start)
}
