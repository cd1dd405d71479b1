// Package memstore is a concrete, in-memory realization of the
// storage.Storage/storage.Chunk collaborators, gluing the node-page format
// (package page) to the append-only chunk model (package storage) so that
// demos and integration tests have something to run against without a real
// persistent backing store.
//
// It is grounded on the teacher's pkg/pager.Pager: New starts with no
// chunks and NewChunk creates each chunk buffer on demand, and chunk
// creation order is tracked on the teacher's own pkg/list.List the way
// Pager tracks pinned/unpinned/free pages on it.
package memstore

import (
	"fmt"
	"sync"
	"sync/atomic"

	"chunktree/pkg/buffer"
	"chunktree/pkg/config"
	"chunktree/pkg/keytype"
	"chunktree/pkg/list"
	"chunktree/pkg/page"
	"chunktree/pkg/storage"
)

// chunkSlot bundles a chunk's occupancy bookkeeping with its backing bytes.
// storage.MemChunk tracks which blocks are occupied; the raw page bytes
// live here, in the buffer the writer appended them to.
type chunkSlot struct {
	chunk *storage.MemChunk
	data  *buffer.DataBuffer
}

// MemStorage implements storage.Storage and mints storage.Chunk values
// backed by plain Go memory. Its GC hook only does bookkeeping: spec §6
// leaves eviction itself to the out-of-scope map/session layer, since this
// subsystem's Storage contract hands back decoded pages by value rather
// than the PageReference that would need evicting (see DESIGN.md's
// import-cycle note on package storage).
type MemStorage struct {
	mu        sync.Mutex
	chunks    map[int32]*chunkSlot
	order     *list.List
	nextChunk int32

	keyType   keytype.Codec
	checkKind config.ChecksumAlgorithmKind

	memUsed  atomic.Int64
	memLimit int64

	pressureMu sync.Mutex
	onPressure func(used, limit int64)

	leafDecoder func(buf *buffer.DataBuffer) (storage.Page, error)
}

// SetLeafDecoder installs the callback used to decode a leaf record. Leaf
// wire format is an out-of-scope collaborator for the node-page core
// (spec.md §1); whatever package defines one registers its decoder here so
// ReadPage/ReadPageFromBuffer can dispatch on the page-kind bits of pos.
func (s *MemStorage) SetLeafDecoder(fn func(buf *buffer.DataBuffer) (storage.Page, error)) {
	s.leafDecoder = fn
}

// New constructs an empty MemStorage. memLimit is the soft byte budget at
// which GCIfNeeded starts reporting pressure; 0 disables the check.
func New(kt keytype.Codec, checkKind config.ChecksumAlgorithmKind, memLimit int64) *MemStorage {
	return &MemStorage{
		chunks:    make(map[int32]*chunkSlot),
		order:     list.NewList(),
		keyType:   kt,
		checkKind: checkKind,
		memLimit:  memLimit,
	}
}

// OnMemoryPressure registers a callback invoked synchronously from
// GCIfNeeded whenever cumulative memory use is at or above memLimit. The
// callback is where a caller holding its own tree's root PageReference
// would walk down and Evict() cold subtrees; this package has no such
// handle itself.
func (s *MemStorage) OnMemoryPressure(fn func(used, limit int64)) {
	s.pressureMu.Lock()
	defer s.pressureMu.Unlock()
	s.onPressure = fn
}

// NewChunk mints a fresh chunk with capacityBlocks blocks of initial
// free-space tracking capacity, and the DataBuffer its pages are written
// into. Both are handed to page.WriteUnsavedRecursive by the caller.
func (s *MemStorage) NewChunk(capacityBlocks uint) (storage.Chunk, *buffer.DataBuffer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextChunk
	s.nextChunk++
	slot := &chunkSlot{
		chunk: storage.NewMemChunk(id, capacityBlocks),
		data:  buffer.New(),
	}
	s.chunks[id] = slot
	s.order.PushTail(id)
	return slot.chunk, slot.data
}

// OldestChunkID returns the id of the longest-lived chunk still tracked, or
// false if no chunks have been created yet. Diagnostic only.
func (s *MemStorage) OldestChunkID() (int32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	head := s.order.PeekHead()
	if head == nil {
		return 0, false
	}
	return head.GetValue().(int32), true
}

func (s *MemStorage) slotFor(chunkID int32) (*chunkSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.chunks[chunkID]
	if !ok {
		return nil, fmt.Errorf("memstore: %w: chunk %d", storage.ErrOutOfRange, chunkID)
	}
	return slot, nil
}

// ReadPage implements storage.Storage.
func (s *MemStorage) ReadPage(pos storage.Pos) (storage.Page, []byte, error) {
	chunkID, offset, _, _ := storage.DecodePos(pos)
	slot, err := s.slotFor(chunkID)
	if err != nil {
		return nil, nil, err
	}
	length, _, ok := slot.chunk.PageAt(offset)
	if !ok {
		return nil, nil, fmt.Errorf("memstore: %w: chunk %d offset %d", storage.ErrOutOfRange, chunkID, offset)
	}
	raw := slot.data.Bytes()
	if int(offset)+int(length) > len(raw) {
		return nil, nil, fmt.Errorf("memstore: %w: record runs past chunk %d end", storage.ErrOutOfRange, chunkID)
	}
	record := raw[offset : offset+int64(length)]
	// Decode from the chunk buffer itself, cursor at the record's offset:
	// page.ReadNode verifies the check value against that offset.
	framed := buffer.Wrap(raw[:offset+int64(length)])
	framed.Seek(int(offset))
	p, err := s.decode(pos, framed, chunkID)
	if err != nil {
		return nil, nil, err
	}
	return p, record, nil
}

// ReadPageFromBuffer implements storage.Storage.
func (s *MemStorage) ReadPageFromBuffer(pos storage.Pos, buf []byte, length int32) (storage.Page, error) {
	chunkID, offset, _, _ := storage.DecodePos(pos)
	if int32(len(buf)) < length {
		return nil, fmt.Errorf("memstore: %w: cached buffer shorter than length", storage.ErrOutOfRange)
	}
	// Place the cached record at its in-chunk offset so the check value is
	// verified against the same offset it was computed with.
	framed := make([]byte, offset+int64(length))
	copy(framed[offset:], buf[:length])
	b := buffer.Wrap(framed)
	b.Seek(int(offset))
	return s.decode(pos, b, chunkID)
}

func (s *MemStorage) decode(pos storage.Pos, buf *buffer.DataBuffer, chunkID int32) (storage.Page, error) {
	if pos.IsLeaf() {
		if s.leafDecoder == nil {
			return nil, fmt.Errorf("memstore: %w: no leaf decoder registered", storage.ErrOutOfRange)
		}
		return s.leafDecoder(buf)
	}
	return page.ReadNode(buf, s.keyType, s.checkKind, chunkID)
}

// GCIfNeeded implements storage.Storage: it folds memoryDelta into a
// running total and, once the total reaches memLimit, reports pressure to
// whatever OnMemoryPressure callback is registered.
func (s *MemStorage) GCIfNeeded(memoryDelta int) {
	used := s.memUsed.Add(int64(memoryDelta))
	if s.memLimit <= 0 || used < s.memLimit {
		return
	}
	s.pressureMu.Lock()
	fn := s.onPressure
	s.pressureMu.Unlock()
	if fn != nil {
		fn(used, s.memLimit)
	}
}

// MemoryUsed reports the current running memory estimate.
func (s *MemStorage) MemoryUsed() int64 {
	return s.memUsed.Load()
}
