// Package btreeindex is a small demo map built on top of the node-page
// core: it supplies the leaf-page and insertion-orchestration logic the
// core spec leaves to an out-of-scope collaborator, so the core has
// something real to run end-to-end against. It is grounded on the
// teacher's pkg/btree.BTreeIndex (OpenIndex/Find/Insert/Delete/Select) and
// pkg/btree/leafNode.go (sorted key/value pairs, sibling split).
package btreeindex

import (
	"fmt"
	"sort"
	"sync/atomic"

	"chunktree/pkg/buffer"
	"chunktree/pkg/page"
	"chunktree/pkg/storage"
)

// MemLeaf is the minimal leaf-page stand-in the node-page core treats as an
// opaque out-of-scope collaborator (spec.md §1 "leaf-page logic"). It
// satisfies storage.Page so a *page.NodePage can hold it as a child, and
// nothing else: the core never looks inside it.
type MemLeaf struct {
	keys   []int64
	values []int64
	pos    atomic.Int64
	ref    *page.PageReference
}

// NewMemLeaf returns an empty leaf.
func NewMemLeaf() *MemLeaf {
	return &MemLeaf{}
}

// Kind implements storage.Page.
func (l *MemLeaf) Kind() storage.PageKind { return storage.PageKindLeaf }

// Pos implements storage.Page.
func (l *MemLeaf) Pos() storage.Pos { return storage.Pos(l.pos.Load()) }

// Ref returns the PageReference, in this leaf's parent, pointing at it.
func (l *MemLeaf) Ref() *page.PageReference { return l.ref }

// SetRef installs the owning reference.
func (l *MemLeaf) SetRef(ref *page.PageReference) { l.ref = ref }

// Get returns the value stored under key, if present.
func (l *MemLeaf) Get(key int64) (int64, bool) {
	i := sort.Search(len(l.keys), func(i int) bool { return l.keys[i] >= key })
	if i < len(l.keys) && l.keys[i] == key {
		return l.values[i], true
	}
	return 0, false
}

// CloneWithUpsert returns a new leaf with key/value inserted or updated,
// leaving the receiver untouched (copy-on-write, matching the node page's
// own create-don't-mutate discipline).
func (l *MemLeaf) CloneWithUpsert(key, value int64) *MemLeaf {
	i := sort.Search(len(l.keys), func(i int) bool { return l.keys[i] >= key })
	next := &MemLeaf{}
	if i < len(l.keys) && l.keys[i] == key {
		next.keys = append(next.keys, l.keys...)
		next.values = append(next.values, l.values...)
		next.values[i] = value
		return next
	}
	next.keys = make([]int64, len(l.keys)+1)
	next.values = make([]int64, len(l.values)+1)
	copy(next.keys[:i], l.keys[:i])
	copy(next.values[:i], l.values[:i])
	next.keys[i] = key
	next.values[i] = value
	copy(next.keys[i+1:], l.keys[i:])
	copy(next.values[i+1:], l.values[i:])
	return next
}

// Split divides the leaf roughly in half, returning the separator key (the
// right half's first key, matching the node page's own "separator is the
// first excluded key" convention) and the two halves.
func (l *MemLeaf) Split() (separator int64, left, right *MemLeaf) {
	mid := len(l.keys) / 2
	left = &MemLeaf{
		keys:   append([]int64(nil), l.keys[:mid]...),
		values: append([]int64(nil), l.values[:mid]...),
	}
	right = &MemLeaf{
		keys:   append([]int64(nil), l.keys[mid:]...),
		values: append([]int64(nil), l.values[mid:]...),
	}
	return right.keys[0], left, right
}

// NumEntries returns the number of key/value pairs stored.
func (l *MemLeaf) NumEntries() int { return len(l.keys) }

// Entries returns the leaf's key/value pairs, ordered.
func (l *MemLeaf) Entries() ([]int64, []int64) { return l.keys, l.values }

// leafRecordKind tags a serialized leaf record so ReadLeaf (below) can
// distinguish it from a node record sharing the same chunk.
const leafRecordKind = storage.PageKindLeaf

// Write serializes the leaf in a simple count-prefixed key/value format and
// registers it with chunk. This format is this demo's own invention (the
// real leaf wire format is explicitly out of scope, spec.md §1); it exists
// only so btreeindex.Checkpoint can exercise writeUnsavedRecursive against
// a mixed node/leaf subtree.
func (l *MemLeaf) Write(buf *buffer.DataBuffer, chunk storage.Chunk) error {
	start := buf.Position()
	buf.PutUint8(byte(leafRecordKind))
	buf.PutVarInt(int64(len(l.keys)))
	for i := range l.keys {
		buf.PutInt64(l.keys[i])
		buf.PutInt64(l.values[i])
	}
	length := int32(buf.Position() - start)
	pos, err := chunk.RegisterPage(int64(start), length, storage.PageKindLeaf)
	if err != nil {
		return fmt.Errorf("btreeindex: register leaf: %w", err)
	}
	l.pos.Store(int64(pos))
	return nil
}

// ReadLeaf deserializes a leaf written by Write.
func ReadLeaf(buf *buffer.DataBuffer) (*MemLeaf, error) {
	kindByte, err := buf.GetUint8()
	if err != nil {
		return nil, fmt.Errorf("btreeindex: leaf kind: %w", err)
	}
	if storage.PageKind(kindByte) != leafRecordKind {
		return nil, fmt.Errorf("btreeindex: expected leaf record, got kind %d", kindByte)
	}
	n, err := buf.GetVarInt()
	if err != nil {
		return nil, fmt.Errorf("btreeindex: leaf count: %w", err)
	}
	l := &MemLeaf{keys: make([]int64, n), values: make([]int64, n)}
	for i := range l.keys {
		k, err := buf.GetInt64()
		if err != nil {
			return nil, fmt.Errorf("btreeindex: leaf key %d: %w", i, err)
		}
		v, err := buf.GetInt64()
		if err != nil {
			return nil, fmt.Errorf("btreeindex: leaf value %d: %w", i, err)
		}
		l.keys[i], l.values[i] = k, v
	}
	return l, nil
}
