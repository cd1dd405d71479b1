package page

import (
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"chunktree/pkg/compress"
	"chunktree/pkg/config"
	"chunktree/pkg/keytype"
	"chunktree/pkg/storage"
)

// NodePage is a B-tree inner node: sorted separator keys plus one more
// child reference than it has keys (spec §3/§4). It is the tagged
// "Node" variant of the teacher's deep LocalPage/NodePage/LeafNode
// inheritance (spec Design Notes §9): Go has no class inheritance, so the
// shared LocalPage behavior (keys, memory accounting, access stamp) is
// just embedded fields on this struct rather than a separate base type,
// and leaf pages are an out-of-scope sibling variant this package never
// defines.
type NodePage struct {
	keyType    keytype.Codec
	compressor compress.Codec
	checkKind  config.ChecksumAlgorithmKind

	keys     []int64
	children []*PageReference

	memory int

	pos atomic.Int64 // storage.Pos; 0 (storage.NoPos) until first persistence

	ref *PageReference // the reference, in this page's parent, that points at this page

	cachedCompare int64 // hint: last hit index, speeds up monotonic access patterns

	accessTime atomic.Int64 // unix nanos, updated by GetChildPage / touch
	removed    atomic.Bool  // true once a copy-on-write edit has superseded this page

	// supersedes is the on-disk position of the published page this one
	// replaces via copy-on-write, if any. WriteUnsavedRecursive reports
	// it to the RemovalSink once this page itself is persisted (spec
	// §4.7 step 5: "mark this page's prior on-disk image... removable").
	supersedes storage.Pos
}

// Supersedes returns the position of the published page this one replaced
// via copy-on-write, or storage.NoPos if this page has no predecessor.
func (n *NodePage) Supersedes() storage.Pos { return n.supersedes }

// Create builds a fresh (or copy-on-write cloned) NodePage. Its memory
// estimate is always computed here from keys and children; a caller that
// already knows the figure (CopyAndInsertChild, building on a known base)
// overwrites it afterwards.
func Create(kt keytype.Codec, keys []int64, children []*PageReference) (*NodePage, error) {
	if len(children) != len(keys)+1 {
		return nil, fmt.Errorf("page: %w: len(children)=%d != len(keys)+1=%d", ErrCorruptPage, len(children), len(keys)+1)
	}
	n := &NodePage{
		keyType:    kt,
		compressor: compress.None(),
		checkKind:  config.DefaultChecksumAlgorithm,
		keys:       keys,
		children:   children,
	}
	n.memory = n.computeMemory()
	n.touch()
	return n, nil
}

// SetCompressor overrides the default no-compression codec, e.g. to enable
// zstd-compressed bodies.
func (n *NodePage) SetCompressor(c compress.Codec) { n.compressor = c }

// Kind implements storage.Page.
func (n *NodePage) Kind() storage.PageKind { return storage.PageKindNode }

// Pos implements storage.Page.
func (n *NodePage) Pos() storage.Pos { return storage.Pos(n.pos.Load()) }

// Ref returns the PageReference, in this page's parent, that points at
// this page. The root's ref is a sentinel owned by the caller (spec §3).
func (n *NodePage) Ref() *PageReference { return n.ref }

// SetRef installs the owning reference. Called once, right after a new
// NodePage is wrapped in a PageReference.
func (n *NodePage) SetRef(ref *PageReference) { n.ref = ref }

// NumKeys returns K, the number of separator keys.
func (n *NodePage) NumKeys() int { return len(n.keys) }

// Keys returns the node's separator keys, ordered. Callers must not mutate
// the returned slice.
func (n *NodePage) Keys() []int64 { return n.keys }

// KeyAt returns the i-th separator key.
func (n *NodePage) KeyAt(i int) int64 { return n.keys[i] }

// Children returns the node's K+1 child references, ordered. Callers must
// not mutate the returned slice.
func (n *NodePage) Children() []*PageReference { return n.children }

// ChildAt returns the i-th child reference.
func (n *NodePage) ChildAt(i int) *PageReference { return n.children[i] }

// Memory returns the running byte-count estimate (spec §3).
func (n *NodePage) Memory() int { return n.memory }

// Removed reports whether this page has been superseded by a
// copy-on-write edit.
func (n *NodePage) Removed() bool { return n.removed.Load() }

// markRemoved flags the old side of a copy-on-write edit.
func (n *NodePage) markRemoved() { n.removed.Store(true) }

// touch stamps the access-time field used by GetChildPage, part of the
// shared LocalPage access-time behavior (spec §3).
func (n *NodePage) touch() { n.accessTime.Store(time.Now().UnixNano()) }

// AccessTime returns the last-touched timestamp (unix nanos).
func (n *NodePage) AccessTime() int64 { return n.accessTime.Load() }

// computeMemory recomputes the memory estimate from scratch: spec §3's
// formula, Σ keyType.memory(keys[i]) + (K+1)·PAGE_MEMORY_CHILD.
func (n *NodePage) computeMemory() int {
	total := 0
	for _, k := range n.keys {
		total += n.keyType.Memory(k)
	}
	total += len(n.children) * config.PageMemoryChild
	return total
}

// search returns the index i such that keys[i-1] <= key < keys[i] (the
// child index to descend into), via binary search seeded by the cached
// last-hit index to accelerate monotonic access patterns (spec §3
// "cachedCompare").
func (n *NodePage) search(key int64) int {
	if hint := int(n.cachedCompare); hint >= 0 && hint < len(n.keys) && n.keys[hint] == key {
		return hint + 1
	}
	idx := sort.Search(len(n.keys), func(i int) bool { return n.keys[i] > key })
	n.cachedCompare = int64(idx)
	return idx
}

// ChildIndexFor returns the index of the child subtree that would hold
// key, per the same search used internally by GetChildPage. Exposed so a
// caller outside this package (the out-of-scope map layer) can drive its
// own traversal without reimplementing the binary search.
func (n *NodePage) ChildIndexFor(key int64) int {
	return n.search(key)
}

// GetChildPage resolves the i-th child to a resident page, per the 5-step
// resolution order of spec §4.2 (page.PageReference.GetPage already
// implements steps 2-5; this wraps it with the access-time touch of step
// 2 and an index check).
func (n *NodePage) GetChildPage(i int, s storage.Storage) (storage.Page, error) {
	if i < 0 || i >= len(n.children) {
		invariantViolation("GetChildPage index out of range")
	}
	n.touch()
	p, err := n.children[i].GetPage(s)
	if err != nil {
		return nil, fmt.Errorf("page: get child %d: %w", i, err)
	}
	return p, nil
}

// Split implements spec §4.3: the node is mutated in place to keep
// keys[0:at] and children[0:at+1]; a new sibling receives the rest, minus
// the separator key at index at which is returned to the caller. Only
// valid on an unpublished working copy.
func (n *NodePage) Split(at int) (separator int64, right *NodePage, err error) {
	k := len(n.keys)
	if at < 0 || at >= k {
		invariantViolation("split index out of range")
	}
	separator = n.keys[at]

	rightKeys := append([]int64(nil), n.keys[at+1:]...)
	rightChildren := append([]*PageReference(nil), n.children[at+1:]...)

	right, err = Create(n.keyType, rightKeys, rightChildren)
	if err != nil {
		return 0, nil, err
	}
	right.compressor = n.compressor
	right.checkKind = n.checkKind

	n.keys = append([]int64(nil), n.keys[:at]...)
	n.children = append([]*PageReference(nil), n.children[:at+1]...)
	n.memory = n.computeMemory()
	n.cachedCompare = 0

	return separator, right, nil
}

// CopyWithReplacedChild builds a new NodePage identical to the receiver
// except that child slot i now points at newChild, and marks the receiver
// removed. This is the non-split counterpart to CopyAndInsertChild: a
// descent that rewrote a grandchild still must copy every ancestor up to
// the root, since publication is a single reference swap (spec §5), even
// when no key is being inserted at this level.
func (n *NodePage) CopyWithReplacedChild(i int, newChild *PageReference) (*NodePage, error) {
	if i < 0 || i >= len(n.children) {
		invariantViolation("replaced child index out of range")
	}
	newChildren := append([]*PageReference(nil), n.children...)
	newChildren[i] = newChild

	newNode, err := Create(n.keyType, append([]int64(nil), n.keys...), newChildren)
	if err != nil {
		return nil, err
	}
	newNode.compressor = n.compressor
	newNode.checkKind = n.checkKind

	newRef := NewPageReference(newNode)
	newNode.SetRef(newRef)
	newChild.SetParentRef(newRef)

	if oldPos := n.Pos(); oldPos != storage.NoPos {
		newNode.supersedes = oldPos
	}
	n.markRemoved()
	return newNode, nil
}

// SplitResult carries the separator key and two child references produced
// by a completed child-level split, handed up to CopyAndInsertChild (spec
// §4.4).
type SplitResult struct {
	Key   int64
	Left  *PageReference
	Right *PageReference
}

// CopyAndInsertChild implements spec §4.4: builds a new NodePage with the
// separator inserted and the matching child slot split into two, rewires
// the parent back-pointers of the two new children, and marks the
// receiver removed. Pure function (old, edit) -> new, per Design Notes §9.
func (n *NodePage) CopyAndInsertChild(tmp SplitResult) (*NodePage, error) {
	i := n.search(tmp.Key)

	newKeys := make([]int64, len(n.keys)+1)
	copy(newKeys[:i], n.keys[:i])
	newKeys[i] = tmp.Key
	copy(newKeys[i+1:], n.keys[i:])

	newChildren := make([]*PageReference, len(n.children)+1)
	copy(newChildren[:i], n.children[:i])
	newChildren[i] = tmp.Left
	newChildren[i+1] = tmp.Right
	copy(newChildren[i+2:], n.children[i+1:])

	newNode, err := Create(n.keyType, newKeys, newChildren)
	if err != nil {
		return nil, err
	}
	newNode.compressor = n.compressor
	newNode.checkKind = n.checkKind
	newNode.memory = n.memory + n.keyType.Memory(tmp.Key) + config.PageMemoryChild

	newRef := NewPageReference(newNode)
	newNode.SetRef(newRef)
	tmp.Left.SetParentRef(newRef)
	tmp.Right.SetParentRef(newRef)

	if oldPos := n.Pos(); oldPos != storage.NoPos {
		newNode.supersedes = oldPos
	}
	n.markRemoved()
	return newNode, nil
}

// Remove implements spec §4.5: shrinks the node by one child slot and, if
// any keys remain, one key. Only valid on an unpublished working copy.
func (n *NodePage) Remove(index int) {
	if index < 0 || index >= len(n.children) {
		invariantViolation("remove index out of range")
	}
	n.children = append(n.children[:index], n.children[index+1:]...)
	n.memory -= config.PageMemoryChild

	if len(n.keys) == 0 {
		return
	}
	keyIdx := index
	if keyIdx >= len(n.keys) {
		keyIdx = len(n.keys) - 1
	}
	removedKey := n.keys[keyIdx]
	n.keys = append(n.keys[:keyIdx], n.keys[keyIdx+1:]...)
	n.memory -= n.keyType.Memory(removedKey)
	n.cachedCompare = 0
}
