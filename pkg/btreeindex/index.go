package btreeindex

import (
	"fmt"
	"io"
	"sync"

	"chunktree/pkg/buffer"
	"chunktree/pkg/keytype"
	"chunktree/pkg/memstore"
	"chunktree/pkg/page"
	"chunktree/pkg/pretty"
	"chunktree/pkg/storage"
)

// BTreeIndex is a demo key/value map wired directly to the node-page core,
// grounded on the teacher's pkg/btree.BTreeIndex. Unlike the teacher's
// fixed-size slotted pages, splits here are triggered by entry/key counts
// rather than a byte budget, since the byte-budget split policy
// (config.PageSize) belongs to the out-of-scope map layer the core only
// assumes the existence of.
type BTreeIndex struct {
	mu      sync.Mutex
	storage *memstore.MemStorage
	keyType keytype.Codec

	root *page.PageReference

	maxLeafEntries int
	maxNodeKeys    int

	removable []storage.Pos // pages marked removable by the last checkpoint; reset by each Checkpoint
}

// OpenIndex returns an index backed by store, starting from a single empty
// leaf root (mirroring the teacher's OpenIndex initializing a fresh leaf
// root page). store must not yet have a leaf decoder registered; OpenIndex
// installs one for MemLeaf.
func OpenIndex(kt keytype.Codec, store *memstore.MemStorage, maxLeafEntries, maxNodeKeys int) *BTreeIndex {
	store.SetLeafDecoder(func(buf *buffer.DataBuffer) (storage.Page, error) {
		return ReadLeaf(buf)
	})

	root := NewMemLeaf()
	rootRef := page.NewPageReference(root)
	root.SetRef(rootRef)

	return &BTreeIndex{
		storage:        store,
		keyType:        kt,
		root:           rootRef,
		maxLeafEntries: maxLeafEntries,
		maxNodeKeys:    maxNodeKeys,
	}
}

// Get returns the value stored under key.
func (idx *BTreeIndex) Get(key int64) (int64, bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.get(idx.root, key)
}

func (idx *BTreeIndex) get(ref *page.PageReference, key int64) (int64, bool, error) {
	p, err := ref.GetPage(idx.storage)
	if err != nil {
		return 0, false, err
	}
	switch n := p.(type) {
	case *MemLeaf:
		v, ok := n.Get(key)
		return v, ok, nil
	case *page.NodePage:
		i := n.ChildIndexFor(key)
		return idx.get(n.ChildAt(i), key)
	default:
		return 0, false, fmt.Errorf("btreeindex: unknown page type %T", p)
	}
}

// Insert adds or updates the value stored under key.
func (idx *BTreeIndex) Insert(key, value int64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	newRootRef, split, err := idx.insert(idx.root, key, value)
	if err != nil {
		return err
	}
	if split != nil {
		newRoot, err := page.Create(idx.keyType, []int64{split.Key}, []*page.PageReference{split.Left, split.Right})
		if err != nil {
			return err
		}
		newRootRef = page.NewPageReference(newRoot)
		newRoot.SetRef(newRootRef)
		split.Left.SetParentRef(newRootRef)
		split.Right.SetParentRef(newRootRef)
	}
	idx.root = newRootRef
	return nil
}

// insert descends to the leaf owning key, building copy-on-write
// replacements back up to (but not including) the caller's own level. It
// returns either a replacement reference for ref (split == nil) or a
// completed split the caller must absorb via CopyAndInsertChild.
func (idx *BTreeIndex) insert(ref *page.PageReference, key, value int64) (*page.PageReference, *page.SplitResult, error) {
	p, err := ref.GetPage(idx.storage)
	if err != nil {
		return nil, nil, err
	}

	switch n := p.(type) {
	case *MemLeaf:
		updated := n.CloneWithUpsert(key, value)
		if updated.NumEntries() <= idx.maxLeafEntries {
			newRef := page.NewPageReference(updated)
			updated.SetRef(newRef)
			return newRef, nil, nil
		}
		separator, left, right := updated.Split()
		leftRef, rightRef := page.NewPageReference(left), page.NewPageReference(right)
		left.SetRef(leftRef)
		right.SetRef(rightRef)
		return nil, &page.SplitResult{Key: separator, Left: leftRef, Right: rightRef}, nil

	case *page.NodePage:
		i := n.ChildIndexFor(key)
		newChildRef, childSplit, err := idx.insert(n.ChildAt(i), key, value)
		if err != nil {
			return nil, nil, err
		}

		if childSplit == nil {
			newNode, err := n.CopyWithReplacedChild(i, newChildRef)
			if err != nil {
				return nil, nil, err
			}
			return newNode.Ref(), nil, nil
		}

		newNode, err := n.CopyAndInsertChild(*childSplit)
		if err != nil {
			return nil, nil, err
		}
		if newNode.NumKeys() <= idx.maxNodeKeys {
			newRef := page.NewPageReference(newNode)
			newNode.SetRef(newRef)
			return newRef, nil, nil
		}
		sepAt := newNode.NumKeys() / 2
		separator, right, err := newNode.Split(sepAt)
		if err != nil {
			return nil, nil, err
		}
		leftRef, rightRef := page.NewPageReference(newNode), page.NewPageReference(right)
		newNode.SetRef(leftRef)
		right.SetRef(rightRef)
		return nil, &page.SplitResult{Key: separator, Left: leftRef, Right: rightRef}, nil

	default:
		return nil, nil, fmt.Errorf("btreeindex: unknown page type %T", p)
	}
}

// MarkRemovable implements page.RemovalSink: it just records the position
// for inspection by tests, standing in for the out-of-scope chunk
// compaction process named in spec.md §1.
func (idx *BTreeIndex) MarkRemovable(pos storage.Pos) {
	idx.removable = append(idx.removable, pos)
}

// Removable returns the positions superseded by the most recent edits and
// observed removable during the last Checkpoint call.
func (idx *BTreeIndex) Removable() []storage.Pos {
	return idx.removable
}

// Checkpoint persists every unsaved page reachable from the root into
// chunk/buf. Leaf pages are written directly (their format is this demo's
// own invention, spec.md §1 places leaf persistence out of scope); node
// pages are persisted via page.NodePage.WriteUnsavedRecursive.
func (idx *BTreeIndex) Checkpoint(chunk storage.Chunk, buf *buffer.DataBuffer) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removable = nil

	if err := idx.persistLeaves(idx.root, chunk, buf); err != nil {
		return fmt.Errorf("btreeindex: persist leaves: %w", err)
	}

	p, err := idx.root.GetPage(idx.storage)
	if err != nil {
		return err
	}
	if n, ok := p.(*page.NodePage); ok {
		return n.WriteUnsavedRecursive(chunk, buf, idx)
	}
	return nil
}

// persistLeaves walks the unsaved subtree rooted at ref and writes every
// leaf it finds. A ref whose Pos() is already set is, by copy-on-write,
// fully persisted transitively and is skipped without a disk read (the
// same pos==0-implies-resident invariant writeUnsavedRecursive relies on).
func (idx *BTreeIndex) persistLeaves(ref *page.PageReference, chunk storage.Chunk, buf *buffer.DataBuffer) error {
	if ref.Pos() != storage.NoPos {
		return nil
	}
	p, err := ref.GetPage(idx.storage)
	if err != nil {
		return err
	}
	switch n := p.(type) {
	case *MemLeaf:
		return n.Write(buf, chunk)
	case *page.NodePage:
		for i := 0; i < len(n.Children()); i++ {
			if err := idx.persistLeaves(n.ChildAt(i), chunk, buf); err != nil {
				return err
			}
		}
	}
	return nil
}

// Print writes a diagnostic tree dump to w via package pretty.
func (idx *BTreeIndex) Print(w io.Writer) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	p, err := idx.root.GetPage(idx.storage)
	if err != nil {
		return err
	}
	n, ok := p.(*page.NodePage)
	if !ok {
		_, err := fmt.Fprintf(w, "[leaf] pos: %d\n", p.Pos())
		return err
	}
	return pretty.Print(w, n, idx.storage)
}
