package btreeindex

import (
	"errors"
	"fmt"
	"io"

	"chunktree/pkg/page"
	"chunktree/pkg/pretty"
	"chunktree/pkg/storage"
)

// Entry is one key/value pair, returned by Select/SelectRange.
type Entry struct {
	Key   int64
	Value int64
}

// Select returns every entry in the index, ordered by key. Grounded on the
// teacher's BTreeIndex.Select, simplified to a plain recursive in-order
// walk since the node-page core does not define a cursor/iterator type.
func (idx *BTreeIndex) Select() ([]Entry, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	var out []Entry
	if err := idx.collect(idx.root, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SelectRange returns entries with keys in [startKey, endKey).
func (idx *BTreeIndex) SelectRange(startKey, endKey int64) ([]Entry, error) {
	if startKey >= endKey {
		return nil, errors.New("btreeindex: startKey must be smaller than endKey")
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	var out []Entry
	if err := idx.collect(idx.root, &startKey, &endKey, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (idx *BTreeIndex) collect(ref *page.PageReference, lo, hi *int64, out *[]Entry) error {
	p, err := ref.GetPage(idx.storage)
	if err != nil {
		return err
	}
	switch n := p.(type) {
	case *MemLeaf:
		keys, values := n.Entries()
		for i, k := range keys {
			if lo != nil && k < *lo {
				continue
			}
			if hi != nil && k >= *hi {
				continue
			}
			*out = append(*out, Entry{Key: k, Value: values[i]})
		}
		return nil
	case *page.NodePage:
		for i := 0; i < len(n.Children()); i++ {
			if lo != nil && i < n.NumKeys() && n.KeyAt(i) <= *lo {
				continue
			}
			if hi != nil && i > 0 && n.KeyAt(i-1) >= *hi {
				continue
			}
			if err := idx.collect(n.ChildAt(i), lo, hi, out); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("btreeindex: unknown page type %T", p)
	}
}

// Delete removes key from the index, if present. Unlike Insert, it does
// not merge or rebalance underflowed nodes: remove(index) (spec.md §4.5)
// only defines shrinking a node's own slot count, and the rebalancing
// policy that decides when siblings should merge belongs to the
// out-of-scope map layer (spec.md §1), so this demo leaves nodes sparse
// rather than inventing one.
func (idx *BTreeIndex) Delete(key int64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	newRoot, err := idx.delete(idx.root, key)
	if err != nil {
		return err
	}
	idx.root = newRoot
	return nil
}

func (idx *BTreeIndex) delete(ref *page.PageReference, key int64) (*page.PageReference, error) {
	p, err := ref.GetPage(idx.storage)
	if err != nil {
		return nil, err
	}
	switch n := p.(type) {
	case *MemLeaf:
		keys, values := n.Entries()
		next := &MemLeaf{}
		for i, k := range keys {
			if k == key {
				continue
			}
			next.keys = append(next.keys, k)
			next.values = append(next.values, values[i])
		}
		newRef := page.NewPageReference(next)
		next.SetRef(newRef)
		return newRef, nil
	case *page.NodePage:
		i := n.ChildIndexFor(key)
		newChildRef, err := idx.delete(n.ChildAt(i), key)
		if err != nil {
			return nil, err
		}
		newNode, err := n.CopyWithReplacedChild(i, newChildRef)
		if err != nil {
			return nil, err
		}
		return newNode.Ref(), nil
	default:
		return nil, fmt.Errorf("btreeindex: unknown page type %T", p)
	}
}

// PrintPN prints the subtree rooted at the child reference at index
// childIndex within the root node, for inspecting a specific branch.
// Grounded on the teacher's BTreeIndex.PrintPN, adapted from a flat
// page-number lookup (no equivalent concept exists over an opaque
// storage.Pos) to a single child index of the root.
func (idx *BTreeIndex) PrintPN(childIndex int, w io.Writer) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	p, err := idx.root.GetPage(idx.storage)
	if err != nil {
		return err
	}
	n, ok := p.(*page.NodePage)
	if !ok {
		return errors.New("btreeindex: root is a leaf, no children to print")
	}
	child, err := n.GetChildPage(childIndex, idx.storage)
	if err != nil {
		return err
	}
	cn, ok := child.(*page.NodePage)
	if !ok {
		_, err := fmt.Fprintf(w, "[leaf] pos: %d\n", child.Pos())
		return err
	}
	return pretty.Print(w, cn, idx.storage)
}

// IsBTree verifies the ordering invariant of spec.md §3 holds across the
// whole tree: keys in children[i] < keys[i] <= keys in children[i+1]. It
// returns the minimum and maximum key observed in the subtree.
func IsBTree(idx *BTreeIndex) (lo, hi int64, ok bool, err error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	p, err := idx.root.GetPage(idx.storage)
	if err != nil {
		return 0, 0, false, err
	}
	return isBTree(p, idx.storage)
}

func isBTree(p storage.Page, s storage.Storage) (lo, hi int64, ok bool, err error) {
	switch n := p.(type) {
	case *MemLeaf:
		keys, _ := n.Entries()
		if len(keys) == 0 {
			return 0, 0, true, nil
		}
		for i := 1; i < len(keys); i++ {
			if keys[i-1] > keys[i] {
				return 0, 0, false, nil
			}
		}
		return keys[0], keys[len(keys)-1], true, nil
	case *page.NodePage:
		var lowest, highest int64
		for i := 0; i < len(n.Children()); i++ {
			child, err := n.GetChildPage(i, s)
			if err != nil {
				return 0, 0, false, err
			}
			cl, ch, cok, err := isBTree(child, s)
			if err != nil {
				return 0, 0, false, err
			}
			if !cok {
				return 0, 0, false, nil
			}
			if i == 0 {
				lowest = cl
			}
			if i == n.NumKeys() {
				highest = ch
			}
			if i > 0 && n.KeyAt(i-1) > cl {
				return 0, 0, false, nil
			}
			if i < n.NumKeys() && n.KeyAt(i) <= ch {
				return 0, 0, false, nil
			}
		}
		return lowest, highest, true, nil
	default:
		return 0, 0, false, fmt.Errorf("btreeindex: unknown page type %T", p)
	}
}
