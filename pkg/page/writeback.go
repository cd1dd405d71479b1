package page

import (
	"fmt"

	"chunktree/pkg/buffer"
	"chunktree/pkg/storage"
)

// RemovalSink is notified when a page's prior on-disk image becomes
// removable (spec §4.7 step 5: "Inform the map to mark this page's prior
// on-disk image... as removable"). The map/session layer that owns
// chunk-compaction (explicitly out of scope, spec §1) is the real
// consumer; tests can pass a sink that just records calls.
type RemovalSink interface {
	MarkRemovable(pos storage.Pos)
}

// WriteUnsavedRecursive implements spec §4.7: it persists the unsaved
// subtree rooted at n into buf via chunk. n's own record is written first;
// its child-position table is patched only after every child has been
// persisted and given a position. Each child's in-memory cache is released
// once it no longer needs to be held resident. It is idempotent: once n.Pos() != storage.NoPos the
// whole call is a no-op, since copy-on-write guarantees the subtree below
// a persisted page is itself already fully persisted.
//
// The chunk buffer is owned exclusively by the writer goroutine for the
// duration of a checkpoint (spec §5), so this descent is deliberately
// single-threaded: every page in an unsaved subtree is, by the pos==0
// implies page!=nil invariant (spec §4.1), already resident, so there is
// no disk I/O to overlap here. Pretty-printing's read path (see package
// pretty) is where this module puts concurrent fan-out to work instead,
// since readers may traverse published pages concurrently and lock-free
// (spec §5).
func (n *NodePage) WriteUnsavedRecursive(chunk storage.Chunk, buf *buffer.DataBuffer, sink RemovalSink) error {
	if n.Pos() != storage.NoPos {
		return nil
	}

	childPosPatchOffset, err := n.Write(buf, chunk)
	if err != nil {
		return fmt.Errorf("page: write header: %w", err)
	}

	for i, c := range n.children {
		child := c.loadPage()
		if child == nil {
			continue // already persisted, or never resident to begin with
		}
		if childNode, ok := child.(*NodePage); ok {
			if err := childNode.WriteUnsavedRecursive(chunk, buf, sink); err != nil {
				return fmt.Errorf("page: write child %d: %w", i, err)
			}
		}
		// Leaf children are an out-of-scope collaborator; this
		// subsystem only persists node-page subtrees. A leaf's own
		// write path is assumed already to have run, leaving its
		// storage.Page.Pos() set, before it was ever linked under an
		// unsaved node.
		c.setPos(child.Pos())
		c.Evict()
	}

	n.PatchChildPositions(buf, childPosPatchOffset)

	if sink != nil && n.supersedes != storage.NoPos {
		sink.MarkRemovable(n.supersedes)
	}
	return nil
}
