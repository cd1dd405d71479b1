// Package storage states the contracts the node page subsystem requires
// from its out-of-scope collaborators: the persistent store (spec §2
// "BTreeStorage") and the append-only container it writes into (spec §2
// "Chunk"). Both are deliberately thin interfaces: the node page only
// needs to read bytes back and be told where its own writes landed.
package storage

import "errors"

// Page is the minimal shape a resident page object must have so that a
// PageReference can hold one without the storage package needing to know
// about NodePage or the (out-of-scope) leaf page type.
type Page interface {
	// Kind reports whether this resident page is a leaf or a node.
	Kind() PageKind
	// Pos returns the page's on-disk position, or NoPos if unpersisted.
	Pos() Pos
}

// Storage is the BTreeStorage collaborator of spec §6: it reads pages
// given a position (optionally from an already-resident buffer, avoiding a
// disk read) and is consulted for GC pressure after a structural edit
// changes a node's memory estimate.
//
// The spec's readPage(ref) takes the PageReference itself so that the
// storage layer can install the result and do GC bookkeeping against the
// reference. Go's package layout makes that a cyclic import (storage would
// need to know about page.PageReference, and page already depends on
// storage for Pos/Chunk). Implementations of this core return the decoded
// Page by value instead, and PageReference installs it via replacePage.
// This is an explicit Open Question resolution, recorded in DESIGN.md.
type Storage interface {
	// ReadPage materializes the page at pos from disk, also handing back
	// the raw serialized bytes it read so the caller can cache them as a
	// PageInfo without a second disk visit on the next eviction.
	ReadPage(pos Pos) (page Page, raw []byte, err error)
	// ReadPageFromBuffer materializes the page at pos from an
	// already-available serialized buffer, avoiding a disk read. Used
	// when a PageReference's PageInfo still has the bytes cached.
	ReadPageFromBuffer(pos Pos, buf []byte, length int32) (Page, error)
	// GCIfNeeded reports a change of memoryDelta bytes (positive or
	// negative) in resident memory; the storage layer may evict resident
	// pages in response. Its only caller in this module,
	// PageReference.GetPage, invokes it after materializing a page and
	// passes a memoryDelta of 0.
	GCIfNeeded(memoryDelta int)
}

// Chunk is the append-only container collaborator of spec §2/§6: it
// accepts newly-written page records and hands back the Pos they were
// assigned.
type Chunk interface {
	// ID returns this chunk's 32-bit identifier.
	ID() int32
	// RegisterPage records that a page of pageLength bytes of the given
	// kind was just written starting at byte offset start within this
	// chunk's buffer, and returns the Pos token for it. This plays the
	// role of the spec's updateChunkAndPage(chunk, start, pageLength,
	// type). The redundant self-reference in the original signature is
	// dropped since Go methods are already bound to their receiver.
	RegisterPage(start int64, pageLength int32, kind PageKind) (Pos, error)
}

// ErrOutOfRange is returned by a Storage implementation when asked to read
// a Pos it does not recognize.
var ErrOutOfRange = errors.New("storage: position out of range")
