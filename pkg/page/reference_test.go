package page

import (
	"testing"

	"chunktree/pkg/storage"
)

type countingStorage struct {
	page          storage.Page
	readPageCalls int
	readBufCalls  int
	gcCalls       []int
}

func (s *countingStorage) ReadPage(pos storage.Pos) (storage.Page, []byte, error) {
	s.readPageCalls++
	return s.page, []byte{1, 2, 3}, nil
}

func (s *countingStorage) ReadPageFromBuffer(pos storage.Pos, buf []byte, length int32) (storage.Page, error) {
	s.readBufCalls++
	return s.page, nil
}

func (s *countingStorage) GCIfNeeded(delta int) {
	s.gcCalls = append(s.gcCalls, delta)
}

func TestGetPageReturnsResidentPageWithoutTouchingStorage(t *testing.T) {
	leaf := &testLeaf{}
	ref := NewPageReference(leaf)
	s := &countingStorage{}

	p, err := ref.GetPage(s)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if p != storage.Page(leaf) {
		t.Fatal("expected the resident page back unchanged")
	}
	if s.readPageCalls != 0 || s.readBufCalls != 0 {
		t.Fatal("a resident page must not touch storage at all")
	}
}

func TestGetPageUsesCachedBufferBeforeDisk(t *testing.T) {
	leaf := &testLeaf{}
	s := &countingStorage{page: leaf}
	ref := NewPersistedPageReference(storage.EncodePos(0, 10, 0, storage.PageKindLeaf), true)
	ref.pInfo.Store(&PageInfo{Buff: []byte{9}, Length: 1})

	if _, err := ref.GetPage(s); err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if s.readBufCalls != 1 || s.readPageCalls != 0 {
		t.Fatalf("expected ReadPageFromBuffer once and ReadPage never, got buf=%d page=%d", s.readBufCalls, s.readPageCalls)
	}
}

func TestGetPageFallsBackToDiskAndCachesResult(t *testing.T) {
	leaf := &testLeaf{}
	s := &countingStorage{page: leaf}
	ref := NewPersistedPageReference(storage.EncodePos(0, 10, 0, storage.PageKindLeaf), true)

	if _, err := ref.GetPage(s); err != nil {
		t.Fatalf("first GetPage: %v", err)
	}
	if s.readPageCalls != 1 {
		t.Fatalf("expected one disk read, got %d", s.readPageCalls)
	}

	if _, err := ref.GetPage(s); err != nil {
		t.Fatalf("second GetPage: %v", err)
	}
	if s.readPageCalls != 1 {
		t.Fatal("a second GetPage should be served from the now-resident cache, not disk again")
	}
}

func TestEvictDropsResidentAndBufferedState(t *testing.T) {
	ref := NewPageReference(&testLeaf{})
	ref.pInfo.Store(&PageInfo{Buff: []byte{1}, Length: 1})
	if !ref.HasBufferedInfo() {
		t.Fatal("expected a buffered info to be set up")
	}

	ref.pos.Store(int64(storage.EncodePos(0, 1, 0, storage.PageKindLeaf)))
	ref.Evict()

	if ref.loadPage() != nil {
		t.Fatal("Evict should drop the resident page")
	}
	if ref.HasBufferedInfo() {
		t.Fatal("Evict should drop the cached buffer too")
	}
	if ref.Pos() == storage.NoPos {
		t.Fatal("Evict must not clear pos, only the in-memory cache")
	}
}

func TestIsLeafPrefersPosOverResidentHint(t *testing.T) {
	nodeRef := NewPersistedPageReference(storage.EncodePos(0, 0, 0, storage.PageKindNode), true /* stale hint */)
	if nodeRef.IsLeaf() {
		t.Fatal("a persisted pos encoding a node must win over a stale leaf hint")
	}
}

func TestIsLeafFallsBackToResidentPageKind(t *testing.T) {
	ref := NewPageReference(&testLeaf{})
	if !ref.IsLeaf() {
		t.Fatal("an unpersisted reference should report IsLeaf from its resident page's Kind()")
	}
}

func TestParentRefRoundTrip(t *testing.T) {
	parent := NewPageReference(&testLeaf{})
	child := NewPageReference(&testLeaf{})
	if child.ParentRef() != nil {
		t.Fatal("a fresh reference should have no parent")
	}
	child.SetParentRef(parent)
	if child.ParentRef() != parent {
		t.Fatal("SetParentRef/ParentRef round trip failed")
	}
}
