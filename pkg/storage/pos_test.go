package storage_test

import (
	"testing"

	"chunktree/pkg/storage"
)

func TestEncodeDecodePosRoundTrip(t *testing.T) {
	cases := []struct {
		chunkID int32
		offset  int64
		length  storage.LengthCode
		kind    storage.PageKind
	}{
		{0, 0, 0, storage.PageKindNode},
		{1, 4096, 12, storage.PageKindLeaf},
		{0xFFFFFF, 0xFFFFFFFF, 63, storage.PageKindLeaf},
	}
	for _, c := range cases {
		pos := storage.EncodePos(c.chunkID, c.offset, c.length, c.kind)
		gotChunk, gotOffset, gotLength, gotKind := storage.DecodePos(pos)
		if gotChunk != c.chunkID || gotOffset != c.offset || gotLength != c.length || gotKind != c.kind {
			t.Fatalf("round trip mismatch: got (%d,%d,%d,%d), want (%d,%d,%d,%d)",
				gotChunk, gotOffset, gotLength, gotKind, c.chunkID, c.offset, c.length, c.kind)
		}
	}
}

func TestPosIsLeaf(t *testing.T) {
	leaf := storage.EncodePos(0, 0, 0, storage.PageKindLeaf)
	node := storage.EncodePos(0, 0, 0, storage.PageKindNode)
	if !leaf.IsLeaf() {
		t.Fatal("expected leaf pos to report IsLeaf")
	}
	if node.IsLeaf() {
		t.Fatal("expected node pos to report !IsLeaf")
	}
}

func TestNoPosIsZero(t *testing.T) {
	if storage.NoPos != 0 {
		t.Fatalf("NoPos = %d, want 0", storage.NoPos)
	}
}

func TestLengthCodeForIsMonotonic(t *testing.T) {
	prev := storage.LengthCodeFor(1)
	for _, n := range []int32{2, 4, 100, 4096, 1 << 20} {
		code := storage.LengthCodeFor(n)
		if code < prev {
			t.Fatalf("LengthCodeFor(%d) = %d, not monotonic after %d", n, code, prev)
		}
		prev = code
	}
}
