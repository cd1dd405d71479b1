package storage_test

import (
	"testing"

	"chunktree/pkg/storage"
)

func TestMemChunkRegisterAndLookup(t *testing.T) {
	c := storage.NewMemChunk(3, 8)

	pos, err := c.RegisterPage(0, 128, storage.PageKindNode)
	if err != nil {
		t.Fatalf("RegisterPage: %v", err)
	}
	chunkID, offset, _, kind := storage.DecodePos(pos)
	if chunkID != 3 || offset != 0 || kind != storage.PageKindNode {
		t.Fatalf("unexpected pos fields: chunk=%d offset=%d kind=%d", chunkID, offset, kind)
	}

	length, kind, ok := c.PageAt(0)
	if !ok || length != 128 || kind != storage.PageKindNode {
		t.Fatalf("PageAt(0) = %d, %d, %v", length, kind, ok)
	}

	if _, _, ok := c.PageAt(999); ok {
		t.Fatal("PageAt on unregistered offset should report not-found")
	}
}

func TestMemChunkRejectsNonPositiveLength(t *testing.T) {
	c := storage.NewMemChunk(0, 8)
	if _, err := c.RegisterPage(0, 0, storage.PageKindNode); err == nil {
		t.Fatal("expected error registering a zero-length page")
	}
}

func TestMemChunkReleaseFreesBlocks(t *testing.T) {
	c := storage.NewMemChunk(0, 8)
	if _, err := c.RegisterPage(0, 256, storage.PageKindNode); err != nil {
		t.Fatalf("RegisterPage: %v", err)
	}
	before := c.FreeBlocks()

	c.Release(0)
	after := c.FreeBlocks()
	if after <= before {
		t.Fatalf("expected FreeBlocks to grow after Release, got %d -> %d", before, after)
	}
	if _, _, ok := c.PageAt(0); ok {
		t.Fatal("expected PageAt to forget a released page")
	}
}

func TestMemChunkGrowsCapacityAsNeeded(t *testing.T) {
	c := storage.NewMemChunk(0, 1) // tiny initial capacity
	pos, err := c.RegisterPage(1000, 64, storage.PageKindLeaf)
	if err != nil {
		t.Fatalf("RegisterPage beyond initial capacity: %v", err)
	}
	_, offset, _, _ := storage.DecodePos(pos)
	if offset != 1000 {
		t.Fatalf("offset = %d, want 1000", offset)
	}
}
