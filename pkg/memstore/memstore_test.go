package memstore_test

import (
	"testing"

	"chunktree/pkg/buffer"
	"chunktree/pkg/config"
	"chunktree/pkg/keytype"
	"chunktree/pkg/memstore"
	"chunktree/pkg/page"
	"chunktree/pkg/storage"
)

type stubLeaf struct{ pos storage.Pos }

func (l *stubLeaf) Kind() storage.PageKind { return storage.PageKindLeaf }
func (l *stubLeaf) Pos() storage.Pos       { return l.pos }

func TestReadPageRoundTripsAWrittenNode(t *testing.T) {
	store := memstore.New(keytype.Int64Codec{}, config.DefaultChecksumAlgorithm, 0)
	chunk, buf := store.NewChunk(64)

	leafRef := page.NewPersistedPageReference(storage.EncodePos(chunk.ID(), 0, 0, storage.PageKindLeaf), true)
	n, err := page.Create(keytype.Int64Codec{}, nil, []*page.PageReference{leafRef})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := n.Write(buf, chunk); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, raw, err := store.ReadPage(n.Pos())
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if got.Kind() != storage.PageKindNode {
		t.Fatalf("Kind() = %d, want PageKindNode", got.Kind())
	}
	if raw == nil {
		t.Fatal("expected ReadPage to return the raw bytes it read")
	}

	fromBuf, err := store.ReadPageFromBuffer(n.Pos(), raw, int32(len(raw)))
	if err != nil {
		t.Fatalf("ReadPageFromBuffer: %v", err)
	}
	if fromBuf.Kind() != storage.PageKindNode {
		t.Fatalf("ReadPageFromBuffer Kind() = %d, want PageKindNode", fromBuf.Kind())
	}
}

func TestReadPageDispatchesToRegisteredLeafDecoder(t *testing.T) {
	store := memstore.New(keytype.Int64Codec{}, config.DefaultChecksumAlgorithm, 0)
	var decodedCalls int
	store.SetLeafDecoder(func(buf *buffer.DataBuffer) (storage.Page, error) {
		decodedCalls++
		return &stubLeaf{}, nil
	})

	chunk, buf := store.NewChunk(8)
	buf.PutBytes([]byte{0xAA, 0xBB})
	pos, err := chunk.RegisterPage(0, 2, storage.PageKindLeaf)
	if err != nil {
		t.Fatalf("RegisterPage: %v", err)
	}

	if _, _, err := store.ReadPage(pos); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if decodedCalls != 1 {
		t.Fatalf("expected the registered leaf decoder to run once, got %d calls", decodedCalls)
	}
}

func TestReadPageWithoutLeafDecoderFails(t *testing.T) {
	store := memstore.New(keytype.Int64Codec{}, config.DefaultChecksumAlgorithm, 0)
	chunk, buf := store.NewChunk(8)
	buf.PutBytes([]byte{0x01})
	pos, err := chunk.RegisterPage(0, 1, storage.PageKindLeaf)
	if err != nil {
		t.Fatalf("RegisterPage: %v", err)
	}
	if _, _, err := store.ReadPage(pos); err == nil {
		t.Fatal("expected an error reading a leaf pos with no decoder registered")
	}
}

func TestReadPageRejectsUnknownChunk(t *testing.T) {
	store := memstore.New(keytype.Int64Codec{}, config.DefaultChecksumAlgorithm, 0)
	pos := storage.EncodePos(99, 0, 0, storage.PageKindNode)
	if _, _, err := store.ReadPage(pos); err == nil {
		t.Fatal("expected an error reading from a chunk id that was never created")
	}
}

func TestOldestChunkIDTracksCreationOrder(t *testing.T) {
	store := memstore.New(keytype.Int64Codec{}, config.DefaultChecksumAlgorithm, 0)
	if _, ok := store.OldestChunkID(); ok {
		t.Fatal("expected no oldest chunk before any chunk is created")
	}
	first, _ := store.NewChunk(1)
	store.NewChunk(1)

	oldest, ok := store.OldestChunkID()
	if !ok || oldest != first.ID() {
		t.Fatalf("OldestChunkID() = %d, %v; want %d, true", oldest, ok, first.ID())
	}
}

func TestGCIfNeededReportsPressureAtLimit(t *testing.T) {
	store := memstore.New(keytype.Int64Codec{}, config.DefaultChecksumAlgorithm, 100)
	var reportedUsed, reportedLimit int64
	calls := 0
	store.OnMemoryPressure(func(used, limit int64) {
		calls++
		reportedUsed, reportedLimit = used, limit
	})

	store.GCIfNeeded(50)
	if calls != 0 {
		t.Fatalf("expected no pressure callback below the limit, got %d calls", calls)
	}

	store.GCIfNeeded(60)
	if calls != 1 {
		t.Fatalf("expected exactly one pressure callback once over the limit, got %d", calls)
	}
	if reportedUsed != 110 || reportedLimit != 100 {
		t.Fatalf("callback args = (%d, %d), want (110, 100)", reportedUsed, reportedLimit)
	}
	if store.MemoryUsed() != 110 {
		t.Fatalf("MemoryUsed() = %d, want 110", store.MemoryUsed())
	}
}

func TestGCIfNeededDisabledWhenLimitIsZero(t *testing.T) {
	store := memstore.New(keytype.Int64Codec{}, config.DefaultChecksumAlgorithm, 0)
	store.OnMemoryPressure(func(used, limit int64) {
		t.Fatal("pressure callback must never fire when memLimit is 0")
	})
	store.GCIfNeeded(1 << 30)
}
