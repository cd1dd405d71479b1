package page

import (
	"fmt"

	"chunktree/pkg/buffer"
	"chunktree/pkg/checksum"
	"chunktree/pkg/compress"
	"chunktree/pkg/config"
	"chunktree/pkg/keytype"
	"chunktree/pkg/storage"
)

// encodeTypeByte packs the page-kind bit and the compression algorithm into the
// single byte spec §4.6 item 4 calls for.
func encodeTypeByte(kind storage.PageKind, algo compress.Algorithm) byte {
	return byte(kind) | (byte(algo) << 1)
}

func decodeTypeByte(b byte) (storage.PageKind, compress.Algorithm) {
	return storage.PageKind(b & 0x1), compress.Algorithm(b >> 1)
}

// Write serializes this node page into buf at its current cursor position
// and registers the resulting record with chunk, assigning this page's
// pos (spec §4.6). It returns the absolute buffer offset at which the
// K+1 child positions begin, so a recursive write-back can come back and
// patch them once children are persisted (spec §4.7 step 2).
//
// Write does not recurse into children: it records each child's current
// Pos (0 for an unpersisted child). A caller either persists children
// before calling Write, or, as WriteUnsavedRecursive does, persists them
// afterward and patches the offset this method returns.
func (n *NodePage) Write(buf *buffer.DataBuffer, chunk storage.Chunk) (childPosPatchOffset int, err error) {
	start := buf.Position()

	lengthPatchPos := buf.Position()
	buf.PutInt32(0) // pageLength placeholder, patched below

	checkPatchPos := buf.Position()
	buf.PutInt16(0) // checkValue placeholder, patched below

	buf.PutVarInt(int64(len(n.keys)))

	rawBody := n.serializeBody()
	body, err := n.compressor.Compress(rawBody)
	if err != nil {
		return 0, fmt.Errorf("page: compress body: %w", err)
	}
	buf.PutUint8(encodeTypeByte(storage.PageKindNode, n.compressor.Algorithm()))

	childPosPatchOffset = buf.Position()
	for _, c := range n.children {
		buf.PutInt64(int64(c.Pos()))
	}
	for _, c := range n.children {
		if c.IsLeaf() {
			buf.PutUint8(byte(storage.PageKindLeaf))
			buf.PutInt32(0) // reserved replication slot
		} else {
			buf.PutUint8(byte(storage.PageKindNode))
		}
	}

	buf.PutBytes(body)

	pageLength := int32(buf.Position() - start)
	buf.WithPatch(lengthPatchPos, func(b *buffer.DataBuffer) { b.PutInt32(pageLength) })

	checkValue := checksum.Compute(n.checkKind, chunk.ID(), int64(start), pageLength)
	buf.WithPatch(checkPatchPos, func(b *buffer.DataBuffer) { b.PutInt16(checkValue) })

	pos, regErr := chunk.RegisterPage(int64(start), pageLength, storage.PageKindNode)
	if regErr != nil {
		return 0, fmt.Errorf("%w: register page: %v", ErrIOFault, regErr)
	}
	n.pos.Store(int64(pos))
	return childPosPatchOffset, nil
}

// serializeBody encodes this node's keys via the configured KeyType codec.
func (n *NodePage) serializeBody() []byte {
	bodyBuf := buffer.New()
	n.keyType.Write(bodyBuf, n.keys, len(n.keys))
	return bodyBuf.Bytes()
}

// PatchChildPositions rewrites the K+1 child positions at the given
// buffer offset (spec §4.7 step 4: "seek back to the patch position and
// rewrite the now-known child positions; restore the buffer's cursor to
// its end").
func (n *NodePage) PatchChildPositions(buf *buffer.DataBuffer, childPosPatchOffset int) {
	buf.WithPatch(childPosPatchOffset, func(b *buffer.DataBuffer) {
		for _, c := range n.children {
			b.PutInt64(int64(c.Pos()))
		}
	})
}

// ReadNode deserializes a node page from buf, which must be positioned at
// the start of the record. chunkID identifies which chunk the record came
// from, needed to verify the check value (spec §4.6's read path). Every
// child reference is created in the evicted state, as spec §4.6 requires.
// On success, the node's own pos is set from (chunkID, startOffset).
func ReadNode(buf *buffer.DataBuffer, kt keytype.Codec, checkKind config.ChecksumAlgorithmKind, chunkID int32) (*NodePage, error) {
	start := buf.Position()

	pageLength, err := buf.GetInt32()
	if err != nil {
		return nil, fmt.Errorf("%w: page length: %v", ErrCorruptPage, err)
	}
	checkValue, err := buf.GetInt16()
	if err != nil {
		return nil, fmt.Errorf("%w: check value: %v", ErrCorruptPage, err)
	}
	if !checksum.Verify(checkKind, chunkID, int64(start), pageLength, checkValue) {
		return nil, fmt.Errorf("%w: check value mismatch at chunk %d offset %d", ErrCorruptPage, chunkID, start)
	}

	keyLen, err := buf.GetVarInt()
	if err != nil {
		return nil, fmt.Errorf("%w: key length: %v", ErrCorruptPage, err)
	}
	if keyLen < 0 || keyLen > int64(pageLength) {
		return nil, fmt.Errorf("%w: implausible key length %d", ErrCorruptPage, keyLen)
	}
	k := int(keyLen)

	typeByte, err := buf.GetUint8()
	if err != nil {
		return nil, fmt.Errorf("%w: type byte: %v", ErrCorruptPage, err)
	}
	kind, algo := decodeTypeByte(typeByte)
	if kind != storage.PageKindNode {
		return nil, fmt.Errorf("%w: expected node page, got kind %d", ErrUnsupportedFormat, kind)
	}

	childPositions := make([]int64, k+1)
	for i := range childPositions {
		v, err := buf.GetInt64()
		if err != nil {
			return nil, fmt.Errorf("%w: child position %d: %v", ErrCorruptPage, i, err)
		}
		childPositions[i] = v
	}

	childLeaf := make([]bool, k+1)
	for i := range childLeaf {
		b, err := buf.GetUint8()
		if err != nil {
			return nil, fmt.Errorf("%w: child kind %d: %v", ErrCorruptPage, i, err)
		}
		childKind := storage.PageKind(b)
		if childKind == storage.PageKindLeaf {
			childLeaf[i] = true
			if _, err := buf.GetInt32(); err != nil { // reserved replication slot, discarded
				return nil, fmt.Errorf("%w: reserved slot %d: %v", ErrCorruptPage, i, err)
			}
		} else if childKind != storage.PageKindNode {
			return nil, fmt.Errorf("%w: unknown child kind %d", ErrCorruptPage, childKind)
		}
	}

	consumed := buf.Position() - start
	bodyLen := int(pageLength) - consumed
	if bodyLen < 0 {
		return nil, fmt.Errorf("%w: negative body length", ErrCorruptPage)
	}
	compressedBody, err := buf.GetBytes(bodyLen)
	if err != nil {
		return nil, fmt.Errorf("%w: body: %v", ErrCorruptPage, err)
	}
	codec, err := compress.ByAlgorithm(algo)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	rawBody, err := codec.Expand(compressedBody)
	if err != nil {
		return nil, fmt.Errorf("%w: expand body: %v", ErrCorruptPage, err)
	}

	keys := make([]int64, k)
	if err := kt.Read(buffer.Wrap(rawBody), keys, k); err != nil {
		return nil, fmt.Errorf("%w: decode keys: %v", ErrCorruptPage, err)
	}

	children := make([]*PageReference, k+1)
	for i := range children {
		children[i] = NewPersistedPageReference(storage.Pos(childPositions[i]), childLeaf[i])
	}

	n, err := Create(kt, keys, children)
	if err != nil {
		return nil, err
	}
	n.checkKind = checkKind
	n.compressor = codec
	startPos := storage.EncodePos(chunkID, int64(start), storage.LengthCodeFor(pageLength), storage.PageKindNode)
	n.pos.Store(int64(startPos))
	return n, nil
}
