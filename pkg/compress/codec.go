// Package compress supplies the compression collaborator referenced by a
// node page's type byte (spec §4.6, §4.7): "optionally compressed; the type
// byte records whether the body is compressed and by which algorithm." No
// compression library lives in the teacher's go.mod (dinodb never compresses
// a page body), so this codec is grounded on Felmond13-novusdb, the one
// pack repo that threads a compression flag through its page format, and
// brings in klauspost/compress, the library most of the Go storage-engine
// corpus reaches for, rather than inventing a hand-rolled scheme.
package compress

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Algorithm identifies the compression scheme recorded in a page's type
// byte. AlgorithmNone is the explicit "no compression" boundary case called
// out in spec §8: the body must be used verbatim, never round-tripped
// through a codec.
type Algorithm byte

const (
	AlgorithmNone Algorithm = 0
	AlgorithmZstd Algorithm = 1
)

// Codec expands and compresses page bodies for one Algorithm.
type Codec interface {
	Algorithm() Algorithm
	Compress(body []byte) ([]byte, error)
	Expand(compressed []byte) ([]byte, error)
}

// None is the no-op codec for AlgorithmNone.
type noneCodec struct{}

func (noneCodec) Algorithm() Algorithm                 { return AlgorithmNone }
func (noneCodec) Compress(body []byte) ([]byte, error) { return body, nil }
func (noneCodec) Expand(body []byte) ([]byte, error)   { return body, nil }

// None returns the no-compression codec.
func None() Codec { return noneCodec{} }

// zstdCodec compresses bodies with zstd at its default level.
type zstdCodec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstd constructs a zstd-backed Codec. The encoder/decoder are reused
// across calls, matching zstd's own guidance that they are safe for
// sequential reuse and expensive to recreate per page.
func NewZstd() (Codec, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("compress: new zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("compress: new zstd decoder: %w", err)
	}
	return &zstdCodec{encoder: enc, decoder: dec}, nil
}

func (c *zstdCodec) Algorithm() Algorithm { return AlgorithmZstd }

func (c *zstdCodec) Compress(body []byte) ([]byte, error) {
	return c.encoder.EncodeAll(body, nil), nil
}

func (c *zstdCodec) Expand(compressed []byte) ([]byte, error) {
	out, err := c.decoder.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("compress: zstd expand: %w", err)
	}
	return out, nil
}

// ByAlgorithm resolves the codec a page's type byte names. An unrecognized
// algorithm is an UnsupportedFormat error per spec §7.
func ByAlgorithm(a Algorithm) (Codec, error) {
	switch a {
	case AlgorithmNone:
		return None(), nil
	case AlgorithmZstd:
		return NewZstd()
	default:
		return nil, fmt.Errorf("compress: unsupported algorithm %d", a)
	}
}

// Equal reports whether two bodies are byte-identical, used by tests that
// assert a round trip through a codec is lossless.
func Equal(a, b []byte) bool {
	return bytes.Equal(a, b)
}
