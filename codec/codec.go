// Package codec implements the Zint32 block integer codecs
// (delta-from-base, block-compressed uint32 keys) plus the key/record
// payload compressors (Snappy/Zlib).
//
// The block codecs are grounded on the byte-packing shape used by
// time-series/columnar stores, generalized here with no direct precedent
// for SIMD bit-packing in Go (see DESIGN.md); the compressor wrapper is
// grounded on github.com/golang/snappy for block payloads.
package codec

import "github.com/latticedb/bltree/errkit"

// BlockCodec compresses/decompresses a sorted run of uint32s (a Zint32
// block). Every block is delta-from-base encoded by the caller before
// Compress and delta-decoded by the caller after Decompress — the codec
// only owns the byte-packing of already-delta'd values.
type BlockCodec interface {
	// Name identifies the codec, used as the on-disk block-format tag.
	Name() string

	// CompressBlock packs values into dst's tail, returning the full
	// slice (dst may be reused/grown as with append).
	CompressBlock(dst []byte, values []uint32) []byte

	// DecompressBlock unpacks exactly n values from src into dst[:n]
	// (dst must already have length >= n; it is not grown), and returns
	// the number of source bytes consumed.
	DecompressBlock(dst []uint32, src []byte, n int) (consumed int, err error)

	// EstimateRequiredSize upper-bounds the packed size of n values given
	// their maximum magnitude, used by the KeyList to decide whether a
	// block needs to split before insertion.
	EstimateRequiredSize(maxValue uint32, n int) int
}

// Codecs recognized by (on-disk) name. SIMD-named variants resolve to
// their scalar counterpart (no pack example hand-rolls SIMD bit-packing
// in Go; see DESIGN.md).
var registry = map[string]BlockCodec{
	"varbyte":     Varbyte{},
	"groupvarint": GroupVarint{},
	"for":         FOR{},
	// SIMD-named identifiers kept on the wire for forward compatibility
	// with databases written by a build that has true SIMD codecs; here
	// they just fall back to their scalar sibling.
	"simdcomp":    Varbyte{},
	"streamvbyte": Varbyte{},
	"simdfor":     FOR{},
	"maskedvbyte": Varbyte{},
}

// Lookup resolves a codec by its on-disk name.
func Lookup(name string) (BlockCodec, error) {
	c, ok := registry[name]
	if !ok {
		return nil, errkit.NewError(errkit.KindNotImplemented, "codec: unknown block codec "+name)
	}
	return c, nil
}
