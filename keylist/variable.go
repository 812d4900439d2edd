package keylist

import (
	"github.com/latticedb/bltree/codec"
	"github.com/latticedb/bltree/errkit"
	"github.com/latticedb/bltree/upfront"
)

const (
	flagExtended   byte = 1 << 0
	flagCompressed byte = 1 << 1
)

// BlobStore is the minimal blob-manager contract Variable needs to spill
// oversized keys out of the node, satisfied by blob.Manager. Kept as a
// local interface (mirroring interfaces.PageStore's decoupling) so
// keylist tests can substitute an in-memory double.
type BlobStore interface {
	Allocate(data []byte) (uint64, error)
	Read(id uint64) ([]byte, error)
	Erase(id uint64) error
}

// Variable is the blob-overflowing, optionally-compressed
// variable-length KeyList. Each slot owns one UpfrontIndex chunk whose
// first byte is a flag bitset.
type Variable struct {
	idx               *upfront.Index
	blobs             BlobStore
	extendedThreshold int
	compressor        codec.Compressor

	// cache maps blob id -> bytes for the node's lifetime; extended-key
	// caches are owned by the node, not shared across nodes.
	cache map[uint64][]byte
}

// NewVariable creates a Variable KeyList over region (freshly Create'd as
// an UpfrontIndex by the caller) or wraps an already-populated one via
// idx.
func NewVariable(idx *upfront.Index, blobs BlobStore, extendedThreshold int, compressor codec.Compressor) *Variable {
	if compressor == nil {
		compressor = codec.None{}
	}
	return &Variable{idx: idx, blobs: blobs, extendedThreshold: extendedThreshold, compressor: compressor, cache: make(map[uint64][]byte)}
}

func (v *Variable) Count() int { return v.idx.Count() }

func (v *Variable) Key(i int) ([]byte, error) {
	chunk := v.idx.Chunk(i)
	flag := chunk[0]
	payload := chunk[1:]

	if flag&flagExtended != 0 {
		id := getU64(payload)
		if cached, ok := v.cache[id]; ok {
			return cached, nil
		}
		data, err := v.blobs.Read(id)
		if err != nil {
			return nil, err
		}
		v.cache[id] = data
		return data, nil
	}

	if flag&flagCompressed != 0 {
		uncompressedLen := int(getU16(payload[0:2]))
		out, err := v.compressor.Decompress(make([]byte, 0, uncompressedLen), payload[2:])
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return payload, nil
}

func (v *Variable) FindLowerBound(cmp Comparator, key []byte) (int, CompareResult, error) {
	lo, hi := 0, v.idx.Count()
	for lo < hi {
		mid := (lo + hi) / 2
		k, err := v.Key(mid)
		if err != nil {
			return 0, 0, err
		}
		switch cmp(key, k) {
		case Less:
			hi = mid
		case Greater:
			lo = mid + 1
		default:
			return mid, Equal, nil
		}
	}
	return lo, Less, nil
}

// chunkFor encodes an inline (non-extended) key; callers must check
// len(key) <= extendedThreshold before calling.
func (v *Variable) chunkFor(key []byte) []byte {
	flag := byte(0)
	payload := key
	if _, isNone := v.compressor.(codec.None); !isNone {
		compressed := v.compressor.Compress(nil, key)
		if len(compressed)+2 < len(key) {
			flag |= flagCompressed
			lenPrefixed := make([]byte, 2+len(compressed))
			putU16(lenPrefixed, uint16(len(key)))
			copy(lenPrefixed[2:], compressed)
			payload = lenPrefixed
		}
	}
	chunk := make([]byte, 1+len(payload))
	chunk[0] = flag
	copy(chunk[1:], payload)
	return chunk
}

// Insert places key at slot i, spilling it to a blob if it exceeds the
// extended-key threshold.
func (v *Variable) Insert(i int, key []byte) error {
	if len(key) > v.extendedThreshold {
		id, err := v.blobs.Allocate(key)
		if err != nil {
			return err
		}
		chunk := make([]byte, 9)
		chunk[0] = flagExtended
		putU64(chunk[1:], id)
		dst, err := v.idx.Insert(i, len(chunk))
		if err != nil {
			return translateUpfrontErr(err)
		}
		copy(dst, chunk)
		v.cache[id] = append([]byte(nil), key...)
		return nil
	}

	chunk := v.chunkFor(key)
	dst, err := v.idx.Insert(i, len(chunk))
	if err != nil {
		return translateUpfrontErr(err)
	}
	copy(dst, chunk)
	return nil
}

// Erase removes slot i, releasing its blob and cache entry if extended.
func (v *Variable) Erase(i int) error {
	chunk := v.idx.Chunk(i)
	if chunk[0]&flagExtended != 0 {
		id := getU64(chunk[1:])
		delete(v.cache, id)
		if err := v.blobs.Erase(id); err != nil {
			return err
		}
	}
	v.idx.Erase(i)
	return nil
}

func (v *Variable) RequiresSplit(newKeySize int) bool {
	size := 9
	if newKeySize <= v.extendedThreshold {
		size = 1 + newKeySize // worst case: no compression headroom
	}
	return v.idx.RequiresSplit(size)
}

// RequiredRangeSize returns a lower bound only: the descriptor-table
// cost of n slots (offset + 1-byte size each). Actual payload size
// depends on per-key compression and blob spillover this method cannot
// see, so callers track live usage via the UpfrontIndex directly rather
// than precomputing it here.
func (v *Variable) RequiredRangeSize(n int) int {
	return n * (v.idx.OffsetWidth() + 1)
}

func translateUpfrontErr(err error) error {
	if errkit.KindOf(err) == errkit.KindLimitsReached {
		return errLimitsReached
	}
	return err
}

func getU64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func getU16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func putU16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}
