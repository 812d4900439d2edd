package btree

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/latticedb/bltree/keylist"
)

// UintComparator compares fixed-width little-endian unsigned integer
// keys. POD<T>'s on-disk form is little-endian, so a numeric comparator
// must decode rather than byte-compare.
func UintComparator(width int) keylist.Comparator {
	return func(a, b []byte) keylist.CompareResult {
		av, bv := decodeUint(a, width), decodeUint(b, width)
		switch {
		case av < bv:
			return keylist.Less
		case av > bv:
			return keylist.Greater
		default:
			return keylist.Equal
		}
	}
}

func decodeUint(b []byte, width int) uint64 {
	switch width {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	default:
		return binary.LittleEndian.Uint64(b)
	}
}

// FloatComparator compares fixed-width little-endian IEEE-754 float
// keys (Real32/Real64), decoding each side to a float64 for comparison
// regardless of source width.
func FloatComparator(width int) keylist.Comparator {
	return func(a, b []byte) keylist.CompareResult {
		av, bv := decodeFloat(a, width), decodeFloat(b, width)
		switch {
		case av < bv:
			return keylist.Less
		case av > bv:
			return keylist.Greater
		default:
			return keylist.Equal
		}
	}
}

func decodeFloat(b []byte, width int) float64 {
	if width == 4 {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

// BytesComparator compares binary/variable-length keys by raw memcmp.
func BytesComparator() keylist.Comparator {
	return func(a, b []byte) keylist.CompareResult {
		switch bytes.Compare(a, b) {
		case -1:
			return keylist.Less
		case 1:
			return keylist.Greater
		default:
			return keylist.Equal
		}
	}
}
