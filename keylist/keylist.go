// Package keylist implements the typed, sorted key sequences a btree
// node's KeyList region holds: POD<T>, fixed Binary, variable-length
// with blob overflow, and Zint32 block-compressed.
//
// Grounded on a node-region slicing style of direct byte-offset key
// access, generalized to a common interface so node/ can dispatch across
// key types at runtime rather than through a compile-time template.
package keylist

import "github.com/latticedb/bltree/errkit"

// CompareResult is a {-1,0,+1}-shaped comparator result.
type CompareResult int

const (
	Less    CompareResult = -1
	Equal   CompareResult = 0
	Greater CompareResult = 1
)

// Comparator compares two keys the way the database's declared KeyType
// dictates ("Comparators").
type Comparator func(a, b []byte) CompareResult

// KeyList is the common contract every variant satisfies. All offsets
// and sizes are in bytes within the region byte slice the node handed
// it; KeyList implementations never allocate page-level storage
// themselves.
type KeyList interface {
	// Count returns the number of live keys.
	Count() int

	// Key returns slot i's key bytes. For a Variable-length list with an
	// Extended key, this reads the key's blob through the list's
	// BlobStore.
	Key(i int) ([]byte, error)

	// FindLowerBound returns the slot at which key would be inserted if
	// absent, and how it compares to the key already occupying that slot
	// (Equal when found).
	FindLowerBound(cmp Comparator, key []byte) (slot int, result CompareResult, err error)

	// Insert places key at slot i, shifting [i, count) up by one.
	Insert(i int, key []byte) error

	// Erase removes slot i, shifting [i+1, count) down by one.
	Erase(i int) error

	// RequiresSplit reports whether inserting one more key of the given
	// size would overflow the region, using each variant's own formula.
	RequiresSplit(newKeySize int) bool

	// RequiredRangeSize returns the minimum region size needed to hold n
	// keys, used by change_range_size boundary shifting.
	RequiredRangeSize(n int) int
}

// errLimitsReached is the sentinel every variant's RequiresSplit-guarded
// Insert returns instead of attempting to grow its own region: leaf
// components raise LimitsReached rather than attempting their own I/O.
var errLimitsReached = errkit.NewError(errkit.KindLimitsReached, "keylist: insert would overflow region")
