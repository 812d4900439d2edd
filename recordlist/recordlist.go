// Package recordlist implements the per-slot record stores a btree
// node's RecordList region holds, sharing slot index
// with the node's KeyList: fixed arrays (InlineRecord/PodRecord/
// InternalRecord), the blob-or-inline DefaultRecord, and the
// inline-run-or-external-table Duplicate list.
//
// Grounded on the same runtime-dispatch generalization as keylist:
// dispatch across record shapes happens at runtime rather than through
// a compile-time template.
package recordlist

import "github.com/latticedb/bltree/errkit"

// RecordList is the common contract every variant satisfies.
type RecordList interface {
	Count() int
	Record(i int) ([]byte, error)
	SetRecord(i int, rec []byte) error
	Insert(i int, rec []byte) error
	Erase(i int) error
	RequiresSplit(newRecSize int) bool
	RequiredRangeSize(n int) int
}

var errLimitsReached = errkit.NewError(errkit.KindLimitsReached, "recordlist: insert would overflow region")

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
