package node

import (
	"bytes"
	"testing"

	"github.com/latticedb/bltree/keylist"
)

func uintComparator(width int) keylist.Comparator {
	return func(a, b []byte) keylist.CompareResult {
		var av, bv uint64
		for i := 0; i < width; i++ {
			av |= uint64(a[i]) << (8 * i)
			bv |= uint64(b[i]) << (8 * i)
		}
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

func u64key(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func podConfig() Config {
	return Config{
		KeyKind:     KeyKindPOD,
		KeyWidth:    8,
		Comparator:  uintComparator(8),
		RecordKind:  RecordKindInline,
		RecordWidth: 8,
	}
}

func TestLeaf_InsertFindErase(t *testing.T) {
	body := make([]byte, 256)
	n, err := NewLeaf(body, podConfig())
	if err != nil {
		t.Fatalf("NewLeaf() err = %v", err)
	}

	for _, v := range []uint64{30, 10, 20} {
		slot, cmp, err := n.FindLowerBound(u64key(v))
		if err != nil {
			t.Fatalf("FindLowerBound() err = %v", err)
		}
		if cmp == keylist.Equal {
			t.Fatalf("unexpected duplicate for %d", v)
		}
		if err := n.InsertSlot(slot, u64key(v), u64key(v*100)); err != nil {
			t.Fatalf("InsertSlot() err = %v", err)
		}
	}

	if n.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", n.Count())
	}
	for i, want := range []uint64{10, 20, 30} {
		k, err := n.Key(i)
		if err != nil {
			t.Fatalf("Key() err = %v", err)
		}
		if !bytes.Equal(k, u64key(want)) {
			t.Fatalf("Key(%d) = %v, want %d", i, k, want)
		}
	}

	slot, found, err := n.Find(u64key(20))
	if err != nil {
		t.Fatalf("Find() err = %v", err)
	}
	if !found {
		t.Fatalf("Find(20) not found")
	}
	rec, err := n.Record(slot)
	if err != nil {
		t.Fatalf("Record() err = %v", err)
	}
	if !bytes.Equal(rec, u64key(2000)) {
		t.Fatalf("Record() = %v, want 2000", rec)
	}

	if err := n.EraseSlot(slot); err != nil {
		t.Fatalf("EraseSlot() err = %v", err)
	}
	if n.Count() != 2 {
		t.Fatalf("Count() after erase = %d, want 2", n.Count())
	}
	if _, found, _ := n.Find(u64key(20)); found {
		t.Fatalf("Find(20) still found after erase")
	}
}

func TestInternal_ChildAccessors(t *testing.T) {
	body := make([]byte, 256)
	n, err := NewInternal(body, podConfig())
	if err != nil {
		t.Fatalf("NewInternal() err = %v", err)
	}
	if err := n.InsertSlot(0, u64key(50), nil); err != nil {
		t.Fatalf("InsertSlot() err = %v", err)
	}
	n.SetChildAt(0, 111)
	n.SetChildAt(1, 222)

	if n.ChildAt(0) != 111 {
		t.Fatalf("ChildAt(0) = %d, want 111", n.ChildAt(0))
	}
	if n.ChildAt(1) != 222 {
		t.Fatalf("ChildAt(1) = %d, want 222 (via PtrDown)", n.ChildAt(1))
	}
}

func TestLeaf_SplitDistributesSlots(t *testing.T) {
	body := make([]byte, 512)
	left, err := NewLeaf(body, podConfig())
	if err != nil {
		t.Fatalf("NewLeaf() err = %v", err)
	}
	for i := uint64(0); i < 10; i++ {
		if err := left.InsertSlot(int(i), u64key(i), u64key(i*10)); err != nil {
			t.Fatalf("InsertSlot(%d) err = %v", i, err)
		}
	}

	rightBody := make([]byte, 512)
	right, err := NewLeaf(rightBody, podConfig())
	if err != nil {
		t.Fatalf("NewLeaf() err = %v", err)
	}

	pivot, err := left.Split(right)
	if err != nil {
		t.Fatalf("Split() err = %v", err)
	}
	if left.Count()+right.Count() != 10 {
		t.Fatalf("post-split counts %d+%d != 10", left.Count(), right.Count())
	}
	firstRight, err := right.Key(0)
	if err != nil {
		t.Fatalf("Key() err = %v", err)
	}
	if !bytes.Equal(pivot, firstRight) {
		t.Fatalf("pivot %v != right's first key %v", pivot, firstRight)
	}
	lastLeft, err := left.Key(left.Count() - 1)
	if err != nil {
		t.Fatalf("Key() err = %v", err)
	}
	if uintComparator(8)(lastLeft, firstRight) != keylist.Less {
		t.Fatalf("left's last key %v not < right's first key %v", lastLeft, firstRight)
	}
}

func TestLeaf_MergeFromReversesSplit(t *testing.T) {
	body := make([]byte, 512)
	left, err := NewLeaf(body, podConfig())
	if err != nil {
		t.Fatalf("NewLeaf() err = %v", err)
	}
	for i := uint64(0); i < 6; i++ {
		if err := left.InsertSlot(int(i), u64key(i), u64key(i)); err != nil {
			t.Fatalf("InsertSlot() err = %v", err)
		}
	}
	rightBody := make([]byte, 512)
	right, err := NewLeaf(rightBody, podConfig())
	if err != nil {
		t.Fatalf("NewLeaf() err = %v", err)
	}
	if _, err := left.Split(right); err != nil {
		t.Fatalf("Split() err = %v", err)
	}
	leftCount, rightCount := left.Count(), right.Count()

	if !left.FitsMerge(right) {
		t.Fatalf("FitsMerge() = false, want true for freshly re-split halves")
	}
	if err := left.MergeFrom(right); err != nil {
		t.Fatalf("MergeFrom() err = %v", err)
	}
	if left.Count() != leftCount+rightCount {
		t.Fatalf("Count() after merge = %d, want %d", left.Count(), leftCount+rightCount)
	}
	for i := 0; i < left.Count(); i++ {
		k, err := left.Key(i)
		if err != nil {
			t.Fatalf("Key() err = %v", err)
		}
		if !bytes.Equal(k, u64key(uint64(i))) {
			t.Fatalf("Key(%d) = %v, want %d", i, k, i)
		}
	}
}

func TestNode_OpenRoundTrip(t *testing.T) {
	body := make([]byte, 256)
	cfg := podConfig()
	n, err := NewLeaf(body, cfg)
	if err != nil {
		t.Fatalf("NewLeaf() err = %v", err)
	}
	if err := n.InsertSlot(0, u64key(1), u64key(42)); err != nil {
		t.Fatalf("InsertSlot() err = %v", err)
	}

	reopened, err := Open(body, cfg)
	if err != nil {
		t.Fatalf("Open() err = %v", err)
	}
	if reopened.Count() != 1 {
		t.Fatalf("Count() after Open = %d, want 1", reopened.Count())
	}
	rec, err := reopened.Record(0)
	if err != nil {
		t.Fatalf("Record() err = %v", err)
	}
	if !bytes.Equal(rec, u64key(42)) {
		t.Fatalf("Record(0) after Open = %v, want 42", rec)
	}
}
