package keylist

import (
	"testing"

	"github.com/latticedb/bltree/codec"
)

func newZint32(t *testing.T, maxBlocks, payloadSize int) *Zint32 {
	t.Helper()
	region := make([]byte, zint32PayloadStart(maxBlocks)+payloadSize)
	z, err := CreateZint32(region, maxBlocks, codec.Varbyte{}, 0)
	if err != nil {
		t.Fatalf("CreateZint32() err = %v", err)
	}
	return z
}

func insertZint32(t *testing.T, z *Zint32, v uint32) {
	t.Helper()
	if err := z.Insert(0, u32ToKey(v)); err != nil {
		t.Fatalf("Insert(%d) err = %v", v, err)
	}
}

func zint32Values(t *testing.T, z *Zint32) []uint32 {
	t.Helper()
	vals := make([]uint32, z.Count())
	for i := range vals {
		k, err := z.Key(i)
		if err != nil {
			t.Fatalf("Key(%d) err = %v", i, err)
		}
		vals[i] = keyToU32(k)
	}
	return vals
}

func TestZint32_BlockFillsToCapWithoutSplitting(t *testing.T) {
	z := newZint32(t, 4, 20000)
	for v := uint32(0); v < MaxBlockKeys; v++ {
		insertZint32(t, z, v)
	}
	if z.blockCount() != 1 {
		t.Fatalf("blockCount() = %d, want 1 (block exactly at cap should not split)", z.blockCount())
	}
	if z.Count() != MaxBlockKeys {
		t.Fatalf("Count() = %d, want %d", z.Count(), MaxBlockKeys)
	}

	insertZint32(t, z, MaxBlockKeys)
	if z.blockCount() != 2 {
		t.Fatalf("blockCount() after one-over-cap insert = %d, want 2", z.blockCount())
	}
	if z.Count() != MaxBlockKeys+1 {
		t.Fatalf("Count() after one-over-cap insert = %d, want %d", z.Count(), MaxBlockKeys+1)
	}
}

func TestZint32_SplitPivotIsAlignedAndLosesNoKeys(t *testing.T) {
	z := newZint32(t, 4, 20000)
	const n = 130
	for v := uint32(0); v < n; v++ {
		insertZint32(t, z, v)
	}
	if z.blockCount() != 2 {
		t.Fatalf("blockCount() = %d, want 2", z.blockCount())
	}

	left := z.entry(0)
	right := z.entry(1)
	if int(left.keyCount)+int(right.keyCount) != n {
		t.Fatalf("post-split key counts %d+%d != %d", left.keyCount, right.keyCount, n)
	}
	wantPivot := (n / 2) &^ 3
	if int(left.keyCount) != wantPivot {
		t.Fatalf("left.keyCount = %d, want 4-aligned pivot %d", left.keyCount, wantPivot)
	}
	if left.highest >= right.base {
		t.Fatalf("left.highest %d >= right.base %d, blocks out of key order", left.highest, right.base)
	}

	vals := zint32Values(t, z)
	if len(vals) != n {
		t.Fatalf("Count() = %d, want %d", len(vals), n)
	}
	for i, v := range vals {
		if v != uint32(i) {
			t.Fatalf("vals[%d] = %d, want %d (key lost or reordered across split)", i, v, i)
		}
	}
}

func TestZint32_EmptyingLastBlockMergesIntoLeftNeighbor(t *testing.T) {
	z := newZint32(t, 4, 20000)
	const n = 130
	for v := uint32(0); v < n; v++ {
		insertZint32(t, z, v)
	}
	if z.blockCount() != 2 {
		t.Fatalf("blockCount() = %d, want 2 before erase", z.blockCount())
	}
	leftCount := int(z.entry(0).keyCount)

	for z.Count() > leftCount {
		if err := z.Erase(leftCount); err != nil {
			t.Fatalf("Erase(%d) err = %v", leftCount, err)
		}
	}

	if z.blockCount() != 1 {
		t.Fatalf("blockCount() after draining the right block = %d, want 1 (should unlink into its left neighbor)", z.blockCount())
	}
	if z.Count() != leftCount {
		t.Fatalf("Count() = %d, want %d", z.Count(), leftCount)
	}
	vals := zint32Values(t, z)
	for i, v := range vals {
		if v != uint32(i) {
			t.Fatalf("vals[%d] = %d, want %d after merge", i, v, i)
		}
	}
}
