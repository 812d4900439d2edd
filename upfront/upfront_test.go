package upfront

import "testing"

func newIndex(t *testing.T, regionSize int, capacity uint16) *Index {
	t.Helper()
	idx, err := Create(make([]byte, regionSize), capacity, 2)
	if err != nil {
		t.Fatalf("Create() err = %v", err)
	}
	return idx
}

func TestIndex_InsertErase(t *testing.T) {
	idx := newIndex(t, 256, 8)

	dst, err := idx.Insert(0, 5)
	if err != nil {
		t.Fatalf("Insert() err = %v", err)
	}
	copy(dst, "hello")

	dst, err = idx.Insert(1, 3)
	if err != nil {
		t.Fatalf("Insert() err = %v", err)
	}
	copy(dst, "foo")

	if idx.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", idx.Count())
	}
	if string(idx.Chunk(0)) != "hello" {
		t.Fatalf("Chunk(0) = %q, want %q", idx.Chunk(0), "hello")
	}
	if string(idx.Chunk(1)) != "foo" {
		t.Fatalf("Chunk(1) = %q, want %q", idx.Chunk(1), "foo")
	}

	idx.Erase(0)
	if idx.Count() != 1 {
		t.Fatalf("Count() after Erase = %d, want 1", idx.Count())
	}
	if string(idx.Chunk(0)) != "foo" {
		t.Fatalf("Chunk(0) after Erase = %q, want %q", idx.Chunk(0), "foo")
	}
	if err := idx.CheckIntegrity(); err != nil {
		t.Fatalf("CheckIntegrity() err = %v", err)
	}
}

func TestIndex_InsertAtMiddlePreservesOrder(t *testing.T) {
	idx := newIndex(t, 256, 8)
	for i, s := range []string{"a", "c", "e"} {
		dst, err := idx.Insert(i, len(s))
		if err != nil {
			t.Fatalf("Insert() err = %v", err)
		}
		copy(dst, s)
	}
	dst, err := idx.Insert(1, 1) // insert "b" between "a" and "c"
	if err != nil {
		t.Fatalf("Insert() err = %v", err)
	}
	copy(dst, "b")

	want := []string{"a", "b", "c", "e"}
	for i, w := range want {
		if got := string(idx.Chunk(i)); got != w {
			t.Fatalf("Chunk(%d) = %q, want %q", i, got, w)
		}
	}
}

func TestIndex_EraseReusesFreelistSlot(t *testing.T) {
	idx := newIndex(t, 64, 4)
	dst, _ := idx.Insert(0, 10)
	copy(dst, []byte("0123456789"))
	before := idx.nextOffset()

	idx.Erase(0)
	if idx.freelistCount() != 1 {
		t.Fatalf("freelistCount() = %d, want 1", idx.freelistCount())
	}

	dst, err := idx.Insert(0, 10)
	if err != nil {
		t.Fatalf("Insert() err = %v", err)
	}
	copy(dst, []byte("abcdefghij"))
	if idx.nextOffset() != before {
		t.Fatalf("nextOffset() = %d, want reuse to leave it at %d", idx.nextOffset(), before)
	}
	if idx.freelistCount() != 0 {
		t.Fatalf("freelistCount() = %d, want 0 after reuse", idx.freelistCount())
	}
}

func TestIndex_VacuumizeBelowThresholdOnlyClearsFreelist(t *testing.T) {
	idx := newIndex(t, 64, 4)
	dst, _ := idx.Insert(0, 4)
	copy(dst, []byte("aaaa"))
	idx.Erase(0)

	if idx.vacuumCounter >= VacuumizeThreshold {
		t.Fatalf("test setup: vacuumCounter = %d, want below threshold", idx.vacuumCounter)
	}
	next := idx.nextOffset()
	compacted := idx.Vacuumize()
	if compacted {
		t.Fatalf("Vacuumize() = true below threshold, want cheap clear")
	}
	if idx.freelistCount() != 0 {
		t.Fatalf("freelistCount() after Vacuumize = %d, want 0", idx.freelistCount())
	}
	if idx.nextOffset() != next {
		t.Fatalf("nextOffset() changed on cheap Vacuumize: got %d, want %d", idx.nextOffset(), next)
	}
}

func TestIndex_VacuumizeAboveThresholdCompacts(t *testing.T) {
	idx := newIndex(t, 128, 8)
	for i := 0; i < 4; i++ {
		dst, err := idx.Insert(i, 8)
		if err != nil {
			t.Fatalf("Insert() err = %v", err)
		}
		copy(dst, []byte{byte('a' + i), 1, 2, 3, 4, 5, 6, 7})
	}
	// erase enough bytes to cross VacuumizeThreshold
	idx.Erase(0)
	idx.Erase(0)

	if idx.vacuumCounter < VacuumizeThreshold {
		t.Fatalf("test setup: vacuumCounter = %d, want >= %d", idx.vacuumCounter, VacuumizeThreshold)
	}

	remaining := make([][]byte, idx.Count())
	for i := range remaining {
		remaining[i] = append([]byte(nil), idx.Chunk(i)...)
	}

	if !idx.Vacuumize() {
		t.Fatalf("Vacuumize() = false above threshold, want compaction")
	}
	if idx.freelistCount() != 0 {
		t.Fatalf("freelistCount() after compaction = %d, want 0", idx.freelistCount())
	}
	for i, want := range remaining {
		if got := idx.Chunk(i); string(got) != string(want) {
			t.Fatalf("Chunk(%d) after Vacuumize = %v, want %v", i, got, want)
		}
	}
	if err := idx.CheckIntegrity(); err != nil {
		t.Fatalf("CheckIntegrity() err = %v", err)
	}
}

func TestIndex_SplitAndMerge(t *testing.T) {
	idx := newIndex(t, 256, 8)
	for i, s := range []string{"a", "b", "c", "d"} {
		dst, err := idx.Insert(i, len(s))
		if err != nil {
			t.Fatalf("Insert() err = %v", err)
		}
		copy(dst, s)
	}

	other := newIndex(t, 256, 8)
	if err := idx.Split(other, 2); err != nil {
		t.Fatalf("Split() err = %v", err)
	}
	if idx.Count() != 2 || other.Count() != 2 {
		t.Fatalf("Split() counts = %d/%d, want 2/2", idx.Count(), other.Count())
	}
	if string(idx.Chunk(0)) != "a" || string(idx.Chunk(1)) != "b" {
		t.Fatalf("left half after Split = %q/%q", idx.Chunk(0), idx.Chunk(1))
	}
	if string(other.Chunk(0)) != "c" || string(other.Chunk(1)) != "d" {
		t.Fatalf("right half after Split = %q/%q", other.Chunk(0), other.Chunk(1))
	}

	if err := idx.MergeFrom(other); err != nil {
		t.Fatalf("MergeFrom() err = %v", err)
	}
	want := []string{"a", "b", "c", "d"}
	for i, w := range want {
		if got := string(idx.Chunk(i)); got != w {
			t.Fatalf("Chunk(%d) after MergeFrom = %q, want %q", i, got, w)
		}
	}
	if err := idx.CheckIntegrity(); err != nil {
		t.Fatalf("CheckIntegrity() err = %v", err)
	}
}

func TestIndex_RequiresSplitWhenFull(t *testing.T) {
	idx := newIndex(t, headerSize(2)+2*descSize(2)+4, 2)
	if _, err := idx.Insert(0, 2); err != nil {
		t.Fatalf("Insert() err = %v", err)
	}
	if _, err := idx.Insert(1, 2); err != nil {
		t.Fatalf("Insert() err = %v", err)
	}
	if !idx.RequiresSplit(1) {
		t.Fatalf("RequiresSplit() = false, want true once the descriptor table is full")
	}
}

func TestIndex_CheckIntegrityDetectsOverlap(t *testing.T) {
	idx := newIndex(t, 64, 4)
	if _, err := idx.Insert(0, 4); err != nil {
		t.Fatalf("Insert() err = %v", err)
	}
	if _, err := idx.Insert(1, 4); err != nil {
		t.Fatalf("Insert() err = %v", err)
	}
	// corrupt the second descriptor to overlap the first
	off, size := idx.descAt(0)
	idx.setDescAt(1, off, size)

	if err := idx.CheckIntegrity(); err == nil {
		t.Fatalf("CheckIntegrity() = nil, want overlap error")
	}
}
