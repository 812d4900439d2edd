package recordlist

import (
	"testing"

	"github.com/latticedb/bltree/upfront"
)

type fakeBlobs struct {
	next  uint64
	store map[uint64][]byte
}

func newFakeBlobs() *fakeBlobs { return &fakeBlobs{store: make(map[uint64][]byte)} }

func (f *fakeBlobs) Allocate(data []byte) (uint64, error) {
	f.next++
	f.store[f.next] = append([]byte(nil), data...)
	return f.next, nil
}

func (f *fakeBlobs) Overwrite(id uint64, data []byte) (uint64, error) {
	f.store[id] = append([]byte(nil), data...)
	return id, nil
}

func (f *fakeBlobs) Read(id uint64) ([]byte, error) {
	return append([]byte(nil), f.store[id]...), nil
}

func (f *fakeBlobs) Erase(id uint64) error {
	delete(f.store, id)
	return nil
}

func TestInlineRecord_InsertEraseRoundTrip(t *testing.T) {
	rl := NewInlineRecord(make([]byte, 64), 8, 0)
	if err := rl.Insert(0, []byte("12345678")); err != nil {
		t.Fatalf("Insert() err = %v", err)
	}
	if err := rl.Insert(1, []byte("abcdefgh")); err != nil {
		t.Fatalf("Insert() err = %v", err)
	}
	got, _ := rl.Record(0)
	if string(got) != "12345678" {
		t.Fatalf("Record(0) = %q", got)
	}
	if err := rl.Erase(0); err != nil {
		t.Fatalf("Erase() err = %v", err)
	}
	got, _ = rl.Record(0)
	if string(got) != "abcdefgh" {
		t.Fatalf("Record(0) after Erase = %q", got)
	}
}

func TestInternalRecord_ChildAccessors(t *testing.T) {
	rl := NewInternalRecord(make([]byte, 64), 0)
	if err := rl.InsertChild(0, 100); err != nil {
		t.Fatalf("InsertChild() err = %v", err)
	}
	if err := rl.InsertChild(1, 200); err != nil {
		t.Fatalf("InsertChild() err = %v", err)
	}
	if rl.ChildAt(0) != 100 || rl.ChildAt(1) != 200 {
		t.Fatalf("ChildAt() = %d/%d, want 100/200", rl.ChildAt(0), rl.ChildAt(1))
	}
	rl.SetChildAt(0, 999)
	if rl.ChildAt(0) != 999 {
		t.Fatalf("ChildAt(0) after SetChildAt = %d, want 999", rl.ChildAt(0))
	}
}

func TestDefaultRecord_InlineAndBlob(t *testing.T) {
	blobs := newFakeBlobs()
	rl := NewDefaultRecord(make([]byte, 256), 0, blobs)

	if err := rl.Insert(0, []byte("hi")); err != nil { // tiny
		t.Fatalf("Insert() err = %v", err)
	}
	if err := rl.Insert(1, []byte("abcdefgh")); err != nil { // small, exactly 8
		t.Fatalf("Insert() err = %v", err)
	}
	big := make([]byte, 40)
	for i := range big {
		big[i] = byte(i)
	}
	if err := rl.Insert(2, big); err != nil { // blob
		t.Fatalf("Insert() err = %v", err)
	}

	got, _ := rl.Record(0)
	if string(got) != "hi" {
		t.Fatalf("Record(0) = %q, want hi", got)
	}
	got, _ = rl.Record(1)
	if string(got) != "abcdefgh" {
		t.Fatalf("Record(1) = %q", got)
	}
	got, _ = rl.Record(2)
	if string(got) != string(big) {
		t.Fatalf("Record(2) = %v, want %v", got, big)
	}
	if len(blobs.store) != 1 {
		t.Fatalf("blob store has %d entries, want 1", len(blobs.store))
	}

	// SetRecord shrinking a blob record back to inline should free the blob.
	if err := rl.SetRecord(2, []byte("small")); err != nil {
		t.Fatalf("SetRecord() err = %v", err)
	}
	if len(blobs.store) != 0 {
		t.Fatalf("blob store has %d entries after shrink, want 0", len(blobs.store))
	}
	got, _ = rl.Record(2)
	if string(got) != "small" {
		t.Fatalf("Record(2) after SetRecord = %q", got)
	}
}

func newDupIndex(t *testing.T, region int, cap uint16) *upfront.Index {
	t.Helper()
	idx, err := upfront.Create(make([]byte, region), cap, 2)
	if err != nil {
		t.Fatalf("upfront.Create() err = %v", err)
	}
	return idx
}

func TestDuplicate_InlineInsertAndErase(t *testing.T) {
	blobs := newFakeBlobs()
	idx := newDupIndex(t, 512, 8)
	dup := NewDuplicate(idx, blobs, 4, 8)

	if err := dup.Insert(0); err != nil {
		t.Fatalf("Insert() err = %v", err)
	}
	if err := dup.InsertAt(0, 0, []byte("aaaa")); err != nil {
		t.Fatalf("InsertAt() err = %v", err)
	}
	if err := dup.InsertAt(0, 1, []byte("bbbb")); err != nil {
		t.Fatalf("InsertAt() err = %v", err)
	}
	if err := dup.InsertAt(0, 0, []byte("zzzz")); err != nil {
		t.Fatalf("InsertAt() err = %v", err)
	}

	count, err := dup.CountAt(0)
	if err != nil {
		t.Fatalf("CountAt() err = %v", err)
	}
	if count != 3 {
		t.Fatalf("CountAt() = %d, want 3", count)
	}
	want := []string{"zzzz", "aaaa", "bbbb"}
	for i, w := range want {
		got, err := dup.RecordAt(0, i)
		if err != nil {
			t.Fatalf("RecordAt() err = %v", err)
		}
		if string(got) != w {
			t.Fatalf("RecordAt(0,%d) = %q, want %q", i, got, w)
		}
	}

	if err := dup.EraseAt(0, 1, false); err != nil {
		t.Fatalf("EraseAt() err = %v", err)
	}
	count, _ = dup.CountAt(0)
	if count != 2 {
		t.Fatalf("CountAt() after EraseAt = %d, want 2", count)
	}
}

func TestDuplicate_ConvertsToExternalTableAtThreshold(t *testing.T) {
	blobs := newFakeBlobs()
	idx := newDupIndex(t, 512, 8)
	dup := NewDuplicate(idx, blobs, 4, 3) // threshold of 3

	if err := dup.Insert(0); err != nil {
		t.Fatalf("Insert() err = %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := dup.InsertAt(0, i, []byte{byte(i), byte(i), byte(i), byte(i)}); err != nil {
			t.Fatalf("InsertAt() err = %v", err)
		}
	}

	count, err := dup.CountAt(0)
	if err != nil {
		t.Fatalf("CountAt() err = %v", err)
	}
	if count != 3 {
		t.Fatalf("CountAt() = %d, want 3", count)
	}
	if len(blobs.store) != 1 {
		t.Fatalf("blob store has %d entries, want 1 (converted to external table)", len(blobs.store))
	}

	got, err := dup.RecordAt(0, 1)
	if err != nil {
		t.Fatalf("RecordAt() err = %v", err)
	}
	if got[0] != 1 {
		t.Fatalf("RecordAt(0,1) = %v, want entry tagged 1", got)
	}
}
