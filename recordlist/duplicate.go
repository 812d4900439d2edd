package recordlist

import "github.com/latticedb/bltree/upfront"

const (
	dupFlagExtended byte = 0x80
	dupCountMask    byte = 0x7f
)

// Duplicate is the per-key duplicate-record run: small runs live inline
// in an UpfrontIndex chunk; runs that reach duplicateThreshold entries
// (or no longer fit their chunk) migrate to an external DuplicateTable
// blob.
type Duplicate struct {
	idx                *upfront.Index
	blobs              BlobStore
	recSize            int // 0 => default-shaped (9-byte cells, blob-spillable per entry)
	duplicateThreshold int
}

// NewDuplicate creates a Duplicate list over idx. recSize is the fixed
// per-duplicate width, or 0 for default-record-shaped duplicates.
func NewDuplicate(idx *upfront.Index, blobs BlobStore, recSize, duplicateThreshold int) *Duplicate {
	return &Duplicate{idx: idx, blobs: blobs, recSize: recSize, duplicateThreshold: duplicateThreshold}
}

func (d *Duplicate) entrySize() int {
	if d.recSize == 0 {
		return defSlotSize
	}
	return d.recSize
}

// Count returns the number of distinct keys (slots), matching the
// KeyList's slot count.
func (d *Duplicate) Count() int { return d.idx.Count() }

// RequiresSplit reports whether the index cannot take a new slot holding
// one duplicate (a 1-byte run header plus one entry).
func (d *Duplicate) RequiresSplit(int) bool {
	return d.idx.RequiresSplit(1 + d.entrySize())
}

// RequiredRangeSize returns a lower bound only: the descriptor-table
// cost of n slots (offset + 1-byte size each), as keylist.Variable does.
func (d *Duplicate) RequiredRangeSize(n int) int {
	return n * (d.idx.OffsetWidth() + 1)
}

func (d *Duplicate) decodeInline(body []byte, count int) ([][]byte, error) {
	es := d.entrySize()
	entries := make([][]byte, count)
	for i := 0; i < count; i++ {
		cell := body[i*es : (i+1)*es]
		if d.recSize == 0 {
			rec, err := decodeDefaultCell(cell, d.blobs)
			if err != nil {
				return nil, err
			}
			entries[i] = rec
		} else {
			entries[i] = append([]byte(nil), cell...)
		}
	}
	return entries, nil
}

func (d *Duplicate) encodeInline(entries [][]byte) ([]byte, error) {
	es := d.entrySize()
	body := make([]byte, len(entries)*es)
	for i, e := range entries {
		cell := body[i*es : (i+1)*es]
		if d.recSize == 0 {
			if err := encodeDefaultCell(cell, e, d.blobs); err != nil {
				return nil, err
			}
		} else {
			copy(cell, e)
		}
	}
	return body, nil
}

func (d *Duplicate) table(id uint64) (*DuplicateTable, error) {
	data, err := d.blobs.Read(id)
	if err != nil {
		return nil, err
	}
	return DecodeDuplicateTable(data, d.recSize, d.blobs)
}

// CountAt returns the number of duplicate records for slot.
func (d *Duplicate) CountAt(slot int) (int, error) {
	chunk := d.idx.Chunk(slot)
	meta := chunk[0]
	if meta&dupFlagExtended != 0 {
		t, err := d.table(getU64(chunk[1:9]))
		if err != nil {
			return 0, err
		}
		return t.Count(), nil
	}
	return int(meta & dupCountMask), nil
}

// RecordAt returns duplicate dupIndex of slot.
func (d *Duplicate) RecordAt(slot, dupIndex int) ([]byte, error) {
	chunk := d.idx.Chunk(slot)
	meta := chunk[0]
	if meta&dupFlagExtended != 0 {
		t, err := d.table(getU64(chunk[1:9]))
		if err != nil {
			return nil, err
		}
		return t.At(dupIndex), nil
	}
	entries, err := d.decodeInline(chunk[1:], int(meta&dupCountMask))
	if err != nil {
		return nil, err
	}
	return entries[dupIndex], nil
}

// InsertAt inserts rec as duplicate dupIndex of slot (0 = first,
// CountAt(slot) = last/append).
func (d *Duplicate) InsertAt(slot, dupIndex int, rec []byte) error {
	chunk := d.idx.Chunk(slot)
	meta := chunk[0]

	if meta&dupFlagExtended != 0 {
		id := getU64(chunk[1:9])
		t, err := d.table(id)
		if err != nil {
			return err
		}
		t.InsertAt(dupIndex, rec)
		data, err := t.Encode()
		if err != nil {
			return err
		}
		newID, err := d.blobs.Overwrite(id, data)
		if err != nil {
			return err
		}
		putU64(chunk[1:9], newID)
		return nil
	}

	count := int(meta & dupCountMask)
	entries, err := d.decodeInline(chunk[1:], count)
	if err != nil {
		return err
	}
	entries = append(entries, nil)
	copy(entries[dupIndex+1:], entries[dupIndex:len(entries)-1])
	entries[dupIndex] = append([]byte(nil), rec...)

	es := d.entrySize()
	requiredSize := 1 + len(entries)*es
	if len(entries) >= d.duplicateThreshold || requiredSize > 255 || !d.idx.CanAllocateSpace(requiredSize) {
		return d.convertToExternal(slot, entries)
	}

	body, err := d.encodeInline(entries)
	if err != nil {
		return err
	}
	d.idx.Erase(slot)
	dst, err := d.idx.Insert(slot, 1+len(body))
	if err != nil {
		return err
	}
	dst[0] = byte(len(entries))
	copy(dst[1:], body)
	return nil
}

func (d *Duplicate) convertToExternal(slot int, entries [][]byte) error {
	t := NewDuplicateTable(d.recSize, d.blobs)
	for _, e := range entries {
		t.InsertAt(t.Count(), e)
	}
	data, err := t.Encode()
	if err != nil {
		return err
	}
	id, err := d.blobs.Allocate(data)
	if err != nil {
		return err
	}
	d.idx.Erase(slot)
	dst, err := d.idx.Insert(slot, 9)
	if err != nil {
		return err
	}
	dst[0] = dupFlagExtended
	putU64(dst[1:], id)
	return nil
}

// EraseAt removes duplicate dupIndex from slot (or every duplicate, if
// all is true), tearing down the slot's chunk entirely once no
// duplicates remain.
func (d *Duplicate) EraseAt(slot, dupIndex int, all bool) error {
	chunk := d.idx.Chunk(slot)
	meta := chunk[0]

	if meta&dupFlagExtended != 0 {
		id := getU64(chunk[1:9])
		t, err := d.table(id)
		if err != nil {
			return err
		}
		preCount := t.Count()
		if all {
			t.entries = nil
		} else if err := t.EraseAt(dupIndex); err != nil {
			return err
		}

		// The table shrinks in place until the entry being erased was
		// the last remaining one (pre-erase count 1), at which point it
		// is deleted and the slot becomes empty (the reverse conversion
		// to inline never happens automatically).
		if all || preCount == 1 {
			if err := d.blobs.Erase(id); err != nil {
				return err
			}
			dst := d.idx.Chunk(slot)
			dst[0] = 0
			return nil
		}
		data, err := t.Encode()
		if err != nil {
			return err
		}
		newID, err := d.blobs.Overwrite(id, data)
		if err != nil {
			return err
		}
		putU64(chunk[1:9], newID)
		return nil
	}

	count := int(meta & dupCountMask)
	if all {
		dst := d.idx.Chunk(slot)
		dst[0] = 0
		return nil
	}
	entries, err := d.decodeInline(chunk[1:], count)
	if err != nil {
		return err
	}
	entries = append(entries[:dupIndex], entries[dupIndex+1:]...)

	body, err := d.encodeInline(entries)
	if err != nil {
		return err
	}
	d.idx.Erase(slot)
	dst, err := d.idx.Insert(slot, 1+len(body))
	if err != nil {
		return err
	}
	dst[0] = byte(len(entries))
	copy(dst[1:], body)
	return nil
}

// Erase tears down slot's entire duplicate run (used when the owning
// key itself is erased from the KeyList).
func (d *Duplicate) Erase(slot int) error {
	chunk := d.idx.Chunk(slot)
	if chunk[0]&dupFlagExtended != 0 {
		if err := d.blobs.Erase(getU64(chunk[1:9])); err != nil {
			return err
		}
	}
	d.idx.Erase(slot)
	return nil
}

// Insert reserves a new, empty duplicate run at slot i (the first
// duplicate is added via a subsequent InsertAt(i, 0, rec)).
func (d *Duplicate) Insert(i int) error {
	dst, err := d.idx.Insert(i, 1)
	if err != nil {
		return err
	}
	dst[0] = 0
	return nil
}
