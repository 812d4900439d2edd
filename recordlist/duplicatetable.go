package recordlist

// DuplicateTable is the external, blob-backed store a Duplicate slot's
// run migrates into once it outgrows its inline budget.
// It is decoded from and re-encoded to a single blob's bytes in one
// shot — the same decode-edit-encode policy used elsewhere for small,
// page-bounded structures — rather than maintaining its own paged
// arena.
type DuplicateTable struct {
	entrySize int // recSize if fixed, defSlotSize if default-shaped
	isDefault bool
	blobs     BlobStore
	entries   [][]byte // always entrySize bytes, or the decoded record for default-shaped
}

const dupTableHeaderSize = 8 // count:u32, capacity:u32

// DecodeDuplicateTable parses a DuplicateTable's blob payload.
func DecodeDuplicateTable(data []byte, recSize int, blobs BlobStore) (*DuplicateTable, error) {
	isDefault := recSize == 0
	entrySize := recSize
	if isDefault {
		entrySize = defSlotSize
	}
	t := &DuplicateTable{entrySize: entrySize, isDefault: isDefault, blobs: blobs}
	if len(data) < dupTableHeaderSize {
		return t, nil
	}
	count := int(getU32(data[0:4]))
	payload := data[dupTableHeaderSize:]
	for i := 0; i < count; i++ {
		cell := payload[i*entrySize : (i+1)*entrySize]
		if isDefault {
			rec, err := decodeDefaultCell(cell, blobs)
			if err != nil {
				return nil, err
			}
			t.entries = append(t.entries, rec)
		} else {
			t.entries = append(t.entries, append([]byte(nil), cell...))
		}
	}
	return t, nil
}

// NewDuplicateTable creates an empty table for the given record shape.
func NewDuplicateTable(recSize int, blobs BlobStore) *DuplicateTable {
	isDefault := recSize == 0
	entrySize := recSize
	if isDefault {
		entrySize = defSlotSize
	}
	return &DuplicateTable{entrySize: entrySize, isDefault: isDefault, blobs: blobs}
}

func (t *DuplicateTable) Count() int { return len(t.entries) }

func (t *DuplicateTable) At(i int) []byte { return t.entries[i] }

func (t *DuplicateTable) InsertAt(i int, rec []byte) {
	t.entries = append(t.entries, nil)
	copy(t.entries[i+1:], t.entries[i:len(t.entries)-1])
	t.entries[i] = append([]byte(nil), rec...)
}

func (t *DuplicateTable) EraseAt(i int) error {
	if t.isDefault {
		cell := make([]byte, t.entrySize)
		if err := encodeDefaultCell(cell, t.entries[i], t.blobs); err == nil {
			// only erase a blob if this entry actually spilled to one
			if cell[0]&0x3 == defFlagBlob {
				_ = t.blobs.Erase(getU64(cell[1:]))
			}
		}
	}
	t.entries = append(t.entries[:i], t.entries[i+1:]...)
	return nil
}

// Encode serializes the table back to blob payload bytes, capacity
// doubling from the previous power-of-two >= count.
func (t *DuplicateTable) Encode() ([]byte, error) {
	capacity := 1
	for capacity < len(t.entries) {
		capacity *= 2
	}
	if capacity == 0 {
		capacity = 1
	}
	out := make([]byte, dupTableHeaderSize+capacity*t.entrySize)
	putU32(out[0:4], uint32(len(t.entries)))
	putU32(out[4:8], uint32(capacity))
	for i, e := range t.entries {
		cell := out[dupTableHeaderSize+i*t.entrySize : dupTableHeaderSize+(i+1)*t.entrySize]
		if t.isDefault {
			if err := encodeDefaultCell(cell, e, t.blobs); err != nil {
				return nil, err
			}
		} else {
			copy(cell, e)
		}
	}
	return out, nil
}

func getU32(b []byte) uint32 {
	var v uint32
	for i := 0; i < 4; i++ {
		v |= uint32(b[i]) << (8 * i)
	}
	return v
}

func putU32(b []byte, v uint32) {
	for i := 0; i < 4; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
