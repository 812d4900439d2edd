// Package upfront implements UpfrontIndex, a reusable variable-length
// chunk manager: a header, a descriptor table (offset + 1-byte size per
// slot), and a payload area, all living inside one caller-supplied byte
// region (a node's KeyList range for variable-length keys, or a
// RecordList slot's body for an inline duplicate run).
//
// Grounded on the same "slot array grows from one end, payload from the
// other" idea a slotted-page manager uses for a whole page, generalized
// here to a tighter per-region byte budget (1-byte chunk size, LIFO
// freelist of reusable descriptors, amortized vacuumize). The region is
// treated as an arena: descriptors are indices into it, never pointers,
// so ChangeRangeSize/Vacuumize can relocate payload bytes freely between
// calls.
package upfront

import "github.com/latticedb/bltree/errkit"

// VacuumizeThreshold is the wasted-byte count at or above which Vacuumize
// performs the expensive compaction instead of merely dropping the
// freelist.
const VacuumizeThreshold = 10

// OffsetWidth returns the descriptor offset field width for a given page
// size: 2 bytes up to 64KiB pages, 4 bytes above.
func OffsetWidth(pageSize uint32) int {
	if pageSize <= 64*1024 {
		return 2
	}
	return 4
}

const fixedHeaderSize = 6 // count(2) + freelistCount(2) + capacity(2)

// Index is a view over a caller-owned byte region.
type Index struct {
	region        []byte
	offsetWidth   int
	vacuumCounter uint32
}

func descSize(offsetWidth int) int { return offsetWidth + 1 }

func headerSize(offsetWidth int) int { return fixedHeaderSize + offsetWidth }

// Create initializes a fresh, empty index inside region with room for
// capacity descriptors.
func Create(region []byte, capacity uint16, offsetWidth int) (*Index, error) {
	need := headerSize(offsetWidth) + int(capacity)*descSize(offsetWidth)
	if need > len(region) {
		return nil, errkit.NewError(errkit.KindLimitsReached, "upfront: region too small for requested capacity")
	}
	idx := &Index{region: region, offsetWidth: offsetWidth}
	idx.setCount(0)
	idx.setFreelistCount(0)
	idx.setCapacity(capacity)
	idx.setNextOffset(uint32(need))
	return idx, nil
}

// Open wraps an existing, previously Create'd region.
func Open(region []byte, offsetWidth int) *Index {
	return &Index{region: region, offsetWidth: offsetWidth}
}

// --- header field access ---

func (idx *Index) count() uint16       { return getU16(idx.region[0:2]) }
func (idx *Index) setCount(v uint16)   { putU16(idx.region[0:2], v) }
func (idx *Index) freelistCount() uint16     { return getU16(idx.region[2:4]) }
func (idx *Index) setFreelistCount(v uint16) { putU16(idx.region[2:4], v) }
func (idx *Index) capacity() uint16    { return getU16(idx.region[4:6]) }
func (idx *Index) setCapacity(v uint16) { putU16(idx.region[4:6], v) }

func (idx *Index) nextOffset() uint32 {
	return getUint(idx.region[fixedHeaderSize:fixedHeaderSize+idx.offsetWidth], idx.offsetWidth)
}
func (idx *Index) setNextOffset(v uint32) {
	putUint(idx.region[fixedHeaderSize:fixedHeaderSize+idx.offsetWidth], v, idx.offsetWidth)
}

// Count returns the number of live slots.
func (idx *Index) Count() int { return int(idx.count()) }

// Capacity returns the descriptor table size.
func (idx *Index) Capacity() int { return int(idx.capacity()) }

// OffsetWidth returns the descriptor offset field width this index was
// created/opened with (2 or 4 bytes).
func (idx *Index) OffsetWidth() int { return idx.offsetWidth }

func (idx *Index) descTableStart() int { return headerSize(idx.offsetWidth) }

func (idx *Index) descAt(pos int) (offset uint32, size uint8) {
	start := idx.descTableStart() + pos*descSize(idx.offsetWidth)
	offset = getUint(idx.region[start:start+idx.offsetWidth], idx.offsetWidth)
	size = idx.region[start+idx.offsetWidth]
	return
}

func (idx *Index) setDescAt(pos int, offset uint32, size uint8) {
	start := idx.descTableStart() + pos*descSize(idx.offsetWidth)
	putUint(idx.region[start:start+idx.offsetWidth], offset, idx.offsetWidth)
	idx.region[start+idx.offsetWidth] = size
}

func (idx *Index) payloadStart() int {
	return idx.descTableStart() + int(idx.capacity())*descSize(idx.offsetWidth)
}

// Chunk returns the payload bytes for live slot i.
func (idx *Index) Chunk(i int) []byte {
	off, size := idx.descAt(i)
	return idx.region[off : off+uint32(size)]
}

// ChunkSize returns the byte length of live slot i's chunk.
func (idx *Index) ChunkSize(i int) int {
	_, size := idx.descAt(i)
	return int(size)
}

// Insert reserves a new live descriptor slot at position i (shifting
// descriptors [i, count) up by one) and returns a byte slice of length
// size for the caller to fill. It does not itself move any payload bytes
// belonging to other slots.
func (idx *Index) Insert(i int, size int) ([]byte, error) {
	if size > 255 {
		return nil, errkit.NewError(errkit.KindInvParameter, "upfront: chunk larger than 255 bytes")
	}
	if idx.RequiresSplit(size) {
		return nil, errkit.NewError(errkit.KindLimitsReached, "upfront: no room for new chunk")
	}

	offset, err := idx.allocateSpace(size)
	if err != nil {
		return nil, err
	}

	cnt := int(idx.count())
	for p := cnt; p > i; p-- {
		o, s := idx.descAt(p - 1)
		idx.setDescAt(p, o, s)
	}
	idx.setDescAt(i, offset, uint8(size))
	idx.setCount(uint16(cnt + 1))
	return idx.region[offset : offset+uint32(size)], nil
}

// Erase removes live slot i, pushing its chunk descriptor onto the LIFO
// freelist.
func (idx *Index) Erase(i int) {
	off, size := idx.descAt(i)
	idx.vacuumCounter += uint32(size)

	cnt := int(idx.count())
	for p := i; p < cnt-1; p++ {
		o, s := idx.descAt(p + 1)
		idx.setDescAt(p, o, s)
	}
	idx.setCount(uint16(cnt - 1))

	fc := int(idx.freelistCount())
	idx.setDescAt(cnt-1, off, size)
	idx.setFreelistCount(uint16(fc + 1))
}

// CanAllocateSpace reports whether size bytes are available either from
// the freelist or from the unused payload tail, without mutating state.
func (idx *Index) CanAllocateSpace(size int) bool {
	if int(idx.count())+1 > int(idx.capacity())-int(idx.freelistCount()) {
		// no spare descriptor slot for the new live entry
		return false
	}
	if idx.findFreelistFit(size) >= 0 {
		return true
	}
	return int(idx.nextOffset())+size <= len(idx.region)
}

// RequiresSplit reports that a chunk of size bytes cannot be inserted.
func (idx *Index) RequiresSplit(size int) bool {
	return !idx.CanAllocateSpace(size)
}

func (idx *Index) findFreelistFit(size int) int {
	cnt := int(idx.count())
	fc := int(idx.freelistCount())
	best := -1
	bestSize := -1
	for p := cnt; p < cnt+fc; p++ {
		_, s := idx.descAt(p)
		if int(s) >= size && (best < 0 || int(s) < bestSize) {
			best = p
			bestSize = int(s)
		}
	}
	return best
}

func (idx *Index) allocateSpace(size int) (uint32, error) {
	if p := idx.findFreelistFit(size); p >= 0 {
		off, _ := idx.descAt(p)
		idx.removeFreelistEntry(p)
		return off, nil
	}
	next := idx.nextOffset()
	if int(next)+size > len(idx.region) {
		if idx.Vacuumize() {
			return idx.allocateSpace(size)
		}
		return 0, errkit.NewError(errkit.KindLimitsReached, "upfront: payload area exhausted")
	}
	idx.setNextOffset(next + uint32(size))
	return next, nil
}

func (idx *Index) removeFreelistEntry(p int) {
	cnt := int(idx.count())
	fc := int(idx.freelistCount())
	last := cnt + fc - 1
	if p != last {
		o, s := idx.descAt(last)
		idx.setDescAt(p, o, s)
	}
	idx.setFreelistCount(uint16(fc - 1))
}

// Vacuumize applies the amortized compaction policy: below
// VacuumizeThreshold wasted bytes, it only clears the freelist (cheap,
// reclaims nothing); at or above it, it compacts payload bytes in place sorted
// by offset and returns true.
func (idx *Index) Vacuumize() bool {
	if idx.vacuumCounter < VacuumizeThreshold {
		idx.setFreelistCount(0)
		return false
	}

	type liveDesc struct {
		slot, offset, size int
	}
	cnt := int(idx.count())
	live := make([]liveDesc, cnt)
	for i := 0; i < cnt; i++ {
		off, size := idx.descAt(i)
		live[i] = liveDesc{i, int(off), int(size)}
	}
	// sort by current offset ascending (insertion sort: cnt is small —
	// page-bounded — so O(n^2) is fine and avoids importing sort for a
	// handful of elements).
	for i := 1; i < len(live); i++ {
		for j := i; j > 0 && live[j-1].offset > live[j].offset; j-- {
			live[j-1], live[j] = live[j], live[j-1]
		}
	}

	cursor := idx.payloadStart()
	for _, d := range live {
		if d.offset != cursor {
			copy(idx.region[cursor:cursor+d.size], idx.region[d.offset:d.offset+d.size])
		}
		idx.setDescAt(d.slot, uint32(cursor), uint8(d.size))
		cursor += d.size
	}
	idx.setNextOffset(uint32(cursor))
	idx.setFreelistCount(0)
	idx.vacuumCounter = 0
	return true
}

// Split moves live slots [pivot, count) into other, which must already be
// Create'd empty with enough capacity, and truncates self to pivot slots.
func (idx *Index) Split(other *Index, pivot int) error {
	cnt := int(idx.count())
	for i := pivot; i < cnt; i++ {
		chunk := idx.Chunk(i)
		dst, err := other.Insert(i-pivot, len(chunk))
		if err != nil {
			return err
		}
		copy(dst, chunk)
	}
	idx.setCount(uint16(pivot))
	idx.setFreelistCount(0)
	return nil
}

// MergeFrom appends every live chunk of other after self's existing
// slots, in order.
func (idx *Index) MergeFrom(other *Index) error {
	base := int(idx.count())
	for i := 0; i < other.Count(); i++ {
		chunk := other.Chunk(i)
		dst, err := idx.Insert(base+i, len(chunk))
		if err != nil {
			return err
		}
		copy(dst, chunk)
	}
	return nil
}

// CheckIntegrity verifies the invariants.
func (idx *Index) CheckIntegrity() error {
	cnt := int(idx.count())
	fc := int(idx.freelistCount())
	cap := int(idx.capacity())
	if cnt+fc > cap {
		return errkit.NewError(errkit.KindIntegrityViolated, "upfront: count+freelistCount exceeds capacity")
	}

	type span struct{ start, end int }
	spans := make([]span, 0, cnt)
	maxEnd := idx.payloadStart()
	for i := 0; i < cnt; i++ {
		off, size := idx.descAt(i)
		s := span{int(off), int(off) + int(size)}
		spans = append(spans, s)
		if s.end > maxEnd {
			maxEnd = s.end
		}
	}
	// next_offset is a monotonic high-water mark that Erase never lowers,
	// so freed chunks can still account for it — include the freelist
	// region too, not just live chunks.
	for i := cnt; i < cnt+fc; i++ {
		off, size := idx.descAt(i)
		if end := int(off) + int(size); end > maxEnd {
			maxEnd = end
		}
	}
	for i := 0; i < len(spans); i++ {
		for j := i + 1; j < len(spans); j++ {
			if spans[i].start < spans[j].end && spans[j].start < spans[i].end {
				return errkit.NewError(errkit.KindIntegrityViolated, "upfront: overlapping chunks")
			}
		}
	}
	if uint32(maxEnd) != idx.nextOffset() {
		return errkit.NewError(errkit.KindIntegrityViolated, "upfront: next_offset does not match max live chunk end")
	}
	if maxEnd > len(idx.region) {
		return errkit.NewError(errkit.KindIntegrityViolated, "upfront: consumed size exceeds region")
	}
	return nil
}

func getU16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func putU16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func getUint(b []byte, width int) uint32 {
	var v uint32
	for i := 0; i < width; i++ {
		v |= uint32(b[i]) << (8 * i)
	}
	return v
}

func putUint(b []byte, v uint32, width int) {
	for i := 0; i < width; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
