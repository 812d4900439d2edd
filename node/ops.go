package node

import "github.com/latticedb/bltree/keylist"

// FindLowerBound returns the slot key would occupy, and how it compares
// to the key already there.
func (n *Node) FindLowerBound(key []byte) (int, keylist.CompareResult, error) {
	return n.keys.FindLowerBound(n.cfg.Comparator, key)
}

// Find specializes FindLowerBound to an equality check.
func (n *Node) Find(key []byte) (slot int, ok bool, err error) {
	slot, cmp, err := n.FindLowerBound(key)
	if err != nil {
		return 0, false, err
	}
	return slot, cmp == keylist.Equal, nil
}

// Key returns slot i's key bytes.
func (n *Node) Key(i int) ([]byte, error) { return n.keys.Key(i) }

// ChildAt returns the child page id for slot i on an internal node, or
// PtrDown() if i == Count() (the rightmost child).
func (n *Node) ChildAt(i int) uint64 {
	if i == n.Count() {
		return uint64(n.PtrDown())
	}
	return n.records.(internalRecordAccessor).ChildAt(i)
}

// SetChildAt overwrites the child pointer at slot i (or the rightmost
// pointer, if i == Count()).
func (n *Node) SetChildAt(i int, pageID uint64) {
	if i == n.Count() {
		n.SetPtrDown(int64(pageID))
		return
	}
	n.records.(internalRecordAccessor).SetChildAt(i, pageID)
}

// Record returns slot i's record (leaf, non-duplicate only).
func (n *Node) Record(i int) ([]byte, error) { return n.records.Record(i) }

// SetRecord overwrites slot i's record (leaf, non-duplicate only).
func (n *Node) SetRecord(i int, rec []byte) error { return n.records.SetRecord(i, rec) }

// DuplicateCount returns the number of duplicate records at slot
// (HasDuplicates leaves only).
func (n *Node) DuplicateCount(slot int) (int, error) { return n.dup.CountAt(slot) }

// DuplicateRecord returns duplicate dupIndex of slot.
func (n *Node) DuplicateRecord(slot, dupIndex int) ([]byte, error) {
	return n.dup.RecordAt(slot, dupIndex)
}

// InsertSlot inserts key and its single (non-duplicate) record/child at
// slot i, growing Count by one. On an internal node the child pointer
// is not known until the split/merge caller has the new page address in
// hand, so rec may be passed nil here; the slot's 8 bytes are left
// unspecified until the caller immediately follows with SetChildAt(i,
// ...), before anyone reads slot i.
func (n *Node) InsertSlot(i int, key, rec []byte) error {
	if err := n.keys.Insert(i, key); err != nil {
		return err
	}
	if err := n.records.Insert(i, rec); err != nil {
		_ = n.keys.Erase(i)
		return err
	}
	n.setCount(n.Count() + 1)
	return nil
}

// InsertDuplicateSlot inserts key at slot i with an empty duplicate run
// (HasDuplicates leaves only); callers follow with InsertDuplicateAt.
func (n *Node) InsertDuplicateSlot(i int, key []byte) error {
	if err := n.keys.Insert(i, key); err != nil {
		return err
	}
	if err := n.dup.Insert(i); err != nil {
		_ = n.keys.Erase(i)
		return err
	}
	n.setCount(n.Count() + 1)
	return nil
}

// InsertDuplicateAt inserts rec as duplicate dupIndex of slot.
func (n *Node) InsertDuplicateAt(slot, dupIndex int, rec []byte) error {
	return n.dup.InsertAt(slot, dupIndex, rec)
}

// EraseSlot removes slot i entirely: its key and its record (or whole
// duplicate run).
func (n *Node) EraseSlot(i int) error {
	if n.cfg.HasDuplicates {
		if err := n.dup.Erase(i); err != nil {
			return err
		}
	} else if err := n.records.Erase(i); err != nil {
		return err
	}
	if err := n.keys.Erase(i); err != nil {
		return err
	}
	n.setCount(n.Count() - 1)
	return nil
}

// EraseDuplicateAt removes one duplicate (or, if all is true, the whole
// run) from slot without touching its key; the caller must follow up
// with EraseSlot whenever the run is left empty, which is always the
// case when all is true.
func (n *Node) EraseDuplicateAt(slot, dupIndex int, all bool) error {
	return n.dup.EraseAt(slot, dupIndex, all)
}

// recordsRequiresSplit reports whether the leaf/internal RecordList (or
// Duplicate index) would overflow on the next insert of the given size.
func (n *Node) recordsRequiresSplit(recSize int) bool {
	if n.cfg.HasDuplicates {
		return n.dup.RequiresSplit(recSize)
	}
	return n.records.RequiresSplit(recSize)
}

func (n *Node) recordsRequiredRangeSize(count int) int {
	if n.cfg.HasDuplicates {
		return n.dup.RequiredRangeSize(count)
	}
	return n.records.RequiredRangeSize(count)
}

// RequiresSplit implements the node-level capacity state machine: OK ->
// needs-rebalance-range -> needs-split. It only reports true once an
// attempt to shift the KeyList/RecordList boundary has failed to make
// room.
func (n *Node) RequiresSplit(keySize, recSize int) bool {
	if !n.keys.RequiresSplit(keySize) && !n.recordsRequiresSplit(recSize) {
		return false
	}
	return !n.rebalanceRange()
}

// rebalanceRange attempts change_range_size: if both regions' minimum
// required sizes (for one more slot) together still fit the body, the
// boundary is moved to give each region exactly what it needs.
func (n *Node) rebalanceRange() bool {
	total := len(n.body) - HeaderSize
	neededKey := n.keys.RequiredRangeSize(n.Count() + 1)
	neededRec := n.recordsRequiredRangeSize(n.Count() + 1)
	if neededKey+neededRec > total {
		return false
	}
	newSplit := neededKey
	if total-newSplit < neededRec {
		newSplit = total - neededRec
	}
	if newSplit == n.rangeSplit() {
		return false
	}
	return n.changeRangeSize(newSplit) == nil
}

// changeRangeSize moves the KeyList/RecordList boundary by decoding every
// live key and record/duplicate-run, rebuilding both regions from
// scratch at the new split point, and re-inserting everything in order.
// This trades per-call cost for implementation simplicity, the same
// decode-edit-encode tradeoff already used for Zint32 blocks and
// DuplicateTable ( allows it for codecs; applied uniformly
// here rather than maintaining a byte-level in-place mover per KeyList/
// RecordList variant).
func (n *Node) changeRangeSize(newSplit int) error {
	count := n.Count()
	keys := make([][]byte, count)
	for i := 0; i < count; i++ {
		k, err := n.keys.Key(i)
		if err != nil {
			return err
		}
		keys[i] = append([]byte(nil), k...)
	}

	type dupRun struct{ entries [][]byte }
	var recs [][]byte
	var runs []dupRun
	if n.cfg.HasDuplicates {
		runs = make([]dupRun, count)
		for i := 0; i < count; i++ {
			c, err := n.dup.CountAt(i)
			if err != nil {
				return err
			}
			run := make([][]byte, c)
			for j := 0; j < c; j++ {
				r, err := n.dup.RecordAt(i, j)
				if err != nil {
					return err
				}
				run[j] = append([]byte(nil), r...)
			}
			runs[i] = dupRun{entries: run}
		}
	} else {
		recs = make([][]byte, count)
		for i := 0; i < count; i++ {
			r, err := n.records.Record(i)
			if err != nil {
				return err
			}
			recs[i] = append([]byte(nil), r...)
		}
	}

	for i := range n.body[HeaderSize:] {
		n.body[HeaderSize+i] = 0
	}
	n.setRangeSplit(newSplit)
	n.setCount(0)
	if err := n.createRegions(); err != nil {
		return err
	}

	for i, k := range keys {
		if n.cfg.HasDuplicates {
			if err := n.InsertDuplicateSlot(i, k); err != nil {
				return err
			}
			for j, r := range runs[i].entries {
				if err := n.InsertDuplicateAt(i, j, r); err != nil {
					return err
				}
			}
		} else if err := n.InsertSlot(i, k, recs[i]); err != nil {
			return err
		}
	}
	return nil
}

// internalRecordAccessor is the shape node type-asserts n.records to on
// internal nodes, to reach InternalRecord's child-pointer accessors
// through the common recordlist.RecordList interface.
type internalRecordAccessor interface {
	Count() int
	Record(i int) ([]byte, error)
	SetRecord(i int, rec []byte) error
	Insert(i int, rec []byte) error
	Erase(i int) error
	RequiresSplit(int) bool
	RequiredRangeSize(int) int
	ChildAt(i int) uint64
	SetChildAt(i int, pageID uint64)
	InsertChild(i int, pageID uint64) error
}
