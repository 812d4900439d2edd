package node

// pivotIndex picks the split point for Count keys: the median slot,
// aligned to a 4-boundary when the KeyList is a block-codec list so the
// split falls on a Zint32 block edge.
func (n *Node) pivotIndex() int {
	p := n.Count() / 2
	if n.cfg.KeyKind == KeyKindZint32 {
		p &^= 3
		if p == 0 {
			p = 4
		}
		if p >= n.Count() {
			p = n.Count() - 1
		}
	}
	return p
}

// Split moves the upper half of n's slots into right (a freshly created,
// empty, same-kind node) and returns the separator key the caller must
// insert into the parent.
//
// For leaves, the pivot key is copied up: it moves to the right leaf as
// its first key and is also returned as the parent's separator. For
// internal nodes, the pivot key is promoted to the parent and removed
// from both siblings; the child pointer stored at the pivot's slot (the
// subtree of keys just below the pivot) becomes left's new PtrDown.
func (n *Node) Split(right *Node) ([]byte, error) {
	count := n.Count()
	pivot := n.pivotIndex()

	if n.leaf {
		return n.splitLeaf(right, pivot)
	}
	return n.splitInternal(right, pivot, count)
}

func (n *Node) splitLeaf(right *Node, pivot int) ([]byte, error) {
	count := n.Count()
	for i := pivot; i < count; i++ {
		key, err := n.keys.Key(i)
		if err != nil {
			return nil, err
		}
		key = append([]byte(nil), key...)
		j := i - pivot
		if n.cfg.HasDuplicates {
			c, err := n.dup.CountAt(i)
			if err != nil {
				return nil, err
			}
			if err := right.InsertDuplicateSlot(j, key); err != nil {
				return nil, err
			}
			for d := 0; d < c; d++ {
				rec, err := n.dup.RecordAt(i, d)
				if err != nil {
					return nil, err
				}
				if err := right.InsertDuplicateAt(j, d, rec); err != nil {
					return nil, err
				}
			}
		} else {
			rec, err := n.records.Record(i)
			if err != nil {
				return nil, err
			}
			if err := right.InsertSlot(j, key, rec); err != nil {
				return nil, err
			}
		}
	}
	for i := count - 1; i >= pivot; i-- {
		if err := n.EraseSlot(i); err != nil {
			return nil, err
		}
	}

	right.SetRightSibling(n.RightSibling())
	right.SetLeftSibling(-1) // caller fills in once it knows n's page address
	n.SetRightSibling(-1)    // caller fills in once it knows right's page address

	pivotKey, err := right.keys.Key(0)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), pivotKey...), nil
}

func (n *Node) splitInternal(right *Node, pivot, count int) ([]byte, error) {
	pivotKey, err := n.keys.Key(pivot)
	if err != nil {
		return nil, err
	}
	pivotKey = append([]byte(nil), pivotKey...)
	pivotChild := n.ChildAt(pivot)

	for i := pivot + 1; i < count; i++ {
		key, err := n.keys.Key(i)
		if err != nil {
			return nil, err
		}
		key = append([]byte(nil), key...)
		child := n.ChildAt(i)
		j := i - pivot - 1
		if err := right.InsertSlot(j, key, nil); err != nil {
			return nil, err
		}
		right.SetChildAt(j, child)
	}
	right.SetPtrDown(n.PtrDown())
	n.SetPtrDown(int64(pivotChild))

	for i := count - 1; i >= pivot; i-- {
		if err := n.EraseSlot(i); err != nil {
			return nil, err
		}
	}
	return pivotKey, nil
}

// Occupancy reports the fraction of the node's total region bytes
// currently required to hold its live keys/records, used by the merge
// threshold check.
func (n *Node) Occupancy() float64 {
	total := len(n.body) - HeaderSize
	if total == 0 {
		return 0
	}
	used := n.keys.RequiredRangeSize(n.Count()) + n.recordsRequiredRangeSize(n.Count())
	return float64(used) / float64(total)
}

// FitsMerge reports whether src's live slots would fit alongside n's
// within one region budget.
func (n *Node) FitsMerge(src *Node) bool {
	total := len(n.body) - HeaderSize
	combinedCount := n.Count() + src.Count()
	neededKey := n.keys.RequiredRangeSize(combinedCount)
	neededRec := n.recordsRequiredRangeSize(combinedCount)
	return neededKey+neededRec <= total
}

// MergeFrom appends src's entire contents onto the end of n (src is
// assumed to be n's right sibling; the caller is responsible for
// unlinking src's page and, for leaves, rewiring sibling pointers and
// removing the parent's separator).
func (n *Node) MergeFrom(src *Node) error {
	count := src.Count()
	for i := 0; i < count; i++ {
		key, err := src.keys.Key(i)
		if err != nil {
			return err
		}
		key = append([]byte(nil), key...)
		dst := n.Count()

		if !n.leaf {
			child := src.ChildAt(i)
			if err := n.InsertSlot(dst, key, nil); err != nil {
				return err
			}
			n.SetChildAt(dst, child)
			continue
		}
		if n.cfg.HasDuplicates {
			c, err := src.dup.CountAt(i)
			if err != nil {
				return err
			}
			if err := n.InsertDuplicateSlot(dst, key); err != nil {
				return err
			}
			for d := 0; d < c; d++ {
				rec, err := src.dup.RecordAt(i, d)
				if err != nil {
					return err
				}
				if err := n.InsertDuplicateAt(dst, d, rec); err != nil {
					return err
				}
			}
			continue
		}
		rec, err := src.records.Record(i)
		if err != nil {
			return err
		}
		if err := n.InsertSlot(dst, key, rec); err != nil {
			return err
		}
	}
	if !n.leaf {
		n.SetPtrDown(src.PtrDown())
	} else {
		n.SetRightSibling(src.RightSibling())
	}
	return nil
}
