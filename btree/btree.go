// Package btree implements the Btree driver: latch-coupled, top-down
// pre-splitting descent over node.Node pages, wrapped per-operation in a
// changeset.Changeset.
//
// The overall shape — descend splitting any full node you pass through,
// then mutate the leaf, with sibling-linked leaves for cheap
// range scans — follows a B-link tree algorithm generalized onto
// node.Node's pluggable KeyList/RecordList pair instead of one hardwired
// page format.
package btree

import (
	"github.com/latticedb/bltree/changeset"
	"github.com/latticedb/bltree/errkit"
	"github.com/latticedb/bltree/interfaces"
	"github.com/latticedb/bltree/keylist"
	"github.com/latticedb/bltree/node"
	"github.com/latticedb/bltree/storage/page"
)

// InsertFlag selects insert/duplicate behavior ("Insert").
type InsertFlag int

const (
	InsertOverwrite InsertFlag = iota
	InsertDuplicateFirst
	InsertDuplicateLast
)

// mergeOccupancyThreshold is the occupancy fraction below which Erase
// attempts to coalesce a node with a sibling.
const mergeOccupancyThreshold = 0.40

// Tree is one open btree: a PageStore, the node.Config describing its
// KeyList/RecordList shape, and its current root page address.
type Tree struct {
	store   interfaces.PageStore
	cfg     node.Config
	rootAddr int64
}

// Create allocates a fresh root (a leaf, since an empty tree has no
// internal levels) and returns the new Tree.
func Create(store interfaces.PageStore, cfg node.Config) (*Tree, error) {
	pg, err := store.AllocPage(page.TypeBtreeRoot)
	if err != nil {
		return nil, err
	}
	if _, err := node.NewLeaf(pg.Data, cfg); err != nil {
		return nil, err
	}
	pg.SetDirty(true)
	return &Tree{store: store, cfg: cfg, rootAddr: pg.Addr}, nil
}

// Open wraps an existing tree rooted at rootAddr.
func Open(store interfaces.PageStore, cfg node.Config, rootAddr int64) *Tree {
	return &Tree{store: store, cfg: cfg, rootAddr: rootAddr}
}

// RootAddr returns the tree's current root page address (it can change
// across an Insert that splits the root).
func (t *Tree) RootAddr() int64 { return t.rootAddr }

func (t *Tree) openNode(addr int64) (*page.Page, *node.Node, error) {
	pg, err := t.store.FetchPage(addr)
	if err != nil {
		return nil, nil, err
	}
	n, err := node.Open(pg.Data, t.cfg)
	if err != nil {
		return nil, nil, err
	}
	return pg, n, nil
}

// childIndexFor returns the child index FindLowerBound's result
// selects: slot itself when key sorts strictly before it, slot+1 when
// key equals the separator.
func childIndexFor(slot int, cmp keylist.CompareResult) int {
	if cmp == keylist.Equal {
		return slot + 1
	}
	return slot
}

// Find descends from the root and returns the record stored for key, if
// any ("Find").
func (t *Tree) Find(key []byte) ([]byte, bool, error) {
	addr := t.rootAddr
	for {
		_, n, err := t.openNode(addr)
		if err != nil {
			return nil, false, err
		}
		slot, cmp, err := n.FindLowerBound(key)
		if err != nil {
			return nil, false, err
		}
		if n.IsLeaf() {
			if cmp != keylist.Equal {
				return nil, false, nil
			}
			rec, err := n.Record(slot)
			if err != nil {
				return nil, false, err
			}
			return rec, true, nil
		}
		addr = int64(n.ChildAt(childIndexFor(slot, cmp)))
	}
}

// frame records one step of the descent path, used by Insert's top-down
// pre-split and Erase's bottom-up merge.
type frame struct {
	pg   *page.Page
	n    *node.Node
	slot int // slot used to descend from this frame into the next
}

// Insert places key/value into the tree ("Insert"),
// splitting every node guaranteed to overflow on the way down so the
// parent always has room when a child split's separator propagates up.
func (t *Tree) Insert(key, value []byte, flag InsertFlag) error {
	cs := changeset.New(t.store)

	rootPg, rootNode, err := t.openNode(t.rootAddr)
	if err != nil {
		return err
	}
	cs.Put(rootPg)
	if rootNode.RequiresSplit(len(key), recSizeHint(value)) {
		if err := t.splitRoot(cs, rootPg, rootNode); err != nil {
			return err
		}
		rootPg, rootNode, err = t.openNode(t.rootAddr)
		if err != nil {
			return err
		}
	}

	var path []frame
	pg, n := rootPg, rootNode
	for {
		slot, cmp, err := n.FindLowerBound(key)
		if err != nil {
			return err
		}
		if n.IsLeaf() {
			return t.insertLeaf(cs, pg, n, slot, cmp, key, value, flag)
		}

		childAddr := int64(n.ChildAt(childIndexFor(slot, cmp)))
		childPg, childNode, err := t.openNode(childAddr)
		if err != nil {
			return err
		}
		cs.Put(childPg)

		if childNode.RequiresSplit(len(key), recSizeHint(value)) {
			right, err := t.allocSibling(childNode.IsLeaf())
			if err != nil {
				return err
			}
			cs.Put(right.pg)
			pivot, err := childNode.Split(right.n)
			if err != nil {
				return err
			}
			if childNode.IsLeaf() {
				right.n.SetLeftSibling(childPg.Addr)
				childNode.SetRightSibling(right.pg.Addr)
			}
			insertIdx := childIndexFor(slot, cmp)
			if err := n.InsertSlot(insertIdx, pivot, nil); err != nil {
				return err
			}
			if !n.IsLeaf() {
				n.SetChildAt(insertIdx, uint64(childPg.Addr))
				n.SetChildAt(insertIdx+1, uint64(right.pg.Addr))
			}
			pg.SetDirty(true)
			childPg.SetDirty(true)
			right.pg.SetDirty(true)

			// the just-inserted separator changes which half holds key;
			// re-run FindLowerBound at this level to pick the correct child.
			slot, cmp, err = n.FindLowerBound(key)
			if err != nil {
				return err
			}
			childAddr = int64(n.ChildAt(childIndexFor(slot, cmp)))
			childPg, childNode, err = t.openNode(childAddr)
			if err != nil {
				return err
			}
		}

		path = append(path, frame{pg: pg, n: n, slot: slot})
		pg, n = childPg, childNode
	}
}

// recSizeHint approximates the RecordList cell size an insert will need.
// It returns 9 for every value (one DefaultRecord slot, since even a blob
// spill costs one fixed slot), which over-estimates fixed-width variants
// narrower than 9 bytes; Duplicate runs are handled by the caller's own
// threshold logic instead.
func recSizeHint(value []byte) int {
	if len(value) <= 8 {
		return 9
	}
	return 9
}

func (t *Tree) insertLeaf(cs *changeset.Changeset, pg *page.Page, n *node.Node, slot int, cmp keylist.CompareResult, key, value []byte, flag InsertFlag) error {
	if cmp == keylist.Equal {
		if flag == InsertOverwrite {
			if n.HasDuplicates() {
				return errkit.NewError(errkit.KindDuplicateKey, "btree: key has duplicates, overwrite is ambiguous")
			}
			if err := n.SetRecord(slot, value); err != nil {
				return err
			}
			pg.SetDirty(true)
			return cs.Flush(0)
		}
		if !n.HasDuplicates() {
			return errkit.NewError(errkit.KindDuplicateKey, "btree: key already exists")
		}
		count, err := n.DuplicateCount(slot)
		if err != nil {
			return err
		}
		dupIdx := count
		if flag == InsertDuplicateFirst {
			dupIdx = 0
		}
		if err := n.InsertDuplicateAt(slot, dupIdx, value); err != nil {
			return err
		}
		pg.SetDirty(true)
		return cs.Flush(0)
	}

	if n.HasDuplicates() {
		if err := n.InsertDuplicateSlot(slot, key); err != nil {
			return err
		}
		if err := n.InsertDuplicateAt(slot, 0, value); err != nil {
			return err
		}
	} else if err := n.InsertSlot(slot, key, value); err != nil {
		return err
	}
	pg.SetDirty(true)
	return cs.Flush(0)
}

type sibling struct {
	pg *page.Page
	n  *node.Node
}

func (t *Tree) allocSibling(leaf bool) (sibling, error) {
	typ := page.TypeBtreeNode
	pg, err := t.store.AllocPage(typ)
	if err != nil {
		return sibling{}, err
	}
	var n *node.Node
	if leaf {
		n, err = node.NewLeaf(pg.Data, t.cfg)
	} else {
		n, err = node.NewInternal(pg.Data, t.cfg)
	}
	if err != nil {
		return sibling{}, err
	}
	return sibling{pg: pg, n: n}, nil
}

// splitRoot handles the one case where the node being split has no
// parent: the old root's contents move to a fresh child page, the root
// page is re-initialized as a new internal node pointing at the old
// root's split halves, raising the tree's height by one.
func (t *Tree) splitRoot(cs *changeset.Changeset, rootPg *page.Page, rootNode *node.Node) error {
	wasLeaf := rootNode.IsLeaf()

	leftPg, err := t.store.AllocPage(page.TypeBtreeNode)
	if err != nil {
		return err
	}
	cs.Put(leftPg)
	copy(leftPg.Data, rootPg.Data)
	leftNode, err := node.Open(leftPg.Data, t.cfg)
	if err != nil {
		return err
	}

	right, err := t.allocSibling(wasLeaf)
	if err != nil {
		return err
	}
	cs.Put(right.pg)

	pivot, err := leftNode.Split(right.n)
	if err != nil {
		return err
	}
	if wasLeaf {
		right.n.SetLeftSibling(leftPg.Addr)
		leftNode.SetRightSibling(right.pg.Addr)
	}
	leftPg.SetDirty(true)
	right.pg.SetDirty(true)

	newRoot, err := node.NewInternal(rootPg.Data, t.cfg)
	if err != nil {
		return err
	}
	if err := newRoot.InsertSlot(0, pivot, nil); err != nil {
		return err
	}
	newRoot.SetChildAt(0, uint64(leftPg.Addr))
	newRoot.SetChildAt(1, uint64(right.pg.Addr))
	rootPg.SetDirty(true)
	return nil
}

// Erase removes key (and, for a duplicate run, every duplicate unless
// dupIndex >= 0 names one specifically) from the tree, merging underfull
// siblings on the way back up.
func (t *Tree) Erase(key []byte, dupIndex int) error {
	cs := changeset.New(t.store)

	var path []frame
	addr := t.rootAddr
	for {
		pg, n, err := t.openNode(addr)
		if err != nil {
			return err
		}
		cs.Put(pg)
		slot, cmp, err := n.FindLowerBound(key)
		if err != nil {
			return err
		}
		if n.IsLeaf() {
			if cmp != keylist.Equal {
				return errkit.ErrKeyNotFound
			}
			if n.HasDuplicates() && dupIndex >= 0 {
				if err := n.EraseDuplicateAt(slot, dupIndex, false); err != nil {
					return err
				}
				count, err := n.DuplicateCount(slot)
				if err != nil {
					return err
				}
				if count > 0 {
					pg.SetDirty(true)
					return cs.Flush(0)
				}
			}
			if err := n.EraseSlot(slot); err != nil {
				return err
			}
			pg.SetDirty(true)
			path = append(path, frame{pg: pg, n: n, slot: slot})
			return t.rebalanceUpward(cs, path)
		}
		path = append(path, frame{pg: pg, n: n, slot: childIndexFor(slot, cmp)})
		addr = int64(n.ChildAt(childIndexFor(slot, cmp)))
	}
}

// rebalanceUpward walks the descent path from the leaf back to the
// root, merging wherever occupancy has fallen below threshold and the
// union fits: the right sibling is merged into the node if it fits,
// otherwise the node is merged into its left sibling. Merging a node can drop its
// parent's occupancy below threshold too, so the walk recurses upward
// until a node fits or the root is reached.
func (t *Tree) rebalanceUpward(cs *changeset.Changeset, path []frame) error {
	for i := len(path) - 1; i >= 0; i-- {
		f := path[i]
		if f.n.Occupancy() >= mergeOccupancyThreshold {
			break
		}
		if i == 0 {
			// root underflow never merges away (no parent to remove a
			// separator from); it simply stays sparse.
			break
		}
		parent := path[i-1]

		if parent.slot < parent.n.Count() {
			k := parent.slot
			rightAddr := int64(parent.n.ChildAt(k + 1))
			rightPg, rightNode, err := t.openNode(rightAddr)
			if err != nil {
				return err
			}
			if f.n.FitsMerge(rightNode) {
				cs.Put(rightPg)
				if err := f.n.MergeFrom(rightNode); err != nil {
					return err
				}
				f.pg.SetDirty(true)
				if err := parent.n.EraseSlot(k); err != nil {
					return err
				}
				parent.n.SetChildAt(k, uint64(f.pg.Addr))
				t.store.FreePage(rightPg.Addr)
				cs.Del(rightPg.Addr)
				parent.pg.SetDirty(true)
				continue
			}
		}
		if parent.slot > 0 {
			k := parent.slot - 1
			leftAddr := int64(parent.n.ChildAt(k))
			leftPg, leftNode, err := t.openNode(leftAddr)
			if err != nil {
				return err
			}
			if leftNode.FitsMerge(f.n) {
				cs.Put(leftPg)
				if err := leftNode.MergeFrom(f.n); err != nil {
					return err
				}
				leftPg.SetDirty(true)
				if err := parent.n.EraseSlot(k); err != nil {
					return err
				}
				parent.n.SetChildAt(k, uint64(leftPg.Addr))
				t.store.FreePage(f.pg.Addr)
				cs.Del(f.pg.Addr)
				parent.pg.SetDirty(true)
				continue
			}
		}
		break // neither sibling fits; leave underfull as-is
	}
	return cs.Flush(0)
}
