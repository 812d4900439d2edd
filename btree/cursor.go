package btree

import (
	"github.com/latticedb/bltree/errkit"
	"github.com/latticedb/bltree/keylist"
	"github.com/latticedb/bltree/node"
	"github.com/latticedb/bltree/storage/page"
)

// Cursor positions a (page, slot, duplicate_index) triple over a leaf
// and walks it via sibling pointers ("Cursor traversal").
// It holds a pinned reference to its current page so the cache cannot
// evict it mid-traversal.
type Cursor struct {
	tree     *Tree
	pg       *page.Page
	n        *node.Node
	slot     int
	dupIndex int // -1 when the leaf has no duplicates
}

// Seek positions a cursor at the first slot >= key.
func (t *Tree) Seek(key []byte) (*Cursor, error) {
	addr := t.rootAddr
	for {
		pg, n, err := t.openNode(addr)
		if err != nil {
			return nil, err
		}
		slot, cmp, err := n.FindLowerBound(key)
		if err != nil {
			return nil, err
		}
		if n.IsLeaf() {
			dupIndex := -1
			if n.HasDuplicates() && cmp == keylist.Equal {
				dupIndex = 0
			}
			return &Cursor{tree: t, pg: pg, n: n, slot: slot, dupIndex: dupIndex}, nil
		}
		addr = int64(n.ChildAt(childIndexFor(slot, cmp)))
	}
}

// First positions a cursor at the very first key in the tree; used by
// full-range scans.
func (t *Tree) First() (*Cursor, error) {
	addr := t.rootAddr
	for {
		pg, n, err := t.openNode(addr)
		if err != nil {
			return nil, err
		}
		if n.IsLeaf() {
			dupIndex := -1
			if n.HasDuplicates() && n.Count() > 0 {
				dupIndex = 0
			}
			return &Cursor{tree: t, pg: pg, n: n, slot: 0, dupIndex: dupIndex}, nil
		}
		addr = int64(n.ChildAt(0))
	}
}

// Valid reports whether the cursor is positioned on a live slot.
func (c *Cursor) Valid() bool { return c.slot < c.n.Count() }

// Key returns the cursor's current key.
func (c *Cursor) Key() ([]byte, error) {
	if !c.Valid() {
		return nil, errkit.ErrCursorIsNil
	}
	return c.n.Key(c.slot)
}

// Record returns the cursor's current record (the duplicate at
// dupIndex, for a HasDuplicates leaf).
func (c *Cursor) Record() ([]byte, error) {
	if !c.Valid() {
		return nil, errkit.ErrCursorIsNil
	}
	if c.n.HasDuplicates() {
		return c.n.DuplicateRecord(c.slot, c.dupIndex)
	}
	return c.n.Record(c.slot)
}

// Next advances the cursor by one record, crossing into the right
// sibling leaf when the current one is exhausted. If onlyDuplicates is
// set, Next never leaves the current
// key's duplicate run, returning false once it is exhausted. Otherwise,
// if skipDuplicates is set, Next jumps to the first record of the next
// distinct key rather than walking the current key's remaining
// duplicates.
func (c *Cursor) Next(skipDuplicates, onlyDuplicates bool) (bool, error) {
	if !c.Valid() {
		return false, nil
	}
	if c.n.HasDuplicates() && c.dupIndex >= 0 && !skipDuplicates {
		count, err := c.n.DuplicateCount(c.slot)
		if err != nil {
			return false, err
		}
		if c.dupIndex+1 < count {
			c.dupIndex++
			return true, nil
		}
		if onlyDuplicates {
			return false, nil
		}
	}
	if onlyDuplicates {
		return false, nil
	}

	c.slot++
	if c.n.HasDuplicates() {
		c.dupIndex = 0
	}
	if c.slot < c.n.Count() {
		return true, nil
	}
	return c.crossRight()
}

// Prev is the mirror of Next, moving backward instead.
func (c *Cursor) Prev(skipDuplicates, onlyDuplicates bool) (bool, error) {
	if c.n.HasDuplicates() && c.dupIndex > 0 && !skipDuplicates {
		c.dupIndex--
		return true, nil
	}
	if onlyDuplicates {
		return false, nil
	}
	if c.slot > 0 {
		c.slot--
		if c.n.HasDuplicates() {
			count, err := c.n.DuplicateCount(c.slot)
			if err != nil {
				return false, err
			}
			c.dupIndex = count - 1
		}
		return true, nil
	}
	return c.crossLeft()
}

func (c *Cursor) crossRight() (bool, error) {
	rightAddr := c.n.RightSibling()
	if rightAddr < 0 {
		return false, nil
	}
	pg, n, err := c.tree.openNode(rightAddr)
	if err != nil {
		return false, err
	}
	c.pg, c.n, c.slot = pg, n, 0
	if n.HasDuplicates() && n.Count() > 0 {
		c.dupIndex = 0
	} else {
		c.dupIndex = -1
	}
	return n.Count() > 0, nil
}

func (c *Cursor) crossLeft() (bool, error) {
	leftAddr := c.n.LeftSibling()
	if leftAddr < 0 {
		return false, nil
	}
	pg, n, err := c.tree.openNode(leftAddr)
	if err != nil {
		return false, err
	}
	c.pg, c.n = pg, n
	c.slot = n.Count() - 1
	if n.HasDuplicates() && c.slot >= 0 {
		count, err := n.DuplicateCount(c.slot)
		if err != nil {
			return false, err
		}
		c.dupIndex = count - 1
	} else {
		c.dupIndex = -1
	}
	return c.slot >= 0, nil
}
