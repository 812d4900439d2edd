// Package changeset implements a Changeset: the set of pages touched by
// one logical btree operation, collected until the journal collaborator
// (out of core scope) persists the mutation record and calls Flush. A
// Changeset records pages only; it does not take or release any
// per-page lock.
//
// Grounded on a lock-chaining discipline of page-lock-around-pin/unpin
// during descent, generalized from one page locked at a time into an
// explicit collected set so a whole operation's dirty pages can be
// flushed or discarded atomically from the caller's point of view.
package changeset

import (
	"sync"

	"github.com/latticedb/bltree/interfaces"
	"github.com/latticedb/bltree/storage/page"
)

// Changeset collects the pages one logical operation touches.
type Changeset struct {
	store interfaces.PageStore

	mu    sync.Mutex
	pages map[int64]*page.Page
	order []int64 // insertion order, for deterministic test iteration
}

// New attaches an empty changeset to the given store for the duration of
// one operation.
func New(store interfaces.PageStore) *Changeset {
	return &Changeset{store: store, pages: make(map[int64]*page.Page)}
}

// Put adds pg to the changeset. Re-adding the same page is idempotent
//.
func (cs *Changeset) Put(pg *page.Page) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if _, ok := cs.pages[pg.Addr]; ok {
		return
	}
	cs.pages[pg.Addr] = pg
	cs.order = append(cs.order, pg.Addr)
}

// Del drops addr from the changeset, e.g. after a page was freed within
// the same operation (merge/blob erase).
func (cs *Changeset) Del(addr int64) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.pages, addr)
}

// Pages returns the pages currently held, in insertion order.
func (cs *Changeset) Pages() []*page.Page {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	out := make([]*page.Page, 0, len(cs.order))
	for _, addr := range cs.order {
		if pg, ok := cs.pages[addr]; ok {
			out = append(out, pg)
		}
	}
	return out
}

// Flush is called once the journal has durably recorded the operation
// (lsn identifies that record). It writes every dirty page through the
// store and then clears the set — order among pages is unconstrained
//.
func (cs *Changeset) Flush(lsn uint64) error {
	cs.mu.Lock()
	pages := make([]*page.Page, 0, len(cs.pages))
	for _, addr := range cs.order {
		if pg, ok := cs.pages[addr]; ok {
			pages = append(pages, pg)
		}
	}
	cs.mu.Unlock()

	for _, pg := range pages {
		pg.Header.LSN = lsn
	}
	if err := cs.store.FlushAll(); err != nil {
		return err
	}
	cs.Clear()
	return nil
}

// Clear forgets every page without flushing — the abort path.
// In-memory edits remain until the pages are evicted clean; rolling them
// back is the journal's job, outside this core's scope.
func (cs *Changeset) Clear() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.pages = make(map[int64]*page.Page)
	cs.order = nil
}
