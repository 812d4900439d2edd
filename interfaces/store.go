// Package interfaces defines the thin contract between the btree/node
// layer and whatever owns page storage underneath it, fronting this
// repo's own storage/buffer.PageManager. PageManager holds only page
// ids, never live Page references, so per-operation handles stay scoped
// to the call that fetched them. Node and btree code depends on
// PageStore, not on *buffer.PageManager directly, so a test can
// substitute an in-memory double without pulling in a device.
package interfaces

import "github.com/latticedb/bltree/storage/page"

// PageStore is implemented by storage/buffer.PageManager.
type PageStore interface {
	AllocPage(typ page.Type) (*page.Page, error)
	AllocMultiplePages(n uint32, typ page.Type) ([]*page.Page, error)
	FetchPage(addr int64) (*page.Page, error)
	FreePage(addr int64)
	FreeMultiplePages(first int64, n uint32)
	PurgeCache(pinnedBlobAddr int64) error
	FlushAll() error
	PageSize() uint32
}
