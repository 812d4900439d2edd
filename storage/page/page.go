// Package page defines the in-memory Page buffer the cache and page
// manager pass around, owned natively rather than adapting an externally
// supplied page type, and carrying everything a btree node, blob extent,
// or free-list extent needs directly (address, type tag, dirty flag,
// pin/reference count, and the raw data buffer).
package page

import "sync/atomic"

// Type tags the kind of content a Page holds.
type Type uint16

const (
	TypeInvalid Type = iota
	TypeFileHeader
	TypeBtreeRoot
	TypeBtreeNode
	TypeBlob
	TypePageManagerState
	TypeFreelist
)

// Header is the fixed-size per-page header persisted at the front of
// every page body ("Every page has the layout").
type Header struct {
	LSN   uint64
	Flags uint16
	Type  Type
	Crc32 uint32
}

const HeaderSize = 8 + 2 + 2 + 4 // LSN + Flags + Type + Crc32

// Page is one fixed-size buffer belonging to an Environment.
//
// Lifecycle: created when the PageManager needs a fresh
// address, mutated in place by whoever fetched it (its latch in
// storage/buffer is taken only by the cache purger's try-lock),
// released to the freelist on merge/blob-free, flushed to Device on
// eviction if dirty.
type Page struct {
	Addr   int64 // byte offset into the file; always page-size aligned
	Header Header
	Data   []byte // page_size - HeaderSize bytes; the node/blob/freelist body

	dirty    int32 // atomic bool
	pinCount int32 // active cursors/operations referencing this page
	inLRU    bool  // cache-list membership, mutated under the cache lock
}

// New allocates a zeroed Page of the given body size.
func New(addr int64, bodySize int, typ Type) *Page {
	return &Page{
		Addr:   addr,
		Header: Header{Type: typ},
		Data:   make([]byte, bodySize),
	}
}

func (p *Page) Dirty() bool        { return atomic.LoadInt32(&p.dirty) != 0 }
func (p *Page) SetDirty(v bool) {
	if v {
		atomic.StoreInt32(&p.dirty, 1)
	} else {
		atomic.StoreInt32(&p.dirty, 0)
	}
}

func (p *Page) PinCount() int32 { return atomic.LoadInt32(&p.pinCount) }
func (p *Page) Pin() int32      { return atomic.AddInt32(&p.pinCount, 1) }
func (p *Page) Unpin() int32 {
	return atomic.AddInt32(&p.pinCount, -1)
}

// Type reports the page's type tag.
func (p *Page) Type() Type { return p.Header.Type }

// IsRoot reports whether this page must never be evicted by the cache
// purger (: "Pages ... of type btree-root are never evicted").
func (p *Page) IsRoot() bool { return p.Header.Type == TypeBtreeRoot }
