package buffer

import (
	"sync"

	"github.com/latticedb/bltree/device"
	"github.com/latticedb/bltree/storage/page"
)

// PageManager is the arbiter between Cache, Freelist, and a device.Device.
// It allocates page addresses, fetches pages through the cache, hands
// dirty pages to the flush pipeline, and owns the freelist.
type PageManager struct {
	dev      device.Device
	cache    *Cache
	free     *Freelist
	pageSize uint32

	mu         sync.Mutex // serializes allocation decisions ("Environment mutex... gates the allocation path")
	lastBlob   int64       // pinned "ignore_page" for the cache purger
}

// NewPageManager wires a device, cache, and freelist together.
func NewPageManager(dev device.Device, cache *Cache, free *Freelist) *PageManager {
	return &PageManager{dev: dev, cache: cache, free: free, pageSize: dev.PageSize()}
}

func (m *PageManager) PageSize() uint32 { return m.pageSize }

// AllocPage allocates a fresh page address (consulting the freelist
// first) and returns a cached, pinned Page of the given type.
func (m *PageManager) AllocPage(typ page.Type) (*page.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	addr, fromFree := m.free.Alloc(m.pageSize)
	if !fromFree {
		var err error
		addr, err = m.dev.Alloc(int64(m.pageSize))
		if err != nil {
			return nil, err
		}
	}

	pg := page.New(addr, int(m.pageSize)-page.HeaderSize, typ)
	pg.SetDirty(true)
	pg.Pin()
	m.cache.Put(pg)
	return pg, nil
}

// AllocMultiplePages allocates n contiguous page addresses in one call
// (used by the blob manager for extents spanning more than one page).
func (m *PageManager) AllocMultiplePages(n uint32, typ page.Type) ([]*page.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start, err := m.dev.Alloc(int64(n) * int64(m.pageSize))
	if err != nil {
		return nil, err
	}
	pages := make([]*page.Page, n)
	for i := uint32(0); i < n; i++ {
		addr := start + int64(i)*int64(m.pageSize)
		pg := page.New(addr, int(m.pageSize)-page.HeaderSize, typ)
		pg.SetDirty(true)
		pg.Pin()
		m.cache.Put(pg)
		pages[i] = pg
	}
	return pages, nil
}

// FetchPage returns the page at addr, pinned, reading it from the device
// on a cache miss.
func (m *PageManager) FetchPage(addr int64) (*page.Page, error) {
	if pg, ok := m.cache.Get(addr); ok {
		pg.Pin()
		return pg, nil
	}

	buf := make([]byte, m.pageSize)
	if err := m.dev.ReadAt(buf, addr); err != nil {
		return nil, err
	}
	pg := &page.Page{Addr: addr}
	decodeHeader(&pg.Header, buf[:page.HeaderSize])
	pg.Data = make([]byte, m.pageSize-uint32(page.HeaderSize))
	copy(pg.Data, buf[page.HeaderSize:])
	pg.Pin()
	m.cache.Put(pg)
	return pg, nil
}

// FreePage removes addr from the cache and returns it to the freelist.
func (m *PageManager) FreePage(addr int64) {
	m.cache.Del(addr)
	m.free.Free(addr, m.pageSize)
}

// FreeMultiplePages removes n contiguous pages starting at first from the
// cache and returns the whole extent to the freelist as one run.
func (m *PageManager) FreeMultiplePages(first int64, n uint32) {
	for i := uint32(0); i < n; i++ {
		m.cache.Del(first + int64(i)*int64(m.pageSize))
	}
	m.free.FreeRange(first, n, m.pageSize)
}

// PurgeCache gathers eviction candidates, writes dirty ones to the
// device, and releases the rest. It runs only when called: AllocPage and
// FetchPage do not check cache.IsCacheFull() or call it, so the cache can
// grow past its capacity until PurgeCache is called.
func (m *PageManager) PurgeCache(pinnedBlobAddr int64) error {
	var dirty, clean []*page.Page
	m.cache.PurgeCandidates(pinnedBlobAddr, &dirty, &clean)
	for _, pg := range dirty {
		if err := m.writeThrough(pg); err != nil {
			return err
		}
	}
	return nil
}

// FlushAll writes every dirty cached page to the device, clearing their
// dirty bits, without evicting them (used by Changeset.Flush and by
// Environment.Flush/Close).
func (m *PageManager) FlushAll() error {
	for _, pg := range m.cache.All() {
		if pg.Dirty() {
			if err := m.writeThrough(pg); err != nil {
				return err
			}
			pg.SetDirty(false)
		}
	}
	return m.dev.Flush()
}

func (m *PageManager) writeThrough(pg *page.Page) error {
	buf := make([]byte, m.pageSize)
	encodeHeader(&pg.Header, buf[:page.HeaderSize])
	copy(buf[page.HeaderSize:], pg.Data)
	if err := m.dev.WriteAt(buf, pg.Addr); err != nil {
		return err
	}
	pg.SetDirty(false)
	return nil
}

// Close flushes every dirty page, then closes the device. It does not
// write the freelist chain (the Environment does that in
// persistFreelistChain before flushing).
func (m *PageManager) Close() error {
	if err := m.FlushAll(); err != nil {
		return err
	}
	return m.dev.Close()
}

// Freelist exposes the underlying Freelist for persistence by the
// Environment (file-header freelist-root bookkeeping).
func (m *PageManager) Freelist() *Freelist { return m.free }

// Cache exposes the underlying Cache, e.g. for Environment.Stats().
func (m *PageManager) Cache() *Cache { return m.cache }

func encodeHeader(h *page.Header, buf []byte) {
	putU64(buf[0:8], h.LSN)
	putU16(buf[8:10], h.Flags)
	putU16(buf[10:12], uint16(h.Type))
	putU32(buf[12:16], h.Crc32)
}

func decodeHeader(h *page.Header, buf []byte) {
	h.LSN = getU64(buf[0:8])
	h.Flags = getU16(buf[8:10])
	h.Type = page.Type(getU16(buf[10:12]))
	h.Crc32 = getU32(buf[12:16])
}

func putU64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
func getU64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
func putU32(b []byte, v uint32) {
	for i := 0; i < 4; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
func getU32(b []byte) uint32 {
	var v uint32
	for i := 0; i < 4; i++ {
		v |= uint32(b[i]) << (8 * i)
	}
	return v
}
func putU16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}
func getU16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}
