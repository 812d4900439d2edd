package bltree

import (
	"github.com/latticedb/bltree/storage/buffer"
	"github.com/latticedb/bltree/storage/page"
)

// Persisted freelist/page-manager chain format: a linked
// list of TypeFreelist pages starting at the address stored in the file
// header, each carrying { next_page: u64, entry_count: u32,
// entries: { page_id: u64, count: u32 }[] }, tail-sealed with
// next_page = 0. Unlike the btree node sibling pointers (where 0 is a
// legitimate page address and -1 marks "none"), 0 is safe to use as the
// chain terminator here: page address 0 is permanently the file header
// and can never itself be a freelist-chain page.
const (
	chainEntrySize   = 8 + 4 // page_id + count
	chainHeaderSize  = 8 + 4 // next_page + entry_count
)

func entriesPerChainPage(pageSize uint32) int {
	avail := int(pageSize) - page.HeaderSize - chainHeaderSize
	if avail < chainEntrySize {
		return 0
	}
	return avail / chainEntrySize
}

// walkFreelistChainAddrs returns the page addresses currently making up
// the committed chain, in order, without decoding their entries.
func walkFreelistChainAddrs(pm *buffer.PageManager, root int64) ([]int64, error) {
	var addrs []int64
	addr := root
	for addr != 0 && addr >= 0 {
		addrs = append(addrs, addr)
		pg, err := pm.FetchPage(addr)
		if err != nil {
			return nil, err
		}
		addr = int64(getU64chain(pg.Data[0:8]))
	}
	return addrs, nil
}

// loadFreelistChain decodes every entry across the chain starting at
// root into a single map, as buffer.Freelist.Load expects.
func loadFreelistChain(pm *buffer.PageManager, root int64) (map[int64]uint32, error) {
	out := make(map[int64]uint32)
	addr := root
	for addr != 0 && addr >= 0 {
		pg, err := pm.FetchPage(addr)
		if err != nil {
			return nil, err
		}
		next := int64(getU64chain(pg.Data[0:8]))
		count := getU32(pg.Data[8:12])
		off := chainHeaderSize
		for i := uint32(0); i < count; i++ {
			pageID := getU64chain(pg.Data[off : off+8])
			n := getU32(pg.Data[off+8 : off+12])
			out[int64(pageID)] = n
			off += chainEntrySize
		}
		addr = next
	}
	return out, nil
}

// persistFreelistChain writes free's current entries across a chain of
// TypeFreelist pages, reusing the previously committed chain's pages
// where possible (freeing any now-unneeded tail, allocating any newly
// needed pages), and returns the (possibly changed) chain root — -1 if
// the freelist is currently empty.
func persistFreelistChain(pm *buffer.PageManager, free *buffer.Freelist, existingRoot int64) (int64, error) {
	entries := free.Entries()
	pageSize := pm.PageSize()
	perPage := entriesPerChainPage(pageSize)

	var existingAddrs []int64
	if existingRoot >= 0 {
		var err error
		existingAddrs, err = walkFreelistChainAddrs(pm, existingRoot)
		if err != nil {
			return -1, err
		}
	}

	type entry struct {
		id    int64
		count uint32
	}
	flat := make([]entry, 0, len(entries))
	for id, n := range entries {
		flat = append(flat, entry{id: id, count: n})
	}

	needed := 0
	if perPage > 0 {
		needed = (len(flat) + perPage - 1) / perPage
	}
	if len(flat) == 0 {
		needed = 0
	}

	addrs := make([]int64, needed)
	for i := 0; i < needed; i++ {
		if i < len(existingAddrs) {
			addrs[i] = existingAddrs[i]
		} else {
			pg, err := pm.AllocPage(page.TypeFreelist)
			if err != nil {
				return -1, err
			}
			addrs[i] = pg.Addr
		}
	}
	for i := needed; i < len(existingAddrs); i++ {
		pm.FreePage(existingAddrs[i])
	}

	for i, addr := range addrs {
		pg, err := pm.FetchPage(addr)
		if err != nil {
			return -1, err
		}
		lo, hi := i*perPage, (i+1)*perPage
		if hi > len(flat) {
			hi = len(flat)
		}
		chunk := flat[lo:hi]

		var next int64
		if i+1 < len(addrs) {
			next = addrs[i+1]
		}
		putU64chain(pg.Data[0:8], uint64(next))
		putU32(pg.Data[8:12], uint32(len(chunk)))
		off := chainHeaderSize
		for _, e := range chunk {
			putU64chain(pg.Data[off:off+8], uint64(e.id))
			putU32(pg.Data[off+8:off+12], e.count)
			off += chainEntrySize
		}
		pg.SetDirty(true)
	}

	if needed == 0 {
		return -1, nil
	}
	return addrs[0], nil
}

func putU64chain(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
func getU64chain(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
