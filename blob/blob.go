// Package blob implements the blob manager: a variable-length byte run
// spanning one or more contiguous blob pages, identified by a 64-bit id.
//
// Grounded on an overflow-manager pattern for spilling oversized values
// onto dedicated pages, adapted onto this repo's own
// storage/buffer.PageManager. Simplified: each blob owns a dedicated,
// contiguous run of pages starting at a page-aligned address with
// intra-page offset always 0 (no packing of multiple small blobs into
// one page), so a blob id is simply the first page's address.
package blob

import (
	"github.com/latticedb/bltree/codec"
	"github.com/latticedb/bltree/errkit"
	"github.com/latticedb/bltree/interfaces"
	"github.com/latticedb/bltree/storage/page"
)

const (
	flagCompressed byte = 1 << 0
)

// headerSize: size(u32) + storedSize(u32) + allocatedSize(u32) + flags(u8).
const headerSize = 13

// Region is one byte range of a blob's logical payload, as taken by
// OverwriteRegions.
type Region struct {
	Offset int
	Data   []byte
}

// Manager allocates, reads, and erases blobs through a PageStore. One
// Manager is constructed per compression choice: the Environment gives a
// database's extended keys its uncompressed Manager and the database's
// records a Manager using its RecordCompressor, both sharing the same
// PageStore.
type Manager struct {
	store      interfaces.PageStore
	compressor codec.Compressor
}

// New creates a blob Manager. compressor may be codec.None{}.
func New(store interfaces.PageStore, compressor codec.Compressor) *Manager {
	if compressor == nil {
		compressor = codec.None{}
	}
	return &Manager{store: store, compressor: compressor}
}

func (m *Manager) firstPageCapacity() int {
	return int(m.store.PageSize()) - page.HeaderSize - headerSize
}

func (m *Manager) fullPageCapacity() int {
	return int(m.store.PageSize()) - page.HeaderSize
}

func (m *Manager) pagesNeeded(storedSize int) int {
	firstCap := m.firstPageCapacity()
	if storedSize <= firstCap {
		return 1
	}
	remaining := storedSize - firstCap
	fullCap := m.fullPageCapacity()
	return 1 + (remaining+fullCap-1)/fullCap
}

// Allocate packs data into a header plus contiguous payload, spanning as
// many blob pages as required, and returns its 64-bit id.
func (m *Manager) Allocate(data []byte) (uint64, error) {
	compressed := false
	stored := data
	if _, isNone := m.compressor.(codec.None); !isNone {
		c := m.compressor.Compress(nil, data)
		if len(c) < len(data) {
			stored = c
			compressed = true
		}
	}

	n := m.pagesNeeded(len(stored))
	pages, err := m.store.AllocMultiplePages(uint32(n), page.TypeBlob)
	if err != nil {
		return 0, err
	}

	flags := byte(0)
	if compressed {
		flags = flagCompressed
	}
	allocated := m.firstPageCapacity() + (n-1)*m.fullPageCapacity()
	putHeader(pages[0].Data, uint32(len(data)), uint32(len(stored)), uint32(allocated), flags)

	m.writePayload(pages, stored)
	for _, pg := range pages {
		pg.SetDirty(true)
	}
	return uint64(pages[0].Addr), nil
}

func (m *Manager) writePayload(pages []*page.Page, stored []byte) {
	firstCap := m.firstPageCapacity()
	pos := 0
	if len(stored) > 0 {
		n := min(firstCap, len(stored))
		copy(pages[0].Data[headerSize:headerSize+n], stored[:n])
		pos = n
	}
	fullCap := m.fullPageCapacity()
	for i := 1; pos < len(stored); i++ {
		n := min(fullCap, len(stored)-pos)
		copy(pages[i].Data[:n], stored[pos:pos+n])
		pos += n
	}
}

func (m *Manager) readPayload(firstPage *page.Page, id uint64, storedSize int) ([]byte, error) {
	out := make([]byte, storedSize)
	firstCap := m.firstPageCapacity()
	n := min(firstCap, storedSize)
	copy(out[:n], firstPage.Data[headerSize:headerSize+n])
	pos := n

	pageAddr := int64(id)
	pageSize := int64(m.store.PageSize())
	fullCap := m.fullPageCapacity()
	for i := int64(1); pos < storedSize; i++ {
		pg, err := m.store.FetchPage(pageAddr + i*pageSize)
		if err != nil {
			return nil, err
		}
		n := min(fullCap, storedSize-pos)
		copy(out[pos:pos+n], pg.Data[:n])
		pos += n
	}
	return out, nil
}

// Read returns blob_id's logical (decompressed) payload.
func (m *Manager) Read(id uint64) ([]byte, error) {
	firstPage, err := m.store.FetchPage(int64(id))
	if err != nil {
		return nil, err
	}
	size, storedSize, _, flags, err := getHeader(firstPage.Data)
	if err != nil {
		return nil, err
	}
	stored, err := m.readPayload(firstPage, id, int(storedSize))
	if err != nil {
		return nil, err
	}
	if flags&flagCompressed != 0 {
		return m.compressor.Decompress(make([]byte, 0, size), stored)
	}
	return stored, nil
}

// Overwrite replaces blob_id's contents with data, writing in place if
// it still fits the original allocation, otherwise allocating a new
// blob and freeing the old one.
func (m *Manager) Overwrite(id uint64, data []byte) (uint64, error) {
	firstPage, err := m.store.FetchPage(int64(id))
	if err != nil {
		return 0, err
	}
	_, _, allocatedSize, _, err := getHeader(firstPage.Data)
	if err != nil {
		return 0, err
	}

	compressed := false
	stored := data
	if _, isNone := m.compressor.(codec.None); !isNone {
		c := m.compressor.Compress(nil, data)
		if len(c) < len(data) {
			stored = c
			compressed = true
		}
	}

	if len(stored) > int(allocatedSize) {
		if err := m.Erase(id); err != nil {
			return 0, err
		}
		return m.Allocate(data)
	}

	flags := byte(0)
	if compressed {
		flags = flagCompressed
	}
	putHeader(firstPage.Data, uint32(len(data)), uint32(len(stored)), allocatedSize, flags)
	firstPage.SetDirty(true)

	n := m.pagesNeeded(int(allocatedSize))
	pages := make([]*page.Page, n)
	pages[0] = firstPage
	for i := 1; i < n; i++ {
		pg, err := m.store.FetchPage(int64(id) + int64(i)*int64(m.store.PageSize()))
		if err != nil {
			return 0, err
		}
		pages[i] = pg
	}
	m.writePayload(pages, stored)
	for _, pg := range pages[1:] {
		pg.SetDirty(true)
	}
	return id, nil
}

// OverwriteRegions writes only the selected byte ranges of blob_id's
// logical payload, leaving the rest untouched (; used by
// DuplicateTable-style in-place updates). Only valid for an
// uncompressed blob, since byte offsets are meaningless after
// compression.
func (m *Manager) OverwriteRegions(id uint64, regions []Region) error {
	firstPage, err := m.store.FetchPage(int64(id))
	if err != nil {
		return err
	}
	_, storedSize, _, flags, err := getHeader(firstPage.Data)
	if err != nil {
		return err
	}
	if flags&flagCompressed != 0 {
		return errkit.NewError(errkit.KindInvParameter, "blob: cannot overwrite regions of a compressed blob")
	}

	firstCap := m.firstPageCapacity()
	fullCap := m.fullPageCapacity()
	pageSize := int64(m.store.PageSize())
	touched := map[int64]*page.Page{firstPage.Addr: firstPage}

	for _, r := range regions {
		if r.Offset+len(r.Data) > int(storedSize) {
			return errkit.NewError(errkit.KindInvParameter, "blob: region exceeds stored size")
		}
		remaining := r.Data
		pos := r.Offset
		for len(remaining) > 0 {
			var pg *page.Page
			var base, cap int
			if pos < firstCap {
				pg, base, cap = firstPage, headerSize, firstCap
			} else {
				idx := 1 + (pos-firstCap)/fullCap
				pg = touched[firstPage.Addr+int64(idx)*pageSize]
				if pg == nil {
					pg, err = m.store.FetchPage(firstPage.Addr + int64(idx)*pageSize)
					if err != nil {
						return err
					}
					touched[pg.Addr] = pg
				}
				base, cap = 0, fullCap
			}
			offsetWithinPage := pos
			if pos >= firstCap {
				offsetWithinPage = (pos - firstCap) % fullCap
			}
			n := min(cap-offsetWithinPage, len(remaining))
			copy(pg.Data[base+offsetWithinPage:base+offsetWithinPage+n], remaining[:n])
			pg.SetDirty(true)
			remaining = remaining[n:]
			pos += n
		}
	}
	return nil
}

// Erase returns blob_id's pages to the freelist.
func (m *Manager) Erase(id uint64) error {
	firstPage, err := m.store.FetchPage(int64(id))
	if err != nil {
		return err
	}
	_, _, allocatedSize, _, err := getHeader(firstPage.Data)
	if err != nil {
		return err
	}
	n := m.pagesNeeded(int(allocatedSize))
	m.store.FreeMultiplePages(int64(id), uint32(n))
	return nil
}

// BlobSize reads blob_id's header and returns its logical size.
func (m *Manager) BlobSize(id uint64) (int, error) {
	firstPage, err := m.store.FetchPage(int64(id))
	if err != nil {
		return 0, err
	}
	size, _, _, _, err := getHeader(firstPage.Data)
	if err != nil {
		return 0, err
	}
	return int(size), nil
}

func putHeader(buf []byte, size, storedSize, allocatedSize uint32, flags byte) {
	putU32(buf[0:4], size)
	putU32(buf[4:8], storedSize)
	putU32(buf[8:12], allocatedSize)
	buf[12] = flags
}

func getHeader(buf []byte) (size, storedSize, allocatedSize uint32, flags byte, err error) {
	if len(buf) < headerSize {
		return 0, 0, 0, 0, errkit.NewError(errkit.KindIntegrityViolated, "blob: page too small for header")
	}
	return getU32(buf[0:4]), getU32(buf[4:8]), getU32(buf[8:12]), buf[12], nil
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

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
