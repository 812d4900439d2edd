package device

import (
	"sync"

	"github.com/dsnet/golib/memfile"
)

// MemDevice is the in-memory Device variant: every page is "allocated"
// immediately, nothing is ever mmapped, and Flush/Close are no-ops
// beyond releasing the arena. It simulates the same Device interface as
// FileDevice, backed by a growable in-memory arena instead of a file.
type MemDevice struct {
	mu       sync.Mutex
	file     *memfile.File
	size     int64
	pageSize uint32
}

// NewMemDevice creates an empty in-memory device with the given page size.
func NewMemDevice(pageSize uint32) *MemDevice {
	return &MemDevice{
		file:     memfile.New(nil),
		pageSize: pageSize,
	}
}

func (d *MemDevice) FileSize() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.size
}

func (d *MemDevice) PageSize() uint32 { return d.pageSize }

func (d *MemDevice) IsMapped(int64, int64) bool { return false }

func (d *MemDevice) ReadAt(buf []byte, offset int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return readFull(d.file, buf, offset)
}

func (d *MemDevice) WriteAt(buf []byte, offset int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if end := offset + int64(len(buf)); end > d.size {
		d.growLocked(end)
	}
	return writeFull(d.file, buf, offset)
}

// Alloc grows the arena by length bytes (rounded to PageSize) and returns
// the offset of the first new page.
func (d *MemDevice) Alloc(length int64) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	start := d.size
	d.growLocked(roundUpToPage(d.size+length, d.pageSize))
	return start, nil
}

func (d *MemDevice) growLocked(newSize int64) {
	if newSize <= d.size {
		return
	}
	pad := make([]byte, newSize-d.size)
	if _, err := d.file.WriteAt(pad, d.size); err != nil {
		// memfile.File backs onto a growable []byte and should never
		// fail to extend; a failure here means an out-of-memory
		// condition at the Go runtime level, which this device cannot
		// recover from locally.
		panic(err)
	}
	d.size = newSize
}

func (d *MemDevice) Truncate(newSize int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if newSize > d.size {
		d.growLocked(newSize)
		return nil
	}
	d.file = memfile.New(append([]byte(nil), d.file.Bytes()[:newSize]...))
	d.size = newSize
	return nil
}

func (d *MemDevice) Flush() error { return nil }

func (d *MemDevice) Close() error { return nil }
