package buffer

import "sync"

// Freelist tracks released page addresses as contiguous-free-page run
// counts, in memory, with hit/miss counters. Persistence to a dedicated
// page chain is handled by the root package's persistFreelistChain, which
// serializes Entries() as a sequence of {page_id, count} pairs across a
// chain of pages.
type Freelist struct {
	mu   sync.Mutex
	runs map[int64]uint32 // first page addr -> contiguous free page count

	hits, misses uint64
}

func NewFreelist() *Freelist {
	return &Freelist{runs: make(map[int64]uint32)}
}

// Alloc returns a free page address and removes it (or shrinks its run),
// or 0 with ok=false on a miss (caller falls back to Device.Alloc).
func (f *Freelist) Alloc(pageSize uint32) (addr int64, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for a, n := range f.runs {
		if n > 1 {
			f.runs[a+int64(pageSize)] = n - 1
		}
		delete(f.runs, a)
		f.hits++
		return a, true
	}
	f.misses++
	return 0, false
}

// Free pushes addr back onto the freelist as a single-page run, merging
// with an adjacent run when one is known to directly precede or follow it.
func (f *Freelist) Free(addr int64, pageSize uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.freeLocked(addr, pageSize)
}

func (f *Freelist) freeLocked(addr int64, pageSize uint32) {
	n := uint32(1)
	if next, ok := f.runs[addr+int64(pageSize)]; ok {
		delete(f.runs, addr+int64(pageSize))
		n += next
	}
	for a, c := range f.runs {
		if a+int64(c)*int64(pageSize) == addr {
			f.runs[a] = c + n
			return
		}
	}
	f.runs[addr] = f.runs[addr] + n
}

// FreeRange pushes n contiguous pages starting at addr, used for blob
// extents freed as one unit.
func (f *Freelist) FreeRange(addr int64, n uint32, pageSize uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[addr] = n
}

// Entries returns a snapshot of (addr, run length) pairs for persistence.
func (f *Freelist) Entries() map[int64]uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int64]uint32, len(f.runs))
	for a, n := range f.runs {
		out[a] = n
	}
	return out
}

// Load replaces the in-memory freelist with entries read back from the
// persisted chain on environment open.
func (f *Freelist) Load(entries map[int64]uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = make(map[int64]uint32, len(entries))
	for a, n := range entries {
		f.runs[a] = n
	}
}

func (f *Freelist) Stats() (hits, misses uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits, f.misses
}
