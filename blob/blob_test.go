package blob

import (
	"bytes"
	"testing"

	"github.com/latticedb/bltree/codec"
	"github.com/latticedb/bltree/device"
	"github.com/latticedb/bltree/storage/buffer"
)

func newTestManager(t *testing.T, compressor codec.Compressor) (*Manager, *buffer.PageManager) {
	t.Helper()
	dev := device.NewMemDevice(512)
	cache := buffer.NewCache(0, 512)
	free := buffer.NewFreelist()
	pm := buffer.NewPageManager(dev, cache, free)
	return New(pm, compressor), pm
}

func TestManager_AllocateReadSinglePage(t *testing.T) {
	m, _ := newTestManager(t, codec.None{})
	data := []byte("hello, blob manager")

	id, err := m.Allocate(data)
	if err != nil {
		t.Fatalf("Allocate() err = %v", err)
	}
	got, err := m.Read(id)
	if err != nil {
		t.Fatalf("Read() err = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("Read() = %q, want %q", got, data)
	}
	size, err := m.BlobSize(id)
	if err != nil {
		t.Fatalf("BlobSize() err = %v", err)
	}
	if size != len(data) {
		t.Fatalf("BlobSize() = %d, want %d", size, len(data))
	}
}

func TestManager_AllocateSpansMultiplePages(t *testing.T) {
	m, _ := newTestManager(t, codec.None{})
	data := make([]byte, 2000) // bigger than one 512-byte page
	for i := range data {
		data[i] = byte(i)
	}

	id, err := m.Allocate(data)
	if err != nil {
		t.Fatalf("Allocate() err = %v", err)
	}
	got, err := m.Read(id)
	if err != nil {
		t.Fatalf("Read() err = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("Read() mismatch across pages")
	}
}

func TestManager_OverwriteInPlaceVsReallocate(t *testing.T) {
	m, _ := newTestManager(t, codec.None{})
	id, err := m.Allocate([]byte("short"))
	if err != nil {
		t.Fatalf("Allocate() err = %v", err)
	}

	id2, err := m.Overwrite(id, []byte("still short"))
	if err != nil {
		t.Fatalf("Overwrite() err = %v", err)
	}
	if id2 != id {
		t.Fatalf("Overwrite() id changed for in-place update: got %d, want %d", id2, id)
	}

	big := make([]byte, 5000)
	id3, err := m.Overwrite(id, big)
	if err != nil {
		t.Fatalf("Overwrite() err = %v", err)
	}
	got, err := m.Read(id3)
	if err != nil {
		t.Fatalf("Read() err = %v", err)
	}
	if !bytes.Equal(got, big) {
		t.Fatalf("Read() after reallocating Overwrite() mismatch")
	}
}

func TestManager_EraseFreesPages(t *testing.T) {
	m, pm := newTestManager(t, codec.None{})
	id, err := m.Allocate([]byte("erase me"))
	if err != nil {
		t.Fatalf("Allocate() err = %v", err)
	}
	if err := m.Erase(id); err != nil {
		t.Fatalf("Erase() err = %v", err)
	}
	// the freed address should be handed back out by the next AllocPage.
	pg, err := pm.AllocPage(0)
	if err != nil {
		t.Fatalf("AllocPage() err = %v", err)
	}
	if pg.Addr != int64(id) {
		t.Fatalf("AllocPage() addr = %d, want reused blob addr %d", pg.Addr, id)
	}
}

func TestManager_CompressionRoundTrip(t *testing.T) {
	m, _ := newTestManager(t, codec.Snappy{})
	data := bytes.Repeat([]byte("compressible-compressible-compressible "), 50)

	id, err := m.Allocate(data)
	if err != nil {
		t.Fatalf("Allocate() err = %v", err)
	}
	got, err := m.Read(id)
	if err != nil {
		t.Fatalf("Read() err = %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("Read() after compression mismatch")
	}
}

func TestManager_OverwriteRegions(t *testing.T) {
	m, _ := newTestManager(t, codec.None{})
	data := []byte("0123456789abcdef")
	id, err := m.Allocate(data)
	if err != nil {
		t.Fatalf("Allocate() err = %v", err)
	}

	if err := m.OverwriteRegions(id, []Region{{Offset: 2, Data: []byte("XY")}}); err != nil {
		t.Fatalf("OverwriteRegions() err = %v", err)
	}
	got, err := m.Read(id)
	if err != nil {
		t.Fatalf("Read() err = %v", err)
	}
	want := []byte("01XY456789abcdef")
	if !bytes.Equal(got, want) {
		t.Fatalf("Read() after OverwriteRegions = %q, want %q", got, want)
	}
}
