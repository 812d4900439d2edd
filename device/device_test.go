package device

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestMemDevice_AllocReadWrite(t *testing.T) {
	d := NewMemDevice(1024)

	off, err := d.Alloc(1024)
	if err != nil {
		t.Fatalf("Alloc() err = %v", err)
	}
	if off != 0 {
		t.Fatalf("Alloc() offset = %d, want 0", off)
	}
	if d.FileSize() != 1024 {
		t.Fatalf("FileSize() = %d, want 1024", d.FileSize())
	}

	want := bytes.Repeat([]byte{0xAB}, 1024)
	if err := d.WriteAt(want, 0); err != nil {
		t.Fatalf("WriteAt() err = %v", err)
	}

	got := make([]byte, 1024)
	if err := d.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt() err = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("ReadAt() = %v, want %v", got[:4], want[:4])
	}
}

func TestMemDevice_AllocGrowsByMultiplePages(t *testing.T) {
	d := NewMemDevice(512)
	off1, _ := d.Alloc(512)
	off2, _ := d.Alloc(1500) // rounds up to 3 pages
	if off1 != 0 || off2 != 512 {
		t.Fatalf("offsets = %d, %d, want 0, 512", off1, off2)
	}
	if d.FileSize() != 512+512*3 {
		t.Fatalf("FileSize() = %d, want %d", d.FileSize(), 512+512*3)
	}
}

func TestMemDevice_Truncate(t *testing.T) {
	d := NewMemDevice(1024)
	d.Alloc(1024 * 4)
	if err := d.Truncate(1024 * 2); err != nil {
		t.Fatalf("Truncate() err = %v", err)
	}
	if d.FileSize() != 1024*2 {
		t.Fatalf("FileSize() = %d, want %d", d.FileSize(), 1024*2)
	}
}

func TestFileDevice_AllocReadWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	d, err := OpenFileDevice(OpenFileDeviceOptions{Path: path, PageSize: 4096, Create: true})
	if err != nil {
		t.Fatalf("OpenFileDevice() err = %v", err)
	}
	defer d.Close()

	off, err := d.Alloc(4096)
	if err != nil {
		t.Fatalf("Alloc() err = %v", err)
	}

	want := bytes.Repeat([]byte{0x42}, 4096)
	if err := d.WriteAt(want, off); err != nil {
		t.Fatalf("WriteAt() err = %v", err)
	}
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush() err = %v", err)
	}

	got := make([]byte, 4096)
	if err := d.ReadAt(got, off); err != nil {
		t.Fatalf("ReadAt() err = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("ReadAt() mismatch")
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
}

func TestFileDevice_DirectRequiresAlignment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	_, err := OpenFileDevice(OpenFileDeviceOptions{Path: path, PageSize: 1000, Create: true, Direct: true})
	if err == nil {
		t.Fatalf("OpenFileDevice() err = nil, want alignment error")
	}
}
