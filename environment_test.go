package bltree

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/latticedb/bltree/btree"
)

func u64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func TestEnvironment_InMemoryCreateDatabaseInsertFind(t *testing.T) {
	env, err := CreateEnvironment(EnvironmentConfig{
		Flags: FlagInMemory | FlagCacheUnlimited,
	})
	if err != nil {
		t.Fatalf("CreateEnvironment() err = %v", err)
	}
	defer env.Close()

	tr, err := env.CreateDatabase(DatabaseConfig{
		Name:    "widgets",
		KeyType: KeyTypeUint64,
	})
	if err != nil {
		t.Fatalf("CreateDatabase() err = %v", err)
	}

	for i := uint64(0); i < 20; i++ {
		if err := tr.Insert(u64(i), u64(i*2), btree.InsertOverwrite); err != nil {
			t.Fatalf("Insert(%d) err = %v", i, err)
		}
	}
	for i := uint64(0); i < 20; i++ {
		rec, found, err := tr.Find(u64(i))
		if err != nil {
			t.Fatalf("Find(%d) err = %v", i, err)
		}
		if !found {
			t.Fatalf("Find(%d) not found", i)
		}
		if !bytes.Equal(rec, u64(i*2)) {
			t.Fatalf("Find(%d) = %v, want %d", i, rec, i*2)
		}
	}
}

func TestEnvironment_CreateDatabaseRejectsDuplicateName(t *testing.T) {
	env, err := CreateEnvironment(EnvironmentConfig{Flags: FlagInMemory})
	if err != nil {
		t.Fatalf("CreateEnvironment() err = %v", err)
	}
	defer env.Close()

	if _, err := env.CreateDatabase(DatabaseConfig{Name: "a", KeyType: KeyTypeUint64}); err != nil {
		t.Fatalf("CreateDatabase() err = %v", err)
	}
	if _, err := env.CreateDatabase(DatabaseConfig{Name: "a", KeyType: KeyTypeUint64}); err == nil {
		t.Fatalf("CreateDatabase() duplicate name did not error")
	}
}

func TestEnvironment_FileRoundTripReopensDatabase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	env, err := CreateEnvironment(EnvironmentConfig{Path: path})
	if err != nil {
		t.Fatalf("CreateEnvironment() err = %v", err)
	}
	tr, err := env.CreateDatabase(DatabaseConfig{Name: "nums", KeyType: KeyTypeUint64})
	if err != nil {
		t.Fatalf("CreateDatabase() err = %v", err)
	}
	for i := uint64(0); i < 30; i++ {
		if err := tr.Insert(u64(i), u64(i+1000), btree.InsertOverwrite); err != nil {
			t.Fatalf("Insert(%d) err = %v", i, err)
		}
	}
	if err := env.Close(); err != nil {
		t.Fatalf("Close() err = %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file at %s: %v", path, err)
	}

	env2, err := OpenEnvironment(EnvironmentConfig{Path: path})
	if err != nil {
		t.Fatalf("OpenEnvironment() err = %v", err)
	}
	defer env2.Close()

	tr2, err := env2.OpenDatabase("nums")
	if err != nil {
		t.Fatalf("OpenDatabase() err = %v", err)
	}
	for i := uint64(0); i < 30; i++ {
		rec, found, err := tr2.Find(u64(i))
		if err != nil {
			t.Fatalf("Find(%d) err = %v", i, err)
		}
		if !found {
			t.Fatalf("Find(%d) not found after reopen", i)
		}
		if !bytes.Equal(rec, u64(i+1000)) {
			t.Fatalf("Find(%d) = %v, want %d", i, rec, i+1000)
		}
	}
}

func TestEnvironment_EraseDatabaseRemovesSlot(t *testing.T) {
	env, err := CreateEnvironment(EnvironmentConfig{Flags: FlagInMemory})
	if err != nil {
		t.Fatalf("CreateEnvironment() err = %v", err)
	}
	defer env.Close()

	if _, err := env.CreateDatabase(DatabaseConfig{Name: "temp", KeyType: KeyTypeUint64}); err != nil {
		t.Fatalf("CreateDatabase() err = %v", err)
	}
	if err := env.EraseDatabase("temp"); err != nil {
		t.Fatalf("EraseDatabase() err = %v", err)
	}
	if _, err := env.OpenDatabase("temp"); err == nil {
		t.Fatalf("OpenDatabase() succeeded after erase")
	}
	if _, err := env.CreateDatabase(DatabaseConfig{Name: "temp", KeyType: KeyTypeUint64}); err != nil {
		t.Fatalf("CreateDatabase() after erase err = %v", err)
	}
}
