package simplefs

import (
	"errors"
	"strconv"
	"testing"
)

func TestDirInsertAndLookup(t *testing.T) {
	fs := newTestFileSystem(t, 64, 16)
	dir := mustMkdirRoot(t, fs)

	if err := fs.dir.insert(dir, "alpha", 10); err != nil {
		t.Fatalf("insert alpha: %v", err)
	}
	if err := fs.dir.insert(dir, "beta", 11); err != nil {
		t.Fatalf("insert beta: %v", err)
	}

	got, err := fs.dir.lookup(dir, "beta")
	if err != nil {
		t.Fatalf("lookup beta: %v", err)
	}
	if got != 11 {
		t.Fatalf("got inode %d, want 11", got)
	}

	if _, err := fs.dir.lookup(dir, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestDirInsertRejectsDuplicateName(t *testing.T) {
	fs := newTestFileSystem(t, 64, 16)
	dir := mustMkdirRoot(t, fs)

	if err := fs.dir.insert(dir, "dup", 5); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := fs.dir.insert(dir, "dup", 6); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("got %v, want ErrAlreadyExists", err)
	}
}

func TestDirInsertRejectsOverlongName(t *testing.T) {
	fs := newTestFileSystem(t, 64, 16)
	dir := mustMkdirRoot(t, fs)

	name := make([]byte, 256)
	for i := range name {
		name[i] = 'x'
	}
	if err := fs.dir.insert(dir, string(name), 1); !errors.Is(err, ErrNameTooLong) {
		t.Fatalf("got %v, want ErrNameTooLong", err)
	}
}

func TestDirIterateReturnsInsertionOrder(t *testing.T) {
	fs := newTestFileSystem(t, 64, 16)
	dir := mustMkdirRoot(t, fs)

	names := []string{"one", "two", "three", "four"}
	for i, name := range names {
		if err := fs.dir.insert(dir, name, uint64(100+i)); err != nil {
			t.Fatalf("insert %q: %v", name, err)
		}
	}

	entries, err := fs.dir.iterate(dir)
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(entries) != len(names) {
		t.Fatalf("got %d entries, want %d", len(entries), len(names))
	}
	for i, name := range names {
		if entries[i].Name != name {
			t.Fatalf("entry %d: got name %q, want %q", i, entries[i].Name, name)
		}
		if entries[i].InodeNo != uint64(100+i) {
			t.Fatalf("entry %d: got inode %d, want %d", i, entries[i].InodeNo, 100+i)
		}
	}
}

func TestDirInsertSpansMultipleBlocks(t *testing.T) {
	fs := newTestFileSystem(t, 256, 64)
	dir := mustMkdirRoot(t, fs)

	// Each record here is 8 + 1 + len(name) bytes; 400 of them take 6690
	// bytes, more than one block holds, so a second directory data block
	// (reached through the indirect block) has to be allocated.
	const count = 400
	for i := 0; i < count; i++ {
		name := "file-" + strconv.Itoa(i)
		if err := fs.dir.insert(dir, name, uint64(1000+i)); err != nil {
			t.Fatalf("insert %q: %v", name, err)
		}
	}

	entries, err := fs.dir.iterate(dir)
	if err != nil {
		t.Fatalf("iterate: %v", err)
	}
	if len(entries) != count {
		t.Fatalf("got %d entries, want %d", len(entries), count)
	}
	if dir.DataBlockNumber == 0 || dir.IndirectBlockNumber == 0 {
		t.Fatal("expected insertion to have allocated both a direct and an indirect block")
	}
}
