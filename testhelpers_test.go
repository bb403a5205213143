package simplefs

import (
	"testing"

	"github.com/rs/zerolog"
)

// newTestFileSystem wires up a fully in-memory FileSystem (no real file
// backing it), for unit tests of the directory and block-mapping engines
// that don't need Format's on-disk zero-fill or Mount's superblock decode.
func newTestFileSystem(t *testing.T, nrBlocks, maxInodes uint64) *FileSystem {
	t.Helper()
	mgr := newTestManager(t, nrBlocks, maxInodes)
	inodes := newInodeStore(mgr, mgr.cache, mgr.order)

	fs := &FileSystem{
		dev:    mgr.cache.dev,
		cache:  mgr.cache,
		super:  mgr,
		inodes: inodes,
		order:  mgr.order,
		log:    zerolog.Nop(),
	}
	fs.dir = &dirEngine{fs: fs}
	fs.blockmap = &blockMapper{fs: fs}
	return fs
}

// mustMkdirRoot allocates and writes a minimal root directory inode for
// tests that only need one directory to populate.
func mustMkdirRoot(t *testing.T, fs *FileSystem) *Inode {
	t.Helper()
	inoNo, err := fs.super.allocateInodeNumber()
	if err != nil {
		t.Fatalf("allocate root inode: %v", err)
	}
	ino := &Inode{
		Mode:    uint64(S_IFDIR | 0755),
		InodeNo: inoNo,
		CTime:   1,
		MTime:   1,
	}
	if err := fs.inodes.write(inoNo, ino); err != nil {
		t.Fatalf("write root inode: %v", err)
	}
	return ino
}
