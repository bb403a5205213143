package simplefs

import (
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
)

// memStore is an in-memory backingStore, generalized from the teacher's
// mockReader (mock_test.go) into a read/write byte slice so allocator tests
// can exercise Format-sized images without a real file.
type memStore struct {
	data []byte
}

func newMemStore(size int) *memStore {
	return &memStore{data: make([]byte, size)}
}

func (m *memStore) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *memStore) WriteAt(p []byte, off int64) (int, error) {
	end := off + int64(len(p))
	if end > int64(len(m.data)) {
		return 0, io.ErrShortWrite
	}
	return copy(m.data[off:end], p), nil
}

func (m *memStore) Sync() error  { return nil }
func (m *memStore) Close() error { return nil }

func newTestManager(t *testing.T, nrBlocks, maxInodes uint64) *superblockManager {
	t.Helper()
	store := newMemStore(int(nrBlocks) * int(DefaultBlockSize))
	dev := NewBlockDevice(store, DefaultBlockSize, int64(len(store.data)))
	cache := newBufferCache(dev)

	l := computeLayout(DefaultBlockSize, nrBlocks, maxInodes)
	sb := SuperBlock{
		Magic:            MagicNumber,
		NrBlocks:         nrBlocks,
		FreeBlocks:       l.maxDataBlocks,
		InodeBlockStart:  l.inodeBlockStart,
		InodeBitmapStart: l.inodeBitmapStart,
		BlockBitmapStart: l.blockBitmapStart,
		DataBlockStart:   l.dataBlockStart,
		BlockSize:        DefaultBlockSize,
	}
	sbBuf, err := cache.get(0)
	if err != nil {
		t.Fatalf("get superblock buffer: %v", err)
	}
	return newSuperblockManager(sb, nativeOrder(), l, cache, sbBuf, zerolog.Nop())
}

func TestAllocateInodeNumberSequential(t *testing.T) {
	mgr := newTestManager(t, 64, 16)

	for want := uint64(1); want <= 16; want++ {
		got, err := mgr.allocateInodeNumber()
		if err != nil {
			t.Fatalf("allocate inode %d: %v", want, err)
		}
		if got != want {
			t.Fatalf("got inode %d, want %d", got, want)
		}
	}

	if _, err := mgr.allocateInodeNumber(); !errors.Is(err, ErrNoSpace) {
		t.Fatalf("got %v, want ErrNoSpace once the inode table is full", err)
	}
}

func TestFreeInodeNumberRollsBackAllocation(t *testing.T) {
	mgr := newTestManager(t, 64, 16)

	ino, err := mgr.allocateInodeNumber()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := mgr.freeInodeNumber(ino); err != nil {
		t.Fatalf("free: %v", err)
	}

	again, err := mgr.allocateInodeNumber()
	if err != nil {
		t.Fatalf("allocate after free: %v", err)
	}
	if again != ino {
		t.Fatalf("got inode %d, want the freed inode %d reused first", again, ino)
	}
}

func TestAllocateDataBlockExhaustion(t *testing.T) {
	mgr := newTestManager(t, 16, 2)

	var allocated []uint64
	for {
		b, err := mgr.allocateDataBlock(1)
		if err != nil {
			if !errors.Is(err, ErrNoSpace) {
				t.Fatalf("unexpected error: %v", err)
			}
			break
		}
		allocated = append(allocated, b)
	}

	if uint64(len(allocated)) != mgr.layout.maxDataBlocks {
		t.Fatalf("allocated %d blocks, want %d", len(allocated), mgr.layout.maxDataBlocks)
	}

	seen := make(map[uint64]bool)
	for _, b := range allocated {
		if seen[b] {
			t.Fatalf("block %d allocated twice", b)
		}
		seen[b] = true
	}
}

func TestAllocateDataBlockRollsBackOnPartialFailure(t *testing.T) {
	mgr := newTestManager(t, 16, 2)

	// drain all but one block.
	for i := uint64(0); i < mgr.layout.maxDataBlocks-1; i++ {
		if _, err := mgr.allocateDataBlock(1); err != nil {
			t.Fatalf("priming allocation %d: %v", i, err)
		}
	}
	before := mgr.sb.FreeBlocks

	if _, err := mgr.allocateDataBlock(3); !errors.Is(err, ErrNoSpace) {
		t.Fatalf("got %v, want ErrNoSpace for an over-large request", err)
	}
	if mgr.sb.FreeBlocks != before {
		t.Fatalf("FreeBlocks changed from %d to %d after a rolled-back allocation", before, mgr.sb.FreeBlocks)
	}

	// the single remaining block must still be allocatable.
	if _, err := mgr.allocateDataBlock(1); err != nil {
		t.Fatalf("allocate last block after rollback: %v", err)
	}
}

func TestFreeDataBlockReplenishesFreeBlocks(t *testing.T) {
	mgr := newTestManager(t, 16, 2)

	b, err := mgr.allocateDataBlock(1)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	before := mgr.sb.FreeBlocks
	if err := mgr.freeDataBlock(b); err != nil {
		t.Fatalf("free: %v", err)
	}
	if mgr.sb.FreeBlocks != before+1 {
		t.Fatalf("FreeBlocks is %d, want %d", mgr.sb.FreeBlocks, before+1)
	}
}
