package simplefs

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"
)

// Mode's type bits, kernel st_mode layout. SimpleFS only ever stores
// S_IFDIR or S_IFREG (spec §1 excludes symlinks, device nodes, fifos, and
// sockets), so unlike a general-purpose POSIX mode table, this package
// never needs to recognize the other IFMT values.
const (
	S_IFMT  = 0xf000
	S_IFDIR = 0x4000
	S_IFREG = 0x8000
)

// Inode is the fixed-size on-disk inode record (spec §3). Field order is
// the on-disk field order. Size doubles as file_size for regular files and
// dir_children_count for directories, per the union the spec describes;
// which interpretation applies is determined by Mode.
type Inode struct {
	Mode                uint64
	InodeNo             uint64
	DataBlockNumber     uint64
	CTime               uint64
	MTime               uint64
	IndirectBlockNumber uint64
	Size                uint64
}

// IsDir reports whether the inode's mode bits mark it as a directory.
func (i *Inode) IsDir() bool {
	return i.Mode&S_IFMT == S_IFDIR
}

// IsRegular reports whether the inode's mode bits mark it as a regular file.
func (i *Inode) IsRegular() bool {
	return i.Mode&S_IFMT == S_IFREG
}

func nowNanos() uint64 {
	return uint64(time.Now().UnixNano())
}

// inodeStore provides typed accessors over the inode-table blocks
// (spec §4.6), guarded by inode_store_lock.
type inodeStore struct {
	mu    sync.Mutex
	mgr   *superblockManager
	cache *bufferCache
	order binary.ByteOrder
}

func newInodeStore(mgr *superblockManager, cache *bufferCache, order binary.ByteOrder) *inodeStore {
	return &inodeStore{mgr: mgr, cache: cache, order: order}
}

func (s *inodeStore) slot(inodeNo uint64) (blockNo uint64, offset int) {
	perBlock := inodesPerBlock(s.mgr.sb.BlockSize)
	region := (inodeNo - 1) / perBlock
	within := (inodeNo - 1) % perBlock
	return s.mgr.sb.InodeBlockStart + region, int(within) * InodeRecordSize
}

// isAllocated reports whether inodeNo's bit is set in the inode bitmap.
func (s *inodeStore) isAllocated(inodeNo uint64) (bool, error) {
	if inodeNo < 1 {
		return false, nil
	}
	idx := int(inodeNo - 1)
	blockIdx := idx / int(bitsPerBlock(s.mgr.sb.BlockSize))
	bit := idx % int(bitsPerBlock(s.mgr.sb.BlockSize))
	if blockIdx >= len(s.mgr.inodeBitmapBlocks) {
		return false, nil
	}
	h, err := s.cache.get(s.mgr.inodeBitmapBlocks[blockIdx])
	if err != nil {
		return false, err
	}
	return testBitmapBit(h.data, bit), nil
}

// read decodes the inode record for inodeNo. Fails with ErrNotFound if the
// inode's bit is not set in the inode bitmap.
func (s *inodeStore) read(inodeNo uint64) (*Inode, error) {
	if inodeNo < 1 {
		return nil, fmt.Errorf("simplefs: read inode %d: %w", inodeNo, ErrInvalid)
	}
	ok, err := s.isAllocated(inodeNo)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("simplefs: read inode %d: %w", inodeNo, ErrNotFound)
	}

	blockNo, offset := s.slot(inodeNo)
	h, err := s.cache.get(blockNo)
	if err != nil {
		return nil, err
	}
	ino, err := decodeInode(s.order, h.data[offset:offset+InodeRecordSize])
	if err != nil {
		return nil, fmt.Errorf("simplefs: decode inode %d: %w", inodeNo, err)
	}
	return ino, nil
}

// write encodes ino into its slot and marks the inode-table buffer dirty.
// It does not sync; callers rely on syncMetadata.
func (s *inodeStore) write(inodeNo uint64, ino *Inode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blockNo, offset := s.slot(inodeNo)
	h, err := s.cache.get(blockNo)
	if err != nil {
		return err
	}
	raw, err := encodeInode(s.order, ino)
	if err != nil {
		return fmt.Errorf("simplefs: encode inode %d: %w", inodeNo, err)
	}
	copy(h.data[offset:offset+InodeRecordSize], raw)
	s.cache.markDirty(h)
	return nil
}
