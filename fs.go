package simplefs

import (
	"encoding/binary"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// FileSystem is a mounted SimpleFS image: the facade every public operation
// goes through. Its three locks are always taken in the order dirLock ->
// inodes.mu -> super.mu (spec §4.10); none of the exported methods below
// ever need to hold more than one at a time, but the sub-engines they call
// into do.
type FileSystem struct {
	dev      *BlockDevice
	cache    *bufferCache
	super    *superblockManager
	inodes   *inodeStore
	dir      *dirEngine
	blockmap *blockMapper
	order    binary.ByteOrder

	dirLock sync.Mutex // dir_update_lock: serializes directory mutation across the whole mount
	log     zerolog.Logger
}

// Format writes a fresh SimpleFS image to path, sized to the file's current
// length (the caller is responsible for creating/truncating it beforehand,
// mirroring the original mkfs tool operating on a pre-sized block device or
// image file).
func Format(path string, opts ...FormatOption) error {
	cfg := newFormatConfig(opts)

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("simplefs: format %s: %w", path, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("simplefs: format %s: %w", path, err)
	}

	dev := NewBlockDevice(f, cfg.blockSize, info.Size())
	nrBlocks := dev.SizeInBlocks()
	if nrBlocks < 4 {
		return fmt.Errorf("simplefs: format %s: device too small: %w", path, ErrNoSpace)
	}

	maxInodes := (nrBlocks * uint64(cfg.inodePerc)) / 100
	if maxInodes < 2 {
		maxInodes = 2
	}
	l := computeLayout(cfg.blockSize, nrBlocks, maxInodes)
	if l.maxDataBlocks < 2 {
		return fmt.Errorf("simplefs: format %s: not enough blocks for inode percent %d: %w", path, cfg.inodePerc, ErrNoSpace)
	}

	var order binary.ByteOrder = binary.BigEndian
	if cfg.littleEnd {
		order = binary.LittleEndian
	}

	zero := make([]byte, cfg.blockSize)
	metadataBlocks := l.dataBlockStart
	for b := uint64(0); b < metadataBlocks; b++ {
		if err := dev.WriteBlock(b, zero); err != nil {
			return fmt.Errorf("simplefs: format %s: zero metadata: %w", path, err)
		}
	}

	sb := SuperBlock{
		Magic:            MagicNumber,
		InodesCount:      0,
		FreeBlocks:       l.maxDataBlocks,
		NrBlocks:         nrBlocks,
		InodeBlockStart:  l.inodeBlockStart,
		InodeBitmapStart: l.inodeBitmapStart,
		BlockBitmapStart: l.blockBitmapStart,
		DataBlockStart:   l.dataBlockStart,
		BlockSize:        cfg.blockSize,
		Version:          versionFieldForOrder(order, cfg.littleEnd),
	}

	cache := newBufferCache(dev)
	sbBuf, err := cache.get(0)
	if err != nil {
		return fmt.Errorf("simplefs: format %s: %w", path, err)
	}
	mgr := newSuperblockManager(sb, order, l, cache, sbBuf, cfg.log)
	inodes := newInodeStore(mgr, cache, order)

	now := nowNanos()

	rootIno := RootInodeNumber
	welcomeIno := WelcomeInodeNumber
	for i := uint64(0); i < 2; i++ {
		if _, err := mgr.allocateInodeNumber(); err != nil {
			return fmt.Errorf("simplefs: format %s: %w", path, err)
		}
	}

	rootBlock, err := mgr.allocateDataBlock(1)
	if err != nil {
		return fmt.Errorf("simplefs: format %s: root data block: %w", path, err)
	}
	root := &Inode{
		Mode:            uint64(S_IFDIR | 0755),
		InodeNo:         rootIno,
		DataBlockNumber: rootBlock,
		CTime:           now,
		MTime:           now,
		Size:            1,
	}
	if err := inodes.write(rootIno, root); err != nil {
		return fmt.Errorf("simplefs: format %s: write root inode: %w", path, err)
	}

	welcomeBody := []byte(welcomeFileBody)
	welcomeBlock, err := mgr.allocateDataBlock(1)
	if err != nil {
		return fmt.Errorf("simplefs: format %s: welcome data block: %w", path, err)
	}
	wh, err := cache.get(welcomeBlock)
	if err != nil {
		return fmt.Errorf("simplefs: format %s: %w", path, err)
	}
	copy(wh.data, welcomeBody)
	cache.markDirty(wh)

	welcome := &Inode{
		Mode:            uint64(S_IFREG | 0644),
		InodeNo:         welcomeIno,
		DataBlockNumber: welcomeBlock,
		CTime:           now,
		MTime:           now,
		Size:            uint64(len(welcomeBody)),
	}
	if err := inodes.write(welcomeIno, welcome); err != nil {
		return fmt.Errorf("simplefs: format %s: write welcome inode: %w", path, err)
	}

	rh, err := cache.get(rootBlock)
	if err != nil {
		return fmt.Errorf("simplefs: format %s: %w", path, err)
	}
	copy(rh.data, encodeDirRecord(order, welcomeIno, welcomeFileName))
	cache.markDirty(rh)

	if err := mgr.syncMetadata(); err != nil {
		return fmt.Errorf("simplefs: format %s: %w", path, err)
	}
	if err := dev.Sync(); err != nil {
		return fmt.Errorf("simplefs: format %s: %w", path, err)
	}
	cfg.log.Info().Str("path", path).Uint64("blocks", nrBlocks).Uint64("inodes", maxInodes).Msg("formatted simplefs image")
	return nil
}

// Mount opens an existing SimpleFS image and reconstructs its in-memory
// bookkeeping from the on-disk superblock.
func Mount(path string, opts ...Option) (*FileSystem, error) {
	cfg := newMountConfig(opts)

	dev, err := OpenBlockDevice(path, DefaultBlockSize)
	if err != nil {
		return nil, err
	}

	cache := newBufferCache(dev)
	sbBuf, err := cache.get(0)
	if err != nil {
		dev.Close()
		return nil, err
	}
	sb, order, err := decodeSuperBlock(sbBuf.data)
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("simplefs: mount %s: %w", path, err)
	}

	l := layoutFromSuperblock(sb)

	mgr := newSuperblockManager(*sb, order, l, cache, sbBuf, cfg.log)
	inodes := newInodeStore(mgr, cache, order)

	fs := &FileSystem{
		dev:    dev,
		cache:  cache,
		super:  mgr,
		inodes: inodes,
		order:  order,
		log:    cfg.log,
	}
	fs.dir = &dirEngine{fs: fs}
	fs.blockmap = &blockMapper{fs: fs}
	return fs, nil
}

// layoutFromSuperblock rebuilds a layout from a stored superblock's region
// boundaries, rather than recomputing DEFAULT_PERC_INODES fresh: the
// percentage used at format time need not match any default Mount knows
// about, so the authoritative source is the on-disk offsets themselves.
func layoutFromSuperblock(sb *SuperBlock) layout {
	l := layout{
		inodeBlockStart:   sb.InodeBlockStart,
		inodeBitmapStart:  sb.InodeBitmapStart,
		blockBitmapStart:  sb.BlockBitmapStart,
		dataBlockStart:    sb.DataBlockStart,
		inodeRegionBlocks: sb.InodeBitmapStart - sb.InodeBlockStart,
		inodeBitmapBlocks: sb.BlockBitmapStart - sb.InodeBitmapStart,
		blockBitmapBlocks: sb.DataBlockStart - sb.BlockBitmapStart,
	}
	l.maxInodes = l.inodeRegionBlocks * inodesPerBlock(sb.BlockSize)
	if sb.NrBlocks > l.dataBlockStart {
		l.maxDataBlocks = sb.NrBlocks - l.dataBlockStart
	}
	return l
}

// SuperBlock returns a snapshot of the mounted image's superblock fields.
func (fs *FileSystem) SuperBlock() SuperBlock {
	return fs.super.snapshot()
}

// Close flushes all dirty buffers and releases the backing device.
func (fs *FileSystem) Close() error {
	if err := fs.Sync(); err != nil {
		return err
	}
	return fs.dev.Close()
}

// Sync writes back all dirty metadata and data buffers, in the crash-safe
// order superblockManager.syncMetadata enforces.
func (fs *FileSystem) Sync() error {
	if err := fs.super.syncMetadata(); err != nil {
		return err
	}
	if err := fs.cache.syncAll(); err != nil {
		return err
	}
	return fs.dev.Sync()
}

// LookupPath resolves a '/'-separated path, starting at the root inode, to
// an inode number.
func (fs *FileSystem) LookupPath(p string) (uint64, error) {
	p = strings.Trim(path.Clean("/"+p), "/")
	cur := RootInodeNumber
	if p == "" {
		return cur, nil
	}
	for _, part := range strings.Split(p, "/") {
		ino, err := fs.inodes.read(cur)
		if err != nil {
			return 0, err
		}
		if !ino.IsDir() {
			return 0, fmt.Errorf("simplefs: lookup %q: %w", p, ErrNotDirectory)
		}
		next, err := fs.dir.lookup(ino, part)
		if err != nil {
			return 0, err
		}
		cur = next
	}
	return cur, nil
}

// Open returns a File handle for a regular-file inode.
func (fs *FileSystem) Open(inodeNo uint64) (*File, error) {
	ino, err := fs.inodes.read(inodeNo)
	if err != nil {
		return nil, err
	}
	if ino.IsDir() {
		return nil, fmt.Errorf("simplefs: open inode %d: %w", inodeNo, ErrIsDirectory)
	}
	return &File{fs: fs, ino: ino}, nil
}

// Readdir lists a directory inode's entries.
func (fs *FileSystem) Readdir(inodeNo uint64) ([]DirEntry, error) {
	ino, err := fs.inodes.read(inodeNo)
	if err != nil {
		return nil, err
	}
	if !ino.IsDir() {
		return nil, fmt.Errorf("simplefs: readdir inode %d: %w", inodeNo, ErrNotDirectory)
	}
	return fs.dir.iterate(ino)
}

// Create allocates a new regular-file inode named name inside the directory
// parentInodeNo, implementing the state machine of spec §4.9: reserve an
// inode number, write its record, then link it into the parent directory,
// rolling the inode reservation back if any later step fails.
func (fs *FileSystem) Create(parentInodeNo uint64, name string) (uint64, error) {
	return fs.createChild(parentInodeNo, name, uint64(S_IFREG|0644))
}

// Mkdir creates a new, empty subdirectory named name inside parentInodeNo.
func (fs *FileSystem) Mkdir(parentInodeNo uint64, name string) (uint64, error) {
	return fs.createChild(parentInodeNo, name, uint64(S_IFDIR|0755))
}

func (fs *FileSystem) createChild(parentInodeNo uint64, name string, mode uint64) (uint64, error) {
	fs.dirLock.Lock()
	defer fs.dirLock.Unlock()

	parent, err := fs.inodes.read(parentInodeNo)
	if err != nil {
		return 0, err
	}
	if !parent.IsDir() {
		return 0, fmt.Errorf("simplefs: create %q: %w", name, ErrNotDirectory)
	}

	childNo, err := fs.super.allocateInodeNumber()
	if err != nil {
		return 0, err
	}

	now := nowNanos()
	child := &Inode{
		Mode:    mode,
		InodeNo: childNo,
		CTime:   now,
		MTime:   now,
	}
	if mode&S_IFMT == S_IFDIR {
		child.Size = 0
	}
	if err := fs.inodes.write(childNo, child); err != nil {
		fs.super.freeInodeNumber(childNo)
		return 0, err
	}

	if err := fs.dir.insert(parent, name, childNo); err != nil {
		fs.super.freeInodeNumber(childNo)
		return 0, err
	}
	return childNo, nil
}
