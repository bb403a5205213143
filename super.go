package simplefs

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// SuperBlock is the in-memory mirror of the on-disk superblock record
// (spec §3). Field order is the on-disk field order: the codec's reflect
// walk encodes/decodes them in this exact sequence.
type SuperBlock struct {
	Magic            uint64
	InodesCount      uint64
	FreeBlocks       uint64
	NrBlocks         uint64
	InodeBlockStart  uint64
	InodeBitmapStart uint64
	BlockBitmapStart uint64
	DataBlockStart   uint64
	BlockSize        uint32
	Version          uint32
}

// superblockManager owns the in-memory SuperBlock, the cached metadata
// buffer arrays, and sb_lock. All mutation of global counters and bitmap
// bits goes through it (spec §4.5).
type superblockManager struct {
	mu sync.Mutex

	sb     SuperBlock
	order  binary.ByteOrder
	layout layout

	cache *bufferCache
	sbBuf *bufferHandle

	inodeTableBlocks  []uint64
	inodeBitmapBlocks []uint64
	blockBitmapBlocks []uint64

	blockScanCursor int // resume point across allocateDataBlock calls, spec §4.5

	log zerolog.Logger
}

func blockRange(start, count uint64) []uint64 {
	out := make([]uint64, count)
	for i := range out {
		out[i] = start + uint64(i)
	}
	return out
}

func newSuperblockManager(sb SuperBlock, order binary.ByteOrder, l layout, cache *bufferCache, sbBuf *bufferHandle, log zerolog.Logger) *superblockManager {
	return &superblockManager{
		sb:                sb,
		order:             order,
		layout:            l,
		cache:             cache,
		sbBuf:             sbBuf,
		inodeTableBlocks:  blockRange(sb.InodeBlockStart, l.inodeRegionBlocks),
		inodeBitmapBlocks: blockRange(sb.InodeBitmapStart, l.inodeBitmapBlocks),
		blockBitmapBlocks: blockRange(sb.BlockBitmapStart, l.blockBitmapBlocks),
		log:               log,
	}
}

// allocateInodeNumber scans the inode bitmap buffers in order for the first
// free bit and returns 1+bitIndex as the new inode number.
func (m *superblockManager) allocateInodeNumber() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for blockIdx, blockNo := range m.inodeBitmapBlocks {
		h, err := m.cache.get(blockNo)
		if err != nil {
			return 0, err
		}
		bit, ok := allocFirstFree(h.data)
		if !ok {
			continue
		}
		global := uint64(blockIdx)*bitsPerBlock(m.sb.BlockSize) + uint64(bit)
		if global >= m.layout.maxInodes {
			// bit lies past the inode table's actual capacity; undo and stop.
			freeBitmapBit(h.data, bit)
			return 0, fmt.Errorf("simplefs: allocate inode: %w", ErrNoSpace)
		}
		m.cache.markDirty(h)
		m.sb.InodesCount++
		m.log.Debug().Uint64("inode", global+1).Msg("allocated inode number")
		return global + 1, nil
	}
	return 0, fmt.Errorf("simplefs: allocate inode: %w", ErrNoSpace)
}

// freeInodeNumber undoes a reserved-but-uncommitted inode allocation. This is
// narrower than the deletion feature spec.md places out of scope: it only
// rolls back the bitmap bit and counter set by allocateInodeNumber, for the
// local-error-rollback path required by the create() state machine (§4.9).
func (m *superblockManager) freeInodeNumber(inodeNo uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := int(inodeNo - 1)
	blockIdx := idx / int(bitsPerBlock(m.sb.BlockSize))
	bit := idx % int(bitsPerBlock(m.sb.BlockSize))
	if blockIdx < 0 || blockIdx >= len(m.inodeBitmapBlocks) {
		return fmt.Errorf("simplefs: free inode %d: %w", inodeNo, ErrOutOfRange)
	}
	h, err := m.cache.get(m.inodeBitmapBlocks[blockIdx])
	if err != nil {
		return err
	}
	if !freeBitmapBit(h.data, bit) {
		return fmt.Errorf("simplefs: free inode %d: %w", inodeNo, ErrInvalid)
	}
	m.cache.markDirty(h)
	m.sb.InodesCount--
	return nil
}

// allocateDataBlock allocates n blocks one at a time (see DESIGN.md: the
// spec permits either a contiguous run or one-at-a-time requests, and every
// caller in this codebase only ever asks for a single block), rolling back
// every bit it set if any single-block step fails.
func (m *superblockManager) allocateDataBlock(n int) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type allocated struct {
		blockNo uint64
		bit     int
	}
	var done []allocated
	first := uint64(0)

	rollback := func() {
		for i := len(done) - 1; i >= 0; i-- {
			h, err := m.cache.get(done[i].blockNo)
			if err != nil {
				continue
			}
			freeBitmapBit(h.data, done[i].bit)
			m.cache.markDirty(h)
		}
	}

	for i := 0; i < n; i++ {
		ok, blockNo, bit, global := m.allocateOneDataBit()
		if !ok {
			rollback()
			return 0, fmt.Errorf("simplefs: allocate %d block(s): %w", n, ErrNoSpace)
		}
		done = append(done, allocated{blockNo, bit})
		if i == 0 {
			first = m.sb.DataBlockStart + global
		}
	}

	m.sb.FreeBlocks -= uint64(n)
	return first, nil
}

// allocateOneDataBit scans the block bitmap starting at blockScanCursor,
// wrapping around, and sets the first free bit within the device's data
// capacity.
func (m *superblockManager) allocateOneDataBit() (ok bool, blockNo uint64, bit int, global uint64) {
	n := len(m.blockBitmapBlocks)
	for step := 0; step < n; step++ {
		idx := (m.blockScanCursor + step) % n
		candidate := m.blockBitmapBlocks[idx]
		h, err := m.cache.get(candidate)
		if err != nil {
			continue
		}
		b, found := allocFirstFree(h.data)
		if !found {
			continue
		}
		g := uint64(idx)*bitsPerBlock(m.sb.BlockSize) + uint64(b)
		if g >= m.layout.maxDataBlocks {
			freeBitmapBit(h.data, b)
			continue
		}
		m.cache.markDirty(h)
		m.blockScanCursor = idx
		return true, candidate, b, g
	}
	return false, 0, 0, 0
}

// freeDataBlock clears the bit for blockNo and increments FreeBlocks.
func (m *superblockManager) freeDataBlock(blockNo uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if blockNo < m.sb.DataBlockStart {
		return fmt.Errorf("simplefs: free block %d: %w", blockNo, ErrOutOfRange)
	}
	idx := blockNo - m.sb.DataBlockStart
	if idx >= m.layout.maxDataBlocks {
		return fmt.Errorf("simplefs: free block %d: %w", blockNo, ErrOutOfRange)
	}
	blockIdx := idx / bitsPerBlock(m.sb.BlockSize)
	bit := int(idx % bitsPerBlock(m.sb.BlockSize))
	h, err := m.cache.get(m.blockBitmapBlocks[blockIdx])
	if err != nil {
		return err
	}
	if !freeBitmapBit(h.data, bit) {
		return fmt.Errorf("simplefs: free block %d: %w", blockNo, ErrInvalid)
	}
	m.cache.markDirty(h)
	m.sb.FreeBlocks++
	return nil
}

// syncMetadata writes back every dirty inode-table, inode-bitmap, and
// block-bitmap buffer, then the superblock itself, in that order, so a crash
// never leaves InodesCount referencing uninitialized inode bytes (spec §4.5).
func (m *superblockManager) syncMetadata() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range m.inodeTableBlocks {
		if err := m.cache.syncOne(b); err != nil {
			return fmt.Errorf("simplefs: sync inode table: %w", err)
		}
	}
	for _, b := range m.inodeBitmapBlocks {
		if err := m.cache.syncOne(b); err != nil {
			return fmt.Errorf("simplefs: sync inode bitmap: %w", err)
		}
	}
	for _, b := range m.blockBitmapBlocks {
		if err := m.cache.syncOne(b); err != nil {
			return fmt.Errorf("simplefs: sync block bitmap: %w", err)
		}
	}

	raw, err := encodeSuperBlock(m.order, &m.sb)
	if err != nil {
		return fmt.Errorf("simplefs: encode superblock: %w", err)
	}
	copy(m.sbBuf.data, raw)
	m.cache.markDirty(m.sbBuf)
	if err := m.cache.syncOne(0); err != nil {
		return fmt.Errorf("simplefs: sync superblock: %w", err)
	}
	return nil
}

func (m *superblockManager) snapshot() SuperBlock {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sb
}
