package simplefs

import (
	"fmt"
)

// Block Mapping Engine: inode-to-data-block addressing with a single
// indirect level (spec §4.7). logicalIndex 0 is the inode's direct block;
// logicalIndex >= 1 lives at offset logicalIndex-1 inside the indirect
// block. This off-by-one indexing is carried over from the original
// source unchanged (spec §9(c)).
type blockMapper struct {
	fs *FileSystem
}

func (b *blockMapper) capacity() uint64 {
	return slotsPerIndirectBlock(b.fs.super.sb.BlockSize)
}

// getPhysicalBlock resolves logicalIndex within ino's data to a physical
// block number, allocating new blocks along the way when create is true.
// On any create path, allocation happens strictly before the owning
// pointer (inode or indirect-block slot) is written, per the crash-ordering
// discipline in spec §4.7 — a crash between the two leaks a block but never
// corrupts a parent directory or a cached indirect buffer.
func (b *blockMapper) getPhysicalBlock(ino *Inode, logicalIndex uint64, create bool) (uint64, error) {
	if logicalIndex > b.capacity() {
		return 0, fmt.Errorf("simplefs: logical block %d: %w", logicalIndex, ErrFileTooLarge)
	}

	if logicalIndex == 0 {
		return b.directBlock(ino, create)
	}
	return b.indirectBlock(ino, logicalIndex-1, create)
}

func (b *blockMapper) directBlock(ino *Inode, create bool) (uint64, error) {
	if ino.DataBlockNumber != 0 {
		return ino.DataBlockNumber, nil
	}
	if !create {
		return 0, fmt.Errorf("simplefs: %w", ErrNotFound)
	}

	blockNo, err := b.fs.super.allocateDataBlock(1)
	if err != nil {
		return 0, err
	}
	ino.DataBlockNumber = blockNo
	if err := b.fs.inodes.write(ino.InodeNo, ino); err != nil {
		return 0, err
	}
	return blockNo, nil
}

func (b *blockMapper) indirectBlock(ino *Inode, slot uint64, create bool) (uint64, error) {
	if ino.IndirectBlockNumber == 0 {
		if !create {
			return 0, fmt.Errorf("simplefs: %w", ErrNotFound)
		}
		indBlock, err := b.fs.super.allocateDataBlock(1)
		if err != nil {
			return 0, err
		}
		ino.IndirectBlockNumber = indBlock
		if err := b.fs.inodes.write(ino.InodeNo, ino); err != nil {
			return 0, err
		}
	}

	h, err := b.fs.cache.get(ino.IndirectBlockNumber)
	if err != nil {
		return 0, err
	}
	off := int(slot) * 8
	existing := b.fs.order.Uint64(h.data[off : off+8])
	if existing != 0 {
		return existing, nil
	}
	if !create {
		return 0, fmt.Errorf("simplefs: %w", ErrNotFound)
	}

	blockNo, err := b.fs.super.allocateDataBlock(1)
	if err != nil {
		return 0, err
	}
	b.fs.order.PutUint64(h.data[off:off+8], blockNo)
	b.fs.cache.markDirty(h)
	return blockNo, nil
}
