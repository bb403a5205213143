package simplefs

// On-disk layout constants and the derived-capacity arithmetic used by the
// formatter and by mount to recompute region boundaries from a stored
// superblock. Mirrors the fixed-layout math in original_source/mkfs-simplefs.c
// (DEFAULT_PERC_INODES, the region-by-region block accounting) but expressed
// against a SuperBlock value instead of raw locals.

const (
	// MagicNumber identifies a SimpleFS superblock.
	MagicNumber uint64 = 0x10032013

	// DefaultBlockSize is the only block size this implementation accepts.
	DefaultBlockSize uint32 = 4096

	// InodeRecordSize is the on-disk size, in bytes, of one packed Inode record.
	InodeRecordSize = 56

	// DefaultInodePercent is the fraction of total blocks reserved for inodes
	// when a caller does not specify a policy, matching the original
	// formatter's DEFAULT_PERC_INODES.
	DefaultInodePercent = 10

	// RootInodeNumber is the fixed inode number of the root directory.
	RootInodeNumber uint64 = 1

	// WelcomeInodeNumber is the fixed inode number of the formatter's sample file.
	WelcomeInodeNumber uint64 = 2

	welcomeFileName = "vanakkam"
	welcomeFileBody = "Love is God. God is Love. Anbe Murugan.\n"
)

// inodesPerBlock returns how many packed inode records fit in one block.
func inodesPerBlock(blockSize uint32) uint64 {
	return uint64(blockSize) / InodeRecordSize
}

// bitsPerBlock returns how many bitmap bits one block holds.
func bitsPerBlock(blockSize uint32) uint64 {
	return uint64(blockSize) * 8
}

// slotsPerIndirectBlock returns how many u64 block pointers fit in one
// indirect block.
func slotsPerIndirectBlock(blockSize uint32) uint64 {
	return uint64(blockSize) / 8
}

// ceilDiv computes ceil(a/b) for non-negative integers, returning 0 when a is 0.
func ceilDiv(a, b uint64) uint64 {
	if a == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// layout holds the region boundaries derived from a SuperBlock. Format builds
// it with computeLayout and Mount rebuilds the same boundaries from the stored
// offsets; at mount, maxInodes is the inode region's full slot capacity,
// which can be larger than the count Format was given.
type layout struct {
	inodeRegionBlocks uint64
	inodeBitmapBlocks uint64
	blockBitmapBlocks uint64

	inodeBlockStart   uint64
	inodeBitmapStart  uint64
	blockBitmapStart  uint64
	dataBlockStart    uint64
	maxInodes         uint64
	maxDataBlocks     uint64
}

// computeLayout derives region boundaries for a device of nrBlocks blocks
// reserving maxInodes inode slots, using the fixed region ordering from
// spec §6: superblock, inode table, inode bitmap, block bitmap, data.
func computeLayout(blockSize uint32, nrBlocks, maxInodes uint64) layout {
	l := layout{maxInodes: maxInodes}
	l.inodeRegionBlocks = ceilDiv(maxInodes, inodesPerBlock(blockSize))
	l.inodeBitmapBlocks = ceilDiv(maxInodes, bitsPerBlock(blockSize))
	l.blockBitmapBlocks = ceilDiv(nrBlocks, bitsPerBlock(blockSize))

	l.inodeBlockStart = 1
	l.inodeBitmapStart = l.inodeBlockStart + l.inodeRegionBlocks
	l.blockBitmapStart = l.inodeBitmapStart + l.inodeBitmapBlocks
	l.dataBlockStart = l.blockBitmapStart + l.blockBitmapBlocks

	if nrBlocks > l.dataBlockStart {
		l.maxDataBlocks = nrBlocks - l.dataBlockStart
	}
	return l
}
