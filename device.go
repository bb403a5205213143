package simplefs

import (
	"fmt"
	"io"
	"os"
)

// backingStore is the minimal contract a BlockDevice needs from whatever
// holds the bytes: a real file, or (in tests) an in-memory stand-in built
// the way the teacher's mock_test.go builds a mockReader over a byte slice.
type backingStore interface {
	io.ReaderAt
	io.WriterAt
	Sync() error
	Close() error
}

// BlockDevice is typed, fixed-size-block I/O over a seekable byte-addressed
// backing store. Reads return an owned buffer; writes are block-granular.
type BlockDevice struct {
	store     backingStore
	blockSize uint32
	sizeBytes int64
}

// OpenBlockDevice opens path for read/write and wraps it as a BlockDevice.
// The device's block count is derived from the file's current size.
func OpenBlockDevice(path string, blockSize uint32) (*BlockDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("simplefs: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("simplefs: stat %s: %w", path, err)
	}
	return &BlockDevice{store: f, blockSize: blockSize, sizeBytes: info.Size()}, nil
}

// NewBlockDevice wraps an already-open backing store of a known byte size,
// used by tests and by Format's newly truncated file.
func NewBlockDevice(store backingStore, blockSize uint32, sizeBytes int64) *BlockDevice {
	return &BlockDevice{store: store, blockSize: blockSize, sizeBytes: sizeBytes}
}

// SizeInBlocks returns the device's total block count.
func (d *BlockDevice) SizeInBlocks() uint64 {
	return uint64(d.sizeBytes) / uint64(d.blockSize)
}

// ReadBlock reads block n into a freshly allocated, block-sized buffer.
func (d *BlockDevice) ReadBlock(n uint64) ([]byte, error) {
	if n >= d.SizeInBlocks() {
		return nil, fmt.Errorf("simplefs: read block %d: %w", n, ErrOutOfRange)
	}
	buf := make([]byte, d.blockSize)
	off := int64(n) * int64(d.blockSize)
	if _, err := d.store.ReadAt(buf, off); err != nil && err != io.EOF {
		return nil, fmt.Errorf("simplefs: read block %d: %w: %w", n, ErrIo, err)
	}
	return buf, nil
}

// WriteBlock writes a block-sized buffer to block n.
func (d *BlockDevice) WriteBlock(n uint64, buf []byte) error {
	if n >= d.SizeInBlocks() {
		return fmt.Errorf("simplefs: write block %d: %w", n, ErrOutOfRange)
	}
	if len(buf) != int(d.blockSize) {
		return fmt.Errorf("simplefs: write block %d: %w", n, ErrInvalid)
	}
	off := int64(n) * int64(d.blockSize)
	if _, err := d.store.WriteAt(buf, off); err != nil {
		return fmt.Errorf("simplefs: write block %d: %w: %w", n, ErrIo, err)
	}
	return nil
}

// Sync flushes the backing store.
func (d *BlockDevice) Sync() error {
	if err := d.store.Sync(); err != nil {
		return fmt.Errorf("simplefs: sync: %w: %w", ErrIo, err)
	}
	return nil
}

// Close closes the backing store.
func (d *BlockDevice) Close() error {
	return d.store.Close()
}
