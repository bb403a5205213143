package simplefs

import (
	"errors"
	"fmt"
)

// Directory Engine: variable-length directory records packed with no
// padding inside a directory's data block(s) (spec §4.8). A record's
// on-disk length is 8 (inode_no) + 1 (name_len) + name_len bytes. A record
// with inode_no == 0 marks the unused tail of a block, with no separate
// per-block record count. Newly allocated directory blocks are not zeroed
// here or by Format (which zeroes only the metadata region), so the sentinel
// holds where the device's unwritten data blocks read as zero, as in a
// freshly created or truncated image file.
const dirRecordHeaderSize = 8 + 1

// DirEntry is one (name, inode number) pair yielded by Readdir.
type DirEntry struct {
	Name    string
	InodeNo uint64
}

func encodeDirRecord(order byteOrderPutter, inodeNo uint64, name string) []byte {
	rec := make([]byte, dirRecordHeaderSize+len(name))
	order.PutUint64(rec[0:8], inodeNo)
	rec[8] = byte(len(name))
	copy(rec[9:], name)
	return rec
}

// byteOrderPutter is the subset of binary.ByteOrder the directory-record
// codec needs; both binary.LittleEndian and binary.BigEndian satisfy it.
type byteOrderPutter interface {
	PutUint64([]byte, uint64)
	Uint64([]byte) uint64
}

type dirEngine struct {
	fs *FileSystem
}

// errStopIteration is a sentinel used to end a walk early without it being
// reported as a real failure.
var errStopIteration = errors.New("simplefs: stop directory iteration")

// forEachBlock walks dirIno's logical data blocks in order, stopping at the
// first unmapped one, and invokes fn with each block's cached bytes.
func (d *dirEngine) forEachBlock(dirIno *Inode, fn func(blockNo uint64, data []byte) error) error {
	for logical := uint64(0); ; logical++ {
		blockNo, err := d.fs.blockmap.getPhysicalBlock(dirIno, logical, false)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		h, err := d.fs.cache.get(blockNo)
		if err != nil {
			return err
		}
		if err := fn(blockNo, h.data); err != nil {
			if err == errStopIteration {
				return nil
			}
			return err
		}
	}
}

// walkRecords invokes fn for each record in data, in order, until the
// zero-inode sentinel or the block's end. fn returning errStopIteration ends
// the walk without that being treated as an error.
func walkRecords(data []byte, order byteOrderPutter, fn func(inodeNo uint64, name string, offset int) error) error {
	offset := 0
	for offset+dirRecordHeaderSize <= len(data) {
		inodeNo := order.Uint64(data[offset : offset+8])
		if inodeNo == 0 {
			return nil
		}
		nameLen := int(data[offset+8])
		end := offset + dirRecordHeaderSize + nameLen
		if end > len(data) {
			return nil
		}
		name := string(data[offset+dirRecordHeaderSize : end])
		if err := fn(inodeNo, name, offset); err != nil {
			return err
		}
		offset = end
	}
	return nil
}

// firstFreeOffset scans data for the zero-inode sentinel and returns its
// byte offset, or -1 if the block is entirely full of live records.
func firstFreeOffset(data []byte, order byteOrderPutter) int {
	offset := 0
	for offset+dirRecordHeaderSize <= len(data) {
		inodeNo := order.Uint64(data[offset : offset+8])
		if inodeNo == 0 {
			return offset
		}
		nameLen := int(data[offset+8])
		offset += dirRecordHeaderSize + nameLen
	}
	return -1
}

// lookup returns the first child inode number recorded under name.
func (d *dirEngine) lookup(dirIno *Inode, name string) (uint64, error) {
	var found uint64
	err := d.forEachBlock(dirIno, func(_ uint64, data []byte) error {
		return walkRecords(data, d.fs.order, func(inodeNo uint64, recName string, _ int) error {
			if recName == name {
				found = inodeNo
				return errStopIteration
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	if found == 0 {
		return 0, fmt.Errorf("simplefs: lookup %q: %w", name, ErrNotFound)
	}
	return found, nil
}

// iterate returns every (name, inode number) pair in insertion order.
func (d *dirEngine) iterate(dirIno *Inode) ([]DirEntry, error) {
	var entries []DirEntry
	err := d.forEachBlock(dirIno, func(_ uint64, data []byte) error {
		return walkRecords(data, d.fs.order, func(inodeNo uint64, name string, _ int) error {
			entries = append(entries, DirEntry{Name: name, InodeNo: inodeNo})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// insert appends a new record to dirIno's data, allocating a fresh block
// when every existing block is full. Callers must hold dir_update_lock.
func (d *dirEngine) insert(dirIno *Inode, name string, childInodeNo uint64) error {
	if len(name) == 0 || len(name) > 255 {
		return fmt.Errorf("simplefs: insert %q: %w", name, ErrNameTooLong)
	}
	if _, err := d.lookup(dirIno, name); err == nil {
		return fmt.Errorf("simplefs: insert %q: %w", name, ErrAlreadyExists)
	}

	record := encodeDirRecord(d.fs.order, childInodeNo, name)
	blockSize := int(d.fs.super.sb.BlockSize)
	maxLogical := d.fs.blockmap.capacity() + 1

	for logical := uint64(0); logical <= maxLogical; logical++ {
		blockNo, err := d.fs.blockmap.getPhysicalBlock(dirIno, logical, true)
		if err != nil {
			return err
		}
		h, err := d.fs.cache.get(blockNo)
		if err != nil {
			return err
		}

		free := firstFreeOffset(h.data, d.fs.order)
		if free >= 0 && free+len(record) <= blockSize {
			copy(h.data[free:], record)
			d.fs.cache.markDirty(h)
			dirIno.Size++
			return d.fs.inodes.write(dirIno.InodeNo, dirIno)
		}
	}
	return fmt.Errorf("simplefs: insert %q: %w", name, ErrNoSpace)
}
