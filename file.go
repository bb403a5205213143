package simplefs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"time"
)

// File is an open handle on a regular-file inode, providing random-access
// Read/Write over its direct and indirect data blocks (spec §4.7). It holds
// no OS-level file descriptor of its own; all I/O goes through the owning
// FileSystem's buffer cache.
type File struct {
	fs   *FileSystem
	ino  *Inode
	name string
}

// fileinfo adapts an Inode to fs.FileInfo for Stat-like callers, including
// simplefsctl's listing command.
type fileinfo struct {
	ino  *Inode
	name string
}

var _ fs.FileInfo = (*fileinfo)(nil)

func (fi *fileinfo) Name() string { return fi.name }
func (fi *fileinfo) Size() int64  { return int64(fi.ino.Size) }

// Mode reports only the two inode kinds this filesystem ever writes
// (spec §1 excludes symlinks, device nodes, and sockets), so there is no
// general IFMT table to walk: a directory gets fs.ModeDir, everything else
// is a regular file, both carrying their stored permission bits.
func (fi *fileinfo) Mode() fs.FileMode {
	perm := fs.FileMode(fi.ino.Mode & 0777)
	if fi.ino.IsDir() {
		return perm | fs.ModeDir
	}
	return perm
}
func (fi *fileinfo) ModTime() time.Time { return time.Unix(0, int64(fi.ino.MTime)) }
func (fi *fileinfo) IsDir() bool        { return fi.ino.IsDir() }
func (fi *fileinfo) Sys() any           { return fi.ino }

// Stat returns file metadata for the open handle.
func (f *File) Stat() (fs.FileInfo, error) {
	return &fileinfo{name: path.Base(f.name), ino: f.ino}, nil
}

// Close is a no-op: File holds no OS resources of its own, since all
// buffers live in the FileSystem's shared cache.
func (f *File) Close() error {
	return nil
}

// ReadAt reads len(p) bytes from the file starting at off, per io.ReaderAt.
// A read that reaches past the recorded Size returns the bytes before Size
// and io.EOF (a read starting at or past Size returns 0, io.EOF). Blocks
// inside Size that were never allocated read as zeros, like a sparse file's
// holes.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("simplefs: read %q at %d: %w", f.name, off, ErrInvalid)
	}
	blockSize := int64(f.fs.super.sb.BlockSize)
	total := 0
	for total < len(p) {
		pos := off + int64(total)
		if pos >= int64(f.ino.Size) {
			break
		}
		logical := uint64(pos / blockSize)
		inBlock := int(pos % blockSize)

		blockNo, err := f.fs.blockmap.getPhysicalBlock(f.ino, logical, false)
		n := len(p) - total
		if n > int(blockSize)-inBlock {
			n = int(blockSize) - inBlock
		}
		if remain := int64(f.ino.Size) - pos; int64(n) > remain {
			n = int(remain)
		}

		switch {
		case err == nil:
			h, gerr := f.fs.cache.get(blockNo)
			if gerr != nil {
				return total, gerr
			}
			copy(p[total:total+n], h.data[inBlock:inBlock+n])
		case errors.Is(err, ErrNotFound):
			// unwritten hole: reads as zero.
			for i := 0; i < n; i++ {
				p[total+i] = 0
			}
		default:
			return total, err
		}
		total += n
	}
	if total < len(p) {
		return total, io.EOF
	}
	return total, nil
}

// WriteAt writes len(p) bytes at off, allocating new blocks as needed and
// extending Size when the write reaches past the current end of file. The
// updated inode is written into the cached inode-table block before WriteAt
// returns; it reaches the device on the next Sync or Close.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("simplefs: write %q at %d: %w", f.name, off, ErrInvalid)
	}
	blockSize := int64(f.fs.super.sb.BlockSize)
	total := 0
	for total < len(p) {
		pos := off + int64(total)
		logical := uint64(pos / blockSize)
		inBlock := int(pos % blockSize)

		blockNo, err := f.fs.blockmap.getPhysicalBlock(f.ino, logical, true)
		if err != nil {
			return total, err
		}
		h, err := f.fs.cache.get(blockNo)
		if err != nil {
			return total, err
		}

		n := len(p) - total
		if n > int(blockSize)-inBlock {
			n = int(blockSize) - inBlock
		}
		copy(h.data[inBlock:inBlock+n], p[total:total+n])
		f.fs.cache.markDirty(h)
		total += n
	}

	if newSize := uint64(off) + uint64(total); newSize > f.ino.Size {
		f.ino.Size = newSize
	}
	f.ino.MTime = nowNanos()
	if err := f.fs.inodes.write(f.ino.InodeNo, f.ino); err != nil {
		return total, err
	}
	return total, nil
}
