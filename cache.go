package simplefs

import (
	"sync"
	"sync/atomic"
)

// Buffer Cache: block number -> reference-counted buffer with a dirty flag.
// No eviction: every fetched block stays resident for the life of the mount,
// which is safe for the small metadata-and-data images this library targets
// and trivially satisfies "must not evict a dirty buffer without writing it"
// (spec §4.2) by never evicting at all.

type bufferHandle struct {
	blockNo uint64
	data    []byte
	dirty   bool
	refcnt  int32
}

// AddRef mirrors the teacher's Inode.refcnt discipline (squashfs's Inode
// uses atomic.AddUint64 on a refcnt field for FUSE lifetime tracking). No
// File or directory walk in this package calls AddRef/DelRef, and the cache
// never evicts, so nothing reads the count.
func (h *bufferHandle) AddRef() {
	atomic.AddInt32(&h.refcnt, 1)
}

func (h *bufferHandle) DelRef() {
	atomic.AddInt32(&h.refcnt, -1)
}

type bufferCache struct {
	mu  sync.Mutex
	dev *BlockDevice
	buf map[uint64]*bufferHandle
}

func newBufferCache(dev *BlockDevice) *bufferCache {
	return &bufferCache{dev: dev, buf: make(map[uint64]*bufferHandle)}
}

// get returns the cached buffer for blockNo, reading it from the device on
// first access.
func (c *bufferCache) get(blockNo uint64) (*bufferHandle, error) {
	c.mu.Lock()
	if h, ok := c.buf[blockNo]; ok {
		c.mu.Unlock()
		return h, nil
	}
	c.mu.Unlock()

	data, err := c.dev.ReadBlock(blockNo)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.buf[blockNo]; ok {
		// lost the race with another reader of the same block
		return h, nil
	}
	h := &bufferHandle{blockNo: blockNo, data: data}
	c.buf[blockNo] = h
	return h, nil
}

// markDirty flags a buffer for write-back.
func (c *bufferCache) markDirty(h *bufferHandle) {
	c.mu.Lock()
	h.dirty = true
	c.mu.Unlock()
}

// syncOne writes back blockNo if dirty and clears its dirty flag.
func (c *bufferCache) syncOne(blockNo uint64) error {
	c.mu.Lock()
	h, ok := c.buf[blockNo]
	c.mu.Unlock()
	if !ok || !h.dirty {
		return nil
	}
	if err := c.dev.WriteBlock(blockNo, h.data); err != nil {
		return err
	}
	c.mu.Lock()
	h.dirty = false
	c.mu.Unlock()
	return nil
}

// syncAll writes back every dirty buffer, in unspecified order. Callers that
// need the inode-table-then-bitmaps-then-superblock ordering of spec §4.5
// must call syncOne explicitly in that order instead; syncAll exists for the
// general-purpose Sync() path once that explicit ordering is done.
func (c *bufferCache) syncAll() error {
	c.mu.Lock()
	blocks := make([]uint64, 0, len(c.buf))
	for n, h := range c.buf {
		if h.dirty {
			blocks = append(blocks, n)
		}
	}
	c.mu.Unlock()

	for _, n := range blocks {
		if err := c.syncOne(n); err != nil {
			return err
		}
	}
	return nil
}
