// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package disk

import (
	"fmt"
	"sync"

	"github.com/gokernel/fscore/param"
)

// Buf is a locked view of one disk block, held across a single
// bread...brelse scope (spec §6 "buffer cache API consumed").
type Buf struct {
	blockno uint32
	mu      *sync.RWMutex
	write   bool

	// Data is the block's contents, valid only between bread and the
	// matching brelse.
	Data [param.BSIZE]byte
}

// BufCache serialises access to a Device one block at a time:
// bread(_, _, writeintent=true) takes the block's write lock, any
// other inflight bread on the *same* block blocks behind it, while
// bread on a disjoint block proceeds independently (spec §4.1's
// "per-bitmap-block serialisability" contract, generalised to every
// block this layer touches).
type BufCache struct {
	dev Device

	mu   sync.Mutex
	locks map[uint32]*sync.RWMutex
}

// NewBufCache wraps dev with per-block locking.
func NewBufCache(dev Device) *BufCache {
	return &BufCache{dev: dev, locks: make(map[uint32]*sync.RWMutex)}
}

func (c *BufCache) lockFor(b uint32) *sync.RWMutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[b]
	if !ok {
		l = &sync.RWMutex{}
		c.locks[b] = l
	}
	return l
}

// Bread reads block b, returning it locked shared (writeintent=false)
// or exclusive (writeintent=true). The lock is released by Brelse.
func (c *BufCache) Bread(b uint32, writeintent bool) (*Buf, error) {
	if b >= c.dev.NumBlocks() {
		return nil, fmt.Errorf("disk: bread block %d out of range (%d blocks)", b, c.dev.NumBlocks())
	}
	l := c.lockFor(b)
	if writeintent {
		l.Lock()
	} else {
		l.RLock()
	}
	buf := &Buf{blockno: b, mu: l, write: writeintent}
	if err := c.dev.ReadBlock(b, buf.Data[:]); err != nil {
		c.unlock(buf)
		return nil, err
	}
	return buf, nil
}

// Bwrite flushes buf's contents to the device. Caller must hold buf
// with writeintent (spec §6).
func (c *BufCache) Bwrite(buf *Buf) error {
	return c.dev.WriteBlock(buf.blockno, buf.Data[:])
}

// Brelse releases the lock acquired by Bread. writeintent must match
// the value passed to the corresponding Bread.
func (c *BufCache) Brelse(buf *Buf, writeintent bool) {
	if writeintent != buf.write {
		panic("disk: brelse writeintent mismatch")
	}
	c.unlock(buf)
}

func (c *BufCache) unlock(buf *Buf) {
	if buf.write {
		buf.mu.Unlock()
	} else {
		buf.mu.RUnlock()
	}
}
