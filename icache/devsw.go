// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package icache

import "sync"

// NDev is the size of the device driver table (spec §9 "cyclic and
// dynamic dispatch"): device inodes fan out to devsw[major] by index,
// never by runtime method dispatch.
const NDev = 16

// DevRW is the pair of capability functions a device major registers.
// Either may be nil if the device is write-only or read-only.
type DevRW struct {
	Read  func(ip *Ino, dst []byte) (int, error)
	Write func(ip *Ino, src []byte) (int, error)
}

// DevTable is a static table of device drivers, indexed by major
// number. Drivers register themselves at init; there is no runtime
// lookup beyond the index.
type DevTable struct {
	mu    sync.RWMutex
	table [NDev]*DevRW
}

// NewDevTable returns an empty device driver table.
func NewDevTable() *DevTable {
	return &DevTable{}
}

// Register installs d as the driver for major. Panics if major is out
// of range, matching the rest of this package's corruption-assert
// policy for programmer errors rather than runtime data errors.
func (t *DevTable) Register(major uint16, d DevRW) {
	if int(major) >= NDev {
		panic("icache: devsw: major out of range")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.table[major] = &d
}

// Lookup returns the driver for major, or nil if none is registered
// or major is out of range (a soft failure per spec §7, not a panic:
// a missing driver is reachable by opening a device inode whose major
// never registered).
func (t *DevTable) Lookup(major uint16) *DevRW {
	if int(major) >= NDev {
		return nil
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.table[major]
}
