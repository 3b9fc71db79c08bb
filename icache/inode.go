// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package icache implements the bounded, concurrent in-memory inode
// cache (spec §4.2, C3) and the inode-contents operations layered on
// top of it (spec §4.3, C4): logical-to-physical block mapping,
// read, write and truncate.
package icache

import (
	"sync"
	"sync/atomic"

	"github.com/jacobsa/syncutil"

	"github.com/gokernel/fscore/param"
)

type flags uint8

const (
	flagValid flags = 1 << iota
	flagBusyR
	flagBusyW
	flagFree
)

// Ino is the in-memory copy of a dinode (spec §3 "In-memory inode").
//
// Locking discipline (spec §5): fl/readbusy are GUARDED_BY(mu); ref is
// changed only through sync/atomic, because Iget's hit path bumps it
// outside mu; the logical lock (BUSYR/BUSYW) guards Gen/Type/Major/
// Minor/Nlink/Size/Addrs. Inum is fixed when the entry is created and
// is safe to read without any lock.
type Ino struct {
	Inum int32 // stable for the entry's lifetime; negative for blank placeholder slots

	mu syncutil.InvariantMutex
	cv *sync.Cond

	ref      int32 // atomic: read and written via sync/atomic only
	fl       flags // GUARDED_BY(mu)
	readbusy int32 // GUARDED_BY(mu)

	// GUARDED_BY(logical lock: Cache.Ilock/Cache.Iunlock)
	Gen   uint32
	Type  uint16
	Major uint16
	Minor uint16
	Nlink uint16
	Size  uint32
	Addrs [param.NDIRECT + 1]uint32
}

func newIno(inum int32) *Ino {
	ip := &Ino{Inum: inum}
	ip.mu = syncutil.NewInvariantMutex(ip.checkInvariants)
	ip.cv = sync.NewCond(&ip.mu)
	return ip
}

// checkInvariants re-asserts spec §8 invariant 2 on every lock/unlock
// of the per-entry mutex: BUSYW implies exactly one writer's worth of
// readbusy and BUSYR; BUSYR implies readbusy >= 1.
func (ip *Ino) checkInvariants() {
	if ip.fl&flagBusyW != 0 && (ip.readbusy != 1 || ip.fl&flagBusyR == 0) {
		panic("icache: invariant violated: BUSYW without readbusy==1 && BUSYR")
	}
	if ip.fl&flagBusyR != 0 && ip.readbusy < 1 {
		panic("icache: invariant violated: BUSYR without readbusy>=1")
	}
	if atomic.LoadInt32(&ip.ref) < 0 {
		panic("icache: invariant violated: ref < 0")
	}
}

// Ref returns the entry's current reference count. Exposed for tests
// and for callers that need to observe it, per spec §9's note that
// ref is a cross-module contract, not purely internal bookkeeping.
func (ip *Ino) Ref() int32 {
	return atomic.LoadInt32(&ip.ref)
}

// Stat is the stable metadata snapshot returned by Cache.Stati.
type Stat struct {
	Inum  uint32
	Type  uint16
	Nlink uint16
	Size  uint32
}
