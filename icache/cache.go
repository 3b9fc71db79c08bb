// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package icache

import (
	"fmt"
	"sync/atomic"

	"github.com/gokernel/fscore/disk"
	"github.com/gokernel/fscore/param"
	"github.com/gokernel/fscore/reclaim"
	"github.com/gokernel/fscore/super"
)

// Cache is the bounded, concurrent inode cache of spec §4.2: a fixed
// capacity of param.NINODE entries, pre-populated at construction with
// blank placeholder entries so the eviction machinery is exercised
// from the very first miss (spec §4.2 "Sizing").
type Cache struct {
	bc    *disk.BufCache
	sb    *super.Superblock
	Devsw *DevTable

	index *reclaim.Index[*Ino]
}

// New builds an inode cache of fixed capacity param.NINODE over bc/sb.
func New(bc *disk.BufCache, sb *super.Superblock) *Cache {
	c := &Cache{
		bc:    bc,
		sb:    sb,
		Devsw: NewDevTable(),
		index: reclaim.NewIndex[*Ino](),
	}
	for i := 0; i < param.NINODE; i++ {
		placeholder := newIno(int32(-i - 1))
		placeholder.fl = flagValid // blank entries need no disk load
		if !c.index.Insert(placeholder.Inum, placeholder) {
			panic("icache: duplicate placeholder slot")
		}
	}
	return c
}

// Iget returns a referenced, unlocked in-memory inode for inum (spec
// §4.2 "Lookup protocol"). It retries internally across admission and
// eviction races; those retries are not observable as errors.
func (c *Cache) Iget(inum uint32) *Ino {
	key := int32(inum)

	for {
		if ip, ok := c.index.Lookup(key); ok {
			// Tricky ordering: bump ref before inspecting FREE, so a
			// concurrent evictor that has already set FREE but not yet
			// removed the entry from the index cannot resurrect it
			// silently — we detect the race and retry instead.
			atomic.AddInt32(&ip.ref, 1)

			ip.mu.Lock()
			free := ip.fl&flagFree != 0
			ip.mu.Unlock()
			if free {
				atomic.AddInt32(&ip.ref, -1)
				continue
			}

			ip.mu.Lock()
			for ip.fl&flagValid == 0 {
				ip.cv.Wait()
			}
			ip.mu.Unlock()
			return ip
		}

		// Miss: find a victim with ref==0, evicting it from the index.
		victim := c.evictVictim()

		fresh := newIno(key)
		fresh.ref = 1
		fresh.fl = flagBusyR | flagBusyW
		fresh.readbusy = 1

		if !c.index.Insert(key, fresh) {
			// Another thread raced the miss and admitted key first.
			// Put the victim's slot back rather than leaking it: a
			// failed insert here must not shrink the cache below
			// param.NINODE entries.
			victim.mu.Lock()
			victim.fl &^= flagFree
			victim.mu.Unlock()
			if !c.index.Insert(victim.Inum, victim) {
				panic("icache: iget: lost victim reinsertion race")
			}
			continue
		}

		buf, err := c.bc.Bread(param.IBlock(inum), false)
		if err != nil {
			panic(fmt.Sprintf("icache: iget: %v", err))
		}
		decodeDinode(buf, inum, fresh)
		c.bc.Brelse(buf, false)

		fresh.mu.Lock()
		fresh.fl |= flagValid
		fresh.mu.Unlock()

		c.Iunlock(fresh)
		return fresh
	}
}

// evictVictim selects and removes from the index the first cache
// entry with ref==0 (spec §4.2 steps 3-4). Panics — cache saturation
// is fatal — if every entry is referenced.
func (c *Cache) evictVictim() *Ino {
	for {
		victim, ok := c.index.Enumerate(func(v *Ino) bool {
			v.mu.Lock()
			if atomic.LoadInt32(&v.ref) == 0 {
				return true // left locked for the caller
			}
			v.mu.Unlock()
			return false
		})
		if !ok {
			panic("icache: iget: cache saturated")
		}

		// Mark FREE before re-checking ref: a concurrent Iget hit may
		// have raced between Enumerate's check and here.
		victim.fl |= flagFree
		if atomic.LoadInt32(&victim.ref) > 0 {
			victim.fl &^= flagFree
			victim.mu.Unlock()
			continue
		}
		victim.mu.Unlock()
		c.index.Remove(victim.Inum)
		return victim
	}
}

// Idup increments ip's reference count.
func (c *Cache) Idup(ip *Ino) *Ino {
	atomic.AddInt32(&ip.ref, 1)
	return ip
}

// Ilock acquires the logical reader/writer lock over ip's
// Type/Major/Minor/Nlink/Size/Addrs fields (spec §4.2 "Locking").
func (c *Cache) Ilock(ip *Ino, writer bool) {
	if atomic.LoadInt32(&ip.ref) < 1 {
		panic("icache: ilock: ref < 1")
	}

	ip.mu.Lock()
	for ip.fl&flagBusyW != 0 || (writer && ip.fl&flagBusyR != 0) {
		ip.cv.Wait()
	}
	ip.fl |= flagBusyR
	if writer {
		ip.fl |= flagBusyW
	}
	ip.readbusy++
	ip.mu.Unlock()

	if ip.fl&flagValid == 0 {
		panic("icache: ilock: not valid")
	}
}

// Iunlock releases the lock acquired by Ilock.
func (c *Cache) Iunlock(ip *Ino) {
	if atomic.LoadInt32(&ip.ref) < 1 {
		panic("icache: iunlock: ref < 1")
	}

	ip.mu.Lock()
	if ip.fl&(flagBusyR|flagBusyW) == 0 {
		ip.mu.Unlock()
		panic("icache: iunlock: not locked")
	}
	ip.readbusy--
	ip.fl &^= flagBusyW
	if ip.readbusy == 0 {
		ip.fl &^= flagBusyR
	}
	ip.cv.Broadcast()
	ip.mu.Unlock()
}

// IunlockPut is the common unlock-then-drop idiom.
func (c *Cache) IunlockPut(ip *Ino) {
	c.Iunlock(ip)
	c.Iput(ip)
}

// Iput drops a reference. On the last reference to an inode with
// Nlink==0, the inode is truncated and freed on disk (spec §4.2
// "Release").
func (c *Cache) Iput(ip *Ino) {
	if atomic.AddInt32(&ip.ref, -1) != 0 {
		return
	}

	ip.mu.Lock()
	// Safe to read Nlink here without the logical lock: by the time
	// ref reaches zero no other caller holds a reference through which
	// Nlink could change concurrently (fs.c does the same).
	if atomic.LoadInt32(&ip.ref) == 0 && ip.Nlink == 0 {
		if ip.fl&(flagBusyR|flagBusyW) != 0 {
			ip.mu.Unlock()
			panic("icache: iput: busy")
		}
		if ip.fl&flagValid == 0 {
			ip.mu.Unlock()
			panic("icache: iput: not valid")
		}
		ip.fl |= flagBusyR | flagBusyW
		ip.readbusy++
		ip.mu.Unlock()

		c.itrunc(ip)
		ip.Type, ip.Major, ip.Minor = 0, 0, 0
		ip.Gen++
		c.Iupdate(ip)

		ip.mu.Lock()
		ip.fl &^= (flagBusyR | flagBusyW)
		ip.readbusy--
		ip.cv.Broadcast()
	}
	ip.mu.Unlock()
}

// Ialloc allocates a fresh on-disk inode of the given type, returning
// it locked exclusively (spec §4.2 "On-disk allocation").
func (c *Cache) Ialloc(typ uint16) *Ino {
	for inum := uint32(1); inum < c.sb.NInodes; inum++ {
		buf, err := c.bc.Bread(param.IBlock(inum), false)
		if err != nil {
			panic(fmt.Sprintf("icache: ialloc: %v", err))
		}
		seemsFree := dinodeType(buf, inum) == 0
		c.bc.Brelse(buf, false)
		if !seemsFree {
			continue
		}

		ip := c.Iget(inum)
		c.Ilock(ip, true)
		if ip.Type == 0 {
			ip.Type = typ
			ip.Gen++
			if ip.Nlink != 0 || ip.Size != 0 || ip.Addrs[0] != 0 {
				panic("icache: ialloc: not zeroed")
			}
			c.Iupdate(ip)
			return ip
		}
		c.IunlockPut(ip)
	}
	panic("icache: ialloc: no free inodes")
}

// Iupdate writes ip's in-memory metadata to disk. Caller holds ip
// exclusively.
func (c *Cache) Iupdate(ip *Ino) {
	buf, err := c.bc.Bread(param.IBlock(uint32(ip.Inum)), true)
	if err != nil {
		panic(fmt.Sprintf("icache: iupdate: %v", err))
	}
	encodeDinode(buf, uint32(ip.Inum), ip)
	if err := c.bc.Bwrite(buf); err != nil {
		panic(fmt.Sprintf("icache: iupdate: %v", err))
	}
	c.bc.Brelse(buf, true)
}

// Stati copies ip's stable metadata. Caller needs only ref(ip) >= 1,
// matching fs.c's unlocked stati.
func (c *Cache) Stati(ip *Ino) Stat {
	return Stat{
		Inum:  uint32(ip.Inum),
		Type:  ip.Type,
		Nlink: ip.Nlink,
		Size:  ip.Size,
	}
}
