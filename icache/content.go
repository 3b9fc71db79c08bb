// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package icache

import (
	"encoding/binary"
	"fmt"

	"github.com/gokernel/fscore/alloc"
	"github.com/gokernel/fscore/param"
)

// Bmap returns the disk block address of the n'th logical block of
// ip, allocating it on first access (spec §4.3). Caller must hold ip
// exclusively whenever Bmap may need to allocate.
func (c *Cache) Bmap(ip *Ino, n uint32) uint32 {
	if n < param.NDIRECT {
		if ip.Addrs[n] == 0 {
			ip.Addrs[n] = alloc.Balloc(c.bc, c.sb)
		}
		return ip.Addrs[n]
	}
	n -= param.NDIRECT

	if n < param.NINDIRECT {
		if ip.Addrs[param.NDIRECT] == 0 {
			ip.Addrs[param.NDIRECT] = alloc.Balloc(c.bc, c.sb)
		}
		buf, err := c.bc.Bread(ip.Addrs[param.NDIRECT], true)
		if err != nil {
			panic(fmt.Sprintf("icache: bmap: %v", err))
		}
		defer c.bc.Brelse(buf, true)

		addr := binary.LittleEndian.Uint32(buf.Data[n*4:])
		if addr == 0 {
			addr = alloc.Balloc(c.bc, c.sb)
			binary.LittleEndian.PutUint32(buf.Data[n*4:], addr)
			if err := c.bc.Bwrite(buf); err != nil {
				panic(fmt.Sprintf("icache: bmap: %v", err))
			}
		}
		return addr
	}

	panic("icache: bmap: out of range")
}

// Readi copies n bytes starting at off from ip's contents into dst,
// clamping to the file's size, and returns the count copied. Device
// inodes dispatch to the registered driver instead (spec §4.3).
// Caller holds at least a shared lock.
func (c *Cache) Readi(ip *Ino, dst []byte, off, n uint32) (int, error) {
	if ip.Type == param.T_DEV {
		d := c.Devsw.Lookup(ip.Major)
		if d == nil || d.Read == nil {
			return 0, fmt.Errorf("icache: readi: no driver for major %d", ip.Major)
		}
		if int(n) > len(dst) {
			n = uint32(len(dst))
		}
		return d.Read(ip, dst[:n])
	}

	if off > ip.Size || off+n < off {
		return 0, fmt.Errorf("icache: readi: offset %d out of range (size %d)", off, ip.Size)
	}
	if off+n > ip.Size {
		n = ip.Size - off
	}

	var tot uint32
	for tot < n {
		blk := c.Bmap(ip, off/param.BSIZE)
		buf, err := c.bc.Bread(blk, false)
		if err != nil {
			return int(tot), err
		}
		m := n - tot
		if room := uint32(param.BSIZE) - off%param.BSIZE; m > room {
			m = room
		}
		copy(dst[tot:tot+m], buf.Data[off%param.BSIZE:])
		c.bc.Brelse(buf, false)

		tot += m
		off += m
	}
	return int(tot), nil
}

// Writei copies n bytes from src into ip's contents at off, allocating
// blocks as needed and clamping to param.MAXFILE*BSIZE. Caller holds
// ip exclusively.
func (c *Cache) Writei(ip *Ino, src []byte, off, n uint32) (int, error) {
	if ip.Type == param.T_DEV {
		d := c.Devsw.Lookup(ip.Major)
		if d == nil || d.Write == nil {
			return 0, fmt.Errorf("icache: writei: no driver for major %d", ip.Major)
		}
		if int(n) > len(src) {
			n = uint32(len(src))
		}
		return d.Write(ip, src[:n])
	}

	if off > ip.Size || off+n < off {
		return 0, fmt.Errorf("icache: writei: offset %d out of range (size %d)", off, ip.Size)
	}
	maxBytes := uint32(param.MAXFILE) * param.BSIZE
	if off+n > maxBytes {
		n = maxBytes - off
	}

	var tot uint32
	for tot < n {
		blk := c.Bmap(ip, off/param.BSIZE)
		buf, err := c.bc.Bread(blk, true)
		if err != nil {
			return int(tot), err
		}
		m := n - tot
		if room := uint32(param.BSIZE) - off%param.BSIZE; m > room {
			m = room
		}
		copy(buf.Data[off%param.BSIZE:], src[tot:tot+m])
		werr := c.bc.Bwrite(buf)
		c.bc.Brelse(buf, true)
		if werr != nil {
			return int(tot), werr
		}

		tot += m
		off += m
	}

	if n > 0 && off > ip.Size {
		ip.Size = off
		c.Iupdate(ip)
	}
	return int(tot), nil
}

// itrunc discards ip's contents: every direct block, every indirect
// block entry, and the indirect block itself are freed, then Size is
// zeroed and the change is flushed. Caller holds ip exclusively.
//
// itrunc only ever runs from Iput's teardown path, reached once ref
// has dropped to zero: no other caller can be mid-Ilock on this inode
// at that point, so the frees happen synchronously rather than through
// a deferred reclamation mechanism (see DESIGN.md).
func (c *Cache) itrunc(ip *Ino) {
	for i := 0; i < param.NDIRECT; i++ {
		if ip.Addrs[i] != 0 {
			alloc.Bfree(c.bc, c.sb, ip.Addrs[i])
			ip.Addrs[i] = 0
		}
	}

	if ip.Addrs[param.NDIRECT] != 0 {
		buf, err := c.bc.Bread(ip.Addrs[param.NDIRECT], false)
		if err != nil {
			panic(fmt.Sprintf("icache: itrunc: %v", err))
		}
		for j := 0; j < param.NINDIRECT; j++ {
			if a := binary.LittleEndian.Uint32(buf.Data[j*4:]); a != 0 {
				alloc.Bfree(c.bc, c.sb, a)
			}
		}
		c.bc.Brelse(buf, false)
		alloc.Bfree(c.bc, c.sb, ip.Addrs[param.NDIRECT])
		ip.Addrs[param.NDIRECT] = 0
	}

	ip.Size = 0
	c.Iupdate(ip)
}
