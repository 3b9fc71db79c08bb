// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dir implements the fixed-record directory encoding and the
// lookup/link operations layered on it (spec §4.4, C5).
package dir

import (
	"bytes"
	"fmt"

	"github.com/gokernel/fscore/icache"
	"github.com/gokernel/fscore/param"
)

// Namecmp compares two names under the bounded strncmp semantics
// directory records use: exactly param.DIRSIZ bytes, NUL-terminated or
// exact length. This intentionally tolerates the skipelem quirk (spec
// §9) where an overlong path component arrives without a trailing NUL.
func Namecmp(a, b string) bool {
	var ab, bb [param.DIRSIZ]byte
	copy(ab[:], a)
	copy(bb[:], b)
	return ab == bb
}

func encodeName(name string) [param.DIRSIZ]byte {
	var out [param.DIRSIZ]byte
	copy(out[:], name)
	return out
}

func decodeName(raw [param.DIRSIZ]byte) string {
	n := bytes.IndexByte(raw[:], 0)
	if n < 0 {
		n = param.DIRSIZ
	}
	return string(raw[:n])
}

// Dirlookup walks dp's contents looking for name. Caller holds dp
// locked (shared is sufficient). Returns the matching child inode
// (unreferenced by this call's own bookkeeping — Iget already bumped
// its ref) and the byte offset of the match, or ok=false if absent.
func Dirlookup(c *icache.Cache, dp *icache.Ino, name string) (ip *icache.Ino, off uint32, ok bool) {
	if dp.Type != param.T_DIR {
		panic("dir: dirlookup: not a directory")
	}

	var rec [param.DirentSize]byte
	for o := uint32(0); o < dp.Size; o += param.DirentSize {
		n, err := c.Readi(dp, rec[:], o, param.DirentSize)
		if err != nil || n != param.DirentSize {
			panic(fmt.Sprintf("dir: dirlookup: short read at offset %d", o))
		}
		inum, recName := decodeDirent(rec)
		if inum == 0 {
			continue
		}
		if Namecmp(name, recName) {
			return c.Iget(inum), o, true
		}
	}
	return nil, 0, false
}

// Dirlink writes a new (name, inum) record into dp. Caller holds dp
// exclusively. Returns an error (soft failure, spec §7) if name is
// already present; any other write inconsistency is a corruption
// assert (panic), matching fs.c's dirlink.
func Dirlink(c *icache.Cache, dp *icache.Ino, name string, inum uint32) error {
	if existing, _, ok := Dirlookup(c, dp, name); ok {
		c.Iput(existing)
		return fmt.Errorf("dir: dirlink: %q already exists", name)
	}

	var rec [param.DirentSize]byte
	off := dp.Size
	for o := uint32(0); o < dp.Size; o += param.DirentSize {
		n, err := c.Readi(dp, rec[:], o, param.DirentSize)
		if err != nil || n != param.DirentSize {
			panic(fmt.Sprintf("dir: dirlink: short read at offset %d", o))
		}
		if existingInum, _ := decodeDirent(rec); existingInum == 0 {
			off = o
			break
		}
	}

	encoded := encodeDirent(inum, name)
	n, err := c.Writei(dp, encoded[:], off, param.DirentSize)
	if err != nil || n != param.DirentSize {
		panic(fmt.Sprintf("dir: dirlink: short write at offset %d: %v", off, err))
	}
	return nil
}

func encodeDirent(inum uint32, name string) [param.DirentSize]byte {
	var rec [param.DirentSize]byte
	rec[0] = byte(inum)
	rec[1] = byte(inum >> 8)
	copy(rec[2:], encodeName(name)[:])
	return rec
}

func decodeDirent(rec [param.DirentSize]byte) (inum uint32, name string) {
	inum = uint32(rec[0]) | uint32(rec[1])<<8
	var raw [param.DIRSIZ]byte
	copy(raw[:], rec[2:])
	return inum, decodeName(raw)
}
