// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package alloc implements the bitmap-based data block allocator
// (spec §4.1, C2): one bit per block, indexed by global block number,
// 0=free, 1=in-use; Reserve pre-marks the metadata blocks in-use.
package alloc

import (
	"fmt"

	"github.com/gokernel/fscore/disk"
	"github.com/gokernel/fscore/param"
	"github.com/gokernel/fscore/super"
)

// Balloc scans the bitmap in BPB-sized chunks and claims the first
// clear bit it finds, returning the global block number. It panics —
// a corruption assert per spec §7 — if the device has no free block,
// since on-disk allocation has no recovery path without journalling.
func Balloc(bc *disk.BufCache, sb *super.Superblock) uint32 {
	for b := uint32(0); b < sb.Size; b += param.BPB {
		buf, err := bc.Bread(sb.BBlock(b), true)
		if err != nil {
			panic(fmt.Sprintf("alloc: balloc: %v", err))
		}
		found := false
		var bit uint32
		for bi := uint32(0); bi < param.BPB && b+bi < sb.Size; bi++ {
			byteIdx, mask := bi/8, byte(1<<(bi%8))
			if buf.Data[byteIdx]&mask == 0 {
				buf.Data[byteIdx] |= mask
				bit = bi
				found = true
				break
			}
		}
		if !found {
			bc.Brelse(buf, true)
			continue
		}
		if err := bc.Bwrite(buf); err != nil {
			bc.Brelse(buf, true)
			panic(fmt.Sprintf("alloc: balloc: %v", err))
		}
		bc.Brelse(buf, true)
		return b + bit
	}
	panic("alloc: balloc: out of blocks")
}

// Reserve marks blocks [0, n) as in-use in the bitmap, for the boot,
// superblock, inode-table and bitmap blocks a formatter lays down
// before any data block exists (spec §4.1; mirrors original_source/fs.c's
// mkfs, which pre-marks every non-data block so balloc's global block
// numbers never collide with the metadata region). Callers must do
// this once, at format time, before the first Balloc.
func Reserve(bc *disk.BufCache, sb *super.Superblock, n uint32) {
	for b := uint32(0); b < n; b += param.BPB {
		buf, err := bc.Bread(sb.BBlock(b), true)
		if err != nil {
			panic(fmt.Sprintf("alloc: reserve: %v", err))
		}
		limit := n - b
		if limit > param.BPB {
			limit = param.BPB
		}
		for bi := uint32(0); bi < limit; bi++ {
			byteIdx, mask := bi/8, byte(1<<(bi%8))
			buf.Data[byteIdx] |= mask
		}
		if err := bc.Bwrite(buf); err != nil {
			bc.Brelse(buf, true)
			panic(fmt.Sprintf("alloc: reserve: %v", err))
		}
		bc.Brelse(buf, true)
	}
}

// Bfree zeroes block b, then clears its bitmap bit. The zero-before-
// clear ordering (spec §4.1) means a racing Balloc that observes the
// bit still set sees zeros, never a previous tenant's bytes.
// Bfree panics if the bit was already clear — freeing a free block is
// a corruption assert (spec §7).
func Bfree(bc *disk.BufCache, sb *super.Superblock, b uint32) {
	bzero(bc, b)

	blk := sb.BBlock(b)
	buf, err := bc.Bread(blk, true)
	if err != nil {
		panic(fmt.Sprintf("alloc: bfree: %v", err))
	}
	defer bc.Brelse(buf, true)

	bi := b % param.BPB
	byteIdx, mask := bi/8, byte(1<<(bi%8))
	if buf.Data[byteIdx]&mask == 0 {
		panic("alloc: bfree: freeing free block")
	}
	buf.Data[byteIdx] &^= mask
	if err := bc.Bwrite(buf); err != nil {
		panic(fmt.Sprintf("alloc: bfree: %v", err))
	}
}

func bzero(bc *disk.BufCache, b uint32) {
	buf, err := bc.Bread(b, true)
	if err != nil {
		panic(fmt.Sprintf("alloc: bzero: %v", err))
	}
	defer bc.Brelse(buf, true)
	for i := range buf.Data {
		buf.Data[i] = 0
	}
	if err := bc.Bwrite(buf); err != nil {
		panic(fmt.Sprintf("alloc: bzero: %v", err))
	}
}
