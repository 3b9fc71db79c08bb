// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package super reads the on-disk superblock (spec §3, §4 C1):
// device geometry, read-only after format.
package super

import (
	"encoding/binary"

	"github.com/gokernel/fscore/disk"
	"github.com/gokernel/fscore/param"
)

// Superblock describes the static geometry of a formatted device. It
// is loaded once and never mutated afterwards.
type Superblock struct {
	Size    uint32 // total blocks on the device
	NBlocks uint32 // data blocks (excluding boot/super/inodes/bitmap)
	NInodes uint32 // number of dinode slots
}

// binarySize is the packed on-disk size of a Superblock, little-endian.
const binarySize = 4 * 3

// Read loads the superblock from block param.SuperblockNum.
func Read(bc *disk.BufCache) (*Superblock, error) {
	buf, err := bc.Bread(param.SuperblockNum, false)
	if err != nil {
		return nil, err
	}
	defer bc.Brelse(buf, false)

	sb := &Superblock{
		Size:    binary.LittleEndian.Uint32(buf.Data[0:4]),
		NBlocks: binary.LittleEndian.Uint32(buf.Data[4:8]),
		NInodes: binary.LittleEndian.Uint32(buf.Data[8:12]),
	}
	return sb, nil
}

// Write persists sb to block param.SuperblockNum. Only used by
// cmd/mkfs at format time; the running file system treats the
// superblock as read-only (spec §3).
func Write(bc *disk.BufCache, sb *Superblock) error {
	buf, err := bc.Bread(param.SuperblockNum, true)
	if err != nil {
		return err
	}
	defer bc.Brelse(buf, true)

	binary.LittleEndian.PutUint32(buf.Data[0:4], sb.Size)
	binary.LittleEndian.PutUint32(buf.Data[4:8], sb.NBlocks)
	binary.LittleEndian.PutUint32(buf.Data[8:12], sb.NInodes)
	return bc.Bwrite(buf)
}

// IBlock returns the disk block holding the dinode for inum.
func (sb *Superblock) IBlock(inum uint32) uint32 { return param.IBlock(inum) }

// BBlock returns the bitmap block holding the free/in-use bit for
// data block b.
func (sb *Superblock) BBlock(b uint32) uint32 { return param.BBlock(b, sb.NInodes) }
