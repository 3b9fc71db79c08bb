// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package param holds the on-disk geometry constants shared by every
// layer of the file system core: block size, inode layout, directory
// record size and the small set of well-known inode numbers.
package param

const (
	// BSIZE is the size in bytes of one disk block.
	BSIZE = 512

	// NDIRECT is the number of direct block addresses carried in a
	// dinode. NINDIRECT is the number of block addresses held in the
	// single indirect block.
	NDIRECT   = 12
	NINDIRECT = BSIZE / 4
	MAXFILE   = NDIRECT + NINDIRECT

	// DIRSIZ is the fixed length, in bytes, of a directory entry name.
	DIRSIZ = 14

	// NINODE is the fixed capacity of the in-memory inode cache.
	NINODE = 50

	// IPB is the number of packed dinodes per disk block; BPB is the
	// number of bitmap bits (one per block, by global block number) per
	// bitmap block.
	IPB = BSIZE / DinodeSize
	BPB = BSIZE * 8

	// ROOTDEV and ROOTINO name the boot device and its root directory.
	ROOTDEV = 1
	ROOTINO = 1

	// Inode types. Zero means the on-disk slot is free.
	T_FREE = 0
	T_DIR  = 1
	T_FILE = 2
	T_DEV  = 3

	// DinodeSize is the packed, on-disk size of one dinode record:
	// type, major, minor, nlink (4x uint16) + size + gen (2x uint32) +
	// NDIRECT+1 block addresses (uint32 each).
	DinodeSize = 4*2 + 4*2 + (NDIRECT+1)*4

	// DirentSize is the packed size of one directory record: a uint16
	// inode number followed by a DIRSIZ-byte name.
	DirentSize = 2 + DIRSIZ

	// SuperblockNum is the fixed block number of the superblock.
	SuperblockNum = 1

	// InodeStartBlock is the first block of the inode table.
	InodeStartBlock = 2
)

// IBlock returns the disk block number holding the dinode for inum.
func IBlock(inum uint32) uint32 {
	return InodeStartBlock + inum/IPB
}

// BBlock returns the bitmap block number holding the free/in-use bit
// for data block b, given the number of inode-table blocks implied by
// ninodes.
func BBlock(b, ninodes uint32) uint32 {
	inodeBlocks := (ninodes + IPB - 1) / IPB
	bitmapStart := InodeStartBlock + inodeBlocks
	return bitmapStart + b/BPB
}
