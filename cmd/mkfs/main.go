// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command mkfs formats a raw image file with a superblock, an empty
// inode table, and a free-block bitmap with every boot/superblock/
// inode-table/bitmap block pre-marked in-use, then allocates the root
// directory inode.
package main

import (
	"flag"
	"log"

	"github.com/gokernel/fscore/alloc"
	"github.com/gokernel/fscore/dir"
	"github.com/gokernel/fscore/disk"
	"github.com/gokernel/fscore/icache"
	"github.com/gokernel/fscore/param"
	"github.com/gokernel/fscore/super"
)

func main() {
	ninodes := flag.Uint("inodes", 200, "number of inodes")
	nblocks := flag.Uint("blocks", 1024, "number of data blocks, excluding the superblock and inode table")
	flag.Parse()
	if len(flag.Args()) < 1 {
		log.Fatal("Usage:\n  mkfs IMAGE")
	}
	if err := format(flag.Arg(0), uint32(*ninodes), uint32(*nblocks)); err != nil {
		log.Fatalf("mkfs: %v", err)
	}
}

func format(path string, ninodes, nblocks uint32) error {
	inodeBlocks := (ninodes + param.IPB - 1) / param.IPB
	bitmapBlocks := (nblocks + param.BPB - 1) / param.BPB
	metaBlocks := param.InodeStartBlock + inodeBlocks + bitmapBlocks
	total := metaBlocks + nblocks

	dev, err := disk.OpenFileDevice(path, total, true)
	if err != nil {
		return err
	}
	defer dev.Close()

	bc := disk.NewBufCache(dev)
	sb := &super.Superblock{Size: total, NBlocks: nblocks, NInodes: ninodes}
	if err := super.Write(bc, sb); err != nil {
		return err
	}

	// balloc hands out global block numbers starting at 0, so the boot,
	// superblock, inode-table and bitmap blocks must be marked in-use
	// before the first Balloc, or balloc will claim them as free data.
	alloc.Reserve(bc, sb, metaBlocks)

	// Inode 0 is never allocated; inode table blocks start life zeroed
	// by virtue of the freshly created image.
	c := icache.New(bc, sb)
	root := c.Ialloc(param.T_DIR)
	if uint32(root.Inum) != param.ROOTINO {
		log.Fatalf("mkfs: first allocated inode was %d, want root inode %d", root.Inum, param.ROOTINO)
	}
	root.Nlink = 1
	c.Iupdate(root)
	if err := dir.Dirlink(c, root, ".", param.ROOTINO); err != nil {
		c.IunlockPut(root)
		return err
	}
	if err := dir.Dirlink(c, root, "..", param.ROOTINO); err != nil {
		c.IunlockPut(root)
		return err
	}
	root.Nlink++
	c.Iupdate(root)
	c.IunlockPut(root)

	log.Printf("mkfs: formatted %s: %d inodes, %d data blocks, %d total blocks", path, ninodes, nblocks, total)
	return nil
}
