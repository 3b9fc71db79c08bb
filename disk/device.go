// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disk supplies the block-addressed backing store and the
// buffer cache that the file system core treats as external
// collaborators (spec §1, §6): bread/bwrite/brelse over fixed-size
// blocks, with locking scoped per acquire...release pair.
package disk

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/gokernel/fscore/param"
)

// Device is a block-addressed store. A single mounted device is
// assumed throughout this module (spec §3 "Device").
type Device interface {
	// ReadBlock reads exactly param.BSIZE bytes at block number b.
	ReadBlock(b uint32, dst []byte) error
	// WriteBlock writes exactly param.BSIZE bytes at block number b.
	WriteBlock(b uint32, src []byte) error
	// NumBlocks returns the device capacity in blocks.
	NumBlocks() uint32
}

// MemDevice is a Device backed by an in-memory byte slice. Used in
// tests; cmd/mkfs writes its image through FileDevice instead.
type MemDevice struct {
	blocks [][param.BSIZE]byte
}

// NewMemDevice allocates a zeroed in-memory device of nblocks blocks.
func NewMemDevice(nblocks uint32) *MemDevice {
	return &MemDevice{blocks: make([][param.BSIZE]byte, nblocks)}
}

func (d *MemDevice) ReadBlock(b uint32, dst []byte) error {
	if b >= uint32(len(d.blocks)) {
		return fmt.Errorf("disk: read block %d out of range (%d blocks)", b, len(d.blocks))
	}
	copy(dst, d.blocks[b][:])
	return nil
}

func (d *MemDevice) WriteBlock(b uint32, src []byte) error {
	if b >= uint32(len(d.blocks)) {
		return fmt.Errorf("disk: write block %d out of range (%d blocks)", b, len(d.blocks))
	}
	copy(d.blocks[b][:], src)
	return nil
}

func (d *MemDevice) NumBlocks() uint32 { return uint32(len(d.blocks)) }

// FileDevice is a Device backed by a regular file, addressed with
// unix.Pread/Pwrite rather than os.File's ReadAt/WriteAt — the teacher
// pack reaches for the unix.* syscalls directly wherever it touches
// raw file bytes (fs/files.go, fs/loopback_linux.go).
type FileDevice struct {
	mu       sync.Mutex
	f        *os.File
	nblocks  uint32
}

// OpenFileDevice opens (or creates, for mkfs) path as a device image
// of the given capacity in blocks.
func OpenFileDevice(path string, nblocks uint32, create bool) (*FileDevice, error) {
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, err
	}
	if create {
		if err := f.Truncate(int64(nblocks) * param.BSIZE); err != nil {
			f.Close()
			return nil, err
		}
	}
	return &FileDevice{f: f, nblocks: nblocks}, nil
}

func (d *FileDevice) ReadBlock(b uint32, dst []byte) error {
	if b >= d.nblocks {
		return fmt.Errorf("disk: read block %d out of range (%d blocks)", b, d.nblocks)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := unix.Pread(int(d.f.Fd()), dst, int64(b)*param.BSIZE)
	return err
}

func (d *FileDevice) WriteBlock(b uint32, src []byte) error {
	if b >= d.nblocks {
		return fmt.Errorf("disk: write block %d out of range (%d blocks)", b, d.nblocks)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := unix.Pwrite(int(d.f.Fd()), src, int64(b)*param.BSIZE)
	return err
}

func (d *FileDevice) NumBlocks() uint32 { return d.nblocks }

func (d *FileDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.f.Close()
}
