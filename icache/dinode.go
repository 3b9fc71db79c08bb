// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package icache

import (
	"encoding/binary"

	"github.com/gokernel/fscore/disk"
	"github.com/gokernel/fscore/param"
)

// dinode offsets within a packed record (little-endian, spec §6).
const (
	offType  = 0
	offMajor = 2
	offMinor = 4
	offNlink = 6
	offSize  = 8
	offGen   = 12
	offAddrs = 16
)

func dinodeOffset(inum uint32) int {
	return int(inum%param.IPB) * param.DinodeSize
}

// dinodeType peeks at the type field of inum's dinode without
// decoding the whole record, for ialloc's cheap first-pass scan.
func dinodeType(buf *disk.Buf, inum uint32) uint16 {
	off := dinodeOffset(inum)
	return binary.LittleEndian.Uint16(buf.Data[off+offType:])
}

func decodeDinode(buf *disk.Buf, inum uint32, ip *Ino) {
	off := dinodeOffset(inum)
	d := buf.Data[off:]
	ip.Type = binary.LittleEndian.Uint16(d[offType:])
	ip.Major = binary.LittleEndian.Uint16(d[offMajor:])
	ip.Minor = binary.LittleEndian.Uint16(d[offMinor:])
	ip.Nlink = binary.LittleEndian.Uint16(d[offNlink:])
	ip.Size = binary.LittleEndian.Uint32(d[offSize:])
	ip.Gen = binary.LittleEndian.Uint32(d[offGen:])
	for i := 0; i < len(ip.Addrs); i++ {
		ip.Addrs[i] = binary.LittleEndian.Uint32(d[offAddrs+i*4:])
	}
}

func encodeDinode(buf *disk.Buf, inum uint32, ip *Ino) {
	off := dinodeOffset(inum)
	d := buf.Data[off:]
	binary.LittleEndian.PutUint16(d[offType:], ip.Type)
	binary.LittleEndian.PutUint16(d[offMajor:], ip.Major)
	binary.LittleEndian.PutUint16(d[offMinor:], ip.Minor)
	binary.LittleEndian.PutUint16(d[offNlink:], ip.Nlink)
	binary.LittleEndian.PutUint32(d[offSize:], ip.Size)
	binary.LittleEndian.PutUint32(d[offGen:], ip.Gen)
	for i, a := range ip.Addrs {
		binary.LittleEndian.PutUint32(d[offAddrs+i*4:], a)
	}
}
