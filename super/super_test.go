// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package super

import (
	"testing"

	"github.com/gokernel/fscore/disk"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dev := disk.NewMemDevice(64)
	bc := disk.NewBufCache(dev)

	want := &Superblock{Size: 2048, NBlocks: 2000, NInodes: 200}
	if err := Write(bc, want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(bc)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if *got != *want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}
