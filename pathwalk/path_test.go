// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pathwalk

import (
	"testing"

	"github.com/gokernel/fscore/alloc"
	"github.com/gokernel/fscore/dir"
	"github.com/gokernel/fscore/disk"
	"github.com/gokernel/fscore/icache"
	"github.com/gokernel/fscore/namecache"
	"github.com/gokernel/fscore/param"
	"github.com/gokernel/fscore/super"
)

func newTestFixture(t *testing.T, ninodes, ndata uint32) *icache.Cache {
	t.Helper()
	inodeBlocks := (ninodes + param.IPB - 1) / param.IPB
	bitmapBlocks := (ndata + param.BPB - 1) / param.BPB
	metaBlocks := param.InodeStartBlock + inodeBlocks + bitmapBlocks
	total := metaBlocks + ndata

	dev := disk.NewMemDevice(total)
	bc := disk.NewBufCache(dev)
	sb := &super.Superblock{Size: total, NBlocks: ndata, NInodes: ninodes}
	if err := super.Write(bc, sb); err != nil {
		t.Fatalf("super.Write: %v", err)
	}
	alloc.Reserve(bc, sb, metaBlocks)
	return icache.New(bc, sb)
}

func TestSkipElemBasic(t *testing.T) {
	cases := []struct {
		path, name, rest string
		ok               bool
	}{
		{"a/bb/c", "a", "bb/c", true},
		{"///a/bb", "a", "bb", true},
		{"a", "a", "", true},
		{"", "", "", false},
		{"/", "", "", false},
	}
	for _, tc := range cases {
		name, rest, ok := SkipElem(tc.path)
		if name != tc.name || rest != tc.rest || ok != tc.ok {
			t.Fatalf("SkipElem(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tc.path, name, rest, ok, tc.name, tc.rest, tc.ok)
		}
	}
}

func TestSkipElemTruncatesOverlongComponent(t *testing.T) {
	// The skipelem quirk (spec §9): components >= DIRSIZ bytes are
	// silently truncated rather than rejected.
	long := "abcdefghijklmnopqrstuvwxyz"
	name, rest, ok := SkipElem(long + "/tail")
	if !ok {
		t.Fatalf("expected ok")
	}
	if len(name) != param.DIRSIZ {
		t.Fatalf("name length = %d, want %d", len(name), param.DIRSIZ)
	}
	if name != long[:param.DIRSIZ] {
		t.Fatalf("name = %q, want %q", name, long[:param.DIRSIZ])
	}
	if rest != "tail" {
		t.Fatalf("rest = %q, want %q", rest, "tail")
	}
}

func setupTree(t *testing.T, c *icache.Cache) (root, child *icache.Ino) {
	t.Helper()
	root = c.Iget(param.ROOTINO)
	c.Ilock(root, true)
	root.Type = param.T_DIR
	c.Iupdate(root)
	c.Iunlock(root)

	sub := c.Ialloc(param.T_DIR)
	sub.Nlink = 1 // a real mkdir bumps nlink before linking the name in
	c.Iupdate(sub)
	if err := dir.Dirlink(c, root, "sub", uint32(sub.Inum)); err != nil {
		t.Fatalf("Dirlink sub: %v", err)
	}
	file := c.Ialloc(param.T_FILE)
	file.Nlink = 1
	c.Iupdate(file)
	if err := dir.Dirlink(c, sub, "f", uint32(file.Inum)); err != nil {
		t.Fatalf("Dirlink f: %v", err)
	}
	c.IunlockPut(sub)
	c.IunlockPut(file)
	return root, file
}

func TestNameiResolvesAbsolutePath(t *testing.T) {
	c := newTestFixture(t, 50, 64)
	nc := namecache.New(16)
	root, _ := setupTree(t, c)
	cur := Current{Cwd: c.Idup(root)}

	ip, err := Namei(c, nc, cur, "/sub/f")
	if err != nil {
		t.Fatalf("Namei: %v", err)
	}
	defer c.Iput(ip)
	if ip.Type != param.T_FILE {
		t.Fatalf("resolved type = %v, want T_FILE", ip.Type)
	}
	c.Iput(cur.Cwd)
	c.Iput(root)
}

func TestNameiIsIdempotent(t *testing.T) {
	// Law (spec §8): resolving the same path twice yields inodes
	// referring to the same on-disk inum.
	c := newTestFixture(t, 50, 64)
	nc := namecache.New(16)
	root, _ := setupTree(t, c)
	cur := Current{Cwd: c.Idup(root)}

	first, err := Namei(c, nc, cur, "/sub/f")
	if err != nil {
		t.Fatalf("Namei: %v", err)
	}
	second, err := Namei(c, nc, cur, "/sub/f")
	if err != nil {
		t.Fatalf("Namei: %v", err)
	}
	if first.Inum != second.Inum {
		t.Fatalf("inum mismatch: %d != %d", first.Inum, second.Inum)
	}
	c.Iput(first)
	c.Iput(second)
	c.Iput(cur.Cwd)
	c.Iput(root)
}

func TestNameiParentSplitsFinalComponent(t *testing.T) {
	c := newTestFixture(t, 50, 64)
	nc := namecache.New(16)
	root, _ := setupTree(t, c)
	cur := Current{Cwd: c.Idup(root)}

	parent, name, err := NameiParent(c, nc, cur, "/sub/f")
	if err != nil {
		t.Fatalf("NameiParent: %v", err)
	}
	if name != "f" {
		t.Fatalf("name = %q, want %q", name, "f")
	}
	sub, _, ok := dir.Dirlookup(c, parent, "f")
	if !ok {
		t.Fatalf("expected to find f under resolved parent")
	}
	c.Iput(sub)
	c.Iput(parent)
	c.Iput(cur.Cwd)
	c.Iput(root)
}

func TestNameiMissingComponentFails(t *testing.T) {
	c := newTestFixture(t, 50, 64)
	nc := namecache.New(16)
	root, _ := setupTree(t, c)
	cur := Current{Cwd: c.Idup(root)}

	if _, err := Namei(c, nc, cur, "/sub/nope"); err == nil {
		t.Fatalf("expected error resolving missing component")
	}
	c.Iput(cur.Cwd)
	c.Iput(root)
}

func TestNameiThroughNonDirectoryFails(t *testing.T) {
	c := newTestFixture(t, 50, 64)
	nc := namecache.New(16)
	root, _ := setupTree(t, c)
	cur := Current{Cwd: c.Idup(root)}

	if _, err := Namei(c, nc, cur, "/sub/f/x"); err == nil {
		t.Fatalf("expected error walking through a non-directory")
	}
	c.Iput(cur.Cwd)
	c.Iput(root)
}

func TestNameiRelativeToCwd(t *testing.T) {
	c := newTestFixture(t, 50, 64)
	nc := namecache.New(16)
	root, _ := setupTree(t, c)

	sub, _, ok := dir.Dirlookup(c, root, "sub")
	if !ok {
		t.Fatalf("expected to find sub under root")
	}
	cur := Current{Cwd: sub}

	ip, err := Namei(c, nc, cur, "f")
	if err != nil {
		t.Fatalf("Namei: %v", err)
	}
	c.Iput(ip)
	c.Iput(sub)
	c.Iput(root)
}
