// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pathwalk parses paths and resolves them element-by-element
// through the inode cache and directory layer (spec §4.5, C6).
package pathwalk

import (
	"fmt"

	"github.com/gokernel/fscore/dir"
	"github.com/gokernel/fscore/icache"
	"github.com/gokernel/fscore/namecache"
	"github.com/gokernel/fscore/param"
)

// Current is the slice of per-process state this layer consumes
// (spec §1 "only current.cwd is consumed"): the caller's working
// directory, passed explicitly rather than through ambient global
// state (spec §9 "global mutable state").
type Current struct {
	Cwd *icache.Ino
}

// SkipElem strips leading slashes and copies the next path component
// (spec §4.5). It returns the remaining path (leading slashes
// stripped) and ok=false when there is no next component.
//
// Overlong components (>= param.DIRSIZ bytes) are silently truncated
// to exactly DIRSIZ bytes rather than rejected — a deliberate
// compatibility quirk carried over from the system this design is
// based on (see SPEC_FULL.md §5). dir.Namecmp always compares a full
// DIRSIZ-byte window, so the truncated name still compares correctly
// against any on-disk record sharing the same DIRSIZ-byte prefix.
func SkipElem(path string) (name, rest string, ok bool) {
	i := 0
	for i < len(path) && path[i] == '/' {
		i++
	}
	if i == len(path) {
		return "", "", false
	}
	start := i
	for i < len(path) && path[i] != '/' {
		i++
	}
	elem := path[start:i]
	if len(elem) >= param.DIRSIZ {
		name = elem[:param.DIRSIZ]
	} else {
		name = elem
	}
	for i < len(path) && path[i] == '/' {
		i++
	}
	return name, path[i:], true
}

// Namex resolves path, consulting nc for (dir, name) -> child
// shortcuts. When wantParent is true, it stops one element early and
// returns the parent directory together with the final component's
// name (spec §4.5 "return parent" mode); otherwise it returns the
// resolved inode.
//
// namex panics on type==0 observed mid-traversal (spec §9 Open
// Question: kept as a fatal corruption assert, not reclassified — see
// DESIGN.md). All other resolution failures are soft: a nil inode and
// a descriptive error.
func Namex(c *icache.Cache, nc *namecache.Cache, cur Current, path string, wantParent bool) (*icache.Ino, string, error) {
	var ip *icache.Ino
	if len(path) > 0 && path[0] == '/' {
		ip = c.Iget(param.ROOTINO)
	} else {
		ip = c.Idup(cur.Cwd)
	}

	name, rest, ok := SkipElem(path)
	for ok {
		var next *icache.Ino

		if !wantParent {
			if childInum, hit := nc.Lookup(uint32(ip.Inum), name); hit {
				next = c.Iget(childInum)
				c.Iput(ip) // namecache hit: drop the ref on the directory we're leaving
			}
		}

		if next == nil {
			c.Ilock(ip, false)
			if ip.Type == param.T_FREE {
				panic("pathwalk: namex: observed freed inode mid-traversal")
			}
			if ip.Type != param.T_DIR {
				c.IunlockPut(ip)
				return nil, "", fmt.Errorf("pathwalk: namex: %q is not a directory", name)
			}
			if wantParent && rest == "" {
				// Stop one level early: caller wants the directory, not
				// the final component.
				c.Iunlock(ip)
				return ip, name, nil
			}

			var found bool
			next, _, found = dir.Dirlookup(c, ip, name)
			if !found {
				c.IunlockPut(ip)
				return nil, "", fmt.Errorf("pathwalk: namex: %q not found", name)
			}
			nc.Insert(uint32(ip.Inum), name, uint32(next.Inum))
			c.IunlockPut(ip)
		}

		ip = next
		name, rest, ok = SkipElem(rest)
	}

	if wantParent {
		c.Iput(ip)
		return nil, "", fmt.Errorf("pathwalk: namex: path has no final component")
	}
	return ip, "", nil
}

// Namei resolves path to its inode.
func Namei(c *icache.Cache, nc *namecache.Cache, cur Current, path string) (*icache.Ino, error) {
	ip, _, err := Namex(c, nc, cur, path, false)
	return ip, err
}

// NameiParent resolves path to its parent directory, returning the
// final path component's name alongside it.
func NameiParent(c *icache.Cache, nc *namecache.Cache, cur Current, path string) (*icache.Ino, string, error) {
	return Namex(c, nc, cur, path, true)
}
