// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package namecache memoises (directory inode, name) -> child inode
// lookups for the path walker (spec §4.5, C7). The path walker treats
// this as an external collaborator; this package gives it a concrete,
// bounded implementation so the module is runnable standalone.
package namecache

import "sync"

// entryKey pairs the parent directory's inode number with the
// looked-up name.
type entryKey struct {
	dirInum uint32
	name    string
}

// Cache is a small bounded map cache, grounded on the teacher's
// unionfs.DirCache: a plain RWMutex-guarded map rather than an LRU
// list, since spec §6 does not require a particular eviction policy
// ("implementation-defined eviction; negative caching not required").
// When full, Insert evicts an arbitrary entry rather than growing
// without bound.
type Cache struct {
	maxEntries int

	mu      sync.RWMutex
	entries map[entryKey]uint32
}

// New returns a name cache holding at most maxEntries mappings.
func New(maxEntries int) *Cache {
	return &Cache{
		maxEntries: maxEntries,
		entries:    make(map[entryKey]uint32, maxEntries),
	}
}

// Lookup returns the cached child inode number for (dirInum, name),
// if present.
func (c *Cache) Lookup(dirInum uint32, name string) (uint32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[entryKey{dirInum, name}]
	return v, ok
}

// Insert records dirInum/name -> childInum.
func (c *Cache) Insert(dirInum uint32, name string, childInum uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.maxEntries {
		for k := range c.entries {
			delete(c.entries, k)
			break
		}
	}
	c.entries[entryKey{dirInum, name}] = childInum
}

// Invalidate drops any cached mapping for (dirInum, name), for use
// when a directory entry is removed or replaced.
func (c *Cache) Invalidate(dirInum uint32, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, entryKey{dirInum, name})
}
